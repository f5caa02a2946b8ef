// Harbinger - Real-Time Multi-Domain Signal Fusion and Early Warning
// Copyright 2026 R. Calloway (rcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcalloway/harbinger

package notify

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/rcalloway/harbinger/internal/models"
)

// CAP 1.2 message constants. Harbinger always emits real, public alerts.
const (
	capSender    = "harbinger"
	capStatus    = "Actual"
	capMsgType   = "Alert"
	capScope     = "Public"
	capCategory  = "Safety"
	capCertainty = "Likely"
)

// capSeverity maps internal severity levels onto the CAP severity scale.
var capSeverity = map[models.Severity]string{
	models.SeverityInfo:     "Minor",
	models.SeverityWatch:    "Moderate",
	models.SeverityWarning:  "Severe",
	models.SeverityCritical: "Extreme",
}

// CAPParameter is a valueName/value pair inside a CAP info block.
type CAPParameter struct {
	ValueName string `json:"valueName"`
	Value     string `json:"value"`
}

// CAPInfo carries the human-readable portion of a CAP alert.
type CAPInfo struct {
	Category    string         `json:"category"`
	Event       string         `json:"event"`
	Urgency     string         `json:"urgency"`
	Severity    string         `json:"severity"`
	Certainty   string         `json:"certainty"`
	Headline    string         `json:"headline"`
	Description string         `json:"description"`
	Instruction string         `json:"instruction"`
	Area        *CAPArea       `json:"area,omitempty"`
	Parameters  []CAPParameter `json:"parameter"`
}

// CAPArea names the affected area when the alert carries a location.
type CAPArea struct {
	AreaDesc string `json:"areaDesc"`
}

// CAPAlert is the top-level CAP 1.2 envelope sent to webhook receivers.
type CAPAlert struct {
	Identifier string  `json:"identifier"`
	Sender     string  `json:"sender"`
	Sent       string  `json:"sent"`
	Status     string  `json:"status"`
	MsgType    string  `json:"msgType"`
	Scope      string  `json:"scope"`
	Info       CAPInfo `json:"info"`
}

// BuildCAP renders an alert as a CAP 1.2 envelope. The sent timestamp is
// taken from the caller so delivery retries keep a stable payload.
func BuildCAP(alert *models.AlertDraft, sent time.Time) CAPAlert {
	severity, ok := capSeverity[alert.Severity]
	if !ok {
		severity = "Unknown"
	}
	urgency := "Expected"
	if alert.Severity == models.SeverityCritical {
		urgency = "Immediate"
	}

	params := []CAPParameter{
		{ValueName: "final_score", Value: strconv.FormatFloat(alert.FinalScore, 'f', -1, 64)},
		{ValueName: "component_scores", Value: encodeComponentScores(alert.ComponentScores)},
	}

	info := CAPInfo{
		Category:    capCategory,
		Event:       fmt.Sprintf("%s alert", alert.PrimaryType),
		Urgency:     urgency,
		Severity:    severity,
		Certainty:   capCertainty,
		Headline:    fmt.Sprintf("%s: %s", strings.ToUpper(string(alert.Severity)), alert.PrimaryType),
		Description: alert.RecommendedAction,
		Instruction: alert.RecommendedAction,
		Parameters:  params,
	}
	if alert.LocationID != "" {
		info.Area = &CAPArea{AreaDesc: alert.LocationID}
	}

	return CAPAlert{
		Identifier: alert.ID.String(),
		Sender:     capSender,
		Sent:       sent.UTC().Format(time.RFC3339),
		Status:     capStatus,
		MsgType:    capMsgType,
		Scope:      capScope,
		Info:       info,
	}
}

func encodeComponentScores(scores map[models.Domain]float64) string {
	if len(scores) == 0 {
		return "{}"
	}
	b, err := json.Marshal(scores)
	if err != nil {
		return "{}"
	}
	return string(b)
}
