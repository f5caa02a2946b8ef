// Harbinger - Real-Time Multi-Domain Signal Fusion and Early Warning
// Copyright 2026 R. Calloway (rcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcalloway/harbinger

package fusion

import "github.com/rcalloway/harbinger/internal/models"

// defaultRecommendation covers any (domain, severity) pair the table
// does not map.
const defaultRecommendation = "Monitor situation."

var recommendations = map[models.Domain]map[models.Severity]string{
	models.DomainWeather: {
		models.SeverityCritical: "Immediate evacuation recommended. Flash flood conditions imminent.",
		models.SeverityWarning:  "Monitor conditions closely. Prepare for possible evacuation.",
		models.SeverityWatch:    "Stay alert. Heavy rainfall expected.",
		models.SeverityInfo:     "Weather conditions deteriorating. Stay informed.",
	},
	models.DomainCrime: {
		models.SeverityCritical: "High crime activity detected. Increase patrols immediately.",
		models.SeverityWarning:  "Elevated crime risk. Deploy additional resources.",
		models.SeverityWatch:    "Crime pattern emerging. Monitor the area.",
		models.SeverityInfo:     "Routine crime activity detected.",
	},
	models.DomainFraud: {
		models.SeverityCritical: "Sophisticated fraud attack detected. Freeze accounts and investigate.",
		models.SeverityWarning:  "Fraud pattern detected. Review transactions immediately.",
		models.SeverityWatch:    "Potential fraud indicators present. Monitor closely.",
		models.SeverityInfo:     "Minor fraud risk detected.",
	},
}

// Recommendation returns the operator guidance for a primary domain and
// severity tier.
func Recommendation(primary models.Domain, severity models.Severity) string {
	if bySeverity, ok := recommendations[primary]; ok {
		if action, ok := bySeverity[severity]; ok {
			return action
		}
	}
	return defaultRecommendation
}
