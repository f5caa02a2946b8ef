// Harbinger - Real-Time Multi-Domain Signal Fusion and Early Warning
// Copyright 2026 R. Calloway (rcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcalloway/harbinger

package eventprocessor

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/rcalloway/harbinger/internal/audit"
	"github.com/rcalloway/harbinger/internal/fusion"
	"github.com/rcalloway/harbinger/internal/models"
	"github.com/rcalloway/harbinger/internal/scoring"
	"github.com/rcalloway/harbinger/internal/wal"
)

var procTestTime = time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)

type mockStore struct {
	alerts    []*models.AlertDraft
	audits    []*audit.Entry
	insertErr error
}

func (m *mockStore) InsertAlert(_ context.Context, alert *models.AlertDraft) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.alerts = append(m.alerts, alert)
	return nil
}

func (m *mockStore) InsertAuditEntry(_ context.Context, entry *audit.Entry) error {
	m.audits = append(m.audits, entry)
	return nil
}

type mockNotifier struct {
	dispatched []*models.AlertDraft
}

func (m *mockNotifier) Dispatch(_ context.Context, alert *models.AlertDraft) {
	m.dispatched = append(m.dispatched, alert)
}

type mockBroadcaster struct {
	broadcast []*models.AlertDraft
}

func (m *mockBroadcaster) BroadcastAlert(alert *models.AlertDraft) {
	m.broadcast = append(m.broadcast, alert)
}

type mockAlertPublisher struct {
	topics []string
	alerts []*models.AlertDraft
}

func (m *mockAlertPublisher) PublishAlert(topic string, alert *models.AlertDraft) error {
	m.topics = append(m.topics, topic)
	m.alerts = append(m.alerts, alert)
	return nil
}

type mockRawPublisher struct {
	topics   []string
	messages []*message.Message
	err      error
}

func (m *mockRawPublisher) Publish(topic string, messages ...*message.Message) error {
	if m.err != nil {
		return m.err
	}
	m.topics = append(m.topics, topic)
	m.messages = append(m.messages, messages...)
	return nil
}

func (m *mockRawPublisher) Close() error { return nil }

// suppressingDedupe reports every key as a duplicate.
type suppressingDedupe struct{}

func (suppressingDedupe) CheckAndSet(string, float64, time.Duration, float64) bool { return true }

func newTestProcessor(t *testing.T, store *mockStore, dedupe fusion.DedupeStore, w wal.WAL) (*Processor, *mockNotifier, *mockBroadcaster, *mockAlertPublisher) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(procTestTime)
	notifier := &mockNotifier{}
	broadcaster := &mockBroadcaster{}
	publisher := &mockAlertPublisher{}
	p, err := NewProcessor(ProcessorDeps{
		Registry:    scoring.NewRegistry(clock),
		Engine:      fusion.NewEngine(fusion.DefaultConfig(), dedupe, clock),
		Store:       store,
		WAL:         w,
		Notifier:    notifier,
		Broadcaster: broadcaster,
		Publisher:   publisher,
		Clock:       clock,
	})
	if err != nil {
		t.Fatalf("NewProcessor() error = %v", err)
	}
	return p, notifier, broadcaster, publisher
}

func TestActiveDomains(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		payload map[string]interface{}
		want    []models.Domain
	}{
		{"weather source", "weather", map[string]interface{}{"rain_1h": 30.0}, []models.Domain{models.DomainWeather}},
		{"crime source", "crime", nil, []models.Domain{models.DomainCrime}},
		{"fraud source", "fraud", nil, []models.Domain{models.DomainFraud}},
		{"transaction key activates fraud", "mobile-app", map[string]interface{}{"transaction": map[string]interface{}{}}, []models.Domain{models.DomainFraud}},
		{"weather key in foreign source", "sensor-grid", map[string]interface{}{"weather": true}, []models.Domain{models.DomainWeather}},
		{
			"multi domain canonical order", "fraud",
			map[string]interface{}{"weather": true, "crime": true},
			[]models.Domain{models.DomainWeather, models.DomainCrime, models.DomainFraud},
		},
		{"no activation", "seismic", map[string]interface{}{"magnitude": 4.2}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := &models.SignalEvent{Source: tt.source, Payload: tt.payload}
			got := ActiveDomains(event)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ActiveDomains() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestProcessWeatherEventCreatesAlert(t *testing.T) {
	store := &mockStore{}
	p, notifier, broadcaster, publisher := newTestProcessor(t, store, nil, nil)

	event := &models.SignalEvent{
		EventID:    uuid.New(),
		Source:     "weather",
		LocationID: "basin-7",
		Payload:    map[string]interface{}{"rain_1h": 30.0},
		ReceivedAt: procTestTime,
	}

	outcome, err := p.Process(context.Background(), event)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if outcome != "alert" {
		t.Fatalf("outcome = %q, want alert", outcome)
	}
	if len(store.alerts) != 1 {
		t.Fatalf("stored alerts = %d, want 1", len(store.alerts))
	}

	alert := store.alerts[0]
	if alert.PrimaryType != models.DomainWeather {
		t.Errorf("primary type = %s, want weather", alert.PrimaryType)
	}
	// rain_1h of 30 scores 0.4; weather weight 0.4 yields 0.16.
	if math.Abs(alert.FinalScore-0.16) > 1e-9 {
		t.Errorf("final score = %v, want 0.16", alert.FinalScore)
	}
	if alert.Severity != models.SeverityInfo {
		t.Errorf("severity = %s, want info", alert.Severity)
	}
	if alert.LocationID != "basin-7" {
		t.Errorf("location = %q", alert.LocationID)
	}
	if len(alert.Evidence) != 1 {
		t.Fatalf("evidence entries = %d, want 1", len(alert.Evidence))
	}
	if alert.Evidence[0].Type != "weather_analysis" || alert.Evidence[0].Source != "weather" {
		t.Errorf("evidence = %+v", alert.Evidence[0])
	}
	var data map[string]json.RawMessage
	if err := json.Unmarshal(alert.Evidence[0].Data, &data); err != nil {
		t.Fatalf("evidence data: %v", err)
	}
	for _, key := range []string{"features", "prediction"} {
		if _, ok := data[key]; !ok {
			t.Errorf("evidence data missing %q", key)
		}
	}

	if len(store.audits) != 1 || store.audits[0].Action != audit.ActionCreateAlert {
		t.Errorf("audit entries = %+v", store.audits)
	}
	if len(notifier.dispatched) != 1 {
		t.Errorf("notifier dispatches = %d, want 1", len(notifier.dispatched))
	}
	if len(broadcaster.broadcast) != 1 {
		t.Errorf("broadcasts = %d, want 1", len(broadcaster.broadcast))
	}
	if len(publisher.topics) != 1 || publisher.topics[0] != TopicAlertsFused {
		t.Errorf("published topics = %v", publisher.topics)
	}
}

func TestProcessNoActivation(t *testing.T) {
	store := &mockStore{}
	p, _, _, _ := newTestProcessor(t, store, nil, nil)

	event := &models.SignalEvent{
		EventID: uuid.New(),
		Source:  "seismic",
		Payload: map[string]interface{}{"magnitude": 4.2},
	}
	outcome, err := p.Process(context.Background(), event)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if outcome != "no_signal" {
		t.Errorf("outcome = %q, want no_signal", outcome)
	}
	if len(store.alerts) != 0 {
		t.Errorf("stored alerts = %d, want 0", len(store.alerts))
	}
}

func TestProcessMultiDomainEvent(t *testing.T) {
	store := &mockStore{}
	p, _, _, _ := newTestProcessor(t, store, nil, nil)

	event := &models.SignalEvent{
		EventID:    uuid.New(),
		Source:     "weather",
		LocationID: "zone-3",
		Payload: map[string]interface{}{
			"rain_1h":           30.0,
			"crime":             true,
			"incidents_last_1h": 5.0,
		},
	}
	outcome, err := p.Process(context.Background(), event)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if outcome != "alert" {
		t.Fatalf("outcome = %q, want alert", outcome)
	}

	alert := store.alerts[0]
	if len(alert.ComponentScores) != 2 {
		t.Fatalf("component scores = %v, want weather and crime", alert.ComponentScores)
	}
	if _, ok := alert.ComponentScores[models.DomainWeather]; !ok {
		t.Error("missing weather component")
	}
	if _, ok := alert.ComponentScores[models.DomainCrime]; !ok {
		t.Error("missing crime component")
	}
	if len(alert.Evidence) != 2 {
		t.Errorf("evidence entries = %d, want 2", len(alert.Evidence))
	}
}

func TestProcessSuppressedDuplicate(t *testing.T) {
	store := &mockStore{}
	p, notifier, _, _ := newTestProcessor(t, store, suppressingDedupe{}, nil)

	event := &models.SignalEvent{
		EventID:    uuid.New(),
		Source:     "weather",
		LocationID: "basin-7",
		Payload:    map[string]interface{}{"rain_1h": 30.0},
	}
	outcome, err := p.Process(context.Background(), event)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if outcome != "suppressed" {
		t.Errorf("outcome = %q, want suppressed", outcome)
	}
	if len(store.alerts) != 0 {
		t.Errorf("stored alerts = %d, want 0", len(store.alerts))
	}
	if len(notifier.dispatched) != 0 {
		t.Errorf("notifier dispatches = %d, want 0", len(notifier.dispatched))
	}
}

func TestProcessInsertFailurePropagates(t *testing.T) {
	store := &mockStore{insertErr: errors.New("db down")}
	p, _, _, _ := newTestProcessor(t, store, nil, nil)

	event := &models.SignalEvent{
		EventID: uuid.New(),
		Source:  "weather",
		Payload: map[string]interface{}{"rain_1h": 30.0},
	}
	if _, err := p.Process(context.Background(), event); err == nil {
		t.Fatal("Process() = nil, want error when persistence fails")
	}
}

func TestHandleMessageConfirmsWAL(t *testing.T) {
	w, err := wal.Open(wal.Config{})
	if err != nil {
		t.Fatalf("wal.Open() error = %v", err)
	}
	defer w.Close()

	store := &mockStore{}
	p, _, _, _ := newTestProcessor(t, store, nil, w)

	event := NewSignalEvent("weather", map[string]interface{}{"rain_1h": 30.0}, procTestTime)
	walID, err := w.Write(context.Background(), event)
	if err != nil {
		t.Fatalf("WAL write: %v", err)
	}

	msg, err := MarshalEvent(event)
	if err != nil {
		t.Fatalf("MarshalEvent() error = %v", err)
	}
	msg.Metadata.Set(MetadataWALID, walID)

	if err := p.HandleMessage(msg); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if len(store.alerts) != 1 {
		t.Fatalf("stored alerts = %d, want 1", len(store.alerts))
	}

	pending, err := w.GetPending(context.Background())
	if err != nil {
		t.Fatalf("GetPending() error = %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending WAL entries = %d, want 0 after confirm", len(pending))
	}
}

func TestHandleMessageRejectsGarbage(t *testing.T) {
	store := &mockStore{}
	p, _, _, _ := newTestProcessor(t, store, nil, nil)

	msg := message.NewMessage("not-a-uuid", []byte("{invalid"))
	if err := p.HandleMessage(msg); err == nil {
		t.Fatal("HandleMessage() = nil, want unmarshal error")
	}
}

func TestReplayPending(t *testing.T) {
	w, err := wal.Open(wal.Config{})
	if err != nil {
		t.Fatalf("wal.Open() error = %v", err)
	}
	defer w.Close()

	var walIDs []string
	for i := 0; i < 3; i++ {
		event := NewSignalEvent("weather", map[string]interface{}{"rain_1h": float64(i)}, procTestTime)
		id, err := w.Write(context.Background(), event)
		if err != nil {
			t.Fatalf("WAL write: %v", err)
		}
		walIDs = append(walIDs, id)
	}
	// One entry already confirmed; it must not be replayed.
	if err := w.Confirm(context.Background(), walIDs[1]); err != nil {
		t.Fatalf("Confirm() error = %v", err)
	}

	store := &mockStore{}
	p, _, _, _ := newTestProcessor(t, store, nil, w)

	pub := &mockRawPublisher{}
	if err := p.ReplayPending(context.Background(), w, pub); err != nil {
		t.Fatalf("ReplayPending() error = %v", err)
	}
	if len(pub.messages) != 2 {
		t.Fatalf("replayed = %d, want 2", len(pub.messages))
	}
	for _, msg := range pub.messages {
		if msg.Metadata.Get(MetadataWALID) == "" {
			t.Error("replayed message missing WAL ID metadata")
		}
	}
	for _, topic := range pub.topics {
		if topic != TopicSignalsRaw {
			t.Errorf("replay topic = %q, want %q", topic, TopicSignalsRaw)
		}
	}
}

func TestReplayPendingTracksFailedAttempts(t *testing.T) {
	w, err := wal.Open(wal.Config{})
	if err != nil {
		t.Fatalf("wal.Open() error = %v", err)
	}
	defer w.Close()

	event := NewSignalEvent("weather", map[string]interface{}{"rain_1h": 30.0}, procTestTime)
	if _, err := w.Write(context.Background(), event); err != nil {
		t.Fatalf("WAL write: %v", err)
	}

	p, _, _, _ := newTestProcessor(t, &mockStore{}, nil, w)
	pub := &mockRawPublisher{err: errors.New("broker unavailable")}

	// Each failed replay bumps the attempt counter.
	for i := 1; i <= replayMaxAttempts; i++ {
		if err := p.ReplayPending(context.Background(), w, pub); err == nil {
			t.Fatalf("ReplayPending() = nil on attempt %d, want publish error", i)
		}
		pending, err := w.GetPending(context.Background())
		if err != nil {
			t.Fatalf("GetPending() error = %v", err)
		}
		if len(pending) != 1 || pending[0].Attempts != i {
			t.Fatalf("attempts after round %d = %+v, want %d", i, pending, i)
		}
	}

	// Past the attempt limit the entry is skipped, not retried.
	pub.err = nil
	if err := p.ReplayPending(context.Background(), w, pub); err != nil {
		t.Fatalf("ReplayPending() error = %v", err)
	}
	if len(pub.messages) != 0 {
		t.Errorf("replayed = %d, want 0 for an entry past the attempt limit", len(pub.messages))
	}
}

func TestMarshalUnmarshalEventRoundTrip(t *testing.T) {
	event := NewSignalEvent("crime", map[string]interface{}{"incidents_last_1h": 3.0}, procTestTime)
	event.LocationID = "precinct-9"

	msg, err := MarshalEvent(event)
	if err != nil {
		t.Fatalf("MarshalEvent() error = %v", err)
	}
	if msg.UUID != event.EventID.String() {
		t.Errorf("message UUID = %q, want event ID", msg.UUID)
	}
	if msg.Metadata.Get(MetadataSource) != "crime" {
		t.Errorf("source metadata = %q", msg.Metadata.Get(MetadataSource))
	}

	got, err := UnmarshalEvent(msg)
	if err != nil {
		t.Fatalf("UnmarshalEvent() error = %v", err)
	}
	if got.EventID != event.EventID || got.Source != event.Source || got.LocationID != event.LocationID {
		t.Errorf("round trip mismatch: %+v", got)
	}
}
