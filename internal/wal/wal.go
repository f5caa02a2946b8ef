// Harbinger - Real-Time Multi-Domain Signal Fusion and Early Warning
// Copyright 2026 R. Calloway (rcalloway)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rcalloway/harbinger

// Package wal provides a durable write-ahead log for ingested signal
// events. Events are persisted to BadgerDB before the broker publish,
// so a broker outage or process crash never loses an accepted event:
// unconfirmed entries are replayed on startup.
package wal

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/rcalloway/harbinger/internal/logging"
)

// ErrEntryNotFound indicates a confirm for an unknown entry ID.
var ErrEntryNotFound = errors.New("wal entry not found")

// ErrClosed indicates an operation on a closed WAL.
var ErrClosed = errors.New("wal is closed")

// WAL persists events until their publish is confirmed.
type WAL interface {
	// Write durably persists an event. The event is serialized to JSON.
	// Returns an entry ID for later confirmation.
	Write(ctx context.Context, event interface{}) (entryID string, err error)

	// Confirm marks an entry as processed; it is deleted from the log.
	Confirm(ctx context.Context, entryID string) error

	// GetPending returns all unconfirmed entries, oldest first. Used
	// for startup replay.
	GetPending(ctx context.Context) ([]*Entry, error)

	// MarkAttempt bumps an entry's attempt counter after a failed
	// replay, so entries that keep failing can be skipped.
	MarkAttempt(ctx context.Context, entryID string) error

	// Stats returns log counters.
	Stats() Stats

	// Close shuts the log down.
	Close() error
}

// Entry is one logged event with its replay metadata.
type Entry struct {
	ID        string          `json:"id"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	Attempts  int             `json:"attempts"`
}

// UnmarshalPayload deserializes the payload into v.
func (e *Entry) UnmarshalPayload(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// Stats holds log counters for metrics scraping.
type Stats struct {
	PendingCount  int64 `json:"pending_count"`
	TotalWrites   int64 `json:"total_writes"`
	TotalConfirms int64 `json:"total_confirms"`
}

// Config holds WAL settings.
type Config struct {
	// Path is the Badger directory. Empty means in-memory (tests).
	Path string

	// SyncWrites forces an fsync per write. Slower, fully durable.
	SyncWrites bool
}

// BadgerWAL implements WAL on BadgerDB.
type BadgerWAL struct {
	db *badger.DB

	totalWrites   atomic.Int64
	totalConfirms atomic.Int64

	mu     sync.RWMutex
	closed bool
}

var _ WAL = (*BadgerWAL)(nil)

// Open opens (or creates) the write-ahead log.
func Open(cfg Config) (*BadgerWAL, error) {
	opts := badger.DefaultOptions(cfg.Path).
		WithSyncWrites(cfg.SyncWrites).
		WithLogger(nil)
	if cfg.Path == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open wal: %w", err)
	}

	w := &BadgerWAL{db: db}

	pending, err := w.GetPending(context.Background())
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	logging.Info().
		Str("path", cfg.Path).
		Int("pending", len(pending)).
		Msg("Write-ahead log opened")

	return w, nil
}

// Write implements WAL.
func (w *BadgerWAL) Write(ctx context.Context, event interface{}) (string, error) {
	if err := w.checkOpen(); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("failed to marshal wal event: %w", err)
	}

	entry := Entry{
		ID:        uuid.New().String(),
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(&entry)
	if err != nil {
		return "", fmt.Errorf("failed to marshal wal entry: %w", err)
	}

	err = w.db.Update(func(txn *badger.Txn) error {
		return txn.Set(entryKey(entry.ID), data)
	})
	if err != nil {
		return "", fmt.Errorf("failed to write wal entry: %w", err)
	}

	w.totalWrites.Add(1)
	return entry.ID, nil
}

// Confirm implements WAL. Confirmed entries are deleted outright; the
// log only exists to replay unprocessed events.
func (w *BadgerWAL) Confirm(ctx context.Context, entryID string) error {
	if err := w.checkOpen(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	err := w.db.Update(func(txn *badger.Txn) error {
		key := entryKey(entryID)
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrEntryNotFound
			}
			return err
		}
		return txn.Delete(key)
	})
	if err != nil {
		if errors.Is(err, ErrEntryNotFound) {
			return err
		}
		return fmt.Errorf("failed to confirm wal entry: %w", err)
	}

	w.totalConfirms.Add(1)
	return nil
}

// GetPending implements WAL.
func (w *BadgerWAL) GetPending(ctx context.Context) ([]*Entry, error) {
	if err := w.checkOpen(); err != nil {
		return nil, err
	}

	var entries []*Entry
	err := w.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = keyPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var entry Entry
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			})
			if err != nil {
				return fmt.Errorf("failed to decode wal entry: %w", err)
			}
			entries = append(entries, &entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
	return entries, nil
}

// MarkAttempt bumps an entry's attempt counter after a failed replay.
func (w *BadgerWAL) MarkAttempt(ctx context.Context, entryID string) error {
	if err := w.checkOpen(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	return w.db.Update(func(txn *badger.Txn) error {
		key := entryKey(entryID)
		item, err := txn.Get(key)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrEntryNotFound
			}
			return err
		}
		var entry Entry
		err = item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		})
		if err != nil {
			return err
		}
		entry.Attempts++
		data, err := json.Marshal(&entry)
		if err != nil {
			return err
		}
		return txn.Set(key, data)
	})
}

// Stats implements WAL.
func (w *BadgerWAL) Stats() Stats {
	pending := int64(0)
	if w.checkOpen() == nil {
		_ = w.db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = keyPrefix
			opts.PrefetchValues = false
			it := txn.NewIterator(opts)
			defer it.Close()
			for it.Rewind(); it.Valid(); it.Next() {
				pending++
			}
			return nil
		})
	}
	return Stats{
		PendingCount:  pending,
		TotalWrites:   w.totalWrites.Load(),
		TotalConfirms: w.totalConfirms.Load(),
	}
}

// RunGC reclaims value log space from confirmed entries. Badger only
// rewrites a file when at least the given ratio of it is stale, so the
// loop runs until no file qualifies. No-op for in-memory logs.
func (w *BadgerWAL) RunGC(gcRatio float64) error {
	if err := w.checkOpen(); err != nil {
		return err
	}
	if gcRatio <= 0 {
		gcRatio = 0.5
	}
	for {
		err := w.db.RunValueLogGC(gcRatio)
		if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrGCInMemoryMode) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("wal gc: %w", err)
		}
	}
}

// Close implements WAL. Safe to call more than once.
func (w *BadgerWAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	return w.db.Close()
}

func (w *BadgerWAL) checkOpen() error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return ErrClosed
	}
	return nil
}

var keyPrefix = []byte("wal:")

func entryKey(id string) []byte {
	return append(append([]byte{}, keyPrefix...), id...)
}
