// Package ledger keeps the append-only record of successful sends. It
// is the source of truth for every rate-limit computation: counts are
// derived from it on demand instead of being tracked separately, so
// they stay consistent with the durable file even across out-of-band
// edits.
package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// Record is one ledger entry. Records are immutable once appended.
//
// The recruiter_id JSON key is kept for compatibility with existing
// sent_log.json files.
type Record struct {
	Timestamp time.Time `json:"timestamp"`
	ContactID string    `json:"recruiter_id"`
	Email     string    `json:"email"`
	Template  string    `json:"template"`
	Subject   string    `json:"subject"`
}

// snapshot is the on-disk document. The whole document is rewritten on
// every append and on clear.
type snapshot struct {
	SentEmails []Record `json:"sent_emails"`
}

// PersistenceError reports a failure to flush the ledger to disk. The
// in-memory sequence still reflects the operation that triggered it.
type PersistenceError struct {
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to persist ledger to %s: %v", e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Ledger is an append-only ordered sequence of send records backed by
// a JSON snapshot file. It loads lazily on first access.
type Ledger struct {
	path string

	mu      sync.Mutex
	records []Record
	loaded  bool
}

// New creates a ledger backed by <dataDir>/sent_log.json.
func New(dataDir string) *Ledger {
	return &Ledger{path: filepath.Join(dataDir, "sent_log.json")}
}

// ensureLoaded loads the snapshot file on first access. A missing or
// unreadable file yields an empty ledger.
func (l *Ledger) ensureLoaded() {
	if l.loaded {
		return
	}
	l.records = nil

	data, err := os.ReadFile(l.path)
	if err == nil {
		var snap snapshot
		if err := json.Unmarshal(data, &snap); err == nil {
			l.records = snap.SentEmails
		}
	}

	l.loaded = true
}

// persist rewrites the whole snapshot file.
func (l *Ledger) persist() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return &PersistenceError{Path: l.path, Err: err}
	}

	data, err := json.MarshalIndent(snapshot{SentEmails: l.records}, "", "  ")
	if err != nil {
		return &PersistenceError{Path: l.path, Err: err}
	}

	if err := os.WriteFile(l.path, data, 0o600); err != nil {
		return &PersistenceError{Path: l.path, Err: err}
	}

	return nil
}

// Append adds a record to the end of the sequence and flushes the full
// snapshot. The in-memory sequence reflects the append even when the
// flush fails (at-least-once: a crash between append and flush may
// lose the record, never duplicate it).
func (l *Ledger) Append(rec Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.ensureLoaded()
	l.records = append(l.records, rec)
	return l.persist()
}

// CountSince returns the number of records with timestamp strictly
// after the given instant.
func (l *Ledger) CountSince(t time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.ensureLoaded()
	count := 0
	for _, rec := range l.records {
		if rec.Timestamp.After(t) {
			count++
		}
	}
	return count
}

// CountOnDate returns the number of records whose timestamp falls on
// the given calendar date in local time.
func (l *Ledger) CountOnDate(date time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.ensureLoaded()
	y, m, d := date.Local().Date()
	count := 0
	for _, rec := range l.records {
		ry, rm, rd := rec.Timestamp.Local().Date()
		if ry == y && rm == m && rd == d {
			count++
		}
	}
	return count
}

// OldestSince returns the earliest record timestamp strictly after the
// given instant, reporting false when the window is empty.
func (l *Ledger) OldestSince(t time.Time) (time.Time, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.ensureLoaded()
	var oldest time.Time
	found := false
	for _, rec := range l.records {
		if !rec.Timestamp.After(t) {
			continue
		}
		if !found || rec.Timestamp.Before(oldest) {
			oldest = rec.Timestamp
			found = true
		}
	}
	return oldest, found
}

// Recent returns up to limit records ordered by timestamp descending.
func (l *Ledger) Recent(limit int) []Record {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.ensureLoaded()
	out := make([]Record, len(l.records))
	copy(out, l.records)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if limit >= 0 && limit < len(out) {
		out = out[:limit]
	}
	return out
}

// Total returns the lifetime record count.
func (l *Ledger) Total() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.ensureLoaded()
	return len(l.records)
}

// Clear empties the sequence and persists the empty state.
func (l *Ledger) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.records = nil
	l.loaded = true
	return l.persist()
}

// Reload discards the in-memory sequence; the next access re-reads the
// snapshot file.
func (l *Ledger) Reload() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loaded = false
}
