// Package plan owns the action-plan lifecycle: a bounded-lifetime keyed
// store and the approve/consume/expire state machine that gates plan
// execution.
package plan

import (
	"sync"
	"time"

	"github.com/codeGROOVE-dev/unblocker/pkg/types"
)

// DefaultTTL bounds a cached plan's lifetime from creation.
const DefaultTTL = 300 * time.Second

// Record is a cached action plan plus the metadata captured at analysis
// time. Records are consumable exactly once: successful consumption or
// expiry removes them.
type Record struct {
	CreatedAt    time.Time        `json:"created_at"`
	Plan         types.ActionPlan `json:"plan"`
	Title        string           `json:"title"`
	PRURL        string           `json:"pr_url"`
	StalledHours float64          `json:"stalled_hours"`
}

// Store is a thread-safe run-id keyed plan store with TTL. The zero
// value is not usable; construct with NewStore. take removes the record
// in the same critical section that reads it, so of any number of
// concurrent Consume calls on one key exactly one can win.
type Store struct {
	now     func() time.Time
	records map[string]Record
	mu      sync.Mutex
	ttl     time.Duration
}

// NewStore creates a plan store with the given TTL and clock. A nil
// clock defaults to time.Now; a non-positive TTL defaults to DefaultTTL.
func NewStore(ttl time.Duration, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		records: make(map[string]Record),
		ttl:     ttl,
		now:     now,
	}
}

// Put stores a record keyed by runID with CreatedAt set to the current
// clock. An existing record for the same runID is overwritten (last
// write wins).
func (s *Store) Put(runID string, rec Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.CreatedAt = s.now()
	s.records[runID] = rec
}

// take atomically resolves runID: a live record is removed and
// returned, an expired one is deleted and reported as expired. Read and
// delete share one critical section, so two concurrent takes of the
// same key can never both succeed.
func (s *Store) take(runID string) (rec Record, found, expired bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, found = s.records[runID]
	if !found {
		return Record{}, false, false
	}
	delete(s.records, runID)
	if s.now().Sub(rec.CreatedAt) > s.ttl {
		return Record{}, true, true
	}
	return rec, true, false
}

// restore puts a taken record back under runID, preserving its original
// CreatedAt so the TTL window is unchanged.
func (s *Store) restore(runID string, rec Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[runID] = rec
}

// Len reports the number of live records, pruning expired ones.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for id, rec := range s.records {
		if now.Sub(rec.CreatedAt) > s.ttl {
			delete(s.records, id)
		}
	}
	return len(s.records)
}
