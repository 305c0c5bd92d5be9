// Package demand tracks quote events per ingredient over a sliding window
// to drive demand-based price markups.
package demand

import (
	"sync"
	"time"
)

// Tracker records timestamped quote events per ingredient and counts how
// many fall inside a trailing window. Entries older than the window are
// pruned lazily on both record and count; there is no background sweep.
//
// Each ingredient has its own lock, so tracking different ingredients never
// contends. A Record that returns before a CountWithin call on the same
// ingredient is always reflected in that count.
type Tracker struct {
	mu     sync.Mutex // guards the series map itself
	series map[string]*series
}

type series struct {
	mu     sync.Mutex
	events []time.Time
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{series: make(map[string]*series)}
}

func (t *Tracker) forIngredient(id string) *series {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.series[id]
	if !ok {
		s = &series{}
		t.series[id] = s
	}
	return s
}

// Record appends a quote event for the ingredient at ts, pruning entries
// that have already fallen out of the window relative to ts.
func (t *Tracker) Record(ingredientID string, ts time.Time, window time.Duration) {
	s := t.forIngredient(ingredientID)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prune(ts.Add(-window))
	s.events = append(s.events, ts)
}

// CountWithin returns how many events for the ingredient have a timestamp
// strictly after now-window. Older entries are discarded.
func (t *Tracker) CountWithin(ingredientID string, now time.Time, window time.Duration) int {
	s := t.forIngredient(ingredientID)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prune(now.Add(-window))
	return len(s.events)
}

// prune drops events at or before cutoff. Events are appended in call order,
// which is non-decreasing for a single ingredient, so a prefix scan suffices.
func (s *series) prune(cutoff time.Time) {
	i := 0
	for i < len(s.events) && !s.events[i].After(cutoff) {
		i++
	}
	if i > 0 {
		s.events = append(s.events[:0], s.events[i:]...)
	}
}
