// Package quote owns quote creation and the quote lifecycle: open quotes,
// negotiated quotes, one-time negotiation, lazy expiration, and removal on
// purchase.
package quote

import (
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/roastline/market-cli/internal/model"
)

// SweepThreshold is how large the combined stores may grow before an
// opportunistic bulk sweep of expired quotes runs.
const SweepThreshold = 1000

// Lifecycle manages the in-memory quote stores. Each quote id has its own
// lock, so transitions on different quotes never block each other, while any
// two transitions on the same quote are strictly serialized.
//
// A quote is OPEN from creation. An accepted negotiation moves its successor
// into the negotiated store; a rejected one leaves it OPEN but records the
// attempt, so a second negotiation always fails. Purchase and expiration
// remove the quote from every store. Expiration is evaluated lazily on
// access.
type Lifecycle struct {
	mu         sync.Mutex
	locks      map[string]*sync.Mutex
	open       map[string]model.Quote
	negotiated map[string]model.Quote
	records    map[string]model.NegotiationRecord
}

// NewLifecycle returns an empty manager.
func NewLifecycle() *Lifecycle {
	return &Lifecycle{
		locks:      make(map[string]*sync.Mutex),
		open:       make(map[string]model.Quote),
		negotiated: make(map[string]model.Quote),
		records:    make(map[string]model.NegotiationRecord),
	}
}

func (l *Lifecycle) lockFor(quoteID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lk, ok := l.locks[quoteID]
	if !ok {
		lk = &sync.Mutex{}
		l.locks[quoteID] = lk
	}
	return lk
}

// Add stores a freshly created quote as OPEN.
func (l *Lifecycle) Add(q model.Quote) {
	lk := l.lockFor(q.ID)
	lk.Lock()
	defer lk.Unlock()

	l.mu.Lock()
	l.open[q.ID] = q
	l.mu.Unlock()
}

// Get returns the current quote value for the id, whether open or
// negotiated. Expired quotes are evicted and reported as ErrQuoteExpired;
// unknown ids as ErrQuoteNotFound.
func (l *Lifecycle) Get(quoteID string, now time.Time) (model.Quote, error) {
	lk := l.lockFor(quoteID)
	lk.Lock()
	defer lk.Unlock()
	return l.getLocked(quoteID, now)
}

func (l *Lifecycle) getLocked(quoteID string, now time.Time) (model.Quote, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	q, ok := l.negotiated[quoteID]
	if !ok {
		q, ok = l.open[quoteID]
	}
	if !ok {
		return model.Quote{}, eris.Wrapf(model.ErrQuoteNotFound, "quote %s", quoteID)
	}
	if q.Expired(now) {
		delete(l.open, quoteID)
		delete(l.negotiated, quoteID)
		return model.Quote{}, eris.Wrapf(model.ErrQuoteExpired, "quote %s", quoteID)
	}
	return q, nil
}

// OpenForNegotiation returns the quote if it is still eligible for a
// negotiation attempt: present, unexpired, and never negotiated before.
func (l *Lifecycle) OpenForNegotiation(quoteID string, now time.Time) (model.Quote, error) {
	lk := l.lockFor(quoteID)
	lk.Lock()
	defer lk.Unlock()
	return l.openForNegotiationLocked(quoteID, now)
}

func (l *Lifecycle) openForNegotiationLocked(quoteID string, now time.Time) (model.Quote, error) {
	l.mu.Lock()
	_, hasRecord := l.records[quoteID]
	l.mu.Unlock()
	if hasRecord {
		return model.Quote{}, eris.Wrapf(model.ErrAlreadyNegotiated, "quote %s", quoteID)
	}
	return l.getLocked(quoteID, now)
}

// CommitNegotiation records the decision for a quote, re-validating that it
// is still open and unexpired under the quote's lock; callers run the
// decision step without any lock held, so this is the check-then-act commit
// point. An accepted decision moves the successor quote into the negotiated
// store.
func (l *Lifecycle) CommitNegotiation(rec model.NegotiationRecord, successor *model.Quote, now time.Time) error {
	lk := l.lockFor(rec.QuoteID)
	lk.Lock()
	defer lk.Unlock()

	if _, err := l.openForNegotiationLocked(rec.QuoteID, now); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.records[rec.QuoteID] = rec
	if rec.Accepted && successor != nil {
		delete(l.open, rec.QuoteID)
		l.negotiated[rec.QuoteID] = *successor
	}
	return nil
}

// Consume atomically claims a quote for purchase: the quote is validated
// and removed from every store under the quote's lock, so two concurrent
// purchases of the same id cannot both claim it. A caller whose purchase
// fails after the claim puts the quote back with Restore.
func (l *Lifecycle) Consume(quoteID string, now time.Time) (model.Quote, error) {
	lk := l.lockFor(quoteID)
	lk.Lock()
	defer lk.Unlock()

	q, err := l.getLocked(quoteID, now)
	if err != nil {
		return model.Quote{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.open, quoteID)
	delete(l.negotiated, quoteID)
	return q, nil
}

// Restore puts a consumed quote back after a failed purchase. A quote whose
// negotiation was accepted returns to the negotiated store, everything else
// to the open store.
func (l *Lifecycle) Restore(q model.Quote) {
	lk := l.lockFor(q.ID)
	lk.Lock()
	defer lk.Unlock()

	l.mu.Lock()
	defer l.mu.Unlock()
	if rec, ok := l.records[q.ID]; ok && rec.Accepted {
		l.negotiated[q.ID] = q
		return
	}
	l.open[q.ID] = q
}

// Record returns the negotiation record for a quote id, if one exists.
func (l *Lifecycle) Record(quoteID string) (model.NegotiationRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[quoteID]
	return rec, ok
}

// Remove deletes the quote from every store; called on purchase.
func (l *Lifecycle) Remove(quoteID string) {
	lk := l.lockFor(quoteID)
	lk.Lock()
	defer lk.Unlock()

	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.open, quoteID)
	delete(l.negotiated, quoteID)
	delete(l.locks, quoteID)
}

// Size reports how many quotes are held across both stores.
func (l *Lifecycle) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.open) + len(l.negotiated)
}

// Sweep evicts every expired quote from both stores and returns how many
// were dropped. Lazy per-access eviction keeps correctness; Sweep bounds
// memory when quote volume spikes.
func (l *Lifecycle) Sweep(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for id, q := range l.open {
		if q.Expired(now) {
			delete(l.open, id)
			n++
		}
	}
	for id, q := range l.negotiated {
		if q.Expired(now) {
			delete(l.negotiated, id)
			n++
		}
	}
	return n
}
