package negotiation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roastline/market-cli/internal/catalog"
	"github.com/roastline/market-cli/internal/model"
	"github.com/roastline/market-cli/internal/quote"
	"github.com/roastline/market-cli/internal/resilience"
)

var now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// stubDecider returns a fixed decision or error.
type stubDecider struct {
	mu       sync.Mutex
	decision Decision
	err      error
	calls    int
	gotInput DecisionInput
}

func (s *stubDecider) Decide(ctx context.Context, in DecisionInput) (Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.gotInput = in
	return s.decision, s.err
}

func quoteFor(t *testing.T, lc *quote.Lifecycle, id string, perUnit float64) model.Quote {
	t.Helper()
	q := model.Quote{
		ID:             id,
		IngredientID:   "espresso_beans",
		Name:           "Premium Espresso Coffee Beans",
		Quantity:       10,
		PricePerUnit:   perUnit,
		TotalPrice:     model.Round2(perUnit * 10),
		Currency:       "USD",
		AvailableStock: 1000,
		PriceValidTil:  now.Add(24 * time.Hour),
		CreatedAt:      now,
	}
	lc.Add(q)
	return q
}

func newEngine(t *testing.T, d Decider) (*Engine, *quote.Lifecycle) {
	t.Helper()
	lc := quote.NewLifecycle()
	e := NewEngine(catalog.Default(), lc, d)
	e.Retry = resilience.RetryConfig{MaxAttempts: 1}
	return e, lc
}

func TestNegotiateAcceptedViaDecider(t *testing.T) {
	t.Parallel()
	d := &stubDecider{decision: Decision{Accepted: true, Rationale: "loyal customer, volume justifies it"}}
	e, lc := newEngine(t, d)
	quoteFor(t, lc, "q-1", 14.00)

	res, err := e.Negotiate(context.Background(), "q-1", 13.00, "long-standing partnership", now)
	require.NoError(t, err)

	assert.True(t, res.Accepted)
	assert.Equal(t, 13.00, res.FinalPerUnit)
	require.NotNil(t, res.NewQuote)
	assert.Equal(t, "q-1", res.NewQuote.ID)
	assert.InDelta(t, 130.00, res.NewQuote.TotalPrice, 1e-9)
	assert.Equal(t, 14.00, res.OriginalQuote.PricePerUnit)

	// Decider saw the full pricing context.
	assert.Equal(t, 12.50, d.gotInput.BasePrice)
	assert.Equal(t, 14.00, d.gotInput.QuotedPerUnit)
	assert.Equal(t, 13.00, d.gotInput.ProposedPerUnit)

	// Lifecycle now serves the successor.
	got, err := lc.Get("q-1", now)
	require.NoError(t, err)
	assert.Equal(t, 13.00, got.PricePerUnit)
}

func TestNegotiateRejectedViaDecider(t *testing.T) {
	t.Parallel()
	d := &stubDecider{decision: Decision{Accepted: false, Rationale: "margin too thin"}}
	e, lc := newEngine(t, d)
	quoteFor(t, lc, "q-1", 14.00)

	res, err := e.Negotiate(context.Background(), "q-1", 13.00, "please", now)
	require.NoError(t, err)

	assert.False(t, res.Accepted)
	assert.Equal(t, 14.00, res.FinalPerUnit)
	assert.Nil(t, res.NewQuote)

	// Quote remains open and purchasable at the original price.
	got, err := lc.Get("q-1", now)
	require.NoError(t, err)
	assert.Equal(t, 14.00, got.PricePerUnit)
}

func TestNegotiateFallbackOnDeciderError(t *testing.T) {
	t.Parallel()
	d := &stubDecider{err: errors.New("model overloaded")}
	e, lc := newEngine(t, d)

	// Quoted 14.00, base 12.50: proposing 13.00 is within 10% and above base.
	quoteFor(t, lc, "q-1", 14.00)

	res, err := e.Negotiate(context.Background(), "q-1", 13.00, "bulk buyer", now)
	require.NoError(t, err, "AI failure must never surface")
	assert.True(t, res.Accepted)
	assert.Contains(t, res.Rationale, "deterministic evaluation")
}

func TestNegotiateNilDeciderUsesFallback(t *testing.T) {
	t.Parallel()
	e, lc := newEngine(t, nil)
	quoteFor(t, lc, "q-1", 14.00)

	res, err := e.Negotiate(context.Background(), "q-1", 12.00, "too pricy", now)
	require.NoError(t, err)
	assert.False(t, res.Accepted, "12.00 is below base 12.50")
}

func TestNegotiateInvalidProposals(t *testing.T) {
	t.Parallel()
	e, lc := newEngine(t, nil)
	quoteFor(t, lc, "q-1", 14.00)

	tests := []struct {
		name      string
		proposed  float64
		rationale string
	}{
		{"zero price", 0, "why not"},
		{"negative price", -3, "why not"},
		{"equal to quoted", 14.00, "same"},
		{"above quoted", 15.00, "higher?!"},
		{"empty rationale", 13.00, ""},
		{"rationale too long", 13.00, strings.Repeat("x", 1001)},
		{"multibyte rationale too long", 13.00, strings.Repeat("ä", 1001)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Negotiate(context.Background(), "q-1", tt.proposed, tt.rationale, now)
			assert.True(t, errors.Is(err, model.ErrInvalidProposal), "got %v", err)
		})
	}
}

func TestNegotiateRationaleLimitCountsRunes(t *testing.T) {
	t.Parallel()
	e, lc := newEngine(t, nil)
	quoteFor(t, lc, "q-1", 14.00)

	// 600 two-byte runes exceed 1000 bytes but stay within the limit.
	rationale := strings.Repeat("ö", 600)
	_, err := e.Negotiate(context.Background(), "q-1", 9.00, rationale, now)
	assert.False(t, errors.Is(err, model.ErrInvalidProposal), "got %v", err)
}

func TestNegotiatePreconditionsBeforeDecision(t *testing.T) {
	t.Parallel()
	d := &stubDecider{decision: Decision{Accepted: true}}
	e, lc := newEngine(t, d)

	_, err := e.Negotiate(context.Background(), "missing", 10, "hello", now)
	assert.True(t, errors.Is(err, model.ErrQuoteNotFound))

	quoteFor(t, lc, "q-exp", 14.00)
	_, err = e.Negotiate(context.Background(), "q-exp", 10, "hello", now.Add(25*time.Hour))
	assert.True(t, errors.Is(err, model.ErrQuoteExpired))

	assert.Equal(t, 0, d.calls, "decision client must not run when preconditions fail")
}

func TestNegotiateOnlyOnce(t *testing.T) {
	t.Parallel()
	d := &stubDecider{decision: Decision{Accepted: false, Rationale: "no"}}
	e, lc := newEngine(t, d)
	quoteFor(t, lc, "q-1", 14.00)

	_, err := e.Negotiate(context.Background(), "q-1", 13.00, "first", now)
	require.NoError(t, err)

	// Even after a rejection, a second attempt is forbidden.
	_, err = e.Negotiate(context.Background(), "q-1", 13.50, "second", now)
	assert.True(t, errors.Is(err, model.ErrAlreadyNegotiated))
}

func TestNegotiateBreakerOpenSkipsDecider(t *testing.T) {
	t.Parallel()
	d := &stubDecider{decision: Decision{Accepted: true, Rationale: "sure"}}
	e, lc := newEngine(t, d)
	e.Breaker = resilience.NewBreaker(resilience.BreakerConfig{FailureThreshold: 1, ResetTimeout: time.Hour})
	e.Breaker.Record(errors.New("down")) // trip it

	quoteFor(t, lc, "q-1", 14.00)
	res, err := e.Negotiate(context.Background(), "q-1", 13.00, "bulk", now)
	require.NoError(t, err)
	assert.Equal(t, 0, d.calls)
	assert.Contains(t, res.Rationale, "deterministic evaluation")
}

func TestConcurrentNegotiationsOneRecord(t *testing.T) {
	t.Parallel()
	d := &stubDecider{decision: Decision{Accepted: true, Rationale: "ok"}}
	e, lc := newEngine(t, d)
	quoteFor(t, lc, "q-1", 14.00)

	const n = 20
	var wg sync.WaitGroup
	succeeded := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := e.Negotiate(context.Background(), "q-1", 13.00, "race", now); err == nil {
				succeeded <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(succeeded)

	assert.Len(t, succeeded, 1, "exactly one concurrent negotiation may succeed")
	_, ok := lc.Record("q-1")
	assert.True(t, ok)
}

func TestFallbackRule(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		in       DecisionInput
		accepted bool
		contains string
	}{
		{
			name:     "below base price rejected",
			in:       DecisionInput{BasePrice: 15.00, QuotedPerUnit: 17.50, ProposedPerUnit: 10.00},
			accepted: false,
			contains: "below the base price",
		},
		{
			name:     "at ninety percent of quoted accepted",
			in:       DecisionInput{BasePrice: 15.00, QuotedPerUnit: 17.50, ProposedPerUnit: 15.75},
			accepted: true,
		},
		{
			name:     "deep discount rejected",
			in:       DecisionInput{BasePrice: 10.00, QuotedPerUnit: 17.50, ProposedPerUnit: 12.00},
			accepted: false,
			contains: "discount exceeds",
		},
		{
			name:     "covers base and within ten percent",
			in:       DecisionInput{BasePrice: 12.50, QuotedPerUnit: 14.00, ProposedPerUnit: 13.00},
			accepted: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d := Fallback(tt.in)
			assert.Equal(t, tt.accepted, d.Accepted)
			if tt.contains != "" {
				assert.Contains(t, d.Rationale, tt.contains)
			}
		})
	}
}
