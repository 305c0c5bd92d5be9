// Package negotiation decides whether a customer's counter-offer on an open
// quote is accepted, preferring an AI decision client and falling back to a
// deterministic rule when that client is unavailable or fails.
package negotiation

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/roastline/market-cli/internal/catalog"
	"github.com/roastline/market-cli/internal/model"
	"github.com/roastline/market-cli/internal/quote"
	"github.com/roastline/market-cli/internal/resilience"
)

const (
	// MaxFallbackDiscount is the largest fraction below the quoted price the
	// deterministic rule will accept.
	MaxFallbackDiscount = 0.10

	maxRationaleLen = 1000
)

// DecisionInput is the context handed to the AI decision client.
type DecisionInput struct {
	IngredientID    string
	IngredientName  string
	BasePrice       float64
	QuotedPerUnit   float64
	ProposedPerUnit float64
	Rationale       string
	StockLevel      float64
	Currency        string
}

// Decision is the structured verdict on a counter-offer.
type Decision struct {
	Accepted  bool
	Rationale string
}

// Decider is the AI decision client. Implementations must return an error
// for malformed output so the deterministic fallback can take over.
type Decider interface {
	Decide(ctx context.Context, in DecisionInput) (Decision, error)
}

// Engine runs the negotiation state machine for quotes.
type Engine struct {
	Catalog   *catalog.Catalog
	Lifecycle *quote.Lifecycle
	Decider   Decider

	// Timeout bounds the AI decision call.
	Timeout time.Duration

	// Retry governs transient AI failures before the fallback engages.
	Retry resilience.RetryConfig

	// Breaker fails the AI path fast after repeated failures.
	Breaker *resilience.Breaker
}

// NewEngine builds an engine with standard timeout, retry and breaker
// settings. decider may be nil; every decision then uses the fallback rule.
func NewEngine(c *catalog.Catalog, lc *quote.Lifecycle, decider Decider) *Engine {
	return &Engine{
		Catalog:   c,
		Lifecycle: lc,
		Decider:   decider,
		Timeout:   10 * time.Second,
		Retry:     resilience.DefaultRetryConfig(),
		Breaker:   resilience.NewBreaker(resilience.BreakerConfig{}),
	}
}

// Negotiate runs the one-time negotiation for a quote. The proposed price
// must be positive and strictly below the quoted price; the rationale must
// be 1 to 1000 characters. The AI decision call runs with no lock held;
// the quote's state is re-validated at commit time.
func (e *Engine) Negotiate(ctx context.Context, quoteID string, proposed float64, rationale string, now time.Time) (model.NegotiationResult, error) {
	if n := utf8.RuneCountInString(rationale); n == 0 || n > maxRationaleLen {
		return model.NegotiationResult{}, eris.Wrapf(model.ErrInvalidProposal, "rationale must be 1-%d characters", maxRationaleLen)
	}
	if proposed <= 0 {
		return model.NegotiationResult{}, eris.Wrap(model.ErrInvalidProposal, "proposed price must be positive")
	}

	q, err := e.Lifecycle.OpenForNegotiation(quoteID, now)
	if err != nil {
		return model.NegotiationResult{}, err
	}
	if proposed >= q.PricePerUnit {
		return model.NegotiationResult{}, eris.Wrapf(model.ErrInvalidProposal,
			"proposed price %.2f is not below the quoted price %.2f", proposed, q.PricePerUnit)
	}

	ing, err := e.Catalog.Get(q.IngredientID)
	if err != nil {
		return model.NegotiationResult{}, err
	}

	decision := e.decide(ctx, DecisionInput{
		IngredientID:    ing.ID,
		IngredientName:  ing.Name,
		BasePrice:       ing.BasePrice,
		QuotedPerUnit:   q.PricePerUnit,
		ProposedPerUnit: proposed,
		Rationale:       rationale,
		StockLevel:      q.AvailableStock,
		Currency:        q.Currency,
	})

	rec := model.NegotiationRecord{
		QuoteID:           quoteID,
		ProposedPerUnit:   proposed,
		Rationale:         rationale,
		Accepted:          decision.Accepted,
		DecisionRationale: decision.Rationale,
		DecidedAt:         now,
	}

	result := model.NegotiationResult{
		OriginalQuote:   q,
		ProposedPerUnit: proposed,
		FinalPerUnit:    q.PricePerUnit,
		Accepted:        decision.Accepted,
		Rationale:       decision.Rationale,
	}

	var successor *model.Quote
	if decision.Accepted {
		s := q.WithUnitPrice(proposed)
		successor = &s
		result.FinalPerUnit = proposed
		result.NewQuote = successor
	}

	// Commit re-checks OPEN and unexpired under the quote's lock; a racing
	// negotiation or expiry between the read above and here loses cleanly.
	if err := e.Lifecycle.CommitNegotiation(rec, successor, now); err != nil {
		return model.NegotiationResult{}, err
	}

	zap.L().Info("negotiation decided",
		zap.String("quote_id", quoteID),
		zap.Float64("proposed", proposed),
		zap.Float64("final", result.FinalPerUnit),
		zap.Bool("accepted", decision.Accepted),
	)
	return result, nil
}

// decide asks the AI client for a verdict and falls back to the
// deterministic rule on any failure. AI errors are never surfaced: the
// negotiation always completes with a decision.
func (e *Engine) decide(ctx context.Context, in DecisionInput) Decision {
	if e.Decider == nil {
		return Fallback(in)
	}
	if e.Breaker != nil {
		if err := e.Breaker.Allow(); err != nil {
			zap.L().Warn("decision client circuit open, using fallback rule",
				zap.String("ingredient_id", in.IngredientID))
			return Fallback(in)
		}
	}

	d, err := resilience.DoVal(ctx, e.Retry, "negotiation decision", func(ctx context.Context) (Decision, error) {
		callCtx, cancel := context.WithTimeout(ctx, e.Timeout)
		defer cancel()
		return e.Decider.Decide(callCtx, in)
	})
	if e.Breaker != nil {
		e.Breaker.Record(err)
	}
	if err != nil {
		zap.L().Warn("decision client failed, using fallback rule",
			zap.String("ingredient_id", in.IngredientID),
			zap.Error(err),
		)
		return Fallback(in)
	}
	return d
}

// Fallback is the deterministic decision rule: accept iff the proposal
// covers the base price and concedes at most MaxFallbackDiscount of the
// quoted price. It is a standalone code path, not an error handler around
// the AI call.
func Fallback(in DecisionInput) Decision {
	switch {
	case in.ProposedPerUnit < in.BasePrice:
		return Decision{
			Accepted: false,
			Rationale: fmt.Sprintf("proposed price %.2f is below the base price %.2f (deterministic evaluation)",
				in.ProposedPerUnit, in.BasePrice),
		}
	case in.ProposedPerUnit < in.QuotedPerUnit*(1-MaxFallbackDiscount):
		return Decision{
			Accepted: false,
			Rationale: fmt.Sprintf("discount exceeds %.0f%% of the quoted price %.2f (deterministic evaluation)",
				MaxFallbackDiscount*100, in.QuotedPerUnit),
		}
	default:
		return Decision{
			Accepted: true,
			Rationale: fmt.Sprintf("proposed price %.2f covers the base price and is within %.0f%% of the quoted price (deterministic evaluation)",
				in.ProposedPerUnit, MaxFallbackDiscount*100),
		}
	}
}
