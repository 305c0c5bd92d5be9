package model

import "time"

// NegotiationRecord captures the single negotiation attempt allowed per
// quote id.
type NegotiationRecord struct {
	QuoteID           string    `json:"quote_id"`
	ProposedPerUnit   float64   `json:"proposed_price_per_unit"`
	Rationale         string    `json:"rationale"`
	Accepted          bool      `json:"accepted"`
	DecisionRationale string    `json:"decision_rationale"`
	DecidedAt         time.Time `json:"decided_at"`
}

// NegotiationResult is returned to the caller after a negotiation attempt.
type NegotiationResult struct {
	OriginalQuote   Quote   `json:"original_quote"`
	ProposedPerUnit float64 `json:"proposed_price_per_unit"`
	FinalPerUnit    float64 `json:"final_price_per_unit"`
	Accepted        bool    `json:"accepted"`
	Rationale       string  `json:"decision_rationale"`
	NewQuote        *Quote  `json:"new_quote,omitempty"`
}
