package model

// QuoteRequest asks for a priced offer on a quantity of an ingredient.
type QuoteRequest struct {
	IngredientID string  `json:"ingredient_id"`
	Quantity     float64 `json:"quantity"`
}

// NegotiateRequest proposes a lower unit price for an open quote.
type NegotiateRequest struct {
	QuoteID         string  `json:"quote_id"`
	ProposedPerUnit float64 `json:"proposed_price_per_unit"`
	Rationale       string  `json:"rationale"`
}

// BuyRequest converts a quote (or a fresh price) into an order.
type BuyRequest struct {
	QuoteID      string   `json:"quote_id,omitempty"`
	IngredientID string   `json:"ingredient_id"`
	Quantity     float64  `json:"quantity"`
	BusinessID   string   `json:"business_id,omitempty"`
	MaxPerUnit   *float64 `json:"max_acceptable_price_per_unit,omitempty"`
}
