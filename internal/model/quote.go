package model

import (
	"math"
	"time"
)

// Quote is a priced, time-bounded offer for a quantity of an ingredient.
// Quotes are immutable; an accepted negotiation produces a successor value
// via WithUnitPrice, never an in-place mutation.
type Quote struct {
	ID             string    `json:"quote_id"`
	IngredientID   string    `json:"ingredient_id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	UnitOfMeasure  string    `json:"unit_of_measure"`
	Quantity       float64   `json:"quantity"`
	PricePerUnit   float64   `json:"price_per_unit"`
	TotalPrice     float64   `json:"total_price"`
	Currency       string    `json:"currency"`
	AvailableStock float64   `json:"available_stock"`
	DeliveryTime   int64     `json:"delivery_time"` // seconds
	UseBy          time.Time `json:"use_by_date"`
	PriceValidTil  time.Time `json:"price_valid_until"`
	CreatedAt      time.Time `json:"created_at"`
}

// Round2 rounds to two decimal places, the precision all money in the
// marketplace is carried at.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// WithUnitPrice returns a successor quote carrying the negotiated unit price
// and a recomputed total. Quote id and validity window are preserved.
func (q Quote) WithUnitPrice(perUnit float64) Quote {
	q.PricePerUnit = perUnit
	q.TotalPrice = Round2(perUnit * q.Quantity)
	return q
}

// Expired reports whether the quote's price validity has lapsed at now.
func (q Quote) Expired(now time.Time) bool {
	return !q.PriceValidTil.After(now)
}
