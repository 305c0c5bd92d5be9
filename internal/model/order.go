package model

import "time"

// OrderStatus is the terminal outcome of a purchase attempt.
type OrderStatus string

const (
	OrderConfirmed OrderStatus = "CONFIRMED"
	OrderFailed    OrderStatus = "FAILED"
)

// OrderItem is a single line of an order.
type OrderItem struct {
	IngredientID     string    `json:"ingredient_id"`
	Quantity         float64   `json:"quantity"`
	PricePerUnitPaid float64   `json:"price_per_unit_paid"`
	TotalPrice       float64   `json:"total_price"`
	UseBy            time.Time `json:"use_by_date"`
}

// Order is the result of a purchase attempt. Failed purchases are recorded
// as orders too, with a zero total and a failure reason, so they stay
// observable instead of vanishing into an error response.
type Order struct {
	ID               string               `json:"order_id"`
	BusinessID       string               `json:"business_id,omitempty"`
	QuoteID          string               `json:"quote_id,omitempty"`
	Items            map[string]OrderItem `json:"items"`
	TotalCost        float64              `json:"total_cost"`
	PlacedAt         time.Time            `json:"order_placed_at"`
	ExpectedDelivery time.Time            `json:"expected_delivery"`
	Status           OrderStatus          `json:"status"`
	FailureReason    string               `json:"failure_reason,omitempty"`
}
