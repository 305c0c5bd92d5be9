// Package store persists quotes and orders. Two drivers are provided,
// SQLite (default) and Postgres, selected by configuration.
package store

import (
	"context"

	"github.com/roastline/market-cli/internal/model"
)

// OrderFilter specifies criteria for listing orders.
type OrderFilter struct {
	BusinessID string            `json:"business_id,omitempty"`
	Status     model.OrderStatus `json:"status,omitempty"`
	Limit      int               `json:"limit,omitempty"`
	Offset     int               `json:"offset,omitempty"`
}

// Store defines the durable persistence interface for the marketplace.
// Quotes are written once at creation; orders transfer ownership to the
// store immediately after the purchase path builds them.
type Store interface {
	SaveQuote(ctx context.Context, q model.Quote) error
	SaveOrder(ctx context.Context, o model.Order) error
	GetOrder(ctx context.Context, orderID string) (*model.Order, error)
	ListOrders(ctx context.Context, filter OrderFilter) ([]model.Order, error)

	Migrate(ctx context.Context) error
	Close() error
}
