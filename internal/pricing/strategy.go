// Package pricing implements the composable pricing-strategy pipeline:
// base price, volume discount, demand-based markup. Strategies compose by
// explicit delegation so the order (discount before markup) is visible at
// the call site.
package pricing

import (
	"time"

	"github.com/roastline/market-cli/internal/catalog"
	"github.com/roastline/market-cli/internal/model"
)

// DefaultValidity is how long a computed price stays quotable.
const DefaultValidity = 24 * time.Hour

// PriceInfo is the result of a pricing call.
type PriceInfo struct {
	PerUnit    float64
	ValidUntil time.Time
}

// Strategy produces a price per unit for (ingredient, quantity) at a point
// in time.
type Strategy interface {
	Price(ingredientID string, quantity float64, now time.Time) (PriceInfo, error)
}

// Default prices every quantity at the ingredient's base price.
type Default struct {
	Catalog  *catalog.Catalog
	Validity time.Duration
}

// NewDefault returns the base-price strategy with the standard validity.
func NewDefault(c *catalog.Catalog) *Default {
	return &Default{Catalog: c, Validity: DefaultValidity}
}

func (d *Default) Price(ingredientID string, quantity float64, now time.Time) (PriceInfo, error) {
	ing, err := d.Catalog.Get(ingredientID)
	if err != nil {
		return PriceInfo{}, err
	}
	return PriceInfo{
		PerUnit:    model.Round2(ing.BasePrice),
		ValidUntil: now.Add(d.Validity),
	}, nil
}
