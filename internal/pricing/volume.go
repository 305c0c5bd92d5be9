package pricing

import (
	"time"

	"github.com/roastline/market-cli/internal/model"
)

// DiscountTable resolves tiered volume discounts. Tiers are ordered by
// ascending minimum quantity; the highest qualifying tier wins, discounts
// are not cumulative.
type DiscountTable struct {
	tiers map[string][]model.DiscountTier
}

// NewDiscountTable builds a table from per-ingredient tier lists.
func NewDiscountTable(tiers map[string][]model.DiscountTier) *DiscountTable {
	return &DiscountTable{tiers: tiers}
}

// Fraction returns the discount fraction for the quantity, or 0 when the
// ingredient has no table or no tier is reached.
func (t *DiscountTable) Fraction(ingredientID string, quantity float64) float64 {
	applied := 0.0
	for _, tier := range t.tiers[ingredientID] {
		if quantity < tier.MinQuantity {
			break
		}
		applied = tier.Fraction
	}
	return applied
}

// VolumeDiscount applies the tiered discount on top of the base strategy.
type VolumeDiscount struct {
	Base  Strategy
	Table *DiscountTable
}

// NewVolumeDiscount wraps base with the discount table.
func NewVolumeDiscount(base Strategy, table *DiscountTable) *VolumeDiscount {
	return &VolumeDiscount{Base: base, Table: table}
}

func (v *VolumeDiscount) Price(ingredientID string, quantity float64, now time.Time) (PriceInfo, error) {
	info, err := v.Base.Price(ingredientID, quantity, now)
	if err != nil {
		return PriceInfo{}, err
	}
	fraction := v.Table.Fraction(ingredientID, quantity)
	info.PerUnit = model.Round2(info.PerUnit * (1 - fraction))
	return info, nil
}
