package model

import "time"

// Ingredient is immutable reference data for a purchasable ingredient.
type Ingredient struct {
	ID            string        `json:"ingredient_id" yaml:"ingredient_id"`
	Name          string        `json:"name" yaml:"name"`
	Description   string        `json:"description" yaml:"description"`
	UnitOfMeasure string        `json:"unit_of_measure" yaml:"unit_of_measure"`
	Currency      string        `json:"currency" yaml:"currency"`
	BasePrice     float64       `json:"base_price" yaml:"base_price"`
	UseBy         time.Duration `json:"use_by" yaml:"use_by"`
	Stock         float64       `json:"stock" yaml:"stock"`
}

// DiscountTier grants a discount fraction once quantity reaches MinQuantity.
type DiscountTier struct {
	MinQuantity float64 `json:"min_quantity" yaml:"min_quantity"`
	Fraction    float64 `json:"fraction" yaml:"fraction"`
}

// DemandParams configures demand-based markup for an ingredient: every
// QuoteThreshold quotes inside the demand window adds HikeFraction to the
// markup.
type DemandParams struct {
	QuoteThreshold int     `json:"quote_threshold" yaml:"quote_threshold"`
	HikeFraction   float64 `json:"hike_fraction" yaml:"hike_fraction"`
}
