// Package catalog holds ingredient reference data plus the per-ingredient
// pricing configuration: volume discount tiers and demand markup parameters.
package catalog

import (
	"os"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/roastline/market-cli/internal/model"
)

const (
	oneDay   = 24 * time.Hour
	oneWeek  = 7 * oneDay
	oneMonth = 4 * oneWeek

	unlimitedStock = 100000
)

// Catalog is the immutable ingredient reference data for the marketplace.
type Catalog struct {
	Ingredients map[string]model.Ingredient     `yaml:"ingredients"`
	Tiers       map[string][]model.DiscountTier `yaml:"volume_discount_tiers"`
	Demand      map[string]model.DemandParams   `yaml:"demand_price_hikes"`
}

// Get returns the ingredient definition, or ErrIngredientNotFound.
func (c *Catalog) Get(id string) (model.Ingredient, error) {
	ing, ok := c.Ingredients[id]
	if !ok {
		return model.Ingredient{}, eris.Wrapf(model.ErrIngredientNotFound, "catalog: %s", id)
	}
	return ing, nil
}

// IDs returns all ingredient ids in stable order.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.Ingredients))
	for id := range c.Ingredients {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Load reads a catalog YAML file. An empty path returns the built-in catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: read %s", path)
	}
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, eris.Wrapf(err, "catalog: parse %s", path)
	}
	for id, tiers := range c.Tiers {
		sort.Slice(tiers, func(i, j int) bool { return tiers[i].MinQuantity < tiers[j].MinQuantity })
		c.Tiers[id] = tiers
	}
	return &c, nil
}

// Default returns the built-in ingredient catalog.
func Default() *Catalog {
	return &Catalog{
		Ingredients: map[string]model.Ingredient{
			"espresso_beans": {
				ID:            "espresso_beans",
				Name:          "Premium Espresso Coffee Beans",
				Description:   "High-quality arabica beans specifically roasted for espresso, with rich crema and balanced flavor profile.",
				UnitOfMeasure: "kg",
				Currency:      "USD",
				BasePrice:     12.50,
				UseBy:         oneWeek,
				Stock:         unlimitedStock,
			},
			"dark_roast_beans": {
				ID:            "dark_roast_beans",
				Name:          "Standard Robusta Dark Roast Coffee Beans",
				Description:   "Basic dark roast robusta beans, suitable for general use with bold, full-bodied flavor.",
				UnitOfMeasure: "kg",
				Currency:      "USD",
				BasePrice:     8.00,
				UseBy:         oneWeek,
				Stock:         unlimitedStock,
			},
			"light_roast_beans": {
				ID:            "light_roast_beans",
				Name:          "Premium Robusta Light Roast Coffee Beans",
				Description:   "Premium light roast robusta beans, suitable for premium use with bright, acidic notes.",
				UnitOfMeasure: "kg",
				Currency:      "USD",
				BasePrice:     10.00,
				UseBy:         oneWeek,
				Stock:         unlimitedStock,
			},
			"whole_milk": {
				ID:            "whole_milk",
				Name:          "Fresh Whole Milk",
				Description:   "Fresh whole milk with 3.25% fat content, perfect for lattes and cappuccinos.",
				UnitOfMeasure: "L",
				Currency:      "USD",
				BasePrice:     2.50,
				UseBy:         3 * oneDay,
				Stock:         unlimitedStock,
			},
			"almond_milk": {
				ID:            "almond_milk",
				Name:          "Unsweetened Almond Milk",
				Description:   "Creamy unsweetened almond milk, dairy-free alternative for specialty drinks.",
				UnitOfMeasure: "L",
				Currency:      "USD",
				BasePrice:     4.00,
				UseBy:         oneWeek,
				Stock:         unlimitedStock,
			},
			"cups": {
				ID:            "cups",
				Name:          "Disposable Coffee Cups",
				Description:   "12oz disposable paper cups with lids, suitable for hot beverages.",
				UnitOfMeasure: "unit",
				Currency:      "USD",
				BasePrice:     0.10,
				UseBy:         oneMonth,
				Stock:         unlimitedStock,
			},
			"fresh_fruit": {
				ID:            "fresh_fruit",
				Name:          "Assorted Fresh Fruit",
				Description:   "Seasonal fresh fruit selection including berries, citrus, and tropical fruits for smoothies and garnishes.",
				UnitOfMeasure: "kg",
				Currency:      "USD",
				BasePrice:     7.00,
				UseBy:         2 * oneDay,
				Stock:         unlimitedStock,
			},
			"pre_packaged_sandwiches": {
				ID:            "pre_packaged_sandwiches",
				Name:          "Pre-packaged Gourmet Sandwiches",
				Description:   "Fresh pre-packaged sandwiches with premium ingredients, various fillings available.",
				UnitOfMeasure: "unit",
				Currency:      "USD",
				BasePrice:     1.00,
				UseBy:         3 * oneDay,
				Stock:         unlimitedStock,
			},
		},
		Tiers: map[string][]model.DiscountTier{
			"espresso_beans": {
				{MinQuantity: 5, Fraction: 0.08},
				{MinQuantity: 15, Fraction: 0.15},
				{MinQuantity: 30, Fraction: 0.25},
			},
			"dark_roast_beans": {
				{MinQuantity: 10, Fraction: 0.10},
				{MinQuantity: 25, Fraction: 0.20},
				{MinQuantity: 50, Fraction: 0.30},
			},
			"light_roast_beans": {
				{MinQuantity: 10, Fraction: 0.05},
				{MinQuantity: 20, Fraction: 0.15},
			},
			"whole_milk": {
				{MinQuantity: 20, Fraction: 0.05},
				{MinQuantity: 50, Fraction: 0.12},
				{MinQuantity: 100, Fraction: 0.20},
			},
			"almond_milk": {
				{MinQuantity: 15, Fraction: 0.08},
				{MinQuantity: 30, Fraction: 0.15},
				{MinQuantity: 60, Fraction: 0.25},
			},
			"cups": {
				{MinQuantity: 5, Fraction: 0.10},
				{MinQuantity: 15, Fraction: 0.20},
				{MinQuantity: 30, Fraction: 0.30},
			},
			"fresh_fruit": {
				{MinQuantity: 10, Fraction: 0.05},
				{MinQuantity: 25, Fraction: 0.12},
				{MinQuantity: 50, Fraction: 0.20},
			},
			"pre_packaged_sandwiches": {
				{MinQuantity: 20, Fraction: 0.08},
				{MinQuantity: 50, Fraction: 0.15},
				{MinQuantity: 100, Fraction: 0.25},
			},
		},
		Demand: map[string]model.DemandParams{
			"espresso_beans":          {QuoteThreshold: 3, HikeFraction: 0.10},
			"dark_roast_beans":        {QuoteThreshold: 5, HikeFraction: 0.05},
			"light_roast_beans":       {QuoteThreshold: 3, HikeFraction: 0.08},
			"whole_milk":              {QuoteThreshold: 8, HikeFraction: 0.06},
			"almond_milk":             {QuoteThreshold: 5, HikeFraction: 0.08},
			"cups":                    {QuoteThreshold: 10, HikeFraction: 0.04},
			"fresh_fruit":             {QuoteThreshold: 6, HikeFraction: 0.12},
			"pre_packaged_sandwiches": {QuoteThreshold: 15, HikeFraction: 0.07},
		},
	}
}
