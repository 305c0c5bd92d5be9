package quote

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/roastline/market-cli/internal/catalog"
	"github.com/roastline/market-cli/internal/inventory"
	"github.com/roastline/market-cli/internal/model"
	"github.com/roastline/market-cli/internal/pricing"
	"github.com/roastline/market-cli/internal/store"
)

// DeliveryLeadTime is the promised delivery window for a quote.
const DeliveryLeadTime = 24 * time.Hour

// Factory assembles quotes from the pricing strategy and stock facts, stores
// them as OPEN, and persists them best-effort.
type Factory struct {
	Catalog   *catalog.Catalog
	Strategy  pricing.Strategy
	Inventory inventory.Checker
	Lifecycle *Lifecycle
	Store     store.Store
}

// Create prices a quantity of an ingredient and returns an immutable quote.
// The quote is registered in the open store as a side effect.
func (f *Factory) Create(ctx context.Context, ingredientID string, quantity float64, now time.Time) (model.Quote, error) {
	ing, err := f.Catalog.Get(ingredientID)
	if err != nil {
		return model.Quote{}, err
	}

	available, stock, err := f.Inventory.Check(ingredientID, quantity)
	if err != nil {
		return model.Quote{}, err
	}
	if !available {
		return model.Quote{}, eris.Wrapf(model.ErrInsufficientStock, "insufficient stock, available: %.2f", stock)
	}

	info, err := f.Strategy.Price(ingredientID, quantity, now)
	if err != nil {
		return model.Quote{}, err
	}

	q := model.Quote{
		ID:             uuid.New().String(),
		IngredientID:   ing.ID,
		Name:           ing.Name,
		Description:    ing.Description,
		UnitOfMeasure:  ing.UnitOfMeasure,
		Quantity:       quantity,
		PricePerUnit:   info.PerUnit,
		TotalPrice:     model.Round2(info.PerUnit * quantity),
		Currency:       ing.Currency,
		AvailableStock: stock,
		DeliveryTime:   int64(DeliveryLeadTime / time.Second),
		UseBy:          now.Add(ing.UseBy),
		PriceValidTil:  info.ValidUntil,
		CreatedAt:      now,
	}

	f.Lifecycle.Add(q)
	if f.Lifecycle.Size() > SweepThreshold {
		dropped := f.Lifecycle.Sweep(now)
		zap.L().Debug("swept expired quotes", zap.Int("dropped", dropped))
	}

	// Quote persistence is best-effort; the in-memory store is authoritative
	// for the quote's lifetime.
	if f.Store != nil {
		if err := f.Store.SaveQuote(ctx, q); err != nil {
			zap.L().Warn("quote persistence failed",
				zap.String("quote_id", q.ID),
				zap.Error(err),
			)
		}
	}

	return q, nil
}
