// Package purchase converts quotes (or fresh prices) into orders. Failed
// purchases are recorded as FAILED orders rather than silently dropped.
package purchase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/roastline/market-cli/internal/catalog"
	"github.com/roastline/market-cli/internal/inventory"
	"github.com/roastline/market-cli/internal/model"
	"github.com/roastline/market-cli/internal/pricing"
	"github.com/roastline/market-cli/internal/quote"
	"github.com/roastline/market-cli/internal/resilience"
	"github.com/roastline/market-cli/internal/store"
)

// Failure reasons recorded on FAILED orders.
const (
	reasonInvalidQuote    = "INVALID_QUOTE"
	reasonPriceExceedsMax = "PRICE_EXCEEDS_MAXIMUM"
	reasonOutOfStock      = "INSUFFICIENT_STOCK"
	reasonPersistence     = "PERSISTENCE_FAILURE"
)

// Processor resolves the price to charge, validates it against the caller's
// ceiling, reserves stock and emits an Order.
type Processor struct {
	Catalog   *catalog.Catalog
	Strategy  pricing.Strategy
	Inventory inventory.Checker
	Lifecycle *quote.Lifecycle
	Store     store.Store

	// Retry governs order persistence attempts.
	Retry resilience.RetryConfig
}

// NewProcessor wires a processor with standard retry settings.
func NewProcessor(c *catalog.Catalog, s pricing.Strategy, inv inventory.Checker, lc *quote.Lifecycle, st store.Store) *Processor {
	return &Processor{
		Catalog:   c,
		Strategy:  s,
		Inventory: inv,
		Lifecycle: lc,
		Store:     st,
		Retry:     resilience.DefaultRetryConfig(),
	}
}

// Buy places an order. With a quote id the quote's price and quantity are
// honored; without one the strategy prices the quantity fresh, reflecting
// current demand. On failures past the lookup stage a FAILED order is
// recorded and returned alongside the error.
func (p *Processor) Buy(ctx context.Context, req model.BuyRequest, now time.Time) (model.Order, error) {
	ing, err := p.Catalog.Get(req.IngredientID)
	if err != nil {
		return model.Order{}, err
	}
	if req.QuoteID == "" && req.Quantity <= 0 {
		return model.Order{}, eris.New("quantity must be positive")
	}

	perUnit := 0.0
	quantity := req.Quantity
	useBy := now.Add(ing.UseBy)

	// claimed is set once a quote has been consumed; every failure past that
	// point puts the quote back.
	var claimed *model.Quote

	if req.QuoteID != "" {
		q, err := p.Lifecycle.Consume(req.QuoteID, now)
		if err != nil {
			return model.Order{}, err
		}
		if q.IngredientID != req.IngredientID {
			p.Lifecycle.Restore(q)
			o := p.failOrder(ctx, req, now, fmt.Sprintf("%s: quote %s is for %s, not %s",
				reasonInvalidQuote, req.QuoteID, q.IngredientID, req.IngredientID))
			return o, eris.Wrapf(model.ErrQuoteNotFound, "quote %s does not match ingredient %s", req.QuoteID, req.IngredientID)
		}
		perUnit = q.PricePerUnit
		quantity = q.Quantity
		useBy = q.UseBy
		claimed = &q
	} else {
		info, err := p.Strategy.Price(req.IngredientID, quantity, now)
		if err != nil {
			return model.Order{}, err
		}
		perUnit = info.PerUnit
	}

	if req.MaxPerUnit != nil && perUnit > *req.MaxPerUnit {
		if claimed != nil {
			p.Lifecycle.Restore(*claimed)
		}
		reason := fmt.Sprintf("%s: resolved price %.2f exceeds maximum acceptable %.2f",
			reasonPriceExceedsMax, perUnit, *req.MaxPerUnit)
		o := p.failOrder(ctx, req, now, reason)
		return o, eris.Wrapf(model.ErrPriceExceedsMax, "price %.2f exceeds maximum %.2f", perUnit, *req.MaxPerUnit)
	}

	if err := p.Inventory.Reserve(req.IngredientID, quantity); err != nil {
		if claimed != nil {
			p.Lifecycle.Restore(*claimed)
		}
		reason := reasonOutOfStock
		if _, available, checkErr := p.Inventory.Check(req.IngredientID, quantity); checkErr == nil {
			reason = fmt.Sprintf("%s: insufficient stock, available %.2f", reasonOutOfStock, available)
		}
		o := p.failOrder(ctx, req, now, reason)
		return o, err
	}

	order := model.Order{
		ID:         uuid.New().String(),
		BusinessID: req.BusinessID,
		QuoteID:    req.QuoteID,
		Items: map[string]model.OrderItem{
			req.IngredientID: {
				IngredientID:     req.IngredientID,
				Quantity:         quantity,
				PricePerUnitPaid: perUnit,
				TotalPrice:       model.Round2(perUnit * quantity),
				UseBy:            useBy,
			},
		},
		TotalCost:        model.Round2(perUnit * quantity),
		PlacedAt:         now,
		ExpectedDelivery: now.Add(quote.DeliveryLeadTime),
		Status:           model.OrderConfirmed,
	}

	if err := p.saveOrder(ctx, order); err != nil {
		p.Inventory.Release(req.IngredientID, quantity)
		if claimed != nil {
			p.Lifecycle.Restore(*claimed)
		}
		o := p.failOrder(ctx, req, now, reasonPersistence)
		return o, eris.Wrap(model.ErrPersistence, err.Error())
	}

	if claimed != nil {
		p.Lifecycle.Remove(req.QuoteID)
	}

	zap.L().Info("order placed",
		zap.String("order_id", order.ID),
		zap.String("ingredient_id", req.IngredientID),
		zap.Float64("quantity", quantity),
		zap.Float64("total", order.TotalCost),
	)
	return order, nil
}

func (p *Processor) saveOrder(ctx context.Context, o model.Order) error {
	if p.Store == nil {
		return nil
	}
	return resilience.Do(ctx, p.Retry, "save order", func(ctx context.Context) error {
		return p.Store.SaveOrder(ctx, o)
	})
}

// failOrder records a FAILED order so purchase failures remain queryable.
// Persistence of the failure record itself is best-effort.
func (p *Processor) failOrder(ctx context.Context, req model.BuyRequest, now time.Time, reason string) model.Order {
	o := model.Order{
		ID:            uuid.New().String(),
		BusinessID:    req.BusinessID,
		QuoteID:       req.QuoteID,
		Items:         map[string]model.OrderItem{},
		PlacedAt:      now,
		Status:        model.OrderFailed,
		FailureReason: reason,
	}
	if p.Store != nil {
		if err := p.Store.SaveOrder(ctx, o); err != nil {
			zap.L().Warn("failed order not persisted",
				zap.String("order_id", o.ID),
				zap.Error(err),
			)
		}
	}
	zap.L().Info("order failed",
		zap.String("order_id", o.ID),
		zap.String("reason", reason),
	)
	return o
}
