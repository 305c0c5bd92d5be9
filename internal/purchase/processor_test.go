package purchase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roastline/market-cli/internal/catalog"
	"github.com/roastline/market-cli/internal/demand"
	"github.com/roastline/market-cli/internal/inventory"
	"github.com/roastline/market-cli/internal/model"
	"github.com/roastline/market-cli/internal/pricing"
	"github.com/roastline/market-cli/internal/quote"
	"github.com/roastline/market-cli/internal/resilience"
	"github.com/roastline/market-cli/internal/store"
)

var now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// memStore collects saved orders in memory.
type memStore struct {
	mu        sync.Mutex
	orders    []model.Order
	saveErr   error
	saveDelay time.Duration
}

func (m *memStore) SaveQuote(ctx context.Context, q model.Quote) error { return nil }

func (m *memStore) SaveOrder(ctx context.Context, o model.Order) error {
	if m.saveDelay > 0 {
		time.Sleep(m.saveDelay)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil && o.Status == model.OrderConfirmed {
		return m.saveErr
	}
	m.orders = append(m.orders, o)
	return nil
}

func (m *memStore) GetOrder(ctx context.Context, orderID string) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.orders {
		if m.orders[i].ID == orderID {
			return &m.orders[i], nil
		}
	}
	return nil, model.ErrOrderNotFound
}

func (m *memStore) ListOrders(ctx context.Context, f store.OrderFilter) ([]model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Order(nil), m.orders...), nil
}

func (m *memStore) Migrate(ctx context.Context) error { return nil }
func (m *memStore) Close() error                      { return nil }

func (m *memStore) byStatus(status model.OrderStatus) []model.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Order
	for _, o := range m.orders {
		if o.Status == status {
			out = append(out, o)
		}
	}
	return out
}

type fixture struct {
	proc *Processor
	inv  *inventory.Memory
	lc   *quote.Lifecycle
	st   *memStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cat := catalog.Default()
	tracker := demand.NewTracker()
	strategy := pricing.NewDemandAdjusted(
		pricing.NewVolumeDiscount(pricing.NewDefault(cat), pricing.NewDiscountTable(cat.Tiers)),
		tracker, 4*time.Hour, cat.Demand,
	)
	inv := inventory.NewMemory(cat)
	lc := quote.NewLifecycle()
	st := &memStore{}
	proc := NewProcessor(cat, strategy, inv, lc, st)
	proc.Retry = resilience.RetryConfig{MaxAttempts: 1}
	return &fixture{proc: proc, inv: inv, lc: lc, st: st}
}

func (f *fixture) addQuote(id, ingredientID string, quantity, perUnit float64) model.Quote {
	q := model.Quote{
		ID:            id,
		IngredientID:  ingredientID,
		Quantity:      quantity,
		PricePerUnit:  perUnit,
		TotalPrice:    model.Round2(perUnit * quantity),
		Currency:      "USD",
		UseBy:         now.Add(14 * 24 * time.Hour),
		PriceValidTil: now.Add(24 * time.Hour),
		CreatedAt:     now,
	}
	f.lc.Add(q)
	return q
}

func TestBuyWithQuote(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.addQuote("q-1", "dark_roast_beans", 25, 6.40)

	order, err := f.proc.Buy(context.Background(), model.BuyRequest{
		QuoteID:      "q-1",
		IngredientID: "dark_roast_beans",
		BusinessID:   "biz-9",
	}, now)
	require.NoError(t, err)

	assert.Equal(t, model.OrderConfirmed, order.Status)
	assert.Equal(t, "q-1", order.QuoteID)
	assert.Equal(t, "biz-9", order.BusinessID)
	assert.InDelta(t, 160.00, order.TotalCost, 1e-9)
	line := order.Items["dark_roast_beans"]
	assert.Equal(t, 25.0, line.Quantity)
	assert.Equal(t, 6.40, line.PricePerUnitPaid)
	assert.Equal(t, now.Add(quote.DeliveryLeadTime), order.ExpectedDelivery)

	// The quote is consumed.
	_, err = f.lc.Get("q-1", now)
	assert.True(t, errors.Is(err, model.ErrQuoteNotFound))

	// Stock was drawn down.
	_, stock, err := f.inv.Check("dark_roast_beans", 1)
	require.NoError(t, err)
	assert.Equal(t, 100000.0-25, stock)

	require.Len(t, f.st.byStatus(model.OrderConfirmed), 1)
}

func TestBuyFreshPriceReflectsDemand(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	// Base 8.00 with the 20% tier at 25kg; no demand markup on the first call
	// (one recorded event, threshold 5).
	order, err := f.proc.Buy(context.Background(), model.BuyRequest{
		IngredientID: "dark_roast_beans",
		Quantity:     25,
	}, now)
	require.NoError(t, err)
	assert.Equal(t, 6.40, order.Items["dark_roast_beans"].PricePerUnitPaid)
}

func TestBuyExpiredQuote(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.addQuote("q-1", "dark_roast_beans", 25, 6.40)

	_, err := f.proc.Buy(context.Background(), model.BuyRequest{
		QuoteID:      "q-1",
		IngredientID: "dark_roast_beans",
	}, now.Add(25*time.Hour))
	assert.True(t, errors.Is(err, model.ErrQuoteExpired))
	assert.Empty(t, f.st.orders, "no order for a quote-level precondition failure")
}

func TestBuyUnknownQuote(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.proc.Buy(context.Background(), model.BuyRequest{
		QuoteID:      "nope",
		IngredientID: "dark_roast_beans",
	}, now)
	assert.True(t, errors.Is(err, model.ErrQuoteNotFound))
}

func TestBuyIngredientMismatchRecordsFailedOrder(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.addQuote("q-1", "dark_roast_beans", 25, 6.40)

	order, err := f.proc.Buy(context.Background(), model.BuyRequest{
		QuoteID:      "q-1",
		IngredientID: "whole_milk",
		Quantity:     25,
	}, now)
	assert.True(t, errors.Is(err, model.ErrQuoteNotFound))
	assert.Equal(t, model.OrderFailed, order.Status)
	assert.Contains(t, order.FailureReason, "INVALID_QUOTE")
	require.Len(t, f.st.byStatus(model.OrderFailed), 1)
}

func TestBuyPriceCeiling(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.addQuote("q-1", "dark_roast_beans", 25, 6.40)

	ceiling := 6.00
	order, err := f.proc.Buy(context.Background(), model.BuyRequest{
		QuoteID:      "q-1",
		IngredientID: "dark_roast_beans",
		MaxPerUnit:   &ceiling,
	}, now)
	assert.True(t, errors.Is(err, model.ErrPriceExceedsMax))
	assert.Equal(t, model.OrderFailed, order.Status)
	assert.Contains(t, order.FailureReason, "PRICE_EXCEEDS_MAXIMUM")

	// Quote survives a rejected purchase.
	_, err = f.lc.Get("q-1", now)
	assert.NoError(t, err)
}

func TestBuyInsufficientStock(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.addQuote("q-1", "dark_roast_beans", 200000, 6.40)

	order, err := f.proc.Buy(context.Background(), model.BuyRequest{
		QuoteID:      "q-1",
		IngredientID: "dark_roast_beans",
	}, now)
	assert.True(t, errors.Is(err, model.ErrInsufficientStock))
	assert.Equal(t, model.OrderFailed, order.Status)
	assert.Contains(t, order.FailureReason, "INSUFFICIENT_STOCK")
	assert.Contains(t, order.FailureReason, "available 100000.00")
}

func TestBuyPersistenceFailureReleasesStock(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.st.saveErr = eris.New("disk full")
	f.addQuote("q-1", "dark_roast_beans", 25, 6.40)

	order, err := f.proc.Buy(context.Background(), model.BuyRequest{
		QuoteID:      "q-1",
		IngredientID: "dark_roast_beans",
	}, now)
	assert.True(t, errors.Is(err, model.ErrPersistence))
	assert.Equal(t, model.OrderFailed, order.Status)
	assert.Equal(t, "PERSISTENCE_FAILURE", order.FailureReason)

	// Reserved stock was returned.
	_, stock, cerr := f.inv.Check("dark_roast_beans", 1)
	require.NoError(t, cerr)
	assert.Equal(t, 100000.0, stock)

	// The FAILED record itself still landed in the store.
	require.Len(t, f.st.byStatus(model.OrderFailed), 1)

	// The quote survives the failed attempt and can be retried.
	_, err = f.lc.Get("q-1", now)
	assert.NoError(t, err)
}

func TestConcurrentBuysConsumeQuoteOnce(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.st.saveDelay = 10 * time.Millisecond
	f.addQuote("q-1", "dark_roast_beans", 25, 6.40)

	const buyers = 20
	var wg sync.WaitGroup
	confirmed := make(chan model.Order, buyers)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			order, err := f.proc.Buy(context.Background(), model.BuyRequest{
				QuoteID:      "q-1",
				IngredientID: "dark_roast_beans",
				BusinessID:   "biz-9",
			}, now)
			if err == nil {
				confirmed <- order
			}
		}()
	}
	wg.Wait()
	close(confirmed)

	assert.Len(t, confirmed, 1, "exactly one purchase may consume the quote")
	require.Len(t, f.st.byStatus(model.OrderConfirmed), 1)

	// The losers never reserved stock.
	_, stock, err := f.inv.Check("dark_roast_beans", 1)
	require.NoError(t, err)
	assert.Equal(t, 100000.0-25.0, stock)
}

func TestBuyUnknownIngredient(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	_, err := f.proc.Buy(context.Background(), model.BuyRequest{
		IngredientID: "truffle_oil",
		Quantity:     1,
	}, now)
	assert.True(t, errors.Is(err, model.ErrIngredientNotFound))
}

func TestBuyNonPositiveQuantity(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	_, err := f.proc.Buy(context.Background(), model.BuyRequest{
		IngredientID: "dark_roast_beans",
		Quantity:     0,
	}, now)
	assert.Error(t, err)
}
