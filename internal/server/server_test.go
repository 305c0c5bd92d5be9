package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roastline/market-cli/internal/catalog"
	"github.com/roastline/market-cli/internal/demand"
	"github.com/roastline/market-cli/internal/inventory"
	"github.com/roastline/market-cli/internal/model"
	"github.com/roastline/market-cli/internal/negotiation"
	"github.com/roastline/market-cli/internal/pricing"
	"github.com/roastline/market-cli/internal/purchase"
	"github.com/roastline/market-cli/internal/quote"
	"github.com/roastline/market-cli/internal/store"
)

type env struct {
	srv    *Server
	ts     *httptest.Server
	client *http.Client
	now    time.Time
}

func newEnv(t *testing.T) *env {
	t.Helper()

	cat := catalog.Default()
	tracker := demand.NewTracker()
	strategy := pricing.NewDemandAdjusted(
		pricing.NewVolumeDiscount(pricing.NewDefault(cat), pricing.NewDiscountTable(cat.Tiers)),
		tracker, 4*time.Hour, cat.Demand,
	)
	inv := inventory.NewMemory(cat)
	lc := quote.NewLifecycle()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "market.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { _ = st.Close() })

	factory := &quote.Factory{Catalog: cat, Strategy: strategy, Inventory: inv, Lifecycle: lc, Store: st}
	negotiator := negotiation.NewEngine(cat, lc, nil)
	purchaser := purchase.NewProcessor(cat, strategy, inv, lc, st)

	e := &env{
		srv: New(cat, inv, factory, negotiator, purchaser, st),
		now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	e.srv.Now = func() time.Time { return e.now }
	e.ts = httptest.NewServer(e.srv.Routes())
	t.Cleanup(e.ts.Close)
	e.client = e.ts.Client()
	return e
}

func (e *env) post(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	buf, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := e.client.Post(e.ts.URL+path, "application/json", bytes.NewReader(buf))
	require.NoError(t, err)
	return resp
}

func (e *env) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := e.client.Get(e.ts.URL + path)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealth(t *testing.T) {
	e := newEnv(t)
	resp := e.get(t, "/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]string](t, resp)
	assert.Equal(t, "ok", body["status"])
}

func TestListIngredients(t *testing.T) {
	e := newEnv(t)
	resp := e.get(t, "/ingredients")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	items := decode[[]model.Ingredient](t, resp)
	assert.Len(t, items, 8)
}

func TestIngredientStock(t *testing.T) {
	e := newEnv(t)
	resp := e.get(t, "/ingredients/dark_roast_beans/stock")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]any](t, resp)
	assert.Equal(t, "dark_roast_beans", body["ingredient_id"])
	assert.Equal(t, 100000.0, body["stock"])

	resp = e.get(t, "/ingredients/unknown/stock")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestQuoteNegotiatePurchaseFlow(t *testing.T) {
	e := newEnv(t)

	resp := e.post(t, "/quotes", model.QuoteRequest{IngredientID: "dark_roast_beans", Quantity: 25})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	q := decode[model.Quote](t, resp)
	assert.Equal(t, 6.40, q.PricePerUnit)
	assert.NotEmpty(t, q.ID)

	// Fallback rule accepts within 10% of quoted and above base... 6.00 is
	// below base 8.00, so this is rejected and the quote stays open.
	resp = e.post(t, fmt.Sprintf("/quotes/%s/negotiate", q.ID), model.NegotiateRequest{
		ProposedPerUnit: 6.00,
		Rationale:       "weekly standing order",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res := decode[model.NegotiationResult](t, resp)
	assert.False(t, res.Accepted)
	assert.Equal(t, 6.40, res.FinalPerUnit)

	// Second attempt is a conflict.
	resp = e.post(t, fmt.Sprintf("/quotes/%s/negotiate", q.ID), model.NegotiateRequest{
		ProposedPerUnit: 6.20,
		Rationale:       "one more try",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	// Purchase at the quoted price.
	resp = e.post(t, "/orders", model.BuyRequest{
		QuoteID:      q.ID,
		IngredientID: "dark_roast_beans",
		BusinessID:   "biz-1",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	order := decode[model.Order](t, resp)
	assert.Equal(t, model.OrderConfirmed, order.Status)
	assert.InDelta(t, 160.00, order.TotalCost, 1e-9)

	// Order is retrievable and listed for the business.
	resp = e.get(t, "/orders/"+order.ID)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[model.Order](t, resp)
	assert.Equal(t, order.ID, got.ID)

	resp = e.get(t, "/businesses/biz-1/orders")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	orders := decode[[]model.Order](t, resp)
	require.Len(t, orders, 1)
	assert.Equal(t, order.ID, orders[0].ID)
}

func TestQuoteValidation(t *testing.T) {
	e := newEnv(t)

	resp := e.post(t, "/quotes", model.QuoteRequest{IngredientID: "dark_roast_beans", Quantity: 0})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = e.post(t, "/quotes", model.QuoteRequest{IngredientID: "truffle_oil", Quantity: 5})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp = e.post(t, "/quotes", model.QuoteRequest{IngredientID: "dark_roast_beans", Quantity: 1e9})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
}

func TestNegotiateErrorStatuses(t *testing.T) {
	e := newEnv(t)

	resp := e.post(t, "/quotes/nope/negotiate", model.NegotiateRequest{ProposedPerUnit: 5, Rationale: "hi"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	created := e.post(t, "/quotes", model.QuoteRequest{IngredientID: "dark_roast_beans", Quantity: 25})
	q := decode[model.Quote](t, created)

	// Raising the price is not negotiation.
	resp = e.post(t, fmt.Sprintf("/quotes/%s/negotiate", q.ID), model.NegotiateRequest{ProposedPerUnit: 9.99, Rationale: "more"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	resp.Body.Close()

	// Expired quote is gone.
	e.now = e.now.Add(25 * time.Hour)
	resp = e.post(t, fmt.Sprintf("/quotes/%s/negotiate", q.ID), model.NegotiateRequest{ProposedPerUnit: 6.00, Rationale: "late"})
	assert.Equal(t, http.StatusGone, resp.StatusCode)
	resp.Body.Close()
}

func TestPlaceOrderFailureCarriesFailedOrder(t *testing.T) {
	e := newEnv(t)

	created := e.post(t, "/quotes", model.QuoteRequest{IngredientID: "dark_roast_beans", Quantity: 25})
	q := decode[model.Quote](t, created)

	ceiling := 1.00
	resp := e.post(t, "/orders", model.BuyRequest{
		QuoteID:      q.ID,
		IngredientID: "dark_roast_beans",
		MaxPerUnit:   &ceiling,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	body := decode[struct {
		Error string       `json:"error"`
		Order *model.Order `json:"order"`
	}](t, resp)
	require.NotNil(t, body.Order)
	assert.Equal(t, model.OrderFailed, body.Order.Status)
	assert.Contains(t, body.Order.FailureReason, "PRICE_EXCEEDS_MAXIMUM")
}

func TestStats(t *testing.T) {
	e := newEnv(t)
	// The collector's lookback window is anchored to the wall clock.
	e.now = time.Now().UTC()

	created := e.post(t, "/quotes", model.QuoteRequest{IngredientID: "dark_roast_beans", Quantity: 25})
	q := decode[model.Quote](t, created)
	resp := e.post(t, "/orders", model.BuyRequest{QuoteID: q.ID, IngredientID: "dark_roast_beans"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = e.get(t, "/stats")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[map[string]any](t, resp)
	assert.Equal(t, 1.0, body["orders_confirmed"])
	assert.InDelta(t, 160.00, body["revenue_usd"], 1e-9)
}

func TestOrderNotFound(t *testing.T) {
	e := newEnv(t)
	resp := e.get(t, "/orders/does-not-exist")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}
