// Package server exposes the marketplace over HTTP: quoting, negotiation,
// purchasing and catalog lookups.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/roastline/market-cli/internal/catalog"
	"github.com/roastline/market-cli/internal/inventory"
	"github.com/roastline/market-cli/internal/model"
	"github.com/roastline/market-cli/internal/monitoring"
	"github.com/roastline/market-cli/internal/negotiation"
	"github.com/roastline/market-cli/internal/purchase"
	"github.com/roastline/market-cli/internal/quote"
	"github.com/roastline/market-cli/internal/store"
)

// Server wires the domain components behind the HTTP API.
type Server struct {
	Catalog    *catalog.Catalog
	Inventory  inventory.Checker
	Factory    *quote.Factory
	Negotiator *negotiation.Engine
	Purchaser  *purchase.Processor
	Store      store.Store
	Metrics    *monitoring.Collector

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

// New assembles a server over the given components.
func New(cat *catalog.Catalog, inv inventory.Checker, f *quote.Factory, n *negotiation.Engine, p *purchase.Processor, st store.Store) *Server {
	return &Server{
		Catalog:    cat,
		Inventory:  inv,
		Factory:    f,
		Negotiator: n,
		Purchaser:  p,
		Store:      st,
		Metrics:    monitoring.NewCollector(st, f.Lifecycle),
		Now:        time.Now,
	}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))
	r.Use(requestLogger)

	r.Get("/health", s.health)
	r.Get("/stats", s.stats)
	r.Get("/ingredients", s.listIngredients)
	r.Get("/ingredients/{id}/stock", s.ingredientStock)
	r.Post("/quotes", s.createQuote)
	r.Post("/quotes/{id}/negotiate", s.negotiate)
	r.Post("/orders", s.placeOrder)
	r.Get("/orders/{id}", s.getOrder)
	r.Get("/businesses/{id}/orders", s.listBusinessOrders)

	return r
}

// requestLogger logs each request with latency and status.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("response encode failed", zap.Error(err))
	}
}

type errorResponse struct {
	Error string       `json:"error"`
	Order *model.Order `json:"order,omitempty"`
}

// statusFor maps domain errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrIngredientNotFound),
		errors.Is(err, model.ErrQuoteNotFound),
		errors.Is(err, model.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrQuoteExpired):
		return http.StatusGone
	case errors.Is(err, model.ErrAlreadyNegotiated),
		errors.Is(err, model.ErrInsufficientStock):
		return http.StatusConflict
	case errors.Is(err, model.ErrInvalidProposal),
		errors.Is(err, model.ErrPriceExceedsMax):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorResponse{Error: err.Error()})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	lookback := 24
	if v := r.URL.Query().Get("lookback_hours"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			lookback = n
		}
	}
	snap, err := s.Metrics.Collect(r.Context(), lookback)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) listIngredients(w http.ResponseWriter, r *http.Request) {
	out := make([]model.Ingredient, 0, len(s.Catalog.Ingredients))
	for _, id := range s.Catalog.IDs() {
		ing, err := s.Catalog.Get(id)
		if err != nil {
			continue
		}
		out = append(out, ing)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) ingredientStock(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	_, stock, err := s.Inventory.Check(id, 0)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ingredient_id": id,
		"stock":         stock,
	})
}

func (s *Server) createQuote(w http.ResponseWriter, r *http.Request) {
	var req model.QuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.IngredientID == "" || req.Quantity <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "ingredient_id and a positive quantity are required"})
		return
	}

	q, err := s.Factory.Create(r.Context(), req.IngredientID, req.Quantity, s.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, q)
}

func (s *Server) negotiate(w http.ResponseWriter, r *http.Request) {
	quoteID := chi.URLParam(r, "id")

	var req model.NegotiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	res, err := s.Negotiator.Negotiate(r.Context(), quoteID, req.ProposedPerUnit, req.Rationale, s.Now())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req model.BuyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if req.IngredientID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "ingredient_id is required"})
		return
	}

	order, err := s.Purchaser.Buy(r.Context(), req, s.Now())
	if err != nil {
		resp := errorResponse{Error: err.Error()}
		if order.Status == model.OrderFailed {
			resp.Order = &order
		}
		writeJSON(w, statusFor(err), resp)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	order, err := s.Store.GetOrder(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) listBusinessOrders(w http.ResponseWriter, r *http.Request) {
	filter := store.OrderFilter{
		BusinessID: chi.URLParam(r, "id"),
		Status:     model.OrderStatus(r.URL.Query().Get("status")),
	}
	orders, err := s.Store.ListOrders(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}
