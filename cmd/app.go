package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/roastline/market-cli/internal/catalog"
	"github.com/roastline/market-cli/internal/demand"
	"github.com/roastline/market-cli/internal/inventory"
	"github.com/roastline/market-cli/internal/negotiation"
	"github.com/roastline/market-cli/internal/pricing"
	"github.com/roastline/market-cli/internal/purchase"
	"github.com/roastline/market-cli/internal/quote"
	"github.com/roastline/market-cli/internal/resilience"
	"github.com/roastline/market-cli/internal/store"
	anthropicpkg "github.com/roastline/market-cli/pkg/anthropic"
)

// appEnv holds the wired marketplace components for a command invocation.
type appEnv struct {
	Catalog    *catalog.Catalog
	Inventory  *inventory.Memory
	Lifecycle  *quote.Lifecycle
	Factory    *quote.Factory
	Negotiator *negotiation.Engine
	Purchaser  *purchase.Processor
	Store      store.Store

	// Claude is set when an API key is configured; serve warms its prompt
	// cache at startup.
	Claude *negotiation.ClaudeDecider
}

func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		path := cfg.Store.Path
		if path == "" {
			path = "market.db"
		}
		return store.NewSQLite(path)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initApp builds the full component graph from configuration.
func initApp(ctx context.Context) (*appEnv, error) {
	cat, err := loadCatalog()
	if err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	base := pricing.NewDefault(cat)
	if cfg.Pricing.PriceValidityMins > 0 {
		base.Validity = time.Duration(cfg.Pricing.PriceValidityMins) * time.Minute
	}

	tracker := demand.NewTracker()
	strategy := pricing.NewDemandAdjusted(
		pricing.NewVolumeDiscount(base, pricing.NewDiscountTable(cat.Tiers)),
		tracker,
		cfg.Pricing.DemandWindow(),
		cat.Demand,
	)

	inv := inventory.NewMemory(cat)
	lc := quote.NewLifecycle()

	factory := &quote.Factory{
		Catalog:   cat,
		Strategy:  strategy,
		Inventory: inv,
		Lifecycle: lc,
		Store:     st,
	}

	var decider negotiation.Decider
	var claude *negotiation.ClaudeDecider
	if cfg.Anthropic.Key != "" {
		client := anthropicpkg.NewClient(cfg.Anthropic.Key)
		claude = negotiation.NewClaudeDecider(client, cfg.Anthropic.Model, cfg.Negotiation.RequestsPerSecond)
		decider = claude
	}

	negotiator := negotiation.NewEngine(cat, lc, decider)
	negotiator.Timeout = cfg.Negotiation.DecisionTimeout()
	negotiator.Breaker = resilience.NewBreaker(resilience.BreakerConfig{
		FailureThreshold: cfg.Negotiation.BreakerFailures,
		ResetTimeout:     time.Duration(cfg.Negotiation.BreakerResetSecs) * time.Second,
	})

	purchaser := purchase.NewProcessor(cat, strategy, inv, lc, st)

	return &appEnv{
		Catalog:    cat,
		Inventory:  inv,
		Lifecycle:  lc,
		Factory:    factory,
		Negotiator: negotiator,
		Purchaser:  purchaser,
		Store:      st,
		Claude:     claude,
	}, nil
}

func loadCatalog() (*catalog.Catalog, error) {
	if cfg.Catalog.Path == "" {
		return catalog.Default(), nil
	}
	return catalog.Load(cfg.Catalog.Path)
}
