// Package monitoring gathers point-in-time operational metrics for the
// marketplace: order outcomes, revenue and quote-store pressure.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/roastline/market-cli/internal/model"
	"github.com/roastline/market-cli/internal/quote"
	"github.com/roastline/market-cli/internal/store"
)

// MetricsSnapshot holds a point-in-time view of system health.
type MetricsSnapshot struct {
	// Order metrics (within lookback window).
	OrdersTotal     int     `json:"orders_total"`
	OrdersConfirmed int     `json:"orders_confirmed"`
	OrdersFailed    int     `json:"orders_failed"`
	OrderFailRate   float64 `json:"order_fail_rate"`
	RevenueUSD      float64 `json:"revenue_usd"`

	// Quote-store pressure at collection time.
	ActiveQuotes int `json:"active_quotes"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Collector gathers metrics from the store and the quote lifecycle.
type Collector struct {
	store     store.Store
	lifecycle *quote.Lifecycle
}

// NewCollector creates a new metrics collector.
func NewCollector(st store.Store, lc *quote.Lifecycle) *Collector {
	return &Collector{store: st, lifecycle: lc}
}

// Collect gathers a snapshot of system metrics over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   time.Now().UTC(),
	}

	cutoff := time.Now().UTC().Add(-time.Duration(lookbackHours) * time.Hour)

	orders, err := c.store.ListOrders(ctx, store.OrderFilter{Limit: 10000})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list orders")
	}

	for _, o := range orders {
		if o.PlacedAt.Before(cutoff) {
			continue
		}
		snap.OrdersTotal++
		switch o.Status {
		case model.OrderConfirmed:
			snap.OrdersConfirmed++
			snap.RevenueUSD += o.TotalCost
		case model.OrderFailed:
			snap.OrdersFailed++
		}
	}
	if snap.OrdersTotal > 0 {
		snap.OrderFailRate = float64(snap.OrdersFailed) / float64(snap.OrdersTotal)
	}

	if c.lifecycle != nil {
		snap.ActiveQuotes = c.lifecycle.Size()
	}

	return snap, nil
}
