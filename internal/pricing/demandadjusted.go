package pricing

import (
	"time"

	"github.com/roastline/market-cli/internal/demand"
	"github.com/roastline/market-cli/internal/model"
)

// DemandAdjusted marks prices up when an ingredient is being quoted heavily.
// It wraps the volume-discounted strategy, records the pricing call itself
// as a demand event, and applies a linear markup of HikeFraction per full
// QuoteThreshold of events inside the window.
type DemandAdjusted struct {
	Base    Strategy
	Tracker *demand.Tracker
	Window  time.Duration
	Params  map[string]model.DemandParams
}

// NewDemandAdjusted wraps base with demand-based markups.
func NewDemandAdjusted(base Strategy, tracker *demand.Tracker, window time.Duration, params map[string]model.DemandParams) *DemandAdjusted {
	return &DemandAdjusted{Base: base, Tracker: tracker, Window: window, Params: params}
}

// Price computes the volume-discounted price, then records this call as a
// demand event and applies the markup. The count driving the markup includes
// the event recorded here, so back-to-back quoting ramps immediately.
func (d *DemandAdjusted) Price(ingredientID string, quantity float64, now time.Time) (PriceInfo, error) {
	info, err := d.Base.Price(ingredientID, quantity, now)
	if err != nil {
		return PriceInfo{}, err
	}

	d.Tracker.Record(ingredientID, now, d.Window)
	recent := d.Tracker.CountWithin(ingredientID, now, d.Window)

	params, ok := d.Params[ingredientID]
	if !ok || params.QuoteThreshold <= 0 {
		return info, nil
	}

	hikes := recent / params.QuoteThreshold
	if hikes > 0 {
		markup := 1 + float64(hikes)*params.HikeFraction
		info.PerUnit = model.Round2(info.PerUnit * markup)
	}
	return info, nil
}
