package pricing

import (
	"errors"
	"fmt"

	"hotel_pricing/internal/domain"
)

// Rules are the constant tables behind the heuristic. An Engine takes its own
// copy at construction, so a Rules value can be tweaked per test or per hotel
// without touching any other engine.
type Rules struct {
	UndercutPct      float64                   `yaml:"undercut_pct" json:"undercut_pct"`
	EventImpact      map[domain.Impact]float64 `yaml:"event_impact" json:"event_impact"`
	BasePrices       map[string]float64        `yaml:"base_prices" json:"base_prices"`
	DefaultBasePrice float64                   `yaml:"default_base_price" json:"default_base_price"`
}

func DefaultRules() Rules {
	return Rules{
		UndercutPct: 0.05,
		EventImpact: map[domain.Impact]float64{
			domain.ImpactHigh:   0.15,
			domain.ImpactMedium: 0.08,
			domain.ImpactLow:    0.02,
		},
		BasePrices: map[string]float64{
			"R1": 1200.0, // Standard King
			"R2": 1800.0, // Deluxe Suite
		},
		DefaultBasePrice: 1000.0,
	}
}

func (r Rules) Validate() error {
	var errs []error
	if r.UndercutPct < 0 || r.UndercutPct >= 1 {
		errs = append(errs, fmt.Errorf("undercut_pct must be in [0,1), got %v", r.UndercutPct))
	}
	for label, pct := range r.EventImpact {
		if pct < 0 {
			errs = append(errs, fmt.Errorf("event_impact[%s] must be >= 0, got %v", label, pct))
		}
	}
	for id, p := range r.BasePrices {
		if p < 0 {
			errs = append(errs, fmt.Errorf("base_prices[%s] must be >= 0, got %v", id, p))
		}
	}
	if r.DefaultBasePrice < 0 {
		errs = append(errs, fmt.Errorf("default_base_price must be >= 0, got %v", r.DefaultBasePrice))
	}
	return errors.Join(errs...)
}

func (r Rules) basePrice(roomTypeID string) float64 {
	if p, ok := r.BasePrices[roomTypeID]; ok {
		return p
	}
	return r.DefaultBasePrice
}

func (r Rules) clone() Rules {
	out := r
	out.EventImpact = make(map[domain.Impact]float64, len(r.EventImpact))
	for k, v := range r.EventImpact {
		out.EventImpact[k] = v
	}
	out.BasePrices = make(map[string]float64, len(r.BasePrices))
	for k, v := range r.BasePrices {
		out.BasePrices[k] = v
	}
	return out
}
