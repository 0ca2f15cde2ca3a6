// Package fusion combines pricing-derived and contagion-derived risk into a
// single normalized [0,100] score and maps it to a mitigation tier.
package fusion

import (
	"fmt"
	"time"

	"github.com/cwklurks/tokyo-market-risk-dashboard/pkg/models"
)

// Mode selects which components drive the fused score. The set is closed:
// the domain has exactly these meaningful combinations.
type Mode int

const (
	ModeFused Mode = iota
	ModePricingOnly
	ModeContagionOnly
)

// ParseMode maps a configuration string to a Mode
func ParseMode(s string) (Mode, error) {
	switch s {
	case "fused":
		return ModeFused, nil
	case "pricing":
		return ModePricingOnly, nil
	case "contagion":
		return ModeContagionOnly, nil
	}
	return ModeFused, fmt.Errorf("unknown fusion mode %q", s)
}

// Config holds the fusion weights, normalization scales and tier thresholds
type Config struct {
	PricingWeight   float64
	ContagionWeight float64
	PricingScale    float64   // reference max for the pricing component
	ContagionScale  float64   // reference max for the contagion component
	TierThresholds  []float64 // ascending boundaries: monitor|review|hedge|escalate
	Mode            Mode
}

// Engine fuses per-entity components into RiskScore records. Stateless
// after construction.
type Engine struct {
	cfg Config
}

// New validates the configuration and returns a fusion engine.
func New(cfg Config) (*Engine, error) {
	const eps = 1e-9
	if sum := cfg.PricingWeight + cfg.ContagionWeight; sum < 1-eps || sum > 1+eps {
		return nil, fmt.Errorf("fusion weights must sum to 1, got %v", sum)
	}
	if cfg.PricingWeight < 0 || cfg.ContagionWeight < 0 {
		return nil, fmt.Errorf("fusion weights must be non-negative")
	}
	if cfg.PricingScale <= 0 || cfg.ContagionScale <= 0 {
		return nil, fmt.Errorf("normalization scales must be positive")
	}
	if len(cfg.TierThresholds) != 3 {
		return nil, fmt.Errorf("expected 3 tier thresholds, got %d", len(cfg.TierThresholds))
	}
	for i := 1; i < len(cfg.TierThresholds); i++ {
		if cfg.TierThresholds[i] <= cfg.TierThresholds[i-1] {
			return nil, fmt.Errorf("tier thresholds must be strictly increasing, got %v", cfg.TierThresholds)
		}
	}
	return &Engine{cfg: cfg}, nil
}

func normalize(value, scale float64) float64 {
	if value <= 0 {
		return 0
	}
	n := value / scale
	if n > 1 {
		return 1
	}
	return n
}

// Fuse combines the two components into a [0,100] score. Monotone
// non-decreasing in each component with the other held fixed.
func (e *Engine) Fuse(pricing, contagion float64) float64 {
	pn := normalize(pricing, e.cfg.PricingScale)
	cn := normalize(contagion, e.cfg.ContagionScale)

	var wp, wc float64
	switch e.cfg.Mode {
	case ModePricingOnly:
		wp, wc = 1, 0
	case ModeContagionOnly:
		wp, wc = 0, 1
	default:
		wp, wc = e.cfg.PricingWeight, e.cfg.ContagionWeight
	}

	return (wp*pn + wc*cn) * 100
}

// TierFor maps a fused score to its mitigation tier via the configured
// ordered thresholds.
func (e *Engine) TierFor(score float64) models.Tier {
	t := e.cfg.TierThresholds
	switch {
	case score < t[0]:
		return models.TierMonitor
	case score < t[1]:
		return models.TierReview
	case score < t[2]:
		return models.TierHedge
	default:
		return models.TierEscalate
	}
}

// Score builds the immutable RiskScore record for one entity this cycle.
func (e *Engine) Score(entityID string, pricing, contagion float64, approximate bool, at time.Time) models.RiskScore {
	fused := e.Fuse(pricing, contagion)
	return models.RiskScore{
		EntityID:    entityID,
		Pricing:     pricing,
		Contagion:   contagion,
		Fused:       fused,
		Tier:        e.TierFor(fused),
		Approximate: approximate,
		ComputedAt:  at,
	}
}
