// Package models defines the shared domain types for the risk scoring service.
package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EntityCategory classifies a node in the entity universe
type EntityCategory string

const (
	CategoryInstrument  EntityCategory = "instrument"
	CategoryInstitution EntityCategory = "institution"
	CategorySector      EntityCategory = "sector"
)

// Coordinates is a geospatial position used for seismic proximity weighting
type Coordinates struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

// Entity is a market participant or instrument node. Topology fields are
// immutable for the session; numeric fields are refreshed per tick by the
// market feed.
type Entity struct {
	ID                 string          `json:"id" validate:"required"`
	Category           EntityCategory  `json:"category" validate:"required,oneof=instrument institution sector"`
	BaselineVolatility float64         `json:"baseline_volatility" validate:"gte=0"`
	MarketValue        decimal.Decimal `json:"market_value"`
	Coords             Coordinates     `json:"coords"`
}

// MarketSnapshot is the per-cycle view of the entity universe. Stale marks a
// last-known-good snapshot substituted after a feed failure.
type MarketSnapshot struct {
	Entities []Entity  `json:"entities"`
	AsOf     time.Time `json:"as_of"`
	Stale    bool      `json:"stale"`
}

// SeismicEvent is a single earthquake observation from the seismic feed.
// Events are append-only within a session and expire from active
// consideration after the configured decay window.
type SeismicEvent struct {
	ID        string      `json:"id"`
	Epicenter Coordinates `json:"epicenter"`
	Magnitude float64     `json:"magnitude"`
	DepthKM   float64     `json:"depth_km"`
	Time      time.Time   `json:"time"`
}

// ContagionEdge represents fractional exposure transmission between two
// entities. Weight must be in [0,1]; topology is static for the session.
type ContagionEdge struct {
	Source string  `json:"source" yaml:"source"`
	Target string  `json:"target" yaml:"target"`
	Weight float64 `json:"weight" yaml:"weight"`
}

// RiskScore is the fused per-entity result of one evaluation cycle. Records
// are immutable; each cycle produces a fresh set.
type RiskScore struct {
	EntityID    string    `json:"entity_id"`
	Pricing     float64   `json:"pricing_component"`
	Contagion   float64   `json:"contagion_component"`
	Fused       float64   `json:"fused_score"`
	Tier        Tier      `json:"tier"`
	Approximate bool      `json:"approximate,omitempty"`
	ComputedAt  time.Time `json:"computed_at"`
}

// Tier is the discrete mitigation category derived from the fused score
type Tier int

const (
	TierMonitor Tier = iota
	TierReview
	TierHedge
	TierEscalate
)

func (t Tier) String() string {
	switch t {
	case TierMonitor:
		return "monitor"
	case TierReview:
		return "review"
	case TierHedge:
		return "hedge"
	case TierEscalate:
		return "escalate"
	}
	return "unknown"
}

// MarshalJSON renders the tier as its string form
func (t Tier) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

// UnmarshalJSON parses the string form back into a tier
func (t *Tier) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "monitor":
		*t = TierMonitor
	case "review":
		*t = TierReview
	case "hedge":
		*t = TierHedge
	case "escalate":
		*t = TierEscalate
	default:
		return fmt.Errorf("unknown tier %q", s)
	}
	return nil
}

// ActionQueueEntry is one recommended mitigation with its audit metadata.
type ActionQueueEntry struct {
	ID        uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	EntityID  string    `json:"entity_id" gorm:"index"`
	Score     float64   `json:"fused_score"`
	Tier      Tier      `json:"tier"`
	Rationale string    `json:"rationale"`
	CreatedAt time.Time `json:"created_at"`
}

// SkippedEntity records an entity excluded from a cycle and why, so callers
// can distinguish "skipped due to bad data" from "scored zero risk".
type SkippedEntity struct {
	EntityID string `json:"entity_id"`
	Reason   string `json:"reason"`
}

// PortfolioMetrics aggregates the priced universe of one cycle: total value,
// value-weighted adjusted volatility, parametric VaR and summed call Greeks.
type PortfolioMetrics struct {
	TotalValue          float64 `json:"total_value"`
	WeightedVol         float64 `json:"weighted_volatility"`
	VaR95               float64 `json:"var_95"`
	VaR99               float64 `json:"var_99"`
	ExpectedShortfall95 float64 `json:"expected_shortfall_95"`
	Delta               float64 `json:"delta"`
	Gamma               float64 `json:"gamma"`
	Vega                float64 `json:"vega"`
	Theta               float64 `json:"theta"`
}

// CycleResult is the complete output of one evaluation cycle.
type CycleResult struct {
	CycleID     uuid.UUID         `json:"cycle_id"`
	Scores      []RiskScore       `json:"scores"`
	Skipped     []SkippedEntity   `json:"skipped,omitempty"`
	Portfolio   *PortfolioMetrics `json:"portfolio,omitempty"`
	Degraded    bool              `json:"degraded"`
	Approximate bool              `json:"approximate"`
	ComputedAt  time.Time         `json:"computed_at"`
}
