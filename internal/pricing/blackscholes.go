// Package pricing implements closed-form option pricing under a volatility
// surface widened by seismic shocks. Everything here is a pure function of
// its inputs and safe to call concurrently for independent entities.
package pricing

import (
	"math"
	"time"

	"github.com/cwklurks/tokyo-market-risk-dashboard/pkg/errors"
	"github.com/cwklurks/tokyo-market-risk-dashboard/pkg/models"
)

// Model holds the parameters of a single European option
type Model struct {
	Spot   float64 // current price
	Strike float64
	T      float64 // time to maturity in years
	Rate   float64 // risk-free rate
	Sigma  float64 // volatility
}

func normCDF(x float64) float64 {
	return 0.5 * math.Erfc(-x/math.Sqrt2)
}

func normPDF(x float64) float64 {
	return math.Exp(-x*x/2) / math.Sqrt(2*math.Pi)
}

func (m Model) d1() float64 {
	return (math.Log(m.Spot/m.Strike) + (m.Rate+0.5*m.Sigma*m.Sigma)*m.T) / (m.Sigma * math.Sqrt(m.T))
}

func (m Model) d2() float64 {
	return m.d1() - m.Sigma*math.Sqrt(m.T)
}

// CallPrice returns the European call premium. At or past expiry the
// closed-form formula degenerates, so intrinsic value is returned directly.
func (m Model) CallPrice() float64 {
	if m.T <= 0 {
		return math.Max(m.Spot-m.Strike, 0)
	}
	return m.Spot*normCDF(m.d1()) - m.Strike*math.Exp(-m.Rate*m.T)*normCDF(m.d2())
}

// PutPrice returns the European put premium
func (m Model) PutPrice() float64 {
	if m.T <= 0 {
		return math.Max(m.Strike-m.Spot, 0)
	}
	return m.Strike*math.Exp(-m.Rate*m.T)*normCDF(-m.d2()) - m.Spot*normCDF(-m.d1())
}

// DeltaCall returns the call option delta
func (m Model) DeltaCall() float64 {
	if m.T <= 0 {
		if m.Spot > m.Strike {
			return 1.0
		}
		return 0.0
	}
	return normCDF(m.d1())
}

// DeltaPut returns the put option delta
func (m Model) DeltaPut() float64 {
	if m.T <= 0 {
		if m.Spot < m.Strike {
			return -1.0
		}
		return 0.0
	}
	return -normCDF(-m.d1())
}

// Gamma returns the option gamma
func (m Model) Gamma() float64 {
	if m.T <= 0 {
		return 0.0
	}
	return normPDF(m.d1()) / (m.Spot * m.Sigma * math.Sqrt(m.T))
}

// Vega returns the option vega per 1% volatility move
func (m Model) Vega() float64 {
	if m.T <= 0 {
		return 0.0
	}
	return m.Spot * normPDF(m.d1()) * math.Sqrt(m.T) / 100
}

// ThetaCall returns the daily call theta
func (m Model) ThetaCall() float64 {
	if m.T <= 0 {
		return 0.0
	}
	term1 := -m.Spot * normPDF(m.d1()) * m.Sigma / (2 * math.Sqrt(m.T))
	term2 := -m.Rate * m.Strike * math.Exp(-m.Rate*m.T) * normCDF(m.d2())
	return (term1 + term2) / 365
}

// ThetaPut returns the daily put theta
func (m Model) ThetaPut() float64 {
	if m.T <= 0 {
		return 0.0
	}
	term1 := -m.Spot * normPDF(m.d1()) * m.Sigma / (2 * math.Sqrt(m.T))
	term2 := m.Rate * m.Strike * math.Exp(-m.Rate*m.T) * normCDF(-m.d2())
	return (term1 + term2) / 365
}

// RhoCall returns the call rho per 1% rate move
func (m Model) RhoCall() float64 {
	if m.T <= 0 {
		return 0.0
	}
	return m.Strike * m.T * math.Exp(-m.Rate*m.T) * normCDF(m.d2()) / 100
}

// RhoPut returns the put rho per 1% rate move
func (m Model) RhoPut() float64 {
	if m.T <= 0 {
		return 0.0
	}
	return -m.Strike * m.T * math.Exp(-m.Rate*m.T) * normCDF(-m.d2()) / 100
}

// Greeks bundles all sensitivities of one option
type Greeks struct {
	DeltaCall float64 `json:"delta_call"`
	DeltaPut  float64 `json:"delta_put"`
	Gamma     float64 `json:"gamma"`
	Vega      float64 `json:"vega"`
	ThetaCall float64 `json:"theta_call"`
	ThetaPut  float64 `json:"theta_put"`
	RhoCall   float64 `json:"rho_call"`
	RhoPut    float64 `json:"rho_put"`
}

// AllGreeks returns every sensitivity in one struct
func (m Model) AllGreeks() Greeks {
	return Greeks{
		DeltaCall: m.DeltaCall(),
		DeltaPut:  m.DeltaPut(),
		Gamma:     m.Gamma(),
		Vega:      m.Vega(),
		ThetaCall: m.ThetaCall(),
		ThetaPut:  m.ThetaPut(),
		RhoCall:   m.RhoCall(),
		RhoPut:    m.RhoPut(),
	}
}

// Params carries the per-cycle pricing configuration
type Params struct {
	Strike            float64 // zero means at-the-money
	RiskFreeRate      float64
	TimeToExpiry      float64 // years
	ShockRadiusKM     float64
	ShockDecayWindow  time.Duration
	VolatilityCeiling float64
	Now               time.Time
}

// Result is the output of pricing one entity
type Result struct {
	Premium     float64 `json:"premium"`
	AdjustedVol float64 `json:"adjusted_volatility"`
	Shock       float64 `json:"shock"`
	Greeks      Greeks  `json:"greeks"`
}

// Price computes the shock-adjusted call premium for one entity. The
// premium is re-derived under the adjusted volatility so downstream
// components see how much riskier the market is, not just the dollar value.
func Price(entity models.Entity, p Params, events []models.SeismicEvent) (Result, error) {
	spot := entity.MarketValue.InexactFloat64()
	if spot <= 0 {
		return Result{}, errors.InvalidInput("entity %s: spot must be positive, got %v", entity.ID, spot)
	}
	if entity.BaselineVolatility <= 0 {
		return Result{}, errors.InvalidInput("entity %s: baseline volatility must be positive, got %v", entity.ID, entity.BaselineVolatility)
	}

	strike := p.Strike
	if strike <= 0 {
		strike = spot
	}

	shock := TotalShock(entity.Coords, events, p)
	adjusted := entity.BaselineVolatility + shock
	if p.VolatilityCeiling > 0 && adjusted > p.VolatilityCeiling {
		adjusted = p.VolatilityCeiling
	}
	// The ceiling caps the add-on, never the baseline itself.
	if adjusted < entity.BaselineVolatility {
		adjusted = entity.BaselineVolatility
	}

	model := Model{
		Spot:   spot,
		Strike: strike,
		T:      p.TimeToExpiry,
		Rate:   p.RiskFreeRate,
		Sigma:  adjusted,
	}

	return Result{
		Premium:     model.CallPrice(),
		AdjustedVol: adjusted,
		Shock:       adjusted - entity.BaselineVolatility,
		Greeks:      model.AllGreeks(),
	}, nil
}
