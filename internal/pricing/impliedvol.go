package pricing

import (
	"math"

	"github.com/cwklurks/tokyo-market-risk-dashboard/pkg/errors"
)

const (
	impliedVolTolerance = 1e-8
	impliedVolMaxIter   = 100
	impliedVolMin       = 1e-4
	impliedVolMax       = 5.0
)

// ImpliedVol recovers the volatility that reproduces an observed call
// premium. Newton-Raphson on vega, falling back to bisection when vega
// flattens out near the wings; the premium is strictly monotone in sigma so
// bisection always brackets.
func ImpliedVol(price float64, m Model) (float64, error) {
	if m.Spot <= 0 || m.Strike <= 0 {
		return 0, errors.InvalidInput("spot and strike must be positive, got spot=%v strike=%v", m.Spot, m.Strike)
	}
	if m.T <= 0 {
		return 0, errors.InvalidInput("option is at or past expiry, no volatility to recover")
	}
	intrinsic := math.Max(m.Spot-m.Strike*math.Exp(-m.Rate*m.T), 0)
	if price <= intrinsic || price >= m.Spot {
		return 0, errors.InvalidInput("premium %v outside no-arbitrage bounds (%v, %v)", price, intrinsic, m.Spot)
	}

	sigma := 0.2
	for i := 0; i < impliedVolMaxIter; i++ {
		m.Sigma = sigma
		diff := m.CallPrice() - price
		if math.Abs(diff) < impliedVolTolerance {
			return sigma, nil
		}
		vega := m.Vega() * 100 // Vega is quoted per 1% move
		if vega < 1e-10 {
			break
		}
		next := sigma - diff/vega
		if next <= impliedVolMin || next >= impliedVolMax {
			break
		}
		sigma = next
	}

	lo, hi := impliedVolMin, impliedVolMax
	for i := 0; i < impliedVolMaxIter; i++ {
		sigma = (lo + hi) / 2
		m.Sigma = sigma
		diff := m.CallPrice() - price
		if math.Abs(diff) < impliedVolTolerance || hi-lo < impliedVolTolerance {
			return sigma, nil
		}
		if diff > 0 {
			hi = sigma
		} else {
			lo = sigma
		}
	}
	return 0, errors.NewWithKind(errors.KindConvergenceNotReached, "implied volatility search did not converge")
}
