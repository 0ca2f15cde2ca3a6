package pricing

import "math"

// One-sided z-scores for the standard confidence levels.
const (
	z95 = 1.6449
	z99 = 2.3263
)

const tradingDaysPerYear = 252

// RiskMetrics is the parametric value-at-risk summary for a position or the
// whole book, in the same currency unit as the input value.
type RiskMetrics struct {
	VaR95               float64 `json:"var_95"`
	VaR99               float64 `json:"var_99"`
	ExpectedShortfall95 float64 `json:"expected_shortfall_95"`
}

// ValueAtRisk computes normal parametric VaR over the horizon. Volatility is
// annualized and rescaled to the horizon in trading days. Expected shortfall
// uses the closed form for a normal tail.
func ValueAtRisk(value, annualVol float64, horizonDays int) RiskMetrics {
	if value <= 0 || annualVol <= 0 || horizonDays <= 0 {
		return RiskMetrics{}
	}
	sigmaH := annualVol * math.Sqrt(float64(horizonDays)/tradingDaysPerYear)
	return RiskMetrics{
		VaR95:               value * z95 * sigmaH,
		VaR99:               value * z99 * sigmaH,
		ExpectedShortfall95: value * sigmaH * normPDF(z95) / 0.05,
	}
}
