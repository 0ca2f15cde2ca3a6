package pricing

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwklurks/tokyo-market-risk-dashboard/pkg/errors"
	"github.com/cwklurks/tokyo-market-risk-dashboard/pkg/models"
)

var tokyo = models.Coordinates{Lat: 35.6762, Lon: 139.6503}

func testParams(now time.Time) Params {
	return Params{
		RiskFreeRate:      0.01,
		TimeToExpiry:      0.25,
		ShockRadiusKM:     500,
		ShockDecayWindow:  72 * time.Hour,
		VolatilityCeiling: 1.5,
		Now:               now,
	}
}

func testEntity(vol float64) models.Entity {
	return models.Entity{
		ID:                 "nikkei",
		Category:           models.CategoryInstrument,
		BaselineVolatility: vol,
		MarketValue:        decimal.NewFromInt(100),
		Coords:             tokyo,
	}
}

func TestCallPriceKnownValue(t *testing.T) {
	m := Model{Spot: 100, Strike: 100, T: 0.25, Rate: 0.01, Sigma: 0.2}
	// Reference value for an at-the-money quarter-year call.
	assert.InDelta(t, 4.115, m.CallPrice(), 0.01)
}

func TestPutCallParity(t *testing.T) {
	m := Model{Spot: 105, Strike: 100, T: 0.5, Rate: 0.02, Sigma: 0.3}
	lhs := m.CallPrice() - m.PutPrice()
	rhs := m.Spot - m.Strike*math.Exp(-m.Rate*m.T)
	assert.InDelta(t, rhs, lhs, 1e-9)
}

func TestExpiredOptionReturnsIntrinsicValue(t *testing.T) {
	m := Model{Spot: 110, Strike: 100, T: 0, Rate: 0.01, Sigma: 0.2}
	assert.Equal(t, 10.0, m.CallPrice())
	assert.Equal(t, 0.0, m.PutPrice())

	m.T = -0.1
	assert.Equal(t, 10.0, m.CallPrice())
}

func TestGreeksSanity(t *testing.T) {
	m := Model{Spot: 100, Strike: 100, T: 0.25, Rate: 0.01, Sigma: 0.2}
	g := m.AllGreeks()
	assert.Greater(t, g.DeltaCall, 0.0)
	assert.Less(t, g.DeltaCall, 1.0)
	assert.Greater(t, g.DeltaPut, -1.0)
	assert.Less(t, g.DeltaPut, 0.0)
	assert.Greater(t, g.Gamma, 0.0)
	assert.Greater(t, g.Vega, 0.0)
	assert.Less(t, g.ThetaCall, 0.0)
}

func TestPriceRejectsNonPositiveVolatility(t *testing.T) {
	_, err := Price(testEntity(0), testParams(time.Now()), nil)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindInvalidInput))

	_, err = Price(testEntity(-0.2), testParams(time.Now()), nil)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindInvalidInput))
}

func TestPriceRejectsNonPositiveSpot(t *testing.T) {
	entity := testEntity(0.2)
	entity.MarketValue = decimal.NewFromInt(-5)
	_, err := Price(entity, testParams(time.Now()), nil)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindInvalidInput))
}

func TestNoEventsMatchesUnshockedClosedForm(t *testing.T) {
	now := time.Now()
	entity := testEntity(0.2)

	result, err := Price(entity, testParams(now), nil)
	require.NoError(t, err)

	unshocked := Model{Spot: 100, Strike: 100, T: 0.25, Rate: 0.01, Sigma: 0.2}
	assert.Equal(t, unshocked.CallPrice(), result.Premium)
	assert.Equal(t, 0.2, result.AdjustedVol)
	assert.Zero(t, result.Shock)
}

func TestNearbyQuakeWidensVolAndPremium(t *testing.T) {
	now := time.Now()
	entity := testEntity(0.2)

	// Magnitude 7.0 roughly 5km north of the entity.
	event := models.SeismicEvent{
		ID:        "eq-1",
		Epicenter: models.Coordinates{Lat: tokyo.Lat + 0.045, Lon: tokyo.Lon},
		Magnitude: 7.0,
		Time:      now,
	}

	shocked, err := Price(entity, testParams(now), []models.SeismicEvent{event})
	require.NoError(t, err)
	unshocked, err := Price(entity, testParams(now), nil)
	require.NoError(t, err)

	assert.Greater(t, shocked.AdjustedVol, 0.2)
	assert.Greater(t, shocked.Premium, unshocked.Premium)
}

func TestAdjustedVolNeverBelowBaseline(t *testing.T) {
	now := time.Now()
	events := []models.SeismicEvent{
		{Epicenter: tokyo, Magnitude: 9.0, Time: now},
		{Epicenter: tokyo, Magnitude: 8.5, Time: now},
	}

	for _, vol := range []float64{0.05, 0.2, 0.6, 1.4} {
		result, err := Price(testEntity(vol), testParams(now), events)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, result.AdjustedVol, vol, "baseline %v", vol)
	}
}

func TestVolatilityCeilingCapsShock(t *testing.T) {
	now := time.Now()
	p := testParams(now)
	p.VolatilityCeiling = 0.5

	events := []models.SeismicEvent{
		{Epicenter: tokyo, Magnitude: 9.5, Time: now},
		{Epicenter: tokyo, Magnitude: 9.5, Time: now},
		{Epicenter: tokyo, Magnitude: 9.5, Time: now},
	}
	result, err := Price(testEntity(0.2), p, events)
	require.NoError(t, err)
	assert.Equal(t, 0.5, result.AdjustedVol)
}
