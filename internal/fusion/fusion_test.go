package fusion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwklurks/tokyo-market-risk-dashboard/pkg/models"
)

func testConfig() Config {
	return Config{
		PricingWeight:   0.6,
		ContagionWeight: 0.4,
		PricingScale:    1.0,
		ContagionScale:  100.0,
		TierThresholds:  []float64{25, 50, 75},
		Mode:            ModeFused,
	}
}

func mustEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	e, err := New(cfg)
	require.NoError(t, err)
	return e
}

func TestParseMode(t *testing.T) {
	for s, want := range map[string]Mode{
		"fused":     ModeFused,
		"pricing":   ModePricingOnly,
		"contagion": ModeContagionOnly,
	} {
		got, err := ParseMode(s)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseMode("hybrid")
	assert.Error(t, err)
}

func TestNewRejectsBadConfig(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"weights do not sum to one", func(c *Config) { c.ContagionWeight = 0.3 }},
		{"negative weight", func(c *Config) { c.PricingWeight = 1.2; c.ContagionWeight = -0.2 }},
		{"zero pricing scale", func(c *Config) { c.PricingScale = 0 }},
		{"negative contagion scale", func(c *Config) { c.ContagionScale = -100 }},
		{"wrong threshold count", func(c *Config) { c.TierThresholds = []float64{25, 50} }},
		{"non-increasing thresholds", func(c *Config) { c.TierThresholds = []float64{25, 25, 75} }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(&cfg)
			_, err := New(cfg)
			assert.Error(t, err)
		})
	}
}

func TestFuseWeightedAverage(t *testing.T) {
	e := mustEngine(t, testConfig())
	// 0.6*0.5 + 0.4*0.5 = 0.5 on the unit scale.
	assert.InDelta(t, 50.0, e.Fuse(0.5, 50), 1e-9)
	assert.Zero(t, e.Fuse(0, 0))
	assert.InDelta(t, 100.0, e.Fuse(1.0, 100), 1e-9)
}

func TestFuseClampsComponents(t *testing.T) {
	e := mustEngine(t, testConfig())
	// Components past their scale saturate rather than overshoot.
	assert.InDelta(t, 100.0, e.Fuse(5.0, 400), 1e-9)
	// Negative components floor at zero.
	assert.Zero(t, e.Fuse(-1.0, -20))
}

func TestFuseMonotone(t *testing.T) {
	e := mustEngine(t, testConfig())
	assert.GreaterOrEqual(t, e.Fuse(0.5, 50), e.Fuse(0.4, 50))
	assert.GreaterOrEqual(t, e.Fuse(0.5, 60), e.Fuse(0.5, 50))
}

func TestFuseModes(t *testing.T) {
	cfg := testConfig()
	cfg.Mode = ModePricingOnly
	pricingOnly := mustEngine(t, cfg)
	// Contagion is ignored entirely.
	assert.Equal(t, pricingOnly.Fuse(0.5, 0), pricingOnly.Fuse(0.5, 100))
	assert.InDelta(t, 50.0, pricingOnly.Fuse(0.5, 90), 1e-9)

	cfg.Mode = ModeContagionOnly
	contagionOnly := mustEngine(t, cfg)
	assert.Equal(t, contagionOnly.Fuse(0, 50), contagionOnly.Fuse(1.0, 50))
	assert.InDelta(t, 50.0, contagionOnly.Fuse(0.9, 50), 1e-9)
}

func TestTierBoundaries(t *testing.T) {
	e := mustEngine(t, testConfig())
	cases := []struct {
		score float64
		want  models.Tier
	}{
		{0, models.TierMonitor},
		{24.9, models.TierMonitor},
		{25, models.TierReview},
		{49.9, models.TierReview},
		{50, models.TierHedge},
		{74.9, models.TierHedge},
		{75, models.TierEscalate},
		{100, models.TierEscalate},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, e.TierFor(tc.score), "score %v", tc.score)
	}
}

func TestScoreRecord(t *testing.T) {
	e := mustEngine(t, testConfig())
	at := time.Now()
	s := e.Score("nikkei", 0.5, 50, true, at)

	assert.Equal(t, "nikkei", s.EntityID)
	assert.Equal(t, 0.5, s.Pricing)
	assert.Equal(t, 50.0, s.Contagion)
	assert.InDelta(t, 50.0, s.Fused, 1e-9)
	assert.Equal(t, models.TierHedge, s.Tier)
	assert.True(t, s.Approximate)
	assert.Equal(t, at, s.ComputedAt)
}
