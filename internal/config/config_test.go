package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validEngineConfig() EngineConfig {
	return EngineConfig{
		PricingWeight:      0.6,
		ContagionWeight:    0.4,
		Decay:              0.5,
		MaxIterations:      50,
		ConvergenceEpsilon: 1e-4,
		ShockRadiusKM:      500,
		ShockDecayWindow:   72 * time.Hour,
		VolatilityCeiling:  1.5,
		TierThresholds:     []float64{25, 50, 75},
		RiskFreeRate:       0.005,
		TimeToExpiryYears:  0.25,
		VaRHorizonDays:     10,
		PricingScale:       1.0,
		ContagionScale:     100.0,
		Mode:               "fused",
		Interval:           30 * time.Second,
		Workers:            8,
	}
}

func TestEngineConfigValid(t *testing.T) {
	cfg := validEngineConfig()
	assert.NoError(t, cfg.Validate())
}

func TestEngineConfigRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*EngineConfig)
	}{
		{"weights do not sum to one", func(c *EngineConfig) { c.ContagionWeight = 0.3 }},
		{"decay at one", func(c *EngineConfig) { c.Decay = 1.0 }},
		{"decay at zero", func(c *EngineConfig) { c.Decay = 0 }},
		{"zero iterations", func(c *EngineConfig) { c.MaxIterations = 0 }},
		{"zero epsilon", func(c *EngineConfig) { c.ConvergenceEpsilon = 0 }},
		{"zero radius", func(c *EngineConfig) { c.ShockRadiusKM = 0 }},
		{"zero decay window", func(c *EngineConfig) { c.ShockDecayWindow = 0 }},
		{"zero ceiling", func(c *EngineConfig) { c.VolatilityCeiling = 0 }},
		{"two thresholds", func(c *EngineConfig) { c.TierThresholds = []float64{25, 50} }},
		{"non-increasing thresholds", func(c *EngineConfig) { c.TierThresholds = []float64{25, 25, 75} }},
		{"zero expiry", func(c *EngineConfig) { c.TimeToExpiryYears = 0 }},
		{"zero var horizon", func(c *EngineConfig) { c.VaRHorizonDays = 0 }},
		{"unknown mode", func(c *EngineConfig) { c.Mode = "hybrid" }},
		{"zero workers", func(c *EngineConfig) { c.Workers = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validEngineConfig()
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 0.6, cfg.Engine.PricingWeight)
	assert.Equal(t, 0.4, cfg.Engine.ContagionWeight)
	assert.Equal(t, 72*time.Hour, cfg.Engine.ShockDecayWindow)
	assert.Equal(t, []float64{25, 50, 75}, cfg.Engine.TierThresholds)
	assert.Equal(t, "fused", cfg.Engine.Mode)
	assert.Equal(t, "config/topology.yaml", cfg.TopologyPath)
	assert.Equal(t, "localhost:6379", cfg.Redis.Address)
	assert.False(t, cfg.Kafka.Enabled)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9999")
	t.Setenv("REDIS_ADDRESS", "redis.internal:6380")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("TOPOLOGY_PATH", "/etc/riskd/topology.yaml")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "redis.internal:6380", cfg.Redis.Address)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Kafka.Enabled)
	assert.Equal(t, "/etc/riskd/topology.yaml", cfg.TopologyPath)
}
