// Package config loads the service configuration: struct defaults, then
// environment overrides, then an optional YAML file read through viper.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

var validate = validator.New()

// HTTPServerConfig represents HTTP server configuration
type HTTPServerConfig struct {
	Host            string        `yaml:"host" json:"host"`
	Port            int           `yaml:"port" json:"port" validate:"gt=0,lte=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins" json:"allowed_origins"`
}

// EngineConfig carries the risk engine options. Weights, thresholds, decay
// and radius caps are configuration with documented defaults, not literals
// baked into the scoring logic.
type EngineConfig struct {
	PricingWeight      float64       `yaml:"pricing_weight" json:"pricing_weight" validate:"gte=0,lte=1"`
	ContagionWeight    float64       `yaml:"contagion_weight" json:"contagion_weight" validate:"gte=0,lte=1"`
	Decay              float64       `yaml:"decay" json:"decay" validate:"gt=0,lt=1"`
	MaxIterations      int           `yaml:"max_iterations" json:"max_iterations" validate:"gt=0"`
	ConvergenceEpsilon float64       `yaml:"convergence_epsilon" json:"convergence_epsilon" validate:"gt=0"`
	ShockRadiusKM      float64       `yaml:"shock_radius_km" json:"shock_radius_km" validate:"gt=0"`
	ShockDecayWindow   time.Duration `yaml:"shock_decay_window_s" json:"shock_decay_window_s"`
	VolatilityCeiling  float64       `yaml:"volatility_ceiling" json:"volatility_ceiling" validate:"gt=0"`
	TierThresholds     []float64     `yaml:"tier_thresholds" json:"tier_thresholds" validate:"len=3"`
	RiskFreeRate       float64       `yaml:"risk_free_rate" json:"risk_free_rate"`
	TimeToExpiryYears  float64       `yaml:"time_to_expiry_years" json:"time_to_expiry_years" validate:"gt=0"`
	VaRHorizonDays     int           `yaml:"var_horizon_days" json:"var_horizon_days" validate:"gt=0"`
	PricingScale       float64       `yaml:"pricing_scale" json:"pricing_scale" validate:"gt=0"`
	ContagionScale     float64       `yaml:"contagion_scale" json:"contagion_scale" validate:"gt=0"`
	Mode               string        `yaml:"mode" json:"mode" validate:"oneof=fused pricing contagion"`
	Interval           time.Duration `yaml:"interval" json:"interval"`
	Workers            int           `yaml:"workers" json:"workers" validate:"gt=0"`
}

// FeedsConfig configures the upstream market and seismic collaborators
type FeedsConfig struct {
	MarketURL     string        `yaml:"market_url" json:"market_url"`
	SeismicURL    string        `yaml:"seismic_url" json:"seismic_url"`
	Timeout       time.Duration `yaml:"timeout" json:"timeout"`
	SnapshotTTL   time.Duration `yaml:"snapshot_ttl" json:"snapshot_ttl"`
	StaleAfter    time.Duration `yaml:"stale_after" json:"stale_after"`
	ReferenceLat  float64       `yaml:"reference_lat" json:"reference_lat"`
	ReferenceLon  float64       `yaml:"reference_lon" json:"reference_lon"`
	SeismicMinMag float64       `yaml:"seismic_min_mag" json:"seismic_min_mag"`
}

// Config represents the application configuration
type Config struct {
	Server HTTPServerConfig `yaml:"server" json:"server"`
	Engine EngineConfig     `yaml:"engine" json:"engine"`
	Feeds  FeedsConfig      `yaml:"feeds" json:"feeds"`
	Redis  struct {
		Address  string `yaml:"address" json:"address"`
		Password string `yaml:"password" json:"password"`
		DB       int    `yaml:"db" json:"db"`
	} `yaml:"redis" json:"redis"`
	Kafka struct {
		Brokers []string `yaml:"brokers" json:"brokers"`
		Topic   string   `yaml:"topic" json:"topic"`
		Enabled bool     `yaml:"enabled" json:"enabled"`
	} `yaml:"kafka" json:"kafka"`
	Audit struct {
		DSN string `yaml:"dsn" json:"dsn"`
	} `yaml:"audit" json:"audit"`
	TopologyPath string `yaml:"topology_path" json:"topology_path" validate:"required"`
	Tracing      bool   `yaml:"tracing" json:"tracing"`
}

// LoadConfig loads the application configuration
func LoadConfig() (*Config, error) {
	config := &Config{}

	config.Server = HTTPServerConfig{
		Host:            "0.0.0.0",
		Port:            8080,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		AllowedOrigins:  []string{"*"},
	}

	// Engine defaults mirror the presentation-tier defaults of the original
	// dashboard; none are calibrated against historical catastrophe data.
	config.Engine = EngineConfig{
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

	config.Feeds = FeedsConfig{
		Timeout:       10 * time.Second,
		SnapshotTTL:   15 * time.Minute,
		StaleAfter:    2 * time.Minute,
		ReferenceLat:  35.6762,
		ReferenceLon:  139.6503,
		SeismicMinMag: 3.0,
	}

	config.Redis.Address = "localhost:6379"
	config.Kafka.Brokers = []string{"localhost:9092"}
	config.Kafka.Topic = "risk.scores"
	config.Audit.DSN = "file::memory:?cache=shared"
	config.TopologyPath = "config/topology.yaml"

	// Environment overrides
	if port, err := strconv.Atoi(os.Getenv("SERVER_PORT")); err == nil {
		config.Server.Port = port
	}
	if addr := os.Getenv("REDIS_ADDRESS"); addr != "" {
		config.Redis.Address = addr
	}
	if pwd := os.Getenv("REDIS_PASSWORD"); pwd != "" {
		config.Redis.Password = pwd
	}
	if db, err := strconv.Atoi(os.Getenv("REDIS_DB")); err == nil {
		config.Redis.DB = db
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		config.Kafka.Brokers = strings.Split(brokers, ",")
		config.Kafka.Enabled = true
	}
	if url := os.Getenv("MARKET_FEED_URL"); url != "" {
		config.Feeds.MarketURL = url
	}
	if url := os.Getenv("SEISMIC_FEED_URL"); url != "" {
		config.Feeds.SeismicURL = url
	}
	if path := os.Getenv("TOPOLOGY_PATH"); path != "" {
		config.TopologyPath = path
	}
	if dsn := os.Getenv("AUDIT_DSN"); dsn != "" {
		config.Audit.DSN = dsn
	}
	if tracing := os.Getenv("ENABLE_TRACING"); tracing != "" {
		config.Tracing = tracing == "true"
	}

	// Optional config file overrides
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/riskd")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		if viper.IsSet("server.port") {
			config.Server.Port = viper.GetInt("server.port")
		}
		if viper.IsSet("redis.address") {
			config.Redis.Address = viper.GetString("redis.address")
		}
		if viper.IsSet("kafka.brokers") {
			config.Kafka.Brokers = viper.GetStringSlice("kafka.brokers")
		}
		if viper.IsSet("kafka.enabled") {
			config.Kafka.Enabled = viper.GetBool("kafka.enabled")
		}
		if viper.IsSet("feeds.market_url") {
			config.Feeds.MarketURL = viper.GetString("feeds.market_url")
		}
		if viper.IsSet("feeds.seismic_url") {
			config.Feeds.SeismicURL = viper.GetString("feeds.seismic_url")
		}
		if viper.IsSet("topology_path") {
			config.TopologyPath = viper.GetString("topology_path")
		}

		if viper.IsSet("engine.pricing_weight") {
			config.Engine.PricingWeight = viper.GetFloat64("engine.pricing_weight")
		}
		if viper.IsSet("engine.contagion_weight") {
			config.Engine.ContagionWeight = viper.GetFloat64("engine.contagion_weight")
		}
		if viper.IsSet("engine.decay") {
			config.Engine.Decay = viper.GetFloat64("engine.decay")
		}
		if viper.IsSet("engine.max_iterations") {
			config.Engine.MaxIterations = viper.GetInt("engine.max_iterations")
		}
		if viper.IsSet("engine.convergence_epsilon") {
			config.Engine.ConvergenceEpsilon = viper.GetFloat64("engine.convergence_epsilon")
		}
		if viper.IsSet("engine.shock_radius_km") {
			config.Engine.ShockRadiusKM = viper.GetFloat64("engine.shock_radius_km")
		}
		if viper.IsSet("engine.shock_decay_window_s") {
			config.Engine.ShockDecayWindow = time.Duration(viper.GetInt("engine.shock_decay_window_s")) * time.Second
		}
		if viper.IsSet("engine.volatility_ceiling") {
			config.Engine.VolatilityCeiling = viper.GetFloat64("engine.volatility_ceiling")
		}
		if viper.IsSet("engine.tier_thresholds") {
			raw := viper.GetStringSlice("engine.tier_thresholds")
			thresholds := make([]float64, 0, len(raw))
			for _, s := range raw {
				v, err := strconv.ParseFloat(s, 64)
				if err != nil {
					return nil, fmt.Errorf("invalid tier threshold %q: %w", s, err)
				}
				thresholds = append(thresholds, v)
			}
			config.Engine.TierThresholds = thresholds
		}
		if viper.IsSet("engine.var_horizon_days") {
			config.Engine.VaRHorizonDays = viper.GetInt("engine.var_horizon_days")
		}
		if viper.IsSet("engine.mode") {
			config.Engine.Mode = viper.GetString("engine.mode")
		}
		if viper.IsSet("engine.interval") {
			config.Engine.Interval = viper.GetDuration("engine.interval")
		}
		if viper.IsSet("engine.workers") {
			config.Engine.Workers = viper.GetInt("engine.workers")
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := c.Engine.Validate(); err != nil {
		return err
	}
	return nil
}

// Validate checks the cross-field engine constraints: weights sum to 1 and
// tier thresholds strictly increase.
func (e *EngineConfig) Validate() error {
	if err := validate.Struct(e); err != nil {
		return fmt.Errorf("invalid engine options: %w", err)
	}
	const eps = 1e-9
	if sum := e.PricingWeight + e.ContagionWeight; sum < 1-eps || sum > 1+eps {
		return fmt.Errorf("pricing_weight + contagion_weight must equal 1, got %v", sum)
	}
	for i := 1; i < len(e.TierThresholds); i++ {
		if e.TierThresholds[i] <= e.TierThresholds[i-1] {
			return fmt.Errorf("tier_thresholds must be strictly increasing, got %v", e.TierThresholds)
		}
	}
	if e.ShockDecayWindow <= 0 {
		return fmt.Errorf("shock_decay_window_s must be positive")
	}
	return nil
}
