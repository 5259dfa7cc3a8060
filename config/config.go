package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// Config is the root configuration for the engine
type Config struct {
	TradingConfig  TradingConfig  `json:"trading"`
	StrategyConfig StrategyConfig `json:"strategy"`
	FiltersConfig  FiltersConfig  `json:"filters"`
	RegimeConfig   RegimeConfig   `json:"regime"`
	RiskConfig     RiskConfig     `json:"risk"`
	FeesConfig     FeesConfig     `json:"fees"`
	FeedConfig     FeedConfig     `json:"feed"`
	LoggingConfig  LoggingConfig  `json:"logging"`
	MetricsConfig  MetricsConfig  `json:"metrics"`
	RedisConfig    RedisConfig    `json:"redis"`
	DatabaseConfig DatabaseConfig `json:"database"`
}

// TradingConfig holds the symbol universe and run mode
type TradingConfig struct {
	Symbols  []string `json:"symbols"`
	Interval string   `json:"interval"` // e.g. "5m", "15m"
	DryRun   bool     `json:"dry_run"`  // paper exchange instead of real orders
}

// StrategyConfig holds every knob of the Order-Block lifecycle
type StrategyConfig struct {
	// Detection thresholds
	ORBAtrMult   float64 `json:"orb_atr_mult"`   // breakout range vs ATR
	ORBVolMult   float64 `json:"orb_vol_mult"`   // breakout volume vs 50-bar average
	MinBodyRatio float64 `json:"min_body_ratio"` // body / range

	// Indicator periods feeding detection
	ATRPeriod       int `json:"atr_period"`
	VolumeAvgPeriod int `json:"volume_avg_period"`
	TrendSMAPeriod  int `json:"trend_sma_period"` // higher-timeframe trend proxy

	// New-block rejection filters
	MinSizeATRMult          float64 `json:"min_size_atr_mult"`          // OB size vs ATR
	MinTrendDistancePercent float64 `json:"min_trend_distance_percent"` // distance from trend SMA
	TrendSlopeBars          int     `json:"trend_slope_bars"`
	TrendSideBars           int     `json:"trend_side_bars"`     // window for sustained-trend check
	TrendSideMinBars        int     `json:"trend_side_min_bars"` // bars required on the right side
	FailedOBRejectBars      int     `json:"failed_ob_reject_bars"`
	FailedOBMemoryBars      int     `json:"failed_ob_memory_bars"`

	// Replacement policy
	EnableOBReplacement    bool    `json:"enable_ob_replacement"`
	ReplacementVolumeRatio float64 `json:"replacement_volume_ratio"`

	// Lifecycle
	OBMaxBars             int     `json:"ob_max_bars"`
	MinAwayMultRangebound float64 `json:"min_away_mult_rangebound"`
	MinAwayMultNormal     float64 `json:"min_away_mult_normal"`
	MinAwayMultTrending   float64 `json:"min_away_mult_trending"`
	RangeboundATRPercent  float64 `json:"rangebound_atr_percent"` // ATR% below this is rangebound
	TrendingATRPercent    float64 `json:"trending_atr_percent"`   // ATR% above this is trending
	OrderValidityBars     int     `json:"order_validity_bars"`
	ZoneExitBufferRatio   float64 `json:"zone_exit_buffer_ratio"` // fraction of OB size

	// Risk geometry
	SLBufferPercent float64 `json:"sl_buffer_percent"`
	TP1Ratio        float64 `json:"tp1_ratio"`
	RewardRiskRatio float64 `json:"reward_risk_ratio"`
	TP1ClosePercent float64 `json:"tp1_close_percent"` // fraction closed at TP1
	EnableRiskCap   bool    `json:"enable_risk_cap"`
	MaxRiskATR      float64 `json:"max_risk_atr"`

	// Time stops
	MaxHoldingBars      int `json:"max_holding_bars"`
	ReentryCooldownBars int `json:"reentry_cooldown_bars"`

	// Minimum history before the first decision
	WarmupBars int `json:"warmup_bars"`
}

// FiltersConfig selects and tunes the entry filter bank
type FiltersConfig struct {
	EnableATRRange bool    `json:"enable_atr_range"`
	ATRMinPercent  float64 `json:"atr_min_percent"`
	ATRMaxPercent  float64 `json:"atr_max_percent"`

	EnableCVD    bool `json:"enable_cvd"`
	CVDLookback  int  `json:"cvd_lookback"`
	CVDTrendBars int  `json:"cvd_trend_bars"`

	EnableBOS         bool `json:"enable_bos"`
	StructureLookback int  `json:"structure_lookback"`
	SwingStrength     int  `json:"swing_strength"`

	EnableLiquiditySweep bool `json:"enable_liquidity_sweep"`
	SweepRecentBars      int  `json:"sweep_recent_bars"`

	EnableEMAAlignment bool `json:"enable_ema_alignment"`
	EMAFastPeriod      int  `json:"ema_fast_period"`
	EMAMediumPeriod    int  `json:"ema_medium_period"`
	EMASlowPeriod      int  `json:"ema_slow_period"`

	EnableFVG        bool    `json:"enable_fvg"`
	FVGMinGapPercent float64 `json:"fvg_min_gap_percent"`
	FVGRecentBars    int     `json:"fvg_recent_bars"`

	EnableADX bool    `json:"enable_adx"`
	ADXPeriod int     `json:"adx_period"`
	ADXMin    float64 `json:"adx_min"`

	EnableRSI     bool    `json:"enable_rsi"`
	RSIPeriod     int     `json:"rsi_period"`
	RSIOverbought float64 `json:"rsi_overbought"`
	RSIOversold   float64 `json:"rsi_oversold"`
	RSIContrarian bool    `json:"rsi_contrarian"` // require an extreme instead of rejecting one

	EnableRegime        bool    `json:"enable_regime"`
	RegimeRequired      string  `json:"regime_required"` // "", RANGING, TRENDING, VOLATILE
	RegimeMinConfidence float64 `json:"regime_min_confidence"`
}

// RegimeConfig tunes the market regime classifier
type RegimeConfig struct {
	ADXPeriod       int     `json:"adx_period"`
	ATRPeriod       int     `json:"atr_period"`
	BBPeriod        int     `json:"bb_period"`
	BBStdDev        float64 `json:"bb_std_dev"`
	CacheTTLMinutes int     `json:"cache_ttl_minutes"`
}

// RiskConfig holds capital and sizing bounds
type RiskConfig struct {
	InitialCapital         float64 `json:"initial_capital"`
	AccountCapitalFraction float64 `json:"account_capital_fraction"`
	MinMargin              float64 `json:"min_margin"`
	MaxMargin              float64 `json:"max_margin"`
}

// FeesConfig holds leverage, fee and slippage assumptions
type FeesConfig struct {
	Leverage         float64 `json:"leverage"`
	MakerFeePercent  float64 `json:"maker_fee_percent"`
	TakerFeePercent  float64 `json:"taker_fee_percent"`
	SlippagePercent  float64 `json:"slippage_percent"`
}

// FeedConfig holds live candle stream settings
type FeedConfig struct {
	StreamURL          string `json:"stream_url"`
	ReconnectDelaySecs int    `json:"reconnect_delay_secs"`
	MaxReconnects      int    `json:"max_reconnects"` // 0 = unlimited
}

// LoggingConfig holds zerolog settings
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Pretty bool   `json:"pretty"` // console writer instead of JSON
}

// MetricsConfig holds the prometheus endpoint settings
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
}

// RedisConfig enables the Redis-backed regime cache
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// DatabaseConfig enables the Postgres trade/signal sink
type DatabaseConfig struct {
	Enabled bool   `json:"enabled"`
	URL     string `json:"url"`
}

// DefaultConfig returns the canonical defaults for every knob
func DefaultConfig() *Config {
	return &Config{
		TradingConfig: TradingConfig{
			Symbols:  []string{"BTCUSDT"},
			Interval: "5m",
			DryRun:   true,
		},
		StrategyConfig: StrategyConfig{
			ORBAtrMult:   1.2,
			ORBVolMult:   1.8,
			MinBodyRatio: 0.6,

			ATRPeriod:       14,
			VolumeAvgPeriod: 50,
			TrendSMAPeriod:  600,

			MinSizeATRMult:          0.5,
			MinTrendDistancePercent: 2.0,
			TrendSlopeBars:          20,
			TrendSideBars:           20,
			TrendSideMinBars:        10,
			FailedOBRejectBars:      20,
			FailedOBMemoryBars:      50,

			EnableOBReplacement:    true,
			ReplacementVolumeRatio: 1.5,

			OBMaxBars:             20,
			MinAwayMultRangebound: 0.5,
			MinAwayMultNormal:     0.75,
			MinAwayMultTrending:   1.0,
			RangeboundATRPercent:  1.0,
			TrendingATRPercent:    2.0,
			OrderValidityBars:     3,
			ZoneExitBufferRatio:   0.5,

			SLBufferPercent: 0.5,
			TP1Ratio:        1.0,
			RewardRiskRatio: 2.0,
			TP1ClosePercent: 0.8,
			EnableRiskCap:   true,
			MaxRiskATR:      2.0,

			MaxHoldingBars:      30,
			ReentryCooldownBars: 5,

			WarmupBars: 700,
		},
		FiltersConfig: FiltersConfig{
			EnableATRRange: true,
			ATRMinPercent:  0.4,
			ATRMaxPercent:  3.0,

			EnableCVD:    true,
			CVDLookback:  50,
			CVDTrendBars: 10,

			EnableBOS:         false,
			StructureLookback: 40,
			SwingStrength:     2,

			EnableLiquiditySweep: false,
			SweepRecentBars:      5,

			EnableEMAAlignment: false,
			EMAFastPeriod:      8,
			EMAMediumPeriod:    21,
			EMASlowPeriod:      55,

			EnableFVG:        false,
			FVGMinGapPercent: 0.1,
			FVGRecentBars:    15,

			EnableADX: false,
			ADXPeriod: 14,
			ADXMin:    25,

			EnableRSI:     false,
			RSIPeriod:     14,
			RSIOverbought: 70,
			RSIOversold:   30,
			RSIContrarian: false,

			EnableRegime:        false,
			RegimeRequired:      "",
			RegimeMinConfidence: 40,
		},
		RegimeConfig: RegimeConfig{
			ADXPeriod:       14,
			ATRPeriod:       14,
			BBPeriod:        20,
			BBStdDev:        2.0,
			CacheTTLMinutes: 15,
		},
		RiskConfig: RiskConfig{
			InitialCapital:         10000,
			AccountCapitalFraction: 0.1,
			MinMargin:              10,
			MaxMargin:              1000,
		},
		FeesConfig: FeesConfig{
			Leverage:        10,
			MakerFeePercent: 0.02,
			TakerFeePercent: 0.05,
			SlippagePercent: 0.02,
		},
		FeedConfig: FeedConfig{
			StreamURL:          "wss://fstream.binance.com/stream",
			ReconnectDelaySecs: 5,
			MaxReconnects:      0,
		},
		LoggingConfig: LoggingConfig{
			Level:  "info",
			Pretty: false,
		},
		MetricsConfig: MetricsConfig{
			Enabled: true,
			Addr:    ":9100",
		},
		RedisConfig: RedisConfig{
			Enabled: false,
			Address: "localhost:6379",
		},
		DatabaseConfig: DatabaseConfig{
			Enabled: false,
		},
	}
}

// Load reads configuration: defaults, then the JSON file at path (if any),
// then environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides; these take
// precedence over the config file.
func applyEnvOverrides(cfg *Config) {
	cfg.TradingConfig.Interval = getEnvOrDefault("TRADING_INTERVAL", cfg.TradingConfig.Interval)
	cfg.TradingConfig.DryRun = getEnvBoolOrDefault("TRADING_DRY_RUN", cfg.TradingConfig.DryRun)

	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", cfg.LoggingConfig.Level)
	cfg.LoggingConfig.Pretty = getEnvBoolOrDefault("LOG_PRETTY", cfg.LoggingConfig.Pretty)

	cfg.MetricsConfig.Enabled = getEnvBoolOrDefault("METRICS_ENABLED", cfg.MetricsConfig.Enabled)
	cfg.MetricsConfig.Addr = getEnvOrDefault("METRICS_ADDR", cfg.MetricsConfig.Addr)

	cfg.FeedConfig.StreamURL = getEnvOrDefault("FEED_STREAM_URL", cfg.FeedConfig.StreamURL)

	cfg.RedisConfig.Enabled = getEnvBoolOrDefault("REDIS_ENABLED", cfg.RedisConfig.Enabled)
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDRESS", cfg.RedisConfig.Address)
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", cfg.RedisConfig.DB)

	cfg.DatabaseConfig.Enabled = getEnvBoolOrDefault("DATABASE_ENABLED", cfg.DatabaseConfig.Enabled)
	cfg.DatabaseConfig.URL = getEnvOrDefault("DATABASE_URL", cfg.DatabaseConfig.URL)

	cfg.RiskConfig.InitialCapital = getEnvFloatOrDefault("RISK_INITIAL_CAPITAL", cfg.RiskConfig.InitialCapital)
}

// Validate checks the configuration for values the engine cannot run with
func (c *Config) Validate() error {
	s := &c.StrategyConfig

	if s.ORBAtrMult <= 0 || s.ORBVolMult <= 0 {
		return fmt.Errorf("strategy: breakout multipliers must be positive")
	}
	if s.MinBodyRatio < 0 || s.MinBodyRatio > 1 {
		return fmt.Errorf("strategy: min_body_ratio must be in [0,1]")
	}
	if s.TP1ClosePercent <= 0 || s.TP1ClosePercent > 1 {
		return fmt.Errorf("strategy: tp1_close_percent must be in (0,1]")
	}
	if s.RewardRiskRatio < s.TP1Ratio {
		return fmt.Errorf("strategy: reward_risk_ratio must be >= tp1_ratio")
	}
	if s.OrderValidityBars <= 0 || s.OBMaxBars <= 0 || s.MaxHoldingBars <= 0 {
		return fmt.Errorf("strategy: bar limits must be positive")
	}
	if s.WarmupBars <= s.TrendSMAPeriod+s.TrendSlopeBars {
		return fmt.Errorf("strategy: warmup_bars must exceed trend_sma_period + trend_slope_bars")
	}

	r := &c.RiskConfig
	if r.InitialCapital <= 0 {
		return fmt.Errorf("risk: initial_capital must be positive")
	}
	if r.MinMargin <= 0 || r.MaxMargin < r.MinMargin {
		return fmt.Errorf("risk: margin bounds invalid")
	}
	if r.AccountCapitalFraction <= 0 || r.AccountCapitalFraction > 1 {
		return fmt.Errorf("risk: account_capital_fraction must be in (0,1]")
	}

	if c.FeesConfig.Leverage <= 0 {
		return fmt.Errorf("fees: leverage must be positive")
	}

	if len(c.TradingConfig.Symbols) == 0 {
		return fmt.Errorf("trading: at least one symbol required")
	}

	return nil
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBoolOrDefault(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return def
}

func getEnvIntOrDefault(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvFloatOrDefault(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
