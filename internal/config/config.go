package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App    AppConfig    `mapstructure:"app"`
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
	DB     DBConfig     `mapstructure:"db"`
	Cron   CronConfig   `mapstructure:"cron"`

	Export ExportConfig `mapstructure:"export"`
	Risk   RiskConfig   `mapstructure:"risk"`
	Goals  GoalsConfig  `mapstructure:"goals"`
	Equity EquityConfig `mapstructure:"equity"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type CronConfig struct {
	Enabled                  bool   `mapstructure:"enabled"`
	PerformancePrune         string `mapstructure:"performance_prune"`
	EquityAudit              string `mapstructure:"equity_audit"`
	PerformanceRetentionDays int    `mapstructure:"performance_retention_days"`
}

// ExportConfig controls the export job queue, the polling worker and the
// download token gate.
type ExportConfig struct {
	TokenSecret      string        `mapstructure:"token_secret"`
	TokenTTL         time.Duration `mapstructure:"token_ttl"`
	PollInterval     time.Duration `mapstructure:"poll_interval"`
	BatchSize        int           `mapstructure:"batch_size"`
	MaxAttempts      int           `mapstructure:"max_attempts"`
	StaleAfter       time.Duration `mapstructure:"stale_after"`
	MaxActivePerUser int           `mapstructure:"max_active_per_user"`
	StreamThreshold  int           `mapstructure:"stream_threshold"`
	MemorySoftLimit  int64         `mapstructure:"memory_soft_limit_bytes"`
	BackoffBase      time.Duration `mapstructure:"backoff_base"`
	BackoffCap       time.Duration `mapstructure:"backoff_cap"`
}

type RiskConfig struct {
	DefaultMaxDailyLossPct    float64       `mapstructure:"default_max_daily_loss_pct"`
	DefaultMaxConsecutiveLoss int           `mapstructure:"default_max_consecutive_losses"`
	DefaultRiskPerTradePct    float64       `mapstructure:"default_risk_per_trade_pct"`
	BreachSuppressionWindow   time.Duration `mapstructure:"breach_suppression_window"`
}

type GoalsConfig struct {
	DebounceInterval time.Duration `mapstructure:"debounce_interval"`
	StreakLookback   int           `mapstructure:"streak_lookback_days"`
}

type EquityConfig struct {
	DefaultInitialEquity float64 `mapstructure:"default_initial_equity"`
	Tolerance            float64 `mapstructure:"tolerance"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TJ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.performance_prune", "@every 24h")
	v.SetDefault("cron.equity_audit", "@daily")
	v.SetDefault("cron.performance_retention_days", 30)

	v.SetDefault("export.token_secret", "")
	v.SetDefault("export.token_ttl", "10m")
	v.SetDefault("export.poll_interval", "1s")
	v.SetDefault("export.batch_size", 5)
	v.SetDefault("export.max_attempts", 3)
	v.SetDefault("export.stale_after", "15s")
	v.SetDefault("export.max_active_per_user", 5)
	v.SetDefault("export.stream_threshold", 5000)
	v.SetDefault("export.memory_soft_limit_bytes", 32<<20)
	v.SetDefault("export.backoff_base", "500ms")
	v.SetDefault("export.backoff_cap", "30s")

	v.SetDefault("risk.default_max_daily_loss_pct", 3.0)
	v.SetDefault("risk.default_max_consecutive_losses", 5)
	v.SetDefault("risk.default_risk_per_trade_pct", 1.0)
	v.SetDefault("risk.breach_suppression_window", "30m")

	v.SetDefault("goals.debounce_interval", "500ms")
	v.SetDefault("goals.streak_lookback_days", 180)

	v.SetDefault("equity.default_initial_equity", 10000)
	v.SetDefault("equity.tolerance", 0.009)

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
