package config

import (
	"encoding/json"
	"log"
	"os"
	"time"
)

// Config holds all configuration for the jobadmin application.
// Values are loaded from environment variables; see printUsage() for the full list.
type Config struct {
	DatabaseURL string `json:"database_url"`
	RedisAddr   string `json:"redis_addr,omitempty"`
	HTTPAddr    string `json:"http_addr"`

	// AccessToken guards the executor-facing endpoints and is attached to
	// outbound trigger requests. Empty disables the check.
	AccessToken string `json:"access_token,omitempty"`

	TriggerTimeout    time.Duration `json:"-"`
	TriggerTimeoutStr string        `json:"trigger_timeout"`

	// HeartbeatTimeout is the registry liveness cutoff: entries older than
	// this are considered dead.
	HeartbeatTimeout    time.Duration `json:"-"`
	HeartbeatTimeoutStr string        `json:"heartbeat_timeout"`

	DBOpTimeout    time.Duration `json:"-"`
	DBOpTimeoutStr string        `json:"db_op_timeout"`

	DBMaxOpenConns       int           `json:"db_max_open_conns"`
	DBMaxIdleConns       int           `json:"db_max_idle_conns"`
	DBConnMaxLifetime    time.Duration `json:"-"`
	DBConnMaxLifetimeStr string        `json:"db_conn_max_lifetime"`
	DBConnMaxIdleTime    time.Duration `json:"-"`
	DBConnMaxIdleTimeStr string        `json:"db_conn_max_idle_time"`

	HTTPShutdownTimeout     time.Duration `json:"-"`
	HTTPShutdownTimeoutStr  string        `json:"http_shutdown_timeout"`
	CallbackDrainTimeout    time.Duration `json:"-"`
	CallbackDrainTimeoutStr string        `json:"callback_drain_timeout"`

	MetricsEnabled bool   `json:"metrics_enabled"`
	MetricsPath    string `json:"metrics_path"`
	MetricsPort    string `json:"metrics_port"`

	JanitorEnabled     bool          `json:"janitor_enabled"`
	JanitorInterval    time.Duration `json:"-"`
	JanitorIntervalStr string        `json:"janitor_interval"`
	JanitorBatchSize   int           `json:"janitor_batch_size"`

	CallbackBufferSize int `json:"callback_buffer_size"`

	// CircuitBreakerThreshold: 0 disables the circuit breaker.
	CircuitBreakerThreshold   int           `json:"circuit_breaker_threshold"`
	CircuitBreakerCooldown    time.Duration `json:"-"`
	CircuitBreakerCooldownStr string        `json:"circuit_breaker_cooldown"`

	// LeaderLockKey: all instances sharing the same database must use the same key.
	LeaderLockKey int64 `json:"leader_lock_key"`

	// LeaderRetryInterval determines the maximum failover gap.
	LeaderRetryInterval    time.Duration `json:"-"`
	LeaderRetryIntervalStr string        `json:"leader_retry_interval"`

	// LeaderHeartbeatInterval: pings the dedicated connection to detect local
	// connection death. Does NOT renew the advisory lock.
	LeaderHeartbeatInterval    time.Duration `json:"-"`
	LeaderHeartbeatIntervalStr string        `json:"leader_heartbeat_interval"`
}

// Load reads configuration from environment variables with defaults.
func Load() Config {
	cfg := Config{
		DatabaseURL:             os.Getenv("DATABASE_URL"),
		RedisAddr:               os.Getenv("REDIS_ADDR"),
		HTTPAddr:                os.Getenv("HTTP_ADDR"),
		AccessToken:             os.Getenv("ACCESS_TOKEN"),
		TriggerTimeoutStr:       os.Getenv("TRIGGER_TIMEOUT"),
		HeartbeatTimeoutStr:     os.Getenv("HEARTBEAT_TIMEOUT"),
		DBOpTimeoutStr:          os.Getenv("DB_OP_TIMEOUT"),
		DBConnMaxLifetimeStr:    os.Getenv("DB_CONN_MAX_LIFETIME"),
		DBConnMaxIdleTimeStr:    os.Getenv("DB_CONN_MAX_IDLE_TIME"),
		HTTPShutdownTimeoutStr:  os.Getenv("HTTP_SHUTDOWN_TIMEOUT"),
		CallbackDrainTimeoutStr: os.Getenv("CALLBACK_DRAIN_TIMEOUT"),
		MetricsEnabled:          os.Getenv("METRICS_ENABLED") == "true",
		MetricsPath:             os.Getenv("METRICS_PATH"),
		MetricsPort:             os.Getenv("METRICS_PORT"),
		JanitorEnabled:          os.Getenv("JANITOR_ENABLED") != "false",
		JanitorIntervalStr:      os.Getenv("JANITOR_INTERVAL"),
	}

	if batchStr := os.Getenv("JANITOR_BATCH_SIZE"); batchStr != "" {
		if batch, err := parseInt(batchStr); err == nil && batch > 0 {
			cfg.JanitorBatchSize = batch
		} else {
			log.Printf("config: invalid JANITOR_BATCH_SIZE %q (must be a positive integer), using default 100", batchStr)
		}
	}
	if cfg.JanitorBatchSize == 0 {
		cfg.JanitorBatchSize = 100
	}

	if bufStr := os.Getenv("CALLBACK_BUFFER_SIZE"); bufStr != "" {
		if n, err := parseInt(bufStr); err == nil && n > 0 {
			cfg.CallbackBufferSize = n
		} else {
			log.Printf("config: invalid CALLBACK_BUFFER_SIZE %q (must be a positive integer), using default 1000", bufStr)
		}
	}
	if cfg.CallbackBufferSize == 0 {
		cfg.CallbackBufferSize = 1000
	}

	if cbThreshStr := os.Getenv("CIRCUIT_BREAKER_THRESHOLD"); cbThreshStr != "" {
		if n, err := parseInt(cbThreshStr); err == nil {
			cfg.CircuitBreakerThreshold = n
		} else {
			log.Printf("config: invalid CIRCUIT_BREAKER_THRESHOLD %q, using default 5", cbThreshStr)
		}
	}
	if cfg.CircuitBreakerThreshold == 0 && os.Getenv("CIRCUIT_BREAKER_THRESHOLD") == "" {
		cfg.CircuitBreakerThreshold = 5
	}

	cfg.CircuitBreakerCooldownStr = os.Getenv("CIRCUIT_BREAKER_COOLDOWN")
	cfg.LeaderRetryIntervalStr = os.Getenv("LEADER_RETRY_INTERVAL")
	cfg.LeaderHeartbeatIntervalStr = os.Getenv("LEADER_HEARTBEAT_INTERVAL")

	if lockKeyStr := os.Getenv("LEADER_LOCK_KEY"); lockKeyStr != "" {
		if n, err := parseInt(lockKeyStr); err == nil && n > 0 {
			cfg.LeaderLockKey = int64(n)
		} else {
			log.Printf("config: invalid LEADER_LOCK_KEY %q (must be a positive integer), using default 847291", lockKeyStr)
		}
	}
	if cfg.LeaderLockKey == 0 {
		cfg.LeaderLockKey = 847291
	}

	if maxOpenStr := os.Getenv("DB_MAX_OPEN_CONNS"); maxOpenStr != "" {
		if n, err := parseInt(maxOpenStr); err == nil && n > 0 {
			cfg.DBMaxOpenConns = n
		}
	}
	if cfg.DBMaxOpenConns == 0 {
		cfg.DBMaxOpenConns = 25
	}

	if maxIdleStr := os.Getenv("DB_MAX_IDLE_CONNS"); maxIdleStr != "" {
		if n, err := parseInt(maxIdleStr); err == nil && n > 0 {
			cfg.DBMaxIdleConns = n
		}
	}
	if cfg.DBMaxIdleConns == 0 {
		cfg.DBMaxIdleConns = 5
	}

	// Support Railway's PORT variable as fallback for HTTP_ADDR.
	if cfg.HTTPAddr == "" {
		if port := os.Getenv("PORT"); port != "" {
			cfg.HTTPAddr = ":" + port
		} else {
			cfg.HTTPAddr = ":8080"
		}
	}
	if cfg.TriggerTimeoutStr == "" {
		cfg.TriggerTimeoutStr = "3s"
	}
	if cfg.HeartbeatTimeoutStr == "" {
		cfg.HeartbeatTimeoutStr = "90s"
	}
	if cfg.DBOpTimeoutStr == "" {
		cfg.DBOpTimeoutStr = "5s"
	}
	if cfg.DBConnMaxLifetimeStr == "" {
		cfg.DBConnMaxLifetimeStr = "30m"
	}
	if cfg.DBConnMaxIdleTimeStr == "" {
		cfg.DBConnMaxIdleTimeStr = "5m"
	}
	if cfg.HTTPShutdownTimeoutStr == "" {
		cfg.HTTPShutdownTimeoutStr = "10s"
	}
	if cfg.CallbackDrainTimeoutStr == "" {
		cfg.CallbackDrainTimeoutStr = "30s"
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if cfg.MetricsPort == "" {
		cfg.MetricsPort = "9090"
	}
	if cfg.JanitorIntervalStr == "" {
		cfg.JanitorIntervalStr = "30s"
	}
	if cfg.CircuitBreakerCooldownStr == "" {
		cfg.CircuitBreakerCooldownStr = "2m"
	}
	if cfg.LeaderRetryIntervalStr == "" {
		cfg.LeaderRetryIntervalStr = "5s"
	}
	if cfg.LeaderHeartbeatIntervalStr == "" {
		cfg.LeaderHeartbeatIntervalStr = "2s"
	}

	// Parse durations; validation is handled separately by Validate().
	if d, err := time.ParseDuration(cfg.TriggerTimeoutStr); err == nil {
		cfg.TriggerTimeout = d
	}
	if d, err := time.ParseDuration(cfg.HeartbeatTimeoutStr); err == nil {
		cfg.HeartbeatTimeout = d
	}
	if d, err := time.ParseDuration(cfg.DBOpTimeoutStr); err == nil {
		cfg.DBOpTimeout = d
	}
	if d, err := time.ParseDuration(cfg.DBConnMaxLifetimeStr); err == nil {
		cfg.DBConnMaxLifetime = d
	}
	if d, err := time.ParseDuration(cfg.DBConnMaxIdleTimeStr); err == nil {
		cfg.DBConnMaxIdleTime = d
	}
	if d, err := time.ParseDuration(cfg.HTTPShutdownTimeoutStr); err == nil {
		cfg.HTTPShutdownTimeout = d
	}
	if d, err := time.ParseDuration(cfg.CallbackDrainTimeoutStr); err == nil {
		cfg.CallbackDrainTimeout = d
	}
	if d, err := time.ParseDuration(cfg.JanitorIntervalStr); err == nil {
		cfg.JanitorInterval = d
	}
	if d, err := time.ParseDuration(cfg.CircuitBreakerCooldownStr); err == nil {
		cfg.CircuitBreakerCooldown = d
	}
	if d, err := time.ParseDuration(cfg.LeaderRetryIntervalStr); err == nil {
		cfg.LeaderRetryInterval = d
	}
	if d, err := time.ParseDuration(cfg.LeaderHeartbeatIntervalStr); err == nil {
		cfg.LeaderHeartbeatInterval = d
	}

	return cfg
}

// parseInt parses a string as an integer.
func parseInt(s string) (int, error) {
	var n int
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, os.ErrInvalid
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}

// MaskedJSON returns the configuration as JSON with secrets masked.
func (c Config) MaskedJSON() ([]byte, error) {
	masked := struct {
		DatabaseURL             string `json:"database_url"`
		RedisAddr               string `json:"redis_addr,omitempty"`
		HTTPAddr                string `json:"http_addr"`
		AccessToken             string `json:"access_token,omitempty"`
		TriggerTimeout          string `json:"trigger_timeout"`
		HeartbeatTimeout        string `json:"heartbeat_timeout"`
		DBOpTimeout             string `json:"db_op_timeout"`
		DBMaxOpenConns          int    `json:"db_max_open_conns"`
		DBMaxIdleConns          int    `json:"db_max_idle_conns"`
		DBConnMaxLifetime       string `json:"db_conn_max_lifetime"`
		DBConnMaxIdleTime       string `json:"db_conn_max_idle_time"`
		HTTPShutdownTimeout     string `json:"http_shutdown_timeout"`
		CallbackDrainTimeout    string `json:"callback_drain_timeout"`
		MetricsEnabled          bool   `json:"metrics_enabled"`
		MetricsPath             string `json:"metrics_path"`
		MetricsPort             string `json:"metrics_port"`
		JanitorEnabled          bool   `json:"janitor_enabled"`
		JanitorInterval         string `json:"janitor_interval"`
		JanitorBatchSize        int    `json:"janitor_batch_size"`
		CallbackBufferSize      int    `json:"callback_buffer_size"`
		CircuitBreakerThreshold int    `json:"circuit_breaker_threshold"`
		CircuitBreakerCooldown  string `json:"circuit_breaker_cooldown"`
		LeaderLockKey           int64  `json:"leader_lock_key"`
		LeaderRetryInterval     string `json:"leader_retry_interval"`
		LeaderHeartbeatInterval string `json:"leader_heartbeat_interval"`
	}{
		DatabaseURL:             maskSecret(c.DatabaseURL),
		RedisAddr:               c.RedisAddr,
		HTTPAddr:                c.HTTPAddr,
		AccessToken:             maskToken(c.AccessToken),
		TriggerTimeout:          c.TriggerTimeoutStr,
		HeartbeatTimeout:        c.HeartbeatTimeoutStr,
		DBOpTimeout:             c.DBOpTimeoutStr,
		DBMaxOpenConns:          c.DBMaxOpenConns,
		DBMaxIdleConns:          c.DBMaxIdleConns,
		DBConnMaxLifetime:       c.DBConnMaxLifetimeStr,
		DBConnMaxIdleTime:       c.DBConnMaxIdleTimeStr,
		HTTPShutdownTimeout:     c.HTTPShutdownTimeoutStr,
		CallbackDrainTimeout:    c.CallbackDrainTimeoutStr,
		MetricsEnabled:          c.MetricsEnabled,
		MetricsPath:             c.MetricsPath,
		MetricsPort:             c.MetricsPort,
		JanitorEnabled:          c.JanitorEnabled,
		JanitorInterval:         c.JanitorIntervalStr,
		JanitorBatchSize:        c.JanitorBatchSize,
		CallbackBufferSize:      c.CallbackBufferSize,
		CircuitBreakerThreshold: c.CircuitBreakerThreshold,
		CircuitBreakerCooldown:  c.CircuitBreakerCooldownStr,
		LeaderLockKey:           c.LeaderLockKey,
		LeaderRetryInterval:     c.LeaderRetryIntervalStr,
		LeaderHeartbeatInterval: c.LeaderHeartbeatIntervalStr,
	}
	return json.MarshalIndent(masked, "", "  ")
}

// maskSecret masks a secret value, preserving only the URI scheme if present.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if len(s) >= len(scheme) && s[:len(scheme)] == scheme {
			return scheme + "***"
		}
	}
	return "***"
}

// maskToken hides the token entirely, signalling only that one is set.
func maskToken(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}
