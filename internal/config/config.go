package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the full runtime configuration. Precedence is defaults,
// then a .env file if present, then real environment variables (godotenv
// never overrides variables already set in the environment).
type Config struct {
	HTTP      *HTTPConfig      `json:"http"`
	WebSocket *WebSocketConfig `json:"websocket"`
	Store     *StoreConfig     `json:"store"`
	Executor  *ExecutorConfig  `json:"executor"`
	Archive   *ArchiveConfig   `json:"archive"`
	Logging   *LoggingConfig   `json:"logging"`
}

type HTTPConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

type WebSocketConfig struct {
	PingInterval time.Duration `json:"ping_interval"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	SendBuffer   int           `json:"send_buffer"`
}

// StoreConfig controls the file session store.
type StoreConfig struct {
	Dir           string        `json:"dir"`
	EmptyTimeout  time.Duration `json:"empty_timeout"`
	CleanupPeriod time.Duration `json:"cleanup_period"`
	CacheTTL      time.Duration `json:"cache_ttl"`
}

// ExecutorConfig bounds the sandboxed code runner.
type ExecutorConfig struct {
	Timeout   time.Duration `json:"timeout"`
	MaxOutput int64         `json:"max_output"`
	WorkDir   string        `json:"work_dir"`
}

type ArchiveConfig struct {
	Path string `json:"path"`
}

type LoggingConfig struct {
	FilePath   string `json:"file_path"`
	Production bool   `json:"production"`
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() *Config {
	return &Config{
		HTTP: &HTTPConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		WebSocket: &WebSocketConfig{
			PingInterval: 30 * time.Second,
			ReadTimeout:  60 * time.Second,
			WriteTimeout: 10 * time.Second,
			SendBuffer:   100,
		},
		Store: &StoreConfig{
			Dir:           "./tmp/sessions",
			EmptyTimeout:  30 * time.Minute,
			CleanupPeriod: 5 * time.Minute,
			CacheTTL:      time.Minute,
		},
		Executor: &ExecutorConfig{
			Timeout:   10 * time.Second,
			MaxOutput: 1 << 20, // 1 MiB
			WorkDir:   "",      // os.TempDir() when empty
		},
		Archive: &ArchiveConfig{
			Path: "./peerrank-summaries.db",
		},
		Logging: &LoggingConfig{
			FilePath:   "./logs/peerrank.log",
			Production: false,
		},
	}
}

// Load builds the configuration from defaults, a .env file and environment
// variables, then validates the result.
func Load() (*Config, error) {
	// Missing .env is fine, variables may come from the real environment.
	_ = godotenv.Load()

	cfg := DefaultConfig()

	if host := os.Getenv("PEERRANK_HTTP_HOST"); host != "" {
		cfg.HTTP.Host = host
	}
	if port := os.Getenv("PEERRANK_HTTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.HTTP.Port = p
		}
	}
	if v := os.Getenv("PEERRANK_HTTP_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.HTTP.ReadTimeout = d
		}
	}
	if v := os.Getenv("PEERRANK_HTTP_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.HTTP.WriteTimeout = d
		}
	}
	if v := os.Getenv("PEERRANK_WS_PING_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.WebSocket.PingInterval = d
		}
	}
	if v := os.Getenv("PEERRANK_WS_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.WebSocket.ReadTimeout = d
		}
	}
	if v := os.Getenv("PEERRANK_WS_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.WebSocket.WriteTimeout = d
		}
	}
	if v := os.Getenv("PEERRANK_WS_SEND_BUFFER"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.WebSocket.SendBuffer = n
		}
	}
	if dir := os.Getenv("PEERRANK_STORE_DIR"); dir != "" {
		cfg.Store.Dir = dir
	}
	if v := os.Getenv("PEERRANK_STORE_EMPTY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Store.EmptyTimeout = d
		}
	}
	if v := os.Getenv("PEERRANK_STORE_CLEANUP_PERIOD"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Store.CleanupPeriod = d
		}
	}
	if v := os.Getenv("PEERRANK_STORE_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Store.CacheTTL = d
		}
	}
	if v := os.Getenv("PEERRANK_EXEC_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Executor.Timeout = d
		}
	}
	if v := os.Getenv("PEERRANK_EXEC_MAX_OUTPUT"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Executor.MaxOutput = n
		}
	}
	if dir := os.Getenv("PEERRANK_EXEC_WORK_DIR"); dir != "" {
		cfg.Executor.WorkDir = dir
	}
	if path := os.Getenv("PEERRANK_ARCHIVE_PATH"); path != "" {
		cfg.Archive.Path = path
	}
	if path := os.Getenv("PEERRANK_LOG_FILE"); path != "" {
		cfg.Logging.FilePath = path
	}
	if v := os.Getenv("PEERRANK_LOG_PRODUCTION"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Logging.Production = b
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations that cannot run.
func (c *Config) Validate() error {
	if c.HTTP == nil || c.WebSocket == nil || c.Store == nil ||
		c.Executor == nil || c.Archive == nil || c.Logging == nil {
		return fmt.Errorf("incomplete configuration")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP port must be between 1 and 65535")
	}
	if c.HTTP.Host == "" {
		return fmt.Errorf("HTTP host cannot be empty")
	}
	if c.HTTP.ReadTimeout <= 0 || c.HTTP.WriteTimeout <= 0 {
		return fmt.Errorf("HTTP timeouts must be positive")
	}
	if c.WebSocket.PingInterval <= 0 || c.WebSocket.ReadTimeout <= 0 || c.WebSocket.WriteTimeout <= 0 {
		return fmt.Errorf("WebSocket intervals must be positive")
	}
	if c.WebSocket.SendBuffer <= 0 {
		return fmt.Errorf("WebSocket send buffer must be positive")
	}
	if c.Store.Dir == "" {
		return fmt.Errorf("session store directory cannot be empty")
	}
	if c.Store.EmptyTimeout <= 0 {
		return fmt.Errorf("empty session timeout must be positive")
	}
	if c.Store.CleanupPeriod <= 0 {
		return fmt.Errorf("cleanup period must be positive")
	}
	if c.Executor.Timeout <= 0 {
		return fmt.Errorf("executor timeout must be positive")
	}
	if c.Executor.MaxOutput <= 0 {
		return fmt.Errorf("executor output cap must be positive")
	}
	if c.Archive.Path == "" {
		return fmt.Errorf("archive path cannot be empty")
	}
	if c.Logging.FilePath == "" {
		return fmt.Errorf("log file path cannot be empty")
	}
	return nil
}
