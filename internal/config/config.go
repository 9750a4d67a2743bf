package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// RelayConfig holds configuration for the relay host.
// Values are resolved with precedence: defaults < file < env < flags.
type RelayConfig struct {
	ListenAddr     string        `yaml:"listen_addr"`
	StatusAddr     string        `yaml:"status_addr"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	EvictInterval  time.Duration `yaml:"evict_interval"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	LogLevel       string        `yaml:"log_level"`
	ConfigFile     string        `yaml:"-"`
}

// SetDefaults initializes c with built-in defaults.
func (c *RelayConfig) SetDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8766"
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 30 * time.Second
	}
	if c.EvictInterval == 0 {
		c.EvictInterval = time.Second
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.ConfigFile == "" {
		c.ConfigFile = DefaultConfigPath("relay.yaml")
	}
}

// ApplyEnv overlays environment variables onto the current config values.
func (c *RelayConfig) ApplyEnv() {
	if v := getEnv("CONFIG_FILE", ""); v != "" {
		c.ConfigFile = v
	}
	if v := getEnv("LOG_LEVEL", ""); v != "" {
		c.LogLevel = v
	}
	if v := getEnv("LISTEN_ADDR", ""); v != "" {
		c.ListenAddr = normalizeAddr(v)
	}
	if v := getEnv("STATUS_ADDR", ""); v != "" {
		c.StatusAddr = normalizeAddr(v)
	}
	if v := getEnv("REQUEST_TIMEOUT", ""); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.RequestTimeout = time.Duration(f * float64(time.Second))
		}
	}
	if v := getEnv("EVICT_INTERVAL", ""); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.EvictInterval = d
		}
	}
	if v := getEnv("ALLOWED_ORIGINS", ""); v != "" {
		c.AllowedOrigins = splitComma(v)
	}
}

// LoadFile loads configuration values from a YAML file.
func (c *RelayConfig) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

// BindFlagsFromCurrent binds command line flags using the current config
// values as defaults.
func (c *RelayConfig) BindFlagsFromCurrent() {
	flag.StringVar(&c.ConfigFile, "config", c.ConfigFile, "relay config file path")
	flag.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log verbosity (all, debug, info, warn, error, fatal, none)")
	flag.Func("listen", "TCP listen address or port for downstream clients", func(v string) error {
		c.ListenAddr = normalizeAddr(v)
		return nil
	})
	flag.Func("status-addr", "HTTP listen address or port for status and metrics; empty disables", func(v string) error {
		c.StatusAddr = normalizeAddr(v)
		return nil
	})
	flag.Func("request-timeout", "seconds a request may stay pending before it is evicted", func(v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		c.RequestTimeout = time.Duration(f * float64(time.Second))
		return nil
	})
	flag.DurationVar(&c.EvictInterval, "evict-interval", c.EvictInterval, "how often the eviction loop scans for expired requests")
	flag.Func("allowed-origins", "comma separated list of allowed CORS origins for the status server", func(v string) error {
		c.AllowedOrigins = splitComma(v)
		return nil
	})
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitComma(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// normalizeAddr accepts either a bare port or a host:port pair.
func normalizeAddr(v string) string {
	if v == "" || strings.Contains(v, ":") {
		return v
	}
	if _, err := strconv.Atoi(v); err == nil {
		return fmt.Sprintf(":%s", v)
	}
	return v
}
