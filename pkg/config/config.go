// Kunhua Huang 2026

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ecstasoy/editorbridge/pkg/protocol"
)

const envPrefix = "EDITORBRIDGE_"

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	HostQueue HostQueueConfig `yaml:"host_queue"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Registry  RegistryConfig  `yaml:"registry"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Host           string `yaml:"host"`
	Port           uint16 `yaml:"port"` // 0 picks an ephemeral port
	MaxConnections uint32 `yaml:"max_connections"`
	MaxMessageSize uint32 `yaml:"max_message_size"`
	ReadBufferSize int    `yaml:"read_buffer_size"`

	IdleTimeout         Duration `yaml:"idle_timeout"`
	WriteTimeout        Duration `yaml:"write_timeout"`
	HandlerTimeout      Duration `yaml:"handler_timeout"`
	ShutdownGracePeriod Duration `yaml:"shutdown_grace_period"`

	Codec    string `yaml:"codec"`    // text/json/protobuf
	Compress string `yaml:"compress"` // none/gzip
}

type RateLimitConfig struct {
	Enabled   bool    `yaml:"enabled"`
	PerSecond float64 `yaml:"per_second"`
	Burst     int     `yaml:"burst"`
}

// HostQueueConfig routes handlers through the host-thread queue instead of
// running them on connection goroutines.
type HostQueueConfig struct {
	Enabled bool `yaml:"enabled"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Path    string `yaml:"path"`
}

type RegistryConfig struct {
	Type          string `yaml:"type"` // none/memory/etcd
	Service       string `yaml:"service"`
	AdvertiseHost string `yaml:"advertise_host"`
	Etcd          struct {
		Endpoints   []string `yaml:"endpoints"`
		DialTimeout Duration `yaml:"dial_timeout"`
		KeyPrefix   string   `yaml:"key_prefix"`
		LeaseTTL    int64    `yaml:"lease_ttl"`
	} `yaml:"etcd"`
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug/info/warn/error
	Format string `yaml:"format"` // text/json
}

type Duration struct{ time.Duration }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dd, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = dd
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

func Default() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Host:                "0.0.0.0",
			Port:                8080,
			MaxConnections:      10,
			MaxMessageSize:      protocol.DefaultMaxMessageSize,
			ReadBufferSize:      4 * 1024,
			IdleTimeout:         Duration{0},
			WriteTimeout:        Duration{10 * time.Second},
			HandlerTimeout:      Duration{30 * time.Second},
			ShutdownGracePeriod: Duration{5 * time.Second},
			Codec:               string(protocol.CodecTypeText),
			Compress:            string(protocol.CompressTypeNone),
		},
		RateLimit: RateLimitConfig{
			Enabled:   false,
			PerSecond: 50,
			Burst:     100,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Address: "127.0.0.1:9090",
			Path:    "/metrics",
		},
		Registry: RegistryConfig{
			Type:    "none",
			Service: "editorbridge",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}

	cfg.Registry.Etcd.Endpoints = []string{"127.0.0.1:2379"}
	cfg.Registry.Etcd.DialTimeout = Duration{5 * time.Second}
	cfg.Registry.Etcd.KeyPrefix = "/editorbridge/services"
	cfg.Registry.Etcd.LeaseTTL = 10

	return cfg
}

// Load reads path over the defaults. An empty path returns the defaults.
// Environment overrides are not applied; see ApplyEnv.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from EDITORBRIDGE_* variables.
func (c *Config) ApplyEnv() error {
	c.Server.Host = getEnv("HOST", c.Server.Host)
	c.Server.Codec = getEnv("CODEC", c.Server.Codec)
	c.Server.Compress = getEnv("COMPRESS", c.Server.Compress)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
	c.Metrics.Address = getEnv("METRICS_ADDR", c.Metrics.Address)
	c.Registry.Type = getEnv("REGISTRY", c.Registry.Type)

	if v := getEnv("ETCD_ENDPOINTS", ""); v != "" {
		c.Registry.Etcd.Endpoints = strings.Split(v, ",")
	}

	if v := getEnv("PORT", ""); v != "" {
		port, err := strconv.ParseUint(v, 10, 16)
		if err != nil {
			return fmt.Errorf("%w: %sPORT=%q: %v", ErrInvalidConfig, envPrefix, v, err)
		}
		c.Server.Port = uint16(port)
	}

	if v := getEnv("MAX_CONNECTIONS", ""); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return fmt.Errorf("%w: %sMAX_CONNECTIONS=%q: %v", ErrInvalidConfig, envPrefix, v, err)
		}
		c.Server.MaxConnections = uint32(n)
	}

	c.Metrics.Enabled = getEnvBool("METRICS_ENABLED", c.Metrics.Enabled)
	c.HostQueue.Enabled = getEnvBool("HOST_QUEUE", c.HostQueue.Enabled)

	return nil
}

func (c *Config) Validate() error {
	if c.Server.MaxConnections < 1 {
		return fmt.Errorf("%w: server.max_connections must be at least 1", ErrInvalidConfig)
	}

	if _, err := protocol.ParseCodecType(c.Server.Codec); err != nil {
		return fmt.Errorf("%w: server.codec: %v", ErrInvalidConfig, err)
	}

	if _, err := protocol.ParseCompressType(c.Server.Compress); err != nil {
		return fmt.Errorf("%w: server.compress: %v", ErrInvalidConfig, err)
	}

	for name, d := range map[string]Duration{
		"idle_timeout":          c.Server.IdleTimeout,
		"write_timeout":         c.Server.WriteTimeout,
		"handler_timeout":       c.Server.HandlerTimeout,
		"shutdown_grace_period": c.Server.ShutdownGracePeriod,
	} {
		if d.Duration < 0 {
			return fmt.Errorf("%w: server.%s must not be negative", ErrInvalidConfig, name)
		}
	}

	if c.RateLimit.Enabled && c.RateLimit.Burst < 1 {
		return fmt.Errorf("%w: rate_limit.burst must be at least 1", ErrInvalidConfig)
	}

	switch c.Registry.Type {
	case "", "none", "memory":
	case "etcd":
		if len(c.Registry.Etcd.Endpoints) == 0 {
			return fmt.Errorf("%w: registry.etcd.endpoints required for etcd registry", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unsupported registry.type %q (supported: none, memory, etcd)", ErrInvalidConfig, c.Registry.Type)
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		return fmt.Errorf("%w: log.level: %v", ErrInvalidConfig, err)
	}

	return nil
}

// Address is the host:port the server binds.
func (s ServerConfig) Address() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(int(s.Port)))
}

func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(l.Level))
	return level, err
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(envPrefix + key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(envPrefix + key)
	if value == "" {
		return defaultValue
	}
	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return boolValue
}
