package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/twmb/franz-go/pkg/sasl"
	"github.com/twmb/franz-go/pkg/sasl/plain"
)

type Config struct {
	Service  ServiceConfig  `koanf:"service"`
	Input    InputConfig    `koanf:"input"`
	Postgres PostgresConfig `koanf:"postgres"`
	Archive  ArchiveConfig  `koanf:"archive"`
	Forward  ForwardConfig  `koanf:"forward"`
}

type ServiceConfig struct {
	InstanceID             string `koanf:"instance_id"`
	MetricsListen          string `koanf:"metrics_listen"`
	LogLevel               string `koanf:"log_level"`
	ShutdownTimeoutSeconds int    `koanf:"shutdown_timeout_seconds"`
}

// InputConfig names where MRT dump files come from. Paths lists
// individual files or directories to walk; when they yield no file and
// FollowGlob is off, a replay job reads a single dump from stdin instead.
type InputConfig struct {
	Paths       []string `koanf:"paths"`
	FilePattern string   `koanf:"file_pattern"`
	FollowGlob  bool     `koanf:"follow_glob"`
}

type PostgresConfig struct {
	DSN      string `koanf:"dsn"`
	MaxConns int32  `koanf:"max_conns"`
	MinConns int32  `koanf:"min_conns"`
}

// ArchiveConfig controls how decoded MRT records are batched,
// compressed, and written to Postgres.
type ArchiveConfig struct {
	BatchSize         int  `koanf:"batch_size"`
	FlushIntervalMs   int  `koanf:"flush_interval_ms"`
	ChannelBufferSize int  `koanf:"channel_buffer_size"`
	StoreRawMessage   bool `koanf:"store_raw_message"`
	CompressRaw       bool `koanf:"compress_raw"`
}

// ForwardConfig is optional: when Enabled, decoded BGP4MP_MESSAGE
// events are also republished to a Kafka topic as they're archived.
type ForwardConfig struct {
	Enabled  bool       `koanf:"enabled"`
	Brokers  []string   `koanf:"brokers"`
	ClientID string     `koanf:"client_id"`
	Topic    string     `koanf:"topic"`
	TLS      TLSConfig  `koanf:"tls"`
	SASL     SASLConfig `koanf:"sasl"`
}

type TLSConfig struct {
	Enabled  bool   `koanf:"enabled"`
	CAFile   string `koanf:"ca_file"`
	CertFile string `koanf:"cert_file"`
	KeyFile  string `koanf:"key_file"`
}

type SASLConfig struct {
	Enabled   bool   `koanf:"enabled"`
	Mechanism string `koanf:"mechanism"`
	Username  string `koanf:"username"`
	Password  string `koanf:"password"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Load YAML file first.
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	// Overlay environment variables: MRT_ARCHIVER_FORWARD__BROKERS → forward.brokers
	if err := k.Load(env.Provider("MRT_ARCHIVER_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "MRT_ARCHIVER_")
		s = strings.ToLower(s)
		s = strings.ReplaceAll(s, "__", ".")
		return s
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env config: %w", err)
	}

	cfg := &Config{
		Service: ServiceConfig{
			InstanceID:             "mrtarchive-1",
			MetricsListen:          ":8080",
			LogLevel:               "info",
			ShutdownTimeoutSeconds: 30,
		},
		Input: InputConfig{
			FilePattern: "*.mrt",
		},
		Postgres: PostgresConfig{
			MaxConns: 20,
			MinConns: 2,
		},
		Archive: ArchiveConfig{
			BatchSize:         1000,
			FlushIntervalMs:   200,
			ChannelBufferSize: 16,
			CompressRaw:       true,
		},
		Forward: ForwardConfig{
			ClientID: "mrtarchive",
		},
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Split comma-separated env strings for slice fields.
	if len(cfg.Input.Paths) == 1 && strings.Contains(cfg.Input.Paths[0], ",") {
		cfg.Input.Paths = strings.Split(cfg.Input.Paths[0], ",")
	}
	if len(cfg.Forward.Brokers) == 1 && strings.Contains(cfg.Forward.Brokers[0], ",") {
		cfg.Forward.Brokers = strings.Split(cfg.Forward.Brokers[0], ",")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Postgres.DSN == "" {
		return fmt.Errorf("config: postgres.dsn is required")
	}
	if c.Archive.FlushIntervalMs <= 0 {
		return fmt.Errorf("config: archive.flush_interval_ms must be > 0 (got %d)", c.Archive.FlushIntervalMs)
	}
	if c.Archive.BatchSize <= 0 {
		return fmt.Errorf("config: archive.batch_size must be > 0 (got %d)", c.Archive.BatchSize)
	}
	if c.Archive.ChannelBufferSize <= 0 {
		return fmt.Errorf("config: archive.channel_buffer_size must be > 0 (got %d)", c.Archive.ChannelBufferSize)
	}
	if c.Postgres.MaxConns <= 0 {
		return fmt.Errorf("config: postgres.max_conns must be > 0 (got %d)", c.Postgres.MaxConns)
	}
	if c.Postgres.MinConns < 0 {
		return fmt.Errorf("config: postgres.min_conns must be >= 0 (got %d)", c.Postgres.MinConns)
	}
	if c.Service.ShutdownTimeoutSeconds <= 0 {
		return fmt.Errorf("config: service.shutdown_timeout_seconds must be > 0 (got %d)", c.Service.ShutdownTimeoutSeconds)
	}
	if c.Forward.Enabled {
		if len(c.Forward.Brokers) == 0 {
			return fmt.Errorf("config: forward.brokers is required when forward.enabled is true")
		}
		if c.Forward.Topic == "" {
			return fmt.Errorf("config: forward.topic is required when forward.enabled is true")
		}
	}
	return nil
}

// BuildTLSConfig creates a *tls.Config from the forward TLS settings. Returns nil if TLS is disabled.
func (f *ForwardConfig) BuildTLSConfig() (*tls.Config, error) {
	if !f.TLS.Enabled {
		return nil, nil
	}
	tlsCfg := &tls.Config{}
	if f.TLS.CAFile != "" {
		caPEM, err := os.ReadFile(f.TLS.CAFile)
		if err != nil {
			return nil, fmt.Errorf("reading CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, fmt.Errorf("failed to parse CA certificate")
		}
		tlsCfg.RootCAs = pool
	}
	if f.TLS.CertFile != "" && f.TLS.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(f.TLS.CertFile, f.TLS.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("loading client certificate: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}
	return tlsCfg, nil
}

// BuildSASLMechanism creates a SASL mechanism from the forward SASL settings. Returns nil if SASL is disabled.
func (f *ForwardConfig) BuildSASLMechanism() sasl.Mechanism {
	if !f.SASL.Enabled {
		return nil
	}
	switch strings.ToUpper(f.SASL.Mechanism) {
	case "PLAIN":
		return plain.Auth{User: f.SASL.Username, Pass: f.SASL.Password}.AsMechanism()
	default:
		return nil
	}
}
