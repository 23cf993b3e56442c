// Package config provides the configuration schema and loader for the Vaani
// server. Settings come from an optional YAML file with environment-variable
// overrides; missing optional settings disable the corresponding feature
// instead of failing startup.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vaani-ai/vaani/pkg/types"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure. Load it with [Load] or
// [LoadFromReader], then apply environment overrides with [ApplyEnv].
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Providers  ProvidersConfig  `yaml:"providers"`
	Store      StoreConfig      `yaml:"store"`
	Limits     LimitsConfig     `yaml:"limits"`
	Session    SessionConfig    `yaml:"session"`
	Transcript TranscriptConfig `yaml:"transcript"`
}

// ServerConfig holds network, auth, and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// APIKey is the pre-shared credential clients present. Empty disables
	// authentication.
	APIKey string `yaml:"api_key"`

	// EncryptionKey is the hex- or raw-encoded 32-byte key for telephony
	// secrets at rest. Required.
	EncryptionKey string `yaml:"encryption_key"`
}

// ProviderEntry is the common configuration block shared by all provider
// kinds. An empty APIKey disables the provider.
type ProviderEntry struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// ProvidersConfig declares credentials per pipeline stage.
type ProvidersConfig struct {
	Sarvam     ProviderEntry `yaml:"sarvam"`
	ElevenLabs ProviderEntry `yaml:"elevenlabs"`
	OpenAI     ProviderEntry `yaml:"openai"`
	Anthropic  ProviderEntry `yaml:"anthropic"`
}

// TranscriptConfig tunes the post-ASR correction pass.
type TranscriptConfig struct {
	// DomainTerms is the deployment's vocabulary for phonetic transcript
	// correction: product names, jargon, anything ASR tends to mangle.
	DomainTerms []string `yaml:"domain_terms"`
}

// StoreConfig selects the persistence backend. An empty DSN selects the
// in-memory store.
type StoreConfig struct {
	PostgresDSN string `yaml:"postgres_dsn"`

	// EmbeddingDimensions sizes the pgvector column. Default 1536
	// (text-embedding-3-small).
	EmbeddingDimensions int `yaml:"embedding_dimensions"`
}

// LimitsConfig holds the rate-limit budgets. Zero disables the class.
type LimitsConfig struct {
	PerMinute   int `yaml:"per_minute"`
	PerHour     int `yaml:"per_hour"`
	WSPerMinute int `yaml:"ws_per_minute"`
	WSPerHour   int `yaml:"ws_per_hour"`
}

// Duration decodes YAML strings like "90s" or "2m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// SessionConfig holds session-level defaults.
type SessionConfig struct {
	// DefaultTier applies when a client never names one.
	DefaultTier types.OptimizationTier `yaml:"default_tier"`

	// IdleTimeout destroys sessions with no client activity.
	IdleTimeout Duration `yaml:"idle_timeout"`
}

// Load reads the YAML configuration file at path and returns a validated
// Config with environment overrides applied.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies environment
// overrides, and validates the result.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	cfg.ApplyEnv()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv builds a Config from environment variables alone, for deployments
// without a config file.
func FromEnv() (*Config, error) {
	cfg := &Config{}
	cfg.ApplyEnv()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides file-sourced values with environment variables. Set
// variables always win.
func (cfg *Config) ApplyEnv() {
	setStr(&cfg.Server.ListenAddr, "VAANI_LISTEN_ADDR")
	if v := os.Getenv("VAANI_LOG_LEVEL"); v != "" {
		cfg.Server.LogLevel = LogLevel(v)
	}
	setStr(&cfg.Server.APIKey, "VAANI_API_KEY")
	setStr(&cfg.Server.EncryptionKey, "VAANI_ENCRYPTION_KEY")

	setStr(&cfg.Providers.Sarvam.APIKey, "SARVAM_API_KEY")
	setStr(&cfg.Providers.Sarvam.BaseURL, "SARVAM_BASE_URL")
	setStr(&cfg.Providers.ElevenLabs.APIKey, "ELEVENLABS_API_KEY")
	setStr(&cfg.Providers.OpenAI.APIKey, "OPENAI_API_KEY")
	setStr(&cfg.Providers.OpenAI.Model, "OPENAI_MODEL")
	setStr(&cfg.Providers.Anthropic.APIKey, "ANTHROPIC_API_KEY")
	setStr(&cfg.Providers.Anthropic.Model, "ANTHROPIC_MODEL")

	setStr(&cfg.Store.PostgresDSN, "VAANI_POSTGRES_DSN")
	setInt(&cfg.Store.EmbeddingDimensions, "VAANI_EMBEDDING_DIMENSIONS")

	setInt(&cfg.Limits.PerMinute, "VAANI_RATE_PER_MINUTE")
	setInt(&cfg.Limits.PerHour, "VAANI_RATE_PER_HOUR")
	setInt(&cfg.Limits.WSPerMinute, "VAANI_WS_RATE_PER_MINUTE")
	setInt(&cfg.Limits.WSPerHour, "VAANI_WS_RATE_PER_HOUR")

	if v := os.Getenv("VAANI_DEFAULT_TIER"); v != "" {
		cfg.Session.DefaultTier = types.OptimizationTier(v)
	}
	if v := os.Getenv("VAANI_IDLE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Session.IdleTimeout = Duration(d)
		}
	}
	if v := os.Getenv("VAANI_DOMAIN_TERMS"); v != "" {
		cfg.Transcript.DomainTerms = splitTerms(v)
	}
}

// splitTerms parses a comma-separated term list, trimming whitespace and
// dropping empty elements.
func splitTerms(v string) []string {
	var terms []string
	for _, t := range strings.Split(v, ",") {
		if t = strings.TrimSpace(t); t != "" {
			terms = append(terms, t)
		}
	}
	return terms
}

func setStr(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

func setInt(dst *int, env string) {
	if v := os.Getenv(env); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing every failure found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf(
			"server.log_level %q is invalid; valid values: debug, info, warn, error",
			cfg.Server.LogLevel))
	}
	if cfg.Server.EncryptionKey == "" {
		errs = append(errs, errors.New(
			"server.encryption_key (VAANI_ENCRYPTION_KEY) is required"))
	}
	if cfg.Session.DefaultTier != "" && !cfg.Session.DefaultTier.IsValid() {
		errs = append(errs, fmt.Errorf(
			"session.default_tier %q is invalid", cfg.Session.DefaultTier))
	}
	if cfg.Session.IdleTimeout < 0 {
		errs = append(errs, errors.New("session.idle_timeout must not be negative"))
	}
	if cfg.Store.EmbeddingDimensions < 0 {
		errs = append(errs, errors.New("store.embedding_dimensions must not be negative"))
	}
	for _, l := range []struct {
		name string
		v    int
	}{
		{"limits.per_minute", cfg.Limits.PerMinute},
		{"limits.per_hour", cfg.Limits.PerHour},
		{"limits.ws_per_minute", cfg.Limits.WSPerMinute},
		{"limits.ws_per_hour", cfg.Limits.WSPerHour},
	} {
		if l.v < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", l.name))
		}
	}

	return errors.Join(errs...)
}

// SarvamEnabled reports whether the Sarvam providers can be constructed.
func (cfg *Config) SarvamEnabled() bool { return cfg.Providers.Sarvam.APIKey != "" }

// ElevenLabsEnabled reports whether the ElevenLabs fallback can be
// constructed.
func (cfg *Config) ElevenLabsEnabled() bool { return cfg.Providers.ElevenLabs.APIKey != "" }

// OpenAIEnabled reports whether OpenAI-backed generation and embeddings can
// be constructed.
func (cfg *Config) OpenAIEnabled() bool { return cfg.Providers.OpenAI.APIKey != "" }

// AnthropicEnabled reports whether the Anthropic generation fallback can be
// constructed.
func (cfg *Config) AnthropicEnabled() bool { return cfg.Providers.Anthropic.APIKey != "" }

// PostgresEnabled reports whether the durable store is configured.
func (cfg *Config) PostgresEnabled() bool { return cfg.Store.PostgresDSN != "" }
