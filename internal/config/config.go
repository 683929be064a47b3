package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds service settings loaded from adofly.yml.
type Config struct {
	Server   ServerConfig   `yaml:"server,omitempty"`
	Model    ModelConfig    `yaml:"model,omitempty"`
	Pipeline PipelineConfig `yaml:"pipeline,omitempty"`
	Runs     RunsConfig     `yaml:"runs,omitempty"`
	Store    StoreConfig    `yaml:"store,omitempty"`
	Auth     AuthConfig     `yaml:"auth,omitempty"`
	Logging  LoggingConfig  `yaml:"logging,omitempty"`
	MCP      MCPConfig      `yaml:"mcp,omitempty"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr,omitempty"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout,omitempty"`
}

// ModelConfig selects and tunes the text-completion backend.
type ModelConfig struct {
	// Provider is one of "openai", "a2a" or "stub".
	Provider    string        `yaml:"provider,omitempty"`
	Name        string        `yaml:"name,omitempty"`
	BaseURL     string        `yaml:"baseURL,omitempty"`
	APIKey      string        `yaml:"apiKey,omitempty"`
	Temperature float32       `yaml:"temperature,omitempty"`
	Timeout     time.Duration `yaml:"timeout,omitempty"`
	MaxRetries  int           `yaml:"maxRetries,omitempty"`

	// AgentEndpoint is the JSON-RPC endpoint used by the "a2a" provider.
	AgentEndpoint string `yaml:"agentEndpoint,omitempty"`
}

type PipelineConfig struct {
	Concurrent   bool          `yaml:"concurrent,omitempty"`
	StageTimeout time.Duration `yaml:"stageTimeout,omitempty"`
}

type RunsConfig struct {
	// TTL is how long a finished run stays available for replay.
	TTL time.Duration `yaml:"ttl,omitempty"`
}

type StoreConfig struct {
	// Driver is "memory" or "postgres".
	Driver string `yaml:"driver,omitempty"`
	DSN    string `yaml:"dsn,omitempty"`
}

type AuthConfig struct {
	Disabled bool `yaml:"disabled,omitempty"`
	// Tokens maps bearer tokens to user ids.
	Tokens map[string]string `yaml:"tokens,omitempty"`
}

type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

type MCPConfig struct {
	// HTTP mounts the streamable MCP handler at /mcp on the API server.
	HTTP bool `yaml:"http,omitempty"`
}

// Default returns the settings used when no config file is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Model: ModelConfig{
			Provider:    "openai",
			Name:        "gpt-4o-mini",
			Temperature: 0.7,
			Timeout:     60 * time.Second,
			MaxRetries:  2,
		},
		Pipeline: PipelineConfig{
			StageTimeout: 90 * time.Second,
		},
		Runs: RunsConfig{
			TTL: 15 * time.Minute,
		},
		Store: StoreConfig{
			Driver: "memory",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load attempts to read adofly.yml or adofly.yaml from the given directory
// on top of Default. Returns the defaults (not an error) if no config file
// exists.
func Load(dir string) (*Config, error) {
	cfg := Default()
	for _, name := range []string{"adofly.yml", "adofly.yaml"} {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		return cfg, nil
	}
	return cfg, nil
}

// ApplyEnv overlays ADOFLY_* variables read through getenv. The model API
// key falls back to OPENAI_API_KEY.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	var errs []error
	dur := func(key string, dst *time.Duration) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("config: %s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	boolean := func(key string, dst *bool) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("config: %s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	str("ADOFLY_ADDR", &c.Server.Addr)
	str("ADOFLY_MODEL_PROVIDER", &c.Model.Provider)
	str("ADOFLY_MODEL_NAME", &c.Model.Name)
	str("ADOFLY_MODEL_BASE_URL", &c.Model.BaseURL)
	str("ADOFLY_AGENT_ENDPOINT", &c.Model.AgentEndpoint)
	str("OPENAI_API_KEY", &c.Model.APIKey)
	str("ADOFLY_MODEL_API_KEY", &c.Model.APIKey)
	dur("ADOFLY_MODEL_TIMEOUT", &c.Model.Timeout)
	dur("ADOFLY_STAGE_TIMEOUT", &c.Pipeline.StageTimeout)
	dur("ADOFLY_RUN_TTL", &c.Runs.TTL)
	boolean("ADOFLY_CONCURRENT", &c.Pipeline.Concurrent)
	boolean("ADOFLY_AUTH_DISABLED", &c.Auth.Disabled)
	boolean("ADOFLY_MCP_HTTP", &c.MCP.HTTP)
	str("ADOFLY_STORE_DRIVER", &c.Store.Driver)
	str("ADOFLY_DATABASE_URL", &c.Store.DSN)
	str("ADOFLY_LOG_LEVEL", &c.Logging.Level)
	str("ADOFLY_LOG_FORMAT", &c.Logging.Format)

	return errors.Join(errs...)
}

// Validate reports every inconsistent setting.
func (c *Config) Validate() error {
	var errs []error
	switch c.Model.Provider {
	case "openai":
		if c.Model.APIKey == "" {
			errs = append(errs, errors.New("config: model.apiKey is required for the openai provider"))
		}
	case "a2a":
		if c.Model.AgentEndpoint == "" {
			errs = append(errs, errors.New("config: model.agentEndpoint is required for the a2a provider"))
		}
	case "stub":
	default:
		errs = append(errs, fmt.Errorf("config: unknown model.provider %q", c.Model.Provider))
	}
	if c.Model.MaxRetries < 0 {
		errs = append(errs, errors.New("config: model.maxRetries must not be negative"))
	}
	switch c.Store.Driver {
	case "memory":
	case "postgres":
		if c.Store.DSN == "" {
			errs = append(errs, errors.New("config: store.dsn is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("config: unknown store.driver %q", c.Store.Driver))
	}
	if !c.Auth.Disabled && len(c.Auth.Tokens) == 0 {
		errs = append(errs, errors.New("config: auth.tokens must not be empty unless auth.disabled is set"))
	}
	return errors.Join(errs...)
}
