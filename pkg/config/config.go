package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for the insight engine.
// Configuration can come from YAML file (config.yaml) or environment
// variables; environment variables always override YAML values. Secrets
// (passwords, API keys) must only come from environment variables.
type Config struct {
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8090"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	Warehouse WarehouseConfig `yaml:"warehouse"`
	Provider  ProviderConfig  `yaml:"provider"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
}

// WarehouseConfig holds Snowflake connection settings.
type WarehouseConfig struct {
	Account   string `yaml:"account" env:"SNOWFLAKE_ACCOUNT" env-default:""`
	User      string `yaml:"user" env:"SNOWFLAKE_USER" env-default:""`
	Password  string `yaml:"-" env:"SNOWFLAKE_PASSWORD"` // Secret - not in YAML
	Database  string `yaml:"database" env:"SNOWFLAKE_DATABASE" env-default:"PI_QUALYTICS"`
	Schema    string `yaml:"schema" env:"SNOWFLAKE_SCHEMA" env-default:"BANKING"`
	Warehouse string `yaml:"warehouse" env:"SNOWFLAKE_WAREHOUSE" env-default:"COMPUTE_WH"`
	Role      string `yaml:"role" env:"SNOWFLAKE_ROLE" env-default:""`

	// QueryTimeoutSeconds bounds every warehouse query issued by the engine.
	QueryTimeoutSeconds int `yaml:"query_timeout_seconds" env:"SNOWFLAKE_QUERY_TIMEOUT_SECONDS" env-default:"60"`
}

// ProviderConfig selects and configures the LLM backend.
type ProviderConfig struct {
	// Kind selects the provider implementation: "openai", "anthropic" or
	// "ollama".
	Kind string `yaml:"kind" env:"LLM_PROVIDER" env-default:"openai"`

	OpenAI    OpenAIConfig    `yaml:"openai"`
	Anthropic AnthropicConfig `yaml:"anthropic"`
	Ollama    OllamaConfig    `yaml:"ollama"`
}

// OpenAIConfig holds cloud provider settings for the OpenAI backend.
type OpenAIConfig struct {
	APIKey string `yaml:"-" env:"OPENAI_API_KEY"` // Secret - not in YAML
	// ModelsStr is a comma-separated list of candidate model names, tried in
	// order. Providers rename and deprecate model endpoints without notice.
	ModelsStr string `yaml:"models" env:"OPENAI_MODELS" env-default:"gpt-4o-mini,gpt-4o,gpt-3.5-turbo"`
}

// Models returns the parsed candidate model list.
func (c *OpenAIConfig) Models() []string { return splitCSV(c.ModelsStr) }

// AnthropicConfig holds cloud provider settings for the Anthropic backend.
type AnthropicConfig struct {
	APIKey    string `yaml:"-" env:"ANTHROPIC_API_KEY"` // Secret - not in YAML
	ModelsStr string `yaml:"models" env:"ANTHROPIC_MODELS" env-default:"claude-3-5-sonnet-latest,claude-3-5-haiku-latest"`
}

// Models returns the parsed candidate model list.
func (c *AnthropicConfig) Models() []string { return splitCSV(c.ModelsStr) }

// OllamaConfig holds local provider settings.
type OllamaConfig struct {
	Endpoint string `yaml:"endpoint" env:"OLLAMA_ENDPOINT" env-default:"http://localhost:11434"`
	Model    string `yaml:"model" env:"OLLAMA_MODEL" env-default:"llama3.1:8b"`
	// TimeoutSeconds is deliberately long to tolerate local-model cold starts.
	TimeoutSeconds int `yaml:"timeout_seconds" env:"OLLAMA_TIMEOUT_SECONDS" env-default:"120"`
}

// PipelineConfig holds orchestration settings.
type PipelineConfig struct {
	// SchemasStr is a comma-separated list of warehouse schemas exposed to
	// the model, in addition to the fixed metrics schema.
	SchemasStr string `yaml:"schemas" env:"PIPELINE_SCHEMAS" env-default:"BANKING"`

	// InterpretSampleRows caps how many result rows are sent back to the
	// provider for interpretation.
	InterpretSampleRows int `yaml:"interpret_sample_rows" env:"PIPELINE_INTERPRET_SAMPLE_ROWS" env-default:"20"`
}

// Schemas returns the parsed schema list.
func (c *PipelineConfig) Schemas() []string { return splitCSV(c.SchemasStr) }

// Load reads configuration from config.yaml with environment variable
// overrides. When no config.yaml exists (container deployments), environment
// variables alone are used.
func Load(version string) (*Config, error) {
	cfg := &Config{Version: version}

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Provider.Kind {
	case "openai", "anthropic", "ollama":
	default:
		return fmt.Errorf("unknown provider kind %q (expected openai, anthropic or ollama)", c.Provider.Kind)
	}
	if c.Warehouse.QueryTimeoutSeconds <= 0 {
		return fmt.Errorf("warehouse query timeout must be positive, got %d", c.Warehouse.QueryTimeoutSeconds)
	}
	return nil
}

func splitCSV(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
