package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"

	"dario.cat/mergo"
	"github.com/aschepis/backscratcher/switchboard/llm"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

// AnthropicConfig represents configuration for Anthropic LLM provider.
type AnthropicConfig struct {
	APIKey  string `yaml:"api_key,omitempty"`                           // Anthropic API key
	Model   string `yaml:"model,omitempty"`                             // Default model name
	BaseURL string `yaml:"base_url,omitempty" validate:"omitempty,url"` // Custom base URL (default: official API)
}

// GeminiConfig represents configuration for Gemini LLM provider.
type GeminiConfig struct {
	APIKey         string              `yaml:"api_key,omitempty"`
	Model          string              `yaml:"model,omitempty"`
	BaseURL        string              `yaml:"base_url,omitempty" validate:"omitempty,url"`
	SafetySettings []llm.SafetySetting `yaml:"safety_settings,omitempty" validate:"dive"` // Sent with every request
}

// OllamaConfig represents configuration for Ollama LLM provider.
type OllamaConfig struct {
	Host    string `yaml:"host,omitempty"`                     // Ollama host (default: "http://localhost:11434")
	Model   string `yaml:"model,omitempty"`                    // Default model name
	Timeout int    `yaml:"timeout,omitempty" validate:"min=0"` // Request timeout in seconds
}

// OpenAIConfig represents configuration for OpenAI LLM provider.
type OpenAIConfig struct {
	APIKey       string `yaml:"api_key,omitempty"`                           // OpenAI API key
	BaseURL      string `yaml:"base_url,omitempty" validate:"omitempty,url"` // Custom base URL (default: official API)
	Model        string `yaml:"model,omitempty"`                             // Default model name
	Organization string `yaml:"organization,omitempty"`                      // Organization ID
	Strict       bool   `yaml:"strict,omitempty"`                            // Strict json_schema output
}

// RetryConfig controls request timeouts and retries for HTTP transports.
type RetryConfig struct {
	MaxRetries      uint64 `yaml:"max_retries,omitempty" validate:"max=10"`
	InitialInterval int    `yaml:"initial_interval,omitempty" validate:"min=0"` // Seconds before the first retry
	Timeout         int    `yaml:"timeout,omitempty" validate:"min=0"`          // Request timeout in seconds
}

// UsageConfig configures the usage ledger.
type UsageConfig struct {
	Disabled bool   `yaml:"disabled,omitempty"`
	Path     string `yaml:"path,omitempty"` // SQLite database path
}

// MCPServerConfig represents configuration for an MCP server.
type MCPServerConfig struct {
	Name    string   `yaml:"name,omitempty"`
	Command string   `yaml:"command,omitempty" validate:"required_without=URL"` // For STDIO transport
	URL     string   `yaml:"url,omitempty" validate:"omitempty,url"`            // For HTTP transport
	Args    []string `yaml:"args,omitempty"`                                    // Additional args for STDIO command
	Env     []string `yaml:"env,omitempty"`                                     // Environment variables for STDIO
}

// Config is the switchboard configuration.
type Config struct {
	// Providers lists the enabled providers in preference order.
	Providers []string `yaml:"providers,omitempty" validate:"min=1,dive,oneof=anthropic gemini ollama openai"`

	// LLM provider configurations
	Anthropic AnthropicConfig `yaml:"anthropic,omitempty"`
	Gemini    GeminiConfig    `yaml:"gemini,omitempty"`
	Ollama    OllamaConfig    `yaml:"ollama,omitempty"`
	OpenAI    OpenAIConfig    `yaml:"openai,omitempty"`

	Retry      RetryConfig                 `yaml:"retry,omitempty"`
	Usage      UsageConfig                 `yaml:"usage,omitempty"`
	MCPServers map[string]*MCPServerConfig `yaml:"mcp_servers,omitempty" validate:"dive"`
	// MCPServersFile names an mcpServers JSON file whose servers are added
	// to MCPServers.
	MCPServersFile string `yaml:"mcp_servers_file,omitempty"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Providers: []string{string(llm.ProviderAnthropic)},
		Anthropic: AnthropicConfig{
			Model: llm.DefaultAnthropicModel,
		},
		Gemini: GeminiConfig{
			Model: llm.DefaultGeminiModel,
		},
		Ollama: OllamaConfig{
			Host:    "http://localhost:11434",
			Model:   "llama3.2:3b",
			Timeout: 120,
		},
		OpenAI: OpenAIConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
		},
		Retry: RetryConfig{
			MaxRetries:      3,
			InitialInterval: 1,
			Timeout:         120,
		},
		Usage: UsageConfig{
			Path: "~/.switchboard/usage.db",
		},
		MCPServers: make(map[string]*MCPServerConfig),
	}
}

// GetConfigPath returns the default config file path.
// Can be overridden via SWITCHBOARD_CONFIG environment variable.
func GetConfigPath() string {
	if envPath := os.Getenv("SWITCHBOARD_CONFIG"); envPath != "" {
		return expandPath(envPath)
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./.switchboard/config.yaml"
	}
	return filepath.Join(homeDir, ".switchboard", "config.yaml")
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(homeDir, path[2:])
	}
	return path
}

// ExpandPath is expandPath for callers outside the package.
func ExpandPath(path string) string {
	return expandPath(path)
}

// Load loads the configuration at path merged over the defaults, then
// applies environment overrides and validates the result. A missing file
// yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	expandedPath := expandPath(path)
	if _, err := os.Stat(expandedPath); err == nil {
		data, err := os.ReadFile(expandedPath) //#nosec 304 -- intentional file read for config
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %q: %w", expandedPath, err)
		}

		var fileConfig Config
		if err := yaml.Unmarshal(data, &fileConfig); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}

		if err := mergo.Merge(&cfg, fileConfig, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge config: %w", err)
		}
	}

	if cfg.MCPServers == nil {
		cfg.MCPServers = make(map[string]*MCPServerConfig)
	}
	for name, server := range cfg.MCPServers {
		if server.Name == "" {
			server.Name = name
		}
	}

	ApplyEnv(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadEnvFile loads variables from a dotenv file without replacing ones
// already set. A missing file is ignored.
func LoadEnvFile(path string) error {
	expandedPath := expandPath(path)
	if _, err := os.Stat(expandedPath); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(expandedPath); err != nil {
		return fmt.Errorf("failed to load env file %q: %w", expandedPath, err)
	}
	return nil
}

// ApplyEnv overrides credentials and endpoints from environment variables.
func ApplyEnv(cfg *Config) {
	override := func(dst *string, keys ...string) {
		for _, key := range keys {
			if v := os.Getenv(key); v != "" {
				*dst = v
				return
			}
		}
	}

	override(&cfg.Anthropic.APIKey, "ANTHROPIC_API_KEY")
	override(&cfg.Gemini.APIKey, "GEMINI_API_KEY", "GOOGLE_API_KEY")
	override(&cfg.OpenAI.APIKey, "OPENAI_API_KEY")
	override(&cfg.OpenAI.BaseURL, "OPENAI_BASE_URL")
	override(&cfg.OpenAI.Model, "OPENAI_MODEL")
	override(&cfg.OpenAI.Organization, "OPENAI_ORG_ID")
	override(&cfg.Ollama.Host, "OLLAMA_HOST")
	override(&cfg.Ollama.Model, "OLLAMA_MODEL")
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// getValidator returns the singleton validator instance.
func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		// Use yaml tag names for field names in error messages
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

// Validate checks the configuration against its struct tags.
func Validate(cfg *Config) error {
	err := getValidator().Struct(cfg)
	if err == nil {
		return nil
	}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return fmt.Errorf("invalid config: %w", err)
	}

	messages := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		messages = append(messages, fmt.Sprintf("%s: failed %q", strings.TrimPrefix(e.Namespace(), "Config."), e.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(messages, "; "))
}

// Save saves the configuration to the specified path.
func Save(cfg *Config, path string) error {
	expandedPath := expandPath(path)

	// Ensure directory exists
	dir := filepath.Dir(expandedPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(expandedPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// EnabledProviders returns the configured providers in order.
func (c *Config) EnabledProviders() []llm.Provider {
	return lo.Map(c.Providers, func(p string, _ int) llm.Provider {
		return llm.Provider(p)
	})
}

// ProviderConfig returns the settings the provider registry needs.
func (c *Config) ProviderConfig() *llm.ProviderConfig {
	return &llm.ProviderConfig{
		AnthropicAPIKey: c.Anthropic.APIKey,
		AnthropicModel:  c.Anthropic.Model,
		GeminiAPIKey:    c.Gemini.APIKey,
		GeminiBaseURL:   c.Gemini.BaseURL,
		GeminiModel:     c.Gemini.Model,
		OllamaHost:      c.Ollama.Host,
		OllamaModel:     c.Ollama.Model,
		OpenAIAPIKey:    c.OpenAI.APIKey,
		OpenAIBaseURL:   c.OpenAI.BaseURL,
		OpenAIModel:     c.OpenAI.Model,
		OpenAIOrg:       c.OpenAI.Organization,
	}
}

// Registry creates a provider registry for the configuration.
func (c *Config) Registry() *llm.ProviderRegistry {
	return llm.NewProviderRegistry(c.ProviderConfig(), c.EnabledProviders())
}
