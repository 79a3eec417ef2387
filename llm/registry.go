package llm

import (
	"fmt"
	"os"
	"sync"
)

// Default models used when a preference names a provider without a model.
const (
	DefaultAnthropicModel = "claude-haiku-4-5"
	DefaultGeminiModel    = "gemini-2.5-flash"
)

// Preference represents a single provider/model preference.
type Preference struct {
	Provider Provider
	Model    string
}

// ClientKey uniquely identifies an LLM client configuration.
type ClientKey struct {
	Provider     Provider
	Model        string
	APIKey       string // For credential-based providers
	Host         string // For Ollama
	BaseURL      string // For OpenAI and Gemini
	Organization string // For OpenAI
}

// ProviderConfig holds the configuration needed for provider registry.
// This avoids import cycles by not importing the config package.
type ProviderConfig struct {
	AnthropicAPIKey string
	AnthropicModel  string
	GeminiAPIKey    string
	GeminiBaseURL   string
	GeminiModel     string
	OllamaHost      string
	OllamaModel     string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	OpenAIModel     string
	OpenAIOrg       string
}

// ProviderRegistry manages provider selection and configuration resolution.
// Client creation is handled by the caller to avoid import cycles.
type ProviderRegistry struct {
	enabled []Provider // In configured order
	mu      sync.RWMutex
	config  *ProviderConfig
}

// NewProviderRegistry creates a new ProviderRegistry with the given config and enabled providers.
func NewProviderRegistry(providerConfig *ProviderConfig, enabledProviders []Provider) *ProviderRegistry {
	var enabled []Provider
	seen := make(map[Provider]bool)
	for _, p := range enabledProviders {
		if !seen[p] {
			seen[p] = true
			enabled = append(enabled, p)
		}
	}

	return &ProviderRegistry{
		enabled: enabled,
		config:  providerConfig,
	}
}

// IsProviderEnabled checks if a provider is in the enabled providers list.
func (r *ProviderRegistry) IsProviderEnabled(provider Provider) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.isEnabledUnlocked(provider)
}

// IsProviderConfigured checks if a provider has the required configuration (API keys, hosts, etc.).
func (r *ProviderRegistry) IsProviderConfigured(provider Provider) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.isProviderConfiguredUnlocked(provider)
}

// Resolve returns a ClientKey for the first preference whose provider is
// enabled and configured. Without preferences the first enabled provider
// is used with its default model.
func (r *ProviderRegistry) Resolve(prefs []Preference) (*ClientKey, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(prefs) > 0 {
		var attempted []Provider
		for _, pref := range prefs {
			attempted = append(attempted, pref.Provider)

			if !r.isEnabledUnlocked(pref.Provider) || !r.isProviderConfiguredUnlocked(pref.Provider) {
				continue
			}

			key, err := r.resolveProviderConfig(pref.Provider, pref.Model)
			if err != nil {
				continue
			}
			return key, nil
		}

		return nil, fmt.Errorf("no available provider from preferences %v (enabled: %v)", attempted, r.enabled)
	}

	if len(r.enabled) == 0 {
		return nil, fmt.Errorf("no providers enabled")
	}

	first := r.enabled[0]
	if !r.isProviderConfiguredUnlocked(first) {
		return nil, fmt.Errorf("first enabled provider %s is not configured", first)
	}

	// A model from the request may be provider specific, so the provider's
	// default model is used instead.
	key, err := r.resolveProviderConfig(first, "")
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config for provider %s: %w", first, err)
	}

	return key, nil
}

func (r *ProviderRegistry) isEnabledUnlocked(provider Provider) bool {
	for _, p := range r.enabled {
		if p == provider {
			return true
		}
	}
	return false
}

// isProviderConfiguredUnlocked is the unlocked version of IsProviderConfigured.
// Must be called with r.mu already locked.
func (r *ProviderRegistry) isProviderConfiguredUnlocked(provider Provider) bool {
	switch provider {
	case ProviderAnthropic:
		return r.config.AnthropicAPIKey != ""
	case ProviderGemini:
		return r.geminiAPIKey() != ""
	case ProviderOllama:
		// Ollama doesn't require API key, just needs host (which has a default)
		return true
	case ProviderOpenAI:
		return r.openAIAPIKey() != ""
	default:
		return false
	}
}

func (r *ProviderRegistry) geminiAPIKey() string {
	if r.config.GeminiAPIKey != "" {
		return r.config.GeminiAPIKey
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		return key
	}
	return os.Getenv("GOOGLE_API_KEY")
}

func (r *ProviderRegistry) openAIAPIKey() string {
	if r.config.OpenAIAPIKey != "" {
		return r.config.OpenAIAPIKey
	}
	return os.Getenv("OPENAI_API_KEY")
}

// resolveProviderConfig resolves provider-specific configuration and returns a ClientKey.
func (r *ProviderRegistry) resolveProviderConfig(provider Provider, modelOverride string) (*ClientKey, error) {
	key := &ClientKey{
		Provider: provider,
		Model:    modelOverride,
	}

	switch provider {
	case ProviderAnthropic:
		if r.config.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("anthropic API key not configured")
		}
		key.APIKey = r.config.AnthropicAPIKey
		if key.Model == "" {
			key.Model = firstNonEmpty(r.config.AnthropicModel, DefaultAnthropicModel)
		}

	case ProviderGemini:
		key.APIKey = r.geminiAPIKey()
		if key.APIKey == "" {
			return nil, fmt.Errorf("gemini API key not configured")
		}
		key.BaseURL = r.config.GeminiBaseURL
		if key.Model == "" {
			key.Model = firstNonEmpty(r.config.GeminiModel, DefaultGeminiModel)
		}

	case ProviderOllama:
		key.Host = firstNonEmpty(r.config.OllamaHost, os.Getenv("OLLAMA_HOST"), "http://localhost:11434")
		if key.Model == "" {
			key.Model = firstNonEmpty(r.config.OllamaModel, os.Getenv("OLLAMA_MODEL"))
		}
		if key.Model == "" {
			return nil, fmt.Errorf("ollama model not specified and no default configured")
		}

	case ProviderOpenAI:
		key.APIKey = r.openAIAPIKey()
		if key.APIKey == "" {
			return nil, fmt.Errorf("openai API key not configured")
		}
		key.BaseURL = firstNonEmpty(r.config.OpenAIBaseURL, os.Getenv("OPENAI_BASE_URL"))
		key.Organization = firstNonEmpty(r.config.OpenAIOrg, os.Getenv("OPENAI_ORG_ID"))
		if key.Model == "" {
			key.Model = firstNonEmpty(r.config.OpenAIModel, os.Getenv("OPENAI_MODEL"))
		}

	default:
		return nil, fmt.Errorf("unknown provider: %s", provider)
	}

	return key, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
