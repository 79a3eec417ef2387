package llm

// Provider identifies a supported provider.
type Provider string

const (
	ProviderAnthropic Provider = "anthropic"
	ProviderGemini    Provider = "gemini"
	ProviderOllama    Provider = "ollama"
	ProviderOpenAI    Provider = "openai"
)

// Providers lists every supported provider in preference order.
var Providers = []Provider{ProviderAnthropic, ProviderGemini, ProviderOpenAI, ProviderOllama}

// ProviderMeta holds per-provider options for a message, document or
// request. A nil entry means the provider has nothing set.
type ProviderMeta struct {
	Anthropic *AnthropicMeta
	Gemini    *GeminiMeta
	OpenAI    *OpenAIMeta
	Ollama    *OllamaMeta
}

// CacheType is a prompt caching hint. Values are passed through to the
// provider as is.
type CacheType string

const CacheEphemeral CacheType = "ephemeral"

// AnthropicMeta holds Anthropic options.
type AnthropicMeta struct {
	CacheType CacheType
	Citations *bool
}

// SafetySetting is a Gemini harm category threshold.
type SafetySetting struct {
	Category  string `json:"category" yaml:"category" validate:"required"`
	Threshold string `json:"threshold" yaml:"threshold" validate:"required"`
}

// GeminiMeta holds Gemini options.
type GeminiMeta struct {
	SafetySettings []SafetySetting
}

// OpenAIMeta holds OpenAI options.
type OpenAIMeta struct {
	Strict *bool
	User   string
}

// OllamaMeta holds Ollama options. Options are sent as the request's
// model options before generation parameters are applied.
type OllamaMeta struct {
	Options map[string]any
}

// AnthropicOptions returns the Anthropic options or the zero value.
func (p ProviderMeta) AnthropicOptions() AnthropicMeta {
	if p.Anthropic == nil {
		return AnthropicMeta{}
	}
	return *p.Anthropic
}

// GeminiOptions returns the Gemini options or the zero value.
func (p ProviderMeta) GeminiOptions() GeminiMeta {
	if p.Gemini == nil {
		return GeminiMeta{}
	}
	return *p.Gemini
}

// OpenAIOptions returns the OpenAI options or the zero value.
func (p ProviderMeta) OpenAIOptions() OpenAIMeta {
	if p.OpenAI == nil {
		return OpenAIMeta{}
	}
	return *p.OpenAI
}

// OllamaOptions returns the Ollama options or the zero value.
func (p ProviderMeta) OllamaOptions() OllamaMeta {
	if p.Ollama == nil {
		return OllamaMeta{}
	}
	return *p.Ollama
}

// AnthropicCache is shorthand for metadata that only sets a cache hint.
func AnthropicCache(cacheType CacheType) ProviderMeta {
	return ProviderMeta{Anthropic: &AnthropicMeta{CacheType: cacheType}}
}

// AnthropicCitations is shorthand for metadata that only sets the citation flag.
func AnthropicCitations(enabled bool) ProviderMeta {
	return ProviderMeta{Anthropic: &AnthropicMeta{Citations: &enabled}}
}
