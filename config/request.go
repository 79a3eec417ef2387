package config

import (
	"fmt"
	"os"

	"dario.cat/mergo"
	"github.com/aschepis/backscratcher/switchboard/llm"
	"gopkg.in/yaml.v3"
)

// RequestFile is the YAML (or JSON) form of a generation request.
type RequestFile struct {
	Model         string            `yaml:"model,omitempty"`
	SystemPrompts []string          `yaml:"system_prompts,omitempty"`
	Messages      []llm.MessageSpec `yaml:"messages"`
	Temperature   *float64          `yaml:"temperature,omitempty"`
	TopP          *float64          `yaml:"top_p,omitempty"`
	MaxTokens     *int              `yaml:"max_tokens,omitempty"`
	MaxSteps      int               `yaml:"max_steps,omitempty"`
	ToolChoice    string            `yaml:"tool_choice,omitempty"`
	Tools         []ToolFile        `yaml:"tools,omitempty"`
	SchemaName    string            `yaml:"schema_name,omitempty"`
	Schema        map[string]any    `yaml:"schema,omitempty"`

	Anthropic *AnthropicRequestOptions `yaml:"anthropic,omitempty"`
	Gemini    *GeminiRequestOptions    `yaml:"gemini,omitempty"`
	OpenAI    *OpenAIRequestOptions    `yaml:"openai,omitempty"`
	Ollama    *OllamaRequestOptions    `yaml:"ollama,omitempty"`
}

// ToolFile declares a tool in a request file. Parameters is a JSON schema
// object.
type ToolFile struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description,omitempty"`
	Parameters  map[string]any `yaml:"parameters,omitempty"`
}

type AnthropicRequestOptions struct {
	Citations *bool `yaml:"citations,omitempty"`
}

type GeminiRequestOptions struct {
	SafetySettings []llm.SafetySetting `yaml:"safety_settings,omitempty"`
}

type OpenAIRequestOptions struct {
	Strict *bool  `yaml:"strict,omitempty"`
	User   string `yaml:"user,omitempty"`
}

type OllamaRequestOptions struct {
	Options map[string]any `yaml:"options,omitempty"`
}

// LoadRequestFile reads and decodes a request file.
func LoadRequestFile(path string) (*llm.Request, error) {
	data, err := os.ReadFile(expandPath(path)) //#nosec 304 -- intentional file read for request
	if err != nil {
		return nil, fmt.Errorf("failed to read request file %q: %w", path, err)
	}
	return ParseRequest(data)
}

// ParseRequest decodes a request document.
func ParseRequest(data []byte) (*llm.Request, error) {
	var file RequestFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse request: %w", err)
	}
	return file.Request()
}

// Request converts the file into an llm.Request.
func (f *RequestFile) Request() (*llm.Request, error) {
	messages, err := llm.DecodeMessages(f.Messages)
	if err != nil {
		return nil, err
	}

	opts := []llm.RequestOption{
		llm.WithMessages(messages...),
		llm.WithToolChoice(llm.ToolChoice(f.ToolChoice)),
		llm.WithProviderMeta(f.providerMeta()),
	}
	for _, sp := range f.SystemPrompts {
		opts = append(opts, llm.WithSystemPrompt(sp))
	}
	if f.Temperature != nil {
		opts = append(opts, llm.WithTemperature(*f.Temperature))
	}
	if f.TopP != nil {
		opts = append(opts, llm.WithTopP(*f.TopP))
	}
	if f.MaxTokens != nil {
		opts = append(opts, llm.WithMaxTokens(*f.MaxTokens))
	}
	if f.MaxSteps > 0 {
		opts = append(opts, llm.WithMaxSteps(f.MaxSteps))
	}

	if f.Schema != nil {
		name := f.SchemaName
		if name == "" {
			name = "response"
		}
		schema, err := llm.ParseJSONSchema(name, f.Schema)
		if err != nil {
			return nil, fmt.Errorf("schema: %w", err)
		}
		opts = append(opts, llm.WithSchema(schema))
	}

	for _, tf := range f.Tools {
		tool, err := ParseTool(tf.Name, tf.Description, tf.Parameters)
		if err != nil {
			return nil, err
		}
		opts = append(opts, llm.WithTools(tool))
	}

	return llm.NewRequest(f.Model, opts...), nil
}

// ParseTool builds a tool from a JSON schema parameter document. The
// document must describe an object.
func ParseTool(name, description string, parameters map[string]any) (llm.Tool, error) {
	tool := llm.Tool{Name: name, Description: description}
	if len(parameters) == 0 {
		return tool, nil
	}
	schema, err := llm.ParseJSONSchema(name, parameters)
	if err != nil {
		return llm.Tool{}, fmt.Errorf("tool %s: %w", name, err)
	}
	obj, ok := schema.(*llm.ObjectSchema)
	if !ok {
		return llm.Tool{}, llm.NewConfigurationError(fmt.Sprintf("tool %s: parameters must be an object schema", name))
	}
	tool.Parameters = obj
	return tool, nil
}

func (f *RequestFile) providerMeta() llm.ProviderMeta {
	var meta llm.ProviderMeta
	if f.Anthropic != nil {
		meta.Anthropic = &llm.AnthropicMeta{Citations: f.Anthropic.Citations}
	}
	if f.Gemini != nil {
		meta.Gemini = &llm.GeminiMeta{SafetySettings: f.Gemini.SafetySettings}
	}
	if f.OpenAI != nil {
		meta.OpenAI = &llm.OpenAIMeta{Strict: f.OpenAI.Strict, User: f.OpenAI.User}
	}
	if f.Ollama != nil {
		meta.Ollama = &llm.OllamaMeta{Options: f.Ollama.Options}
	}
	return meta
}

// RequestMeta returns the provider options configured globally.
func (c *Config) RequestMeta() llm.ProviderMeta {
	var meta llm.ProviderMeta
	if len(c.Gemini.SafetySettings) > 0 {
		meta.Gemini = &llm.GeminiMeta{SafetySettings: c.Gemini.SafetySettings}
	}
	if c.OpenAI.Strict {
		strict := true
		meta.OpenAI = &llm.OpenAIMeta{Strict: &strict}
	}
	return meta
}

// ApplyRequestDefaults fills in the model and any provider options the
// request leaves unset. Options set on the request win.
func (c *Config) ApplyRequestDefaults(req *llm.Request, key *llm.ClientKey) error {
	if req.Model == "" && key != nil {
		req.Model = key.Model
	}
	if err := mergo.Merge(&req.ProviderMeta, c.RequestMeta()); err != nil {
		return fmt.Errorf("failed to merge provider options: %w", err)
	}
	return nil
}
