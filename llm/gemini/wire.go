package gemini

import "github.com/aschepis/backscratcher/switchboard/llm"

// Wire types for generateContent requests. Responses are read by path.

// Payload is the body of POST {model}:generateContent.
type Payload struct {
	Contents          []Content           `json:"contents"`
	SystemInstruction *Content            `json:"system_instruction,omitempty"`
	GenerationConfig  *GenerationConfig   `json:"generationConfig,omitempty"`
	SafetySettings    []llm.SafetySetting `json:"safetySettings,omitempty"`
	Tools             []Tool              `json:"tools,omitempty"`
	ToolConfig        *ToolConfig         `json:"toolConfig,omitempty"`
}

// Content is one conversation turn. Role is "user" or "model"; the system
// instruction has none.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// Part holds exactly one of its fields.
type Part struct {
	Text             string            `json:"text,omitempty"`
	InlineData       *Blob             `json:"inline_data,omitempty"`
	FileData         *FileData         `json:"file_data,omitempty"`
	FunctionCall     *FunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *FunctionResponse `json:"functionResponse,omitempty"`
}

// Blob is inline base64 data.
type Blob struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

// FileData references media by URI.
type FileData struct {
	MimeType string `json:"mime_type,omitempty"`
	FileURI  string `json:"file_uri"`
}

// FunctionCall is a tool call made by the model.
type FunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// FunctionResponse returns a tool result to the model.
type FunctionResponse struct {
	Name     string               `json:"name"`
	Response FunctionResponseBody `json:"response"`
}

// FunctionResponseBody wraps the tool output.
type FunctionResponseBody struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// GenerationConfig holds generation parameters and the response schema.
type GenerationConfig struct {
	ResponseMimeType string         `json:"response_mime_type,omitempty"`
	ResponseSchema   map[string]any `json:"response_schema,omitempty"`
	Temperature      *float64       `json:"temperature,omitempty"`
	TopP             *float64       `json:"topP,omitempty"`
	MaxOutputTokens  *int           `json:"maxOutputTokens,omitempty"`
}

// Tool groups function declarations.
type Tool struct {
	FunctionDeclarations []FunctionDeclaration `json:"function_declarations"`
}

// FunctionDeclaration declares a callable function.
type FunctionDeclaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// ToolConfig restricts function calling.
type ToolConfig struct {
	FunctionCallingConfig FunctionCallingConfig `json:"function_calling_config"`
}

// FunctionCallingConfig is the function calling mode.
type FunctionCallingConfig struct {
	Mode                 string   `json:"mode"`
	AllowedFunctionNames []string `json:"allowed_function_names,omitempty"`
}
