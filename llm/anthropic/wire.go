package anthropic

// Wire types for the Messages API. Optional fields are pointers or tagged
// omitempty so that unset values are left out of the payload entirely.

// MessagesRequest is the body of POST v1/messages.
type MessagesRequest struct {
	Model       string         `json:"model"`
	Messages    []Message      `json:"messages"`
	System      []ContentBlock `json:"system,omitempty"`
	MaxTokens   int            `json:"max_tokens"`
	Temperature *float64       `json:"temperature,omitempty"`
	TopP        *float64       `json:"top_p,omitempty"`
	Tools       []Tool         `json:"tools,omitempty"`
	ToolChoice  *ToolChoice    `json:"tool_choice,omitempty"`
}

// Message is one conversation turn.
type Message struct {
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
}

// ContentBlock is a text, image, document, tool_use or tool_result block.
// Input and Content are interfaces so that an empty object or empty string
// is still emitted for the block types that require them.
type ContentBlock struct {
	Type         string        `json:"type"`
	Text         string        `json:"text,omitempty"`
	Source       *Source       `json:"source,omitempty"`
	Title        string        `json:"title,omitempty"`
	Context      string        `json:"context,omitempty"`
	ID           string        `json:"id,omitempty"`
	Name         string        `json:"name,omitempty"`
	Input        any           `json:"input,omitempty"`
	ToolUseID    string        `json:"tool_use_id,omitempty"`
	Content      any           `json:"content,omitempty"`
	Citations    any           `json:"citations,omitempty"`
	CacheControl *CacheControl `json:"cache_control,omitempty"`
}

// Source is the payload of an image or document block.
type Source struct {
	Type      string         `json:"type"`
	MediaType string         `json:"media_type,omitempty"`
	Data      string         `json:"data,omitempty"`
	Content   []ContentBlock `json:"content,omitempty"`
}

// CacheControl marks a block as a prompt caching breakpoint.
type CacheControl struct {
	Type string `json:"type"`
}

// CitationsConfig enables citations on a document block.
type CitationsConfig struct {
	Enabled bool `json:"enabled"`
}

// Citation is a text block citation, sent back on assistant turns and
// received in responses.
type Citation struct {
	Type            string `json:"type"`
	CitedText       string `json:"cited_text"`
	DocumentIndex   int    `json:"document_index"`
	DocumentTitle   string `json:"document_title,omitempty"`
	StartCharIndex  *int   `json:"start_char_index,omitempty"`
	EndCharIndex    *int   `json:"end_char_index,omitempty"`
	StartPageNumber *int   `json:"start_page_number,omitempty"`
	EndPageNumber   *int   `json:"end_page_number,omitempty"`
	StartBlockIndex *int   `json:"start_block_index,omitempty"`
	EndBlockIndex   *int   `json:"end_block_index,omitempty"`
}

// Tool declares a callable tool.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema"`
}

// ToolChoice forces or restricts tool use.
type ToolChoice struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
}

// messagesResponse is the subset of a Messages API response that is read.
type messagesResponse struct {
	ID         string          `json:"id"`
	Model      string          `json:"model"`
	StopReason string          `json:"stop_reason"`
	Content    []responseBlock `json:"content"`
	Usage      responseUsage   `json:"usage"`
}

type responseBlock struct {
	Type      string         `json:"type"`
	Text      string         `json:"text"`
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Input     map[string]any `json:"input"`
	Citations []Citation     `json:"citations"`
}

type responseUsage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens"`
}
