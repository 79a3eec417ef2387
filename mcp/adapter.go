package mcp

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/aschepis/backscratcher/switchboard/llm"
)

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// NameAdapter handles mapping between MCP tool names and names every
// provider accepts. Provider tool names are limited to letters, digits,
// underscores and dashes.
type NameAdapter struct {
	mu             sync.RWMutex
	safeToOriginal map[string]string
	originalToSafe map[string]string
}

// NewNameAdapter creates a new name adapter.
func NewNameAdapter() *NameAdapter {
	return &NameAdapter{
		safeToOriginal: make(map[string]string),
		originalToSafe: make(map[string]string),
	}
}

// ToSafeName converts an MCP tool name to a safe name.
// Example: "gmail.messages.list" -> "gmail_messages_list"
func ToSafeName(original string) string {
	return unsafeName.ReplaceAllString(original, "_")
}

// ToOriginalName converts a safe name back to the original MCP tool name.
func (a *NameAdapter) ToOriginalName(safe string) (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	original, ok := a.safeToOriginal[safe]
	return original, ok
}

// RegisterMapping registers a bidirectional mapping between original and safe names.
func (a *NameAdapter) RegisterMapping(original, safe string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.originalToSafe[original] = safe
	a.safeToOriginal[safe] = original
}

// GetSafeName returns the safe name for an original name, creating the
// mapping if needed. Names that collide once made safe get a numeric suffix.
func (a *NameAdapter) GetSafeName(original string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if safe, ok := a.originalToSafe[original]; ok {
		return safe
	}
	safe := ToSafeName(original)
	for i := 2; ; i++ {
		if _, taken := a.safeToOriginal[safe]; !taken {
			break
		}
		safe = fmt.Sprintf("%s_%d", ToSafeName(original), i)
	}
	a.originalToSafe[original] = safe
	a.safeToOriginal[safe] = original
	return safe
}

// ToTool converts an MCP tool definition into an llm.Tool named name.
func ToTool(name string, def ToolDefinition) (llm.Tool, error) {
	tool := llm.Tool{Name: name, Description: strings.TrimSpace(def.Description)}
	if len(def.InputSchema) == 0 {
		return tool, nil
	}
	schema, err := llm.ParseJSONSchema(name, def.InputSchema)
	if err != nil {
		return llm.Tool{}, fmt.Errorf("tool %s: %w", def.Name, err)
	}
	obj, ok := schema.(*llm.ObjectSchema)
	if !ok {
		return llm.Tool{}, llm.NewConfigurationError(fmt.Sprintf("tool %s: input schema must be an object", def.Name))
	}
	tool.Parameters = obj
	return tool, nil
}
