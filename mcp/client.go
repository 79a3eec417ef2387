package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

const (
	clientName    = "switchboard"
	clientVersion = "1.0.0"
)

// ToolDefinition represents an MCP tool definition.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// ToolClient is the interface for interacting with MCP servers.
type ToolClient interface {
	// Start initializes and starts the MCP client connection.
	Start(ctx context.Context) error

	// ListTools returns all tools available from the MCP server.
	ListTools(ctx context.Context) ([]ToolDefinition, error)

	// InvokeTool invokes a tool on the MCP server and returns its text
	// output.
	InvokeTool(ctx context.Context, name string, input map[string]any) (string, error)

	// Close closes the connection to the MCP server.
	Close() error
}

// ToolError is returned when the server reports a tool failure. Message is
// the text the tool produced.
type ToolError struct {
	Tool    string
	Message string
}

func (e *ToolError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("tool %s failed", e.Tool)
	}
	return fmt.Sprintf("tool %s failed: %s", e.Tool, e.Message)
}

// Client implements ToolClient over an mcp-go client. The transport only
// changes how the session is started.
type Client struct {
	client *client.Client
	server string
	start  func(ctx context.Context) error
	logger zerolog.Logger
}

// Start initializes the MCP client connection.
func (c *Client) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before start: %w", err)
	}
	c.logger.Debug().Str("method", "Start").Msg("Starting MCP session")
	if err := c.start(ctx); err != nil {
		c.logger.Error().Str("method", "Start").Err(err).Msg("Failed to start MCP session")
		return err
	}
	c.logger.Info().Str("method", "Start").Msg("MCP session started")
	return nil
}

// initialize performs the MCP handshake with protocolVersion.
func (c *Client) initialize(ctx context.Context, protocolVersion string) error {
	initReq := mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: protocolVersion,
			Capabilities:    mcp.ClientCapabilities{},
			ClientInfo: mcp.Implementation{
				Name:    clientName,
				Version: clientVersion,
			},
		},
	}
	if _, err := c.client.Initialize(ctx, initReq); err != nil {
		return fmt.Errorf("failed to initialize MCP client: %w", err)
	}
	return nil
}

// ListTools returns all tools available from the MCP server.
func (c *Client) ListTools(ctx context.Context) ([]ToolDefinition, error) {
	result, err := c.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		c.logger.Error().Str("method", "ListTools").Err(err).Msg("Failed to list tools")
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}
	c.logger.Debug().
		Str("method", "ListTools").
		Int("tool_count", len(result.Tools)).
		Msg("Received tools from MCP server")

	return lo.Map(result.Tools, func(tool mcp.Tool, _ int) ToolDefinition {
		return toDefinition(tool)
	}), nil
}

func toDefinition(tool mcp.Tool) ToolDefinition {
	inputSchema := map[string]any{"type": tool.InputSchema.Type}
	if tool.InputSchema.Properties != nil {
		inputSchema["properties"] = tool.InputSchema.Properties
	}
	if len(tool.InputSchema.Required) > 0 {
		inputSchema["required"] = lo.Map(tool.InputSchema.Required, func(r string, _ int) any { return r })
	}
	if len(tool.InputSchema.Defs) > 0 {
		inputSchema["$defs"] = tool.InputSchema.Defs
	}
	return ToolDefinition{
		Name:        tool.Name,
		Description: tool.Description,
		InputSchema: inputSchema,
	}
}

// InvokeTool invokes a tool on the MCP server. Text content is joined by
// newlines. A result flagged as an error is returned as a *ToolError.
func (c *Client) InvokeTool(ctx context.Context, name string, input map[string]any) (string, error) {
	c.logger.Debug().Str("method", "InvokeTool").Str("tool_name", name).Msg("Invoking tool on MCP server")

	result, err := c.client.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: input,
		},
	})
	if err != nil {
		c.logger.Error().Str("method", "InvokeTool").Str("tool_name", name).Err(err).Msg("Failed to invoke tool on MCP server")
		return "", fmt.Errorf("failed to invoke tool %s: %w", name, err)
	}

	texts := lo.FilterMap(result.Content, func(content mcp.Content, _ int) (string, bool) {
		if textContent, ok := mcp.AsTextContent(content); ok {
			return textContent.Text, true
		}
		text := mcp.GetTextFromContent(content)
		return text, text != ""
	})
	output := strings.Join(texts, "\n")

	if result.IsError {
		return "", &ToolError{Tool: name, Message: output}
	}
	return output, nil
}

// Close closes the connection to the MCP server.
func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

var _ ToolClient = (*Client)(nil)

// Server returns the configured server name.
func (c *Client) Server() string {
	return c.server
}
