package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
)

// NewStdioClient launches command and returns a client speaking MCP over
// its standard streams. A command containing spaces is split into the
// executable and leading arguments.
func NewStdioClient(logger zerolog.Logger, name, command string, args, env []string) (*Client, error) {
	if command == "" {
		return nil, fmt.Errorf("command is required for STDIO MCP client")
	}

	logger = logger.With().Str("component", "mcp").Str("server", name).Str("transport", "stdio").Logger()

	parts := strings.Fields(command)
	cmd := parts[0]
	cmdArgs := append(append([]string{}, parts[1:]...), args...)

	logger.Debug().Str("command", cmd).Strs("args", cmdArgs).Msg("Launching MCP server")
	mcpClient, err := client.NewStdioMCPClient(cmd, env, cmdArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to create stdio MCP client: %w", err)
	}

	c := &Client{client: mcpClient, server: name, logger: logger}
	// The process is already running, so the handshake comes first.
	c.start = func(ctx context.Context) error {
		if err := c.initialize(ctx, mcp.LATEST_PROTOCOL_VERSION); err != nil {
			return err
		}
		if err := c.client.Start(ctx); err != nil {
			return fmt.Errorf("failed to start MCP client: %w", err)
		}
		return nil
	}
	return c, nil
}

// NewInProcessClient returns a client connected to srv within the current
// process.
func NewInProcessClient(logger zerolog.Logger, name string, srv *server.MCPServer) (*Client, error) {
	mcpClient, err := client.NewInProcessClient(srv)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-process MCP client: %w", err)
	}

	c := &Client{
		client: mcpClient,
		server: name,
		logger: logger.With().Str("component", "mcp").Str("server", name).Str("transport", "inprocess").Logger(),
	}
	c.start = func(ctx context.Context) error {
		if err := c.client.Start(ctx); err != nil {
			return fmt.Errorf("failed to start MCP client: %w", err)
		}
		return c.initialize(ctx, mcp.LATEST_PROTOCOL_VERSION)
	}
	return c, nil
}
