package mcp

import (
	"context"
	"fmt"
	"net/url"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
)

// protocolVersions are tried in order when an HTTP server rejects the
// initial handshake.
var protocolVersions = []string{
	mcp.LATEST_PROTOCOL_VERSION,
	"2024-11-05",
}

// NewHTTPClient returns a client for a streamable HTTP MCP server.
func NewHTTPClient(logger zerolog.Logger, name, baseURL string) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("baseURL is required for HTTP MCP client")
	}
	if u, err := url.Parse(baseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid baseURL %q", baseURL)
	}

	mcpClient, err := client.NewStreamableHttpClient(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP MCP client: %w", err)
	}

	c := &Client{
		client: mcpClient,
		server: name,
		logger: logger.With().Str("component", "mcp").Str("server", name).Str("transport", "http").Str("base_url", baseURL).Logger(),
	}
	c.start = c.startHTTP
	return c, nil
}

func (c *Client) startHTTP(ctx context.Context) error {
	if err := c.client.Start(ctx); err != nil {
		return fmt.Errorf("failed to start HTTP MCP client: %w", err)
	}

	var lastErr error
	for _, version := range protocolVersions {
		if err := c.initialize(ctx, version); err != nil {
			lastErr = err
			c.logger.Warn().
				Str("protocol_version", version).
				Err(err).
				Msg("Initialize failed, trying next protocol version")
			continue
		}
		c.logger.Debug().Str("protocol_version", version).Msg("Initialize succeeded")
		return nil
	}
	return lastErr
}
