package mcp

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/aschepis/backscratcher/switchboard/llm"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// ServerConfig describes how to reach an MCP server. Command selects the
// stdio transport, otherwise URL selects streamable HTTP.
type ServerConfig struct {
	Name    string
	Command string
	URL     string
	Args    []string
	Env     []string
}

// Dial creates an unstarted client for cfg.
func Dial(logger zerolog.Logger, cfg ServerConfig) (*Client, error) {
	switch {
	case cfg.Command != "":
		return NewStdioClient(logger, cfg.Name, cfg.Command, cfg.Args, cfg.Env)
	case cfg.URL != "":
		return NewHTTPClient(logger, cfg.Name, cfg.URL)
	default:
		return nil, fmt.Errorf("mcp server %s: command or url is required", cfg.Name)
	}
}

type registeredTool struct {
	client   ToolClient
	original string
	tool     llm.Tool
}

// Toolbox exposes the tools of several MCP servers to the generation loop.
// It implements llm.ToolExecutor.
type Toolbox struct {
	mu      sync.RWMutex
	names   *NameAdapter
	tools   map[string]registeredTool
	clients []ToolClient
	logger  zerolog.Logger
}

// NewToolbox creates an empty toolbox.
func NewToolbox(logger zerolog.Logger) *Toolbox {
	return &Toolbox{
		names:  NewNameAdapter(),
		tools:  make(map[string]registeredTool),
		logger: logger.With().Str("component", "toolbox").Logger(),
	}
}

// Connect dials and registers every server. A server that fails to start
// is logged and skipped so the remaining tools stay usable.
func (b *Toolbox) Connect(ctx context.Context, servers []ServerConfig) error {
	var errs []error
	for _, cfg := range servers {
		client, err := Dial(b.logger, cfg)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := b.Add(ctx, cfg.Name, client); err != nil {
			_ = client.Close() //nolint:errcheck // Cleanup on error
			b.logger.Warn().Err(err).Str("server", cfg.Name).Msg("Skipping MCP server")
			errs = append(errs, err)
		}
	}
	if len(errs) == len(servers) && len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Add starts client and registers its tools. Tools whose schema cannot be
// expressed are skipped.
func (b *Toolbox) Add(ctx context.Context, server string, client ToolClient) error {
	if err := client.Start(ctx); err != nil {
		return fmt.Errorf("mcp server %s: %w", server, err)
	}
	defs, err := client.ListTools(ctx)
	if err != nil {
		return fmt.Errorf("mcp server %s: %w", server, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.clients = append(b.clients, client)
	for _, def := range defs {
		safe := b.names.GetSafeName(def.Name)
		tool, err := ToTool(safe, def)
		if err != nil {
			b.logger.Warn().Err(err).Str("server", server).Str("tool", def.Name).Msg("Skipping tool")
			continue
		}
		b.tools[safe] = registeredTool{client: client, original: def.Name, tool: tool}
	}
	b.logger.Info().Str("server", server).Int("tools", len(defs)).Msg("Registered MCP tools")
	return nil
}

// Tools returns the registered tools ordered by name.
func (b *Toolbox) Tools() []llm.Tool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := lo.Keys(b.tools)
	sort.Strings(names)
	return lo.Map(names, func(name string, _ int) llm.Tool {
		return b.tools[name].tool
	})
}

// Execute implements llm.ToolExecutor.
func (b *Toolbox) Execute(ctx context.Context, call llm.ToolCall) (string, error) {
	b.mu.RLock()
	registered, ok := b.tools[call.Name]
	b.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("unknown tool %q", call.Name)
	}

	args := call.Arguments
	if args == nil {
		args = map[string]any{}
	}
	return registered.client.InvokeTool(ctx, registered.original, args)
}

// Close closes every client.
func (b *Toolbox) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	errs := lo.FilterMap(b.clients, func(c ToolClient, _ int) (error, bool) {
		err := c.Close()
		return err, err != nil
	})
	b.clients = nil
	return errors.Join(errs...)
}

var _ llm.ToolExecutor = (*Toolbox)(nil)
