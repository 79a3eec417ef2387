package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/aschepis/backscratcher/switchboard/config"
	"github.com/aschepis/backscratcher/switchboard/llm"
	switchboardlogger "github.com/aschepis/backscratcher/switchboard/logger"
	"github.com/aschepis/backscratcher/switchboard/mcp"
	"github.com/aschepis/backscratcher/switchboard/metrics"
	"github.com/aschepis/backscratcher/switchboard/usage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath  = flag.String("config", config.GetConfigPath(), "Path to config file")
		envFile     = flag.String("env", ".env", "Path to dotenv file")
		requestPath = flag.String("request", "-", "Path to request file (YAML or JSON), or - for stdin")
		provider    = flag.String("provider", "", "Provider to use. Defaults to the first configured provider")
		model       = flag.String("model", "", "Model to use. Defaults to the provider's configured model")
		dbPath      = flag.String("db", "", "Path to usage database. Overrides usage.path")
		noUsage     = flag.Bool("no-usage", false, "Do not record usage")
		totals      = flag.Bool("totals", false, "Print recorded usage totals and exit")
		mcpFile     = flag.String("mcp", "", "Path to an mcpServers JSON file")
		metricsFile = flag.String("metrics-file", "", "Write Prometheus metrics to this file on exit")
		logFile     = flag.String("logfile", "", "Path to log file. If not set, logs to stderr")
		pretty      = flag.Bool("pretty", false, "Use pretty console output (only valid when logfile is not set)")
	)
	flag.Parse()

	if *logFile != "" && *pretty {
		return fmt.Errorf("--logfile and --pretty are mutually exclusive")
	}

	if err := config.LoadEnvFile(*envFile); err != nil {
		return err
	}

	logger, err := switchboardlogger.InitWithOptions(switchboardlogger.Options{File: *logFile, Pretty: *pretty})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if *mcpFile != "" {
		cfg.MCPServersFile = *mcpFile
	}
	if *dbPath != "" {
		cfg.Usage.Path = *dbPath
	}
	if *noUsage {
		cfg.Usage.Disabled = true
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store *usage.Store
	if !cfg.Usage.Disabled {
		store, err = usage.Open(config.ExpandPath(cfg.Usage.Path), logger)
		if err != nil {
			return fmt.Errorf("failed to open usage database: %w", err)
		}
		defer store.Close() //nolint:errcheck // No remedy for db close errors
	}

	if *totals {
		if store == nil {
			return fmt.Errorf("usage recording is disabled")
		}
		return printTotals(ctx, os.Stdout, store, cfg.EnabledProviders())
	}

	req, err := loadRequest(*requestPath)
	if err != nil {
		return err
	}

	var prefs []llm.Preference
	if *provider != "" {
		prefs = append(prefs, llm.Preference{Provider: llm.Provider(*provider), Model: *model})
	}
	key, err := cfg.Registry().Resolve(prefs)
	if err != nil {
		return err
	}
	if *model != "" {
		key.Model = *model
	}
	if err := cfg.ApplyRequestDefaults(req, key); err != nil {
		return err
	}

	toolbox, err := connectTools(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer toolbox.Close() //nolint:errcheck // Servers are shutting down anyway
	if tools := toolbox.Tools(); len(tools) > 0 {
		req.Tools = append(req.Tools, tools...)
	}

	client, err := config.NewClient(cfg, key, toolbox, logger)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	collector, err := metrics.NewCollector(registry)
	if err != nil {
		return err
	}

	middleware := []llm.Middleware{switchboardlogger.Middleware(logger, key.Provider)}
	if store != nil {
		middleware = append(middleware, store.Middleware(key.Provider))
	}
	client = llm.WrapWithMiddleware(collector.Instrument(client, key.Provider), middleware...)

	logger.Info().Str("provider", string(key.Provider)).Str("model", req.Model).Msg("Generating")
	resp, genErr := client.Generate(ctx, req)

	if *metricsFile != "" {
		if err := metrics.WriteTextfile(registry, *metricsFile); err != nil {
			logger.Warn().Err(err).Msg("Failed to write metrics")
		}
	}
	if genErr != nil {
		return genErr
	}
	return printResponse(os.Stdout, req, resp)
}

func loadRequest(path string) (*llm.Request, error) {
	if path != "-" {
		return config.LoadRequestFile(path)
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return nil, fmt.Errorf("failed to read request from stdin: %w", err)
	}
	return config.ParseRequest(data)
}

func connectTools(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*mcp.Toolbox, error) {
	if cfg.MCPServersFile != "" {
		servers, err := config.LoadMCPServersFile(logger, config.ExpandPath(cfg.MCPServersFile))
		if err != nil {
			return nil, err
		}
		cfg.MergeMCPServers(servers)
	}

	toolbox := mcp.NewToolbox(logger)
	if len(cfg.MCPServers) == 0 {
		return toolbox, nil
	}

	servers := lo.MapToSlice(cfg.MCPServers, func(name string, s *config.MCPServerConfig) mcp.ServerConfig {
		return mcp.ServerConfig{Name: name, Command: s.Command, URL: s.URL, Args: s.Args, Env: s.Env}
	})
	if err := toolbox.Connect(ctx, servers); err != nil {
		return nil, fmt.Errorf("failed to connect MCP servers: %w", err)
	}
	return toolbox, nil
}

func printResponse(w io.Writer, req *llm.Request, resp *llm.Response) error {
	if req.Schema != nil {
		value, err := resp.Structured()
		if err != nil {
			return err
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(value); err != nil {
			return fmt.Errorf("failed to write response: %w", err)
		}
	} else if _, err := fmt.Fprintln(w, resp.Text); err != nil {
		return fmt.Errorf("failed to write response: %w", err)
	}

	_, err := fmt.Fprintf(os.Stderr, "finish=%s steps=%d prompt_tokens=%d completion_tokens=%d\n",
		resp.FinishReason, len(resp.Steps), resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	return err
}

func printTotals(ctx context.Context, w io.Writer, store *usage.Store, providers []llm.Provider) error {
	var errs []error
	for _, p := range providers {
		u, err := store.Totals(ctx, p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		fmt.Fprintf(w, "%-10s prompt=%d completion=%d cache_write=%d cache_read=%d\n",
			p, u.PromptTokens, u.CompletionTokens, u.CacheWriteInputTokens, u.CacheReadInputTokens)
	}
	return errors.Join(errs...)
}
