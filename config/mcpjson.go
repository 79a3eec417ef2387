package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// MCPServersFile is the "mcpServers" JSON document shared by MCP hosts.
type MCPServersFile struct {
	MCPServers map[string]MCPServersFileEntry `json:"mcpServers"`
}

// MCPServersFileEntry is one server in an MCPServersFile.
type MCPServersFileEntry struct {
	Command string          `json:"command,omitempty"`
	URL     string          `json:"url,omitempty"`
	Args    []string        `json:"args,omitempty"`
	Env     json.RawMessage `json:"env,omitempty"` // Can be array of strings or object
}

// EnvStrings converts the Env field to a slice of strings.
// Env can be either an array of strings or an object (map[string]string).
// If it's an object, converts it to "KEY=VALUE" format strings.
func (e *MCPServersFileEntry) EnvStrings(logger zerolog.Logger) []string {
	if len(e.Env) == 0 {
		return nil
	}

	var envArray []string
	if err := json.Unmarshal(e.Env, &envArray); err == nil {
		return envArray
	}

	var envMap map[string]string
	if err := json.Unmarshal(e.Env, &envMap); err == nil {
		return lo.MapToSlice(envMap, func(key string, value string) string {
			return fmt.Sprintf("%s=%s", key, value)
		})
	}

	logger.Warn().
		Str("env", string(e.Env)).
		Msg("Failed to parse env field, expected array of strings or object")
	return nil
}

// LoadMCPServersFile reads an mcpServers JSON file and converts its entries.
// A missing file yields no servers.
func LoadMCPServersFile(logger zerolog.Logger, path string) (map[string]*MCPServerConfig, error) {
	expandedPath := expandPath(path)
	if _, err := os.Stat(expandedPath); os.IsNotExist(err) {
		logger.Info().Str("path", expandedPath).Msg("MCP servers file does not exist")
		return map[string]*MCPServerConfig{}, nil
	}

	data, err := os.ReadFile(expandedPath) //#nosec 304 -- intentional file read for config
	if err != nil {
		return nil, fmt.Errorf("failed to read MCP servers file %q: %w", expandedPath, err)
	}

	var file MCPServersFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse MCP servers file %q: %w", expandedPath, err)
	}

	result := make(map[string]*MCPServerConfig, len(file.MCPServers))
	for name, entry := range file.MCPServers {
		result[name] = &MCPServerConfig{
			Name:    name,
			Command: entry.Command,
			URL:     entry.URL,
			Args:    entry.Args,
			Env:     entry.EnvStrings(logger),
		}
	}

	logger.Debug().Int("servers", len(result)).Str("path", expandedPath).Msg("Loaded MCP servers file")
	return result, nil
}

// MergeMCPServers adds servers that the configuration does not already
// define. Configured servers win on name clashes.
func (c *Config) MergeMCPServers(servers map[string]*MCPServerConfig) {
	if c.MCPServers == nil {
		c.MCPServers = make(map[string]*MCPServerConfig)
	}
	for name, server := range servers {
		if _, ok := c.MCPServers[name]; !ok {
			c.MCPServers[name] = server
		}
	}
}
