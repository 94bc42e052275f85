package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	// GraphLookupMaxHops bounds path-finding queries in the knowledge graph.
	GraphLookupMaxHops int `json:"graph_lookup_max_hops"`

	// GraphNeighborLimit bounds the number of facts returned per neighbor query.
	GraphNeighborLimit int `json:"graph_neighbor_limit"`

	// ScratchpadInjectBudgetTokens caps the total tokens of session context
	// injected into a single pipeline run.
	ScratchpadInjectBudgetTokens int `json:"scratchpad_inject_budget_tokens"`

	// ScratchpadMaxTokens caps the total tokens stored in the scratchpad;
	// oldest entries are evicted once the budget is exceeded.
	ScratchpadMaxTokens int `json:"scratchpad_max_tokens"`

	// ScratchpadEntryTTLMinutes is how long a scratchpad entry lives.
	ScratchpadEntryTTLMinutes int `json:"scratchpad_entry_ttl_minutes"`

	// RetrievalTopK is the default number of candidates returned by retrieval.
	RetrievalTopK int `json:"retrieval_top_k"`

	// CompressionBudgetTokens caps the assembled context passed to generation.
	CompressionBudgetTokens int `json:"compression_budget_tokens"`

	// GraphBoostWeight is the score bonus applied to candidates surfaced by
	// the knowledge graph during re-ranking. Tunable, not a business rule.
	GraphBoostWeight float64 `json:"graph_boost_weight"`

	// QueryTimeoutSeconds is the overall per-request pipeline timeout.
	QueryTimeoutSeconds int `json:"query_timeout_seconds"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// If set to 1, all database access is serialized.
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		GraphLookupMaxHops:           5,
		GraphNeighborLimit:           50,
		ScratchpadInjectBudgetTokens: 1500,
		ScratchpadMaxTokens:          4000,
		ScratchpadEntryTTLMinutes:    30,
		RetrievalTopK:                10,
		CompressionBudgetTokens:      2000,
		GraphBoostWeight:             0.15,
		QueryTimeoutSeconds:          10,
	}
}

// QueryTimeout returns the pipeline timeout as a duration.
func (c *Config) QueryTimeout() time.Duration {
	return time.Duration(c.QueryTimeoutSeconds) * time.Second
}

// ScratchpadEntryTTL returns the scratchpad TTL as a duration.
func (c *Config) ScratchpadEntryTTL() time.Duration {
	return time.Duration(c.ScratchpadEntryTTLMinutes) * time.Minute
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.schematica.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFileRaw(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.GraphLookupMaxHops = pickInt(base.GraphLookupMaxHops, overlay.GraphLookupMaxHops)
	result.GraphNeighborLimit = pickInt(base.GraphNeighborLimit, overlay.GraphNeighborLimit)
	result.ScratchpadInjectBudgetTokens = pickInt(base.ScratchpadInjectBudgetTokens, overlay.ScratchpadInjectBudgetTokens)
	result.ScratchpadMaxTokens = pickInt(base.ScratchpadMaxTokens, overlay.ScratchpadMaxTokens)
	result.ScratchpadEntryTTLMinutes = pickInt(base.ScratchpadEntryTTLMinutes, overlay.ScratchpadEntryTTLMinutes)
	result.RetrievalTopK = pickInt(base.RetrievalTopK, overlay.RetrievalTopK)
	result.CompressionBudgetTokens = pickInt(base.CompressionBudgetTokens, overlay.CompressionBudgetTokens)
	result.QueryTimeoutSeconds = pickInt(base.QueryTimeoutSeconds, overlay.QueryTimeoutSeconds)
	result.DBMaxOpenConns = pickInt(base.DBMaxOpenConns, overlay.DBMaxOpenConns)
	result.DBMaxIdleConns = pickInt(base.DBMaxIdleConns, overlay.DBMaxIdleConns)

	result.GraphBoostWeight = overlay.GraphBoostWeight
	if result.GraphBoostWeight == 0 {
		result.GraphBoostWeight = base.GraphBoostWeight
	}

	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

// pickInt returns overlay if non-zero, else base.
func pickInt(base, overlay int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
