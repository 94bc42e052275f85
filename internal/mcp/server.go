// Package mcp exposes Schematica over the Model Context Protocol on
// stdio. Tool handlers are thin adapters: argument decoding on the way
// in, structured results or error payloads on the way out.
package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/warnerco/schematica/internal/catalog"
	"github.com/warnerco/schematica/internal/config"
	"github.com/warnerco/schematica/internal/graph"
	"github.com/warnerco/schematica/internal/pipeline"
	"github.com/warnerco/schematica/internal/scratchpad"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"warn_query": {
		def:     queryToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleQuery },
	},
	"warn_semantic_search": {
		def:     searchToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSearch },
	},
	"warn_get_robot": {
		def:     getRobotToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGetRobot },
	},
	"warn_list_robots": {
		def:     listRobotsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleListRobots },
	},
	"warn_create_schematic": {
		def:     createSchematicToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCreateSchematic },
	},
	"warn_update_schematic": {
		def:     updateSchematicToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleUpdateSchematic },
	},
	"warn_delete_schematic": {
		def:     deleteSchematicToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDeleteSchematic },
	},
	"warn_memory_stats": {
		def:     memoryStatsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleMemoryStats },
	},
	"warn_graph_relate": {
		def:     graphRelateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGraphRelate },
	},
	"warn_graph_neighbors": {
		def:     graphNeighborsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGraphNeighbors },
	},
	"warn_graph_path": {
		def:     graphPathToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGraphPath },
	},
	"warn_graph_stats": {
		def:     graphStatsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGraphStats },
	},
	"warn_graph_index": {
		def:     graphIndexToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleGraphIndex },
	},
	"warn_scratchpad_write": {
		def:     scratchpadWriteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleScratchpadWrite },
	},
	"warn_scratchpad_read": {
		def:     scratchpadReadToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleScratchpadRead },
	},
	"warn_scratchpad_clear": {
		def:     scratchpadClearToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleScratchpadClear },
	},
	"warn_scratchpad_stats": {
		def:     scratchpadStatsToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleScratchpadStats },
	},
}

// AllToolNames returns a list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// Deps bundles the stores and pipeline the server exposes.
type Deps struct {
	Config     *config.Config
	Catalog    *catalog.Catalog
	Graph      *graph.Store
	Scratchpad *scratchpad.Store
	Pipeline   *pipeline.Pipeline
}

// NewServer creates a new MCP server with Schematica tools registered.
// Tools listed in cfg.DisabledTools are excluded from registration.
func NewServer(deps Deps, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"schematica",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(deps.Config, deps.Catalog, deps.Graph, deps.Scratchpad, deps.Pipeline)

	disabled := make(map[string]bool)
	for _, name := range deps.Config.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(deps Deps, version string) error {
	s := NewServer(deps, version)
	return server.ServeStdio(s)
}
