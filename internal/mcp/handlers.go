package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/warnerco/schematica/internal/catalog"
	"github.com/warnerco/schematica/internal/config"
	"github.com/warnerco/schematica/internal/errors"
	"github.com/warnerco/schematica/internal/graph"
	"github.com/warnerco/schematica/internal/index"
	"github.com/warnerco/schematica/internal/pipeline"
	"github.com/warnerco/schematica/internal/scratchpad"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	cfg     *config.Config
	catalog *catalog.Catalog
	graph   *graph.Store
	pad     *scratchpad.Store
	pipe    *pipeline.Pipeline
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(cfg *config.Config, cat *catalog.Catalog, g *graph.Store, pad *scratchpad.Store, pipe *pipeline.Pipeline) *Handlers {
	return &Handlers{cfg: cfg, catalog: cat, graph: g, pad: pad, pipe: pipe}
}

// decode round-trips tool call arguments through JSON into the request
// struct for the tool, so handlers never type-assert on raw maps.
func decode[T any](req mcp.CallToolRequest) (T, error) {
	var out T
	raw, err := json.Marshal(req.GetArguments())
	if err != nil {
		return out, fmt.Errorf("marshal tool arguments: %w", err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("unmarshal tool arguments: %w", err)
	}
	return out, nil
}

// Request types for each tool

// QueryRequest represents the arguments for warn_query.
type QueryRequest struct {
	Query string `json:"query"`
}

// SearchRequest represents the arguments for warn_semantic_search.
type SearchRequest struct {
	Query    string `json:"query"`
	Category string `json:"category,omitempty"`
	Model    string `json:"model,omitempty"`
	Status   string `json:"status,omitempty"`
	TopK     int    `json:"top_k,omitempty"`
}

// GetRobotRequest represents the arguments for warn_get_robot.
type GetRobotRequest struct {
	ID string `json:"id"`
}

// ListRobotsRequest represents the arguments for warn_list_robots.
type ListRobotsRequest struct {
	Category string `json:"category,omitempty"`
	Model    string `json:"model,omitempty"`
	Status   string `json:"status,omitempty"`
	Limit    int    `json:"limit,omitempty"`
	Offset   int    `json:"offset,omitempty"`
}

// DeleteSchematicRequest represents the arguments for warn_delete_schematic.
type DeleteSchematicRequest struct {
	ID string `json:"id"`
}

// GraphRelateRequest represents the arguments for warn_graph_relate.
type GraphRelateRequest struct {
	Subject   string         `json:"subject"`
	Predicate string         `json:"predicate"`
	Object    string         `json:"object"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// GraphNeighborsRequest represents the arguments for warn_graph_neighbors.
type GraphNeighborsRequest struct {
	Entity    string `json:"entity"`
	Direction string `json:"direction,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

// GraphPathRequest represents the arguments for warn_graph_path.
type GraphPathRequest struct {
	Source  string `json:"source"`
	Target  string `json:"target"`
	MaxHops int    `json:"max_hops,omitempty"`
}

// ScratchpadWriteRequest represents the arguments for warn_scratchpad_write.
type ScratchpadWriteRequest struct {
	Subject   string         `json:"subject"`
	Predicate string         `json:"predicate"`
	Object    string         `json:"object,omitempty"`
	Content   string         `json:"content"`
	Minimize  *bool          `json:"minimize,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// ScratchpadReadRequest represents the arguments for warn_scratchpad_read.
type ScratchpadReadRequest struct {
	Subject      string `json:"subject,omitempty"`
	Predicate    string `json:"predicate,omitempty"`
	Enrich       bool   `json:"enrich,omitempty"`
	QueryContext string `json:"query_context,omitempty"`
}

// ScratchpadClearRequest represents the arguments for warn_scratchpad_clear.
type ScratchpadClearRequest struct {
	Subject          string `json:"subject,omitempty"`
	OlderThanMinutes *int   `json:"older_than_minutes,omitempty"`
}

// Handler implementations

// HandleQuery handles the warn_query tool call.
func (h *Handlers) HandleQuery(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[QueryRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.pipe.Run(ctx, input.Query)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(map[string]any{
		"answer":     result.Answer,
		"state":      result.State,
		"elapsed_ms": float64(result.Elapsed.Microseconds()) / 1000,
	})
}

// HandleSearch handles the warn_semantic_search tool call.
func (h *Handlers) HandleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SearchRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	topK := input.TopK
	if topK <= 0 {
		topK = h.cfg.RetrievalTopK
	}
	candidates, err := h.catalog.Index().Search(ctx, input.Query, index.Filters{
		Category: input.Category,
		Model:    input.Model,
		Status:   input.Status,
	}, topK)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(map[string]any{
		"candidates": candidates,
		"count":      len(candidates),
	})
}

// HandleGetRobot handles the warn_get_robot tool call.
func (h *Handlers) HandleGetRobot(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[GetRobotRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	s, err := h.catalog.Get(input.ID)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(s)
}

// HandleListRobots handles the warn_list_robots tool call.
func (h *Handlers) HandleListRobots(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListRobotsRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := h.catalog.List(catalog.ListInput{
		Category: input.Category,
		Model:    input.Model,
		Status:   input.Status,
		Limit:    input.Limit,
		Offset:   input.Offset,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleCreateSchematic handles the warn_create_schematic tool call.
func (h *Handlers) HandleCreateSchematic(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[catalog.CreateInput](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	s, err := h.catalog.Create(input)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(s)
}

// HandleUpdateSchematic handles the warn_update_schematic tool call.
func (h *Handlers) HandleUpdateSchematic(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, fields, err := decodeUpdate(req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	s, err := h.catalog.Update(id, fields)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(s)
}

// HandleDeleteSchematic handles the warn_delete_schematic tool call.
func (h *Handlers) HandleDeleteSchematic(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DeleteSchematicRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	if err := h.catalog.Delete(input.ID); err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"deleted": input.ID})
}

// HandleMemoryStats handles the warn_memory_stats tool call.
func (h *Handlers) HandleMemoryStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	graphStats, err := h.graph.Stats(ctx)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(map[string]any{
		"scratchpad":     h.pad.Stats(),
		"graph":          graphStats,
		"index_size":     h.catalog.Index().Len(),
		"recent_queries": h.catalog.Index().RecentHits(10),
	})
}

// HandleGraphRelate handles the warn_graph_relate tool call.
func (h *Handlers) HandleGraphRelate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[GraphRelateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	added, err := h.graph.AddRelationship(ctx, graph.Fact{
		Subject:   input.Subject,
		Predicate: input.Predicate,
		Object:    input.Object,
		Metadata:  input.Metadata,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{
		"subject":   input.Subject,
		"predicate": input.Predicate,
		"object":    input.Object,
		"added":     added,
	})
}

// HandleGraphNeighbors handles the warn_graph_neighbors tool call.
func (h *Handlers) HandleGraphNeighbors(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[GraphNeighborsRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	direction := graph.Direction(input.Direction)
	if input.Direction == "" {
		direction = graph.DirectionBoth
	}
	limit := input.Limit
	if limit <= 0 {
		limit = h.cfg.GraphNeighborLimit
	}

	facts, err := h.graph.Neighbors(ctx, input.Entity, direction, limit)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{
		"entity": input.Entity,
		"facts":  facts,
		"count":  len(facts),
	})
}

// HandleGraphPath handles the warn_graph_path tool call.
func (h *Handlers) HandleGraphPath(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[GraphPathRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	maxHops := input.MaxHops
	if maxHops <= 0 {
		maxHops = h.cfg.GraphLookupMaxHops
	}

	result, err := h.graph.ShortestPath(ctx, input.Source, input.Target, maxHops)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleGraphStats handles the warn_graph_stats tool call.
func (h *Handlers) HandleGraphStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := h.graph.Stats(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(stats)
}

// HandleGraphIndex handles the warn_graph_index tool call.
func (h *Handlers) HandleGraphIndex(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	all, err := h.catalog.All()
	if err != nil {
		return errorResult(err), nil
	}

	summary, err := h.graph.IndexSchematics(ctx, all)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(summary)
}

// HandleScratchpadWrite handles the warn_scratchpad_write tool call.
func (h *Handlers) HandleScratchpadWrite(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ScratchpadWriteRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	minimize := true
	if input.Minimize != nil {
		minimize = *input.Minimize
	}

	result, err := h.pad.Write(ctx, scratchpad.WriteInput{
		Subject:   input.Subject,
		Predicate: input.Predicate,
		Object:    input.Object,
		Content:   input.Content,
		Minimize:  minimize,
		Metadata:  input.Metadata,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleScratchpadRead handles the warn_scratchpad_read tool call.
func (h *Handlers) HandleScratchpadRead(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ScratchpadReadRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	entries, err := h.pad.Read(ctx, scratchpad.ReadInput{
		Subject:      input.Subject,
		Predicate:    input.Predicate,
		Enrich:       input.Enrich,
		QueryContext: input.QueryContext,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

// HandleScratchpadClear handles the warn_scratchpad_clear tool call.
func (h *Handlers) HandleScratchpadClear(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ScratchpadClearRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	clearInput := scratchpad.ClearInput{Subject: input.Subject}
	if input.OlderThanMinutes != nil {
		d := time.Duration(*input.OlderThanMinutes) * time.Minute
		clearInput.OlderThan = &d
	}

	cleared := h.pad.Clear(clearInput)
	return successResult(map[string]any{"cleared": cleared})
}

// HandleScratchpadStats handles the warn_scratchpad_stats tool call.
func (h *Handlers) HandleScratchpadStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return successResult(h.pad.Stats())
}

// decodeUpdate splits the update request into the target ID and the
// partial field set. Absent fields stay nil so the catalog leaves them
// unchanged.
func decodeUpdate(req mcp.CallToolRequest) (string, catalog.UpdateInput, error) {
	type raw struct {
		ID string `json:"id"`
		catalog.UpdateInput
	}
	input, err := decode[raw](req)
	if err != nil {
		return "", catalog.UpdateInput{}, err
	}
	return input.ID, input.UpdateInput, nil
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Note: Internal error details are not exposed to prevent leaking sensitive info.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if appErr, ok := err.(*errors.Error); ok {
		message := appErr.Message
		if appErr.Code == errors.ErrInternal {
			// Internal messages can carry file paths or SQL errors;
			// the CLI shows them, the protocol surface does not.
			message = "an internal error occurred"
		}
		errorObj := map[string]any{
			"code":    appErr.Code,
			"message": message,
			"status":  appErr.Status,
		}
		if appErr.Code != errors.ErrInternal && appErr.Details != nil {
			errorObj["details"] = appErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
