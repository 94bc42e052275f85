package mcp

import (
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/warnerco/schematica/internal/graph"
	"github.com/warnerco/schematica/internal/scratchpad"
)

var queryToolDef = mcp.NewTool("warn_query",
	mcp.WithDescription(
		"Answer a question about WARNERCO robot schematics using the full retrieval pipeline: "+
			"intent classification, knowledge-graph context, session memory, and keyword retrieval, "+
			"compressed under a token budget.",
	),
	mcp.WithString("query",
		mcp.Required(),
		mcp.Description("The question to answer"),
	),
)

var searchToolDef = mcp.NewTool("warn_semantic_search",
	mcp.WithDescription(
		"Search the schematic catalog by keyword relevance. Returns ranked candidates with scores in [0,1].",
	),
	mcp.WithString("query",
		mcp.Required(),
		mcp.Description("Search terms"),
	),
	mcp.WithString("category",
		mcp.Description("Restrict to one category: sensors, power, control, mobility, communication"),
	),
	mcp.WithString("model",
		mcp.Description("Restrict to one robot model, e.g. WC-0220"),
	),
	mcp.WithString("status",
		mcp.Description("Restrict to one status: active, deprecated, draft"),
	),
	mcp.WithNumber("top_k",
		mcp.Description("Maximum number of results (default 10)"),
	),
)

var getRobotToolDef = mcp.NewTool("warn_get_robot",
	mcp.WithDescription("Fetch a single schematic by its WRN-##### catalog ID."),
	mcp.WithString("id",
		mcp.Required(),
		mcp.Description("Catalog ID, e.g. WRN-00042"),
	),
)

var listRobotsToolDef = mcp.NewTool("warn_list_robots",
	mcp.WithDescription("List schematics with optional filters and pagination, ordered by catalog ID."),
	mcp.WithString("category",
		mcp.Description("Filter by category"),
	),
	mcp.WithString("model",
		mcp.Description("Filter by robot model"),
	),
	mcp.WithString("status",
		mcp.Description("Filter by status"),
	),
	mcp.WithNumber("limit",
		mcp.Description("Page size (default: all)"),
	),
	mcp.WithNumber("offset",
		mcp.Description("Page offset"),
	),
)

var createSchematicToolDef = mcp.NewTool("warn_create_schematic",
	mcp.WithDescription(
		"Add a schematic to the catalog. The ID is allocated automatically unless given explicitly.",
	),
	mcp.WithString("model",
		mcp.Required(),
		mcp.Description("Robot model identifier, e.g. WC-0220"),
	),
	mcp.WithString("component",
		mcp.Required(),
		mcp.Description("Component this schematic documents"),
	),
	mcp.WithString("category",
		mcp.Required(),
		mcp.Description("One of: sensors, power, control, mobility, communication"),
	),
	mcp.WithString("name",
		mcp.Description("Robot name, e.g. Atlas Prime"),
	),
	mcp.WithString("summary",
		mcp.Description("Technical description used for retrieval scoring"),
	),
	mcp.WithString("id",
		mcp.Description("Explicit catalog ID in WRN-##### format"),
	),
	mcp.WithString("version",
		mcp.Description("Component revision"),
	),
	mcp.WithString("url",
		mcp.Description("Link to the schematic document"),
	),
	mcp.WithString("status",
		mcp.Description("active, deprecated, or draft (default active)"),
	),
	mcp.WithArray("tags",
		mcp.Description("Free-form searchable labels"),
	),
	mcp.WithObject("specifications",
		mcp.Description("Technical key/value pairs"),
	),
	mcp.WithString("last_verified",
		mcp.Description("ISO date the schematic was last checked"),
	),
)

var updateSchematicToolDef = mcp.NewTool("warn_update_schematic",
	mcp.WithDescription("Apply a partial update to an existing schematic. Omitted fields are unchanged."),
	mcp.WithString("id",
		mcp.Required(),
		mcp.Description("Catalog ID of the schematic to update"),
	),
	mcp.WithString("name", mcp.Description("New robot name")),
	mcp.WithString("component", mcp.Description("New component description")),
	mcp.WithString("version", mcp.Description("New revision")),
	mcp.WithString("summary", mcp.Description("New technical summary")),
	mcp.WithString("url", mcp.Description("New document link")),
	mcp.WithString("category", mcp.Description("New category")),
	mcp.WithString("status", mcp.Description("New status")),
	mcp.WithArray("tags", mcp.Description("Replacement tag list")),
	mcp.WithObject("specifications", mcp.Description("Replacement specifications")),
	mcp.WithString("last_verified", mcp.Description("New verification date")),
)

var deleteSchematicToolDef = mcp.NewTool("warn_delete_schematic",
	mcp.WithDescription("Soft-delete a schematic. The record is hidden but its ID is never reallocated."),
	mcp.WithString("id",
		mcp.Required(),
		mcp.Description("Catalog ID of the schematic to delete"),
	),
)

var memoryStatsToolDef = mcp.NewTool("warn_memory_stats",
	mcp.WithDescription(
		"Show statistics across all three memory subsystems: session scratchpad token accounting, "+
			"knowledge-graph entity and relationship counts, and recent retrieval queries.",
	),
)

var graphRelateToolDef = mcp.NewTool("warn_graph_relate",
	mcp.WithDescription(
		"Add a relationship triplet to the knowledge graph. Predicates: "+
			strings.Join(graph.ValidPredicates, ", ")+".",
	),
	mcp.WithString("subject",
		mcp.Required(),
		mcp.Description("Subject entity ID, e.g. WRN-00001 or component:power_system"),
	),
	mcp.WithString("predicate",
		mcp.Required(),
		mcp.Description("Relationship type from the fixed vocabulary"),
	),
	mcp.WithString("object",
		mcp.Required(),
		mcp.Description("Object entity ID"),
	),
	mcp.WithObject("metadata",
		mcp.Description("Optional key/value annotations on the relationship"),
	),
)

var graphNeighborsToolDef = mcp.NewTool("warn_graph_neighbors",
	mcp.WithDescription("List relationships touching an entity, in a chosen direction."),
	mcp.WithString("entity",
		mcp.Required(),
		mcp.Description("Entity ID to inspect"),
	),
	mcp.WithString("direction",
		mcp.Description("outgoing, incoming, or both (default both)"),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum facts to return (default 50)"),
	),
)

var graphPathToolDef = mcp.NewTool("warn_graph_path",
	mcp.WithDescription(
		"Find the shortest chain of relationships connecting two entities. "+
			"Returns found: false when no path exists within the hop limit.",
	),
	mcp.WithString("source",
		mcp.Required(),
		mcp.Description("Starting entity ID"),
	),
	mcp.WithString("target",
		mcp.Required(),
		mcp.Description("Destination entity ID"),
	),
	mcp.WithNumber("max_hops",
		mcp.Description("Maximum path length (default 5)"),
	),
)

var graphStatsToolDef = mcp.NewTool("warn_graph_stats",
	mcp.WithDescription("Show knowledge-graph entity counts by type and relationship counts by predicate."),
)

var graphIndexToolDef = mcp.NewTool("warn_graph_index",
	mcp.WithDescription(
		"Rebuild graph entities and relationships from the schematic catalog: models, components, "+
			"categories, statuses, tags, and compatibility links between same-model schematics.",
	),
)

var scratchpadWriteToolDef = mcp.NewTool("warn_scratchpad_write",
	mcp.WithDescription(
		"Record a session observation as a subject/predicate/object triplet with free-text content. "+
			"Long content is minimized at write time. Predicates: "+
			strings.Join(scratchpad.ValidPredicates, ", ")+".",
	),
	mcp.WithString("subject",
		mcp.Required(),
		mcp.Description("Entity the observation is about, e.g. WRN-00001"),
	),
	mcp.WithString("predicate",
		mcp.Required(),
		mcp.Description("Observation type from the session vocabulary"),
	),
	mcp.WithString("content",
		mcp.Required(),
		mcp.Description("The observation text"),
	),
	mcp.WithString("object",
		mcp.Description("Optional related entity ID"),
	),
	mcp.WithBoolean("minimize",
		mcp.Description("Minimize long content at write time (default true)"),
	),
	mcp.WithObject("metadata",
		mcp.Description("Optional key/value annotations"),
	),
)

var scratchpadReadToolDef = mcp.NewTool("warn_scratchpad_read",
	mcp.WithDescription("Read session observations, newest first, with optional filters and enrichment."),
	mcp.WithString("subject",
		mcp.Description("Only entries about this entity"),
	),
	mcp.WithString("predicate",
		mcp.Description("Only entries with this predicate"),
	),
	mcp.WithBoolean("enrich",
		mcp.Description("Expand minimized content on read"),
	),
	mcp.WithString("query_context",
		mcp.Description("Query text guiding enrichment"),
	),
)

var scratchpadClearToolDef = mcp.NewTool("warn_scratchpad_clear",
	mcp.WithDescription("Remove session observations by subject and/or age. With no filters, clears everything."),
	mcp.WithString("subject",
		mcp.Description("Only clear entries about this entity"),
	),
	mcp.WithNumber("older_than_minutes",
		mcp.Description("Only clear entries older than this many minutes"),
	),
)

var scratchpadStatsToolDef = mcp.NewTool("warn_scratchpad_stats",
	mcp.WithDescription("Show scratchpad entry counts, token budget usage, and minimization savings."),
)
