// Package graph implements the knowledge-graph memory layer: a SQLite-backed
// triplet store mirrored into an in-memory adjacency structure for traversal.
//
// Entities are nodes; relationships are directed edges (triplets) drawn from a
// closed predicate vocabulary. The pipeline only ever reads from this store
// during a request; writes happen through explicit relationship-add operations.
package graph

// Predicate vocabulary. Using a consistent closed vocabulary keeps graph
// traversal meaningful and lets writes be validated up front.
const (
	PredicateDependsOn      = "depends_on"
	PredicateContains       = "contains"
	PredicateHasStatus      = "has_status"
	PredicateManufacturedBy = "manufactured_by"
	PredicateCompatibleWith = "compatible_with"
	PredicateRelatedTo      = "related_to"
	PredicateHasCategory    = "has_category"
	PredicateBelongsToModel = "belongs_to_model"
	PredicateHasTag         = "has_tag"
)

// ValidPredicates lists the accepted relationship predicates.
var ValidPredicates = []string{
	PredicateDependsOn,
	PredicateContains,
	PredicateHasStatus,
	PredicateManufacturedBy,
	PredicateCompatibleWith,
	PredicateRelatedTo,
	PredicateHasCategory,
	PredicateBelongsToModel,
	PredicateHasTag,
}

// ValidPredicate reports whether p is in the predicate vocabulary.
func ValidPredicate(p string) bool {
	for _, v := range ValidPredicates {
		if p == v {
			return true
		}
	}
	return false
}

// Entity types used by the catalog indexer.
const (
	EntityTypeSchematic = "schematic"
	EntityTypeComponent = "component"
	EntityTypeStatus    = "status"
	EntityTypeCategory  = "category"
	EntityTypeModel     = "model"
	EntityTypeTag       = "tag"
)

// Entity is a node in the knowledge graph.
type Entity struct {
	ID       string         `json:"id"`
	Type     string         `json:"entity_type"`
	Name     string         `json:"name"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Fact is a directed edge (triplet) in the knowledge graph.
// Facts are read-only during pipeline execution.
type Fact struct {
	Subject   string         `json:"subject"`
	Predicate string         `json:"predicate"`
	Object    string         `json:"object"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Direction selects which edges a neighbor query follows.
type Direction string

const (
	DirectionOutgoing Direction = "outgoing"
	DirectionIncoming Direction = "incoming"
	DirectionBoth     Direction = "both"
)

// PathResult is the outcome of a path-finding query.
// A missing path is a normal result, not an error.
type PathResult struct {
	Found bool     `json:"found"`
	Path  []string `json:"path,omitempty"`
	Facts []Fact   `json:"facts,omitempty"`
}

// Stats summarizes graph contents.
type Stats struct {
	EntityCount       int            `json:"entity_count"`
	RelationshipCount int            `json:"relationship_count"`
	EntityTypes       map[string]int `json:"entity_types"`
	PredicateCounts   map[string]int `json:"predicate_counts"`
}
