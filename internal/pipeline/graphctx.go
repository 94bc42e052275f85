package pipeline

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/warnerco/schematica/internal/graph"
)

// GraphReader is the read surface of the knowledge graph the pipeline needs.
type GraphReader interface {
	Neighbors(ctx context.Context, entityID string, direction graph.Direction, limit int) ([]graph.Fact, error)
	ShortestPath(ctx context.Context, source, target string, maxHops int) (graph.PathResult, error)
}

var connectionPhrases = []string{
	"related to", "relationship between", "path between", "connected to",
	"how is", "link between",
}

// ShouldResolveGraph is the graph stage activation gate: the stage runs
// only for diagnostic/analytics intents or when the query uses explicit
// relationship language. Pure search and lookup queries skip the graph
// store entirely.
func ShouldResolveGraph(intent Intent, query string) bool {
	if intent == IntentDiagnostic || intent == IntentAnalytics {
		return true
	}
	return HasRelationshipVocabulary(query)
}

// resolveGraphContext gathers graph facts for the recognized entities.
// Two recognized entities plus connection language turns the call into a
// path query; otherwise each entity gets a bounded neighbor query. The
// stage never fails the pipeline: store errors degrade to an empty result.
func (p *Pipeline) resolveGraphContext(ctx context.Context, query string, mentions []string) []graph.Fact {
	if len(mentions) == 0 {
		return nil
	}

	if len(mentions) >= 2 && isConnectionQuestion(query) {
		res, err := p.graph.ShortestPath(ctx, mentions[0], mentions[1], p.cfg.GraphLookupMaxHops)
		if err != nil {
			p.log.Warn("graph path query failed, continuing without graph context",
				zap.String("source", mentions[0]),
				zap.String("target", mentions[1]),
				zap.Error(err))
			return nil
		}
		if !res.Found {
			// A missing path is a normal outcome.
			return nil
		}
		return res.Facts
	}

	var facts []graph.Fact
	for _, entity := range mentions {
		dir := inferDirection(query, entity)
		neighbors, err := p.graph.Neighbors(ctx, entity, dir, p.cfg.GraphNeighborLimit)
		if err != nil {
			p.log.Warn("graph neighbor query failed, continuing without graph context",
				zap.String("entity", entity),
				zap.Error(err))
			continue
		}
		facts = append(facts, neighbors...)
	}
	return facts
}

func isConnectionQuestion(query string) bool {
	q := strings.ToLower(query)
	for _, p := range connectionPhrases {
		if strings.Contains(q, p) {
			return true
		}
	}
	return false
}

// inferDirection picks the edge direction for a neighbor query from the
// query's phrasing. "What depends on X" asks for incoming depends_on edges
// at X; "X depends on what" asks for outgoing ones. Without dependency
// language both directions are followed.
func inferDirection(query, entity string) graph.Direction {
	q := strings.ToLower(query)
	depIdx := strings.Index(q, "depend")
	if depIdx < 0 {
		return graph.DirectionBoth
	}

	entityIdx := mentionIndex(q, entity)
	if entityIdx < 0 {
		return graph.DirectionBoth
	}
	if depIdx < entityIdx {
		return graph.DirectionIncoming
	}
	return graph.DirectionOutgoing
}

// mentionIndex locates the entity's surface form in the lowercased query.
// Prefixed entity IDs (component:, status:, ...) appear in text by their
// bare name with underscores spelled as spaces.
func mentionIndex(q, entity string) int {
	surface := strings.ToLower(entity)
	if i := strings.IndexByte(surface, ':'); i >= 0 {
		surface = surface[i+1:]
	}
	surface = strings.ReplaceAll(surface, "_", " ")
	if idx := strings.Index(q, surface); idx >= 0 {
		return idx
	}
	// Keyword-derived components may be mentioned by a shorter alias,
	// e.g. "battery" for power_system. Fall back to the first word.
	if fields := strings.Fields(surface); len(fields) > 0 {
		return strings.Index(q, fields[0])
	}
	return -1
}
