package pipeline

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/warnerco/schematica/internal/graph"
	"github.com/warnerco/schematica/internal/index"
	"github.com/warnerco/schematica/internal/schematic"
)

// analyticsTopKCap bounds the widened candidate set for analytics queries.
const analyticsTopKCap = 20

// Searcher is the retrieval surface of the catalog index.
type Searcher interface {
	Search(ctx context.Context, query string, filters index.Filters, topK int) ([]index.Candidate, error)
	Get(id string) (schematic.Schematic, bool)
}

// retrieve runs candidate retrieval for the query, re-ranked by graph
// context. Zero results and store errors both degrade to an empty list.
func (p *Pipeline) retrieve(ctx context.Context, query string, intent Intent, mentions []string, facts []graph.Fact) []index.Candidate {
	if p.search == nil {
		return nil
	}

	// Lookup queries naming an exact catalog ID resolve directly.
	if intent == IntentLookup {
		if c, ok := p.lookupByID(mentions); ok {
			return []index.Candidate{c}
		}
	}

	topK := p.cfg.RetrievalTopK
	if intent == IntentAnalytics {
		// Analytics questions aggregate over a wider candidate set.
		topK *= 2
		if topK > analyticsTopKCap {
			topK = analyticsTopKCap
		}
	}

	// Over-fetch so graph boosting can promote candidates past the cut.
	candidates, err := p.search.Search(ctx, query, index.Filters{}, topK*2)
	if err != nil {
		p.log.Warn("retrieval failed, continuing without candidates", zap.Error(err))
		return nil
	}
	if len(candidates) == 0 {
		return nil
	}

	if len(facts) > 0 {
		candidates = p.rerankByGraph(candidates, intent, facts)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].ID < candidates[j].ID
	})
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates
}

func (p *Pipeline) lookupByID(mentions []string) (index.Candidate, bool) {
	for _, m := range mentions {
		if !schematic.IDPattern.MatchString(m) {
			continue
		}
		s, ok := p.search.Get(m)
		if !ok {
			continue
		}
		return index.Candidate{
			ID:      s.ID,
			Score:   1.0,
			Summary: s.Summarize(),
			Source: map[string]any{
				"model":     s.Model,
				"name":      s.Name,
				"component": s.Component,
				"category":  s.Category,
				"status":    string(s.Status),
			},
		}, true
	}
	return index.Candidate{}, false
}

// rerankByGraph boosts candidates that appear in the graph context. When
// the intent is diagnostic or analytics and at least one candidate is
// graph-connected, the graph entities act as an allow-list filter.
func (p *Pipeline) rerankByGraph(candidates []index.Candidate, intent Intent, facts []graph.Fact) []index.Candidate {
	graphIDs := make(map[string]bool, len(facts)*2)
	for _, f := range facts {
		graphIDs[f.Subject] = true
		graphIDs[f.Object] = true
	}

	connected := 0
	for i := range candidates {
		if graphIDs[candidates[i].ID] {
			connected++
			candidates[i].Score += p.cfg.GraphBoostWeight
			if candidates[i].Score > 1.0 {
				candidates[i].Score = 1.0
			}
		}
	}

	if (intent == IntentDiagnostic || intent == IntentAnalytics) && connected > 0 {
		filtered := candidates[:0]
		for _, c := range candidates {
			if graphIDs[c.ID] {
				filtered = append(filtered, c)
			}
		}
		return filtered
	}
	return candidates
}
