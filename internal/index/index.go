// Package index implements the keyword retrieval index over the schematic
// catalog, plus lightweight retrieval telemetry. Scores are normalized to
// [0,1]; ties are broken by catalog ID so repeated searches are
// deterministic.
package index

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warnerco/schematica/internal/schematic"
)

// phraseBonus is added when the whole query appears verbatim in a document.
const phraseBonus = 0.2

// maxRecentHits bounds the telemetry ring buffer.
const maxRecentHits = 100

// Candidate is a single retrieval result. Candidates are produced fresh on
// every search and never persisted.
type Candidate struct {
	ID      string         `json:"id"`
	Score   float64        `json:"score"`
	Summary string         `json:"summary"`
	Source  map[string]any `json:"source,omitempty"`
}

// Filters restrict a search to matching catalog fields.
type Filters struct {
	Category string
	Model    string
	Status   string
}

// Hit records one retrieval call for the telemetry ring.
type Hit struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Query      string    `json:"query"`
	ResultIDs  []string  `json:"result_ids"`
	Scores     []float64 `json:"scores"`
	DurationMs float64   `json:"duration_ms"`
}

// Memory is the in-memory retrieval index. Documents are catalog records
// keyed by schematic ID; searches never mutate them.
type Memory struct {
	mu   sync.RWMutex
	docs map[string]schematic.Schematic
	hits []Hit
	log  *zap.Logger
}

// NewMemory creates an empty index.
func NewMemory(log *zap.Logger) *Memory {
	if log == nil {
		log = zap.NewNop()
	}
	return &Memory{
		docs: make(map[string]schematic.Schematic),
		log:  log,
	}
}

// Put adds or replaces a document.
func (m *Memory) Put(s schematic.Schematic) {
	m.mu.Lock()
	m.docs[s.ID] = s
	m.mu.Unlock()
}

// Delete removes a document.
func (m *Memory) Delete(id string) {
	m.mu.Lock()
	delete(m.docs, id)
	m.mu.Unlock()
}

// Len returns the number of indexed documents.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

// Get returns the indexed document with the given ID.
func (m *Memory) Get(id string) (schematic.Schematic, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.docs[id]
	return s, ok
}

// Search scores all documents against the query and returns up to topK
// candidates sorted by descending score, ties broken by ID ascending.
// Zero results is a normal outcome, never an error.
func (m *Memory) Search(ctx context.Context, query string, filters Filters, topK int) ([]Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	m.mu.RLock()
	var candidates []Candidate
	for _, doc := range m.docs {
		if !matchesFilters(&doc, filters) {
			continue
		}
		score := keywordScore(&doc, query)
		if score <= 0 {
			continue
		}
		candidates = append(candidates, Candidate{
			ID:      doc.ID,
			Score:   score,
			Summary: doc.Summarize(),
			Source: map[string]any{
				"model":     doc.Model,
				"name":      doc.Name,
				"component": doc.Component,
				"category":  doc.Category,
				"status":    string(doc.Status),
			},
		})
	}
	m.mu.RUnlock()

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].ID < candidates[j].ID
	})

	if topK > 0 && len(candidates) > topK {
		candidates = candidates[:topK]
	}

	m.recordHit(query, candidates, time.Since(start))
	m.log.Debug("index search",
		zap.String("query", query),
		zap.Int("results", len(candidates)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return candidates, nil
}

// keywordScore computes word-match ratio plus a phrase bonus, capped at 1.0.
func keywordScore(s *schematic.Schematic, query string) float64 {
	queryLower := strings.ToLower(strings.TrimSpace(query))
	words := strings.Fields(queryLower)
	if len(words) == 0 {
		return 0
	}

	text := strings.ToLower(s.EmbedText())

	matches := 0
	for _, w := range words {
		if strings.Contains(text, w) {
			matches++
		}
	}

	score := float64(matches) / float64(len(words))
	if strings.Contains(text, queryLower) {
		score += phraseBonus
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}

func matchesFilters(s *schematic.Schematic, f Filters) bool {
	if f.Category != "" && s.Category != f.Category {
		return false
	}
	if f.Model != "" && s.Model != f.Model {
		return false
	}
	if f.Status != "" && string(s.Status) != f.Status {
		return false
	}
	return true
}

// recordHit appends to the telemetry ring, dropping the oldest beyond cap.
func (m *Memory) recordHit(query string, candidates []Candidate, d time.Duration) {
	hit := Hit{
		ID:         uuid.NewString(),
		Timestamp:  time.Now(),
		Query:      query,
		DurationMs: float64(d.Microseconds()) / 1000,
	}
	for _, c := range candidates {
		hit.ResultIDs = append(hit.ResultIDs, c.ID)
		hit.Scores = append(hit.Scores, c.Score)
	}

	m.mu.Lock()
	m.hits = append(m.hits, hit)
	if len(m.hits) > maxRecentHits {
		m.hits = m.hits[len(m.hits)-maxRecentHits:]
	}
	m.mu.Unlock()
}

// RecentHits returns the most recent retrieval calls, newest last.
func (m *Memory) RecentHits(limit int) []Hit {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 || limit > len(m.hits) {
		limit = len(m.hits)
	}
	out := make([]Hit, limit)
	copy(out, m.hits[len(m.hits)-limit:])
	return out
}
