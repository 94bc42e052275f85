package pipeline

import (
	"sort"
	"strings"

	"github.com/warnerco/schematica/internal/graph"
	"github.com/warnerco/schematica/internal/schematic"
)

// Recognizer extracts entity mentions from query text. The matching
// strategy is pluggable so it can evolve (regex, substring, embeddings)
// without touching pipeline logic.
type Recognizer interface {
	// Recognize returns entity IDs mentioned in the query, in order of
	// first appearance, without duplicates.
	Recognize(query string) []string
}

// KeywordRecognizer matches catalog ID patterns, model numbers, component
// keywords, statuses, and categories against the query text.
type KeywordRecognizer struct {
	// Exists, when set, is consulted for keyword-derived entities so
	// unknown components are not surfaced. Pattern-derived IDs (WRN-*,
	// model numbers) always pass through since they may name catalog
	// items not yet mirrored into the graph.
	Exists func(id string) bool
}

type mention struct {
	id  string
	pos int
}

// Recognize scans the query for entity mentions. The query is
// whitespace-normalized first so stray spacing cannot break phrase
// matches like "power  system".
func (r *KeywordRecognizer) Recognize(query string) []string {
	lower := schematic.Normalize(query)
	upper := strings.ToUpper(lower)

	var found []mention
	seen := make(map[string]bool)
	add := func(id string, pos int) {
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		found = append(found, mention{id: id, pos: pos})
	}

	for _, loc := range schematic.IDPattern.FindAllStringIndex(upper, -1) {
		add(upper[loc[0]:loc[1]], loc[0])
	}
	for _, loc := range schematic.ModelPattern.FindAllStringIndex(upper, -1) {
		add("model:"+upper[loc[0]:loc[1]], loc[0])
	}

	for keyword, entityID := range graph.ComponentKeywords() {
		if pos := strings.Index(lower, keyword); pos >= 0 {
			if r.Exists == nil || r.Exists(entityID) {
				add(entityID, pos)
			}
		}
	}
	// Component entities can also be named by their full phrase, e.g.
	// "power system" for component:power_system.
	for _, entityID := range componentEntityIDs() {
		phrase := strings.ReplaceAll(strings.TrimPrefix(entityID, "component:"), "_", " ")
		if pos := strings.Index(lower, phrase); pos >= 0 {
			if r.Exists == nil || r.Exists(entityID) {
				add(entityID, pos)
			}
		}
	}

	for _, status := range schematic.ValidStatuses {
		if pos := strings.Index(lower, string(status)); pos >= 0 {
			id := "status:" + string(status)
			if r.Exists == nil || r.Exists(id) {
				add(id, pos)
			}
		}
	}
	for _, category := range schematic.ValidCategories {
		if pos := strings.Index(lower, category); pos >= 0 {
			id := "category:" + category
			if r.Exists == nil || r.Exists(id) {
				add(id, pos)
			}
		}
	}

	sort.SliceStable(found, func(i, j int) bool { return found[i].pos < found[j].pos })

	ids := make([]string, 0, len(found))
	for _, m := range found {
		ids = append(ids, m.id)
	}
	return ids
}

func componentEntityIDs() []string {
	seen := make(map[string]bool)
	var ids []string
	for _, id := range graph.ComponentKeywords() {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
