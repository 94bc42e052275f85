package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/warnerco/schematica/internal/graph"
	"github.com/warnerco/schematica/internal/index"
	"github.com/warnerco/schematica/internal/schematic"
	"github.com/warnerco/schematica/internal/scratchpad"
)

// Compress assembles the final context blob under a hard token budget.
// Sections are appended in a fixed priority order: candidate summaries
// first, session context second, graph facts last. Accumulation stops
// before the budget would be exceeded; the result never costs more than
// budget tokens. If even the first candidate line alone exceeds the full
// budget it is hard-truncated to fit rather than omitted, since some
// context beats none.
func Compress(intent Intent, facts []graph.Fact, session []scratchpad.Entry, candidates []index.Candidate, budget int) (string, int) {
	if budget <= 0 {
		return "", 0
	}

	var lines []string
	used := 0
	appended := 0

	appendLine := func(line string) bool {
		cost := schematic.EstimateTokens(line)
		if used+cost > budget {
			if appended == 0 {
				truncated := truncateToTokens(line, budget)
				if truncated != "" {
					lines = append(lines, truncated)
					used += schematic.EstimateTokens(truncated)
					appended++
				}
			}
			return false
		}
		lines = append(lines, line)
		used += cost
		appended++
		return true
	}

	appendSection := func(header string, items []string) bool {
		if len(items) == 0 {
			return true
		}
		// The header is cosmetic: it is only emitted when it fits along
		// with the section's first item, never at the cost of content.
		headerCost := schematic.EstimateTokens(header)
		if used+headerCost+schematic.EstimateTokens(items[0]) <= budget {
			lines = append(lines, header)
			used += headerCost
		}
		for _, item := range items {
			if !appendLine(item) {
				return false
			}
		}
		return true
	}

	if !appendSection("Top matches:", candidateLines(intent, candidates)) {
		return strings.Join(lines, "\n"), used
	}
	if !appendSection("Session notes:", sessionLines(session)) {
		return strings.Join(lines, "\n"), used
	}
	appendSection("Graph facts:", factLines(facts))
	return strings.Join(lines, "\n"), used
}

func candidateLines(intent Intent, candidates []index.Candidate) []string {
	lines := make([]string, 0, len(candidates))
	for _, c := range candidates {
		line := fmt.Sprintf("- %s (score %.2f)", c.Summary, c.Score)
		if intent == IntentLookup && len(c.Source) > 0 {
			line += " " + sourceDetail(c.Source)
		}
		lines = append(lines, line)
	}
	return lines
}

func sourceDetail(source map[string]any) string {
	keys := make([]string, 0, len(source))
	for k := range source {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, source[k]))
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func sessionLines(entries []scratchpad.Entry) []string {
	lines := make([]string, 0, len(entries))
	for i := range entries {
		lines = append(lines, entries[i].ContextLine())
	}
	return lines
}

func factLines(facts []graph.Fact) []string {
	lines := make([]string, 0, len(facts))
	for _, f := range facts {
		lines = append(lines, fmt.Sprintf("[%s] %s -> %s", f.Predicate, f.Subject, f.Object))
	}
	return lines
}

// truncateToTokens trims a line word by word until its token estimate
// fits the budget. Returns "" when not even one word fits.
func truncateToTokens(line string, budget int) string {
	words := strings.Fields(line)
	for len(words) > 0 && schematic.EstimateTokens(strings.Join(words, " ")) > budget {
		words = words[:len(words)-1]
	}
	if len(words) == 0 {
		return ""
	}
	return strings.Join(words, " ")
}
