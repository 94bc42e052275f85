package pipeline

import (
	"strings"

	"github.com/warnerco/schematica/internal/errors"
	"github.com/warnerco/schematica/internal/schematic"
)

// Intent is the classified purpose of a query. It drives which pipeline
// stages activate.
type Intent string

const (
	IntentLookup     Intent = "LOOKUP"
	IntentDiagnostic Intent = "DIAGNOSTIC"
	IntentAnalytics  Intent = "ANALYTICS"
	IntentSearch     Intent = "SEARCH"
)

var diagnosticWords = []string{
	"failing", "failure", "fault", "issue", "problem", "error",
	"troubleshoot", "broken", "malfunction", "diagnose", "not working",
	"overheat", "degraded",
}

var analyticsPhrases = []string{
	"how many", "count", "breakdown", "distribution", "average",
	"total", "statistics", "summary of all", "per category",
}

var relationshipPhrases = []string{
	"depend on", "depends on", "dependency", "related to", "relationship",
	"connected", "connection", "compatible with", "contains", "part of",
	"linked", "path between",
}

// Classify labels a query with an intent category. Classification is
// keyword-based and deterministic: identical input always yields the same
// intent. An empty or whitespace-only query is the only failure.
func Classify(query string) (Intent, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return "", errors.NewInvalidRequest("query must not be empty")
	}

	for _, w := range diagnosticWords {
		if strings.Contains(q, w) {
			return IntentDiagnostic, nil
		}
	}
	for _, p := range analyticsPhrases {
		if strings.Contains(q, p) {
			return IntentAnalytics, nil
		}
	}
	// Relationship language makes the query graph-eligible even without
	// diagnostic vocabulary.
	if HasRelationshipVocabulary(q) {
		return IntentDiagnostic, nil
	}
	if schematic.IDPattern.MatchString(strings.ToUpper(q)) {
		return IntentLookup, nil
	}
	return IntentSearch, nil
}

// HasRelationshipVocabulary reports whether the query contains explicit
// relationship language. Used both by classification and by the graph
// stage activation gate.
func HasRelationshipVocabulary(query string) bool {
	q := strings.ToLower(query)
	for _, p := range relationshipPhrases {
		if strings.Contains(q, p) {
			return true
		}
	}
	return false
}
