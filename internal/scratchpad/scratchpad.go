// Package scratchpad implements session-scoped working memory: an in-memory
// TTL'd triplet store that complements the persistent graph and retrieval
// layers. Entries record observations and inferences from the current
// session and expire automatically.
//
// The store is the one place in the system that needs real concurrency
// discipline: overlapping requests read and write the same entries, so all
// access goes through a single mutex.
package scratchpad

import (
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Session predicate vocabulary, distinct from the graph predicates.
const (
	PredicateObserved     = "observed"
	PredicateInferred     = "inferred"
	PredicateRelevantTo   = "relevant_to"
	PredicateSummarizedAs = "summarized_as"
	PredicateContradicts  = "contradicts"
	PredicateSupersedes   = "supersedes"
	PredicateDependsOn    = "depends_on"
)

// ValidPredicates lists the accepted session predicates.
var ValidPredicates = []string{
	PredicateObserved,
	PredicateInferred,
	PredicateRelevantTo,
	PredicateSummarizedAs,
	PredicateContradicts,
	PredicateSupersedes,
	PredicateDependsOn,
}

// ValidPredicate reports whether p is in the session vocabulary.
func ValidPredicate(p string) bool {
	for _, v := range ValidPredicates {
		if p == v {
			return true
		}
	}
	return false
}

// Entry is a single scratchpad record: a triplet with content, token
// accounting, and a lifetime. Entries are owned by the store; the pipeline
// holds only transient read-only copies for the duration of one request.
type Entry struct {
	ID              string         `json:"id"`
	Subject         string         `json:"subject"`
	Predicate       string         `json:"predicate"`
	Object          string         `json:"object,omitempty"`
	Content         string         `json:"content"`
	OriginalContent string         `json:"original_content,omitempty"`
	OriginalTokens  int            `json:"original_tokens"`
	MinimizedTokens int            `json:"minimized_tokens"`
	CreatedAt       time.Time      `json:"created_at"`
	ExpiresAt       time.Time      `json:"expires_at"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// Expired reports whether the entry is past its lifetime at the given instant.
func (e *Entry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// ContextLine formats the entry for context injection:
// "[predicate] subject -> object: content".
func (e *Entry) ContextLine() string {
	return fmt.Sprintf("[%s] %s -> %s: %s", e.Predicate, e.Subject, e.Object, e.Content)
}

// Stats summarizes scratchpad contents and token accounting.
type Stats struct {
	EntryCount           int            `json:"entry_count"`
	TotalOriginalTokens  int            `json:"total_original_tokens"`
	TotalMinimizedTokens int            `json:"total_minimized_tokens"`
	TokensSaved          int            `json:"tokens_saved"`
	SavingsPercentage    float64        `json:"savings_percentage"`
	TokenBudget          int            `json:"token_budget"`
	TokenBudgetUsed      int            `json:"token_budget_used"`
	TokenBudgetRemaining int            `json:"token_budget_remaining"`
	PredicateCounts      map[string]int `json:"predicate_counts"`
	OldestEntry          *time.Time     `json:"oldest_entry,omitempty"`
	NewestEntry          *time.Time     `json:"newest_entry,omitempty"`
}

// newEntryID generates a ULID-based entry ID with an "sp-" prefix.
func newEntryID() (string, error) {
	id, err := ulid.New(ulid.Timestamp(time.Now()), ulid.Monotonic(rand.Reader, 0))
	if err != nil {
		return "", err
	}
	return "sp-" + strings.ToLower(id.String()), nil
}
