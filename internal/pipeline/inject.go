package pipeline

import (
	"time"

	"github.com/warnerco/schematica/internal/schematic"
	"github.com/warnerco/schematica/internal/scratchpad"
)

// SessionReader is the read surface of the session scratchpad.
type SessionReader interface {
	// EntriesForSubjects returns non-expired entries whose subject is in
	// the given set, sorted newest first.
	EntriesForSubjects(subjects []string, now time.Time) []scratchpad.Entry
}

// injectSessionContext pulls working-memory entries for the recognized
// subjects, newest first, and truncates from the tail so the summed token
// count never exceeds the injection budget. Read-only on the store.
func (p *Pipeline) injectSessionContext(mentions []string, now time.Time) []scratchpad.Entry {
	if len(mentions) == 0 {
		return nil
	}

	entries := p.session.EntriesForSubjects(mentions, now)
	if len(entries) == 0 {
		return nil
	}

	budget := p.cfg.ScratchpadInjectBudgetTokens
	var kept []scratchpad.Entry
	total := 0
	for _, e := range entries {
		cost := e.MinimizedTokens
		if cost <= 0 {
			cost = schematic.EstimateTokens(e.Content)
		}
		if total+cost > budget {
			break
		}
		kept = append(kept, e)
		total += cost
	}
	return kept
}
