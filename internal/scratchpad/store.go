package scratchpad

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/warnerco/schematica/internal/errors"
	"github.com/warnerco/schematica/internal/schematic"
)

// Minimizer reduces content at write time while preserving meaning.
// An LLM-backed implementation can be plugged in; the default is
// word-count truncation.
type Minimizer interface {
	Minimize(ctx context.Context, content string) (string, error)
}

// Enricher expands entry content at read time. Optional.
type Enricher interface {
	Enrich(ctx context.Context, e Entry, queryContext string) (string, error)
}

// minimizeThresholdTokens is the size below which content is stored as-is.
const minimizeThresholdTokens = 50

// TruncateMinimizer is the fallback minimizer: keep ~75% of the words.
type TruncateMinimizer struct{}

// Minimize truncates content to 75% of its word count.
func (TruncateMinimizer) Minimize(_ context.Context, content string) (string, error) {
	words := strings.Fields(content)
	target := int(float64(len(words)) * 0.75)
	if target < 1 {
		target = 1
	}
	return strings.Join(words[:target], " "), nil
}

// Options configure a Store.
type Options struct {
	MaxTokens    int           // total store budget; oldest entries evicted beyond it
	EntryTTL     time.Duration // lifetime of each entry
	InjectBudget int           // default budget for ContextForInjection
	Minimizer    Minimizer     // nil disables minimization beyond passthrough
	Enricher     Enricher      // nil disables enrichment
	Logger       *zap.Logger
	Now          func() time.Time // test hook; defaults to time.Now
}

// Store is the mutex-guarded in-memory scratchpad.
type Store struct {
	mu      sync.Mutex
	entries map[string]*Entry

	maxTokens    int
	ttl          time.Duration
	injectBudget int
	minimizer    Minimizer
	enricher     Enricher
	enrichCache  *gocache.Cache
	log          *zap.Logger
	now          func() time.Time
}

// NewStore creates a scratchpad store.
func NewStore(opts Options) *Store {
	if opts.Minimizer == nil {
		opts.Minimizer = TruncateMinimizer{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		entries:      make(map[string]*Entry),
		maxTokens:    opts.MaxTokens,
		ttl:          opts.EntryTTL,
		injectBudget: opts.InjectBudget,
		minimizer:    opts.Minimizer,
		enricher:     opts.Enricher,
		enrichCache:  gocache.New(opts.EntryTTL, 10*time.Minute),
		log:          opts.Logger,
		now:          opts.Now,
	}
}

// WriteInput contains parameters for Write.
type WriteInput struct {
	Subject   string
	Predicate string
	Object    string
	Content   string
	Minimize  bool
	Metadata  map[string]any
}

// WriteResult is the outcome of a Write.
type WriteResult struct {
	Entry       *Entry `json:"entry"`
	TokensSaved int    `json:"tokens_saved"`
	Evicted     int    `json:"evicted"`
}

// Write stores an observation, optionally minimized, evicting the oldest
// entries if the store budget would be exceeded.
func (s *Store) Write(ctx context.Context, input WriteInput) (*WriteResult, error) {
	if strings.TrimSpace(input.Subject) == "" {
		return nil, errors.NewInvalidRequest("subject is required")
	}
	if strings.TrimSpace(input.Content) == "" {
		return nil, errors.NewInvalidRequest("content is required")
	}
	if !ValidPredicate(input.Predicate) {
		return nil, errors.NewInvalidPredicate(input.Predicate, ValidPredicates)
	}

	originalTokens := schematic.EstimateTokens(input.Content)
	content := input.Content
	minimizedTokens := originalTokens
	originalContent := ""

	if input.Minimize && originalTokens > minimizeThresholdTokens {
		minimized, err := s.minimizer.Minimize(ctx, input.Content)
		if err != nil {
			// Minimization failure is never fatal; store the original.
			s.log.Warn("scratchpad minimization failed", zap.Error(err))
		} else if t := schematic.EstimateTokens(minimized); t < originalTokens {
			content = minimized
			minimizedTokens = t
			originalContent = input.Content
		}
	}

	id, err := newEntryID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.cleanupExpiredLocked(now)
	evicted := s.enforceBudgetLocked(minimizedTokens)

	entry := &Entry{
		ID:              id,
		Subject:         input.Subject,
		Predicate:       input.Predicate,
		Object:          input.Object,
		Content:         content,
		OriginalContent: originalContent,
		OriginalTokens:  originalTokens,
		MinimizedTokens: minimizedTokens,
		CreatedAt:       now,
		ExpiresAt:       now.Add(s.ttl),
		Metadata:        input.Metadata,
	}
	s.entries[id] = entry

	if evicted > 0 {
		s.log.Warn("scratchpad evicted entries to stay within budget", zap.Int("evicted", evicted))
	}

	copied := *entry
	return &WriteResult{
		Entry:       &copied,
		TokensSaved: originalTokens - minimizedTokens,
		Evicted:     evicted,
	}, nil
}

// ReadInput contains parameters for Read.
type ReadInput struct {
	Subject      string // optional filter
	Predicate    string // optional filter
	Enrich       bool
	QueryContext string
}

// Read retrieves non-expired entries, newest first, with optional filtering
// and enrichment. Enrichment results are cached per entry.
func (s *Store) Read(ctx context.Context, input ReadInput) ([]Entry, error) {
	s.mu.Lock()
	now := s.now()
	s.cleanupExpiredLocked(now)

	var results []Entry
	for _, e := range s.entries {
		if input.Subject != "" && e.Subject != input.Subject {
			continue
		}
		if input.Predicate != "" && e.Predicate != input.Predicate {
			continue
		}
		results = append(results, *e)
	}
	s.mu.Unlock()

	sort.Slice(results, func(i, j int) bool {
		if !results[i].CreatedAt.Equal(results[j].CreatedAt) {
			return results[i].CreatedAt.After(results[j].CreatedAt)
		}
		return results[i].ID > results[j].ID
	})

	// Enrich outside the lock so a slow enricher can't block writers.
	if input.Enrich && s.enricher != nil {
		for i := range results {
			if cached, ok := s.enrichCache.Get(results[i].ID); ok {
				results[i].Content = cached.(string)
				continue
			}
			enriched, err := s.enricher.Enrich(ctx, results[i], input.QueryContext)
			if err != nil {
				s.log.Warn("scratchpad enrichment failed", zap.String("entry", results[i].ID), zap.Error(err))
				continue
			}
			s.enrichCache.Set(results[i].ID, enriched, gocache.DefaultExpiration)
			results[i].Content = enriched
		}
	}

	return results, nil
}

// EntriesForSubjects returns non-expired entries whose subject is in the
// given set, newest first. This is the injection read path: it never
// mutates the store beyond expiry cleanup.
func (s *Store) EntriesForSubjects(subjects []string, now time.Time) []Entry {
	wanted := make(map[string]bool, len(subjects))
	for _, sub := range subjects {
		wanted[sub] = true
	}

	s.mu.Lock()
	s.cleanupExpiredLocked(now)
	var results []Entry
	for _, e := range s.entries {
		if wanted[e.Subject] && !e.Expired(now) {
			results = append(results, *e)
		}
	}
	s.mu.Unlock()

	sort.Slice(results, func(i, j int) bool {
		if !results[i].CreatedAt.Equal(results[j].CreatedAt) {
			return results[i].CreatedAt.After(results[j].CreatedAt)
		}
		return results[i].ID > results[j].ID
	})
	return results
}

// ContextForInjection formats non-expired entries as context lines,
// newest first, stopping before the summed token estimate would exceed
// budget. Returns the lines and the tokens they cost.
func (s *Store) ContextForInjection(budget int, now time.Time) ([]string, int) {
	if budget <= 0 {
		budget = s.injectBudget
	}

	s.mu.Lock()
	s.cleanupExpiredLocked(now)
	entries := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, *e)
	}
	s.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.After(entries[j].CreatedAt)
		}
		return entries[i].ID > entries[j].ID
	})

	var lines []string
	total := 0
	for i := range entries {
		line := entries[i].ContextLine()
		cost := schematic.EstimateTokens(line)
		if total+cost > budget {
			break
		}
		lines = append(lines, line)
		total += cost
	}
	return lines, total
}

// ClearInput contains parameters for Clear.
type ClearInput struct {
	Subject   string         // clear only entries for this subject
	OlderThan *time.Duration // clear only entries older than this
}

// Clear removes entries by subject and/or age; with no filters it clears
// everything. Returns the number of entries removed.
func (s *Store) Clear(input ClearInput) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var cutoff time.Time
	if input.OlderThan != nil {
		cutoff = now.Add(-*input.OlderThan)
	}

	var toClear []string
	for id, e := range s.entries {
		switch {
		case input.Subject != "" && e.Subject == input.Subject:
			toClear = append(toClear, id)
		case input.OlderThan != nil && e.CreatedAt.Before(cutoff):
			toClear = append(toClear, id)
		case input.Subject == "" && input.OlderThan == nil:
			toClear = append(toClear, id)
		}
	}

	for _, id := range toClear {
		delete(s.entries, id)
		s.enrichCache.Delete(id)
	}
	return len(toClear)
}

// Stats returns token accounting and entry counts.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cleanupExpiredLocked(s.now())

	stats := Stats{
		TokenBudget:     s.maxTokens,
		PredicateCounts: make(map[string]int),
	}

	for _, e := range s.entries {
		stats.EntryCount++
		stats.TotalOriginalTokens += e.OriginalTokens
		stats.TotalMinimizedTokens += e.MinimizedTokens
		stats.PredicateCounts[e.Predicate]++

		created := e.CreatedAt
		if stats.OldestEntry == nil || created.Before(*stats.OldestEntry) {
			c := created
			stats.OldestEntry = &c
		}
		if stats.NewestEntry == nil || created.After(*stats.NewestEntry) {
			c := created
			stats.NewestEntry = &c
		}
	}

	stats.TokensSaved = stats.TotalOriginalTokens - stats.TotalMinimizedTokens
	if stats.TotalOriginalTokens > 0 {
		stats.SavingsPercentage = float64(stats.TokensSaved) / float64(stats.TotalOriginalTokens) * 100
	}
	stats.TokenBudgetUsed = stats.TotalMinimizedTokens
	stats.TokenBudgetRemaining = s.maxTokens - stats.TotalMinimizedTokens

	return stats
}

// cleanupExpiredLocked removes expired entries. Caller holds the lock.
func (s *Store) cleanupExpiredLocked(now time.Time) int {
	var expired []string
	for id, e := range s.entries {
		if e.Expired(now) {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		delete(s.entries, id)
		s.enrichCache.Delete(id)
	}
	return len(expired)
}

// enforceBudgetLocked evicts oldest entries until the store can absorb
// neededTokens. Caller holds the lock. Returns the eviction count.
func (s *Store) enforceBudgetLocked(neededTokens int) int {
	usage := 0
	for _, e := range s.entries {
		usage += e.MinimizedTokens
	}

	evicted := 0
	for usage+neededTokens > s.maxTokens && len(s.entries) > 0 {
		var oldest *Entry
		for _, e := range s.entries {
			if oldest == nil || e.CreatedAt.Before(oldest.CreatedAt) ||
				(e.CreatedAt.Equal(oldest.CreatedAt) && e.ID < oldest.ID) {
				oldest = e
			}
		}
		usage -= oldest.MinimizedTokens
		delete(s.entries, oldest.ID)
		s.enrichCache.Delete(oldest.ID)
		evicted++
	}
	return evicted
}
