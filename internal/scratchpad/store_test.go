package scratchpad

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/warnerco/schematica/internal/errors"
)

func newTestStore(now *time.Time) *Store {
	return NewStore(Options{
		MaxTokens:    200,
		EntryTTL:     30 * time.Minute,
		InjectBudget: 100,
		Now:          func() time.Time { return *now },
	})
}

func TestWriteAndRead(t *testing.T) {
	now := time.Now()
	s := newTestStore(&now)
	ctx := context.Background()

	result, err := s.Write(ctx, WriteInput{
		Subject:   "WRN-00001",
		Predicate: PredicateObserved,
		Object:    "component:power_system",
		Content:   "voltage sag under load",
	})
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if !strings.HasPrefix(result.Entry.ID, "sp-") {
		t.Errorf("entry ID = %q, want sp- prefix", result.Entry.ID)
	}

	entries, err := s.Read(ctx, ReadInput{Subject: "WRN-00001"})
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len = %d, want 1", len(entries))
	}
	if entries[0].Content != "voltage sag under load" {
		t.Errorf("Content = %q", entries[0].Content)
	}
}

func TestWrite_Validation(t *testing.T) {
	now := time.Now()
	s := newTestStore(&now)
	ctx := context.Background()

	_, err := s.Write(ctx, WriteInput{Predicate: PredicateObserved, Content: "x"})
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("missing subject: error = %v, want INVALID_REQUEST", err)
	}

	_, err = s.Write(ctx, WriteInput{Subject: "WRN-00001", Predicate: PredicateObserved})
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("missing content: error = %v, want INVALID_REQUEST", err)
	}

	_, err = s.Write(ctx, WriteInput{Subject: "WRN-00001", Predicate: "guessed", Content: "x"})
	if !errors.Is(err, errors.ErrInvalidPredicate) {
		t.Errorf("bad predicate: error = %v, want INVALID_PREDICATE", err)
	}
}

func TestWrite_MinimizesLongContent(t *testing.T) {
	now := time.Now()
	s := newTestStore(&now)

	// 60 words = 78 estimated tokens, above the minimize threshold
	long := strings.TrimSpace(strings.Repeat("word ", 60))
	result, err := s.Write(context.Background(), WriteInput{
		Subject:   "WRN-00001",
		Predicate: PredicateObserved,
		Content:   long,
		Minimize:  true,
	})
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if result.TokensSaved <= 0 {
		t.Errorf("TokensSaved = %d, want > 0", result.TokensSaved)
	}
	if result.Entry.OriginalContent != long {
		t.Error("OriginalContent not preserved after minimization")
	}
	if result.Entry.MinimizedTokens >= result.Entry.OriginalTokens {
		t.Errorf("MinimizedTokens = %d, OriginalTokens = %d", result.Entry.MinimizedTokens, result.Entry.OriginalTokens)
	}
}

func TestWrite_ShortContentStoredVerbatim(t *testing.T) {
	now := time.Now()
	s := newTestStore(&now)

	result, err := s.Write(context.Background(), WriteInput{
		Subject:   "WRN-00001",
		Predicate: PredicateObserved,
		Content:   "short note",
		Minimize:  true,
	})
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if result.Entry.Content != "short note" {
		t.Errorf("Content = %q, want verbatim", result.Entry.Content)
	}
	if result.TokensSaved != 0 {
		t.Errorf("TokensSaved = %d, want 0", result.TokensSaved)
	}
}

func TestRead_NewestFirst(t *testing.T) {
	now := time.Now()
	s := newTestStore(&now)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := s.Write(ctx, WriteInput{
			Subject:   "WRN-00001",
			Predicate: PredicateObserved,
			Content:   fmt.Sprintf("note %d", i),
		}); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		now = now.Add(time.Minute)
	}

	entries, err := s.Read(ctx, ReadInput{})
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("len = %d, want 3", len(entries))
	}
	if entries[0].Content != "note 2" || entries[2].Content != "note 0" {
		t.Errorf("order = [%s, %s, %s], want newest first",
			entries[0].Content, entries[1].Content, entries[2].Content)
	}
}

func TestEntriesExpire(t *testing.T) {
	now := time.Now()
	s := newTestStore(&now)
	ctx := context.Background()

	if _, err := s.Write(ctx, WriteInput{
		Subject: "WRN-00001", Predicate: PredicateObserved, Content: "ephemeral",
	}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	now = now.Add(31 * time.Minute)

	entries, err := s.Read(ctx, ReadInput{})
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("entries = %v, want expired away", entries)
	}
	if s.Stats().EntryCount != 0 {
		t.Errorf("EntryCount = %d, want 0 after expiry", s.Stats().EntryCount)
	}
}

func TestEntriesForSubjects(t *testing.T) {
	now := time.Now()
	s := newTestStore(&now)
	ctx := context.Background()

	for _, subject := range []string{"WRN-00001", "WRN-00002", "WRN-00003"} {
		if _, err := s.Write(ctx, WriteInput{
			Subject: subject, Predicate: PredicateObserved, Content: "note for " + subject,
		}); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}

	entries := s.EntriesForSubjects([]string{"WRN-00001", "WRN-00003"}, now)
	if len(entries) != 2 {
		t.Fatalf("len = %d, want 2", len(entries))
	}
	for _, e := range entries {
		if e.Subject == "WRN-00002" {
			t.Errorf("unrequested subject returned: %+v", e)
		}
	}
}

func TestContextForInjection_Budget(t *testing.T) {
	now := time.Now()
	s := newTestStore(&now)
	ctx := context.Background()

	// Each context line is well over 10 tokens; a budget of 30 can not
	// hold all five entries.
	for i := 0; i < 5; i++ {
		if _, err := s.Write(ctx, WriteInput{
			Subject:   "WRN-00001",
			Predicate: PredicateObserved,
			Content:   fmt.Sprintf("observation number %d with several words attached", i),
		}); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		now = now.Add(time.Second)
	}

	lines, used := s.ContextForInjection(30, now)
	if used > 30 {
		t.Fatalf("used = %d, exceeds budget 30", used)
	}
	if len(lines) == 0 || len(lines) >= 5 {
		t.Fatalf("lines = %d, want a strict subset", len(lines))
	}
	// Newest entry wins the budget
	if !strings.Contains(lines[0], "observation number 4") {
		t.Errorf("lines[0] = %q, want newest entry first", lines[0])
	}
}

func TestBudgetEviction_OldestFirst(t *testing.T) {
	now := time.Now()
	s := newTestStore(&now) // MaxTokens: 200
	ctx := context.Background()

	// Each entry is 40 words = 52 tokens; the fourth write must evict the
	// oldest to stay within the 200 token budget.
	content := strings.TrimSpace(strings.Repeat("w ", 40))
	for i := 0; i < 3; i++ {
		if _, err := s.Write(ctx, WriteInput{
			Subject:   fmt.Sprintf("WRN-%05d", i+1),
			Predicate: PredicateObserved,
			Content:   content,
		}); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
		now = now.Add(time.Minute)
	}

	result, err := s.Write(ctx, WriteInput{
		Subject: "WRN-00004", Predicate: PredicateObserved, Content: content,
	})
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if result.Evicted != 1 {
		t.Fatalf("Evicted = %d, want 1", result.Evicted)
	}

	entries, err := s.Read(ctx, ReadInput{})
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	for _, e := range entries {
		if e.Subject == "WRN-00001" {
			t.Error("oldest entry survived eviction")
		}
	}
}

func TestClear(t *testing.T) {
	now := time.Now()
	s := newTestStore(&now)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := s.Write(ctx, WriteInput{
			Subject: "WRN-00001", Predicate: PredicateObserved, Content: "a",
		}); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
	if _, err := s.Write(ctx, WriteInput{
		Subject: "WRN-00002", Predicate: PredicateObserved, Content: "b",
	}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	if n := s.Clear(ClearInput{Subject: "WRN-00001"}); n != 2 {
		t.Fatalf("Clear(subject) = %d, want 2", n)
	}
	if n := s.Clear(ClearInput{}); n != 1 {
		t.Fatalf("Clear(all) = %d, want 1", n)
	}
}

func TestClear_OlderThan(t *testing.T) {
	now := time.Now()
	s := newTestStore(&now)
	ctx := context.Background()

	if _, err := s.Write(ctx, WriteInput{
		Subject: "WRN-00001", Predicate: PredicateObserved, Content: "old",
	}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	now = now.Add(10 * time.Minute)
	if _, err := s.Write(ctx, WriteInput{
		Subject: "WRN-00001", Predicate: PredicateObserved, Content: "new",
	}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	age := 5 * time.Minute
	if n := s.Clear(ClearInput{OlderThan: &age}); n != 1 {
		t.Fatalf("Clear(older-than) = %d, want 1", n)
	}

	entries, err := s.Read(ctx, ReadInput{})
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Content != "new" {
		t.Fatalf("entries = %v, want only the new entry", entries)
	}
}

func TestStats(t *testing.T) {
	now := time.Now()
	s := newTestStore(&now)
	ctx := context.Background()

	long := strings.TrimSpace(strings.Repeat("word ", 60))
	if _, err := s.Write(ctx, WriteInput{
		Subject: "WRN-00001", Predicate: PredicateObserved, Content: long, Minimize: true,
	}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if _, err := s.Write(ctx, WriteInput{
		Subject: "WRN-00001", Predicate: PredicateInferred, Content: "short",
	}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	stats := s.Stats()
	if stats.EntryCount != 2 {
		t.Errorf("EntryCount = %d, want 2", stats.EntryCount)
	}
	if stats.TokensSaved <= 0 {
		t.Errorf("TokensSaved = %d, want > 0", stats.TokensSaved)
	}
	if stats.TokenBudget != 200 {
		t.Errorf("TokenBudget = %d, want 200", stats.TokenBudget)
	}
	if stats.PredicateCounts[PredicateObserved] != 1 || stats.PredicateCounts[PredicateInferred] != 1 {
		t.Errorf("PredicateCounts = %v", stats.PredicateCounts)
	}
	if stats.TokenBudgetUsed+stats.TokenBudgetRemaining != stats.TokenBudget {
		t.Errorf("budget accounting inconsistent: %+v", stats)
	}
}

func TestContextLine(t *testing.T) {
	e := &Entry{
		Subject:   "WRN-00001",
		Predicate: PredicateObserved,
		Object:    "component:power_system",
		Content:   "voltage sag under load",
	}

	want := "[observed] WRN-00001 -> component:power_system: voltage sag under load"
	if got := e.ContextLine(); got != want {
		t.Errorf("ContextLine() = %q, want %q", got, want)
	}
}
