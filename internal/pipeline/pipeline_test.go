package pipeline

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/warnerco/schematica/internal/config"
	"github.com/warnerco/schematica/internal/errors"
	"github.com/warnerco/schematica/internal/graph"
	"github.com/warnerco/schematica/internal/index"
	"github.com/warnerco/schematica/internal/schematic"
	"github.com/warnerco/schematica/internal/scratchpad"
)

type fakeGraph struct {
	neighborCalls []string
	directions    []graph.Direction
	pathCalls     int
	facts         []graph.Fact
	path          graph.PathResult
	err           error
}

func (f *fakeGraph) Neighbors(_ context.Context, entityID string, direction graph.Direction, _ int) ([]graph.Fact, error) {
	f.neighborCalls = append(f.neighborCalls, entityID)
	f.directions = append(f.directions, direction)
	if f.err != nil {
		return nil, f.err
	}
	return f.facts, nil
}

func (f *fakeGraph) ShortestPath(_ context.Context, _, _ string, _ int) (graph.PathResult, error) {
	f.pathCalls++
	if f.err != nil {
		return graph.PathResult{}, f.err
	}
	return f.path, nil
}

type fakeSearcher struct {
	candidates []index.Candidate
	docs       map[string]schematic.Schematic
	err        error
}

func (f *fakeSearcher) Search(_ context.Context, _ string, _ index.Filters, topK int) ([]index.Candidate, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := f.candidates
	if topK > 0 && len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

func (f *fakeSearcher) Get(id string) (schematic.Schematic, bool) {
	s, ok := f.docs[id]
	return s, ok
}

type fakeSession struct {
	entries []scratchpad.Entry
}

func (f *fakeSession) EntriesForSubjects(subjects []string, now time.Time) []scratchpad.Entry {
	wanted := make(map[string]bool)
	for _, s := range subjects {
		wanted[s] = true
	}
	var out []scratchpad.Entry
	for _, e := range f.entries {
		if wanted[e.Subject] && !e.Expired(now) {
			out = append(out, e)
		}
	}
	return out
}

func newTestPipeline(g *fakeGraph, s *fakeSearcher, sess *fakeSession) *Pipeline {
	cfg := config.DefaultConfig()
	deps := Deps{Config: cfg, Search: s}
	if g != nil {
		deps.Graph = g
	}
	if sess != nil {
		deps.Session = sess
	}
	return New(deps)
}

func TestRunSearchQuerySkipsGraph(t *testing.T) {
	g := &fakeGraph{facts: []graph.Fact{{Subject: "WRN-00001", Predicate: "related_to", Object: "WRN-00002"}}}
	s := &fakeSearcher{candidates: []index.Candidate{
		{ID: "WRN-00001", Score: 0.9, Summary: "WRN-00001 precision gripper"},
	}}
	p := newTestPipeline(g, s, &fakeSession{})

	res, err := p.Run(context.Background(), "Find robots for precision handling")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.State.Intent != IntentSearch {
		t.Errorf("intent = %s, want SEARCH", res.State.Intent)
	}
	if len(g.neighborCalls) != 0 || g.pathCalls != 0 {
		t.Errorf("graph store called for a plain search: %v", g.neighborCalls)
	}
	if len(res.State.GraphContext) != 0 {
		t.Errorf("graph context = %v, want empty", res.State.GraphContext)
	}
	if len(res.State.Candidates) != 1 {
		t.Errorf("candidates = %v, want 1", res.State.Candidates)
	}
}

func TestRunDependencyQueryHitsGraphIncoming(t *testing.T) {
	g := &fakeGraph{facts: []graph.Fact{
		{Subject: "WRN-00002", Predicate: "depends_on", Object: "component:power_system"},
	}}
	s := &fakeSearcher{candidates: []index.Candidate{
		{ID: "WRN-00002", Score: 0.7, Summary: "WRN-00002 power distribution"},
	}}
	p := newTestPipeline(g, s, &fakeSession{})

	res, err := p.Run(context.Background(), "What robots depend on the power system?")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.State.Intent != IntentDiagnostic {
		t.Errorf("intent = %s, want DIAGNOSTIC", res.State.Intent)
	}
	if !containsCall(g.neighborCalls, "component:power_system") {
		t.Fatalf("graph not queried for power system: %v", g.neighborCalls)
	}
	for i, call := range g.neighborCalls {
		if call == "component:power_system" && g.directions[i] != graph.DirectionIncoming {
			t.Errorf("direction = %s, want incoming", g.directions[i])
		}
	}
	if len(res.State.GraphContext) == 0 {
		t.Error("expected graph facts in state")
	}
}

func TestRunGraphUnavailableDegrades(t *testing.T) {
	g := &fakeGraph{err: errors.NewStoreUnavailable("graph", fmt.Errorf("disk gone"))}
	s := &fakeSearcher{candidates: []index.Candidate{
		{ID: "WRN-00001", Score: 0.6, Summary: "WRN-00001 thermal regulator"},
	}}
	p := newTestPipeline(g, s, &fakeSession{})

	res, err := p.Run(context.Background(), "Why is the thermal regulator on WRN-00001 failing?")
	if err != nil {
		t.Fatalf("pipeline must not fail when the graph store is down: %v", err)
	}
	if len(res.State.GraphContext) != 0 {
		t.Errorf("graph context = %v, want empty", res.State.GraphContext)
	}
	if len(res.State.Candidates) == 0 {
		t.Error("retrieval should still produce candidates")
	}
	if res.Answer == "" {
		t.Error("expected an answer despite degradation")
	}
}

func TestRunRetrievalUnavailableDegrades(t *testing.T) {
	s := &fakeSearcher{err: errors.NewStoreUnavailable("index", fmt.Errorf("index offline"))}
	p := newTestPipeline(nil, s, &fakeSession{})

	res, err := p.Run(context.Background(), "find gripper schematics")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.State.Candidates) != 0 {
		t.Errorf("candidates = %v, want empty", res.State.Candidates)
	}
	if res.Answer == "" {
		t.Error("expected a fallback answer")
	}
}

func TestRunEmptyQueryAborts(t *testing.T) {
	p := newTestPipeline(nil, &fakeSearcher{}, nil)
	_, err := p.Run(context.Background(), "   ")
	if err == nil {
		t.Fatal("expected error for empty query")
	}
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("error = %v, want INVALID_REQUEST", err)
	}
}

func TestRunExpiredSessionEntryExcluded(t *testing.T) {
	now := time.Now()
	sess := &fakeSession{entries: []scratchpad.Entry{
		{
			ID: "sp-old", Subject: "WRN-00001", Predicate: "observed",
			Content: "previous fault cleared", MinimizedTokens: 5,
			CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour),
		},
	}}
	s := &fakeSearcher{}
	p := newTestPipeline(nil, s, sess)

	res, err := p.Run(context.Background(), "WRN-00001 status")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.State.SessionContext) != 0 {
		t.Errorf("session context = %v, want empty", res.State.SessionContext)
	}
}

func TestRunSessionInjectionRespectsBudget(t *testing.T) {
	now := time.Now()
	var entries []scratchpad.Entry
	for i := 0; i < 20; i++ {
		entries = append(entries, scratchpad.Entry{
			ID:      fmt.Sprintf("sp-%03d", i),
			Subject: "WRN-00001", Predicate: "observed",
			Content:         strings.Repeat("note ", 80),
			MinimizedTokens: 104,
			CreatedAt:       now.Add(-time.Duration(i) * time.Minute),
			ExpiresAt:       now.Add(time.Hour),
		})
	}
	p := newTestPipeline(nil, &fakeSearcher{}, &fakeSession{entries: entries})

	res, err := p.Run(context.Background(), "WRN-00001 status")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	total := 0
	for _, e := range res.State.SessionContext {
		total += e.MinimizedTokens
	}
	if total > p.cfg.ScratchpadInjectBudgetTokens {
		t.Errorf("injected %d tokens, budget %d", total, p.cfg.ScratchpadInjectBudgetTokens)
	}
	if len(res.State.SessionContext) == 0 {
		t.Error("expected some session context under budget")
	}
}

func TestRunLookupResolvesDirectly(t *testing.T) {
	s := &fakeSearcher{
		docs: map[string]schematic.Schematic{
			"WRN-00042": {
				ID: "WRN-00042", Model: "WC-0100", Name: "Vanguard",
				Component: "servo motor", Category: "mobility",
				Status: schematic.StatusActive, Summary: "primary drive servo",
			},
		},
	}
	p := newTestPipeline(nil, s, nil)

	res, err := p.Run(context.Background(), "WRN-00042")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.State.Intent != IntentLookup {
		t.Errorf("intent = %s, want LOOKUP", res.State.Intent)
	}
	if len(res.State.Candidates) != 1 {
		t.Fatalf("candidates = %v, want exactly one", res.State.Candidates)
	}
	if res.State.Candidates[0].ID != "WRN-00042" || res.State.Candidates[0].Score != 1.0 {
		t.Errorf("candidate = %+v, want WRN-00042 with score 1.0", res.State.Candidates[0])
	}
}

func TestRunPathQuestionUsesPathPrimitive(t *testing.T) {
	g := &fakeGraph{path: graph.PathResult{Found: false}}
	p := newTestPipeline(g, &fakeSearcher{}, nil)

	res, err := p.Run(context.Background(), "how is WRN-00001 related to WRN-00009?")
	if err != nil {
		t.Fatalf("a missing path must not fail the pipeline: %v", err)
	}
	if g.pathCalls != 1 {
		t.Errorf("path calls = %d, want 1", g.pathCalls)
	}
	if len(g.neighborCalls) != 0 {
		t.Errorf("neighbor calls = %v, want none for a connection question", g.neighborCalls)
	}
	if len(res.State.GraphContext) != 0 {
		t.Errorf("graph context = %v, want empty when no path found", res.State.GraphContext)
	}
}

func TestRunExpiredDeadlineStillCompletes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g := &fakeGraph{}
	s := &fakeSearcher{candidates: []index.Candidate{{ID: "WRN-00001", Score: 0.5, Summary: "x"}}}
	p := newTestPipeline(g, s, &fakeSession{})

	res, err := p.Run(ctx, "why is the gripper failing")
	if err != nil {
		t.Fatalf("Run must degrade, not fail, on deadline: %v", err)
	}
	if len(g.neighborCalls) != 0 {
		t.Errorf("graph queried after deadline: %v", g.neighborCalls)
	}
	if len(res.State.Degraded) == 0 {
		t.Error("expected degraded stages to be recorded")
	}
	if res.Answer == "" {
		t.Error("expected a fallback answer")
	}
}

func TestRunDeterministicRetrieval(t *testing.T) {
	s := &fakeSearcher{candidates: []index.Candidate{
		{ID: "WRN-00001", Score: 0.8, Summary: "a"},
		{ID: "WRN-00002", Score: 0.8, Summary: "b"},
	}}
	p := newTestPipeline(nil, s, nil)

	first, err := p.Run(context.Background(), "find servo schematics")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := p.Run(context.Background(), "find servo schematics")
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if len(again.State.Candidates) != len(first.State.Candidates) {
			t.Fatal("candidate count changed between identical runs")
		}
		for j := range again.State.Candidates {
			if again.State.Candidates[j].ID != first.State.Candidates[j].ID {
				t.Fatalf("run %d: candidate order changed", i)
			}
		}
		if again.State.CompressedContext != first.State.CompressedContext {
			t.Fatalf("run %d: compressed context changed", i)
		}
	}
}

func containsCall(calls []string, want string) bool {
	for _, c := range calls {
		if c == want {
			return true
		}
	}
	return false
}
