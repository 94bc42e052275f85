// Package pipeline implements the hybrid retrieval pipeline: a fixed
// sequence of stages that classify a query, gather graph and session
// context, retrieve catalog candidates, compress everything under a token
// budget, and produce an answer. Each request runs the stages linearly on
// a single goroutine; the only stage that can fail the request is intent
// classification, everything downstream degrades to empty results.
package pipeline

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/warnerco/schematica/internal/config"
	"github.com/warnerco/schematica/internal/graph"
	"github.com/warnerco/schematica/internal/index"
	"github.com/warnerco/schematica/internal/scratchpad"
)

// State is the request-scoped record threaded through the stages. It is
// never shared across concurrent requests, so no locking is needed.
type State struct {
	Query             string             `json:"query"`
	Intent            Intent             `json:"intent"`
	Entities          []string           `json:"entities,omitempty"`
	GraphContext      []graph.Fact       `json:"graph_context,omitempty"`
	SessionContext    []scratchpad.Entry `json:"session_context,omitempty"`
	Candidates        []index.Candidate  `json:"candidates,omitempty"`
	CompressedContext string             `json:"compressed_context"`
	TokenBudgetUsed   int                `json:"token_budget_used"`

	// Degraded names the stages that were skipped or returned empty due
	// to timeouts or store failures.
	Degraded []string `json:"degraded,omitempty"`

	// StageMs records per-stage wall time.
	StageMs map[string]float64 `json:"stage_ms,omitempty"`
}

// Result is what a completed pipeline run hands back to the caller.
type Result struct {
	State   State         `json:"state"`
	Answer  string        `json:"answer"`
	Elapsed time.Duration `json:"-"`
}

// Deps wires the pipeline to its collaborators. Graph, Search, and
// Session are read-only during a run; writes happen through separate
// entry points outside the pipeline.
type Deps struct {
	Config     *config.Config
	Graph      GraphReader
	Search     Searcher
	Session    SessionReader
	Recognizer Recognizer
	Generator  Generator
	Logger     *zap.Logger
	Now        func() time.Time
}

// Pipeline orchestrates the retrieval stages. Safe for concurrent use:
// all per-request state lives in State.
type Pipeline struct {
	cfg        *config.Config
	graph      GraphReader
	search     Searcher
	session    SessionReader
	recognizer Recognizer
	generator  Generator
	log        *zap.Logger
	now        func() time.Time
}

// New builds a pipeline from its collaborators. Config, Search, and
// Logger must be set; nil Graph or Session simply disables those stages,
// a nil Recognizer gets the keyword default, and a nil Generator gets the
// deterministic stub.
func New(deps Deps) *Pipeline {
	p := &Pipeline{
		cfg:        deps.Config,
		graph:      deps.Graph,
		search:     deps.Search,
		session:    deps.Session,
		recognizer: deps.Recognizer,
		generator:  deps.Generator,
		log:        deps.Logger,
		now:        deps.Now,
	}
	if p.log == nil {
		p.log = zap.NewNop()
	}
	if p.recognizer == nil {
		p.recognizer = &KeywordRecognizer{}
	}
	if p.generator == nil {
		p.generator = StubGenerator{}
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// Run executes the full pipeline for one query. Only an invalid query
// aborts the run; every other anomaly degrades the richness of the final
// context. The per-request timeout bounds the context-gathering stages:
// once it fires, remaining stages are skipped and compression proceeds
// with whatever partial state was assembled.
func (p *Pipeline) Run(ctx context.Context, query string) (*Result, error) {
	start := p.now()
	state := State{
		Query:   strings.TrimSpace(query),
		StageMs: make(map[string]float64),
	}

	intent, err := Classify(state.Query)
	if err != nil {
		return nil, err
	}
	state.Intent = intent
	p.markStage(&state, "intent", start)

	ctx, cancel := context.WithTimeout(ctx, p.cfg.QueryTimeout())
	defer cancel()

	state.Entities = p.recognizer.Recognize(state.Query)

	if p.graph != nil && ShouldResolveGraph(intent, state.Query) {
		if p.stageAlive(ctx, &state, "graph") {
			stageStart := p.now()
			state.GraphContext = p.resolveGraphContext(ctx, state.Query, state.Entities)
			p.markStage(&state, "graph", stageStart)
		}
	}

	if p.session != nil && p.stageAlive(ctx, &state, "session") {
		stageStart := p.now()
		state.SessionContext = p.injectSessionContext(state.Entities, p.now())
		p.markStage(&state, "session", stageStart)
	}

	if p.stageAlive(ctx, &state, "retrieve") {
		stageStart := p.now()
		state.Candidates = p.retrieve(ctx, state.Query, intent, state.Entities, state.GraphContext)
		p.markStage(&state, "retrieve", stageStart)
	}

	stageStart := p.now()
	state.CompressedContext, state.TokenBudgetUsed = Compress(
		intent, state.GraphContext, state.SessionContext, state.Candidates,
		p.cfg.CompressionBudgetTokens)
	p.markStage(&state, "compress", stageStart)

	answer, err := p.generator.Generate(ctx, state.Query, state.CompressedContext, intent)
	if err != nil {
		p.log.Warn("generation failed, answering with assembled context", zap.Error(err))
		state.Degraded = append(state.Degraded, "generate")
		answer = state.CompressedContext
	}

	return &Result{
		State:   state,
		Answer:  answer,
		Elapsed: p.now().Sub(start),
	}, nil
}

// stageAlive reports whether the request deadline still permits the named
// stage, recording a degradation when it does not.
func (p *Pipeline) stageAlive(ctx context.Context, state *State, stage string) bool {
	if ctx.Err() == nil {
		return true
	}
	p.log.Warn("request deadline reached, skipping stage", zap.String("stage", stage))
	state.Degraded = append(state.Degraded, stage)
	return false
}

func (p *Pipeline) markStage(state *State, stage string, since time.Time) {
	state.StageMs[stage] = float64(p.now().Sub(since).Microseconds()) / 1000
}
