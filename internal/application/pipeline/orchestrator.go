// Package pipeline sequences the analysis stages: holistic read, the stage 2
// fan-out, style, scoring, synthesis, sentence insights and the locator
// bridge.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bryanwahyu/essay-workshop/internal/application/genai"
	"github.com/bryanwahyu/essay-workshop/internal/application/stages"
	"github.com/bryanwahyu/essay-workshop/internal/domain/essay"
	"github.com/bryanwahyu/essay-workshop/internal/domain/insight"
	"github.com/bryanwahyu/essay-workshop/internal/domain/library"
	"github.com/bryanwahyu/essay-workshop/internal/domain/locator"
	"github.com/bryanwahyu/essay-workshop/internal/domain/scoring"
	"github.com/bryanwahyu/essay-workshop/internal/domain/textscan"
)

// stage2Limit is the stage 2 fan-out width: one goroutine per analyzer.
const stage2Limit = 6

// Timing keys for the deterministic stages.
const (
	StageScoring  = "stage4_scoring"
	StageInsights = "stage5_insights"
	StageLocator  = "locator"
)

// Options tunes one orchestrator.
type Options struct {
	Bounds textscan.SectionBounds `yaml:"sectionBounds"`
	// DegradedMode replaces failed stage 2 analyzers with neutral results and
	// falls back to the deterministic style and synthesis output instead of
	// aborting. Every substitution is flagged Degraded.
	DegradedMode bool `yaml:"degradedMode"`
	InsightLimit int  `yaml:"insightLimit"`
}

// Orchestrator runs one analysis end to end. It holds no per-run state and is
// safe for concurrent use.
type Orchestrator struct {
	holistic  *stages.Holistic
	analyzers *stages.Analyzers
	style     *stages.Style
	synth     *stages.Synthesizer
	insights  *insight.Generator
	opts      Options
}

func New(caller *genai.Caller, lib *library.Library, opts Options) *Orchestrator {
	if opts.Bounds == (textscan.SectionBounds{}) {
		opts.Bounds = textscan.DefaultBounds
	}
	cfg := stages.Config{Bounds: opts.Bounds}
	gen := insight.New(opts.Bounds)
	if opts.InsightLimit > 0 {
		gen.Limit = opts.InsightLimit
	}
	return &Orchestrator{
		holistic:  stages.NewHolistic(caller, cfg),
		analyzers: stages.NewAnalyzers(caller, cfg),
		style:     stages.NewStyle(caller, lib, cfg),
		synth:     stages.NewSynthesizer(caller, cfg),
		insights:  gen,
		opts:      opts,
	}
}

// run carries the mutable bookkeeping of a single Run call.
type run struct {
	mu        sync.Mutex
	tokens    essay.TokenUsage
	durations map[string]int64
}

func (r *run) addTokens(u essay.TokenUsage) {
	r.mu.Lock()
	r.tokens.Add(u)
	r.mu.Unlock()
}

func (r *run) time(stage string, start time.Time) {
	r.durations[stage] = time.Since(start).Milliseconds()
}

// Run executes every stage. The result is either complete or nil with an
// error; partial results are never returned.
func (o *Orchestrator) Run(ctx context.Context, in essay.AnalysisInput) (*essay.AnalysisResult, error) {
	began := time.Now()
	p := scoring.ProfileFor(in.EssayType)
	r := &run{durations: make(map[string]int64, 8)}

	start := time.Now()
	h, usage, err := o.holistic.Analyze(ctx, in, p)
	r.addTokens(usage)
	r.time(essay.StageHolistic, start)
	if err != nil {
		return nil, err
	}

	start = time.Now()
	s2, failed, err := o.stage2(ctx, in, h, p, r)
	r.time(essay.StageAnalyzers, start)
	if err != nil {
		return nil, err
	}

	start = time.Now()
	st, usage, err := o.style.Analyze(ctx, in, h)
	r.addTokens(usage)
	if err != nil {
		if !o.canDegrade(ctx, err) {
			return nil, err
		}
		slog.WarnContext(ctx, "style pass degraded", "error", err)
		st = o.style.Fallback(in)
	}
	r.time(essay.StageStyle, start)

	start = time.Now()
	dims := scoring.Score(h, s2, st, p)
	if err := essay.CheckDimensions(dims); err != nil {
		return nil, err
	}
	r.time(StageScoring, start)

	start = time.Now()
	syn, usage, err := o.synth.Synthesize(ctx, in, h, dims, st)
	r.addTokens(usage)
	if err != nil {
		if !o.canDegrade(ctx, err) {
			return nil, err
		}
		slog.WarnContext(ctx, "synthesis degraded", "error", err)
		syn = stages.Deterministic(dims)
		syn.Degraded = true
	}
	r.time(essay.StageSynthesis, start)

	start = time.Now()
	issues := collectIssues(&s2, st)
	sentenceInsights := o.insights.Generate(in.Text, issues, dims)
	r.time(StageInsights, start)

	start = time.Now()
	locs, dropped := locator.Locate(in.Text, prioritized(issues, sentenceInsights))
	unlocated := make([]string, 0, len(dropped))
	for _, d := range dropped {
		slog.DebugContext(ctx, "issue not located", "issue_id", d.IssueID, "reason", d.Reason)
		unlocated = append(unlocated, d.IssueID)
	}
	r.time(StageLocator, start)

	res := &essay.AnalysisResult{
		EssayType:        in.EssayType,
		WordCount:        in.WordCount(),
		OverWordLimit:    in.OverLimit(),
		Holistic:         h,
		Stage2:           s2,
		Style:            st,
		Dimensions:       dims,
		Insights:         syn,
		SentenceInsights: sentenceInsights,
		Issues:           issues,
		Locators:         locs,
		Unlocated:        unlocated,
		Tokens:           r.tokens,
		StageDurations:   r.durations,
		Degraded:         len(failed) > 0 || h.Degraded || st.Degraded || syn.Degraded || anyDegraded(&s2),
	}
	slog.InfoContext(ctx, "analysis complete",
		"essay_type", in.EssayType,
		"aggregate", syn.AggregateScore,
		"impression", syn.Impression,
		"issues", len(issues),
		"located", len(locs),
		"tokens", r.tokens.Total(),
		"degraded", res.Degraded,
		"duration_ms", time.Since(began).Milliseconds())
	return res, nil
}

// Analyze runs the pipeline and returns only the synthesized insights.
func (o *Orchestrator) Analyze(ctx context.Context, in essay.AnalysisInput) (essay.SynthesizedInsights, error) {
	res, err := o.Run(ctx, in)
	if err != nil {
		return essay.SynthesizedInsights{}, err
	}
	return res.Insights, nil
}

// stage2 fans out the six analyzers. Each goroutine writes only its own field
// of the result. Without degraded mode the first failure cancels the others.
func (o *Orchestrator) stage2(ctx context.Context, in essay.AnalysisInput, h essay.HolisticUnderstanding, p scoring.Profile, r *run) (essay.Stage2Results, []essay.Analyzer, error) {
	var (
		res    essay.Stage2Results
		failMu sync.Mutex
		failed []essay.Analyzer
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(stage2Limit)

	launch := func(a essay.Analyzer, fn func(ctx context.Context) (essay.TokenUsage, error)) {
		g.Go(func() error {
			usage, err := fn(gctx)
			r.addTokens(usage)
			if err == nil {
				return nil
			}
			if !o.canDegrade(ctx, err) {
				return err
			}
			slog.WarnContext(ctx, "analyzer degraded", "analyzer", a, "error", err)
			failMu.Lock()
			failed = append(failed, a)
			failMu.Unlock()
			return nil
		})
	}

	launch(essay.AnalyzerOpening, func(ctx context.Context) (essay.TokenUsage, error) {
		out, u, err := o.analyzers.Opening(ctx, in, h, p)
		res.Opening = out
		return u, err
	})
	launch(essay.AnalyzerBody, func(ctx context.Context) (essay.TokenUsage, error) {
		out, u, err := o.analyzers.Body(ctx, in, h, p)
		res.Body = out
		return u, err
	})
	launch(essay.AnalyzerClimax, func(ctx context.Context) (essay.TokenUsage, error) {
		out, u, err := o.analyzers.Climax(ctx, in, h, p)
		res.Climax = out
		return u, err
	})
	launch(essay.AnalyzerConclusion, func(ctx context.Context) (essay.TokenUsage, error) {
		out, u, err := o.analyzers.Conclusion(ctx, in, h, p)
		res.Conclusion = out
		return u, err
	})
	launch(essay.AnalyzerCharacter, func(ctx context.Context) (essay.TokenUsage, error) {
		out, u, err := o.analyzers.Character(ctx, in, h, p)
		res.Character = out
		return u, err
	})
	launch(essay.AnalyzerStakes, func(ctx context.Context) (essay.TokenUsage, error) {
		out, u, err := o.analyzers.Stakes(ctx, in, h, p)
		res.Stakes = out
		return u, err
	})

	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return essay.Stage2Results{}, nil, fmt.Errorf("%s: %w", essay.StageAnalyzers, ctx.Err())
		}
		return essay.Stage2Results{}, nil, err
	}
	for _, a := range failed {
		stages.Neutral(&res, a)
	}
	return res, failed, nil
}

// canDegrade reports whether err may be absorbed by degraded mode. Caller
// cancellation and structural errors never are.
func (o *Orchestrator) canDegrade(ctx context.Context, err error) bool {
	if !o.opts.DegradedMode || ctx.Err() != nil {
		return false
	}
	if errors.Is(err, context.Canceled) || essay.IsStructural(err) {
		return false
	}
	_, ok := essay.AsStageFailed(err)
	return ok
}

func collectIssues(s2 *essay.Stage2Results, st essay.StyleAnalysis) []essay.Issue {
	var out []essay.Issue
	for _, f := range s2.AllFindings() {
		out = append(out, f.Issues...)
	}
	return append(out, st.Issues...)
}

// prioritized puts issues that made the sentence insights first, in priority
// order, followed by the rest in analyzer order.
func prioritized(issues []essay.Issue, si []essay.SentenceInsight) []essay.Issue {
	out := make([]essay.Issue, 0, len(issues))
	seen := make(map[string]bool, len(issues))
	for _, s := range si {
		if !seen[s.Issue.ID] {
			seen[s.Issue.ID] = true
			out = append(out, s.Issue)
		}
	}
	for _, is := range issues {
		if !seen[is.ID] {
			seen[is.ID] = true
			out = append(out, is)
		}
	}
	return out
}

func anyDegraded(s2 *essay.Stage2Results) bool {
	for _, f := range s2.AllFindings() {
		if f.Degraded {
			return true
		}
	}
	return false
}
