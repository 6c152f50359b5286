package workshop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bryanwahyu/essay-workshop/internal/application/genai"
	"github.com/bryanwahyu/essay-workshop/internal/domain/essay"
	"github.com/bryanwahyu/essay-workshop/internal/domain/library"
	"github.com/bryanwahyu/essay-workshop/internal/domain/locator"
	"github.com/bryanwahyu/essay-workshop/internal/domain/textscan"
)

// Editor drives each workshop item through the editing state machine.
// It holds no per-request state and is safe for concurrent use.
type Editor struct {
	diagnoser *Diagnoser
	assembler *ContextAssembler
	generator *Generator
	validator *AdaptiveValidator
	refiner   *Refiner
	cfg       Config
}

func NewEditor(caller *genai.Caller, lib *library.Library, cfg Config) *Editor {
	cfg = cfg.withDefaults()
	v := NewAdaptiveValidator(NewValidator(lib, caller, cfg.NuanceCheck))
	return &Editor{
		diagnoser: NewDiagnoser(caller, lib),
		assembler: NewContextAssembler(lib),
		generator: NewGenerator(caller),
		validator: v,
		refiner:   NewRefiner(caller, v),
		cfg:       cfg,
	}
}

// GenerateSuggestions edits every locator with bounded concurrency. Items keep
// locator order; an item that fails is reported in Skipped and does not
// affect the others. On cancellation the context error is returned and no
// items are.
func (e *Editor) GenerateSuggestions(ctx context.Context, text string, locs []essay.Locator, wctx essay.WorkshopContext) (*essay.WorkshopResult, error) {
	if wctx.Aggregate <= 0 {
		wctx.Aggregate = essay.DefaultAggregate
	}
	seed := wctx.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	tier, _ := BoundsFor(wctx.Aggregate)
	sentences := textscan.SplitSentences(text)

	var (
		mu     sync.Mutex
		tokens essay.TokenUsage
	)
	items := make([]*essay.WorkshopItem, len(locs))
	skipped := make([]*essay.ItemError, len(locs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)
	for i, loc := range locs {
		g.Go(func() error {
			rng := rand.New(rand.NewSource(seed + int64(i)))
			item, usage, err := e.Edit(gctx, text, sentences, loc, wctx, rng)
			mu.Lock()
			tokens.Add(usage)
			mu.Unlock()
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				slog.WarnContext(ctx, "workshop item skipped", "issue_id", loc.IssueID, "error", err)
				skipped[i] = itemError(loc, err)
				return nil
			}
			items[i] = item
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &essay.WorkshopResult{Tier: tier, Tokens: tokens, Items: []essay.WorkshopItem{}}
	for i := range locs {
		if items[i] != nil {
			res.Items = append(res.Items, *items[i])
		}
		if skipped[i] != nil {
			res.Skipped = append(res.Skipped, *skipped[i])
		}
	}
	return res, nil
}

// Edit runs one item: Diagnosed, ContextAssembled, Generated, then per
// suggestion Validated with bounded Critiqued/Regenerated retries and
// optional refinement, then Final. The item is only returned once complete.
func (e *Editor) Edit(ctx context.Context, text string, sentences []textscan.Sentence, loc essay.Locator, wctx essay.WorkshopContext, rng *rand.Rand) (*essay.WorkshopItem, essay.TokenUsage, error) {
	var usage essay.TokenUsage
	if err := locator.Verify(text, loc); err != nil {
		return nil, usage, err
	}
	item := &essay.WorkshopItem{Locator: loc}
	step := func(s essay.EditState) {
		item.Trace = append(item.Trace, s)
		slog.DebugContext(ctx, "workshop item", "issue_id", loc.IssueID, "state", s)
	}
	sentence := enclosing(sentences, loc)

	diag, u, err := e.diagnoser.Diagnose(ctx, loc, sentence)
	usage.Add(u)
	if err != nil {
		return nil, usage, err
	}
	item.Diagnosis = diag
	step(essay.StateDiagnosed)

	bundle := e.assembler.Assemble(loc, sentence, diag, wctx, rng)
	step(essay.StateContextAssembled)

	suggestions, u, err := e.generator.Generate(ctx, bundle)
	usage.Add(u)
	if err != nil {
		return nil, usage, err
	}
	step(essay.StateGenerated)

	vc := VContext{Original: loc.Quote, Missing: diag.MissingElements}
	for _, s := range suggestions {
		ranked, u, err := e.settle(ctx, bundle, s, vc, wctx.Aggregate, step)
		usage.Add(u)
		if err != nil {
			return nil, usage, err
		}
		item.Suggestions = append(item.Suggestions, ranked)
	}

	rank(item.Suggestions)
	step(essay.StateFinal)
	return item, usage, nil
}

// settle validates one suggestion, regenerates it with a critique while it
// fails and retries remain, then refines whatever it ends up with.
func (e *Editor) settle(ctx context.Context, b Bundle, s essay.Suggestion, vc VContext, aggregate float64, step func(essay.EditState)) (essay.RankedSuggestion, essay.TokenUsage, error) {
	var usage essay.TokenUsage
	v, u := e.validator.Validate(ctx, s.Text, s.Rationale, vc, aggregate)
	usage.Add(u)
	step(validatedState(v))

	best, bestV := s, v
	retries := 0
	for !bestV.Passed && retries < e.cfg.MaxCritiques {
		if err := ctx.Err(); err != nil {
			return essay.RankedSuggestion{}, usage, err
		}
		retries++
		c := NewCritique(retries, best, bestV)
		step(essay.StateCritiqued)
		next, u, err := e.generator.Regenerate(ctx, b, best, c)
		usage.Add(u)
		if err != nil {
			if ctx.Err() != nil {
				return essay.RankedSuggestion{}, usage, ctx.Err()
			}
			slog.WarnContext(ctx, "regeneration failed", "type", s.Type, "error", err)
			break
		}
		step(essay.StateRegenerated)
		nv, u := e.validator.Validate(ctx, next.Text, next.Rationale, vc, aggregate)
		usage.Add(u)
		step(validatedState(nv))
		if nv.Passed || nv.Score > bestV.Score {
			best, bestV = next, nv
		}
	}
	if err := ctx.Err(); err != nil {
		return essay.RankedSuggestion{}, usage, err
	}

	out := essay.RankedSuggestion{Suggestion: best, Validation: bestV, Retries: retries}
	if !bestV.Passed || !e.cfg.Refine.Enabled {
		return out, usage, nil
	}
	rr, u, err := e.refiner.Refine(ctx, best.Text, best.Rationale, bestV, RefineContext{
		Bundle: b, Type: best.Type, VContext: vc, Aggregate: aggregate,
	}, e.cfg.Refine)
	usage.Add(u)
	if err != nil {
		return essay.RankedSuggestion{}, usage, err
	}
	if len(rr.Passes) > 0 {
		step(essay.StateRefined)
	}
	// refinement replaces text and rationale together, never one alone
	out.Suggestion.Text, out.Suggestion.Rationale = rr.Text, rr.Rationale
	out.Validation = rr.Validation
	out.Refinements = rr.Passes
	return out, usage, nil
}

// rank orders passing suggestions first, then by score; ties keep variant
// order. Ranks start at 1.
func rank(rs []essay.RankedSuggestion) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].Validation.Passed != rs[j].Validation.Passed {
			return rs[i].Validation.Passed
		}
		return rs[i].Validation.Score > rs[j].Validation.Score
	})
	for i := range rs {
		rs[i].Rank = i + 1
	}
}

func validatedState(v essay.ValidationResult) essay.EditState {
	if v.Passed {
		return essay.StateValidatedPass
	}
	return essay.StateValidatedFail
}

func enclosing(sentences []textscan.Sentence, loc essay.Locator) string {
	for _, s := range sentences {
		if loc.Start >= s.Start && loc.Start < s.End {
			return s.Text
		}
	}
	return loc.Quote
}

func itemError(loc essay.Locator, err error) *essay.ItemError {
	stage := essay.StageWorkshop
	if sf, ok := essay.AsStageFailed(err); ok && sf.Analyzer != "" {
		stage = sf.Analyzer
	}
	if errors.Is(err, locator.ErrInvalidLocator) {
		stage = "locator"
	}
	return &essay.ItemError{Locator: loc, Stage: stage, Message: fmt.Sprint(err)}
}
