package workshop

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/bryanwahyu/essay-workshop/internal/application/genai"
	"github.com/bryanwahyu/essay-workshop/internal/domain/essay"
	"github.com/bryanwahyu/essay-workshop/internal/infra/ai/prompt"
)

// Stop reasons reported in RefinementResult.StopReason.
const (
	StopTarget        = "target_reached"
	StopMaxPasses     = "max_passes"
	StopNoImprovement = "no_improvement"
	StopDiminishing   = "diminishing_returns"
	StopFailed        = "refinement_failed"
	StopDisabled      = "disabled"
)

// RefineConfig bounds the refinement loop.
type RefineConfig struct {
	Enabled        bool    `yaml:"enabled"`
	TargetScore    float64 `yaml:"targetScore"`
	MaxPasses      int     `yaml:"maxPasses"`
	MinImprovement float64 `yaml:"minImprovement"`
}

// DefaultRefineConfig: up to 3 passes toward 85, stopping below 2 points gain.
func DefaultRefineConfig() RefineConfig {
	return RefineConfig{Enabled: true, TargetScore: 85, MaxPasses: 3, MinImprovement: 2}
}

func (c RefineConfig) withDefaults() RefineConfig {
	d := DefaultRefineConfig()
	if c.TargetScore <= 0 {
		c.TargetScore = d.TargetScore
	}
	if c.MaxPasses < 0 {
		c.MaxPasses = 0
	}
	if c.MinImprovement < 0 {
		c.MinImprovement = 0
	}
	return c
}

// RefineContext is what each pass is validated and prompted with.
type RefineContext struct {
	Bundle    Bundle
	Type      essay.SuggestionType
	VContext  VContext
	Aggregate float64
}

type refineResponse struct {
	Text            string `json:"text"`
	Rationale       string `json:"rationale"`
	WorthContinuing bool   `json:"worth_continuing" jsonschema_description:"False when no further pass could help"`
}

func (r refineResponse) Validate() error {
	if strings.TrimSpace(r.Text) == "" {
		return fmt.Errorf("empty text")
	}
	return nil
}

// Refiner runs sequential regenerate-then-revalidate passes over one
// suggestion.
type Refiner struct {
	caller    *genai.Caller
	validator *AdaptiveValidator
}

func NewRefiner(caller *genai.Caller, v *AdaptiveValidator) *Refiner {
	return &Refiner{caller: caller, validator: v}
}

// Refine improves text until a stop condition holds. A pass is adopted only
// when its validated score strictly beats the current one and it does not
// trade a passing version for a failing one, so the returned score never
// drops below the initial score and a passing suggestion stays passing. The loop runs at most
// cfg.MaxPasses times. Only cancellation is returned as an error; a failed
// pass ends the loop and keeps the current version.
func (r *Refiner) Refine(ctx context.Context, text, rationale string, initial essay.ValidationResult, rc RefineContext, cfg RefineConfig) (essay.RefinementResult, essay.TokenUsage, error) {
	cfg = cfg.withDefaults()
	res := essay.RefinementResult{
		Text:          text,
		Rationale:     rationale,
		Validation:    initial,
		OriginalScore: initial.Score,
		FinalScore:    initial.Score,
		StopReason:    StopMaxPasses,
	}
	var usage essay.TokenUsage
	if !cfg.Enabled {
		res.StopReason = StopDisabled
		return res, usage, nil
	}
	_, bounds := BoundsFor(rc.Aggregate)
	target := math.Min(cfg.TargetScore, bounds.MaxQuality)

	for pass := 1; pass <= cfg.MaxPasses; pass++ {
		if res.FinalScore >= target {
			res.StopReason = StopTarget
			return res, usage, nil
		}
		goals := Goals(res.FinalScore, target, res.Validation.Failures)

		out, u, err := r.pass(ctx, res.Text, res.Rationale, goals, rc)
		usage.Add(u)
		if err != nil {
			if ctx.Err() != nil {
				return essay.RefinementResult{}, usage, ctx.Err()
			}
			slog.WarnContext(ctx, "refinement pass failed", "pass", pass, "error", err)
			res.StopReason = StopFailed
			return res, usage, nil
		}

		v, u := r.validator.Validate(ctx, out.Text, out.Rationale, rc.VContext, rc.Aggregate)
		usage.Add(u)
		if ctx.Err() != nil {
			return essay.RefinementResult{}, usage, ctx.Err()
		}
		improvement := v.Score - res.FinalScore
		// a pass that fails validation never replaces a version that passed
		adopt := improvement > 0 && (v.Passed || !res.Validation.Passed)
		record := essay.RefinementPass{
			Pass:            pass,
			PreviousScore:   res.FinalScore,
			ImprovedScore:   v.Score,
			Text:            out.Text,
			Rationale:       out.Rationale,
			Goals:           goals,
			WorthContinuing: out.WorthContinuing,
			Passed:          v.Passed,
			Adopted:         adopt,
		}
		res.Passes = append(res.Passes, record)
		if !adopt {
			res.StopReason = StopNoImprovement
			return res, usage, nil
		}
		res.Text, res.Rationale, res.Validation, res.FinalScore = out.Text, out.Rationale, v, v.Score

		switch {
		case improvement < cfg.MinImprovement:
			res.StopReason = StopDiminishing
			return res, usage, nil
		case res.FinalScore >= target:
			res.StopReason = StopTarget
			return res, usage, nil
		}
	}
	return res, usage, nil
}

func (r *Refiner) pass(ctx context.Context, text, rationale string, goals []string, rc RefineContext) (refineResponse, essay.TokenUsage, error) {
	var u prompt.User
	bundlePrompt(&u, rc.Bundle)
	u.Line("Variant: %s", rc.Type)
	u.Block("current_rewrite", text)
	u.Block("current_rationale", rationale)
	u.List("goals", goals)

	var out refineResponse
	usage, err := send(ctx, r.caller, call{
		purpose: PurposeRefine,
		role:    "You are a writing coach polishing a rewrite of one essay excerpt.",
		rules: append([]string{
			"Address every numbered goal in order.",
			"Return the full improved rewrite and an updated rationale.",
		}, generationRules...),
		schema:      prompt.SchemaFor[refineResponse](),
		user:        u.String(),
		temperature: 0.6,
	}, &out)
	return out, usage, err
}

// Goals turns the gap between current and target score into explicit goals.
// Validation failures with a fix come first. Wide gaps ask for substance,
// narrow ones for word choice.
func Goals(current, target float64, failures []essay.ValidationFailure) []string {
	var goals []string
	for _, f := range failures {
		if f.Fix != "" {
			goals = append(goals, f.Fix)
		}
	}
	gap := target - current
	switch {
	case gap >= 20:
		goals = append(goals,
			"Add one concrete, specific detail only this writer could know.",
			"Deepen the emotional resonance: show what the moment cost or meant.",
			"Expand the rationale to explain exactly what the rewrite adds.")
	case gap >= 8:
		goals = append(goals,
			"Sharpen specificity: replace any remaining general word with a precise one.",
			"Tighten the voice so it matches the surrounding sentences.")
	default:
		goals = append(goals, "Refine word choice: swap the weakest verb or adjective for a stronger one.")
	}
	return goals
}
