package workshop

import (
	"context"
	"fmt"
	"strings"

	"github.com/bryanwahyu/essay-workshop/internal/application/genai"
	"github.com/bryanwahyu/essay-workshop/internal/domain/essay"
	"github.com/bryanwahyu/essay-workshop/internal/infra/ai/prompt"
)

const generateTemperature = 0.8

type suggestionJSON struct {
	Type        string  `json:"type" jsonschema:"enum=conservative,enum=voice_amplified,enum=divergent"`
	Text        string  `json:"text" jsonschema_description:"Replacement for the excerpt only, not the whole sentence"`
	Rationale   string  `json:"rationale" jsonschema_description:"Why this rewrite is stronger, naming what it adds"`
	ScoreImpact float64 `json:"score_impact" jsonschema_description:"Estimated gain on the affected dimension, 0 to 2"`
}

type generateResponse struct {
	Suggestions []suggestionJSON `json:"suggestions"`
}

// Validate requires exactly one suggestion of each type with non-empty text.
func (r generateResponse) Validate() error {
	if len(r.Suggestions) != len(essay.SuggestionTypes) {
		return fmt.Errorf("want %d suggestions, got %d", len(essay.SuggestionTypes), len(r.Suggestions))
	}
	seen := map[essay.SuggestionType]bool{}
	for _, s := range r.Suggestions {
		t := essay.SuggestionType(s.Type)
		if seen[t] {
			return fmt.Errorf("duplicate suggestion type %q", s.Type)
		}
		seen[t] = true
		if strings.TrimSpace(s.Text) == "" {
			return fmt.Errorf("suggestion %q has no text", s.Type)
		}
	}
	for _, t := range essay.SuggestionTypes {
		if !seen[t] {
			return fmt.Errorf("missing suggestion type %q", t)
		}
	}
	return nil
}

type regenerateResponse struct {
	Text        string  `json:"text"`
	Rationale   string  `json:"rationale"`
	ScoreImpact float64 `json:"score_impact"`
}

func (r regenerateResponse) Validate() error {
	if strings.TrimSpace(r.Text) == "" {
		return fmt.Errorf("empty text")
	}
	return nil
}

// Generator produces suggestion variants.
type Generator struct {
	caller *genai.Caller
}

func NewGenerator(caller *genai.Caller) *Generator {
	return &Generator{caller: caller}
}

// Generate returns exactly three suggestions in SuggestionTypes order from a
// single call.
func (g *Generator) Generate(ctx context.Context, b Bundle) ([]essay.Suggestion, essay.TokenUsage, error) {
	var u prompt.User
	bundlePrompt(&u, b)
	u.Line("Write three replacements for the excerpt:")
	u.List("variants", []string{
		"conservative: the smallest repair that fixes the diagnosed symptom",
		"voice_amplified: a repair that leans harder into the writer's own voice",
		fmt.Sprintf("divergent: apply the %q strategy: %s", b.Divergent.Name, b.Divergent.Directive),
	})

	var r generateResponse
	usage, err := send(ctx, g.caller, call{
		purpose:     PurposeGenerate,
		role:        "You are a writing coach who rewrites one excerpt of a student's college essay.",
		rules:       generationRules,
		schema:      prompt.SchemaFor[generateResponse](),
		user:        u.String(),
		temperature: generateTemperature,
	}, &r)
	if err != nil {
		return nil, usage, err
	}

	byType := make(map[essay.SuggestionType]suggestionJSON, len(r.Suggestions))
	for _, s := range r.Suggestions {
		byType[essay.SuggestionType(s.Type)] = s
	}
	out := make([]essay.Suggestion, 0, len(essay.SuggestionTypes))
	for _, t := range essay.SuggestionTypes {
		s := byType[t]
		sg := essay.Suggestion{
			Text:        strings.TrimSpace(s.Text),
			Rationale:   strings.TrimSpace(s.Rationale),
			Type:        t,
			ScoreImpact: s.ScoreImpact,
		}
		if t == essay.SuggestionDivergent {
			sg.Strategy = b.Divergent.ID
		}
		out = append(out, sg)
	}
	return out, usage, nil
}

// Regenerate rewrites one suggestion of the same type, guided by an explicit
// critique of the previous attempt.
func (g *Generator) Regenerate(ctx context.Context, b Bundle, prev essay.Suggestion, c essay.Critique) (essay.Suggestion, essay.TokenUsage, error) {
	var u prompt.User
	bundlePrompt(&u, b)
	u.Line("Variant to rewrite: %s", prev.Type)
	if prev.Type == essay.SuggestionDivergent {
		u.Line("Strategy: %s: %s", b.Divergent.Name, b.Divergent.Directive)
	}
	u.JSON("critique", c)

	var r regenerateResponse
	usage, err := send(ctx, g.caller, call{
		purpose:     PurposeRegenerate,
		role:        "You are a writing coach revising a rejected rewrite of one excerpt.",
		rules:       append([]string{"Fix every failure listed in the critique."}, generationRules...),
		schema:      prompt.SchemaFor[regenerateResponse](),
		user:        u.String(),
		temperature: generateTemperature,
	}, &r)
	if err != nil {
		return essay.Suggestion{}, usage, err
	}
	return essay.Suggestion{
		Text:        strings.TrimSpace(r.Text),
		Rationale:   strings.TrimSpace(r.Rationale),
		Type:        prev.Type,
		Strategy:    prev.Strategy,
		ScoreImpact: r.ScoreImpact,
	}, usage, nil
}

// NewCritique turns a failed validation into regeneration instructions.
func NewCritique(attempt int, prev essay.Suggestion, v essay.ValidationResult) essay.Critique {
	c := essay.Critique{Attempt: attempt, PreviousText: prev.Text, Failures: v.Failures}
	for _, f := range v.Failures {
		if f.Fix != "" {
			c.Instructions = append(c.Instructions, f.Fix)
		} else {
			c.Instructions = append(c.Instructions, f.Message)
		}
	}
	return c
}

var generationRules = []string{
	"Keep the writer's point of view, tense and facts; never invent achievements.",
	"Supply every missing element listed in the diagnosis.",
	"Avoid stock admissions phrasing and cliches.",
	"Each replacement must read naturally in place of the excerpt inside the sentence.",
}

func bundlePrompt(u *prompt.User, b Bundle) {
	if b.Theme != "" {
		u.Line("Essay theme: %s", b.Theme)
	}
	if b.VoiceDescriptor != "" {
		u.Line("Writer's voice: %s", b.VoiceDescriptor)
	}
	u.Block("excerpt", b.Locator.Quote)
	u.Block("sentence", b.Sentence)
	u.Line("Diagnosis: %s. %s", b.Diagnosis.Symptom, b.Diagnosis.Explanation)
	elems := make([]string, len(b.Diagnosis.MissingElements))
	for i, e := range b.Diagnosis.MissingElements {
		elems[i] = string(e)
	}
	u.List("missing_elements", elems)
	dirs := make([]string, len(b.Directives))
	for i, d := range b.Directives {
		dirs[i] = d.Name + ": " + d.Directive
	}
	u.List("strategies", dirs)
	for _, ex := range b.Examples {
		u.Block("example_before", ex.Before)
		u.Block("example_after", ex.After)
		u.Line("Why it works: %s", ex.Why)
	}
}
