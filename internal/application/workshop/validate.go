package workshop

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strings"

	"github.com/bryanwahyu/essay-workshop/internal/application/genai"
	"github.com/bryanwahyu/essay-workshop/internal/domain/essay"
	"github.com/bryanwahyu/essay-workshop/internal/domain/library"
	"github.com/bryanwahyu/essay-workshop/internal/domain/textscan"
	"github.com/bryanwahyu/essay-workshop/internal/infra/ai/prompt"
)

// Rule ids reported in ValidationFailure.RuleID.
const (
	RuleEmpty          = "empty"
	RuleUnchanged      = "unchanged"
	RuleBannedPhrase   = "banned_phrase"
	RuleEssaySpeak     = "essay_speak"
	RuleCliche         = "cliche"
	RulePassiveVoice   = "passive_voice"
	RuleLengthRatio    = "length_ratio"
	RuleRationaleDepth = "rationale_depth"
	RuleMissingElement = "missing_element"
	RuleNuance         = "nuance"
	RuleTierMinQuality = "tier_min_quality"
	RuleTrivialEdit    = "trivial_edit"
	RuleComplexity     = "sentence_complexity"
	RuleVoiceShift     = "voice_shift"
)

const (
	errorPenalty      = 25.0
	warningPenalty    = 8.0
	minRationaleWords = 8
)

// PassScore is the base validator's pass mark on the 0..100 scale.
const PassScore = 60.0

var (
	timeMarkerRE = regexp.MustCompile(`(?i)\b(?:when|while|as|before|after|during|that (?:morning|night|day|afternoon)|at \d)`)
	digitRE      = regexp.MustCompile(`\d`)
)

// VContext is what a suggestion is validated against.
type VContext struct {
	Original string
	Missing  []essay.Element
}

type nuanceResponse struct {
	Score    float64  `json:"score" jsonschema:"minimum=0,maximum=100" jsonschema_description:"Overall quality of the rewrite"`
	Concerns []string `json:"concerns" jsonschema_description:"Specific problems a careful editor would still flag"`
}

// Validator is the quality gate. Deterministic pre-checks always run; the
// generative nuance check runs only when they found no errors.
type Validator struct {
	lib    *library.Library
	caller *genai.Caller
	nuance bool
}

// NewValidator builds a validator. A nil caller disables the nuance check.
func NewValidator(lib *library.Library, caller *genai.Caller, nuance bool) *Validator {
	return &Validator{lib: lib, caller: caller, nuance: nuance && caller != nil}
}

// Validate never fails. A failed nuance call keeps the deterministic result.
func (v *Validator) Validate(ctx context.Context, text, rationale string, vc VContext) (essay.ValidationResult, essay.TokenUsage) {
	failures := v.PreCheck(text, rationale, vc)
	score := v.deterministicScore(text, failures)
	res := essay.ValidationResult{Failures: failures}

	var usage essay.TokenUsage
	if v.nuance && !hasErrors(failures) {
		var r nuanceResponse
		u, err := v.nuanceCheck(ctx, text, rationale, vc, &r)
		usage = u
		if err != nil {
			slog.WarnContext(ctx, "nuance check skipped", "error", err)
		} else {
			score = (score + math.Max(0, math.Min(100, r.Score))) / 2
			for _, c := range r.Concerns {
				if c = strings.TrimSpace(c); c != "" {
					res.Failures = append(res.Failures, essay.ValidationFailure{RuleID: RuleNuance, Severity: essay.FailureWarning, Message: c})
				}
			}
		}
	}
	res.Score = math.Round(score*10) / 10
	res.Passed = !res.HasErrors() && res.Score >= PassScore
	return res, usage
}

// PreCheck runs the deterministic rules only.
func (v *Validator) PreCheck(text, rationale string, vc VContext) []essay.ValidationFailure {
	var out []essay.ValidationFailure
	fail := func(rule string, sev essay.FailureSeverity, msg, fix string) {
		out = append(out, essay.ValidationFailure{RuleID: rule, Severity: sev, Message: msg, Fix: fix})
	}

	if strings.TrimSpace(text) == "" {
		fail(RuleEmpty, essay.FailureError, "suggestion is empty", "Write a replacement for the excerpt.")
		return out
	}
	if normalizeSpace(text) == normalizeSpace(vc.Original) {
		fail(RuleUnchanged, essay.FailureError, "suggestion repeats the original", "Change the wording, not just the punctuation.")
	}
	for _, p := range newPhrases(v.lib.BannedPhrases, text, vc.Original) {
		fail(RuleBannedPhrase, essay.FailureError, fmt.Sprintf("banned phrase %q", p), "Remove "+p+".")
	}
	for _, p := range newPhrases(v.lib.EssaySpeak, text, vc.Original) {
		fail(RuleEssaySpeak, essay.FailureError, fmt.Sprintf("essay-speak %q", p), "Say what actually happened instead of "+p+".")
	}
	for _, p := range newPhrases(v.lib.Cliches, text, vc.Original) {
		fail(RuleCliche, essay.FailureWarning, fmt.Sprintf("cliche %q", p), "Replace the stock image with a literal detail.")
	}
	if len(v.lib.PassiveMatches(text)) > len(v.lib.PassiveMatches(vc.Original)) {
		fail(RulePassiveVoice, essay.FailureWarning, "adds a passive construction", "Put the person who acts first.")
	}

	if orig := len(textscan.Words(vc.Original)); orig > 0 {
		ratio := float64(len(textscan.Words(text))) / float64(orig)
		switch {
		case ratio > 4 || ratio < 0.25:
			fail(RuleLengthRatio, essay.FailureError, fmt.Sprintf("length is %.1fx the original", ratio), "Keep the replacement close to the excerpt's length.")
		case ratio > 2.5 || ratio < 0.5:
			fail(RuleLengthRatio, essay.FailureWarning, fmt.Sprintf("length is %.1fx the original", ratio), "")
		}
	}
	if len(textscan.Words(rationale)) < minRationaleWords {
		fail(RuleRationaleDepth, essay.FailureWarning, "rationale is too thin", "Explain what the rewrite adds and why it is stronger.")
	}
	for _, e := range vc.Missing {
		if !v.covers(e, text, rationale, vc.Original) {
			fail(RuleMissingElement, essay.FailureWarning, fmt.Sprintf("does not supply %s", e), "Add "+strings.ReplaceAll(string(e), "_", " ")+".")
		}
	}
	return out
}

// covers is a heuristic: the text shows the element, or the rationale claims
// it explicitly.
func (v *Validator) covers(e essay.Element, text, rationale, original string) bool {
	r := strings.ToLower(rationale)
	switch e {
	case essay.ElementSensoryDetail:
		return v.lib.SensoryWords.Contains(text) || strings.Contains(r, "sens")
	case essay.ElementConcreteObject:
		return digitRE.MatchString(text) ||
			v.lib.AbstractNouns.Count(text) < v.lib.AbstractNouns.Count(original) ||
			strings.Contains(r, "object") || strings.Contains(r, "concrete")
	case essay.ElementGroundingMoment:
		return timeMarkerRE.MatchString(text) || strings.Contains(r, "moment") || strings.Contains(r, "scene")
	case essay.ElementEmotionalTruth:
		return strings.Contains(r, "feel") || strings.Contains(r, "emotion") || strings.Contains(r, "truth")
	}
	return true
}

// deterministicScore blends prose quality of the suggestion with the rule
// penalties, on a 0..100 scale.
func (v *Validator) deterministicScore(text string, failures []essay.ValidationFailure) float64 {
	m := textscan.Metrics(text, v.lib)
	quality := (m.VoiceBaseline + m.CraftScore) * 5
	penalty := 0.0
	for _, f := range failures {
		if f.Severity == essay.FailureError {
			penalty += errorPenalty
		} else {
			penalty += warningPenalty
		}
	}
	rules := math.Max(0, 100-penalty)
	return math.Max(0, math.Min(100, 0.5*quality+0.5*rules))
}

func (v *Validator) nuanceCheck(ctx context.Context, text, rationale string, vc VContext, out *nuanceResponse) (essay.TokenUsage, error) {
	var u prompt.User
	u.Block("original", vc.Original)
	u.Block("rewrite", text)
	u.Block("rationale", rationale)
	return send(ctx, v.caller, call{
		purpose: PurposeValidate,
		role:    "You are a strict editor judging whether a rewrite of an essay excerpt is an improvement.",
		rules: []string{
			"Judge specificity, voice consistency and whether the rewrite still fits the sentence.",
			"Concerns must be concrete; return an empty list if there are none.",
		},
		schema:      prompt.SchemaFor[nuanceResponse](),
		user:        u.String(),
		temperature: 0,
		maxTokens:   400,
	}, out)
}

// TierBounds are the validation limits of one difficulty tier.
type TierBounds struct {
	MinQuality float64 `json:"min_quality"`
	MaxQuality float64 `json:"max_quality"`
	// MaxSentenceWords is the sentence-complexity ceiling.
	MaxSentenceWords int `json:"max_sentence_words"`
	// MaxVoiceShift bounds textscan.StyleDistance between original and rewrite.
	MaxVoiceShift float64 `json:"max_voice_shift"`
	// MinEditRatio is the share of words that must change.
	MinEditRatio float64 `json:"min_edit_ratio"`
}

// Tiers indexes bounds by tier. Weaker essays demand bolder edits and tolerate
// more voice shift; stronger ones allow denser sentences but protect the voice.
var Tiers = map[essay.Tier]TierBounds{
	essay.TierFoundation:  {MinQuality: 50, MaxQuality: 82, MaxSentenceWords: 22, MaxVoiceShift: 0.45, MinEditRatio: 0.30},
	essay.TierDeveloping:  {MinQuality: 55, MaxQuality: 86, MaxSentenceWords: 25, MaxVoiceShift: 0.40, MinEditRatio: 0.25},
	essay.TierProficient:  {MinQuality: 60, MaxQuality: 90, MaxSentenceWords: 28, MaxVoiceShift: 0.35, MinEditRatio: 0.20},
	essay.TierAdvanced:    {MinQuality: 65, MaxQuality: 94, MaxSentenceWords: 32, MaxVoiceShift: 0.30, MinEditRatio: 0.15},
	essay.TierExceptional: {MinQuality: 70, MaxQuality: 97, MaxSentenceWords: 36, MaxVoiceShift: 0.25, MinEditRatio: 0.10},
	essay.TierMasterful:   {MinQuality: 75, MaxQuality: 100, MaxSentenceWords: 40, MaxVoiceShift: 0.20, MinEditRatio: 0.10},
}

// AdaptiveValidator scales the base validator to the essay's current level.
type AdaptiveValidator struct {
	base *Validator
}

func NewAdaptiveValidator(base *Validator) *AdaptiveValidator {
	return &AdaptiveValidator{base: base}
}

// BoundsFor returns the tier and bounds for an aggregate score.
func BoundsFor(aggregate float64) (essay.Tier, TierBounds) {
	t := essay.TierFor(aggregate)
	return t, Tiers[t]
}

// Validate runs the base validator, then enforces the tier bounds. The score
// is capped at the tier's maximum quality so refinement cannot push a
// suggestion past the writer's level.
func (a *AdaptiveValidator) Validate(ctx context.Context, text, rationale string, vc VContext, aggregate float64) (essay.ValidationResult, essay.TokenUsage) {
	tier, b := BoundsFor(aggregate)
	res, usage := a.base.Validate(ctx, text, rationale, vc)
	res.Tier = tier

	fail := func(rule string, msg, fix string) {
		res.Failures = append(res.Failures, essay.ValidationFailure{RuleID: rule, Severity: essay.FailureError, Message: msg, Fix: fix})
	}
	if strings.TrimSpace(text) != "" {
		if longest := longestSentence(text); longest > b.MaxSentenceWords {
			fail(RuleComplexity, fmt.Sprintf("sentence of %d words exceeds the %s ceiling of %d", longest, tier, b.MaxSentenceWords), "Split the longest sentence.")
		}
		if shift := textscan.StyleDistance(vc.Original, text); shift > b.MaxVoiceShift {
			fail(RuleVoiceShift, fmt.Sprintf("voice shift %.2f exceeds %.2f", shift, b.MaxVoiceShift), "Match the writer's sentence length and register.")
		}
		if ratio := EditRatio(vc.Original, text); ratio < b.MinEditRatio {
			fail(RuleTrivialEdit, fmt.Sprintf("only %.0f%% of words changed", ratio*100), "Make a substantive change, not a word swap.")
		}
	}
	res.Score = math.Min(res.Score, b.MaxQuality)
	if res.Score < b.MinQuality {
		fail(RuleTierMinQuality, fmt.Sprintf("quality %.1f below the %s minimum %.0f", res.Score, tier, b.MinQuality), "")
	}
	res.Passed = !res.HasErrors()
	return res, usage
}

// EditRatio is the share of the longer text's words not matched in the other,
// comparing lowercase word multisets. 0 means the same words, 1 nothing shared.
func EditRatio(original, rewrite string) float64 {
	a, b := textscan.Words(strings.ToLower(original)), textscan.Words(strings.ToLower(rewrite))
	n := max(len(a), len(b))
	if n == 0 {
		return 0
	}
	counts := map[string]int{}
	for _, w := range a {
		counts[w]++
	}
	shared := 0
	for _, w := range b {
		if counts[w] > 0 {
			counts[w]--
			shared++
		}
	}
	return float64(n-shared) / float64(n)
}

func longestSentence(text string) int {
	longest := 0
	for _, s := range textscan.SplitSentences(text) {
		longest = max(longest, len(textscan.Words(s.Text)))
	}
	return longest
}

// newPhrases returns matches of set in text that do not also occur in original.
func newPhrases(set library.PhraseSet, text, original string) []string {
	before := map[string]int{}
	for _, p := range set.FindAll(original) {
		before[p]++
	}
	var out []string
	for _, p := range set.FindAll(text) {
		if before[p] > 0 {
			before[p]--
			continue
		}
		out = append(out, p)
	}
	return out
}

func normalizeSpace(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func hasErrors(fs []essay.ValidationFailure) bool {
	for _, f := range fs {
		if f.Severity == essay.FailureError {
			return true
		}
	}
	return false
}
