// Package stagetest scripts a fake generative client with well-formed
// responses for every analysis stage.
package stagetest

import (
	"github.com/bryanwahyu/essay-workshop/internal/domain/ai/aitest"
	"github.com/bryanwahyu/essay-workshop/internal/domain/essay"
)

// Purposes used by the analysis stages.
const (
	Holistic   = essay.StageHolistic
	Opening    = essay.StageAnalyzers + "_opening"
	Body       = essay.StageAnalyzers + "_body"
	Climax     = essay.StageAnalyzers + "_climax"
	Conclusion = essay.StageAnalyzers + "_conclusion"
	Character  = essay.StageAnalyzers + "_character"
	Stakes     = essay.StageAnalyzers + "_stakes"
	Style      = essay.StageStyle
	Synthesis  = essay.StageSynthesis
)

// Stage2 lists the six fan-out purposes.
var Stage2 = []string{Opening, Body, Climax, Conclusion, Character, Stakes}

func issue(quote, severity string) map[string]any {
	return map[string]any{
		"quote":           quote,
		"problem":         "too general",
		"category":        "vague_language",
		"severity":        severity,
		"impact_estimate": "+0.5",
	}
}

// Script registers a well-formed response for every analysis stage, with
// every sub-score set to score. quote is used as the evidence of one issue
// per stage 2 analyzer.
func Script(f *aitest.Fake, score float64, quote string) *aitest.Fake {
	issues := []map[string]any{issue(quote, "warning")}
	f.OnJSON(Holistic, map[string]any{
		"central_theme":    "Learning to ask for help",
		"narrative_thread": "From hiding a failure to sharing it",
		"voice_descriptor": "earnest, reflective",
		"voice_tags":       []string{"earnest", "reflective"},
		"structure":        map[string]any{"form": "narrative", "tense": "past", "point_of_view": "first"},
		"key_moments":      []map[string]any{{"quote": quote, "significance": "turning point"}},
		"red_flags":        []string{},
		"coherence_score":  score,
	})
	f.OnJSON(Opening, map[string]any{"issues": issues, "hook_strength": score, "immediacy": score, "originality": score, "hook_type": "statement"})
	f.OnJSON(Body, map[string]any{"issues": issues, "pacing": score, "structure": score, "specificity": score, "scene_balance": score})
	f.OnJSON(Climax, map[string]any{"issues": issues, "turning_point": score, "vividness": score, "internal_shift": score, "arc": score})
	f.OnJSON(Conclusion, map[string]any{"issues": issues, "resonance": score, "reflection": score, "theme_tie_back": score, "callback": score})
	f.OnJSON(Character, map[string]any{"issues": issues, "interiority": score, "growth": score, "vulnerability": score, "agency": score})
	f.OnJSON(Stakes, map[string]any{"issues": issues, "tension": score, "stakes_clarity": score, "consequence": score})
	f.OnJSON(Style, map[string]any{"voice_score": score, "tone": "sincere", "flagged_phrases": []string{}, "issues": []any{}})
	f.OnJSON(Synthesis, map[string]any{
		"strengths":    []map[string]any{{"title": "Honest voice", "evidence": quote}},
		"gaps":         []map[string]any{{"title": "Thin stakes", "dimension": "stakes_tension", "detail": "nothing at risk", "fix_complexity": "moderate"}},
		"percentile":   55,
		"memorability": score,
		"narrative":    "A sincere essay that needs sharper stakes.",
	})
	return f
}
