package workshop_test

import (
	"context"
	"time"

	. "github.com/onsi/gomega"

	"github.com/bryanwahyu/essay-workshop/internal/application/genai"
	"github.com/bryanwahyu/essay-workshop/internal/domain/ai/aitest"
	"github.com/bryanwahyu/essay-workshop/internal/domain/essay"
	"github.com/bryanwahyu/essay-workshop/internal/domain/locator"
)

const (
	essayText = "My grandmother's kitchen was always loud on Sundays. When she fell ill, the house went quiet. " +
		"It was a plethora of emotions. I sat beside her bed and counted the pills in the orange bottle. " +
		"She told me to stop counting and start talking, so I told her about the chemistry test I had failed."

	original = "It was a plethora of emotions"

	// rewrites that pass validation against original
	goodConservative = "My hands went cold as I counted her pills and lost track at forty-one."
	goodVoice        = "I counted her pills twice, cold hands shaking, and lost count at forty-one."
	goodDivergent    = "The orange bottle rattled in my cold hand: forty-two pills, none of them a cure."

	mediocre   = "I felt really sad about it."
	essaySpeak = "This experience taught me the importance of hard work and dedication."

	rationale = "Replaces the stock phrase with a cold physical detail that shows the fear instead of naming it."
)

func newCaller(f *aitest.Fake) *genai.Caller {
	return genai.NewCaller(f, genai.DefaultPolicy()).
		WithSleep(func(ctx context.Context, _ time.Duration) error { return ctx.Err() })
}

func suggestions(conservative, voice, divergent string) map[string]any {
	return map[string]any{"suggestions": []map[string]any{
		{"type": "divergent", "text": divergent, "rationale": rationale, "score_impact": 1.0},
		{"type": "conservative", "text": conservative, "rationale": rationale, "score_impact": 0.5},
		{"type": "voice_amplified", "text": voice, "rationale": rationale, "score_impact": 0.8},
	}}
}

func diagnosis() map[string]any {
	return map[string]any{
		"symptom":          "cliche_metaphor",
		"missing_elements": []string{"sensory_detail"},
		"explanation":      "A stock phrase labels the feeling.",
	}
}

func ruleIDs(v essay.ValidationResult) []string {
	ids := make([]string, len(v.Failures))
	for i, f := range v.Failures {
		ids[i] = f.RuleID
	}
	return ids
}

func locate(text, quote string) essay.Locator {
	locs, _ := locator.Locate(text, []essay.Issue{{
		ID:       "style-1",
		Quote:    quote,
		Category: "cliche",
		Severity: essay.SeverityWarning,
		Problem:  "stock phrase names the feeling",
	}})
	Expect(locs).To(HaveLen(1))
	return locs[0]
}
