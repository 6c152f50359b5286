package stages

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/bryanwahyu/essay-workshop/internal/application/genai"
	"github.com/bryanwahyu/essay-workshop/internal/domain/essay"
	"github.com/bryanwahyu/essay-workshop/internal/domain/library"
	"github.com/bryanwahyu/essay-workshop/internal/domain/textscan"
	"github.com/bryanwahyu/essay-workshop/internal/infra/ai/prompt"
)

const (
	// the generated voice score may exceed the deterministic baseline by at
	// most this much
	voiceHeadroom    = 2.0
	modelVoiceWeight = 0.6
	maxPatternIssues = 5
)

type styleResponse struct {
	VoiceScore     *float64        `json:"voice_score" jsonschema:"minimum=0,maximum=10" jsonschema_description:"How much the prose sounds like a specific teenager rather than a template"`
	Tone           string          `json:"tone"`
	FlaggedPhrases []string        `json:"flagged_phrases" jsonschema_description:"Verbatim phrases that sound generic or borrowed"`
	Issues         []issueResponse `json:"issues"`
}

// Style is stage 3. The grammar pass is deterministic and cannot fail; the
// generative voice pass can.
type Style struct {
	caller *genai.Caller
	lib    *library.Library
	cfg    Config
}

func NewStyle(caller *genai.Caller, lib *library.Library, cfg Config) *Style {
	return &Style{caller: caller, lib: lib, cfg: cfg.withDefaults()}
}

// Metrics runs the deterministic half on its own.
func (s *Style) Metrics(text string) essay.GrammarMetrics {
	return textscan.Metrics(text, s.lib)
}

func (s *Style) Analyze(ctx context.Context, in essay.AnalysisInput, h essay.HolisticUnderstanding) (essay.StyleAnalysis, essay.TokenUsage, error) {
	m := s.Metrics(in.Text)

	var u prompt.User
	u.Line("Voice descriptor from a first read: %s", h.VoiceDescriptor)
	u.JSON("grammar_metrics", m)
	u.Block("essay", in.Text)

	var r styleResponse
	usage, err := s.cfg.call(ctx, s.caller, request{
		stage: essay.StageStyle,
		role:  "You are a writing coach judging the voice and style of a college essay.",
		rules: append([]string{
			"Essay-speak (stock admissions phrases) and cliches lower the voice score sharply.",
			"Use the grammar metrics as evidence; do not recount them.",
		}, issueRules...),
		schema: prompt.SchemaFor[styleResponse](),
		user:   u.String(),
	}, &r)
	if err != nil {
		return essay.StyleAnalysis{}, usage, err
	}

	var sheet scoreSheet
	model := sheet.take("voice_score", r.VoiceScore)
	out := essay.StyleAnalysis{
		Metrics:        m,
		ModelVoice:     model,
		VoiceScore:     BlendVoice(model, m.VoiceBaseline),
		Tone:           r.Tone,
		FlaggedPhrases: mergePhrases(m.EssaySpeakPhrases, m.ClichePhrases, r.FlaggedPhrases),
		Issues:         append(toIssues(essay.AnalyzerStyle, r.Issues), s.patternIssues(m)...),
		Degraded:       sheet.degraded,
	}
	renumber(out.Issues)
	sheet.report(ctx, essay.AnalyzerStyle)
	return out, usage, nil
}

// Fallback is the deterministic-only style result used in degraded mode.
func (s *Style) Fallback(in essay.AnalysisInput) essay.StyleAnalysis {
	m := s.Metrics(in.Text)
	out := essay.StyleAnalysis{
		Metrics:        m,
		VoiceScore:     m.VoiceBaseline,
		FlaggedPhrases: mergePhrases(m.EssaySpeakPhrases, m.ClichePhrases, nil),
		Issues:         s.patternIssues(m),
		Degraded:       true,
	}
	renumber(out.Issues)
	return out
}

// BlendVoice weights the generated voice score against the deterministic
// baseline and caps it at baseline plus headroom, so prose full of essay-speak
// cannot score well whatever the model says.
func BlendVoice(model, baseline float64) float64 {
	v := modelVoiceWeight*model + (1-modelVoiceWeight)*baseline
	v = math.Min(v, baseline+voiceHeadroom)
	return math.Round(math.Max(0, math.Min(10, v))*10) / 10
}

func (s *Style) patternIssues(m essay.GrammarMetrics) []essay.Issue {
	var out []essay.Issue
	add := func(phrases []string, category string, dim essay.Dimension, problem string) {
		seen := map[string]bool{}
		n := 0
		for _, p := range phrases {
			if seen[p] || n == maxPatternIssues {
				continue
			}
			seen[p] = true
			n++
			out = append(out, essay.Issue{
				Analyzer:       essay.AnalyzerStyle,
				Dimension:      dim,
				Category:       category,
				Quote:          p,
				Problem:        problem,
				Severity:       essay.SeverityWarning,
				ImpactEstimate: "+0.5",
			})
		}
	}
	add(m.EssaySpeakPhrases, "essay_speak", essay.DimVoiceAuthenticity, "Stock admissions phrasing hides the writer's own voice.")
	add(m.ClichePhrases, "cliche", essay.DimSpecificityImagery, "A stock image stands in for a specific observation.")
	return out
}

func renumber(issues []essay.Issue) {
	for i := range issues {
		issues[i].ID = "style-" + strconv.Itoa(i+1)
	}
}

func mergePhrases(lists ...[]string) []string {
	seen := map[string]bool{}
	var out []string
	for _, l := range lists {
		for _, p := range l {
			k := strings.ToLower(strings.TrimSpace(p))
			if k == "" || seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, p)
		}
	}
	return out
}
