package stages

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/bryanwahyu/essay-workshop/internal/application/genai"
	"github.com/bryanwahyu/essay-workshop/internal/domain/essay"
	"github.com/bryanwahyu/essay-workshop/internal/domain/scoring"
	"github.com/bryanwahyu/essay-workshop/internal/infra/ai/prompt"
)

const (
	synthesisTemperature = 0.4
	maxGaps              = 4
)

type synthesisResponse struct {
	Strengths []struct {
		Title    string `json:"title"`
		Evidence string `json:"evidence" jsonschema_description:"Verbatim quote that shows the strength"`
	} `json:"strengths"`
	Gaps []struct {
		Title         string `json:"title"`
		Dimension     string `json:"dimension" jsonschema_description:"One of the 12 dimension ids"`
		Detail        string `json:"detail"`
		FixComplexity string `json:"fix_complexity" jsonschema:"enum=quick,enum=moderate,enum=deep"`
	} `json:"gaps"`
	Percentile   *int     `json:"percentile" jsonschema:"minimum=1,maximum=99" jsonschema_description:"Estimated percentile among applicants"`
	Memorability *float64 `json:"memorability" jsonschema:"minimum=0,maximum=10" jsonschema_description:"How likely an admissions officer remembers this essay tomorrow"`
	Narrative    string   `json:"narrative" jsonschema_description:"Three or four sentences from an officer's perspective"`
}

// Synthesizer is stage 4b. It narrates the deterministic scores; the aggregate
// and impression never come from the model.
type Synthesizer struct {
	caller *genai.Caller
	cfg    Config
}

func NewSynthesizer(caller *genai.Caller, cfg Config) *Synthesizer {
	if cfg.Temperature == 0 {
		cfg.Temperature = synthesisTemperature
	}
	return &Synthesizer{caller: caller, cfg: cfg.withDefaults()}
}

func (s *Synthesizer) Synthesize(ctx context.Context, in essay.AnalysisInput, h essay.HolisticUnderstanding, dims []essay.DimensionScore, st essay.StyleAnalysis) (essay.SynthesizedInsights, essay.TokenUsage, error) {
	if err := essay.CheckDimensions(dims); err != nil {
		return essay.SynthesizedInsights{}, essay.TokenUsage{}, err
	}
	aggregate := scoring.Aggregate(dims)

	var u prompt.User
	u.Line("Essay type: %s", in.EssayType)
	u.Line("Central theme: %s", h.CentralTheme)
	u.Line("Aggregate score (fixed, do not change): %.1f / 100", aggregate)
	u.Line("Baseline percentile for this score: %d", scoring.PercentileBaseline(aggregate))
	u.JSON("dimension_scores", dims)
	u.List("flagged_phrases", st.FlaggedPhrases)
	u.Block("essay", in.Text)

	var r synthesisResponse
	usage, err := s.cfg.call(ctx, s.caller, request{
		stage: essay.StageSynthesis,
		role:  "You are a senior admissions officer summarizing a scored essay for a student.",
		rules: []string{
			"Ground every strength and gap in the dimension scores provided.",
			"Gaps name the dimension they belong to using its id.",
			"Order gaps from most to least important.",
		},
		schema: prompt.SchemaFor[synthesisResponse](),
		user:   u.String(),
	}, &r)
	if err != nil {
		return essay.SynthesizedInsights{}, usage, err
	}

	out := Deterministic(dims)
	var sheet scoreSheet
	if r.Percentile != nil {
		out.Percentile = scoring.ClampPercentile(*r.Percentile, aggregate)
	} else {
		sheet.degraded = true
		sheet.problems = append(sheet.problems, "percentile missing")
	}
	out.Memorability = sheet.take("memorability", r.Memorability)
	out.Narrative = strings.TrimSpace(r.Narrative)

	var strengths []essay.Strength
	for _, sr := range r.Strengths {
		if sr.Title != "" {
			strengths = append(strengths, essay.Strength{Title: sr.Title, Evidence: sr.Evidence})
		}
	}
	if len(strengths) > 0 {
		out.Strengths = strengths
	}
	if gaps := s.gaps(r, dims); len(gaps) > 0 {
		out.Gaps = gaps
	}
	out.Degraded = sheet.degraded
	sheet.report(ctx, "synthesis")
	return out, usage, nil
}

func (s *Synthesizer) gaps(r synthesisResponse, dims []essay.DimensionScore) []essay.Gap {
	byDim := scoring.ByDimension(dims)
	var out []essay.Gap
	for _, g := range r.Gaps {
		d := essay.Dimension(g.Dimension)
		if !d.Valid() || g.Title == "" {
			continue
		}
		fc := essay.FixComplexity(strings.ToLower(g.FixComplexity))
		switch fc {
		case essay.FixQuick, essay.FixModerate, essay.FixDeep:
		default:
			fc = scoring.FixComplexityFor(byDim[d])
		}
		out = append(out, essay.Gap{Title: g.Title, Dimension: d, Detail: g.Detail, FixComplexity: fc})
		if len(out) == maxGaps {
			break
		}
	}
	return out
}

// Deterministic builds the insights that need no generative call: aggregate,
// impression, baseline percentile, and strengths and gaps from the highest and
// lowest dimensions. Synthesis starts from it; degraded runs stop at it.
func Deterministic(dims []essay.DimensionScore) essay.SynthesizedInsights {
	aggregate := scoring.Aggregate(dims)
	out := essay.SynthesizedInsights{
		AggregateScore: aggregate,
		Impression:     essay.ImpressionFor(aggregate),
		Percentile:     scoring.PercentileBaseline(aggregate),
		Memorability:   math.Round(aggregate) / 10,
	}
	for _, d := range scoring.Strongest(dims, 3) {
		if d.Score < 6 {
			break
		}
		out.Strengths = append(out.Strengths, essay.Strength{Title: label(d.Dimension), Evidence: first(d.Evidence.Quotes)})
	}
	for _, d := range scoring.Weakest(dims, 3) {
		if d.Score >= 7 {
			break
		}
		out.Gaps = append(out.Gaps, essay.Gap{
			Title:         label(d.Dimension),
			Dimension:     d.Dimension,
			Detail:        fmt.Sprintf("scored %.1f/10 (%s)", d.Score, d.Evidence.Justification),
			FixComplexity: scoring.FixComplexityFor(d),
		})
	}
	return out
}

func label(d essay.Dimension) string {
	s := strings.ReplaceAll(string(d), "_", " ")
	return strings.ToUpper(s[:1]) + s[1:]
}

func first(ss []string) string {
	if len(ss) == 0 {
		return ""
	}
	return ss[0]
}
