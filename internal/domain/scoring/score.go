// Package scoring turns stage outputs into the 12 weighted dimension scores.
// Everything here is deterministic: the same inputs always give the same
// scores, contributions and aggregate.
package scoring

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/bryanwahyu/essay-workshop/internal/domain/essay"
)

const maxEvidenceQuotes = 3

type input struct {
	name  string
	value float64
}

type rule func(h essay.HolisticUnderstanding, s2 essay.Stage2Results, st essay.StyleAnalysis) (float64, []input)

// rules maps each dimension to its fixed aggregation over upstream fields.
var rules = map[essay.Dimension]rule{
	essay.DimOpeningHook: func(_ essay.HolisticUnderstanding, s2 essay.Stage2Results, _ essay.StyleAnalysis) (float64, []input) {
		in := []input{
			{"opening.hook_strength", s2.Opening.HookStrength},
			{"opening.immediacy", s2.Opening.Immediacy},
			{"opening.originality", s2.Opening.Originality},
		}
		return mean(in), in
	},
	essay.DimNarrativeArc: func(h essay.HolisticUnderstanding, s2 essay.Stage2Results, _ essay.StyleAnalysis) (float64, []input) {
		in := []input{
			{"body.structure", s2.Body.Structure},
			{"body.pacing", s2.Body.Pacing},
			{"climax.arc", s2.Climax.Arc},
			{"holistic.coherence", h.CoherenceScore},
		}
		return mean(in), in
	},
	essay.DimCharacterInteriority: func(_ essay.HolisticUnderstanding, s2 essay.Stage2Results, _ essay.StyleAnalysis) (float64, []input) {
		in := []input{
			{"character.interiority", s2.Character.Interiority},
			{"character.vulnerability", s2.Character.Vulnerability},
			{"climax.internal_shift", s2.Climax.InternalShift},
		}
		return mean(in), in
	},
	essay.DimStakesTension: func(_ essay.HolisticUnderstanding, s2 essay.Stage2Results, _ essay.StyleAnalysis) (float64, []input) {
		in := []input{
			{"stakes.tension", s2.Stakes.Tension},
			{"stakes.clarity", s2.Stakes.StakesClarity},
			{"stakes.consequence", s2.Stakes.Consequence},
		}
		return mean(in), in
	},
	essay.DimClimaxTurningPoint: func(_ essay.HolisticUnderstanding, s2 essay.Stage2Results, _ essay.StyleAnalysis) (float64, []input) {
		in := []input{
			{"climax.turning_point", s2.Climax.TurningPoint},
			{"climax.vividness", s2.Climax.Vividness},
		}
		return mean(in), in
	},
	essay.DimConclusionResonance: func(_ essay.HolisticUnderstanding, s2 essay.Stage2Results, _ essay.StyleAnalysis) (float64, []input) {
		in := []input{
			{"conclusion.resonance", s2.Conclusion.Resonance},
			{"conclusion.theme_tie_back", s2.Conclusion.ThemeTieBack},
			{"conclusion.callback", s2.Conclusion.Callback},
		}
		return mean(in), in
	},
	essay.DimVoiceAuthenticity: func(_ essay.HolisticUnderstanding, _ essay.Stage2Results, st essay.StyleAnalysis) (float64, []input) {
		in := []input{{"style.voice_score", st.VoiceScore}}
		return st.VoiceScore, in
	},
	essay.DimSpecificityImagery: func(_ essay.HolisticUnderstanding, s2 essay.Stage2Results, st essay.StyleAnalysis) (float64, []input) {
		density := clamp(st.Metrics.SpecificityDensity * 1.25)
		in := []input{
			{"body.specificity", s2.Body.Specificity},
			{"climax.vividness", s2.Climax.Vividness},
			{"metrics.specificity_density", density},
		}
		return 0.4*in[0].value + 0.3*in[1].value + 0.3*in[2].value, in
	},
	essay.DimProseCraft: func(_ essay.HolisticUnderstanding, s2 essay.Stage2Results, st essay.StyleAnalysis) (float64, []input) {
		in := []input{
			{"metrics.craft_score", st.Metrics.CraftScore},
			{"body.scene_balance", s2.Body.SceneBalance},
		}
		return 0.7*in[0].value + 0.3*in[1].value, in
	},
	essay.DimThematicCoherence: func(h essay.HolisticUnderstanding, s2 essay.Stage2Results, _ essay.StyleAnalysis) (float64, []input) {
		in := []input{
			{"holistic.coherence", h.CoherenceScore},
			{"conclusion.theme_tie_back", s2.Conclusion.ThemeTieBack},
		}
		penalty := math.Min(2, 0.5*float64(len(h.RedFlags)))
		return mean(in) - penalty, in
	},
	essay.DimReflectionInsight: func(_ essay.HolisticUnderstanding, s2 essay.Stage2Results, _ essay.StyleAnalysis) (float64, []input) {
		in := []input{
			{"conclusion.reflection", s2.Conclusion.Reflection},
			{"character.growth", s2.Character.Growth},
		}
		return mean(in), in
	},
	essay.DimDistinctiveness: func(_ essay.HolisticUnderstanding, s2 essay.Stage2Results, st essay.StyleAnalysis) (float64, []input) {
		in := []input{
			{"opening.originality", s2.Opening.Originality},
			{"style.voice_score", st.VoiceScore},
			{"character.agency", s2.Character.Agency},
		}
		penalty := math.Min(2, 0.5*float64(len(st.Metrics.ClichePhrases)))
		return mean(in) - penalty, in
	},
}

// Score computes the 12 dimension scores in canonical order. Score is rounded
// to one decimal; Weight and Contribution are kept unrounded so the weights
// sum to 1 and Aggregate rounds only once. Round them when displaying.
func Score(h essay.HolisticUnderstanding, s2 essay.Stage2Results, st essay.StyleAnalysis, p Profile) []essay.DimensionScore {
	weights := p.Weights()
	issues := issuesByDimension(s2, st)

	out := make([]essay.DimensionScore, 0, essay.NumDimensions)
	for _, d := range essay.Dimensions {
		raw, in := rules[d](h, s2, st)
		score := round(clamp(raw), 1)
		w := weights[d]
		out = append(out, essay.DimensionScore{
			Dimension:    d,
			Score:        score,
			Weight:       w,
			Contribution: score * w,
			Evidence: essay.Evidence{
				Quotes:        quotesFor(issues[d]),
				Justification: justify(in),
			},
		})
	}
	return out
}

// Aggregate is the weighted sum of contributions scaled to [0,100] and
// rounded to one decimal.
func Aggregate(ds []essay.DimensionScore) float64 {
	var sum float64
	for _, d := range ds {
		sum += d.Contribution
	}
	return round(math.Max(0, math.Min(100, sum*10)), 1)
}

// ByDimension indexes scores for lookups.
func ByDimension(ds []essay.DimensionScore) map[essay.Dimension]essay.DimensionScore {
	out := make(map[essay.Dimension]essay.DimensionScore, len(ds))
	for _, d := range ds {
		out[d.Dimension] = d
	}
	return out
}

// Weakest returns the n lowest-scoring dimensions, lowest first. Ties keep
// canonical order.
func Weakest(ds []essay.DimensionScore, n int) []essay.DimensionScore {
	sorted := append([]essay.DimensionScore(nil), ds...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score < sorted[j].Score })
	if n < len(sorted) {
		sorted = sorted[:n]
	}
	return sorted
}

// Strongest returns the n highest-scoring dimensions, highest first.
func Strongest(ds []essay.DimensionScore, n int) []essay.DimensionScore {
	sorted := append([]essay.DimensionScore(nil), ds...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })
	if n < len(sorted) {
		sorted = sorted[:n]
	}
	return sorted
}

// PercentileBaseline maps an aggregate onto an estimated applicant percentile
// with a logistic curve centred on 60.
func PercentileBaseline(aggregate float64) int {
	p := 100 / (1 + math.Exp(-(aggregate-60)/10))
	return clampPercentile(int(math.Round(p)))
}

// ClampPercentile keeps a generative percentile estimate within ten points of
// the deterministic baseline.
func ClampPercentile(estimate int, aggregate float64) int {
	base := PercentileBaseline(aggregate)
	if estimate < base-10 {
		estimate = base - 10
	}
	if estimate > base+10 {
		estimate = base + 10
	}
	return clampPercentile(estimate)
}

// FixComplexityFor estimates how much work lifting a dimension takes.
func FixComplexityFor(d essay.DimensionScore) essay.FixComplexity {
	switch {
	case d.Score >= 6.5:
		return essay.FixQuick
	case d.Score >= 4:
		return essay.FixModerate
	default:
		return essay.FixDeep
	}
}

func issuesByDimension(s2 essay.Stage2Results, st essay.StyleAnalysis) map[essay.Dimension][]essay.Issue {
	out := make(map[essay.Dimension][]essay.Issue)
	for _, f := range s2.AllFindings() {
		for _, is := range f.Issues {
			out[is.Dimension] = append(out[is.Dimension], is)
		}
	}
	for _, is := range st.Issues {
		out[is.Dimension] = append(out[is.Dimension], is)
	}
	return out
}

func quotesFor(issues []essay.Issue) []string {
	var quotes []string
	for _, is := range issues {
		if is.Quote == "" {
			continue
		}
		quotes = append(quotes, is.Quote)
		if len(quotes) == maxEvidenceQuotes {
			break
		}
	}
	return quotes
}

func justify(in []input) string {
	parts := make([]string, len(in))
	for i, x := range in {
		parts[i] = fmt.Sprintf("%s=%.1f", x.name, x.value)
	}
	return strings.Join(parts, ", ")
}

func mean(in []input) float64 {
	if len(in) == 0 {
		return 0
	}
	var sum float64
	for _, x := range in {
		sum += x.value
	}
	return sum / float64(len(in))
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(10, v))
}

func clampPercentile(p int) int {
	if p < 1 {
		return 1
	}
	if p > 99 {
		return 99
	}
	return p
}

func round(v float64, places int) float64 {
	f := math.Pow(10, float64(places))
	return math.Round(v*f) / f
}
