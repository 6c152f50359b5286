// Package insight ties detected issues to the sentences that contain them and
// ranks them. It makes no generative calls.
package insight

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/bryanwahyu/essay-workshop/internal/domain/essay"
	"github.com/bryanwahyu/essay-workshop/internal/domain/textscan"
)

// DefaultLimit is how many sentence insights are returned.
const DefaultLimit = 10

var severityPoints = map[essay.Severity]float64{
	essay.SeverityCritical:     40,
	essay.SeverityWarning:      25,
	essay.SeverityOptimization: 10,
}

var sectionBonus = map[essay.Section]float64{
	essay.SectionOpening:    8,
	essay.SectionConclusion: 8,
	essay.SectionClimax:     4,
	essay.SectionBody:       0,
}

var impactRE = regexp.MustCompile(`[-+]?\d+(?:\.\d+)?`)

// Generator builds sentence insights with fixed section bounds.
type Generator struct {
	Bounds textscan.SectionBounds
	Limit  int
}

// New returns a Generator using bounds and the default limit.
func New(bounds textscan.SectionBounds) *Generator {
	return &Generator{Bounds: bounds, Limit: DefaultLimit}
}

// Generate matches each issue to the first sentence containing its quote and
// returns the highest-priority insights. Issues without a matching sentence
// are left out here but stay in the essay-wide issue list.
func (g *Generator) Generate(text string, issues []essay.Issue, dims []essay.DimensionScore) []essay.SentenceInsight {
	sentences := textscan.SplitSentences(text)
	if len(sentences) == 0 || len(issues) == 0 {
		return nil
	}
	lowered := make([]string, len(sentences))
	for i, s := range sentences {
		lowered[i] = strings.ToLower(s.Text)
	}
	byDim := make(map[essay.Dimension]essay.DimensionScore, len(dims))
	for _, d := range dims {
		byDim[d.Dimension] = d
	}

	var out []essay.SentenceInsight
	for _, is := range issues {
		idx := firstContaining(lowered, is.Quote)
		if idx < 0 {
			continue
		}
		section := g.Bounds.SectionFor(idx, len(sentences))
		out = append(out, essay.SentenceInsight{
			SentenceIndex: idx,
			Sentence:      sentences[idx].Text,
			Section:       section,
			Issue:         is,
			Priority:      Priority(is, byDim[is.Dimension], section),
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	limit := g.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Priority = severity points + (10 - dimension score) x weight x 10 + section
// bonus + numeric impact x 5.
func Priority(is essay.Issue, dim essay.DimensionScore, section essay.Section) float64 {
	p := severityPoints[essay.NormalizeSeverity(string(is.Severity))]
	if dim.Dimension != "" {
		p += (10 - dim.Score) * dim.Weight * 10
	}
	p += sectionBonus[section]
	p += ParseImpact(is.ImpactEstimate) * 5
	return math.Round(p*100) / 100
}

// ParseImpact reads the first number in a free-form impact estimate such as
// "+0.8 points" and clamps it to [0,5]. Unparseable estimates count as zero.
func ParseImpact(s string) float64 {
	m := impactRE.FindString(s)
	if m == "" {
		return 0
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0
	}
	return math.Max(0, math.Min(5, v))
}

func firstContaining(lowered []string, quote string) int {
	q := strings.ToLower(strings.TrimSpace(quote))
	if q == "" {
		return -1
	}
	candidates := []string{q}
	if trimmed := strings.TrimRight(q, ".…!? "); trimmed != q && trimmed != "" {
		candidates = append(candidates, trimmed)
	}
	for _, c := range candidates {
		for i, s := range lowered {
			if strings.Contains(s, c) {
				return i
			}
		}
	}
	return -1
}
