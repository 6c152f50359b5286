// Package stages holds the generative analyzers: the holistic read (stage 1),
// the six stage 2 analyzer families, the generative style pass (stage 3) and
// synthesis (stage 4b). Each sends one structured request through the shared
// call policy and parses one fixed schema.
package stages

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/bryanwahyu/essay-workshop/internal/application/genai"
	"github.com/bryanwahyu/essay-workshop/internal/domain/ai"
	"github.com/bryanwahyu/essay-workshop/internal/domain/essay"
	"github.com/bryanwahyu/essay-workshop/internal/domain/scoring"
	"github.com/bryanwahyu/essay-workshop/internal/domain/textscan"
	"github.com/bryanwahyu/essay-workshop/internal/infra/ai/prompt"
)

// NeutralScore replaces a missing sub-score. Results carrying it are always
// flagged Degraded.
const NeutralScore = 5.0

const (
	analyzerTemperature = 0.2
	analyzerMaxTokens   = 1500
	maxIssuesPerStage   = 8
)

// Config is shared by every analyzer.
type Config struct {
	Bounds      textscan.SectionBounds
	Temperature float64
	MaxTokens   int
}

func (c Config) withDefaults() Config {
	if c.Bounds == (textscan.SectionBounds{}) {
		c.Bounds = textscan.DefaultBounds
	}
	if c.Temperature == 0 {
		c.Temperature = analyzerTemperature
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = analyzerMaxTokens
	}
	return c
}

type issueResponse struct {
	Quote     string `json:"quote" jsonschema_description:"Verbatim excerpt copied exactly from the essay"`
	Problem   string `json:"problem" jsonschema_description:"What is wrong, in one sentence"`
	Category  string `json:"category" jsonschema_description:"Short snake_case label such as vague_language or weak_hook"`
	Severity  string `json:"severity" jsonschema:"enum=critical,enum=warning,enum=optimization"`
	Dimension string `json:"dimension,omitempty" jsonschema_description:"Dimension the issue hurts, if not the analyzer's own"`
	Impact    string `json:"impact_estimate,omitempty" jsonschema_description:"Estimated score gain if fixed, e.g. +0.5"`
}

// FindingsJSON is the part of every stage 2 response shared by all analyzers.
type FindingsJSON struct {
	Issues    []issueResponse `json:"issues"`
	Strengths []string        `json:"strengths"`
	Summary   string          `json:"summary"`
}

// scoreSheet clamps sub-scores and remembers whether any had to be repaired.
type scoreSheet struct {
	degraded bool
	problems []string
}

func (s *scoreSheet) take(name string, v *float64) float64 {
	if v == nil || math.IsNaN(*v) {
		s.degraded = true
		s.problems = append(s.problems, name+" missing")
		return NeutralScore
	}
	if *v < 0 || *v > 10 {
		s.degraded = true
		s.problems = append(s.problems, fmt.Sprintf("%s out of range (%.2f)", name, *v))
		return math.Max(0, math.Min(10, *v))
	}
	return *v
}

func (s *scoreSheet) report(ctx context.Context, a essay.Analyzer) {
	if !s.degraded {
		return
	}
	slog.WarnContext(ctx, "analyzer response repaired",
		"analyzer", a,
		"problems", strings.Join(s.problems, "; "))
}

func toFindings(a essay.Analyzer, r FindingsJSON, degraded bool) essay.Findings {
	return essay.Findings{
		Issues:    toIssues(a, r.Issues),
		Strengths: r.Strengths,
		Summary:   r.Summary,
		Degraded:  degraded,
	}
}

func toIssues(a essay.Analyzer, rs []issueResponse) []essay.Issue {
	out := make([]essay.Issue, 0, len(rs))
	for _, r := range rs {
		if strings.TrimSpace(r.Quote) == "" && strings.TrimSpace(r.Problem) == "" {
			continue
		}
		dim := essay.Dimension(r.Dimension)
		if !dim.Valid() {
			dim = essay.DimensionForAnalyzer(a)
		}
		category := r.Category
		if category == "" {
			category = string(a)
		}
		out = append(out, essay.Issue{
			ID:             fmt.Sprintf("%s-%d", a, len(out)+1),
			Analyzer:       a,
			Dimension:      dim,
			Category:       category,
			Quote:          strings.TrimSpace(r.Quote),
			Problem:        r.Problem,
			Severity:       essay.NormalizeSeverity(strings.ToLower(r.Severity)),
			ImpactEstimate: r.Impact,
		})
		if len(out) == maxIssuesPerStage {
			break
		}
	}
	return out
}

// request is the common shape of an analyzer call.
type request struct {
	analyzer essay.Analyzer
	stage    string
	role     string
	rules    []string
	schema   string
	user     string
}

func (c Config) call(ctx context.Context, caller *genai.Caller, r request, out any) (essay.TokenUsage, error) {
	return caller.JSON(ctx, genai.Target{Stage: r.stage, Analyzer: string(r.analyzer)}, ai.Request{
		Purpose:     purpose(r.stage, r.analyzer),
		System:      prompt.System(r.role, r.rules, r.schema),
		User:        r.user,
		Temperature: c.Temperature,
		MaxTokens:   c.MaxTokens,
	}, out)
}

func purpose(stage string, a essay.Analyzer) string {
	if a == "" {
		return stage
	}
	return stage + "_" + string(a)
}

// essayContext renders the shared header every analyzer sees.
func essayContext(u *prompt.User, in essay.AnalysisInput, h essay.HolisticUnderstanding, p scoring.Profile) {
	u.Line("Essay type: %s (profile %s)", in.EssayType, p.Name)
	if in.PromptText != "" {
		u.Block("essay_prompt", in.PromptText)
	}
	if h.CentralTheme != "" {
		u.Line("Central theme: %s", h.CentralTheme)
		u.Line("Voice: %s", h.VoiceDescriptor)
	}
}

var issueRules = []string{
	"Every quote must be copied verbatim from the essay text, at most one sentence long.",
	"Scores are numbers from 0 to 10. Use the full range; 5 is an ordinary essay.",
	"Severity is critical for problems that sink the essay, warning for clear weaknesses, optimization for polish.",
}
