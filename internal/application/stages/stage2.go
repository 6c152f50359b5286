package stages

import (
	"context"

	"github.com/bryanwahyu/essay-workshop/internal/application/genai"
	"github.com/bryanwahyu/essay-workshop/internal/domain/essay"
	"github.com/bryanwahyu/essay-workshop/internal/domain/scoring"
	"github.com/bryanwahyu/essay-workshop/internal/domain/textscan"
	"github.com/bryanwahyu/essay-workshop/internal/infra/ai/prompt"
)

type openingResponse struct {
	FindingsJSON
	HookStrength *float64 `json:"hook_strength" jsonschema:"minimum=0,maximum=10"`
	Immediacy    *float64 `json:"immediacy" jsonschema:"minimum=0,maximum=10"`
	Originality  *float64 `json:"originality" jsonschema:"minimum=0,maximum=10"`
	HookType     string   `json:"hook_type" jsonschema_description:"scene, dialogue, reflection, statement, question or other"`
}

type bodyResponse struct {
	FindingsJSON
	Pacing       *float64 `json:"pacing" jsonschema:"minimum=0,maximum=10"`
	Structure    *float64 `json:"structure" jsonschema:"minimum=0,maximum=10"`
	Specificity  *float64 `json:"specificity" jsonschema:"minimum=0,maximum=10"`
	SceneBalance *float64 `json:"scene_balance" jsonschema:"minimum=0,maximum=10" jsonschema_description:"Balance of scene versus summary"`
}

type climaxResponse struct {
	FindingsJSON
	TurningPoint  *float64 `json:"turning_point" jsonschema:"minimum=0,maximum=10"`
	Vividness     *float64 `json:"vividness" jsonschema:"minimum=0,maximum=10"`
	InternalShift *float64 `json:"internal_shift" jsonschema:"minimum=0,maximum=10"`
	Arc           *float64 `json:"arc" jsonschema:"minimum=0,maximum=10"`
}

type conclusionResponse struct {
	FindingsJSON
	Resonance    *float64 `json:"resonance" jsonschema:"minimum=0,maximum=10"`
	Reflection   *float64 `json:"reflection" jsonschema:"minimum=0,maximum=10"`
	ThemeTieBack *float64 `json:"theme_tie_back" jsonschema:"minimum=0,maximum=10"`
	Callback     *float64 `json:"callback" jsonschema:"minimum=0,maximum=10" jsonschema_description:"How well the ending echoes an earlier image"`
}

type characterResponse struct {
	FindingsJSON
	Interiority   *float64 `json:"interiority" jsonschema:"minimum=0,maximum=10"`
	Growth        *float64 `json:"growth" jsonschema:"minimum=0,maximum=10"`
	Vulnerability *float64 `json:"vulnerability" jsonschema:"minimum=0,maximum=10"`
	Agency        *float64 `json:"agency" jsonschema:"minimum=0,maximum=10"`
}

type stakesResponse struct {
	FindingsJSON
	Tension       *float64 `json:"tension" jsonschema:"minimum=0,maximum=10"`
	StakesClarity *float64 `json:"stakes_clarity" jsonschema:"minimum=0,maximum=10"`
	Consequence   *float64 `json:"consequence" jsonschema:"minimum=0,maximum=10"`
}

// Analyzers runs the six stage 2 analyzer families. Each method is one
// independent generative call and safe to run concurrently with the others.
type Analyzers struct {
	caller *genai.Caller
	cfg    Config
}

func NewAnalyzers(caller *genai.Caller, cfg Config) *Analyzers {
	return &Analyzers{caller: caller, cfg: cfg.withDefaults()}
}

func (a *Analyzers) userPrompt(in essay.AnalysisInput, h essay.HolisticUnderstanding, p scoring.Profile, section essay.Section, whole bool) string {
	var u prompt.User
	essayContext(&u, in, h, p)
	if whole {
		u.Block("essay", in.Text)
	} else {
		sentences := textscan.SplitSentences(in.Text)
		u.Line("The excerpt below is the %s section of the essay.", section)
		u.Block(string(section), a.cfg.Bounds.SectionText(in.Text, sentences, section))
	}
	return u.String()
}

func (a *Analyzers) Opening(ctx context.Context, in essay.AnalysisInput, h essay.HolisticUnderstanding, p scoring.Profile) (essay.OpeningAnalysis, essay.TokenUsage, error) {
	var r openingResponse
	usage, err := a.cfg.call(ctx, a.caller, request{
		analyzer: essay.AnalyzerOpening,
		stage:    essay.StageAnalyzers,
		role:     "You are an admissions reader judging only how an essay opens.",
		rules:    append([]string{"Judge whether the first lines earn the reader's attention."}, issueRules...),
		schema:   prompt.SchemaFor[openingResponse](),
		user:     a.userPrompt(in, h, p, essay.SectionOpening, false),
	}, &r)
	if err != nil {
		return essay.OpeningAnalysis{}, usage, err
	}
	var s scoreSheet
	out := essay.OpeningAnalysis{
		HookStrength: s.take("hook_strength", r.HookStrength),
		Immediacy:    s.take("immediacy", r.Immediacy),
		Originality:  s.take("originality", r.Originality),
		HookType:     r.HookType,
	}
	out.Findings = toFindings(essay.AnalyzerOpening, r.FindingsJSON, s.degraded)
	s.report(ctx, essay.AnalyzerOpening)
	return out, usage, nil
}

func (a *Analyzers) Body(ctx context.Context, in essay.AnalysisInput, h essay.HolisticUnderstanding, p scoring.Profile) (essay.BodyAnalysis, essay.TokenUsage, error) {
	var r bodyResponse
	usage, err := a.cfg.call(ctx, a.caller, request{
		analyzer: essay.AnalyzerBody,
		stage:    essay.StageAnalyzers,
		role:     "You are an admissions reader judging the body of an essay: pacing, structure and concrete detail.",
		rules:    append([]string{"Prefer scenes with sensory detail over summary."}, issueRules...),
		schema:   prompt.SchemaFor[bodyResponse](),
		user:     a.userPrompt(in, h, p, essay.SectionBody, false),
	}, &r)
	if err != nil {
		return essay.BodyAnalysis{}, usage, err
	}
	var s scoreSheet
	out := essay.BodyAnalysis{
		Pacing:       s.take("pacing", r.Pacing),
		Structure:    s.take("structure", r.Structure),
		Specificity:  s.take("specificity", r.Specificity),
		SceneBalance: s.take("scene_balance", r.SceneBalance),
	}
	out.Findings = toFindings(essay.AnalyzerBody, r.FindingsJSON, s.degraded)
	s.report(ctx, essay.AnalyzerBody)
	return out, usage, nil
}

func (a *Analyzers) Climax(ctx context.Context, in essay.AnalysisInput, h essay.HolisticUnderstanding, p scoring.Profile) (essay.ClimaxAnalysis, essay.TokenUsage, error) {
	var r climaxResponse
	usage, err := a.cfg.call(ctx, a.caller, request{
		analyzer: essay.AnalyzerClimax,
		stage:    essay.StageAnalyzers,
		role:     "You are an admissions reader judging the turning point of a narrative essay.",
		rules:    append([]string{"Look for the moment the writer changes, and whether it is rendered or merely reported."}, issueRules...),
		schema:   prompt.SchemaFor[climaxResponse](),
		user:     a.userPrompt(in, h, p, essay.SectionClimax, false),
	}, &r)
	if err != nil {
		return essay.ClimaxAnalysis{}, usage, err
	}
	var s scoreSheet
	out := essay.ClimaxAnalysis{
		TurningPoint:  s.take("turning_point", r.TurningPoint),
		Vividness:     s.take("vividness", r.Vividness),
		InternalShift: s.take("internal_shift", r.InternalShift),
		Arc:           s.take("arc", r.Arc),
	}
	out.Findings = toFindings(essay.AnalyzerClimax, r.FindingsJSON, s.degraded)
	s.report(ctx, essay.AnalyzerClimax)
	return out, usage, nil
}

func (a *Analyzers) Conclusion(ctx context.Context, in essay.AnalysisInput, h essay.HolisticUnderstanding, p scoring.Profile) (essay.ConclusionAnalysis, essay.TokenUsage, error) {
	var r conclusionResponse
	usage, err := a.cfg.call(ctx, a.caller, request{
		analyzer: essay.AnalyzerConclusion,
		stage:    essay.StageAnalyzers,
		role:     "You are an admissions reader judging how an essay ends.",
		rules:    append([]string{"Penalize endings that summarize or moralize instead of resonating."}, issueRules...),
		schema:   prompt.SchemaFor[conclusionResponse](),
		user:     a.userPrompt(in, h, p, essay.SectionConclusion, false),
	}, &r)
	if err != nil {
		return essay.ConclusionAnalysis{}, usage, err
	}
	var s scoreSheet
	out := essay.ConclusionAnalysis{
		Resonance:    s.take("resonance", r.Resonance),
		Reflection:   s.take("reflection", r.Reflection),
		ThemeTieBack: s.take("theme_tie_back", r.ThemeTieBack),
		Callback:     s.take("callback", r.Callback),
	}
	out.Findings = toFindings(essay.AnalyzerConclusion, r.FindingsJSON, s.degraded)
	s.report(ctx, essay.AnalyzerConclusion)
	return out, usage, nil
}

func (a *Analyzers) Character(ctx context.Context, in essay.AnalysisInput, h essay.HolisticUnderstanding, p scoring.Profile) (essay.CharacterAnalysis, essay.TokenUsage, error) {
	var r characterResponse
	usage, err := a.cfg.call(ctx, a.caller, request{
		analyzer: essay.AnalyzerCharacter,
		stage:    essay.StageAnalyzers,
		role:     "You are an admissions reader judging how well the writer comes across as a person.",
		rules:    append([]string{"Interiority means the reader hears the writer think, not just act."}, issueRules...),
		schema:   prompt.SchemaFor[characterResponse](),
		user:     a.userPrompt(in, h, p, "", true),
	}, &r)
	if err != nil {
		return essay.CharacterAnalysis{}, usage, err
	}
	var s scoreSheet
	out := essay.CharacterAnalysis{
		Interiority:   s.take("interiority", r.Interiority),
		Growth:        s.take("growth", r.Growth),
		Vulnerability: s.take("vulnerability", r.Vulnerability),
		Agency:        s.take("agency", r.Agency),
	}
	out.Findings = toFindings(essay.AnalyzerCharacter, r.FindingsJSON, s.degraded)
	s.report(ctx, essay.AnalyzerCharacter)
	return out, usage, nil
}

func (a *Analyzers) Stakes(ctx context.Context, in essay.AnalysisInput, h essay.HolisticUnderstanding, p scoring.Profile) (essay.StakesAnalysis, essay.TokenUsage, error) {
	var r stakesResponse
	usage, err := a.cfg.call(ctx, a.caller, request{
		analyzer: essay.AnalyzerStakes,
		stage:    essay.StageAnalyzers,
		role:     "You are an admissions reader judging tension and stakes in a narrative essay.",
		rules:    append([]string{"Stakes are what the writer could lose; tension is whether the reader feels it."}, issueRules...),
		schema:   prompt.SchemaFor[stakesResponse](),
		user:     a.userPrompt(in, h, p, "", true),
	}, &r)
	if err != nil {
		return essay.StakesAnalysis{}, usage, err
	}
	var s scoreSheet
	out := essay.StakesAnalysis{
		Tension:       s.take("tension", r.Tension),
		StakesClarity: s.take("stakes_clarity", r.StakesClarity),
		Consequence:   s.take("consequence", r.Consequence),
	}
	out.Findings = toFindings(essay.AnalyzerStakes, r.FindingsJSON, s.degraded)
	s.report(ctx, essay.AnalyzerStakes)
	return out, usage, nil
}

// Neutral fills the result of analyzer a with neutral, degraded values. Used
// only when degraded stage 2 mode is enabled.
func Neutral(r *essay.Stage2Results, a essay.Analyzer) {
	f := essay.Findings{Degraded: true, Summary: "analyzer unavailable"}
	n := NeutralScore
	switch a {
	case essay.AnalyzerOpening:
		r.Opening = essay.OpeningAnalysis{Findings: f, HookStrength: n, Immediacy: n, Originality: n}
	case essay.AnalyzerBody:
		r.Body = essay.BodyAnalysis{Findings: f, Pacing: n, Structure: n, Specificity: n, SceneBalance: n}
	case essay.AnalyzerClimax:
		r.Climax = essay.ClimaxAnalysis{Findings: f, TurningPoint: n, Vividness: n, InternalShift: n, Arc: n}
	case essay.AnalyzerConclusion:
		r.Conclusion = essay.ConclusionAnalysis{Findings: f, Resonance: n, Reflection: n, ThemeTieBack: n, Callback: n}
	case essay.AnalyzerCharacter:
		r.Character = essay.CharacterAnalysis{Findings: f, Interiority: n, Growth: n, Vulnerability: n, Agency: n}
	case essay.AnalyzerStakes:
		r.Stakes = essay.StakesAnalysis{Findings: f, Tension: n, StakesClarity: n, Consequence: n}
	}
}
