package essay

import "time"

// Severity of a detected issue.
type Severity string

const (
	SeverityCritical     Severity = "critical"
	SeverityWarning      Severity = "warning"
	SeverityOptimization Severity = "optimization"
)

// NormalizeSeverity maps free-form severities from the generative service onto
// the three-level scale. Unknown values become warnings.
func NormalizeSeverity(s string) Severity {
	switch s {
	case "critical", "high", "major_critical", "severe":
		return SeverityCritical
	case "optimization", "minor", "low", "info", "polish":
		return SeverityOptimization
	default:
		return SeverityWarning
	}
}

// Analyzer names the stage 2 analyzer families (plus style, for stage 3 issues).
type Analyzer string

const (
	AnalyzerOpening    Analyzer = "opening"
	AnalyzerBody       Analyzer = "body"
	AnalyzerClimax     Analyzer = "climax"
	AnalyzerConclusion Analyzer = "conclusion"
	AnalyzerCharacter  Analyzer = "character"
	AnalyzerStakes     Analyzer = "stakes"
	AnalyzerStyle      Analyzer = "style"
)

// Stage2Analyzers is the fixed fan-out set.
var Stage2Analyzers = []Analyzer{
	AnalyzerOpening,
	AnalyzerBody,
	AnalyzerClimax,
	AnalyzerConclusion,
	AnalyzerCharacter,
	AnalyzerStakes,
}

// Issue is one problem reported by an analyzer, anchored by a verbatim quote.
type Issue struct {
	ID             string    `json:"id"`
	Analyzer       Analyzer  `json:"analyzer"`
	Dimension      Dimension `json:"dimension"`
	Category       string    `json:"category"`
	Quote          string    `json:"quote"`
	Problem        string    `json:"problem"`
	Severity       Severity  `json:"severity"`
	ImpactEstimate string    `json:"impact_estimate,omitempty"`
}

// Findings is the part every stage 2 result shares.
type Findings struct {
	Issues    []Issue  `json:"issues"`
	Strengths []string `json:"strengths,omitempty"`
	Summary   string   `json:"summary,omitempty"`
	// Degraded is set when the response had to be repaired (clamped or
	// missing scores) or, in degraded-stage mode, replaced by a neutral result.
	Degraded bool `json:"degraded,omitempty"`
}

type KeyMoment struct {
	Quote        string `json:"quote"`
	Significance string `json:"significance"`
}

type StructuralMetadata struct {
	Form           string `json:"form"`
	Tense          string `json:"tense"`
	PointOfView    string `json:"point_of_view"`
	ParagraphCount int    `json:"paragraph_count"`
	WordCount      int    `json:"word_count"`
}

// HolisticUnderstanding is produced once by stage 1 and read by everything after.
type HolisticUnderstanding struct {
	CentralTheme    string             `json:"central_theme"`
	NarrativeThread string             `json:"narrative_thread"`
	VoiceDescriptor string             `json:"voice_descriptor"`
	VoiceTags       []string           `json:"voice_tags,omitempty"`
	Structure       StructuralMetadata `json:"structure"`
	KeyMoments      []KeyMoment        `json:"key_moments,omitempty"`
	RedFlags        []string           `json:"red_flags,omitempty"`
	CoherenceScore  float64            `json:"coherence_score"`
	Degraded        bool               `json:"degraded,omitempty"`
}

type OpeningAnalysis struct {
	Findings
	HookStrength float64 `json:"hook_strength"`
	Immediacy    float64 `json:"immediacy"`
	Originality  float64 `json:"originality"`
	HookType     string  `json:"hook_type,omitempty"`
}

type BodyAnalysis struct {
	Findings
	Pacing       float64 `json:"pacing"`
	Structure    float64 `json:"structure"`
	Specificity  float64 `json:"specificity"`
	SceneBalance float64 `json:"scene_balance"`
}

type ClimaxAnalysis struct {
	Findings
	TurningPoint  float64 `json:"turning_point"`
	Vividness     float64 `json:"vividness"`
	InternalShift float64 `json:"internal_shift"`
	Arc           float64 `json:"arc"`
}

type ConclusionAnalysis struct {
	Findings
	Resonance    float64 `json:"resonance"`
	Reflection   float64 `json:"reflection"`
	ThemeTieBack float64 `json:"theme_tie_back"`
	Callback     float64 `json:"callback"`
}

type CharacterAnalysis struct {
	Findings
	Interiority   float64 `json:"interiority"`
	Growth        float64 `json:"growth"`
	Vulnerability float64 `json:"vulnerability"`
	Agency        float64 `json:"agency"`
}

type StakesAnalysis struct {
	Findings
	Tension       float64 `json:"tension"`
	StakesClarity float64 `json:"stakes_clarity"`
	Consequence   float64 `json:"consequence"`
}

// Stage2Results gathers the six analyzer outputs. Each field is written by
// exactly one goroutine during fan-out.
type Stage2Results struct {
	Opening    OpeningAnalysis    `json:"opening"`
	Body       BodyAnalysis       `json:"body"`
	Climax     ClimaxAnalysis     `json:"climax"`
	Conclusion ConclusionAnalysis `json:"conclusion"`
	Character  CharacterAnalysis  `json:"character"`
	Stakes     StakesAnalysis     `json:"stakes"`
}

// AllFindings returns the shared findings of every analyzer in fan-out order.
func (r *Stage2Results) AllFindings() []*Findings {
	return []*Findings{
		&r.Opening.Findings,
		&r.Body.Findings,
		&r.Climax.Findings,
		&r.Conclusion.Findings,
		&r.Character.Findings,
		&r.Stakes.Findings,
	}
}

// GrammarMetrics is the deterministic half of stage 3.
type GrammarMetrics struct {
	WordCount          int      `json:"word_count"`
	SentenceCount      int      `json:"sentence_count"`
	ParagraphCount     int      `json:"paragraph_count"`
	AvgSentenceWords   float64  `json:"avg_sentence_words"`
	SentenceLengthSD   float64  `json:"sentence_length_sd"`
	LongestSentence    int      `json:"longest_sentence"`
	PassiveCount       int      `json:"passive_count"`
	AdverbCount        int      `json:"adverb_count"`
	FillerCount        int      `json:"filler_count"`
	WeakVerbCount      int      `json:"weak_verb_count"`
	RepeatedStarters   int      `json:"repeated_starters"`
	AbstractNounCount  int      `json:"abstract_noun_count"`
	SensoryWordCount   int      `json:"sensory_word_count"`
	HasDialogue        bool     `json:"has_dialogue"`
	FirstPersonRatio   float64  `json:"first_person_ratio"`
	ContractionRatio   float64  `json:"contraction_ratio"`
	AvgWordLength      float64  `json:"avg_word_length"`
	EssaySpeakPhrases  []string `json:"essay_speak_phrases,omitempty"`
	ClichePhrases      []string `json:"cliche_phrases,omitempty"`
	VoiceBaseline      float64  `json:"voice_baseline"`
	CraftScore         float64  `json:"craft_score"`
	SpecificityDensity float64  `json:"specificity_density"`
}

// StyleAnalysis is stage 3: grammar metrics plus the generative voice pass.
type StyleAnalysis struct {
	Metrics        GrammarMetrics `json:"metrics"`
	VoiceScore     float64        `json:"voice_score"`
	ModelVoice     float64        `json:"model_voice_score"`
	Tone           string         `json:"tone,omitempty"`
	FlaggedPhrases []string       `json:"flagged_phrases,omitempty"`
	Issues         []Issue        `json:"issues,omitempty"`
	Degraded       bool           `json:"degraded,omitempty"`
}

type Evidence struct {
	Quotes        []string `json:"quotes,omitempty"`
	Justification string   `json:"justification"`
}

// DimensionScore is one of the 12 scored axes.
type DimensionScore struct {
	Dimension    Dimension `json:"dimension"`
	Score        float64   `json:"score"`
	Weight       float64   `json:"weight"`
	Contribution float64   `json:"contribution"`
	Evidence     Evidence  `json:"evidence"`
}

type FixComplexity string

const (
	FixQuick    FixComplexity = "quick"
	FixModerate FixComplexity = "moderate"
	FixDeep     FixComplexity = "deep"
)

type Strength struct {
	Title    string `json:"title"`
	Evidence string `json:"evidence,omitempty"`
}

type Gap struct {
	Title         string        `json:"title"`
	Dimension     Dimension     `json:"dimension"`
	Detail        string        `json:"detail,omitempty"`
	FixComplexity FixComplexity `json:"fix_complexity"`
}

// SynthesizedInsights is the stage 4 output. AggregateScore and Impression are
// always computed from the dimension scores, never by the generative call.
type SynthesizedInsights struct {
	AggregateScore float64    `json:"aggregate_score"`
	Impression     Impression `json:"impression"`
	Strengths      []Strength `json:"strengths"`
	Gaps           []Gap      `json:"gaps"`
	Percentile     int        `json:"percentile"`
	Memorability   float64    `json:"memorability"`
	Narrative      string     `json:"narrative,omitempty"`
	Degraded       bool       `json:"degraded,omitempty"`
}

// Section is a coarse position label inside the essay.
type Section string

const (
	SectionOpening    Section = "opening"
	SectionBody       Section = "body"
	SectionClimax     Section = "climax"
	SectionConclusion Section = "conclusion"
)

// SentenceInsight ties an issue to the sentence that contains its quote.
type SentenceInsight struct {
	SentenceIndex int     `json:"sentence_index"`
	Sentence      string  `json:"sentence"`
	Section       Section `json:"section"`
	Issue         Issue   `json:"issue"`
	Priority      float64 `json:"priority"`
}

type TokenUsage struct {
	Prompt     int `json:"prompt"`
	Completion int `json:"completion"`
}

func (u TokenUsage) Total() int { return u.Prompt + u.Completion }

func (u *TokenUsage) Add(o TokenUsage) {
	u.Prompt += o.Prompt
	u.Completion += o.Completion
}

// AnalysisResult is what RunAnalysis hands back: complete and internally
// consistent, or not at all.
type AnalysisResult struct {
	ID               string                `json:"id"`
	EssayType        EssayType             `json:"essay_type"`
	WordCount        int                   `json:"word_count"`
	OverWordLimit    bool                  `json:"over_word_limit,omitempty"`
	Holistic         HolisticUnderstanding `json:"holistic"`
	Stage2           Stage2Results         `json:"stage2"`
	Style            StyleAnalysis         `json:"style"`
	Dimensions       []DimensionScore      `json:"dimensions"`
	Insights         SynthesizedInsights   `json:"insights"`
	SentenceInsights []SentenceInsight     `json:"sentence_insights"`
	Issues           []Issue               `json:"issues"`
	Locators         []Locator             `json:"locators"`
	Unlocated        []string              `json:"unlocated_issue_ids,omitempty"`
	Tokens           TokenUsage            `json:"tokens"`
	StageDurations   map[string]int64      `json:"stage_durations_ms"`
	Degraded         bool                  `json:"degraded,omitempty"`
	CreatedAt        time.Time             `json:"created_at"`
}
