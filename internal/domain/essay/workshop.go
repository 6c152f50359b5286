package essay

// MatchKind records which locator fallback tier resolved a quote.
type MatchKind string

const (
	MatchExact           MatchKind = "exact"
	MatchCaseInsensitive MatchKind = "case_insensitive"
	MatchNormalized      MatchKind = "normalized"
)

// Locator is a resolved span of the source text. Offsets are byte offsets and
// Text[Start:End] == Quote always holds.
type Locator struct {
	IssueID  string    `json:"issue_id,omitempty"`
	Quote    string    `json:"quote"`
	Start    int       `json:"start"`
	End      int       `json:"end"`
	Category string    `json:"category"`
	Severity Severity  `json:"severity"`
	Problem  string    `json:"problem,omitempty"`
	Match    MatchKind `json:"match,omitempty"`
}

// Symptom is the fixed defect taxonomy used by the diagnoser.
type Symptom string

const (
	SymptomAbstractLanguage Symptom = "abstract_language"
	SymptomPassiveAgency    Symptom = "passive_agency"
	SymptomClicheMetaphor   Symptom = "cliche_metaphor"
	SymptomTellingNotShow   Symptom = "telling_not_showing"
	SymptomGenericPacing    Symptom = "generic_pacing"
	SymptomWeakVerb         Symptom = "weak_verb"
)

var Symptoms = []Symptom{
	SymptomAbstractLanguage,
	SymptomPassiveAgency,
	SymptomClicheMetaphor,
	SymptomTellingNotShow,
	SymptomGenericPacing,
	SymptomWeakVerb,
}

func (s Symptom) Valid() bool {
	for _, known := range Symptoms {
		if s == known {
			return true
		}
	}
	return false
}

// Element is something a suggestion must supply.
type Element string

const (
	ElementSensoryDetail   Element = "sensory_detail"
	ElementConcreteObject  Element = "concrete_object"
	ElementGroundingMoment Element = "grounding_moment"
	ElementEmotionalTruth  Element = "emotional_truth"
)

var Elements = []Element{
	ElementSensoryDetail,
	ElementConcreteObject,
	ElementGroundingMoment,
	ElementEmotionalTruth,
}

func (e Element) Valid() bool {
	for _, known := range Elements {
		if e == known {
			return true
		}
	}
	return false
}

// Diagnosis classifies one located issue.
type Diagnosis struct {
	Symptom         Symptom   `json:"symptom"`
	MissingElements []Element `json:"missing_elements"`
	Explanation     string    `json:"explanation,omitempty"`
	Fallback        bool      `json:"fallback,omitempty"`
}

type SuggestionType string

const (
	SuggestionConservative   SuggestionType = "conservative"
	SuggestionVoiceAmplified SuggestionType = "voice_amplified"
	SuggestionDivergent      SuggestionType = "divergent"
)

// SuggestionTypes is the order variants are requested in.
var SuggestionTypes = []SuggestionType{
	SuggestionConservative,
	SuggestionVoiceAmplified,
	SuggestionDivergent,
}

// Suggestion is replaced as a whole value during refinement, never edited in place.
type Suggestion struct {
	Text        string         `json:"text"`
	Rationale   string         `json:"rationale"`
	Type        SuggestionType `json:"type"`
	Strategy    string         `json:"strategy,omitempty"`
	ScoreImpact float64        `json:"score_impact,omitempty"`
}

type FailureSeverity string

const (
	FailureError   FailureSeverity = "error"
	FailureWarning FailureSeverity = "warning"
)

type ValidationFailure struct {
	RuleID   string          `json:"rule_id"`
	Severity FailureSeverity `json:"severity"`
	Message  string          `json:"message"`
	Fix      string          `json:"suggested_fix,omitempty"`
}

// ValidationResult is the quality gate output. Score is on a 0..100 scale.
type ValidationResult struct {
	Passed   bool                `json:"passed"`
	Score    float64             `json:"score"`
	Tier     Tier                `json:"tier"`
	Failures []ValidationFailure `json:"failures,omitempty"`
}

// HasErrors reports whether any failure is blocking.
func (v ValidationResult) HasErrors() bool {
	for _, f := range v.Failures {
		if f.Severity == FailureError {
			return true
		}
	}
	return false
}

// RefinementPass is one entry of the append-only refinement history.
type RefinementPass struct {
	Pass            int      `json:"pass"`
	PreviousScore   float64  `json:"previous_score"`
	ImprovedScore   float64  `json:"improved_score"`
	Text            string   `json:"text"`
	Rationale       string   `json:"rationale"`
	Goals           []string `json:"goals"`
	WorthContinuing bool     `json:"worth_continuing"`
	// Passed reports whether this pass's text cleared validation.
	Passed  bool `json:"passed"`
	Adopted bool `json:"adopted"`
}

// RankedSuggestion pairs a suggestion with its final validation and history.
type RankedSuggestion struct {
	Rank        int              `json:"rank"`
	Suggestion  Suggestion       `json:"suggestion"`
	Validation  ValidationResult `json:"validation"`
	Refinements []RefinementPass `json:"refinements,omitempty"`
	Retries     int              `json:"retries,omitempty"`
}

// RefinementResult is the outcome of one refinement loop. FinalScore is never
// below OriginalScore.
type RefinementResult struct {
	Text          string           `json:"text"`
	Rationale     string           `json:"rationale"`
	Validation    ValidationResult `json:"validation"`
	OriginalScore float64          `json:"original_score"`
	FinalScore    float64          `json:"final_score"`
	Passes        []RefinementPass `json:"passes,omitempty"`
	StopReason    string           `json:"stop_reason"`
}

// Critique is the explicit feedback sent with a regeneration request after a
// suggestion fails validation.
type Critique struct {
	Attempt      int                 `json:"attempt"`
	PreviousText string              `json:"previous_text"`
	Failures     []ValidationFailure `json:"failures"`
	Instructions []string            `json:"instructions"`
}

// EditState is a step of the per-item editing state machine.
type EditState string

const (
	StateDiagnosed        EditState = "diagnosed"
	StateContextAssembled EditState = "context_assembled"
	StateGenerated        EditState = "generated"
	StateValidatedPass    EditState = "validated_pass"
	StateValidatedFail    EditState = "validated_fail"
	StateCritiqued        EditState = "critiqued"
	StateRegenerated      EditState = "regenerated"
	StateRefined          EditState = "refined"
	StateFinal            EditState = "final"
)

// WorkshopItem is one located issue plus its ranked suggestions.
type WorkshopItem struct {
	Locator     Locator            `json:"locator"`
	Diagnosis   Diagnosis          `json:"diagnosis"`
	Suggestions []RankedSuggestion `json:"suggestions"`
	Trace       []EditState        `json:"trace,omitempty"`
}

// WorkshopContext is what the editor knows about the essay as a whole. It is
// usually derived from an analysis with ContextFromResult.
type WorkshopContext struct {
	EssayType       EssayType `json:"essay_type,omitempty"`
	Aggregate       float64   `json:"aggregate_score,omitempty"`
	Theme           string    `json:"theme,omitempty"`
	VoiceDescriptor string    `json:"voice_descriptor,omitempty"`
	VoiceTags       []string  `json:"voice_tags,omitempty"`
	// Seed makes strategy selection reproducible; zero picks a fresh seed.
	Seed int64 `json:"seed,omitempty"`
}

// DefaultAggregate is assumed when no analysis backs a workshop request.
const DefaultAggregate = 60.0

// ContextFromResult builds the workshop context of an analysis.
func ContextFromResult(r *AnalysisResult) WorkshopContext {
	return WorkshopContext{
		EssayType:       r.EssayType,
		Aggregate:       r.Insights.AggregateScore,
		Theme:           r.Holistic.CentralTheme,
		VoiceDescriptor: r.Holistic.VoiceDescriptor,
		VoiceTags:       r.Holistic.VoiceTags,
	}
}

// WorkshopResult is the caller-facing outcome of GenerateSuggestions. Items
// keep the order of the requested locators; failed items are in Skipped.
type WorkshopResult struct {
	Items   []WorkshopItem `json:"items"`
	Skipped []ItemError    `json:"skipped,omitempty"`
	Tier    Tier           `json:"tier"`
	Tokens  TokenUsage     `json:"tokens"`
}

// ItemError reports a workshop item that could not be completed. Other items
// are unaffected.
type ItemError struct {
	Locator Locator `json:"locator"`
	Stage   string  `json:"stage"`
	Message string  `json:"message"`
}
