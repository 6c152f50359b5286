package essay

// Dimension is one of the 12 fixed axes of writing quality.
type Dimension string

const (
	DimOpeningHook          Dimension = "opening_hook"
	DimNarrativeArc         Dimension = "narrative_arc"
	DimCharacterInteriority Dimension = "character_interiority"
	DimStakesTension        Dimension = "stakes_tension"
	DimClimaxTurningPoint   Dimension = "climax_turning_point"
	DimConclusionResonance  Dimension = "conclusion_resonance"
	DimVoiceAuthenticity    Dimension = "voice_authenticity"
	DimSpecificityImagery   Dimension = "specificity_imagery"
	DimProseCraft           Dimension = "prose_craft"
	DimThematicCoherence    Dimension = "thematic_coherence"
	DimReflectionInsight    Dimension = "reflection_insight"
	DimDistinctiveness      Dimension = "distinctiveness"
)

// NumDimensions is the required number of dimension scores per analysis.
const NumDimensions = 12

// Dimensions is the canonical order.
var Dimensions = [NumDimensions]Dimension{
	DimOpeningHook,
	DimNarrativeArc,
	DimCharacterInteriority,
	DimStakesTension,
	DimClimaxTurningPoint,
	DimConclusionResonance,
	DimVoiceAuthenticity,
	DimSpecificityImagery,
	DimProseCraft,
	DimThematicCoherence,
	DimReflectionInsight,
	DimDistinctiveness,
}

// Valid reports whether d is one of the 12 dimensions.
func (d Dimension) Valid() bool {
	for _, known := range Dimensions {
		if d == known {
			return true
		}
	}
	return false
}

// DimensionForAnalyzer is the default dimension for issues an analyzer reports
// without naming one.
func DimensionForAnalyzer(a Analyzer) Dimension {
	switch a {
	case AnalyzerOpening:
		return DimOpeningHook
	case AnalyzerBody:
		return DimNarrativeArc
	case AnalyzerClimax:
		return DimClimaxTurningPoint
	case AnalyzerConclusion:
		return DimConclusionResonance
	case AnalyzerCharacter:
		return DimCharacterInteriority
	case AnalyzerStakes:
		return DimStakesTension
	case AnalyzerStyle:
		return DimVoiceAuthenticity
	}
	return DimProseCraft
}

// CheckDimensions enforces the 12-dimension invariant: every dimension exactly
// once and every score inside [0,10].
func CheckDimensions(ds []DimensionScore) error {
	if len(ds) != NumDimensions {
		return &StructuralError{What: "dimension scores", Want: NumDimensions, Got: len(ds)}
	}
	seen := make(map[Dimension]bool, NumDimensions)
	for _, d := range ds {
		if !d.Dimension.Valid() || seen[d.Dimension] {
			return &StructuralError{What: "distinct dimensions", Want: NumDimensions, Got: len(seen)}
		}
		if d.Score < 0 || d.Score > 10 {
			return &StructuralError{What: "score range for " + string(d.Dimension), Want: 10, Got: int(d.Score)}
		}
		seen[d.Dimension] = true
	}
	return nil
}

// Impression is the ordinal label derived from the aggregate score.
type Impression string

const (
	ImpressionUnderdeveloped Impression = "underdeveloped"
	ImpressionDeveloping     Impression = "developing"
	ImpressionCompetent      Impression = "competent"
	ImpressionStrong         Impression = "strong"
	ImpressionCompelling     Impression = "compelling"
	ImpressionExceptional    Impression = "exceptional"
)

// ImpressionFor maps an aggregate score in [0,100] onto its label.
func ImpressionFor(aggregate float64) Impression {
	switch {
	case aggregate >= 90:
		return ImpressionExceptional
	case aggregate >= 80:
		return ImpressionCompelling
	case aggregate >= 70:
		return ImpressionStrong
	case aggregate >= 55:
		return ImpressionCompetent
	case aggregate >= 40:
		return ImpressionDeveloping
	default:
		return ImpressionUnderdeveloped
	}
}

// Tier is the difficulty bucket used to scale suggestion validation.
type Tier int

const (
	TierFoundation Tier = iota
	TierDeveloping
	TierProficient
	TierAdvanced
	TierExceptional
	TierMasterful
)

var tierNames = [...]string{"foundation", "developing", "proficient", "advanced", "exceptional", "masterful"}

func (t Tier) String() string {
	if t < TierFoundation || t > TierMasterful {
		return "unknown"
	}
	return tierNames[t]
}

func (t Tier) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *Tier) UnmarshalText(b []byte) error {
	for i, name := range tierNames {
		if name == string(b) {
			*t = Tier(i)
			return nil
		}
	}
	return &InputError{Field: "tier", Message: "unknown tier " + string(b)}
}

// TierFor maps an aggregate score in [0,100] onto one of six ordered tiers.
func TierFor(aggregate float64) Tier {
	switch {
	case aggregate >= 90:
		return TierMasterful
	case aggregate >= 80:
		return TierExceptional
	case aggregate >= 70:
		return TierAdvanced
	case aggregate >= 55:
		return TierProficient
	case aggregate >= 40:
		return TierDeveloping
	default:
		return TierFoundation
	}
}
