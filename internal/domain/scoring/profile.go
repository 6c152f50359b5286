package scoring

import (
	"fmt"

	"github.com/bryanwahyu/essay-workshop/internal/domain/essay"
)

// baseWeights sum to 1.0 and apply to every essay type before adjustment.
var baseWeights = map[essay.Dimension]float64{
	essay.DimOpeningHook:          0.09,
	essay.DimNarrativeArc:         0.10,
	essay.DimCharacterInteriority: 0.10,
	essay.DimStakesTension:        0.07,
	essay.DimClimaxTurningPoint:   0.08,
	essay.DimConclusionResonance:  0.08,
	essay.DimVoiceAuthenticity:    0.11,
	essay.DimSpecificityImagery:   0.09,
	essay.DimProseCraft:           0.07,
	essay.DimThematicCoherence:    0.07,
	essay.DimReflectionInsight:    0.08,
	essay.DimDistinctiveness:      0.06,
}

// Profile is a named table of multiplicative weight adjustments. Dimensions it
// does not mention keep a multiplier of 1.
type Profile struct {
	Name   string                      `json:"name"`
	Adjust map[essay.Dimension]float64 `json:"adjust,omitempty"`
}

// Profiles holds one profile per essay type.
var Profiles = map[essay.EssayType]Profile{
	essay.TypePersonalStatement: {Name: "personal_statement"},
	essay.TypeSupplemental: {Name: "supplemental", Adjust: map[essay.Dimension]float64{
		essay.DimReflectionInsight:  1.2,
		essay.DimThematicCoherence:  1.3,
		essay.DimOpeningHook:        0.8,
		essay.DimClimaxTurningPoint: 0.8,
	}},
	essay.TypeWhySchool: {Name: "why_school", Adjust: map[essay.Dimension]float64{
		essay.DimThematicCoherence:    1.5,
		essay.DimSpecificityImagery:   1.4,
		essay.DimClimaxTurningPoint:   0.5,
		essay.DimStakesTension:        0.6,
		essay.DimCharacterInteriority: 0.8,
	}},
	essay.TypeActivity: {Name: "activity", Adjust: map[essay.Dimension]float64{
		essay.DimSpecificityImagery:  1.4,
		essay.DimProseCraft:          1.2,
		essay.DimReflectionInsight:   1.1,
		essay.DimOpeningHook:         0.8,
		essay.DimConclusionResonance: 0.7,
	}},
	essay.TypeScholarship: {Name: "scholarship", Adjust: map[essay.Dimension]float64{
		essay.DimStakesTension:        1.3,
		essay.DimReflectionInsight:    1.3,
		essay.DimCharacterInteriority: 1.1,
		essay.DimDistinctiveness:      0.9,
	}},
}

// ProfileFor returns the profile of t, falling back to the personal statement
// profile for unknown types.
func ProfileFor(t essay.EssayType) Profile {
	if p, ok := Profiles[t]; ok {
		return p
	}
	return Profiles[essay.TypePersonalStatement]
}

// Weights returns the adjusted weights renormalized to sum to 1.0.
func (p Profile) Weights() map[essay.Dimension]float64 {
	out := make(map[essay.Dimension]float64, essay.NumDimensions)
	var total float64
	for _, d := range essay.Dimensions {
		w := baseWeights[d]
		if m, ok := p.Adjust[d]; ok {
			w *= m
		}
		out[d] = w
		total += w
	}
	for d := range out {
		out[d] /= total
	}
	return out
}

// Validate rejects adjustments for unknown dimensions or non-positive multipliers.
func (p Profile) Validate() error {
	for d, m := range p.Adjust {
		if !d.Valid() {
			return fmt.Errorf("profile %s: unknown dimension %q", p.Name, d)
		}
		if m <= 0 {
			return fmt.Errorf("profile %s: multiplier for %s must be positive", p.Name, d)
		}
	}
	return nil
}
