// Package workshop is the surgical editor: it diagnoses located issues,
// assembles a context bundle, generates three suggestion variants, validates
// them against tier-aware bounds and refines the survivors.
package workshop

import (
	"context"

	"github.com/bryanwahyu/essay-workshop/internal/application/genai"
	"github.com/bryanwahyu/essay-workshop/internal/domain/ai"
	"github.com/bryanwahyu/essay-workshop/internal/domain/essay"
	"github.com/bryanwahyu/essay-workshop/internal/infra/ai/prompt"
)

// Call purposes. Each is also the prefix used by test fakes.
const (
	PurposeDiagnose   = "workshop_diagnose"
	PurposeGenerate   = "workshop_generate"
	PurposeRegenerate = "workshop_regenerate"
	PurposeValidate   = "workshop_validate"
	PurposeRefine     = "workshop_refine"
)

// Config tunes the editor.
type Config struct {
	// Concurrency bounds how many items are edited at once.
	Concurrency int `yaml:"concurrency"`
	// MaxCritiques bounds regeneration attempts per suggestion after a failed
	// validation.
	MaxCritiques int          `yaml:"maxCritiques"`
	Refine       RefineConfig `yaml:"refine"`
	// NuanceCheck enables the generative validation pass.
	NuanceCheck bool `yaml:"nuanceCheck"`
}

// DefaultConfig: 4 items at a time, one critique per suggestion, refinement on.
func DefaultConfig() Config {
	return Config{
		Concurrency:  4,
		MaxCritiques: 1,
		Refine:       DefaultRefineConfig(),
		NuanceCheck:  true,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Concurrency <= 0 {
		c.Concurrency = d.Concurrency
	}
	if c.MaxCritiques < 0 {
		c.MaxCritiques = 0
	}
	c.Refine = c.Refine.withDefaults()
	return c
}

type call struct {
	purpose     string
	role        string
	rules       []string
	schema      string
	user        string
	temperature float64
	maxTokens   int
}

func send(ctx context.Context, caller *genai.Caller, c call, out any) (essay.TokenUsage, error) {
	if c.maxTokens == 0 {
		c.maxTokens = 1200
	}
	return caller.JSON(ctx, genai.Target{Stage: essay.StageWorkshop, Analyzer: c.purpose}, ai.Request{
		Purpose:     c.purpose,
		System:      prompt.System(c.role, c.rules, c.schema),
		User:        c.user,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}, out)
}
