package stages

import (
	"context"
	"errors"
	"strings"

	"github.com/bryanwahyu/essay-workshop/internal/application/genai"
	"github.com/bryanwahyu/essay-workshop/internal/domain/essay"
	"github.com/bryanwahyu/essay-workshop/internal/domain/scoring"
	"github.com/bryanwahyu/essay-workshop/internal/domain/textscan"
	"github.com/bryanwahyu/essay-workshop/internal/infra/ai/prompt"
)

type holisticResponse struct {
	CentralTheme    string   `json:"central_theme" jsonschema_description:"The single idea the essay is about, in one sentence"`
	NarrativeThread string   `json:"narrative_thread" jsonschema_description:"How the story moves from start to end"`
	VoiceDescriptor string   `json:"voice_descriptor" jsonschema_description:"Two or three adjectives describing the writer's voice"`
	VoiceTags       []string `json:"voice_tags" jsonschema_description:"Lowercase tags such as earnest, wry, lyrical, direct, reflective, energetic, quiet, conversational"`
	Structure       struct {
		Form        string `json:"form" jsonschema_description:"narrative, montage, braided, list or argumentative"`
		Tense       string `json:"tense"`
		PointOfView string `json:"point_of_view"`
	} `json:"structure"`
	KeyMoments []struct {
		Quote        string `json:"quote"`
		Significance string `json:"significance"`
	} `json:"key_moments"`
	RedFlags       []string `json:"red_flags" jsonschema_description:"Serious risks such as trauma without reflection, resume listing, or disrespect"`
	CoherenceScore *float64 `json:"coherence_score" jsonschema:"minimum=0,maximum=10"`
}

func (r holisticResponse) Validate() error {
	if strings.TrimSpace(r.CentralTheme) == "" {
		return errors.New("central_theme is required")
	}
	return nil
}

// Holistic is stage 1: one read of the whole essay that every later stage
// builds on.
type Holistic struct {
	caller *genai.Caller
	cfg    Config
}

func NewHolistic(caller *genai.Caller, cfg Config) *Holistic {
	return &Holistic{caller: caller, cfg: cfg.withDefaults()}
}

func (s *Holistic) Analyze(ctx context.Context, in essay.AnalysisInput, p scoring.Profile) (essay.HolisticUnderstanding, essay.TokenUsage, error) {
	var u prompt.User
	essayContext(&u, in, essay.HolisticUnderstanding{}, p)
	u.Block("essay", in.Text)

	var r holisticResponse
	usage, err := s.cfg.call(ctx, s.caller, request{
		stage: essay.StageHolistic,
		role:  "You are an experienced admissions reader doing a first full read of an essay.",
		rules: []string{
			"Identify the theme before judging anything.",
			"Key moment quotes must be copied verbatim from the essay.",
			"Voice tags are lowercase single words.",
		},
		schema: prompt.SchemaFor[holisticResponse](),
		user:   u.String(),
	}, &r)
	if err != nil {
		return essay.HolisticUnderstanding{}, usage, err
	}

	var sheet scoreSheet
	h := essay.HolisticUnderstanding{
		CentralTheme:    strings.TrimSpace(r.CentralTheme),
		NarrativeThread: r.NarrativeThread,
		VoiceDescriptor: r.VoiceDescriptor,
		RedFlags:        r.RedFlags,
		CoherenceScore:  sheet.take("coherence_score", r.CoherenceScore),
		Structure: essay.StructuralMetadata{
			Form:           r.Structure.Form,
			Tense:          r.Structure.Tense,
			PointOfView:    r.Structure.PointOfView,
			ParagraphCount: textscan.CountParagraphs(in.Text),
			WordCount:      in.WordCount(),
		},
	}
	for _, tag := range r.VoiceTags {
		if tag = strings.ToLower(strings.TrimSpace(tag)); tag != "" {
			h.VoiceTags = append(h.VoiceTags, tag)
		}
	}
	for _, km := range r.KeyMoments {
		h.KeyMoments = append(h.KeyMoments, essay.KeyMoment{Quote: km.Quote, Significance: km.Significance})
	}
	h.Degraded = sheet.degraded
	sheet.report(ctx, "holistic")
	return h, usage, nil
}
