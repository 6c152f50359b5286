package textscan

import (
	"fmt"
	"strings"

	"github.com/bryanwahyu/essay-workshop/internal/domain/essay"
)

// SectionBounds are the relative sentence positions separating the coarse
// sections. They are heuristics, not validated against labelled essays, so they
// are configurable rather than constants.
type SectionBounds struct {
	OpeningEnd      float64 `yaml:"openingEnd" json:"opening_end"`
	ClimaxStart     float64 `yaml:"climaxStart" json:"climax_start"`
	ClimaxEnd       float64 `yaml:"climaxEnd" json:"climax_end"`
	ConclusionStart float64 `yaml:"conclusionStart" json:"conclusion_start"`
}

// DefaultBounds: first 15% opening, 40–70% climax, last 20% conclusion.
var DefaultBounds = SectionBounds{
	OpeningEnd:      0.15,
	ClimaxStart:     0.40,
	ClimaxEnd:       0.70,
	ConclusionStart: 0.80,
}

// Validate checks the bounds are ordered inside (0,1).
func (b SectionBounds) Validate() error {
	if !(0 < b.OpeningEnd && b.OpeningEnd <= b.ClimaxStart && b.ClimaxStart < b.ClimaxEnd &&
		b.ClimaxEnd <= b.ConclusionStart && b.ConclusionStart < 1) {
		return fmt.Errorf("section bounds out of order: %+v", b)
	}
	return nil
}

// SectionFor labels sentence index out of total by relative position
// index/total. Positions exactly on a bound belong to the later section. When
// the essay has at least two sentences the last one is always the conclusion,
// otherwise short essays would end in the climax.
func (b SectionBounds) SectionFor(index, total int) essay.Section {
	if total <= 0 || index < 0 || index >= total {
		return essay.SectionBody
	}
	if total >= 2 && index == total-1 {
		return essay.SectionConclusion
	}
	pos := float64(index) / float64(total)
	switch {
	case pos < b.OpeningEnd:
		return essay.SectionOpening
	case pos >= b.ConclusionStart:
		return essay.SectionConclusion
	case pos >= b.ClimaxStart && pos < b.ClimaxEnd:
		return essay.SectionClimax
	default:
		return essay.SectionBody
	}
}

// Label returns the section of every sentence.
func (b SectionBounds) Label(sentences []Sentence) []essay.Section {
	out := make([]essay.Section, len(sentences))
	for i := range sentences {
		out[i] = b.SectionFor(i, len(sentences))
	}
	return out
}

// SectionSlice returns the sentences labelled with section.
func (b SectionBounds) SectionSlice(sentences []Sentence, section essay.Section) []Sentence {
	var out []Sentence
	for i, s := range sentences {
		if b.SectionFor(i, len(sentences)) == section {
			out = append(out, s)
		}
	}
	return out
}

// SectionText joins the sentences of one section. An empty section falls back
// to the whole text so every scoped analyzer always has something to read.
func (b SectionBounds) SectionText(text string, sentences []Sentence, section essay.Section) string {
	var parts []string
	for _, s := range b.SectionSlice(sentences, section) {
		parts = append(parts, s.Text)
	}
	if len(parts) == 0 {
		return text
	}
	return strings.Join(parts, " ")
}
