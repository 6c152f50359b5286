package essay

import (
	"strings"
	"unicode/utf8"
)

// EssayType selects the weight profile used for scoring.
type EssayType string

const (
	TypePersonalStatement EssayType = "personal_statement"
	TypeSupplemental      EssayType = "supplemental"
	TypeWhySchool         EssayType = "why_school"
	TypeActivity          EssayType = "activity"
	TypeScholarship       EssayType = "scholarship"
)

// EssayTypes lists every supported type in a stable order.
var EssayTypes = []EssayType{
	TypePersonalStatement,
	TypeSupplemental,
	TypeWhySchool,
	TypeActivity,
	TypeScholarship,
}

// Valid reports whether t is a known essay type.
func (t EssayType) Valid() bool {
	for _, known := range EssayTypes {
		if t == known {
			return true
		}
	}
	return false
}

// MaxTextBytes bounds accepted essays; anything longer is not a college essay.
const MaxTextBytes = 40_000

// AnalysisInput is the accepted submission. Build it with NewAnalysisInput and
// pass it by value; nothing downstream mutates it.
type AnalysisInput struct {
	Text       string    `json:"text"`
	EssayType  EssayType `json:"essay_type"`
	PromptText string    `json:"prompt_text,omitempty"`
	MaxWords   int       `json:"max_words,omitempty"`
}

// NewAnalysisInput validates a raw submission. An empty essay type falls back
// to personal_statement.
func NewAnalysisInput(text string, essayType EssayType, promptText string, maxWords int) (AnalysisInput, error) {
	text = strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n"))
	if text == "" {
		return AnalysisInput{}, &InputError{Field: "text", Message: "essay text is required"}
	}
	if !utf8.ValidString(text) {
		return AnalysisInput{}, &InputError{Field: "text", Message: "essay text must be valid UTF-8"}
	}
	if len(text) > MaxTextBytes {
		return AnalysisInput{}, &InputError{Field: "text", Message: "essay text is too long"}
	}
	if essayType == "" {
		essayType = TypePersonalStatement
	}
	if !essayType.Valid() {
		return AnalysisInput{}, &InputError{Field: "essay_type", Message: "unknown essay type " + string(essayType)}
	}
	if maxWords < 0 {
		return AnalysisInput{}, &InputError{Field: "max_words", Message: "max_words must not be negative"}
	}
	return AnalysisInput{
		Text:       text,
		EssayType:  essayType,
		PromptText: strings.TrimSpace(promptText),
		MaxWords:   maxWords,
	}, nil
}

// WordCount counts whitespace separated words.
func (in AnalysisInput) WordCount() int {
	return len(strings.Fields(in.Text))
}

// OverLimit reports whether the essay exceeds its declared word limit.
func (in AnalysisInput) OverLimit() bool {
	return in.MaxWords > 0 && in.WordCount() > in.MaxWords
}
