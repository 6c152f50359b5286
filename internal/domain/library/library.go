// Package library holds the read-only pattern, strategy and example tables.
// A Library is built once at startup and shared by every request without
// locking; nothing mutates it after Load returns.
package library

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bryanwahyu/essay-workshop/internal/domain/essay"
)

//go:embed library.yaml
var defaultTables []byte

// Strategy is one divergent rewrite approach.
type Strategy struct {
	ID        string          `yaml:"id" json:"id"`
	Name      string          `yaml:"name" json:"name"`
	Directive string          `yaml:"directive" json:"directive"`
	Symptoms  []essay.Symptom `yaml:"symptoms" json:"symptoms"`
}

// Example is a gold-standard before/after pair.
type Example struct {
	ID        string          `yaml:"id" json:"id"`
	Category  string          `yaml:"category" json:"category"`
	Symptoms  []essay.Symptom `yaml:"symptoms" json:"symptoms"`
	VoiceTags []string        `yaml:"voice_tags" json:"voice_tags"`
	Before    string          `yaml:"before" json:"before"`
	After     string          `yaml:"after" json:"after"`
	Why       string          `yaml:"why" json:"why"`
}

type tables struct {
	EssaySpeak           []string                   `yaml:"essay_speak"`
	Cliches              []string                   `yaml:"cliches"`
	BannedPhrases        []string                   `yaml:"banned_phrases"`
	WeakVerbs            []string                   `yaml:"weak_verbs"`
	FillerWords          []string                   `yaml:"filler_words"`
	AbstractNouns        []string                   `yaml:"abstract_nouns"`
	SensoryWords         []string                   `yaml:"sensory_words"`
	IrregularParticiples []string                   `yaml:"irregular_participles"`
	SymptomHints         map[essay.Symptom][]string `yaml:"symptom_hints"`
	Strategies           []Strategy                 `yaml:"strategies"`
	Examples             []Example                  `yaml:"examples"`
}

// PhraseSet matches a list of phrases on word boundaries, case-insensitively.
type PhraseSet struct {
	phrases []string
	re      *regexp.Regexp
}

func newPhraseSet(phrases []string) PhraseSet {
	clean := make([]string, 0, len(phrases))
	for _, p := range phrases {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			clean = append(clean, p)
		}
	}
	if len(clean) == 0 {
		return PhraseSet{}
	}
	// longest first so overlapping phrases prefer the fuller match
	sorted := append([]string(nil), clean...)
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })
	quoted := make([]string, len(sorted))
	for i, p := range sorted {
		quoted[i] = regexp.QuoteMeta(p)
	}
	re := regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
	return PhraseSet{phrases: clean, re: re}
}

// FindAll returns every non-overlapping match in text, lowercased, in order.
func (p PhraseSet) FindAll(text string) []string {
	if p.re == nil {
		return nil
	}
	found := p.re.FindAllString(text, -1)
	for i := range found {
		found[i] = strings.ToLower(found[i])
	}
	return found
}

// Count returns the number of matches in text.
func (p PhraseSet) Count(text string) int {
	if p.re == nil {
		return 0
	}
	return len(p.re.FindAllStringIndex(text, -1))
}

// Contains reports whether any phrase occurs in text.
func (p PhraseSet) Contains(text string) bool {
	return p.re != nil && p.re.MatchString(text)
}

// Len is the number of phrases in the set.
func (p PhraseSet) Len() int { return len(p.phrases) }

// Library is the compiled, immutable form of the tables.
type Library struct {
	EssaySpeak    PhraseSet
	Cliches       PhraseSet
	BannedPhrases PhraseSet
	WeakVerbs     PhraseSet
	FillerWords   PhraseSet
	AbstractNouns PhraseSet
	SensoryWords  PhraseSet
	SymptomHints  map[essay.Symptom]PhraseSet

	passive    *regexp.Regexp
	strategies []Strategy
	examples   []Example
}

// Load compiles the embedded default tables.
func Load() (*Library, error) {
	return parse(defaultTables)
}

// LoadFile compiles tables from a YAML file on disk.
func LoadFile(path string) (*Library, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parse(data)
}

// MustLoad is Load for tests and static wiring.
func MustLoad() *Library {
	lib, err := Load()
	if err != nil {
		panic(err)
	}
	return lib
}

func parse(data []byte) (*Library, error) {
	var t tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("library: %w", err)
	}
	if len(t.Strategies) == 0 {
		return nil, fmt.Errorf("library: strategy table is empty")
	}
	for _, s := range t.Strategies {
		for _, sym := range s.Symptoms {
			if !sym.Valid() {
				return nil, fmt.Errorf("library: strategy %s: unknown symptom %q", s.ID, sym)
			}
		}
	}
	for _, e := range t.Examples {
		if e.Before == "" || e.After == "" {
			return nil, fmt.Errorf("library: example %s is incomplete", e.ID)
		}
	}

	hints := make(map[essay.Symptom]PhraseSet, len(t.SymptomHints))
	for sym, phrases := range t.SymptomHints {
		if !sym.Valid() {
			return nil, fmt.Errorf("library: unknown symptom hint %q", sym)
		}
		hints[sym] = newPhraseSet(phrases)
	}

	participles := make([]string, 0, len(t.IrregularParticiples))
	for _, p := range t.IrregularParticiples {
		participles = append(participles, regexp.QuoteMeta(strings.ToLower(p)))
	}
	passivePattern := `(?i)\b(?:am|is|are|was|were|be|been|being)\s+(?:\w+ly\s+)?(?:\w+ed`
	if len(participles) > 0 {
		passivePattern += "|" + strings.Join(participles, "|")
	}
	passivePattern += `)\b`

	return &Library{
		EssaySpeak:    newPhraseSet(t.EssaySpeak),
		Cliches:       newPhraseSet(t.Cliches),
		BannedPhrases: newPhraseSet(t.BannedPhrases),
		WeakVerbs:     newPhraseSet(t.WeakVerbs),
		FillerWords:   newPhraseSet(t.FillerWords),
		AbstractNouns: newPhraseSet(t.AbstractNouns),
		SensoryWords:  newPhraseSet(t.SensoryWords),
		SymptomHints:  hints,
		passive:       regexp.MustCompile(passivePattern),
		strategies:    t.Strategies,
		examples:      t.Examples,
	}, nil
}

// PassiveMatches returns the passive constructions found in text.
func (l *Library) PassiveMatches(text string) []string {
	return l.passive.FindAllString(text, -1)
}

// Strategies returns a copy of the strategy table; callers may shuffle it.
func (l *Library) Strategies() []Strategy {
	return append([]Strategy(nil), l.strategies...)
}

// Examples returns a copy of the example bank.
func (l *Library) Examples() []Example {
	return append([]Example(nil), l.examples...)
}
