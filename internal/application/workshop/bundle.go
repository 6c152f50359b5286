package workshop

import (
	"math/rand"
	"sort"
	"strings"

	"github.com/bryanwahyu/essay-workshop/internal/domain/essay"
	"github.com/bryanwahyu/essay-workshop/internal/domain/library"
)

const (
	maxExamples   = 2
	maxDirectives = 2
)

// Bundle is everything the generator needs for one item.
type Bundle struct {
	Locator         essay.Locator
	Sentence        string
	Diagnosis       essay.Diagnosis
	Theme           string
	VoiceDescriptor string
	VoiceTags       []string
	Examples        []library.Example
	Directives      []library.Strategy
	Divergent       library.Strategy
}

// ContextAssembler builds bundles from the read-only library. Only the
// divergent strategy depends on the random source, which the caller owns.
type ContextAssembler struct {
	lib *library.Library
}

func NewContextAssembler(lib *library.Library) *ContextAssembler {
	return &ContextAssembler{lib: lib}
}

func (a *ContextAssembler) Assemble(loc essay.Locator, sentence string, diag essay.Diagnosis, wctx essay.WorkshopContext, rng *rand.Rand) Bundle {
	b := Bundle{
		Locator:         loc,
		Sentence:        sentence,
		Diagnosis:       diag,
		Theme:           wctx.Theme,
		VoiceDescriptor: wctx.VoiceDescriptor,
		VoiceTags:       wctx.VoiceTags,
		Examples:        a.Examples(loc.Category, diag.Symptom, wctx.VoiceTags),
	}
	b.Directives = a.Directives(diag.Symptom)
	b.Divergent = a.Divergent(diag.Symptom, b.Directives, rng)
	return b
}

// Examples ranks the example bank by symptom match (3), category match (2) and
// shared voice tags (1 each) and returns up to two examples that match at
// least the symptom or the category. Ties keep bank order.
func (a *ContextAssembler) Examples(category string, sym essay.Symptom, voiceTags []string) []library.Example {
	type scored struct {
		ex     library.Example
		score  int
		anchor bool
	}
	tags := map[string]bool{}
	for _, t := range voiceTags {
		tags[strings.ToLower(t)] = true
	}
	category = strings.ToLower(category)

	var ranked []scored
	for _, ex := range a.lib.Examples() {
		s := scored{ex: ex}
		for _, es := range ex.Symptoms {
			if es == sym {
				s.score += 3
				s.anchor = true
				break
			}
		}
		if category != "" && (strings.Contains(category, ex.Category) || strings.Contains(ex.Category, category)) {
			s.score += 2
			s.anchor = true
		}
		for _, t := range ex.VoiceTags {
			if tags[t] {
				s.score++
			}
		}
		if s.anchor {
			ranked = append(ranked, s)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	var out []library.Example
	for _, s := range ranked {
		out = append(out, s.ex)
		if len(out) == maxExamples {
			break
		}
	}
	return out
}

// Directives returns up to two strategies aimed at sym, in library order.
func (a *ContextAssembler) Directives(sym essay.Symptom) []library.Strategy {
	var out []library.Strategy
	for _, s := range a.lib.Strategies() {
		if targets(s, sym) {
			out = append(out, s)
			if len(out) == maxDirectives {
				break
			}
		}
	}
	return out
}

// Divergent shuffles the strategy library with rng and returns the first
// strategy not already used as a directive, preferring ones aimed at other
// symptoms.
func (a *ContextAssembler) Divergent(sym essay.Symptom, used []library.Strategy, rng *rand.Rand) library.Strategy {
	all := a.lib.Strategies()
	rng.Shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })

	taken := map[string]bool{}
	for _, s := range used {
		taken[s.ID] = true
	}
	var fallback *library.Strategy
	for i := range all {
		if taken[all[i].ID] {
			continue
		}
		if !targets(all[i], sym) {
			return all[i]
		}
		if fallback == nil {
			fallback = &all[i]
		}
	}
	if fallback != nil {
		return *fallback
	}
	return all[0]
}

func targets(s library.Strategy, sym essay.Symptom) bool {
	for _, x := range s.Symptoms {
		if x == sym {
			return true
		}
	}
	return false
}
