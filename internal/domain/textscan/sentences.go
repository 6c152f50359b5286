// Package textscan holds the deterministic text analyzers: sentence parsing,
// section labelling and grammar metrics. Everything here is a pure function of
// its input.
package textscan

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Sentence is one parsed sentence with byte offsets into the source text.
type Sentence struct {
	Index     int    `json:"index"`
	Text      string `json:"text"`
	Start     int    `json:"start"`
	End       int    `json:"end"`
	Paragraph int    `json:"paragraph"`
}

var abbreviations = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "dr": true, "st": true, "jr": true,
	"sr": true, "vs": true, "e.g": true, "i.e": true, "a.m": true, "p.m": true,
	"prof": true, "mt": true, "ft": true, "u.s": true,
}

var closers = []string{`"`, `'`, ")", "]", "”", "’", "»"}

// SplitSentences breaks text into sentences. A newline always ends a sentence
// and starts a new paragraph.
func SplitSentences(text string) []Sentence {
	var out []Sentence
	para := 0
	start := 0
	emit := func(s, e int) {
		for s < e && isSpaceByte(text[s]) {
			s++
		}
		for e > s && isSpaceByte(text[e-1]) {
			e--
		}
		if s < e {
			out = append(out, Sentence{Index: len(out), Text: text[s:e], Start: s, End: e, Paragraph: para})
		}
	}

	i := 0
	for i < len(text) {
		c := text[i]
		switch {
		case c == '\n':
			emit(start, i)
			j := i
			for j < len(text) && isSpaceByte(text[j]) {
				j++
			}
			para++
			start, i = j, j
		case c == '.' || c == '!' || c == '?':
			j := i + 1
			for j < len(text) && (text[j] == '.' || text[j] == '!' || text[j] == '?') {
				j++
			}
			j = skipClosers(text, j)
			if j < len(text) && !isSpaceByte(text[j]) {
				i = j
				continue
			}
			if c == '.' && j == i+1 && isAbbreviation(text[start:i]) {
				i = j
				continue
			}
			emit(start, j)
			start, i = j, j
		default:
			i++
		}
	}
	emit(start, len(text))
	return fixParagraphs(out)
}

// fixParagraphs renumbers paragraphs so they start at zero and have no gaps.
func fixParagraphs(ss []Sentence) []Sentence {
	next := -1
	last := -1
	for i := range ss {
		if ss[i].Paragraph != last {
			last = ss[i].Paragraph
			next++
		}
		ss[i].Paragraph = next
	}
	return ss
}

func skipClosers(text string, j int) int {
	for j < len(text) {
		matched := false
		for _, cl := range closers {
			if strings.HasPrefix(text[j:], cl) {
				j += len(cl)
				matched = true
				break
			}
		}
		if !matched {
			return j
		}
	}
	return j
}

func isAbbreviation(prefix string) bool {
	k := strings.LastIndexFunc(prefix, unicode.IsSpace)
	word := prefix[k+1:]
	word = strings.TrimLeft(word, `"'([“‘`)
	if word == "" {
		return false
	}
	if utf8.RuneCountInString(word) == 1 {
		r, _ := utf8.DecodeRuneInString(word)
		return unicode.IsUpper(r)
	}
	return abbreviations[strings.ToLower(word)]
}

func isSpaceByte(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

// CountParagraphs counts blocks of text separated by newlines.
func CountParagraphs(text string) int {
	n := 0
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			n++
		}
	}
	return n
}
