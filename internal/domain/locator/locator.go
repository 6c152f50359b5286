// Package locator resolves quoted evidence onto byte spans of the source text.
//
// Quotes come back from the generative service and may be paraphrased, so
// matching falls back from exact to case-insensitive to a normalized form that
// ignores whitespace runs, curly quotes, dash variants and a trailing
// ellipsis. A quote that survives none of these is dropped, never guessed.
package locator

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/bryanwahyu/essay-workshop/internal/domain/essay"
)

// Unlocated records an issue whose quote could not be found.
type Unlocated struct {
	IssueID string `json:"issue_id"`
	Quote   string `json:"quote"`
	Reason  string `json:"reason"`
}

// ErrInvalidLocator is wrapped by Verify failures.
var ErrInvalidLocator = errors.New("invalid locator")

// Locate resolves every issue quote in text. The first occurrence wins.
func Locate(text string, issues []essay.Issue) ([]essay.Locator, []Unlocated) {
	var (
		locs    []essay.Locator
		dropped []Unlocated
		norm    *normalized
	)
	for _, is := range issues {
		quote := strings.TrimSpace(is.Quote)
		if quote == "" {
			dropped = append(dropped, Unlocated{IssueID: is.ID, Quote: is.Quote, Reason: "empty quote"})
			continue
		}
		start, end, kind := find(text, quote, &norm)
		if start < 0 {
			dropped = append(dropped, Unlocated{IssueID: is.ID, Quote: is.Quote, Reason: "quote not found in text"})
			continue
		}
		locs = append(locs, essay.Locator{
			IssueID:  is.ID,
			Quote:    text[start:end],
			Start:    start,
			End:      end,
			Category: is.Category,
			Severity: is.Severity,
			Problem:  is.Problem,
			Match:    kind,
		})
	}
	return locs, dropped
}

// Find resolves a single quote. ok is false when nothing matched.
func Find(text, quote string) (start, end int, kind essay.MatchKind, ok bool) {
	var norm *normalized
	start, end, kind = find(text, strings.TrimSpace(quote), &norm)
	return start, end, kind, start >= 0
}

// Verify checks a locator against text.
func Verify(text string, loc essay.Locator) error {
	if loc.Start < 0 || loc.Start >= loc.End || loc.End > len(text) {
		return fmt.Errorf("%w: span [%d,%d) outside text of length %d", ErrInvalidLocator, loc.Start, loc.End, len(text))
	}
	if text[loc.Start:loc.End] != loc.Quote {
		return fmt.Errorf("%w: text at [%d,%d) does not equal quote", ErrInvalidLocator, loc.Start, loc.End)
	}
	return nil
}

func find(text, quote string, norm **normalized) (int, int, essay.MatchKind) {
	if quote == "" {
		return -1, -1, ""
	}
	if i := strings.Index(text, quote); i >= 0 {
		return i, i + len(quote), essay.MatchExact
	}
	if i := indexFold(text, quote); i >= 0 {
		return i, i + len(quote), essay.MatchCaseInsensitive
	}
	if *norm == nil {
		*norm = normalize(text)
	}
	q := normalize(quote).text
	q = strings.TrimSpace(strings.Trim(strings.TrimSuffix(q, "..."), `"' `))
	if q == "" {
		return -1, -1, ""
	}
	i := strings.Index((*norm).text, q)
	if i < 0 {
		return -1, -1, ""
	}
	n := *norm
	return n.startOf[i], n.endOf[i+len(q)-1], essay.MatchNormalized
}

// indexFold is a case-insensitive strings.Index that only accepts matches of
// identical byte length, so offsets stay valid in the original text.
func indexFold(text, quote string) int {
	if len(quote) > len(text) {
		return -1
	}
	for i := 0; i+len(quote) <= len(text); {
		if strings.EqualFold(text[i:i+len(quote)], quote) {
			return i
		}
		_, size := utf8.DecodeRuneInString(text[i:])
		i += size
	}
	return -1
}

// normalized is a folded copy of a text plus, for every byte of the copy, the
// byte span in the original it came from.
type normalized struct {
	text    string
	startOf []int
	endOf   []int
}

func normalize(s string) *normalized {
	var b strings.Builder
	n := &normalized{}
	emit := func(out string, start, end int) {
		for i := 0; i < len(out); i++ {
			n.startOf = append(n.startOf, start)
			n.endOf = append(n.endOf, end)
		}
		b.WriteString(out)
	}

	inSpace := false
	spaceStart := 0
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if unicode.IsSpace(r) {
			if !inSpace {
				inSpace = true
				spaceStart = i
			}
			i += size
			continue
		}
		if inSpace {
			if b.Len() > 0 {
				emit(" ", spaceStart, i)
			}
			inSpace = false
		}
		if r == '…' {
			emit("...", i, i+size)
		} else {
			emit(string(unicode.ToLower(fold(r))), i, i+size)
		}
		i += size
	}
	n.text = b.String()
	return n
}

func fold(r rune) rune {
	switch r {
	case '‘', '’', '‚', '‛', '′':
		return '\''
	case '“', '”', '„', '‟', '″':
		return '"'
	case '‐', '‑', '‒', '–', '—', '―', '−':
		return '-'
	}
	return r
}
