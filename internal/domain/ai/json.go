package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const maxRawInError = 256

// ExtractJSON recovers the first JSON object from a completion. Providers are
// not guaranteed to honour JSON mode, so code fences and leading or trailing
// prose are tolerated.
func ExtractJSON(text string) (string, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return "", ErrEmptyResponse
	}
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```JSON")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", errors.New("no JSON object found")
	}
	end := matchingBrace(s, start)
	if end < 0 {
		return "", errors.New("unterminated JSON object")
	}
	return s[start : end+1], nil
}

// matchingBrace returns the index of the brace closing the one at start,
// skipping braces inside string literals.
func matchingBrace(s string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// DecodeJSON extracts and unmarshals a completion into out. Failures come back
// as *ParseError so callers can retry them.
func DecodeJSON(purpose, text string, out any) error {
	raw, err := ExtractJSON(text)
	if err != nil {
		return &ParseError{Purpose: purpose, Raw: truncate(text), Err: err}
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return &ParseError{Purpose: purpose, Raw: truncate(text), Err: fmt.Errorf("unmarshal: %w", err)}
	}
	return nil
}

func truncate(s string) string {
	if len(s) <= maxRawInError {
		return s
	}
	return s[:maxRawInError] + "..."
}
