package ai

import (
	"errors"
	"fmt"
)

// ErrQuotaExceeded indicates the AI provider returned a quota/limit error (HTTP 429 or similar).
var ErrQuotaExceeded = errors.New("ai quota exceeded")

// ErrEmptyResponse is returned when the provider answered without any content.
var ErrEmptyResponse = errors.New("ai returned an empty response")

// ErrTransient marks provider failures worth retrying (5xx, connection resets).
var ErrTransient = errors.New("ai transient failure")

// ErrRejected marks requests the provider refused outright (4xx other than
// 429). Retrying them cannot help.
var ErrRejected = errors.New("ai request rejected")

// ParseError is returned when a response cannot be decoded into the expected
// structure. Raw holds a truncated copy of the offending text.
type ParseError struct {
	Purpose string
	Raw     string
	Err     error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s response: %v", e.Purpose, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsParseError reports whether err wraps a *ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
