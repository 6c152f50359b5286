package postgres

import (
	"encoding/json"
	"strings"

	"github.com/bryanwahyu/essay-workshop/internal/domain/essay"
)

// stringOrDash returns "-" when the input is empty/whitespace
func stringOrDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func dashToEmpty(s string) string {
	if s == "-" {
		return ""
	}
	return s
}

// jsonOrWrap makes sure details is valid JSONB input.
func jsonOrWrap(details string) string {
	if strings.TrimSpace(details) == "" {
		return "{}"
	}
	var js any
	if json.Unmarshal([]byte(details), &js) != nil {
		b, _ := json.Marshal(map[string]string{"raw": details})
		return string(b)
	}
	return details
}

func parseTier(s string) essay.Tier {
	var t essay.Tier
	_ = t.UnmarshalText([]byte(s))
	return t
}
