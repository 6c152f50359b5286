// Package prompt builds the system and user messages sent to the generative
// service. Wording is not part of any contract; the JSON schema appended to
// every system prompt is.
package prompt

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
)

const jsonPreamble = `You must produce one valid JSON object only (no markdown, no commentary). Do not include code fences.`

var schemaCache sync.Map // reflect.Type -> string

// SchemaFor renders the JSON schema of T. Results are cached per type.
func SchemaFor[T any]() string {
	var v T
	typ := reflect.TypeOf(v)
	if s, ok := schemaCache.Load(typ); ok {
		return s.(string)
	}
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		ExpandedStruct:            true,
	}
	b, err := json.MarshalIndent(reflector.Reflect(v), "", "  ")
	if err != nil {
		// schemas are built from static types; failure here is a programming error
		panic(fmt.Sprintf("prompt: schema for %s: %v", typ, err))
	}
	schemaCache.Store(typ, string(b))
	return string(b)
}

// System assembles a system prompt from a role line, numbered rules and the
// response schema.
func System(role string, rules []string, schema string) string {
	var b strings.Builder
	b.WriteString(role)
	b.WriteString(" ")
	b.WriteString(jsonPreamble)
	if len(rules) > 0 {
		b.WriteString("\n\nRequirements:\n")
		for _, r := range rules {
			b.WriteString("- ")
			b.WriteString(r)
			b.WriteString("\n")
		}
	}
	b.WriteString("\nSchema:\n")
	b.WriteString(schema)
	return b.String()
}

// User builds a user message from labelled blocks. Empty blocks are skipped.
type User struct {
	b strings.Builder
}

// Block appends a labelled, fenced block of text.
func (u *User) Block(label, body string) *User {
	body = strings.TrimSpace(body)
	if body == "" {
		return u
	}
	fmt.Fprintf(&u.b, "<%s>\n%s\n</%s>\n\n", label, body, label)
	return u
}

// Line appends one formatted line.
func (u *User) Line(format string, args ...any) *User {
	fmt.Fprintf(&u.b, format, args...)
	u.b.WriteString("\n")
	return u
}

// List appends a labelled bullet list. Empty lists are skipped.
func (u *User) List(label string, items []string) *User {
	if len(items) == 0 {
		return u
	}
	u.b.WriteString(label)
	u.b.WriteString(":\n")
	for i, it := range items {
		fmt.Fprintf(&u.b, "%d. %s\n", i+1, it)
	}
	u.b.WriteString("\n")
	return u
}

// JSON appends v as an indented JSON block.
func (u *User) JSON(label string, v any) *User {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return u
	}
	return u.Block(label, string(b))
}

func (u *User) String() string {
	return strings.TrimSpace(u.b.String())
}
