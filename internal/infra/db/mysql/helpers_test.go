package mysql

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bryanwahyu/essay-workshop/internal/domain/essay"
)

func TestStringOrDash(t *testing.T) {
	assert.Equal(t, "-", stringOrDash("  "))
	assert.Equal(t, "acme", stringOrDash("acme"))
	assert.Equal(t, "", dashToEmpty("-"))
	assert.Equal(t, "x", dashToEmpty("x"))
}

func TestJSONOrWrap(t *testing.T) {
	assert.Equal(t, "{}", jsonOrWrap(""))
	assert.Equal(t, `{"cause":"x"}`, jsonOrWrap(`{"cause":"x"}`))
	assert.JSONEq(t, `{"raw":"not json"}`, jsonOrWrap("not json"))
}

func TestParseTier(t *testing.T) {
	assert.Equal(t, essay.TierExceptional, parseTier("exceptional"))
	assert.Equal(t, essay.TierFoundation, parseTier("bogus"))
}

func TestSchemaStatements(t *testing.T) {
	stmts := statements(schema)
	assert.Len(t, stmts, 2)
	assert.Contains(t, stmts[0], "essay_analyses")
	assert.Contains(t, stmts[1], "essay_run_errors")
}
