package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bryanwahyu/essay-workshop/internal/domain/essay"
)

func TestHelpers(t *testing.T) {
	assert.Equal(t, "-", stringOrDash(""))
	assert.Equal(t, "", dashToEmpty("-"))
	assert.Equal(t, "{}", jsonOrWrap(" "))
	assert.JSONEq(t, `{"raw":"{oops"}`, jsonOrWrap("{oops"))
	assert.Equal(t, essay.TierMasterful, parseTier("masterful"))
}

func TestSchemaCreatesBothTables(t *testing.T) {
	assert.Contains(t, schema, "CREATE TABLE IF NOT EXISTS essay_analyses")
	assert.Contains(t, schema, "CREATE TABLE IF NOT EXISTS essay_run_errors")
}
