package runerrors

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/bryanwahyu/essay-workshop/internal/domain/essay"
)

func TestFromStageFailure(t *testing.T) {
	at := time.Now()
	err := fmt.Errorf("run: %w", &essay.StageFailedError{
		Stage: essay.StageAnalyzers, Analyzer: "climax", Attempts: 3, Err: errors.New("bad json"),
	})

	e := FromError("acme", "a-1", err, at)
	assert.Equal(t, essay.StageAnalyzers, e.Stage)
	assert.Equal(t, "climax", e.Analyzer)
	assert.Equal(t, 3, e.Attempts)
	assert.JSONEq(t, `{"cause":"bad json"}`, e.DetailsJSON)
	assert.Equal(t, at, e.CreatedAt)
}

func TestFromStructuralError(t *testing.T) {
	e := FromError("acme", "a-1", &essay.StructuralError{What: "dimensions", Want: 12, Got: 11}, time.Now())
	assert.Equal(t, "structural", e.Stage)
	assert.Empty(t, e.Analyzer)
}
