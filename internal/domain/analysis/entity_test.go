package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/essay-workshop/internal/domain/essay"
)

func TestRecordRoundTripsTheResult(t *testing.T) {
	res := &essay.AnalysisResult{
		ID:        "a-1",
		EssayType: essay.TypePersonalStatement,
		WordCount: 412,
		Insights:  essay.SynthesizedInsights{AggregateScore: 72.5, Percentile: 61},
		Degraded:  true,
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	rec, err := NewRecord("acme", "essay text", res)
	require.NoError(t, err)
	assert.Equal(t, ID("a-1"), rec.ID)
	assert.Equal(t, essay.TierAdvanced, rec.Tier)
	assert.Equal(t, 61, rec.Percentile)
	assert.True(t, rec.Degraded)
	assert.Equal(t, "essay text", rec.Text)

	back, err := rec.Decode()
	require.NoError(t, err)
	assert.Equal(t, res.ID, back.ID)
	assert.Equal(t, res.WordCount, back.WordCount)
	assert.True(t, back.CreatedAt.Equal(res.CreatedAt))
}

func TestDecodeRejectsCorruptRows(t *testing.T) {
	_, err := (&Record{ID: "x", Result: "{"}).Decode()
	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		page, size, wantPage, wantSize int
	}{
		{0, 0, 1, 20},
		{3, 10, 3, 10},
		{-1, 500, 1, 100},
	}
	for _, tt := range tests {
		p, s := Normalize(tt.page, tt.size)
		assert.Equal(t, tt.wantPage, p)
		assert.Equal(t, tt.wantSize, s)
	}
	assert.Equal(t, 3, TotalPages(41, 20))
	assert.Equal(t, 0, TotalPages(0, 20))
}
