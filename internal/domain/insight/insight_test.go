package insight

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/essay-workshop/internal/domain/essay"
	"github.com/bryanwahyu/essay-workshop/internal/domain/textscan"
)

const text = "The bell rang. I froze at the door. My hands were shaking. Nobody moved. " +
	"Then Mr. Ortiz laughed. I laughed too. We sat down. I learned that fear is loud. " +
	"I still hear the bell. It rings for me now."

func TestGenerateMatchesAndRanks(t *testing.T) {
	dims := []essay.DimensionScore{
		{Dimension: essay.DimOpeningHook, Score: 4, Weight: 0.1},
		{Dimension: essay.DimReflectionInsight, Score: 3, Weight: 0.1},
	}
	issues := []essay.Issue{
		{ID: "1", Quote: "we sat down", Severity: essay.SeverityOptimization, Dimension: essay.DimNarrativeArc},
		{ID: "2", Quote: "The bell rang.", Severity: essay.SeverityWarning, Dimension: essay.DimOpeningHook},
		{ID: "3", Quote: "i learned that fear is loud", Severity: essay.SeverityCritical, Dimension: essay.DimReflectionInsight, ImpactEstimate: "+1.5 points"},
		{ID: "4", Quote: "this sentence is not in the essay", Severity: essay.SeverityCritical},
	}

	got := New(textscan.DefaultBounds).Generate(text, issues, dims)
	require.Len(t, got, 3)

	assert.Equal(t, "3", got[0].Issue.ID)
	assert.Equal(t, 7, got[0].SentenceIndex)
	assert.Equal(t, essay.SectionBody, got[0].Section)
	assert.InDelta(t, 40+7*0.1*10+7.5, got[0].Priority, 1e-9)

	assert.Equal(t, "2", got[1].Issue.ID)
	assert.Equal(t, 0, got[1].SentenceIndex)
	assert.Equal(t, essay.SectionOpening, got[1].Section)
	assert.InDelta(t, 25+6*0.1*10+8, got[1].Priority, 1e-9)

	assert.Equal(t, "1", got[2].Issue.ID)
}

func TestGenerateReturnsAtMostTen(t *testing.T) {
	var issues []essay.Issue
	for i := 0; i < 25; i++ {
		issues = append(issues, essay.Issue{ID: fmt.Sprint(i), Quote: "bell", Severity: essay.SeverityWarning})
	}
	got := New(textscan.DefaultBounds).Generate(text, issues, nil)
	require.Len(t, got, DefaultLimit)
	for i, in := range got {
		assert.Equal(t, fmt.Sprint(i), in.Issue.ID, "ties keep input order")
	}
}

func TestGenerateIsDeterministic(t *testing.T) {
	issues := []essay.Issue{
		{ID: "a", Quote: "Nobody moved", Severity: essay.SeverityWarning},
		{ID: "b", Quote: "IT RINGS FOR ME NOW", Severity: essay.SeverityWarning},
	}
	g := New(textscan.DefaultBounds)
	first := g.Generate(text, issues, nil)
	assert.Equal(t, first, g.Generate(text, issues, nil))
	require.Len(t, first, 2)
	assert.Equal(t, "b", first[0].Issue.ID)
	assert.Equal(t, essay.SectionConclusion, first[0].Section)
}

func TestParseImpact(t *testing.T) {
	tests := map[string]float64{
		"":              0,
		"+0.8 points":   0.8,
		"about 2":       2,
		"high":          0,
		"12":            5,
		"-3":            0,
		"raises by 1.5": 1.5,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseImpact(in), in)
	}
}

func TestGenerateEmptyInputs(t *testing.T) {
	g := New(textscan.DefaultBounds)
	assert.Nil(t, g.Generate("", []essay.Issue{{Quote: "x"}}, nil))
	assert.Nil(t, g.Generate(strings.Repeat("word ", 10), nil, nil))
}
