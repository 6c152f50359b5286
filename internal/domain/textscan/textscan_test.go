package textscan

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/essay-workshop/internal/domain/essay"
	"github.com/bryanwahyu/essay-workshop/internal/domain/library"
)

func TestSplitSentences(t *testing.T) {
	text := "Dr. Smith arrived. He sat down!\nNew para? Yes."
	got := SplitSentences(text)
	require.Len(t, got, 4)

	want := []string{"Dr. Smith arrived.", "He sat down!", "New para?", "Yes."}
	for i, s := range got {
		assert.Equal(t, want[i], s.Text)
		assert.Equal(t, i, s.Index)
		assert.Equal(t, s.Text, text[s.Start:s.End])
	}
	assert.Equal(t, 0, got[1].Paragraph)
	assert.Equal(t, 1, got[2].Paragraph)
	assert.Equal(t, 1, got[3].Paragraph)
}

func TestSplitSentencesEdgeCases(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"empty", "", nil},
		{"no terminator", "just words here", []string{"just words here"}},
		{"initials", "J. R. Tolkien wrote it. Then he slept.", []string{"J. R. Tolkien wrote it.", "Then he slept."}},
		{"quoted close", `"Stop!" she said. I stopped.`, []string{`"Stop!"`, "she said.", "I stopped."}},
		{"decimal", "It cost 3.50 dollars. Cheap.", []string{"It cost 3.50 dollars.", "Cheap."}},
		{"ellipsis", "I waited... Nothing came.", []string{"I waited...", "Nothing came."}},
		{"blank lines", "One.\n\n\nTwo.", []string{"One.", "Two."}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var texts []string
			for _, s := range SplitSentences(tt.text) {
				texts = append(texts, s.Text)
			}
			assert.Equal(t, tt.want, texts)
		})
	}
}

func TestBlankLinesDoNotSkipParagraphNumbers(t *testing.T) {
	got := SplitSentences("One.\n\n\nTwo.\n\nThree.")
	require.Len(t, got, 3)
	assert.Equal(t, []int{0, 1, 2}, []int{got[0].Paragraph, got[1].Paragraph, got[2].Paragraph})
	assert.Equal(t, 3, CountParagraphs("One.\n\n\nTwo.\n\nThree."))
}

func TestSectionFor(t *testing.T) {
	b := DefaultBounds
	want := []essay.Section{
		essay.SectionOpening, essay.SectionOpening,
		essay.SectionBody, essay.SectionBody,
		essay.SectionClimax, essay.SectionClimax, essay.SectionClimax,
		essay.SectionBody,
		essay.SectionConclusion, essay.SectionConclusion,
	}
	for i, w := range want {
		assert.Equal(t, w, b.SectionFor(i, 10), "index %d", i)
	}

	assert.Equal(t, essay.SectionOpening, b.SectionFor(0, 1))
	assert.Equal(t, essay.SectionConclusion, b.SectionFor(1, 2))
	assert.Equal(t, essay.SectionBody, b.SectionFor(5, 3))
}

func TestSectionBoundsValidate(t *testing.T) {
	require.NoError(t, DefaultBounds.Validate())
	bad := DefaultBounds
	bad.ClimaxEnd = 0.3
	assert.Error(t, bad.Validate())
}

func TestSectionTextFallsBackToWholeText(t *testing.T) {
	text := "Only one sentence."
	ss := SplitSentences(text)
	assert.Equal(t, text, DefaultBounds.SectionText(text, ss, essay.SectionClimax))
	assert.Len(t, DefaultBounds.SectionSlice(ss, essay.SectionOpening), 1)
}

func TestMetricsFlagsEssaySpeak(t *testing.T) {
	lib := library.MustLoad()
	text := "I have always been passionate about helping others. I want to make a difference in my community. " +
		"This experience taught me the importance of hard work and dedication."

	m := Metrics(text, lib)
	assert.GreaterOrEqual(t, len(m.EssaySpeakPhrases), 1)
	assert.Contains(t, m.EssaySpeakPhrases, "i have always been passionate")
	assert.Less(t, m.VoiceBaseline, 5.0)
	assert.Equal(t, 3, m.SentenceCount)
	assert.Greater(t, m.FirstPersonRatio, 0.0)
}

func TestMetricsConcreteWritingScoresHigher(t *testing.T) {
	lib := library.MustLoad()
	generic := Metrics("I have always been passionate about helping others. It changed my life.", lib)
	concrete := Metrics("The shop smelled of grease and burnt coffee. Dad handed me a 10mm wrench. "+
		`"Don't strip it," he said, and I didn't.`, lib)

	assert.Greater(t, concrete.VoiceBaseline, generic.VoiceBaseline)
	assert.True(t, concrete.HasDialogue)
	assert.Greater(t, concrete.SensoryWordCount, 0)
	assert.Greater(t, concrete.SpecificityDensity, generic.SpecificityDensity)
}

func TestMetricsIdempotent(t *testing.T) {
	lib := library.MustLoad()
	text := strings.Repeat("I was told to wait. The hallway was cold and very quiet. ", 5)
	first := Metrics(text, lib)
	second := Metrics(text, lib)
	assert.Equal(t, first, second)
	assert.Equal(t, SplitSentences(text), SplitSentences(text))
	assert.Greater(t, first.PassiveCount, 0)
	assert.Greater(t, first.FillerCount, 0)
}

func TestMetricsEmptyText(t *testing.T) {
	m := Metrics("   ", library.MustLoad())
	assert.Zero(t, m.WordCount)
	assert.Zero(t, m.VoiceBaseline)
	assert.Zero(t, CraftScore(m))
}

func TestScoresStayInRange(t *testing.T) {
	lib := library.MustLoad()
	texts := []string{
		"a",
		strings.Repeat("I really just basically got very tired. ", 30),
		strings.Repeat("It was a roller coaster of emotions at the end of the day. ", 10),
	}
	for _, text := range texts {
		m := Metrics(text, lib)
		assert.GreaterOrEqual(t, m.VoiceBaseline, 0.0)
		assert.LessOrEqual(t, m.VoiceBaseline, 10.0)
		assert.GreaterOrEqual(t, m.CraftScore, 0.0)
		assert.LessOrEqual(t, m.CraftScore, 10.0)
	}
}

func TestStyleDistance(t *testing.T) {
	a := "I couldn't breathe. My hands shook."
	assert.Zero(t, StyleDistance(a, a))

	b := "Consequently, the institutional administration determined that comprehensive restructuring was unavoidable given prevailing circumstances."
	d := StyleDistance(a, b)
	assert.Greater(t, d, 0.2)
	assert.LessOrEqual(t, d, 1.0)
	assert.Equal(t, d, StyleDistance(b, a))
}

func TestPatternHelpers(t *testing.T) {
	lib := library.MustLoad()
	assert.True(t, IsPassive("The award was given to me.", lib))
	assert.False(t, IsPassive("I grabbed the award.", lib))
	assert.Equal(t, []string{"a plethora of emotions"}, FindCliches("It was a plethora of emotions.", lib))
	assert.Empty(t, FindEssaySpeak("The bus left at noon.", lib))
}
