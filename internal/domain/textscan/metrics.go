package textscan

import (
	"math"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/bryanwahyu/essay-workshop/internal/domain/essay"
	"github.com/bryanwahyu/essay-workshop/internal/domain/library"
)

var (
	wordRE   = regexp.MustCompile(`[A-Za-z0-9][A-Za-z0-9'’\-]*`)
	numberRE = regexp.MustCompile(`\b\d+(?:[.,]\d+)?\b`)
	quoteRE  = regexp.MustCompile(`["“][^"”]{3,}["”]`)
)

var firstPerson = map[string]bool{"i": true, "me": true, "my": true, "mine": true, "myself": true}

// not adverbs despite the -ly ending
var lyExceptions = map[string]bool{
	"only": true, "family": true, "early": true, "reply": true, "apply": true,
	"supply": true, "holy": true, "ugly": true, "july": true, "italy": true,
	"belly": true, "rally": true, "daily": true, "likely": true, "lonely": true,
	"friendly": true, "lovely": true, "silly": true, "jelly": true, "bully": true,
	"ally": true, "fly": true, "emily": true, "lily": true, "sally": true,
	"assembly": true, "monopoly": true, "anomaly": true, "butterfly": true,
}

// Words tokenizes text into words.
func Words(text string) []string {
	return wordRE.FindAllString(text, -1)
}

// Metrics computes the deterministic grammar pass. It never fails.
func Metrics(text string, lib *library.Library) essay.GrammarMetrics {
	sentences := SplitSentences(text)
	words := Words(text)
	m := essay.GrammarMetrics{
		WordCount:      len(words),
		SentenceCount:  len(sentences),
		ParagraphCount: CountParagraphs(text),
	}
	if len(words) == 0 {
		return m
	}

	lengths := make([]float64, len(sentences))
	prevStarter := ""
	for i, s := range sentences {
		sw := Words(s.Text)
		lengths[i] = float64(len(sw))
		if len(sw) > m.LongestSentence {
			m.LongestSentence = len(sw)
		}
		if len(sw) > 0 {
			starter := strings.ToLower(sw[0])
			if starter == prevStarter {
				m.RepeatedStarters++
			}
			prevStarter = starter
		}
	}
	m.AvgSentenceWords, m.SentenceLengthSD = meanSD(lengths)

	letters, fp, contractions, proper := 0, 0, 0, 0
	for i, w := range words {
		lw := strings.ToLower(w)
		letters += utf8.RuneCountInString(w)
		if firstPerson[lw] {
			fp++
		}
		if strings.ContainsAny(w, "'’") && len(w) > 2 {
			contractions++
		}
		if strings.HasSuffix(lw, "ly") && len(lw) > 4 && !lyExceptions[lw] {
			m.AdverbCount++
		}
		if i > 0 && lw != "i" && startsUpper(w) && !sentenceInitial(w, sentences) {
			proper++
		}
	}
	n := float64(len(words))
	m.AvgWordLength = round1(float64(letters) / n)
	m.FirstPersonRatio = round3(float64(fp) / n)
	m.ContractionRatio = round3(float64(contractions) / n)

	m.PassiveCount = len(lib.PassiveMatches(text))
	m.FillerCount = lib.FillerWords.Count(text)
	m.WeakVerbCount = lib.WeakVerbs.Count(text)
	m.AbstractNounCount = lib.AbstractNouns.Count(text)
	m.SensoryWordCount = lib.SensoryWords.Count(text)
	m.HasDialogue = quoteRE.MatchString(text)
	m.EssaySpeakPhrases = lib.EssaySpeak.FindAll(text)
	m.ClichePhrases = lib.Cliches.FindAll(text)

	numbers := len(numberRE.FindAllString(text, -1))
	m.SpecificityDensity = round1(float64(m.SensoryWordCount+numbers+proper) * 100 / n)
	m.VoiceBaseline = VoiceBaseline(m)
	m.CraftScore = CraftScore(m)
	return m
}

// VoiceBaseline is a deterministic ceiling for the voice score: essay-speak
// and clichés per sentence pull it down, abstract nouns cost a little, and
// dialogue or contractions earn a small bonus.
func VoiceBaseline(m essay.GrammarMetrics) float64 {
	if m.WordCount == 0 {
		return 0
	}
	sentences := math.Max(1, float64(m.SentenceCount))
	hits := float64(len(m.EssaySpeakPhrases)) + 0.7*float64(len(m.ClichePhrases))
	density := hits / sentences
	score := 10 - 12*density - 0.5*math.Min(hits, 6)
	abstractPer100 := float64(m.AbstractNounCount) * 100 / float64(m.WordCount)
	score -= math.Min(2, abstractPer100*0.3)
	if m.HasDialogue || m.ContractionRatio > 0.01 {
		score += 0.5
	}
	return clamp10(score)
}

// CraftScore is the deterministic prose-craft score.
func CraftScore(m essay.GrammarMetrics) float64 {
	if m.WordCount == 0 || m.SentenceCount == 0 {
		return 0
	}
	n := float64(m.WordCount)
	s := float64(m.SentenceCount)
	score := 8.0
	score -= float64(m.PassiveCount) / s * 6
	score -= float64(m.FillerCount) * 100 / n * 0.4
	score -= float64(m.WeakVerbCount) * 100 / n * 0.15
	score -= float64(m.RepeatedStarters) / s * 4
	if m.SentenceCount >= 4 && m.SentenceLengthSD >= 4 && m.SentenceLengthSD <= 12 {
		score += 1
	}
	switch {
	case m.AvgSentenceWords > 28:
		score -= 1.5
	case m.AvgSentenceWords < 8:
		score -= 1
	}
	return clamp10(score)
}

// FindEssaySpeak returns the essay-speak phrases in text.
func FindEssaySpeak(text string, lib *library.Library) []string {
	return lib.EssaySpeak.FindAll(text)
}

// FindCliches returns the clichés in text.
func FindCliches(text string, lib *library.Library) []string {
	return lib.Cliches.FindAll(text)
}

// IsPassive reports whether text contains a passive construction.
func IsPassive(text string, lib *library.Library) bool {
	return len(lib.PassiveMatches(text)) > 0
}

// Fingerprint is a small feature vector describing how a text sounds.
type Fingerprint struct {
	SentenceLength float64
	WordLength     float64
	FirstPerson    float64
	Contractions   float64
}

// FingerprintOf reduces text to its Fingerprint, each feature in [0,1].
func FingerprintOf(text string) Fingerprint {
	words := Words(text)
	if len(words) == 0 {
		return Fingerprint{}
	}
	sentences := SplitSentences(text)
	letters, fp, contractions := 0, 0, 0
	for _, w := range words {
		letters += utf8.RuneCountInString(w)
		if firstPerson[strings.ToLower(w)] {
			fp++
		}
		if strings.ContainsAny(w, "'’") && len(w) > 2 {
			contractions++
		}
	}
	n := float64(len(words))
	return Fingerprint{
		SentenceLength: unit(n / math.Max(1, float64(len(sentences))) / 30),
		WordLength:     unit(float64(letters) / n / 8),
		FirstPerson:    unit(float64(fp) / n * 5),
		Contractions:   unit(float64(contractions) / n * 20),
	}
}

// StyleDistance measures the voice shift between two texts in [0,1]; zero
// means indistinguishable by fingerprint.
func StyleDistance(a, b string) float64 {
	fa, fb := FingerprintOf(a), FingerprintOf(b)
	d := math.Abs(fa.SentenceLength-fb.SentenceLength) +
		math.Abs(fa.WordLength-fb.WordLength) +
		math.Abs(fa.FirstPerson-fb.FirstPerson) +
		math.Abs(fa.Contractions-fb.Contractions)
	return round3(d / 4)
}

func unit(v float64) float64 { return math.Max(0, math.Min(1, v)) }

func sentenceInitial(word string, sentences []Sentence) bool {
	for _, s := range sentences {
		trimmed := strings.TrimLeft(s.Text, `"'“‘(`)
		if strings.HasPrefix(trimmed, word) {
			return true
		}
	}
	return false
}

func startsUpper(w string) bool {
	r, _ := utf8.DecodeRuneInString(w)
	return unicode.IsUpper(r)
}

func meanSD(xs []float64) (float64, float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	var sq float64
	for _, x := range xs {
		sq += (x - mean) * (x - mean)
	}
	return round1(mean), round1(math.Sqrt(sq / float64(len(xs))))
}

func clamp10(v float64) float64 {
	return round1(math.Max(0, math.Min(10, v)))
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round3(v float64) float64 { return math.Round(v*1000) / 1000 }
