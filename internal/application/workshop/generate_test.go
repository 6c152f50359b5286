package workshop_test

import (
	"context"
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/bryanwahyu/essay-workshop/internal/application/workshop"
	"github.com/bryanwahyu/essay-workshop/internal/domain/ai"
	"github.com/bryanwahyu/essay-workshop/internal/domain/ai/aitest"
	"github.com/bryanwahyu/essay-workshop/internal/domain/essay"
	"github.com/bryanwahyu/essay-workshop/internal/domain/library"
)

var _ = Describe("Generator", func() {
	var (
		fake   *aitest.Fake
		g      *workshop.Generator
		bundle workshop.Bundle
	)

	BeforeEach(func() {
		fake = aitest.New()
		g = workshop.NewGenerator(newCaller(fake))
		diag := essay.Diagnosis{Symptom: essay.SymptomClicheMetaphor, MissingElements: []essay.Element{essay.ElementSensoryDetail}}
		bundle = workshop.NewContextAssembler(library.MustLoad()).
			Assemble(locate(essayText, original), original+".", diag, essay.WorkshopContext{}, rand.New(rand.NewSource(3)))
	})

	It("returns the three variants in canonical order", func() {
		fake.OnJSON(workshop.PurposeGenerate, suggestions(goodConservative, goodVoice, goodDivergent))

		out, _, err := g.Generate(context.Background(), bundle)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(HaveLen(3))
		Expect(out[0].Type).To(Equal(essay.SuggestionConservative))
		Expect(out[0].Text).To(Equal(goodConservative))
		Expect(out[1].Type).To(Equal(essay.SuggestionVoiceAmplified))
		Expect(out[2].Type).To(Equal(essay.SuggestionDivergent))
		Expect(out[2].Strategy).To(Equal(bundle.Divergent.ID))
		Expect(out[0].Strategy).To(BeEmpty())
	})

	It("puts the strategy and excerpt into the prompt", func() {
		fake.OnJSON(workshop.PurposeGenerate, suggestions(goodConservative, goodVoice, goodDivergent))

		_, _, err := g.Generate(context.Background(), bundle)
		Expect(err).NotTo(HaveOccurred())
		req := fake.Calls()[0]
		Expect(req.User).To(ContainSubstring(original))
		Expect(req.User).To(ContainSubstring(bundle.Divergent.Directive))
		Expect(req.JSONMode).To(BeTrue())
	})

	It("rejects a response missing a variant", func() {
		fake.OnJSON(workshop.PurposeGenerate, map[string]any{"suggestions": []map[string]any{
			{"type": "conservative", "text": goodConservative, "rationale": rationale},
			{"type": "divergent", "text": goodDivergent, "rationale": rationale},
		}})

		_, _, err := g.Generate(context.Background(), bundle)
		Expect(ai.IsParseError(err)).To(BeTrue())
		sf, ok := essay.AsStageFailed(err)
		Expect(ok).To(BeTrue())
		Expect(sf.Analyzer).To(Equal(workshop.PurposeGenerate))
		Expect(fake.Count(workshop.PurposeGenerate)).To(Equal(3))
	})

	It("regenerates a single variant from a critique", func() {
		fake.OnJSON(workshop.PurposeRegenerate, map[string]any{"text": goodDivergent, "rationale": rationale})
		prev := essay.Suggestion{Text: original, Type: essay.SuggestionDivergent, Strategy: bundle.Divergent.ID}
		v := essay.ValidationResult{Failures: []essay.ValidationFailure{
			{RuleID: workshop.RuleUnchanged, Severity: essay.FailureError, Message: "suggestion repeats the original", Fix: "Change the wording."},
			{RuleID: workshop.RuleLengthRatio, Severity: essay.FailureWarning, Message: "too long"},
		}}
		c := workshop.NewCritique(1, prev, v)
		Expect(c.Instructions).To(Equal([]string{"Change the wording.", "too long"}))

		next, _, err := g.Regenerate(context.Background(), bundle, prev, c)
		Expect(err).NotTo(HaveOccurred())
		Expect(next.Text).To(Equal(goodDivergent))
		Expect(next.Type).To(Equal(essay.SuggestionDivergent))
		Expect(next.Strategy).To(Equal(bundle.Divergent.ID))
		Expect(fake.Calls()[0].User).To(ContainSubstring("Change the wording."))
	})
})
