package workshop_test

import (
	"context"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/bryanwahyu/essay-workshop/internal/application/workshop"
	"github.com/bryanwahyu/essay-workshop/internal/domain/ai"
	"github.com/bryanwahyu/essay-workshop/internal/domain/ai/aitest"
	"github.com/bryanwahyu/essay-workshop/internal/domain/essay"
	"github.com/bryanwahyu/essay-workshop/internal/domain/library"
)

var _ = Describe("Editor", func() {
	var (
		ctx  context.Context
		fake *aitest.Fake
		cfg  workshop.Config
		loc  essay.Locator
		wctx essay.WorkshopContext
	)

	run := func(locs ...essay.Locator) (*essay.WorkshopResult, error) {
		ed := workshop.NewEditor(newCaller(fake), library.MustLoad(), cfg)
		return ed.GenerateSuggestions(ctx, essayText, locs, wctx)
	}

	BeforeEach(func() {
		ctx = context.Background()
		fake = aitest.New()
		fake.OnJSON(workshop.PurposeDiagnose, diagnosis())
		fake.OnJSON(workshop.PurposeGenerate, suggestions(goodConservative, goodVoice, goodDivergent))
		cfg = workshop.Config{Concurrency: 2, MaxCritiques: 1, Refine: workshop.RefineConfig{Enabled: false}}
		loc = locate(essayText, original)
		wctx = essay.WorkshopContext{Aggregate: 60, Theme: "care", Seed: 42}
	})

	It("returns three ranked, validated suggestions per item", func() {
		res, err := run(loc)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Tier).To(Equal(essay.TierProficient))
		Expect(res.Skipped).To(BeEmpty())
		Expect(res.Items).To(HaveLen(1))

		item := res.Items[0]
		Expect(item.Locator).To(Equal(loc))
		Expect(item.Diagnosis.Symptom).To(Equal(essay.SymptomClicheMetaphor))
		Expect(item.Suggestions).To(HaveLen(3))
		for i, s := range item.Suggestions {
			Expect(s.Rank).To(Equal(i + 1))
			Expect(s.Validation.Passed).To(BeTrue())
			Expect(s.Validation.Tier).To(Equal(essay.TierProficient))
		}
		Expect(item.Suggestions[0].Suggestion.Type).To(Equal(essay.SuggestionConservative))
		Expect(item.Trace[:3]).To(Equal([]essay.EditState{essay.StateDiagnosed, essay.StateContextAssembled, essay.StateGenerated}))
		Expect(item.Trace[len(item.Trace)-1]).To(Equal(essay.StateFinal))
		Expect(res.Tokens.Total()).To(Equal(30))
	})

	It("defaults the aggregate when no analysis backs the request", func() {
		wctx.Aggregate = 0
		res, err := run(loc)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Tier).To(Equal(essay.TierFor(essay.DefaultAggregate)))
	})

	It("regenerates a failing suggestion with a critique", func() {
		fake.OnJSON(workshop.PurposeGenerate, suggestions(original, goodVoice, goodDivergent))
		fake.OnJSON(workshop.PurposeRegenerate, map[string]any{"text": goodConservative, "rationale": rationale})

		res, err := run(loc)
		Expect(err).NotTo(HaveOccurred())
		item := res.Items[0]
		Expect(fake.Count(workshop.PurposeRegenerate)).To(Equal(1))
		Expect(item.Trace).To(ContainElements(essay.StateValidatedFail, essay.StateCritiqued, essay.StateRegenerated))

		var conservative essay.RankedSuggestion
		for _, s := range item.Suggestions {
			if s.Suggestion.Type == essay.SuggestionConservative {
				conservative = s
			}
		}
		Expect(conservative.Retries).To(Equal(1))
		Expect(conservative.Suggestion.Text).To(Equal(goodConservative))
		Expect(conservative.Validation.Passed).To(BeTrue())
	})

	It("ranks a suggestion that still fails last", func() {
		fake.OnJSON(workshop.PurposeGenerate, suggestions(original, goodVoice, goodDivergent))
		fake.OnJSON(workshop.PurposeRegenerate, map[string]any{"text": original, "rationale": rationale})

		res, err := run(loc)
		Expect(err).NotTo(HaveOccurred())
		last := res.Items[0].Suggestions[2]
		Expect(last.Suggestion.Type).To(Equal(essay.SuggestionConservative))
		Expect(last.Validation.Passed).To(BeFalse())
		Expect(last.Rank).To(Equal(3))
	})

	It("refines passing suggestions and records every pass", func() {
		wctx.Aggregate = 95
		cfg.Refine = workshop.RefineConfig{Enabled: true, TargetScore: 100, MaxPasses: 2, MinImprovement: 2}
		fake.OnJSON(workshop.PurposeGenerate, suggestions(goodVoice, goodVoice, goodVoice))
		fake.On(workshop.PurposeRefine, refined(goodVoice))

		res, err := run(loc)
		Expect(err).NotTo(HaveOccurred())
		item := res.Items[0]
		Expect(item.Trace).To(ContainElement(essay.StateRefined))
		Expect(fake.Count(workshop.PurposeRefine)).To(Equal(3))
		for _, s := range item.Suggestions {
			Expect(s.Refinements).To(HaveLen(1))
			Expect(s.Refinements[0].Adopted).To(BeFalse())
			Expect(s.Suggestion.Text).To(Equal(goodVoice))
		}
	})

	It("never trades a passing suggestion for a failing refinement", func() {
		runOn := "I sat beside her bed in the dim room and counted every pill in the orange bottle twice " +
			"while the radio hummed and she watched me with tired patient eyes."
		cfg.Refine = workshop.RefineConfig{Enabled: true, TargetScore: 100, MaxPasses: 2, MinImprovement: 0}
		fake.On(workshop.PurposeRefine, refined(runOn))

		res, err := run(loc)
		Expect(err).NotTo(HaveOccurred())
		for _, s := range res.Items[0].Suggestions {
			Expect(s.Validation.Passed).To(BeTrue())
			Expect(s.Suggestion.Text).NotTo(Equal(runOn))
			for _, p := range s.Refinements {
				Expect(p.Adopted).To(BeFalse())
			}
		}
	})

	It("skips an item whose locator does not match the text", func() {
		bad := essay.Locator{IssueID: "x", Quote: "nowhere in the essay", Start: 0, End: 20}

		res, err := run(bad, loc)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Items).To(HaveLen(1))
		Expect(res.Skipped).To(HaveLen(1))
		Expect(res.Skipped[0].Stage).To(Equal("locator"))
		Expect(res.Skipped[0].Locator.IssueID).To(Equal("x"))
	})

	It("skips an item whose generation fails", func() {
		fake.On(workshop.PurposeGenerate, aitest.Fail(fmt.Errorf("%w: policy", ai.ErrRejected)))

		res, err := run(loc)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Items).To(BeEmpty())
		Expect(res.Skipped).To(HaveLen(1))
		Expect(res.Skipped[0].Stage).To(Equal(workshop.PurposeGenerate))
	})

	It("returns nothing but the error when cancelled", func() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithCancel(ctx)
		defer cancel()
		fake.On(workshop.PurposeGenerate, func(context.Context, ai.Request) (ai.Response, error) {
			cancel()
			return ai.Response{}, context.Canceled
		})

		res, err := run(loc, loc)
		Expect(err).To(MatchError(context.Canceled))
		Expect(res).To(BeNil())
	})

	It("keeps locator order across concurrent items", func() {
		second := locate(essayText, "the house went quiet")
		second.IssueID = "style-2"

		res, err := run(second, loc)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Items).To(HaveLen(2))
		Expect(res.Items[0].Locator.IssueID).To(Equal("style-2"))
		Expect(res.Items[1].Locator.IssueID).To(Equal("style-1"))
	})
})
