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

func refined(text string) aitest.Handler {
	return aitest.JSON(map[string]any{"text": text, "rationale": rationale, "worth_continuing": true})
}

var _ = Describe("Refiner", func() {
	var (
		ctx       context.Context
		fake      *aitest.Fake
		validator *workshop.AdaptiveValidator
		refiner   *workshop.Refiner
		rc        workshop.RefineContext
		cfg       workshop.RefineConfig
	)

	initial := func(aggregate float64) essay.ValidationResult {
		v, _ := validator.Validate(ctx, mediocre, rationale, rc.VContext, aggregate)
		return v
	}

	BeforeEach(func() {
		ctx = context.Background()
		fake = aitest.New()
		caller := newCaller(fake)
		validator = workshop.NewAdaptiveValidator(workshop.NewValidator(library.MustLoad(), nil, false))
		refiner = workshop.NewRefiner(caller, validator)
		rc = workshop.RefineContext{
			Type:      essay.SuggestionConservative,
			VContext:  workshop.VContext{Original: original},
			Aggregate: 60,
		}
		cfg = workshop.DefaultRefineConfig()
	})

	It("adopts a better pass and stops at the target", func() {
		fake.On(workshop.PurposeRefine, refined(goodConservative))
		start := initial(60)
		Expect(start.Score).To(Equal(75.0))

		res, _, err := refiner.Refine(ctx, mediocre, rationale, start, rc, cfg)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.StopReason).To(Equal(workshop.StopTarget))
		Expect(res.Text).To(Equal(goodConservative))
		Expect(res.FinalScore).To(Equal(90.0))
		Expect(res.OriginalScore).To(Equal(75.0))
		Expect(res.Passes).To(HaveLen(1))
		Expect(res.Passes[0].Adopted).To(BeTrue())
		Expect(res.Passes[0].Goals).NotTo(BeEmpty())
	})

	It("keeps the current version when a pass is worse", func() {
		fake.On(workshop.PurposeRefine, refined(essaySpeak))

		res, _, err := refiner.Refine(ctx, mediocre, rationale, initial(60), rc, cfg)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.StopReason).To(Equal(workshop.StopNoImprovement))
		Expect(res.Text).To(Equal(mediocre))
		Expect(res.FinalScore).To(Equal(res.OriginalScore))
		Expect(res.Passes).To(HaveLen(1))
		Expect(res.Passes[0].Adopted).To(BeFalse())
	})

	It("stops after the pass budget", func() {
		rc.Aggregate = 95
		cfg.TargetScore = 100
		cfg.MaxPasses = 1
		fake.On(workshop.PurposeRefine, refined(goodVoice))

		res, _, err := refiner.Refine(ctx, mediocre, rationale, initial(95), rc, cfg)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.StopReason).To(Equal(workshop.StopMaxPasses))
		Expect(res.Text).To(Equal(goodVoice))
		Expect(res.Passes).To(HaveLen(1))
		Expect(fake.Count(workshop.PurposeRefine)).To(Equal(1))
	})

	Context("when a pass scores higher but fails validation", func() {
		// one 30-word sentence: too long for the tier and 5x the excerpt
		const runOn = "I sat beside her bed in the dim room and counted every pill in the orange bottle twice " +
			"while the radio hummed and she watched me with tired patient eyes."

		BeforeEach(func() {
			fake.On(workshop.PurposeRefine, refined(runOn))
		})

		It("keeps the passing version", func() {
			start := essay.ValidationResult{Passed: true, Score: 30}

			res, _, err := refiner.Refine(ctx, mediocre, rationale, start, rc, cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Passes).To(HaveLen(1))
			Expect(res.Passes[0].Passed).To(BeFalse())
			Expect(res.Passes[0].ImprovedScore).To(BeNumerically(">", res.Passes[0].PreviousScore))
			Expect(res.Passes[0].Adopted).To(BeFalse())
			Expect(res.StopReason).To(Equal(workshop.StopNoImprovement))
			Expect(res.Text).To(Equal(mediocre))
			Expect(res.Validation.Passed).To(BeTrue())
			Expect(res.FinalScore).To(Equal(30.0))
		})

		It("still improves a version that was already failing", func() {
			start := essay.ValidationResult{Passed: false, Score: 30}

			res, _, err := refiner.Refine(ctx, mediocre, rationale, start, rc, cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Passes[0].Adopted).To(BeTrue())
			Expect(res.Text).To(Equal(runOn))
			Expect(res.Validation.Passed).To(BeFalse())
			Expect(res.FinalScore).To(BeNumerically(">", 30.0))
		})
	})

	It("ends quietly when a pass fails", func() {
		fake.On(workshop.PurposeRefine, aitest.Fail(fmt.Errorf("%w: policy", ai.ErrRejected)))

		res, _, err := refiner.Refine(ctx, mediocre, rationale, initial(60), rc, cfg)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.StopReason).To(Equal(workshop.StopFailed))
		Expect(res.Text).To(Equal(mediocre))
		Expect(res.Passes).To(BeEmpty())
	})

	It("returns the context error when cancelled", func() {
		cctx, cancel := context.WithCancel(ctx)
		fake.On(workshop.PurposeRefine, func(context.Context, ai.Request) (ai.Response, error) {
			cancel()
			return ai.Response{}, context.Canceled
		})

		_, _, err := refiner.Refine(cctx, mediocre, rationale, initial(60), rc, cfg)
		Expect(err).To(MatchError(context.Canceled))
	})

	It("does nothing when disabled", func() {
		cfg.Enabled = false
		res, _, err := refiner.Refine(ctx, mediocre, rationale, initial(60), rc, cfg)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.StopReason).To(Equal(workshop.StopDisabled))
		Expect(fake.Count(workshop.PurposeRefine)).To(BeZero())
	})

	DescribeTable("never lowers the score and respects the pass budget",
		func(texts ...string) {
			hs := make([]aitest.Handler, len(texts))
			for i, t := range texts {
				hs[i] = refined(t)
			}
			fake.On(workshop.PurposeRefine, aitest.Sequence(hs...))
			rc.Aggregate = 95
			cfg = workshop.RefineConfig{Enabled: true, TargetScore: 100, MaxPasses: 4, MinImprovement: 0}

			start := initial(95)
			res, _, err := refiner.Refine(ctx, mediocre, rationale, start, rc, cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.FinalScore).To(BeNumerically(">=", res.OriginalScore))
			Expect(len(res.Passes)).To(BeNumerically("<=", cfg.MaxPasses))
			passing := start.Passed
			for _, p := range res.Passes {
				Expect(p.Adopted).To(Equal(p.ImprovedScore > p.PreviousScore && (p.Passed || !passing)))
				if p.Adopted {
					passing = p.Passed
				}
			}
			if start.Passed {
				Expect(res.Validation.Passed).To(BeTrue())
			}
		},
		Entry("improving", goodConservative, goodVoice),
		Entry("regressing", essaySpeak, goodVoice),
		Entry("flat", mediocre, mediocre),
		Entry("mixed", goodVoice, essaySpeak, goodDivergent),
	)

	DescribeTable("Goals",
		func(current float64, failures []essay.ValidationFailure, want int) {
			Expect(workshop.Goals(current, 85, failures)).To(HaveLen(want))
		},
		Entry("wide gap", 60.0, nil, 3),
		Entry("medium gap", 75.0, nil, 2),
		Entry("narrow gap", 82.0, nil, 1),
		Entry("fixes come first", 82.0, []essay.ValidationFailure{{RuleID: workshop.RuleCliche, Fix: "Replace the stock image."}, {RuleID: workshop.RuleNuance}}, 2),
	)
})
