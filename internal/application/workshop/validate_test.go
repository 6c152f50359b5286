package workshop_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/bryanwahyu/essay-workshop/internal/application/workshop"
	"github.com/bryanwahyu/essay-workshop/internal/domain/ai/aitest"
	"github.com/bryanwahyu/essay-workshop/internal/domain/essay"
	"github.com/bryanwahyu/essay-workshop/internal/domain/library"
)

var _ = Describe("Validator", func() {
	var (
		ctx context.Context
		lib *library.Library
		vc  workshop.VContext
	)

	BeforeEach(func() {
		ctx = context.Background()
		lib = library.MustLoad()
		vc = workshop.VContext{Original: original, Missing: []essay.Element{essay.ElementSensoryDetail}}
	})

	Context("deterministic checks only", func() {
		var v *workshop.Validator

		BeforeEach(func() {
			v = workshop.NewValidator(lib, nil, true)
		})

		It("passes a concrete rewrite", func() {
			res, usage := v.Validate(ctx, goodConservative, rationale, vc)
			Expect(res.Passed).To(BeTrue())
			Expect(res.Failures).To(BeEmpty())
			Expect(res.Score).To(BeNumerically(">", 90))
			Expect(usage.Total()).To(BeZero())
		})

		DescribeTable("blocking failures",
			func(text, rule string) {
				res, _ := v.Validate(ctx, text, rationale, vc)
				Expect(res.Passed).To(BeFalse())
				Expect(ruleIDs(res)).To(ContainElement(rule))
			},
			Entry("empty", "   ", workshop.RuleEmpty),
			Entry("unchanged", "it was  a plethora of EMOTIONS", workshop.RuleUnchanged),
			Entry("essay-speak", essaySpeak, workshop.RuleEssaySpeak),
			Entry("banned phrase", "Needless to say, I cried at the kitchen table.", workshop.RuleBannedPhrase),
			Entry("far too long", "I sat on the cold kitchen floor for an hour and counted every pill in the orange bottle twice because I could not think of anything else to do.", workshop.RuleLengthRatio),
		)

		It("does not blame a rewrite for phrases the original already had", func() {
			failures := v.PreCheck("It was a plethora of emotions and cold rain", rationale, vc)
			for _, f := range failures {
				Expect(f.RuleID).NotTo(Equal(workshop.RuleCliche))
			}
		})

		It("warns about a new cliche and a missing element", func() {
			res, _ := v.Validate(ctx, "It was a plethora of feelings", rationale, vc)
			Expect(ruleIDs(res)).To(ContainElements(workshop.RuleCliche, workshop.RuleMissingElement))
			Expect(res.HasErrors()).To(BeFalse())
		})

		It("accepts an element claimed in the rationale", func() {
			failures := v.PreCheck("I sat by her bed and said nothing.", "Adds a sensory beat so the reader feels the silence in the room.", vc)
			Expect(failures).To(BeEmpty())
		})

		It("warns about a thin rationale", func() {
			failures := v.PreCheck(goodConservative, "Better.", vc)
			Expect(failures).To(HaveLen(1))
			Expect(failures[0].RuleID).To(Equal(workshop.RuleRationaleDepth))
			Expect(failures[0].Severity).To(Equal(essay.FailureWarning))
		})
	})

	Context("with the nuance check", func() {
		var (
			fake *aitest.Fake
			v    *workshop.Validator
		)

		BeforeEach(func() {
			fake = aitest.New()
			fake.OnJSON(workshop.PurposeValidate, map[string]any{"score": 40, "concerns": []string{"the ending is abrupt", " "}})
			v = workshop.NewValidator(lib, newCaller(fake), true)
		})

		It("blends the generative score and reports concerns as warnings", func() {
			res, usage := v.Validate(ctx, goodConservative, rationale, vc)
			Expect(res.Score).To(BeNumerically("~", 66.1, 0.15))
			Expect(res.Passed).To(BeTrue())
			Expect(res.Failures).To(HaveLen(1))
			Expect(res.Failures[0].RuleID).To(Equal(workshop.RuleNuance))
			Expect(res.Failures[0].Severity).To(Equal(essay.FailureWarning))
			Expect(usage.Total()).To(Equal(15))
		})

		It("skips the call when a pre-check already failed", func() {
			res, _ := v.Validate(ctx, essaySpeak, rationale, vc)
			Expect(res.Passed).To(BeFalse())
			Expect(fake.Count(workshop.PurposeValidate)).To(BeZero())
		})

		It("keeps the deterministic result when the call fails", func() {
			fake.On(workshop.PurposeValidate, aitest.Text("no json here"))
			res, _ := v.Validate(ctx, goodConservative, rationale, vc)
			Expect(res.Passed).To(BeTrue())
			Expect(res.Score).To(BeNumerically(">", 90))
		})
	})
})

var _ = Describe("AdaptiveValidator", func() {
	var (
		ctx context.Context
		v   *workshop.AdaptiveValidator
		vc  workshop.VContext
	)

	BeforeEach(func() {
		ctx = context.Background()
		v = workshop.NewAdaptiveValidator(workshop.NewValidator(library.MustLoad(), nil, false))
		vc = workshop.VContext{Original: original, Missing: []essay.Element{essay.ElementSensoryDetail}}
	})

	DescribeTable("BoundsFor",
		func(aggregate float64, want essay.Tier) {
			tier, b := workshop.BoundsFor(aggregate)
			Expect(tier).To(Equal(want))
			Expect(b).To(Equal(workshop.Tiers[want]))
		},
		Entry("foundation", 30.0, essay.TierFoundation),
		Entry("proficient", 60.0, essay.TierProficient),
		Entry("masterful", 95.0, essay.TierMasterful),
	)

	It("caps the score at the tier ceiling", func() {
		res, _ := v.Validate(ctx, goodConservative, rationale, vc, 30)
		Expect(res.Tier).To(Equal(essay.TierFoundation))
		Expect(res.Passed).To(BeTrue())
		Expect(res.Score).To(Equal(82.0))
	})

	It("rejects a trivial edit for a weak essay", func() {
		res, _ := v.Validate(ctx, "It was a plethora of feelings", rationale, vc, 30)
		Expect(res.Passed).To(BeFalse())
		Expect(ruleIDs(res)).To(ContainElement(workshop.RuleTrivialEdit))
	})

	It("holds a strong essay to a higher minimum instead", func() {
		res, _ := v.Validate(ctx, "It was a plethora of feelings", rationale, vc, 95)
		Expect(ruleIDs(res)).NotTo(ContainElement(workshop.RuleTrivialEdit))
		Expect(ruleIDs(res)).To(ContainElement(workshop.RuleTierMinQuality))
	})

	It("protects a strong writer's voice", func() {
		res, _ := v.Validate(ctx, goodConservative, rationale, vc, 95)
		Expect(ruleIDs(res)).To(ContainElement(workshop.RuleVoiceShift))

		res, _ = v.Validate(ctx, goodVoice, rationale, vc, 95)
		Expect(res.Passed).To(BeTrue())
	})

	It("limits sentence length by tier", func() {
		long := "I counted her pills twice with cold hands while the radio in the kitchen played the same old song my grandmother used to hum every Sunday morning."
		res, _ := v.Validate(ctx, long, rationale, vc, 30)
		Expect(ruleIDs(res)).To(ContainElement(workshop.RuleComplexity))
	})

	It("measures edits as the share of changed words", func() {
		Expect(workshop.EditRatio("a b c d", "a b c d")).To(BeZero())
		Expect(workshop.EditRatio("a b c d", "a b c e")).To(Equal(0.25))
		Expect(workshop.EditRatio("", "")).To(BeZero())
	})
})
