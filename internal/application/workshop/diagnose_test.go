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

var _ = Describe("Diagnoser", func() {
	var (
		fake *aitest.Fake
		d    *workshop.Diagnoser
		loc  essay.Locator
		ctx  context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		fake = aitest.New()
		d = workshop.NewDiagnoser(newCaller(fake), library.MustLoad())
		loc = locate(essayText, original)
	})

	It("parses the symptom and dedupes missing elements", func() {
		fake.OnJSON(workshop.PurposeDiagnose, map[string]any{
			"symptom":          "cliche_metaphor",
			"missing_elements": []string{"sensory_detail", "Sensory_Detail ", "courage", "emotional_truth"},
			"explanation":      "A stock phrase labels the feeling.",
		})

		diag, usage, err := d.Diagnose(ctx, loc, original+".")
		Expect(err).NotTo(HaveOccurred())
		Expect(diag.Symptom).To(Equal(essay.SymptomClicheMetaphor))
		Expect(diag.MissingElements).To(Equal([]essay.Element{essay.ElementSensoryDetail, essay.ElementEmotionalTruth}))
		Expect(diag.Fallback).To(BeFalse())
		Expect(usage.Total()).To(Equal(15))
	})

	It("uses the symptom's default elements when none are named", func() {
		fake.OnJSON(workshop.PurposeDiagnose, map[string]any{"symptom": "passive_agency", "missing_elements": []string{}})

		diag, _, err := d.Diagnose(ctx, loc, original+".")
		Expect(err).NotTo(HaveOccurred())
		Expect(diag.MissingElements).To(ConsistOf(essay.ElementGroundingMoment))
	})

	It("falls back to the pattern tables when the call is rejected", func() {
		fake.On(workshop.PurposeDiagnose, aitest.Fail(fmt.Errorf("%w: policy", ai.ErrRejected)))

		diag, _, err := d.Diagnose(ctx, loc, original+".")
		Expect(err).NotTo(HaveOccurred())
		Expect(diag.Fallback).To(BeTrue())
		Expect(diag.Symptom).To(Equal(essay.SymptomClicheMetaphor))
		Expect(fake.Count(workshop.PurposeDiagnose)).To(Equal(1))
	})

	It("retries an unknown symptom before falling back", func() {
		fake.OnJSON(workshop.PurposeDiagnose, map[string]any{"symptom": "bad_vibes"})

		diag, _, err := d.Diagnose(ctx, loc, original+".")
		Expect(err).NotTo(HaveOccurred())
		Expect(diag.Fallback).To(BeTrue())
		Expect(fake.Count(workshop.PurposeDiagnose)).To(Equal(3))
	})

	It("returns the context error instead of a fallback when cancelled", func() {
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, _, err := d.Diagnose(cctx, loc, original+".")
		Expect(err).To(MatchError(context.Canceled))
	})

	DescribeTable("Fallback",
		func(quote string, want essay.Symptom) {
			diag := d.Fallback(quote)
			Expect(diag.Symptom).To(Equal(want))
			Expect(diag.Fallback).To(BeTrue())
			Expect(diag.MissingElements).NotTo(BeEmpty())
		},
		Entry("cliche", "It was a plethora of emotions", essay.SymptomClicheMetaphor),
		Entry("passive", "I was given the responsibility of leading the team", essay.SymptomPassiveAgency),
		Entry("pacing hints", "Then after that we went home", essay.SymptomGenericPacing),
		Entry("essay-speak", "I have a passion for science", essay.SymptomAbstractLanguage),
		Entry("nothing matches", "The dog barked twice at the mailman", essay.SymptomTellingNotShow),
	)
})
