package workshop_test

import (
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/bryanwahyu/essay-workshop/internal/application/workshop"
	"github.com/bryanwahyu/essay-workshop/internal/domain/essay"
	"github.com/bryanwahyu/essay-workshop/internal/domain/library"
)

var _ = Describe("ContextAssembler", func() {
	var a *workshop.ContextAssembler

	BeforeEach(func() {
		a = workshop.NewContextAssembler(library.MustLoad())
	})

	It("ranks examples by symptom, category and voice", func() {
		exs := a.Examples("imagery", essay.SymptomClicheMetaphor, []string{"lyrical"})
		Expect(exs).To(HaveLen(1))
		Expect(exs[0].ID).To(Equal("ex-cliche-1"))
	})

	It("returns at most two examples, best first", func() {
		exs := a.Examples("showing", essay.SymptomTellingNotShow, []string{"wry"})
		Expect(exs).To(HaveLen(2))
		Expect(exs[0].ID).To(Equal("ex-telling-2"))
		Expect(exs[1].ID).To(Equal("ex-telling-1"))
	})

	It("picks directives aimed at the symptom in library order", func() {
		ids := []string{}
		for _, s := range a.Directives(essay.SymptomClicheMetaphor) {
			ids = append(ids, s.ID)
		}
		Expect(ids).To(Equal([]string{"literalize_metaphor", "object_as_symbol"}))
	})

	It("picks a reproducible divergent strategy outside the directives", func() {
		used := a.Directives(essay.SymptomClicheMetaphor)
		first := a.Divergent(essay.SymptomClicheMetaphor, used, rand.New(rand.NewSource(7)))
		again := a.Divergent(essay.SymptomClicheMetaphor, used, rand.New(rand.NewSource(7)))

		Expect(again.ID).To(Equal(first.ID))
		for _, u := range used {
			Expect(first.ID).NotTo(Equal(u.ID))
		}
		Expect(first.Symptoms).NotTo(ContainElement(essay.SymptomClicheMetaphor))
	})

	It("assembles a bundle from the workshop context", func() {
		loc := locate(essayText, original)
		diag := essay.Diagnosis{Symptom: essay.SymptomClicheMetaphor, MissingElements: []essay.Element{essay.ElementSensoryDetail}}
		wctx := essay.WorkshopContext{Theme: "care", VoiceDescriptor: "quiet and exact", VoiceTags: []string{"lyrical"}}

		b := a.Assemble(loc, original+".", diag, wctx, rand.New(rand.NewSource(1)))
		Expect(b.Theme).To(Equal("care"))
		Expect(b.Examples).NotTo(BeEmpty())
		Expect(b.Directives).To(HaveLen(2))
		Expect(b.Divergent.ID).NotTo(BeEmpty())
	})
})
