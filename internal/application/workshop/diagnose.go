package workshop

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/bryanwahyu/essay-workshop/internal/application/genai"
	"github.com/bryanwahyu/essay-workshop/internal/domain/essay"
	"github.com/bryanwahyu/essay-workshop/internal/domain/library"
	"github.com/bryanwahyu/essay-workshop/internal/infra/ai/prompt"
)

type diagnosisResponse struct {
	Symptom         string   `json:"symptom" jsonschema:"enum=abstract_language,enum=passive_agency,enum=cliche_metaphor,enum=telling_not_showing,enum=generic_pacing,enum=weak_verb"`
	MissingElements []string `json:"missing_elements" jsonschema_description:"Any of sensory_detail, concrete_object, grounding_moment, emotional_truth"`
	Explanation     string   `json:"explanation" jsonschema_description:"One sentence on what exactly is wrong"`
}

func (r diagnosisResponse) Validate() error {
	if !essay.Symptom(r.Symptom).Valid() {
		return errors.New("unknown symptom " + r.Symptom)
	}
	return nil
}

// defaultElements are what each symptom usually lacks; used when the model
// names none and by the fallback diagnosis.
var defaultElements = map[essay.Symptom][]essay.Element{
	essay.SymptomAbstractLanguage: {essay.ElementConcreteObject, essay.ElementSensoryDetail},
	essay.SymptomPassiveAgency:    {essay.ElementGroundingMoment},
	essay.SymptomClicheMetaphor:   {essay.ElementSensoryDetail, essay.ElementEmotionalTruth},
	essay.SymptomTellingNotShow:   {essay.ElementSensoryDetail, essay.ElementEmotionalTruth},
	essay.SymptomGenericPacing:    {essay.ElementGroundingMoment},
	essay.SymptomWeakVerb:         {essay.ElementConcreteObject},
}

// Diagnoser classifies a located issue into the symptom taxonomy.
type Diagnoser struct {
	caller *genai.Caller
	lib    *library.Library
}

func NewDiagnoser(caller *genai.Caller, lib *library.Library) *Diagnoser {
	return &Diagnoser{caller: caller, lib: lib}
}

// Diagnose makes one generative call. When it fails for any reason other than
// cancellation the deterministic Fallback is returned instead, marked as such.
func (d *Diagnoser) Diagnose(ctx context.Context, loc essay.Locator, sentence string) (essay.Diagnosis, essay.TokenUsage, error) {
	var u prompt.User
	u.Line("Issue category: %s", loc.Category)
	if loc.Problem != "" {
		u.Line("Reported problem: %s", loc.Problem)
	}
	u.Block("excerpt", loc.Quote)
	u.Block("sentence", sentence)

	var r diagnosisResponse
	usage, err := send(ctx, d.caller, call{
		purpose: PurposeDiagnose,
		role:    "You are a writing tutor diagnosing one weak excerpt of a college essay.",
		rules: []string{
			"Pick the single symptom that best explains the weakness.",
			"List only the elements a rewrite must add; an empty list is allowed.",
		},
		schema:      prompt.SchemaFor[diagnosisResponse](),
		user:        u.String(),
		temperature: 0.1,
		maxTokens:   400,
	}, &r)
	if err != nil {
		if ctx.Err() != nil {
			return essay.Diagnosis{}, usage, ctx.Err()
		}
		slog.WarnContext(ctx, "diagnosis fell back to heuristics", "issue_id", loc.IssueID, "error", err)
		return d.Fallback(loc.Quote), usage, nil
	}

	sym := essay.Symptom(r.Symptom)
	out := essay.Diagnosis{Symptom: sym, Explanation: r.Explanation}
	seen := map[essay.Element]bool{}
	for _, raw := range r.MissingElements {
		e := essay.Element(strings.ToLower(strings.TrimSpace(raw)))
		if e.Valid() && !seen[e] {
			seen[e] = true
			out.MissingElements = append(out.MissingElements, e)
		}
	}
	if len(out.MissingElements) == 0 {
		out.MissingElements = defaultElements[sym]
	}
	return out, usage, nil
}

// Fallback diagnoses quote from the pattern tables alone. Passive
// constructions and clichés win outright; otherwise the symptom with the most
// hint matches is chosen, ties going to taxonomy order, and telling-not-showing
// when nothing matches.
func (d *Diagnoser) Fallback(quote string) essay.Diagnosis {
	sym := essay.SymptomTellingNotShow
	switch {
	case d.lib.Cliches.Contains(quote):
		sym = essay.SymptomClicheMetaphor
	case len(d.lib.PassiveMatches(quote)) > 0:
		sym = essay.SymptomPassiveAgency
	default:
		best := 0
		for _, s := range essay.Symptoms {
			if n := d.lib.SymptomHints[s].Count(quote); n > best {
				best, sym = n, s
			}
		}
		if best == 0 && d.lib.EssaySpeak.Contains(quote) {
			sym = essay.SymptomAbstractLanguage
		}
	}
	return essay.Diagnosis{
		Symptom:         sym,
		MissingElements: defaultElements[sym],
		Explanation:     "classified from pattern tables",
		Fallback:        true,
	}
}
