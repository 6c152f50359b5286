// Package analysis is the caller-facing use-case layer: it runs the pipeline
// and the surgical editor, assigns identities and keeps the results.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/bryanwahyu/essay-workshop/internal/application"
	domain "github.com/bryanwahyu/essay-workshop/internal/domain/analysis"
	"github.com/bryanwahyu/essay-workshop/internal/domain/essay"
	"github.com/bryanwahyu/essay-workshop/internal/domain/locator"
	"github.com/bryanwahyu/essay-workshop/internal/domain/runerrors"
	"github.com/bryanwahyu/essay-workshop/internal/infra/logging"
)

// ErrNoStorage is returned by queries when no repository is configured.
var ErrNoStorage = errors.New("analysis storage is not configured")

// Analyzer runs the full analysis pipeline.
type Analyzer interface {
	Run(ctx context.Context, in essay.AnalysisInput) (*essay.AnalysisResult, error)
}

// Editor produces ranked suggestions for located issues.
type Editor interface {
	GenerateSuggestions(ctx context.Context, text string, locs []essay.Locator, wctx essay.WorkshopContext) (*essay.WorkshopResult, error)
}

// Service implements the analysis and workshop use-cases. Repo, Reports and
// RunErrors are optional; when set, their failures are logged and never fail
// the request that produced the data. Service is safe for concurrent use.
type Service struct {
	Pipeline  Analyzer
	Editor    Editor
	Repo      domain.Repository
	Reports   domain.ReportStore
	RunErrors runerrors.Repository
	Clock     application.Clock
	Logger    *slog.Logger
}

// RunAnalysisCommand is one essay submission.
type RunAnalysisCommand struct {
	TenantID   string
	Text       string
	EssayType  essay.EssayType
	PromptText string
	MaxWords   int
}

// RunAnalysis validates the submission, runs the pipeline and stores the
// result. A failed run is recorded as a run error and returned unchanged.
func (s *Service) RunAnalysis(ctx context.Context, cmd RunAnalysisCommand) (*essay.AnalysisResult, error) {
	in, err := essay.NewAnalysisInput(cmd.Text, cmd.EssayType, cmd.PromptText, cmd.MaxWords)
	if err != nil {
		return nil, err
	}
	id := uuid.New().String()
	ctx = logging.WithLogFields(ctx, logging.LogFields{Tenant: cmd.TenantID, AnalysisID: id, Component: "analysis"})
	log := s.logger()
	log.InfoContext(ctx, "analysis started", "essay_type", in.EssayType, "words", in.WordCount())

	res, err := s.Pipeline.Run(ctx, in)
	if err != nil {
		log.ErrorContext(ctx, "analysis failed", "error", err)
		s.recordFailure(ctx, cmd.TenantID, id, err)
		return nil, err
	}
	res.ID = id
	res.CreatedAt = s.now()

	s.persist(ctx, cmd.TenantID, in.Text, res)
	log.InfoContext(ctx, "analysis finished",
		"aggregate", res.Insights.AggregateScore,
		"degraded", res.Degraded,
		"tokens", res.Tokens.Total(),
	)
	return res, nil
}

// GenerateSuggestionsCommand asks for suggestions. With AnalysisID set the
// stored essay, locators and context are used unless overridden; otherwise
// Text plus Locators or Issues is required.
type GenerateSuggestionsCommand struct {
	TenantID   string
	AnalysisID string
	Text       string
	Locators   []essay.Locator
	// Issues are located against Text when no Locators are given.
	Issues  []essay.Issue
	Context *essay.WorkshopContext
}

// GenerateSuggestions runs the surgical editor over the requested locators.
func (s *Service) GenerateSuggestions(ctx context.Context, cmd GenerateSuggestionsCommand) (*essay.WorkshopResult, error) {
	text, locs, wctx, err := s.workshopInput(ctx, cmd)
	if err != nil {
		return nil, err
	}
	ctx = logging.WithLogFields(ctx, logging.LogFields{Tenant: cmd.TenantID, AnalysisID: cmd.AnalysisID, Component: "workshop"})
	log := s.logger()
	log.InfoContext(ctx, "workshop started", "items", len(locs), "aggregate", wctx.Aggregate)

	res, err := s.Editor.GenerateSuggestions(ctx, text, locs, wctx)
	if err != nil {
		log.WarnContext(ctx, "workshop aborted", "error", err)
		return nil, err
	}
	log.InfoContext(ctx, "workshop finished", "items", len(res.Items), "skipped", len(res.Skipped), "tier", res.Tier)
	return res, nil
}

func (s *Service) workshopInput(ctx context.Context, cmd GenerateSuggestionsCommand) (string, []essay.Locator, essay.WorkshopContext, error) {
	var (
		text = cmd.Text
		locs = cmd.Locators
		wctx essay.WorkshopContext
	)
	if cmd.AnalysisID != "" {
		rec, res, err := s.load(ctx, cmd.TenantID, cmd.AnalysisID)
		if err != nil {
			return "", nil, wctx, err
		}
		text = rec.Text
		wctx = essay.ContextFromResult(res)
		if len(locs) == 0 && len(cmd.Issues) == 0 {
			locs = res.Locators
		}
	}
	if strings.TrimSpace(text) == "" {
		return "", nil, wctx, &essay.InputError{Field: "text", Message: "essay text is required"}
	}
	if !utf8.ValidString(text) {
		return "", nil, wctx, &essay.InputError{Field: "text", Message: "essay text must be valid UTF-8"}
	}
	if len(locs) == 0 && len(cmd.Issues) > 0 {
		found, missing := locator.Locate(text, cmd.Issues)
		if len(missing) > 0 {
			s.logger().WarnContext(ctx, "issues could not be located", "count", len(missing))
		}
		locs = found
	}
	if len(locs) == 0 {
		return "", nil, wctx, &essay.InputError{Field: "locators", Message: "at least one locator or locatable issue is required"}
	}
	if cmd.Context != nil {
		wctx = mergeContext(wctx, *cmd.Context)
	}
	return text, locs, wctx, nil
}

// mergeContext lets explicit request fields win over the stored context.
func mergeContext(base, over essay.WorkshopContext) essay.WorkshopContext {
	if over.EssayType != "" {
		base.EssayType = over.EssayType
	}
	if over.Aggregate > 0 {
		base.Aggregate = over.Aggregate
	}
	if over.Theme != "" {
		base.Theme = over.Theme
	}
	if over.VoiceDescriptor != "" {
		base.VoiceDescriptor = over.VoiceDescriptor
	}
	if len(over.VoiceTags) > 0 {
		base.VoiceTags = over.VoiceTags
	}
	if over.Seed != 0 {
		base.Seed = over.Seed
	}
	return base
}

// LocateResult is the outcome of resolving issues against a text.
type LocateResult struct {
	Locators  []essay.Locator     `json:"locators"`
	Unlocated []locator.Unlocated `json:"unlocated,omitempty"`
}

// Locate resolves issue quotes to byte spans without running any stage.
func (s *Service) Locate(text string, issues []essay.Issue) (LocateResult, error) {
	if strings.TrimSpace(text) == "" {
		return LocateResult{}, &essay.InputError{Field: "text", Message: "essay text is required"}
	}
	locs, missing := locator.Locate(text, issues)
	if locs == nil {
		locs = []essay.Locator{}
	}
	return LocateResult{Locators: locs, Unlocated: missing}, nil
}

// Report is a stored analysis with its summary row.
type Report struct {
	Summary *domain.Record        `json:"summary"`
	Result  *essay.AnalysisResult `json:"result"`
}

// Get returns one stored analysis.
func (s *Service) Get(ctx context.Context, tenant, id string) (*Report, error) {
	rec, res, err := s.load(ctx, tenant, id)
	if err != nil {
		return nil, err
	}
	return &Report{Summary: rec, Result: res}, nil
}

// List pages through a tenant's analyses, newest first.
func (s *Service) List(ctx context.Context, tenant string, page, pageSize int) (domain.PaginatedResult, error) {
	if s.Repo == nil {
		return domain.PaginatedResult{}, ErrNoStorage
	}
	page, pageSize = domain.Normalize(page, pageSize)
	return s.Repo.Paginate(ctx, tenant, page, pageSize)
}

// Errors lists the recorded failures of one analysis.
func (s *Service) Errors(ctx context.Context, tenant, id string, limit int) ([]*runerrors.RunError, error) {
	if s.RunErrors == nil {
		return nil, ErrNoStorage
	}
	return s.RunErrors.ListByAnalysis(ctx, tenant, id, limit)
}

func (s *Service) load(ctx context.Context, tenant, id string) (*domain.Record, *essay.AnalysisResult, error) {
	if s.Repo == nil {
		return nil, nil, ErrNoStorage
	}
	rec, err := s.Repo.Get(ctx, tenant, domain.ID(id))
	if err != nil {
		return nil, nil, err
	}
	res, err := rec.Decode()
	if err != nil {
		return nil, nil, err
	}
	return rec, res, nil
}

// persist archives the report and saves the summary row. Both are best effort.
func (s *Service) persist(ctx context.Context, tenant, text string, res *essay.AnalysisResult) {
	log := s.logger()
	ctx = context.WithoutCancel(ctx)

	var reportURL string
	if s.Reports != nil {
		body, err := json.MarshalIndent(res, "", "  ")
		if err == nil {
			key := fmt.Sprintf("%s/analyses/%s.json", tenant, res.ID)
			reportURL, err = s.Reports.Put(ctx, key, body, "application/json")
		}
		if err != nil {
			log.WarnContext(ctx, "report archive failed", "error", err)
		}
	}
	if s.Repo == nil {
		return
	}
	rec, err := domain.NewRecord(tenant, text, res)
	if err != nil {
		log.WarnContext(ctx, "analysis not stored", "error", err)
		return
	}
	rec.ReportURL = reportURL
	if err := s.Repo.Save(ctx, rec); err != nil {
		log.WarnContext(ctx, "analysis not stored", "error", err)
	}
}

func (s *Service) recordFailure(ctx context.Context, tenant, id string, err error) {
	if s.RunErrors == nil || errors.Is(err, context.Canceled) {
		return
	}
	ctx = context.WithoutCancel(ctx)
	if serr := s.RunErrors.Save(ctx, runerrors.FromError(tenant, id, err, s.now())); serr != nil {
		s.logger().WarnContext(ctx, "run error not stored", "error", serr)
	}
}

func (s *Service) now() time.Time {
	if s.Clock == nil {
		return application.SystemClock{}.Now()
	}
	return s.Clock.Now()
}

func (s *Service) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}
