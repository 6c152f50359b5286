package analysis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/essay-workshop/internal/application"
	domain "github.com/bryanwahyu/essay-workshop/internal/domain/analysis"
	"github.com/bryanwahyu/essay-workshop/internal/domain/essay"
	"github.com/bryanwahyu/essay-workshop/internal/domain/runerrors"
)

const text = "My grandmother kept bread in the oven. It was a plethora of emotions. The house went quiet."

var now = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

type fakePipeline struct {
	res *essay.AnalysisResult
	err error
	got essay.AnalysisInput
}

func (f *fakePipeline) Run(_ context.Context, in essay.AnalysisInput) (*essay.AnalysisResult, error) {
	f.got = in
	if f.err != nil {
		return nil, f.err
	}
	return f.res, nil
}

type fakeEditor struct {
	text string
	locs []essay.Locator
	wctx essay.WorkshopContext
	err  error
}

func (f *fakeEditor) GenerateSuggestions(_ context.Context, text string, locs []essay.Locator, wctx essay.WorkshopContext) (*essay.WorkshopResult, error) {
	f.text, f.locs, f.wctx = text, locs, wctx
	if f.err != nil {
		return nil, f.err
	}
	return &essay.WorkshopResult{Items: make([]essay.WorkshopItem, len(locs))}, nil
}

type memRepo struct {
	mu      sync.Mutex
	rows    map[domain.ID]*domain.Record
	saveErr error
}

func newMemRepo() *memRepo { return &memRepo{rows: map[domain.ID]*domain.Record{}} }

func (m *memRepo) Save(_ context.Context, r *domain.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.rows[r.ID] = r
	return nil
}

func (m *memRepo) Get(_ context.Context, tenant string, id domain.ID) (*domain.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok || r.TenantID != tenant {
		return nil, domain.ErrNotFound
	}
	return r, nil
}

func (m *memRepo) Paginate(_ context.Context, tenant string, page, pageSize int) (domain.PaginatedResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := domain.PaginatedResult{Page: page, PageSize: pageSize}
	for _, r := range m.rows {
		if r.TenantID == tenant {
			out.Data = append(out.Data, r)
		}
	}
	out.Total = int64(len(out.Data))
	out.TotalPages = domain.TotalPages(out.Total, pageSize)
	return out, nil
}

type memReports struct {
	keys []string
	err  error
}

func (m *memReports) Put(_ context.Context, key string, body []byte, contentType string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.keys = append(m.keys, key)
	return "http://reports/" + key, nil
}

type memRunErrors struct {
	saved []*runerrors.RunError
}

func (m *memRunErrors) Save(_ context.Context, e *runerrors.RunError) error {
	m.saved = append(m.saved, e)
	return nil
}

func (m *memRunErrors) ListByAnalysis(_ context.Context, tenant, id string, limit int) ([]*runerrors.RunError, error) {
	var out []*runerrors.RunError
	for _, e := range m.saved {
		if e.TenantID == tenant && e.AnalysisID == id {
			out = append(out, e)
		}
	}
	return out, nil
}

func analysisResult() *essay.AnalysisResult {
	return &essay.AnalysisResult{
		EssayType: essay.TypePersonalStatement,
		WordCount: 16,
		Holistic:  essay.HolisticUnderstanding{CentralTheme: "grief", VoiceDescriptor: "wry"},
		Insights:  essay.SynthesizedInsights{AggregateScore: 72, Percentile: 70},
		Locators: []essay.Locator{
			{IssueID: "style-1", Quote: "It was a plethora of emotions", Start: 39, End: 68, Category: "cliche"},
		},
	}
}

type fixture struct {
	svc      *Service
	pipeline *fakePipeline
	editor   *fakeEditor
	repo     *memRepo
	reports  *memReports
	runErrs  *memRunErrors
}

func newFixture() *fixture {
	f := &fixture{
		pipeline: &fakePipeline{res: analysisResult()},
		editor:   &fakeEditor{},
		repo:     newMemRepo(),
		reports:  &memReports{},
		runErrs:  &memRunErrors{},
	}
	f.svc = &Service{
		Pipeline:  f.pipeline,
		Editor:    f.editor,
		Repo:      f.repo,
		Reports:   f.reports,
		RunErrors: f.runErrs,
		Clock:     application.FixedClock(now),
	}
	return f
}

func TestRunAnalysisStoresTheResult(t *testing.T) {
	f := newFixture()

	res, err := f.svc.RunAnalysis(context.Background(), RunAnalysisCommand{TenantID: "acme", Text: "  " + text + "\r\n"})
	require.NoError(t, err)
	require.NotEmpty(t, res.ID)
	assert.Equal(t, now, res.CreatedAt)
	assert.Equal(t, text, f.pipeline.got.Text)
	assert.Equal(t, essay.TypePersonalStatement, f.pipeline.got.EssayType)

	rec, err := f.repo.Get(context.Background(), "acme", domain.ID(res.ID))
	require.NoError(t, err)
	assert.Equal(t, text, rec.Text)
	assert.Equal(t, essay.TierAdvanced, rec.Tier)
	assert.Equal(t, "http://reports/acme/analyses/"+res.ID+".json", rec.ReportURL)
	assert.Equal(t, []string{"acme/analyses/" + res.ID + ".json"}, f.reports.keys)
}

func TestRunAnalysisRejectsBadInput(t *testing.T) {
	f := newFixture()

	_, err := f.svc.RunAnalysis(context.Background(), RunAnalysisCommand{TenantID: "acme", Text: "   "})
	assert.True(t, essay.IsInputError(err))

	_, err = f.svc.RunAnalysis(context.Background(), RunAnalysisCommand{TenantID: "acme", Text: text, EssayType: "sonnet"})
	assert.True(t, essay.IsInputError(err))
	assert.Empty(t, f.pipeline.got.Text)
}

func TestRunAnalysisRecordsStageFailures(t *testing.T) {
	f := newFixture()
	f.pipeline.err = &essay.StageFailedError{Stage: essay.StageHolistic, Attempts: 3, Err: errors.New("timeout")}

	res, err := f.svc.RunAnalysis(context.Background(), RunAnalysisCommand{TenantID: "acme", Text: text})
	assert.Nil(t, res)
	sf, ok := essay.AsStageFailed(err)
	require.True(t, ok)
	assert.Equal(t, essay.StageHolistic, sf.Stage)

	require.Len(t, f.runErrs.saved, 1)
	saved := f.runErrs.saved[0]
	assert.Equal(t, "acme", saved.TenantID)
	assert.Equal(t, essay.StageHolistic, saved.Stage)
	assert.Equal(t, 3, saved.Attempts)
	assert.Equal(t, now, saved.CreatedAt)
	assert.Empty(t, f.repo.rows)
}

func TestRunAnalysisSkipsCancelledRuns(t *testing.T) {
	f := newFixture()
	f.pipeline.err = context.Canceled

	_, err := f.svc.RunAnalysis(context.Background(), RunAnalysisCommand{TenantID: "acme", Text: text})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.runErrs.saved)
}

func TestStorageFailuresDoNotFailTheAnalysis(t *testing.T) {
	f := newFixture()
	f.repo.saveErr = errors.New("db down")
	f.reports.err = errors.New("bucket gone")

	res, err := f.svc.RunAnalysis(context.Background(), RunAnalysisCommand{TenantID: "acme", Text: text})
	require.NoError(t, err)
	assert.NotEmpty(t, res.ID)
}

func TestRunAnalysisWithoutStorage(t *testing.T) {
	svc := &Service{Pipeline: &fakePipeline{res: analysisResult()}}

	res, err := svc.RunAnalysis(context.Background(), RunAnalysisCommand{TenantID: "acme", Text: text})
	require.NoError(t, err)
	assert.False(t, res.CreatedAt.IsZero())

	_, err = svc.List(context.Background(), "acme", 1, 20)
	assert.ErrorIs(t, err, ErrNoStorage)
	_, err = svc.Get(context.Background(), "acme", res.ID)
	assert.ErrorIs(t, err, ErrNoStorage)
}

func TestGenerateSuggestionsFromStoredAnalysis(t *testing.T) {
	f := newFixture()
	res, err := f.svc.RunAnalysis(context.Background(), RunAnalysisCommand{TenantID: "acme", Text: text})
	require.NoError(t, err)

	out, err := f.svc.GenerateSuggestions(context.Background(), GenerateSuggestionsCommand{
		TenantID:   "acme",
		AnalysisID: res.ID,
		Context:    &essay.WorkshopContext{Seed: 9},
	})
	require.NoError(t, err)
	assert.Len(t, out.Items, 1)
	assert.Equal(t, text, f.editor.text)
	assert.Equal(t, res.Locators, f.editor.locs)
	assert.Equal(t, 72.0, f.editor.wctx.Aggregate)
	assert.Equal(t, "grief", f.editor.wctx.Theme)
	assert.Equal(t, int64(9), f.editor.wctx.Seed)
}

func TestGenerateSuggestionsUnknownAnalysis(t *testing.T) {
	f := newFixture()

	_, err := f.svc.GenerateSuggestions(context.Background(), GenerateSuggestionsCommand{TenantID: "acme", AnalysisID: "missing"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGenerateSuggestionsInline(t *testing.T) {
	tests := []struct {
		name    string
		cmd     GenerateSuggestionsCommand
		wantLoc int
		wantErr bool
	}{
		{
			name:    "explicit locators",
			cmd:     GenerateSuggestionsCommand{Text: text, Locators: []essay.Locator{{Quote: "The house went quiet", Start: 70, End: 90}}},
			wantLoc: 1,
		},
		{
			name: "issues are located",
			cmd: GenerateSuggestionsCommand{Text: text, Issues: []essay.Issue{
				{ID: "a", Quote: "plethora of emotions"},
				{ID: "b", Quote: "not in the essay"},
			}},
			wantLoc: 1,
		},
		{name: "no text", cmd: GenerateSuggestionsCommand{Locators: []essay.Locator{{Quote: "x"}}}, wantErr: true},
		{name: "nothing to edit", cmd: GenerateSuggestionsCommand{Text: text}, wantErr: true},
		{
			name:    "no issue found",
			cmd:     GenerateSuggestionsCommand{Text: text, Issues: []essay.Issue{{ID: "b", Quote: "absent"}}},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			_, err := f.svc.GenerateSuggestions(context.Background(), tt.cmd)
			if tt.wantErr {
				assert.True(t, essay.IsInputError(err), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, f.editor.locs, tt.wantLoc)
			assert.Zero(t, f.editor.wctx.Aggregate)
		})
	}
}

func TestGenerateSuggestionsPassesEditorErrors(t *testing.T) {
	f := newFixture()
	f.editor.err = context.Canceled

	_, err := f.svc.GenerateSuggestions(context.Background(), GenerateSuggestionsCommand{
		Text:     text,
		Locators: []essay.Locator{{Quote: "The house went quiet", Start: 70, End: 90}},
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMergeContext(t *testing.T) {
	base := essay.WorkshopContext{EssayType: essay.TypeSupplemental, Aggregate: 70, Theme: "grief", VoiceTags: []string{"wry"}}
	got := mergeContext(base, essay.WorkshopContext{Aggregate: 90, VoiceTags: []string{"lyrical"}})

	assert.Equal(t, essay.TypeSupplemental, got.EssayType)
	assert.Equal(t, 90.0, got.Aggregate)
	assert.Equal(t, "grief", got.Theme)
	assert.Equal(t, []string{"lyrical"}, got.VoiceTags)
}

func TestQueries(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	res, err := f.svc.RunAnalysis(ctx, RunAnalysisCommand{TenantID: "acme", Text: text})
	require.NoError(t, err)

	report, err := f.svc.Get(ctx, "acme", res.ID)
	require.NoError(t, err)
	assert.Equal(t, res.ID, report.Result.ID)
	assert.Equal(t, 72.0, report.Summary.Aggregate)

	_, err = f.svc.Get(ctx, "other", res.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	page, err := f.svc.List(ctx, "acme", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 20, page.PageSize)
	assert.EqualValues(t, 1, page.Total)

	errs, err := f.svc.Errors(ctx, "acme", res.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, errs)
}

func TestLocate(t *testing.T) {
	svc := &Service{}

	out, err := svc.Locate(text, []essay.Issue{{ID: "a", Quote: "the HOUSE went quiet"}, {ID: "b", Quote: "gone"}})
	require.NoError(t, err)
	require.Len(t, out.Locators, 1)
	assert.Equal(t, "The house went quiet", text[out.Locators[0].Start:out.Locators[0].End])
	require.Len(t, out.Unlocated, 1)
	assert.Equal(t, "b", out.Unlocated[0].IssueID)

	_, err = svc.Locate("", nil)
	assert.True(t, essay.IsInputError(err))
}
