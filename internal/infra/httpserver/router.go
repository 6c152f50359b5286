package httpserver

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	appanalysis "github.com/bryanwahyu/essay-workshop/internal/application/analysis"
	"github.com/bryanwahyu/essay-workshop/internal/domain/ai"
	domain "github.com/bryanwahyu/essay-workshop/internal/domain/analysis"
	"github.com/bryanwahyu/essay-workshop/internal/domain/essay"
	"github.com/bryanwahyu/essay-workshop/internal/domain/runerrors"
	"github.com/bryanwahyu/essay-workshop/internal/middleware"
)

// maxBodyBytes bounds request bodies; essays are capped well below this.
const maxBodyBytes = 1 << 20

// Service is what the router needs from the application layer.
type Service interface {
	RunAnalysis(ctx context.Context, cmd appanalysis.RunAnalysisCommand) (*essay.AnalysisResult, error)
	GenerateSuggestions(ctx context.Context, cmd appanalysis.GenerateSuggestionsCommand) (*essay.WorkshopResult, error)
	Locate(text string, issues []essay.Issue) (appanalysis.LocateResult, error)
	Get(ctx context.Context, tenant, id string) (*appanalysis.Report, error)
	List(ctx context.Context, tenant string, page, pageSize int) (domain.PaginatedResult, error)
	Errors(ctx context.Context, tenant, id string, limit int) ([]*runerrors.RunError, error)
}

// Options wires the cross-cutting middleware.
type Options struct {
	Logger       *slog.Logger
	APIKeys      map[string]string
	RateLimiter  *middleware.RateLimiter
	CORSOrigins  []string
	Dependencies []middleware.Dependency
}

type Router struct {
	svc    Service
	logger *slog.Logger
}

func NewRouter(svc Service, opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	r := &Router{svc: svc, logger: opts.Logger}
	mux := chi.NewRouter()

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader, "Retry-After"},
		MaxAge:         300,
	}))
	mux.Use(middleware.RequestID)
	mux.Use(middleware.LoggingMiddleware(opts.Logger))
	mux.Use(middleware.MetricsMiddleware)
	mux.Use(middleware.APIKeyAuth(opts.APIKeys))
	if opts.RateLimiter != nil {
		mux.Use(middleware.RateLimitMiddleware(opts.RateLimiter))
	}

	mux.Get("/health", middleware.HealthHandler(opts.Dependencies))
	mux.Get("/ready", middleware.ReadinessHandler(opts.Dependencies))
	mux.Get("/live", middleware.LivenessHandler)
	mux.Get("/metrics", middleware.MetricsHandler)

	mux.Route("/v1/{tenant}", func(rt chi.Router) {
		rt.Use(middleware.RequireValidTenant)
		rt.Post("/analyses", r.wrap(r.handleRunAnalysis))
		rt.Get("/analyses", r.wrap(r.handleList))
		rt.Get("/analyses/{id}", r.wrap(r.handleGet))
		rt.Get("/analyses/{id}/errors", r.wrap(r.handleErrors))
		rt.Post("/analyses/{id}/workshop", r.wrap(r.handleWorkshop))
		rt.Post("/workshop", r.wrap(r.handleWorkshop))
		rt.Post("/locate", r.wrap(r.handleLocate))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// badRequest marks malformed request bodies and parameters.
type badRequest struct{ err error }

func (b badRequest) Error() string { return b.err.Error() }
func (b badRequest) Unwrap() error { return b.err }

type errorBody struct {
	Error    string `json:"error"`
	Field    string `json:"field,omitempty"`
	Stage    string `json:"stage,omitempty"`
	Analyzer string `json:"analyzer,omitempty"`
}

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}
		status, body := classify(err)
		if status >= http.StatusInternalServerError {
			r.logger.ErrorContext(req.Context(), "request failed", "error", err, "status", status)
		}
		writeJSON(w, status, body)
	}
}

// classify maps an error to its HTTP status and response body.
func classify(err error) (int, errorBody) {
	var (
		ie *essay.InputError
		br badRequest
	)
	// a stage that ran out of retries on per-call timeouts is still a stage failure
	if sf, ok := essay.AsStageFailed(err); ok {
		return http.StatusBadGateway, errorBody{Error: sf.Error(), Stage: sf.Stage, Analyzer: sf.Analyzer}
	}
	switch {
	case errors.As(err, &ie):
		return http.StatusBadRequest, errorBody{Error: ie.Message, Field: ie.Field}
	case errors.As(err, &br):
		return http.StatusBadRequest, errorBody{Error: br.Error()}
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, sql.ErrNoRows):
		return http.StatusNotFound, errorBody{Error: "not found"}
	case errors.Is(err, appanalysis.ErrNoStorage):
		return http.StatusNotImplemented, errorBody{Error: err.Error()}
	case errors.Is(err, ai.ErrQuotaExceeded):
		return http.StatusTooManyRequests, errorBody{Error: "ai quota exceeded"}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, errorBody{Error: "analysis timed out"}
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout, errorBody{Error: "request cancelled"}
	}
	return http.StatusInternalServerError, errorBody{Error: "internal error"}
}

func decode(w http.ResponseWriter, req *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, req.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return badRequest{fmt.Errorf("invalid request body: %w", err)}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func analysisID(req *http.Request) (string, error) {
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateAnalysisID(id); err != nil {
		return "", badRequest{err}
	}
	return id, nil
}

// POST /v1/{tenant}/analyses
// Body: {"text": "...", "essay_type": "personal_statement", "prompt_text": "...", "max_words": 650}
func (r *Router) handleRunAnalysis(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Text       string          `json:"text"`
		EssayType  essay.EssayType `json:"essay_type"`
		PromptText string          `json:"prompt_text"`
		MaxWords   int             `json:"max_words"`
	}
	if err := decode(w, req, &body); err != nil {
		return err
	}

	middleware.AnalysisStarted()
	res, err := r.svc.RunAnalysis(req.Context(), appanalysis.RunAnalysisCommand{
		TenantID:   chi.URLParam(req, "tenant"),
		Text:       body.Text,
		EssayType:  body.EssayType,
		PromptText: middleware.SanitizeString(body.PromptText),
		MaxWords:   body.MaxWords,
	})
	if err != nil {
		middleware.AnalysisFinished(true, false, 0)
		return err
	}
	middleware.AnalysisFinished(false, res.Degraded, res.Tokens.Total())
	writeJSON(w, http.StatusCreated, res)
	return nil
}

// POST /v1/{tenant}/workshop and /v1/{tenant}/analyses/{id}/workshop
func (r *Router) handleWorkshop(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Text     string                 `json:"text"`
		Locators []essay.Locator        `json:"locators"`
		Issues   []essay.Issue          `json:"issues"`
		Context  *essay.WorkshopContext `json:"context"`
	}
	if err := decode(w, req, &body); err != nil {
		return err
	}
	cmd := appanalysis.GenerateSuggestionsCommand{
		TenantID: chi.URLParam(req, "tenant"),
		Text:     body.Text,
		Locators: body.Locators,
		Issues:   body.Issues,
		Context:  body.Context,
	}
	if chi.URLParam(req, "id") != "" {
		id, err := analysisID(req)
		if err != nil {
			return err
		}
		cmd.AnalysisID = id
	}

	res, err := r.svc.GenerateSuggestions(req.Context(), cmd)
	if err != nil {
		return err
	}
	n := 0
	for _, it := range res.Items {
		n += len(it.Suggestions)
	}
	middleware.WorkshopFinished(n, len(res.Skipped), res.Tokens.Total())
	writeJSON(w, http.StatusOK, res)
	return nil
}

// POST /v1/{tenant}/locate
// Body: {"text": "...", "issues": [{"id": "...", "quote": "..."}]}
func (r *Router) handleLocate(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Text   string        `json:"text"`
		Issues []essay.Issue `json:"issues"`
	}
	if err := decode(w, req, &body); err != nil {
		return err
	}
	res, err := r.svc.Locate(body.Text, body.Issues)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, res)
	return nil
}

func (r *Router) handleList(w http.ResponseWriter, req *http.Request) error {
	q := req.URL.Query()
	page := middleware.IntParam(q.Get("page"), 1)
	size := middleware.ValidateLimit(middleware.IntParam(q.Get("page_size"), 20))

	list, err := r.svc.List(req.Context(), chi.URLParam(req, "tenant"), page, size)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, list)
	return nil
}

func (r *Router) handleGet(w http.ResponseWriter, req *http.Request) error {
	id, err := analysisID(req)
	if err != nil {
		return err
	}
	report, err := r.svc.Get(req.Context(), chi.URLParam(req, "tenant"), id)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, report)
	return nil
}

func (r *Router) handleErrors(w http.ResponseWriter, req *http.Request) error {
	id, err := analysisID(req)
	if err != nil {
		return err
	}
	limit := middleware.ValidateLimit(middleware.IntParam(req.URL.Query().Get("limit"), 20))
	errs, err := r.svc.Errors(req.Context(), chi.URLParam(req, "tenant"), id, limit)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, errs)
	return nil
}
