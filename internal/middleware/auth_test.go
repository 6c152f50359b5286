package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

func echoTenant() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(GetTenantFromContext(r.Context())))
	})
}

func TestAPIKeyAuth(t *testing.T) {
	h := APIKeyAuth(map[string]string{"acme": "k-acme", "globex": "k-globex"})(echoTenant())

	tests := []struct {
		name       string
		path       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{"bearer key", "/v1/acme/analyses", "Bearer k-acme", http.StatusOK, "acme"},
		{"bare key", "/v1/globex/analyses", "k-globex", http.StatusOK, "globex"},
		{"missing", "/v1/acme/analyses", "", http.StatusUnauthorized, ""},
		{"wrong", "/v1/acme/analyses", "Bearer nope", http.StatusUnauthorized, ""},
		{"health is open", "/health", "", http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestAPIKeyAuthDisabled(t *testing.T) {
	rec := httptest.NewRecorder()
	APIKeyAuth(nil)(echoTenant()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/acme/analyses", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireValidTenant(t *testing.T) {
	mux := chi.NewRouter()
	mux.Use(APIKeyAuth(map[string]string{"acme": "k-acme"}))
	mux.Route("/v1/{tenant}", func(rt chi.Router) {
		rt.Use(RequireValidTenant)
		rt.Get("/ping", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("pong")) })
	})

	tests := []struct {
		path string
		want int
	}{
		{"/v1/acme/ping", http.StatusOK},
		{"/v1/globex/ping", http.StatusForbidden},
		{"/v1/bad$tenant/ping", http.StatusBadRequest},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, tt.path, nil)
		req.Header.Set("Authorization", "Bearer k-acme")
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		assert.Equal(t, tt.want, rec.Code, tt.path)
	}
}
