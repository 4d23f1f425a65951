package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	cfg := Config{
		Enabled:        true,
		Token:          "s3cret",
		PublicPrefixes: []string{"/api/v1/satellites/"},
	}
	h := Middleware(cfg)(ok)

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"health is public", "/healthz", "", http.StatusOK},
		{"readiness is public", "/readyz", "", http.StatusOK},
		{"metrics is public", "/metrics", "", http.StatusOK},
		{"tle metadata is public", "/api/v1/tle/metadata", "", http.StatusOK},
		{"public prefix", "/api/v1/satellites/25544/position", "", http.StatusOK},
		{"missing token", "/api/v1/sky", "", http.StatusUnauthorized},
		{"wrong token", "/api/v1/sky", "Bearer nope", http.StatusUnauthorized},
		{"not bearer", "/api/v1/sky", "s3cret", http.StatusUnauthorized},
		{"valid token", "/api/v1/sky", "Bearer s3cret", http.StatusOK},
		{"scheme is case-insensitive", "/api/v1/sky", "bearer s3cret", http.StatusOK},
		{"basic scheme rejected", "/api/v1/sky", "Basic s3cret", http.StatusUnauthorized},
		{"empty bearer", "/api/v1/sky", "Bearer ", http.StatusUnauthorized},
		{"query token", "/api/v1/stream/satellites/25544?access_token=s3cret", "", http.StatusOK},
		{"wrong query token", "/api/v1/sky?access_token=nope", "", http.StatusUnauthorized},
		{"header wins over query", "/api/v1/sky?access_token=s3cret", "Bearer nope", http.StatusUnauthorized},
		{"index is public", "/", "", http.StatusOK},
		{"fetch needs token", "/api/v1/tle/fetch", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
			if tt.want == http.StatusUnauthorized && w.Header().Get("WWW-Authenticate") == "" {
				t.Error("missing WWW-Authenticate header")
			}
		})
	}
}

func TestMiddlewareDisabled(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := Middleware(Config{Enabled: false, Token: "x"})(ok)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("POST", "/api/v1/tle/fetch", nil))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}
