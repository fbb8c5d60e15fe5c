package gin_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	ginpkg "github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	infragin "github.com/Fusionaimcp4/localboxs/infrastructure/gin"
	"github.com/Fusionaimcp4/localboxs/infrastructure/logger"
)

func newTestRouter(t *testing.T, handler ginpkg.HandlerFunc) *ginpkg.Engine {
	t.Helper()

	ginpkg.SetMode(ginpkg.TestMode)
	router := ginpkg.New()
	router.Use(infragin.RequestIDLoggerMiddleware(logger.NewNop()))
	router.GET("/test", handler)
	return router
}

func okHandler(c *ginpkg.Context) { c.String(http.StatusOK, "ok") }

func TestRequestIDLoggerMiddleware_GeneratesID(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, okHandler)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", http.NoBody))

	id := w.Header().Get(infragin.RequestIDHeader)
	assert.Len(t, id, 32)
	assert.NotContains(t, id, "-")
}

func TestRequestIDLoggerMiddleware_PreservesInboundID(t *testing.T) {
	t.Parallel()

	const inbound = "trace-from-upstream-abc123"
	var seen string
	router := newTestRouter(t, func(c *ginpkg.Context) {
		seen = c.GetString(infragin.RequestIDKey)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.Header.Set(infragin.RequestIDHeader, inbound)
	router.ServeHTTP(w, req)

	assert.Equal(t, inbound, w.Header().Get(infragin.RequestIDHeader))
	assert.Equal(t, inbound, seen)
}

func TestRequestIDLoggerMiddleware_RejectsOversizedID(t *testing.T) {
	t.Parallel()

	oversized := strings.Repeat("x", 200)
	router := newTestRouter(t, okHandler)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.Header.Set(infragin.RequestIDHeader, oversized)
	router.ServeHTTP(w, req)

	got := w.Header().Get(infragin.RequestIDHeader)
	assert.NotEqual(t, oversized, got)
	assert.NotEmpty(t, got)
}

func TestRequestIDLoggerMiddleware_UniqueIDs(t *testing.T) {
	t.Parallel()

	router := newTestRouter(t, okHandler)
	seen := make(map[string]bool)
	for range 50 {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", http.NoBody))
		id := w.Header().Get(infragin.RequestIDHeader)
		require.False(t, seen[id], "duplicate request id %s", id)
		seen[id] = true
	}
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	t.Parallel()

	ginpkg.SetMode(ginpkg.TestMode)
	router := ginpkg.New()
	router.Use(infragin.CORSMiddleware(infragin.CORSConfig{
		Enabled:        true,
		AllowedOrigins: []string{"https://admin.localboxs.com"},
	}))
	router.POST("/onboard", okHandler)

	tests := []struct {
		name       string
		origin     string
		wantStatus int
		wantOrigin string
	}{
		{name: "allowed origin", origin: "https://admin.localboxs.com", wantStatus: http.StatusNoContent, wantOrigin: "https://admin.localboxs.com"},
		{name: "foreign origin", origin: "https://evil.test", wantStatus: http.StatusNotFound, wantOrigin: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodOptions, "/onboard", http.NoBody)
			req.Header.Set("Origin", tt.origin)
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantOrigin, w.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestRecoveryMiddleware_Returns500(t *testing.T) {
	t.Parallel()

	ginpkg.SetMode(ginpkg.TestMode)
	router := ginpkg.New()
	router.Use(infragin.RecoveryMiddleware(logger.NewNop()))
	router.GET("/boom", func(*ginpkg.Context) { panic(errors.New("boom")) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", http.NoBody))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Internal server error")
}
