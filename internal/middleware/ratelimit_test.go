package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/Fusionaimcp4/localboxs/internal/middleware"
)

const testBurst = 3

func newRouter(t *testing.T, rps float64) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	done := make(chan struct{})
	t.Cleanup(func() { close(done) })

	r := gin.New()
	r.Use(middleware.RateLimiter(rps, testBurst, done))
	r.POST("/onboard", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	return r
}

func send(r *gin.Engine, addr string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/onboard", http.NoBody)
	req.RemoteAddr = addr
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimiter_BlocksOverBurst(t *testing.T) {
	r := newRouter(t, 0.001)

	for i := range testBurst {
		w := send(r, "1.2.3.4:1234")
		assert.Equal(t, http.StatusOK, w.Code, "request %d", i)
	}

	w := send(r, "1.2.3.4:1234")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.JSONEq(t, `{"error":"rate limit exceeded"}`, w.Body.String())
}

func TestRateLimiter_SeparateIPs(t *testing.T) {
	r := newRouter(t, 0.001)

	for range testBurst {
		send(r, "1.2.3.4:1234")
	}

	assert.Equal(t, http.StatusTooManyRequests, send(r, "1.2.3.4:1234").Code)
	assert.Equal(t, http.StatusOK, send(r, "5.6.7.8:1234").Code)
}

func TestRateLimiter_Disabled(t *testing.T) {
	r := newRouter(t, 0)

	for range testBurst * 3 {
		assert.Equal(t, http.StatusOK, send(r, "1.2.3.4:1234").Code)
	}
}
