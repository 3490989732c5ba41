package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newHeadersRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(SecurityHeaders(), CORS())
	r.PATCH("/api/reports/:id/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "in_review"})
	})
	return r
}

func TestSecurityHeadersOnAPIResponses(t *testing.T) {
	r := newHeadersRouter()

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPatch, "/api/reports/r-1/status", nil))

	require.Equal(t, http.StatusOK, w.Code)
	h := w.Header()
	require.Equal(t, "DENY", h.Get("X-Frame-Options"))
	require.Equal(t, "nosniff", h.Get("X-Content-Type-Options"))
	require.Equal(t, "no-referrer", h.Get("Referrer-Policy"))
	require.Equal(t, "default-src 'none'; frame-ancestors 'none'", h.Get("Content-Security-Policy"))
	require.Contains(t, h.Get("Strict-Transport-Security"), "max-age=")
	require.Equal(t, "*", h.Get("Access-Control-Allow-Origin"))
}

func TestCORSPreflightShortCircuits(t *testing.T) {
	r := newHeadersRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/reports/r-1/status", nil)
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusNoContent, w.Code)
	require.Empty(t, w.Body.String())
	require.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPatch)
	require.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodDelete)
	require.Equal(t, "Authorization, Content-Type", w.Header().Get("Access-Control-Allow-Headers"))
	require.Equal(t, "600", w.Header().Get("Access-Control-Max-Age"))
	// security headers still apply to preflights
	require.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}
