package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/charlesng35/inspectd/pkg/logger"
	"github.com/charlesng35/inspectd/pkg/response"
)

func TestRecoveryHidesPanicAndLogsIt(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, recorded := observer.New(zap.ErrorLevel)
	logger.Replace(zap.New(core))
	t.Cleanup(func() { logger.Replace(nil) })

	r := gin.New()
	r.Use(Recovery())
	r.POST("/api/jobs/:id/report", func(c *gin.Context) {
		c.Set(CtxUserIDKey, "inspector-3")
		var images []string
		_ = images[2]
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/jobs/job-1/report", nil))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var payload response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	require.False(t, payload.Success)
	require.Equal(t, "INTERNAL_SERVER_ERROR", payload.Error.Code)
	require.NotContains(t, w.Body.String(), "index out of range")

	entries := recorded.FilterMessage("handler panic").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, "/api/jobs/:id/report", fields["route"])
	require.Equal(t, "inspector-3", fields["user_id"])
}

func TestNotFoundHandlerUsesEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.NoRoute(NotFoundHandler)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/jobs", nil))

	require.Equal(t, http.StatusNotFound, w.Code)
	var payload response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	require.Equal(t, "NOT_FOUND", payload.Error.Code)
	require.Equal(t, "no route for DELETE /api/jobs", payload.Error.Message)
}
