package handlers

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/inspectd/internal/middleware"
	"github.com/charlesng35/inspectd/pkg/errors"
	"github.com/charlesng35/inspectd/pkg/response"
)

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil || c.Request == nil {
		return context.Background()
	}
	return c.Request.Context()
}

// currentUserID returns the authenticated caller, writing a 401 when absent.
func currentUserID(c *gin.Context) (string, bool) {
	userID := c.GetString(middleware.CtxUserIDKey)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return "", false
	}
	return userID, true
}

// pathID returns a trimmed route parameter, writing a 400 when it is blank.
func pathID(c *gin.Context, name string) (string, bool) {
	id := strings.TrimSpace(c.Param(name))
	if id == "" {
		response.Error(c, errors.NewBadRequest(name+" is required"))
		return "", false
	}
	return id, true
}
