package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/inspectd/pkg/errors"
	"github.com/charlesng35/inspectd/pkg/logger"
	"github.com/charlesng35/inspectd/pkg/response"
)

// Recovery turns a handler panic into an opaque 500 and logs the panic value
// with the caller and route.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			recovered := recover()
			if recovered == nil {
				return
			}
			logger.WithModule("http").Error("handler panic",
				zap.String("route", c.FullPath()),
				zap.String("path", c.Request.URL.Path),
				zap.String("user_id", c.GetString(CtxUserIDKey)),
				zap.Any("panic", recovered),
				zap.Stack("stack"),
			)
			if !c.Writer.Written() {
				response.Error(c, errors.ErrInternalServer)
			}
			c.Abort()
		}()
		c.Next()
	}
}

// NotFoundHandler answers unknown routes with the error envelope.
func NotFoundHandler(c *gin.Context) {
	response.Error(c, errors.ErrNotFound.WithMessage(fmt.Sprintf("no route for %s %s", c.Request.Method, c.Request.URL.Path)))
}
