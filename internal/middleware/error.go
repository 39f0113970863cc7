package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-api/internal/handler"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/logger"
)

// ErrorHandler renders the last error recorded by a handler. AppErrors
// keep their status and message, anything else becomes a 500 with a
// generic message.
func ErrorHandler(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		status := http.StatusInternalServerError
		message := "internal server error"

		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			status = appErr.StatusCode()
			message = appErr.Message
		}

		if status >= http.StatusInternalServerError {
			log.Error(err, "request failed",
				"request_id", c.GetString(ContextRequestID),
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
			)
		}

		c.JSON(status, handler.NewErrorResponse(message))
	}
}
