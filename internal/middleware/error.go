package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"

	apperrors "finpanel/internal/errors"
	"finpanel/internal/logger"
)

// ErrorHandler renders the last error attached to the gin context when the
// handler itself wrote nothing. Domain rejections go out with their own code
// and message. Everything else is logged and hidden behind UNEXPECTED_ERROR.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err

		var appErr *apperrors.AppError
		if !errors.As(err, &appErr) {
			appErr = apperrors.Wrap(apperrors.ErrUnexpected, err)
		}
		if appErr.Internal != nil && !apperrors.IsDomain(appErr) {
			logger.Get().Errorw("request failed",
				"request_id", c.GetString(requestIDKey),
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"code", appErr.Code,
				"error", appErr.Internal.Error(),
			)
		}
		abortWithError(c, appErr.StatusCode, appErr.Code, appErr.Message)
	}
}

// abortWithError stops the chain and writes the standard error envelope.
func abortWithError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": gin.H{"code": code, "message": message}})
}
