package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	pkgerrors "mercado/pkg/errors"
	"mercado/pkg/logging"
)

const (
	RequestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

type requestLogger interface {
	Infow(msg string, keysAndValues ...interface{})
	Errorw(msg string, keysAndValues ...interface{})
}

func LoggerMiddleware(logger requestLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		statusCode := c.Writer.Status()
		logFields := []interface{}{
			"status", statusCode,
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
			"method", c.Request.Method,
			"path", path,
			"request_id", c.GetString(requestIDKey),
		}

		if errorMessage := c.Errors.ByType(gin.ErrorTypePrivate).String(); errorMessage != "" {
			logFields = append(logFields, "error", errorMessage)
		}

		if statusCode >= http.StatusInternalServerError {
			logger.Errorw("HTTP Request", logFields...)
		} else {
			logger.Infow("HTTP Request", logFields...)
		}
	}
}

func RecoveryMiddleware(logger interface {
	Errorw(msg string, keysAndValues ...interface{})
}) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.Errorw("Panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
			"method", c.Request.Method,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, pkgerrors.ToErrorResponse(pkgerrors.ErrInternal))
	})
}

// RequestIDMiddleware propagates or mints X-Request-ID and stores it in the
// request context so *Ctx log calls pick it up as trace_id.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set(requestIDKey, requestID)
		c.Header(RequestIDHeader, requestID)

		if logging.GetTraceID(c.Request.Context()) == "" {
			c.Request = c.Request.WithContext(logging.WithTraceID(c.Request.Context(), requestID))
		}
		c.Next()
	}
}
