package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"storyreel/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-ID"

// HTTPRecorder receives per-request metrics.
type HTTPRecorder interface {
	RecordHTTPStatus(statusCode int)
	ObserveRequest(method, route string, d time.Duration)
}

// RequestLogger tags each request with an id, logs it on completion and
// records status and latency.
func RequestLogger(rec HTTPRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(requestIDHeader, requestID)

		c.Next()

		status := c.Writer.Status()
		latency := time.Since(start)
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		if rec != nil {
			rec.RecordHTTPStatus(status)
			rec.ObserveRequest(c.Request.Method, route, latency)
		}

		attrs := []any{
			slog.String("request_id", requestID),
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", status),
			slog.Duration("latency", latency),
			slog.String("client_ip", c.ClientIP()),
		}
		if userID, ok := UserID(c); ok {
			attrs = append(attrs, slog.String("user_id", userID.Hex()))
		}
		level := slog.LevelInfo
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		slog.Log(c.Request.Context(), level, "request completed", attrs...)
	}
}

// Recovery turns a panic into a 500 envelope.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		slog.Error("[Recovery] panic while handling request",
			slog.String("path", c.Request.URL.Path),
			slog.Any("panic", recovered),
		)
		abortWithError(c, apperror.Internal("Server Error", nil))
	})
}
