package api

import (
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"lireddit/server/internal/metrics"
	"lireddit/server/internal/session"
)

// Recovery returns a middleware that recovers from panics, logs the stack trace,
// and returns a 500 to the client so the server continues serving.
func Recovery(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				stack := debug.Stack()
				logger.Error("panic recovered",
					"panic", r,
					"stack", string(stack),
					"method", c.Request.Method,
					"path", c.Request.URL.Path,
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"status": "error",
					"error":  "internal server error",
				})
			}
		}()
		c.Next()
	}
}

// Tracing starts a server span per request via otelgin.
func Tracing(serviceName string) gin.HandlerFunc {
	return otelgin.Middleware(serviceName)
}

// RequestLogger returns a middleware that emits a structured slog line for
// every request with method, path, status, and latency.
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.InfoContext(c.Request.Context(), "request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		)
	}
}

// Session loads the named session from store and attaches it to the request
// context. A bad cookie or an unreachable store leaves the request with a
// fresh, anonymous session rather than failing it.
func Session(store sessions.Store, name string, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := store.Get(c.Request, name)

		result := metrics.SessionLoaded
		switch {
		case errors.Is(err, session.ErrInvalidCookie):
			result = metrics.SessionInvalid
			logger.DebugContext(c.Request.Context(), "discarding session cookie", "error", err)
		case err != nil:
			result = metrics.SessionError
			logger.WarnContext(c.Request.Context(), "loading session", "error", err)
		case sess.IsNew:
			result = metrics.SessionNew
		}
		metrics.SessionLoads.WithLabelValues(result).Inc()

		if sess != nil {
			c.Request = c.Request.WithContext(session.WithSession(c.Request.Context(), sess))
		}
		c.Next()
	}
}

// RateLimit rejects requests with 429 once the client IP has exhausted its
// bucket. gin resolves the client IP through the trusted proxy list.
func RateLimit(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP()) {
			metrics.RateLimited.Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"status": "error",
				"error":  "too many requests",
			})
			return
		}
		c.Next()
	}
}
