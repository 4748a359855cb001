// Package middleware contains the HTTP middleware chain of the proxy:
// request logging, panic recovery, rate limiting and metrics.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

type contextKey string

// requestIDKey хранит request id в контексте запроса
const requestIDKey contextKey = "request_id"

// RequestIDHeader is echoed back to the agent so failures can be correlated
// with server logs.
const RequestIDHeader = "X-Request-Id"

// RequestID returns the request id attached by LoggingMiddleware, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int64
}

// WriteHeader captures the status code
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Write captures the number of bytes written
func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// LoggingMiddleware создает middleware для логирования HTTP запросов.
// Каждому запросу присваивается request id (uuid), он кладется в контекст
// и возвращается в ответе через X-Request-Id.
// НЕ логирует sensitive данные (токены в query string редактируются).
func LoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			ctx := context.WithValue(r.Context(), requestIDKey, requestID)
			w.Header().Set(RequestIDHeader, requestID)

			wrapped := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK, // default status
			}

			next.ServeHTTP(wrapped, r.WithContext(ctx))

			duration := time.Since(start)

			// Уровень логирования по статусу ответа
			logLevel := slog.LevelInfo
			if wrapped.statusCode >= 500 {
				logLevel = slog.LevelError
			} else if wrapped.statusCode >= 400 {
				logLevel = slog.LevelWarn
			}

			logger.Log(ctx, logLevel, "HTTP request",
				"request_id", requestID,
				"method", r.Method,
				"path", r.URL.Path,
				"query", sanitizeQuery(r.URL.Query()),
				"remote_addr", r.RemoteAddr,
				"status", wrapped.statusCode,
				"duration_ms", duration.Milliseconds(),
				"bytes_written", wrapped.written,
			)
		})
	}
}

// sensitiveParams — query параметры, которые нельзя писать в лог.
// Session listing передает bearer токен через ?token=.
var sensitiveParams = map[string]bool{
	"token": true,
}

// sanitizeQuery редактирует sensitive значения перед логированием
func sanitizeQuery(query url.Values) string {
	if len(query) == 0 {
		return ""
	}
	redacted := make(url.Values, len(query))
	for name, values := range query {
		if sensitiveParams[name] {
			redacted.Set(name, "***")
			continue
		}
		redacted[name] = values
	}
	return redacted.Encode()
}

// LoggingWithSkip создает middleware с возможностью пропуска определенных путей
// Полезно для /healthz и /metrics с высокой частотой запросов
func LoggingWithSkip(logger *slog.Logger, skipPaths []string) func(http.Handler) http.Handler {
	skipMap := make(map[string]bool)
	for _, path := range skipPaths {
		skipMap[path] = true
	}

	return func(next http.Handler) http.Handler {
		logged := LoggingMiddleware(logger)(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if skipMap[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}
			logged.ServeHTTP(w, r)
		})
	}
}
