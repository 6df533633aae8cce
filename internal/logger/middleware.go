package logger

import (
	"net/http"
	"strings"
	"time"

	apperrors "github.com/adgenie/backend/internal/errors"
)

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{
		ResponseWriter: w,
		status:         http.StatusOK,
	}
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.status = code
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// LoggingMiddleware logs HTTP requests and responses
func LoggingMiddleware(next http.Handler) http.Handler {
	log := Default().WithComponent("http")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := apperrors.GetRequestID(r.Context())

		// Don't log health probes
		if r.URL.Path == "/health" || r.URL.Path == "/health/live" || r.URL.Path == "/health/ready" {
			next.ServeHTTP(w, r)
			return
		}

		rw := newResponseWriter(w)

		log.Info(r.Context(), "request started", map[string]any{
			"method":     r.Method,
			"path":       r.URL.Path,
			"query":      sanitizeQuery(r.URL.RawQuery),
			"remote_ip":  ClientIP(r),
			"user_agent": r.UserAgent(),
			"request_id": requestID,
		})

		next.ServeHTTP(rw, r)

		duration := time.Since(start)

		fields := map[string]any{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      rw.status,
			"duration_ms": duration.Milliseconds(),
			"request_id":  requestID,
		}

		if rw.status >= 400 {
			log.Warn(r.Context(), "request completed with error", fields)
		} else {
			log.Info(r.Context(), "request completed", fields)
		}
	})
}

// sanitizeQuery removes sensitive parameters from the query string
func sanitizeQuery(query string) string {
	if query == "" {
		return ""
	}

	sensitiveParams := []string{"token", "password", "secret", "key", "auth", "code"}
	parts := strings.Split(query, "&")
	sanitized := make([]string, 0, len(parts))

	for _, part := range parts {
		keyVal := strings.SplitN(part, "=", 2)
		if len(keyVal) != 2 {
			sanitized = append(sanitized, part)
			continue
		}

		isSensitive := false
		lowerKey := strings.ToLower(keyVal[0])
		for _, s := range sensitiveParams {
			if strings.Contains(lowerKey, s) {
				isSensitive = true
				break
			}
		}

		if isSensitive {
			sanitized = append(sanitized, keyVal[0]+"=[REDACTED]")
		} else {
			sanitized = append(sanitized, part)
		}
	}

	return strings.Join(sanitized, "&")
}

// ClientIP extracts the client IP from the request, honoring proxy headers.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	return r.RemoteAddr
}

// RecoveryMiddleware recovers from panics and logs them
func RecoveryMiddleware(next http.Handler) http.Handler {
	log := Default().WithComponent("recovery")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				requestID := apperrors.GetRequestID(r.Context())

				log.Error(r.Context(), "panic recovered", nil, map[string]any{
					"panic":      err,
					"request_id": requestID,
					"path":       r.URL.Path,
					"method":     r.Method,
				})

				apperrors.WriteError(w, requestID, apperrors.InternalError("an unexpected error occurred"))
			}
		}()

		next.ServeHTTP(w, r)
	})
}
