package api

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/medisched/hospital-booking/internal/scheduling"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	principalKey contextKey = "principal"
)

// RequestIDMiddleware adds a unique request ID to each request context
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// LoggingMiddleware logs each request with method, path, status, duration
// and request ID.
func LoggingMiddleware(log *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			log.WithFields(logrus.Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     wrapped.statusCode,
				"duration":   time.Since(start).String(),
				"request_id": GetRequestID(r.Context()),
			}).Info("request")
		})
	}
}

// PrincipalMiddleware extracts the authenticated principal handed over by
// the identity collaborator. The core trusts these headers; verifying them
// is the gateway's job.
func PrincipalMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		idHeader := r.Header.Get("X-User-ID")
		roleHeader := r.Header.Get("X-User-Role")
		if idHeader == "" || roleHeader == "" {
			next.ServeHTTP(w, r)
			return
		}

		id, err := uuid.Parse(idHeader)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_principal", "X-User-ID must be a valid UUID")
			return
		}

		role := scheduling.Role(roleHeader)
		if role != scheduling.RoleDoctor && role != scheduling.RolePatient {
			writeError(w, http.StatusUnauthorized, "invalid_principal", "X-User-Role must be DOCTOR or PATIENT")
			return
		}

		p := scheduling.Principal{ID: id, Role: role}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey, p)))
	})
}

// RequireRole rejects requests without a principal (401) or with the wrong
// role (403). An empty role only requires authentication.
func RequireRole(role scheduling.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFrom(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthenticated", "missing X-User-ID / X-User-Role headers")
				return
			}
			if role != "" && p.Role != role {
				writeError(w, http.StatusForbidden, "forbidden", "this operation requires the "+string(role)+" role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// PrincipalFrom retrieves the principal from the request context.
func PrincipalFrom(ctx context.Context) (scheduling.Principal, bool) {
	p, ok := ctx.Value(principalKey).(scheduling.Principal)
	return p, ok
}

// GetRequestID retrieves the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
