package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ridgeline-io/ridgeline/internal/authkey"
)

type ctxKey int

const projectIDKey ctxKey = iota

// authProjectID returns the project id the request's API key resolved to,
// as set by requireAuth.
func authProjectID(ctx context.Context) int64 {
	id, _ := ctx.Value(projectIDKey).(int64)
	return id
}

// requireAuth enforces the X-API-Key header contract: 401 when missing,
// 403 when present but malformed, unknown, revoked, or secret-mismatched.
func (s *server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		presented := r.Header.Get("X-API-Key")
		if presented == "" {
			writeUnauthorized(w, "missing API key")
			return
		}

		projectID, err := authkey.Authenticate(r.Context(), s.deps.Store, presented)
		if err != nil {
			switch {
			case errors.Is(err, authkey.ErrMalformed),
				errors.Is(err, authkey.ErrUnknown),
				errors.Is(err, authkey.ErrRevoked),
				errors.Is(err, authkey.ErrMismatch):
				writeForbidden(w, "invalid API key")
			default:
				writeDetail(w, http.StatusInternalServerError, "internal error")
			}
			return
		}

		if prefix, _, ok := authkey.Split(presented); ok {
			_ = s.deps.Store.TouchLastUsed(r.Context(), prefix)
		}

		ctx := context.WithValue(r.Context(), projectIDKey, projectID)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// withRequestLog wraps a handler with a structured access log line in the
// style of the rest of the pipeline's logging package.
func (s *server) withRequestLog(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.deps.Logger.Plain().
			WithField("method", r.Method).
			WithField("path", r.URL.Path).
			WithField("status", rec.status).
			WithField("duration_ms", time.Since(start).Milliseconds()).
			Info("http request")
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
