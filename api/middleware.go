package api

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nhalm/canonlog"
)

// statusRecorder captures the response status for the request log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// RequestLogger returns middleware emitting one canonical log line per
// request: method, route, status, and duration.
func RequestLogger() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := canonlog.NewContext(r.Context())
			start := time.Now()

			canonlog.InfoAddMany(ctx, map[string]any{
				"method": r.Method,
				"path":   r.URL.Path,
			})

			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r.WithContext(ctx))

			route := r.URL.Path
			if rctx := chi.RouteContext(ctx); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					route = pattern
				}
			}

			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			canonlog.InfoAddMany(ctx, map[string]any{
				"route":       route,
				"status":      status,
				"duration_ms": time.Since(start).Milliseconds(),
			})
			canonlog.Flush(ctx)
		})
	}
}

// rateLimit checks the client IP against the limiter before admitting the
// request. Sets RateLimit-Limit and RateLimit-Remaining on every response,
// plus RateLimit-Reset and Retry-After on 429s, per the IETF rate limit
// header draft. A store failure never blocks the request; the limiter fails
// open and the check reports a zero count.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		decision := s.limiter.Check(r.Context(), clientIP(r))

		w.Header().Set("RateLimit-Limit", strconv.FormatInt(decision.Limit, 10))
		w.Header().Set("RateLimit-Remaining", strconv.FormatInt(decision.Remaining, 10))

		if !decision.Allowed {
			w.Header().Set("RateLimit-Reset", strconv.FormatInt(time.Now().Add(decision.RetryAfter).Unix(), 10))
			retryAfter := int(decision.RetryAfter.Round(time.Second).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			canonlog.InfoAdd(r.Context(), "rate_limited", true)
			writeError(w, ErrRateLimited)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientIP extracts the caller's IP from RemoteAddr, dropping the port.
func clientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
