package ratelimit

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"govvault/pkg/platform/httputil"
	"govvault/pkg/requestcontext"
)

// Middleware throttles requests per caller. Authenticated requests are keyed
// by the caller identity, anonymous ones by client IP.
func Middleware(store Store, limit int, window time.Duration, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			result, err := store.Allow(ctx, clientKey(r), limit, window)
			if err != nil {
				// Fail open; see the store contract.
				logger.WarnContext(ctx, "rate limit check failed", "error", err)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))

			if !result.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
				httputil.WriteJSON(w, http.StatusTooManyRequests, map[string]string{
					"error":             "rate_limited",
					"error_description": "rate limit exceeded",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	if caller, ok := requestcontext.Caller(r.Context()); ok {
		return "caller:" + caller.String()
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
