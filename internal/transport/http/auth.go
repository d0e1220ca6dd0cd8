package httptransport

import (
	"net/http"
	"strings"

	jwttoken "govvault/internal/jwt_token"
	"govvault/pkg/domain"
	dErrors "govvault/pkg/domain-errors"
	"govvault/pkg/platform/httputil"
	"govvault/pkg/requestcontext"
)

// RequireAuth validates the bearer token and stores the caller identity in
// the request context. Role checks stay in the services; the middleware only
// establishes who is calling.
func RequireAuth(tokens *jwttoken.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing bearer token"))
				return
			}

			caller, err := tokens.ValidateToken(token)
			if err != nil {
				httputil.WriteError(w, err)
				return
			}

			ctx := requestcontext.WithCaller(r.Context(), caller)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// callerFrom returns the authenticated identity set by RequireAuth. A missing
// caller on an authed route is a wiring bug, reported as internal.
func callerFrom(w http.ResponseWriter, r *http.Request) (domain.Address, bool) {
	caller, ok := requestcontext.Caller(r.Context())
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return domain.Address{}, false
	}
	return caller, true
}
