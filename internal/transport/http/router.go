// Package httptransport is the thin HTTP layer. Handlers decode, validate,
// and delegate to domain services; business rules never live here.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"govvault/internal/events"
	jwttoken "govvault/internal/jwt_token"
	"govvault/internal/ledger"
	"govvault/internal/message"
	"govvault/internal/platform/health"
	"govvault/internal/policy"
	"govvault/internal/ratelimit"
	"govvault/internal/vault"
	"govvault/pkg/platform/httputil"
	"govvault/pkg/platform/middleware/request"
	"govvault/pkg/platform/middleware/requesttime"
)

const timeFormat = time.RFC3339

// Throttle applied to the paid endpoints, per caller or client IP.
const (
	rateLimit  = 30
	rateWindow = time.Minute
)

// Large enough for a maximum-size policy edit plus envelope.
const maxBodyBytes = 1 << 20

var validate = validator.New()

// Deps collects everything the router needs. Recent and Limiter are
// optional: a nil Recent disables the events endpoint, a nil Limiter
// disables throttling.
type Deps struct {
	Logger  *slog.Logger
	Tokens  *jwttoken.JWTService
	Message *message.Service
	Policy  *policy.Service
	Vault   *vault.Service
	Claims  *ledger.Ledger
	Recent  *events.MemorySink
	Health  *health.Handler
	Latency *request.Metrics
	Limiter ratelimit.Store
}

// NewRouter wires all endpoints with the shared middleware stack. Mutating
// routes sit behind bearer auth; reads and message payment are public.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(request.Recovery(d.Logger))
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(request.Logger(d.Logger))
	r.Use(request.BodyLimit(maxBodyBytes))
	r.Use(request.ContentTypeJSON)
	r.Use(request.LatencyMiddleware(d.Latency))

	d.Health.Register(r)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	messageHandler := NewMessageHandler(d.Message, d.Logger)
	policyHandler := NewPolicyHandler(d.Policy, d.Logger)
	vaultHandler := NewVaultHandler(d.Vault, d.Logger)
	ledgerHandler := NewLedgerHandler(d.Claims, d.Logger)

	// Message payment is public but paid, so it shares the throttle with the
	// authed mutating routes.
	payRoutes := chi.Router(r)
	var throttle func(http.Handler) http.Handler
	if d.Limiter != nil {
		throttle = ratelimit.Middleware(d.Limiter, rateLimit, rateWindow, d.Logger)
		payRoutes = r.With(throttle)
	}

	r.Group(func(authed chi.Router) {
		authed.Use(RequireAuth(d.Tokens))
		if throttle != nil {
			authed.Use(throttle)
		}

		messageHandler.Register(payRoutes, authed)
		policyHandler.Register(r, authed)
		vaultHandler.Register(r, authed)
		ledgerHandler.Register(r, authed)
	})

	if d.Recent != nil {
		r.Get("/v1/events", handleRecentEvents(d.Recent))
	}

	return r
}

// handleRecentEvents exposes the in-memory event ring for operators and the
// off-chain agent to poll.
func handleRecentEvents(sink *events.MemorySink) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"events": sink.Recent(),
		})
	}
}
