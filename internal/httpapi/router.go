package httpapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/ridgeline-io/ridgeline/internal/health"
	"github.com/ridgeline-io/ridgeline/internal/ratelimit"
)

// NewRouter builds the complete project-facing HTTP API as a plain
// net/http.ServeMux using Go 1.22's "METHOD /path/{param}" routing, in
// the style of mattcburns-shoal-provision's internal/api router.go.
func NewRouter(deps Deps) http.Handler {
	s := &server{deps: deps, validate: validator.New()}
	mux := http.NewServeMux()

	// Middleware order follows SPEC_FULL.md §6: request logging wraps
	// everything, then rate limiting, then API-key auth, then the handler.
	wrap := func(h http.HandlerFunc) http.HandlerFunc { return s.withRequestLog(h) }
	auth := func(h http.HandlerFunc) http.HandlerFunc { return wrap(s.requireAuth(h)) }
	limited := func(env ratelimit.Envelope, h http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if deps.Limiter != nil && !deps.Limiter.Allow(env, ratelimit.Subject(r)) {
				w.Header().Set("Retry-After", "60")
				writeDetail(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			h(w, r)
		}
	}
	// authLimited composes logging -> rate limiting -> auth -> handler, for
	// routes that are both authenticated and rate limited.
	authLimited := func(env ratelimit.Envelope, h http.HandlerFunc) http.HandlerFunc {
		return wrap(limited(env, s.requireAuth(h)))
	}

	mux.HandleFunc("GET /health", wrap(health.LivenessHandler()))
	mux.HandleFunc("GET /health/db", wrap(health.DBHandler(deps.Pool)))

	mux.HandleFunc("POST /orgs", wrap(s.handleCreateOrg))
	mux.HandleFunc("POST /orgs/{org_id}/projects", wrap(s.handleCreateProject))
	mux.HandleFunc("POST /projects/{project_id}/api-keys", wrap(limited(ratelimit.EnvelopeAPIKey, s.handleCreateAPIKey)))

	mux.HandleFunc("POST /projects/{project_id}/devices", authLimited(ratelimit.EnvelopeDevice, s.handleCreateDevice))
	mux.HandleFunc("GET /projects/{project_id}/devices", auth(s.handleListDevices))
	mux.HandleFunc("GET /projects/{project_id}/devices/{id}", auth(s.handleGetDevice))
	mux.HandleFunc("DELETE /projects/{project_id}/devices/{id}", auth(s.handleDeleteDevice))
	mux.HandleFunc("PATCH /projects/{project_id}/devices/{id}/tags", auth(s.handleReplaceTags))
	mux.HandleFunc("POST /projects/{project_id}/devices/{id}/tags", auth(s.handleAddTags))
	mux.HandleFunc("DELETE /projects/{project_id}/devices/{id}/tags", auth(s.handleRemoveTags))

	mux.HandleFunc("POST /projects/{project_id}/rules", authLimited(ratelimit.EnvelopeRule, s.handleCreateRule))
	mux.HandleFunc("GET /projects/{project_id}/rules", auth(s.handleListRules))
	mux.HandleFunc("GET /projects/{project_id}/rules/enabled", auth(s.handleListRules))
	mux.HandleFunc("GET /rules/{rule_id}", auth(s.handleGetRule))
	mux.HandleFunc("PATCH /rules/{rule_id}", authLimited(ratelimit.EnvelopeRule, s.handleUpdateRule))
	mux.HandleFunc("DELETE /rules/{rule_id}", authLimited(ratelimit.EnvelopeRule, s.handleDeleteRule))
	mux.HandleFunc("POST /rules/{rule_id}/devices", authLimited(ratelimit.EnvelopeRuleBind, s.handleBindDevices))

	mux.HandleFunc("POST /telemetry", authLimited(ratelimit.EnvelopeIngest, s.handleIngest))
	mux.HandleFunc("GET /telemetry/devices/{id}/telemetry", auth(s.handleRecentTelemetry))
	mux.HandleFunc("GET /telemetry/devices/{id}/telemetry/latest", auth(s.handleLatestTelemetry))
	mux.HandleFunc("GET /telemetry/devices/{id}/telemetry/since", auth(s.handleTelemetrySince))

	mux.HandleFunc("GET /devices/{id}/alerts", auth(s.handleListAlertsForDevice))
	mux.HandleFunc("GET /projects/{id}/alerts", auth(s.handleListAlertsForProject))

	mux.HandleFunc("POST /projects/{id}/webhooks", authLimited(ratelimit.EnvelopeWebhook, s.handleCreateWebhook))
	mux.HandleFunc("GET /projects/{id}/webhooks", auth(s.handleListWebhooks))
	mux.HandleFunc("GET /webhooks/{id}", auth(s.handleGetWebhook))
	mux.HandleFunc("POST /webhooks/{id}/disable", auth(s.handleDisableWebhook))
	mux.HandleFunc("GET /webhooks/{id}/circuit-status", auth(s.handleCircuitStatus))

	mux.HandleFunc("GET /projects/{id}/webhook-deliveries", auth(s.handleListDeliveriesForProject))

	return mux
}
