// Package httpapi is the project-facing HTTP surface: organization,
// project, API-key, device, rule, telemetry, alert and webhook CRUD plus
// the telemetry ingest endpoint. Every route except /health, /health/db,
// organization and project creation and API-key issuance requires an API
// key. API-key issuance, device creation, rule writes, rule binding,
// ingest and webhook creation are rate limited per the documented
// envelopes; the other routes are not.
//
// Grounded on the teacher's internal/ingest gRPC+gateway service for the
// request/response shapes it replaces, and on
// mattcburns-shoal-provision's internal/api package (router.go,
// respond.go) for the plain net/http.ServeMux + handler-struct style
// this package uses instead of a generated gateway.
package httpapi

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ridgeline-io/ridgeline/internal/authkey"
	"github.com/ridgeline-io/ridgeline/internal/breaker"
	"github.com/ridgeline-io/ridgeline/internal/logging"
	"github.com/ridgeline-io/ridgeline/internal/ratelimit"
	"github.com/ridgeline-io/ridgeline/internal/store"
)

// Store is the subset of *store.Store the API handlers depend on.
type Store interface {
	authkey.Lookuper

	CreateOrg(ctx context.Context, name string) (store.Org, error)
	CreateProject(ctx context.Context, orgID int64, name string) (store.Project, error)
	GetProject(ctx context.Context, id int64) (store.Project, error)

	CreateAPIKey(ctx context.Context, projectID int64) (string, store.APIKey, error)
	TouchLastUsed(ctx context.Context, prefix string) error

	CreateDevice(ctx context.Context, projectID int64, externalID, name string, tags []string) (store.Device, error)
	GetDevice(ctx context.Context, id int64) (store.Device, error)
	GetDeviceByExternalID(ctx context.Context, projectID int64, externalID string) (store.Device, error)
	ListDevices(ctx context.Context, projectID int64) ([]store.Device, error)
	DeleteDevice(ctx context.Context, id int64) error
	ReplaceTags(ctx context.Context, id int64, tags []string) ([]string, error)
	AddTags(ctx context.Context, id int64, tags []string) ([]string, error)
	RemoveTags(ctx context.Context, id int64, tags []string) ([]string, error)

	CreateRule(ctx context.Context, r store.Rule) (store.Rule, error)
	GetRule(ctx context.Context, id int64) (store.Rule, error)
	ListRules(ctx context.Context, projectID int64, enabledOnly bool) ([]store.Rule, error)
	UpdateRule(ctx context.Context, r store.Rule) (store.Rule, error)
	DeleteRule(ctx context.Context, id int64) error
	BindDevices(ctx context.Context, ruleID int64, deviceIDs []int64) error

	InsertEvents(ctx context.Context, deviceID int64, events []store.TelemetryEvent) (int, error)
	LastNEvents(ctx context.Context, deviceID int64, n int) ([]store.TelemetryEvent, error)
	ListSince(ctx context.Context, deviceID int64, sinceTS time.Time, limit int) ([]store.TelemetryEvent, error)

	GetAlert(ctx context.Context, id int64) (store.Alert, error)
	ListAlerts(ctx context.Context, projectID int64, limit int) ([]store.Alert, error)
	ListAlertsForDevice(ctx context.Context, deviceID int64, limit int) ([]store.Alert, error)

	CreateWebhook(ctx context.Context, projectID int64, url, secret string) (store.WebhookSubscription, error)
	GetWebhook(ctx context.Context, id int64) (store.WebhookSubscription, error)
	ListWebhooks(ctx context.Context, projectID int64, enabledOnly bool) ([]store.WebhookSubscription, error)
	DisableWebhook(ctx context.Context, id int64) error
	ListDeliveriesForProject(ctx context.Context, projectID int64, status *store.DeliveryStatus, limit int) ([]store.WebhookDelivery, error)
}

// Publisher is the subset of *queue.Publisher the ingest endpoint uses.
type Publisher interface {
	Publish(ctx context.Context, topic string, task any) error
}

// Deps bundles the server's dependencies; Pool is used only for the
// /health/db liveness check, not by any handler directly.
type Deps struct {
	Store       Store
	Publisher   Publisher
	Breaker     *breaker.Breaker
	Limiter     *ratelimit.Limiter
	Pool        *pgxpool.Pool
	Logger      *logging.Logger
	IngestTopic string
}

type server struct {
	deps     Deps
	validate *validator.Validate
}
