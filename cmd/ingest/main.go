// Command ingest runs the project-facing HTTP API: org/project/device/rule
// CRUD, telemetry ingestion, alert and delivery queries. It replaces the
// teacher's gRPC+grpc-gateway edge with a single net/http server, since
// this system has no gRPC client surface to serve.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ridgeline-io/ridgeline/internal/breaker"
	"github.com/ridgeline-io/ridgeline/internal/config"
	"github.com/ridgeline-io/ridgeline/internal/db"
	"github.com/ridgeline-io/ridgeline/internal/httpapi"
	"github.com/ridgeline-io/ridgeline/internal/kv"
	"github.com/ridgeline-io/ridgeline/internal/logging"
	"github.com/ridgeline-io/ridgeline/internal/metrics"
	"github.com/ridgeline-io/ridgeline/internal/queue"
	"github.com/ridgeline-io/ridgeline/internal/ratelimit"
	"github.com/ridgeline-io/ridgeline/internal/store"
	"github.com/ridgeline-io/ridgeline/internal/tracing"
)

func main() {
	cfg := config.FromEnv()
	ctx := context.Background()

	logger := logging.New("ridgeline-api")

	shutdown, err := tracing.InitTracing(ctx, "ridgeline-api")
	if err != nil {
		logger.Plain().WithError(err).Fatal("failed to initialize tracing")
	}
	defer shutdown()

	pool, err := db.Connect(ctx, cfg.DSN())
	if err != nil {
		logger.Plain().WithError(err).Fatal("db connect failed")
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		logger.Plain().WithError(err).Fatal("schema migration failed")
	}

	kvStore, err := kv.New(cfg.Redis.URL)
	if err != nil {
		logger.Plain().WithError(err).Fatal("redis connect failed")
	}
	defer kvStore.Close()

	repo := store.New(pool)
	cb := breaker.New(kvStore, cfg.Breaker.FailureThreshold, cfg.Breaker.RecoveryTimeout)

	publisher, err := queue.NewPublisher(cfg.NSQ.NsqdTCPAddr)
	if err != nil {
		logger.Plain().WithError(err).Fatal("nsq producer creation failed")
	}
	defer publisher.Stop()

	limiter := ratelimit.New(ratelimit.Limits{
		IngestPerMinute: cfg.RateLimit.IngestPerMinute,
		IngestPerHour:   cfg.RateLimit.IngestPerHour,
		WebhookPerHour:  cfg.RateLimit.WebhookPerHour,
		APIKeyPerHour:   cfg.RateLimit.APIKeyPerHour,
		RulePerHour:     cfg.RateLimit.RulePerHour,
		RuleBindPerHour: cfg.RateLimit.RuleBindPerHour,
		DevicePerHour:   cfg.RateLimit.DevicePerHour,
	})

	reg := prometheus.NewRegistry()
	metrics.MustRegister(reg)

	router := httpapi.NewRouter(httpapi.Deps{
		Store:       repo,
		Publisher:   publisher,
		Breaker:     cb,
		Limiter:     limiter,
		Pool:        pool,
		Logger:      logger,
		IngestTopic: cfg.NSQ.TopicIngest,
	})

	mux := http.NewServeMux()
	mux.Handle("/", router)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	httpSrv := &http.Server{Addr: cfg.HTTPPort, Handler: mux}
	go func() {
		logger.Plain().WithField("addr", httpSrv.Addr).Info("ingest API listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Plain().WithError(err).Fatal("HTTP serve failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	<-stop

	logger.Plain().Info("ingest API stopping")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)
	_ = os.Stdout.Sync()
}
