// Command worker runs the ingestion → evaluation → fan-out → delivery
// pipeline as four NSQ consumer groups sharing one process, the teacher's
// single-binary worker shape generalized from one topic to the full chain.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nsqio/go-nsq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ridgeline-io/ridgeline/internal/breaker"
	"github.com/ridgeline-io/ridgeline/internal/config"
	"github.com/ridgeline-io/ridgeline/internal/db"
	"github.com/ridgeline-io/ridgeline/internal/delivery"
	"github.com/ridgeline-io/ridgeline/internal/evaluation"
	"github.com/ridgeline-io/ridgeline/internal/fanout"
	"github.com/ridgeline-io/ridgeline/internal/ingestworker"
	"github.com/ridgeline-io/ridgeline/internal/kv"
	"github.com/ridgeline-io/ridgeline/internal/logging"
	"github.com/ridgeline-io/ridgeline/internal/metrics"
	"github.com/ridgeline-io/ridgeline/internal/queue"
	"github.com/ridgeline-io/ridgeline/internal/store"
	"github.com/ridgeline-io/ridgeline/internal/tracing"
)

// concurrency is the per-topic handler goroutine count; kept modest since
// each handler does its own blocking DB/HTTP work.
const concurrency = 8

func main() {
	cfg := config.FromEnv()
	ctx := context.Background()

	logger := logging.New("ridgeline-worker")

	shutdown, err := tracing.InitTracing(ctx, "ridgeline-worker")
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

	reg := prometheus.NewRegistry()
	metrics.MustRegister(reg)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	httpSrv := &http.Server{Addr: cfg.Worker.HTTPPort, Handler: mux}
	go func() {
		logger.Plain().WithField("addr", httpSrv.Addr).Info("worker HTTP server starting")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Plain().WithError(err).Fatal("worker HTTP server failed")
		}
	}()

	ingestConsumer := mustConsumer(cfg.NSQ.TopicIngest, cfg.NSQ.WorkerChannel, logger)
	ingestConsumer.AddConcurrentHandlers(ingestworker.NewWorker(repo, publisher, logger), concurrency)

	evalConsumer := mustConsumer(cfg.NSQ.TopicEvaluate, cfg.NSQ.WorkerChannel, logger)
	evalEngine := evaluation.NewEngine(repo, logger)
	evalConsumer.AddConcurrentHandlers(evaluation.NewWorker(evalEngine, publisher), concurrency)

	fanoutConsumer := mustConsumer(cfg.NSQ.TopicFanout, cfg.NSQ.WorkerChannel, logger)
	fanoutConsumer.AddConcurrentHandlers(fanout.NewWorker(repo, publisher, logger), concurrency)

	var dlq delivery.Publisher
	if cfg.Worker.PublishDLQ {
		dlq = publisher
	}
	deliverConsumer := mustConsumer(cfg.NSQ.TopicDeliver, cfg.NSQ.WorkerChannel, logger)
	deliverConsumer.AddConcurrentHandlers(delivery.NewWorker(repo, cb, dlq, cfg.Worker, logger), concurrency)

	lookupdAddrs := []string{cfg.NSQ.LookupHTTPAddr}
	for _, c := range []*nsq.Consumer{ingestConsumer, evalConsumer, fanoutConsumer, deliverConsumer} {
		if err := c.ConnectToNSQLookupds(lookupdAddrs); err != nil {
			logger.Plain().WithError(err).Fatal("nsq consumer connect failed")
		}
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	<-stop

	logger.Plain().Info("shutting down")
	for _, c := range []*nsq.Consumer{ingestConsumer, evalConsumer, fanoutConsumer, deliverConsumer} {
		c.Stop()
		<-c.StopChan
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(shutdownCtx)
}

func mustConsumer(topic, channel string, logger *logging.Logger) *nsq.Consumer {
	conf := nsq.NewConfig()
	conf.MaxInFlight = 1000
	consumer, err := nsq.NewConsumer(topic, channel, conf)
	if err != nil {
		logger.Plain().WithField("topic", topic).WithError(err).Fatal("nsq consumer creation failed")
	}
	return consumer
}
