package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/casebridge/casebridge/internal/app/syncrun"
	"github.com/casebridge/casebridge/internal/app/syncworker"
	"github.com/casebridge/casebridge/internal/legacy"
	"github.com/casebridge/casebridge/internal/platform/dbpool"
	"github.com/casebridge/casebridge/internal/platform/env"
	"github.com/casebridge/casebridge/internal/platform/logger"
	"github.com/casebridge/casebridge/internal/platform/metrics"
	"github.com/casebridge/casebridge/internal/platform/natsutil"
	"github.com/casebridge/casebridge/internal/platform/synclock"
	"github.com/casebridge/casebridge/internal/shadow"
	"github.com/casebridge/casebridge/internal/triage"
)

var (
	syncRunsTotal = metrics.NewCounterVec(metrics.Opts{
		Name: "casebridge_sync_runs_total",
		Help: "Sync runs by entity type and terminal status.",
	}, []string{"entity_type", "status"})
	syncRecordsTotal = metrics.NewCounterVec(metrics.Opts{
		Name: "casebridge_sync_records_total",
		Help: "Records reconciled by entity type and outcome.",
	}, []string{"entity_type", "outcome"})
	rejectedCommandsTotal = metrics.NewCounterVec(metrics.Opts{
		Name: "casebridge_rejected_commands_total",
		Help: "Commands discarded without a run, by reason.",
	}, []string{"reason"})
)

func init() {
	metrics.Default.MustRegister(syncRunsTotal, syncRecordsTotal, rejectedCommandsTotal)
}

func main() {
	ctx := context.Background()

	zlog, err := logger.New(env.String("LOG_LEVEL", "info"), env.String("LOG_FORMAT", "json"), "sync-worker")
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = zlog.Sync() }()

	pool, err := dbpool.New(ctx, env.String("DATABASE_URL", env.DefaultDatabaseURL))
	if err != nil {
		zlog.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()
	if err := dbpool.WaitReady(ctx, pool, func(c context.Context) error {
		return shadow.EnsureSchema(c, pool)
	}, 30*time.Second); err != nil {
		zlog.Fatal("postgres readiness", zap.Error(err))
	}

	redisOpts, err := redis.ParseURL(env.String("REDIS_URL", env.DefaultRedisURL))
	if err != nil {
		zlog.Fatal("parse redis url", zap.Error(err))
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()
	locker := synclock.NewLocker(redisClient, env.Duration("SYNC_LOCK_TTL", 15*time.Minute))

	legacyClient := legacy.NewClient(
		env.String("LEGACY_API_URL", "http://localhost:7080"),
		env.String("LEGACY_API_KEY", ""),
		zlog,
	)

	var classifier triage.Classifier
	if triageURL := env.String("TRIAGE_API_URL", ""); triageURL != "" {
		classifier = triage.NewClient(triageURL, env.String("TRIAGE_API_KEY", ""), zlog)
	}

	client, err := natsutil.ConnectJetStreamWithRetry(env.String("NATS_URL", env.DefaultNATSURL), 20*time.Second)
	if err != nil {
		zlog.Fatal("connect nats", zap.Error(err))
	}
	defer client.Close()

	publisher := natsutil.JetStreamPublisher{JS: client.JS}
	engine := syncrun.NewEngine(publisher.Publish, zlog)
	engine.BatchSize = env.Int("SYNC_BATCH_SIZE", syncrun.DefaultBatchSize)
	engine.MaxPages = env.Int("SYNC_MAX_PAGES", syncrun.DefaultMaxPages)

	sources := syncworker.Sources{
		Cases:        syncrun.NewCaseSource(legacyClient, shadow.NewCaseRepository(pool)),
		Constituents: syncrun.NewConstituentSource(legacyClient, shadow.NewConstituentRepository(pool)),
		Emails:       syncrun.NewEmailSource(legacyClient, shadow.NewEmailRepository(pool), classifier, zlog),
	}
	service := syncworker.NewService(engine, sources, locker, publisher.Publish, zlog)

	runTimeout := env.Duration("SYNC_RUN_TIMEOUT", 10*time.Minute)

	sub, err := client.JS.QueueSubscribe("sync.command.>", "sync-worker", func(msg *nats.Msg) {
		runCtx, cancel := context.WithTimeout(ctx, runTimeout)
		defer cancel()

		res, err := service.Handle(runCtx, msg.Data)
		if err != nil {
			switch {
			case errors.Is(err, syncworker.ErrInvalidCommandPayload):
				zlog.Warn("discarding invalid command payload", zap.Error(err))
				rejectedCommandsTotal.WithLabelValues("invalid_payload").Inc()
				_ = msg.Term()
			case errors.Is(err, syncworker.ErrUnknownEntityType):
				zlog.Warn("discarding command for unknown entity type", zap.Error(err))
				rejectedCommandsTotal.WithLabelValues("unknown_entity").Inc()
				_ = msg.Term()
			case errors.Is(err, syncworker.ErrRunRejected):
				zlog.Info("command rejected, a sync for this office and entity is already running")
				rejectedCommandsTotal.WithLabelValues("already_running").Inc()
				_ = msg.Term()
			default:
				zlog.Error("command processing failed", zap.Error(err))
				_ = msg.Nak()
			}
			return
		}

		status := "completed"
		if !res.Success {
			status = "failed"
		}
		syncRunsTotal.WithLabelValues(res.EntityType, status).Inc()
		syncRecordsTotal.WithLabelValues(res.EntityType, "created").Add(float64(res.RecordsCreated))
		syncRecordsTotal.WithLabelValues(res.EntityType, "updated").Add(float64(res.RecordsUpdated))
		syncRecordsTotal.WithLabelValues(res.EntityType, "failed").Add(float64(res.RecordsFailed))
		_ = msg.Ack()
	}, nats.ManualAck(), nats.AckWait(runTimeout+time.Minute))
	if err != nil {
		zlog.Fatal("subscribe commands", zap.Error(err))
	}

	metricsAddr := env.String("METRICS_ADDR", env.DefaultMetricsAddr)
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.DefaultHandler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			zlog.Error("metrics server", zap.Error(err))
		}
	}()

	zlog.Info("sync worker listening",
		zap.String("subject", sub.Subject),
		zap.String("metrics_addr", metricsAddr),
		zap.Duration("run_timeout", runTimeout),
		zap.Int("batch_size", engine.BatchSize))

	// Keep alive
	select {}
}
