package main

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/casebridge/casebridge/internal/app/auditsink"
	"github.com/casebridge/casebridge/internal/platform/dbpool"
	"github.com/casebridge/casebridge/internal/platform/env"
	"github.com/casebridge/casebridge/internal/platform/logger"
	"github.com/casebridge/casebridge/internal/platform/natsutil"
)

func main() {
	ctx := context.Background()

	zlog, err := logger.New(env.String("LOG_LEVEL", "info"), env.String("LOG_FORMAT", "json"), "audit-sink")
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = zlog.Sync() }()

	pool, err := dbpool.New(ctx, env.String("DATABASE_URL", env.DefaultDatabaseURL))
	if err != nil {
		zlog.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	repository := auditsink.NewEventRepository(pool)
	if err := dbpool.WaitReady(ctx, pool, repository.EnsureSchema, 30*time.Second); err != nil {
		zlog.Fatal("postgres readiness", zap.Error(err))
	}
	service := auditsink.NewService(repository)

	client, err := natsutil.ConnectJetStreamWithRetry(env.String("NATS_URL", env.DefaultNATSURL), 20*time.Second)
	if err != nil {
		zlog.Fatal("connect nats", zap.Error(err))
	}
	defer client.Close()

	sub, err := client.JS.QueueSubscribe("sync.event.>", "audit-sink", func(msg *nats.Msg) {
		var eventSeq uint64
		if meta, metaErr := msg.Metadata(); metaErr == nil {
			eventSeq = meta.Sequence.Stream
		}

		insertCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := service.Handle(insertCtx, msg.Data, eventSeq); err != nil {
			if errors.Is(err, auditsink.ErrInvalidEventPayload) {
				zlog.Warn("discarding invalid event payload", zap.Error(err))
				_ = msg.Term()
				return
			}
			if errors.Is(err, auditsink.ErrUnsupportedEventType) {
				zlog.Warn("discarding unsupported event type", zap.Error(err))
				_ = msg.Term()
				return
			}
			zlog.Error("event persistence failed", zap.Error(err))
			_ = msg.Nak()
			return
		}

		_ = msg.Ack()
	}, nats.ManualAck())
	if err != nil {
		zlog.Fatal("subscribe events", zap.Error(err))
	}

	zlog.Info("audit sink listening", zap.String("subject", sub.Subject))

	// Keep alive
	select {}
}
