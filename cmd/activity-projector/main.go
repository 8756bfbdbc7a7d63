package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/planhub/planhub/internal/app/activity"
	"github.com/planhub/planhub/internal/platform/config"
	"github.com/planhub/planhub/internal/platform/dbpool"
	"github.com/planhub/planhub/internal/platform/env"
	"github.com/planhub/planhub/internal/platform/natsutil"
)

func main() {
	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	pool, err := dbpool.New(runCtx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()

	repository := activity.NewPostgresRepository(pool)
	if err := waitForPostgres(runCtx, repository, 30*time.Second); err != nil {
		log.Fatal(err)
	}
	projector := activity.NewProjector(repository)

	client, err := natsutil.ConnectJetStreamWithRetry(cfg.NATSURL, env.Duration("NATS_CONNECT_TIMEOUT", 20*time.Second))
	if err != nil {
		log.Fatal(err)
	}
	defer client.Close()

	// Queue group keeps replicas from double-projecting; the durable name
	// preserves the cursor across restarts.
	sub, err := client.JS.QueueSubscribe("app.activity.>", "activity-projector", func(msg *nats.Msg) {
		var streamSeq uint64
		if meta, metaErr := msg.Metadata(); metaErr == nil {
			streamSeq = meta.Sequence.Stream
		}

		applyCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := projector.Handle(applyCtx, msg.Data, streamSeq); err != nil {
			log.Printf("projection failed, leaving message for redelivery: %v", err)
			_ = msg.Nak()
			return
		}

		_ = msg.Ack()
	}, nats.ManualAck(), nats.Durable("activity-projector"))
	if err != nil {
		log.Fatal(err)
	}

	log.Println("Activity projector listening on subject:", sub.Subject)

	<-runCtx.Done()
	if err := sub.Drain(); err != nil {
		log.Printf("drain subscription: %v", err)
	}
}

func waitForPostgres(ctx context.Context, repository *activity.PostgresRepository, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		attemptCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		lastErr = repository.EnsureSchema(attemptCtx)
		cancel()

		if lastErr == nil {
			return nil
		}
		log.Printf("waiting for postgres readiness: %v", lastErr)
		time.Sleep(500 * time.Millisecond)
	}
	return lastErr
}
