/**
 * worker command - Redis queue worker
 *
 * Consumes docextract:process jobs until SIGINT/SIGTERM. Postgres
 * persistence is optional; without it the worker still processes jobs and
 * mirrors status into Redis.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/formlens/docextract/internal/processor"
	"github.com/formlens/docextract/internal/queue"
	"github.com/formlens/docextract/internal/storage"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the queue worker",
	RunE:  runWorker,
}

func runWorker(cmd *cobra.Command, args []string) error {
	if cfg.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required for the worker")
	}

	log.Printf("DocExtract worker starting...")
	log.Printf("Configuration loaded: Redis=%s, Queue=%s, Workers=%d",
		cfg.RedisURL, cfg.QueueName, cfg.WorkerConcurrency)

	var store *storage.PostgresClient
	if cfg.DatabaseURL != "" {
		var err error
		store, err = storage.NewPostgresClient(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
		defer store.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = store.EnsureSchema(ctx)
		cancel()
		if err != nil {
			return err
		}
		log.Printf("Storage initialized (PostgreSQL)")
	} else {
		log.Printf("Warning: DATABASE_URL not set, job persistence disabled")
	}

	tracker, err := queue.NewStatusTracker(cfg.RedisURL, cfg.QueueName, store)
	if err != nil {
		return fmt.Errorf("failed to initialize status tracker: %w", err)
	}
	defer tracker.Close()

	proc := processor.New(cfg)

	initCtx, cancelInit := context.WithTimeout(context.Background(), 60*time.Second)
	if err := proc.Initialize(initCtx); err != nil {
		log.Printf("Warning: processor initialization failed (will retry on first job): %v", err)
	}
	cancelInit()

	consumer, err := queue.NewConsumer(&queue.ConsumerConfig{
		RedisURL:          cfg.RedisURL,
		QueueName:         cfg.QueueName,
		Concurrency:       cfg.WorkerConcurrency,
		Processor:         proc,
		Status:            tracker,
		ProcessingTimeout: int64(cfg.ProcessingTimeout),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize queue consumer: %w", err)
	}

	if err := consumer.Start(context.Background()); err != nil {
		return fmt.Errorf("failed to start queue consumer: %w", err)
	}

	log.Printf("===========================================")
	log.Printf("DocExtract worker is READY")
	log.Printf("===========================================")
	log.Printf("Queue: %s", cfg.QueueName)
	log.Printf("Workers: %d", cfg.WorkerConcurrency)
	log.Printf("OCR engine: %s", cfg.OCREngine)
	log.Printf("Model: %s", cfg.ModelName)
	log.Printf("===========================================")
	log.Printf("Waiting for jobs...")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	log.Printf("Received signal %v, initiating graceful shutdown...", sig)

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := consumer.Stop(stopCtx); err != nil {
		log.Printf("Error stopping queue consumer: %v", err)
	}

	if err := proc.Shutdown(); err != nil {
		log.Printf("Error shutting down processor: %v", err)
	}

	log.Printf("Shutdown complete")
	return nil
}
