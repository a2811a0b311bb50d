/**
 * Queue Consumer for DocExtract workers
 *
 * Consumes document processing jobs from Redis and runs them through the
 * extraction pipeline. Uses Asynq for queue management; job status moves
 * through the StatusTracker so Redis and Postgres stay in sync.
 */

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/hibiken/asynq"

	"github.com/formlens/docextract/internal/document"
	"github.com/formlens/docextract/internal/errors"
	"github.com/formlens/docextract/internal/processor"
	"github.com/formlens/docextract/internal/storage"
)

// Consumer handles job consumption from the Redis queue
type Consumer struct {
	client    *asynq.Client
	server    *asynq.Server
	mux       *asynq.ServeMux
	processor processor.DocumentProcessorInterface
	status    *StatusTracker
	config    *ConsumerConfig
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	RedisURL          string
	QueueName         string
	Concurrency       int
	Processor         processor.DocumentProcessorInterface
	Status            *StatusTracker // optional; nil disables status mirroring
	ProcessingTimeout int64          // per-job timeout in milliseconds (default: 300000 = 5 minutes)
}

// NewConsumer creates a new queue consumer
func NewConsumer(cfg *ConsumerConfig) (*Consumer, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}

	if cfg.QueueName == "" {
		return nil, fmt.Errorf("QueueName is required")
	}

	if cfg.Processor == nil {
		return nil, fmt.Errorf("Processor is required")
	}

	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 2
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	// Client for task submission (re-enqueues, tests)
	client := asynq.NewClient(redisOpt)

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues: map[string]int{
				cfg.QueueName: 10, // Priority 10 for main queue
				"default":     1,  // Priority 1 for fallback
			},
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				// Exponential backoff: 5s, 10s, 20s... capped at 60s
				delay := time.Duration(5*(1<<uint(n))) * time.Second
				if delay > 60*time.Second {
					delay = 60 * time.Second
				}
				return delay
			},
			// Payloads can carry whole files; log type and error only.
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Printf("Task processing error: type=%s, error=%v", task.Type(), err)
			}),
		},
	)

	mux := asynq.NewServeMux()

	consumer := &Consumer{
		client:    client,
		server:    server,
		mux:       mux,
		processor: cfg.Processor,
		status:    cfg.Status,
		config:    cfg,
	}

	mux.HandleFunc(TypeProcessDocument, consumer.handleProcessDocument)

	return consumer, nil
}

// Start starts the queue consumer
func (c *Consumer) Start(ctx context.Context) error {
	log.Printf("Starting queue consumer (concurrency=%d, queue=%s)...",
		c.config.Concurrency, c.config.QueueName)

	go func() {
		if err := c.server.Run(c.mux); err != nil {
			log.Printf("Queue consumer error: %v", err)
		}
	}()

	return nil
}

// Stop stops the queue consumer gracefully
func (c *Consumer) Stop(ctx context.Context) error {
	log.Printf("Stopping queue consumer...")

	c.server.Shutdown()

	if err := c.client.Close(); err != nil {
		return fmt.Errorf("failed to close client: %w", err)
	}

	log.Printf("Queue consumer stopped")
	return nil
}

// handleProcessDocument processes one document job
func (c *Consumer) handleProcessDocument(ctx context.Context, task *asynq.Task) error {
	startTime := time.Now()

	var payload ProcessTaskPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %v: %w", err, asynq.SkipRetry)
	}

	log.Printf("[Job %s] Processing document: filename=%s, kind=%s",
		payload.JobID, payload.Filename, payload.Kind)

	if c.status != nil {
		c.status.MarkProcessing(ctx, &storage.JobUpdate{
			JobID:    payload.JobID,
			Filename: payload.Filename,
			Kind:     payload.Kind,
		})
	}

	timeout := time.Duration(300000) * time.Millisecond
	if c.config.ProcessingTimeout > 0 {
		timeout = time.Duration(c.config.ProcessingTimeout) * time.Millisecond
	}

	processCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := c.runJob(processCtx, &payload)

	duration := time.Since(startTime)

	if err != nil {
		if processCtx.Err() == context.DeadlineExceeded {
			log.Printf("[Job %s] Processing timed out after %v (timeout: %v)",
				payload.JobID, duration, timeout)

			timeoutErr := errors.NewProcessingTimeoutError(timeout, err)
			c.markFailed(ctx, &payload, duration, timeoutErr)
			return fmt.Errorf("processing timeout: %w", timeoutErr)
		}

		log.Printf("[Job %s] Processing failed after %v: %v", payload.JobID, duration, err)
		c.markFailed(ctx, &payload, duration, err)
		return fmt.Errorf("document processing failed: %w", err)
	}

	log.Printf("[Job %s] Processing completed in %v: entities=%d, pages=%d",
		payload.JobID, duration, result.EntityCount(), len(result.Results))

	if c.status != nil {
		c.status.MarkCompleted(ctx, &storage.JobUpdate{
			JobID:            payload.JobID,
			Filename:         payload.Filename,
			Kind:             payload.Kind,
			EntityCount:      result.EntityCount(),
			PageCount:        len(result.Results),
			ProcessingTimeMS: result.ProcessingTimeMS,
			Result:           result,
		})
	}

	return nil
}

// runJob resolves the task source and dispatches to the right pipeline entry.
func (c *Consumer) runJob(ctx context.Context, payload *ProcessTaskPayload) (*document.ProcessingResult, error) {
	threshold := payload.ConfidenceThreshold

	switch payload.Kind {
	case KindPDF:
		path := payload.Source.Path
		if path == "" {
			if len(payload.Source.Data) == 0 {
				return nil, fmt.Errorf("task has neither source path nor data: %w", asynq.SkipRetry)
			}
			tmpPath, cleanup, err := writeTempFile(payload.Source.Data, "docextract-*.pdf")
			if err != nil {
				return nil, err
			}
			defer cleanup()
			path = tmpPath
		}
		if threshold > 0 {
			return c.processor.ProcessPDFWithThreshold(ctx, path, payload.DPI, threshold)
		}
		return c.processor.ProcessPDF(ctx, path, payload.DPI)

	case KindImage, "":
		var source any
		switch {
		case payload.Source.Path != "":
			source = payload.Source.Path
		case len(payload.Source.Data) > 0:
			source = payload.Source.Data
		default:
			return nil, fmt.Errorf("task has neither source path nor data: %w", asynq.SkipRetry)
		}
		if threshold > 0 {
			return c.processor.ProcessImageWithThreshold(ctx, source, threshold)
		}
		return c.processor.ProcessImage(ctx, source)

	default:
		return nil, fmt.Errorf("unknown task kind %q: %w", payload.Kind, asynq.SkipRetry)
	}
}

func (c *Consumer) markFailed(ctx context.Context, payload *ProcessTaskPayload, duration time.Duration, err error) {
	if c.status == nil {
		return
	}
	c.status.MarkFailed(ctx, &storage.JobUpdate{
		JobID:            payload.JobID,
		Filename:         payload.Filename,
		Kind:             payload.Kind,
		ProcessingTimeMS: float64(duration.Milliseconds()),
		ErrorCode:        string(errors.CodeOf(err)),
		ErrorMessage:     err.Error(),
	})
}

// writeTempFile spills inline task bytes to disk for path-based consumers.
func writeTempFile(data []byte, pattern string) (string, func(), error) {
	tmp, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", nil, fmt.Errorf("failed to close temp file: %w", err)
	}
	return tmp.Name(), func() { os.Remove(tmp.Name()) }, nil
}

// GetStatistics returns consumer statistics
func (c *Consumer) GetStatistics() map[string]interface{} {
	return map[string]interface{}{
		"concurrency": c.config.Concurrency,
		"queue":       c.config.QueueName,
		"redisURL":    c.config.RedisURL,
	}
}
