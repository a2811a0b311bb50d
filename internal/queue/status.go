/**
 * Job status tracking for DocExtract workers
 *
 * Mirrors job state into Redis (processing/completed/failed sets, result
 * and error hashes, a pub/sub event stream) and into Postgres. Both sinks
 * are optional and best-effort: a sink failure logs a warning and never
 * fails the job itself.
 */

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/formlens/docextract/internal/storage"
)

// Job status values
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// StatusTracker publishes job status transitions.
type StatusTracker struct {
	client    *redis.Client
	store     *storage.PostgresClient
	queueName string
}

// NewStatusTracker creates a tracker. Either sink may be absent: an empty
// redisURL disables the Redis mirror, a nil store disables persistence.
func NewStatusTracker(redisURL, queueName string, store *storage.PostgresClient) (*StatusTracker, error) {
	if queueName == "" {
		queueName = "docextract"
	}

	tracker := &StatusTracker{
		store:     store,
		queueName: queueName,
	}

	if redisURL != "" {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		client := redis.NewClient(opt)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		tracker.client = client
	}

	return tracker, nil
}

// MarkProcessing records that a worker picked the job up.
func (t *StatusTracker) MarkProcessing(ctx context.Context, update *storage.JobUpdate) {
	update.Status = StatusProcessing

	if t.client != nil {
		if err := t.client.SAdd(ctx, t.key("processing"), update.JobID).Err(); err != nil {
			log.Printf("[Job %s] Warning: failed to record processing status in Redis: %v", update.JobID, err)
		}
	}

	t.persist(ctx, update)
	t.publish(ctx, update.JobID, StatusProcessing)
}

// MarkCompleted records a successful job, including its full result.
func (t *StatusTracker) MarkCompleted(ctx context.Context, update *storage.JobUpdate) {
	update.Status = StatusCompleted

	if t.client != nil {
		t.client.SRem(ctx, t.key("processing"), update.JobID)
		if err := t.client.SAdd(ctx, t.key("completed"), update.JobID).Err(); err != nil {
			log.Printf("[Job %s] Warning: failed to record completed status in Redis: %v", update.JobID, err)
		}
		if update.Result != nil {
			if data, err := json.Marshal(update.Result); err == nil {
				t.client.HSet(ctx, t.key("results"), update.JobID, data)
			}
		}
	}

	t.persist(ctx, update)
	t.publish(ctx, update.JobID, StatusCompleted)
}

// MarkFailed records a failed job with its error code and message.
func (t *StatusTracker) MarkFailed(ctx context.Context, update *storage.JobUpdate) {
	update.Status = StatusFailed

	if t.client != nil {
		t.client.SRem(ctx, t.key("processing"), update.JobID)
		if err := t.client.SAdd(ctx, t.key("failed"), update.JobID).Err(); err != nil {
			log.Printf("[Job %s] Warning: failed to record failed status in Redis: %v", update.JobID, err)
		}
		errorData, _ := json.Marshal(map[string]string{
			"code":  update.ErrorCode,
			"error": update.ErrorMessage,
		})
		t.client.HSet(ctx, t.key("errors"), update.JobID, errorData)
	}

	t.persist(ctx, update)
	t.publish(ctx, update.JobID, StatusFailed)
}

// Stats returns the size of each Redis status set.
func (t *StatusTracker) Stats(ctx context.Context) (map[string]int64, error) {
	if t.client == nil {
		return nil, fmt.Errorf("redis is not configured")
	}

	processing, _ := t.client.SCard(ctx, t.key("processing")).Result()
	completed, _ := t.client.SCard(ctx, t.key("completed")).Result()
	failed, _ := t.client.SCard(ctx, t.key("failed")).Result()

	return map[string]int64{
		"processing": processing,
		"completed":  completed,
		"failed":     failed,
	}, nil
}

// Close releases the Redis connection. The storage client is owned by the
// caller and is not closed here.
func (t *StatusTracker) Close() error {
	if t.client != nil {
		return t.client.Close()
	}
	return nil
}

func (t *StatusTracker) persist(ctx context.Context, update *storage.JobUpdate) {
	if t.store == nil {
		return
	}
	if err := t.store.UpdateJobStatus(ctx, update); err != nil {
		log.Printf("[Job %s] Warning: failed to persist %s status: %v", update.JobID, update.Status, err)
	}
}

// publish emits a job event for subscribers (UIs, websocket bridges).
func (t *StatusTracker) publish(ctx context.Context, jobID, status string) {
	if t.client == nil {
		return
	}
	event := map[string]interface{}{
		"event":     fmt.Sprintf("job:%s", status),
		"job_id":    jobID,
		"timestamp": time.Now().Format(time.RFC3339),
	}
	data, _ := json.Marshal(event)
	if err := t.client.Publish(ctx, t.key("events"), data).Err(); err != nil {
		log.Printf("[Job %s] Warning: failed to publish %s event: %v", jobID, status, err)
	}
}

func (t *StatusTracker) key(suffix string) string {
	return fmt.Sprintf("%s:%s", t.queueName, suffix)
}
