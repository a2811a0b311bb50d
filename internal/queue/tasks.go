/**
 * Task definitions and producer for the DocExtract queue
 *
 * Producers (API, CLI) enqueue docextract:process tasks; the worker's
 * Consumer picks them up. Payloads carry either a path visible to the
 * worker or the raw file bytes inline.
 */

package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/formlens/docextract/internal/errors"
)

// TypeProcessDocument is the asynq task type for document processing jobs.
const TypeProcessDocument = "docextract:process"

// Job kinds
const (
	KindImage = "image"
	KindPDF   = "pdf"
)

// TaskSource points at the document to process: a path reachable from the
// worker, or the file bytes inline (base64 on the wire).
type TaskSource struct {
	Path string `json:"path,omitempty"`
	Data []byte `json:"data,omitempty"`
}

// ProcessTaskPayload is the JSON payload of a docextract:process task.
type ProcessTaskPayload struct {
	JobID               string     `json:"job_id"`
	Filename            string     `json:"filename,omitempty"`
	Kind                string     `json:"kind"`
	Source              TaskSource `json:"source"`
	DPI                 int        `json:"dpi,omitempty"`
	ConfidenceThreshold float64    `json:"confidence_threshold,omitempty"`
}

// NewProcessTask builds an asynq task from a payload.
func NewProcessTask(payload *ProcessTaskPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal task payload: %w", err)
	}
	return asynq.NewTask(TypeProcessDocument, data), nil
}

// Producer enqueues document processing jobs.
type Producer struct {
	client    *asynq.Client
	queueName string
}

// NewProducer creates a producer connected to the given Redis instance.
func NewProducer(redisURL, queueName string) (*Producer, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}
	if queueName == "" {
		queueName = "docextract"
	}

	redisOpt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	return &Producer{
		client:    asynq.NewClient(redisOpt),
		queueName: queueName,
	}, nil
}

// Enqueue submits a processing job and returns its job ID. A payload
// without a job ID gets one assigned.
func (p *Producer) Enqueue(ctx context.Context, payload *ProcessTaskPayload) (string, error) {
	if payload.JobID == "" {
		payload.JobID = uuid.NewString()
	}
	if payload.Kind == "" {
		payload.Kind = KindImage
	}

	task, err := NewProcessTask(payload)
	if err != nil {
		return "", err
	}

	if _, err := p.client.EnqueueContext(ctx, task, asynq.Queue(p.queueName), asynq.MaxRetry(3)); err != nil {
		return "", errors.NewQueueFailedError(fmt.Sprintf("enqueue job %s", payload.JobID), err)
	}
	return payload.JobID, nil
}

// Close releases the underlying Redis connection.
func (p *Producer) Close() error {
	return p.client.Close()
}
