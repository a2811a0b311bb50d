/**
 * PostgreSQL Client for DocExtract jobs
 *
 * Persists queue job state and the full extraction result as JSONB so the
 * API tier (or an operator) can fetch outcomes after the fact. The worker
 * treats persistence as best-effort: a storage failure is logged, never
 * fatal to the job.
 */

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/formlens/docextract/internal/document"
)

// ErrNotFound reports a lookup for a job that was never recorded.
var ErrNotFound = errors.New("job not found")

// PostgresClient handles database operations
type PostgresClient struct {
	db *sql.DB
}

// JobUpdate represents a job status update
type JobUpdate struct {
	JobID            string
	Status           string
	Filename         string
	Kind             string // "image" or "pdf"
	EntityCount      int
	PageCount        int
	ProcessingTimeMS float64
	ErrorCode        string
	ErrorMessage     string
	Result           *document.ProcessingResult
}

// JobRecord is a persisted job row.
type JobRecord struct {
	JobID            string                     `json:"job_id"`
	Status           string                     `json:"status"`
	Filename         string                     `json:"filename,omitempty"`
	Kind             string                     `json:"kind"`
	EntityCount      int                        `json:"entity_count"`
	PageCount        int                        `json:"page_count"`
	ProcessingTimeMS float64                    `json:"processing_time_ms"`
	ErrorCode        string                     `json:"error_code,omitempty"`
	ErrorMessage     string                     `json:"error,omitempty"`
	Result           *document.ProcessingResult `json:"result,omitempty"`
	CreatedAt        time.Time                  `json:"created_at"`
	UpdatedAt        time.Time                  `json:"updated_at"`
}

// NewPostgresClient creates a new PostgreSQL client
func NewPostgresClient(databaseURL string) (*PostgresClient, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresClient{db: db}, nil
}

// EnsureSchema creates the jobs table when it does not exist yet.
func (p *PostgresClient) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS docextract_jobs (
			id UUID PRIMARY KEY,
			filename TEXT NOT NULL DEFAULT '',
			kind TEXT NOT NULL DEFAULT 'image',
			status TEXT NOT NULL,
			entity_count INTEGER,
			page_count INTEGER,
			processing_time_ms NUMERIC(12,2),
			error_code TEXT,
			error_message TEXT,
			result JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`
	if _, err := p.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// UpdateJobStatus upserts the job row. The worker may report status before
// any producer created the row, so the first update creates it.
func (p *PostgresClient) UpdateJobStatus(ctx context.Context, update *JobUpdate) error {
	if update.JobID == "" {
		return fmt.Errorf("job ID is required")
	}
	if update.Status == "" {
		return fmt.Errorf("status is required")
	}

	var resultJSON []byte
	if update.Result != nil {
		data, err := json.Marshal(update.Result)
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		resultJSON = data
	}

	query := `
		INSERT INTO docextract_jobs (
			id, filename, kind, status, entity_count, page_count,
			processing_time_ms, error_code, error_message, result,
			created_at, updated_at
		) VALUES (
			$1::uuid, COALESCE(NULLIF($2, ''), 'unknown'), COALESCE(NULLIF($3, ''), 'image'),
			$4, NULLIF($5, 0), NULLIF($6, 0),
			NULLIF($7::NUMERIC(12,2), 0), NULLIF($8, ''), NULLIF($9, ''), $10::jsonb,
			NOW(), NOW()
		)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			entity_count = COALESCE(EXCLUDED.entity_count, docextract_jobs.entity_count),
			page_count = COALESCE(EXCLUDED.page_count, docextract_jobs.page_count),
			processing_time_ms = COALESCE(EXCLUDED.processing_time_ms, docextract_jobs.processing_time_ms),
			error_code = EXCLUDED.error_code,
			error_message = EXCLUDED.error_message,
			result = COALESCE(EXCLUDED.result, docextract_jobs.result),
			filename = COALESCE(NULLIF(EXCLUDED.filename, 'unknown'), docextract_jobs.filename),
			kind = EXCLUDED.kind,
			updated_at = NOW()
		RETURNING id
	`

	var returnedID string
	err := p.db.QueryRowContext(
		ctx,
		query,
		update.JobID,
		update.Filename,
		update.Kind,
		update.Status,
		update.EntityCount,
		update.PageCount,
		update.ProcessingTimeMS,
		update.ErrorCode,
		update.ErrorMessage,
		resultJSON,
	).Scan(&returnedID)

	if err != nil {
		return fmt.Errorf("failed to update job status (job=%s, status=%s): %w",
			update.JobID, update.Status, err)
	}

	return nil
}

// GetJob retrieves a job row by ID.
func (p *PostgresClient) GetJob(ctx context.Context, jobID string) (*JobRecord, error) {
	if jobID == "" {
		return nil, fmt.Errorf("job ID is required")
	}

	query := `
		SELECT
			id, filename, kind, status, entity_count, page_count,
			processing_time_ms, error_code, error_message, result,
			created_at, updated_at
		FROM docextract_jobs
		WHERE id = $1::uuid
	`

	var (
		record           JobRecord
		entityCount      sql.NullInt64
		pageCount        sql.NullInt64
		processingTimeMS sql.NullFloat64
		errorCode        sql.NullString
		errorMessage     sql.NullString
		resultJSON       []byte
	)

	err := p.db.QueryRowContext(ctx, query, jobID).Scan(
		&record.JobID, &record.Filename, &record.Kind, &record.Status,
		&entityCount, &pageCount, &processingTimeMS,
		&errorCode, &errorMessage, &resultJSON,
		&record.CreatedAt, &record.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("job %s: %w", jobID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	record.EntityCount = int(entityCount.Int64)
	record.PageCount = int(pageCount.Int64)
	record.ProcessingTimeMS = processingTimeMS.Float64
	record.ErrorCode = errorCode.String
	record.ErrorMessage = errorMessage.String

	if len(resultJSON) > 0 {
		var result document.ProcessingResult
		if err := json.Unmarshal(resultJSON, &result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal stored result: %w", err)
		}
		record.Result = &result
	}

	return &record, nil
}

// Ping checks database connectivity
func (p *PostgresClient) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the database connection
func (p *PostgresClient) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

// GetStats returns connection pool statistics
func (p *PostgresClient) GetStats() sql.DBStats {
	return p.db.Stats()
}
