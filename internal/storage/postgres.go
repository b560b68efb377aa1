/**
 * PostgreSQL Client for PlanParse Worker
 *
 * Handles database operations for parse job lifecycle and result persistence.
 */

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgresClient handles database operations
type PostgresClient struct {
	db *sql.DB
}

// JobUpdate represents a parse job status update
type JobUpdate struct {
	PlanParseID      string
	Status           string
	Progress         int
	RoomCount        int
	ProcessingTimeMs int64
	ErrorCode        string
	ErrorMessage     string
	Metadata         map[string]interface{}
}

// clampProgress bounds progress to [0, 100] before it hits the database
func clampProgress(progress int) int {
	if progress < 0 {
		return 0
	}
	if progress > 100 {
		return 100
	}
	return progress
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

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresClient{db: db}, nil
}

// UpdateJobStatus updates parse job status in the database. Uses UPSERT so
// the worker can create the job record if the API has not yet.
func (p *PostgresClient) UpdateJobStatus(ctx context.Context, update *JobUpdate) error {
	if update.PlanParseID == "" {
		return fmt.Errorf("plan parse ID is required")
	}

	if update.Status == "" {
		return fmt.Errorf("status is required")
	}

	metadataJSON, err := json.Marshal(update.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		INSERT INTO planparse.parse_jobs (
			id, user_id, project_id, filename,
			status, progress, room_count, processing_time_ms,
			error_code, error_message, metadata,
			created_at, updated_at
		) VALUES (
			$1::uuid, COALESCE(NULLIF($9, ''), 'anonymous'), NULLIF($10, '')::uuid,
			COALESCE(NULLIF($11, ''), 'unknown.pdf'),
			$2, $3, NULLIF($4, 0), NULLIF($5, 0),
			NULLIF($6, ''), NULLIF($7, ''),
			COALESCE($8::jsonb, '{}'::jsonb),
			NOW(), NOW()
		)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			progress = GREATEST(EXCLUDED.progress, planparse.parse_jobs.progress),
			room_count = COALESCE(NULLIF(EXCLUDED.room_count, 0), planparse.parse_jobs.room_count),
			processing_time_ms = COALESCE(NULLIF(EXCLUDED.processing_time_ms, 0), planparse.parse_jobs.processing_time_ms),
			error_code = NULLIF(EXCLUDED.error_code, ''),
			error_message = NULLIF(EXCLUDED.error_message, ''),
			metadata = COALESCE(EXCLUDED.metadata, planparse.parse_jobs.metadata),
			filename = COALESCE(EXCLUDED.filename, planparse.parse_jobs.filename),
			user_id = COALESCE(EXCLUDED.user_id, planparse.parse_jobs.user_id),
			project_id = COALESCE(EXCLUDED.project_id, planparse.parse_jobs.project_id),
			updated_at = NOW()
		RETURNING id
	`

	// Extract identity fields from metadata if present
	var userID, projectID, filename string
	if update.Metadata != nil {
		if uid, ok := update.Metadata["userId"].(string); ok {
			userID = uid
		}
		if pid, ok := update.Metadata["projectId"].(string); ok {
			projectID = pid
		}
		if fn, ok := update.Metadata["filename"].(string); ok {
			filename = fn
		}
	}

	var returnedID string
	err = p.db.QueryRowContext(
		ctx,
		query,
		update.PlanParseID,             // $1 - id
		update.Status,                  // $2 - status
		clampProgress(update.Progress), // $3 - progress
		update.RoomCount,               // $4 - room_count
		update.ProcessingTimeMs,        // $5 - processing_time_ms
		update.ErrorCode,               // $6 - error_code
		update.ErrorMessage,            // $7 - error_message
		metadataJSON,                   // $8 - metadata
		userID,                         // $9 - user_id
		projectID,                      // $10 - project_id
		filename,                       // $11 - filename
	).Scan(&returnedID)

	if err == sql.ErrNoRows {
		return fmt.Errorf("parse job not found: %s", update.PlanParseID)
	}

	if err != nil {
		return fmt.Errorf("failed to update parse job status (job=%s, status=%s): %w",
			update.PlanParseID, update.Status, err)
	}

	return nil
}

// GetJobByID retrieves a parse job by ID
func (p *PostgresClient) GetJobByID(ctx context.Context, planParseID string) (map[string]interface{}, error) {
	if planParseID == "" {
		return nil, fmt.Errorf("plan parse ID is required")
	}

	query := `
		SELECT
			id, user_id, project_id, filename,
			status, progress, room_count, processing_time_ms,
			error_code, error_message, metadata,
			created_at, updated_at
		FROM planparse.parse_jobs
		WHERE id = $1::uuid
	`

	var (
		id, userID, filename       string
		projectID                  sql.NullString
		status                     sql.NullString
		progress                   sql.NullInt64
		roomCount                  sql.NullInt64
		processingTimeMs           sql.NullInt64
		errorCode, errorMessage    sql.NullString
		metadataJSON               []byte
		createdAt, updatedAt       time.Time
	)

	err := p.db.QueryRowContext(ctx, query, planParseID).Scan(
		&id, &userID, &projectID, &filename,
		&status, &progress, &roomCount, &processingTimeMs,
		&errorCode, &errorMessage, &metadataJSON,
		&createdAt, &updatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("parse job not found: %s", planParseID)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get parse job: %w", err)
	}

	var metadata map[string]interface{}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	result := map[string]interface{}{
		"id":        id,
		"userId":    userID,
		"filename":  filename,
		"status":    status.String,
		"createdAt": createdAt,
		"updatedAt": updatedAt,
		"metadata":  metadata,
	}

	if projectID.Valid {
		result["projectId"] = projectID.String
	}
	if progress.Valid {
		result["progress"] = progress.Int64
	}
	if roomCount.Valid {
		result["roomCount"] = roomCount.Int64
	}
	if processingTimeMs.Valid {
		result["processingTimeMs"] = processingTimeMs.Int64
	}
	if errorCode.Valid {
		result["errorCode"] = errorCode.String
	}
	if errorMessage.Valid {
		result["errorMessage"] = errorMessage.String
	}

	return result, nil
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
