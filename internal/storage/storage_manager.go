/**
 * Storage Manager for PlanParse Worker
 *
 * Coordinates parse result persistence across PostgreSQL (records) and Qdrant
 * (plan summary vectors). The vector write happens first and is rolled back
 * when the PostgreSQL insert fails, so the two systems stay consistent.
 */

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// StorageManager coordinates PostgreSQL and Qdrant operations
type StorageManager struct {
	postgres *PostgresClient
	qdrant   *QdrantClient
}

// PlanRecordInput represents a finished parse run to persist
type PlanRecordInput struct {
	PlanParseID      string
	UserID           string
	ProjectID        string
	Filename         string
	Success          bool
	RoomCount        int
	TotalPages       int
	Summary          string
	SummaryEmbedding []float32
	Result           json.RawMessage
}

// PlanRecordOutput represents the stored record with all IDs
type PlanRecordOutput struct {
	ID            string
	PlanParseID   string
	QdrantPointID string
	CreatedAt     time.Time
}

// SimilarPlan is one hit from a similar-plan search
type SimilarPlan struct {
	RecordID        string
	PlanParseID     string
	Filename        string
	RoomCount       int
	SimilarityScore float64
	CreatedAt       time.Time
}

// NewStorageManager creates a new storage manager
func NewStorageManager(postgresURL string, qdrantAddress string, qdrantCollection string) (*StorageManager, error) {
	postgres, err := NewPostgresClient(postgresURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL client: %w", err)
	}

	qdrant, err := NewQdrantClient(qdrantAddress, qdrantCollection)
	if err != nil {
		postgres.Close()
		return nil, fmt.Errorf("failed to initialize Qdrant client: %w", err)
	}

	return &StorageManager{
		postgres: postgres,
		qdrant:   qdrant,
	}, nil
}

// StorePlanRecord persists a parse result. The summary vector is optional:
// fallback responses and embedding failures store the record without one.
func (sm *StorageManager) StorePlanRecord(ctx context.Context, input *PlanRecordInput) (*PlanRecordOutput, error) {
	if input == nil {
		return nil, fmt.Errorf("input is required")
	}

	if input.PlanParseID == "" {
		return nil, fmt.Errorf("plan parse ID is required")
	}

	if len(input.Result) == 0 {
		return nil, fmt.Errorf("result payload is required")
	}

	recordID := uuid.New().String()
	qdrantPointID := ""

	// Step 1: Store the summary vector first (fails fast if the vector is
	// invalid) so a PostgreSQL failure can roll it back.
	if len(input.SummaryEmbedding) > 0 {
		if len(input.SummaryEmbedding) != summaryVectorDims {
			return nil, fmt.Errorf("invalid embedding dimensions: expected %d, got %d", summaryVectorDims, len(input.SummaryEmbedding))
		}

		qdrantPointID = uuid.New().String()
		point := &PlanVector{
			ID:     qdrantPointID,
			Vector: input.SummaryEmbedding,
			Metadata: map[string]interface{}{
				"plan_parse_id": input.PlanParseID,
				"record_id":     recordID,
				"filename":      input.Filename,
				"room_count":    input.RoomCount,
				"created_at":    time.Now().Unix(),
			},
			Timestamp: time.Now().Unix(),
		}

		if err := sm.qdrant.UpsertVector(ctx, point); err != nil {
			return nil, fmt.Errorf("failed to store summary vector in Qdrant: %w", err)
		}
	}

	// Step 2: Store the record in PostgreSQL.
	resultJSON := sanitizeJSONForPostgres(input.Result)

	query := `
		INSERT INTO planparse.parse_results (
			id, plan_parse_id, user_id, project_id, filename,
			success, room_count, total_pages,
			summary, qdrant_point_id, result,
			created_at
		) VALUES (
			$1::uuid, $2::uuid, NULLIF($3, ''), NULLIF($4, '')::uuid, $5,
			$6, $7, $8,
			NULLIF($9, ''), NULLIF($10, '')::uuid, $11::jsonb,
			NOW()
		)
		ON CONFLICT (plan_parse_id) DO UPDATE SET
			success = EXCLUDED.success,
			room_count = EXCLUDED.room_count,
			total_pages = EXCLUDED.total_pages,
			summary = EXCLUDED.summary,
			qdrant_point_id = COALESCE(EXCLUDED.qdrant_point_id, planparse.parse_results.qdrant_point_id),
			result = EXCLUDED.result,
			created_at = NOW()
		RETURNING id, created_at
	`

	var storedID string
	var createdAt time.Time
	err := sm.postgres.db.QueryRowContext(
		ctx,
		query,
		recordID,
		input.PlanParseID,
		input.UserID,
		input.ProjectID,
		input.Filename,
		input.Success,
		input.RoomCount,
		input.TotalPages,
		input.Summary,
		qdrantPointID,
		resultJSON,
	).Scan(&storedID, &createdAt)

	if err != nil {
		// Rollback the vector write
		if qdrantPointID != "" {
			sm.qdrant.DeleteVector(ctx, qdrantPointID)
		}
		return nil, fmt.Errorf("failed to store parse record in PostgreSQL: %w", err)
	}

	return &PlanRecordOutput{
		ID:            storedID,
		PlanParseID:   input.PlanParseID,
		QdrantPointID: qdrantPointID,
		CreatedAt:     createdAt,
	}, nil
}

// GetParseResult retrieves a stored parse response by plan parse ID
func (sm *StorageManager) GetParseResult(ctx context.Context, planParseID string) (json.RawMessage, error) {
	if planParseID == "" {
		return nil, fmt.Errorf("plan parse ID is required")
	}

	query := `
		SELECT result
		FROM planparse.parse_results
		WHERE plan_parse_id = $1::uuid
	`

	var result json.RawMessage
	err := sm.postgres.db.QueryRowContext(ctx, query, planParseID).Scan(&result)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("parse result not found: %s", planParseID)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get parse result: %w", err)
	}

	return result, nil
}

// SearchSimilarPlans finds past parses whose summaries are closest to the
// query vector.
func (sm *StorageManager) SearchSimilarPlans(ctx context.Context, queryVector []float32, limit int) ([]*SimilarPlan, error) {
	if len(queryVector) != summaryVectorDims {
		return nil, fmt.Errorf("invalid query vector dimensions: expected %d, got %d", summaryVectorDims, len(queryVector))
	}

	points, err := sm.qdrant.SearchVectors(ctx, queryVector, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search vectors: %w", err)
	}

	results := make([]*SimilarPlan, 0, len(points))
	for _, point := range points {
		recordIDRaw, ok := point.Metadata["record_id"]
		if !ok {
			continue
		}

		recordID, ok := recordIDRaw.(string)
		if !ok {
			continue
		}

		query := `
			SELECT plan_parse_id, filename, room_count, created_at
			FROM planparse.parse_results
			WHERE id = $1::uuid
		`

		var (
			planParseID string
			filename    string
			roomCount   int
			createdAt   time.Time
		)

		err := sm.postgres.db.QueryRowContext(ctx, query, recordID).Scan(&planParseID, &filename, &roomCount, &createdAt)
		if err != nil {
			continue // skip hits whose record has been deleted
		}

		score := 0.0
		if scoreRaw, ok := point.Metadata["score"]; ok {
			switch s := scoreRaw.(type) {
			case float64:
				score = s
			case float32:
				score = float64(s)
			}
		}

		results = append(results, &SimilarPlan{
			RecordID:        recordID,
			PlanParseID:     planParseID,
			Filename:        filename,
			RoomCount:       roomCount,
			SimilarityScore: score,
			CreatedAt:       createdAt,
		})
	}

	return results, nil
}

// UpdateJobStatus updates parse job status in PostgreSQL
func (sm *StorageManager) UpdateJobStatus(ctx context.Context, update *JobUpdate) error {
	return sm.postgres.UpdateJobStatus(ctx, update)
}

// GetJobByID retrieves a parse job by ID
func (sm *StorageManager) GetJobByID(ctx context.Context, planParseID string) (map[string]interface{}, error) {
	return sm.postgres.GetJobByID(ctx, planParseID)
}

// GetStats returns statistics from both systems
func (sm *StorageManager) GetStats(ctx context.Context) (map[string]interface{}, error) {
	pgStats := sm.postgres.GetStats()

	qdrantStats, err := sm.qdrant.GetCollectionInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get Qdrant stats: %w", err)
	}

	return map[string]interface{}{
		"postgres": map[string]interface{}{
			"max_open_connections": pgStats.MaxOpenConnections,
			"open_connections":     pgStats.OpenConnections,
			"in_use":               pgStats.InUse,
			"idle":                 pgStats.Idle,
			"wait_count":           pgStats.WaitCount,
			"wait_duration":        pgStats.WaitDuration.String(),
		},
		"qdrant": qdrantStats,
	}, nil
}

// Ping checks PostgreSQL connectivity
func (sm *StorageManager) Ping(ctx context.Context) error {
	return sm.postgres.Ping(ctx)
}

// Close closes all connections
func (sm *StorageManager) Close() error {
	var pgErr, qdErr error

	if sm.postgres != nil {
		pgErr = sm.postgres.Close()
	}

	if sm.qdrant != nil {
		qdErr = sm.qdrant.Close()
	}

	if pgErr != nil {
		return fmt.Errorf("failed to close PostgreSQL: %w", pgErr)
	}

	if qdErr != nil {
		return fmt.Errorf("failed to close Qdrant: %w", qdErr)
	}

	return nil
}

// sanitizeJSONForPostgres removes Unicode escape sequences PostgreSQL JSONB
// rejects. The null escape is invalid outright; other control escapes become spaces.
// OCR output over drawing sheets is a reliable source of both.
func sanitizeJSONForPostgres(jsonBytes []byte) []byte {
	nullPattern := regexp.MustCompile(`\\u0000`)
	result := nullPattern.ReplaceAll(jsonBytes, []byte{})

	controlPattern := regexp.MustCompile(`\\u00[01][0-9a-fA-F]`)
	result = controlPattern.ReplaceAll(result, []byte(" "))

	return result
}
