package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/vidsqueeze/vidsqueeze/pkg/models"
)

// ErrNotFound is returned when a batch ID has no stored record.
var ErrNotFound = errors.New("batch not found")

// BatchRecord is one stored batch run.
type BatchRecord struct {
	ID              string    `json:"id"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	Cancelled       bool      `json:"cancelled"`
	Succeeded       int       `json:"succeeded"`
	Total           int       `json:"total"`
	OriginalBytes   int64     `json:"original_bytes"`
	CompressedBytes int64     `json:"compressed_bytes"`
	ReductionPct    float64   `json:"reduction_pct"`
}

// FileRecord is one stored per-file outcome.
type FileRecord struct {
	BatchID         string `json:"batch_id"`
	Position        int    `json:"position"`
	InputPath       string `json:"input_path"`
	OutputPath      string `json:"output_path"`
	Success         bool   `json:"success"`
	OriginalBytes   int64  `json:"original_bytes"`
	CompressedBytes int64  `json:"compressed_bytes"`
	Error           string `json:"error,omitempty"`
}

// Repository provides database operations
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// Health checks the underlying connection.
func (r *Repository) Health(ctx context.Context) error {
	return r.db.Health(ctx)
}

// SaveBatch stores a finished batch and its per-file outcomes in one
// transaction.
func (r *Repository) SaveBatch(ctx context.Context, rec BatchRecord, results []models.JobResult) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO batches (id, started_at, finished_at, cancelled, succeeded, total, original_bytes, compressed_bytes, reduction_pct)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err = tx.Exec(ctx, query,
		rec.ID, rec.StartedAt, rec.FinishedAt, rec.Cancelled, rec.Succeeded,
		rec.Total, rec.OriginalBytes, rec.CompressedBytes, rec.ReductionPct,
	)
	if err != nil {
		return fmt.Errorf("failed to insert batch: %w", err)
	}

	fileQuery := `
		INSERT INTO batch_files (batch_id, position, input_path, output_path, success, original_bytes, compressed_bytes, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	for _, file := range FileRecords(rec.ID, results) {
		_, err = tx.Exec(ctx, fileQuery,
			file.BatchID, file.Position, file.InputPath, file.OutputPath,
			file.Success, file.OriginalBytes, file.CompressedBytes, file.Error,
		)
		if err != nil {
			return fmt.Errorf("failed to insert batch file: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}

	return nil
}

// GetBatch retrieves a batch and its files by ID
func (r *Repository) GetBatch(ctx context.Context, id string) (*BatchRecord, []FileRecord, error) {
	var rec BatchRecord

	query := `
		SELECT id, started_at, finished_at, cancelled, succeeded, total,
		       original_bytes, compressed_bytes, reduction_pct
		FROM batches
		WHERE id = $1
	`

	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&rec.ID, &rec.StartedAt, &rec.FinishedAt, &rec.Cancelled, &rec.Succeeded,
		&rec.Total, &rec.OriginalBytes, &rec.CompressedBytes, &rec.ReductionPct,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get batch: %w", err)
	}

	fileQuery := `
		SELECT batch_id, position, input_path, output_path, success,
		       original_bytes, compressed_bytes, error
		FROM batch_files
		WHERE batch_id = $1
		ORDER BY position
	`

	rows, err := r.db.Pool.Query(ctx, fileQuery, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get batch files: %w", err)
	}
	defer rows.Close()

	var files []FileRecord
	for rows.Next() {
		var file FileRecord
		err := rows.Scan(
			&file.BatchID, &file.Position, &file.InputPath, &file.OutputPath,
			&file.Success, &file.OriginalBytes, &file.CompressedBytes, &file.Error,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to scan batch file: %w", err)
		}
		files = append(files, file)
	}

	return &rec, files, nil
}

// RecentBatches retrieves the latest batches, newest first
func (r *Repository) RecentBatches(ctx context.Context, limit int) ([]BatchRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, started_at, finished_at, cancelled, succeeded, total,
		       original_bytes, compressed_bytes, reduction_pct
		FROM batches
		ORDER BY finished_at DESC
		LIMIT $1
	`

	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}
	defer rows.Close()

	var records []BatchRecord
	for rows.Next() {
		var rec BatchRecord
		err := rows.Scan(
			&rec.ID, &rec.StartedAt, &rec.FinishedAt, &rec.Cancelled, &rec.Succeeded,
			&rec.Total, &rec.OriginalBytes, &rec.CompressedBytes, &rec.ReductionPct,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan batch: %w", err)
		}
		records = append(records, rec)
	}

	return records, nil
}

// FileRecords converts job results to storable file rows, preserving batch
// order.
func FileRecords(batchID string, results []models.JobResult) []FileRecord {
	files := make([]FileRecord, 0, len(results))
	for i, res := range results {
		files = append(files, FileRecord{
			BatchID:         batchID,
			Position:        i,
			InputPath:       res.InputPath,
			OutputPath:      res.OutputPath,
			Success:         res.Success,
			OriginalBytes:   res.OriginalBytes,
			CompressedBytes: res.CompressedBytes,
			Error:           res.Error,
		})
	}
	return files
}
