package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/alejor21/trabajo-final-IA/internal/models"
)

const DefaultHistoryLimit = 50

// HistoryRepository is an append-only log of completed analyses. Nothing in the
// session workflow reads it back.
type HistoryRepository struct {
	db *sql.DB
}

func NewHistoryRepository(db *DB) *HistoryRepository {
	return &HistoryRepository{db: db.Conn()}
}

func (r *HistoryRepository) Insert(ctx context.Context, rec *models.AnalysisRecord) error {
	query := `
	INSERT INTO analyses (id, kind, asset_name, reported, compliant, missing_persons, detections, processed_ref, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		rec.ID, string(rec.Kind), rec.AssetName, rec.Reported, rec.Compliant,
		rec.MissingPersons, rec.Detections, rec.ProcessedRef, rec.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert analysis: %w", err)
	}
	return nil
}

// ListRecent returns up to limit records, newest first. An empty kind matches all.
func (r *HistoryRepository) ListRecent(ctx context.Context, kind models.MediaKind, limit int) ([]models.AnalysisRecord, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	query := `
	SELECT id, kind, asset_name, reported, compliant, missing_persons, detections, processed_ref, created_at
	FROM analyses
	WHERE (? = '' OR kind = ?)
	ORDER BY created_at DESC
	LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, string(kind), string(kind), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}
	defer rows.Close()

	records := []models.AnalysisRecord{}
	for rows.Next() {
		var (
			rec       models.AnalysisRecord
			kindStr   string
			processed sql.NullString
		)
		if err := rows.Scan(&rec.ID, &kindStr, &rec.AssetName, &rec.Reported, &rec.Compliant,
			&rec.MissingPersons, &rec.Detections, &processed, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan analysis: %w", err)
		}
		rec.Kind = models.MediaKind(kindStr)
		rec.ProcessedRef = processed.String
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate analyses: %w", err)
	}

	return records, nil
}
