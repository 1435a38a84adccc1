package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/djec2006-hash/News-Flow-sub001/internal/models"
)

type FlowRepository struct {
	db *sql.DB
}

func NewFlowRepository(db *sql.DB) *FlowRepository {
	return &FlowRepository{db: db}
}

// Insert stores a freshly assembled flow and returns it with id and
// created_at filled in.
func (r *FlowRepository) Insert(ctx context.Context, flow *models.Flow) (*models.Flow, error) {
	document, err := json.Marshal(flow.Document)
	if err != nil {
		return nil, fmt.Errorf("marshal flow document: %w", err)
	}

	const query = `
INSERT INTO flows (user_id, summary, body, topics_covered, document)
VALUES (?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, query, flow.OwnerID, flow.Summary, flow.Body, flow.TopicsCovered, document)
	if err != nil {
		return nil, fmt.Errorf("insert flow: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("flow last insert id: %w", err)
	}
	return r.GetByID(ctx, id)
}

func (r *FlowRepository) GetByID(ctx context.Context, id int64) (*models.Flow, error) {
	const query = `
SELECT id, user_id, summary, body, topics_covered, document, delivered, created_at
FROM flows WHERE id = ?`
	row := r.db.QueryRowContext(ctx, query, id)

	var f models.Flow
	var document []byte
	var delivered int
	if err := row.Scan(&f.ID, &f.OwnerID, &f.Summary, &f.Body, &f.TopicsCovered, &document, &delivered, &f.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan flow: %w", err)
	}
	f.Delivered = delivered != 0
	if err := json.Unmarshal(document, &f.Document); err != nil {
		return nil, fmt.Errorf("unmarshal flow document: %w", err)
	}
	return &f, nil
}

// CountSince counts the user's flows created at or after the given instant.
// Weekly usage is always derived this way, never stored.
func (r *FlowRepository) CountSince(ctx context.Context, userID int64, since time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM flows WHERE user_id = ? AND created_at >= ?`
	row := r.db.QueryRowContext(ctx, query, userID, since)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count flows: %w", err)
	}
	return count, nil
}

// ListByUser returns the user's most recent flows without the heavy body and
// document columns.
func (r *FlowRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]models.Flow, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	const query = `
SELECT id, user_id, summary, topics_covered, delivered, created_at
FROM flows
WHERE user_id = ?
ORDER BY created_at DESC
LIMIT ?`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list flows: %w", err)
	}
	defer rows.Close()

	var flows []models.Flow
	for rows.Next() {
		var f models.Flow
		var delivered int
		if err := rows.Scan(&f.ID, &f.OwnerID, &f.Summary, &f.TopicsCovered, &delivered, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan flow row: %w", err)
		}
		f.Delivered = delivered != 0
		flows = append(flows, f)
	}
	return flows, rows.Err()
}
