package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/djec2006-hash/News-Flow-sub001/internal/models"
)

type TopicRepository struct {
	db *sql.DB
}

func NewTopicRepository(db *sql.DB) *TopicRepository {
	return &TopicRepository{db: db}
}

// ListActive returns the user's active topics ordered by position. An empty
// result is not an error here; the pipeline decides what that means.
func (r *TopicRepository) ListActive(ctx context.Context, userID int64) ([]models.Topic, error) {
	const query = `
SELECT id, user_id, title, COALESCE(description, ''), COALESCE(domain, ''), length_level, position, is_active, created_at, updated_at
FROM topics
WHERE user_id = ? AND is_active = 1
ORDER BY position ASC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list active topics: %w", err)
	}
	defer rows.Close()

	var topics []models.Topic
	for rows.Next() {
		var t models.Topic
		var active int
		if err := rows.Scan(&t.ID, &t.OwnerID, &t.Title, &t.Description, &t.Domain, &t.LengthLevel, &t.Position, &active, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan topic: %w", err)
		}
		t.IsActive = active != 0
		topics = append(topics, t)
	}
	return topics, rows.Err()
}
