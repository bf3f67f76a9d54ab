package reviewhistory

import (
	"context"
	"fmt"

	"trekmap/internal/infra/dbx"
)

type Repository struct {
	db dbx.Querier
}

func NewRepository(q dbx.Querier) *Repository {
	return &Repository{db: q}
}

func (r *Repository) Append(ctx context.Context, entry *Entry) error {
	err := r.db.QueryRow(ctx, `
        INSERT INTO review_status_history (review_id, status, reason, reviewer_id)
        VALUES ($1, $2::review_status, $3, $4)
        RETURNING id, created_at
    `, entry.ReviewID, string(entry.Status), entry.Reason, entry.ReviewerID).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("append review status history: %w", err)
	}
	return nil
}

// ListByReview returns the trail oldest-first.
func (r *Repository) ListByReview(ctx context.Context, reviewID int64) ([]Entry, error) {
	rows, err := r.db.Query(ctx, `
        SELECT id, review_id, status::text, reason, reviewer_id, created_at
        FROM review_status_history
        WHERE review_id = $1
        ORDER BY created_at ASC, id ASC
    `, reviewID)
	if err != nil {
		return nil, fmt.Errorf("list review status history: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.ReviewID, &e.Status, &e.Reason, &e.ReviewerID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan review status history: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
