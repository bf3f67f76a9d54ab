// Package reviewhistory is the append-only audit trail of review status changes.
package reviewhistory

import (
	"context"
	"time"

	"trekmap/internal/domain/reviews"
)

// Entry records one status change. Entries are never updated or deleted
// except by cascade with their review.
type Entry struct {
	ID         int64          `json:"id"`
	ReviewID   int64          `json:"review_id"`
	Status     reviews.Status `json:"status"`
	Reason     *string        `json:"reason,omitempty"`
	ReviewerID *int64         `json:"reviewer_id,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

type Store interface {
	Append(ctx context.Context, entry *Entry) error
	ListByReview(ctx context.Context, reviewID int64) ([]Entry, error)
}
