// Package reviewimages holds review images, each moderated on its own, and the
// outbox of uploads still waiting to be processed.
package reviewimages

import (
	"context"
	"errors"
	"time"

	"trekmap/internal/domain/reviews"
)

var (
	ErrNotFound = errors.New("review image not found")
	// ErrJobLost means the job was reclaimed by another worker or closed before
	// Complete ran. Nothing was written.
	ErrJobLost = errors.New("review image job no longer held")
)

type Image struct {
	ID        int64          `json:"id"`
	ReviewID  int64          `json:"review_id"`
	ImageID   int64          `json:"image_id"`
	Status    reviews.Status `json:"status"`
	URL       string         `json:"url"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobDone       JobStatus = "done"
	JobFailed     JobStatus = "failed"
)

// Job is an uploaded file waiting to be compressed and pushed to the asset host.
type Job struct {
	ID          int64     `json:"id"`
	ReviewID    int64     `json:"review_id"`
	Payload     []byte    `json:"-"`
	ContentType string    `json:"content_type"`
	Status      JobStatus `json:"status"`
	Attempts    int       `json:"attempts"`
	LastError   *string   `json:"last_error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Upload is a raw file attached to a review submission.
type Upload struct {
	Data        []byte
	ContentType string
}

// Asset describes a file stored on the asset host.
type Asset struct {
	URL      string
	PublicID string
	Width    int
	Height   int
	Format   string
	Bytes    int
}

type Store interface {
	ListByReview(ctx context.Context, reviewID int64) ([]Image, error)
	SetStatus(ctx context.Context, imageID int64, status reviews.Status) (*Image, error)
	Enqueue(ctx context.Context, reviewID int64, uploads []Upload) error
	JobStore
}

// JobStore is the outbox side used by the media worker.
type JobStore interface {
	Claim(ctx context.Context, limit int, lease time.Duration, maxAttempts int) ([]Job, error)
	Complete(ctx context.Context, job Job, asset Asset) (*Image, error)
	Fail(ctx context.Context, job Job, cause error, maxAttempts int, retryAfter time.Duration) error
}
