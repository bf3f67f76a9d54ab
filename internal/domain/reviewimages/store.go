package reviewimages

import (
	"context"
	"errors"
	"fmt"
	"time"

	"trekmap/internal/domain/reviews"
	"trekmap/internal/infra/dbx"

	"github.com/jackc/pgx/v5"
)

type Repository struct {
	db dbx.Querier
}

func NewRepository(q dbx.Querier) *Repository {
	return &Repository{db: q}
}

func (r *Repository) ListByReview(ctx context.Context, reviewID int64) ([]Image, error) {
	rows, err := r.db.Query(ctx, `
        SELECT ri.id, ri.review_id, ri.image_id, ri.status::text, i.url, ri.created_at, ri.updated_at
        FROM review_image ri
        JOIN images i ON i.id = ri.image_id
        WHERE ri.review_id = $1
        ORDER BY ri.id ASC
    `, reviewID)
	if err != nil {
		return nil, fmt.Errorf("list review images: %w", err)
	}
	defer rows.Close()

	images := []Image{}
	for rows.Next() {
		var img Image
		if err := rows.Scan(&img.ID, &img.ReviewID, &img.ImageID, &img.Status, &img.URL, &img.CreatedAt, &img.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan review image: %w", err)
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

// SetStatus moderates one image. The parent review is not touched.
func (r *Repository) SetStatus(ctx context.Context, imageID int64, status reviews.Status) (*Image, error) {
	var img Image
	err := r.db.QueryRow(ctx, `
        UPDATE review_image ri
        SET status = $2::review_status, updated_at = now()
        FROM images i
        WHERE ri.id = $1 AND i.id = ri.image_id
        RETURNING ri.id, ri.review_id, ri.image_id, ri.status::text, i.url, ri.created_at, ri.updated_at
    `, imageID, string(status)).Scan(&img.ID, &img.ReviewID, &img.ImageID, &img.Status, &img.URL, &img.CreatedAt, &img.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("set review image status: %w", err)
	}
	return &img, nil
}

// Enqueue stores the raw uploads as pending jobs. Run it in the same
// transaction as the review write so a committed review never loses its files.
func (r *Repository) Enqueue(ctx context.Context, reviewID int64, uploads []Upload) error {
	for _, u := range uploads {
		_, err := r.db.Exec(ctx, `
            INSERT INTO review_image_jobs (review_id, payload, content_type)
            VALUES ($1, $2, $3)
        `, reviewID, u.Data, u.ContentType)
		if err != nil {
			return fmt.Errorf("enqueue review image: %w", err)
		}
	}
	return nil
}

// Claim marks up to limit runnable jobs as processing and returns them. Jobs left
// in processing longer than lease (a crashed worker) are claimed again while they
// have attempts left; those that used maxAttempts are parked as failed.
func (r *Repository) Claim(ctx context.Context, limit int, lease time.Duration, maxAttempts int) ([]Job, error) {
	rows, err := r.db.Query(ctx, `
        WITH parked AS (
            UPDATE review_image_jobs
            SET status = 'failed',
                last_error = COALESCE(last_error, 'lease expired on final attempt'),
                updated_at = now()
            WHERE status = 'processing'
              AND updated_at < now() - make_interval(secs => $2)
              AND attempts >= $3
        )
        UPDATE review_image_jobs
        SET status = 'processing', attempts = attempts + 1, updated_at = now()
        WHERE id IN (
            SELECT id FROM review_image_jobs
            WHERE (status = 'pending' AND run_after <= now())
               OR (status = 'processing' AND updated_at < now() - make_interval(secs => $2) AND attempts < $3)
            ORDER BY id
            LIMIT $1
            FOR UPDATE SKIP LOCKED
        )
        RETURNING id, review_id, payload, content_type, status, attempts, last_error, created_at
    `, limit, lease.Seconds(), maxAttempts)
	if err != nil {
		return nil, fmt.Errorf("claim review image jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var j Job
		if err := rows.Scan(&j.ID, &j.ReviewID, &j.Payload, &j.ContentType, &j.Status, &j.Attempts, &j.LastError, &j.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan review image job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// Complete records the hosted asset, attaches it to the review as a pending
// image and closes the job, in one statement. It writes nothing and returns
// ErrJobLost unless the job is still processing under the claimed attempt.
func (r *Repository) Complete(ctx context.Context, job Job, asset Asset) (*Image, error) {
	img := Image{ReviewID: job.ReviewID, Status: reviews.StatusPending, URL: asset.URL}
	err := r.db.QueryRow(ctx, `
        WITH done AS (
            UPDATE review_image_jobs
            SET status = 'done', payload = NULL, last_error = NULL,
                processed_at = now(), updated_at = now()
            WHERE id = $8 AND status = 'processing' AND attempts = $9
            RETURNING review_id
        ), img AS (
            INSERT INTO images (url, public_id, width, height, format, bytes)
            SELECT $1::text, $2::text, $3::int, $4::int, $5::text, $6::int FROM done
            RETURNING id
        ), attached AS (
            INSERT INTO review_image (review_id, image_id, status)
            SELECT $7::bigint, img.id, 'pending' FROM img
            RETURNING id, image_id, created_at, updated_at
        )
        SELECT id, image_id, created_at, updated_at FROM attached
    `, asset.URL, asset.PublicID, asset.Width, asset.Height, asset.Format, asset.Bytes,
		job.ReviewID, job.ID, job.Attempts,
	).Scan(&img.ID, &img.ImageID, &img.CreatedAt, &img.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("complete review image job %d: %w", job.ID, ErrJobLost)
		}
		return nil, fmt.Errorf("complete review image job %d: %w", job.ID, err)
	}
	return &img, nil
}

// Fail puts the job back for a retry after retryAfter, or parks it as failed
// once it has used maxAttempts. A job another worker has since reclaimed is
// left alone.
func (r *Repository) Fail(ctx context.Context, job Job, cause error, maxAttempts int, retryAfter time.Duration) error {
	msg := cause.Error()
	_, err := r.db.Exec(ctx, `
        UPDATE review_image_jobs
        SET status = CASE WHEN attempts >= $2 THEN 'failed' ELSE 'pending' END,
            last_error = $3,
            run_after = now() + make_interval(secs => $4),
            updated_at = now()
        WHERE id = $1 AND status = 'processing' AND attempts = $5
    `, job.ID, maxAttempts, msg, retryAfter.Seconds(), job.Attempts)
	if err != nil {
		return fmt.Errorf("fail review image job %d: %w", job.ID, err)
	}
	return nil
}
