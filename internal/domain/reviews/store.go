package reviews

import (
	"context"
	"errors"
	"fmt"

	"trekmap/internal/infra/dbx"

	"github.com/jackc/pgx/v5"
)

type Repository struct {
	db dbx.Querier
}

func NewRepository(q dbx.Querier) *Repository {
	return &Repository{db: q}
}

const reviewColumns = `
	r.id, r.user_id, r.place_id, r.lodging_id, r.restaurant_id, r.transport_id, r.guide_id,
	r.rating, r.comment, r.visible, r.status::text, r.approved_at, r.approved_by_id,
	r.created_at, r.updated_at`

func scanReview(row pgx.Row, extra ...any) (*Review, error) {
	var rv Review
	dest := []any{
		&rv.ID, &rv.UserID, &rv.PlaceID, &rv.LodgingID, &rv.RestaurantID, &rv.TransportID, &rv.GuideID,
		&rv.Rating, &rv.Comment, &rv.Visible, &rv.Status, &rv.ApprovedAt, &rv.ApprovedBy,
		&rv.CreatedAt, &rv.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return &rv, nil
}

// Create inserts a review as pending, whatever Status holds.
func (r *Repository) Create(ctx context.Context, review *Review) error {
	query := `
        INSERT INTO review (user_id, place_id, lodging_id, restaurant_id, transport_id, guide_id,
                            rating, comment, visible, status)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'pending')
        RETURNING id, status::text, created_at, updated_at
    `
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	err := r.db.QueryRow(ctx, query,
		review.UserID,
		review.PlaceID,
		review.LodgingID,
		review.RestaurantID,
		review.TransportID,
		review.GuideID,
		review.Rating,
		review.Comment,
		review.Visible,
	).Scan(&review.ID, &review.Status, &review.CreatedAt, &review.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create review: %w", err)
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, reviewID int64) (*Review, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	row := r.db.QueryRow(ctx, `SELECT `+reviewColumns+` FROM review r WHERE r.id = $1`, reviewID)
	rv, err := scanReview(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get review: %w", err)
	}
	return rv, nil
}

// UpdateContent writes the owner-editable fields. Status is never touched here.
func (r *Repository) UpdateContent(ctx context.Context, review *Review) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	err := r.db.QueryRow(ctx, `
        UPDATE review
        SET rating = $2, comment = $3, visible = $4, updated_at = now()
        WHERE id = $1
        RETURNING updated_at
    `, review.ID, review.Rating, review.Comment, review.Visible).Scan(&review.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("update review: %w", err)
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, reviewID int64) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	result, err := r.db.Exec(ctx, `DELETE FROM review WHERE id = $1`, reviewID)
	if err != nil {
		return fmt.Errorf("delete review: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByStatus is the moderation queue, oldest first.
func (r *Repository) ListByStatus(ctx context.Context, status Status, limit, offset int) ([]Review, int, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	rows, err := r.db.Query(ctx, `
        SELECT `+reviewColumns+`, COALESCE(u.first_name, ''), COUNT(*) OVER()
        FROM review r
        LEFT JOIN users u ON u.id = r.user_id
        WHERE r.status = $1::review_status
        ORDER BY r.created_at ASC, r.id ASC
        LIMIT $2 OFFSET $3
    `, string(status), limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list reviews by status: %w", err)
	}
	return collect(rows)
}

// ListVisibleByPlace returns approved, visible reviews of a place, newest first.
func (r *Repository) ListVisibleByPlace(ctx context.Context, placeID int64, limit, offset int) ([]Review, int, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	rows, err := r.db.Query(ctx, `
        SELECT `+reviewColumns+`, COALESCE(u.first_name, ''), COUNT(*) OVER()
        FROM review r
        LEFT JOIN users u ON u.id = r.user_id
        WHERE r.place_id = $1 AND r.visible AND r.status = 'approved'
        ORDER BY r.created_at DESC
        LIMIT $2 OFFSET $3
    `, placeID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list place reviews: %w", err)
	}
	return collect(rows)
}

func collect(rows pgx.Rows) ([]Review, int, error) {
	defer rows.Close()

	var (
		out   []Review
		total int
	)
	for rows.Next() {
		var name string
		rv, err := scanReview(rows, &name, &total)
		if err != nil {
			return nil, 0, fmt.Errorf("scan review: %w", err)
		}
		rv.UserName = name
		out = append(out, *rv)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// GetForModeration loads the review with its owner, place and town in one query.
func (r *Repository) GetForModeration(ctx context.Context, reviewID int64) (*ModerationContext, error) {
	var (
		authorID   *int64
		authorName *string
		placeID    *int64
		placeName  *string
		placePts   *int
		placeDist  *int
		townID     *int64
		townName   *string
	)

	row := r.db.QueryRow(ctx, `
        SELECT `+reviewColumns+`,
               u.id, u.first_name,
               p.id, p.name, p.points, p.urbar_center_distance,
               t.id, t.name
        FROM review r
        LEFT JOIN users u ON u.id = r.user_id
        LEFT JOIN places p ON p.id = r.place_id
        LEFT JOIN towns t ON t.id = p.town_id
        WHERE r.id = $1
    `, reviewID)

	rv, err := scanReview(row,
		&authorID, &authorName,
		&placeID, &placeName, &placePts, &placeDist,
		&townID, &townName,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load review for moderation: %w", err)
	}

	mc := &ModerationContext{Review: *rv}
	if authorID != nil {
		mc.Author = &Author{ID: *authorID, FirstName: deref(authorName)}
	}
	if placeID != nil {
		mc.Place = &PlaceSnapshot{
			ID:                  *placeID,
			Name:                deref(placeName),
			Points:              derefInt(placePts),
			UrbanCenterDistance: derefInt(placeDist),
		}
	}
	if townID != nil {
		mc.Town = &Town{ID: *townID, Name: deref(townName)}
	}
	return mc, nil
}

// SaveStatus persists status, approved_at and approved_by_id.
func (r *Repository) SaveStatus(ctx context.Context, review *Review) error {
	err := r.db.QueryRow(ctx, `
        UPDATE review
        SET status = $2::review_status, approved_at = $3, approved_by_id = $4, updated_at = now()
        WHERE id = $1
        RETURNING updated_at
    `, review.ID, string(review.Status), review.ApprovedAt, review.ApprovedBy).Scan(&review.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("save review status: %w", err)
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt(n *int) int {
	if n == nil {
		return 0
	}
	return *n
}
