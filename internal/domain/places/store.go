package places

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

func (r *Repository) GetByID(ctx context.Context, placeID int64) (*Place, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var p Place
	err := r.db.QueryRow(ctx, `
        SELECT p.id, p.town_id, p.name, p.rating, p.review_count, p.points,
               p.urbar_center_distance, p.difficulty_level, p.popularity,
               p.created_at, p.updated_at,
               t.id, t.name, t.max_distance, t.urban_center_range
        FROM places p
        JOIN towns t ON t.id = p.town_id
        WHERE p.id = $1
    `, placeID).Scan(
		&p.ID, &p.TownID, &p.Name, &p.Rating, &p.ReviewCount, &p.Points,
		&p.UrbanCenterDistance, &p.DifficultyLevel, &p.Popularity,
		&p.CreatedAt, &p.UpdatedAt,
		&p.Town.ID, &p.Town.Name, &p.Town.MaxDistance, &p.Town.UrbanCenterRange,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get place: %w", err)
	}
	return &p, nil
}

// SetScore stores the precomputed points together with the inputs they came from.
func (r *Repository) SetScore(ctx context.Context, placeID int64, points, difficultyLevel, popularity int) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	result, err := r.db.Exec(ctx, `
        UPDATE places
        SET points = $2, difficulty_level = $3, popularity = $4, updated_at = now()
        WHERE id = $1
    `, placeID, points, difficultyLevel, popularity)
	if err != nil {
		return fmt.Errorf("set place score: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) AverageRating(ctx context.Context, placeID int64) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var avg float64
	err := r.db.QueryRow(ctx, `
        SELECT COALESCE(AVG(rating), 0)::float8
        FROM review
        WHERE place_id = $1
    `, placeID).Scan(&avg)
	if err != nil {
		return 0, fmt.Errorf("average place rating: %w", err)
	}
	return avg, nil
}

// SaveRating sets the rating and shifts review_count by countDelta, never below zero.
func (r *Repository) SaveRating(ctx context.Context, placeID int64, rating float64, countDelta int) error {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	result, err := r.db.Exec(ctx, `
        UPDATE places
        SET rating = $2,
            review_count = GREATEST(review_count + $3, 0),
            updated_at = now()
        WHERE id = $1
    `, placeID, rating, countDelta)
	if err != nil {
		return fmt.Errorf("save place rating: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
