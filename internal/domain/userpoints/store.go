package userpoints

import (
	"context"
	"errors"
	"fmt"

	"trekmap/internal/infra/dbx"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type Repository struct {
	db dbx.Querier
}

func NewRepository(q dbx.Querier) *Repository {
	return &Repository{db: q}
}

// Exists reports whether the user was already credited for the place in the town.
// The review is not part of the check.
func (r *Repository) Exists(ctx context.Context, userID, placeID, townID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
        SELECT EXISTS (
          SELECT 1 FROM user_point
          WHERE user_id = $1 AND place_id = $2 AND town_id = $3
        )
    `, userID, placeID, townID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check user_point: %w", err)
	}
	return exists, nil
}

// Insert records a credit. It returns false without error when the unique
// (user, review, place, town) row already exists.
func (r *Repository) Insert(ctx context.Context, p *UserPoint) (bool, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}

	err := r.db.QueryRow(ctx, `
        INSERT INTO user_point (id, user_id, review_id, place_id, town_id,
                                points_earned, points_redeemed, distance_travelled)
        VALUES ($1, $2, $3, $4, $5, $6, 0, $7)
        ON CONFLICT ON CONSTRAINT user_point_user_review_place_town_key DO NOTHING
        RETURNING points_redeemed, created_at
    `, p.ID, p.UserID, p.ReviewID, p.PlaceID, p.TownID, p.PointsEarned, p.DistanceTravelled,
	).Scan(&p.PointsRedeemed, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("insert user_point: %w", err)
	}
	return true, nil
}

func (r *Repository) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]UserPoint, int, error) {
	rows, err := r.db.Query(ctx, `
        SELECT id, user_id, review_id, place_id, town_id, points_earned, points_redeemed,
               distance_travelled, created_at, COUNT(*) OVER()
        FROM user_point
        WHERE user_id = $1
        ORDER BY created_at DESC
        LIMIT $2 OFFSET $3
    `, userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list user_point: %w", err)
	}
	defer rows.Close()

	var (
		out   []UserPoint
		total int
	)
	for rows.Next() {
		var p UserPoint
		if err := rows.Scan(&p.ID, &p.UserID, &p.ReviewID, &p.PlaceID, &p.TownID, &p.PointsEarned,
			&p.PointsRedeemed, &p.DistanceTravelled, &p.CreatedAt, &total); err != nil {
			return nil, 0, fmt.Errorf("scan user_point: %w", err)
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}
