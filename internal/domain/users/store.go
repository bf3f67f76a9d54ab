package users

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

func (r *Repository) GetByID(ctx context.Context, userID int64) (*User, error) {
	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var u User
	err := r.db.QueryRow(ctx, `
        SELECT id, first_name, last_name, email,
               total_points, ranking_points, remaining_points, distance_travelled,
               created_at, updated_at
        FROM users
        WHERE id = $1
    `, userID).Scan(
		&u.ID, &u.FirstName, &u.LastName, &u.Email,
		&u.TotalPoints, &u.RankingPoints, &u.RemainingPoints, &u.DistanceTravelled,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// LockForCredit takes a row lock on the user for the rest of the transaction,
// serialising concurrent credits to the same user.
func (r *Repository) LockForCredit(ctx context.Context, userID int64) error {
	var id int64
	err := r.db.QueryRow(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("lock user: %w", err)
	}
	return nil
}

// AddPoints increments all four aggregates in a single statement.
func (r *Repository) AddPoints(ctx context.Context, userID int64, points, distance int) error {
	result, err := r.db.Exec(ctx, `
        UPDATE users
        SET total_points       = total_points + $2,
            ranking_points     = ranking_points + $2,
            remaining_points   = remaining_points + $2,
            distance_travelled = distance_travelled + $3,
            updated_at         = now()
        WHERE id = $1
    `, userID, points, distance)
	if err != nil {
		return fmt.Errorf("add user points: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
