package users

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound          = errors.New("user not found")
	QueryTimeoutDuration = time.Second * 5
)

type User struct {
	ID        int64     `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Aggregates
}

// Aggregates are the gamification totals. The ledger only ever increases them;
// redemption lowers RemainingPoints elsewhere.
type Aggregates struct {
	TotalPoints       int `json:"total_points"`
	RankingPoints     int `json:"ranking_points"`
	RemainingPoints   int `json:"remaining_points"`
	DistanceTravelled int `json:"distance_travelled"` // meters
}

type Store interface {
	GetByID(ctx context.Context, userID int64) (*User, error)
	CreditStore
}

// CreditStore is what the points ledger needs from users inside a transaction.
type CreditStore interface {
	LockForCredit(ctx context.Context, userID int64) error
	AddPoints(ctx context.Context, userID int64, points, distance int) error
}
