package userpoints

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// UserPoint is one credit in the points ledger. At most one row exists per
// (user, review, place, town).
type UserPoint struct {
	ID                uuid.UUID `json:"id"`
	UserID            *int64    `json:"user_id,omitempty"`
	ReviewID          *int64    `json:"review_id,omitempty"`
	PlaceID           *int64    `json:"place_id,omitempty"`
	TownID            int64     `json:"town_id"`
	PointsEarned      int16     `json:"points_earned"`
	PointsRedeemed    int16     `json:"points_redeemed"`
	DistanceTravelled int       `json:"distance_travelled"` // meters
	CreatedAt         time.Time `json:"created_at"`
}

type Store interface {
	Exists(ctx context.Context, userID, placeID, townID int64) (bool, error)
	Insert(ctx context.Context, p *UserPoint) (bool, error)
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]UserPoint, int, error)
}
