// Package ledger credits gamification points to users for approved place reviews.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"

	"trekmap/internal/domain/userpoints"
	"trekmap/internal/domain/users"
)

// ErrPointsOutOfRange is returned for awards that do not fit the smallint ledger column.
var ErrPointsOutOfRange = errors.New("points out of range")

// Credit describes one award. Points come from the place's stored score and
// Distance from its urban center distance in meters.
type Credit struct {
	UserID   int64
	ReviewID int64
	PlaceID  int64
	TownID   int64
	Points   int
	Distance int
}

// Creditor is what the moderation workflow calls inside its transaction.
type Creditor interface {
	Credit(ctx context.Context, c Credit) (bool, error)
}

// PointStore is the part of userpoints.Store the ledger writes through.
type PointStore interface {
	Exists(ctx context.Context, userID, placeID, townID int64) (bool, error)
	Insert(ctx context.Context, p *userpoints.UserPoint) (bool, error)
}

// Ledger must be built on tx-scoped stores; it never commits.
type Ledger struct {
	users  users.CreditStore
	points PointStore
}

func New(u users.CreditStore, p PointStore) *Ledger {
	return &Ledger{users: u, points: p}
}

// Credit awards c once per (user, place, town). It reports false without side
// effects when the user already holds a credit for that place and town.
func (l *Ledger) Credit(ctx context.Context, c Credit) (bool, error) {
	if c.Points < 0 || c.Points > math.MaxInt16 {
		return false, fmt.Errorf("%w: %d", ErrPointsOutOfRange, c.Points)
	}

	// serialize concurrent credits for the same user
	if err := l.users.LockForCredit(ctx, c.UserID); err != nil {
		return false, fmt.Errorf("lock user %d: %w", c.UserID, err)
	}

	exists, err := l.points.Exists(ctx, c.UserID, c.PlaceID, c.TownID)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	userID, reviewID, placeID := c.UserID, c.ReviewID, c.PlaceID
	inserted, err := l.points.Insert(ctx, &userpoints.UserPoint{
		UserID:            &userID,
		ReviewID:          &reviewID,
		PlaceID:           &placeID,
		TownID:            c.TownID,
		PointsEarned:      int16(c.Points),
		PointsRedeemed:    0,
		DistanceTravelled: c.Distance,
	})
	if err != nil {
		return false, err
	}
	if !inserted {
		return false, nil
	}

	if err := l.users.AddPoints(ctx, c.UserID, c.Points, c.Distance); err != nil {
		return false, err
	}
	return true, nil
}
