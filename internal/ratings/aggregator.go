// Package ratings keeps a place's average rating and review count in step with
// its reviews.
package ratings

import (
	"context"

	"trekmap/internal/domain/places"

	"go.uber.org/zap"
)

// Aggregator recomputes place ratings after review writes. It never fails the
// caller: errors are logged and the review write stands.
type Aggregator struct {
	places places.RatingStore
	logger *zap.SugaredLogger
}

func NewAggregator(store places.RatingStore, logger *zap.SugaredLogger) *Aggregator {
	return &Aggregator{places: store, logger: logger}
}

func (a *Aggregator) ReviewCreated(ctx context.Context, placeID int64) {
	a.refresh(ctx, placeID, 1)
}

func (a *Aggregator) ReviewUpdated(ctx context.Context, placeID int64) {
	a.refresh(ctx, placeID, 0)
}

func (a *Aggregator) ReviewDeleted(ctx context.Context, placeID int64) {
	a.refresh(ctx, placeID, -1)
}

func (a *Aggregator) refresh(ctx context.Context, placeID int64, countDelta int) {
	rating, err := a.places.AverageRating(ctx, placeID)
	if err != nil {
		a.logger.Errorw("average rating failed", "place_id", placeID, "error", err)
		rating = 0
	}

	if err := a.places.SaveRating(ctx, placeID, rating, countDelta); err != nil {
		a.logger.Errorw("save place rating failed", "place_id", placeID, "rating", rating, "delta", countDelta, "error", err)
		return
	}
	a.logger.Debugw("place rating refreshed", "place_id", placeID, "rating", rating, "delta", countDelta)
}
