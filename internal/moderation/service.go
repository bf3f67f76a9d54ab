// Package moderation changes the status of reviews and credits points for
// approved place reviews, all in one transaction.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"trekmap/internal/domain/reviewhistory"
	"trekmap/internal/domain/reviews"
	"trekmap/internal/domain/storage"
	"trekmap/internal/infra/dbx"
	"trekmap/internal/ledger"
	"trekmap/internal/metrics"
	"trekmap/internal/notifications"

	"go.uber.org/zap"
)

var (
	ErrReviewNotFound    = errors.New("review not found")
	ErrNotPlaceReview    = errors.New("only place reviews can be moderated")
	ErrReviewWithoutUser = errors.New("review has no associated user")
	ErrInvalidStatus     = errors.New("invalid review status")
)

// TxRunner opens the moderation unit of work. storage.Container implements it.
type TxRunner interface {
	WithModerationTx(ctx context.Context, fn func(m *storage.ModerationTx) error) error
}

type Notifier interface {
	NotifyReviewApproved(ctx context.Context, ev notifications.ReviewApproved) error
}

type Result struct {
	ReviewID int64          `json:"reviewId"`
	Status   reviews.Status `json:"status"`
	Credited bool           `json:"credited"`
	Points   int            `json:"points,omitempty"`
}

type Service struct {
	tx       TxRunner
	notifier Notifier
	async    *notifications.Async
	metrics  *metrics.Metrics
	logger   *zap.SugaredLogger
	now      func() time.Time
}

// NewService wires the workflow. notifier and m may be nil.
func NewService(tx TxRunner, notifier Notifier, async *notifications.Async, m *metrics.Metrics, logger *zap.SugaredLogger) *Service {
	return &Service{
		tx:       tx,
		notifier: notifier,
		async:    async,
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

// Approve is ChangeStatus with StatusApproved.
func (s *Service) Approve(ctx context.Context, reviewID, adminID int64, reason *string) (*Result, error) {
	return s.ChangeStatus(ctx, reviewID, adminID, reviews.StatusApproved, reason)
}

// ChangeStatus moves the review to status, appends a history row and, when
// approving, credits the owner through the ledger. Either all of it commits or
// none of it does.
func (s *Service) ChangeStatus(ctx context.Context, reviewID, adminID int64, status reviews.Status, reason *string) (*Result, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	start := s.now()
	var (
		result  = &Result{ReviewID: reviewID, Status: status}
		owner   int64
		placeID int64
		place   string
	)

	err := s.tx.WithModerationTx(ctx, func(m *storage.ModerationTx) error {
		mc, err := m.Reviews.GetForModeration(ctx, reviewID)
		if err != nil {
			if errors.Is(err, reviews.ErrNotFound) {
				return ErrReviewNotFound
			}
			return err
		}
		if mc.Place == nil {
			return ErrNotPlaceReview
		}
		if mc.Author == nil {
			return ErrReviewWithoutUser
		}
		if mc.Town == nil {
			return fmt.Errorf("place %d has no town", mc.Place.ID)
		}

		review := mc.Review
		if err := review.Transition(status, adminID, s.now()); err != nil {
			return err
		}
		if err := m.Reviews.SaveStatus(ctx, &review); err != nil {
			return err
		}

		reviewer := adminID
		if err := m.History.Append(ctx, &reviewhistory.Entry{
			ReviewID:   review.ID,
			Status:     status,
			Reason:     reason,
			ReviewerID: &reviewer,
		}); err != nil {
			return err
		}

		owner, placeID, place = mc.Author.ID, mc.Place.ID, mc.Place.Name
		if status != reviews.StatusApproved {
			return nil
		}

		credited, err := m.Ledger.Credit(ctx, ledger.Credit{
			UserID:   mc.Author.ID,
			ReviewID: review.ID,
			PlaceID:  mc.Place.ID,
			TownID:   mc.Town.ID,
			Points:   mc.Place.Points,
			Distance: mc.Place.UrbanCenterDistance,
		})
		if err != nil {
			return fmt.Errorf("credit points: %w", err)
		}
		result.Credited = credited
		if credited {
			result.Points = mc.Place.Points
		}
		return nil
	})
	if err != nil {
		s.metrics.RecordStatusChangeError(errorReason(err))
		return nil, err
	}

	s.metrics.RecordStatusChange(string(status), result.Credited, result.Points, s.now().Sub(start).Seconds())
	s.logger.Infow("review status changed",
		"review_id", reviewID,
		"status", status,
		"admin_id", adminID,
		"credited", result.Credited,
		"points", result.Points,
	)

	if result.Credited && s.notifier != nil && s.async != nil {
		ev := notifications.ReviewApproved{
			UserID:    owner,
			ReviewID:  reviewID,
			PlaceID:   placeID,
			PlaceName: place,
			Points:    result.Points,
		}
		s.async.CallAsync(func(ctx context.Context) error {
			return s.notifier.NotifyReviewApproved(ctx, ev)
		}, "ReviewApprovedToOwner")
	}

	return result, nil
}

func errorReason(err error) string {
	switch {
	case errors.Is(err, ErrReviewNotFound):
		return "not_found"
	case errors.Is(err, ErrNotPlaceReview):
		return "not_place"
	case errors.Is(err, ErrReviewWithoutUser):
		return "no_user"
	case errors.Is(err, ledger.ErrPointsOutOfRange):
		return "points_out_of_range"
	case dbx.IsUniqueViolation(err):
		return "conflict"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	}
	return "internal"
}
