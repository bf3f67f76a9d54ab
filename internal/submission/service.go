// Package submission handles a user's own review writes: create, edit and
// delete, plus queueing the attached images.
package submission

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"trekmap/internal/domain/reviewimages"
	"trekmap/internal/domain/reviews"
	"trekmap/internal/domain/storage"
	"trekmap/internal/infra/dbx"

	"go.uber.org/zap"
)

var (
	ErrForbidden     = errors.New("review belongs to another user")
	ErrInvalidRating = errors.New("rating must be between 1 and 5")
	ErrInvalidTarget = errors.New("invalid review target")
	ErrTooManyImages = errors.New("too many images")
)

const MaxImagesPerReview = 5

// targetFKs are the review foreign keys that point at the reviewed listing.
var targetFKs = map[string]bool{
	"review_place_id_fkey":      true,
	"review_lodging_id_fkey":    true,
	"review_restaurant_id_fkey": true,
	"review_transport_id_fkey":  true,
	"review_guide_id_fkey":      true,
}

type TxRunner interface {
	WithSubmissionTx(ctx context.Context, fn func(s *storage.SubmissionTx) error) error
}

// RatingRefresher is notified after place review writes commit.
type RatingRefresher interface {
	ReviewCreated(ctx context.Context, placeID int64)
	ReviewUpdated(ctx context.Context, placeID int64)
	ReviewDeleted(ctx context.Context, placeID int64)
}

type CreateInput struct {
	Target   reviews.TargetKind
	TargetID int64
	Rating   int
	Comment  *string
	Images   []reviewimages.Upload
}

// UpdateInput carries the owner-editable fields; nil means unchanged.
type UpdateInput struct {
	Rating  *int
	Comment *string
	Visible *bool
	Images  []reviewimages.Upload
}

type Service struct {
	tx      TxRunner
	ratings RatingRefresher
	logger  *zap.SugaredLogger
}

func NewService(tx TxRunner, ratings RatingRefresher, logger *zap.SugaredLogger) *Service {
	return &Service{tx: tx, ratings: ratings, logger: logger}
}

// Create stores a pending review and queues its images in the same transaction.
func (s *Service) Create(ctx context.Context, userID int64, in CreateInput) (*reviews.Review, error) {
	if err := validateRating(in.Rating); err != nil {
		return nil, err
	}
	if len(in.Images) > MaxImagesPerReview {
		return nil, ErrTooManyImages
	}

	review := &reviews.Review{
		UserID:  &userID,
		Rating:  in.Rating,
		Comment: trimComment(in.Comment),
		Visible: true,
	}
	if in.TargetID <= 0 {
		return nil, ErrInvalidTarget
	}
	if err := review.SetTarget(in.Target, in.TargetID); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTarget, in.Target)
	}

	err := s.tx.WithSubmissionTx(ctx, func(tx *storage.SubmissionTx) error {
		if err := tx.Reviews.Create(ctx, review); err != nil {
			return err
		}
		return tx.Images.Enqueue(ctx, review.ID, in.Images)
	})
	if err != nil {
		if dbx.IsForeignKeyViolation(err) && targetFKs[dbx.ConstraintName(err)] {
			return nil, fmt.Errorf("%w: %s %d does not exist", ErrInvalidTarget, in.Target, in.TargetID)
		}
		return nil, err
	}

	s.logger.Infow("review created", "review_id", review.ID, "user_id", userID, "target", in.Target, "images", len(in.Images))
	if review.PlaceID != nil {
		s.ratings.ReviewCreated(ctx, *review.PlaceID)
	}
	return review, nil
}

// Update edits the owner's review. The moderation status is left as it is.
func (s *Service) Update(ctx context.Context, userID, reviewID int64, in UpdateInput) (*reviews.Review, error) {
	if in.Rating != nil {
		if err := validateRating(*in.Rating); err != nil {
			return nil, err
		}
	}
	if len(in.Images) > MaxImagesPerReview {
		return nil, ErrTooManyImages
	}

	var review *reviews.Review
	err := s.tx.WithSubmissionTx(ctx, func(tx *storage.SubmissionTx) error {
		rv, err := ownedReview(ctx, tx.Reviews, userID, reviewID)
		if err != nil {
			return err
		}
		if in.Rating != nil {
			rv.Rating = *in.Rating
		}
		if in.Comment != nil {
			rv.Comment = trimComment(in.Comment)
		}
		if in.Visible != nil {
			rv.Visible = *in.Visible
		}
		if err := tx.Reviews.UpdateContent(ctx, rv); err != nil {
			return err
		}
		review = rv
		return tx.Images.Enqueue(ctx, rv.ID, in.Images)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Infow("review updated", "review_id", reviewID, "user_id", userID, "images", len(in.Images))
	if review.PlaceID != nil {
		s.ratings.ReviewUpdated(ctx, *review.PlaceID)
	}
	return review, nil
}

// Delete removes the owner's review. History and image rows go with it.
func (s *Service) Delete(ctx context.Context, userID, reviewID int64) error {
	var placeID *int64
	err := s.tx.WithSubmissionTx(ctx, func(tx *storage.SubmissionTx) error {
		rv, err := ownedReview(ctx, tx.Reviews, userID, reviewID)
		if err != nil {
			return err
		}
		placeID = rv.PlaceID
		return tx.Reviews.Delete(ctx, reviewID)
	})
	if err != nil {
		return err
	}

	s.logger.Infow("review deleted", "review_id", reviewID, "user_id", userID)
	if placeID != nil {
		s.ratings.ReviewDeleted(ctx, *placeID)
	}
	return nil
}

func ownedReview(ctx context.Context, store reviews.Store, userID, reviewID int64) (*reviews.Review, error) {
	rv, err := store.GetByID(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	if rv.UserID == nil || *rv.UserID != userID {
		return nil, ErrForbidden
	}
	return rv, nil
}

func validateRating(r int) error {
	if r < 1 || r > 5 {
		return ErrInvalidRating
	}
	return nil
}

func trimComment(c *string) *string {
	if c == nil {
		return nil
	}
	t := strings.TrimSpace(*c)
	if t == "" {
		return nil
	}
	return &t
}
