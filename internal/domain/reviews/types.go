package reviews

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound          = errors.New("review not found")
	ErrIllegalTransition = errors.New("review status transition not allowed")
	QueryTimeoutDuration = time.Second * 5
)

// Status is the moderation state of a review or of a review image.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// TargetKind names the kind of listing a review is about.
type TargetKind string

const (
	TargetNone       TargetKind = ""
	TargetPlace      TargetKind = "place"
	TargetLodging    TargetKind = "lodging"
	TargetRestaurant TargetKind = "restaurant"
	TargetTransport  TargetKind = "transport"
	TargetGuide      TargetKind = "guide"
)

type Review struct {
	ID           int64      `json:"id"`
	UserID       *int64     `json:"user_id,omitempty"`
	PlaceID      *int64     `json:"place_id,omitempty"`
	LodgingID    *int64     `json:"lodging_id,omitempty"`
	RestaurantID *int64     `json:"restaurant_id,omitempty"`
	TransportID  *int64     `json:"transport_id,omitempty"`
	GuideID      *int64     `json:"guide_id,omitempty"`
	Rating       int        `json:"rating"` // 1-5
	Comment      *string    `json:"comment,omitempty"`
	Visible      bool       `json:"visible"`
	Status       Status     `json:"status"`
	ApprovedAt   *time.Time `json:"approved_at,omitempty"`
	ApprovedBy   *int64     `json:"approved_by,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`

	// Joined fields
	UserName string `json:"user_name,omitempty"`
}

// Target reports which listing the review is about and its id. A review with
// no (or an unknown) target returns TargetNone.
func (r *Review) Target() (TargetKind, int64) {
	switch {
	case r.PlaceID != nil:
		return TargetPlace, *r.PlaceID
	case r.LodgingID != nil:
		return TargetLodging, *r.LodgingID
	case r.RestaurantID != nil:
		return TargetRestaurant, *r.RestaurantID
	case r.TransportID != nil:
		return TargetTransport, *r.TransportID
	case r.GuideID != nil:
		return TargetGuide, *r.GuideID
	}
	return TargetNone, 0
}

// SetTarget points the review at exactly one listing.
func (r *Review) SetTarget(kind TargetKind, id int64) error {
	r.PlaceID, r.LodgingID, r.RestaurantID, r.TransportID, r.GuideID = nil, nil, nil, nil, nil
	switch kind {
	case TargetPlace:
		r.PlaceID = &id
	case TargetLodging:
		r.LodgingID = &id
	case TargetRestaurant:
		r.RestaurantID = &id
	case TargetTransport:
		r.TransportID = &id
	case TargetGuide:
		r.GuideID = &id
	default:
		return errors.New("unknown review target")
	}
	return nil
}

// Author is the owning user as loaded for moderation.
type Author struct {
	ID        int64
	FirstName string
}

// PlaceSnapshot carries the place fields the points ledger consumes.
type PlaceSnapshot struct {
	ID                  int64
	Name                string
	Points              int
	UrbanCenterDistance int
}

type Town struct {
	ID   int64
	Name string
}

// ModerationContext is a review loaded together with its owner, place and town.
// Author is nil when the owner was deleted; Place and Town are nil for non-place
// reviews.
type ModerationContext struct {
	Review Review
	Author *Author
	Place  *PlaceSnapshot
	Town   *Town
}

type Store interface {
	Create(ctx context.Context, review *Review) error
	GetByID(ctx context.Context, reviewID int64) (*Review, error)
	UpdateContent(ctx context.Context, review *Review) error
	Delete(ctx context.Context, reviewID int64) error
	ListByStatus(ctx context.Context, status Status, limit, offset int) ([]Review, int, error)
	ListVisibleByPlace(ctx context.Context, placeID int64, limit, offset int) ([]Review, int, error)
	StatusStore
}

// StatusStore is the part of Store the moderation workflow runs in its transaction.
type StatusStore interface {
	GetForModeration(ctx context.Context, reviewID int64) (*ModerationContext, error)
	SaveStatus(ctx context.Context, review *Review) error
}
