package places

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound          = errors.New("place not found")
	QueryTimeoutDuration = time.Second * 5
)

// Place carries the aggregate and scoring columns of a place listing; the rest
// of the listing is owned by listing CRUD.
type Place struct {
	ID          int64   `json:"id"`
	TownID      int64   `json:"town_id"`
	Name        string  `json:"name"`
	Rating      float64 `json:"rating"`
	ReviewCount int     `json:"review_count"`
	Points      int     `json:"points"`
	// UrbanCenterDistance is the distance from the town center in meters,
	// stored in the urbar_center_distance column.
	UrbanCenterDistance int       `json:"urban_center_distance"`
	DifficultyLevel     int       `json:"difficulty_level"`
	Popularity          int       `json:"popularity"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`

	Town Town `json:"town"`
}

type Town struct {
	ID               int64  `json:"id"`
	Name             string `json:"name"`
	MaxDistance      int    `json:"max_distance"`       // meters
	UrbanCenterRange int    `json:"urban_center_range"` // meters
}

type Store interface {
	GetByID(ctx context.Context, placeID int64) (*Place, error)
	SetScore(ctx context.Context, placeID int64, points, difficultyLevel, popularity int) error
	RatingStore
}

// RatingStore backs the rating aggregator.
type RatingStore interface {
	AverageRating(ctx context.Context, placeID int64) (float64, error)
	SaveRating(ctx context.Context, placeID int64, rating float64, countDelta int) error
}
