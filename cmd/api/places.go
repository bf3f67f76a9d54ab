package main

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"trekmap/internal/domain/places"
	"trekmap/internal/domain/reviews"
	"trekmap/internal/params"
	"trekmap/internal/points"

	"github.com/go-chi/chi/v5"
)

type scorePlacePayload struct {
	DifficultyLevel int      `json:"difficulty_level" validate:"required,min=1,max=5"`
	Popularity      int      `json:"popularity" validate:"min=0,max=5"`
	BasePoints      *float64 `json:"base_points" validate:"omitempty,gt=0,lte=1000"`
}

type placeScoreResponse struct {
	PlaceID          int64   `json:"place_id"`
	Points           int     `json:"points"`
	DistanceFactor   float64 `json:"distance_factor"`
	DifficultyFactor float64 `json:"difficulty_factor"`
	PopularityFactor float64 `json:"popularity_factor"`
}

// scorePlaceHandler godoc
//
//	@Summary		Score a place
//	@Description	Computes the points a place is worth from its difficulty, popularity and distance to the town center, and stores them on the place.
//	@Tags			admin-places
//	@Accept			json
//	@Produce		json
//	@Param			placeID	path		int					true	"Place ID"
//	@Param			payload	body		scorePlacePayload	true	"Scoring inputs"
//	@Success		200		{object}	placeScoreResponse
//	@Failure		400		{object}	error
//	@Failure		404		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/admin/places/{placeID}/score [post]
func (app *application) scorePlaceHandler(w http.ResponseWriter, r *http.Request) {
	placeID, err := strconv.ParseInt(chi.URLParam(r, "placeID"), 10, 64)
	if err != nil {
		app.badRequestResponse(w, r, errors.New("invalid place ID"))
		return
	}

	var payload scorePlacePayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	ctx := r.Context()
	place, err := app.store.Places.GetByID(ctx, placeID)
	if err != nil {
		if errors.Is(err, places.ErrNotFound) {
			app.notFoundResponse(w, r, err)
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	f := points.DefaultFactors()
	if payload.BasePoints != nil {
		f.BasePoints = *payload.BasePoints
	}
	f.DifficultyLevel = float64(payload.DifficultyLevel)
	f.Popularity = float64(payload.Popularity)
	f.Distance = float64(place.UrbanCenterDistance)
	f.MaxDistance = float64(place.Town.MaxDistance)
	f.UrbanCenterRange = float64(place.Town.UrbanCenterRange)

	score := points.Calculate(f)
	if score > math.MaxInt16 {
		app.badRequestResponse(w, r, errors.New("score exceeds the ledger limit"))
		return
	}

	if err := app.store.Places.SetScore(ctx, placeID, score, payload.DifficultyLevel, payload.Popularity); err != nil {
		if errors.Is(err, places.ErrNotFound) {
			app.notFoundResponse(w, r, err)
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	app.logger.Infow("place scored", "place_id", placeID, "points", score, "admin_id", getUserFromContext(r).ID)
	app.jsonResponse(w, http.StatusOK, placeScoreResponse{
		PlaceID:          placeID,
		Points:           score,
		DistanceFactor:   points.DistanceFactor(f.Distance, f.MaxDistance, f.UrbanCenterRange),
		DifficultyFactor: points.DifficultyFactor(f.DifficultyLevel),
		PopularityFactor: points.PopularityFactor(f.Popularity),
	})
}

// getPlaceReviewsHandler godoc
//
//	@Summary		List place reviews
//	@Description	Approved, visible reviews of a place, newest first, with the place's rating.
//	@Tags			places
//	@Produce		json
//	@Param			placeID	path		int	true	"Place ID"
//	@Param			page	query		int	false	"Page number"
//	@Param			limit	query		int	false	"Page size"
//	@Success		200		{object}	map[string]interface{}
//	@Failure		404		{object}	error
//	@Router			/places/{placeID}/reviews [get]
func (app *application) getPlaceReviewsHandler(w http.ResponseWriter, r *http.Request) {
	placeID, err := strconv.ParseInt(chi.URLParam(r, "placeID"), 10, 64)
	if err != nil {
		app.badRequestResponse(w, r, errors.New("invalid place ID"))
		return
	}

	ctx := r.Context()
	place, err := app.store.Places.GetByID(ctx, placeID)
	if err != nil {
		if errors.Is(err, places.ErrNotFound) {
			app.notFoundResponse(w, r, err)
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	p := params.ParsePagination(r.URL.Query())
	list, total, err := app.store.Reviews.ListVisibleByPlace(ctx, placeID, p.Limit, p.Offset)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	p.ComputeMeta(total)
	if list == nil {
		list = []reviews.Review{}
	}

	app.jsonResponse(w, http.StatusOK, map[string]any{
		"reviews":      list,
		"pagination":   p,
		"rating":       math.Round(place.Rating*10) / 10,
		"review_count": place.ReviewCount,
	})
}
