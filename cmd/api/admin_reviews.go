package main

import (
	"errors"
	"net/http"
	"strconv"

	"trekmap/internal/domain/reviewimages"
	"trekmap/internal/domain/reviews"
	"trekmap/internal/moderation"
	"trekmap/internal/params"

	"github.com/go-chi/chi/v5"
)

type changeReviewStatusPayload struct {
	Status string  `json:"status" validate:"required,review_status"`
	Reason *string `json:"reason" validate:"omitempty,max=1000"`
}

type approveReviewPayload struct {
	Reason *string `json:"reason" validate:"omitempty,max=1000"`
}

type reviewStatusResponse struct {
	OK       bool           `json:"ok"`
	ReviewID int64          `json:"reviewId"`
	Status   reviews.Status `json:"status"`
	Credited bool           `json:"credited"`
}

// changeReviewStatusHandler godoc
//
//	@Summary		Change review status
//	@Description	Moves a review to pending, approved or rejected and appends a history row. Approving a place review credits the author's points once.
//	@Tags			admin-reviews
//	@Accept			json
//	@Produce		json
//	@Param			reviewID	path		int							true	"Review ID"
//	@Param			payload		body		changeReviewStatusPayload	true	"New status and reason"
//	@Success		200			{object}	reviewStatusResponse
//	@Failure		400			{object}	error
//	@Failure		404			{object}	error
//	@Failure		422			{object}	error
//	@Security		ApiKeyAuth
//	@Router			/admin/reviews/{reviewID}/status [patch]
func (app *application) changeReviewStatusHandler(w http.ResponseWriter, r *http.Request) {
	reviewID, err := strconv.ParseInt(chi.URLParam(r, "reviewID"), 10, 64)
	if err != nil {
		app.badRequestResponse(w, r, errors.New("invalid review ID"))
		return
	}

	var payload changeReviewStatusPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	admin := getUserFromContext(r)
	res, err := app.moderation.ChangeStatus(r.Context(), reviewID, admin.ID, reviews.Status(payload.Status), payload.Reason)
	if err != nil {
		app.moderationErrorResponse(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, reviewStatusResponse{OK: true, ReviewID: res.ReviewID, Status: res.Status, Credited: res.Credited})
}

// approveReviewHandler godoc
//
//	@Summary		Approve review
//	@Description	Shortcut for changing the status to approved.
//	@Tags			admin-reviews
//	@Accept			json
//	@Produce		json
//	@Param			reviewID	path		int						true	"Review ID"
//	@Param			payload		body		approveReviewPayload	false	"Optional reason"
//	@Success		200			{object}	reviewStatusResponse
//	@Failure		400			{object}	error
//	@Failure		404			{object}	error
//	@Failure		422			{object}	error
//	@Security		ApiKeyAuth
//	@Router			/admin/reviews/{reviewID}/approve [post]
func (app *application) approveReviewHandler(w http.ResponseWriter, r *http.Request) {
	reviewID, err := strconv.ParseInt(chi.URLParam(r, "reviewID"), 10, 64)
	if err != nil {
		app.badRequestResponse(w, r, errors.New("invalid review ID"))
		return
	}

	var payload approveReviewPayload
	if r.ContentLength != 0 {
		if err := readJSON(w, r, &payload); err != nil {
			app.badRequestResponse(w, r, err)
			return
		}
		if err := Validate.Struct(payload); err != nil {
			app.badRequestResponse(w, r, err)
			return
		}
	}

	admin := getUserFromContext(r)
	res, err := app.moderation.Approve(r.Context(), reviewID, admin.ID, payload.Reason)
	if err != nil {
		app.moderationErrorResponse(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, reviewStatusResponse{OK: true, ReviewID: res.ReviewID, Status: res.Status, Credited: res.Credited})
}

func (app *application) moderationErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, moderation.ErrReviewNotFound):
		app.notFoundResponse(w, r, err)
	case errors.Is(err, moderation.ErrNotPlaceReview):
		app.unprocessableEntityResponse(w, r, err)
	case errors.Is(err, moderation.ErrReviewWithoutUser), errors.Is(err, moderation.ErrInvalidStatus):
		app.badRequestResponse(w, r, err)
	default:
		app.internalServerError(w, r, err)
	}
}

// listModerationQueueHandler godoc
//
//	@Summary		List reviews by status
//	@Description	The moderation queue, oldest first. Status defaults to pending.
//	@Tags			admin-reviews
//	@Produce		json
//	@Param			status	query		string	false	"pending, approved or rejected"
//	@Param			page	query		int		false	"Page number"
//	@Param			limit	query		int		false	"Page size"
//	@Success		200		{object}	map[string]interface{}
//	@Failure		400		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/admin/reviews [get]
func (app *application) listModerationQueueHandler(w http.ResponseWriter, r *http.Request) {
	status := reviews.StatusPending
	if s := r.URL.Query().Get("status"); s != "" {
		status = reviews.Status(s)
	}
	if !status.Valid() {
		app.badRequestResponse(w, r, errors.New("invalid status"))
		return
	}

	p := params.ParsePagination(r.URL.Query())
	list, total, err := app.store.Reviews.ListByStatus(r.Context(), status, p.Limit, p.Offset)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	p.ComputeMeta(total)
	if list == nil {
		list = []reviews.Review{}
	}

	app.jsonResponse(w, http.StatusOK, map[string]any{
		"reviews":    list,
		"pagination": p,
	})
}

// getReviewHistoryHandler godoc
//
//	@Summary		Review status history
//	@Tags			admin-reviews
//	@Produce		json
//	@Param			reviewID	path		int	true	"Review ID"
//	@Success		200			{array}		reviewhistory.Entry
//	@Failure		404			{object}	error
//	@Security		ApiKeyAuth
//	@Router			/admin/reviews/{reviewID}/history [get]
func (app *application) getReviewHistoryHandler(w http.ResponseWriter, r *http.Request) {
	reviewID, err := strconv.ParseInt(chi.URLParam(r, "reviewID"), 10, 64)
	if err != nil {
		app.badRequestResponse(w, r, errors.New("invalid review ID"))
		return
	}

	ctx := r.Context()
	if _, err := app.store.Reviews.GetByID(ctx, reviewID); err != nil {
		if errors.Is(err, reviews.ErrNotFound) {
			app.notFoundResponse(w, r, err)
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	entries, err := app.store.History.ListByReview(ctx, reviewID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	app.jsonResponse(w, http.StatusOK, entries)
}

// getReviewImagesHandler godoc
//
//	@Summary		List review images
//	@Tags			admin-reviews
//	@Produce		json
//	@Param			reviewID	path		int	true	"Review ID"
//	@Success		200			{array}		reviewimages.Image
//	@Security		ApiKeyAuth
//	@Router			/admin/reviews/{reviewID}/images [get]
func (app *application) getReviewImagesHandler(w http.ResponseWriter, r *http.Request) {
	reviewID, err := strconv.ParseInt(chi.URLParam(r, "reviewID"), 10, 64)
	if err != nil {
		app.badRequestResponse(w, r, errors.New("invalid review ID"))
		return
	}

	images, err := app.store.ReviewImages.ListByReview(r.Context(), reviewID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	app.jsonResponse(w, http.StatusOK, images)
}

type changeImageStatusPayload struct {
	Status string `json:"status" validate:"required,review_status"`
}

// changeReviewImageStatusHandler godoc
//
//	@Summary		Moderate a review image
//	@Description	Sets the status of one image. The parent review is not affected.
//	@Tags			admin-reviews
//	@Accept			json
//	@Produce		json
//	@Param			imageID	path		int							true	"Review image ID"
//	@Param			payload	body		changeImageStatusPayload	true	"New status"
//	@Success		200		{object}	reviewimages.Image
//	@Failure		400		{object}	error
//	@Failure		404		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/admin/review-images/{imageID}/status [patch]
func (app *application) changeReviewImageStatusHandler(w http.ResponseWriter, r *http.Request) {
	imageID, err := strconv.ParseInt(chi.URLParam(r, "imageID"), 10, 64)
	if err != nil {
		app.badRequestResponse(w, r, errors.New("invalid image ID"))
		return
	}

	var payload changeImageStatusPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	img, err := app.store.ReviewImages.SetStatus(r.Context(), imageID, reviews.Status(payload.Status))
	if err != nil {
		if errors.Is(err, reviewimages.ErrNotFound) {
			app.notFoundResponse(w, r, err)
			return
		}
		app.internalServerError(w, r, err)
		return
	}

	app.logger.Infow("review image status changed", "image_id", imageID, "status", img.Status, "admin_id", getUserFromContext(r).ID)
	app.jsonResponse(w, http.StatusOK, img)
}
