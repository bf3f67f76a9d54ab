package main

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"trekmap/internal/domain/reviewimages"
	"trekmap/internal/domain/reviews"
	"trekmap/internal/submission"

	"github.com/go-chi/chi/v5"
)

const (
	maxReviewUpload = 32 << 20 // 32 MB form
	maxImageBytes   = 8 << 20
)

type createReviewForm struct {
	Target   string `validate:"required,oneof=place lodging restaurant transport guide"`
	TargetID int64  `validate:"required,gt=0"`
	Rating   int    `validate:"required,min=1,max=5"`
	Comment  string `validate:"max=2000"`
}

// createReviewHandler godoc
//
//	@Summary		Create review
//	@Description	Creates a pending review. Attached images are processed in the background.
//	@Tags			reviews
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			target		formData	string	true	"place, lodging, restaurant, transport or guide"
//	@Param			target_id	formData	int		true	"Listing ID"
//	@Param			rating		formData	int		true	"1-5"
//	@Param			comment		formData	string	false	"Comment"
//	@Param			images		formData	file	false	"Up to 5 images"
//	@Success		201			{object}	reviews.Review
//	@Failure		400			{object}	error
//	@Security		ApiKeyAuth
//	@Router			/reviews [post]
func (app *application) createReviewHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxReviewUpload); err != nil {
		app.badRequestResponse(w, r, fmt.Errorf("invalid form: %w", err))
		return
	}

	form := createReviewForm{
		Target:  strings.TrimSpace(r.FormValue("target")),
		Comment: r.FormValue("comment"),
	}
	form.TargetID, _ = strconv.ParseInt(r.FormValue("target_id"), 10, 64)
	form.Rating, _ = strconv.Atoi(r.FormValue("rating"))
	if err := Validate.Struct(form); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	uploads, err := readUploads(r.MultipartForm)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	user := getUserFromContext(r)
	review, err := app.submissions.Create(r.Context(), user.ID, submission.CreateInput{
		Target:   reviews.TargetKind(form.Target),
		TargetID: form.TargetID,
		Rating:   form.Rating,
		Comment:  &form.Comment,
		Images:   uploads,
	})
	if err != nil {
		app.submissionErrorResponse(w, r, err)
		return
	}

	app.jsonResponse(w, http.StatusCreated, review)
}

// updateReviewHandler godoc
//
//	@Summary		Edit own review
//	@Description	Updates rating, comment or visibility and queues extra images. The moderation status is kept.
//	@Tags			reviews
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			reviewID	path		int		true	"Review ID"
//	@Param			rating		formData	int		false	"1-5"
//	@Param			comment		formData	string	false	"Comment"
//	@Param			visible		formData	bool	false	"Visibility"
//	@Param			images		formData	file	false	"Up to 5 images"
//	@Success		200			{object}	reviews.Review
//	@Failure		400			{object}	error
//	@Failure		403			{object}	error
//	@Failure		404			{object}	error
//	@Security		ApiKeyAuth
//	@Router			/reviews/{reviewID} [patch]
func (app *application) updateReviewHandler(w http.ResponseWriter, r *http.Request) {
	reviewID, err := strconv.ParseInt(chi.URLParam(r, "reviewID"), 10, 64)
	if err != nil {
		app.badRequestResponse(w, r, errors.New("invalid review ID"))
		return
	}
	if err := r.ParseMultipartForm(maxReviewUpload); err != nil {
		app.badRequestResponse(w, r, fmt.Errorf("invalid form: %w", err))
		return
	}

	var in submission.UpdateInput
	if v := r.FormValue("rating"); v != "" {
		rating, err := strconv.Atoi(v)
		if err != nil {
			app.badRequestResponse(w, r, errors.New("invalid rating"))
			return
		}
		in.Rating = &rating
	}
	if _, ok := r.MultipartForm.Value["comment"]; ok {
		comment := r.FormValue("comment")
		if len(comment) > 2000 {
			app.badRequestResponse(w, r, errors.New("comment is too long"))
			return
		}
		in.Comment = &comment
	}
	if v := r.FormValue("visible"); v != "" {
		visible, err := strconv.ParseBool(v)
		if err != nil {
			app.badRequestResponse(w, r, errors.New("invalid visible flag"))
			return
		}
		in.Visible = &visible
	}
	if in.Images, err = readUploads(r.MultipartForm); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	user := getUserFromContext(r)
	review, err := app.submissions.Update(r.Context(), user.ID, reviewID, in)
	if err != nil {
		app.submissionErrorResponse(w, r, err)
		return
	}

	app.jsonResponse(w, http.StatusOK, review)
}

// deleteReviewHandler godoc
//
//	@Summary		Delete own review
//	@Tags			reviews
//	@Produce		json
//	@Param			reviewID	path	int	true	"Review ID"
//	@Success		204
//	@Failure		403	{object}	error
//	@Failure		404	{object}	error
//	@Security		ApiKeyAuth
//	@Router			/reviews/{reviewID} [delete]
func (app *application) deleteReviewHandler(w http.ResponseWriter, r *http.Request) {
	reviewID, err := strconv.ParseInt(chi.URLParam(r, "reviewID"), 10, 64)
	if err != nil {
		app.badRequestResponse(w, r, errors.New("invalid review ID"))
		return
	}

	user := getUserFromContext(r)
	if err := app.submissions.Delete(r.Context(), user.ID, reviewID); err != nil {
		app.submissionErrorResponse(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (app *application) submissionErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, reviews.ErrNotFound):
		app.notFoundResponse(w, r, err)
	case errors.Is(err, submission.ErrForbidden):
		app.forbiddenResponse(w, r)
	case errors.Is(err, submission.ErrInvalidRating),
		errors.Is(err, submission.ErrInvalidTarget),
		errors.Is(err, submission.ErrTooManyImages):
		app.badRequestResponse(w, r, err)
	default:
		app.internalServerError(w, r, err)
	}
}

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// readUploads loads the "images" files of a parsed multipart form into memory.
func readUploads(form *multipart.Form) ([]reviewimages.Upload, error) {
	if form == nil {
		return nil, nil
	}
	files := form.File["images"]
	if len(files) > submission.MaxImagesPerReview {
		return nil, submission.ErrTooManyImages
	}

	uploads := make([]reviewimages.Upload, 0, len(files))
	for _, fh := range files {
		if fh.Size > maxImageBytes {
			return nil, fmt.Errorf("image %s is larger than %d MB", fh.Filename, maxImageBytes>>20)
		}

		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(io.LimitReader(f, maxImageBytes+1))
		f.Close()
		if err != nil {
			return nil, err
		}

		contentType := http.DetectContentType(data)
		if !allowedImageTypes[contentType] {
			return nil, fmt.Errorf("image %s has unsupported type %s", fh.Filename, contentType)
		}
		uploads = append(uploads, reviewimages.Upload{Data: data, ContentType: contentType})
	}
	return uploads, nil
}
