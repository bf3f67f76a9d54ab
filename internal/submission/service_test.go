package submission

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"trekmap/internal/domain/reviewimages"
	"trekmap/internal/domain/reviews"
	"trekmap/internal/domain/storage"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// memReviews overrides the methods submission uses; the embedded nil Store
// panics if anything else is called.
type memReviews struct {
	reviews.Store
	rows      map[int64]reviews.Review
	nextID    int64
	createErr error
}

func (m *memReviews) Create(_ context.Context, r *reviews.Review) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.nextID++
	r.ID = m.nextID
	r.Status = reviews.StatusPending
	m.rows[r.ID] = *r
	return nil
}

func (m *memReviews) GetByID(_ context.Context, id int64) (*reviews.Review, error) {
	r, ok := m.rows[id]
	if !ok {
		return nil, reviews.ErrNotFound
	}
	return &r, nil
}

func (m *memReviews) UpdateContent(_ context.Context, r *reviews.Review) error {
	m.rows[r.ID] = *r
	return nil
}

func (m *memReviews) Delete(_ context.Context, id int64) error {
	delete(m.rows, id)
	return nil
}

type memImages struct {
	reviewimages.Store
	queued map[int64]int
	err    error
}

func (m *memImages) Enqueue(_ context.Context, reviewID int64, uploads []reviewimages.Upload) error {
	if m.err != nil {
		return m.err
	}
	m.queued[reviewID] += len(uploads)
	return nil
}

// memRunner discards the review writes of a failed unit of work.
type memRunner struct {
	reviews *memReviews
	images  *memImages
}

func (r *memRunner) WithSubmissionTx(_ context.Context, fn func(s *storage.SubmissionTx) error) error {
	rows := make(map[int64]reviews.Review, len(r.reviews.rows))
	for k, v := range r.reviews.rows {
		rows[k] = v
	}
	queued := make(map[int64]int, len(r.images.queued))
	for k, v := range r.images.queued {
		queued[k] = v
	}

	if err := fn(&storage.SubmissionTx{Reviews: r.reviews, Images: r.images}); err != nil {
		r.reviews.rows, r.images.queued = rows, queued
		return err
	}
	return nil
}

type mockRatings struct{ mock.Mock }

func (m *mockRatings) ReviewCreated(ctx context.Context, placeID int64) { m.Called(placeID) }
func (m *mockRatings) ReviewUpdated(ctx context.Context, placeID int64) { m.Called(placeID) }
func (m *mockRatings) ReviewDeleted(ctx context.Context, placeID int64) { m.Called(placeID) }

func newFixture(t *testing.T) (*Service, *memRunner, *mockRatings) {
	runner := &memRunner{
		reviews: &memReviews{rows: map[int64]reviews.Review{}},
		images:  &memImages{queued: map[int64]int{}},
	}
	ratings := new(mockRatings)
	return NewService(runner, ratings, zaptest.NewLogger(t).Sugar()), runner, ratings
}

func ptr[T any](v T) *T { return &v }

func TestCreatePlaceReview(t *testing.T) {
	svc, runner, ratings := newFixture(t)
	ratings.On("ReviewCreated", int64(3)).Once()

	rv, err := svc.Create(context.Background(), 5, CreateInput{
		Target:   reviews.TargetPlace,
		TargetID: 3,
		Rating:   4,
		Comment:  ptr("  great view  "),
		Images:   []reviewimages.Upload{{Data: []byte{1}, ContentType: "image/jpeg"}, {Data: []byte{2}, ContentType: "image/png"}},
	})
	require.NoError(t, err)

	assert.Equal(t, reviews.StatusPending, rv.Status)
	assert.Equal(t, "great view", *rv.Comment)
	assert.True(t, rv.Visible)
	assert.Equal(t, 2, runner.images.queued[rv.ID])
	ratings.AssertExpectations(t)
}

func TestCreateLodgingReviewSkipsRatings(t *testing.T) {
	svc, _, ratings := newFixture(t)

	rv, err := svc.Create(context.Background(), 5, CreateInput{Target: reviews.TargetLodging, TargetID: 8, Rating: 2})
	require.NoError(t, err)

	kind, id := rv.Target()
	assert.Equal(t, reviews.TargetLodging, kind)
	assert.Equal(t, int64(8), id)
	ratings.AssertNotCalled(t, "ReviewCreated", mock.Anything)
}

func TestCreateValidation(t *testing.T) {
	svc, _, _ := newFixture(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, 5, CreateInput{Target: reviews.TargetPlace, TargetID: 3, Rating: 6})
	assert.ErrorIs(t, err, ErrInvalidRating)

	_, err = svc.Create(ctx, 5, CreateInput{Target: "castle", TargetID: 3, Rating: 3})
	assert.ErrorIs(t, err, ErrInvalidTarget)

	_, err = svc.Create(ctx, 5, CreateInput{Target: reviews.TargetPlace, Rating: 3})
	assert.ErrorIs(t, err, ErrInvalidTarget)

	_, err = svc.Create(ctx, 5, CreateInput{
		Target: reviews.TargetPlace, TargetID: 3, Rating: 3,
		Images: make([]reviewimages.Upload, MaxImagesPerReview+1),
	})
	assert.ErrorIs(t, err, ErrTooManyImages)
}

func TestCreateRollsBackWhenEnqueueFails(t *testing.T) {
	svc, runner, ratings := newFixture(t)
	runner.images.err = errors.New("disk full")

	_, err := svc.Create(context.Background(), 5, CreateInput{Target: reviews.TargetPlace, TargetID: 3, Rating: 4})
	require.Error(t, err)

	assert.Empty(t, runner.reviews.rows)
	ratings.AssertNotCalled(t, "ReviewCreated", mock.Anything)
}

func TestUpdateKeepsStatus(t *testing.T) {
	svc, runner, ratings := newFixture(t)
	ratings.On("ReviewCreated", int64(3))
	ratings.On("ReviewUpdated", int64(3)).Once()

	rv, err := svc.Create(context.Background(), 5, CreateInput{Target: reviews.TargetPlace, TargetID: 3, Rating: 4})
	require.NoError(t, err)
	stored := runner.reviews.rows[rv.ID]
	stored.Status = reviews.StatusApproved
	runner.reviews.rows[rv.ID] = stored

	updated, err := svc.Update(context.Background(), 5, rv.ID, UpdateInput{Rating: ptr(2), Comment: ptr("changed my mind")})
	require.NoError(t, err)

	assert.Equal(t, 2, updated.Rating)
	assert.Equal(t, reviews.StatusApproved, runner.reviews.rows[rv.ID].Status)
	ratings.AssertExpectations(t)
}

func TestOwnershipChecks(t *testing.T) {
	svc, runner, ratings := newFixture(t)
	ratings.On("ReviewCreated", int64(3))
	ctx := context.Background()

	rv, err := svc.Create(ctx, 5, CreateInput{Target: reviews.TargetPlace, TargetID: 3, Rating: 4})
	require.NoError(t, err)

	_, err = svc.Update(ctx, 6, rv.ID, UpdateInput{Rating: ptr(1)})
	assert.ErrorIs(t, err, ErrForbidden)

	err = svc.Delete(ctx, 6, rv.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Contains(t, runner.reviews.rows, rv.ID)

	err = svc.Delete(ctx, 5, 404)
	assert.ErrorIs(t, err, reviews.ErrNotFound)
}

func TestDeleteRefreshesPlace(t *testing.T) {
	svc, runner, ratings := newFixture(t)
	ratings.On("ReviewCreated", int64(3))
	ratings.On("ReviewDeleted", int64(3)).Once()

	rv, err := svc.Create(context.Background(), 5, CreateInput{Target: reviews.TargetPlace, TargetID: 3, Rating: 4})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), 5, rv.ID))
	assert.Empty(t, runner.reviews.rows)
	ratings.AssertExpectations(t)
}

func TestCreateForMissingListing(t *testing.T) {
	tests := []struct {
		name       string
		constraint string
		wantTarget bool
	}{
		{"unknown place", "review_place_id_fkey", true},
		{"unknown guide", "review_guide_id_fkey", true},
		{"author gone", "review_user_id_fkey", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, runner, ratings := newFixture(t)
			fk := &pgconn.PgError{Code: "23503", ConstraintName: tt.constraint}
			runner.reviews.createErr = fmt.Errorf("create review: %w", fk)

			_, err := svc.Create(context.Background(), 5, CreateInput{
				Target:   reviews.TargetPlace,
				TargetID: 999,
				Rating:   4,
			})
			require.Error(t, err)
			assert.Equal(t, tt.wantTarget, errors.Is(err, ErrInvalidTarget))
			if !tt.wantTarget {
				assert.ErrorIs(t, err, fk)
			}
			ratings.AssertNotCalled(t, "ReviewCreated", mock.Anything)
		})
	}
}
