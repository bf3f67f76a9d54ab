package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"trekmap/internal/auth"
	"trekmap/internal/domain/accesscontrol"
	"trekmap/internal/domain/places"
	"trekmap/internal/domain/reviewhistory"
	"trekmap/internal/domain/reviews"
	"trekmap/internal/domain/storage"
	"trekmap/internal/domain/users"
	"trekmap/internal/ledger"
	"trekmap/internal/moderation"
	"trekmap/internal/points"
	"trekmap/internal/submission"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	adminID     int64 = 1
	travellerID int64 = 2
)

type fakeUsers struct {
	users.Store
	byID map[int64]*users.User
}

func (f *fakeUsers) GetByID(_ context.Context, id int64) (*users.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, users.ErrNotFound
	}
	return u, nil
}

type fakeRoles struct {
	accesscontrol.Store
	admins map[int64]bool
}

func (f *fakeRoles) UserHasRole(_ context.Context, userID int64, role accesscontrol.RoleName) (bool, error) {
	return role == accesscontrol.RoleAdmin && f.admins[userID], nil
}

type fakePlaces struct {
	places.Store
	byID   map[int64]*places.Place
	scored map[int64]int
}

func (f *fakePlaces) GetByID(_ context.Context, id int64) (*places.Place, error) {
	p, ok := f.byID[id]
	if !ok {
		return nil, places.ErrNotFound
	}
	return p, nil
}

func (f *fakePlaces) SetScore(_ context.Context, id int64, pts, _, _ int) error {
	if _, ok := f.byID[id]; !ok {
		return places.ErrNotFound
	}
	f.scored[id] = pts
	return nil
}

// fakeModeration serves review contexts and records what a status change wrote.
type fakeModeration struct {
	contexts map[int64]*reviews.ModerationContext
	history  []reviewhistory.Entry
	credited map[int64]bool
}

func (f *fakeModeration) WithModerationTx(_ context.Context, fn func(m *storage.ModerationTx) error) error {
	return fn(&storage.ModerationTx{Reviews: f, History: f, Ledger: f})
}

func (f *fakeModeration) GetForModeration(_ context.Context, id int64) (*reviews.ModerationContext, error) {
	mc, ok := f.contexts[id]
	if !ok {
		return nil, reviews.ErrNotFound
	}
	cp := *mc
	return &cp, nil
}

func (f *fakeModeration) SaveStatus(_ context.Context, r *reviews.Review) error {
	f.contexts[r.ID].Review = *r
	return nil
}

func (f *fakeModeration) Append(_ context.Context, e *reviewhistory.Entry) error {
	f.history = append(f.history, *e)
	return nil
}

func (f *fakeModeration) ListByReview(context.Context, int64) ([]reviewhistory.Entry, error) {
	return f.history, nil
}

func (f *fakeModeration) Credit(_ context.Context, c ledger.Credit) (bool, error) {
	if f.credited[c.PlaceID] {
		return false, nil
	}
	f.credited[c.PlaceID] = true
	return true, nil
}

type testApp struct {
	*application
	places     *fakePlaces
	moderation *fakeModeration
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	logger := zaptest.NewLogger(t).Sugar()

	owner := travellerID
	placeID := int64(10)
	fm := &fakeModeration{
		contexts: map[int64]*reviews.ModerationContext{
			100: {
				Review: reviews.Review{ID: 100, UserID: &owner, PlaceID: &placeID, Rating: 5, Status: reviews.StatusPending},
				Author: &reviews.Author{ID: owner, FirstName: "Ana"},
				Place:  &reviews.PlaceSnapshot{ID: placeID, Name: "Mirador", Points: 120, UrbanCenterDistance: 1500},
				Town:   &reviews.Town{ID: 3, Name: "Valle"},
			},
			200: {
				Review: reviews.Review{ID: 200, UserID: &owner, Rating: 4, Status: reviews.StatusPending},
				Author: &reviews.Author{ID: owner, FirstName: "Ana"},
			},
		},
		credited: map[int64]bool{},
	}
	fp := &fakePlaces{
		byID: map[int64]*places.Place{
			placeID: {
				ID:                  placeID,
				TownID:              3,
				Name:                "Mirador",
				UrbanCenterDistance: 1500,
				Town:                places.Town{ID: 3, Name: "Valle", MaxDistance: 10000, UrbanCenterRange: 2000},
			},
		},
		scored: map[int64]int{},
	}

	app := &application{
		config: config{
			rateLimiter: LoadRateLimiterConfig(),
			auth: authConfig{
				basic: basicConfig{user: "ops", pass: "secret"},
			},
		},
		logger:        logger,
		authenticator: auth.NewJWTAuthenticator("test-secret", "trekmap", "trekmap", time.Hour),
		store: &storage.Container{
			Users: &fakeUsers{byID: map[int64]*users.User{
				adminID:     {ID: adminID, FirstName: "Root"},
				travellerID: {ID: travellerID, FirstName: "Ana"},
			}},
			AccessControl: &fakeRoles{admins: map[int64]bool{adminID: true}},
			Places:        fp,
		},
		moderation: moderation.NewService(fm, nil, nil, nil, logger),
	}
	app.config.rateLimiter.Enabled = false

	return &testApp{application: app, places: fp, moderation: fm}
}

func (ta *testApp) do(t *testing.T, method, path string, userID int64, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != 0 {
		token, err := ta.authenticator.GenerateToken(userID, "user")
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	ta.mount().ServeHTTP(rr, req)
	return rr
}

func TestChangeReviewStatusHandler(t *testing.T) {
	tests := []struct {
		name     string
		reviewID string
		body     any
		wantCode int
	}{
		{"approve place review", "100", map[string]string{"status": "approved"}, http.StatusOK},
		{"unknown review", "999", map[string]string{"status": "approved"}, http.StatusNotFound},
		{"review without place", "200", map[string]string{"status": "approved"}, http.StatusUnprocessableEntity},
		{"reject review without place", "200", map[string]string{"status": "rejected"}, http.StatusUnprocessableEntity},
		{"unknown status", "100", map[string]string{"status": "archived"}, http.StatusBadRequest},
		{"missing status", "100", map[string]string{}, http.StatusBadRequest},
		{"bad review id", "abc", map[string]string{"status": "approved"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ta := newTestApp(t)
			rr := ta.do(t, http.MethodPatch, "/v1/admin/reviews/"+tt.reviewID+"/status", adminID, tt.body)
			assert.Equal(t, tt.wantCode, rr.Code, rr.Body.String())
		})
	}
}

func TestApproveResponseShape(t *testing.T) {
	ta := newTestApp(t)

	rr := ta.do(t, http.MethodPatch, "/v1/admin/reviews/100/status", adminID, map[string]string{"status": "approved"})
	require.Equal(t, http.StatusOK, rr.Code)

	var got reviewStatusResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, reviewStatusResponse{OK: true, ReviewID: 100, Status: reviews.StatusApproved, Credited: true}, got)

	require.Len(t, ta.moderation.history, 1)
	assert.Equal(t, reviews.StatusApproved, ta.moderation.history[0].Status)
	assert.Equal(t, adminID, *ta.moderation.history[0].ReviewerID)

	rr = ta.do(t, http.MethodPost, "/v1/admin/reviews/100/approve", adminID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.False(t, got.Credited)
	assert.Len(t, ta.moderation.history, 2)
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	ta := newTestApp(t)
	body := map[string]string{"status": "approved"}

	rr := ta.do(t, http.MethodPatch, "/v1/admin/reviews/100/status", 0, body)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = ta.do(t, http.MethodPatch, "/v1/admin/reviews/100/status", travellerID, body)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	// unknown subject
	rr = ta.do(t, http.MethodPatch, "/v1/admin/reviews/100/status", 77, body)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	assert.Empty(t, ta.moderation.history)
}

func TestScorePlaceHandler(t *testing.T) {
	ta := newTestApp(t)

	rr := ta.do(t, http.MethodPost, "/v1/admin/places/10/score", adminID, map[string]int{
		"difficulty_level": 3,
		"popularity":       4,
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	f := points.DefaultFactors()
	f.DifficultyLevel = 3
	f.Popularity = 4
	f.Distance = 1500
	f.MaxDistance = 10000
	f.UrbanCenterRange = 2000
	want := points.Calculate(f)

	var got struct {
		Data placeScoreResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, want, got.Data.Points)
	assert.Equal(t, want, ta.places.scored[10])

	rr = ta.do(t, http.MethodPost, "/v1/admin/places/11/score", adminID, map[string]int{"difficulty_level": 3})
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = ta.do(t, http.MethodPost, "/v1/admin/places/10/score", adminID, map[string]int{"difficulty_level": 9})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHealthRequiresBasicAuth(t *testing.T) {
	ta := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	rr := httptest.NewRecorder()
	ta.mount().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("WWW-Authenticate"))

	req = httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	req.SetBasicAuth("ops", "secret")
	rr = httptest.NewRecorder()
	ta.mount().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestReviewStatusValidation(t *testing.T) {
	for _, s := range []string{"pending", "approved", "rejected"} {
		assert.NoError(t, Validate.Struct(changeReviewStatusPayload{Status: s}), s)
	}
	for _, s := range []string{"", "Approved", "deleted"} {
		assert.Error(t, Validate.Struct(changeReviewStatusPayload{Status: s}), s)
	}
}

func TestSubmissionErrorResponse(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"listing does not exist", fmt.Errorf("%w: place 999 does not exist", submission.ErrInvalidTarget), http.StatusBadRequest},
		{"bad rating", submission.ErrInvalidRating, http.StatusBadRequest},
		{"not the owner", submission.ErrForbidden, http.StatusForbidden},
		{"unknown review", fmt.Errorf("get review: %w", reviews.ErrNotFound), http.StatusNotFound},
		{"database down", errors.New("connection refused"), http.StatusInternalServerError},
	}

	ta := newTestApp(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/reviews", nil)
			rr := httptest.NewRecorder()
			ta.submissionErrorResponse(rr, req, tt.err)
			assert.Equal(t, tt.wantCode, rr.Code)
		})
	}
}
