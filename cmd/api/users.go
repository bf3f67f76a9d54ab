package main

import (
	"encoding/json"
	"net/http"

	"trekmap/internal/domain/userpoints"
	"trekmap/internal/domain/users"
	"trekmap/internal/params"
)

// getMyPointsHandler godoc
//
//	@Summary		Current user's points
//	@Description	Aggregate totals and the ledger rows behind them, newest first.
//	@Tags			users
//	@Produce		json
//	@Param			page	query		int	false	"Page number"
//	@Param			limit	query		int	false	"Page size"
//	@Success		200		{object}	map[string]interface{}
//	@Failure		401		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/users/me/points [get]
func (app *application) getMyPointsHandler(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r)

	p := params.ParsePagination(r.URL.Query())
	entries, total, err := app.store.UserPoints.ListByUser(r.Context(), user.ID, p.Limit, p.Offset)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	p.ComputeMeta(total)
	if entries == nil {
		entries = []userpoints.UserPoint{}
	}

	app.jsonResponse(w, http.StatusOK, struct {
		users.Aggregates
		Entries    []userpoints.UserPoint `json:"entries"`
		Pagination params.Pagination      `json:"pagination"`
	}{user.Aggregates, entries, p})
}

type pushTokenPayload struct {
	Token      string          `json:"token" validate:"required,startswith=ExponentPushToken[,endswith=]"`
	DeviceInfo json.RawMessage `json:"device_info"`
}

// registerPushTokenHandler godoc
//
//	@Summary		Register push token
//	@Tags			users
//	@Accept			json
//	@Param			payload	body	pushTokenPayload	true	"Expo push token"
//	@Success		204
//	@Failure		400	{object}	error
//	@Security		ApiKeyAuth
//	@Router			/users/me/push-tokens [put]
func (app *application) registerPushTokenHandler(w http.ResponseWriter, r *http.Request) {
	var payload pushTokenPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	user := getUserFromContext(r)
	if err := app.store.PushTokens.Upsert(r.Context(), user.ID, payload.Token, payload.DeviceInfo); err != nil {
		app.internalServerError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type removePushTokenPayload struct {
	Token string `json:"token" validate:"required"`
}

// removePushTokenHandler godoc
//
//	@Summary		Remove push token
//	@Tags			users
//	@Accept			json
//	@Param			payload	body	removePushTokenPayload	true	"Expo push token"
//	@Success		204
//	@Failure		400	{object}	error
//	@Security		ApiKeyAuth
//	@Router			/users/me/push-tokens [delete]
func (app *application) removePushTokenHandler(w http.ResponseWriter, r *http.Request) {
	var payload removePushTokenPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	user := getUserFromContext(r)
	if err := app.store.PushTokens.Remove(r.Context(), user.ID, payload.Token); err != nil {
		app.internalServerError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
