package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"peerprep/interview/internal/history"
	"peerprep/interview/internal/middleware"
	"peerprep/interview/internal/models"
	"peerprep/interview/internal/notify"
	rm "peerprep/interview/internal/room_management"
	"peerprep/interview/internal/utils"
)

var testSecret = []byte("test-secret")

type stubHistory struct {
	records []history.InterviewRecord
	err     error
}

func (s stubHistory) ListByUser(_ context.Context, userID string) ([]history.InterviewRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []history.InterviewRecord
	for _, rec := range s.records {
		if rec.AskerID == userID || rec.RespondentID == userID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s stubHistory) GetByPairID(_ context.Context, pairID string) (*history.InterviewRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	for i := range s.records {
		if s.records[i].PairID == pairID {
			return &s.records[i], nil
		}
	}
	return nil, history.ErrRecordNotFound
}

func newTestRouter(h *InterviewHandler) *chi.Mux {
	r := chi.NewRouter()
	r.Route("/api/v1/interview", func(r chi.Router) {
		r.Use(middleware.RequireUser)
		r.Post("/rooms", h.CreateRoomHandler)
		r.Get("/rooms/{roomId}", h.RoomInfoHandler)
		r.With(middleware.ValidateRequest[*models.EnrollReq]()).Post("/rooms/{roomId}/enroll", h.EnrollHandler)
		r.Post("/exit", h.ExitHandler)
		r.Post("/finish", h.FinishHandler)
		r.Get("/status", h.StatusHandler)
		r.Get("/remaining", h.RemainingHandler)
		r.Get("/history", h.HistoryHandler)
		r.Get("/history/{pairId}", h.HistoryEntryHandler)
		r.Get("/ws", h.WsHandler)
	})
	return r
}

func setupHandler(t *testing.T) (*rm.RoomManager, *chi.Mux, string) {
	t.Helper()
	mm := rm.NewRoomManager(nil)
	roomID := mm.CreateRoom(context.Background())
	return mm, newTestRouter(NewInterviewHandler(mm, nil, nil, testSecret, nil)), roomID
}

func do(t *testing.T, router http.Handler, method, path, userID, body string) (*httptest.ResponseRecorder, models.Resp) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if userID != "" {
		req.Header.Set(utils.UserIDHeader, userID)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var resp models.Resp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return rec, resp
}

func infoMap(t *testing.T, resp models.Resp) map[string]any {
	t.Helper()
	m, ok := resp.Info.(map[string]any)
	require.True(t, ok, "info is %T", resp.Info)
	return m
}

func enrollPath(roomID string) string {
	return fmt.Sprintf("/api/v1/interview/rooms/%s/enroll", roomID)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{rm.ErrMissingUser, http.StatusUnauthorized},
		{rm.ErrInvalidRole, http.StatusBadRequest},
		{rm.ErrAlreadyEnrolled, http.StatusConflict},
		{rm.ErrNotAsker, http.StatusForbidden},
		{rm.ErrIllegalState, http.StatusConflict},
		{fmt.Errorf("exit: %w", rm.ErrIllegalState), http.StatusConflict},
		{rm.ErrRoomNotFound, http.StatusNotFound},
		{rm.ErrNotEnrolled, http.StatusNotFound},
		{rm.ErrNotFound, http.StatusNotFound},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

func TestMissingIdentityIsUnauthorized(t *testing.T) {
	_, router, _ := setupHandler(t)
	rec, resp := do(t, router, http.MethodGet, "/api/v1/interview/status", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, resp.OK)
}

func TestCreateRoomAndInfo(t *testing.T) {
	_, router, _ := setupHandler(t)

	rec, resp := do(t, router, http.MethodPost, "/api/v1/interview/rooms", "u1", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	roomID, _ := infoMap(t, resp)["roomId"].(string)
	require.NotEmpty(t, roomID)

	rec, resp = do(t, router, http.MethodGet, "/api/v1/interview/rooms/"+roomID, "u1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, roomID, infoMap(t, resp)["roomId"])

	rec, _ = do(t, router, http.MethodGet, "/api/v1/interview/rooms/nope", "u1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEnrollValidation(t *testing.T) {
	_, router, roomID := setupHandler(t)

	rec, _ := do(t, router, http.MethodPost, enrollPath(roomID), "u1", "{bad")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, router, http.MethodPost, enrollPath(roomID), "u1", `{"role":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, router, http.MethodPost, enrollPath(roomID), "u1", `{"role":"observer"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, router, http.MethodPost, enrollPath("missing"), "u1", `{"role":"asker"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEnrollPairsAndIssuesTokens(t *testing.T) {
	_, router, roomID := setupHandler(t)

	rec, resp := do(t, router, http.MethodPost, enrollPath(roomID), "r1", `{"role":"respondent"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	first := infoMap(t, resp)
	assert.Equal(t, false, first["paired"])
	assert.Nil(t, first["token"])

	rec, resp = do(t, router, http.MethodPost, enrollPath(roomID), "a1", `{"role":"asker"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	second := infoMap(t, resp)
	assert.Equal(t, true, second["paired"])
	assert.Equal(t, "r1", second["peerId"])

	token, _ := second["token"].(string)
	claims, err := utils.ValidateRoomToken(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "a1", claims.UserId)
	assert.Equal(t, roomID, claims.RoomId)
	assert.Equal(t, second["pairId"], claims.PairId)

	// the respondent sees the same pair through status
	rec, resp = do(t, router, http.MethodGet, "/api/v1/interview/status", "r1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	status := infoMap(t, resp)
	assert.Equal(t, models.StatusInSession, status["status"])
	assert.Equal(t, "a1", status["peerId"])
	assert.Equal(t, second["pairId"], status["pairId"])
	assert.NotEmpty(t, status["token"])

	rec, _ = do(t, router, http.MethodPost, enrollPath(roomID), "a1", `{"role":"asker"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestEnrollAcceptsRoleAliases(t *testing.T) {
	_, router, roomID := setupHandler(t)
	rec, resp := do(t, router, http.MethodPost, enrollPath(roomID), "u1", `{"role":"interviewer"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(models.RoleAsker), infoMap(t, resp)["role"])
}

func TestExit(t *testing.T) {
	_, router, roomID := setupHandler(t)

	// leaving without being enrolled reports NotEnrolled and changes nothing
	rec, resp := do(t, router, http.MethodPost, "/api/v1/interview/exit", "u1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, resp.OK)
	assert.Equal(t, rm.ErrNotEnrolled.Error(), resp.Info)

	do(t, router, http.MethodPost, enrollPath(roomID), "u1", `{"role":"asker"}`)
	rec, _ = do(t, router, http.MethodPost, "/api/v1/interview/exit", "u1", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, router, http.MethodGet, "/api/v1/interview/status", "u1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// a second exit is rejected the same way
	rec, _ = do(t, router, http.MethodPost, "/api/v1/interview/exit", "u1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	do(t, router, http.MethodPost, enrollPath(roomID), "a1", `{"role":"asker"}`)
	do(t, router, http.MethodPost, enrollPath(roomID), "r1", `{"role":"respondent"}`)
	rec, _ = do(t, router, http.MethodPost, "/api/v1/interview/exit", "r1", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestFinish(t *testing.T) {
	_, router, roomID := setupHandler(t)

	rec, _ := do(t, router, http.MethodPost, "/api/v1/interview/finish", "a1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	do(t, router, http.MethodPost, enrollPath(roomID), "a1", `{"role":"asker"}`)
	rec, _ = do(t, router, http.MethodPost, "/api/v1/interview/finish", "a1", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	do(t, router, http.MethodPost, enrollPath(roomID), "r1", `{"role":"respondent"}`)
	do(t, router, http.MethodPost, enrollPath(roomID), "r2", `{"role":"respondent"}`)

	rec, _ = do(t, router, http.MethodPost, "/api/v1/interview/finish", "r1", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, resp := do(t, router, http.MethodPost, "/api/v1/interview/finish", "a1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	info := infoMap(t, resp)
	assert.Equal(t, true, info["paired"])
	assert.Equal(t, "r2", info["peerId"])
	assert.NotEmpty(t, info["token"])

	rec, _ = do(t, router, http.MethodGet, "/api/v1/interview/status", "r1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRemaining(t *testing.T) {
	_, router, roomID := setupHandler(t)
	for _, id := range []string{"r1", "r2", "r3"} {
		do(t, router, http.MethodPost, enrollPath(roomID), id, `{"role":"respondent"}`)
	}

	rec, resp := do(t, router, http.MethodGet, "/api/v1/interview/remaining", "r3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), infoMap(t, resp)["remaining"])

	// an asker that got paired sees the depth of the remaining respondent queue
	do(t, router, http.MethodPost, enrollPath(roomID), "a1", `{"role":"asker"}`)
	rec, resp = do(t, router, http.MethodGet, "/api/v1/interview/remaining", "a1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), infoMap(t, resp)["remaining"])

	// paired respondents are no longer queued
	rec, _ = do(t, router, http.MethodGet, "/api/v1/interview/remaining", "r1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHistory(t *testing.T) {
	mm := rm.NewRoomManager(nil)

	router := newTestRouter(NewInterviewHandler(mm, nil, nil, testSecret, nil))
	rec, _ := do(t, router, http.MethodGet, "/api/v1/interview/history", "a1", "")
	assert.Equal(t, http.StatusNotImplemented, rec.Code)

	store := stubHistory{records: []history.InterviewRecord{
		{PairID: "p1", AskerID: "a1", RespondentID: "r1"},
		{PairID: "p2", AskerID: "a2", RespondentID: "r2"},
	}}
	router = newTestRouter(NewInterviewHandler(mm, nil, store, testSecret, nil))
	rec, resp := do(t, router, http.MethodGet, "/api/v1/interview/history", "r1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list, ok := resp.Info.([]any)
	require.True(t, ok)
	require.Len(t, list, 1)
	assert.Equal(t, "p1", list[0].(map[string]any)["pairId"])

	router = newTestRouter(NewInterviewHandler(mm, nil, stubHistory{err: errors.New("db down")}, testSecret, nil))
	rec, _ = do(t, router, http.MethodGet, "/api/v1/interview/history", "r1", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestWsDisabled(t *testing.T) {
	_, router, _ := setupHandler(t)
	rec, _ := do(t, router, http.MethodGet, "/api/v1/interview/ws", "u1", "")
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestHistoryEntry(t *testing.T) {
	mm := rm.NewRoomManager(nil)

	router := newTestRouter(NewInterviewHandler(mm, nil, nil, testSecret, nil))
	rec, _ := do(t, router, http.MethodGet, "/api/v1/interview/history/p1", "a1", "")
	assert.Equal(t, http.StatusNotImplemented, rec.Code)

	store := stubHistory{records: []history.InterviewRecord{
		{PairID: "p1", RoomID: "room", AskerID: "a1", RespondentID: "r1"},
	}}
	router = newTestRouter(NewInterviewHandler(mm, nil, store, testSecret, nil))

	rec, resp := do(t, router, http.MethodGet, "/api/v1/interview/history/p1", "r1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "room", infoMap(t, resp)["roomId"])

	// outsiders cannot read someone else's interview
	rec, _ = do(t, router, http.MethodGet, "/api/v1/interview/history/p1", "x1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, router, http.MethodGet, "/api/v1/interview/history/missing", "a1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	router = newTestRouter(NewInterviewHandler(mm, nil, stubHistory{err: errors.New("db down")}, testSecret, nil))
	rec, _ = do(t, router, http.MethodGet, "/api/v1/interview/history/p1", "a1", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestWsRoomToken(t *testing.T) {
	mm := rm.NewRoomManager(nil)
	hub := notify.NewHub(nil)
	t.Cleanup(hub.Close)
	router := newTestRouter(NewInterviewHandler(mm, hub, nil, testSecret, nil))

	mine, err := utils.GenerateRoomToken("p1", "room", "u1", testSecret)
	require.NoError(t, err)
	theirs, err := utils.GenerateRoomToken("p1", "room", "u2", testSecret)
	require.NoError(t, err)
	forged, err := utils.GenerateRoomToken("p1", "room", "u1", []byte("other-secret"))
	require.NoError(t, err)

	tests := []struct {
		name           string
		token          string
		expectedStatus int
	}{
		{"no token goes to the upgrade", "", http.StatusBadRequest},
		{"own token goes to the upgrade", mine, http.StatusBadRequest},
		{"token of another user", theirs, http.StatusForbidden},
		{"token with wrong signature", forged, http.StatusUnauthorized},
		{"garbage token", "not-a-token", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := "/api/v1/interview/ws"
			if tt.token != "" {
				path += "?token=" + tt.token
			}
			req := httptest.NewRequest(http.MethodGet, path, nil)
			req.Header.Set(utils.UserIDHeader, "u1")
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			// requests without upgrade headers fail in the upgrader with 400
			assert.Equal(t, tt.expectedStatus, rec.Code)
		})
	}
}
