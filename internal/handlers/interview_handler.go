package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"peerprep/interview/internal/history"
	"peerprep/interview/internal/middleware"
	"peerprep/interview/internal/models"
	"peerprep/interview/internal/notify"
	rm "peerprep/interview/internal/room_management"
	"peerprep/interview/internal/utils"
)

// HistoryStore is satisfied by *history.Repository.
type HistoryStore interface {
	ListByUser(ctx context.Context, userID string) ([]history.InterviewRecord, error)
	GetByPairID(ctx context.Context, pairID string) (*history.InterviewRecord, error)
}

type InterviewHandler struct {
	manager   *rm.RoomManager
	hub       *notify.Hub
	history   HistoryStore
	jwtSecret []byte
	logger    *zap.Logger
}

// NewInterviewHandler wires the HTTP surface onto the room manager. hub and
// store may be nil; the matching endpoints then report those features as unavailable.
func NewInterviewHandler(manager *rm.RoomManager, hub *notify.Hub, store HistoryStore, jwtSecret []byte, logger *zap.Logger) *InterviewHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InterviewHandler{
		manager:   manager,
		hub:       hub,
		history:   store,
		jwtSecret: jwtSecret,
		logger:    logger,
	}
}

// statusFor maps room errors onto HTTP codes. ErrNotAsker is checked before
// ErrIllegalState since it wraps it.
func statusFor(err error) int {
	switch {
	case errors.Is(err, rm.ErrMissingUser):
		return http.StatusUnauthorized
	case errors.Is(err, rm.ErrInvalidRole):
		return http.StatusBadRequest
	case errors.Is(err, rm.ErrAlreadyEnrolled):
		return http.StatusConflict
	case errors.Is(err, rm.ErrNotAsker):
		return http.StatusForbidden
	case errors.Is(err, rm.ErrIllegalState):
		return http.StatusConflict
	case errors.Is(err, rm.ErrRoomNotFound),
		errors.Is(err, rm.ErrNotEnrolled),
		errors.Is(err, rm.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (h *InterviewHandler) writeErr(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		h.logger.Error("unexpected room error", zap.Error(err))
	}
	utils.WriteError(w, code, err.Error())
}

// token issues a room token for a paired participant. Failures are logged and
// leave the token empty; the pairing itself already happened.
func (h *InterviewHandler) token(pairID, roomID, userID string) string {
	if pairID == "" || len(h.jwtSecret) == 0 {
		return ""
	}
	tok, err := utils.GenerateRoomToken(pairID, roomID, userID, h.jwtSecret)
	if err != nil {
		h.logger.Warn("failed to issue room token", zap.String("pairId", pairID), zap.Error(err))
		return ""
	}
	return tok
}

func (h *InterviewHandler) CreateRoomHandler(w http.ResponseWriter, r *http.Request) {
	roomID := h.manager.CreateRoom(r.Context())
	utils.WriteJSON(w, http.StatusCreated, models.Resp{OK: true, Info: map[string]string{"roomId": roomID}})
}

func (h *InterviewHandler) RoomInfoHandler(w http.ResponseWriter, r *http.Request) {
	info, err := h.manager.RoomInfo(chi.URLParam(r, "roomId"))
	if err != nil {
		h.writeErr(w, err)
		return
	}
	utils.WriteOK(w, info)
}

func (h *InterviewHandler) EnrollHandler(w http.ResponseWriter, r *http.Request) {
	req := middleware.GetValidatedRequest[*models.EnrollReq](r)
	role, err := models.ParseRole(req.Role)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	roomID := chi.URLParam(r, "roomId")
	userID := middleware.UserID(r)

	res, err := h.manager.Enroll(r.Context(), roomID, userID, role)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	utils.WriteOK(w, models.EnrollResp{
		RoomID:  roomID,
		Role:    role,
		Paired:  res.Paired,
		PeerID:  res.PeerID,
		PairID:  res.PairID,
		Token:   h.token(res.PairID, roomID, userID),
		Message: res.Message,
	})
}

func (h *InterviewHandler) ExitHandler(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)
	session, err := h.manager.Status(userID)
	if err != nil {
		h.writeErr(w, err)
		return
	}

	res, err := h.manager.Exit(r.Context(), session.RoomID, userID)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	utils.WriteOK(w, res)
}

func (h *InterviewHandler) FinishHandler(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)
	session, err := h.manager.Status(userID)
	if err != nil {
		h.writeErr(w, err)
		return
	}

	res, err := h.manager.Finish(r.Context(), session.RoomID, userID)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	utils.WriteOK(w, models.EnrollResp{
		RoomID:  session.RoomID,
		Role:    session.Role,
		Paired:  res.Paired,
		PeerID:  res.PeerID,
		PairID:  res.PairID,
		Token:   h.token(res.PairID, session.RoomID, userID),
		Message: res.Message,
	})
}

func (h *InterviewHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)
	session, err := h.manager.Status(userID)
	if err != nil {
		h.writeErr(w, err)
		return
	}

	resp := models.StatusResp{
		RoomID: session.RoomID,
		Role:   session.Role,
		Status: session.Status(),
	}
	if pairing, ok := session.Pairing(); ok {
		resp.PeerID = pairing.PeerID
		resp.PairID = pairing.PairID
		resp.Token = h.token(pairing.PairID, session.RoomID, userID)
	}
	utils.WriteOK(w, resp)
}

// RemainingHandler reports the respondent queue depth to askers and the
// caller's own position to respondents.
func (h *InterviewHandler) RemainingHandler(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)
	session, err := h.manager.Status(userID)
	if err != nil {
		h.writeErr(w, err)
		return
	}

	var remaining int
	if session.Role == models.RoleAsker {
		remaining, err = h.manager.QueueDepth(session.RoomID, models.RoleRespondent)
	} else {
		remaining, err = h.manager.RemainingAhead(session.RoomID, userID)
	}
	if err != nil {
		h.writeErr(w, err)
		return
	}
	utils.WriteOK(w, models.RemainingResp{
		RoomID:    session.RoomID,
		Role:      session.Role,
		Remaining: remaining,
	})
}

func (h *InterviewHandler) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		utils.WriteError(w, http.StatusNotImplemented, "history is disabled")
		return
	}
	records, err := h.history.ListByUser(r.Context(), middleware.UserID(r))
	if err != nil {
		h.logger.Error("failed to list history", zap.Error(err))
		utils.WriteError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	utils.WriteOK(w, records)
}

// HistoryEntryHandler returns one finished interview to either participant.
func (h *InterviewHandler) HistoryEntryHandler(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		utils.WriteError(w, http.StatusNotImplemented, "history is disabled")
		return
	}
	userID := middleware.UserID(r)
	record, err := h.history.GetByPairID(r.Context(), chi.URLParam(r, "pairId"))
	if errors.Is(err, history.ErrRecordNotFound) {
		utils.WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		h.logger.Error("failed to load interview", zap.Error(err))
		utils.WriteError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	// other users' interviews are reported as missing
	if record.AskerID != userID && record.RespondentID != userID {
		utils.WriteError(w, http.StatusNotFound, history.ErrRecordNotFound.Error())
		return
	}
	utils.WriteOK(w, record)
}

func (h *InterviewHandler) WsHandler(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		utils.WriteError(w, http.StatusNotImplemented, "notifications are disabled")
		return
	}
	userID := middleware.UserID(r)
	// a room token, when presented, must be valid and belong to the caller
	if token := r.URL.Query().Get("token"); token != "" {
		claims, err := utils.ValidateRoomToken(token, h.jwtSecret)
		if err != nil {
			utils.WriteError(w, http.StatusUnauthorized, "invalid room token")
			return
		}
		if claims.UserId != userID {
			utils.WriteError(w, http.StatusForbidden, "room token belongs to another user")
			return
		}
	}
	h.hub.Serve(w, r, userID)
}
