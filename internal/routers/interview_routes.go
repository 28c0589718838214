package routers

import (
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"peerprep/interview/internal/handlers"
	"peerprep/interview/internal/middleware"
	"peerprep/interview/internal/models"
)

func InterviewRoutes(router *chi.Mux, h *handlers.InterviewHandler) {
	router.Route("/api/v1/interview", func(r chi.Router) {
		r.Use(middleware.RequireUser)

		// the websocket outlives any request timeout
		r.Get("/ws", h.WsHandler)

		r.Group(func(r chi.Router) {
			r.Use(chimw.Timeout(60 * time.Second))

			r.Post("/rooms", h.CreateRoomHandler)
			r.Get("/rooms/{roomId}", h.RoomInfoHandler)
			r.With(middleware.ValidateRequest[*models.EnrollReq]()).Post("/rooms/{roomId}/enroll", h.EnrollHandler)
			r.Post("/exit", h.ExitHandler)
			r.Post("/finish", h.FinishHandler)
			r.Get("/status", h.StatusHandler)
			r.Get("/remaining", h.RemainingHandler)
			r.Get("/history", h.HistoryHandler)
			r.Get("/history/{pairId}", h.HistoryEntryHandler)
		})
	})
}
