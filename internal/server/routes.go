package server

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/swaggest/swgui/v5emb"
)

func addRoutes(r chi.Router, logger *slog.Logger, deps Deps) {
	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("Quiz Battle API", "/openapi.json", "/docs"))
	r.Get("/healthz", handleHealth(logger, deps.Checks))

	r.Route("/api/rooms", func(r chi.Router) {
		r.Use(identityMiddleware)

		r.Post("/", handleCreateRoom(deps.Rooms))
		r.Get("/", handleListRooms(deps.Rooms))

		r.Route("/{code}", func(r chi.Router) {
			r.Get("/", handleGetRoom(deps.Rooms))
			r.Post("/join", handleJoin(deps.Rooms))
			r.Post("/leave", handleLeave(deps.Rooms))
			r.Post("/ready", handleReady(deps.Rooms))
			r.Post("/team", handleSwitchTeam(deps.Rooms))
			r.Post("/start", handleStart(deps.Rooms, deps.Game, deps.Timers))
			r.Post("/answer", handleAnswer(deps.Rooms, deps.Game, deps.Timers))
			r.Get("/results", handleResults(deps.Game))
			r.Get("/timer", handleTimer(deps.Timers))
			r.Get("/events", handlePollEvents(deps.Events))
			r.Get("/stream", handleStream(logger, deps.Events))
			r.Post("/chat", handleChat(deps.Rooms, deps.Events))
			r.Post("/suggest", handleSuggest(deps.Rooms, deps.Events))
		})
	})

	r.Route("/ws/rooms/{code}", func(r chi.Router) {
		r.Use(identityMiddleware)
		r.Get("/", handleWS(logger, deps.Rooms, deps.Events))
	})
}
