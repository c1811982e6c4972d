package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ToqaMohamedDev/qaweb-sub000/internal/battle"
)

// handlePollEvents serves the bounded replay queue for clients that poll.
func handlePollEvents(events *battle.Events) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

		evs, err := events.Recent(r.Context(), code, limit)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"events": evs})
	}
}

// handleStream pushes live room events over Server-Sent Events. Queued
// history is not replayed here; clients catch up via the polling endpoint
// and then attach.
func handleStream(logger *slog.Logger, events *battle.Events) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")

		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusInternalServerError, "internal", "streaming not supported")
			return
		}

		ch, cancel, err := events.SubscribeRoom(r.Context(), code)
		if err != nil {
			logger.Error("subscribing to room events", "room", code, "error", err)
			writeError(w, http.StatusInternalServerError, "internal", "internal error")
			return
		}
		defer cancel()

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		flusher.Flush()

		ping := time.NewTicker(30 * time.Second)
		defer ping.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				fmt.Fprintf(w, "event: room\ndata: %s\n\n", msg.Payload)
				flusher.Flush()
			case <-ping.C:
				fmt.Fprintf(w, ": ping\n\n")
				flusher.Flush()
			}
		}
	}
}
