package server

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ToqaMohamedDev/qaweb-sub000/internal/battle"
)

type ChatRequest struct {
	Message string `json:"message"`
}

func handleChat(rooms *battle.Rooms, events *battle.Events) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")
		var req ChatRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "invalid request body")
			return
		}
		req.Message = strings.TrimSpace(req.Message)
		if req.Message == "" {
			writeError(w, http.StatusBadRequest, "bad_request", "message is required")
			return
		}

		player, err := rooms.GetPlayer(r.Context(), code, identityFrom(r).ID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		// Team chat rides the team channel; without teams the message is
		// room-wide.
		if player.Team == "" {
			err = events.PublishRoomEvent(r.Context(), code, battle.EventChatMessage, battle.ChatMessagePayload{
				SenderID:   player.ID,
				SenderName: player.Name,
				Message:    req.Message,
			})
		} else {
			err = events.PublishTeamChat(r.Context(), code, player.Team, player.ID, player.Name, req.Message)
		}
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

type SuggestRequest struct {
	Answer int `json:"answer"`
}

// handleSuggest lets a team member float an answer to their captain. The
// suggestion rides the team channel only; the other team never sees it.
func handleSuggest(rooms *battle.Rooms, events *battle.Events) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")
		var req SuggestRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "invalid request body")
			return
		}

		player, err := rooms.GetPlayer(r.Context(), code, identityFrom(r).ID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if player.Team == "" {
			writeError(w, http.StatusConflict, "bad_request", "suggestions require team mode")
			return
		}
		if err := events.PublishAnswerSuggestion(r.Context(), code, player.Team, player.ID, player.Name, req.Answer); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}
