package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ToqaMohamedDev/qaweb-sub000/internal/battle"
)

type JoinRequest struct {
	Password string `json:"password,omitempty"`
}

type JoinResponse struct {
	Player *battle.Player `json:"player"`
	Room   *battle.Room   `json:"room"`
}

func handleJoin(rooms *battle.Rooms) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")

		// A missing body means a public join.
		var req JoinRequest
		if r.ContentLength > 0 {
			if err := readJSON(r, &req); err != nil {
				writeError(w, http.StatusBadRequest, "bad_request", "invalid request body")
				return
			}
		}

		player, err := rooms.JoinRoom(r.Context(), code, identityFrom(r), req.Password)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		room, err := rooms.GetRoom(r.Context(), code)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, JoinResponse{Player: player, Room: room})
	}
}

func handleLeave(rooms *battle.Rooms) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")
		if err := rooms.RemovePlayerFromRoom(r.Context(), code, identityFrom(r).ID); err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

type ReadyRequest struct {
	Ready bool `json:"isReady"`
}

func handleReady(rooms *battle.Rooms) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")
		var req ReadyRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "invalid request body")
			return
		}
		if err := rooms.SetPlayerReady(r.Context(), code, identityFrom(r).ID, req.Ready); err != nil {
			writeDomainError(w, err)
			return
		}
		allReady, err := rooms.AreAllPlayersReady(r.Context(), code)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"success": true, "allReady": allReady})
	}
}

type SwitchTeamRequest struct {
	Team string `json:"team"`
}

func handleSwitchTeam(rooms *battle.Rooms) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")
		var req SwitchTeamRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "invalid request body")
			return
		}
		if req.Team != battle.TeamA && req.Team != battle.TeamB {
			writeError(w, http.StatusBadRequest, "bad_request", "team must be A or B")
			return
		}
		player, err := rooms.SwitchTeam(r.Context(), code, identityFrom(r).ID, req.Team)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"player": player})
	}
}
