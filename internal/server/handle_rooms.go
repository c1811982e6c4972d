package server

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ToqaMohamedDev/qaweb-sub000/internal/battle"
)

type CreateRoomRequest struct {
	Name            string `json:"name"`
	Public          bool   `json:"public"`
	Password        string `json:"password,omitempty"`
	GameMode        string `json:"gameMode,omitempty"`
	MaxPlayers      int    `json:"maxPlayers,omitempty"`
	QuestionCount   int    `json:"questionCount,omitempty"`
	TimePerQuestion int    `json:"timePerQuestion,omitempty"`
	Category        string `json:"category,omitempty"`
	Difficulty      string `json:"difficulty,omitempty"`
}

type RoomResponse struct {
	Room    *battle.Room     `json:"room"`
	Players []*battle.Player `json:"players"`
}

func handleCreateRoom(rooms *battle.Rooms) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateRoomRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "invalid request body")
			return
		}

		room, err := rooms.CreateRoom(r.Context(), identityFrom(r), battle.RoomConfig{
			Name:            strings.TrimSpace(req.Name),
			Public:          req.Public,
			Password:        req.Password,
			Mode:            battle.GameMode(req.GameMode),
			MaxPlayers:      req.MaxPlayers,
			QuestionCount:   req.QuestionCount,
			TimePerQuestion: req.TimePerQuestion,
			Category:        req.Category,
			Difficulty:      req.Difficulty,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}

		players, err := rooms.GetPlayers(r.Context(), room.Code)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, RoomResponse{Room: room, Players: players})
	}
}

func handleListRooms(rooms *battle.Rooms) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := rooms.GetPublicRooms(r.Context())
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"rooms": list})
	}
}

func handleGetRoom(rooms *battle.Rooms) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")
		room, err := rooms.GetRoom(r.Context(), code)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		players, err := rooms.GetPlayers(r.Context(), code)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, RoomResponse{Room: room, Players: players})
	}
}
