package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ToqaMohamedDev/qaweb-sub000/internal/battle"
)

type StartResponse struct {
	Room *battle.Room `json:"room"`
}

func handleStart(rooms *battle.Rooms, game *battle.Game, timers *battle.Timers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")

		room, err := game.StartGame(r.Context(), code)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if err := timers.StartNextQuestion(r.Context(), code); err != nil {
			writeDomainError(w, err)
			return
		}
		room, err = rooms.GetRoom(r.Context(), code)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, StartResponse{Room: room})
	}
}

type AnswerRequest struct {
	QuestionIndex int `json:"questionIndex"`
	Answer        int `json:"answer"`
}

func handleAnswer(rooms *battle.Rooms, game *battle.Game, timers *battle.Timers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")
		var req AnswerRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "invalid request body")
			return
		}

		res, err := game.SubmitAnswer(r.Context(), code, identityFrom(r).ID, req.QuestionIndex, req.Answer)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		if res.RoundComplete {
			if err := timers.EndCurrentTimer(r.Context(), code, req.QuestionIndex); err != nil {
				writeDomainError(w, err)
				return
			}
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func handleResults(game *battle.Game) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")
		results, err := game.GetGameResults(r.Context(), code)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, results)
	}
}

func handleTimer(timers *battle.Timers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")
		info, err := timers.GetTimerInfo(r.Context(), code)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, info)
	}
}
