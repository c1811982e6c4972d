package server

import (
	"encoding/json"
	"net/http"

	"github.com/ToqaMohamedDev/qaweb-sub000/internal/battle"
)

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{Success: false, Error: code, Message: msg})
}

// writeDomainError maps an engine error to its status code and wire
// identifier. Anything outside the taxonomy is a 500 with a generic body.
func writeDomainError(w http.ResponseWriter, err error) {
	code := battle.ErrorCode(err)
	status, ok := domainStatus[code]
	if !ok {
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}
	writeError(w, status, code, err.Error())
}

var domainStatus = map[string]int{
	"room_not_found":     http.StatusNotFound,
	"player_not_found":   http.StatusNotFound,
	"question_not_found": http.StatusNotFound,
	"invalid_password":   http.StatusForbidden,
	"not_captain":        http.StatusForbidden,
	"room_full":          http.StatusConflict,
	"team_full":          http.StatusConflict,
	"same_team":          http.StatusConflict,
	"already_started":    http.StatusConflict,
	"not_enough_players": http.StatusConflict,
	"round_ended":        http.StatusConflict,
	"already_answered":   http.StatusConflict,
}
