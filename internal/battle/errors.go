package battle

import "errors"

// Domain-rule violations. These are expected, user-facing outcomes; the HTTP
// layer maps each to a status code and a structured error body rather than
// treating them as failures.
var (
	ErrRoomNotFound     = errors.New("room not found")
	ErrRoomFull         = errors.New("room is full")
	ErrAlreadyStarted   = errors.New("game has already started")
	ErrInvalidPassword  = errors.New("password incorrect")
	ErrNotEnoughPlayers = errors.New("at least 2 players are required")
	ErrNotCaptain       = errors.New("only the team captain can submit answers")
	ErrQuestionNotFound = errors.New("question not found")
	ErrRoundEnded       = errors.New("round has already ended")
	ErrAlreadyAnswered  = errors.New("already answered this question")
	ErrTeamFull         = errors.New("team is full")
	ErrSameTeam         = errors.New("already on that team")
	ErrPlayerNotFound   = errors.New("player not found in room")
)

// ErrorCode returns the wire identifier for a domain error, or "internal" for
// anything outside the taxonomy.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrRoomNotFound):
		return "room_not_found"
	case errors.Is(err, ErrRoomFull):
		return "room_full"
	case errors.Is(err, ErrAlreadyStarted):
		return "already_started"
	case errors.Is(err, ErrInvalidPassword):
		return "invalid_password"
	case errors.Is(err, ErrNotEnoughPlayers):
		return "not_enough_players"
	case errors.Is(err, ErrNotCaptain):
		return "not_captain"
	case errors.Is(err, ErrQuestionNotFound):
		return "question_not_found"
	case errors.Is(err, ErrRoundEnded):
		return "round_ended"
	case errors.Is(err, ErrAlreadyAnswered):
		return "already_answered"
	case errors.Is(err, ErrTeamFull):
		return "team_full"
	case errors.Is(err, ErrSameTeam):
		return "same_team"
	case errors.Is(err, ErrPlayerNotFound):
		return "player_not_found"
	default:
		return "internal"
	}
}
