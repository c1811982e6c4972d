// Package battle implements the real-time multiplayer quiz-battle engine:
// room lifecycle, synchronized question rounds, race-safe answer grading,
// countdown timers and event distribution. All mutable state lives in the
// shared store so any server instance can act on any room.
package battle

import (
	"strconv"
	"strings"
	"time"
)

// GameMode selects how answers are submitted and rounds end.
type GameMode string

const (
	// ModeFFA lets every player answer; the first correct answer ends the round.
	ModeFFA GameMode = "ffa"
	// ModeTeam splits players into two teams; only captains answer and the
	// round runs its full duration.
	ModeTeam GameMode = "team"
)

// RoomStatus is the per-room lifecycle: waiting -> starting -> playing -> finished.
type RoomStatus string

const (
	StatusWaiting  RoomStatus = "waiting"
	StatusStarting RoomStatus = "starting"
	StatusPlaying  RoomStatus = "playing"
	StatusFinished RoomStatus = "finished"
)

const (
	TeamA = "A"
	TeamB = "B"
)

// Room is a single game room record.
type Room struct {
	Code            string     `json:"code"`
	Name            string     `json:"name"`
	Public          bool       `json:"public"`
	PasswordHash    string     `json:"-"`
	Mode            GameMode   `json:"gameMode"`
	MaxPlayers      int        `json:"maxPlayers"`
	QuestionCount   int        `json:"questionCount"`
	TimePerQuestion int        `json:"timePerQuestion"` // seconds
	Category        string     `json:"category,omitempty"`
	Difficulty      string     `json:"difficulty,omitempty"`
	HostID          string     `json:"hostId"`
	Status          RoomStatus `json:"status"`
	CurrentQuestion int        `json:"currentQuestion"`
	QuestionIDs     []string   `json:"-"`
	CreatedAt       time.Time  `json:"createdAt"`
	StartedAt       time.Time  `json:"startedAt,omitzero"`
	FinishedAt      time.Time  `json:"finishedAt,omitzero"`
}

func (r *Room) toMap() map[string]string {
	return map[string]string{
		"code":            r.Code,
		"name":            r.Name,
		"public":          formatBool(r.Public),
		"passwordHash":    r.PasswordHash,
		"mode":            string(r.Mode),
		"maxPlayers":      strconv.Itoa(r.MaxPlayers),
		"questionCount":   strconv.Itoa(r.QuestionCount),
		"timePerQuestion": strconv.Itoa(r.TimePerQuestion),
		"category":        r.Category,
		"difficulty":      r.Difficulty,
		"hostId":          r.HostID,
		"status":          string(r.Status),
		"currentQuestion": strconv.Itoa(r.CurrentQuestion),
		"questionIds":     strings.Join(r.QuestionIDs, ","),
		"createdAt":       formatTime(r.CreatedAt),
		"startedAt":       formatTime(r.StartedAt),
		"finishedAt":      formatTime(r.FinishedAt),
	}
}

func roomFromMap(m map[string]string) *Room {
	r := &Room{
		Code:            m["code"],
		Name:            m["name"],
		Public:          m["public"] == "1",
		PasswordHash:    m["passwordHash"],
		Mode:            GameMode(m["mode"]),
		MaxPlayers:      parseInt(m["maxPlayers"]),
		QuestionCount:   parseInt(m["questionCount"]),
		TimePerQuestion: parseInt(m["timePerQuestion"]),
		Category:        m["category"],
		Difficulty:      m["difficulty"],
		HostID:          m["hostId"],
		Status:          RoomStatus(m["status"]),
		CurrentQuestion: parseInt(m["currentQuestion"]),
		CreatedAt:       parseTime(m["createdAt"]),
		StartedAt:       parseTime(m["startedAt"]),
		FinishedAt:      parseTime(m["finishedAt"]),
	}
	if m["questionIds"] != "" {
		r.QuestionIDs = strings.Split(m["questionIds"], ",")
	}
	return r
}

// Player is one seat in a room.
type Player struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Avatar       string    `json:"avatar,omitempty"`
	Team         string    `json:"team,omitempty"` // "A", "B" or "" in ffa
	Captain      bool      `json:"isCaptain"`
	Ready        bool      `json:"isReady"`
	Score        int       `json:"score"`
	Correct      int       `json:"correctCount"`
	Wrong        int       `json:"wrongCount"`
	Streak       int       `json:"streak"`
	JoinedAt     time.Time `json:"joinedAt"`
	LastActiveAt time.Time `json:"lastActiveAt"`
}

func (p *Player) toMap() map[string]string {
	return map[string]string{
		"id":           p.ID,
		"name":         p.Name,
		"avatar":       p.Avatar,
		"team":         p.Team,
		"captain":      formatBool(p.Captain),
		"ready":        formatBool(p.Ready),
		"score":        strconv.Itoa(p.Score),
		"correct":      strconv.Itoa(p.Correct),
		"wrong":        strconv.Itoa(p.Wrong),
		"streak":       strconv.Itoa(p.Streak),
		"joinedAt":     formatTime(p.JoinedAt),
		"lastActiveAt": formatTime(p.LastActiveAt),
	}
}

func playerFromMap(m map[string]string) *Player {
	return &Player{
		ID:           m["id"],
		Name:         m["name"],
		Avatar:       m["avatar"],
		Team:         m["team"],
		Captain:      m["captain"] == "1",
		Ready:        m["ready"] == "1",
		Score:        parseInt(m["score"]),
		Correct:      parseInt(m["correct"]),
		Wrong:        parseInt(m["wrong"]),
		Streak:       parseInt(m["streak"]),
		JoinedAt:     parseTime(m["joinedAt"]),
		LastActiveAt: parseTime(m["lastActiveAt"]),
	}
}

// QuestionState is the per-round record. Submitted answers live in the same
// hash under answer:<playerID> fields so the round is one key.
type QuestionState struct {
	QuestionID string    `json:"questionId"`
	Index      int       `json:"index"`
	StartedAt  time.Time `json:"startedAt"`
	EndsAt     time.Time `json:"endsAt"`
	AnsweredBy string    `json:"answeredBy,omitempty"` // FFA winner
	Complete   bool      `json:"isComplete"`
}

func (q *QuestionState) toMap() map[string]string {
	return map[string]string{
		"questionId": q.QuestionID,
		"index":      strconv.Itoa(q.Index),
		"startedAt":  formatTime(q.StartedAt),
		"endsAt":     formatTime(q.EndsAt),
		"complete":   formatBool(q.Complete),
	}
}

func questionStateFromMap(m map[string]string) *QuestionState {
	return &QuestionState{
		QuestionID: m["questionId"],
		Index:      parseInt(m["index"]),
		StartedAt:  parseTime(m["startedAt"]),
		EndsAt:     parseTime(m["endsAt"]),
		AnsweredBy: m["answeredBy"],
		Complete:   m["complete"] == "1",
	}
}

// Answer is one player's submission for a round.
type Answer struct {
	Value       int   `json:"value"` // chosen option index
	SubmittedAt int64 `json:"timestamp"` // epoch ms
	Correct     bool  `json:"isCorrect"`
	LatencyMs   int64 `json:"responseTimeMs"`
}

// TimerState is the authoritative countdown for the active round. It exists
// exactly while a round is active and is deleted the instant the round ends,
// which is what makes round finalization idempotent.
type TimerState struct {
	RoomCode     string    `json:"roomCode"`
	Index        int       `json:"questionIndex"`
	StartedAt    time.Time `json:"startedAt"`
	EndsAt       time.Time `json:"endsAt"`
	LimitSeconds int       `json:"timeLimit"`
	Paused       bool      `json:"isPaused"`
}

func (t *TimerState) toMap() map[string]string {
	return map[string]string{
		"roomCode":     t.RoomCode,
		"index":        strconv.Itoa(t.Index),
		"startedAt":    formatTime(t.StartedAt),
		"endsAt":       formatTime(t.EndsAt),
		"limitSeconds": strconv.Itoa(t.LimitSeconds),
		"paused":       formatBool(t.Paused),
	}
}

func timerStateFromMap(m map[string]string) *TimerState {
	return &TimerState{
		RoomCode:     m["roomCode"],
		Index:        parseInt(m["index"]),
		StartedAt:    parseTime(m["startedAt"]),
		EndsAt:       parseTime(m["endsAt"]),
		LimitSeconds: parseInt(m["limitSeconds"]),
		Paused:       m["paused"] == "1",
	}
}

// Hash field values: booleans as "1"/"0", times as epoch milliseconds, zero
// time as "".

func formatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return strconv.FormatInt(t.UnixMilli(), 10)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func parseInt(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
