package battle

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sort"
	"strconv"
	"time"

	"github.com/ToqaMohamedDev/qaweb-sub000/internal/question"
	"github.com/ToqaMohamedDev/qaweb-sub000/internal/store"
)

// PublicQuestion is a question as clients see it: no correct-answer index.
type PublicQuestion struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	Options []string `json:"options"`
}

// SubmitResult is the outcome of one accepted answer.
type SubmitResult struct {
	Correct       bool `json:"isCorrect"`
	PointsAwarded int  `json:"pointsAwarded"`
	Streak        int  `json:"streak"`
	// RoundComplete means this submission ended the round and the caller
	// should finalize it: the first correct answer in free-for-all, or every
	// eligible answerer having answered. The latter cuts a round short of its
	// time limit even in team mode, once both captains are in; no further
	// submission could be accepted anyway.
	RoundComplete bool `json:"roundComplete"`
}

// PlayerScore is one row of a question_result scoreboard.
type PlayerScore struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Team     string `json:"team,omitempty"`
	Score    int    `json:"score"`
	Streak   int    `json:"streak"`
}

// RoundResult summarizes a finalized round.
type RoundResult struct {
	Index        int           `json:"questionIndex"`
	CorrectIndex int           `json:"correctAnswerIndex"`
	AnsweredBy   string        `json:"answeredBy,omitempty"`
	GameOver     bool          `json:"gameOver"`
	Scores       []PlayerScore `json:"scores"`
}

// PlayerResult is one row of the final rankings.
type PlayerResult struct {
	Rank     int    `json:"rank"`
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Team     string `json:"team,omitempty"`
	Score    int    `json:"score"`
	Correct  int    `json:"correctCount"`
	Wrong    int    `json:"wrongCount"`
	Streak   int    `json:"streak"`
}

// GameResults is the end-of-game report.
type GameResults struct {
	RoomCode   string         `json:"roomCode"`
	Rankings   []PlayerResult `json:"rankings"`
	DurationMs int64          `json:"durationMs"`
}

// Game owns game-level logic: loading a question set, running rounds,
// grading answers and computing final results.
type Game struct {
	store    store.Store
	cfg      Config
	rooms    *Rooms
	events   *Events
	provider question.Provider
	fallback question.Provider
	logger   *slog.Logger
}

// NewGame wires the engine. fallback may be nil, in which case the built-in
// default set is used.
func NewGame(st store.Store, cfg Config, rooms *Rooms, events *Events, provider, fallback question.Provider, logger *slog.Logger) *Game {
	if fallback == nil {
		fallback = question.DefaultSet()
	}
	return &Game{
		store:    st,
		cfg:      cfg.withDefaults(),
		rooms:    rooms,
		events:   events,
		provider: provider,
		fallback: fallback,
		logger:   logger,
	}
}

// LoadQuestionsForGame fetches a superset of matching questions, shuffles and
// truncates. Any fetch failure or empty result falls back to the built-in set
// so a room can never fail to start from content-store unavailability.
func (g *Game) LoadQuestionsForGame(ctx context.Context, count int, category, difficulty string) []question.Question {
	filter := question.Filter{Count: count * 2, Category: category, Difficulty: difficulty}
	qs, err := g.provider.Fetch(ctx, filter)
	if err != nil || len(qs) == 0 {
		if err != nil {
			g.logger.Warn("question fetch failed, using fallback", "error", err)
		}
		qs, err = g.fallback.Fetch(ctx, question.Filter{Count: count * 2})
		if err != nil {
			// The fallback is in-memory; this should be unreachable.
			g.logger.Error("fallback question fetch failed", "error", err)
			return nil
		}
	}
	rand.Shuffle(len(qs), func(i, j int) { qs[i], qs[j] = qs[j], qs[i] })
	if len(qs) > count {
		qs = qs[:count]
	}
	return qs
}

// StartGame loads the question set, caches each question body, and moves the
// room from waiting to starting. The first round is started separately by
// the timer manager.
func (g *Game) StartGame(ctx context.Context, code string) (*Room, error) {
	room, err := g.rooms.GetRoom(ctx, code)
	if err != nil {
		return nil, err
	}
	if room.Status != StatusWaiting {
		return nil, ErrAlreadyStarted
	}
	players, err := g.rooms.GetPlayers(ctx, code)
	if err != nil {
		return nil, err
	}
	if len(players) < 2 {
		return nil, ErrNotEnoughPlayers
	}

	qs := g.LoadQuestionsForGame(ctx, room.QuestionCount, room.Category, room.Difficulty)
	if len(qs) == 0 {
		return nil, fmt.Errorf("no questions available for room %s", code)
	}

	room.QuestionIDs = make([]string, len(qs))
	for i, q := range qs {
		room.QuestionIDs[i] = q.ID
		if err := g.cacheQuestion(ctx, code, i, q); err != nil {
			return nil, err
		}
	}
	room.QuestionCount = len(qs)
	room.CurrentQuestion = 0
	room.Status = StatusStarting
	room.StartedAt = time.Now()
	if err := g.rooms.saveRoom(ctx, room); err != nil {
		return nil, err
	}

	// A starting room is no longer joinable; drop it from the lobby browser.
	if room.Public {
		if err := g.store.SRem(ctx, store.KeyPublicRooms, code); err != nil {
			g.logger.Error("deregistering public room", "room", code, "error", err)
		}
	}

	typ, data := gameStartingEvent(room)
	if err := g.events.PublishRoomEvent(ctx, code, typ, data); err != nil {
		g.logger.Error("announcing game start", "room", code, "error", err)
	}
	g.logger.Info("game starting", "room", code, "questions", room.QuestionCount)
	return room, nil
}

// StartQuestion opens the round at the room's current question index. The
// first call of a game also flips the room from starting to playing; the
// returned bool reports that transition so the caller can announce it.
func (g *Game) StartQuestion(ctx context.Context, code string) (*QuestionState, PublicQuestion, bool, error) {
	room, err := g.rooms.GetRoom(ctx, code)
	if err != nil {
		return nil, PublicQuestion{}, false, err
	}
	if room.Status != StatusStarting && room.Status != StatusPlaying {
		return nil, PublicQuestion{}, false, fmt.Errorf("room %s is %s, cannot start question", code, room.Status)
	}
	index := room.CurrentQuestion
	if index >= room.QuestionCount {
		return nil, PublicQuestion{}, false, ErrQuestionNotFound
	}

	q, err := g.cachedQuestion(ctx, code, index)
	if err != nil {
		return nil, PublicQuestion{}, false, err
	}

	now := time.Now()
	qs := &QuestionState{
		QuestionID: q.ID,
		Index:      index,
		StartedAt:  now,
		EndsAt:     now.Add(time.Duration(room.TimePerQuestion) * time.Second),
	}
	key := store.QuestionStateKey(code, index)
	if err := g.store.HSet(ctx, key, qs.toMap()); err != nil {
		return nil, PublicQuestion{}, false, fmt.Errorf("saving question state: %w", err)
	}
	if err := g.store.Expire(ctx, key, g.cfg.RoomTTL); err != nil {
		return nil, PublicQuestion{}, false, fmt.Errorf("refreshing question state ttl: %w", err)
	}

	becamePlaying := false
	if room.Status == StatusStarting {
		room.Status = StatusPlaying
		becamePlaying = true
		if err := g.rooms.saveRoom(ctx, room); err != nil {
			return nil, PublicQuestion{}, false, err
		}
	}

	public := PublicQuestion{ID: q.ID, Text: q.Text, Options: q.Options}
	return qs, public, becamePlaying, nil
}

// SubmitAnswer grades one submission. The two race-sensitive guards are
// atomic conditional writes: membership in the round's answered set (SAdd
// added-count) rejects duplicate submissions, and the FFA winner slot
// (HSetNX on answeredBy) can only be claimed once.
func (g *Game) SubmitAnswer(ctx context.Context, code, playerID string, questionIndex, answerValue int) (*SubmitResult, error) {
	room, err := g.rooms.GetRoom(ctx, code)
	if err != nil {
		return nil, err
	}
	if room.Status != StatusPlaying {
		return nil, ErrRoundEnded
	}
	if questionIndex < room.CurrentQuestion {
		return nil, ErrRoundEnded
	}
	if questionIndex > room.CurrentQuestion {
		return nil, ErrQuestionNotFound
	}

	player, err := g.rooms.GetPlayer(ctx, code, playerID)
	if err != nil {
		return nil, err
	}
	if room.Mode == ModeTeam && !player.Captain {
		return nil, ErrNotCaptain
	}

	stateKey := store.QuestionStateKey(code, questionIndex)
	stateMap, err := g.store.HGetAll(ctx, stateKey)
	if err != nil {
		return nil, fmt.Errorf("loading question state: %w", err)
	}
	if len(stateMap) == 0 {
		return nil, ErrQuestionNotFound
	}
	qstate := questionStateFromMap(stateMap)
	if qstate.Complete {
		return nil, ErrRoundEnded
	}

	answeredKey := store.AnsweredKey(code, questionIndex)
	added, err := g.store.SAdd(ctx, answeredKey, playerID)
	if err != nil {
		return nil, fmt.Errorf("recording answered: %w", err)
	}
	if added == 0 {
		return nil, ErrAlreadyAnswered
	}
	if err := g.store.Expire(ctx, answeredKey, g.cfg.RoomTTL); err != nil {
		return nil, fmt.Errorf("refreshing answered ttl: %w", err)
	}

	q, err := g.cachedQuestion(ctx, code, questionIndex)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	latency := now.Sub(qstate.StartedAt)
	correct := answerValue == q.CorrectIndex

	// FFA first-correct-answer wins: claim the winner slot before any score
	// is written. Losing the claim means another correct answer already
	// ended the round.
	roundComplete := false
	if room.Mode == ModeFFA && correct {
		won, err := g.store.HSetNX(ctx, stateKey, "answeredBy", playerID)
		if err != nil {
			return nil, fmt.Errorf("claiming round win: %w", err)
		}
		if !won {
			return nil, ErrRoundEnded
		}
		if err := g.store.HSet(ctx, stateKey, map[string]string{"complete": "1"}); err != nil {
			return nil, fmt.Errorf("completing round: %w", err)
		}
		roundComplete = true
	}

	points, newStreak := g.scoreAnswer(correct, latency, player.Streak)

	player.Score += points
	player.Streak = newStreak
	if correct {
		player.Correct++
	} else {
		player.Wrong++
	}
	player.LastActiveAt = now
	if err := g.rooms.savePlayer(ctx, code, player); err != nil {
		return nil, err
	}

	answer := Answer{
		Value:       answerValue,
		SubmittedAt: now.UnixMilli(),
		Correct:     correct,
		LatencyMs:   latency.Milliseconds(),
	}
	answerJSON, err := json.Marshal(answer)
	if err != nil {
		return nil, fmt.Errorf("encoding answer: %w", err)
	}
	if err := g.store.HSet(ctx, stateKey, map[string]string{"answer:" + playerID: string(answerJSON)}); err != nil {
		return nil, fmt.Errorf("recording answer: %w", err)
	}

	// If every eligible answerer has now answered there is nothing left to
	// wait for; let the caller finalize early.
	if !roundComplete {
		done, err := g.allAnswered(ctx, room, questionIndex)
		if err != nil {
			g.logger.Error("checking round completion", "room", code, "error", err)
		} else if done {
			roundComplete = true
		}
	}

	typ, data := playerAnsweredEvent(playerID, questionIndex)
	if err := g.events.PublishRoomEvent(ctx, code, typ, data); err != nil {
		g.logger.Error("announcing answer", "room", code, "error", err)
	}

	return &SubmitResult{
		Correct:       correct,
		PointsAwarded: points,
		Streak:        newStreak,
		RoundComplete: roundComplete,
	}, nil
}

// allAnswered reports whether everyone who may answer this round has.
func (g *Game) allAnswered(ctx context.Context, room *Room, questionIndex int) (bool, error) {
	players, err := g.rooms.GetPlayers(ctx, room.Code)
	if err != nil {
		return false, err
	}
	eligible := 0
	for _, p := range players {
		if room.Mode == ModeTeam && !p.Captain {
			continue
		}
		eligible++
	}
	answered, err := g.store.SCard(ctx, store.AnsweredKey(room.Code, questionIndex))
	if err != nil {
		return false, err
	}
	return eligible > 0 && answered >= int64(eligible), nil
}

// EndQuestion marks the round complete and either advances currentQuestion
// or finishes the game. Callers must hold the round claim (see
// Timers.EndCurrentTimer); this function itself is a plain state write.
func (g *Game) EndQuestion(ctx context.Context, code string, questionIndex int) (*RoundResult, error) {
	room, err := g.rooms.GetRoom(ctx, code)
	if err != nil {
		return nil, err
	}

	stateKey := store.QuestionStateKey(code, questionIndex)
	stateMap, err := g.store.HGetAll(ctx, stateKey)
	if err != nil {
		return nil, fmt.Errorf("loading question state: %w", err)
	}
	if len(stateMap) == 0 {
		return nil, ErrQuestionNotFound
	}
	qstate := questionStateFromMap(stateMap)

	if err := g.store.HSet(ctx, stateKey, map[string]string{"complete": "1"}); err != nil {
		return nil, fmt.Errorf("completing round: %w", err)
	}

	q, err := g.cachedQuestion(ctx, code, questionIndex)
	if err != nil {
		return nil, err
	}

	gameOver := questionIndex+1 >= room.QuestionCount
	if gameOver {
		room.Status = StatusFinished
		room.FinishedAt = time.Now()
	} else {
		room.CurrentQuestion = questionIndex + 1
	}
	if err := g.rooms.saveRoom(ctx, room); err != nil {
		return nil, err
	}

	players, err := g.rooms.GetPlayers(ctx, code)
	if err != nil {
		return nil, err
	}
	scores := make([]PlayerScore, len(players))
	for i, p := range players {
		scores[i] = PlayerScore{
			PlayerID: p.ID,
			Name:     p.Name,
			Team:     p.Team,
			Score:    p.Score,
			Streak:   p.Streak,
		}
	}
	sort.Slice(scores, func(i, j int) bool { return scores[i].Score > scores[j].Score })

	return &RoundResult{
		Index:        questionIndex,
		CorrectIndex: q.CorrectIndex,
		AnsweredBy:   qstate.AnsweredBy,
		GameOver:     gameOver,
		Scores:       scores,
	}, nil
}

// GetGameResults ranks players by descending score. Equal scores share a
// rank.
func (g *Game) GetGameResults(ctx context.Context, code string) (*GameResults, error) {
	room, err := g.rooms.GetRoom(ctx, code)
	if err != nil {
		return nil, err
	}
	players, err := g.rooms.GetPlayers(ctx, code)
	if err != nil {
		return nil, err
	}

	sort.Slice(players, func(i, j int) bool {
		if players[i].Score != players[j].Score {
			return players[i].Score > players[j].Score
		}
		return players[i].Correct > players[j].Correct
	})

	rankings := make([]PlayerResult, len(players))
	for i, p := range players {
		rank := i + 1
		if i > 0 && p.Score == players[i-1].Score {
			rank = rankings[i-1].Rank
		}
		rankings[i] = PlayerResult{
			Rank:     rank,
			PlayerID: p.ID,
			Name:     p.Name,
			Team:     p.Team,
			Score:    p.Score,
			Correct:  p.Correct,
			Wrong:    p.Wrong,
			Streak:   p.Streak,
		}
	}

	end := room.FinishedAt
	if end.IsZero() {
		end = time.Now()
	}
	var duration int64
	if !room.StartedAt.IsZero() {
		duration = end.Sub(room.StartedAt).Milliseconds()
	}

	return &GameResults{
		RoomCode:   code,
		Rankings:   rankings,
		DurationMs: duration,
	}, nil
}

// CurrentQuestionState loads the round record at the room's current index.
func (g *Game) CurrentQuestionState(ctx context.Context, code string) (*QuestionState, error) {
	room, err := g.rooms.GetRoom(ctx, code)
	if err != nil {
		return nil, err
	}
	m, err := g.store.HGetAll(ctx, store.QuestionStateKey(code, room.CurrentQuestion))
	if err != nil {
		return nil, fmt.Errorf("loading question state: %w", err)
	}
	if len(m) == 0 {
		return nil, ErrQuestionNotFound
	}
	return questionStateFromMap(m), nil
}

func (g *Game) cacheQuestion(ctx context.Context, code string, index int, q question.Question) error {
	optionsJSON, err := json.Marshal(q.Options)
	if err != nil {
		return fmt.Errorf("encoding options: %w", err)
	}
	key := store.QuestionKey(code, index)
	fields := map[string]string{
		"id":           q.ID,
		"text":         q.Text,
		"options":      string(optionsJSON),
		"correctIndex": strconv.Itoa(q.CorrectIndex),
		"category":     q.Category,
		"difficulty":   q.Difficulty,
	}
	if err := g.store.HSet(ctx, key, fields); err != nil {
		return fmt.Errorf("caching question %d: %w", index, err)
	}
	if err := g.store.Expire(ctx, key, g.cfg.RoomTTL); err != nil {
		return fmt.Errorf("refreshing question ttl: %w", err)
	}
	return nil
}

func (g *Game) cachedQuestion(ctx context.Context, code string, index int) (question.Question, error) {
	m, err := g.store.HGetAll(ctx, store.QuestionKey(code, index))
	if err != nil {
		return question.Question{}, fmt.Errorf("loading cached question %d: %w", index, err)
	}
	if len(m) == 0 {
		return question.Question{}, ErrQuestionNotFound
	}
	q := question.Question{
		ID:           m["id"],
		Text:         m["text"],
		CorrectIndex: parseInt(m["correctIndex"]),
		Category:     m["category"],
		Difficulty:   m["difficulty"],
	}
	if err := json.Unmarshal([]byte(m["options"]), &q.Options); err != nil {
		return question.Question{}, fmt.Errorf("decoding cached options: %w", err)
	}
	return q, nil
}
