package battle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ToqaMohamedDev/qaweb-sub000/internal/question"
)

// startedGame creates a room with the given players, starts the game and
// opens the first question.
func startedGame(t *testing.T, e *testEngine, cfg RoomConfig, players ...Identity) *Room {
	t.Helper()
	ctx := context.Background()
	room := e.mustCreate(t, players[0], cfg)
	for _, p := range players[1:] {
		e.mustJoin(t, room.Code, p)
	}
	if _, err := e.game.StartGame(ctx, room.Code); err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	if err := e.timers.StartNextQuestion(ctx, room.Code); err != nil {
		t.Fatalf("StartNextQuestion: %v", err)
	}
	return room
}

// answersFor returns a correct and a wrong option index for the room's
// current question. The question set is shuffled at start, so tests read the
// cached body instead of assuming an order.
func answersFor(t *testing.T, e *testEngine, code string, index int) (correct, wrong int) {
	t.Helper()
	q, err := e.game.cachedQuestion(context.Background(), code, index)
	if err != nil {
		t.Fatalf("cachedQuestion: %v", err)
	}
	return q.CorrectIndex, (q.CorrectIndex + 1) % len(q.Options)
}

func TestStartGameRequiresTwoPlayers(t *testing.T) {
	e := newTestEngine(t, Config{})
	room := e.mustCreate(t, ident("p1", "Alice"), RoomConfig{})

	_, err := e.game.StartGame(context.Background(), room.Code)
	if !errors.Is(err, ErrNotEnoughPlayers) {
		t.Fatalf("err = %v, want ErrNotEnoughPlayers", err)
	}
}

func TestStartGameTwiceFails(t *testing.T) {
	e := newTestEngine(t, Config{})
	ctx := context.Background()
	room := e.mustCreate(t, ident("p1", "Alice"), RoomConfig{})
	e.mustJoin(t, room.Code, ident("p2", "Bob"))

	if _, err := e.game.StartGame(ctx, room.Code); err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	if _, err := e.game.StartGame(ctx, room.Code); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("second StartGame err = %v, want ErrAlreadyStarted", err)
	}
}

func TestStartGameCachesQuestions(t *testing.T) {
	e := newTestEngine(t, Config{})
	ctx := context.Background()
	room := e.mustCreate(t, ident("p1", "Alice"), RoomConfig{QuestionCount: 3})
	e.mustJoin(t, room.Code, ident("p2", "Bob"))

	started, err := e.game.StartGame(ctx, room.Code)
	if err != nil {
		t.Fatalf("StartGame: %v", err)
	}
	if started.Status != StatusStarting {
		t.Errorf("status = %s, want %s", started.Status, StatusStarting)
	}
	if started.QuestionCount != 3 {
		t.Fatalf("questionCount = %d, want 3", started.QuestionCount)
	}
	for i := 0; i < started.QuestionCount; i++ {
		q, err := e.game.cachedQuestion(ctx, room.Code, i)
		if err != nil {
			t.Fatalf("cachedQuestion(%d): %v", i, err)
		}
		if q.ID == "" || q.Text == "" || len(q.Options) == 0 {
			t.Errorf("cached question %d incomplete: %+v", i, q)
		}
	}
}

func TestLoadQuestionsFallsBack(t *testing.T) {
	e := newTestEngine(t, Config{})
	// A provider with nothing in the requested category forces the fallback.
	e.game.provider = question.NewStatic(nil)

	qs := e.game.LoadQuestionsForGame(context.Background(), 3, "nosuch", "")
	if len(qs) != 3 {
		t.Fatalf("got %d questions from fallback, want 3", len(qs))
	}
}

func TestFirstQuestionStartsPlaying(t *testing.T) {
	e := newTestEngine(t, Config{})
	ctx := context.Background()
	room := e.mustCreate(t, ident("p1", "Alice"), RoomConfig{})
	e.mustJoin(t, room.Code, ident("p2", "Bob"))
	if _, err := e.game.StartGame(ctx, room.Code); err != nil {
		t.Fatalf("StartGame: %v", err)
	}

	qstate, public, becamePlaying, err := e.game.StartQuestion(ctx, room.Code)
	if err != nil {
		t.Fatalf("StartQuestion: %v", err)
	}
	if !becamePlaying {
		t.Error("first question should flip the room to playing")
	}
	if qstate.Index != 0 {
		t.Errorf("index = %d, want 0", qstate.Index)
	}
	if public.Text == "" || len(public.Options) == 0 {
		t.Errorf("public question incomplete: %+v", public)
	}

	got, err := e.rooms.GetRoom(ctx, room.Code)
	if err != nil {
		t.Fatalf("GetRoom: %v", err)
	}
	if got.Status != StatusPlaying {
		t.Errorf("status = %s, want %s", got.Status, StatusPlaying)
	}
}

func TestSubmitAnswerScoring(t *testing.T) {
	e := newTestEngine(t, Config{})
	ctx := context.Background()
	room := startedGame(t, e, RoomConfig{}, ident("p1", "Alice"), ident("p2", "Bob"))
	correct, wrong := answersFor(t, e, room.Code, 0)

	res, err := e.game.SubmitAnswer(ctx, room.Code, "p1", 0, wrong)
	if err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}
	if res.Correct || res.PointsAwarded != 0 {
		t.Errorf("wrong answer scored %+v, want 0 points", res)
	}

	res, err = e.game.SubmitAnswer(ctx, room.Code, "p2", 0, correct)
	if err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}
	if !res.Correct {
		t.Error("correct answer graded wrong")
	}
	// Submissions land within the speed window in tests.
	want := DefaultConfig().BasePoints + DefaultConfig().SpeedBonus
	if res.PointsAwarded != want {
		t.Errorf("points = %d, want %d", res.PointsAwarded, want)
	}
	if !res.RoundComplete {
		t.Error("first correct answer should end an ffa round")
	}

	alice, _ := e.rooms.GetPlayer(ctx, room.Code, "p1")
	bob, _ := e.rooms.GetPlayer(ctx, room.Code, "p2")
	if alice.Score != 0 || alice.Wrong != 1 {
		t.Errorf("alice = score %d wrong %d, want 0/1", alice.Score, alice.Wrong)
	}
	if bob.Score != want || bob.Correct != 1 || bob.Streak != 1 {
		t.Errorf("bob = score %d correct %d streak %d, want %d/1/1", bob.Score, bob.Correct, bob.Streak, want)
	}
}

func TestSubmitAnswerDuplicateRejected(t *testing.T) {
	e := newTestEngine(t, Config{})
	ctx := context.Background()
	room := startedGame(t, e, RoomConfig{}, ident("p1", "Alice"), ident("p2", "Bob"))
	_, wrong := answersFor(t, e, room.Code, 0)

	if _, err := e.game.SubmitAnswer(ctx, room.Code, "p1", 0, wrong); err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}
	if _, err := e.game.SubmitAnswer(ctx, room.Code, "p1", 0, wrong); !errors.Is(err, ErrAlreadyAnswered) {
		t.Fatalf("duplicate err = %v, want ErrAlreadyAnswered", err)
	}
}

func TestSubmitAfterRoundWonRejected(t *testing.T) {
	e := newTestEngine(t, Config{})
	ctx := context.Background()
	room := startedGame(t, e, RoomConfig{MaxPlayers: 3},
		ident("p1", "Alice"), ident("p2", "Bob"), ident("p3", "Cara"))
	correct, _ := answersFor(t, e, room.Code, 0)

	res, err := e.game.SubmitAnswer(ctx, room.Code, "p1", 0, correct)
	if err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}
	if !res.RoundComplete {
		t.Fatal("winner's submission should complete the round")
	}

	// Cara is correct but late; the win is already claimed.
	if _, err := e.game.SubmitAnswer(ctx, room.Code, "p3", 0, correct); !errors.Is(err, ErrRoundEnded) {
		t.Fatalf("late correct answer err = %v, want ErrRoundEnded", err)
	}
	cara, _ := e.rooms.GetPlayer(ctx, room.Code, "p3")
	if cara.Score != 0 {
		t.Errorf("rejected submission scored %d points, want 0", cara.Score)
	}
}

func TestTeamModeOnlyCaptainsAnswer(t *testing.T) {
	e := newTestEngine(t, Config{})
	ctx := context.Background()
	room := startedGame(t, e, RoomConfig{Mode: ModeTeam, MaxPlayers: 4},
		ident("p1", "Alice"), ident("p2", "Bob"), ident("p3", "Cara"), ident("p4", "Dan"))
	correct, wrong := answersFor(t, e, room.Code, 0)

	players, err := e.rooms.GetPlayers(ctx, room.Code)
	if err != nil {
		t.Fatalf("GetPlayers: %v", err)
	}
	var captains, members []*Player
	for _, p := range players {
		if p.Captain {
			captains = append(captains, p)
		} else {
			members = append(members, p)
		}
	}
	if len(captains) != 2 || len(members) != 2 {
		t.Fatalf("got %d captains / %d members, want 2/2", len(captains), len(members))
	}

	if _, err := e.game.SubmitAnswer(ctx, room.Code, members[0].ID, 0, correct); !errors.Is(err, ErrNotCaptain) {
		t.Fatalf("member submission err = %v, want ErrNotCaptain", err)
	}

	// A correct captain answer does not end a team round early.
	res, err := e.game.SubmitAnswer(ctx, room.Code, captains[0].ID, 0, correct)
	if err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}
	if res.RoundComplete {
		t.Error("team round ended after one of two captains answered")
	}

	// Once both captains have answered there is nothing left to wait for.
	res, err = e.game.SubmitAnswer(ctx, room.Code, captains[1].ID, 0, wrong)
	if err != nil {
		t.Fatalf("SubmitAnswer: %v", err)
	}
	if !res.RoundComplete {
		t.Error("round should complete when every captain has answered")
	}
}

func TestScoreAnswer(t *testing.T) {
	e := newTestEngine(t, Config{})
	cfg := DefaultConfig()

	tests := []struct {
		name       string
		correct    bool
		latency    time.Duration
		prevStreak int
		wantPoints int
		wantStreak int
	}{
		{"wrong resets streak", false, time.Second, 5, 0, 0},
		{"slow correct", true, cfg.SpeedBonusWindow + time.Second, 0, cfg.BasePoints, 1},
		{"fast correct", true, time.Second, 0, cfg.BasePoints + cfg.SpeedBonus, 1},
		{"streak reached", true, cfg.SpeedBonusWindow + time.Second, 2, cfg.BasePoints + cfg.StreakBonus, 3},
		{"fast with streak", true, time.Second, 4, cfg.BasePoints + cfg.SpeedBonus + cfg.StreakBonus, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			points, streak := e.game.scoreAnswer(tt.correct, tt.latency, tt.prevStreak)
			if points != tt.wantPoints || streak != tt.wantStreak {
				t.Errorf("scoreAnswer = (%d, %d), want (%d, %d)", points, streak, tt.wantPoints, tt.wantStreak)
			}
		})
	}
}

func TestEndQuestionAdvancesAndFinishes(t *testing.T) {
	e := newTestEngine(t, Config{})
	ctx := context.Background()
	room := startedGame(t, e, RoomConfig{QuestionCount: 2}, ident("p1", "Alice"), ident("p2", "Bob"))

	result, err := e.game.EndQuestion(ctx, room.Code, 0)
	if err != nil {
		t.Fatalf("EndQuestion: %v", err)
	}
	if result.GameOver {
		t.Fatal("game over after 1 of 2 questions")
	}
	got, _ := e.rooms.GetRoom(ctx, room.Code)
	if got.CurrentQuestion != 1 {
		t.Errorf("currentQuestion = %d, want 1", got.CurrentQuestion)
	}

	if _, _, _, err := e.game.StartQuestion(ctx, room.Code); err != nil {
		t.Fatalf("StartQuestion: %v", err)
	}
	result, err = e.game.EndQuestion(ctx, room.Code, 1)
	if err != nil {
		t.Fatalf("EndQuestion: %v", err)
	}
	if !result.GameOver {
		t.Fatal("last question should end the game")
	}
	got, _ = e.rooms.GetRoom(ctx, room.Code)
	if got.Status != StatusFinished {
		t.Errorf("status = %s, want %s", got.Status, StatusFinished)
	}
	if got.FinishedAt.IsZero() {
		t.Error("finishedAt not recorded")
	}
}

func TestGetGameResultsRanking(t *testing.T) {
	e := newTestEngine(t, Config{})
	ctx := context.Background()
	room := startedGame(t, e, RoomConfig{QuestionCount: 1, MaxPlayers: 3},
		ident("p1", "Alice"), ident("p2", "Bob"), ident("p3", "Cara"))

	// Hand-set scores to pin the ranking, including a tie.
	for id, score := range map[string]int{"p1": 100, "p2": 250, "p3": 100} {
		p, err := e.rooms.GetPlayer(ctx, room.Code, id)
		if err != nil {
			t.Fatalf("GetPlayer: %v", err)
		}
		p.Score = score
		if err := e.rooms.savePlayer(ctx, room.Code, p); err != nil {
			t.Fatalf("savePlayer: %v", err)
		}
	}

	results, err := e.game.GetGameResults(ctx, room.Code)
	if err != nil {
		t.Fatalf("GetGameResults: %v", err)
	}
	if len(results.Rankings) != 3 {
		t.Fatalf("got %d rankings, want 3", len(results.Rankings))
	}
	if results.Rankings[0].PlayerID != "p2" || results.Rankings[0].Rank != 1 {
		t.Errorf("first place = %+v, want p2 at rank 1", results.Rankings[0])
	}
	if results.Rankings[1].Rank != 2 || results.Rankings[2].Rank != 2 {
		t.Errorf("tied scores should share rank 2: %+v", results.Rankings[1:])
	}
}

func TestSubmitToStaleRound(t *testing.T) {
	e := newTestEngine(t, Config{})
	ctx := context.Background()
	room := startedGame(t, e, RoomConfig{QuestionCount: 2}, ident("p1", "Alice"), ident("p2", "Bob"))
	correct, _ := answersFor(t, e, room.Code, 0)

	if _, err := e.game.EndQuestion(ctx, room.Code, 0); err != nil {
		t.Fatalf("EndQuestion: %v", err)
	}
	if _, err := e.game.SubmitAnswer(ctx, room.Code, "p1", 0, correct); !errors.Is(err, ErrRoundEnded) {
		t.Fatalf("stale round err = %v, want ErrRoundEnded", err)
	}
	if _, err := e.game.SubmitAnswer(ctx, room.Code, "p1", 5, correct); !errors.Is(err, ErrQuestionNotFound) {
		t.Fatalf("future round err = %v, want ErrQuestionNotFound", err)
	}
}
