package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/jonboulle/clockwork"

	"github.com/ToqaMohamedDev/qaweb-sub000/internal/battle"
	"github.com/ToqaMohamedDev/qaweb-sub000/internal/question"
	"github.com/ToqaMohamedDev/qaweb-sub000/internal/store"
)

type okChecker struct{}

func (okChecker) Check(context.Context) error { return nil }

type failChecker struct{}

func (failChecker) Check(context.Context) error { return errors.New("unreachable") }

func newTestHandler(t *testing.T, checks map[string]Checker) (http.Handler, Deps) {
	t.Helper()
	st := store.NewMemory()
	logger := slog.New(slog.DiscardHandler)
	cfg := battle.Config{}
	events := battle.NewEvents(st, cfg, logger)
	rooms := battle.NewRooms(st, cfg, events, logger)
	game := battle.NewGame(st, cfg, rooms, events, question.DefaultSet(), nil, logger)
	timers := battle.NewTimers(st, cfg, game, events, clockwork.NewFakeClock(), logger)

	if checks == nil {
		checks = map[string]Checker{"store": okChecker{}}
	}
	deps := Deps{Rooms: rooms, Game: game, Timers: timers, Events: events, Checks: checks}

	r := chi.NewRouter()
	addRoutes(r, logger, deps)
	return r, deps
}

func doJSON(t *testing.T, h http.Handler, method, path, playerID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding request: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if playerID != "" {
		req.Header.Set("X-Player-ID", playerID)
		req.Header.Set("X-Player-Name", "Player "+playerID)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding response %q: %v", w.Body.String(), err)
	}
	return v
}

func createRoom(t *testing.T, h http.Handler, playerID string, req CreateRoomRequest) RoomResponse {
	t.Helper()
	w := doJSON(t, h, http.MethodPost, "/api/rooms", playerID, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("create room: status %d body %s", w.Code, w.Body.String())
	}
	return decode[RoomResponse](t, w)
}

func TestCreateAndGetRoom(t *testing.T) {
	h, _ := newTestHandler(t, nil)

	created := createRoom(t, h, "p1", CreateRoomRequest{Name: "friday night", Public: true})
	if created.Room.Code == "" {
		t.Fatal("no room code returned")
	}
	if len(created.Players) != 1 || created.Players[0].ID != "p1" {
		t.Errorf("players = %+v, want creator seated", created.Players)
	}

	w := doJSON(t, h, http.MethodGet, "/api/rooms/"+created.Room.Code, "p1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get room: status %d", w.Code)
	}
	got := decode[RoomResponse](t, w)
	if got.Room.Name != "friday night" {
		t.Errorf("name = %q", got.Room.Name)
	}
}

func TestRoomNotFoundMapsTo404(t *testing.T) {
	h, _ := newTestHandler(t, nil)

	w := doJSON(t, h, http.MethodGet, "/api/rooms/ZZZZZZ", "p1", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	body := decode[ErrorResponse](t, w)
	if body.Success || body.Error != "room_not_found" {
		t.Errorf("body = %+v", body)
	}
}

func TestJoinFullRoomMapsTo409(t *testing.T) {
	h, _ := newTestHandler(t, nil)
	room := createRoom(t, h, "p1", CreateRoomRequest{Public: true, MaxPlayers: 2})

	if w := doJSON(t, h, http.MethodPost, "/api/rooms/"+room.Room.Code+"/join", "p2", nil); w.Code != http.StatusOK {
		t.Fatalf("join: status %d body %s", w.Code, w.Body.String())
	}
	w := doJSON(t, h, http.MethodPost, "/api/rooms/"+room.Room.Code+"/join", "p3", nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
	if body := decode[ErrorResponse](t, w); body.Error != "room_full" {
		t.Errorf("error = %q, want room_full", body.Error)
	}
}

func TestPrivateRoomPassword(t *testing.T) {
	h, _ := newTestHandler(t, nil)
	room := createRoom(t, h, "p1", CreateRoomRequest{Password: "sesame"})
	path := "/api/rooms/" + room.Room.Code + "/join"

	w := doJSON(t, h, http.MethodPost, path, "p2", JoinRequest{Password: "nope"})
	if w.Code != http.StatusForbidden {
		t.Fatalf("wrong password status = %d, want 403", w.Code)
	}
	w = doJSON(t, h, http.MethodPost, path, "p2", JoinRequest{Password: "sesame"})
	if w.Code != http.StatusOK {
		t.Fatalf("correct password status = %d body %s", w.Code, w.Body.String())
	}
}

func TestGuestIdentityGenerated(t *testing.T) {
	h, _ := newTestHandler(t, nil)

	w := doJSON(t, h, http.MethodPost, "/api/rooms", "", CreateRoomRequest{Public: true})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d body %s", w.Code, w.Body.String())
	}
	if id := w.Header().Get("X-Player-ID"); len(id) < len("guest-") || id[:6] != "guest-" {
		t.Errorf("generated id = %q, want guest- prefix", id)
	}
	got := decode[RoomResponse](t, w)
	if got.Players[0].Name != "Guest" {
		t.Errorf("guest name = %q", got.Players[0].Name)
	}
}

func TestFullGameOverHTTP(t *testing.T) {
	h, deps := newTestHandler(t, nil)
	ctx := context.Background()

	room := createRoom(t, h, "p1", CreateRoomRequest{Public: true, QuestionCount: 1})
	code := room.Room.Code
	if w := doJSON(t, h, http.MethodPost, "/api/rooms/"+code+"/join", "p2", nil); w.Code != http.StatusOK {
		t.Fatalf("join: %d", w.Code)
	}

	if w := doJSON(t, h, http.MethodPost, "/api/rooms/"+code+"/ready", "p1", ReadyRequest{Ready: true}); w.Code != http.StatusOK {
		t.Fatalf("ready: %d", w.Code)
	}

	w := doJSON(t, h, http.MethodPost, "/api/rooms/"+code+"/start", "p1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("start: status %d body %s", w.Code, w.Body.String())
	}
	started := decode[StartResponse](t, w)
	if started.Room.Status != battle.StatusPlaying {
		t.Fatalf("status = %s, want playing", started.Room.Status)
	}

	w = doJSON(t, h, http.MethodGet, "/api/rooms/"+code+"/timer", "p1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("timer: %d", w.Code)
	}
	timer := decode[battle.TimerInfo](t, w)
	if !timer.Active {
		t.Error("timer should be running after start")
	}

	// Find the correct answer via the engine; the wire payload hides it.
	qstate, err := deps.Game.CurrentQuestionState(ctx, code)
	if err != nil {
		t.Fatalf("CurrentQuestionState: %v", err)
	}
	all, err := question.DefaultSet().Fetch(ctx, question.Filter{})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	correct := -1
	for _, q := range all {
		if q.ID == qstate.QuestionID {
			correct = q.CorrectIndex
		}
	}
	if correct < 0 {
		t.Fatalf("question %s not in fixture set", qstate.QuestionID)
	}

	w = doJSON(t, h, http.MethodPost, "/api/rooms/"+code+"/answer", "p1",
		AnswerRequest{QuestionIndex: 0, Answer: correct})
	if w.Code != http.StatusOK {
		t.Fatalf("answer: status %d body %s", w.Code, w.Body.String())
	}
	res := decode[battle.SubmitResult](t, w)
	if !res.Correct || !res.RoundComplete {
		t.Fatalf("result = %+v, want correct round-ending answer", res)
	}

	// Duplicate submission races resolve to a conflict.
	w = doJSON(t, h, http.MethodPost, "/api/rooms/"+code+"/answer", "p1",
		AnswerRequest{QuestionIndex: 0, Answer: correct})
	if w.Code != http.StatusConflict {
		t.Fatalf("resubmit status = %d, want 409", w.Code)
	}

	w = doJSON(t, h, http.MethodGet, "/api/rooms/"+code+"/results", "p1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("results: %d", w.Code)
	}
	results := decode[battle.GameResults](t, w)
	if len(results.Rankings) != 2 || results.Rankings[0].PlayerID != "p1" {
		t.Errorf("rankings = %+v, want p1 first of 2", results.Rankings)
	}

	w = doJSON(t, h, http.MethodGet, "/api/rooms/"+code+"/events", "p1", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("events: %d", w.Code)
	}
	feed := decode[struct {
		Events []battle.Event `json:"events"`
	}](t, w)
	types := map[battle.EventType]bool{}
	for _, ev := range feed.Events {
		types[ev.Type] = true
	}
	for _, want := range []battle.EventType{
		battle.EventPlayerJoined, battle.EventGameStarting, battle.EventQuestionStart,
		battle.EventQuestionResult, battle.EventGameEnded,
	} {
		if !types[want] {
			t.Errorf("event feed missing %s: have %v", want, types)
		}
	}
}

func TestChatRequiresSeat(t *testing.T) {
	h, _ := newTestHandler(t, nil)
	room := createRoom(t, h, "p1", CreateRoomRequest{Public: true})

	w := doJSON(t, h, http.MethodPost, "/api/rooms/"+room.Room.Code+"/chat", "stranger", ChatRequest{Message: "hi"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	w = doJSON(t, h, http.MethodPost, "/api/rooms/"+room.Room.Code+"/chat", "p1", ChatRequest{Message: "hi"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body %s", w.Code, w.Body.String())
	}
}

func TestHealthz(t *testing.T) {
	h, _ := newTestHandler(t, map[string]Checker{"store": okChecker{}})
	w := doJSON(t, h, http.MethodGet, "/healthz", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	h, _ = newTestHandler(t, map[string]Checker{"store": failChecker{}})
	w = doJSON(t, h, http.MethodGet, "/healthz", "", nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
}

func TestOpenAPIServed(t *testing.T) {
	h, _ := newTestHandler(t, nil)
	w := doJSON(t, h, http.MethodGet, "/openapi.json", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	spec := decode[struct {
		Paths map[string]any `json:"paths"`
	}](t, w)
	if _, ok := spec.Paths["/api/rooms/{code}/answer"]; !ok {
		t.Errorf("spec missing answer path: %v", spec.Paths)
	}
}
