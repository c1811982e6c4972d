package battle

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ToqaMohamedDev/qaweb-sub000/internal/store"
)

// EventType discriminates room event payloads.
type EventType string

const (
	EventPlayerJoined     EventType = "player_joined"
	EventPlayerLeft       EventType = "player_left"
	EventPlayerReady      EventType = "player_ready"
	EventGameStarting     EventType = "game_starting"
	EventGameStarted      EventType = "game_started"
	EventQuestionStart    EventType = "question_start"
	EventPlayerAnswered   EventType = "player_answered"
	EventQuestionResult   EventType = "question_result"
	EventGameEnded        EventType = "game_ended"
	EventCaptainChanged   EventType = "captain_changed"
	EventTeamSwitched     EventType = "team_switched"
	EventChatMessage      EventType = "chat_message"
	EventAnswerSuggestion EventType = "answer_suggestion"
)

// Event is the wire shape every consumer sees. Data is a closed set of
// payload shapes keyed by Type.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	RoomCode  string    `json:"roomCode"`
	Timestamp int64     `json:"timestamp"` // epoch ms
	Data      any       `json:"data,omitempty"`
}

// Typed event payloads.
type (
	PlayerJoinedPayload struct {
		Player      *Player `json:"player"`
		PlayerCount int     `json:"playerCount"`
	}

	PlayerLeftPayload struct {
		PlayerID    string `json:"playerId"`
		PlayerCount int    `json:"playerCount"`
	}

	PlayerReadyPayload struct {
		PlayerID string `json:"playerId"`
		Ready    bool   `json:"isReady"`
		AllReady bool   `json:"allReady"`
	}

	GameStartingPayload struct {
		QuestionCount   int `json:"questionCount"`
		TimePerQuestion int `json:"timePerQuestion"`
	}

	GameStartedPayload struct {
		StartedAt int64 `json:"startedAt"` // epoch ms
	}

	QuestionStartPayload struct {
		Index     int            `json:"questionIndex"`
		Question  PublicQuestion `json:"question"`
		EndsAt    int64          `json:"endsAt"` // epoch ms
		TimeLimit int            `json:"timeLimit"`
	}

	PlayerAnsweredPayload struct {
		PlayerID string `json:"playerId"`
		Index    int    `json:"questionIndex"`
	}

	QuestionResultPayload struct {
		Index        int           `json:"questionIndex"`
		CorrectIndex int           `json:"correctAnswerIndex"`
		AnsweredBy   string        `json:"answeredBy,omitempty"`
		Scores       []PlayerScore `json:"scores"`
		GameOver     bool          `json:"gameOver"`
	}

	GameEndedPayload struct {
		Results *GameResults `json:"results"`
	}

	CaptainChangedPayload struct {
		Team          string `json:"team"`
		NewCaptainID  string `json:"newCaptainId"`
		PrevCaptainID string `json:"previousCaptainId,omitempty"`
	}

	TeamSwitchedPayload struct {
		PlayerID string `json:"playerId"`
		Team     string `json:"team"`
	}

	ChatMessagePayload struct {
		Team       string `json:"team,omitempty"`
		SenderID   string `json:"senderId"`
		SenderName string `json:"senderName"`
		Message    string `json:"message"`
	}

	AnswerSuggestionPayload struct {
		Team       string `json:"team"`
		SenderID   string `json:"senderId"`
		SenderName string `json:"senderName"`
		Value      int    `json:"value"`
	}
)

// Named constructors so callers never hand-assemble payload shapes.

func playerJoinedEvent(p *Player, count int) (EventType, any) {
	return EventPlayerJoined, PlayerJoinedPayload{Player: p, PlayerCount: count}
}

func playerLeftEvent(playerID string, count int) (EventType, any) {
	return EventPlayerLeft, PlayerLeftPayload{PlayerID: playerID, PlayerCount: count}
}

func playerReadyEvent(playerID string, ready, allReady bool) (EventType, any) {
	return EventPlayerReady, PlayerReadyPayload{PlayerID: playerID, Ready: ready, AllReady: allReady}
}

func gameStartingEvent(room *Room) (EventType, any) {
	return EventGameStarting, GameStartingPayload{
		QuestionCount:   room.QuestionCount,
		TimePerQuestion: room.TimePerQuestion,
	}
}

func gameStartedEvent(startedAt time.Time) (EventType, any) {
	return EventGameStarted, GameStartedPayload{StartedAt: startedAt.UnixMilli()}
}

func questionStartEvent(index int, q PublicQuestion, endsAt time.Time, limitSeconds int) (EventType, any) {
	return EventQuestionStart, QuestionStartPayload{
		Index:     index,
		Question:  q,
		EndsAt:    endsAt.UnixMilli(),
		TimeLimit: limitSeconds,
	}
}

func playerAnsweredEvent(playerID string, index int) (EventType, any) {
	return EventPlayerAnswered, PlayerAnsweredPayload{PlayerID: playerID, Index: index}
}

func questionResultEvent(index, correctIndex int, answeredBy string, scores []PlayerScore, gameOver bool) (EventType, any) {
	return EventQuestionResult, QuestionResultPayload{
		Index:        index,
		CorrectIndex: correctIndex,
		AnsweredBy:   answeredBy,
		Scores:       scores,
		GameOver:     gameOver,
	}
}

func gameEndedEvent(results *GameResults) (EventType, any) {
	return EventGameEnded, GameEndedPayload{Results: results}
}

func captainChangedEvent(team, newCaptainID, prevCaptainID string) (EventType, any) {
	return EventCaptainChanged, CaptainChangedPayload{
		Team:          team,
		NewCaptainID:  newCaptainID,
		PrevCaptainID: prevCaptainID,
	}
}

func teamSwitchedEvent(playerID, team string) (EventType, any) {
	return EventTeamSwitched, TeamSwitchedPayload{PlayerID: playerID, Team: team}
}

func answerSuggestionEvent(team, senderID, senderName string, value int) (EventType, any) {
	return EventAnswerSuggestion, AnswerSuggestionPayload{
		Team:       team,
		SenderID:   senderID,
		SenderName: senderName,
		Value:      value,
	}
}

// Events distributes every state change twice: onto a bounded per-room
// replay queue for polling clients, and onto a pub/sub channel for
// push-capable clients. Either transport can be dropped without touching
// game logic.
type Events struct {
	store  store.Store
	cfg    Config
	logger *slog.Logger
}

func NewEvents(st store.Store, cfg Config, logger *slog.Logger) *Events {
	return &Events{store: st, cfg: cfg.withDefaults(), logger: logger}
}

// PublishRoomEvent appends the event to the room queue (trimmed, TTL
// refreshed) and publishes it on the room channel.
func (e *Events) PublishRoomEvent(ctx context.Context, code string, typ EventType, data any) error {
	ev := Event{
		ID:        uuid.NewString(),
		Type:      typ,
		RoomCode:  code,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", typ, err)
	}

	queue := store.EventQueueKey(code)
	if err := e.store.LPush(ctx, queue, string(raw)); err != nil {
		return fmt.Errorf("queueing %s event: %w", typ, err)
	}
	if err := e.store.LTrim(ctx, queue, 0, int64(e.cfg.EventQueueLen)-1); err != nil {
		return fmt.Errorf("trimming event queue: %w", err)
	}
	if err := e.store.Expire(ctx, queue, e.cfg.RoomTTL); err != nil {
		return fmt.Errorf("refreshing event queue ttl: %w", err)
	}

	if err := e.store.Publish(ctx, store.EventChannel(code), string(raw)); err != nil {
		// Polling clients still see the event; log and keep going.
		e.logger.Error("publishing event", "room", code, "type", typ, "error", err)
	}
	return nil
}

// PublishTeamChat delivers a chat message to the room queue (payload carries
// the team tag for client-side filtering) and to the team's live channel.
func (e *Events) PublishTeamChat(ctx context.Context, code, team, senderID, senderName, message string) error {
	ev := Event{
		ID:        uuid.NewString(),
		Type:      EventChatMessage,
		RoomCode:  code,
		Timestamp: time.Now().UnixMilli(),
		Data: ChatMessagePayload{
			Team:       team,
			SenderID:   senderID,
			SenderName: senderName,
			Message:    message,
		},
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encoding chat event: %w", err)
	}

	queue := store.EventQueueKey(code)
	if err := e.store.LPush(ctx, queue, string(raw)); err != nil {
		return fmt.Errorf("queueing chat event: %w", err)
	}
	if err := e.store.LTrim(ctx, queue, 0, int64(e.cfg.EventQueueLen)-1); err != nil {
		return fmt.Errorf("trimming event queue: %w", err)
	}
	if err := e.store.Expire(ctx, queue, e.cfg.RoomTTL); err != nil {
		return fmt.Errorf("refreshing event queue ttl: %w", err)
	}

	if err := e.store.Publish(ctx, store.ChatChannel(code, team), string(raw)); err != nil {
		e.logger.Error("publishing chat", "room", code, "team", team, "error", err)
	}
	return nil
}

// PublishAnswerSuggestion is team-private: it goes only to the team's live
// channel, never onto the room-wide queue.
func (e *Events) PublishAnswerSuggestion(ctx context.Context, code, team, senderID, senderName string, value int) error {
	typ, data := answerSuggestionEvent(team, senderID, senderName, value)
	ev := Event{
		ID:        uuid.NewString(),
		Type:      typ,
		RoomCode:  code,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encoding suggestion event: %w", err)
	}
	return e.store.Publish(ctx, store.ChatChannel(code, team), string(raw))
}

// Recent returns up to limit queued events, oldest first.
func (e *Events) Recent(ctx context.Context, code string, limit int) ([]Event, error) {
	if limit <= 0 || limit > e.cfg.EventQueueLen {
		limit = e.cfg.EventQueueLen
	}
	raws, err := e.store.LRange(ctx, store.EventQueueKey(code), 0, int64(limit)-1)
	if err != nil {
		return nil, fmt.Errorf("reading event queue: %w", err)
	}
	// The queue is newest first; reverse into chronological order.
	events := make([]Event, 0, len(raws))
	for i := len(raws) - 1; i >= 0; i-- {
		var ev Event
		if err := json.Unmarshal([]byte(raws[i]), &ev); err != nil {
			e.logger.Error("decoding queued event", "room", code, "error", err)
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

// SubscribeRoom returns the live event channel for a room.
func (e *Events) SubscribeRoom(ctx context.Context, code string) (<-chan store.Message, func(), error) {
	return e.store.Subscribe(ctx, store.EventChannel(code))
}

// SubscribeTeamChat returns the live chat channel for one team.
func (e *Events) SubscribeTeamChat(ctx context.Context, code, team string) (<-chan store.Message, func(), error) {
	return e.store.Subscribe(ctx, store.ChatChannel(code, team))
}
