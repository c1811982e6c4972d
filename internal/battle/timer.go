package battle

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/ToqaMohamedDev/qaweb-sub000/internal/store"
)

// TimerInfo is the countdown snapshot served to clients.
type TimerInfo struct {
	RoomCode    string `json:"roomCode"`
	Index       int    `json:"questionIndex"`
	RemainingMs int64  `json:"remainingMs"`
	EndsAt      int64  `json:"endsAt"` // epoch ms
	TimeLimit   int    `json:"timeLimit"`
	Active      bool   `json:"isActive"`
}

// Timers owns round deadlines. Each active round has a timer hash plus an
// entry in a deadline index sorted by expiry, which the sweeper polls. Round
// finalization is claimed by deleting the timer key: whichever caller's Del
// reports the key existed wins, every other path is a no-op. That single rule
// makes the sweeper, the answer path and any duplicate invocation safe to
// race.
type Timers struct {
	store  store.Store
	cfg    Config
	game   *Game
	events *Events
	clock  clockwork.Clock
	logger *slog.Logger
}

func NewTimers(st store.Store, cfg Config, game *Game, events *Events, clock clockwork.Clock, logger *slog.Logger) *Timers {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Timers{
		store:  st,
		cfg:    cfg.withDefaults(),
		game:   game,
		events: events,
		clock:  clock,
		logger: logger,
	}
}

// StartQuestionTimer records the countdown for a round and indexes its
// deadline for the sweeper.
func (t *Timers) StartQuestionTimer(ctx context.Context, code string, index, limitSeconds int) (*TimerState, error) {
	now := t.clock.Now()
	state := &TimerState{
		RoomCode:     code,
		Index:        index,
		StartedAt:    now,
		EndsAt:       now.Add(time.Duration(limitSeconds) * time.Second),
		LimitSeconds: limitSeconds,
	}
	key := store.TimerKey(code)
	if err := t.store.HSet(ctx, key, state.toMap()); err != nil {
		return nil, fmt.Errorf("saving timer: %w", err)
	}
	if err := t.store.Expire(ctx, key, t.cfg.RoomTTL); err != nil {
		return nil, fmt.Errorf("refreshing timer ttl: %w", err)
	}
	member := timerMember(code, index)
	if err := t.store.ZAdd(ctx, store.KeyTimerIndex, member, float64(state.EndsAt.UnixMilli())); err != nil {
		return nil, fmt.Errorf("indexing timer deadline: %w", err)
	}
	return state, nil
}

// GetTimerInfo reports the current countdown. A room with no timer gets an
// inactive snapshot rather than an error.
func (t *Timers) GetTimerInfo(ctx context.Context, code string) (*TimerInfo, error) {
	m, err := t.store.HGetAll(ctx, store.TimerKey(code))
	if err != nil {
		return nil, fmt.Errorf("loading timer: %w", err)
	}
	if len(m) == 0 {
		return &TimerInfo{RoomCode: code, Active: false}, nil
	}
	state := timerStateFromMap(m)
	remaining := state.EndsAt.Sub(t.clock.Now()).Milliseconds()
	if remaining < 0 {
		remaining = 0
	}
	return &TimerInfo{
		RoomCode:    code,
		Index:       state.Index,
		RemainingMs: remaining,
		EndsAt:      state.EndsAt.UnixMilli(),
		TimeLimit:   state.LimitSeconds,
		Active:      remaining > 0,
	}, nil
}

// IsTimerExpired reports whether the room's timer exists and has passed its
// deadline.
func (t *Timers) IsTimerExpired(ctx context.Context, code string) (bool, error) {
	m, err := t.store.HGetAll(ctx, store.TimerKey(code))
	if err != nil {
		return false, fmt.Errorf("loading timer: %w", err)
	}
	if len(m) == 0 {
		return false, nil
	}
	state := timerStateFromMap(m)
	return !t.clock.Now().Before(state.EndsAt), nil
}

// EndCurrentTimer finalizes the round at index, if this caller wins the
// claim. Deleting the timer key is the claim: a Del that reports zero keys
// means someone else already finalized and this call returns quietly.
func (t *Timers) EndCurrentTimer(ctx context.Context, code string, index int) error {
	m, err := t.store.HGetAll(ctx, store.TimerKey(code))
	if err != nil {
		return fmt.Errorf("loading timer: %w", err)
	}
	if len(m) == 0 {
		// The index entry can outlive the hash: the room's keys carry a TTL
		// the global index does not, and a crash between the claim and the
		// ZRem below leaves the same orphan. Drop it here or the sweeper
		// rescans it every tick.
		if err := t.store.ZRem(ctx, store.KeyTimerIndex, timerMember(code, index)); err != nil {
			t.logger.Error("removing orphan timer entry", "room", code, "error", err)
		}
		return nil
	}
	if timerStateFromMap(m).Index != index {
		// Stale trigger for an earlier round; drop its index entry.
		if err := t.store.ZRem(ctx, store.KeyTimerIndex, timerMember(code, index)); err != nil {
			t.logger.Error("removing stale timer entry", "room", code, "error", err)
		}
		return nil
	}

	// The index check above and this Del are separate calls. A racing
	// finalizer that won the claim and already opened round index+1 could in
	// principle have its fresh timer deleted here; the inter-round delay
	// keeps that window closed, and the orphan-entry pruning above makes the
	// index self-heal regardless.
	deleted, err := t.store.Del(ctx, store.TimerKey(code))
	if err != nil {
		return fmt.Errorf("claiming timer: %w", err)
	}
	if deleted == 0 {
		return nil
	}
	if err := t.store.ZRem(ctx, store.KeyTimerIndex, timerMember(code, index)); err != nil {
		t.logger.Error("removing timer index entry", "room", code, "error", err)
	}

	result, err := t.game.EndQuestion(ctx, code, index)
	if err != nil {
		return fmt.Errorf("ending question %d: %w", index, err)
	}

	typ, data := questionResultEvent(result.Index, result.CorrectIndex, result.AnsweredBy, result.Scores, result.GameOver)
	if err := t.events.PublishRoomEvent(ctx, code, typ, data); err != nil {
		t.logger.Error("announcing round result", "room", code, "error", err)
	}

	if result.GameOver {
		results, err := t.game.GetGameResults(ctx, code)
		if err != nil {
			return fmt.Errorf("collecting results: %w", err)
		}
		typ, data := gameEndedEvent(results)
		if err := t.events.PublishRoomEvent(ctx, code, typ, data); err != nil {
			t.logger.Error("announcing game end", "room", code, "error", err)
		}
		t.logger.Info("game finished", "room", code)
		return nil
	}

	// Pause, then open the next round. The delay runs off the request
	// goroutine so the caller is not held for it.
	go func() {
		t.clock.Sleep(t.cfg.InterRoundDelay)
		nctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := t.StartNextQuestion(nctx, code); err != nil {
			t.logger.Error("starting next question", "room", code, "error", err)
		}
	}()
	return nil
}

// StartNextQuestion opens the round at the room's current index, starts its
// timer and announces it.
func (t *Timers) StartNextQuestion(ctx context.Context, code string) error {
	qstate, public, becamePlaying, err := t.game.StartQuestion(ctx, code)
	if err != nil {
		return err
	}
	room, err := t.game.rooms.GetRoom(ctx, code)
	if err != nil {
		return err
	}
	if _, err := t.StartQuestionTimer(ctx, code, qstate.Index, room.TimePerQuestion); err != nil {
		return err
	}

	if becamePlaying {
		typ, data := gameStartedEvent(room.StartedAt)
		if err := t.events.PublishRoomEvent(ctx, code, typ, data); err != nil {
			t.logger.Error("announcing game started", "room", code, "error", err)
		}
	}
	typ, data := questionStartEvent(qstate.Index, public, qstate.EndsAt, room.TimePerQuestion)
	if err := t.events.PublishRoomEvent(ctx, code, typ, data); err != nil {
		t.logger.Error("announcing question start", "room", code, "error", err)
	}
	return nil
}

// ProcessTimerExpiration finalizes the room's round if its deadline has
// passed. Safe to call for rooms whose timer is gone or still running.
func (t *Timers) ProcessTimerExpiration(ctx context.Context, code string) error {
	m, err := t.store.HGetAll(ctx, store.TimerKey(code))
	if err != nil {
		return fmt.Errorf("loading timer: %w", err)
	}
	if len(m) == 0 {
		return nil
	}
	state := timerStateFromMap(m)
	if t.clock.Now().Before(state.EndsAt) {
		return nil
	}
	return t.EndCurrentTimer(ctx, code, state.Index)
}

// Run sweeps the deadline index until ctx is done. Expired entries are
// finalized through the same claim path as every other trigger.
func (t *Timers) Run(ctx context.Context) error {
	ticker := t.clock.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			t.sweep(ctx)
		}
	}
}

func (t *Timers) sweep(ctx context.Context) {
	now := float64(t.clock.Now().UnixMilli())
	members, err := t.store.ZRangeByScore(ctx, store.KeyTimerIndex, 0, now)
	if err != nil {
		t.logger.Error("sweeping timer index", "error", err)
		return
	}
	for _, member := range members {
		code, index, ok := parseTimerMember(member)
		if !ok {
			// Unparseable entries would otherwise be rescanned forever.
			if err := t.store.ZRem(ctx, store.KeyTimerIndex, member); err != nil {
				t.logger.Error("dropping bad timer entry", "member", member, "error", err)
			}
			continue
		}
		if err := t.EndCurrentTimer(ctx, code, index); err != nil {
			t.logger.Error("finalizing expired round", "room", code, "error", err)
		}
	}
}

func timerMember(code string, index int) string {
	return code + ":" + strconv.Itoa(index)
}

func parseTimerMember(member string) (code string, index int, ok bool) {
	i := strings.LastIndexByte(member, ':')
	if i < 0 {
		return "", 0, false
	}
	index, err := strconv.Atoi(member[i+1:])
	if err != nil {
		return "", 0, false
	}
	return member[:i], index, true
}
