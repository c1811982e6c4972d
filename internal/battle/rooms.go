package battle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/ToqaMohamedDev/qaweb-sub000/internal/store"
)

// Identity is what the external identity provider supplies per client.
type Identity struct {
	ID     string
	Name   string
	Avatar string
}

// RoomConfig is the creation request; zero fields take engine defaults.
type RoomConfig struct {
	Name            string
	Public          bool
	Password        string
	Mode            GameMode
	MaxPlayers      int
	QuestionCount   int
	TimePerQuestion int // seconds
	Category        string
	Difficulty      string
}

// PublicRoomInfo is one lobby-browser entry.
type PublicRoomInfo struct {
	Code        string   `json:"code"`
	Name        string   `json:"name"`
	Mode        GameMode `json:"gameMode"`
	PlayerCount int      `json:"playerCount"`
	MaxPlayers  int      `json:"maxPlayers"`
}

// Rooms owns room and player CRUD: creation, join/leave, ready state, team
// assignment and captaincy, and the public-room directory.
type Rooms struct {
	store  store.Store
	cfg    Config
	events *Events
	logger *slog.Logger
}

func NewRooms(st store.Store, cfg Config, events *Events, logger *slog.Logger) *Rooms {
	return &Rooms{store: st, cfg: cfg.withDefaults(), events: events, logger: logger}
}

// CreateRoom allocates a unique code, persists the room in waiting status,
// registers it in the indexes and seats the creator (captain of team A in
// team mode).
func (rm *Rooms) CreateRoom(ctx context.Context, creator Identity, cfg RoomConfig) (*Room, error) {
	if cfg.Mode == "" {
		cfg.Mode = ModeFFA
	}
	if cfg.Mode != ModeFFA && cfg.Mode != ModeTeam {
		return nil, fmt.Errorf("unknown game mode %q", cfg.Mode)
	}
	if cfg.MaxPlayers <= 0 {
		cfg.MaxPlayers = rm.cfg.DefaultMaxPlayers
	}
	if cfg.QuestionCount <= 0 {
		cfg.QuestionCount = rm.cfg.DefaultQuestionCount
	}
	if cfg.TimePerQuestion <= 0 {
		cfg.TimePerQuestion = rm.cfg.DefaultTimePerQuestion
	}
	if cfg.Name == "" {
		cfg.Name = creator.Name + "'s room"
	}

	// Hash before claiming a code: once the claim lands, the room hash should
	// follow as quickly as possible.
	var passwordHash string
	if !cfg.Public && cfg.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(cfg.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hashing room password: %w", err)
		}
		passwordHash = string(hash)
	}

	var code string
	for attempt := 0; ; attempt++ {
		if attempt == rm.cfg.CodeAttempts {
			return nil, fmt.Errorf("allocating room code: %d collisions", attempt)
		}
		candidate := newRoomCode()
		claimed, err := rm.claimRoomCode(ctx, candidate)
		if err != nil {
			return nil, err
		}
		if claimed {
			code = candidate
			break
		}
	}

	room := &Room{
		Code:            code,
		Name:            cfg.Name,
		Public:          cfg.Public,
		PasswordHash:    passwordHash,
		Mode:            cfg.Mode,
		MaxPlayers:      cfg.MaxPlayers,
		QuestionCount:   cfg.QuestionCount,
		TimePerQuestion: cfg.TimePerQuestion,
		Category:        cfg.Category,
		Difficulty:      cfg.Difficulty,
		HostID:          creator.ID,
		Status:          StatusWaiting,
		CreatedAt:       time.Now(),
	}
	if err := rm.saveRoom(ctx, room); err != nil {
		return nil, err
	}
	if room.Public {
		if _, err := rm.store.SAdd(ctx, store.KeyPublicRooms, code); err != nil {
			return nil, fmt.Errorf("indexing public room: %w", err)
		}
	}

	if _, err := rm.seatPlayer(ctx, room, creator); err != nil {
		return nil, err
	}

	rm.logger.Info("room created", "room", code, "mode", room.Mode, "host", creator.ID)
	return room, nil
}

// claimRoomCode tries to take candidate in the active-code set; SAdd's added
// count is the atomic claim. A colliding member whose room hash no longer
// exists belongs to a TTL-reaped room, so the stale claim is released and the
// SAdd retried. Without this the set would grow by one entry per expired
// room, forever.
func (rm *Rooms) claimRoomCode(ctx context.Context, candidate string) (bool, error) {
	added, err := rm.store.SAdd(ctx, store.KeyActiveRooms, candidate)
	if err != nil {
		return false, fmt.Errorf("claiming room code: %w", err)
	}
	if added == 1 {
		return true, nil
	}
	exists, err := rm.store.Exists(ctx, store.RoomKey(candidate))
	if err != nil {
		return false, fmt.Errorf("checking claimed room code: %w", err)
	}
	if exists {
		return false, nil
	}
	if err := rm.store.SRem(ctx, store.KeyActiveRooms, candidate); err != nil {
		return false, fmt.Errorf("releasing stale room code: %w", err)
	}
	added, err = rm.store.SAdd(ctx, store.KeyActiveRooms, candidate)
	if err != nil {
		return false, fmt.Errorf("reclaiming room code: %w", err)
	}
	return added == 1, nil
}

// JoinRoom seats a player. Re-joining an already-seated identity returns the
// existing seat rather than erroring.
func (rm *Rooms) JoinRoom(ctx context.Context, code string, id Identity, password string) (*Player, error) {
	room, err := rm.GetRoom(ctx, code)
	if err != nil {
		return nil, err
	}

	// Idempotent re-join, checked before any other guard so a reconnecting
	// player is never turned away from a full or running game.
	if existing, err := rm.GetPlayer(ctx, code, id.ID); err == nil {
		return existing, nil
	} else if !errors.Is(err, ErrPlayerNotFound) {
		return nil, err
	}

	if room.Status != StatusWaiting {
		return nil, ErrAlreadyStarted
	}
	if room.PasswordHash != "" {
		if err := bcrypt.CompareHashAndPassword([]byte(room.PasswordHash), []byte(password)); err != nil {
			return nil, ErrInvalidPassword
		}
	}

	player, err := rm.seatPlayer(ctx, room, id)
	if err != nil {
		return nil, err
	}
	return player, nil
}

// seatPlayer adds the identity to the room's player set, assigns a team in
// team mode (fewer members wins, ties favor A, captain-less team grants
// captaincy) and announces the join.
func (rm *Rooms) seatPlayer(ctx context.Context, room *Room, id Identity) (*Player, error) {
	playersKey := store.RoomPlayersKey(room.Code)

	// Add first, then verify capacity; over-admission is rolled back. This
	// keeps the set insert itself atomic under concurrent joins.
	if _, err := rm.store.SAdd(ctx, playersKey, id.ID); err != nil {
		return nil, fmt.Errorf("adding player to room: %w", err)
	}
	count, err := rm.store.SCard(ctx, playersKey)
	if err != nil {
		return nil, fmt.Errorf("counting players: %w", err)
	}
	if count > int64(room.MaxPlayers) {
		if err := rm.store.SRem(ctx, playersKey, id.ID); err != nil {
			rm.logger.Error("rolling back over-capacity join", "room", room.Code, "player", id.ID, "error", err)
		}
		return nil, ErrRoomFull
	}

	now := time.Now()
	player := &Player{
		ID:           id.ID,
		Name:         id.Name,
		Avatar:       id.Avatar,
		JoinedAt:     now,
		LastActiveAt: now,
	}

	if room.Mode == ModeTeam {
		players, err := rm.GetPlayers(ctx, room.Code)
		if err != nil {
			return nil, err
		}
		var aCount, bCount int
		var aHasCaptain, bHasCaptain bool
		for _, p := range players {
			switch p.Team {
			case TeamA:
				aCount++
				aHasCaptain = aHasCaptain || p.Captain
			case TeamB:
				bCount++
				bHasCaptain = bHasCaptain || p.Captain
			}
		}
		if bCount < aCount {
			player.Team = TeamB
			player.Captain = !bHasCaptain
		} else {
			player.Team = TeamA
			player.Captain = !aHasCaptain
		}
	}

	if err := rm.savePlayer(ctx, room.Code, player); err != nil {
		return nil, err
	}
	if err := rm.store.Expire(ctx, playersKey, rm.cfg.RoomTTL); err != nil {
		return nil, fmt.Errorf("refreshing players ttl: %w", err)
	}

	typ, data := playerJoinedEvent(player, int(count))
	if err := rm.events.PublishRoomEvent(ctx, room.Code, typ, data); err != nil {
		rm.logger.Error("announcing join", "room", room.Code, "error", err)
	}
	return player, nil
}

// RemovePlayerFromRoom removes the seat. An emptied room is deleted outright;
// a departing captain hands off to the earliest-joined teammate.
func (rm *Rooms) RemovePlayerFromRoom(ctx context.Context, code, playerID string) error {
	room, err := rm.GetRoom(ctx, code)
	if err != nil {
		return err
	}
	player, err := rm.GetPlayer(ctx, code, playerID)
	if err != nil {
		return err
	}

	if err := rm.store.SRem(ctx, store.RoomPlayersKey(code), playerID); err != nil {
		return fmt.Errorf("removing player: %w", err)
	}
	if _, err := rm.store.Del(ctx, store.PlayerKey(code, playerID)); err != nil {
		return fmt.Errorf("deleting player record: %w", err)
	}

	remaining, err := rm.store.SCard(ctx, store.RoomPlayersKey(code))
	if err != nil {
		return fmt.Errorf("counting players: %w", err)
	}
	if remaining == 0 {
		return rm.DeleteRoom(ctx, room)
	}

	if player.Captain && room.Mode == ModeTeam {
		if err := rm.promoteCaptain(ctx, code, player.Team, player.ID); err != nil {
			return err
		}
	}

	typ, data := playerLeftEvent(playerID, int(remaining))
	if err := rm.events.PublishRoomEvent(ctx, code, typ, data); err != nil {
		rm.logger.Error("announcing leave", "room", code, "error", err)
	}
	return nil
}

// promoteCaptain makes the earliest-joined member of team the captain.
func (rm *Rooms) promoteCaptain(ctx context.Context, code, team, prevCaptainID string) error {
	players, err := rm.GetPlayers(ctx, code)
	if err != nil {
		return err
	}
	var successor *Player
	for _, p := range players {
		if p.Team != team || p.ID == prevCaptainID {
			continue
		}
		if successor == nil || p.JoinedAt.Before(successor.JoinedAt) {
			successor = p
		}
	}
	if successor == nil {
		return nil // team emptied out
	}
	if err := rm.store.HSet(ctx, store.PlayerKey(code, successor.ID), map[string]string{"captain": "1"}); err != nil {
		return fmt.Errorf("promoting captain: %w", err)
	}
	typ, data := captainChangedEvent(team, successor.ID, prevCaptainID)
	if err := rm.events.PublishRoomEvent(ctx, code, typ, data); err != nil {
		rm.logger.Error("announcing captain change", "room", code, "error", err)
	}
	return nil
}

// SwitchTeam moves a player between teams while the room is still waiting.
// Captaincy transfers mirror the leave/join rules.
func (rm *Rooms) SwitchTeam(ctx context.Context, code, playerID, newTeam string) (*Player, error) {
	room, err := rm.GetRoom(ctx, code)
	if err != nil {
		return nil, err
	}
	if room.Mode != ModeTeam {
		return nil, fmt.Errorf("room %s is not in team mode", code)
	}
	if room.Status != StatusWaiting {
		return nil, ErrAlreadyStarted
	}
	if newTeam != TeamA && newTeam != TeamB {
		return nil, fmt.Errorf("unknown team %q", newTeam)
	}

	player, err := rm.GetPlayer(ctx, code, playerID)
	if err != nil {
		return nil, err
	}
	if player.Team == newTeam {
		return nil, ErrSameTeam
	}

	players, err := rm.GetPlayers(ctx, code)
	if err != nil {
		return nil, err
	}
	var destCount int
	var destHasCaptain bool
	for _, p := range players {
		if p.Team == newTeam {
			destCount++
			destHasCaptain = destHasCaptain || p.Captain
		}
	}
	if destCount >= room.MaxPlayers/2 {
		return nil, ErrTeamFull
	}

	oldTeam := player.Team
	wasCaptain := player.Captain
	player.Team = newTeam
	player.Captain = !destHasCaptain
	if err := rm.savePlayer(ctx, code, player); err != nil {
		return nil, err
	}

	if wasCaptain {
		if err := rm.promoteCaptain(ctx, code, oldTeam, playerID); err != nil {
			return nil, err
		}
	}

	typ, data := teamSwitchedEvent(playerID, newTeam)
	if err := rm.events.PublishRoomEvent(ctx, code, typ, data); err != nil {
		rm.logger.Error("announcing team switch", "room", code, "error", err)
	}
	if player.Captain {
		typ, data := captainChangedEvent(newTeam, playerID, "")
		if err := rm.events.PublishRoomEvent(ctx, code, typ, data); err != nil {
			rm.logger.Error("announcing captain change", "room", code, "error", err)
		}
	}
	return player, nil
}

// SetPlayerReady flips the ready flag and announces it together with the
// room-wide all-ready state.
func (rm *Rooms) SetPlayerReady(ctx context.Context, code, playerID string, ready bool) error {
	if _, err := rm.GetRoom(ctx, code); err != nil {
		return err
	}
	player, err := rm.GetPlayer(ctx, code, playerID)
	if err != nil {
		return err
	}
	player.Ready = ready
	player.LastActiveAt = time.Now()
	if err := rm.savePlayer(ctx, code, player); err != nil {
		return err
	}

	allReady, err := rm.AreAllPlayersReady(ctx, code)
	if err != nil {
		return err
	}
	typ, data := playerReadyEvent(playerID, ready, allReady)
	if err := rm.events.PublishRoomEvent(ctx, code, typ, data); err != nil {
		rm.logger.Error("announcing ready", "room", code, "error", err)
	}
	return nil
}

// AreAllPlayersReady reports whether the room can start: at least two seated
// players, every one of them ready.
func (rm *Rooms) AreAllPlayersReady(ctx context.Context, code string) (bool, error) {
	players, err := rm.GetPlayers(ctx, code)
	if err != nil {
		return false, err
	}
	if len(players) < 2 {
		return false, nil
	}
	for _, p := range players {
		if !p.Ready {
			return false, nil
		}
	}
	return true, nil
}

// GetPublicRooms lists public rooms still waiting for players. Stale index
// entries (rooms that expired or started) are pruned as a side effect.
func (rm *Rooms) GetPublicRooms(ctx context.Context) ([]PublicRoomInfo, error) {
	codes, err := rm.store.SMembers(ctx, store.KeyPublicRooms)
	if err != nil {
		return nil, fmt.Errorf("listing public rooms: %w", err)
	}
	out := make([]PublicRoomInfo, 0, len(codes))
	for _, code := range codes {
		room, err := rm.GetRoom(ctx, code)
		if errors.Is(err, ErrRoomNotFound) {
			if err := rm.store.SRem(ctx, store.KeyPublicRooms, code); err != nil {
				rm.logger.Error("pruning public index", "room", code, "error", err)
			}
			// The code claim expired with the room; release it too.
			if err := rm.store.SRem(ctx, store.KeyActiveRooms, code); err != nil {
				rm.logger.Error("pruning active index", "room", code, "error", err)
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		if room.Status != StatusWaiting {
			continue
		}
		count, err := rm.store.SCard(ctx, store.RoomPlayersKey(code))
		if err != nil {
			return nil, fmt.Errorf("counting players: %w", err)
		}
		out = append(out, PublicRoomInfo{
			Code:        room.Code,
			Name:        room.Name,
			Mode:        room.Mode,
			PlayerCount: int(count),
			MaxPlayers:  room.MaxPlayers,
		})
	}
	return out, nil
}

// GetRoom loads a room record.
func (rm *Rooms) GetRoom(ctx context.Context, code string) (*Room, error) {
	m, err := rm.store.HGetAll(ctx, store.RoomKey(code))
	if err != nil {
		return nil, fmt.Errorf("loading room %s: %w", code, err)
	}
	if len(m) == 0 {
		return nil, ErrRoomNotFound
	}
	return roomFromMap(m), nil
}

// GetPlayer loads one seat.
func (rm *Rooms) GetPlayer(ctx context.Context, code, playerID string) (*Player, error) {
	m, err := rm.store.HGetAll(ctx, store.PlayerKey(code, playerID))
	if err != nil {
		return nil, fmt.Errorf("loading player %s: %w", playerID, err)
	}
	if len(m) == 0 {
		return nil, ErrPlayerNotFound
	}
	return playerFromMap(m), nil
}

// GetPlayers loads every seat in the room, ordered by join time.
func (rm *Rooms) GetPlayers(ctx context.Context, code string) ([]*Player, error) {
	ids, err := rm.store.SMembers(ctx, store.RoomPlayersKey(code))
	if err != nil {
		return nil, fmt.Errorf("listing players: %w", err)
	}
	players := make([]*Player, 0, len(ids))
	for _, id := range ids {
		p, err := rm.GetPlayer(ctx, code, id)
		if errors.Is(err, ErrPlayerNotFound) {
			continue // removed concurrently
		}
		if err != nil {
			return nil, err
		}
		players = append(players, p)
	}
	sortPlayersByJoin(players)
	return players, nil
}

// DeleteRoom removes every key the room owns plus its index entries.
func (rm *Rooms) DeleteRoom(ctx context.Context, room *Room) error {
	code := room.Code
	ids, err := rm.store.SMembers(ctx, store.RoomPlayersKey(code))
	if err != nil {
		return fmt.Errorf("listing players: %w", err)
	}

	// The deadline index holds code:index members; read the live timer before
	// its hash goes away so the right entry can be removed.
	if m, err := rm.store.HGetAll(ctx, store.TimerKey(code)); err == nil && len(m) > 0 {
		if err := rm.store.ZRem(ctx, store.KeyTimerIndex, timerMember(code, timerStateFromMap(m).Index)); err != nil {
			return fmt.Errorf("deregistering timer: %w", err)
		}
	}

	keys := []string{
		store.RoomKey(code),
		store.RoomPlayersKey(code),
		store.TimerKey(code),
		store.EventQueueKey(code),
	}
	for _, id := range ids {
		keys = append(keys, store.PlayerKey(code, id))
	}
	for i := 0; i < room.QuestionCount; i++ {
		keys = append(keys,
			store.QuestionKey(code, i),
			store.QuestionStateKey(code, i),
			store.AnsweredKey(code, i),
		)
	}
	if _, err := rm.store.Del(ctx, keys...); err != nil {
		return fmt.Errorf("deleting room keys: %w", err)
	}
	if err := rm.store.SRem(ctx, store.KeyActiveRooms, code); err != nil {
		return fmt.Errorf("deregistering room: %w", err)
	}
	if err := rm.store.SRem(ctx, store.KeyPublicRooms, code); err != nil {
		return fmt.Errorf("deregistering public room: %w", err)
	}
	rm.logger.Info("room deleted", "room", code)
	return nil
}

func (rm *Rooms) saveRoom(ctx context.Context, room *Room) error {
	key := store.RoomKey(room.Code)
	if err := rm.store.HSet(ctx, key, room.toMap()); err != nil {
		return fmt.Errorf("saving room %s: %w", room.Code, err)
	}
	if err := rm.store.Expire(ctx, key, rm.cfg.RoomTTL); err != nil {
		return fmt.Errorf("refreshing room ttl: %w", err)
	}
	return nil
}

func (rm *Rooms) savePlayer(ctx context.Context, code string, p *Player) error {
	key := store.PlayerKey(code, p.ID)
	if err := rm.store.HSet(ctx, key, p.toMap()); err != nil {
		return fmt.Errorf("saving player %s: %w", p.ID, err)
	}
	if err := rm.store.Expire(ctx, key, rm.cfg.RoomTTL); err != nil {
		return fmt.Errorf("refreshing player ttl: %w", err)
	}
	return nil
}

func sortPlayersByJoin(players []*Player) {
	sort.Slice(players, func(i, j int) bool {
		return players[i].JoinedAt.Before(players[j].JoinedAt)
	})
}
