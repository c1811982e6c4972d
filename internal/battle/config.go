package battle

import "time"

// Config holds the tunable engine constants. Zero values are replaced by the
// defaults below so tests can construct a partial Config.
type Config struct {
	// RoomTTL is applied to every room-scoped key so abandoned rooms are
	// garbage-collected by the store itself.
	RoomTTL time.Duration

	// EventQueueLen bounds the per-room replay queue for polling clients.
	EventQueueLen int

	// Scoring.
	BasePoints       int
	SpeedBonus       int
	SpeedBonusWindow time.Duration // answer within this of round start
	StreakBonus      int
	StreakThreshold  int // consecutive correct answers to trigger the bonus

	// Room defaults applied when a create request omits them.
	DefaultMaxPlayers      int
	DefaultQuestionCount   int
	DefaultTimePerQuestion int // seconds

	// InterRoundDelay is the pause between a round's result and the next
	// question starting.
	InterRoundDelay time.Duration

	// CodeAttempts caps room-code generation retries on collision.
	CodeAttempts int
}

// DefaultConfig returns the production constants.
func DefaultConfig() Config {
	return Config{
		RoomTTL:                2 * time.Hour,
		EventQueueLen:          50,
		BasePoints:             100,
		SpeedBonus:             50,
		SpeedBonusWindow:       5 * time.Second,
		StreakBonus:            50,
		StreakThreshold:        3,
		DefaultMaxPlayers:      4,
		DefaultQuestionCount:   10,
		DefaultTimePerQuestion: 15,
		InterRoundDelay:        3 * time.Second,
		CodeAttempts:           10,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.RoomTTL == 0 {
		c.RoomTTL = def.RoomTTL
	}
	if c.EventQueueLen == 0 {
		c.EventQueueLen = def.EventQueueLen
	}
	if c.BasePoints == 0 {
		c.BasePoints = def.BasePoints
	}
	if c.SpeedBonus == 0 {
		c.SpeedBonus = def.SpeedBonus
	}
	if c.SpeedBonusWindow == 0 {
		c.SpeedBonusWindow = def.SpeedBonusWindow
	}
	if c.StreakBonus == 0 {
		c.StreakBonus = def.StreakBonus
	}
	if c.StreakThreshold == 0 {
		c.StreakThreshold = def.StreakThreshold
	}
	if c.DefaultMaxPlayers == 0 {
		c.DefaultMaxPlayers = def.DefaultMaxPlayers
	}
	if c.DefaultQuestionCount == 0 {
		c.DefaultQuestionCount = def.DefaultQuestionCount
	}
	if c.DefaultTimePerQuestion == 0 {
		c.DefaultTimePerQuestion = def.DefaultTimePerQuestion
	}
	if c.InterRoundDelay == 0 {
		c.InterRoundDelay = def.InterRoundDelay
	}
	if c.CodeAttempts == 0 {
		c.CodeAttempts = def.CodeAttempts
	}
	return c
}
