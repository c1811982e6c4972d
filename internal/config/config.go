package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/ToqaMohamedDev/qaweb-sub000/internal/battle"
)

type Config struct {
	HTTPAddr       string     `env:"HTTP_ADDR" envDefault:":8080"`
	RedisURL       string     `env:"REDIS_URL,required"`
	QuestionDBPath string     `env:"QUESTION_DB_PATH" envDefault:"data/questions.db"`
	LogLevel       slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`

	RoomTTL                time.Duration `env:"ROOM_TTL" envDefault:"2h"`
	DefaultMaxPlayers      int           `env:"ROOM_MAX_PLAYERS" envDefault:"4"`
	DefaultQuestionCount   int           `env:"ROOM_QUESTION_COUNT" envDefault:"10"`
	DefaultTimePerQuestion int           `env:"ROOM_TIME_PER_QUESTION" envDefault:"15"`
	InterRoundDelay        time.Duration `env:"ROOM_INTER_ROUND_DELAY" envDefault:"3s"`

	BasePoints       int           `env:"SCORE_BASE_POINTS" envDefault:"100"`
	SpeedBonus       int           `env:"SCORE_SPEED_BONUS" envDefault:"50"`
	SpeedBonusWindow time.Duration `env:"SCORE_SPEED_WINDOW" envDefault:"5s"`
	StreakBonus      int           `env:"SCORE_STREAK_BONUS" envDefault:"50"`
	StreakThreshold  int           `env:"SCORE_STREAK_THRESHOLD" envDefault:"3"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	return &cfg, nil
}

// Battle projects the engine tunables.
func (c *Config) Battle() battle.Config {
	return battle.Config{
		RoomTTL:                c.RoomTTL,
		BasePoints:             c.BasePoints,
		SpeedBonus:             c.SpeedBonus,
		SpeedBonusWindow:       c.SpeedBonusWindow,
		StreakBonus:            c.StreakBonus,
		StreakThreshold:        c.StreakThreshold,
		DefaultMaxPlayers:      c.DefaultMaxPlayers,
		DefaultQuestionCount:   c.DefaultQuestionCount,
		DefaultTimePerQuestion: c.DefaultTimePerQuestion,
		InterRoundDelay:        c.InterRoundDelay,
	}
}
