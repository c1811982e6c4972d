package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/ToqaMohamedDev/qaweb-sub000/internal/battle"
	"github.com/ToqaMohamedDev/qaweb-sub000/internal/config"
	"github.com/ToqaMohamedDev/qaweb-sub000/internal/question"
	"github.com/ToqaMohamedDev/qaweb-sub000/internal/server"
	"github.com/ToqaMohamedDev/qaweb-sub000/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	// --- Shared state store ---
	st, err := store.OpenRedis(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer st.Close()
	logger.Info("connected to redis")

	// --- Question bank ---
	bank, err := question.OpenBank(ctx, cfg.QuestionDBPath)
	if err != nil {
		return fmt.Errorf("opening question bank: %w", err)
	}
	defer bank.Close()
	if err := bank.SeedDefaults(ctx); err != nil {
		return fmt.Errorf("seeding question bank: %w", err)
	}
	logger.Info("question bank ready", "path", cfg.QuestionDBPath)

	// --- Engine ---
	bcfg := cfg.Battle()
	events := battle.NewEvents(st, bcfg, logger)
	rooms := battle.NewRooms(st, bcfg, events, logger)
	game := battle.NewGame(st, bcfg, rooms, events, bank, nil, logger)
	timers := battle.NewTimers(st, bcfg, game, events, clockwork.NewRealClock(), logger)

	// --- HTTP server ---
	srv := server.New(cfg.HTTPAddr, logger, server.Deps{
		Rooms:  rooms,
		Game:   game,
		Timers: timers,
		Events: events,
		Checks: map[string]server.Checker{
			"redis":         st,
			"question_bank": bank,
		},
	})

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.HTTPAddr)
		return srv.Run(gctx)
	})

	g.Go(func() error {
		logger.Info("starting timer sweeper")
		err := timers.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		return srv.Shutdown(context.Background())
	})

	return g.Wait()
}
