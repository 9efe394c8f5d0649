package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"minirc/domain"
	"minirc/moderation"
	"minirc/repositories"
	"minirc/runtime"
	"minirc/runtime/workers"
	"minirc/services"
	"minirc/tcp"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and
// centralizes error reporting so every defer (database close included)
// executes before the process exits.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if err := validator.New().Struct(config); err != nil {
		return fmt.Errorf("config validation error: %w", err)
	}
	log := newLogger(config.LogLevel)

	replacement, err := characterRune(config.CharReplacement)
	if err != nil {
		return err
	}

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Core components
	registry := runtime.NewRegistry()
	broadcaster := runtime.NewBroadcaster(log, registry)
	historyRepository := repositories.NewHistoryRepository(db, log, config.HistoryLimit)
	moderator, err := moderation.NewModerator(config.CensoredWordList(), replacement)
	if err != nil {
		return fmt.Errorf("building moderator: %w", err)
	}

	messages := make(chan domain.Message, config.HistoryBufferSize)
	dispatcher := services.NewDispatcher(log, registry, broadcaster, &moderator, historyRepository, messages)

	// 4. Supervised workers: accept loop, history persistence, stats
	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	supervisor := workers.NewSupervisor(log)
	supervisor.Add(
		tcp.NewServer(log, dispatcher, address, config.OutboundBufferSize),
		workers.NewHistoryWorker(log, messages, historyRepository),
		workers.NewStatsWorker(log, config.StatsInterval, registry.Len),
	)

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 6. Blocks until the signal arrives and every worker has drained
	supervisor.Run(ctx)

	log.Info("Program stopped cleanly")
	return nil
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: l}))
}
