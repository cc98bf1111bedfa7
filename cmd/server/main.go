package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"arcade/internal/config"
	"arcade/internal/game"
	"arcade/internal/game/memory"
	"arcade/internal/game/tictactoe"
	"arcade/internal/server"
	"arcade/internal/session"
	"arcade/internal/storage"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}

	cmd := &cli.Command{
		Name:  "arcade",
		Usage: "serve tic-tac-toe and memory games over HTTP and WebSocket",
		Flags: config.Flags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return run(ctx, config.FromCommand(cmd))
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(ctx context.Context, cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log, err := newLogger(cfg.Debug)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer log.Sync()

	store, err := storage.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	registry := game.NewRegistry()
	registry.Register(tictactoe.New(tictactoe.Settings{BotDelay: cfg.BotDelay}))
	registry.Register(memory.New(memory.Settings{
		RevealDelay:   cfg.MatchRevealDelay,
		MismatchDelay: cfg.MismatchDelay,
		RestartDelay:  cfg.RestartDelay,
		TickInterval:  cfg.TickInterval,
	}))

	mgr := session.NewManager(registry, store, log.Named("session"))
	if err := mgr.Restore(); err != nil {
		log.Warn("restore sessions", zap.Error(err))
	}

	stopCleanup := make(chan struct{})
	defer close(stopCleanup)
	go mgr.CleanupLoop(cfg.CleanupInterval, cfg.SessionMaxAge, stopCleanup)

	handler := server.New(registry, mgr, os.DirFS(cfg.WebDir), log.Named("server"))
	handler.Resume()

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: handler,
	}
	errc := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", cfg.Addr), zap.String("db", cfg.DBPath))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
