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

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/CBerg14/balloon-pump-backend/internal/comments"
	"github.com/CBerg14/balloon-pump-backend/internal/config"
	"github.com/CBerg14/balloon-pump-backend/internal/game"
	"github.com/CBerg14/balloon-pump-backend/internal/httpapi"
	"github.com/CBerg14/balloon-pump-backend/internal/metrics"
	"github.com/CBerg14/balloon-pump-backend/internal/store"
	"github.com/CBerg14/balloon-pump-backend/internal/users"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.DevLog)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var st store.Store
	if cfg.DatabaseURL != "" {
		st, err = store.OpenGorm(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory store; state will not survive restarts")
		st = store.NewMemStore()
	}
	defer st.Close()

	m := metrics.New()
	reg := users.NewRegistry(st, logger)
	cmts := comments.NewService(st, logger)

	room, err := game.NewRoom(ctx, st, reg, cmts, m, logger, game.Options{RestartDelay: cfg.RestartDelay})
	if err != nil {
		return fmt.Errorf("start room: %w", err)
	}

	handler := httpapi.SetupRoutes(room, reg, cmts, m, cfg.StaticDir, logger)
	srv := &http.Server{Addr: cfg.Addr, Handler: handler}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		room.Inbox() <- game.Shutdown{}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func newLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
