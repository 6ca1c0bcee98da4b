package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kmacleod/hockey-draft-backend/internal/config"
	"github.com/kmacleod/hockey-draft-backend/internal/httpapi"
	"github.com/kmacleod/hockey-draft-backend/internal/hub"
	"github.com/kmacleod/hockey-draft-backend/internal/room"
	"github.com/kmacleod/hockey-draft-backend/internal/scoring"
	"github.com/kmacleod/hockey-draft-backend/internal/store"
	"github.com/kmacleod/hockey-draft-backend/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := newLogger(cfg.Debug)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var st store.Store
	if cfg.DatabaseURL != "" {
		pg, err := store.OpenPostgres(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		logger.Info("using postgres draft store")
		st = pg
	} else {
		logger.Info("using in-memory draft store")
		st = store.NewMemoryStore()
	}

	draftRooms := room.NewRegistry(logger.Named("draft-rooms"))
	scoreRooms := room.NewRegistry(logger.Named("score-rooms"))
	aggregator := scoring.NewAggregator(scoreRooms, logger.Named("scoring"))

	h := hub.NewHub(ctx, hub.Deps{
		Store:          st,
		Rooms:          draftRooms,
		Clock:          clockwork.NewRealClock(),
		PickTimeLimit:  cfg.PickTimeLimit,
		CompletedGrace: cfg.CompletedGrace,
		Log:            logger.Named("hub"),
	})

	if cfg.NATSURL != "" {
		consumer, err := scoring.NewConsumer(cfg.NATSURL, aggregator, logger.Named("feed"))
		if err != nil {
			return err
		}
		defer consumer.Close()
	}

	handler := httpapi.SetupRoutes(httpapi.Deps{
		Hub:        h,
		Aggregator: aggregator,
		WS: ws.Deps{
			Hub:            h,
			DraftRooms:     draftRooms,
			ScoreRooms:     scoreRooms,
			Aggregator:     aggregator,
			OriginPatterns: cfg.AllowedOrigins,
			Log:            logger.Named("ws"),
		},
		AllowedOrigins: cfg.AllowedOrigins,
		Log:            logger.Named("http"),
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		h.Inbox() <- hub.ShutdownHub{}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
