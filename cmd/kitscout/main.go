package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fortuna/kitscout/internal/api/rest"
	"github.com/fortuna/kitscout/internal/api/websocket"
	"github.com/fortuna/kitscout/internal/app"
	"github.com/fortuna/kitscout/internal/config"
	"github.com/fortuna/kitscout/internal/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	serviceName     = "kitscout"
	serviceVersion  = "1.0.0"
	shutdownTimeout = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("failed to load configuration", zap.Error(err))
	}

	log := logger.New(cfg.LogLevel).With(zap.String("service", serviceName))
	defer log.Sync()

	log.Info("starting", zap.String("version", serviceVersion))

	if err := run(cfg, log); err != nil {
		log.Fatal("service stopped with error", zap.Error(err))
	}
	log.Info("service stopped")
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	wsServer := websocket.NewServer(log)

	a, err := app.Build(ctx, cfg, log, wsServer.CampaignObserver())
	if err != nil {
		return err
	}
	defer a.Close()

	restServer := rest.NewServer(cfg.RESTPort, a.RESTDeps())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return restServer.Start()
	})
	g.Go(func() error {
		return wsServer.Start(gctx, cfg.WSPort)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down servers")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return errors.Join(
			restServer.Shutdown(shutdownCtx),
			wsServer.Shutdown(shutdownCtx),
		)
	})

	log.Info("kitscout started",
		zap.String("rest", "http://0.0.0.0:"+cfg.RESTPort),
		zap.String("websocket", "ws://0.0.0.0:"+cfg.WSPort))

	return g.Wait()
}
