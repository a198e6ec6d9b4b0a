package app

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// Run starts every component and blocks until ctx is cancelled, a signal
// arrives or a component fails. Resources are released before it returns.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.logger.Info("application-starting",
		zap.String("mode", a.engine.Mode()),
		zap.Strings("venues", a.registry.Names()),
		zap.Strings("assets", a.cfg.Assets),
		zap.Int("max-cycle-length", a.cfg.MaxCycleLength),
		zap.String("log-level", a.cfg.LogLevel))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.httpServer.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.httpServer.Shutdown(sctx)
	})

	err := a.prices.Start(gctx)
	if err != nil {
		stop()
		_ = g.Wait()
		a.Shutdown()
		return fmt.Errorf("start price cache: %w", err)
	}

	if a.wsConnector != nil {
		err = a.wsConnector.Start(gctx)
		if err != nil {
			// the poller still feeds the cache
			a.logger.Warn("ws-connector-unavailable", zap.Error(err))
			a.wsConnector = nil
		}
	}

	g.Go(func() error {
		return a.poller.Run(gctx)
	})
	g.Go(func() error {
		return a.engine.Run(gctx)
	})

	a.healthChecker.SetReady(true)
	a.logger.Info("application-ready",
		zap.String("http-addr", ":"+a.cfg.HTTPPort),
		zap.Bool("ws-feed", a.wsConnector != nil))

	err = g.Wait()
	a.Shutdown()
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	return nil
}
