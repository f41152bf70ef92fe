package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/vegas-max/Titan2.0/internal/scheduler"
	"github.com/vegas-max/Titan2.0/internal/server"
	"github.com/vegas-max/Titan2.0/internal/storage"
)

// Serve runs the HTTP API alongside the periodic scan loop.
func (a *App) Serve(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; persistence disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	svc, err := a.newService(sched, store)
	if err != nil {
		return err
	}

	registry := a.newRegistry()
	reader, closeRPC := a.newTVLReader(registry)
	defer closeRPC()

	var sizingStore storage.SizingStore
	if store != nil {
		sizingStore = store
	}

	srv := server.New(server.Options{
		Config:      a.Config,
		Registry:    registry,
		TVL:         reader,
		Scanner:     svc,
		SizingStore: sizingStore,
		Logger:      a.Logger,
	})

	errCh := make(chan error, 2)
	go func() {
		if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
	}()
	go func() {
		if err := srv.Start(); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		cancel()
		shutdownServer(srv)
		return err
	}

	shutdownServer(srv)
	a.Logger.Info().Msg("server stopped")
	return nil
}

func shutdownServer(srv *server.Server) {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
}
