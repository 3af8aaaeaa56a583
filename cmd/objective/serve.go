package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/hpungsan/objective/internal/trigger"
	"github.com/hpungsan/objective/internal/web"
)

// shutdownTimeout bounds the graceful HTTP shutdown.
const shutdownTimeout = 10 * time.Second

// serve runs the HTTP API, the settings file watcher and the judgement
// trigger until SIGINT/SIGTERM or until one of them fails.
func serve(ctx context.Context, a *app) error {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	trig := trigger.New(a.settings, a.engine.JudgeCurrent, a.cfg.PageLoadDelay())
	srv := web.NewServer(a.cfg, a.engine, trig, a.hub, Version)

	g, gctx := errgroup.WithContext(ctx)

	trig.Start(gctx)
	defer trig.Stop()

	g.Go(func() error {
		return a.settings.Watch(gctx)
	})
	g.Go(func() error {
		return srv.Start(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Str("component", "serve").Msg("shutting down")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
