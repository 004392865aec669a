package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/qmjianda/loglayout-sub001/internal/engine"
	"github.com/qmjianda/loglayout-sub001/internal/registry"
	"github.com/qmjianda/loglayout-sub001/internal/server"
	"github.com/qmjianda/loglayout-sub001/internal/source"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	var follow bool
	cmd := &cobra.Command{
		Use:   "serve [file...]",
		Short: "Serve the session API; files given are opened at start",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				a.cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("follow") {
				a.cfg.Source.Follow = follow
			}
			return serve(cmd.Context(), a, args)
		},
	}
	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (overrides server.addr)")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep reading files as they grow")
	return cmd
}

func newRegistry(a *app, metrics *engine.Metrics) *registry.Store {
	return registry.NewStore(registry.Config{
		Engine:        a.cfg.EngineOptions(metrics, a.log),
		Loader:        source.NewLoader(a.cfg.Source.BatchLines, a.log),
		AutosaveDir:   a.cfg.Presets.AutosaveDir,
		StatsInterval: a.cfg.Source.StatsInterval,
		Logger:        a.log,
	})
}

func serve(ctx context.Context, a *app, files []string) error {
	log := a.log.With().Str("component", "serve").Logger()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 1. Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := engine.RegisterMetrics(reg)

	// 2. Presets and sessions
	presets, err := a.openPresets()
	if err != nil {
		return err
	}
	defer presets.Close()

	sessions := newRegistry(a, metrics)
	defer sessions.CloseAll()
	for _, path := range files {
		sess, err := sessions.Open(registry.OpenRequest{Path: path, Follow: a.cfg.Source.Follow})
		if err != nil {
			return err
		}
		log.Info().Str("session", sess.ID).Str("path", path).Msg("session opened")
	}
	sessions.StartCleanupLoop(ctx, a.cfg.Server.CleanupInterval, a.cfg.Server.IdleTimeout)

	// 3. API
	api, err := server.New(sessions, presets, server.Options{
		TokenHash:  a.cfg.Server.TokenHash,
		Background: a.cfg.Server.Background,
		MaxWindow:  a.cfg.Server.MaxWindow,
		WebDir:     a.cfg.Server.WebDir,
		Gatherer:   reg,
		Logger:     a.log,
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- api.Start(a.cfg.Server.Addr) }()

	// 4. Graceful shutdown
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := api.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("server shutdown")
	}
	return nil
}
