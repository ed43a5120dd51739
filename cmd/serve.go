package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"voice-stress/pkg/api"
	"voice-stress/pkg/audio"
	"voice-stress/pkg/pipeline"
	"voice-stress/pkg/storage"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP analysis server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
}

func serve() error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}

	analyzer, err := newAnalyzer(cfg)
	if err != nil {
		return err
	}
	decoders := audio.NewRegistry(cfg.Upload.AllowedExtensions)

	store := storage.NewMemoryStore()
	cache := storage.NewNoopCache()
	if cfg.Cache.Enabled {
		cache, err = storage.NewResultCache(cfg.Cache.TTL)
		if err != nil {
			return err
		}
	}
	defer cache.Close()

	manager := pipeline.NewManager(pipeline.Options{
		Config:   cfg.Pipeline,
		Timeout:  cfg.Analysis.Timeout,
		Store:    store,
		Cache:    cache,
		Decoders: decoders,
		Analyzer: analyzer,
		Logger:   log,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := manager.Start(ctx); err != nil {
		return err
	}
	defer manager.Stop()

	handlers := api.NewHandlers(api.Options{
		Pipeline: manager,
		Store:    store,
		Analyzer: analyzer,
		Decoders: decoders,
		Upload:   cfg.Upload,
		Timeout:  cfg.Analysis.Timeout,
		Logger:   log,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      api.NewRouter(handlers),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.WithField("address", srv.Addr).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}

	log.Info("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("server exited")
	return nil
}
