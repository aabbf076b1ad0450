package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"treenet/internal/handler"
	"treenet/internal/hub"
	"treenet/internal/metrics"
	"treenet/internal/service"
	"treenet/internal/watcher"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve [dataset]",
		Short: "Serve the tree, routers and graph over HTTP",
		Long: `Serve builds the dataset once, then exposes the result:

  GET  /api/tree            tree dump
  GET  /api/graph           bipartite graph (?format=json|yaml|text)
  GET  /api/routers         routers of every neighborhood
  GET  /api/lookup?addr=    subnet and router of an address
  GET  /api/stats           statistics of the last build
  GET  /api/datasets        datasets stored in the database
  POST /api/rebuild         build again
  GET  /events              build events (SSE)
  GET  /metrics             Prometheus metrics

With --watch the dataset file is rebuilt whenever it changes.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				cfg.Input.Path = args[0]
			}
			return serve(cmd.Context())
		},
	}

	addInputFlags(cmd.Flags())
	cmd.Flags().String("addr", ":3000", "HTTP listen address")
	cmd.Flags().String("db", "./treenet.db", `SQLite database path ("" disables persistence)`)
	cmd.Flags().Bool("watch", false, "rebuild when the dataset file changes")
	return cmd
}

func serve(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("starting treenet server")

	repo, err := openRepo(cfg.Database.Path)
	if err != nil {
		return err
	}
	if repo != nil {
		defer repo.Close()
	}

	m := metrics.New()
	eventBus := service.NewEventBus()

	// Initialize SSE hub and connect the event bus to it
	sseHub := hub.New()
	go sseHub.Run(ctx)
	sseHub.Forward(ctx, eventBus)

	svc, err := newInference(eventBus, repo, m)
	if err != nil {
		return err
	}

	if cfg.Input.Path != "" {
		if _, err := svc.BuildFile(ctx, cfg.Input.Path, cfg.Input.Format); err != nil {
			// keep serving: a fixed file is picked up by the watcher or /api/rebuild
			log.WithError(err).Error("initial build failed")
		}
		if cfg.Server.Watch {
			w, err := watcher.New(func(string) {
				if _, err := svc.Rebuild(ctx); err != nil {
					log.WithError(err).Error("rebuild failed")
				}
			}, cfg.Input.Path)
			if err != nil {
				return err
			}
			w.WithDebounce(cfg.Server.Debounce.Duration())
			go func() {
				if err := w.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
					log.WithError(err).Error("watcher stopped")
				}
			}()
		}
	} else {
		log.Warn("no dataset configured; POST /api/rebuild answers 503 until one is built")
	}

	mux := http.NewServeMux()
	handler.NewTreeHandler(svc).Register(mux)
	mux.Handle("GET /events", sseHub)
	mux.Handle("GET /metrics", m.Handler())

	server := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: handler.Chain(mux,
			handler.Recover,
			handler.CORS,
			handler.Logger,
		),
		ReadTimeout: 10 * time.Second,
		// no WriteTimeout: SSE streams stay open
		IdleTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.Server.Addr).Info("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("server shutdown error")
	}

	log.Info("server stopped")
	return nil
}
