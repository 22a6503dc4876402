package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/joho/godotenv"

	"github.com/Amitrawat12/daily-glam/internal/app"
	"github.com/Amitrawat12/daily-glam/internal/config"
	"github.com/Amitrawat12/daily-glam/internal/logging"
	"github.com/Amitrawat12/daily-glam/internal/scraper"
)

// job is one asynchronous run started by a scheduler request.
type job func(ctx context.Context) error

type Server struct {
	scrape     job
	alerts     job
	runTimeout time.Duration

	// base parents every run context; nil means context.Background.
	base context.Context
	runs sync.WaitGroup
}

func main() {
	_ = godotenv.Load()
	logging.Setup(os.Getenv("APP_ENV"))

	cfg, err := config.Load()
	if err != nil {
		logging.Critical("Critical error loading configuration", "error", err)
		os.Exit(1)
	}
	slog.Info("Starting pricewatch trigger server...", "env", cfg.Env)

	ctx := context.Background()
	a, err := app.New(ctx, cfg)
	if err != nil {
		logging.Critical("Critical error initializing backends", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	runCtx, stopRuns := context.WithCancel(context.Background())
	defer stopRuns()

	srv := &Server{
		scrape: func(ctx context.Context) error {
			targets, err := scraper.LoadTargets(cfg.TargetsPath)
			if err != nil {
				return err
			}
			_, err = a.Scrape.Run(ctx, targets)
			return err
		},
		alerts: func(ctx context.Context) error {
			_, err := a.Alerts.CheckAlerts(ctx)
			return err
		},
		runTimeout: cfg.RunTimeout,
		base:       runCtx,
	}

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGTERM/SIGINT. Runs still going after the HTTP
	// server stops get the same deadline, then are cancelled, before the
	// store and lock are closed.
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		sig := <-sigCh
		slog.Info("Received signal, shutting down gracefully...", "signal", sig)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		}
		if err := srv.drain(shutdownCtx); err != nil {
			slog.Warn("Runs still in flight at shutdown deadline, cancelling", "error", err)
			stopRuns()
			srv.runs.Wait()
		}
	}()

	slog.Info("Listening on port", "port", cfg.Port)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logging.Critical("Failed to listen and serve", "error", err)
		os.Exit(1)
	}
	<-stopped
	slog.Info("Server stopped.")
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]string{"status": "ok"})
	})
	r.Post("/scrape", s.trigger("scrape", s.scrape))
	r.Post("/check-alerts", s.trigger("check-alerts", s.alerts))
	return r
}

// trigger runs j in the background and answers 202 right away, so the
// scheduler's request never waits on scraping or mail delivery.
func (s *Server) trigger(name string, j job) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		parent := s.base
		if parent == nil {
			parent = context.Background()
		}

		s.runs.Add(1)
		go func() {
			defer s.runs.Done()
			defer func() {
				if rec := recover(); rec != nil {
					slog.Error("Panic in run", "run", name, "panic", rec)
				}
			}()
			ctx, cancel := context.WithTimeout(parent, s.runTimeout)
			defer cancel()

			start := time.Now()
			if err := j(ctx); err != nil {
				slog.Error("Run failed", "run", name, "error", err)
				return
			}
			slog.Info("Run finished", "run", name, "duration", time.Since(start))
		}()

		render.Status(r, http.StatusAccepted)
		render.JSON(w, r, map[string]string{"status": "started", "run": name})
	}
}

// drain blocks until every started run has returned or ctx is done.
func (s *Server) drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.runs.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
