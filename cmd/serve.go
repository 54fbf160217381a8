package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/check-cli/internal/model"
	"github.com/sells-group/check-cli/internal/pipeline"
	"github.com/sells-group/check-cli/internal/progress"
	"github.com/sells-group/check-cli/internal/stage"
)

var servePort int

// stageLister reads persisted stage records.
type stageLister interface {
	ListStages(ctx context.Context, checkID string) ([]model.ProcessingStage, error)
	Ping(ctx context.Context) error
}

// checkRunner processes one check.
type checkRunner interface {
	Run(ctx context.Context, checkID string) (*pipeline.Result, error)
}

// api serves check progress and accepts processing requests.
type api struct {
	ctx     context.Context
	store   stageLister
	runner  checkRunner
	tracker *progress.Tracker

	mu       sync.Mutex
	inFlight map[string]bool
	wg       sync.WaitGroup
}

func newAPI(ctx context.Context, st stageLister, runner checkRunner, tracker *progress.Tracker) *api {
	return &api{ctx: ctx, store: st, runner: runner, tracker: tracker, inFlight: make(map[string]bool)}
}

// router builds the HTTP routes.
func (a *api) router(allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if len(allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: allowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", a.health)
	r.Route("/checks/{id}", func(r chi.Router) {
		r.Get("/stages", a.stages)
		r.Get("/progress", a.progress)
		r.Post("/process", a.process)
	})
	return r
}

func (a *api) health(w http.ResponseWriter, r *http.Request) {
	if err := a.store.Ping(r.Context()); err != nil {
		zap.L().Warn("serve: health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *api) stages(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	stages, err := a.store.ListStages(r.Context(), id)
	if err != nil {
		zap.L().Error("serve: list stages failed", zap.String("check_id", id), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load stages"})
		return
	}
	if len(stages) == 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "check not found: " + id})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"check_id": id, "stages": stages})
}

func (a *api) progress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snap, ok := a.tracker.Get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no progress for check " + id})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// process starts a run in the background. A check already running in this
// process is rejected.
func (a *api) process(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	a.mu.Lock()
	if a.inFlight[id] {
		a.mu.Unlock()
		writeJSON(w, http.StatusConflict, map[string]string{"error": "check is already processing", "check_id": id})
		return
	}
	a.inFlight[id] = true
	a.mu.Unlock()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer func() {
			a.mu.Lock()
			delete(a.inFlight, id)
			a.mu.Unlock()
		}()

		result, err := a.runner.Run(a.ctx, id)
		if err != nil {
			zap.L().Error("serve: check processing failed", zap.String("check_id", id), zap.Error(err))
			return
		}
		zap.L().Info("serve: check processed",
			zap.String("check_id", id),
			zap.String("status", string(result.Status)),
		)
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "check_id": id})
}

// wait blocks until background runs finish.
func (a *api) wait() { a.wg.Wait() }

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body) //nolint:errcheck
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the progress API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		events := stage.NewEvents(cfg.Pipeline.MaxConcurrent)
		env, err := initPipeline(ctx, cfg, "serve", events)
		if err != nil {
			return err
		}
		defer env.Close()

		tracker := progress.NewTracker(0, 0)
		go tracker.Consume(ctx, events)

		a := newAPI(ctx, env.Store, env.Pipeline, tracker)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           a.router(cfg.Server.AllowedOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		a.wait()
		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
