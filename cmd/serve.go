package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/callbrief-cli/internal/model"
	"github.com/sells-group/callbrief-cli/internal/provider"
	"github.com/sells-group/callbrief-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for accounts, call sets, and brief runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           apiRouter(env),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// apiRouter builds the chi router over the pipeline environment.
func apiRouter(env *pipelineEnv) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/api/accounts", func(w http.ResponseWriter, req *http.Request) {
		shared, err := env.Pipeline.DiscoverSharedAccounts(req.Context(), provider.Filter{})
		if err != nil {
			writeError(w, http.StatusBadGateway, err)
			return
		}
		writeJSON(w, http.StatusOK, shared)
	})

	r.Get("/api/accounts/{name}/calls", func(w http.ResponseWriter, req *http.Request) {
		name := chi.URLParam(req, "name")
		set, err := env.Pipeline.FetchCallSet(req.Context(), name, provider.Filter{})
		if err != nil {
			writeResolveError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, set)
	})

	r.Post("/api/briefs", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Account string `json:"account"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.Account == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "account is required"})
			return
		}

		run, err := env.Store.CreateRun(req.Context(), body.Account)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}

		// Generation runs detached from the request; poll the run.
		go runBriefAsync(env, run.ID, body.Account)

		writeJSON(w, http.StatusAccepted, map[string]string{
			"run_id":  run.ID,
			"account": body.Account,
			"status":  string(model.RunQueued),
		})
	})

	r.Get("/api/runs/{id}", func(w http.ResponseWriter, req *http.Request) {
		run, err := env.Store.GetRun(req.Context(), chi.URLParam(req, "id"))
		if err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "run not found"})
			return
		}
		writeJSON(w, http.StatusOK, run)
	})

	r.Get("/api/runs", func(w http.ResponseWriter, req *http.Request) {
		runs, err := env.Store.ListRuns(req.Context(), store.RunFilter{
			Status:  model.RunStatus(req.URL.Query().Get("status")),
			Account: req.URL.Query().Get("account"),
		})
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, runs)
	})

	return r
}

// runBriefAsync executes one brief run in the background, recording the
// outcome on the stored run.
func runBriefAsync(env *pipelineEnv, runID, account string) {
	ctx := context.Background()
	_ = env.Store.UpdateRunStatus(ctx, runID, model.RunRunning)

	result, err := env.Pipeline.Run(ctx, account, provider.Filter{})
	if err != nil {
		zap.L().Error("brief run failed",
			zap.String("run_id", runID),
			zap.String("account", account),
			zap.Error(err),
		)
		_ = env.Store.FailRun(ctx, runID, err.Error())
		return
	}
	if err := env.Store.CompleteRun(ctx, runID, result); err != nil {
		zap.L().Error("persist brief result failed", zap.String("run_id", runID), zap.Error(err))
		return
	}
	zap.L().Info("brief run complete",
		zap.String("run_id", runID),
		zap.String("account", account),
		zap.Int("calls", result.CallCount),
	)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// writeResolveError maps resolution failures onto useful status codes:
// ambiguous names get the suggestion list, empty accounts get 404.
func writeResolveError(w http.ResponseWriter, err error) {
	var ambErr *model.AmbiguousAccountError
	switch {
	case eris.As(err, &ambErr):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":       ambErr.Error(),
			"suggestions": ambErr.Suggestions,
		})
	case eris.Is(err, model.ErrNoCalls), eris.Is(err, model.ErrNoSharedAccounts):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	default:
		writeError(w, http.StatusBadGateway, err)
	}
}
