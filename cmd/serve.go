package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
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

	"github.com/sells-group/sourcing-cli/internal/model"
	"github.com/sells-group/sourcing-cli/internal/pipeline"
)

const maxRequestBody = 1 << 20

var (
	servePort   int
	serveNotion bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the run API: start runs, poll progress, fetch results",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort > 0 {
			cfg.Server.Port = servePort
		}
		env, err := initPipeline(ctx, cfg, "serve", envOptions{notion: serveNotion})
		if err != nil {
			return err
		}
		defer env.Close()

		handler := buildRouter(env.Manager, cfg.Server.AllowedOrigins)
		return startServer(ctx, env.Manager, handler, resolvePort(servePort, cfg.Server.Port))
	},
}

// resolvePort returns the flag port when set, else the configured one.
func resolvePort(flagPort, cfgPort int) int {
	if flagPort > 0 {
		return flagPort
	}
	return cfgPort
}

// startServer serves until ctx is done, then drains HTTP and stops
// in-flight runs.
func startServer(ctx context.Context, m *pipeline.Manager, handler http.Handler, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- eris.Wrap(err, "server listen")
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	zap.L().Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zap.L().Warn("http shutdown", zap.Error(err))
	}
	if err := m.Shutdown(shutdownCtx); err != nil {
		return eris.Wrap(err, "stop runs")
	}
	return nil
}

// buildRouter wires the run API onto a chi router.
func buildRouter(m *pipeline.Manager, allowedOrigins []string) http.Handler {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	api := &runAPI{manager: m}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		respond(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/criteria/validate", api.validateCriteria)
	r.Route("/runs", func(r chi.Router) {
		r.Post("/", api.startRun)
		r.Get("/", api.listRuns)
		r.Get("/{id}", api.getProgress)
		r.Get("/{id}/result", api.getResult)
	})
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

type runAPI struct {
	manager *pipeline.Manager
}

type startRunRequest struct {
	Criteria      json.RawMessage `json:"criteria"`
	MaxCandidates int             `json:"max_candidates"`
}

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func (a *runAPI) startRun(w http.ResponseWriter, r *http.Request) {
	var req startRunRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}
	if req.MaxCandidates < 0 {
		respond(w, http.StatusBadRequest, errorBody{Error: "max_candidates must be >= 0", Field: "max_candidates"})
		return
	}

	criteria, err := parseCriteriaBody(req.Criteria)
	if err != nil {
		respondError(w, err)
		return
	}

	id, err := a.manager.StartRun(criteria, req.MaxCandidates)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusAccepted, map[string]string{
		"run_id":     id,
		"status_url": "/runs/" + id,
		"result_url": "/runs/" + id + "/result",
	})
}

func (a *runAPI) listRuns(w http.ResponseWriter, _ *http.Request) {
	respond(w, http.StatusOK, a.manager.Runs())
}

func (a *runAPI) getProgress(w http.ResponseWriter, r *http.Request) {
	snap, err := a.manager.GetProgress(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, snap)
}

func (a *runAPI) getResult(w http.ResponseWriter, r *http.Request) {
	result, err := a.manager.GetResult(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, err)
		return
	}
	status := http.StatusOK
	if result.Status == model.ResultPending {
		status = http.StatusAccepted
	}
	respond(w, status, result)
}

func (a *runAPI) validateCriteria(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		respond(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}
	criteria, err := parseCriteriaBody(body)
	if err != nil {
		respondError(w, err)
		return
	}
	respond(w, http.StatusOK, map[string]any{"valid": true, "criteria": criteria})
}

// parseCriteriaBody treats a missing document as empty criteria.
func parseCriteriaBody(raw []byte) (model.SearchCriteria, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return model.SearchCriteria{}, nil
	}
	return model.ParseCriteria(raw)
}

func respondError(w http.ResponseWriter, err error) {
	var ve *model.ValidationError
	switch {
	case errors.As(err, &ve):
		respond(w, http.StatusBadRequest, errorBody{Error: ve.Error(), Field: ve.Field})
	case errors.Is(err, pipeline.ErrRunNotFound):
		respond(w, http.StatusNotFound, errorBody{Error: "run not found"})
	default:
		zap.L().Error("http handler", zap.Error(err))
		respond(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	serveCmd.Flags().BoolVar(&serveNotion, "notion", false, "export completed runs to the Notion database")
	rootCmd.AddCommand(serveCmd)
}
