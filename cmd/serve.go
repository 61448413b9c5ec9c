package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kolektra/callqa/internal/analyzer"
	"github.com/kolektra/callqa/internal/gateway"
	"github.com/kolektra/callqa/internal/model"
	"github.com/kolektra/callqa/internal/prompt"
	"github.com/kolektra/callqa/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := initEnv(ctx, "serve")
		if err != nil {
			return err
		}
		defer e.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(e, cfg.Scoring.MinPassingScore),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// newRouter builds the API routes against an initialized environment.
func newRouter(e *env, minPassingScore float64) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/analyze", handleAnalyze(e))
		r.Post("/score", handleScore(e))
		r.Get("/analyses", handleListAnalyses(e))
		r.Get("/analyses/{id}", handleGetAnalysis(e))
		r.Get("/stats", handleStats(e, minPassingScore))
	})

	return r
}

type transcriptRequest struct {
	Transcript string `json:"transcript"`
	Scenario   string `json:"scenario,omitempty"`
}

func handleAnalyze(e *env) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var body transcriptRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		cd, usage, err := e.Analyzer.ExtractBasic(req.Context(), body.Transcript)
		if err != nil {
			writeErrorFor(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"call":  cd,
			"usage": usage,
		})
	}
}

func handleScore(e *env) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var body transcriptRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		scenario, err := model.ParseScenarioType(body.Scenario)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		qs, usage, err := e.Analyzer.ScoreCall(req.Context(), body.Transcript, scenario)
		if err != nil {
			writeErrorFor(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"score": qs,
			"usage": usage,
		})
	}
}

func handleListAnalyses(e *env) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		filter, err := parseListFilter(req)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		recs, err := e.Store.ListAnalyses(req.Context(), filter)
		if err != nil {
			writeErrorFor(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"analyses": recs,
			"count":    len(recs),
		})
	}
}

func handleGetAnalysis(e *env) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "id")

		rec, err := e.Store.GetAnalysis(req.Context(), id)
		if err != nil {
			writeErrorFor(w, err)
			return
		}
		issues, err := e.Store.ListCriticalIssues(req.Context(), id)
		if err != nil {
			writeErrorFor(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"analysis":        rec,
			"critical_issues": issues,
		})
	}
}

func handleStats(e *env, minPassingScore float64) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		stats, err := e.Store.Stats(req.Context(), minPassingScore)
		if err != nil {
			writeErrorFor(w, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

func parseListFilter(req *http.Request) (store.Filter, error) {
	var filter store.Filter
	q := req.URL.Query()

	if s := q.Get("scenario"); s != "" {
		scenario, err := model.ParseScenarioType(s)
		if err != nil {
			return filter, err
		}
		filter.Scenario = scenario
	}
	for name, dst := range map[string]**float64{
		"min_score": &filter.MinScore,
		"max_score": &filter.MaxScore,
	} {
		if s := q.Get(name); s != "" {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return filter, eris.Errorf("invalid %s: %q", name, s)
			}
			*dst = &v
		}
	}
	for name, dst := range map[string]*int{
		"limit":  &filter.Limit,
		"offset": &filter.Offset,
	} {
		if s := q.Get(name); s != "" {
			v, err := strconv.Atoi(s)
			if err != nil {
				return filter, eris.Errorf("invalid %s: %q", name, s)
			}
			*dst = v
		}
	}
	return filter, nil
}

// writeErrorFor maps domain errors onto HTTP statuses: caller mistakes
// get 400, missing records 404, model failures 502.
func writeErrorFor(w http.ResponseWriter, err error) {
	var provErr *gateway.ProviderError
	var schemaErr *gateway.SchemaViolationError

	switch {
	case errors.Is(err, prompt.ErrEmptyTranscript),
		errors.Is(err, analyzer.ErrInvalidScenario):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &provErr), errors.As(err, &schemaErr):
		zap.L().Error("upstream model failure", zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		zap.L().Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("write response", zap.Error(err))
	}
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
