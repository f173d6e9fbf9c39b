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

	"github.com/AnthusAI/plexus-dashboard/internal/batchjob"
	"github.com/AnthusAI/plexus-dashboard/internal/dispatch"
	"github.com/AnthusAI/plexus-dashboard/internal/model"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start a webhook server exposing score logging and batch assignment",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initClient()
		if err != nil {
			return err
		}
		defer env.Close()

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
		r.Post("/api/score-results", handleScoreResults(env.Dispatcher))
		r.Post("/api/batch-jobs/assign", handleAssign(env.Coordinator))

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
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

// scoreResultsRequest carries one or more score results plus optional
// dispatch overrides.
type scoreResultsRequest struct {
	Items     []model.ScoreResult `json:"items"`
	Immediate bool                `json:"immediate,omitempty"`
	BatchSize int                 `json:"batchSize,omitempty"`
}

// handleScoreResults accepts score results and enqueues them. The response
// is always 202: submission is fire-and-forget, so the caller learns only
// that the items were accepted, never whether the eventual flush succeeded.
func handleScoreResults(d *dispatch.Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req scoreResultsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
		if len(req.Items) == 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "items is required"})
			return
		}

		var opts []dispatch.SubmitOption
		if req.Immediate {
			opts = append(opts, dispatch.Immediate())
		}
		if req.BatchSize > 0 {
			opts = append(opts, dispatch.WithBatchSize(req.BatchSize))
		}
		for _, item := range req.Items {
			d.Submit(item, opts...)
		}

		writeJSON(w, http.StatusAccepted, map[string]any{
			"status":   "accepted",
			"accepted": len(req.Items),
		})
	}
}

// assignRequest is the webhook shape of a batch assignment.
type assignRequest struct {
	ItemID        string         `json:"itemId"`
	Account       string         `json:"account"`
	Scorecard     string         `json:"scorecard"`
	ModelProvider string         `json:"modelProvider"`
	ModelName     string         `json:"modelName"`
	ScoreID       string         `json:"scoreId,omitempty"`
	Parameters    map[string]any `json:"parameters,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	MaxBatchSize  int            `json:"maxBatchSize,omitempty"`
}

func handleAssign(c *batchjob.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req assignRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}

		maxBatchSize := req.MaxBatchSize
		if maxBatchSize == 0 {
			maxBatchSize = cfg.Batch.MaxBatchSize
		}

		job, batch, err := c.Assign(r.Context(), batchjob.AssignRequest{
			ItemID:        req.ItemID,
			Account:       req.Account,
			Scorecard:     req.Scorecard,
			ModelProvider: req.ModelProvider,
			ModelName:     req.ModelName,
			ScoreID:       req.ScoreID,
			Parameters:    req.Parameters,
			Metadata:      req.Metadata,
			MaxBatchSize:  maxBatchSize,
		})
		if err != nil {
			zap.L().Error("batch assignment failed",
				zap.String("itemId", req.ItemID),
				zap.Error(err))
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"scoringJob": job,
			"batchJob":   batch,
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
