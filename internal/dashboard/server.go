package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"patient_arrivals/internal/model"

	"go.uber.org/zap"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// HistoryReader is the read side of the analysis history
type HistoryReader interface {
	History(ctx context.Context, limit int) ([]*model.AnalysisRecord, int64, error)
	Latest(ctx context.Context) (*model.AnalysisRecord, error)
}

// Server exposes the analysis history over HTTP
type Server struct {
	history   HistoryReader
	outputDir string
	port      int
	version   string
	logger    *zap.Logger
	server    *http.Server
}

// NewServer creates the dashboard server. Files under outputDir are served at /outputs/.
func NewServer(history HistoryReader, outputDir string, port int, version string, logger *zap.Logger) *Server {
	return &Server{
		history:   history,
		outputDir: outputDir,
		port:      port,
		version:   version,
		logger:    logger,
	}
}

// Handler returns the routes of the dashboard
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("GET /api/history/latest", s.handleLatest)

	if s.outputDir != "" {
		mux.Handle("GET /outputs/", http.StripPrefix("/outputs/", http.FileServer(http.Dir(s.outputDir))))
	}
	return mux
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("Dashboard API started", zap.String("url", fmt.Sprintf("http://localhost:%d", s.port)))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("dashboard server failed: %w", err)
	}
	return nil
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "running",
		"version": s.version,
		"time":    time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		val, err := strconv.Atoi(l)
		if err != nil || val <= 0 || val > maxLimit {
			writeJSON(w, http.StatusBadRequest, model.APIResponse{
				Error: fmt.Sprintf("limit must be between 1 and %d", maxLimit),
			})
			return
		}
		limit = val
	}

	records, total, err := s.history.History(r.Context(), limit)
	if err != nil {
		s.logger.Error("Failed to load history", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, model.APIResponse{Error: "failed to load history"})
		return
	}

	writeJSON(w, http.StatusOK, model.APIResponse{Data: records, Total: total, Limit: limit})
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	rec, err := s.history.Latest(r.Context())
	if err != nil {
		s.logger.Error("Failed to load latest analysis", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, model.APIResponse{Error: "failed to load latest analysis"})
		return
	}
	if rec == nil {
		writeJSON(w, http.StatusNotFound, model.APIResponse{Message: "no analysis recorded yet"})
		return
	}

	writeJSON(w, http.StatusOK, model.APIResponse{Data: rec})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
