package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/VibhaNavale/CS597-Automated-Visual-Tech-Support/internal/domain/port"
	"go.uber.org/zap"
)

// Server exposes the thin inspection surface: cache lookup and clearing,
// per-step image retrieval from the output root, and the cumulative metrics
// record per video.
type Server struct {
	cache      port.ResultCache
	metrics    port.MetricsRepository
	outputRoot string
	logger     *zap.Logger
}

func NewServer(cache port.ResultCache, metrics port.MetricsRepository, outputRoot string, logger *zap.Logger) *Server {
	return &Server{cache: cache, metrics: metrics, outputRoot: outputRoot, logger: logger}
}

func (s *Server) Start(ctx context.Context, port int) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /cache/{videoID}", s.handleCacheGet)
	mux.HandleFunc("DELETE /cache/{videoID}", s.handleCacheClear)
	mux.HandleFunc("DELETE /cache", s.handleCacheClearAll)
	mux.HandleFunc("GET /videos/{videoID}/metrics", s.handleVideoMetrics)
	mux.HandleFunc("GET /videos/{videoID}/steps/{stepNumber}/{file}", s.handleStepImage)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		s.logger.Info("api server starting", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("api server error", zap.Error(err))
		}
	}()

	return srv
}

func (s *Server) handleCacheGet(w http.ResponseWriter, r *http.Request) {
	videoID := r.PathValue("videoID")
	steps, ok := s.cache.Get(videoID)
	if !ok {
		http.Error(w, "no cached result", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"video_id": videoID,
		"steps":    steps,
	})
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	videoID := r.PathValue("videoID")
	if err := s.cache.Clear(videoID); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCacheClearAll(w http.ResponseWriter, r *http.Request) {
	if err := s.cache.ClearAll(); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleVideoMetrics(w http.ResponseWriter, r *http.Request) {
	videoID := r.PathValue("videoID")
	record, err := s.metrics.Find(r.Context(), videoID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if record == nil {
		http.Error(w, "no metrics record", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(record)
}

func (s *Server) handleStepImage(w http.ResponseWriter, r *http.Request) {
	videoID := r.PathValue("videoID")
	file := r.PathValue("file")

	stepNumber, err := strconv.Atoi(r.PathValue("stepNumber"))
	if err != nil || stepNumber < 1 {
		http.Error(w, "invalid step number", http.StatusBadRequest)
		return
	}
	if !validName(videoID) || !validName(file) {
		http.Error(w, "invalid path", http.StatusBadRequest)
		return
	}

	path := filepath.Join(s.outputRoot, videoID, "steps", fmt.Sprintf("step_%02d", stepNumber), file)
	http.ServeFile(w, r, path)
}

// validName rejects path components that could escape the output root.
func validName(name string) bool {
	return name != "" && name != "." && name != ".." &&
		!strings.ContainsAny(name, `/\`)
}
