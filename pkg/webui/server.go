// Package webui serves the interview WebSocket endpoint and the HTTP endpoints around it:
// saved reports, provider status, health and Prometheus metrics.
package webui

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"interviewcoach/pkg/invoker"
	"interviewcoach/pkg/logx"
	"interviewcoach/pkg/persistence"
	"interviewcoach/pkg/session"
	"interviewcoach/pkg/version"
)

// CandidateHeader carries the authenticated candidate ID set by the hosting web layer.
const CandidateHeader = "X-Candidate-ID"

// RecordReader loads saved interviews.
type RecordReader interface {
	GetInterviewRecord(ctx context.Context, id string) (*persistence.InterviewRecord, error)
	Ping() error
}

// ProviderStatus reports provider health.
type ProviderStatus interface {
	Status() invoker.Status
}

// Server is the HTTP front of the interview engine.
type Server struct {
	sessions *session.Manager
	records  RecordReader
	health   ProviderStatus
	gatherer prometheus.Gatherer
	upgrader websocket.Upgrader
	logger   *logx.Logger
	origins  map[string]bool
}

// NewServer creates a server. An empty allowedOrigins accepts every origin; a nil
// gatherer serves the default Prometheus registry.
func NewServer(sessions *session.Manager, records RecordReader, health ProviderStatus, gatherer prometheus.Gatherer, allowedOrigins []string) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s := &Server{
		sessions: sessions,
		records:  records,
		health:   health,
		gatherer: gatherer,
		logger:   logx.NewLogger("webui"),
		origins:  make(map[string]bool, len(allowedOrigins)),
	}
	for _, o := range allowedOrigins {
		s.origins[o] = true
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// RegisterRoutes sets up HTTP routes.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/interview", s.handleInterviewSocket)
	mux.HandleFunc("/interviews/{id}/report", s.handleReport)
	mux.HandleFunc("/api/provider", s.handleProvider)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
}

// Handler returns a mux with every route registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return mux
}

// StartServer listens on addr until ctx is cancelled.
func (s *Server) StartServer(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("🌐 Interview server listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return logx.Wrap(err, "interview server failed")
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down interview server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	//nolint:contextcheck // parent is cancelled; shutdown needs a fresh deadline
	if err := server.Shutdown(shutdownCtx); err != nil {
		return logx.Wrap(err, "interview server shutdown failed")
	}
	return nil
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.origins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	return origin == "" || s.origins[origin]
}

// reportResponse is the saved record with the report inlined as JSON.
type reportResponse struct {
	CreatedAt    time.Time       `json:"created_at"`
	ID           string          `json:"id"`
	CandidateID  string          `json:"candidate_id"`
	Type         string          `json:"interview_type"`
	Difficulty   string          `json:"difficulty"`
	Transcript   string          `json:"transcript"`
	Report       json.RawMessage `json:"report"`
	OverallScore int             `json:"overall_score"`
}

// handleReport implements GET /interviews/{id}/report.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	caller := strings.TrimSpace(r.Header.Get(CandidateHeader))
	if caller == "" {
		http.Error(w, "Interview not found", http.StatusNotFound)
		return
	}

	id := r.PathValue("id")
	rec, err := s.records.GetInterviewRecord(r.Context(), id)
	if errors.Is(err, persistence.ErrNotFound) {
		http.Error(w, "Interview not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.logger.Error("Failed to load interview %s: %v", id, err)
		http.Error(w, "Failed to load interview", http.StatusInternalServerError)
		return
	}

	// Only the candidate who took the interview may read it.
	if caller != rec.CandidateID {
		http.Error(w, "Interview not found", http.StatusNotFound)
		return
	}

	report := json.RawMessage(rec.Report)
	if !json.Valid(report) {
		report = json.RawMessage("null")
	}
	s.writeJSON(w, reportResponse{
		CreatedAt:    rec.CreatedAt,
		ID:           rec.ID,
		CandidateID:  rec.CandidateID,
		Type:         rec.Type,
		Difficulty:   rec.Difficulty,
		Transcript:   rec.Transcript,
		Report:       report,
		OverallScore: rec.OverallScore,
	})
}

// handleProvider implements GET /api/provider.
func (s *Server) handleProvider(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, s.health.Status())
}

// handleHealth implements GET /healthz.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	status := http.StatusOK
	response := map[string]any{
		"status":   "ok",
		"version":  version.Version,
		"sessions": s.sessions.Active(),
	}
	if err := s.records.Ping(); err != nil {
		s.logger.Warn("Health check: database unavailable: %v", err)
		response["status"] = "degraded"
		response["database"] = err.Error()
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.logger.Error("Failed to encode health response: %v", err)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response: %v", err)
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}
