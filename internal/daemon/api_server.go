package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"lexcase/internal/analysis"
	"lexcase/internal/api"
	"lexcase/internal/config"
	"lexcase/internal/logging"
	"lexcase/internal/services"
)

// maxRequestBody bounds an analyze request body. The text limit applies to
// the decoded text; the rest covers summaries and JSON escaping.
const maxRequestBody = 4 << 20

type apiServer struct {
	logger *slog.Logger
	daemon *Daemon
	server *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
	}
	token := cfg.Server.APIToken
	mux := http.NewServeMux()
	mux.HandleFunc("/api/analyze", authMiddleware(token, srv.handleAnalyze))
	mux.HandleFunc("/api/stages", authMiddleware(token, srv.handleStages))
	mux.HandleFunc("/api/cases", authMiddleware(token, srv.handleCases))
	mux.HandleFunc("/api/cases/", authMiddleware(token, srv.handleCase))
	mux.HandleFunc("/api/status", authMiddleware(token, srv.handleStatus))

	// Gemini calls can take the whole client timeout before a reply is written.
	writeTimeout := time.Duration(cfg.Gemini.TimeoutSeconds)*time.Second + 30*time.Second
	srv.server = &http.Server{
		Handler:           srv.withRequestID(mux),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) serve(listener net.Listener) error {
	if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api serve: %w", err)
	}
	return nil
}

func (s *apiServer) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api shutdown: %w", err)
	}
	return nil
}

// withRequestID tags each request context with a correlation identifier.
func (s *apiServer) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(services.WithRequestID(r.Context(), id)))
	})
}

func (s *apiServer) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}
	body := api.AnalyzeRequest{StageIndex: api.InvalidStage}
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := decoder.Decode(&body); err != nil {
		s.writeError(r.Context(), w, api.NewError(http.StatusBadRequest, api.CodeValidation,
			"بيانات الطلب غير صحيحة", map[string]any{"reason": err.Error()}))
		return
	}

	req := analysis.Request{
		Text:              body.Text,
		StageIndex:        int(body.StageIndex),
		StageName:         body.Stage,
		APIKey:            body.APIKey,
		Model:             r.Header.Get(api.ModelHeader),
		PreviousSummaries: body.PreviousSummaries,
		PartyRole:         body.PartyRole,
		FinalPetition:     body.FinalPetition,
	}
	resp, err := s.daemon.engine.Analyze(r.Context(), req)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, api.FromResponse(resp))
}

func (s *apiServer) handleStages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}
	s.writeJSON(w, http.StatusOK, api.StagesResponse{Stages: api.FromCatalog(s.daemon.engine.Catalog())})
}

func (s *apiServer) handleCases(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}
	cases, err := s.daemon.store.ListCases(r.Context())
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	resp := api.CaseListResponse{Cases: make([]api.CaseSummary, 0, len(cases))}
	for _, c := range cases {
		resp.Cases = append(resp.Cases, api.SummarizeCase(c))
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleCase(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}
	ref := strings.TrimPrefix(r.URL.Path, "/api/cases/")
	if ref == "" || strings.Contains(ref, "/") {
		s.notFound(r.Context(), w)
		return
	}
	c, err := s.daemon.store.ResolveCase(r.Context(), ref)
	if err != nil {
		s.writeError(r.Context(), w, err)
		return
	}
	if c == nil {
		s.notFound(r.Context(), w)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromCase(c))
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}
	s.writeJSON(w, http.StatusOK, s.daemon.Status(r.Context()))
}

func (s *apiServer) methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	s.writeJSON(w, http.StatusMethodNotAllowed, api.ErrorResponse{
		Code:    api.CodeMethod,
		Message: "Method not allowed",
		Error:   "Method not allowed",
	})
}

func (s *apiServer) notFound(ctx context.Context, w http.ResponseWriter) {
	s.writeError(ctx, w, api.NewError(http.StatusNotFound, api.CodeNotFound, "القضية غير موجودة", nil))
}

// writeError renders err as an ErrorResponse. Errors that are not
// *api.StatusError become a 500 with a generic message.
func (s *apiServer) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	logger := logging.WithContext(ctx, s.logger)
	var statusErr *api.StatusError
	if !errors.As(err, &statusErr) {
		logging.ErrorWithContext(logger, "request failed", "api_request_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "inspect the daemon log for the failing dependency"),
		)
		s.writeJSON(w, http.StatusInternalServerError, api.ErrorResponse{
			Message: api.Message("", ""),
			Error:   "internal server error",
		})
		return
	}

	status := statusErr.HTTPStatus()
	if status >= http.StatusInternalServerError {
		logging.ErrorWithContext(logger, "analysis request failed", "api_request_failed",
			logging.String("code", string(statusErr.Code)),
			logging.Error(statusErr),
		)
	} else {
		logger.Debug("request rejected",
			logging.Int("status", status),
			logging.String("code", string(statusErr.Code)),
		)
	}
	if status == http.StatusTooManyRequests {
		if seconds, ok := statusErr.Details["retryAfter"].(int); ok {
			w.Header().Set("Retry-After", strconv.Itoa(seconds))
		}
	}
	s.writeJSON(w, status, statusErr.Response())
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	if err := writeJSON(w, status, payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if payload == nil {
		return nil
	}
	return json.NewEncoder(w).Encode(payload)
}
