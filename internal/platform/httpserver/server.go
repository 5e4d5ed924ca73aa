package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	quadraticvoting "quadvote/contexts/governance/quadratic-voting"
	domainerrors "quadvote/contexts/governance/quadratic-voting/domain/errors"
	httptransport "quadvote/contexts/governance/quadratic-voting/transport/http"

	httpSwagger "github.com/swaggo/http-swagger"
	_ "quadvote/internal/platform/httpserver/docs"
)

const maxBodyBytes = 1 << 20

type Server struct {
	mux    *http.ServeMux
	logger *slog.Logger
	addr   string
	ledger quadraticvoting.Module
	srv    *http.Server
}

func New(ledger quadraticvoting.Module, logger *slog.Logger, addr string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:    http.NewServeMux(),
		logger: logger,
		addr:   addr,
		ledger: ledger,
	}
	s.registerRoutes()
	s.srv = &http.Server{
		Addr:              s.addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server stopping",
		"event", "http_server_stopping",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return s.srv.Shutdown(ctx)
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	s.mux.HandleFunc("POST /v1/daos", s.handleCreateDAO)
	s.mux.HandleFunc("GET /v1/daos", s.handleGetDAOByAuthority)
	s.mux.HandleFunc("GET /v1/daos/{dao_id}", s.handleGetDAO)
	s.mux.HandleFunc("POST /v1/daos/{dao_id}/proposals", s.handleCreateProposal)
	s.mux.HandleFunc("GET /v1/daos/{dao_id}/proposals", s.handleListProposals)
	s.mux.HandleFunc("GET /v1/daos/{dao_id}/proposals/{sequence}", s.handleGetProposal)
	s.mux.HandleFunc("GET /v1/daos/{dao_id}/proposals/{sequence}/result", s.handleProposalResult)
	s.mux.HandleFunc("POST /v1/daos/{dao_id}/proposals/{sequence}/votes", s.handleCastVote)
	s.mux.HandleFunc("GET /v1/daos/{dao_id}/proposals/{sequence}/votes", s.handleListVotes)
	s.mux.HandleFunc("GET /v1/daos/{dao_id}/proposals/{sequence}/votes/{voter_id}", s.handleGetVote)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateDAO(w http.ResponseWriter, r *http.Request) {
	credential, ok := requireCredential(w, r)
	if !ok {
		return
	}
	var req httptransport.CreateDAORequest
	if !decodeBody(w, r, &req) {
		return
	}

	resp, err := s.ledger.Handler.CreateDAOHandler(r.Context(), credential, req)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetDAOByAuthority(w http.ResponseWriter, r *http.Request) {
	authority := r.URL.Query().Get("authority")
	if strings.TrimSpace(authority) == "" {
		writeError(w, http.StatusBadRequest, "missing_authority", "authority query parameter is required")
		return
	}
	resp, err := s.ledger.Handler.GetDAOByAuthorityHandler(r.Context(), authority)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetDAO(w http.ResponseWriter, r *http.Request) {
	resp, err := s.ledger.Handler.GetDAOHandler(r.Context(), r.PathValue("dao_id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateProposal(w http.ResponseWriter, r *http.Request) {
	credential, ok := requireCredential(w, r)
	if !ok {
		return
	}
	var req httptransport.CreateProposalRequest
	if !decodeBody(w, r, &req) {
		return
	}

	resp, err := s.ledger.Handler.CreateProposalHandler(r.Context(), credential, r.PathValue("dao_id"), req)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleListProposals(w http.ResponseWriter, r *http.Request) {
	resp, err := s.ledger.Handler.ListProposalsHandler(r.Context(), r.PathValue("dao_id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetProposal(w http.ResponseWriter, r *http.Request) {
	sequence, ok := parseSequence(w, r)
	if !ok {
		return
	}
	resp, err := s.ledger.Handler.GetProposalHandler(r.Context(), r.PathValue("dao_id"), sequence)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleProposalResult(w http.ResponseWriter, r *http.Request) {
	sequence, ok := parseSequence(w, r)
	if !ok {
		return
	}
	resp, err := s.ledger.Handler.ProposalResultHandler(r.Context(), r.PathValue("dao_id"), sequence)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCastVote(w http.ResponseWriter, r *http.Request) {
	credential, ok := requireCredential(w, r)
	if !ok {
		return
	}
	sequence, ok := parseSequence(w, r)
	if !ok {
		return
	}
	var req httptransport.CastVoteRequest
	if !decodeBody(w, r, &req) {
		return
	}

	resp, err := s.ledger.Handler.CastVoteHandler(r.Context(), credential, r.PathValue("dao_id"), sequence, req)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleListVotes(w http.ResponseWriter, r *http.Request) {
	sequence, ok := parseSequence(w, r)
	if !ok {
		return
	}
	resp, err := s.ledger.Handler.ListVotesHandler(r.Context(), r.PathValue("dao_id"), sequence)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetVote(w http.ResponseWriter, r *http.Request) {
	sequence, ok := parseSequence(w, r)
	if !ok {
		return
	}
	resp, err := s.ledger.Handler.GetVoteHandler(r.Context(), r.PathValue("dao_id"), sequence, r.PathValue("voter_id"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domainerrors.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, domainerrors.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "unauthenticated", domainerrors.ErrUnauthenticated.Error())
	case errors.Is(err, domainerrors.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, domainerrors.ErrDAONotFound):
		writeError(w, http.StatusNotFound, "dao_not_found", err.Error())
	case errors.Is(err, domainerrors.ErrProposalNotFound):
		writeError(w, http.StatusNotFound, "proposal_not_found", err.Error())
	case errors.Is(err, domainerrors.ErrVoteNotFound):
		writeError(w, http.StatusNotFound, "vote_not_found", err.Error())
	case errors.Is(err, domainerrors.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domainerrors.ErrDAOAlreadyExists):
		writeError(w, http.StatusConflict, "dao_already_exists", err.Error())
	case errors.Is(err, domainerrors.ErrDuplicateVote):
		writeError(w, http.StatusConflict, "duplicate_vote", err.Error())
	case errors.Is(err, domainerrors.ErrOverflow):
		writeError(w, http.StatusUnprocessableEntity, "overflow", err.Error())
	case errors.Is(err, domainerrors.ErrBalanceUnavailable):
		writeError(w, http.StatusFailedDependency, "balance_unavailable", domainerrors.ErrBalanceUnavailable.Error())
	default:
		s.logger.Error("ledger request failed",
			"event", "http_ledger_request_failed",
			"module", "internal/platform/httpserver",
			"layer", "platform",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err.Error(),
		)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

// requireCredential reads a bearer token, falling back to X-User-Id for
// deployments that authenticate at a trusted gateway.
func requireCredential(w http.ResponseWriter, r *http.Request) (string, bool) {
	credential := bearerToken(r.Header.Get("Authorization"))
	if credential == "" {
		credential = strings.TrimSpace(r.Header.Get("X-User-Id"))
	}
	if credential == "" {
		writeError(w, http.StatusUnauthorized, "missing_credential", "Authorization bearer token is required")
		return "", false
	}
	return credential, true
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func parseSequence(w http.ResponseWriter, r *http.Request) (uint32, bool) {
	value, err := strconv.ParseUint(r.PathValue("sequence"), 10, 32)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_sequence", "sequence must be an unsigned 32-bit integer")
		return 0, false
	}
	return uint32(value), true
}

func decodeBody(w http.ResponseWriter, r *http.Request, target any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return false
	}
	return true
}

func writeError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, httptransport.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
