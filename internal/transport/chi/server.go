package chi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/indexstager/internal/domain"
	"github.com/kailas-cloud/indexstager/internal/domain/alias"
	"github.com/kailas-cloud/indexstager/internal/logger"
	healthuc "github.com/kailas-cloud/indexstager/internal/usecase/health"
	staginguc "github.com/kailas-cloud/indexstager/internal/usecase/staging"
)

// ErrorCode identifies an API error class.
type ErrorCode string

// Error codes.
const (
	CodeBadRequest        ErrorCode = "bad_request"
	CodeUnauthorized      ErrorCode = "unauthorized"
	CodeNotFound          ErrorCode = "not_found"
	CodeAlreadyExists     ErrorCode = "already_exists"
	CodeInvalidConfig     ErrorCode = "invalid_config"
	CodeInvalidName       ErrorCode = "invalid_name"
	CodeCorruptState      ErrorCode = "corrupt_state"
	CodeUnresolvableStage ErrorCode = "unresolvable_stage"
	CodeInternalError     ErrorCode = "internal_error"
)

const maxRequestBodyBytes = 1 << 16

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Index   string    `json:"index,omitempty"`
}

// StageRequest is the body of POST /indexes/{name}/stage.
type StageRequest struct {
	TempIndex string `json:"temp_index"`
}

// PromoteRequest is the body of POST /indexes/{name}/promote.
type PromoteRequest struct {
	LiveName string `json:"live_name"`
}

// NamesResponse describes a session's derived names.
type NamesResponse struct {
	LogicalName  string `json:"logical_name"`
	StagingAlias string `json:"staging_alias"`
	TempIndex    string `json:"temp_index"`
	// Superseded lists indexes a stage unbound from the staging alias.
	Superseded []string `json:"superseded,omitempty"`
}

// ResolveResponse describes what a name points at.
type ResolveResponse struct {
	Name     string         `json:"name"`
	Exists   bool           `json:"exists"`
	Bindings alias.Bindings `json:"bindings"`
	Indexes  []string       `json:"indexes"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the staging admin API.
type Server struct {
	staging       *staginguc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(staging *staginguc.Service, health *healthuc.Service, logger *zap.Logger) *Server {
	s := &Server{
		staging: staging,
		health:  health,
		logger:  logger,
	}
	s.errorHandlers = []errorHandler{
		corruptStateHandler,
		unresolvableStageHandler,
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, CodeNotFound),
		sentinelHandler(domain.ErrAlreadyExists, http.StatusConflict, CodeAlreadyExists),
		sentinelHandler(domain.ErrInvalidName, http.StatusBadRequest, CodeInvalidName),
		sentinelHandler(domain.ErrInvalidConfig, http.StatusBadRequest, CodeInvalidConfig),
	}
	return s
}

// Register mounts the API routes on r.
func (s *Server) Register(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Route("/indexes/{name}", func(r chi.Router) {
		r.Post("/names", s.DeriveNames)
		r.Post("/stage", s.Stage)
		r.Post("/promote", s.Promote)
		r.Get("/resolve", s.Resolve)
	})
}

// DeriveNames handles POST /indexes/{name}/names: a fresh temp index name for a loader to build.
func (s *Server) DeriveNames(w http.ResponseWriter, r *http.Request) {
	sess, err := s.staging.NewSession(chi.URLParam(r, "name"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, namesResponse(sess))
}

// Stage handles POST /indexes/{name}/stage.
func (s *Server) Stage(w http.ResponseWriter, r *http.Request) {
	var req StageRequest
	if !decodeOptionalBody(w, r, &req) {
		return
	}

	name := chi.URLParam(r, "name")
	var (
		sess *staginguc.Session
		err  error
	)
	if req.TempIndex != "" {
		sess, err = s.staging.ResumeSession(name, req.TempIndex)
	} else {
		sess, err = s.staging.NewSession(name)
	}
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	if err := sess.AliasStageToTemp(r.Context()); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, namesResponse(sess))
}

// Promote handles POST /indexes/{name}/promote.
func (s *Server) Promote(w http.ResponseWriter, r *http.Request) {
	var req PromoteRequest
	if !decodeOptionalBody(w, r, &req) {
		return
	}

	sess, err := s.staging.AttachSession(chi.URLParam(r, "name"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	rep, err := sess.Promote(r.Context(), req.LiveName)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// Resolve handles GET /indexes/{name}/resolve.
func (s *Server) Resolve(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	b, exists, err := s.staging.Resolve(r.Context(), name)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ResolveResponse{
		Name:     name,
		Exists:   exists,
		Bindings: b,
		Indexes:  b.Indexes(),
	})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	status := http.StatusOK
	if report.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func namesResponse(sess *staginguc.Session) NamesResponse {
	n := sess.Names()
	return NamesResponse{
		LogicalName:  n.Logical(),
		StagingAlias: n.StagingAlias(),
		TempIndex:    n.TempIndex(),
		Superseded:   sess.Superseded(),
	}
}

// decodeOptionalBody decodes a JSON body into v. An empty body leaves v zero.
func decodeOptionalBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrNotFound,
		domain.ErrAlreadyExists,
		domain.ErrInvalidName,
		domain.ErrInvalidConfig,
		domain.ErrCorruptState,
		domain.ErrUnresolvableStage,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// corruptStateHandler reports the live name found aliased to itself.
func corruptStateHandler(w http.ResponseWriter, err error, _ string) bool {
	var ce *domain.CorruptStateError
	if !errors.As(err, &ce) {
		return false
	}
	writeJSON(w, http.StatusConflict, ErrorResponse{Code: CodeCorruptState, Message: ce.Error(), Index: ce.Name})
	return true
}

// unresolvableStageHandler reports the staging alias that bound no temp index.
func unresolvableStageHandler(w http.ResponseWriter, err error, _ string) bool {
	var ue *domain.UnresolvableStageError
	if !errors.As(err, &ue) {
		return false
	}
	writeJSON(w, http.StatusConflict, ErrorResponse{Code: CodeUnresolvableStage, Message: ue.Error(), Index: ue.Alias})
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			log.Warn("domain error", zap.Error(err))
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
