package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/copyleftdev/sigmos/internal/compiler/ast"
	cerrors "github.com/copyleftdev/sigmos/internal/compiler/errors"
	"github.com/copyleftdev/sigmos/internal/history"
	"github.com/copyleftdev/sigmos/internal/runner"
	"github.com/copyleftdev/sigmos/internal/tooling"
	"github.com/copyleftdev/sigmos/internal/transpile"
)

// SourceRequest carries a specification in surface syntax.
type SourceRequest struct {
	Source string `json:"source"`
	File   string `json:"file,omitempty"`
}

// TranspileRequest asks for a specification in another format.
type TranspileRequest struct {
	SourceRequest
	Format string `json:"format"`
}

// ExecuteRequest runs a specification.
type ExecuteRequest struct {
	SourceRequest
	Inputs           map[string]any `json:"inputs,omitempty"`
	CheckConstraints bool           `json:"check_constraints,omitempty"`
}

// ValidateResponse reports the outcome of analysis.
type ValidateResponse struct {
	Valid   bool              `json:"valid"`
	Spec    string            `json:"spec,omitempty"`
	Version string            `json:"version,omitempty"`
	Errors  cerrors.ErrorList `json:"errors,omitempty"`
}

// ExecuteResponse is the execution record plus any classified failures.
type ExecuteResponse struct {
	Execution *history.Record   `json:"execution"`
	Errors    cerrors.ErrorList `json:"errors,omitempty"`
}

var contentTypes = map[transpile.Format]string{
	transpile.FormatJSON: "application/json; charset=utf-8",
	transpile.FormatYAML: "application/yaml; charset=utf-8",
	transpile.FormatTOML: "application/toml; charset=utf-8",
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	renderJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"history": s.history != nil,
		"time":    s.now().UTC(),
	})
}

func (s *Server) handlePlugins(w http.ResponseWriter, r *http.Request) {
	renderJSON(w, http.StatusOK, map[string]any{"plugins": s.catalog})
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req SourceRequest
	if !decode(w, r, &req) {
		return
	}

	spec, errs := analyze(req)
	resp := ValidateResponse{Valid: spec != nil, Errors: errs}
	if spec != nil {
		resp.Spec = spec.Name
		resp.Version = spec.Version.String()
	}

	status := http.StatusOK
	if !resp.Valid {
		status = http.StatusUnprocessableEntity
	}
	renderJSON(w, status, resp)
}

func (s *Server) handleTranspile(w http.ResponseWriter, r *http.Request) {
	var req TranspileRequest
	if !decode(w, r, &req) {
		return
	}

	name := req.Format
	if name == "" {
		name = string(transpile.FormatJSON)
	}
	format, err := transpile.ParseFormat(name)
	if err != nil {
		renderError(w, http.StatusBadRequest, "unsupported_format", err.Error())
		return
	}

	spec, errs := analyze(req.SourceRequest)
	if spec == nil {
		renderInvalidSpec(w, errs)
		return
	}

	data, err := transpile.Transpile(spec, format)
	if err != nil {
		renderError(w, http.StatusInternalServerError, "transpile_failed", err.Error())
		return
	}

	w.Header().Set("Content-Type", contentTypes[format])
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req ExecuteRequest
	if !decode(w, r, &req) {
		return
	}

	spec, errs := analyze(req.SourceRequest)
	if spec == nil {
		renderInvalidSpec(w, errs)
		return
	}
	for name := range req.Inputs {
		if _, ok := spec.Input(name); !ok {
			renderError(w, http.StatusBadRequest, "unknown_input", fmt.Sprintf("unknown input %q", name))
			return
		}
	}

	logger := s.logger.With(zap.String("request_id", GetRequestID(r.Context())))
	record, err := runner.Run(r.Context(), spec, runner.Options{
		Inputs:           req.Inputs,
		CheckConstraints: req.CheckConstraints,
		Plugins:          s.config.Plugins,
		Logger:           logger,
		History:          s.history,
		Keep:             s.config.History.Keep,
		Now:              s.now,
	})
	if record == nil {
		renderError(w, http.StatusInternalServerError, "execution_unavailable", err.Error())
		return
	}

	renderJSON(w, http.StatusOK, ExecuteResponse{Execution: record, Errors: cerrors.Classify(err)})
}

func (s *Server) requireHistory(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.history == nil {
			renderError(w, http.StatusNotFound, "history_disabled", "execution history is not enabled")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			renderError(w, http.StatusBadRequest, "invalid_limit", fmt.Sprintf("invalid limit %q", raw))
			return
		}
		limit = n
	}

	records, err := s.history.List(r.Context(), r.URL.Query().Get("spec"), limit)
	if err != nil {
		renderError(w, http.StatusInternalServerError, "history_failed", err.Error())
		return
	}
	renderJSON(w, http.StatusOK, map[string]any{"executions": records})
}

func (s *Server) handleGetExecution(w http.ResponseWriter, r *http.Request) {
	record, err := s.history.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		renderHistoryError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, record)
}

func (s *Server) handleDeleteExecution(w http.ResponseWriter, r *http.Request) {
	if err := s.history.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		renderHistoryError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func renderHistoryError(w http.ResponseWriter, err error) {
	if errors.Is(err, history.ErrNotFound) {
		renderError(w, http.StatusNotFound, "execution_not_found", err.Error())
		return
	}
	renderError(w, http.StatusInternalServerError, "history_failed", err.Error())
}

func renderInvalidSpec(w http.ResponseWriter, errs cerrors.ErrorList) {
	renderErrorWithDetails(w, http.StatusUnprocessableEntity, "invalid_spec", "specification has errors", errs)
}

// decode reads a JSON body into v, rendering a 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		renderError(w, http.StatusBadRequest, "invalid_request", fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

// analyze parses and type checks the source. The spec is nil when any
// error-severity diagnostic was reported; warnings are returned alongside
// a usable spec.
func analyze(req SourceRequest) (*ast.Spec, cerrors.ErrorList) {
	spec, errs := tooling.Analyze(req.Source)
	if len(errs) > 0 {
		errs = errs.AttachSource(req.File, req.Source)
	}
	if errs.HasErrors() {
		return nil, errs
	}
	return spec, errs
}
