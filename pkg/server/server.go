// Package server exposes the unblocker engine over HTTP.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/codeGROOVE-dev/unblocker/pkg/apierr"
	"github.com/codeGROOVE-dev/unblocker/pkg/engine"
	"github.com/codeGROOVE-dev/unblocker/pkg/types"
	"github.com/codeGROOVE-dev/unblocker/pkg/wizard"
)

const requestTimeout = 60 * time.Second

// Server holds the HTTP handlers and their collaborators.
type Server struct {
	engine *engine.Engine
	wizard *wizard.Wizard
}

// New creates a Server.
func New(eng *engine.Engine, wiz *wizard.Wizard) *Server {
	return &Server{engine: eng, wizard: wiz}
}

// Router builds the chi router with all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/healthz", s.handleHealthz)
	r.Post("/analyze", s.handleAnalyze)
	r.Post("/act", s.handleAct)
	r.Post("/wizard", s.handleWizard)

	return r
}

func respond(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("Failed to encode response", "error", err)
	}
}

func (*Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

type analyzeRequest struct {
	PRURL string `json:"pr_url"`
	RunID string `json:"run_id"`
	Mode  string `json:"mode"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.Write(w, apierr.Validation("invalid JSON body"))
		return
	}
	if req.Mode == "" {
		req.Mode = "why"
	}

	switch req.Mode {
	case "scan":
		res, err := s.engine.Scan(r.Context(), req.RunID)
		if err != nil {
			slog.Error("Scan failed", "run_id", req.RunID, "error", err)
			apierr.Write(w, err)
			return
		}
		respond(w, http.StatusOK, res)
	case "why":
		res, err := s.engine.Analyze(r.Context(), req.PRURL, req.RunID)
		if err != nil {
			slog.Error("Analysis failed", "run_id", req.RunID, "pr", req.PRURL, "error", err)
			apierr.Write(w, err)
			return
		}
		respond(w, http.StatusOK, res)
	default:
		apierr.Write(w, apierr.Validation("unknown mode: "+req.Mode))
	}
}

type actRequest struct {
	Plan     *types.ActionPlan `json:"plan,omitempty"`
	RunID    string            `json:"run_id"`
	Approved *bool             `json:"approved,omitempty"`
}

func (s *Server) handleAct(w http.ResponseWriter, r *http.Request) {
	var req actRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.Write(w, apierr.Validation("invalid JSON body"))
		return
	}

	// Absent means approved; explicit false cancels.
	approved := req.Approved == nil || *req.Approved

	res, err := s.engine.Act(r.Context(), req.RunID, approved, req.Plan)
	if err != nil {
		slog.Error("Act failed", "run_id", req.RunID, "error", err)
		apierr.Write(w, err)
		return
	}
	respond(w, http.StatusOK, res)
}

type wizardRequest struct {
	Input    string `json:"input"`
	RunID    string `json:"run_id"`
	DryRunPR string `json:"dry_run_pr_url,omitempty"`
	Activate bool   `json:"activate,omitempty"`
}

func (s *Server) handleWizard(w http.ResponseWriter, r *http.Request) {
	var req wizardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierr.Write(w, apierr.Validation("invalid JSON body"))
		return
	}

	res, err := s.wizard.Run(r.Context(), wizard.Input{
		Text:     req.Input,
		RunID:    req.RunID,
		DryRunPR: req.DryRunPR,
		Activate: req.Activate,
	})
	if err != nil {
		slog.Error("Wizard failed", "run_id", req.RunID, "error", err)
		apierr.Write(w, err)
		return
	}
	respond(w, http.StatusOK, res)
}
