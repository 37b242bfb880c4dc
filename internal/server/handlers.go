package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"bizplan/internal/core"
	"bizplan/internal/cost"
	"bizplan/internal/logger"
	"bizplan/internal/section"

	"github.com/go-chi/chi/v5"
)

// maxBodyBytes bounds request bodies; profiles with attached documents are
// the largest payloads.
const maxBodyBytes = 1 << 20

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// StatusResponse is returned by /api/status.
type StatusResponse struct {
	Uptime        string `json:"uptime"`
	Model         string `json:"model"`
	UsageTracking bool   `json:"usage_tracking"`
}

// SectionRequest is the body of POST /api/sections/{name}.
type SectionRequest struct {
	State           core.SectionState `json:"state"`
	WordCount       int               `json:"word_count,omitempty"`
	LengthType      string            `json:"length_type,omitempty"`
	IncludeResearch *bool             `json:"include_research,omitempty"` // default true
}

// EstimateRequest is the body of POST /api/estimate.
type EstimateRequest struct {
	Model      string            `json:"model,omitempty"`
	Sections   []string          `json:"sections"`
	State      core.SectionState `json:"state"`
	WordCount  int               `json:"word_count,omitempty"`
	LengthType string            `json:"length_type,omitempty"`
}

// EstimateResponse is returned by /api/estimate.
type EstimateResponse struct {
	Model        string             `json:"model"`
	KnownModel   bool               `json:"known_model"`
	InputTokens  int                `json:"input_tokens"`
	OutputTokens int                `json:"output_tokens"`
	TotalCost    float64            `json:"total_cost_usd"`
	Sections     map[string]float64 `json:"sections"`
	Warning      string             `json:"warning,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"usage": "disabled"}
	if s.usage != nil {
		if _, err := s.usage.Stats("health-check"); err != nil {
			checks["usage"] = "error"
			respondJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unhealthy", Checks: checks})
			return
		}
		checks["usage"] = "ok"
	}
	respondJSON(w, http.StatusOK, HealthResponse{Status: "ok", Checks: checks})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, StatusResponse{
		Uptime:        time.Since(s.started).Round(time.Second).String(),
		Model:         s.model,
		UsageTracking: s.usage != nil,
	})
}

func (s *Server) handleLengthTypes(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, section.LengthTypes())
}

// handleGenerateSection always answers 200 with a single assistant message
// once the request is well formed; generation failures are in the message.
func (s *Server) handleGenerateSection(w http.ResponseWriter, r *http.Request) {
	name, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil || strings.TrimSpace(name) == "" {
		respondError(w, http.StatusBadRequest, "invalid section name")
		return
	}

	var req SectionRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	opts := section.Options{
		WordCount:       req.WordCount,
		LengthType:      req.LengthType,
		IncludeResearch: req.IncludeResearch == nil || *req.IncludeResearch,
	}
	resp := s.sections.GenerateSection(r.Context(), name, req.State, opts)
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	var req EstimateRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Sections) == 0 {
		respondError(w, http.StatusBadRequest, "sections must not be empty")
		return
	}

	model := req.Model
	if model == "" {
		model = s.model
	}
	req.State.ApplyDefaults()
	lengthType := req.LengthType
	if lengthType == "" {
		lengthType = req.State.LengthType
	}

	plans := make([]cost.SectionPlan, 0, len(req.Sections))
	for _, name := range req.Sections {
		plans = append(plans, cost.SectionPlan{
			Name:      name,
			Prompt:    section.BuildPrompt(name, req.State),
			WordCount: section.ResolveWordCount(req.WordCount, lengthType),
		})
	}
	estimate := cost.EstimatePlanCost(model, plans)

	perSection := make(map[string]float64, len(estimate.Sections))
	for _, e := range estimate.Sections {
		perSection[e.Name] = e.TotalCost
	}
	respondJSON(w, http.StatusOK, EstimateResponse{
		Model:        estimate.Model,
		KnownModel:   estimate.KnownModel,
		InputTokens:  estimate.TotalInputTokens,
		OutputTokens: estimate.TotalOutputTokens,
		TotalCost:    estimate.TotalCost,
		Sections:     perSection,
		Warning:      estimate.RateLimitWarning,
	})
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	if s.usage == nil {
		respondError(w, http.StatusNotFound, "usage tracking is disabled")
		return
	}
	stats, err := s.usage.Stats(chi.URLParam(r, "session"))
	if err != nil {
		logger.Error("Failed to read usage", err)
		respondError(w, http.StatusInternalServerError, "failed to read usage")
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errors.New("request body too large")
		}
		return errors.New("invalid JSON body: " + err.Error())
	}
	return nil
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(data); err != nil {
		logger.Error("Failed to encode JSON response", err)
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, errorResponse{Error: msg})
}
