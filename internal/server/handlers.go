package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jonathan/skillsense/internal/observability"
	"github.com/jonathan/skillsense/internal/pipeline"
	"github.com/jonathan/skillsense/internal/skills"
	"github.com/jonathan/skillsense/internal/types"
)

// ExtractRequest is the request body for POST /v1/extract
type ExtractRequest struct {
	Text      string   `json:"text"`
	Mode      string   `json:"mode,omitempty"`
	Threshold *float64 `json:"threshold,omitempty" validate:"omitempty,gte=0,lte=1"`
	TopK      int      `json:"top_k,omitempty" validate:"gte=0,lte=50"`
}

// AnalyzeRequest is the request body for POST /v1/analyze
type AnalyzeRequest struct {
	ExtractRequest
	Role string `json:"role" validate:"required"`
}

// MatchView is the wire form of one retained match.
type MatchView struct {
	Phrase       string              `json:"phrase"`
	SkillID      string              `json:"skill_id"`
	DisplayName  string              `json:"display_name"`
	Score        float64             `json:"score"`
	Method       types.Mode          `json:"method"`
	Alternatives []types.ScoredSkill `json:"alternatives,omitempty"`
}

// AnalysisResponse is returned by the extract and analyze endpoints.
type AnalysisResponse struct {
	RunID          string                `json:"run_id"`
	Skills         types.ProfileSkillSet `json:"skills"`
	Matches        []MatchView           `json:"matches"`
	RequestedMode  types.Mode            `json:"requested_mode"`
	EffectiveMode  types.Mode            `json:"effective_mode"`
	Degraded       bool                  `json:"degraded"`
	DegradedReason string                `json:"degraded_reason,omitempty"`
	Report         *types.GapReport      `json:"report,omitempty"`
	Summary        string                `json:"summary,omitempty"`
	DurationMS     int64                 `json:"duration_ms"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	ont := s.engine.Ontology()
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"status":           "ok",
		"ontology_version": ont.Version(),
		"skills":           len(ont.SkillIDs()),
		"roles":            len(s.engine.Roles()),
	})
}

// handleListRoles lists roles, optionally filtered by ?category=.
func (s *Server) handleListRoles(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	roles := make([]types.Role, 0)
	for _, role := range s.engine.Roles() {
		if category != "" && !strings.EqualFold(string(role.Category), category) {
			continue
		}
		roles = append(roles, role)
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"roles": roles, "count": len(roles)})
}

func (s *Server) handleGetRole(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	role, ok := s.engine.Ontology().Role(id)
	if !ok {
		s.errorResponse(w, http.StatusNotFound, fmt.Sprintf("%v: %q", pipeline.ErrUnknownRole, id))
		return
	}
	s.jsonResponse(w, http.StatusOK, role)
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	var req ExtractRequest
	if err := s.decode(w, r, &req); err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	preq, err := s.pipelineRequest(req, "")
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	a, err := s.engine.Extract(r.Context(), preq)
	if err != nil {
		s.fail(w, "extraction failed", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, NewAnalysisResponse(a))
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := s.decode(w, r, &req); err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	preq, err := s.pipelineRequest(req.ExtractRequest, req.Role)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}

	a, err := s.engine.Analyze(r.Context(), preq)
	if err != nil {
		s.fail(w, "analysis failed", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, NewAnalysisResponse(a))
}

// handleAnalyzeStream runs an analysis and streams its stages as they finish.
func (s *Server) handleAnalyzeStream(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := s.decode(w, r, &req); err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	preq, err := s.pipelineRequest(req.ExtractRequest, req.Role)
	if err != nil {
		s.errorResponse(w, HTTPStatus(err), err.Error())
		return
	}
	if _, ok := s.engine.Ontology().Role(req.Role); !ok {
		s.errorResponse(w, http.StatusNotFound, fmt.Sprintf("%v: %q", pipeline.ErrUnknownRole, req.Role))
		return
	}

	stream, err := newEventStream(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	log := s.logger.With("role", req.Role)
	preq.OnProgress = func(ev pipeline.ProgressEvent) {
		if err := stream.progress(ev); err != nil {
			log.Warn("failed to write step event", "step", ev.Step, "error", err)
		}
	}

	a, err := s.engine.Analyze(r.Context(), preq)
	if err != nil {
		log.Error("streamed analysis failed", "error", err)
		if werr := stream.fail(err); werr != nil {
			log.Warn("failed to write error event", "error", werr)
		}
		return
	}
	if err := stream.complete(a); err != nil {
		log.Warn("failed to write complete event", "error", err)
	}
}

// decode reads a JSON body and validates its struct tags.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		return &ErrValidation{Field: "body", Message: "invalid request body: " + err.Error()}
	}
	if err := s.validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return &ErrValidation{Field: fe.Field(), Message: fmt.Sprintf("failed %s%s", fe.Tag(), param(fe.Param()))}
		}
		return &ErrValidation{Field: "body", Message: err.Error()}
	}
	return nil
}

func param(p string) string {
	if p == "" {
		return ""
	}
	return "=" + p
}

// pipelineRequest starts from the engine defaults and applies the request overrides.
// Text that is entirely absent is rejected; whitespace-only text is a valid empty document.
func (s *Server) pipelineRequest(req ExtractRequest, roleID string) (pipeline.Request, error) {
	if req.Text == "" {
		return pipeline.Request{}, types.ErrEmptyInput
	}

	opts := s.engine.Defaults()
	if req.Mode != "" {
		mode, err := types.ParseMode(req.Mode)
		if err != nil {
			return pipeline.Request{}, &ErrValidation{Field: "mode", Message: err.Error()}
		}
		opts.Mode = mode
	}
	if req.Threshold != nil {
		opts.Threshold = *req.Threshold
	}
	if req.TopK > 0 {
		opts.TopK = req.TopK
	}

	return pipeline.Request{Text: req.Text, RoleID: roleID, Options: opts}, nil
}

// fail maps an engine error to a response. Server-side failures are logged, client errors are not.
func (s *Server) fail(w http.ResponseWriter, msg string, err error) {
	status := HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(msg, "error", err)
	}
	s.errorResponse(w, status, err.Error())
}

// NewAnalysisResponse flattens an analysis into its wire form.
func NewAnalysisResponse(a *pipeline.Analysis) AnalysisResponse {
	x := a.Extraction
	resp := AnalysisResponse{
		RunID:          a.RunID.String(),
		Skills:         x.Skills,
		Matches:        matchViews(x),
		RequestedMode:  x.RequestedMode,
		EffectiveMode:  x.EffectiveMode,
		Degraded:       x.Degraded,
		DegradedReason: x.DegradedReason,
		Report:         a.Report,
		DurationMS:     a.Duration.Milliseconds(),
	}
	if a.Report != nil {
		resp.Summary = observability.Summary(a.Report, x.Skills)
	}
	return resp
}

func matchViews(x *skills.Result) []MatchView {
	views := make([]MatchView, 0, len(x.Matches))
	for _, m := range x.Matches {
		if !m.Matched() {
			continue
		}
		views = append(views, MatchView{
			Phrase:       m.Phrase.Text,
			SkillID:      m.Skill.ID,
			DisplayName:  m.Skill.DisplayName,
			Score:        m.Score,
			Method:       m.Method,
			Alternatives: m.Alternatives,
		})
	}
	return views
}
