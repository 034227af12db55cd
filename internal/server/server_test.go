package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonathan/skillsense/internal/ontology"
	"github.com/jonathan/skillsense/internal/pipeline"
	"github.com/jonathan/skillsense/internal/server/ratelimit"
	"github.com/jonathan/skillsense/internal/skills"
	"github.com/jonathan/skillsense/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, rl ratelimit.Config) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ont, err := ontology.LoadFile(filepath.FromSlash("../ontology/testdata/ontology.json"))
	require.NoError(t, err)
	engine, err := pipeline.NewEngine(pipeline.Options{
		Ontology: ont,
		Defaults: skills.DefaultOptions(),
		Logger:   logger,
	})
	require.NoError(t, err)
	return New(engine, Config{Port: 0, RateLimit: rl, Logger: logger})
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t, ratelimit.Config{})

	w := do(t, s, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeBody[map[string]any](t, w)
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, "test", resp["ontology_version"])
	assert.EqualValues(t, 9, resp["skills"])
	assert.EqualValues(t, 3, resp["roles"])
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestListRoles(t *testing.T) {
	s := newTestServer(t, ratelimit.Config{})

	w := do(t, s, http.MethodGet, "/v1/roles", "")
	require.Equal(t, http.StatusOK, w.Code)
	all := decodeBody[struct {
		Roles []types.Role `json:"roles"`
		Count int          `json:"count"`
	}](t, w)
	assert.Equal(t, 3, all.Count)
	assert.Equal(t, "BackendEngineer", all.Roles[0].ID)

	w = do(t, s, http.MethodGet, "/v1/roles?category=tech", "")
	tech := decodeBody[struct {
		Count int `json:"count"`
	}](t, w)
	assert.Equal(t, 2, tech.Count)
}

func TestGetRole(t *testing.T) {
	s := newTestServer(t, ratelimit.Config{})

	w := do(t, s, http.MethodGet, "/v1/roles/DataScientist", "")
	require.Equal(t, http.StatusOK, w.Code)
	role := decodeBody[types.Role](t, w)
	assert.Equal(t, types.CategoryTech, role.Category)
	assert.Len(t, role.RequiredSkills, 4)

	w = do(t, s, http.MethodGet, "/v1/roles/Astronaut", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExtractEndpoint(t *testing.T) {
	s := newTestServer(t, ratelimit.Config{})

	w := do(t, s, http.MethodPost, "/v1/extract", `{"text": "Built services in Golang and Docker"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decodeBody[AnalysisResponse](t, w)
	assert.Equal(t, []string{"docker", "go"}, resp.Skills.IDs())
	assert.Nil(t, resp.Report)
	assert.Empty(t, resp.Summary)
	assert.Equal(t, types.ModeFast, resp.EffectiveMode)
	require.Len(t, resp.Matches, 2)
	assert.Equal(t, "docker", resp.Matches[0].SkillID)
	assert.Equal(t, "Go", resp.Matches[1].DisplayName)
	assert.Equal(t, 1.0, resp.Matches[1].Score)
}

func TestAnalyzeEndpoint(t *testing.T) {
	s := newTestServer(t, ratelimit.Config{})

	body := `{"text": "Python, pandas and SQL every day", "role": "DataScientist"}`
	w := do(t, s, http.MethodPost, "/v1/analyze", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decodeBody[AnalysisResponse](t, w)
	require.NotNil(t, resp.Report)
	assert.Equal(t, []string{"pandas", "python", "sql"}, resp.Report.Matched)
	assert.Equal(t, []string{"tensorflow"}, resp.Report.Missing)
	assert.InDelta(t, 2.5/3.4, resp.Report.CoverageRatio, 1e-9)
	assert.Equal(t, "Role: DataScientist\nDetected skills: pandas, python, sql\nMissing: tensorflow\nCoverage: 74%", resp.Summary)
	assert.NotEmpty(t, resp.RunID)
}

func TestAnalyzeEndpoint_SemanticWithoutIndexDegrades(t *testing.T) {
	s := newTestServer(t, ratelimit.Config{})

	body := `{"text": "python", "role": "DataScientist", "mode": "SEMANTIC", "threshold": 0.7}`
	w := do(t, s, http.MethodPost, "/v1/analyze", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decodeBody[AnalysisResponse](t, w)
	assert.Equal(t, types.ModeSemantic, resp.RequestedMode)
	assert.Equal(t, types.ModeFast, resp.EffectiveMode)
	assert.True(t, resp.Degraded)
	assert.NotEmpty(t, resp.DegradedReason)
	assert.Equal(t, []string{"python"}, resp.Skills.IDs())
}

func TestAnalyzeEndpoint_WhitespaceTextIsEmptyProfile(t *testing.T) {
	s := newTestServer(t, ratelimit.Config{})

	w := do(t, s, http.MethodPost, "/v1/analyze", `{"text": "   ", "role": "DataScientist"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decodeBody[AnalysisResponse](t, w)
	assert.Empty(t, resp.Report.Matched)
	assert.Len(t, resp.Report.Missing, 4)
	assert.Zero(t, resp.Report.CoverageRatio)
}

func TestRequestErrors(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		body     string
		wantCode int
		wantErr  string
	}{
		{"invalid json", "/v1/analyze", `{not json`, http.StatusBadRequest, "invalid request body"},
		{"missing text", "/v1/extract", `{"mode": "fast"}`, http.StatusBadRequest, types.ErrEmptyInput.Error()},
		{"missing role", "/v1/analyze", `{"text": "python"}`, http.StatusBadRequest, "Role"},
		{"unknown role", "/v1/analyze", `{"text": "python", "role": "Astronaut"}`, http.StatusNotFound, "unknown role"},
		{"unknown mode", "/v1/extract", `{"text": "python", "mode": "turbo"}`, http.StatusBadRequest, "unknown mode"},
		{"threshold above one", "/v1/extract", `{"text": "python", "threshold": 1.5}`, http.StatusBadRequest, "Threshold"},
		{"top_k too large", "/v1/extract", `{"text": "python", "top_k": 500}`, http.StatusBadRequest, "TopK"},
	}
	s := newTestServer(t, ratelimit.Config{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, s, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.wantCode, w.Code)
			resp := decodeBody[map[string]string](t, w)
			assert.Contains(t, resp["error"], tt.wantErr)
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s := newTestServer(t, ratelimit.Config{})
	w := do(t, s, http.MethodGet, "/v1/analyze", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, ratelimit.Config{})
	w := do(t, s, http.MethodOptions, "/v1/analyze", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestIDIsEchoed(t *testing.T) {
	s := newTestServer(t, ratelimit.Config{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, ratelimit.Config{
		Enabled: true,
		Default: ratelimit.Rule{Limit: 100, Window: time.Minute},
		Rules: []ratelimit.Rule{
			{Method: "POST", Path: "/v1/extract", Limit: 1, Window: time.Hour, Burst: 1},
		},
	})

	w := do(t, s, http.MethodPost, "/v1/extract", `{"text": "python"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	w = do(t, s, http.MethodPost, "/v1/extract", `{"text": "python"}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "3600", w.Header().Get("Retry-After"))

	// Other endpoints and health checks are unaffected
	assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/v1/roles", "").Code)
	for range 3 {
		assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/health", "").Code)
	}
}

func TestAnalyzeStream(t *testing.T) {
	s := newTestServer(t, ratelimit.Config{})

	w := do(t, s, http.MethodPost, "/v1/analyze/stream", `{"text": "Python and TF2", "role": "DataScientist"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	events := parseSSE(t, w.Body.Bytes())
	require.Len(t, events, 3)
	assert.Equal(t, "step", events[0].name)
	assert.Equal(t, "step", events[1].name)
	assert.Equal(t, "complete", events[2].name)
	assert.Equal(t, []string{"1", "2", "3"}, []string{events[0].id, events[1].id, events[2].id})

	var step pipeline.ProgressEvent
	require.NoError(t, json.Unmarshal(events[0].data, &step))
	assert.Equal(t, pipeline.StepExtract, step.Step)
	assert.Nil(t, step.Content)

	var done AnalysisResponse
	require.NoError(t, json.Unmarshal(events[2].data, &done))
	assert.Equal(t, []string{"python", "tensorflow"}, done.Report.Matched)
}

func TestAnalyzeStream_UnknownRole(t *testing.T) {
	s := newTestServer(t, ratelimit.Config{})
	w := do(t, s, http.MethodPost, "/v1/analyze/stream", `{"text": "python", "role": "Astronaut"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

type sseEvent struct {
	id   string
	name string
	data []byte
}

func parseSSE(t *testing.T, body []byte) []sseEvent {
	t.Helper()
	var events []sseEvent
	for _, block := range bytes.Split(bytes.TrimSpace(body), []byte("\n\n")) {
		var ev sseEvent
		for _, line := range bytes.Split(block, []byte("\n")) {
			switch {
			case bytes.HasPrefix(line, []byte("id: ")):
				ev.id = string(bytes.TrimPrefix(line, []byte("id: ")))
			case bytes.HasPrefix(line, []byte("event: ")):
				ev.name = string(bytes.TrimPrefix(line, []byte("event: ")))
			case bytes.HasPrefix(line, []byte("data: ")):
				ev.data = bytes.TrimPrefix(line, []byte("data: "))
			}
		}
		events = append(events, ev)
	}
	return events
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&ErrValidation{Field: "text", Message: "required"}, http.StatusBadRequest},
		{fmt.Errorf("wrapped: %w", types.ErrEmptyInput), http.StatusBadRequest},
		{fmt.Errorf("%w: %q", pipeline.ErrUnknownRole, "x"), http.StatusNotFound},
		{fmt.Errorf("skill extraction failed: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{context.Canceled, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}
