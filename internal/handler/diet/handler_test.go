package diet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

type stubPlanner struct {
	plan json.RawMessage
	err  error
}

func (s *stubPlanner) Plan(_ context.Context, _ json.RawMessage) (json.RawMessage, error) {
	return s.plan, s.err
}

func setupRouter(planner Planner) *chi.Mux {
	r := chi.NewRouter()
	New(planner).RegisterRoutes(r)
	return r
}

func TestPlanReturnsBackendPlan(t *testing.T) {
	r := setupRouter(&stubPlanner{plan: json.RawMessage(`{"plan":"ok"}`)})

	req := httptest.NewRequest(http.MethodPost, "/diet-plan", bytes.NewReader([]byte(`{"name":"Rex"}`)))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if resp.Body.String() != `{"plan":"ok"}` {
		t.Fatalf("unexpected body: %s", resp.Body.String())
	}
}

func TestPlanInvalidBody(t *testing.T) {
	r := setupRouter(&stubPlanner{})

	req := httptest.NewRequest(http.MethodPost, "/diet-plan", bytes.NewReader([]byte("not json")))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestPlanBackendFailure(t *testing.T) {
	r := setupRouter(&stubPlanner{err: errors.New("planner down")})

	req := httptest.NewRequest(http.MethodPost, "/diet-plan", bytes.NewReader([]byte(`{}`)))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.Code)
	}
}
