package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// DietPlannerClient calls the external diet planner backend. The pet
// profile and the resulting plan are passed through untouched; their
// shapes belong to the planner service.
type DietPlannerClient struct {
	baseURL string
	http    *http.Client
}

// NewDietPlannerClient creates a client for the given base URL.
func NewDietPlannerClient(baseURL string, client *http.Client) *DietPlannerClient {
	return &DietPlannerClient{baseURL: baseURL, http: client}
}

// Plan submits a pet profile and returns the generated diet plan JSON.
func (c *DietPlannerClient) Plan(ctx context.Context, profile json.RawMessage) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/dietplanner/generate-diet-plan", bytes.NewReader(profile))
	if err != nil {
		return nil, fmt.Errorf("failed to build diet-plan request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("diet-plan call failed: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, "diet-plan"); err != nil {
		return nil, err
	}

	plan, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read diet-plan response: %w", err)
	}
	if !json.Valid(plan) {
		return nil, fmt.Errorf("diet-plan backend returned malformed JSON")
	}
	return plan, nil
}
