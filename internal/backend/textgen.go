package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// TextGenClient calls the pet-care answer generation backend.
type TextGenClient struct {
	baseURL string
	http    *http.Client
}

// NewTextGenClient creates a client for the given base URL.
func NewTextGenClient(baseURL string, client *http.Client) *TextGenClient {
	return &TextGenClient{baseURL: baseURL, http: client}
}

type textGenRequest struct {
	Query    string `json:"query"`
	Language string `json:"language"`
}

type textGenResponse struct {
	Response string `json:"response"`
}

// Generate asks the backend to answer query in the requested language.
func (c *TextGenClient) Generate(ctx context.Context, query, language string) (string, error) {
	payload, err := json.Marshal(textGenRequest{Query: query, Language: language})
	if err != nil {
		return "", fmt.Errorf("failed to encode text-generation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chatapi/generate_answer", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build text-generation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("text-generation call failed: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, "text-generation"); err != nil {
		return "", err
	}

	var body textGenResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode text-generation response: %w", err)
	}
	return body.Response, nil
}
