package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
)

// ImageAnalysisClient calls the external disease analysis backend with
// an uploaded pet image.
type ImageAnalysisClient struct {
	baseURL string
	http    *http.Client
}

// NewImageAnalysisClient creates a client for the given base URL.
func NewImageAnalysisClient(baseURL string, client *http.Client) *ImageAnalysisClient {
	return &ImageAnalysisClient{baseURL: baseURL, http: client}
}

type imageAnalysisResponse struct {
	Analysis string `json:"analysis"`
}

// Analyze posts the image bytes as a multipart form and returns the
// backend's analysis text.
func (c *ImageAnalysisClient) Analyze(ctx context.Context, filename string, data []byte) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("failed to build multipart form: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("failed to write image payload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize multipart form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/diseaseapi/analyze-image", &buf)
	if err != nil {
		return "", fmt.Errorf("failed to build image-analysis request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("image-analysis call failed: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp, "image-analysis"); err != nil {
		return "", err
	}

	var body imageAnalysisResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode image-analysis response: %w", err)
	}
	return body.Analysis, nil
}
