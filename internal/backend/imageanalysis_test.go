package backend_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/petpal-ai/petcare/backend/internal/backend"
)

func TestAnalyzePostsMultipartImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/diseaseapi/analyze-image" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("failed to parse multipart form: %v", err)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("missing file field: %v", err)
			http.Error(w, "missing file", http.StatusBadRequest)
			return
		}
		defer file.Close()

		if header.Filename != "rash.png" {
			t.Errorf("unexpected filename %q", header.Filename)
		}
		data, _ := io.ReadAll(file)
		if string(data) != "png-bytes" {
			t.Errorf("unexpected payload %q", data)
		}

		json.NewEncoder(w).Encode(map[string]string{"analysis": "Mild dermatitis."})
	}))
	defer srv.Close()

	client := backend.NewImageAnalysisClient(srv.URL, backend.NewHTTPClient(5*time.Second))
	got, err := client.Analyze(context.Background(), "rash.png", []byte("png-bytes"))
	if err != nil {
		t.Fatalf("Analyze err: %v", err)
	}
	if got != "Mild dermatitis." {
		t.Fatalf("unexpected analysis: %q", got)
	}
}

func TestAnalyzeNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "vision model unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := backend.NewImageAnalysisClient(srv.URL, backend.NewHTTPClient(5*time.Second))
	if _, err := client.Analyze(context.Background(), "x.png", []byte("x")); err == nil {
		t.Fatal("expected error for non-2xx status")
	}
}
