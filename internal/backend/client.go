package backend

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// NewHTTPClient builds the shared client used for all backend calls.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// checkStatus drains and reports a non-2xx response as an error.
func checkStatus(resp *http.Response, call string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("%s returned status %d: %s", call, resp.StatusCode, strings.TrimSpace(string(body)))
}
