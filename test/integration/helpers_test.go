//go:build integration

// Package integration provides end-to-end tests for a freshly started
// hijackguard service seeded with the demo profiles.
// Run with: go test -v -tags=integration ./test/integration/...
package integration

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"
)

var serviceURL = envOrDefault("HIJACKGUARD_URL", "http://localhost:8010")

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// httpClient is a shared HTTP client with reasonable timeouts
var httpClient = &http.Client{Timeout: 10 * time.Second}

// apiRequest makes an HTTP request and returns status code and decoded body
func apiRequest(t *testing.T, method, path, body string) (int, map[string]interface{}) {
	t.Helper()

	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, serviceURL+path, bodyReader)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response: %v", err)
	}

	var result map[string]interface{}
	if len(respBody) > 0 {
		json.Unmarshal(respBody, &result) // Ignore errors for non-JSON responses
	}

	return resp.StatusCode, result
}

// requireService skips the test when the service is not reachable
func requireService(t *testing.T) {
	t.Helper()
	resp, err := httpClient.Get(serviceURL + "/health/live")
	if err != nil {
		t.Skipf("hijackguard not reachable at %s: %v", serviceURL, err)
	}
	resp.Body.Close()
}
