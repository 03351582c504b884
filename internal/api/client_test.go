package api

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/motorsim/motorsim/internal/storage"
)

func TestNew(t *testing.T) {
	c := New("http://localhost:5000", "secret123")

	if c == nil {
		t.Fatal("New returned nil")
	}
	if c.baseURL != "http://localhost:5000" {
		t.Errorf("expected baseURL=http://localhost:5000, got %s", c.baseURL)
	}
	if c.apiKey != "secret123" {
		t.Errorf("expected apiKey=secret123, got %s", c.apiKey)
	}
	if c.httpClient == nil {
		t.Error("httpClient is nil")
	}
}

func TestNew_TrimsTrailingSlash(t *testing.T) {
	c := New("http://localhost:5000/", "secret")
	if c.baseURL != "http://localhost:5000" {
		t.Errorf("expected trailing slash trimmed, got %s", c.baseURL)
	}
}

func TestHealthcheck_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthcheck" {
			t.Errorf("expected path /healthcheck, got %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	if err := New(server.URL, "").Healthcheck(); err != nil {
		t.Errorf("Healthcheck failed: %v", err)
	}
}

func TestHealthcheck_ServerDown(t *testing.T) {
	if err := New("http://127.0.0.1:1", "").Healthcheck(); err == nil {
		t.Error("expected error for unreachable server")
	}
}

func TestHealthcheck_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	if err := New(server.URL, "").Healthcheck(); err == nil {
		t.Error("expected error for 503 response")
	}
}

func TestUpload_Success(t *testing.T) {
	received := map[string]string{}
	var content []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/transcripts" {
			t.Errorf("expected path /api/v1/transcripts, got %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			t.Errorf("failed to parse multipart form: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		for _, k := range []string{"secret", "filename", "hostname", "version", "startTime", "durationSeconds", "simulators", "commandCount"} {
			received[k] = r.FormValue(k)
		}

		file, _, err := r.FormFile("file")
		if err != nil {
			t.Errorf("failed to get file: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		content, _ = io.ReadAll(file)

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "bench_20260301_093000.json.gz")
	if err := os.WriteFile(path, []byte("test content"), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	meta := storage.UploadMetadata{
		Hostname:        "bench",
		Version:         "0.1.0",
		StartTime:       time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
		DurationSeconds: 3600.5,
		Simulators:      []string{"stage", "pico"},
		CommandCount:    12,
	}
	if err := New(server.URL, "mysecret").Upload(path, meta); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}

	want := map[string]string{
		"secret":          "mysecret",
		"filename":        "bench_20260301_093000.json.gz",
		"hostname":        "bench",
		"version":         "0.1.0",
		"startTime":       "2026-03-01T09:30:00Z",
		"durationSeconds": "3600.500",
		"simulators":      "stage,pico",
		"commandCount":    "12",
	}
	for k, v := range want {
		if received[k] != v {
			t.Errorf("expected %s=%s, got %s", k, v, received[k])
		}
	}
	if string(content) != "test content" {
		t.Errorf("expected file content 'test content', got '%s'", string(content))
	}
}

func TestUpload_FileNotFound(t *testing.T) {
	c := New("http://localhost:5000", "secret")
	if err := c.Upload("/nonexistent/file.json.gz", storage.UploadMetadata{}); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestUpload_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "test.json.gz")
	_ = os.WriteFile(path, []byte("content"), 0644)

	if err := New(server.URL, "wrong-secret").Upload(path, storage.UploadMetadata{}); err == nil {
		t.Error("expected error for 403 response")
	}
}

type fakeExport struct{ path string }

func (f fakeExport) ExportedFilePath() string { return f.path }
func (f fakeExport) ExportMetadata() storage.UploadMetadata {
	return storage.UploadMetadata{Hostname: "bench"}
}

func TestUploadExport(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_ = r.ParseMultipartForm(10 << 20)
		if r.FormValue("hostname") != "bench" {
			t.Errorf("unexpected hostname %q", r.FormValue("hostname"))
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := New(server.URL, "")
	if err := c.UploadExport(fakeExport{}); err != nil {
		t.Fatalf("empty export: %v", err)
	}
	if calls != 0 {
		t.Fatalf("expected no upload without an export, got %d", calls)
	}

	path := filepath.Join(t.TempDir(), "t.json")
	_ = os.WriteFile(path, []byte("{}"), 0644)
	if err := c.UploadExport(fakeExport{path: path}); err != nil {
		t.Fatalf("UploadExport failed: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 upload, got %d", calls)
	}
}
