package hook

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/maxvaer/keyprobe/internal/classify"
	"github.com/maxvaer/keyprobe/internal/scanner"
)

func TestExpand(t *testing.T) {
	r := NewRunner("notify {label} {api} {status} {method} {url}", true)
	got := r.Expand(&scanner.ProbeResult{
		API:        "Geocode API",
		Method:     "GET",
		URL:        "https://example.test/?key=k",
		StatusCode: 200,
		Label:      classify.Vulnerable,
	})
	want := "notify VULNERABLE Geocode API 200 GET https://example.test/?key=k"
	if got != want {
		t.Fatalf("Expand() = %q, want %q", got, want)
	}
}

func TestExpandMissingStatus(t *testing.T) {
	r := NewRunner("[{status}]", true)
	if got := r.Expand(&scanner.ProbeResult{Label: classify.Undetermined}); got != "[]" {
		t.Fatalf("Expand() = %q, want []", got)
	}
}

func TestRunPipesRecord(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	out := filepath.Join(t.TempDir(), "hook.json")
	r := NewRunner("cat > "+out, false)
	var stderr bytes.Buffer
	r.stderr = &stderr

	r.Run(context.Background(), &scanner.ProbeResult{
		API:    "Roads API",
		Method: "GET",
		URL:    "https://roads.test/?key=k",
		Label:  classify.Undetermined,
		Reason: "Request failed: timeout",
	})

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("hook did not write: %v (stderr %q)", err, stderr.String())
	}
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("invalid JSON on stdin: %v", err)
	}
	if payload["api"] != "Roads API" || payload["label"] != "UNDETERMINED" {
		t.Fatalf("unexpected payload %v", payload)
	}
	if payload["http_status"] != nil {
		t.Fatalf("http_status = %v, want null", payload["http_status"])
	}
}

func TestRunReportsFailure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	r := NewRunner("exit 3", false)
	var stderr bytes.Buffer
	r.stderr = &stderr
	r.Run(context.Background(), &scanner.ProbeResult{API: "Places API"})
	if !bytes.Contains(stderr.Bytes(), []byte("[hook] Places API")) {
		t.Fatalf("expected failure on stderr, got %q", stderr.String())
	}
}
