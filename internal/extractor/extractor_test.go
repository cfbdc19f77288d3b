package extractor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"facegate/config"
)

func TestParseOutputSuccess(t *testing.T) {
	stdout := `loading model...
{"embedding": [0.1, 0.2, 0.3], "confidence": 0.98}
`
	result, err := parseOutput(stdout, "")
	if err != nil {
		t.Fatalf("parseOutput error: %v", err)
	}
	if len(result.Embedding) != 3 {
		t.Errorf("embedding length = %d, want 3", len(result.Embedding))
	}
	if result.Confidence != 0.98 {
		t.Errorf("confidence = %v, want 0.98", result.Confidence)
	}
}

func TestParseOutputLastJSONLineWins(t *testing.T) {
	stdout := `{"embedding": [9.9], "confidence": 0.1}
some progress noise
{"embedding": [0.5], "confidence": 0.7}
`
	result, err := parseOutput(stdout, "")
	if err != nil {
		t.Fatalf("parseOutput error: %v", err)
	}
	if result.Embedding[0] != 0.5 {
		t.Errorf("embedding = %v, want the last JSON line", result.Embedding)
	}
}

func TestParseOutputModelError(t *testing.T) {
	stdout := `{"error": "No face detected in image"}`

	_, err := parseOutput(stdout, "")
	var extractionErr *ExtractionError
	if !errors.As(err, &extractionErr) {
		t.Fatalf("err = %v, want *ExtractionError", err)
	}
	if extractionErr.Reason != "No face detected in image" {
		t.Errorf("reason = %q, want model-reported reason", extractionErr.Reason)
	}
}

func TestParseOutputEmptyEmbedding(t *testing.T) {
	stdout := `{"embedding": [], "confidence": 0.5}`

	_, err := parseOutput(stdout, "")
	var extractionErr *ExtractionError
	if !errors.As(err, &extractionErr) {
		t.Fatalf("err = %v, want *ExtractionError", err)
	}
}

func TestParseOutputNoJSONFallsBackToStderr(t *testing.T) {
	_, err := parseOutput("nothing useful here", "Traceback: module not found")
	var extractionErr *ExtractionError
	if !errors.As(err, &extractionErr) {
		t.Fatalf("err = %v, want *ExtractionError", err)
	}
	if extractionErr.Reason != "Traceback: module not found" {
		t.Errorf("reason = %q, want stderr content", extractionErr.Reason)
	}
}

func TestNewDefaults(t *testing.T) {
	e := New(config.ExtractorConfig{})

	if e.Capacity() != 4 {
		t.Errorf("Capacity() = %d, want 4", e.Capacity())
	}
	if e.InFlight() != 0 {
		t.Errorf("InFlight() = %d, want 0", e.InFlight())
	}
}

// writeScript legt ein Shell-Skript an, das den Extraktionsdienst nachbildet.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "service.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}
	return path
}

func TestExtractRunsExternalProcess(t *testing.T) {
	script := writeScript(t, `echo '{"embedding": [0.1, 0.2], "confidence": 0.9}'`)
	e := New(config.ExtractorConfig{
		PythonBin:      "/bin/sh",
		ScriptPath:     script,
		TimeoutSeconds: 5,
		MaxConcurrent:  2,
	})

	result, err := e.Extract(context.Background(), "/tmp/probe.jpg")
	if err != nil {
		t.Fatalf("Extract error: %v", err)
	}
	if len(result.Embedding) != 2 || result.Confidence != 0.9 {
		t.Errorf("result = %+v, want parsed embedding", result)
	}
}

func TestExtractProcessFailureUsesStderr(t *testing.T) {
	script := writeScript(t, `echo "model crashed" >&2; exit 1`)
	e := New(config.ExtractorConfig{
		PythonBin:      "/bin/sh",
		ScriptPath:     script,
		TimeoutSeconds: 5,
	})

	_, err := e.Extract(context.Background(), "/tmp/probe.jpg")
	var extractionErr *ExtractionError
	if !errors.As(err, &extractionErr) {
		t.Fatalf("err = %v, want *ExtractionError", err)
	}
	if extractionErr.Reason != "model crashed" {
		t.Errorf("reason = %q, want stderr content", extractionErr.Reason)
	}
}

func TestExtractTimeout(t *testing.T) {
	script := writeScript(t, `sleep 10`)
	e := New(config.ExtractorConfig{
		PythonBin:      "/bin/sh",
		ScriptPath:     script,
		TimeoutSeconds: 1,
	})

	_, err := e.Extract(context.Background(), "/tmp/probe.jpg")
	var extractionErr *ExtractionError
	if !errors.As(err, &extractionErr) {
		t.Fatalf("err = %v, want *ExtractionError on timeout", err)
	}
}
