// Package extractor wraps the external embedding-extraction service. Every
// call spawns one extraction process, reads its output until exit and maps
// all failure modes to a typed ExtractionError.
package extractor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"facegate/config"

	log "github.com/sirupsen/logrus"
)

// Result is a successfully extracted probe embedding.
type Result struct {
	Embedding  []float64 `json:"embedding"`
	Confidence float64   `json:"confidence"`
}

// ExtractionError describes a failed extraction attempt. It covers both
// system faults (process failed to launch, non-zero exit, timeout) and
// model-reported business failures ("No face detected"). Callers treat
// either as caller-fixable, not as a server incident.
type ExtractionError struct {
	Reason string
}

func (e *ExtractionError) Error() string {
	return "extraction failed: " + e.Reason
}

type rawResult struct {
	Embedding  []float64 `json:"embedding"`
	Confidence float64   `json:"confidence"`
	Error      string    `json:"error"`
}

// Extractor invokes the external extraction service. Concurrent invocations
// are bounded by a semaphore so load cannot fan out into unbounded external
// processes.
type Extractor struct {
	pythonBin  string
	scriptPath string
	timeout    time.Duration
	slots      chan struct{}
}

// New creates an extractor from configuration.
func New(cfg config.ExtractorConfig) *Extractor {
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Extractor{
		pythonBin:  cfg.PythonBin,
		scriptPath: cfg.ScriptPath,
		timeout:    timeout,
		slots:      make(chan struct{}, maxConcurrent),
	}
}

// InFlight reports how many extractions are currently running.
func (e *Extractor) InFlight() int {
	return len(e.slots)
}

// Capacity reports the maximum number of concurrent extractions.
func (e *Extractor) Capacity() int {
	return cap(e.slots)
}

// Extract runs one blocking `extract <path>` invocation and returns the
// parsed embedding. Results are never cached; every call re-extracts.
func (e *Extractor) Extract(ctx context.Context, imagePath string) (*Result, error) {
	// Acquire an extraction slot
	select {
	case e.slots <- struct{}{}:
		defer func() { <-e.slots }()
	case <-ctx.Done():
		return nil, &ExtractionError{Reason: "timed out waiting for an extraction slot"}
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.pythonBin, e.scriptPath, "extract", imagePath)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	log.Debugf("Extraction process finished in %v (path=%s)", time.Since(start), imagePath)

	if ctx.Err() == context.DeadlineExceeded {
		return nil, &ExtractionError{
			Reason: fmt.Sprintf("extraction timed out after %s", e.timeout),
		}
	}

	if runErr != nil {
		reason := strings.TrimSpace(stderr.String())
		if reason == "" {
			reason = fmt.Sprintf("extraction service failed: %v", runErr)
		}
		return nil, &ExtractionError{Reason: reason}
	}

	return parseOutput(stdout.String(), stderr.String())
}

// parseOutput picks the last well-formed JSON line from the service output.
// The model runtime is free to write diagnostic lines to stdout before the
// result line; those are skipped.
func parseOutput(stdout, stderr string) (*Result, error) {
	lines := strings.Split(stdout, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" || !strings.HasPrefix(line, "{") {
			continue
		}

		var raw rawResult
		if err := json.Unmarshal([]byte(line), &raw); err != nil {
			continue
		}

		if raw.Error != "" {
			// Business failure reported by the model, e.g. "No face detected"
			return nil, &ExtractionError{Reason: raw.Error}
		}
		if len(raw.Embedding) == 0 {
			return nil, &ExtractionError{Reason: "extraction service returned no embedding"}
		}

		return &Result{Embedding: raw.Embedding, Confidence: raw.Confidence}, nil
	}

	reason := strings.TrimSpace(stderr)
	if reason == "" {
		reason = "extraction service produced no parseable result"
	}
	return nil, &ExtractionError{Reason: reason}
}
