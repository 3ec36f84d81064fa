// Package doctor runs readiness diagnostics for config, state storage,
// audio capture, the recognizer, and the report collaborator.
package doctor

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/viva-dev/viva/internal/asr"
	"github.com/viva-dev/viva/internal/audio"
	"github.com/viva-dev/viva/internal/config"
	"github.com/viva-dev/viva/internal/logging"
)

const probeTimeout = 2 * time.Second

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes environment/config/runtime checks for a loaded config.
func Run(ctx context.Context, cfg config.Loaded) Report {
	checks := []Check{
		{
			Name:    "config",
			Pass:    true,
			Message: fmt.Sprintf("loaded %q", cfg.Path),
		},
		checkStateDir(),
		checkAudioSelection(ctx, cfg.Config),
		checkRecognizer(ctx, cfg.Config),
		checkReportEndpoint(ctx, cfg.Config),
	}
	return Report{Checks: checks}
}

// checkStateDir verifies snapshots and logs can be written.
func checkStateDir() Check {
	dir, err := logging.StateDir()
	if err != nil {
		return Check{Name: "state.dir", Pass: false, Message: err.Error()}
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return Check{Name: "state.dir", Pass: false, Message: fmt.Sprintf("create %s: %v", dir, err)}
	}

	probe := filepath.Join(dir, ".doctor-probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o600); err != nil {
		return Check{Name: "state.dir", Pass: false, Message: fmt.Sprintf("write %s: %v", dir, err)}
	}
	_ = os.Remove(probe)
	return Check{Name: "state.dir", Pass: true, Message: fmt.Sprintf("writable at %s", dir)}
}

// checkAudioSelection runs live device selection to surface selection/fallback issues.
func checkAudioSelection(ctx context.Context, cfg config.Config) Check {
	selection, err := audio.SelectDevice(ctx, cfg.Audio.Input, cfg.Audio.Fallback)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}

// checkRecognizer probes the recognizer's gRPC health endpoint.
func checkRecognizer(ctx context.Context, cfg config.Config) Check {
	endpoint := strings.TrimSpace(cfg.Recognizer.GRPCEndpoint)
	if endpoint == "" {
		return Check{Name: "recognizer.health", Pass: false, Message: "recognizer grpc endpoint is empty"}
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	if err := asr.Ready(probeCtx, endpoint); err != nil {
		return Check{Name: "recognizer.health", Pass: false, Message: err.Error()}
	}
	return Check{Name: "recognizer.health", Pass: true, Message: fmt.Sprintf("serving at %s", endpoint)}
}

// checkReportEndpoint verifies the collaborator is reachable. Any HTTP
// response counts; the endpoint only speaks POST so status is not judged.
func checkReportEndpoint(ctx context.Context, cfg config.Config) Check {
	endpoint := strings.TrimSpace(cfg.Report.Endpoint)
	if endpoint == "" {
		return Check{Name: "report.endpoint", Pass: false, Message: "report endpoint is empty"}
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Check{Name: "report.endpoint", Pass: false, Message: err.Error()}
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return Check{Name: "report.endpoint", Pass: false, Message: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()
	return Check{Name: "report.endpoint", Pass: true, Message: fmt.Sprintf("reachable at %s (HTTP %d)", endpoint, resp.StatusCode)}
}
