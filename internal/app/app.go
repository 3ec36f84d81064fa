// Package app wires configuration, speech capture, the session
// controller, and the IPC surface into the viva binary.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/viva-dev/viva/internal/asr"
	"github.com/viva-dev/viva/internal/audio"
	"github.com/viva-dev/viva/internal/cli"
	"github.com/viva-dev/viva/internal/config"
	"github.com/viva-dev/viva/internal/doctor"
	"github.com/viva-dev/viva/internal/fsm"
	"github.com/viva-dev/viva/internal/ipc"
	"github.com/viva-dev/viva/internal/logging"
	"github.com/viva-dev/viva/internal/present"
	"github.com/viva-dev/viva/internal/report"
	"github.com/viva-dev/viva/internal/session"
	"github.com/viva-dev/viva/internal/speech"
	"github.com/viva-dev/viva/internal/store"
	"github.com/viva-dev/viva/internal/telemetry"
	"github.com/viva-dev/viva/internal/version"
)

type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText("viva"))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText("viva"))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	logRuntime, err := logging.New()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("load config failed", "error", err.Error())
		return 1
	}
	for _, w := range cfgLoaded.Warnings {
		msg := w.Message
		if w.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", w.Line, w.Message)
		}
		fmt.Fprintf(r.Stderr, "warning: %s\n", msg)
		logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}

	logger.Info("command start",
		"command", parsed.Command,
		"config", cfgLoaded.Path,
		"log", logRuntime.Path,
	)

	switch parsed.Command {
	case cli.CommandDoctor:
		report := doctor.Run(ctx, cfgLoaded)
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return 0
		}
		return 1
	case cli.CommandDevices:
		return r.commandDevices(ctx)
	case cli.CommandStatus:
		return r.commandStatus(ctx, logger)
	case cli.CommandStop:
		return r.forwardOrFail(ctx, "stop")
	case cli.CommandEnd:
		return r.forwardOrFail(ctx, "end")
	case cli.CommandDiscard:
		return r.commandDiscard(ctx, logger)
	case cli.CommandStart:
		return r.commandRun(ctx, cfgLoaded.Config, logger, parsed.Participant)
	case cli.CommandResume:
		return r.commandRun(ctx, cfgLoaded.Config, logger, "")
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

func (r Runner) commandDevices(ctx context.Context) int {
	devices, err := audio.ListDevices(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no audio devices found")
		return 1
	}

	for _, device := range devices {
		defaultMark := " "
		if device.Default {
			defaultMark = "*"
		}
		availability := "yes"
		if !device.Available {
			availability = "no"
		}
		muted := "no"
		if device.Muted {
			muted = "yes"
		}
		fmt.Fprintf(
			r.Stdout,
			"%s id=%s | description=%q | state=%s | available=%s | muted=%s\n",
			defaultMark,
			device.ID,
			device.Description,
			device.State,
			availability,
			muted,
		)
	}

	return 0
}

// commandStatus reports the owner's state, falling back to the stored
// snapshot when no session process is running.
func (r Runner) commandStatus(ctx context.Context, logger *slog.Logger) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err == nil {
		resp, handled, forwardErr := tryForward(ctx, socketPath, "status")
		if handled {
			if forwardErr != nil {
				fmt.Fprintf(r.Stderr, "error: %v\n", forwardErr)
				return 1
			}
			if resp.State == "" {
				resp.State = "idle"
			}
			fmt.Fprintln(r.Stdout, resp.State)
			return 0
		}
	}

	snap, ok := r.loadSnapshot(logger)
	switch {
	case ok && !snap.Finished():
		fmt.Fprintf(r.Stdout, "suspended (%d answered, resume with 'viva resume')\n", len(snap.QA))
	case ok:
		fmt.Fprintln(r.Stdout, "completed")
	default:
		fmt.Fprintln(r.Stdout, "idle")
	}
	return 0
}

func (r Runner) commandDiscard(ctx context.Context, logger *slog.Logger) int {
	if socketPath, err := ipc.RuntimeSocketPath(); err == nil {
		if alive, _ := ipc.Probe(ctx, socketPath, 220*time.Millisecond); alive {
			fmt.Fprintln(r.Stderr, "error: a session is running; end it before discarding")
			return 1
		}
	}

	st, err := r.openStore(logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() { _ = st.Close() }()

	if err := st.Clear(); err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	fmt.Fprintln(r.Stdout, "session data discarded")
	return 0
}

func (r Runner) forwardOrFail(ctx context.Context, command string) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	resp, handled, err := tryForward(ctx, socketPath, command)
	if !handled {
		fmt.Fprintln(r.Stderr, "error: no active interview session")
		return 1
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0
}

// commandRun owns one full session lifecycle. participant is empty for
// a resume.
func (r Runner) commandRun(ctx context.Context, cfg config.Config, logger *slog.Logger, participant string) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	listener, err := ipc.Acquire(ctx, socketPath, 180*time.Millisecond, 8, nil)
	if err != nil {
		if errors.Is(err, ipc.ErrAlreadyRunning) {
			fmt.Fprintln(r.Stderr, "error: an interview session is already running")
			return 1
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	st, err := r.openStore(logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() { _ = st.Close() }()

	metrics, err := telemetry.Init(version.Version)
	if err != nil {
		logger.Warn("metrics disabled", "error", err.Error())
		metrics = nil
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = metrics.Shutdown(shutdownCtx)
	}()

	presenter := present.NewTerminal(r.Stdout)
	reporter := report.New(logger, cfg.Report)

	relay := speech.NewRelay()
	source := asr.New(cfg.Recognizer, logger, captureFactory(cfg, logger))
	transcription := speech.New(logger, source, relay)
	transcription.OnRestart = metrics.RecognizerRestart

	controller := session.NewController(
		logger,
		sessionConfig(cfg),
		st,
		transcription,
		reporter,
		presenter,
		metrics,
	)
	relay.Bind(controller)

	if participant != "" {
		if resumable, _ := st.HasResumable(); resumable {
			fmt.Fprintln(r.Stderr, "error: an interrupted session exists; run 'viva resume' or 'viva discard' first")
			return 1
		}
		if err := controller.Initialize(participant); err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
	} else {
		snap, ok, loadErr := st.Load()
		if loadErr != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", loadErr)
			return 1
		}
		if !ok {
			fmt.Fprintln(r.Stderr, "error: no interview session to resume")
			return 1
		}
		if err := controller.Restore(snap); err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
	}

	serverCtx, serverCancel := context.WithCancel(ctx)
	defer serverCancel()

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- ipc.Serve(serverCtx, listener, controller)
	}()

	result := controller.Run(ctx)
	serverCancel()
	if serverErr := <-serverErrCh; serverErr != nil {
		fmt.Fprintf(r.Stderr, "error: ipc server failed: %v\n", serverErr)
		return 1
	}

	logSessionResult(logger, result)

	if errors.Is(result.Err, context.Canceled) {
		fmt.Fprintln(r.Stdout, "\nsession suspended; run 'viva resume' to continue")
		return 0
	}
	if result.Err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", result.Err)
		return 1
	}

	if result.State == fsm.StateCompleted {
		// Give the summary request a chance to render before exit.
		select {
		case <-controller.ReportDone():
		case <-time.After(cfg.Report.Timeout() + 2*time.Second):
			logger.Warn("summary request still pending at exit")
		}
	}
	return 0
}

// captureFactory selects an input device and opens a PCM stream per
// recognizer connection.
func captureFactory(cfg config.Config, logger *slog.Logger) asr.CaptureFactory {
	return func(ctx context.Context) (asr.Capture, error) {
		selection, err := audio.SelectDevice(ctx, cfg.Audio.Input, cfg.Audio.Fallback)
		if err != nil {
			return nil, err
		}
		if selection.Warning != "" {
			logger.Warn("audio device fallback", "warning", selection.Warning)
		}
		return audio.StartCapture(ctx, selection.Device)
	}
}

func sessionConfig(cfg config.Config) session.Config {
	return session.Config{
		SessionDuration:  cfg.Timers.Session(),
		QuestionDuration: cfg.Timers.Question(),
		WarningThreshold: cfg.Timers.Warning(),
		DangerThreshold:  cfg.Timers.Danger(),
		Questions:        cfg.Interview.Questions,
		FetchQuestions:   cfg.Interview.FetchQuestions,
		FetchCount:       cfg.Interview.FetchCount,
		ReportTimeout:    cfg.Report.Timeout(),
	}
}

func (r Runner) openStore(logger *slog.Logger) (*store.Store, error) {
	path, err := store.DefaultPath()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	return store.Open(logger, path)
}

func (r Runner) loadSnapshot(logger *slog.Logger) (session.Snapshot, bool) {
	st, err := r.openStore(logger)
	if err != nil {
		return session.Snapshot{}, false
	}
	defer func() { _ = st.Close() }()

	snap, ok, err := st.Load()
	if err != nil || !ok {
		return session.Snapshot{}, false
	}
	return snap, true
}

func logSessionResult(logger *slog.Logger, result session.Result) {
	if logger == nil {
		return
	}
	fields := []any{
		"state", result.State,
		"answered", result.Answered,
		"started_at", result.StartedAt.Format(time.RFC3339Nano),
		"finished_at", result.FinishedAt.Format(time.RFC3339Nano),
		"duration_ms", result.FinishedAt.Sub(result.StartedAt).Milliseconds(),
	}

	if result.Err != nil {
		logger.Error("session ended with error", append(fields, "error", result.Err.Error())...)
		return
	}
	logger.Info("session complete", fields...)
}

func tryForward(ctx context.Context, socketPath string, command string) (ipc.Response, bool, error) {
	resp, err := ipc.Send(ctx, socketPath, ipc.Request{Command: command}, 220*time.Millisecond)
	if err == nil {
		if resp.OK {
			return resp, true, nil
		}
		return resp, true, errors.New(resp.Error)
	}

	if ipc.NoOwner(err) {
		return ipc.Response{}, false, nil
	}

	return ipc.Response{}, true, fmt.Errorf("forward command %q: %w", command, err)
}
