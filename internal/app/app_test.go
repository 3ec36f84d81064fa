package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viva-dev/viva/internal/session"
	"github.com/viva-dev/viva/internal/store"
)

type runnerOutput struct {
	stdout bytes.Buffer
	stderr bytes.Buffer
}

func runCommand(t *testing.T, args ...string) (int, *runnerOutput) {
	t.Helper()
	t.Setenv("XDG_STATE_HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())

	out := &runnerOutput{}
	code := Execute(context.Background(), args, &out.stdout, &out.stderr)
	return code, out
}

func TestExecuteHelp(t *testing.T) {
	code, out := runCommand(t, "help")
	assert.Equal(t, 0, code)
	assert.Contains(t, out.stdout.String(), "Usage:")
	assert.Contains(t, out.stdout.String(), "start EMAIL")
}

func TestExecuteNoArgsShowsHelp(t *testing.T) {
	code, out := runCommand(t)
	assert.Equal(t, 0, code)
	assert.Contains(t, out.stdout.String(), "Usage:")
}

func TestExecuteVersion(t *testing.T) {
	code, out := runCommand(t, "version")
	assert.Equal(t, 0, code)
	assert.Contains(t, out.stdout.String(), "viva")
}

func TestExecuteUnknownCommand(t *testing.T) {
	code, out := runCommand(t, "launch")
	assert.Equal(t, 2, code)
	assert.Contains(t, out.stderr.String(), "unknown command")
	assert.Contains(t, out.stderr.String(), "Usage:")
}

func TestExecuteStartRejectsBadEmail(t *testing.T) {
	code, out := runCommand(t, "start", "alice@example.com")
	assert.Equal(t, 1, code)
	assert.Contains(t, out.stderr.String(), "Gmail")
}

func TestStatusWithNoSessionData(t *testing.T) {
	code, out := runCommand(t, "status")
	assert.Equal(t, 0, code)
	assert.Equal(t, "idle\n", out.stdout.String())
}

func TestStatusReportsStoredSession(t *testing.T) {
	state := t.TempDir()
	t.Setenv("XDG_STATE_HOME", state)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())

	seedSnapshot(t, state, false)

	out := &runnerOutput{}
	code := Execute(context.Background(), []string{"status"}, &out.stdout, &out.stderr)
	assert.Equal(t, 0, code)
	assert.Contains(t, out.stdout.String(), "suspended (1 answered")
}

func TestStatusReportsCompletedSession(t *testing.T) {
	state := t.TempDir()
	t.Setenv("XDG_STATE_HOME", state)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())

	seedSnapshot(t, state, true)

	out := &runnerOutput{}
	code := Execute(context.Background(), []string{"status"}, &out.stdout, &out.stderr)
	assert.Equal(t, 0, code)
	assert.Equal(t, "completed\n", out.stdout.String())
}

func TestDiscardClearsStoredSession(t *testing.T) {
	state := t.TempDir()
	t.Setenv("XDG_STATE_HOME", state)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())

	seedSnapshot(t, state, false)

	out := &runnerOutput{}
	code := Execute(context.Background(), []string{"discard"}, &out.stdout, &out.stderr)
	require.Equal(t, 0, code, out.stderr.String())
	assert.Contains(t, out.stdout.String(), "discarded")

	st, err := store.Open(nil, filepath.Join(state, "viva", "sessions.db"))
	require.NoError(t, err)
	defer func() { _ = st.Close() }()
	_, ok, err := st.Load()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStopWithoutRunningSession(t *testing.T) {
	code, out := runCommand(t, "stop")
	assert.Equal(t, 1, code)
	assert.Contains(t, out.stderr.String(), "no active interview session")
}

func TestEndWithoutRunningSession(t *testing.T) {
	code, out := runCommand(t, "end")
	assert.Equal(t, 1, code)
	assert.Contains(t, out.stderr.String(), "no active interview session")
}

func TestResumeWithoutStoredSession(t *testing.T) {
	code, out := runCommand(t, "resume")
	assert.Equal(t, 1, code)
	assert.Contains(t, out.stderr.String(), "no interview session to resume")
}

func TestStartRefusesWhileResumableExists(t *testing.T) {
	state := t.TempDir()
	t.Setenv("XDG_STATE_HOME", state)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())

	seedSnapshot(t, state, false)

	out := &runnerOutput{}
	code := Execute(context.Background(), []string{"start", "alice@gmail.com"}, &out.stdout, &out.stderr)
	assert.Equal(t, 1, code)
	assert.Contains(t, out.stderr.String(), "viva resume")
}

func seedSnapshot(t *testing.T, stateDir string, finished bool) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(stateDir, "viva"), 0o700))
	st, err := store.Open(nil, filepath.Join(stateDir, "viva", "sessions.db"))
	require.NoError(t, err)
	defer func() { _ = st.Close() }()

	snap := session.NewSnapshot("alice@gmail.com", time.Now().Add(-time.Minute))
	snap.QA = []session.QA{{Question: "First question?", Answer: "An answer", Timestamp: time.Now()}}
	if finished {
		end := time.Now()
		snap.EndTime = &end
	}
	require.NoError(t, st.Save(snap))
}
