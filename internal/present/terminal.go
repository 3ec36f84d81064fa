// Package present renders interview progress to a terminal.
package present

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/viva-dev/viva/internal/session"
	"github.com/viva-dev/viva/internal/timer"
)

// Terminal is a line-oriented session.Presenter. Chat messages scroll;
// timers, the recording dot, and the live transcript share one status
// line redrawn in place.
type Terminal struct {
	w io.Writer

	mu         sync.Mutex
	sessionRem time.Duration
	sessionSev timer.Severity
	questRem   time.Duration
	questSev   timer.Severity
	transcript string
	recording  bool
	statusLive bool
}

// NewTerminal constructs a presenter writing to w.
func NewTerminal(w io.Writer) *Terminal {
	return &Terminal{w: w}
}

func (t *Terminal) ShowChatScreen(participant string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clearStatus()
	fmt.Fprintf(t.w, "Interview session for %s\n", participant)
}

func (t *Terminal) AddSystemMessage(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clearStatus()
	fmt.Fprintf(t.w, "\nQ: %s\n", text)
	t.redraw()
}

func (t *Terminal) AddUserMessage(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clearStatus()
	fmt.Fprintf(t.w, "A: %s\n", text)
	t.redraw()
}

func (t *Terminal) UpdateTranscript(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.transcript = text
	t.redraw()
}

func (t *Terminal) UpdateSessionTimer(remaining time.Duration, severity timer.Severity) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessionRem = remaining
	t.sessionSev = severity
	t.redraw()
}

func (t *Terminal) UpdateQuestionTimer(remaining time.Duration, severity timer.Severity) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.questRem = remaining
	t.questSev = severity
	t.redraw()
}

func (t *Terminal) ShowRecordingIndicator() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.recording = true
	t.redraw()
}

func (t *Terminal) HideRecordingIndicator() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.recording = false
	t.transcript = ""
	t.redraw()
}

func (t *Terminal) ShowCompletionScreen(snap session.Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clearStatus()

	fmt.Fprintf(t.w, "\nInterview complete for %s\n", snap.Gmail)
	fmt.Fprintf(t.w, "Questions answered: %d\n", len(snap.QA))
	fmt.Fprintf(t.w, "Started: %s\n", snap.StartTime.Format(time.RFC1123))
	if snap.EndTime != nil {
		fmt.Fprintf(t.w, "Ended:   %s\n", snap.EndTime.Format(time.RFC1123))
	}
	for i, qa := range snap.QA {
		fmt.Fprintf(t.w, "\n%d. %s\n   %s\n", i+1, qa.Question, qa.Answer)
	}
}

func (t *Terminal) ShowReport(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clearStatus()
	fmt.Fprintf(t.w, "\n--- Interview report ---\n%s\n", strings.TrimSpace(text))
}

func (t *Terminal) ShowError(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.clearStatus()
	fmt.Fprintf(t.w, "error: %s\n", message)
	t.redraw()
}

// redraw repaints the status line in place. Callers hold t.mu.
func (t *Terminal) redraw() {
	parts := []string{
		fmt.Sprintf("session %s%s", timer.FormatClock(t.sessionRem), severityMark(t.sessionSev)),
		fmt.Sprintf("question %s%s", timer.FormatClock(t.questRem), severityMark(t.questSev)),
	}
	if t.recording {
		parts = append(parts, "recording")
	}
	line := "[" + strings.Join(parts, " | ") + "]"
	if t.transcript != "" {
		line += " > " + t.transcript
	}

	fmt.Fprintf(t.w, "\r%s\x1b[K", line)
	t.statusLive = true
}

// clearStatus wipes the status line before scrolling output. Callers
// hold t.mu.
func (t *Terminal) clearStatus() {
	if !t.statusLive {
		return
	}
	fmt.Fprint(t.w, "\r\x1b[K")
	t.statusLive = false
}

func severityMark(severity timer.Severity) string {
	switch severity {
	case timer.SeverityDanger:
		return "!!"
	case timer.SeverityWarning:
		return "!"
	default:
		return ""
	}
}
