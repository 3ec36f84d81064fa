package session

import (
	"context"
	"time"

	"github.com/viva-dev/viva/internal/timer"
)

// Transcription is the session-facing subset of speech capture.
type Transcription interface {
	StartRecording(ctx context.Context) error
	StopRecording()
	Reset()
	FinalTranscript() string
}

// PlaceholderTranscription preserves session flow when no speech
// backend is wired. Every question ends with no transcript.
type PlaceholderTranscription struct{}

func (PlaceholderTranscription) StartRecording(context.Context) error { return nil }
func (PlaceholderTranscription) StopRecording()                       {}
func (PlaceholderTranscription) Reset()                               {}
func (PlaceholderTranscription) FinalTranscript() string              { return "" }

// Reporter generates interview questions and post-session summaries.
type Reporter interface {
	Questions(ctx context.Context, count int) ([]string, error)
	Summary(ctx context.Context, qa []QA) (string, error)
}

// Presenter renders session progress to the participant. Timer update
// methods may be called from timer goroutines and must be safe for
// concurrent use.
type Presenter interface {
	ShowChatScreen(participant string)
	AddSystemMessage(text string)
	AddUserMessage(text string)
	UpdateTranscript(text string)
	UpdateSessionTimer(remaining time.Duration, severity timer.Severity)
	UpdateQuestionTimer(remaining time.Duration, severity timer.Severity)
	ShowRecordingIndicator()
	HideRecordingIndicator()
	ShowCompletionScreen(snapshot Snapshot)
	ShowReport(text string)
	ShowError(message string)
}

// noopPresenter preserves session flow when no presenter is wired.
type noopPresenter struct{}

func (noopPresenter) ShowChatScreen(string)                             {}
func (noopPresenter) AddSystemMessage(string)                           {}
func (noopPresenter) AddUserMessage(string)                             {}
func (noopPresenter) UpdateTranscript(string)                           {}
func (noopPresenter) UpdateSessionTimer(time.Duration, timer.Severity)  {}
func (noopPresenter) UpdateQuestionTimer(time.Duration, timer.Severity) {}
func (noopPresenter) ShowRecordingIndicator()                           {}
func (noopPresenter) HideRecordingIndicator()                           {}
func (noopPresenter) ShowCompletionScreen(Snapshot)                     {}
func (noopPresenter) ShowReport(string)                                 {}
func (noopPresenter) ShowError(string)                                  {}

// Metrics counts session events of operational interest.
type Metrics interface {
	QuestionCompleted()
	SilenceAdvance()
	PersistenceFailure()
	ReportRequest(ok bool)
}

// noopMetrics preserves session flow when no metrics sink is wired.
type noopMetrics struct{}

func (noopMetrics) QuestionCompleted()  {}
func (noopMetrics) SilenceAdvance()     {}
func (noopMetrics) PersistenceFailure() {}
func (noopMetrics) ReportRequest(bool)  {}

// noopStore preserves session flow when no store is wired.
type noopStore struct{}

func (noopStore) Save(Snapshot) error           { return nil }
func (noopStore) Load() (Snapshot, bool, error) { return Snapshot{}, false, nil }
func (noopStore) Clear() error                  { return nil }
