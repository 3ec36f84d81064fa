package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/viva-dev/viva/internal/fsm"
	"github.com/viva-dev/viva/internal/ipc"
	"github.com/viva-dev/viva/internal/speech"
	"github.com/viva-dev/viva/internal/timer"
)

// Config carries the tunables for one interview run.
type Config struct {
	SessionDuration  time.Duration
	QuestionDuration time.Duration
	WarningThreshold time.Duration
	DangerThreshold  time.Duration

	Questions      []string
	FetchQuestions bool
	FetchCount     int

	// AdvanceDelay is the pause between recording an answer and asking
	// the next question. Zero means the one second default.
	AdvanceDelay time.Duration
	// ReportTimeout bounds the post-session summary request.
	ReportTimeout time.Duration
	// TickInterval overrides the countdown tick. Zero means one second.
	TickInterval time.Duration
}

type entryKind int

const (
	entryNone entryKind = iota
	entryLogin
	entryResume
)

type eventKind int

const (
	evTranscript eventKind = iota + 1
	evAnswerComplete
	evQuestionExpired
	evSessionExpired
	evAdvance
	evUserStop
	evEndRequested
	evRecordingError
)

type event struct {
	kind  eventKind
	epoch uint64
	index int
	text  string
	err   error
}

// Result is the complete lifecycle output returned by one Run invocation.
type Result struct {
	State      fsm.State
	Snapshot   Snapshot
	Answered   int
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Controller orchestrates interview progression. All session state is
// mutated on the Run goroutine; timers, speech callbacks, and IPC
// handlers communicate with it through the event queue. Question
// boundary races (a silence signal and a timer expiry landing
// together) are resolved by stamping every per-question event with an
// epoch that advances when the question closes.
type Controller struct {
	logger    *slog.Logger
	cfg       Config
	store     Store
	speech    Transcription
	reporter  Reporter
	presenter Presenter
	metrics   Metrics

	sessionTimer  *timer.Countdown
	questionTimer *timer.Countdown

	events     chan event
	reportDone chan struct{}
	epoch      atomic.Uint64
	inQuestion atomic.Bool

	mu          sync.RWMutex
	state       fsm.State
	entry       entryKind
	participant string
	restored    Snapshot

	// Owned by the Run goroutine.
	snapshot      Snapshot
	questions     []string
	questionIndex int
}

// NewController constructs a session controller with safe default fallbacks.
func NewController(
	logger *slog.Logger,
	cfg Config,
	store Store,
	transcription Transcription,
	reporter Reporter,
	presenter Presenter,
	metrics Metrics,
) *Controller {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if store == nil {
		store = noopStore{}
	}
	if transcription == nil {
		transcription = PlaceholderTranscription{}
	}
	if presenter == nil {
		presenter = noopPresenter{}
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if cfg.AdvanceDelay <= 0 {
		cfg.AdvanceDelay = time.Second
	}
	if cfg.ReportTimeout <= 0 {
		cfg.ReportTimeout = 30 * time.Second
	}

	c := &Controller{
		logger:     logger,
		cfg:        cfg,
		store:      store,
		speech:     transcription,
		reporter:   reporter,
		presenter:  presenter,
		metrics:    metrics,
		state:      fsm.StateIdle,
		events:     make(chan event, 64),
		reportDone: make(chan struct{}),
	}
	c.sessionTimer = timer.NewWithInterval(cfg.TickInterval, func(remaining time.Duration) {
		presenter.UpdateSessionTimer(remaining, timer.Classify(remaining, cfg.WarningThreshold, cfg.DangerThreshold))
	})
	c.questionTimer = timer.NewWithInterval(cfg.TickInterval, func(remaining time.Duration) {
		presenter.UpdateQuestionTimer(remaining, timer.Classify(remaining, cfg.WarningThreshold, cfg.DangerThreshold))
	})
	return c
}

// State returns the current FSM state snapshot.
func (c *Controller) State() fsm.State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// ReportDone is closed once the post-session summary request has
// finished, whether it succeeded, failed, or was skipped.
func (c *Controller) ReportDone() <-chan struct{} {
	return c.reportDone
}

// Initialize stages a fresh session for the given participant.
func (c *Controller) Initialize(participant string) error {
	if err := ValidateParticipant(participant); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entry != entryNone {
		return errors.New("session already staged")
	}
	c.entry = entryLogin
	c.participant = participant
	return nil
}

// Restore stages an interrupted session for resumption.
func (c *Controller) Restore(snap Snapshot) error {
	if snap.Finished() {
		return fmt.Errorf("session for %s already completed", snap.Gmail)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entry != entryNone {
		return errors.New("session already staged")
	}
	c.entry = entryResume
	c.restored = snap
	return nil
}

// Run executes one staged session to completion. It returns early when
// ctx is cancelled, leaving the persisted snapshot resumable.
func (c *Controller) Run(ctx context.Context) Result {
	result := Result{StartedAt: time.Now()}

	c.mu.Lock()
	entry := c.entry
	participant := c.participant
	restored := c.restored
	c.entry = entryNone
	c.mu.Unlock()

	var err error
	switch entry {
	case entryLogin:
		err = c.beginLogin(ctx, participant)
	case entryResume:
		err = c.beginResume(ctx, restored)
	default:
		err = errors.New("no session staged: call Initialize or Restore first")
	}
	if err != nil {
		result.State = c.State()
		result.Err = err
		result.FinishedAt = time.Now()
		return result
	}

	for c.State() != fsm.StateCompleted {
		select {
		case <-ctx.Done():
			c.suspend()
			result.State = c.State()
			result.Snapshot = c.snapshot
			result.Answered = len(c.snapshot.QA)
			result.Err = ctx.Err()
			result.FinishedAt = time.Now()
			return result
		case ev := <-c.events:
			c.dispatch(ctx, ev)
		}
	}

	result.State = c.State()
	result.Snapshot = c.snapshot
	result.Answered = len(c.snapshot.QA)
	result.FinishedAt = time.Now()
	return result
}

// Handle serves IPC commands for the active owner session.
func (c *Controller) Handle(_ context.Context, req ipc.Request) ipc.Response {
	switch req.Command {
	case "status":
		return ipc.Response{OK: true, State: string(c.State()), Message: "status"}
	case "stop":
		if c.State() == fsm.StateActive && !c.inQuestion.Load() {
			return ipc.Response{OK: false, State: string(fsm.StateActive), Error: "no answer in progress"}
		}
		return c.requestAction(evUserStop, "answer stop requested")
	case "end":
		return c.requestAction(evEndRequested, "session end requested")
	default:
		return ipc.Response{OK: false, State: string(c.State()), Error: fmt.Sprintf("unknown command: %s", req.Command)}
	}
}

// requestAction enqueues a user action when state permits it.
func (c *Controller) requestAction(kind eventKind, message string) ipc.Response {
	state := c.State()
	if state != fsm.StateActive {
		return ipc.Response{OK: false, State: string(state), Error: fmt.Sprintf("no active session in state %s", state)}
	}
	c.events <- event{kind: kind, epoch: c.epoch.Load()}
	return ipc.Response{OK: true, State: string(state), Message: message}
}

// TranscriptUpdated forwards live transcript text into the event loop.
func (c *Controller) TranscriptUpdated(text string) {
	// Display-only, safe to drop under load.
	select {
	case c.events <- event{kind: evTranscript, epoch: c.epoch.Load(), text: text}:
	default:
	}
}

// AnswerComplete signals that sustained silence ended the current answer.
func (c *Controller) AnswerComplete() {
	c.events <- event{kind: evAnswerComplete, epoch: c.epoch.Load()}
}

// RecordingError surfaces a terminal speech capture failure.
func (c *Controller) RecordingError(err error) {
	c.events <- event{kind: evRecordingError, epoch: c.epoch.Load(), err: err}
}

// transition applies one FSM event to the controller state.
func (c *Controller) transition(event fsm.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := fsm.Transition(c.state, event)
	if err != nil {
		return err
	}
	c.state = next
	return nil
}

// persist writes the snapshot through the store. A failed write is
// surfaced as a warning and the in-memory session stays authoritative.
func (c *Controller) persist() {
	if err := c.store.Save(c.snapshot); err != nil {
		c.logger.Warn("failed to persist session", "error", err)
		c.metrics.PersistenceFailure()
		c.presenter.ShowError("Failed to save session progress")
	}
}

// beginLogin starts a brand new session for a validated participant.
func (c *Controller) beginLogin(ctx context.Context, participant string) error {
	if err := c.transition(fsm.EventBegin); err != nil {
		return err
	}

	c.questions = c.loadQuestions(ctx)
	c.snapshot = NewSnapshot(participant, time.Now())
	c.persist()

	c.logger.Info("session started", "participant", participant, "questions", len(c.questions))
	c.presenter.ShowChatScreen(participant)
	c.sessionTimer.Start(c.cfg.SessionDuration, c.expireSession)
	c.startQuestion(ctx, 0)
	return nil
}

// beginResume continues an interrupted session from its snapshot. The
// session clock keeps running while the process is down, so the
// restored countdown is whatever real time is left.
func (c *Controller) beginResume(ctx context.Context, snap Snapshot) error {
	if snap.Finished() {
		return fmt.Errorf("session for %s already completed", snap.Gmail)
	}

	c.questions = c.cfg.Questions
	c.snapshot = snap

	c.presenter.ShowChatScreen(snap.Gmail)
	for _, qa := range snap.QA {
		c.presenter.AddSystemMessage(qa.Question)
		c.presenter.AddUserMessage(qa.Answer)
	}

	remaining := snap.Remaining(c.cfg.SessionDuration, time.Now())
	answered := len(snap.QA)
	c.logger.Info("session resumed",
		"participant", snap.Gmail,
		"answered", answered,
		"remaining", remaining,
	)

	if remaining == 0 || answered >= len(c.questions) {
		if err := c.transition(fsm.EventFinish); err != nil {
			return err
		}
		c.complete()
		return nil
	}

	if err := c.transition(fsm.EventBegin); err != nil {
		return err
	}
	c.sessionTimer.Start(remaining, c.expireSession)
	c.startQuestion(ctx, answered)
	return nil
}

// loadQuestions fetches the question set, falling back to the
// configured defaults when the collaborator is unreachable.
func (c *Controller) loadQuestions(ctx context.Context) []string {
	questions := c.cfg.Questions
	if !c.cfg.FetchQuestions || c.reporter == nil {
		return questions
	}

	count := c.cfg.FetchCount
	if count <= 0 {
		count = len(questions)
	}
	fetched, err := c.reporter.Questions(ctx, count)
	if err != nil {
		c.logger.Warn("question fetch failed, using configured defaults", "error", err)
		return questions
	}
	if len(fetched) == 0 {
		c.logger.Warn("question fetch returned nothing, using configured defaults")
		return questions
	}
	return fetched
}

// dispatch processes one queued event on the Run goroutine.
func (c *Controller) dispatch(ctx context.Context, ev event) {
	switch ev.kind {
	case evTranscript:
		if c.currentQuestion(ev.epoch) {
			c.presenter.UpdateTranscript(ev.text)
		}
	case evAnswerComplete:
		if c.currentQuestion(ev.epoch) {
			c.metrics.SilenceAdvance()
			c.completeQuestion(ctx)
		}
	case evQuestionExpired:
		if c.currentQuestion(ev.epoch) {
			c.completeQuestion(ctx)
		}
	case evUserStop:
		if c.State() == fsm.StateActive && c.currentQuestion(ev.epoch) {
			c.completeQuestion(ctx)
		}
	case evAdvance:
		if c.State() == fsm.StateActive && !c.inQuestion.Load() && ev.index == c.questionIndex+1 {
			c.startQuestion(ctx, ev.index)
		}
	case evSessionExpired:
		if c.State() == fsm.StateActive {
			c.logger.Info("session time expired")
			c.finish()
		}
	case evEndRequested:
		if c.State() == fsm.StateActive {
			c.logger.Info("session ended by participant")
			c.finish()
		}
	case evRecordingError:
		if c.currentQuestion(ev.epoch) {
			c.handleRecordingError(ev.err)
		}
	}
}

// currentQuestion reports whether an epoch-stamped event belongs to
// the question being asked right now.
func (c *Controller) currentQuestion(epoch uint64) bool {
	return c.inQuestion.Load() && epoch == c.epoch.Load()
}

// startQuestion presents question index and opens a fresh answer window.
func (c *Controller) startQuestion(ctx context.Context, index int) {
	if index >= len(c.questions) {
		c.finish()
		return
	}

	c.questionIndex = index
	ep := c.epoch.Add(1)
	c.inQuestion.Store(true)

	question := c.questions[index]
	c.logger.Info("asking question", "index", index, "question", question)
	c.presenter.AddSystemMessage(question)
	c.presenter.UpdateTranscript("")

	c.questionTimer.Start(c.cfg.QuestionDuration, func() {
		c.events <- event{kind: evQuestionExpired, epoch: ep}
	})

	c.speech.Reset()
	c.presenter.ShowRecordingIndicator()
	if err := c.speech.StartRecording(ctx); err != nil {
		c.logger.Error("failed to start recording", "error", err)
		c.presenter.HideRecordingIndicator()
		c.presenter.ShowError("Unable to start recording")
	}
}

// completeQuestion records the current answer and schedules the next
// question. Whichever trigger arrives first wins; later triggers for
// the same question are dropped by the epoch guard.
func (c *Controller) completeQuestion(ctx context.Context) {
	c.inQuestion.Store(false)
	c.epoch.Add(1)

	c.questionTimer.Stop()
	c.speech.StopRecording()
	c.presenter.HideRecordingIndicator()

	answer := c.speech.FinalTranscript()
	if answer == "" {
		answer = NoResponse
	}
	c.speech.Reset()

	c.snapshot.QA = append(c.snapshot.QA, QA{
		Question:  c.questions[c.questionIndex],
		Answer:    answer,
		Timestamp: time.Now(),
	})
	c.persist()
	c.presenter.AddUserMessage(answer)
	c.metrics.QuestionCompleted()
	c.logger.Info("answer recorded", "index", c.questionIndex, "answered", len(c.snapshot.QA))

	next := c.questionIndex + 1
	if next >= len(c.questions) {
		c.finish()
		return
	}

	time.AfterFunc(c.cfg.AdvanceDelay, func() {
		c.events <- event{kind: evAdvance, index: next}
	})
}

// handleRecordingError surfaces a terminal speech failure. The question
// timer keeps running so any partial transcript is still recorded when
// the answer window closes.
func (c *Controller) handleRecordingError(err error) {
	c.logger.Error("recording failed", "error", err)
	c.presenter.HideRecordingIndicator()

	switch {
	case errors.Is(err, speech.ErrNoMicrophone):
		c.presenter.ShowError("No microphone detected. Check your audio input.")
	case errors.Is(err, speech.ErrPermissionDenied):
		c.presenter.ShowError("Microphone access was denied.")
	default:
		c.presenter.ShowError("Speech recognition failed.")
	}
}

// finish ends the answer flow and runs session wrap-up.
func (c *Controller) finish() {
	if err := c.transition(fsm.EventFinish); err != nil {
		c.logger.Warn("finish rejected", "error", err)
		return
	}

	c.inQuestion.Store(false)
	c.epoch.Add(1)
	c.questionTimer.Stop()
	c.sessionTimer.Stop()
	c.speech.StopRecording()
	c.presenter.HideRecordingIndicator()
	c.complete()
}

// complete seals the snapshot, shows results, and kicks off the
// summary request without blocking completion.
func (c *Controller) complete() {
	now := time.Now()
	if c.snapshot.EndTime == nil {
		c.snapshot.EndTime = &now
	}
	c.persist()
	c.presenter.ShowCompletionScreen(c.snapshot)

	qa := append([]QA(nil), c.snapshot.QA...)
	go c.requestReport(qa)

	if err := c.transition(fsm.EventComplete); err != nil {
		c.logger.Warn("complete rejected", "error", err)
	}
}

// requestReport asks the collaborator for a session summary.
func (c *Controller) requestReport(qa []QA) {
	defer close(c.reportDone)

	if c.reporter == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ReportTimeout)
	defer cancel()

	summary, err := c.reporter.Summary(ctx, qa)
	if err != nil {
		c.logger.Error("summary generation failed", "error", err)
		c.metrics.ReportRequest(false)
		return
	}
	c.metrics.ReportRequest(true)
	c.presenter.ShowReport(summary)
}

// suspend halts timers and recording without sealing the snapshot, so
// the session stays resumable.
func (c *Controller) suspend() {
	c.logger.Info("session suspended", "answered", len(c.snapshot.QA))
	c.inQuestion.Store(false)
	c.epoch.Add(1)
	c.questionTimer.Stop()
	c.sessionTimer.Stop()
	c.speech.StopRecording()
	c.presenter.HideRecordingIndicator()
}

// expireSession is the session countdown expiry callback.
func (c *Controller) expireSession() {
	c.events <- event{kind: evSessionExpired}
}
