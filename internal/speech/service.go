// Package speech wraps a streaming recognition source with transcript
// accumulation, silence detection, and supervised auto-restart.
package speech

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/viva-dev/viva/internal/transcript"
)

// silenceThreshold is the number of consecutive quiet result cycles tolerated
// after finalized speech before the answer is considered complete. Tied to the
// engine's per-result cadence; recalibrate if that cadence changes.
const silenceThreshold = 5

var (
	// ErrNoSpeech indicates an idle-input engine report. Not a failure.
	ErrNoSpeech = errors.New("no speech detected")
	// ErrNoMicrophone indicates no usable capture device.
	ErrNoMicrophone = errors.New("no microphone detected")
	// ErrPermissionDenied indicates the capture device is not accessible.
	ErrPermissionDenied = errors.New("microphone access denied")
)

// Terminal reports whether a recognition error ends the current recording.
// Only idle-input reports are survivable.
func Terminal(err error) bool {
	return err != nil && !errors.Is(err, ErrNoSpeech)
}

// Result is one incremental recognition update. Final text will not be
// revised further; non-final text replaces the previous pending segment.
type Result struct {
	Text  string
	Final bool
}

// Stream is one live recognition stream. Results closes when the engine ends
// the stream; Err reports the stream's terminal error, if any, after close.
type Stream interface {
	Results() <-chan Result
	Err() error
	Close() error
}

// Source opens recognition streams against the speech engine.
type Source interface {
	Open(context.Context) (Stream, error)
}

// Listener receives transcription lifecycle events.
type Listener interface {
	TranscriptUpdated(text string)
	AnswerComplete()
	RecordingError(err error)
}

// noopListener preserves service flow when no listener is wired.
type noopListener struct{}

func (noopListener) TranscriptUpdated(string) {}
func (noopListener) AnswerComplete()          {}
func (noopListener) RecordingError(error)     {}

// Service owns one recording lifecycle at a time: transcript state, the
// silence-completion heuristic, and the restart supervisor that masks engines
// terminating streams after inactivity.
type Service struct {
	logger   *slog.Logger
	source   Source
	listener Listener

	// OnRestart, when set, observes each supervised stream reopen.
	OnRestart func()

	mu        sync.Mutex
	recording bool
	finalized string
	pending   string
	streak    int
	signaled  bool
	stream    Stream
	gen       uint64
}

// New constructs a transcription service over the given source.
func New(logger *slog.Logger, source Source, listener Listener) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if listener == nil {
		listener = noopListener{}
	}
	return &Service{logger: logger, source: source, listener: listener}
}

// StartRecording resets transcript state and begins a supervised recognition
// stream. Returns an error when a recording is already active.
func (s *Service) StartRecording(ctx context.Context) error {
	s.mu.Lock()
	if s.recording {
		s.mu.Unlock()
		return errors.New("recording already active")
	}
	s.gen++
	gen := s.gen
	s.recording = true
	s.finalized = ""
	s.pending = ""
	s.streak = 0
	s.signaled = false
	s.stream = nil
	s.mu.Unlock()

	go s.supervise(ctx, gen)
	return nil
}

// StopRecording ends the active recording and suppresses any in-flight
// auto-restart. Safe to call when already stopped.
func (s *Service) StopRecording() {
	s.mu.Lock()
	if !s.recording {
		s.mu.Unlock()
		return
	}
	s.recording = false
	stream := s.stream
	s.stream = nil
	s.mu.Unlock()

	if stream != nil {
		_ = stream.Close()
	}
}

// Reset stops any active recording and clears accumulated transcript state.
func (s *Service) Reset() {
	s.StopRecording()
	s.mu.Lock()
	s.finalized = ""
	s.pending = ""
	s.streak = 0
	s.signaled = false
	s.mu.Unlock()
}

// Recording reports whether a recording is currently active.
func (s *Service) Recording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recording
}

// FinalTranscript returns the trimmed combined transcript captured so far.
func (s *Service) FinalTranscript() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return transcript.Final(s.finalized, s.pending)
}

// supervise owns one recording generation: it opens streams, consumes results,
// and reopens the stream when the engine ends it while recording continues.
func (s *Service) supervise(ctx context.Context, gen uint64) {
	first := true
	for {
		if !s.current(gen) {
			return
		}
		if !first {
			s.logger.Info("recognition stream ended; restarting")
			if s.OnRestart != nil {
				s.OnRestart()
			}
		}
		first = false

		stream, err := s.source.Open(ctx)
		if err != nil {
			s.terminate(gen, err)
			return
		}
		if !s.adopt(gen, stream) {
			_ = stream.Close()
			return
		}

		for result := range stream.Results() {
			s.handleResult(gen, result)
		}

		if err := stream.Err(); err != nil {
			if Terminal(err) {
				s.terminate(gen, err)
				return
			}
			s.logger.Debug("ignoring transient recognition error", "error", err.Error())
		}
	}
}

// adopt installs a freshly opened stream unless the recording moved on.
func (s *Service) adopt(gen uint64, stream Stream) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.recording || s.gen != gen {
		return false
	}
	s.stream = stream
	return true
}

// current reports whether gen is still the live recording generation.
func (s *Service) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recording && s.gen == gen
}

// handleResult merges one engine update into transcript state and applies the
// silence-completion heuristic.
func (s *Service) handleResult(gen uint64, result Result) {
	s.mu.Lock()
	if !s.recording || s.gen != gen {
		s.mu.Unlock()
		return
	}

	if result.Final {
		s.finalized = transcript.Append(s.finalized, result.Text)
		s.pending = ""
	} else {
		s.pending = result.Text
	}
	combined := transcript.Combine(s.finalized, s.pending)

	quiet := s.finalized != "" && s.pending == ""
	if quiet {
		s.streak++
	} else {
		s.streak = 0
	}

	complete := s.streak > silenceThreshold && !s.signaled
	var stream Stream
	if complete {
		s.signaled = true
		s.recording = false
		stream = s.stream
		s.stream = nil
	}
	s.mu.Unlock()

	s.listener.TranscriptUpdated(combined)
	if complete {
		if stream != nil {
			_ = stream.Close()
		}
		s.listener.AnswerComplete()
	}
}

// terminate ends the recording on a terminal engine error. The answer remains
// whatever partial transcript was captured.
func (s *Service) terminate(gen uint64, err error) {
	s.mu.Lock()
	if !s.recording || s.gen != gen {
		s.mu.Unlock()
		return
	}
	s.recording = false
	stream := s.stream
	s.stream = nil
	s.mu.Unlock()

	if stream != nil {
		_ = stream.Close()
	}
	s.logger.Error("recognition stream failed", "error", err.Error())
	s.listener.RecordingError(err)
}
