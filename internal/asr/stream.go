package asr

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/viva-dev/viva/internal/speech"
)

// startFrame parameterizes one recognition stream.
type startFrame struct {
	Type           string `json:"type"`
	LanguageCode   string `json:"language_code"`
	SampleRateHz   int    `json:"sample_rate_hz"`
	Encoding       string `json:"encoding"`
	InterimResults bool   `json:"interim_results"`
	Continuous     bool   `json:"continuous"`
}

// resultFrame is one engine message: an incremental result or an error report.
type resultFrame struct {
	Type    string `json:"type"`
	Text    string `json:"text,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// stream adapts one websocket connection to speech.Stream.
type stream struct {
	conn    *websocket.Conn
	capture Capture
	logger  *slog.Logger

	results chan speech.Result

	writeMu sync.Mutex

	mu     sync.Mutex
	err    error
	closed bool

	closeOnce sync.Once
}

func newStream(conn *websocket.Conn, capture Capture, logger *slog.Logger) *stream {
	return &stream{
		conn:    conn,
		capture: capture,
		logger:  logger,
		results: make(chan speech.Result, 32),
	}
}

func (s *stream) Results() <-chan speech.Result {
	return s.results
}

func (s *stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close stops audio capture and tears the connection down. Idempotent.
func (s *stream) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		_ = s.capture.Stop()

		s.writeMu.Lock()
		_ = s.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		s.writeMu.Unlock()
		_ = s.conn.Close()
	})
	return nil
}

// writeLoop forwards PCM chunks to the engine until capture stops, then asks
// the engine to flush any buffered finals.
func (s *stream) writeLoop() {
	for chunk := range s.capture.Chunks() {
		if len(chunk) == 0 {
			continue
		}
		s.writeMu.Lock()
		err := s.conn.WriteMessage(websocket.BinaryMessage, chunk)
		s.writeMu.Unlock()
		if err != nil {
			s.logger.Debug("audio send failed", "error", err.Error())
			return
		}
	}

	s.writeMu.Lock()
	_ = s.conn.WriteJSON(resultFrame{Type: "stop"})
	s.writeMu.Unlock()
}

// readLoop decodes engine frames into speech results until the connection
// ends. Terminal error frames close the stream; transient ones are logged.
func (s *stream) readLoop() {
	defer close(s.results)

	for {
		var frame resultFrame
		if err := s.conn.ReadJSON(&frame); err != nil {
			s.recordReadError(err)
			return
		}

		switch frame.Type {
		case "partial":
			s.results <- speech.Result{Text: frame.Text}
		case "final":
			s.results <- speech.Result{Text: frame.Text, Final: true}
		case "error":
			err := classify(frame.Code, frame.Message)
			if !speech.Terminal(err) {
				s.logger.Debug("engine reported idle input", "code", frame.Code)
				continue
			}
			s.mu.Lock()
			s.err = err
			s.mu.Unlock()
			_ = s.Close()
			return
		default:
			s.logger.Debug("ignoring unknown engine frame", "type", frame.Type)
		}
	}
}

// recordReadError keeps intentional/normal closes out of Err so the service
// treats them as plain end-of-stream.
func (s *stream) recordReadError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.err != nil {
		return
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return
	}
	s.err = fmt.Errorf("read recognizer frame: %w", err)
}

// classify maps engine error codes onto the recording error taxonomy.
func classify(code, message string) error {
	switch code {
	case "no-speech":
		return speech.ErrNoSpeech
	case "audio-capture":
		return speech.ErrNoMicrophone
	case "not-allowed":
		return speech.ErrPermissionDenied
	default:
		if message == "" {
			message = code
		}
		return errors.New("recognition error: " + message)
	}
}
