// Package asr connects viva to the streaming speech-recognition engine over
// its websocket listen endpoint, feeding captured PCM and decoding incremental
// result frames.
package asr

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/gorilla/websocket"

	"github.com/viva-dev/viva/internal/config"
	"github.com/viva-dev/viva/internal/speech"
)

// Capture is the audio-input subset the client streams from.
type Capture interface {
	Chunks() <-chan []byte
	Stop() error
}

// CaptureFactory opens a fresh audio capture for one recognition stream.
type CaptureFactory func(context.Context) (Capture, error)

// Client implements speech.Source against a websocket recognition engine.
type Client struct {
	cfg        config.RecognizerConfig
	logger     *slog.Logger
	newCapture CaptureFactory
}

// New constructs a recognition client from runtime config.
func New(cfg config.RecognizerConfig, logger *slog.Logger, newCapture CaptureFactory) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{cfg: cfg, logger: logger, newCapture: newCapture}
}

// Open starts an audio capture, dials the engine, and begins streaming.
func (c *Client) Open(ctx context.Context) (speech.Stream, error) {
	capture, err := c.newCapture(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", speech.ErrNoMicrophone, err)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.cfg.WSEndpoint, nil)
	if err != nil {
		_ = capture.Stop()
		return nil, fmt.Errorf("dial recognizer %s: %w", c.cfg.WSEndpoint, err)
	}

	start := startFrame{
		Type:           "start",
		LanguageCode:   c.cfg.LanguageCode,
		SampleRateHz:   16000,
		Encoding:       "linear16",
		InterimResults: c.cfg.InterimResults,
		Continuous:     c.cfg.Continuous,
	}
	if err := conn.WriteJSON(start); err != nil {
		_ = capture.Stop()
		_ = conn.Close()
		return nil, fmt.Errorf("send start frame: %w", err)
	}

	s := newStream(conn, capture, c.logger)
	go s.writeLoop()
	go s.readLoop()
	return s, nil
}
