// Package telemetry records operational counters for interview runs.
// Metrics are exported periodically as JSON into a rotated file in the
// state directory so they can be inspected after a session.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"github.com/viva-dev/viva/internal/logging"
)

const exportInterval = 30 * time.Second

// Metrics is the session-facing counter set.
type Metrics struct {
	provider *sdkmetric.MeterProvider

	questionsCompleted  metric.Int64Counter
	silenceAdvances     metric.Int64Counter
	recognizerRestarts  metric.Int64Counter
	persistenceFailures metric.Int64Counter
	reportRequests      metric.Int64Counter
}

// Init sets up a meter provider exporting into the state directory.
func Init(serviceVersion string) (*Metrics, error) {
	dir, err := logging.StateDir()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}

	sink := &lumberjack.Logger{
		Filename:   filepath.Join(dir, "metrics.jsonl"),
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
	}

	exporter, err := stdoutmetric.New(stdoutmetric.WithWriter(sink))
	if err != nil {
		return nil, fmt.Errorf("create metric exporter: %w", err)
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName("viva"),
		semconv.ServiceVersion(serviceVersion),
	)
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(exportInterval))),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(provider)

	m := &Metrics{provider: provider}
	meter := provider.Meter("viva")

	var errs []error
	add := func(name, description string) metric.Int64Counter {
		counter, err := meter.Int64Counter(name, metric.WithDescription(description))
		if err != nil {
			errs = append(errs, err)
		}
		return counter
	}
	m.questionsCompleted = add("interview.questions.completed", "Questions with a recorded answer")
	m.silenceAdvances = add("interview.silence.advances", "Questions ended by sustained silence")
	m.recognizerRestarts = add("interview.recognizer.restarts", "Recognizer stream reopen attempts")
	m.persistenceFailures = add("interview.persistence.failures", "Snapshot writes that failed")
	m.reportRequests = add("interview.report.requests", "Post-session summary requests")

	if err := errors.Join(errs...); err != nil {
		_ = provider.Shutdown(context.Background())
		return nil, fmt.Errorf("create counters: %w", err)
	}
	return m, nil
}

// Shutdown flushes pending metrics and stops the exporter.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m == nil {
		return nil
	}
	return m.provider.Shutdown(ctx)
}

func (m *Metrics) QuestionCompleted() {
	if m == nil {
		return
	}
	m.questionsCompleted.Add(context.Background(), 1)
}

func (m *Metrics) SilenceAdvance() {
	if m == nil {
		return
	}
	m.silenceAdvances.Add(context.Background(), 1)
}

// RecognizerRestart counts one recognizer stream reopen.
func (m *Metrics) RecognizerRestart() {
	if m == nil {
		return
	}
	m.recognizerRestarts.Add(context.Background(), 1)
}

func (m *Metrics) PersistenceFailure() {
	if m == nil {
		return
	}
	m.persistenceFailures.Add(context.Background(), 1)
}

func (m *Metrics) ReportRequest(ok bool) {
	if m == nil {
		return
	}
	m.reportRequests.Add(context.Background(), 1,
		metric.WithAttributes(attribute.Bool("success", ok)))
}
