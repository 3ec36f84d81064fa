// Package config resolves, parses, validates, and defaults viva configuration.
package config

import "time"

// Config is the fully materialized runtime configuration used by viva.
type Config struct {
	Recognizer RecognizerConfig
	Report     ReportConfig
	Timers     TimerConfig
	Audio      AudioConfig
	Interview  InterviewConfig
}

// RecognizerConfig locates and parameterizes the streaming speech engine.
type RecognizerConfig struct {
	WSEndpoint     string
	GRPCEndpoint   string
	LanguageCode   string
	Continuous     bool
	InterimResults bool
}

// ReportConfig locates the report-generation collaborator service.
type ReportConfig struct {
	Endpoint  string
	TimeoutMS int
}

// TimerConfig controls session and per-question countdown durations.
type TimerConfig struct {
	SessionMS          int
	QuestionMS         int
	WarningThresholdMS int
	DangerThresholdMS  int
}

// AudioConfig controls preferred and fallback input-source selection.
type AudioConfig struct {
	Input    string
	Fallback string
}

// InterviewConfig controls the question set presented to the participant.
type InterviewConfig struct {
	Questions      []string
	FetchQuestions bool
	FetchCount     int
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}

// Session returns the configured session deadline as a duration.
func (t TimerConfig) Session() time.Duration {
	return time.Duration(t.SessionMS) * time.Millisecond
}

// Question returns the configured per-question deadline as a duration.
func (t TimerConfig) Question() time.Duration {
	return time.Duration(t.QuestionMS) * time.Millisecond
}

// Warning returns the display warning threshold as a duration.
func (t TimerConfig) Warning() time.Duration {
	return time.Duration(t.WarningThresholdMS) * time.Millisecond
}

// Danger returns the display danger threshold as a duration.
func (t TimerConfig) Danger() time.Duration {
	return time.Duration(t.DangerThresholdMS) * time.Millisecond
}

// Timeout returns the collaborator request deadline as a duration.
func (r ReportConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutMS) * time.Millisecond
}
