package config

import (
	"fmt"
	"strings"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	ws := strings.TrimSpace(cfg.Recognizer.WSEndpoint)
	if ws == "" {
		return nil, fmt.Errorf("recognizer.ws must not be empty")
	}
	if !strings.HasPrefix(ws, "ws://") && !strings.HasPrefix(ws, "wss://") {
		return nil, fmt.Errorf("recognizer.ws must use ws:// or wss:// scheme")
	}
	if strings.TrimSpace(cfg.Recognizer.GRPCEndpoint) == "" {
		return nil, fmt.Errorf("recognizer.grpc must not be empty")
	}
	if strings.TrimSpace(cfg.Recognizer.LanguageCode) == "" {
		return nil, fmt.Errorf("recognizer.language_code must not be empty")
	}

	endpoint := strings.TrimSpace(cfg.Report.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("report.endpoint must not be empty")
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		return nil, fmt.Errorf("report.endpoint must use http:// or https:// scheme")
	}
	if cfg.Report.TimeoutMS <= 0 {
		return nil, fmt.Errorf("report.timeout_ms must be > 0")
	}

	if cfg.Timers.SessionMS <= 0 {
		return nil, fmt.Errorf("timers.session_ms must be > 0")
	}
	if cfg.Timers.QuestionMS <= 0 {
		return nil, fmt.Errorf("timers.question_ms must be > 0")
	}
	if cfg.Timers.QuestionMS > cfg.Timers.SessionMS {
		return nil, fmt.Errorf("timers.question_ms must not exceed timers.session_ms")
	}
	if cfg.Timers.WarningThresholdMS < 0 || cfg.Timers.DangerThresholdMS < 0 {
		return nil, fmt.Errorf("timer thresholds must be >= 0")
	}
	if cfg.Timers.DangerThresholdMS > cfg.Timers.WarningThresholdMS {
		warnings = append(warnings, Warning{
			Message: "timers.danger_threshold_ms exceeds warning_threshold_ms; danger styling will never show",
		})
	}

	if len(cfg.Interview.Questions) == 0 {
		return nil, fmt.Errorf("interview.questions must not be empty")
	}
	if cfg.Interview.FetchQuestions && cfg.Interview.FetchCount <= 0 {
		return nil, fmt.Errorf("interview.fetch_count must be > 0 when fetch_questions=true")
	}

	return warnings, nil
}
