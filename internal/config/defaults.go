package config

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	return Config{
		Recognizer: RecognizerConfig{
			WSEndpoint:     "ws://127.0.0.1:8090/v1/listen",
			GRPCEndpoint:   "127.0.0.1:50051",
			LanguageCode:   "en-US",
			Continuous:     true,
			InterimResults: true,
		},
		Report: ReportConfig{
			Endpoint:  "http://127.0.0.1:3000/get-response",
			TimeoutMS: 30000,
		},
		Timers: TimerConfig{
			SessionMS:          3600000,
			QuestionMS:         120000,
			WarningThresholdMS: 30000,
			DangerThresholdMS:  10000,
		},
		Audio: AudioConfig{
			Input:    "default",
			Fallback: "default",
		},
		Interview: InterviewConfig{
			Questions:      DefaultQuestions(),
			FetchQuestions: true,
			FetchCount:     10,
		},
	}
}

// DefaultQuestions is the built-in question list used when fetching is disabled
// or the collaborator cannot supply one.
func DefaultQuestions() []string {
	return []string{
		"Tell me about yourself and your background.",
		"What are your greatest strengths and how have they helped you succeed?",
		"Describe a challenging situation you faced and how you overcame it.",
		"What are your short-term and long-term career goals?",
		"Why are you interested in this position?",
		"How do you handle stress and pressure?",
		"Describe your ideal work environment.",
		"What motivates you in your professional life?",
	}
}
