package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

type jsoncConfig struct {
	Recognizer *jsoncRecognizer `json:"recognizer"`
	Report     *jsoncReport     `json:"report"`
	Timers     *jsoncTimers     `json:"timers"`
	Audio      *jsoncAudio      `json:"audio"`
	Interview  *jsoncInterview  `json:"interview"`
}

type jsoncRecognizer struct {
	WS             *string `json:"ws"`
	GRPC           *string `json:"grpc"`
	LanguageCode   *string `json:"language_code"`
	Continuous     *bool   `json:"continuous"`
	InterimResults *bool   `json:"interim_results"`
}

type jsoncReport struct {
	Endpoint  *string `json:"endpoint"`
	TimeoutMS *int    `json:"timeout_ms"`
}

type jsoncTimers struct {
	SessionMS          *int `json:"session_ms"`
	QuestionMS         *int `json:"question_ms"`
	WarningThresholdMS *int `json:"warning_threshold_ms"`
	DangerThresholdMS  *int `json:"danger_threshold_ms"`
}

type jsoncAudio struct {
	Input    *string `json:"input"`
	Fallback *string `json:"fallback"`
}

type jsoncInterview struct {
	Questions      []string `json:"questions"`
	FetchQuestions *bool    `json:"fetch_questions"`
	FetchCount     *int     `json:"fetch_count"`
}

func parseJSONC(content string, base Config) (Config, []Warning, error) {
	normalized, err := normalizeJSONC(content)
	if err != nil {
		return Config{}, nil, err
	}

	decoder := json.NewDecoder(strings.NewReader(normalized))
	decoder.DisallowUnknownFields()

	var payload jsoncConfig
	if err := decoder.Decode(&payload); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}
	if err := ensureSingleJSONValue(decoder); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}

	cfg := base
	payload.applyTo(&cfg)

	warnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	return cfg, warnings, nil
}

func (payload jsoncConfig) applyTo(cfg *Config) {
	if payload.Recognizer != nil {
		if payload.Recognizer.WS != nil {
			cfg.Recognizer.WSEndpoint = strings.TrimSpace(*payload.Recognizer.WS)
		}
		if payload.Recognizer.GRPC != nil {
			cfg.Recognizer.GRPCEndpoint = strings.TrimSpace(*payload.Recognizer.GRPC)
		}
		if payload.Recognizer.LanguageCode != nil {
			cfg.Recognizer.LanguageCode = strings.TrimSpace(*payload.Recognizer.LanguageCode)
		}
		if payload.Recognizer.Continuous != nil {
			cfg.Recognizer.Continuous = *payload.Recognizer.Continuous
		}
		if payload.Recognizer.InterimResults != nil {
			cfg.Recognizer.InterimResults = *payload.Recognizer.InterimResults
		}
	}

	if payload.Report != nil {
		if payload.Report.Endpoint != nil {
			cfg.Report.Endpoint = strings.TrimSpace(*payload.Report.Endpoint)
		}
		if payload.Report.TimeoutMS != nil {
			cfg.Report.TimeoutMS = *payload.Report.TimeoutMS
		}
	}

	if payload.Timers != nil {
		if payload.Timers.SessionMS != nil {
			cfg.Timers.SessionMS = *payload.Timers.SessionMS
		}
		if payload.Timers.QuestionMS != nil {
			cfg.Timers.QuestionMS = *payload.Timers.QuestionMS
		}
		if payload.Timers.WarningThresholdMS != nil {
			cfg.Timers.WarningThresholdMS = *payload.Timers.WarningThresholdMS
		}
		if payload.Timers.DangerThresholdMS != nil {
			cfg.Timers.DangerThresholdMS = *payload.Timers.DangerThresholdMS
		}
	}

	if payload.Audio != nil {
		if payload.Audio.Input != nil {
			cfg.Audio.Input = *payload.Audio.Input
		}
		if payload.Audio.Fallback != nil {
			cfg.Audio.Fallback = *payload.Audio.Fallback
		}
	}

	if payload.Interview != nil {
		if payload.Interview.Questions != nil {
			questions := make([]string, 0, len(payload.Interview.Questions))
			for _, q := range payload.Interview.Questions {
				q = strings.TrimSpace(q)
				if q == "" {
					continue
				}
				questions = append(questions, q)
			}
			cfg.Interview.Questions = questions
		}
		if payload.Interview.FetchQuestions != nil {
			cfg.Interview.FetchQuestions = *payload.Interview.FetchQuestions
		}
		if payload.Interview.FetchCount != nil {
			cfg.Interview.FetchCount = *payload.Interview.FetchCount
		}
	}
}

// Scanner modes for JSONC normalization.
const (
	scanCode = iota
	scanString
	scanLineComment
	scanBlockComment
)

// normalizeJSONC rewrites JSONC into strict JSON. Comment bytes are
// replaced with spaces (newlines and tabs kept) so decode errors still
// point at the right line, then trailing commas before } or ] are
// dropped.
func normalizeJSONC(content string) (string, error) {
	stripped, err := blankComments(content)
	if err != nil {
		return "", err
	}
	return dropTrailingCommas(stripped), nil
}

func blankComments(src string) (string, error) {
	out := make([]byte, 0, len(src))
	state := scanCode
	escaped := false

	for i := 0; i < len(src); i++ {
		ch := src[i]
		switch state {
		case scanLineComment:
			if ch == '\n' || ch == '\r' {
				state = scanCode
				out = append(out, ch)
			} else {
				out = append(out, ' ')
			}
		case scanBlockComment:
			switch {
			case ch == '*' && i+1 < len(src) && src[i+1] == '/':
				state = scanCode
				out = append(out, ' ', ' ')
				i++
			case ch == '\n' || ch == '\r' || ch == '\t':
				out = append(out, ch)
			default:
				out = append(out, ' ')
			}
		case scanString:
			out = append(out, ch)
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				state = scanCode
			}
		default:
			switch {
			case ch == '"':
				state = scanString
				out = append(out, ch)
			case ch == '/' && i+1 < len(src) && src[i+1] == '/':
				state = scanLineComment
				out = append(out, ' ', ' ')
				i++
			case ch == '/' && i+1 < len(src) && src[i+1] == '*':
				state = scanBlockComment
				out = append(out, ' ', ' ')
				i++
			default:
				out = append(out, ch)
			}
		}
	}

	if state == scanBlockComment {
		return "", errors.New("unterminated block comment in JSONC")
	}
	return string(out), nil
}

func dropTrailingCommas(src string) string {
	out := make([]byte, 0, len(src))
	inString := false
	escaped := false

	for i := 0; i < len(src); i++ {
		ch := src[i]
		if inString {
			out = append(out, ch)
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		if ch == '"' {
			inString = true
		}
		if ch == ',' {
			if next := nextMeaningful(src, i+1); next == '}' || next == ']' {
				continue
			}
		}
		out = append(out, ch)
	}

	return string(out)
}

// nextMeaningful returns the first non-whitespace byte at or after
// from, or zero when none remains.
func nextMeaningful(src string, from int) byte {
	for i := from; i < len(src); i++ {
		switch src[i] {
		case ' ', '\t', '\n', '\r':
		default:
			return src[i]
		}
	}
	return 0
}

func ensureSingleJSONValue(decoder *json.Decoder) error {
	var extra struct{}
	err := decoder.Decode(&extra)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err == nil {
		return errors.New("multiple JSON values are not allowed")
	}
	return err
}

func wrapJSONDecodeError(content string, err error) error {
	var offset int64
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr):
		offset = syntaxErr.Offset
	case errors.As(err, &typeErr):
		offset = typeErr.Offset
	default:
		return err
	}

	line, col := locate(content, offset)
	return fmt.Errorf("line %d column %d: %w", line, col, err)
}

// locate converts a byte offset into a 1-based line and column.
func locate(content string, offset int64) (int, int) {
	end := int(offset) - 1
	if end < 0 {
		return 1, 1
	}
	if end > len(content) {
		end = len(content)
	}

	prefix := content[:end]
	line := 1 + strings.Count(prefix, "\n")
	col := len(prefix) - strings.LastIndexByte(prefix, '\n')
	return line, col
}
