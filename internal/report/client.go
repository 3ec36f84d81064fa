// Package report talks to the response collaborator service that
// generates interview questions and post-session summaries.
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/viva-dev/viva/internal/config"
	"github.com/viva-dev/viva/internal/session"
)

type request struct {
	Query string `json:"query"`
}

type response struct {
	Response string `json:"response"`
	Error    string `json:"error"`
}

// Client is an HTTP client for the collaborator's single query endpoint.
type Client struct {
	cfg    config.ReportConfig
	logger *slog.Logger
	http   *http.Client
}

// New constructs a collaborator client from report configuration.
func New(logger *slog.Logger, cfg config.ReportConfig) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		cfg:    cfg,
		logger: logger,
		http:   &http.Client{Timeout: cfg.Timeout()},
	}
}

// Generate sends one free-form query and returns the collaborator's text.
func (c *Client) Generate(ctx context.Context, query string) (string, error) {
	body, err := json.Marshal(request{Query: query})
	if err != nil {
		return "", fmt.Errorf("encode query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("query collaborator: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("collaborator returned %s", resp.Status)
	}

	var parsed response
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if parsed.Error != "" {
		return "", fmt.Errorf("collaborator error: %s", parsed.Error)
	}
	return parsed.Response, nil
}

// Questions asks the collaborator for count interview questions. The
// reply must be a JSON array of strings, optionally fenced in a
// markdown code block.
func (c *Client) Questions(ctx context.Context, count int) ([]string, error) {
	query := fmt.Sprintf(
		"generate %d unique HR recruitment questions. Respond with strictly a JSON array of question strings.",
		count,
	)

	text, err := c.Generate(ctx, query)
	if err != nil {
		return nil, err
	}

	questions, err := parseQuestionArray(text)
	if err != nil {
		return nil, err
	}
	c.logger.Info("fetched interview questions", "count", len(questions))
	return questions, nil
}

// Summary asks the collaborator for a narrative report over the
// recorded question and answer pairs.
func (c *Client) Summary(ctx context.Context, qa []session.QA) (string, error) {
	pairs := make([]map[string]string, 0, len(qa))
	for _, item := range qa {
		pairs = append(pairs, map[string]string{
			"question": item.Question,
			"answer":   item.Answer,
		})
	}
	encoded, err := json.Marshal(pairs)
	if err != nil {
		return "", fmt.Errorf("encode qa pairs: %w", err)
	}

	query := fmt.Sprintf(
		"Generate a brief summary and score for the interview based on the following question-answer pairs:\n\n%s",
		encoded,
	)
	return c.Generate(ctx, query)
}

// parseQuestionArray decodes a JSON string array, tolerating markdown
// code fences around it.
func parseQuestionArray(text string) ([]string, error) {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
		trimmed = strings.TrimSpace(trimmed)
	}

	var questions []string
	if err := json.Unmarshal([]byte(trimmed), &questions); err != nil {
		return nil, fmt.Errorf("parse question array: %w", err)
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("question array is empty")
	}
	for i, q := range questions {
		if strings.TrimSpace(q) == "" {
			return nil, fmt.Errorf("question %d is blank", i)
		}
	}
	return questions, nil
}
