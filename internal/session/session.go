// Package session coordinates the interview lifecycle: question
// sequencing, countdown timers, speech capture, persistence, and
// completion reporting.
package session

import (
	"fmt"
	"regexp"
	"time"
)

// NoResponse is recorded as the answer when a question ends without
// any transcribed speech.
const NoResponse = "(No response)"

var gmailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@gmail\.com$`)

// ValidateParticipant checks that the participant identifier is a
// well-formed Gmail address.
func ValidateParticipant(email string) error {
	if email == "" {
		return fmt.Errorf("participant email is required")
	}
	if !gmailPattern.MatchString(email) {
		return fmt.Errorf("participant email %q is not a valid Gmail address", email)
	}
	return nil
}

// QA is one answered question.
type QA struct {
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Timestamp time.Time `json:"timestamp"`
}

// Snapshot is the persisted form of a session. It carries everything
// needed to resume an interrupted interview or display a finished one.
type Snapshot struct {
	Gmail     string     `json:"gmail"`
	QA        []QA       `json:"qa"`
	StartTime time.Time  `json:"startTime"`
	EndTime   *time.Time `json:"endTime"`
}

// NewSnapshot starts an empty session record for a participant.
func NewSnapshot(email string, now time.Time) Snapshot {
	return Snapshot{Gmail: email, QA: []QA{}, StartTime: now}
}

// Finished reports whether the session reached completion.
func (s Snapshot) Finished() bool {
	return s.EndTime != nil
}

// Remaining returns the session time left at now, never negative.
func (s Snapshot) Remaining(total time.Duration, now time.Time) time.Duration {
	left := total - now.Sub(s.StartTime)
	if left < 0 {
		return 0
	}
	return left
}

// Store persists session snapshots across process restarts.
type Store interface {
	Save(Snapshot) error
	Load() (Snapshot, bool, error)
	Clear() error
}
