package speech

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type countingListener struct {
	transcripts []string
	completes   int
	errs        []error
}

func (l *countingListener) TranscriptUpdated(text string) { l.transcripts = append(l.transcripts, text) }
func (l *countingListener) AnswerComplete()               { l.completes++ }
func (l *countingListener) RecordingError(err error)      { l.errs = append(l.errs, err) }

func TestRelayDropsCallbacksBeforeBind(t *testing.T) {
	relay := NewRelay()
	relay.TranscriptUpdated("early")
	relay.AnswerComplete()
	relay.RecordingError(errors.New("early"))

	target := &countingListener{}
	relay.Bind(target)
	assert.Empty(t, target.transcripts)
	assert.Zero(t, target.completes)
}

func TestRelayForwardsAfterBind(t *testing.T) {
	relay := NewRelay()
	target := &countingListener{}
	relay.Bind(target)

	relay.TranscriptUpdated("hello")
	relay.AnswerComplete()
	relay.RecordingError(ErrNoMicrophone)

	assert.Equal(t, []string{"hello"}, target.transcripts)
	assert.Equal(t, 1, target.completes)
	assert.ErrorIs(t, target.errs[0], ErrNoMicrophone)
}
