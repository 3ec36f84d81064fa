package speech

import "sync"

// Relay forwards listener callbacks to a target bound after
// construction. The service needs its listener at construction time,
// but the session controller that consumes the callbacks is built
// afterwards; the relay breaks that cycle.
type Relay struct {
	mu     sync.RWMutex
	target Listener
}

func NewRelay() *Relay {
	return &Relay{}
}

// Bind sets the callback target. Callbacks arriving before Bind are dropped.
func (r *Relay) Bind(target Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.target = target
}

func (r *Relay) TranscriptUpdated(text string) {
	if target := r.listener(); target != nil {
		target.TranscriptUpdated(text)
	}
}

func (r *Relay) AnswerComplete() {
	if target := r.listener(); target != nil {
		target.AnswerComplete()
	}
}

func (r *Relay) RecordingError(err error) {
	if target := r.listener(); target != nil {
		target.RecordingError(err)
	}
}

func (r *Relay) listener() Listener {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.target
}
