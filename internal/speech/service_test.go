package speech

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeStream struct {
	results chan Result
	err     error

	mu     sync.Mutex
	closed bool
}

func newFakeStream(err error) *fakeStream {
	return &fakeStream{results: make(chan Result, 32), err: err}
}

func (f *fakeStream) Results() <-chan Result { return f.results }

func (f *fakeStream) Err() error { return f.err }

func (f *fakeStream) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.results)
	}
	return nil
}

func (f *fakeStream) emit(text string, final bool) {
	f.results <- Result{Text: text, Final: final}
}

func (f *fakeStream) end() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.results)
	}
}

// fakeSource hands out scripted streams in order, then blocks open attempts.
type fakeSource struct {
	mu      sync.Mutex
	streams []*fakeStream
	openErr error
	opens   atomic.Int32
}

func (f *fakeSource) Open(ctx context.Context) (Stream, error) {
	f.opens.Add(1)
	if f.openErr != nil {
		return nil, f.openErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.streams) == 0 {
		// no more scripted streams; park until the test finishes
		<-ctx.Done()
		return nil, ctx.Err()
	}
	stream := f.streams[0]
	f.streams = f.streams[1:]
	return stream, nil
}

type recordingListener struct {
	updates   chan string
	completes chan struct{}
	errors    chan error
}

func newRecordingListener() *recordingListener {
	return &recordingListener{
		updates:   make(chan string, 64),
		completes: make(chan struct{}, 4),
		errors:    make(chan error, 4),
	}
}

func (l *recordingListener) TranscriptUpdated(text string) { l.updates <- text }
func (l *recordingListener) AnswerComplete()               { l.completes <- struct{}{} }
func (l *recordingListener) RecordingError(err error)      { l.errors <- err }

func waitUpdate(t *testing.T, l *recordingListener) string {
	t.Helper()
	select {
	case text := <-l.updates:
		return text
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for transcript update")
		return ""
	}
}

func TestAccumulatesFinalizedAndPendingText(t *testing.T) {
	stream := newFakeStream(nil)
	source := &fakeSource{streams: []*fakeStream{stream}}
	listener := newRecordingListener()
	svc := New(nil, source, listener)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, svc.StartRecording(ctx))

	stream.emit("I am", true)
	require.Equal(t, "I am ", waitUpdate(t, listener))

	stream.emit("a soft", false)
	require.Equal(t, "I am a soft", waitUpdate(t, listener))

	stream.emit("a software engineer", true)
	require.Equal(t, "I am a software engineer ", waitUpdate(t, listener))

	require.Equal(t, "I am a software engineer", svc.FinalTranscript())
	svc.StopRecording()
}

func TestSilenceCompletionSignalsExactlyOnce(t *testing.T) {
	stream := newFakeStream(nil)
	source := &fakeSource{streams: []*fakeStream{stream}}
	listener := newRecordingListener()
	svc := New(nil, source, listener)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, svc.StartRecording(ctx))

	stream.emit("I am a software engineer", true)
	for i := 0; i < 6; i++ {
		stream.emit("", false)
	}

	select {
	case <-listener.completes:
	case <-time.After(time.Second):
		t.Fatal("expected answer-complete signal")
	}

	require.False(t, svc.Recording())
	require.Equal(t, "I am a software engineer", svc.FinalTranscript())

	select {
	case <-listener.completes:
		t.Fatal("answer-complete signaled more than once")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSilenceStreakResetsOnNewPendingText(t *testing.T) {
	stream := newFakeStream(nil)
	source := &fakeSource{streams: []*fakeStream{stream}}
	listener := newRecordingListener()
	svc := New(nil, source, listener)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, svc.StartRecording(ctx))

	stream.emit("hello", true)
	for i := 0; i < 4; i++ {
		stream.emit("", false)
	}
	stream.emit("more", false) // speech resumes; streak resets
	for i := 0; i < 5; i++ {
		stream.emit("", false)
	}

	// drain updates; no completion may fire (streak never exceeded threshold)
	for i := 0; i < 11; i++ {
		waitUpdate(t, listener)
	}
	select {
	case <-listener.completes:
		t.Fatal("unexpected answer-complete signal")
	case <-time.After(50 * time.Millisecond):
	}
	svc.StopRecording()
}

func TestNoSilenceSignalWithoutFinalizedText(t *testing.T) {
	stream := newFakeStream(nil)
	source := &fakeSource{streams: []*fakeStream{stream}}
	listener := newRecordingListener()
	svc := New(nil, source, listener)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, svc.StartRecording(ctx))

	for i := 0; i < 10; i++ {
		stream.emit("", false)
		waitUpdate(t, listener)
	}
	select {
	case <-listener.completes:
		t.Fatal("silence must not complete an answer with no finalized speech")
	case <-time.After(50 * time.Millisecond):
	}
	svc.StopRecording()
}

func TestAutoRestartAfterStreamEnd(t *testing.T) {
	first := newFakeStream(nil)
	second := newFakeStream(nil)
	source := &fakeSource{streams: []*fakeStream{first, second}}
	listener := newRecordingListener()
	svc := New(nil, source, listener)

	var restarts atomic.Int32
	svc.OnRestart = func() { restarts.Add(1) }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, svc.StartRecording(ctx))

	first.emit("hello", true)
	waitUpdate(t, listener)
	first.end()

	second.emit("world", true)
	require.Equal(t, "hello world ", waitUpdate(t, listener))
	require.Equal(t, int32(1), restarts.Load())
	require.GreaterOrEqual(t, source.opens.Load(), int32(2))
	svc.StopRecording()
}

func TestStopRecordingSuppressesRestart(t *testing.T) {
	stream := newFakeStream(nil)
	source := &fakeSource{streams: []*fakeStream{stream}}
	listener := newRecordingListener()
	svc := New(nil, source, listener)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, svc.StartRecording(ctx))

	stream.emit("hello", true)
	waitUpdate(t, listener)

	svc.StopRecording()
	svc.StopRecording() // idempotent

	time.Sleep(50 * time.Millisecond)
	require.Equal(t, int32(1), source.opens.Load())
	require.False(t, svc.Recording())
	require.Equal(t, "hello", svc.FinalTranscript())
}

func TestTerminalErrorStopsRecordingAndKeepsPartial(t *testing.T) {
	stream := newFakeStream(ErrPermissionDenied)
	source := &fakeSource{streams: []*fakeStream{stream}}
	listener := newRecordingListener()
	svc := New(nil, source, listener)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, svc.StartRecording(ctx))

	stream.emit("partial answer", true)
	waitUpdate(t, listener)
	stream.end()

	select {
	case err := <-listener.errors:
		require.ErrorIs(t, err, ErrPermissionDenied)
	case <-time.After(time.Second):
		t.Fatal("expected recording error")
	}
	require.False(t, svc.Recording())
	require.Equal(t, "partial answer", svc.FinalTranscript())
}

func TestNoSpeechErrorIsIgnoredAndStreamRestarts(t *testing.T) {
	first := newFakeStream(ErrNoSpeech)
	second := newFakeStream(nil)
	source := &fakeSource{streams: []*fakeStream{first, second}}
	listener := newRecordingListener()
	svc := New(nil, source, listener)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, svc.StartRecording(ctx))

	first.end()

	second.emit("recovered", true)
	require.Equal(t, "recovered ", waitUpdate(t, listener))
	select {
	case <-listener.errors:
		t.Fatal("no-speech must not surface as a recording error")
	default:
	}
	svc.StopRecording()
}

func TestResetClearsTranscriptState(t *testing.T) {
	stream := newFakeStream(nil)
	source := &fakeSource{streams: []*fakeStream{stream}}
	listener := newRecordingListener()
	svc := New(nil, source, listener)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, svc.StartRecording(ctx))
	stream.emit("old answer", true)
	waitUpdate(t, listener)

	svc.Reset()
	require.Equal(t, "", svc.FinalTranscript())
	require.False(t, svc.Recording())
}

func TestStartRecordingWhileActiveFails(t *testing.T) {
	stream := newFakeStream(nil)
	source := &fakeSource{streams: []*fakeStream{stream}}
	svc := New(nil, source, newRecordingListener())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, svc.StartRecording(ctx))
	require.Error(t, svc.StartRecording(ctx))
	svc.StopRecording()
}

func TestTerminalClassification(t *testing.T) {
	require.False(t, Terminal(nil))
	require.False(t, Terminal(ErrNoSpeech))
	require.True(t, Terminal(ErrNoMicrophone))
	require.True(t, Terminal(ErrPermissionDenied))
	require.True(t, Terminal(context.DeadlineExceeded))
}
