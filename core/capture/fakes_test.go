package capture

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/trezcool/attendly/core/attendance"
)

type fakeRecognizer struct {
	mu         sync.Mutex
	startMsg   string
	startErr   error
	stopMsg    string
	stopErr    error
	block      chan struct{} // when set, StartWindow waits for it
	startCalls int
	stopCalls  int
	openCalls  int
	openErr    error
	stream     *fakeStream
}

func (r *fakeRecognizer) StartWindow(ctx context.Context, target attendance.CaptureTarget) (string, error) {
	r.mu.Lock()
	r.startCalls++
	block := r.block
	r.mu.Unlock()
	if block != nil {
		<-block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.startMsg, r.startErr
}

func (r *fakeRecognizer) StopWindow(ctx context.Context, sessionID int) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopCalls++
	return r.stopMsg, r.stopErr
}

func (r *fakeRecognizer) OpenStream(ctx context.Context, target attendance.CaptureTarget) (attendance.Stream, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.openCalls++
	if r.openErr != nil {
		return nil, r.openErr
	}
	return r.stream, nil
}

func (r *fakeRecognizer) counts() (start, stop, open int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.startCalls, r.stopCalls, r.openCalls
}

type fakeStream struct {
	frames chan attendance.Frame
	errs   chan error
	done   chan struct{}
	once   sync.Once
}

func newFakeStream() *fakeStream {
	return &fakeStream{
		frames: make(chan attendance.Frame, 8),
		errs:   make(chan error, 1),
		done:   make(chan struct{}),
	}
}

func (s *fakeStream) Next() (attendance.Frame, error) {
	select {
	case f, ok := <-s.frames:
		if !ok {
			return attendance.Frame{}, io.EOF
		}
		return f, nil
	case err := <-s.errs:
		return attendance.Frame{}, err
	case <-s.done:
		return attendance.Frame{}, errors.New("use of closed stream")
	}
}

func (s *fakeStream) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

func (s *fakeStream) isClosed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

type stateLog struct {
	mu     sync.Mutex
	states []State
}

func (l *stateLog) record(s State) {
	l.mu.Lock()
	l.states = append(l.states, s)
	l.mu.Unlock()
}

func (l *stateLog) phases() []Phase {
	l.mu.Lock()
	defer l.mu.Unlock()
	phases := make([]Phase, 0, len(l.states))
	for _, s := range l.states {
		phases = append(phases, s.Phase())
	}
	return phases
}
