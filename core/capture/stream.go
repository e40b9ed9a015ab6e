package capture

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/attendly/core/attendance"
)

const (
	streamActiveText      = "Face recognition is active. Stand in front of the camera to be marked present."
	streamFailedText      = "Failed to connect to the face recognition stream. Please try again."
	streamInterruptedText = "The stream failed to load. Please try again or check your connection."
	streamCompletedText   = "Face recognition completed"
	streamStoppedText     = "Stopped"
)

// StreamController drives the embedded recognition stream of one session.
// The stream is "ready" once its first frame is received; frames are published to Frames().
type StreamController struct {
	opts   Options
	frames *Broadcaster

	mu     sync.Mutex
	state  State
	gen    uint64 // bumped whenever the current stream is released
	cancel context.CancelFunc
	stream attendance.Stream
	target attendance.CaptureTarget
	closed bool
}

func NewStreamController(opts Options) *StreamController {
	opts.setDefaults()
	return &StreamController{opts: opts, frames: NewBroadcaster()}
}

func (c *StreamController) Frames() *Broadcaster { return c.frames }

func (c *StreamController) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Target is the session and camera of the current (or last) stream.
func (c *StreamController) Target() attendance.CaptureTarget {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target
}

// Start opens the stream and waits for its first frame.
// The stream outlives ctx; it is released by Stop, Close or the backend ending it.
func (c *StreamController) Start(ctx context.Context, target attendance.CaptureTarget) error {
	if err := c.opts.validate(target); err != nil {
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if !c.state.CanStart() {
		c.mu.Unlock()
		return ErrTransitionDisabled
	}
	streamCtx, cancel := context.WithCancel(detached{ctx})
	c.gen++
	gen := c.gen
	c.cancel = cancel
	c.target = target
	c.state = Starting()
	c.mu.Unlock()
	c.opts.changed(Starting())

	// abort while loading if the caller goes away
	loaded := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-loaded:
		}
	}()
	stream, first, err := c.load(streamCtx, target)
	close(loaded)

	c.mu.Lock()
	if c.closed || gen != c.gen {
		c.mu.Unlock()
		if stream != nil {
			_ = stream.Close()
		}
		cancel()
		return ErrClosed
	}
	if err != nil {
		cancel()
		c.cancel = nil
		c.state = Failed(streamFailedText)
		c.mu.Unlock()
		c.opts.changed(Failed(streamFailedText))
		c.opts.Logger.Warn("loading recognition stream", err, map[string]interface{}{"session_id": target.SessionID})
		return errors.Wrap(err, "loading recognition stream")
	}
	c.stream = stream
	c.state = Active(streamActiveText)
	c.frames.Publish(first)
	c.mu.Unlock()
	c.opts.changed(Active(streamActiveText))
	c.opts.Logger.Info("recognition stream active", map[string]interface{}{"session_id": target.SessionID, "camera": target.Camera})

	go c.pump(gen, stream)
	return nil
}

// detached keeps the values of a context (eg. credentials) but not its cancellation.
type detached struct{ context.Context }

func (detached) Deadline() (time.Time, bool) { return time.Time{}, false }
func (detached) Done() <-chan struct{}       { return nil }
func (detached) Err() error                  { return nil }

func (c *StreamController) load(ctx context.Context, target attendance.CaptureTarget) (attendance.Stream, attendance.Frame, error) {
	stream, err := c.opts.Recognizer.OpenStream(ctx, target)
	if err != nil {
		return nil, attendance.Frame{}, err
	}
	first, err := stream.Next()
	if err != nil {
		_ = stream.Close()
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, attendance.Frame{}, err
	}
	return stream, first, nil
}

func (c *StreamController) pump(gen uint64, stream attendance.Stream) {
	var err error
	for {
		var frame attendance.Frame
		if frame, err = stream.Next(); err != nil {
			break
		}
		c.mu.Lock()
		if c.closed || gen != c.gen { // released meanwhile: drop the frame
			c.mu.Unlock()
			return
		}
		c.frames.Publish(frame)
		c.mu.Unlock()
	}

	c.mu.Lock()
	if c.closed || gen != c.gen { // released by Stop or Close
		c.mu.Unlock()
		return
	}
	c.gen++
	c.release()
	var st State
	if err == io.EOF {
		st = Idle(streamCompletedText)
	} else {
		st = Failed(streamInterruptedText)
	}
	c.state = st
	c.mu.Unlock()
	c.opts.changed(st)

	if err == io.EOF {
		c.opts.Logger.Info("recognition stream completed", map[string]interface{}{"session_id": c.Target().SessionID})
		c.complete()
	} else {
		c.opts.Logger.Warn("recognition stream interrupted", err)
	}
}

// Stop releases the stream; the backend persists what it recognized so the refresh trigger fires.
// It is a no-op returning ErrTransitionDisabled unless the state is Active.
func (c *StreamController) Stop() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if !c.state.CanStop() {
		c.mu.Unlock()
		return ErrTransitionDisabled
	}
	c.gen++
	c.state = Stopping()
	c.mu.Unlock()
	c.opts.changed(Stopping())

	c.mu.Lock()
	c.release()
	c.state = Idle(streamStoppedText)
	c.mu.Unlock()
	c.opts.changed(Idle(streamStoppedText))

	c.complete()
	return nil
}

// Close releases the stream synchronously and detaches the controller. Safe to call multiple times.
func (c *StreamController) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.gen++
	c.release()
	c.state = Idle("")
}

// release must be called with c.mu held.
func (c *StreamController) release() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.stream != nil {
		_ = c.stream.Close()
		c.stream = nil
	}
	c.frames.Reset()
}

func (c *StreamController) complete() {
	if c.opts.OnComplete != nil {
		c.opts.OnComplete()
	}
}
