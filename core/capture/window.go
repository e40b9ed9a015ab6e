package capture

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/attendly/core/attendance"
)

// WindowController drives the external-window recognition process of one session through start and stop signals.
type WindowController struct {
	opts Options

	mu      sync.Mutex
	state   State
	lastErr string
	target  attendance.CaptureTarget
	closed  bool
}

func NewWindowController(opts Options) *WindowController {
	opts.setDefaults()
	return &WindowController{opts: opts}
}

func (c *WindowController) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastError is the message of the last failed request, cleared by the next successful one.
func (c *WindowController) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Start asks the backend to open the recognition window for target.
// It is a no-op returning ErrTransitionDisabled unless the state is Idle or Error.
func (c *WindowController) Start(ctx context.Context, target attendance.CaptureTarget) error {
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
	c.target = target
	c.lastErr = ""
	c.state = Starting()
	c.mu.Unlock()
	c.opts.changed(Starting())

	msg, err := c.opts.Recognizer.StartWindow(ctx, target)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if err != nil {
		c.lastErr = errorMessage(err)
		c.state = Failed(c.lastErr)
		st := c.state
		c.mu.Unlock()
		c.opts.changed(st)
		c.opts.Logger.Warn("starting recognition window", err, map[string]interface{}{"session_id": target.SessionID})
		return errors.Wrap(err, "starting recognition window")
	}
	c.state = Active(orDefault(msg, "Started"))
	st := c.state
	c.mu.Unlock()
	c.opts.changed(st)
	c.opts.Logger.Info("recognition window started", map[string]interface{}{"session_id": target.SessionID, "camera": target.Camera})
	return nil
}

// Stop asks the backend to close the recognition window.
// It is a no-op returning ErrTransitionDisabled unless the state is Active.
// On failure the state goes back to Active so that stop can be retried.
func (c *WindowController) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if !c.state.CanStop() {
		c.mu.Unlock()
		return ErrTransitionDisabled
	}
	prev := c.state
	sessionID := c.target.SessionID
	c.lastErr = ""
	c.state = Stopping()
	c.mu.Unlock()
	c.opts.changed(Stopping())

	msg, err := c.opts.Recognizer.StopWindow(ctx, sessionID)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if err != nil {
		c.lastErr = errorMessage(err)
		c.state = prev
		c.mu.Unlock()
		c.opts.changed(prev)
		c.opts.Logger.Warn("stopping recognition window", err, map[string]interface{}{"session_id": sessionID})
		return errors.Wrap(err, "stopping recognition window")
	}
	c.state = Idle(orDefault(msg, "Stopped"))
	st := c.state
	c.mu.Unlock()
	c.opts.changed(st)
	c.opts.Logger.Info("recognition window stopped", map[string]interface{}{"session_id": sessionID})
	return nil
}

// Close detaches the controller: results of in-flight requests are discarded and no more transitions are reported.
func (c *WindowController) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}
