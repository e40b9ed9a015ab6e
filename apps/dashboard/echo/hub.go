package echodash

import (
	"context"
	"sync"
	"time"

	"github.com/trezcool/attendly/core"
	"github.com/trezcool/attendly/core/capture"
	"github.com/trezcool/attendly/core/roster"
	notifysvc "github.com/trezcool/attendly/services/notify"
	"github.com/trezcool/attendly/storage/remote"
)

const refreshTimeout = 30 * time.Second

// hub holds everything the dashboard runs for one attendance session:
// its roster, both capture modes and the notifications waiting for the browser.
type hub struct {
	sessionID int
	notes     *notifysvc.Buffer
	roster    *roster.Reconciler
	window    *capture.WindowController
	stream    *capture.StreamController
	logger    core.Logger

	mu    sync.Mutex
	token string
	ended chan struct{} // closed when the current stream is over
}

func newHub(sessionID int, opts *Options) *hub {
	h := &hub{
		sessionID: sessionID,
		notes:     notifysvc.NewBuffer(0),
		logger:    opts.Logger,
	}
	h.roster = roster.NewReconciler(roster.Options{
		Repo:       opts.Repo,
		SessionID:  sessionID,
		Notifier:   h.notes,
		Logger:     opts.Logger,
		Validate:   opts.Validate,
		Translator: opts.Translator,
	})
	h.window = capture.NewWindowController(capture.Options{
		Recognizer: opts.Recognizer,
		Validate:   opts.Validate,
		Translator: opts.Translator,
		Logger:     opts.Logger,
	})
	h.stream = capture.NewStreamController(capture.Options{
		Recognizer: opts.Recognizer,
		Validate:   opts.Validate,
		Translator: opts.Translator,
		Logger:     opts.Logger,
		OnChange:   h.onStreamChange,
		OnComplete: h.onStreamComplete,
	})
	return h
}

// authorize records the token of the last operator, used by the refreshes no request waits for.
func (h *hub) authorize(token string) {
	h.mu.Lock()
	h.token = token
	h.mu.Unlock()
}

func (h *hub) onStreamChange(s capture.State) {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch s.Phase() {
	case capture.PhaseStarting:
		h.ended = make(chan struct{})
	case capture.PhaseIdle, capture.PhaseError:
		h.endStream()
	}
}

// endStream must be called with h.mu held.
func (h *hub) endStream() {
	if h.ended != nil {
		close(h.ended)
		h.ended = nil
	}
}

// streamDone is closed once the current stream is over.
func (h *hub) streamDone() <-chan struct{} {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.ended == nil {
		done := make(chan struct{})
		close(done)
		return done
	}
	return h.ended
}

// onStreamComplete refreshes the roster: the backend recorded who it recognized.
func (h *hub) onStreamComplete() {
	h.mu.Lock()
	token := h.token
	h.mu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(remote.WithToken(context.Background(), token), refreshTimeout)
		defer cancel()
		if err := h.roster.Refresh(ctx); err != nil {
			h.logger.Warn("refreshing roster after recognition", err, map[string]interface{}{"session_id": h.sessionID})
		}
	}()
}

func (h *hub) close() {
	h.window.Close()
	h.stream.Close()
	h.mu.Lock()
	h.endStream()
	h.mu.Unlock()
}

type hubRegistry struct {
	opts *Options

	mu     sync.Mutex
	hubs   map[int]*hub
	closed bool
}

func newHubRegistry(opts *Options) *hubRegistry {
	return &hubRegistry{opts: opts, hubs: make(map[int]*hub)}
}

func (r *hubRegistry) get(sessionID int) (*hub, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, capture.ErrClosed
	}
	h, ok := r.hubs[sessionID]
	if !ok {
		h = newHub(sessionID, r.opts)
		r.hubs[sessionID] = h
	}
	return h, nil
}

// lookup returns the hub of sessionID if one is registered.
func (r *hubRegistry) lookup(sessionID int) (*hub, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, false, capture.ErrClosed
	}
	h, ok := r.hubs[sessionID]
	return h, ok, nil
}

// forget drops h unless one of its captures is running.
func (r *hubRegistry) forget(h *hub) {
	if !h.window.State().CanStart() || !h.stream.State().CanStart() {
		return
	}
	r.mu.Lock()
	if r.hubs[h.sessionID] == h {
		delete(r.hubs, h.sessionID)
	}
	r.mu.Unlock()
	h.close()
}

// closeAll releases every capture. The registry serves no hub afterwards.
func (r *hubRegistry) closeAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	for _, h := range r.hubs {
		h.close()
	}
}
