package device

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/attendly/core"
)

const fallbackText = "Previously selected camera not found. Falling back to the first camera."

type (
	Options struct {
		Source   Source
		Prefs    Preferences
		Notifier core.Notifier
		Logger   core.Logger
		// OnSelect receives the resolved selection once per enumeration result and on every user selection.
		OnSelect func(Selection)
	}

	// Selector enumerates the video input devices, restores the preferred one and keeps following the device list.
	Selector struct {
		opts Options

		mu       sync.RWMutex
		state    State
		devices  []Camera
		selected int
		err      error
	}

	// View is a snapshot of the Selector.
	View struct {
		State    State    `json:"state"`
		Devices  []Camera `json:"devices"`
		Selected *Camera  `json:"selected,omitempty"`
		Error    string   `json:"error,omitempty"`
	}
)

func NewSelector(opts Options) *Selector {
	if opts.Logger == nil {
		opts.Logger = core.NopLogger
	}
	return &Selector{opts: opts, state: StateLoading}
}

// ResolveIndex parses the stored index and validates it against n enumerated devices.
// An absent value resolves to 0 silently; an unparseable or out of range value resolves to 0 with fellBack set.
func ResolveIndex(stored string, n int) (index int, fellBack bool) {
	stored = strings.TrimSpace(stored)
	if stored == "" {
		return 0, false
	}
	i, err := strconv.Atoi(stored)
	if err != nil || i < 0 || i >= n {
		return 0, true
	}
	return i, false
}

// Run enumerates the devices and re-enumerates on every device change until ctx is done.
// An enumeration failure is terminal: the Selector moves to StateFailed and Run returns the error, without retry.
func (s *Selector) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel() // releases the watch subscription on every return path

	changes, err := s.opts.Source.Watch(ctx)
	if err != nil {
		s.opts.Logger.Warn("device change notifications unavailable", errors.Wrap(err, "watching devices"))
		changes = nil
	}

	if err = s.Refresh(ctx); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			if err = s.Refresh(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
	}
}

// Refresh enumerates the devices once and emits the resolved selection.
func (s *Selector) Refresh(ctx context.Context) error {
	devices, err := s.opts.Source.Devices(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.mu.Lock()
		s.state = StateFailed
		s.devices = nil
		s.err = ErrEnumeration
		s.mu.Unlock()
		s.opts.Logger.Error("enumerating camera devices", errors.Wrap(err, "enumerating devices"))
		return ErrEnumeration
	}

	if len(devices) == 0 {
		s.mu.Lock()
		s.state = StateNoCamera
		s.devices = nil
		s.err = nil
		s.mu.Unlock()
		return nil
	}

	for i := range devices {
		devices[i].Index = i
	}
	index, fellBack := ResolveIndex(s.storedIndex(), len(devices))
	if fellBack {
		core.Warning(s.opts.Notifier, fallbackText)
	}

	s.mu.Lock()
	s.state = StateReady
	s.devices = devices
	s.selected = index
	s.err = nil
	s.mu.Unlock()

	s.emit(devices[index])
	return nil
}

// Select is the user-initiated choice of a camera: it persists the index, emits and notifies.
func (s *Selector) Select(index int) (Camera, error) {
	s.mu.Lock()
	switch s.state {
	case StateNoCamera:
		s.mu.Unlock()
		return Camera{}, ErrNoCamera
	case StateReady: // pass
	default:
		s.mu.Unlock()
		return Camera{}, ErrNotReady
	}
	if index < 0 || index >= len(s.devices) {
		n := len(s.devices)
		s.mu.Unlock()
		return Camera{}, core.NewValidationError(nil, core.FieldError{
			Field: "index",
			Error: fmt.Sprintf("camera index must be between 0 and %d", n-1),
		})
	}
	s.selected = index
	cam := s.devices[index]
	s.mu.Unlock()

	if err := s.opts.Prefs.Set(PreferredCameraKey, strconv.Itoa(index)); err != nil {
		s.opts.Logger.Warn("persisting preferred camera", errors.Wrap(err, "setting preference"))
	}
	s.emit(cam)
	core.Success(s.opts.Notifier, "Camera switched to "+cam.DisplayName())
	return cam, nil
}

// Selected returns the current selection. ok is false unless the Selector is ready.
func (s *Selector) Selected() (cam Camera, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != StateReady {
		return Camera{}, false
	}
	return s.devices[s.selected], true
}

func (s *Selector) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()

	view := View{State: s.state, Devices: make([]Camera, len(s.devices))}
	copy(view.Devices, s.devices)
	if s.state == StateReady {
		cam := s.devices[s.selected]
		view.Selected = &cam
	}
	if s.err != nil {
		view.Error = s.err.Error()
	}
	return view
}

func (s *Selector) storedIndex() string {
	val, ok, err := s.opts.Prefs.Get(PreferredCameraKey)
	if err != nil {
		s.opts.Logger.Warn("reading preferred camera", errors.Wrap(err, "getting preference"))
		return ""
	}
	if !ok {
		return ""
	}
	return val
}

func (s *Selector) emit(cam Camera) {
	if s.opts.OnSelect != nil {
		s.opts.OnSelect(Selection{DeviceID: cam.ID, Index: cam.Index})
	}
}
