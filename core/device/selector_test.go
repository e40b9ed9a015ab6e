package device

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/attendly/core"
)

type fakeSource struct {
	mu       sync.Mutex
	devices  []Camera
	err      error
	changes  chan struct{}
	watchCtx context.Context
}

func (f *fakeSource) Devices(ctx context.Context) ([]Camera, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	devices := make([]Camera, len(f.devices))
	copy(devices, f.devices)
	return devices, nil
}

func (f *fakeSource) Watch(ctx context.Context) (<-chan struct{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.watchCtx = ctx
	return f.changes, nil
}

func (f *fakeSource) setDevices(devices ...Camera) {
	f.mu.Lock()
	f.devices = devices
	f.mu.Unlock()
}

type mapPrefs map[string]string

func (p mapPrefs) Get(key string) (string, bool, error) {
	v, ok := p[key]
	return v, ok, nil
}

func (p mapPrefs) Set(key, value string) error {
	p[key] = value
	return nil
}

type notifications struct {
	mu   sync.Mutex
	list []core.Notification
}

func (n *notifications) Notify(notif core.Notification) {
	n.mu.Lock()
	n.list = append(n.list, notif)
	n.mu.Unlock()
}

func (n *notifications) byLevel(level core.NotificationLevel) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	msgs := make([]string, 0)
	for _, notif := range n.list {
		if notif.Level == level {
			msgs = append(msgs, notif.Message)
		}
	}
	return msgs
}

func twoCameras() []Camera {
	return []Camera{{ID: "/dev/video0", Label: "Front"}, {ID: "/dev/video2"}}
}

func setup(prefs mapPrefs, devices ...Camera) (*Selector, *fakeSource, *notifications, *[]Selection) {
	src := &fakeSource{devices: devices, changes: make(chan struct{})}
	notifs := new(notifications)
	selections := make([]Selection, 0)
	var mu sync.Mutex
	sel := NewSelector(Options{
		Source:   src,
		Prefs:    prefs,
		Notifier: notifs,
		OnSelect: func(s Selection) {
			mu.Lock()
			selections = append(selections, s)
			mu.Unlock()
		},
	})
	return sel, src, notifs, &selections
}

func TestResolveIndex(t *testing.T) {
	tests := []struct {
		name         string
		stored       string
		n            int
		wantIndex    int
		wantFellBack bool
	}{
		{name: "absent", stored: "", n: 2, wantIndex: 0},
		{name: "in range", stored: "1", n: 2, wantIndex: 1},
		{name: "first", stored: "0", n: 1, wantIndex: 0},
		{name: "padded", stored: " 1 ", n: 3, wantIndex: 1},
		{name: "out of range", stored: "5", n: 2, wantIndex: 0, wantFellBack: true},
		{name: "upper bound", stored: "2", n: 2, wantIndex: 0, wantFellBack: true},
		{name: "negative", stored: "-1", n: 2, wantIndex: 0, wantFellBack: true},
		{name: "unparseable", stored: "lol", n: 2, wantIndex: 0, wantFellBack: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			index, fellBack := ResolveIndex(tt.stored, tt.n)
			assert.Equal(t, tt.wantIndex, index)
			assert.Equal(t, tt.wantFellBack, fellBack)
		})
	}
}

func TestSelector_Refresh(t *testing.T) {
	t.Run("stored index out of range falls back once", func(t *testing.T) {
		sel, _, notifs, selections := setup(mapPrefs{PreferredCameraKey: "5"}, twoCameras()...)

		require.NoError(t, sel.Refresh(context.Background()))

		assert.Equal(t, []Selection{{DeviceID: "/dev/video0", Index: 0}}, *selections)
		assert.Equal(t, []string{fallbackText}, notifs.byLevel(core.NotifyWarning))
		cam, ok := sel.Selected()
		assert.True(t, ok)
		assert.Equal(t, "Front", cam.DisplayName())
	})

	t.Run("stored index in range is restored", func(t *testing.T) {
		sel, _, notifs, selections := setup(mapPrefs{PreferredCameraKey: "1"}, twoCameras()...)

		require.NoError(t, sel.Refresh(context.Background()))

		assert.Equal(t, []Selection{{DeviceID: "/dev/video2", Index: 1}}, *selections)
		assert.Empty(t, notifs.byLevel(core.NotifyWarning))
		cam, _ := sel.Selected()
		assert.Equal(t, "Camera 1", cam.DisplayName())
	})

	t.Run("no stored index", func(t *testing.T) {
		sel, _, notifs, selections := setup(mapPrefs{}, twoCameras()...)

		require.NoError(t, sel.Refresh(context.Background()))

		assert.Equal(t, []Selection{{DeviceID: "/dev/video0", Index: 0}}, *selections)
		assert.Empty(t, notifs.list)
	})

	t.Run("no camera", func(t *testing.T) {
		sel, _, _, selections := setup(mapPrefs{})

		require.NoError(t, sel.Refresh(context.Background()))

		assert.Empty(t, *selections)
		assert.Equal(t, StateNoCamera, sel.View().State)
		_, err := sel.Select(0)
		assert.Equal(t, ErrNoCamera, err)
	})

	t.Run("enumeration failure is distinct from no camera", func(t *testing.T) {
		sel, src, _, selections := setup(mapPrefs{}, twoCameras()...)
		src.err = errors.New("permission denied")

		err := sel.Refresh(context.Background())

		assert.Equal(t, ErrEnumeration, err)
		assert.Empty(t, *selections)
		view := sel.View()
		assert.Equal(t, StateFailed, view.State)
		assert.Equal(t, ErrEnumeration.Error(), view.Error)
		_, err = sel.Select(0)
		assert.Equal(t, ErrNotReady, err)
	})
}

func TestSelector_Select(t *testing.T) {
	prefs := mapPrefs{}
	sel, _, notifs, selections := setup(prefs, twoCameras()...)
	require.NoError(t, sel.Refresh(context.Background()))

	cam, err := sel.Select(1)
	require.NoError(t, err)
	assert.Equal(t, 1, cam.Index)
	assert.Equal(t, "1", prefs[PreferredCameraKey])
	assert.Equal(t, []Selection{{"/dev/video0", 0}, {"/dev/video2", 1}}, *selections)
	assert.Equal(t, []string{"Camera switched to Camera 1"}, notifs.byLevel(core.NotifySuccess))

	_, err = sel.Select(2)
	assert.True(t, core.IsValidationError(err))
	assert.Equal(t, "1", prefs[PreferredCameraKey])
	assert.Len(t, *selections, 2)
}

func TestSelector_Run(t *testing.T) {
	sel, src, notifs, _ := setup(mapPrefs{PreferredCameraKey: "1"}, twoCameras()...)

	selected := make(chan Selection, 4)
	sel.opts.OnSelect = func(s Selection) { selected <- s }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sel.Run(ctx) }()

	select {
	case s := <-selected:
		assert.Equal(t, 1, s.Index)
	case <-time.After(time.Second):
		t.Fatal("no selection emitted after enumeration")
	}

	// camera 1 unplugged
	src.setDevices(Camera{ID: "/dev/video0", Label: "Front"})
	src.changes <- struct{}{}

	select {
	case s := <-selected:
		assert.Equal(t, Selection{DeviceID: "/dev/video0", Index: 0}, s)
	case <-time.After(time.Second):
		t.Fatal("no selection emitted after device change")
	}
	assert.Equal(t, []string{fallbackText}, notifs.byLevel(core.NotifyWarning))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	src.mu.Lock()
	watchCtx := src.watchCtx
	src.mu.Unlock()
	select {
	case <-watchCtx.Done():
	default:
		t.Error("watch subscription still alive after Run returned")
	}
}
