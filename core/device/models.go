package device

import (
	"context"
	"errors"
	"strconv"
)

// PreferredCameraKey is the preference key holding the last chosen camera index, as a stringified integer.
const PreferredCameraKey = "preferred_camera_index"

var (
	// errors
	ErrNoCamera    = errors.New("no camera detected")
	ErrNotReady    = errors.New("camera devices are not enumerated yet")
	ErrEnumeration = errors.New("unable to access camera devices, check permissions")
)

// Camera is a video input device as enumerated at a point in time.
type Camera struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Index int    `json:"index"`
}

// DisplayName is the Label or "Camera {index}" when the platform exposes none.
func (c Camera) DisplayName() string {
	if c.Label != "" {
		return c.Label
	}
	return "Camera " + strconv.Itoa(c.Index)
}

// Selection is what the Selector hands to its consumer.
type Selection struct {
	DeviceID string `json:"device_id"`
	Index    int    `json:"index"`
}

// State of the Selector.
type State string

const (
	StateLoading  State = "loading"
	StateReady    State = "ready"
	StateNoCamera State = "no_camera"
	StateFailed   State = "failed"
)

type (
	// Source enumerates video input devices.
	Source interface {
		// Devices lists the video input devices, indexed in enumeration order.
		Devices(ctx context.Context) ([]Camera, error)
		// Watch signals every change of the underlying device list until ctx is done.
		Watch(ctx context.Context) (<-chan struct{}, error)
	}

	// Preferences is a persistent key-value store.
	Preferences interface {
		Get(key string) (value string, ok bool, err error)
		Set(key, value string) error
	}
)
