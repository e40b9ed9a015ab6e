package camerasvc

import (
	"context"
	"strconv"
	"strings"

	"github.com/trezcool/attendly/core/device"
)

// StaticSource serves a fixed device list, eg. when the capture devices live on the backend host.
type StaticSource struct {
	cams []device.Camera
}

var _ device.Source = (*StaticSource)(nil)

// NewStaticSource parses specs of the form "label" or "id=label".
func NewStaticSource(specs []string) *StaticSource {
	cams := make([]device.Camera, 0, len(specs))
	for _, spec := range specs {
		spec = strings.TrimSpace(spec)
		if spec == "" {
			continue
		}
		cam := device.Camera{ID: "static:" + strconv.Itoa(len(cams)), Label: spec, Index: len(cams)}
		if i := strings.Index(spec, "="); i >= 0 {
			cam.ID = strings.TrimSpace(spec[:i])
			cam.Label = strings.TrimSpace(spec[i+1:])
		}
		cams = append(cams, cam)
	}
	return &StaticSource{cams: cams}
}

func (s *StaticSource) Devices(ctx context.Context) ([]device.Camera, error) {
	cams := make([]device.Camera, len(s.cams))
	copy(cams, s.cams)
	return cams, nil
}

// Watch never signals: the list does not change.
func (s *StaticSource) Watch(ctx context.Context) (<-chan struct{}, error) { return nil, nil }
