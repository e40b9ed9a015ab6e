package camerasvc

import (
	"github.com/trezcool/attendly/core"
	"github.com/trezcool/attendly/core/device"
)

// NewSource returns the static source when devices are configured, the V4L2 one otherwise.
func NewSource(conf *core.Config, logger core.Logger) device.Source {
	if len(conf.Camera.Devices) > 0 {
		return NewStaticSource(conf.Camera.Devices)
	}
	return NewV4L2Source(conf, logger)
}
