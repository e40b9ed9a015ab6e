package camerasvc

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"github.com/trezcool/attendly/core"
	"github.com/trezcool/attendly/core/device"
)

const nodePrefix = "video"

// V4L2Source enumerates the Video4Linux capture devices through sysfs and watches /dev for hot-plugs.
type V4L2Source struct {
	devDir string
	sysDir string
	logger core.Logger
}

var _ device.Source = (*V4L2Source)(nil)

func NewV4L2Source(conf *core.Config, logger core.Logger) *V4L2Source {
	if logger == nil {
		logger = core.NopLogger
	}
	return &V4L2Source{devDir: conf.Camera.DevDir, sysDir: conf.Camera.SysDir, logger: logger}
}

// Devices lists the capture nodes. Nodes with a non-zero sysfs index (metadata nodes of a camera) are skipped.
// A missing sysfs class directory means no camera, any other error means the devices cannot be accessed.
func (s *V4L2Source) Devices(ctx context.Context) ([]device.Camera, error) {
	entries, err := ioutil.ReadDir(s.sysDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []device.Camera{}, nil
		}
		return nil, errors.Wrapf(err, "reading %s", s.sysDir)
	}

	type node struct {
		num int
		cam device.Camera
	}
	nodes := make([]node, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		num, ok := nodeNumber(entry.Name())
		if !ok {
			continue
		}
		dir := filepath.Join(s.sysDir, entry.Name())
		if idx, ok := readAttr(dir, "index"); ok && idx != "0" {
			continue
		}
		label, _ := readAttr(dir, "name")
		nodes = append(nodes, node{
			num: num,
			cam: device.Camera{ID: filepath.Join(s.devDir, entry.Name()), Label: label},
		})
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].num < nodes[j].num })

	cams := make([]device.Camera, 0, len(nodes))
	for i, n := range nodes {
		n.cam.Index = i
		cams = append(cams, n.cam)
	}
	return cams, nil
}

// Watch signals when a video node appears in or disappears from the device directory.
// Bursts of events are coalesced. The watcher is closed when ctx is done.
func (s *V4L2Source) Watch(ctx context.Context) (<-chan struct{}, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "creating watcher")
	}
	if err = watcher.Add(s.devDir); err != nil {
		_ = watcher.Close()
		return nil, errors.Wrapf(err, "watching %s", s.devDir)
	}

	changes := make(chan struct{}, 1)
	go func() {
		defer close(changes)
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-watcher.Events:
				if !ok {
					return
				}
				if _, isNode := nodeNumber(filepath.Base(evt.Name)); !isNode {
					continue
				}
				if evt.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				select {
				case changes <- struct{}{}:
				default: // a change is already pending
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warn("watching camera devices", err)
			}
		}
	}()
	return changes, nil
}

// nodeNumber parses "videoN".
func nodeNumber(name string) (int, bool) {
	if !strings.HasPrefix(name, nodePrefix) {
		return 0, false
	}
	num, err := strconv.Atoi(strings.TrimPrefix(name, nodePrefix))
	if err != nil || num < 0 {
		return 0, false
	}
	return num, true
}

func readAttr(dir, name string) (string, bool) {
	data, err := ioutil.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(data)), true
}
