package notifysvc

import (
	"sync"

	"github.com/trezcool/attendly/core"
)

const defaultBufferSize = 32

// Buffer queues notifications until they are drained, eg. into the next response to the browser.
// When full, the oldest notifications are dropped.
type Buffer struct {
	mu    sync.Mutex
	size  int
	queue []core.Notification
}

var _ core.Notifier = (*Buffer)(nil)

func NewBuffer(size int) *Buffer {
	if size <= 0 {
		size = defaultBufferSize
	}
	return &Buffer{size: size}
}

func (b *Buffer) Notify(n core.Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.queue) == b.size {
		b.queue = b.queue[1:]
	}
	b.queue = append(b.queue, n)
}

// Drain returns the queued notifications in order and empties the queue.
func (b *Buffer) Drain() []core.Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	queue := b.queue
	b.queue = nil
	if queue == nil {
		return []core.Notification{}
	}
	return queue
}

// Fanout delivers every notification to all of its notifiers.
type Fanout []core.Notifier

func (f Fanout) Notify(n core.Notification) {
	for _, notifier := range f {
		if notifier != nil {
			notifier.Notify(n)
		}
	}
}
