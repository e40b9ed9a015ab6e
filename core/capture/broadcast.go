package capture

import (
	"sync"
	"sync/atomic"

	"github.com/trezcool/attendly/core/attendance"
)

// Broadcaster fans frames out to subscribers without ever blocking the publisher:
// a subscriber whose buffer is full misses the frame.
type Broadcaster struct {
	mu      sync.Mutex
	subs    map[uint64]chan attendance.Frame
	nextID  uint64
	latest  *attendance.Frame
	count   uint64
	dropped uint64
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[uint64]chan attendance.Frame)}
}

// Subscribe returns a channel of frames and the func releasing it. The channel is closed on release.
func (b *Broadcaster) Subscribe(buffer int) (<-chan attendance.Frame, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan attendance.Frame, buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

func (b *Broadcaster) Publish(frame attendance.Frame) {
	atomic.AddUint64(&b.count, 1)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.latest = &frame
	for _, ch := range b.subs {
		select {
		case ch <- frame:
		default:
			atomic.AddUint64(&b.dropped, 1)
		}
	}
}

// Latest returns the last published frame.
func (b *Broadcaster) Latest() (attendance.Frame, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.latest == nil {
		return attendance.Frame{}, false
	}
	return *b.latest, true
}

// Reset forgets the latest frame, eg. when the stream is released.
func (b *Broadcaster) Reset() {
	b.mu.Lock()
	b.latest = nil
	b.mu.Unlock()
}

func (b *Broadcaster) Count() uint64   { return atomic.LoadUint64(&b.count) }
func (b *Broadcaster) Dropped() uint64 { return atomic.LoadUint64(&b.dropped) }
