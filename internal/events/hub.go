package events

import (
	"context"
	"sync"
	"sync/atomic"
)

const defaultBuffer = 16

// Hub fans changes out to in-process subscribers. Publish never blocks: a
// subscriber whose buffer is full misses the change and the drop is counted.
type Hub struct {
	mu      sync.RWMutex
	subs    map[uint64]*hubSub
	next    uint64
	buffer  int
	dropped atomic.Int64
	onDrop  func()
}

type hubSub struct {
	owner string
	ch    chan Change
}

var (
	_ Publisher  = (*Hub)(nil)
	_ Subscriber = (*Hub)(nil)
)

// NewHub returns a hub whose subscriptions buffer up to buffer changes.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Hub{subs: make(map[uint64]*hubSub), buffer: buffer}
}

// OnDrop registers fn to run whenever a change is dropped. Call it before the
// hub is shared.
func (h *Hub) OnDrop(fn func()) { h.onDrop = fn }

func (h *Hub) Subscribe(owner string) *Subscription {
	ch := make(chan Change, h.buffer)

	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = &hubSub{owner: owner, ch: ch}
	h.mu.Unlock()

	var once sync.Once
	return &Subscription{
		C: ch,
		close: func() {
			once.Do(func() {
				h.mu.Lock()
				delete(h.subs, id)
				h.mu.Unlock()
				close(ch)
			})
		},
	}
}

func (h *Hub) Publish(_ context.Context, c Change) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.subs {
		if s.owner != "" && s.owner != c.Owner {
			continue
		}
		select {
		case s.ch <- c:
		default:
			h.dropped.Add(1)
			if h.onDrop != nil {
				h.onDrop()
			}
		}
	}
	return nil
}

// Dropped reports how many deliveries were skipped because a subscriber was full.
func (h *Hub) Dropped() int64 { return h.dropped.Load() }

// Subscribers reports the number of open subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
