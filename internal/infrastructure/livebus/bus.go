package livebus

import (
	"sync"
	"sync/atomic"

	"github.com/kirillkom/meeting-notes/internal/core/domain"
)

const defaultBuffer = 64

type subscriber struct {
	events chan domain.LiveEvent
	done   chan struct{}
	once   sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.done) })
}

// Bus is an in-process, per-meeting pub/sub. Every subscriber gets its own
// buffered queue drained by a dedicated goroutine, so a slow handler only
// loses its own events.
type Bus struct {
	buffer int

	mu   sync.RWMutex
	subs map[string]map[*subscriber]struct{}

	dropped atomic.Uint64
}

func New(buffer int) *Bus {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Bus{
		buffer: buffer,
		subs:   make(map[string]map[*subscriber]struct{}),
	}
}

func (b *Bus) Publish(meetingID string, event domain.LiveEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs[meetingID] {
		select {
		case <-sub.done:
		case sub.events <- event:
		default:
			b.dropped.Add(1)
		}
	}
}

func (b *Bus) Subscribe(meetingID string, handler func(domain.LiveEvent)) func() {
	sub := &subscriber{
		events: make(chan domain.LiveEvent, b.buffer),
		done:   make(chan struct{}),
	}

	b.mu.Lock()
	if b.subs[meetingID] == nil {
		b.subs[meetingID] = make(map[*subscriber]struct{})
	}
	b.subs[meetingID][sub] = struct{}{}
	b.mu.Unlock()

	go func() {
		for {
			select {
			case <-sub.done:
				return
			case event := <-sub.events:
				handler(event)
			}
		}
	}()

	return func() {
		b.mu.Lock()
		if set, ok := b.subs[meetingID]; ok {
			delete(set, sub)
			if len(set) == 0 {
				delete(b.subs, meetingID)
			}
		}
		b.mu.Unlock()
		sub.close()
	}
}

// Subscribers reports the number of active subscribers of a meeting.
func (b *Bus) Subscribers(meetingID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[meetingID])
}

// Dropped reports how many events were discarded because a subscriber queue was full.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}
