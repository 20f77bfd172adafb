package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultSubscriberBuffer = 256
	defaultRecentCapacity   = 512
)

// Bus fans protocol events out to subscribers and keeps a bounded ring of
// recent events for the API. Publishing never blocks: a subscriber that cannot
// keep up loses events, logged at warn.
type Bus struct {
	log zerolog.Logger
	now func() time.Time

	mu          sync.RWMutex
	subscribers []chan Event
	recent      []Event
	recentCap   int
	dropped     uint64
}

// NewBus creates an event bus.
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		log:       log.With().Str("component", "events").Logger(),
		now:       time.Now,
		recentCap: defaultRecentCapacity,
	}
}

// Subscribe registers a new subscriber channel. The channel is closed on Close.
func (b *Bus) Subscribe() <-chan Event {
	ch := make(chan Event, defaultSubscriberBuffer)

	b.mu.Lock()
	b.subscribers = append(b.subscribers, ch)
	b.mu.Unlock()

	return ch
}

// Publish emits an event to all subscribers, non-blocking.
func (b *Bus) Publish(typ Type, payload any) {
	evt := Event{Type: typ, Timestamp: b.now(), Payload: payload}

	b.mu.Lock()
	b.recent = append(b.recent, evt)
	if len(b.recent) > b.recentCap {
		b.recent = b.recent[len(b.recent)-b.recentCap:]
	}
	subs := make([]chan Event, len(b.subscribers))
	copy(subs, b.subscribers)
	b.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- evt:
		default:
			b.mu.Lock()
			b.dropped++
			dropped := b.dropped
			b.mu.Unlock()

			b.log.Warn().
				Str("type", string(typ)).
				Uint64("dropped_total", dropped).
				Msg("Subscriber buffer full, event dropped")
		}
	}
}

// Recent returns up to limit most recent events, newest last. limit <= 0
// returns the whole retained window.
func (b *Bus) Recent(limit int) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := len(b.recent)
	if limit > 0 && limit < n {
		n = limit
	}

	out := make([]Event, n)
	copy(out, b.recent[len(b.recent)-n:])
	return out
}

// Dropped returns the total number of dropped deliveries.
func (b *Bus) Dropped() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.dropped
}

// Close closes all subscriber channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subscribers {
		close(ch)
	}
	b.subscribers = nil
}
