package notify

import (
	"log/slog"
	"sync"
)

// DefaultBufferSize is the per-subscriber event buffer used when the
// configured size is zero or negative.
const DefaultBufferSize = 16

// Subscriber is one registered observer of the notification channel.
type Subscriber struct {
	events chan Event
}

// Events returns the subscriber's event stream. The channel is closed when
// the subscriber is dropped, whether by Unsubscribe or by falling behind.
func (s *Subscriber) Events() <-chan Event {
	return s.events
}

// Broadcaster fans accepted mutations out to every registered subscriber.
//
// Delivery is best effort: there is no retry and no buffering beyond each
// subscriber's fixed channel buffer. A subscriber that cannot keep up is
// dropped so it never blocks delivery to the others. Publish order is the
// only ordering guarantee.
type Broadcaster struct {
	buffer int

	mu     sync.Mutex
	subs   map[*Subscriber]struct{}
	closed bool
}

// NewBroadcaster creates a Broadcaster with the given per-subscriber
// buffer size.
func NewBroadcaster(buffer int) *Broadcaster {
	if buffer <= 0 {
		buffer = DefaultBufferSize
	}
	return &Broadcaster{
		buffer: buffer,
		subs:   map[*Subscriber]struct{}{},
	}
}

// Subscribe registers a new observer and immediately queues the connected
// acknowledgment event on its stream.
func (b *Broadcaster) Subscribe() *Subscriber {
	sub := &Subscriber{events: make(chan Event, b.buffer)}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(sub.events)
		return sub
	}

	b.subs[sub] = struct{}{}
	sub.events <- Connected()
	return sub
}

// Unsubscribe removes a subscriber and closes its stream. Removing a
// subscriber that was already dropped is a no-op.
func (b *Broadcaster) Unsubscribe(sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(sub)
}

// Publish pushes events to every current subscriber in order. A subscriber
// whose buffer is full is dropped; the failure is never surfaced to the
// mutator or to other subscribers.
func (b *Broadcaster) Publish(events ...Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	for _, ev := range events {
		for sub := range b.subs {
			select {
			case sub.events <- ev:
			default:
				slog.Warn("dropping slow notification subscriber",
					"kind", ev.Kind,
					"buffer", b.buffer,
				)
				b.removeLocked(sub)
			}
		}
	}
}

// Count returns the number of currently registered subscribers.
func (b *Broadcaster) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close drops all subscribers. Further Subscribe calls return an
// already-closed stream and Publish becomes a no-op.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		b.removeLocked(sub)
	}
}

func (b *Broadcaster) removeLocked(sub *Subscriber) {
	if _, ok := b.subs[sub]; !ok {
		return
	}
	delete(b.subs, sub)
	close(sub.events)
}
