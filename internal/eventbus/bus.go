// Package eventbus is the in-process domain event fan-out of spec §4's
// "Event Bus" component: publish preserves emission order to each
// subscriber via one buffered channel per subscriber (spec §5 "Event
// broadcast preserves emission order to each subscriber (queues per
// subscriber)").
package eventbus

import (
	"context"
	"sync"

	"github.com/polyforge/polyforge/internal/logger"
	"github.com/polyforge/polyforge/internal/types/interfaces"
)

// Bus is the process-wide singleton event bus (spec §9 "Global services").
type Bus struct {
	mu          sync.Mutex
	subscribers map[chan interfaces.Event]struct{}
}

// New constructs an empty Bus.
func New() *Bus {
	return &Bus{subscribers: make(map[chan interfaces.Event]struct{})}
}

// Subscribe registers a new subscriber channel with the given buffer size.
func (b *Bus) Subscribe(bufferSize int) <-chan interfaces.Event {
	ch := make(chan interfaces.Event, bufferSize)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes a subscriber channel previously returned by
// Subscribe.
func (b *Bus) Unsubscribe(ch <-chan interfaces.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for c := range b.subscribers {
		if c == ch {
			delete(b.subscribers, c)
			close(c)
			return
		}
	}
}

// Publish fans the event out to every current subscriber. A subscriber whose
// buffer is full has the event dropped for it (logged) rather than blocking
// the publisher, since callers must not be able to stall job processing
// because a UI client stopped reading its event stream.
func (b *Bus) Publish(ctx context.Context, event interfaces.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			logger.Warn(ctx, "eventbus_subscriber_full", "event_type", event.Type)
		}
	}
}

var _ interfaces.EventBusInterface = (*Bus)(nil)
