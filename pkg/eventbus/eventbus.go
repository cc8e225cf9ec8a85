// Package eventbus is the in-process domain event bus: a broadcast channel
// every subscriber gets its own copy from, with no persistence and no
// cross-host distribution.
//
// Grounded on original_source's crates/mcpmux-gateway/src/services/event_emitter.rs,
// which wraps tokio::sync::broadcast::Sender. Go has no broadcast-channel
// primitive in the standard library or anywhere in the retrieval pack (see
// DESIGN.md's standard-library justifications), so this is built directly
// on channels and a mutex-guarded subscriber set, mirroring tokio
// broadcast's "slow subscribers miss messages, publish never blocks" policy
// instead of backpressuring the publisher.
package eventbus

import (
	"sync"

	"go.uber.org/zap"

	"github.com/mcpmux/mcpmux/pkg/domain"
)

// subscriberBuffer bounds how many unread events a lagging subscriber can
// accumulate; events published while its buffer is full are dropped for that
// subscriber (the newest event is lost, not the oldest as in
// tokio::sync::broadcast's ring).
const subscriberBuffer = 64

// Bus is the concrete EventPublisher/EventSubscriber implementation.
type Bus struct {
	log *zap.SugaredLogger

	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]*subscription
}

type subscription struct {
	ch     chan domain.DomainEvent
	lagged chan uint64
	missed uint64
}

// New builds an empty event bus.
func New(log *zap.SugaredLogger) *Bus {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Bus{log: log, subs: make(map[uint64]*subscription)}
}

// Publish fans event out to every current subscriber without blocking. A
// subscriber whose buffer is full does not receive the event: its missed
// count is incremented and, if its one-slot lagged channel is empty, sent
// there. Publishing with no subscribers is not an error, matching the Rust
// original's "there may simply be no subscribers" tolerance.
func (b *Bus) Publish(event domain.DomainEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.subs) == 0 {
		b.log.Debugw("event published with no subscribers", "kind", event.Kind)
		return
	}

	for _, sub := range b.subs {
		select {
		case sub.ch <- event:
		default:
			sub.missed++
			select {
			case sub.lagged <- sub.missed:
			default:
			}
			b.log.Warnw("subscriber lagging, event dropped", "kind", event.Kind, "missed", sub.missed)
		}
	}
}

// Subscribe registers a new subscriber. unsubscribe must be called to
// release the subscription's resources.
func (b *Bus) Subscribe() (<-chan domain.DomainEvent, <-chan uint64, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++

	sub := &subscription{
		ch:     make(chan domain.DomainEvent, subscriberBuffer),
		lagged: make(chan uint64, 1),
	}
	b.subs[id] = sub

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub.ch)
			close(sub.lagged)
		}
	}

	return sub.ch, sub.lagged, unsubscribe
}

// SubscriberCount reports the number of active subscribers, used by the
// gateway's health/diagnostics surface.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
