// Package events implements the ExchangeEvents fan-out broadcast bus:
// market-data and order-lifecycle events flow from per-exchange producers
// to every current subscriber (typically one per strategy), in broadcast
// order from each subscriber's point of subscription.
//
// Grounded on realtime/websocket.go's register/unregister/broadcast channel
// pattern, generalized from "broadcast to connected UI clients" to
// "broadcast to in-process subscribers" and made lag-tolerant: a producer's
// Publish must never block on a slow subscriber.
package events

import (
	"sync"
	"time"

	"github.com/alexherrero/sherwood-engine/exchange"
)

// defaultBufferSize is how many events a subscriber may lag behind before
// it is disconnected.
const defaultBufferSize = 256

// Event is a single item on the bus: a market-data update, an order-status
// change, or a block/unblock notification, tagged with the exchange it
// originated from.
type Event struct {
	ExchangeAccountID exchange.AccountID
	Type              string
	Payload           interface{}
	Time              time.Time
}

// Subscription is one consumer's view of the bus.
type Subscription struct {
	ch     chan Event
	lagged chan struct{} // closed exactly once, when this subscriber is disconnected for lag
}

// C returns the channel to read events from. It is closed when the
// subscriber is disconnected for falling behind, or by Unsubscribe — check
// Lagged() to tell the two apart.
func (s *Subscription) C() <-chan Event {
	return s.ch
}

// Lagged reports whether this subscription was disconnected because it
// fell too far behind the producer.
func (s *Subscription) Lagged() bool {
	select {
	case <-s.lagged:
		return true
	default:
		return false
	}
}

// Bus is the ExchangeEvents broadcast channel. The zero value is not usable
// — construct with NewBus.
type Bus struct {
	mu          sync.Mutex
	subscribers map[*Subscription]struct{}
	bufferSize  int
}

// NewBus creates a Bus whose subscribers buffer up to bufferSize events
// before being disconnected for lag. bufferSize <= 0 uses a sane default.
func NewBus(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	return &Bus{
		subscribers: make(map[*Subscription]struct{}),
		bufferSize:  bufferSize,
	}
}

// Subscribe returns a fresh Subscription. Only events published after this
// call are delivered to it — there is no replay of earlier events.
func (b *Bus) Subscribe() *Subscription {
	sub := &Subscription{
		ch:     make(chan Event, b.bufferSize),
		lagged: make(chan struct{}),
	}
	b.mu.Lock()
	b.subscribers[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// Unsubscribe removes sub from the bus. Idempotent.
func (b *Bus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	_, ok := b.subscribers[sub]
	delete(b.subscribers, sub)
	b.mu.Unlock()
	if ok {
		close(sub.ch)
	}
}

// Publish fans ev out to every current subscriber. It never blocks: a
// subscriber whose buffer is full is disconnected on the spot and observes
// its channel close (Lagged() then reports true) instead of stalling the
// producer.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for sub := range b.subscribers {
		select {
		case sub.ch <- ev:
		default:
			delete(b.subscribers, sub)
			close(sub.lagged)
			close(sub.ch)
		}
	}
}

// SubscriberCount reports how many subscribers are currently attached.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}
