package tracker

import "sync"

// Broker fans activity snapshots out to subscribers. Sends are
// non-blocking: a subscriber that falls behind loses snapshots rather
// than stalling the monitor.
type Broker struct {
	mu         sync.Mutex
	subs       []chan Snapshot
	bufferSize int
	closed     bool
}

// NewBroker creates a Broker.
func NewBroker() *Broker {
	return &Broker{bufferSize: 10}
}

// Subscribe returns a channel receiving future snapshots. The channel is
// closed when the broker shuts down.
func (b *Broker) Subscribe() <-chan Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Snapshot, b.bufferSize)
	if b.closed {
		close(ch)
		return ch
	}
	b.subs = append(b.subs, ch)
	return ch
}

// Publish delivers a snapshot to every subscriber.
func (b *Broker) Publish(snap Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- snap:
		default:
			// Subscriber buffer full; drop for this subscriber.
		}
	}
}

// Close shuts the broker down and closes all subscriber channels.
func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
}
