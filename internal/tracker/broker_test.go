package tracker

import (
	"testing"
	"time"
)

func TestBrokerFanOut(t *testing.T) {
	b := NewBroker()
	a := b.Subscribe()
	c := b.Subscribe()

	b.Publish(Snapshot{Metrics: Metrics{Keystrokes: 7}})

	for _, ch := range []<-chan Snapshot{a, c} {
		select {
		case snap := <-ch:
			if snap.Keystrokes != 7 {
				t.Errorf("received Keystrokes = %d, want 7", snap.Keystrokes)
			}
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive snapshot")
		}
	}
}

func TestBrokerSlowSubscriberDoesNotBlock(t *testing.T) {
	b := NewBroker()
	b.Subscribe() // never drained

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			b.Publish(Snapshot{})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}
}

func TestBrokerCloseClosesSubscribers(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe()
	b.Close()

	if _, ok := <-ch; ok {
		t.Error("channel still open after Close")
	}

	// Subscribing after close yields a closed channel, not a hang.
	if _, ok := <-b.Subscribe(); ok {
		t.Error("post-close subscription returned an open channel")
	}
}
