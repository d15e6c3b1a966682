package api

import (
	"testing"
	"time"
)

func TestBrokerPublishSubscribe(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe("p1")

	evt := Event{Type: "day.solved", Data: map[string]any{"day": 1}}
	b.Publish("p1", evt)

	select {
	case got := <-ch:
		if got.Type != evt.Type {
			t.Fatalf("got type %s, want %s", got.Type, evt.Type)
		}
		if got.Data["day"].(int) != 1 {
			t.Fatalf("bad payload: %+v", got.Data)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}

	b.Unsubscribe("p1", ch)
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after unsubscribe")
	}
}

func TestBrokerIsolatesPlans(t *testing.T) {
	b := NewBroker()
	ch1 := b.Subscribe("p1")
	ch2 := b.Subscribe("p2")
	defer b.Unsubscribe("p1", ch1)
	defer b.Unsubscribe("p2", ch2)

	b.Publish("p1", Event{Type: "plan.started"})

	select {
	case <-ch1:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("subscriber for p1 missed its event")
	}
	select {
	case evt := <-ch2:
		t.Fatalf("p2 subscriber received foreign event %+v", evt)
	default:
	}
}

func TestBrokerDropsWhenSubscriberFull(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe("p1")
	defer b.Unsubscribe("p1", ch)

	// Channel capacity is 8; overflow must not block the publisher.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 20; i++ {
			b.Publish("p1", Event{Type: "day.solved"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}
