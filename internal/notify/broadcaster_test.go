package notify

import (
	"testing"
	"time"

	"github.com/hearthside/starboard/internal/types"
)

func recvEvent(t *testing.T, sub *Subscriber) Event {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		if !ok {
			t.Fatal("event channel closed")
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestBroadcaster_SubscribeReceivesConnected(t *testing.T) {
	b := NewBroadcaster(4)
	defer b.Close()

	sub := b.Subscribe()
	ev := recvEvent(t, sub)

	if ev.Kind != KindConnected {
		t.Errorf("kind = %q, want %q", ev.Kind, KindConnected)
	}
	if ev.ID == "" {
		t.Error("connected event has no id")
	}
}

func TestBroadcaster_PublishReachesAllSubscribers(t *testing.T) {
	b := NewBroadcaster(4)
	defer b.Close()

	one := b.Subscribe()
	two := b.Subscribe()
	recvEvent(t, one)
	recvEvent(t, two)

	b.Publish(IndexUpdated("x", types.WhichTask, 2))

	for _, sub := range []*Subscriber{one, two} {
		ev := recvEvent(t, sub)
		if ev.Kind != KindIndexUpdated {
			t.Errorf("kind = %q, want %q", ev.Kind, KindIndexUpdated)
		}
		if ev.MemberID != "x" || ev.Which != types.WhichTask || ev.Index == nil || *ev.Index != 2 {
			t.Errorf("event = %+v", ev)
		}
	}
}

func TestBroadcaster_UnsubscribedObserverReceivesNothing(t *testing.T) {
	b := NewBroadcaster(4)
	defer b.Close()

	sub := b.Subscribe()
	recvEvent(t, sub)
	b.Unsubscribe(sub)

	b.Publish(StarsUpdated("zoe", 5))

	if _, ok := <-sub.Events(); ok {
		t.Error("received event after unsubscribe")
	}
	if b.Count() != 0 {
		t.Errorf("count = %d, want 0", b.Count())
	}
}

func TestBroadcaster_SlowSubscriberIsDropped(t *testing.T) {
	b := NewBroadcaster(1)
	defer b.Close()

	slow := b.Subscribe() // buffer now holds the connected event
	healthy := b.Subscribe()
	recvEvent(t, healthy)

	// First publish fills the slow subscriber's buffer; it is dropped.
	b.Publish(StarsUpdated("zoe", 1))
	b.Publish(StarsUpdated("zoe", 2))

	if b.Count() != 1 {
		t.Fatalf("count = %d, want 1 (slow subscriber dropped)", b.Count())
	}

	// The healthy subscriber saw every event.
	first := recvEvent(t, healthy)
	second := recvEvent(t, healthy)
	if *first.Stars != 1 || *second.Stars != 2 {
		t.Errorf("events = %d, %d, want 1, 2", *first.Stars, *second.Stars)
	}

	// The slow subscriber's channel drains its backlog and then closes.
	recvEvent(t, slow) // connected
	if _, ok := <-slow.Events(); ok {
		t.Error("slow subscriber channel not closed after drop")
	}
}

func TestBroadcaster_PublishPreservesOrder(t *testing.T) {
	b := NewBroadcaster(8)
	defer b.Close()

	sub := b.Subscribe()
	recvEvent(t, sub)

	b.Publish(CountUpdated("zoe", 3), StarsUpdated("zoe", 3))

	first := recvEvent(t, sub)
	second := recvEvent(t, sub)
	if first.Kind != KindCountUpdated || second.Kind != KindStarsUpdated {
		t.Errorf("order = %q, %q", first.Kind, second.Kind)
	}
}

func TestBroadcaster_CloseDropsEveryone(t *testing.T) {
	b := NewBroadcaster(4)

	sub := b.Subscribe()
	recvEvent(t, sub)
	b.Close()

	if _, ok := <-sub.Events(); ok {
		t.Error("subscriber channel open after Close")
	}
	if b.Count() != 0 {
		t.Errorf("count = %d, want 0", b.Count())
	}

	// Publishing after close is a harmless no-op.
	b.Publish(StarsUpdated("zoe", 1))

	// Subscribing after close yields an already-closed stream.
	late := b.Subscribe()
	if _, ok := <-late.Events(); ok {
		t.Error("late subscriber received events from closed broadcaster")
	}
}

func TestEventConstructors(t *testing.T) {
	ev := RedeemUpdated("zoe", "reward:0", 1)
	if ev.Kind != KindRedeemUpdated || ev.MemberID != "zoe" || ev.Key != "reward:0" {
		t.Errorf("event = %+v", ev)
	}
	if ev.Count == nil || *ev.Count != 1 {
		t.Errorf("count = %v, want 1", ev.Count)
	}

	// Zero values survive serialization fields (pointers, not omitted ints).
	zero := StarsUpdated("zoe", 0)
	if zero.Stars == nil || *zero.Stars != 0 {
		t.Errorf("stars = %v, want 0", zero.Stars)
	}
}
