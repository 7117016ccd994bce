package bus

import (
	"testing"
	"time"
)

func TestTopicReplaysRetainedValueToFirstSubscriber(t *testing.T) {
	topic := NewTopic[int](4)

	if n := topic.Publish(7); n != 0 {
		t.Fatalf("publish with no subscribers delivered to %d", n)
	}

	ch, cancel := topic.Subscribe()
	defer cancel()

	select {
	case v := <-ch:
		if v != 7 {
			t.Errorf("replayed value = %d, want 7", v)
		}
	case <-time.After(time.Second):
		t.Fatal("retained value was not replayed on subscribe")
	}
}

func TestTopicFansOutToAllSubscribers(t *testing.T) {
	topic := NewTopic[int](4)

	a, cancelA := topic.Subscribe()
	defer cancelA()
	b, cancelB := topic.Subscribe()
	defer cancelB()

	if n := topic.Publish(42); n != 2 {
		t.Fatalf("delivered to %d subscribers, want 2", n)
	}
	if v := <-a; v != 42 {
		t.Errorf("subscriber a got %d", v)
	}
	if v := <-b; v != 42 {
		t.Errorf("subscriber b got %d", v)
	}
}

func TestTopicDropsWhenSubscriberIsFull(t *testing.T) {
	topic := NewTopic[int](1)

	ch, cancel := topic.Subscribe()
	defer cancel()

	topic.Publish(1)
	if n := topic.Publish(2); n != 0 {
		t.Errorf("full subscriber should drop, delivered to %d", n)
	}
	if v := <-ch; v != 1 {
		t.Errorf("first value = %d, want 1", v)
	}

	// Retained value still reflects the newest publish.
	if last, ok := topic.Last(); !ok || last != 2 {
		t.Errorf("retained = %d/%v, want 2/true", last, ok)
	}
}

func TestTopicResetDropsRetained(t *testing.T) {
	topic := NewTopic[string](4)
	topic.Publish("stale")
	topic.Reset()

	if _, ok := topic.Last(); ok {
		t.Error("reset must drop the retained value")
	}

	ch, cancel := topic.Subscribe()
	defer cancel()
	select {
	case v := <-ch:
		t.Errorf("subscriber after reset received %q", v)
	case <-time.After(30 * time.Millisecond):
	}
}

func TestTopicUnsubscribeClosesChannel(t *testing.T) {
	topic := NewTopic[int](4)
	ch, cancel := topic.Subscribe()
	cancel()

	if _, open := <-ch; open {
		t.Error("unsubscribe must close the channel")
	}
	if topic.Subscribers() != 0 {
		t.Errorf("subscriber count = %d after unsubscribe", topic.Subscribers())
	}
}
