package bus

import "sync"

// Topic is a process-local publish/subscribe slot. The most recent value
// is retained and replayed on subscribe, so the first consumer to attach
// after a publish still observes it instead of polling for it. Delivery
// to live subscribers is non-blocking: a subscriber that stops draining
// its channel misses values rather than stalling the publisher.
type Topic[T any] struct {
	mu       sync.Mutex
	subs     map[int]chan T
	next     int
	retained T
	has      bool
	buffer   int
}

// NewTopic creates a topic whose subscriber channels hold up to buffer
// undelivered values.
func NewTopic[T any](buffer int) *Topic[T] {
	if buffer <= 0 {
		buffer = 16
	}
	return &Topic[T]{subs: make(map[int]chan T), buffer: buffer}
}

// Publish retains v and fans it out. It reports how many live subscribers
// accepted the value.
func (t *Topic[T]) Publish(v T) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.retained = v
	t.has = true

	delivered := 0
	for _, ch := range t.subs {
		select {
		case ch <- v:
			delivered++
		default:
		}
	}
	return delivered
}

// Subscribe registers a new consumer and returns its channel plus an
// unsubscribe func. A retained value is queued before Subscribe returns.
func (t *Topic[T]) Subscribe() (<-chan T, func()) {
	t.mu.Lock()
	id := t.next
	t.next++
	ch := make(chan T, t.buffer)
	t.subs[id] = ch
	if t.has {
		ch <- t.retained
	}
	t.mu.Unlock()

	return ch, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		if c, ok := t.subs[id]; ok {
			delete(t.subs, id)
			close(c)
		}
	}
}

// Last returns the retained value, if any.
func (t *Topic[T]) Last() (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.retained, t.has
}

// Reset drops the retained value. Existing subscriptions stay attached.
func (t *Topic[T]) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	var zero T
	t.retained = zero
	t.has = false
}

// Subscribers reports the number of attached consumers.
func (t *Topic[T]) Subscribers() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}
