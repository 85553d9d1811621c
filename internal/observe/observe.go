// Package observe provides small publish/subscribe primitives used to wire
// reactive state between components: Broadcaster fans events out to
// subscribers, Value adds a last-value cache with equality-gated propagation.
package observe

import "sync"

// subscriberBuffer is the per-subscriber channel capacity. A subscriber that
// falls this far behind starts losing events rather than blocking publishers.
const subscriberBuffer = 16

// Broadcaster fans published values out to all current subscribers.
// Publishing never blocks; each subscriber owns a buffered channel and
// overflow is dropped.
type Broadcaster[T any] struct {
	mu     sync.Mutex
	subs   map[int]chan T
	nextID int
}

func NewBroadcaster[T any]() *Broadcaster[T] {
	return &Broadcaster[T]{subs: make(map[int]chan T)}
}

// Subscribe registers a new subscriber. The returned cancel function
// unregisters it and closes the channel; it is safe to call more than once.
func (b *Broadcaster[T]) Subscribe() (<-chan T, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan T, subscriberBuffer)
	b.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
	return ch, cancel
}

// Publish delivers v to every subscriber that has buffer space left.
func (b *Broadcaster[T]) Publish(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- v:
		default:
		}
	}
}

// Value is a last-value cache with equality-gated propagation: Set only
// notifies subscribers when the new value differs from the cached one
// according to the supplied comparison function.
type Value[T any] struct {
	mu    sync.Mutex
	has   bool
	cur   T
	equal func(a, b T) bool
	b     *Broadcaster[T]
}

// NewValue builds a Value using equal to suppress duplicate emissions.
func NewValue[T any](equal func(a, b T) bool) *Value[T] {
	return &Value[T]{equal: equal, b: NewBroadcaster[T]()}
}

// Set stores v and, if it differs from the previous value, publishes it to
// subscribers. It reports whether an emission happened.
func (v *Value[T]) Set(val T) bool {
	v.mu.Lock()
	if v.has && v.equal(v.cur, val) {
		v.mu.Unlock()
		return false
	}
	v.cur = val
	v.has = true
	v.mu.Unlock()
	v.b.Publish(val)
	return true
}

// Get returns the cached value, if any.
func (v *Value[T]) Get() (T, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.cur, v.has
}

// Subscribe returns the current value (if present) along with a channel of
// future emissions and a cancel function.
func (v *Value[T]) Subscribe() (cur T, ok bool, ch <-chan T, cancel func()) {
	v.mu.Lock()
	cur, ok = v.cur, v.has
	v.mu.Unlock()
	ch, cancel = v.b.Subscribe()
	return cur, ok, ch, cancel
}
