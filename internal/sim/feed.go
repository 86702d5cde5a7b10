package sim

import "sync"

// Feed fans snapshots out to subscribers. Every subscriber owns a one-slot
// channel holding only the newest value: a slow reader skips intermediate
// snapshots instead of queueing them. The zero value is ready to use.
type Feed[T any] struct {
	mu   sync.Mutex
	next int
	subs map[int]chan T
}

// Subscribe registers a new subscriber. The returned cancel function
// unregisters it and closes the channel; it is safe to call more than once.
func (f *Feed[T]) Subscribe() (<-chan T, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.subs == nil {
		f.subs = make(map[int]chan T)
	}
	id := f.next
	f.next++
	ch := make(chan T, 1)
	f.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			if c, ok := f.subs[id]; ok {
				delete(f.subs, id)
				close(c)
			}
		})
	}
	return ch, cancel
}

// Publish replaces whatever value each subscriber has not read yet with v.
// It never blocks: only Publish sends, and it holds the lock while doing so.
func (f *Feed[T]) Publish(v T) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, ch := range f.subs {
		select {
		case <-ch:
		default:
		}
		ch <- v
	}
}

// Len returns the number of active subscribers.
func (f *Feed[T]) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}
