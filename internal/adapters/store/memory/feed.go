package memory

import "sync"

// feed is an unbounded FIFO drained by one goroutine into fn.
//
// Pushes never block, so a slow subscriber cannot stall store writers, and
// items reach fn in push order.
type feed[T any] struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	closed   bool
	items    []T

	fn   func(T)
	done chan struct{}
}

func newFeed[T any](fn func(T)) *feed[T] {
	f := &feed[T]{fn: fn, done: make(chan struct{})}
	f.notEmpty = sync.NewCond(&f.mu)
	go f.run()
	return f
}

func (f *feed[T]) push(v T) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.items = append(f.items, v)
	f.notEmpty.Signal()
}

func (f *feed[T]) run() {
	defer close(f.done)
	for {
		f.mu.Lock()
		for len(f.items) == 0 && !f.closed {
			f.notEmpty.Wait()
		}
		if f.closed {
			f.mu.Unlock()
			return
		}
		v := f.items[0]
		var zero T
		f.items[0] = zero
		f.items = f.items[1:]
		f.mu.Unlock()

		f.fn(v)
	}
}

// close drops anything still pending and stops the drain goroutine.
func (f *feed[T]) close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	f.items = nil
	f.mu.Unlock()
	f.notEmpty.Broadcast()
}
