package feed

import (
	"sync"
	"sync/atomic"
)

// Feed broadcasts values to its subscribers. Send never blocks: a subscriber whose
// buffer is full misses the value.
type Feed[T any] struct {
	mu   sync.Mutex // protects subs
	subs map[*Subscription[T]]struct{}
}

type Subscription[T any] struct {
	feed   *Feed[T]
	c      chan T
	missed atomic.Uint64
	once   sync.Once
}

func New[T any]() *Feed[T] {
	return &Feed[T]{
		subs: make(map[*Subscription[T]]struct{}),
	}
}

// Subscribe returns a subscription buffering up to buffer values, at least one.
func (f *Feed[T]) Subscribe(buffer int) *Subscription[T] {
	sub := &Subscription[T]{
		feed: f,
		c:    make(chan T, max(buffer, 1)),
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs[sub] = struct{}{}
	return sub
}

// Send hands v to every subscriber with room for it and returns how many received it.
func (f *Feed[T]) Send(v T) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	delivered := 0
	for sub := range f.subs {
		select {
		case sub.c <- v:
			delivered++
		default:
			sub.missed.Add(1)
		}
	}
	return delivered
}

// Recv is closed once the subscription is cancelled.
func (s *Subscription[T]) Recv() <-chan T {
	return s.c
}

// Missed is the number of values sent while the buffer of s was full.
func (s *Subscription[T]) Missed() uint64 {
	return s.missed.Load()
}

func (s *Subscription[T]) Unsubscribe() {
	s.once.Do(func() {
		s.feed.mu.Lock()
		defer s.feed.mu.Unlock()
		delete(s.feed.subs, s)
		close(s.c)
	})
}
