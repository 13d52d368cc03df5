// Package fanout implements a minimal multi-subscriber broadcast channel.
//
// No pack example pulls in a dedicated pub/sub or broadcast-channel library
// for this concern (the closest analogue, tokio::sync::broadcast, is a
// runtime primitive with no equivalent import anywhere in the retrieved Go
// corpus) so this is a small stdlib construction: a mutex-guarded slice of
// subscriber channels, the shape most idiomatic Go projects reach for absent
// a framework. It gives the actor's sample stream and the discovery
// service's output channel the same bounded-capacity, non-blocking-publish
// semantics; discovery's known-devices input is a plain buffered channel, not
// a Bus.
package fanout

import "sync"

// Bus is a multi-consumer broadcast channel of T. The zero value is not
// usable; construct with New.
type Bus[T any] struct {
	mu          sync.Mutex
	subscribers map[chan T]struct{}
	closed      bool
}

// New constructs an empty Bus.
func New[T any]() *Bus[T] {
	return &Bus[T]{subscribers: make(map[chan T]struct{})}
}

// Subscribe returns a fresh channel of the given capacity. The
// caller must eventually call Unsubscribe, or Close the Bus, or the channel
// leaks.
func (b *Bus[T]) Subscribe(capacity int) chan T {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan T, capacity)
	if !b.closed {
		b.subscribers[ch] = struct{}{}
	} else {
		close(ch)
	}
	return ch
}

// Unsubscribe removes and closes a subscriber channel.
func (b *Bus[T]) Unsubscribe(ch chan T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[ch]; ok {
		delete(b.subscribers, ch)
		close(ch)
	}
}

// Publish fans value out to every current subscriber. A subscriber whose
// channel is full is skipped rather than blocking the publisher — matching
// a broadcast channel's lossy-slow-consumer semantics.
func (b *Bus[T]) Publish(value T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for ch := range b.subscribers {
		select {
		case ch <- value:
		default:
		}
	}
}

// Len reports the current subscriber count.
func (b *Bus[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}

// Close closes every current subscriber channel and marks the Bus closed;
// further Subscribe calls return an already-closed channel.
func (b *Bus[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for ch := range b.subscribers {
		close(ch)
	}
	b.subscribers = make(map[chan T]struct{})
	b.closed = true
}
