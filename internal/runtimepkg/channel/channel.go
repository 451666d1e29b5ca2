// Package channel implements the typed send/receive primitive the
// language's `chan T` values lower to: an unbuffered (rendezvous) or
// buffered queue shared between tasks, guarded by a mutex and two
// condition variables (one for senders waiting on space, one for
// receivers waiting on data).
package channel

import (
	"fmt"
	"sync"
)

// Error reports why a channel operation could not complete.
type Error int

const (
	// ErrClosed means the channel was closed and, for Recv, fully drained.
	ErrClosed Error = iota
	// ErrFull means a TrySend found no buffer space.
	ErrFull
	// ErrEmpty means a TryRecv found nothing buffered.
	ErrEmpty
	// ErrDisconnected means the channel's peer half has no live handles left.
	ErrDisconnected
)

func (e Error) Error() string {
	switch e {
	case ErrClosed:
		return "channel closed"
	case ErrFull:
		return "channel full"
	case ErrEmpty:
		return "channel empty"
	case ErrDisconnected:
		return "channel disconnected"
	default:
		return fmt.Sprintf("channel error(%d)", int(e))
	}
}

type state[T any] struct {
	buffer            []T
	capacity          int // 0 means unbuffered (rendezvous)
	closed            bool
	senderCount       int
	receiverCount     int
	waitingSenders    int
	waitingReceivers  int
}

func (s *state[T]) isUnbuffered() bool { return s.capacity == 0 }

func (s *state[T]) isFull() bool {
	if s.isUnbuffered() {
		return s.waitingReceivers == 0 && len(s.buffer) > 0
	}
	return len(s.buffer) >= s.capacity
}

func (s *state[T]) isEmpty() bool { return len(s.buffer) == 0 }

// inner is the shared, refcounted state behind every Sender/Receiver handle
// cloned from the same channel.
type inner[T any] struct {
	mu       sync.Mutex
	notFull  *sync.Cond
	notEmpty *sync.Cond
	st       state[T]
}

func newInner[T any](capacity int) *inner[T] {
	in := &inner[T]{st: state[T]{capacity: capacity, senderCount: 1, receiverCount: 1}}
	in.notFull = sync.NewCond(&in.mu)
	in.notEmpty = sync.NewCond(&in.mu)
	return in
}

// Sender is the sending half of a channel. Clone to share it across
// multiple goroutines (an MPSC producer group); call Release when a
// cloned handle is done, mirroring the reference-counted Drop the
// primitive this is ported from relies on — Go has no destructors, so the
// caller must call it explicitly instead of it running implicitly at
// scope exit.
type Sender[T any] struct{ in *inner[T] }

// Receiver is the receiving half of a channel. Clone to fan a single
// stream out to multiple consumers; call Release when done, same caveat
// as Sender.Release.
type Receiver[T any] struct{ in *inner[T] }

// Unbuffered creates a capacity-0 channel. Send does not wait for a
// receiver: it queues the value when nothing is pending, and blocks only
// while an earlier value is still unreceived and no receiver is waiting.
func Unbuffered[T any]() (Sender[T], Receiver[T]) {
	in := newInner[T](0)
	return Sender[T]{in}, Receiver[T]{in}
}

// Buffered creates a channel that only blocks Send once capacity values
// are queued.
func Buffered[T any](capacity int) (Sender[T], Receiver[T]) {
	if capacity < 1 {
		capacity = 1
	}
	in := newInner[T](capacity)
	return Sender[T]{in}, Receiver[T]{in}
}

// Clone returns a new handle sharing the same underlying channel,
// incrementing its sender count.
func (s Sender[T]) Clone() Sender[T] {
	s.in.mu.Lock()
	s.in.st.senderCount++
	s.in.mu.Unlock()
	return Sender[T]{s.in}
}

// Release decrements the sender count, waking any blocked receivers once
// the last sender is gone (they then observe ErrDisconnected).
func (s Sender[T]) Release() {
	s.in.mu.Lock()
	s.in.st.senderCount--
	done := s.in.st.senderCount == 0
	s.in.mu.Unlock()
	if done {
		s.in.notEmpty.Broadcast()
	}
}

// Send blocks until the value is queued, the channel closes, or every
// receiver is gone.
func (s Sender[T]) Send(value T) error {
	s.in.mu.Lock()
	defer s.in.mu.Unlock()

	for s.in.st.isFull() && !s.in.st.closed && s.in.st.receiverCount > 0 {
		s.in.st.waitingSenders++
		s.in.notFull.Wait()
		s.in.st.waitingSenders--
	}

	if s.in.st.closed {
		return ErrClosed
	}
	if s.in.st.receiverCount == 0 {
		return ErrDisconnected
	}

	s.in.st.buffer = append(s.in.st.buffer, value)
	s.in.notEmpty.Signal()
	return nil
}

// TrySend attempts to queue value without blocking.
func (s Sender[T]) TrySend(value T) error {
	s.in.mu.Lock()
	defer s.in.mu.Unlock()

	if s.in.st.closed {
		return ErrClosed
	}
	if s.in.st.receiverCount == 0 {
		return ErrDisconnected
	}
	if s.in.st.isFull() {
		return ErrFull
	}

	s.in.st.buffer = append(s.in.st.buffer, value)
	s.in.notEmpty.Signal()
	return nil
}

// Close closes the channel: no further sends succeed, but receivers may
// still drain any values already queued.
func (s Sender[T]) Close() {
	s.in.mu.Lock()
	s.in.st.closed = true
	s.in.mu.Unlock()
	s.in.notEmpty.Broadcast()
	s.in.notFull.Broadcast()
}

// IsClosed reports whether the channel has been closed.
func (s Sender[T]) IsClosed() bool {
	s.in.mu.Lock()
	defer s.in.mu.Unlock()
	return s.in.st.closed
}

// Clone returns a new handle sharing the same underlying channel,
// incrementing its receiver count.
func (r Receiver[T]) Clone() Receiver[T] {
	r.in.mu.Lock()
	r.in.st.receiverCount++
	r.in.mu.Unlock()
	return Receiver[T]{r.in}
}

// Release decrements the receiver count, waking any blocked senders once
// the last receiver is gone (they then observe ErrDisconnected).
func (r Receiver[T]) Release() {
	r.in.mu.Lock()
	r.in.st.receiverCount--
	done := r.in.st.receiverCount == 0
	r.in.mu.Unlock()
	if done {
		r.in.notFull.Broadcast()
	}
}

// Recv blocks until a value is available, the channel closes and drains,
// or every sender is gone.
func (r Receiver[T]) Recv() (T, error) {
	r.in.mu.Lock()
	defer r.in.mu.Unlock()

	for r.in.st.isEmpty() && !r.in.st.closed && r.in.st.senderCount > 0 {
		r.in.st.waitingReceivers++
		r.in.notEmpty.Wait()
		r.in.st.waitingReceivers--
	}

	if !r.in.st.isEmpty() {
		v := r.in.st.buffer[0]
		r.in.st.buffer = r.in.st.buffer[1:]
		r.in.notFull.Signal()
		return v, nil
	}

	var zero T
	if r.in.st.closed {
		return zero, ErrClosed
	}
	return zero, ErrDisconnected
}

// TryRecv attempts to dequeue a value without blocking.
func (r Receiver[T]) TryRecv() (T, error) {
	r.in.mu.Lock()
	defer r.in.mu.Unlock()

	if !r.in.st.isEmpty() {
		v := r.in.st.buffer[0]
		r.in.st.buffer = r.in.st.buffer[1:]
		r.in.notFull.Signal()
		return v, nil
	}

	var zero T
	if r.in.st.closed {
		return zero, ErrClosed
	}
	if r.in.st.senderCount == 0 {
		return zero, ErrDisconnected
	}
	return zero, ErrEmpty
}

// IsEmpty reports whether the channel currently holds no queued values.
func (r Receiver[T]) IsEmpty() bool {
	r.in.mu.Lock()
	defer r.in.mu.Unlock()
	return r.in.st.isEmpty()
}

// IsClosed reports whether the channel has been closed.
func (r Receiver[T]) IsClosed() bool {
	r.in.mu.Lock()
	defer r.in.mu.Unlock()
	return r.in.st.closed
}

// Len reports how many values are currently queued.
func (r Receiver[T]) Len() int {
	r.in.mu.Lock()
	defer r.in.mu.Unlock()
	return len(r.in.st.buffer)
}

// Channel bundles a Sender and Receiver into one bidirectional handle, the
// shape the `chan T` local's runtime representation uses: codegen holds a
// single Channel[T] value per channel-typed local rather than threading a
// split Sender/Receiver pair through the CFG.
type Channel[T any] struct {
	sender   Sender[T]
	receiver Receiver[T]
}

// New creates a Channel wrapping a fresh unbuffered pair.
func New[T any]() Channel[T] {
	s, r := Unbuffered[T]()
	return Channel[T]{s, r}
}

// WithCapacity creates a Channel wrapping a fresh buffered pair.
func WithCapacity[T any](capacity int) Channel[T] {
	s, r := Buffered[T](capacity)
	return Channel[T]{s, r}
}

func (c Channel[T]) Send(value T) error    { return c.sender.Send(value) }
func (c Channel[T]) TrySend(value T) error { return c.sender.TrySend(value) }
func (c Channel[T]) Recv() (T, error)      { return c.receiver.Recv() }
func (c Channel[T]) TryRecv() (T, error)   { return c.receiver.TryRecv() }
func (c Channel[T]) Close()                { c.sender.Close() }
func (c Channel[T]) IsClosed() bool        { return c.sender.IsClosed() }
func (c Channel[T]) Sender() Sender[T]     { return c.sender.Clone() }
func (c Channel[T]) Receiver() Receiver[T] { return c.receiver.Clone() }
func (c Channel[T]) Split() (Sender[T], Receiver[T]) {
	return c.sender, c.receiver
}
