// Package stream provides small typed in-process streams for relaying hub
// events into view state. Two semantics are offered and the distinction
// matters: a replay stream hands the most recent value to every late
// subscriber (connection state, latest status), a plain stream delivers only
// values published after Subscribe (fire-and-forget notifications).
package stream

import "sync"

// Stream fans values out to subscribers in publish order. Zero value is not
// usable; construct with New or NewReplay.
type Stream[T any] struct {
	mu     sync.Mutex
	subs   map[int]chan T
	nextID int

	replay bool
	last   T
	has    bool
}

func New[T any]() *Stream[T] {
	return &Stream[T]{subs: make(map[int]chan T)}
}

// NewReplay returns a stream that replays the latest published value to each
// new subscriber, so a late subscriber immediately learns the current state
// instead of waiting for the next transition.
func NewReplay[T any]() *Stream[T] {
	return &Stream[T]{subs: make(map[int]chan T), replay: true}
}

// Publish delivers v to all current subscribers. A subscriber that is not
// draining its channel loses the value rather than blocking the publisher:
// events are pass-through, not a queue.
func (s *Stream[T]) Publish(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.replay {
		s.last = v
		s.has = true
	}
	for _, ch := range s.subs {
		select {
		case ch <- v:
		default:
		}
	}
}

// Subscribe registers a new subscriber and returns its channel together with
// a cancel func. The channel is buffered; cancel is idempotent and closes it.
func (s *Stream[T]) Subscribe(buf int) (<-chan T, func()) {
	if buf <= 0 {
		buf = 16
	}
	ch := make(chan T, buf)

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	if s.replay && s.has {
		ch <- s.last
	}
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Latest returns the most recent value of a replay stream.
func (s *Stream[T]) Latest() (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.has
}
