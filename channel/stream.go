package channel

import (
	"sync"
)

// Event is one delivery on a broadcast stream: a decoded value, or the error
// that took its place (a PlatformError from the remote side or a FormatError
// from an undecodable delivery).
type Event struct {
	Value any
	Err   error
}

// subscriptionBuffer is the per-listener channel capacity. Deliveries beyond
// it block the producing handler, which preserves order instead of dropping.
const subscriptionBuffer = 64

// BroadcastStream is a multi-listener event sequence whose upstream
// subscription activates and deactivates based on listener count: the first
// Listen fires onListen (0→1), the last Cancel fires onCancel (1→0). The
// cycle may repeat for the life of the stream; once closed by the remote end
// it is terminal and new listeners get an already-closed subscription.
type BroadcastStream struct {
	// transition serializes listener attach/detach together with their
	// upstream side effects. Without it a Listen racing a final Cancel could
	// register the handler only to have the stale onCancel tear it down.
	// Always acquired before mu.
	transition sync.Mutex

	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool

	onListen func(*BroadcastStream)
	onCancel func()
}

func newBroadcastStream(onListen func(*BroadcastStream), onCancel func()) *BroadcastStream {
	return &BroadcastStream{
		subs:     make(map[*Subscription]struct{}),
		onListen: onListen,
		onCancel: onCancel,
	}
}

// Listen attaches a listener and returns its subscription. Attaching the
// first listener activates the upstream source.
func (s *BroadcastStream) Listen() *Subscription {
	sub := &Subscription{
		stream:  s,
		events:  make(chan Event, subscriptionBuffer),
		closing: make(chan struct{}),
	}

	s.transition.Lock()
	defer s.transition.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		sub.close()
		return sub
	}
	s.subs[sub] = struct{}{}
	first := len(s.subs) == 1
	s.mu.Unlock()

	if first {
		s.onListen(s)
	}
	return sub
}

// emit broadcasts ev to every current listener, in order, blocking on full
// buffers rather than reordering or dropping.
func (s *BroadcastStream) emit(ev Event) {
	s.mu.Lock()
	subs := make([]*Subscription, 0, len(s.subs))
	for sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub.deliver(ev)
	}
}

// close ends the stream: every subscription's event channel is closed and no
// further listener can activate it. Cancel calls after close never fire
// onCancel — the remote side already ended the stream.
func (s *BroadcastStream) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	subs := make([]*Subscription, 0, len(s.subs))
	for sub := range s.subs {
		subs = append(subs, sub)
	}
	clear(s.subs)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.close()
	}
}

// Subscription is one listener's attachment to a broadcast stream. Events
// arrive on Events; the channel closes when the stream ends or the listener
// cancels.
type Subscription struct {
	stream *BroadcastStream
	events chan Event

	mu      sync.Mutex // guards closed and the events channel close
	closed  bool
	closing chan struct{} // closed first, releases a deliver blocked on a full buffer
	once    sync.Once
}

// Events returns the listener's delivery channel. Order matches the
// transport's delivery order.
func (sub *Subscription) Events() <-chan Event {
	return sub.events
}

// Cancel detaches the listener. Detaching the last one deactivates the
// upstream source. Cancel is idempotent, and a no-op after the stream has
// been closed by the remote end.
func (sub *Subscription) Cancel() {
	s := sub.stream

	s.transition.Lock()
	defer s.transition.Unlock()

	s.mu.Lock()
	_, active := s.subs[sub]
	if active {
		delete(s.subs, sub)
	}
	last := active && len(s.subs) == 0 && !s.closed
	s.mu.Unlock()

	sub.close()

	if last {
		s.onCancel()
	}
}

func (sub *Subscription) deliver(ev Event) {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closed {
		return
	}
	select {
	case sub.events <- ev:
	case <-sub.closing:
	}
}

func (sub *Subscription) close() {
	sub.once.Do(func() {
		close(sub.closing)
		sub.mu.Lock()
		sub.closed = true
		close(sub.events)
		sub.mu.Unlock()
	})
}
