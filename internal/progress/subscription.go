package progress

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrSubscriptionClosed is returned by Next once a terminal record has been
// delivered or Close has been called.
var ErrSubscriptionClosed = errors.New("progress subscription closed")

// Event is one element of a subscriber's stream: either a progress record or
// a heartbeat emitted after an idle wait.
type Event struct {
	Record    Record
	Heartbeat bool
}

// Subscription is one consumer's view of a model's progress stream. It is
// owned by a single goroutine which calls Next until it returns an error and
// must call Close on every exit path.
type Subscription struct {
	name    string
	ch      chan Record
	hub     *hub
	timeout time.Duration

	replay    *Record
	closeOnce sync.Once
	done      bool
}

// Subscribe registers a new subscriber for name. If a record already exists
// and its download is still in flight, it is replayed as the first event.
// A leftover complete or error record from an earlier run is deliberately not
// replayed, so a fresh observer never starts its stream with stale terminal
// state.
func (t *Tracker) Subscribe(name string) *Subscription {
	sub := &Subscription{
		name:    name,
		ch:      t.hub.register(name),
		hub:     t.hub,
		timeout: t.heartbeat,
	}
	if rec, ok := t.Get(name); ok && rec.Status.Active() {
		sub.replay = &rec
	}
	return sub
}

// Next blocks until the next event is available: the pending replay record,
// a fanned-out record, or a heartbeat once the idle timeout elapses with
// nothing queued. Delivering a terminal record closes the subscription;
// subsequent calls return ErrSubscriptionClosed. Cancellation of ctx returns
// its error.
func (s *Subscription) Next(ctx context.Context) (Event, error) {
	if s.done {
		return Event{}, ErrSubscriptionClosed
	}
	if s.replay != nil {
		rec := *s.replay
		s.replay = nil
		return s.deliver(rec), nil
	}

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return Event{}, ctx.Err()
	case rec := <-s.ch:
		return s.deliver(rec), nil
	case <-timer.C:
		// A record that was queued before the timer fired takes
		// precedence over the heartbeat.
		select {
		case rec := <-s.ch:
			return s.deliver(rec), nil
		default:
			return Event{Heartbeat: true}, nil
		}
	}
}

func (s *Subscription) deliver(rec Record) Event {
	if rec.Status.Terminal() {
		s.done = true
	}
	return Event{Record: rec}
}

// Close deregisters the subscriber. It is idempotent and safe to defer
// alongside a loop that also stops on terminal delivery.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.done = true
		s.hub.deregister(s.name, s.ch)
	})
}
