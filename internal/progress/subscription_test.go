package progress

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestSubscribeReplaysInFlightRecord covers the fresh-subscriber replay: an
// active record is delivered as the very first event.
func TestSubscribeReplaysInFlightRecord(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(t)
	tr.Update("y", 50, 100, "part-00.bin")

	sub := tr.Subscribe("y")
	defer sub.Close()

	ev, err := sub.Next(context.Background())
	require.NoError(t, err)
	require.False(t, ev.Heartbeat)
	require.Equal(t, int64(50), ev.Record.Current)
	require.InDelta(t, 50.0, ev.Record.Percent, 0.001)
}

// TestSubscribeSuppressesStaleTerminalReplay: a subscriber arriving after a
// prior run finished must not see the leftover terminal record.
func TestSubscribeSuppressesStaleTerminalReplay(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(t)
	tr.Update("x", 100, 100, "")
	tr.MarkComplete("x")

	sub := tr.Subscribe("x")
	defer sub.Close()

	ev, err := sub.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ev.Heartbeat, "first event must be a heartbeat, not the stale complete record")
}

// TestSubscribeNoRecordYieldsHeartbeat: with nothing reported, idle waits
// produce heartbeats.
func TestSubscribeNoRecordYieldsHeartbeat(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(t)
	sub := tr.Subscribe("silent")
	defer sub.Close()

	ev, err := sub.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ev.Heartbeat)
}

// TestSubscribeTerminalAbsorption: delivering an error record ends the
// stream; after Close the hub holds no channel for the name.
func TestSubscribeTerminalAbsorption(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(t)
	tr.Update("m", 10, 100, "")

	sub := tr.Subscribe("m")

	// Drain the replay first.
	ev, err := sub.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, StatusDownloading, ev.Record.Status)

	tr.MarkError("m", "checksum mismatch")

	ev, err = sub.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, StatusError, ev.Record.Status)
	require.Equal(t, "checksum mismatch", ev.Record.Error)

	_, err = sub.Next(context.Background())
	require.ErrorIs(t, err, ErrSubscriptionClosed)

	sub.Close()
	require.Equal(t, 0, tr.ListenerCount("m"))
}

// TestSubscribeUpdateBeatsHeartbeat: a record present when the idle timer
// fires is delivered instead of a heartbeat.
func TestSubscribeUpdateBeatsHeartbeat(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(t)
	sub := tr.Subscribe("m")
	defer sub.Close()

	tr.Update("m", 1, 2, "")

	ev, err := sub.Next(context.Background())
	require.NoError(t, err)
	require.False(t, ev.Heartbeat)
	require.Equal(t, int64(1), ev.Record.Current)
}

// TestSubscribeContextCancellation: an abandoned consumer unblocks with the
// context error, and Close removes its channel from the hub.
func TestSubscribeContextCancellation(t *testing.T) {
	t.Parallel()

	tr := New(Config{ChannelBuffer: 4, HeartbeatInterval: time.Minute}, nil)
	sub := tr.Subscribe("m")
	require.Equal(t, 1, tr.ListenerCount("m"))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := sub.Next(ctx)
	require.ErrorIs(t, err, context.Canceled)

	sub.Close()
	require.Equal(t, 0, tr.ListenerCount("m"))
}

// TestSubscribeCloseIsIdempotent: double Close must not panic or corrupt the
// listener set.
func TestSubscribeCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(t)
	sub := tr.Subscribe("m")
	other := tr.Subscribe("m")
	defer other.Close()

	sub.Close()
	sub.Close()
	require.Equal(t, 1, tr.ListenerCount("m"))
}

// TestSubscribeConcurrentProducerAndConsumers runs one producer against
// several subscribers and requires each stream to end on the terminal record.
func TestSubscribeConcurrentProducerAndConsumers(t *testing.T) {
	t.Parallel()

	tr := New(Config{ChannelBuffer: 64, HeartbeatInterval: 20 * time.Millisecond}, nil)

	const consumers = 4
	done := make(chan Status, consumers)
	for i := 0; i < consumers; i++ {
		sub := tr.Subscribe("big-model")
		go func(sub *Subscription) {
			defer sub.Close()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			for {
				ev, err := sub.Next(ctx)
				if err != nil {
					done <- Status("")
					return
				}
				if !ev.Heartbeat && ev.Record.Status.Terminal() {
					done <- ev.Record.Status
					return
				}
			}
		}(sub)
	}

	for i := int64(0); i <= 10; i++ {
		tr.Update("big-model", i*10, 100, "shard.bin")
		time.Sleep(time.Millisecond)
	}
	tr.MarkComplete("big-model")

	for i := 0; i < consumers; i++ {
		select {
		case st := <-done:
			require.Equal(t, StatusComplete, st)
		case <-time.After(5 * time.Second):
			t.Fatal("consumer did not observe terminal record")
		}
	}
	require.Eventually(t, func() bool {
		return tr.ListenerCount("big-model") == 0
	}, time.Second, 10*time.Millisecond)
}
