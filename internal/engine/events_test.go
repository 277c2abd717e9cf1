package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscription_FIFO(t *testing.T) {
	s := newSubscription(nil)
	for i := 0; i < 3; i++ {
		require.True(t, s.publish(Event{Type: EventTrialFinished, TrialIndex: i}))
	}
	assert.Equal(t, 3, s.Len())

	for i := 0; i < 3; i++ {
		ev, ok := s.TryNext()
		require.True(t, ok)
		assert.Equal(t, i, ev.TrialIndex)
	}
	_, ok := s.TryNext()
	assert.False(t, ok)
}

func TestSubscription_NextWaitsForPublish(t *testing.T) {
	s := newSubscription(nil)

	go func() {
		time.Sleep(10 * time.Millisecond)
		s.publish(Event{Type: EventRunFinished, Status: "completed"})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ev, err := s.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, EventRunFinished, ev.Type)
}

func TestSubscription_NextHonorsContext(t *testing.T) {
	s := newSubscription(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSubscription_CloseDrainsThenStops(t *testing.T) {
	closed := 0
	s := newSubscription(func(*Subscription) { closed++ })
	s.publish(Event{Type: EventRunStarted})
	s.Close()
	s.Close()

	assert.Equal(t, 1, closed, "onClose runs once")
	assert.False(t, s.publish(Event{Type: EventRunFinished}), "publish after close is rejected")

	ev, err := s.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, EventRunStarted, ev.Type)

	_, err = s.Next(context.Background())
	assert.ErrorIs(t, err, ErrSubscriptionClosed)
}

func TestEngine_SubscribeAndClose(t *testing.T) {
	e := New()
	sub := e.Subscribe()
	e.publish(Event{Type: EventRunStarted})
	assert.Equal(t, 1, sub.Len())

	sub.Close()
	e.publish(Event{Type: EventRunFinished})
	assert.Empty(t, e.subs, "closed subscriptions are dropped")
}

func TestEventType_String(t *testing.T) {
	assert.Equal(t, "trial_finished", EventTrialFinished.String())
	assert.Equal(t, "unknown", EventType(99).String())
}
