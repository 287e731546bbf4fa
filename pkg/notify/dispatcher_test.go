package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collectingSink struct {
	mu     sync.Mutex
	events []Event
}

func (c *collectingSink) Send(_ context.Context, ev Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

func (c *collectingSink) types() []Type {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Type, len(c.events))
	for i, e := range c.events {
		out[i] = e.Type
	}
	return out
}

func TestDispatcher_DeliversInOrder(t *testing.T) {
	sink := &collectingSink{}
	d := NewDispatcher(Options{QueueSize: 8}, sink)
	go d.Run(context.Background())

	session := uuid.New()
	now := time.Now()
	require.NoError(t, d.Publish(New(LoopStarted, now, session)))
	require.NoError(t, d.Publish(New(TargetAcquired, now, session)))
	require.NoError(t, d.Publish(New(LoopStopped, now, session)))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, d.Close(ctx))

	assert.Equal(t, []Type{LoopStarted, TargetAcquired, LoopStopped}, sink.types())
	assert.EqualValues(t, 3, d.Delivered())
}

func TestDispatcher_QueueFullDoesNotBlock(t *testing.T) {
	drops := 0
	d := NewDispatcher(Options{QueueSize: 2, OnDrop: func() { drops++ }})
	session := uuid.New()

	// No worker running: the third publish must fail fast
	require.NoError(t, d.Publish(New(TargetAcquired, time.Now(), session)))
	require.NoError(t, d.Publish(New(TargetLost, time.Now(), session)))

	start := time.Now()
	err := d.Publish(New(LoopStarted, time.Now(), session))
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Less(t, time.Since(start), 50*time.Millisecond)
	assert.EqualValues(t, 1, d.Dropped())
	assert.Equal(t, 1, drops)
}

func TestDispatcher_PublishAfterClose(t *testing.T) {
	d := NewDispatcher(Options{})
	go d.Run(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, d.Close(ctx))
	require.NoError(t, d.Close(ctx))
	assert.ErrorIs(t, d.Publish(New(LoopStopped, time.Now(), uuid.New())), ErrClosed)
}

func TestLogSink(t *testing.T) {
	ev := New(PhaseEntered, time.Now(), uuid.New())
	ev.Phase = "FIRE"
	ev.Target = &Target{X: 1, Y: 2, Confidence: 0.9}
	assert.NoError(t, NewLogSink().Send(context.Background(), ev))
}

func TestSinkFunc(t *testing.T) {
	var got Type
	s := SinkFunc(func(_ context.Context, ev Event) error {
		got = ev.Type
		return nil
	})
	require.NoError(t, s.Send(context.Background(), New(TargetLost, time.Now(), uuid.New())))
	assert.Equal(t, TargetLost, got)
}
