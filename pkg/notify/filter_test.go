package notify

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilter_RateLimitPerType(t *testing.T) {
	sink := &collectingSink{}
	f := NewFilter(sink, 5*time.Second, nil)
	ctx := context.Background()
	session := uuid.New()
	t0 := time.Unix(0, 0)

	require.NoError(t, f.Send(ctx, New(TargetAcquired, t0, session)))
	require.NoError(t, f.Send(ctx, New(TargetAcquired, t0.Add(time.Second), session)))
	// Other types are limited independently
	require.NoError(t, f.Send(ctx, New(TargetLost, t0.Add(time.Second), session)))
	require.NoError(t, f.Send(ctx, New(TargetAcquired, t0.Add(5*time.Second), session)))

	assert.Equal(t, []Type{TargetAcquired, TargetLost, TargetAcquired}, sink.types())
}

func TestFilter_PhaseEventsLimitedPerPhase(t *testing.T) {
	f := NewFilter(&collectingSink{}, 5*time.Second, nil)
	session := uuid.New()
	now := time.Unix(0, 0)

	for _, phase := range []string{"LOAD", "FIRE", "COOLDOWN", "IDLE"} {
		ev := New(PhaseEntered, now, session)
		ev.Phase = phase
		assert.True(t, f.Allow(ev), phase)
	}
	ev := New(PhaseEntered, now, session)
	ev.Phase = "LOAD"
	assert.False(t, f.Allow(ev))
}

func TestFilter_DisabledTypes(t *testing.T) {
	sink := &collectingSink{}
	f := NewFilter(sink, 0, func(t Type) bool { return t != PhaseEntered })
	ctx := context.Background()
	session := uuid.New()

	require.NoError(t, f.Send(ctx, New(PhaseEntered, time.Now(), session)))
	require.NoError(t, f.Send(ctx, New(CycleCompleted, time.Now(), session)))
	assert.Equal(t, []Type{CycleCompleted}, sink.types())
}

func TestFilter_Configure(t *testing.T) {
	f := NewFilter(&collectingSink{}, time.Minute, nil)
	session := uuid.New()
	now := time.Unix(0, 0)

	assert.True(t, f.Allow(New(TargetLost, now, session)))
	assert.False(t, f.Allow(New(TargetLost, now, session)))

	f.Configure(0, nil)
	assert.True(t, f.Allow(New(TargetLost, now, session)))
}

func TestDispatcher_FilterOnlyAffectsWrappedSink(t *testing.T) {
	all := &collectingSink{}
	limited := &collectingSink{}
	filter := NewFilter(limited, 5*time.Second, func(t Type) bool { return t != CycleCompleted })
	d := NewDispatcher(Options{QueueSize: 16}, all, filter)
	go d.Run(context.Background())

	a, b := uuid.New(), uuid.New()
	t0 := time.Unix(0, 0)
	require.NoError(t, d.Publish(New(LoopStarted, t0, a)))
	require.NoError(t, d.Publish(New(LoopStopped, t0.Add(time.Second), a)))
	require.NoError(t, d.Publish(New(LoopStarted, t0.Add(2*time.Second), b)))
	require.NoError(t, d.Publish(New(CycleCompleted, t0.Add(2500*time.Millisecond), b)))
	require.NoError(t, d.Publish(New(LoopStopped, t0.Add(3*time.Second), b)))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, d.Close(ctx))

	assert.Equal(t, []Type{LoopStarted, LoopStopped, LoopStarted, CycleCompleted, LoopStopped}, all.types())
	assert.Equal(t, []Type{LoopStarted, LoopStopped}, limited.types())
}
