package monitor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterRejectsDuplicates(t *testing.T) {
	s := NewSupervisor(&fakeChannels{}, newFakeSink(), SupervisorConfig{})
	src := &scriptedSource{steps: []step{{r: healthy()}}}

	_, err := s.Register(Descriptor{Key: "a", Source: src})
	require.NoError(t, err)
	_, err = s.Register(Descriptor{Key: "a", Source: src})
	assert.ErrorIs(t, err, ErrDuplicateService)
	_, err = s.Register(Descriptor{Key: "b"})
	assert.Error(t, err)
}

func TestSupervisorWaitsForReadiness(t *testing.T) {
	var fetched atomic.Int32
	src := SourceFunc(func(context.Context) (HealthReading, error) {
		fetched.Add(1)
		return healthy(), nil
	})
	s := NewSupervisor(&fakeChannels{}, newFakeSink(), SupervisorConfig{Poller: PollerConfig{Schedule: fixedSchedule(time.Hour)}})
	_, err := s.Register(Descriptor{Key: "a", Title: "A", Source: src})
	require.NoError(t, err)

	ready := make(chan struct{})
	require.NoError(t, s.Start(context.Background(), ready))
	defer func() { _ = s.Stop(context.Background()) }()

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(0), fetched.Load())

	close(ready)
	require.Eventually(t, func() bool { return fetched.Load() == 1 }, time.Second, 5*time.Millisecond)

	_, err = s.Register(Descriptor{Key: "late", Source: src})
	assert.ErrorIs(t, err, ErrStarted)
}

func TestFailingMonitorDoesNotAffectOthers(t *testing.T) {
	bad := SourceFunc(func(context.Context) (HealthReading, error) { panic("broken adapter") })
	good := &scriptedSource{steps: []step{{r: degraded("down")}}}

	sink := newFakeSink()
	s := NewSupervisor(&fakeChannels{m: oneTenant()}, sink, SupervisorConfig{
		Poller:        PollerConfig{Schedule: fixedSchedule(10 * time.Millisecond)},
		RefreshOnOpen: true,
	})
	_, err := s.Register(Descriptor{Key: "bad", Source: bad})
	require.NoError(t, err)
	_, err = s.Register(Descriptor{Key: "good", Title: "Good", Source: good})
	require.NoError(t, err)

	ready := make(chan struct{})
	close(ready)
	require.NoError(t, s.Start(context.Background(), ready))

	require.Eventually(t, func() bool { return sink.count("update") >= 3 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop(context.Background()))

	st := s.Status()
	require.Len(t, st, 2)
	assert.Equal(t, "bad", st[0].Key)
	assert.Equal(t, "panic", st[0].Last.Outcome)
	assert.Equal(t, "good", st[1].Key)
	assert.True(t, st[1].Heavy)
	assert.Equal(t, 1, st[1].Live)
	assert.Equal(t, "ok", st[1].Last.Outcome)
}

func TestStopBeforeStart(t *testing.T) {
	s := NewSupervisor(&fakeChannels{}, newFakeSink(), SupervisorConfig{})
	assert.NoError(t, s.Stop(context.Background()))
}
