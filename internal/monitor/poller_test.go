package monitor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"statuswatch/internal/eventbus"
	"statuswatch/internal/transport"
)

func newTestPoller(src Source, channels ChannelSource, sink Sink) *Poller {
	d := Descriptor{Key: "acme", Title: "Acme", Source: src}
	p := NewPoller(d, NewEngine(d, sink), channels, PollerConfig{Schedule: fixedSchedule(time.Hour)})
	return p
}

func TestFetchErrorLeavesStateUntouched(t *testing.T) {
	for _, failure := range []error{
		&FetchError{URL: "https://acme.test", Status: 503},
		&ParseError{URL: "https://acme.test", Err: errors.New("missing status.indicator")},
	} {
		src := &scriptedSource{steps: []step{{r: degraded("down")}, {err: failure}}}
		sink := newFakeSink()
		p := newTestPoller(src, &fakeChannels{m: oneTenant()}, sink)

		p.RunOnce(context.Background())
		before := p.engine.State()
		calls := len(sink.Calls())

		rep := p.RunOnce(context.Background())

		assert.Equal(t, ErrorKind(failure), rep.Outcome)
		assert.Equal(t, before, p.engine.State())
		assert.Len(t, sink.Calls(), calls)
		assert.Equal(t, rep.ID, p.Last().ID)
	}
}

func TestStoreErrorSkipsCycle(t *testing.T) {
	src := &scriptedSource{steps: []step{{r: degraded("down")}}}
	sink := newFakeSink()
	p := newTestPoller(src, &fakeChannels{err: errors.New("database is locked")}, sink)

	rep := p.RunOnce(context.Background())

	assert.Equal(t, "store", rep.Outcome)
	assert.False(t, p.engine.State().Heavy)
	assert.Empty(t, sink.Calls())
}

func TestChannelsAreReadEveryCycle(t *testing.T) {
	src := &scriptedSource{steps: []step{{r: degraded("down")}}}
	sink := newFakeSink()
	ch := &fakeChannels{m: oneTenant()}
	p := newTestPoller(src, ch, sink)
	p.engine.refreshOnOpen = false

	p.RunOnce(context.Background())
	ch.mu.Lock()
	ch.m = map[int64]transport.ChatTarget{}
	ch.mu.Unlock()
	p.RunOnce(context.Background())

	assert.Equal(t, 0, sink.count("update"))
}

func TestPanicInSourceIsRecovered(t *testing.T) {
	bus := eventbus.New()
	events, unsub := bus.Subscribe(4, EventCycleFailed)
	defer unsub()

	src := SourceFunc(func(context.Context) (HealthReading, error) { panic("boom") })
	p := newTestPoller(src, &fakeChannels{}, newFakeSink())
	p.bus = bus

	rep := p.RunOnce(context.Background())

	assert.Equal(t, "panic", rep.Outcome)
	require.Len(t, events, 1)
	ev := <-events
	got := ev.Data.(CycleReport)
	assert.Equal(t, "acme", got.Service)
	assert.Equal(t, "panic", got.Outcome)
}

func TestTransitionEventsAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	bus := eventbus.New()
	events, unsub := bus.Subscribe(8, EventTransition)
	defer unsub()

	src := &scriptedSource{steps: []step{{r: degraded("down")}, {r: healthy()}}}
	p := newTestPoller(src, &fakeChannels{m: oneTenant()}, newFakeSink())
	p.bus = bus
	p.metrics = m
	p.engine.metrics = m

	p.RunOnce(context.Background())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.degraded.WithLabelValues("acme")))
	p.RunOnce(context.Background())

	require.Len(t, events, 2)
	assert.Equal(t, TransitionEnter, (<-events).Data.(CycleReport).Transition)
	assert.Equal(t, TransitionRecover, (<-events).Data.(CycleReport).Transition)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.cycles.WithLabelValues("acme", "ok")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.degraded.WithLabelValues("acme")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.notifications.WithLabelValues("open", "ok")))
}

func TestUnknownReadingSkipsStoreRead(t *testing.T) {
	src := &scriptedSource{steps: []step{{r: HealthReading{Indicator: Unknown}}}}
	p := newTestPoller(src, &fakeChannels{err: errors.New("must not be called")}, newFakeSink())
	rep := p.RunOnce(context.Background())
	assert.Equal(t, "skipped", rep.Outcome)
}

func TestRunNeverOverlapsCycles(t *testing.T) {
	var active, maxActive, calls atomic.Int32
	src := SourceFunc(func(ctx context.Context) (HealthReading, error) {
		n := active.Add(1)
		defer active.Add(-1)
		for {
			m := maxActive.Load()
			if n <= m || maxActive.CompareAndSwap(m, n) {
				break
			}
		}
		calls.Add(1)
		time.Sleep(15 * time.Millisecond)
		return healthy(), nil
	})
	d := Descriptor{Key: "acme", Source: src}
	p := NewPoller(d, NewEngine(d, newFakeSink()), &fakeChannels{}, PollerConfig{Schedule: fixedSchedule(time.Millisecond)})

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	require.NoError(t, p.Run(ctx))

	assert.Equal(t, int32(1), maxActive.Load())
	assert.GreaterOrEqual(t, calls.Load(), int32(2))
}

func TestRunStopsPromptlyOnCancel(t *testing.T) {
	src := &scriptedSource{steps: []step{{r: healthy()}}}
	p := newTestPoller(src, &fakeChannels{}, newFakeSink())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool { return p.Last().ID != "" }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}

func TestCanceledFetchIsNotReported(t *testing.T) {
	bus := eventbus.New()
	events, unsub := bus.Subscribe(4)
	defer unsub()

	src := SourceFunc(func(ctx context.Context) (HealthReading, error) {
		<-ctx.Done()
		return HealthReading{}, &FetchError{URL: "u", Err: ctx.Err()}
	})
	p := newTestPoller(src, &fakeChannels{}, newFakeSink())
	p.bus = bus

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rep := p.RunOnce(ctx)

	assert.Equal(t, "canceled", rep.Outcome)
	assert.Len(t, events, 0)
}

func TestFetchTimeoutBoundsCycle(t *testing.T) {
	src := SourceFunc(func(ctx context.Context) (HealthReading, error) {
		<-ctx.Done()
		return HealthReading{}, &FetchError{URL: "u", Err: ctx.Err()}
	})
	d := Descriptor{Key: "acme", Source: src}
	p := NewPoller(d, NewEngine(d, newFakeSink()), &fakeChannels{}, PollerConfig{FetchTimeout: 20 * time.Millisecond})

	start := time.Now()
	rep := p.RunOnce(context.Background())
	assert.Equal(t, "fetch", rep.Outcome)
	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, errors.Is(rep.Err, context.DeadlineExceeded))
}

func TestSlowTenantLeavesOthersNotified(t *testing.T) {
	src := &scriptedSource{steps: []step{{r: degraded("down")}}}
	sink := &slowSink{fakeSink: newFakeSink(), slow: -1001}
	d := Descriptor{Key: "acme", Source: src}
	notify := 30 * time.Millisecond
	p := NewPoller(d, NewEngine(d, sink, WithNotifyTimeout(notify)), &fakeChannels{m: twoTenants()},
		PollerConfig{Schedule: fixedSchedule(time.Hour), NotifyTimeout: notify})

	rep := p.RunOnce(context.Background())
	assert.Equal(t, "ok", rep.Outcome)
	assert.Len(t, rep.NotifyErrors, 2)
	assert.Equal(t, 1, sink.count("announce:degraded"))
	assert.Equal(t, 1, sink.count("update"))
	assert.Equal(t, map[int64]transport.MessageRef{2: {ChatID: -1002, ThreadID: 7, MessageID: 1}}, p.engine.State().Live)
}
