package monitor

import (
	"context"
	"sync"
	"time"

	"statuswatch/internal/transport"
)

type call struct {
	Op      string
	ChatID  int64
	Summary string
}

type fakeSink struct {
	mu     sync.Mutex
	calls  []call
	fail   map[int64]error // by chat id
	nextID int
}

func newFakeSink() *fakeSink { return &fakeSink{fail: map[int64]error{}} }

func (s *fakeSink) record(op string, chatID int64, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call{Op: op, ChatID: chatID, Summary: summary})
	return s.fail[chatID]
}

func (s *fakeSink) Announce(_ context.Context, _ Descriptor, to transport.ChatTarget, r HealthReading) error {
	return s.record("announce:"+r.Indicator.String(), to.ChatID, r.Summary)
}

func (s *fakeSink) OpenLive(_ context.Context, _ Descriptor, to transport.ChatTarget) (transport.MessageRef, error) {
	if err := s.record("open", to.ChatID, ""); err != nil {
		return transport.MessageRef{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	return transport.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID, MessageID: s.nextID}, nil
}

func (s *fakeSink) UpdateLive(_ context.Context, _ Descriptor, ref transport.MessageRef, r HealthReading) error {
	return s.record("update", ref.ChatID, r.Summary)
}

func (s *fakeSink) CloseLive(_ context.Context, _ Descriptor, ref transport.MessageRef) error {
	return s.record("close", ref.ChatID, "")
}

func (s *fakeSink) Calls() []call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]call(nil), s.calls...)
}

func (s *fakeSink) count(op string) int {
	n := 0
	for _, c := range s.Calls() {
		if c.Op == op {
			n++
		}
	}
	return n
}

type fakeChannels struct {
	mu  sync.Mutex
	m   map[int64]transport.ChatTarget
	err error
}

func (f *fakeChannels) Channels(context.Context) (map[int64]transport.ChatTarget, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[int64]transport.ChatTarget, len(f.m))
	for k, v := range f.m {
		out[k] = v
	}
	return out, nil
}

// scriptedSource returns the queued results in order, then repeats the last.
type scriptedSource struct {
	mu    sync.Mutex
	steps []step
	calls int
}

type step struct {
	r   HealthReading
	err error
}

func (s *scriptedSource) Fetch(context.Context) (HealthReading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := min(s.calls, len(s.steps)-1)
	s.calls++
	return s.steps[i].r, s.steps[i].err
}

func degraded(summary string) HealthReading {
	return HealthReading{Indicator: Degraded, Severity: "major", Summary: summary}
}

func healthy() HealthReading {
	return HealthReading{Indicator: Healthy, Severity: "none", Summary: "All Systems Operational"}
}

// fixedSchedule fires every d, below cron.Every's one second floor.
type fixedSchedule time.Duration

func (f fixedSchedule) Next(t time.Time) time.Time { return t.Add(time.Duration(f)) }

func oneTenant() map[int64]transport.ChatTarget {
	return map[int64]transport.ChatTarget{1: {ChatID: -1001}}
}

func twoTenants() map[int64]transport.ChatTarget {
	return map[int64]transport.ChatTarget{1: {ChatID: -1001}, 2: {ChatID: -1002, ThreadID: 7}}
}
