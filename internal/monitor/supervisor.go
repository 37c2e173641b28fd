package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"statuswatch/internal/eventbus"
	rtsup "statuswatch/internal/runtime/supervisor"
	"statuswatch/pkg/logx"
)

var (
	ErrDuplicateService = errors.New("monitor: duplicate service key")
	ErrStarted          = errors.New("monitor: supervisor already started")
)

// Monitor is one registered service: descriptor, engine and poller.
type Monitor struct {
	Desc   Descriptor
	Engine *Engine
	Poller *Poller
}

type SupervisorConfig struct {
	Poller PollerConfig
	// RefreshOnOpen, see WithRefreshOnOpen.
	RefreshOnOpen bool
}

// Status is a point-in-time view of one monitor.
type Status struct {
	Key      string
	Title    string
	Heavy    bool
	Live     int
	Last     CycleReport
	Restarts uint64
}

// Supervisor owns the monitors. Each poller runs in its own restartable
// goroutine; a panic or error in one never affects the others.
type Supervisor struct {
	cfg      SupervisorConfig
	channels ChannelSource
	sink     Sink
	log      logx.Logger
	metrics  *Metrics
	bus      eventbus.Bus

	mu       sync.Mutex
	order    []string
	monitors map[string]*Monitor
	sup      *rtsup.Supervisor
}

type SupervisorOption func(*Supervisor)

func WithLogger(log logx.Logger) SupervisorOption { return func(s *Supervisor) { s.log = log } }
func WithMetrics(m *Metrics) SupervisorOption     { return func(s *Supervisor) { s.metrics = m } }
func WithBus(b eventbus.Bus) SupervisorOption     { return func(s *Supervisor) { s.bus = b } }

func NewSupervisor(channels ChannelSource, sink Sink, cfg SupervisorConfig, opts ...SupervisorOption) *Supervisor {
	s := &Supervisor{
		cfg:      cfg,
		channels: channels,
		sink:     sink,
		log:      logx.Nop(),
		monitors: map[string]*Monitor{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Register adds a service. It must be called before Start.
func (s *Supervisor) Register(d Descriptor) (*Monitor, error) {
	if d.Key == "" || d.Source == nil {
		return nil, fmt.Errorf("monitor: descriptor %q needs a key and a source", d.Key)
	}
	if d.Title == "" {
		d.Title = d.Key
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sup != nil {
		return nil, ErrStarted
	}
	if _, ok := s.monitors[d.Key]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateService, d.Key)
	}

	log := s.log.With(logx.String("service", d.Key))
	eng := NewEngine(d, s.sink,
		WithEngineLogger(log),
		WithEngineMetrics(s.metrics),
		WithRefreshOnOpen(s.cfg.RefreshOnOpen),
		WithNotifyTimeout(s.cfg.Poller.NotifyTimeout),
	)
	p := NewPoller(d, eng, s.channels, s.cfg.Poller)
	p.log = log
	p.metrics = s.metrics
	p.bus = s.bus

	m := &Monitor{Desc: d, Engine: eng, Poller: p}
	s.monitors[d.Key] = m
	s.order = append(s.order, d.Key)
	return m, nil
}

// Start launches every poller once ready is closed (the chat client is up).
// It does not block.
func (s *Supervisor) Start(ctx context.Context, ready <-chan struct{}) error {
	s.mu.Lock()
	if s.sup != nil {
		s.mu.Unlock()
		return ErrStarted
	}
	s.sup = rtsup.New(ctx,
		rtsup.WithLogger(s.log),
		rtsup.WithCancelOnError(false),
	)
	sup := s.sup
	monitors := make([]*Monitor, 0, len(s.order))
	for _, k := range s.order {
		monitors = append(monitors, s.monitors[k])
	}
	s.mu.Unlock()

	for _, m := range monitors {
		p := m.Poller
		sup.GoRestart("monitor."+m.Desc.Key, func(ctx context.Context) error {
			select {
			case <-ctx.Done():
				return nil
			case <-ready:
			}
			return p.Run(ctx)
		}, rtsup.WithRestartBackoff(time.Second, time.Minute))
	}
	s.log.Info("monitors started", logx.Int("count", len(monitors)))
	return nil
}

// Stop cancels all pollers and waits for in-flight cycles up to ctx.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	sup := s.sup
	s.mu.Unlock()
	if sup == nil {
		return nil
	}
	return sup.Stop(ctx)
}

// Status lists monitors in registration order.
func (s *Supervisor) Status() []Status {
	s.mu.Lock()
	monitors := make([]*Monitor, 0, len(s.order))
	for _, k := range s.order {
		monitors = append(monitors, s.monitors[k])
	}
	sup := s.sup
	s.mu.Unlock()

	restarts := map[string]uint64{}
	if sup != nil {
		for _, st := range sup.Snapshot() {
			restarts[st.Name] = st.Restarts
		}
	}

	out := make([]Status, 0, len(monitors))
	for _, m := range monitors {
		st := m.Engine.State()
		out = append(out, Status{
			Key:      m.Desc.Key,
			Title:    m.Desc.Title,
			Heavy:    st.Heavy,
			Live:     len(st.Live),
			Last:     m.Poller.Last(),
			Restarts: restarts["monitor."+m.Desc.Key],
		})
	}
	return out
}
