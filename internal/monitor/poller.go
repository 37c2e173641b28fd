package monitor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"statuswatch/internal/eventbus"
	"statuswatch/internal/transport"
	"statuswatch/pkg/logx"
)

// Event types published on the bus.
const (
	EventCycleFailed  = "monitor.cycle_failed"
	EventNotifyFailed = "monitor.notify_failed"
	EventTransition   = "monitor.transition"
)

// ChannelSource supplies the tenant -> channel map, read fresh every cycle.
type ChannelSource interface {
	Channels(ctx context.Context) (map[int64]transport.ChatTarget, error)
}

// CycleReport summarizes one poll cycle. It is the payload of bus events.
type CycleReport struct {
	ID         string
	Service    string
	Started    time.Time
	Duration   time.Duration
	Outcome    string // ok | skipped | canceled | fetch | parse | store | panic | unknown
	Transition Transition
	Reading    HealthReading
	Err        error
	// NotifyErrors holds the per-tenant failures of this cycle.
	NotifyErrors []error
}

type PollerConfig struct {
	Schedule     cron.Schedule
	FetchTimeout time.Duration
	// NotifyTimeout bounds the tenant store read and, through the engine,
	// each notification call for one tenant.
	NotifyTimeout time.Duration
}

// Poller runs the poll cycles of one service. Cycles never overlap: the next
// one is scheduled from the end of the previous.
type Poller struct {
	desc     Descriptor
	engine   *Engine
	channels ChannelSource
	cfg      PollerConfig

	log     logx.Logger
	metrics *Metrics
	bus     eventbus.Bus
	now     func() time.Time

	mu   sync.Mutex
	last CycleReport
}

func NewPoller(d Descriptor, engine *Engine, channels ChannelSource, cfg PollerConfig) *Poller {
	if cfg.Schedule == nil {
		cfg.Schedule = cron.Every(time.Minute)
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 20 * time.Second
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 30 * time.Second
	}
	return &Poller{
		desc:     d,
		engine:   engine,
		channels: channels,
		cfg:      cfg,
		log:      logx.Nop(),
		now:      time.Now,
	}
}

// Last returns the report of the most recent completed cycle.
func (p *Poller) Last() CycleReport {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// Run polls until ctx is canceled. The first cycle starts immediately.
func (p *Poller) Run(ctx context.Context) error {
	for {
		p.RunOnce(ctx)

		wait := p.cfg.Schedule.Next(p.now()).Sub(p.now())
		t := time.NewTimer(max(wait, 0))
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
	}
}

// RunOnce executes one cycle: fetch, read channels, apply. Fetch is bounded
// by the fetch timeout and stops with ctx; the apply step is detached from
// ctx cancellation so shutdown never interrupts a state change.
func (p *Poller) RunOnce(ctx context.Context) (rep CycleReport) {
	rep = CycleReport{ID: uuid.NewString(), Service: p.desc.Key, Started: p.now()}
	log := p.log.With(logx.String("cycle", rep.ID))

	defer func() {
		if r := recover(); r != nil {
			rep.Err = &PanicError{Value: r, Stack: string(debug.Stack())}
		}
		rep.Duration = p.now().Sub(rep.Started)
		p.finish(log, &rep)
	}()

	fctx, cancel := context.WithTimeout(ctx, p.cfg.FetchTimeout)
	r, err := p.desc.Source.Fetch(fctx)
	cancel()
	p.metrics.fetch(p.desc.Key, p.now().Sub(rep.Started).Seconds())
	if err != nil {
		if ctx.Err() != nil {
			rep.Outcome = "canceled"
			return rep
		}
		rep.Err = err
		return rep
	}
	if r.At.IsZero() {
		r.At = rep.Started
	}
	rep.Reading = r
	if r.Indicator == Unknown {
		rep.Outcome = "skipped"
		rep.Transition = TransitionSkipped
		return rep
	}

	// Detached: shutdown waits for the apply step. The engine bounds each
	// tenant call on its own.
	actx := context.WithoutCancel(ctx)
	sctx, cancel := context.WithTimeout(actx, p.cfg.NotifyTimeout)
	channels, err := p.channels.Channels(sctx)
	cancel()
	if err != nil {
		rep.Err = &StoreError{Err: err}
		return rep
	}
	res := p.engine.Apply(actx, r, channels)
	rep.Transition = res.Transition
	rep.NotifyErrors = res.Errors
	return rep
}

func (p *Poller) finish(log logx.Logger, rep *CycleReport) {
	if rep.Err != nil {
		rep.Outcome = ErrorKind(rep.Err)
	} else if rep.Outcome == "" {
		rep.Outcome = "ok"
	}
	p.metrics.cycle(p.desc.Key, rep.Outcome)

	p.mu.Lock()
	p.last = *rep
	p.mu.Unlock()

	switch {
	case rep.Outcome == "canceled":
		return
	case rep.Err != nil:
		fields := []logx.Field{logx.String("kind", rep.Outcome), logx.Err(rep.Err)}
		var pe *PanicError
		if errors.As(rep.Err, &pe) {
			fields = append(fields, logx.Stack(pe.Stack))
		}
		log.Debug("cycle skipped", fields...)
		p.publish(EventCycleFailed, *rep)
		return
	}

	if rep.Transition == TransitionEnter || rep.Transition == TransitionRecover {
		p.publish(EventTransition, *rep)
	}
	if len(rep.NotifyErrors) > 0 {
		p.publish(EventNotifyFailed, *rep)
	}
	log.Trace("cycle done",
		logx.String("indicator", rep.Reading.Indicator.String()),
		logx.String("transition", rep.Transition.String()),
		logx.Duration("took", rep.Duration),
	)
}

func (p *Poller) publish(typ string, rep CycleReport) {
	if p.bus == nil {
		return
	}
	p.bus.Publish(eventbus.Event{Type: typ, Time: p.now(), Data: rep})
}

func (r CycleReport) String() string {
	return fmt.Sprintf("%s cycle %s: %s", r.Service, r.ID, r.Outcome)
}
