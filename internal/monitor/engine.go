package monitor

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"statuswatch/internal/transport"
	"statuswatch/pkg/logx"
)

// Sink performs the notification side effects for one tenant channel.
type Sink interface {
	// Announce posts a new transition message (start or recovery).
	Announce(ctx context.Context, d Descriptor, to transport.ChatTarget, r HealthReading) error
	// OpenLive posts the initial live status message and returns its handle.
	OpenLive(ctx context.Context, d Descriptor, to transport.ChatTarget) (transport.MessageRef, error)
	// UpdateLive edits a live message in place with r.
	UpdateLive(ctx context.Context, d Descriptor, ref transport.MessageRef, r HealthReading) error
	// CloseLive edits a live message to its final recovered text.
	CloseLive(ctx context.Context, d Descriptor, ref transport.MessageRef) error
}

// MonitorState is the per-service bookkeeping owned by an Engine.
type MonitorState struct {
	Heavy bool
	// Live maps tenant id to that tenant's live status message.
	Live map[int64]transport.MessageRef
}

func (s MonitorState) clone() MonitorState {
	return MonitorState{Heavy: s.Heavy, Live: maps.Clone(s.Live)}
}

type Transition int

const (
	TransitionNone Transition = iota
	TransitionSkipped
	TransitionEnter
	TransitionRefresh
	TransitionRecover
)

func (t Transition) String() string {
	switch t {
	case TransitionSkipped:
		return "skipped"
	case TransitionEnter:
		return "enter"
	case TransitionRefresh:
		return "refresh"
	case TransitionRecover:
		return "recover"
	default:
		return "none"
	}
}

// Result describes what one Apply did. Errors holds one
// *NotificationError per failed tenant operation.
type Result struct {
	Transition Transition
	Errors     []error
}

type EngineOption func(*Engine)

func WithEngineLogger(log logx.Logger) EngineOption { return func(e *Engine) { e.log = log } }

func WithEngineMetrics(m *Metrics) EngineOption { return func(e *Engine) { e.metrics = m } }

// WithRefreshOnOpen controls whether live messages opened on entering the
// heavy state are refreshed with the triggering reading in the same cycle.
// Enabled by default.
func WithRefreshOnOpen(v bool) EngineOption { return func(e *Engine) { e.refreshOnOpen = v } }

// WithNotifyTimeout bounds each sink call for one tenant. Every call gets
// its own budget, so a hanging tenant cannot eat the time of the others.
func WithNotifyTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.notifyTimeout = d
		}
	}
}

// Engine is the Calm/Heavy state machine of one service.
type Engine struct {
	desc          Descriptor
	sink          Sink
	log           logx.Logger
	metrics       *Metrics
	refreshOnOpen bool
	notifyTimeout time.Duration

	// mu serializes Apply; snap is what readers see.
	mu    sync.Mutex
	state MonitorState
	snap  atomic.Pointer[MonitorState]
}

func NewEngine(d Descriptor, sink Sink, opts ...EngineOption) *Engine {
	e := &Engine{
		desc:          d,
		sink:          sink,
		log:           logx.Nop(),
		refreshOnOpen: true,
		notifyTimeout: 30 * time.Second,
		state:         MonitorState{Live: map[int64]transport.MessageRef{}},
	}
	for _, o := range opts {
		o(e)
	}
	e.publish()
	return e
}

// State returns a copy of the last published state. It never waits for an
// Apply in progress.
func (e *Engine) State() MonitorState {
	return e.snap.Load().clone()
}

// publish must be called with mu held.
func (e *Engine) publish() {
	st := e.state.clone()
	e.snap.Store(&st)
}

// call runs one sink operation detached from ctx cancellation with its own
// deadline.
func (e *Engine) call(ctx context.Context, fn func(ctx context.Context) error) error {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.notifyTimeout)
	defer cancel()
	return fn(cctx)
}

// Apply consumes one reading. channels is the tenant -> channel map read for
// this cycle. Notification failures are per tenant and never stop the state
// change, which tracks the service's health rather than delivery.
func (e *Engine) Apply(ctx context.Context, r HealthReading, channels map[int64]transport.ChatTarget) Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.publish()

	var res Result
	switch {
	case r.Indicator != Healthy && r.Indicator != Degraded:
		res.Transition = TransitionSkipped

	case !e.state.Heavy && r.Indicator == Degraded:
		e.state.Heavy = true
		e.publish()
		e.metrics.transition(e.desc.Key, true)
		e.log.Info("service degraded", logx.String("severity", r.Severity), logx.String("summary", r.Summary))
		res.Transition = TransitionEnter

		e.announce(ctx, &res, r, channels)
		for _, tenant := range sortedTenants(channels) {
			var ref transport.MessageRef
			err := e.call(ctx, func(c context.Context) error {
				var err error
				ref, err = e.sink.OpenLive(c, e.desc, channels[tenant])
				return err
			})
			e.metrics.notification("open", err)
			if err != nil {
				e.fail(&res, "open", tenant, err)
				continue
			}
			e.state.Live[tenant] = ref
		}
		if e.refreshOnOpen {
			e.updateAll(ctx, &res, r, channels)
		}

	case e.state.Heavy && r.Indicator == Healthy:
		e.state.Heavy = false
		e.publish()
		e.metrics.transition(e.desc.Key, false)
		e.log.Info("service recovered", logx.String("summary", r.Summary))
		res.Transition = TransitionRecover

		e.announce(ctx, &res, r, channels)
		for _, tenant := range sortedTenants(e.state.Live) {
			ref := e.state.Live[tenant]
			err := e.call(ctx, func(c context.Context) error { return e.sink.CloseLive(c, e.desc, ref) })
			e.metrics.notification("close", err)
			if err != nil {
				e.fail(&res, "close", tenant, err)
			}
		}
		clear(e.state.Live)

	case e.state.Heavy:
		res.Transition = TransitionRefresh
		e.updateAll(ctx, &res, r, channels)

	default:
		res.Transition = TransitionNone
	}
	return res
}

func (e *Engine) announce(ctx context.Context, res *Result, r HealthReading, channels map[int64]transport.ChatTarget) {
	for _, tenant := range sortedTenants(channels) {
		to := channels[tenant]
		err := e.call(ctx, func(c context.Context) error { return e.sink.Announce(c, e.desc, to, r) })
		e.metrics.notification("announce", err)
		if err != nil {
			e.fail(res, "announce", tenant, err)
		}
	}
}

// updateAll refreshes live messages of tenants still registered this cycle.
// A message that no longer exists is forgotten.
func (e *Engine) updateAll(ctx context.Context, res *Result, r HealthReading, channels map[int64]transport.ChatTarget) {
	for _, tenant := range sortedTenants(e.state.Live) {
		if _, ok := channels[tenant]; !ok {
			continue
		}
		ref := e.state.Live[tenant]
		err := e.call(ctx, func(c context.Context) error { return e.sink.UpdateLive(c, e.desc, ref, r) })
		e.metrics.notification("update", err)
		if err == nil {
			continue
		}
		e.fail(res, "update", tenant, err)
		if errors.Is(err, transport.ErrNotFound) {
			delete(e.state.Live, tenant)
		}
	}
}

func (e *Engine) fail(res *Result, op string, tenant int64, err error) {
	nerr := &NotificationError{Op: op, Tenant: tenant, Err: err}
	res.Errors = append(res.Errors, nerr)
	if errors.Is(err, transport.ErrNotFound) {
		e.log.Debug("tenant skipped", logx.String("op", op), logx.Int64("tenant", tenant), logx.Err(err))
		return
	}
	e.log.Warn("notification failed", logx.String("op", op), logx.Int64("tenant", tenant), logx.Err(err))
}

func sortedTenants[V any](m map[int64]V) []int64 {
	return slices.Sorted(maps.Keys(m))
}
