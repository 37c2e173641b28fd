package app

import (
	"context"
	"errors"

	"statuswatch/internal/eventbus"
	"statuswatch/internal/monitor"
	"statuswatch/pkg/logx"
)

func (a *App) startReporter() {
	events, unsub := a.bus.Subscribe(128,
		monitor.EventCycleFailed,
		monitor.EventNotifyFailed,
		monitor.EventTransition,
	)
	log := a.log.With(logx.String("comp", "reporter"))
	a.sup.Go0("monitor.reporter", func(c context.Context) {
		defer unsub()
		runReporter(c, events, log)
	})
}

// runReporter turns monitor events into structured operator logs. WARN
// records also reach the chat log sink.
func runReporter(ctx context.Context, events <-chan eventbus.Event, log logx.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			rep, ok := e.Data.(monitor.CycleReport)
			if !ok {
				continue
			}
			report(log, e.Type, rep)
		}
	}
}

func report(log logx.Logger, typ string, rep monitor.CycleReport) {
	base := []logx.Field{
		logx.String("service", rep.Service),
		logx.String("cycle", rep.ID),
		logx.Time("at", rep.Started),
	}
	switch typ {
	case monitor.EventCycleFailed:
		fields := append(base, logx.String("kind", rep.Outcome), logx.Err(rep.Err))
		var pe *monitor.PanicError
		if errors.As(rep.Err, &pe) {
			fields = append(fields, logx.Stack(pe.Stack))
		}
		log.Warn("poll cycle failed", fields...)
	case monitor.EventNotifyFailed:
		for _, err := range rep.NotifyErrors {
			log.Warn("notification failed", append(base, logx.String("kind", monitor.ErrorKind(err)), logx.Err(err))...)
		}
	case monitor.EventTransition:
		log.Info("service state changed", append(base,
			logx.String("transition", rep.Transition.String()),
			logx.String("indicator", rep.Reading.Indicator.String()),
			logx.String("summary", rep.Reading.Summary),
		)...)
	}
}
