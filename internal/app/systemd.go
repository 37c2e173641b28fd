package app

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"statuswatch/pkg/logx"
)

// notifier speaks the sd_notify protocol. Outside systemd every call is a
// no-op.
type notifier struct {
	log  logx.Logger
	send func(state string) (bool, error)
	// interval returns the watchdog period, 0 when disabled.
	interval func() (time.Duration, error)
}

func newNotifier(log logx.Logger) *notifier {
	return &notifier{
		log:      log,
		send:     func(state string) (bool, error) { return daemon.SdNotify(false, state) },
		interval: func() (time.Duration, error) { return daemon.SdWatchdogEnabled(false) },
	}
}

func (n *notifier) notify(state string) {
	sent, err := n.send(state)
	if err != nil {
		n.log.Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
		return
	}
	if sent {
		n.log.Debug("sd_notify sent", logx.String("state", state))
	}
}

func (n *notifier) ready()    { n.notify(daemon.SdNotifyReady) }
func (n *notifier) stopping() { n.notify(daemon.SdNotifyStopping) }

// watchdog pings at half the configured interval until ctx ends.
func (n *notifier) watchdog(ctx context.Context) {
	every, err := n.interval()
	if err != nil {
		n.log.Warn("systemd watchdog misconfigured", logx.Err(err))
		return
	}
	if every <= 0 {
		return
	}
	t := time.NewTicker(every / 2)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n.notify(daemon.SdNotifyWatchdog)
		}
	}
}
