package app

import (
	"context"
	"strings"

	"statuswatch/internal/config"
	"statuswatch/pkg/logx"
)

// startReload applies validated config changes. Logging, owners and the
// log chat change live; everything else is reported as needing a restart.
func (a *App) startReload() {
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		last := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case next, ok := <-sub:
				if !ok {
					return
				}
				// coalesce bursts
				for drained := false; !drained; {
					select {
					case newer := <-sub:
						if newer != nil {
							next = newer
						}
					default:
						drained = true
					}
				}
				a.applyConfig(last, next)
				last = next
			}
		}
	})
}

func (a *App) applyConfig(prev, next *config.Config) {
	changed, attrs, restart := config.SummarizeChange(prev, next)
	if len(changed) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}

	// target first so Apply does not warn when chat logging is enabled
	a.logs.SetChatTarget(next.Telegram.LogChatID(), next.Logging.Chat.ThreadID)
	a.logs.Apply(loggingConfig(next))
	a.cmdm.SetOwners(next.Telegram.OwnerUserIDs)

	if len(restart) > 0 {
		a.log.Warn("config sections changed that need a restart to take effect",
			logx.String("sections", strings.Join(restart, ",")))
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(changed, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}
