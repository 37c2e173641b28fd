package config

import (
	"reflect"
	"sort"
	"strings"

	"statuswatch/pkg/logx"
)

// SummarizeChange returns the changed sections, safe structured attrs for
// logging (never includes tokens) and the sections that only take effect
// after a restart.
func SummarizeChange(oldCfg, newCfg *Config) (changed []string, attrs []logx.Field, restart []string) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	ot, nt := oldCfg.Telegram, newCfg.Telegram
	tokenChanged := strings.TrimSpace(ot.Token) != strings.TrimSpace(nt.Token)
	if tokenChanged ||
		strings.TrimSpace(ot.PollTimeout) != strings.TrimSpace(nt.PollTimeout) ||
		!reflect.DeepEqual(ot.OwnerUserIDs, nt.OwnerUserIDs) ||
		strings.TrimSpace(ot.LogChat) != strings.TrimSpace(nt.LogChat) {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.Int("telegram.owner_count", len(nt.OwnerUserIDs)),
			logx.Bool("telegram.log_chat_set", strings.TrimSpace(nt.LogChat) != ""),
			logx.Bool("telegram.token_changed", tokenChanged),
		)
		if tokenChanged || strings.TrimSpace(ot.PollTimeout) != strings.TrimSpace(nt.PollTimeout) {
			restart = append(restart, "telegram")
		}
	}

	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
			logx.Bool("logging.chat_enabled", newCfg.Logging.Chat.Enabled),
		)
	}

	if !reflect.DeepEqual(oldCfg.Storage, newCfg.Storage) {
		changed = append(changed, "storage")
		restart = append(restart, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", strings.TrimSpace(newCfg.Storage.Driver)),
			logx.Bool("storage.path_set", strings.TrimSpace(newCfg.Storage.Path) != ""),
		)
	}

	if !reflect.DeepEqual(oldCfg.Monitor, newCfg.Monitor) {
		changed = append(changed, "monitor")
		restart = append(restart, "monitor")
		attrs = append(attrs,
			logx.String("monitor.schedule", newCfg.Monitor.ScheduleOrDefault()),
			logx.Int("monitor.custom_services", len(newCfg.Monitor.Services)),
		)
	}

	var od, nd DebugConfig
	if oldCfg.Debug != nil {
		od = *oldCfg.Debug
	}
	if newCfg.Debug != nil {
		nd = *newCfg.Debug
	}
	if !reflect.DeepEqual(od, nd) {
		changed = append(changed, "debug")
		restart = append(restart, "debug")
		attrs = append(attrs,
			logx.Bool("debug.enabled", nd.Enabled),
			logx.String("debug.addr", nd.DebugAddr()),
			logx.Bool("debug.token_set", strings.TrimSpace(nd.Token) != ""),
		)
	}

	sort.Strings(changed)
	sort.Strings(restart)
	return changed, attrs, restart
}
