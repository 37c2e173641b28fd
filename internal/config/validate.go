package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"

	"statuswatch/internal/schedule"
)

const (
	DefaultSchedule       = "1m"
	DefaultFetchTimeout   = 20 * time.Second
	DefaultNotifyTimeout  = 30 * time.Second
	DefaultSendRatePerSec = 20
	DefaultDebugAddr      = "127.0.0.1:9090"
	DefaultUserAgent      = "statuswatch/1.0"
)

// Validate checks every field that would otherwise fail later at runtime.
// All problems are reported together.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	_, err := ParseDurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout)
	add(err)
	if s := strings.TrimSpace(cfg.Telegram.LogChat); s != "" {
		if _, err := strconv.ParseInt(s, 10, 64); err != nil {
			add(fmt.Errorf("telegram.log_chat: invalid chat id %q", s))
		}
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
	case "", "sqlite", "file":
	default:
		add(fmt.Errorf("storage.driver: unsupported %q (want sqlite or file)", cfg.Storage.Driver))
	}
	_, err = ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	add(err)

	m := cfg.Monitor
	sched, schedErr := schedule.Parse(m.ScheduleOrDefault())
	if schedErr != nil {
		add(fmt.Errorf("monitor.schedule: %w", schedErr))
	}
	_, err = ParseDurationField("monitor.fetch_timeout", m.FetchTimeout)
	add(err)
	if schedErr == nil && err == nil {
		add(checkFetchWithinSchedule(m, sched))
	}
	_, err = ParseDurationField("monitor.notify_timeout", m.NotifyTimeout)
	add(err)
	if m.SendRatePerSec < 0 {
		add(errors.New("monitor.send_rate_per_sec: must be >= 0"))
	}

	seen := map[string]bool{}
	for i, s := range m.Services {
		path := fmt.Sprintf("monitor.services[%d]", i)
		key := strings.TrimSpace(s.Key)
		if key == "" {
			add(fmt.Errorf("%s.key: required", path))
		} else if seen[key] {
			add(fmt.Errorf("%s.key: duplicate %q", path, key))
		}
		seen[key] = true

		if u, err := url.Parse(strings.TrimSpace(s.URL)); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			add(fmt.Errorf("%s.url: absolute http(s) url required", path))
		}
		switch s.Kind {
		case "statuspage":
		case "json":
			if strings.TrimSpace(s.IndicatorPath) == "" {
				add(fmt.Errorf("%s.indicator_path: required for kind json", path))
			}
			if len(s.Healthy) == 0 {
				add(fmt.Errorf("%s.healthy: required for kind json", path))
			}
		default:
			add(fmt.Errorf("%s.kind: unsupported %q (want statuspage or json)", path, s.Kind))
		}
	}

	if d := cfg.Debug; d != nil && d.Enabled {
		if strings.TrimSpace(d.Token) == "" && !d.AllowInsecure && !IsLoopbackAddr(d.DebugAddr()) {
			add(fmt.Errorf("debug.addr: %q is not loopback; set debug.token or debug.allow_insecure", d.DebugAddr()))
		}
	}

	return errors.Join(errs...)
}

func (m MonitorConfig) ScheduleOrDefault() string {
	if s := strings.TrimSpace(m.Schedule); s != "" {
		return s
	}
	return DefaultSchedule
}

func (m MonitorConfig) SendRate() int {
	if m.SendRatePerSec <= 0 {
		return DefaultSendRatePerSec
	}
	return m.SendRatePerSec
}

func (m MonitorConfig) UserAgentOrDefault() string {
	if s := strings.TrimSpace(m.UserAgent); s != "" {
		return s
	}
	return DefaultUserAgent
}

// LogChatID returns the operator chat id, or 0 when unset.
func (t TelegramConfig) LogChatID() int64 {
	id, _ := strconv.ParseInt(strings.TrimSpace(t.LogChat), 10, 64)
	return id
}

func (t TelegramConfig) IsOwner(userID int64) bool {
	return lo.Contains(t.OwnerUserIDs, userID)
}

func (d *DebugConfig) DebugAddr() string {
	if d == nil || strings.TrimSpace(d.Addr) == "" {
		return DefaultDebugAddr
	}
	return strings.TrimSpace(d.Addr)
}

// IsLoopbackAddr reports whether a host:port listen address only binds
// loopback. An empty host means all interfaces.
func IsLoopbackAddr(addr string) bool {
	h, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	h = strings.TrimSpace(h)
	if h == "" {
		return false
	}
	if strings.EqualFold(h, "localhost") {
		return true
	}
	ip := net.ParseIP(h)
	return ip != nil && ip.IsLoopback()
}
