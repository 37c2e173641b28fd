package config

import (
	"fmt"
	"strings"
	"time"

	"statuswatch/internal/schedule"
)

// ParseDurationField parses a Go duration config value. Empty is 0; negative
// values are rejected. path names the field in errors ("monitor.fetch_timeout").
func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

// ParseDurationOrDefault returns def for empty or zero values.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return def, nil
	}
	return d, nil
}

// Timeouts returns fetch and notify timeouts with defaults applied.
// Values are assumed validated.
func (m MonitorConfig) Timeouts() (fetch, notify time.Duration) {
	fetch, _ = ParseDurationOrDefault("monitor.fetch_timeout", m.FetchTimeout, DefaultFetchTimeout)
	notify, _ = ParseDurationOrDefault("monitor.notify_timeout", m.NotifyTimeout, DefaultNotifyTimeout)
	return fetch, notify
}

func (t TelegramConfig) PollTimeoutOrDefault() time.Duration {
	d, _ := ParseDurationOrDefault("telegram.poll_timeout", t.PollTimeout, 10*time.Second)
	return d
}

// scheduleGap is the shortest wait between two cycles of p. Cron schedules
// are sampled over one day from a fixed instant.
func scheduleGap(p schedule.Parsed) (time.Duration, error) {
	if p.Kind == schedule.KindInterval {
		return p.Every, nil
	}
	s, err := p.Schedule()
	if err != nil {
		return 0, err
	}
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := at.Add(24 * time.Hour)
	gap := time.Duration(0)
	for prev := s.Next(at); !prev.IsZero() && prev.Before(end); {
		next := s.Next(prev)
		if next.IsZero() {
			break
		}
		if d := next.Sub(prev); gap == 0 || d < gap {
			gap = d
		}
		prev = next
	}
	return gap, nil
}

// checkFetchWithinSchedule requires the fetch timeout to stay below the
// polling interval so one hung fetch cannot swallow the next cycle.
func checkFetchWithinSchedule(m MonitorConfig, p schedule.Parsed) error {
	gap, err := scheduleGap(p)
	if err != nil || gap <= 0 {
		return err
	}
	fetch, _ := m.Timeouts()
	if fetch >= gap {
		return fmt.Errorf("monitor.fetch_timeout: %s must be shorter than the schedule interval (%s)", fetch, gap)
	}
	return nil
}
