// Package schedule parses the polling cadence of the monitor.
//
// Supported forms:
//   - Cron: "*/5 * * * *", "@hourly", "@every 55m"
//   - Go duration: "30s", "2h30m"
//   - HH:MM interval: "00:05" (5 minutes), "02:30" (2 hours 30 minutes)
//
// The "cron:" prefix forces cron parsing, "every:" and "interval:" force
// interval parsing.
package schedule

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

type Kind int

const (
	KindCron Kind = iota
	KindInterval
)

type Parsed struct {
	Kind   Kind
	Cron   string
	Every  time.Duration
	Source string // "cron" | "duration" | "hhmm"
}

// Schedule returns the robfig schedule for p.
func (p Parsed) Schedule() (cron.Schedule, error) {
	if p.Kind == KindInterval {
		return cron.Every(p.Every), nil
	}
	s, err := cron.ParseStandard(p.Cron)
	if err != nil {
		return nil, fmt.Errorf("invalid cron %q: %w", p.Cron, err)
	}
	return s, nil
}

func (p Parsed) String() string {
	if p.Kind == KindInterval {
		return "every " + p.Every.String()
	}
	return p.Cron
}

var reHHMM = regexp.MustCompile(`^\s*(\d{1,3}):(\d{2})\s*$`)

// Parse validates raw and classifies it. Cron expressions are fully parsed.
func Parse(raw string) (Parsed, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Parsed{}, fmt.Errorf("schedule required")
	}

	low := strings.ToLower(s)
	switch {
	case strings.HasPrefix(low, "cron:"):
		return parseCron(strings.TrimSpace(s[len("cron:"):]))
	case strings.HasPrefix(low, "interval:"):
		return parseInterval(strings.TrimSpace(s[len("interval:"):]))
	case strings.HasPrefix(low, "every:"):
		return parseInterval(strings.TrimSpace(s[len("every:"):]))
	}

	if strings.ContainsAny(s, " \t\n\r") || strings.HasPrefix(s, "@") {
		return parseCron(s)
	}
	p, err := parseInterval(s)
	if err != nil {
		return Parsed{}, fmt.Errorf(
			"invalid schedule %q (use cron like '*/5 * * * *', HH:MM like '00:05', or duration like '1m')",
			raw,
		)
	}
	return p, nil
}

// ParseSchedule is Parse followed by Schedule.
func ParseSchedule(raw string) (cron.Schedule, error) {
	p, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	return p.Schedule()
}

func parseCron(expr string) (Parsed, error) {
	if expr == "" {
		return Parsed{}, fmt.Errorf("cron schedule required")
	}
	if _, err := cron.ParseStandard(expr); err != nil {
		return Parsed{}, fmt.Errorf("invalid cron %q: %w", expr, err)
	}
	return Parsed{Kind: KindCron, Cron: expr, Source: "cron"}, nil
}

func parseInterval(v string) (Parsed, error) {
	if v == "" {
		return Parsed{}, fmt.Errorf("interval required")
	}
	if m := reHHMM.FindStringSubmatch(v); len(m) == 3 {
		hh, _ := strconv.Atoi(m[1])
		mm, _ := strconv.Atoi(m[2])
		if mm > 59 {
			return Parsed{}, fmt.Errorf("invalid minutes in %q", v)
		}
		d := time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute
		if d <= 0 {
			return Parsed{}, fmt.Errorf("interval must be > 0")
		}
		return Parsed{Kind: KindInterval, Every: d, Source: "hhmm"}, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return Parsed{}, fmt.Errorf("invalid interval %q (use HH:MM or Go duration like '1m')", v)
	}
	if d <= 0 {
		return Parsed{}, fmt.Errorf("interval must be > 0")
	}
	return Parsed{Kind: KindInterval, Every: d, Source: "duration"}, nil
}
