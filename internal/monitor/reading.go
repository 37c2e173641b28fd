package monitor

import (
	"strings"
	"time"
)

type Indicator int

const (
	// Unknown readings never change state.
	Unknown Indicator = iota
	Healthy
	Degraded
)

func (i Indicator) String() string {
	switch i {
	case Healthy:
		return "healthy"
	case Degraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// Metric is a display-only auxiliary value.
type Metric struct {
	Name  string
	Value string
}

type HealthReading struct {
	Indicator Indicator
	// Severity is the raw service-specific level ("none", "minor", "major",
	// "critical", "ok", ...), used for coloring only.
	Severity string
	Summary  string
	Detail   string
	Metrics  []Metric
	At       time.Time
}

// ClassifySeverity maps a graded severity onto the two-state indicator:
// "none" and "ok" (any case) are healthy, every other non-empty value is
// degraded, and an empty value is unknown.
func ClassifySeverity(sev string) Indicator {
	switch strings.ToLower(strings.TrimSpace(sev)) {
	case "":
		return Unknown
	case "none", "ok", "operational":
		return Healthy
	default:
		return Degraded
	}
}
