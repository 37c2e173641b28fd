package monitor

import (
	"context"
	"strings"
)

// Source fetches one service's status and normalizes it. Implementations
// hold no monitor state and are safe to call from one goroutine at a time.
type Source interface {
	Fetch(ctx context.Context) (HealthReading, error)
}

type SourceFunc func(ctx context.Context) (HealthReading, error)

func (f SourceFunc) Fetch(ctx context.Context) (HealthReading, error) { return f(ctx) }

type Color int

const (
	ColorBlue Color = iota
	ColorGreen
	ColorGold
	ColorRed
)

// Emoji renders c as a Telegram-friendly marker.
func (c Color) Emoji() string {
	switch c {
	case ColorGreen:
		return "🟢"
	case ColorGold:
		return "🟡"
	case ColorRed:
		return "🔴"
	default:
		return "🔵"
	}
}

// Palette maps severities to colors; unlisted severities use Default.
type Palette struct {
	Levels  map[string]Color
	Default Color
}

// DefaultPalette: critical/major red, minor gold, none green, anything else blue.
var DefaultPalette = Palette{
	Levels: map[string]Color{
		"critical": ColorRed,
		"major":    ColorRed,
		"minor":    ColorGold,
		"none":     ColorGreen,
		"ok":       ColorGreen,
	},
	Default: ColorBlue,
}

func (p Palette) For(severity string) Color {
	if c, ok := p.Levels[strings.ToLower(strings.TrimSpace(severity))]; ok {
		return c
	}
	return p.Default
}

// Descriptor is the static registration of one monitored service.
type Descriptor struct {
	Key     string // stable id, e.g. "sentry"
	Title   string // display name, e.g. "Sentry"
	PageURL string // human status page, optional
	Palette Palette
	Source  Source
}

func (d Descriptor) footer() string { return d.Title + " Status Monitor" }

func (d Descriptor) palette() Palette {
	if d.Palette.Levels == nil {
		return DefaultPalette
	}
	return d.Palette
}
