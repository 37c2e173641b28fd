package monitor

import (
	"fmt"
	"time"

	"statuswatch/pkg/tgui"
)

const detailMaxRunes = 1500

const (
	liveStartText     = "Monitoring %s status..."
	liveRecoveredText = "%s status is back to normal. Monitoring stopped."
)

func renderAnnounce(d Descriptor, r HealthReading) tgui.Message {
	color := d.palette().For(r.Severity)
	b := tgui.New().Title(color.Emoji(), d.Title+" status update")
	b.KV("Status", severityLabel(r))
	if r.Summary != "" {
		b.KV("Summary", r.Summary)
	}
	if r.Detail != "" {
		b.Section("Details")
		b.Quote(r.Detail, detailMaxRunes)
	}
	writeMetrics(b, r)
	if d.PageURL != "" {
		b.Blank().RawLine(tgui.Link("Status page", d.PageURL))
	}
	return b.Footer(d.footer() + " · " + stamp(r.At)).Build()
}

func renderLive(d Descriptor, r HealthReading) tgui.Message {
	b := tgui.New().Title(ColorBlue.Emoji(), "Current "+d.Title+" status")
	b.Line(r.Summary)
	if r.Detail != "" {
		b.Quote(r.Detail, detailMaxRunes)
	}
	writeMetrics(b, r)
	return b.Footer("Updated " + stamp(r.At)).Build()
}

func renderLiveStart(d Descriptor) tgui.Message {
	return tgui.New().Line(fmt.Sprintf(liveStartText, d.Title)).Build()
}

func renderLiveClosed(d Descriptor) tgui.Message {
	return tgui.New().Title(ColorGreen.Emoji(), fmt.Sprintf(liveRecoveredText, d.Title)).Build()
}

func writeMetrics(b *tgui.Builder, r HealthReading) {
	if len(r.Metrics) == 0 {
		return
	}
	b.Section("Metrics")
	for _, m := range r.Metrics {
		b.KV(m.Name, m.Value)
	}
}

func severityLabel(r HealthReading) string {
	if r.Severity != "" {
		return r.Severity
	}
	return r.Indicator.String()
}

func stamp(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format("2006-01-02 15:04 UTC")
}
