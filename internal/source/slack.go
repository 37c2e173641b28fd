package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"statuswatch/internal/monitor"
)

// Slack reads slack-status.com's current status document:
//
//	{"status": "active", "active_incidents": [{"title": "...", "type": "outage",
//	  "services": ["Messaging"], "notes": [{"body": "..."}]}]}
type Slack struct {
	client *Client
	url    string
}

func NewSlack(c *Client, url string) *Slack { return &Slack{client: c, url: url} }

// SlackPalette colors the slack status values.
var SlackPalette = monitor.Palette{
	Levels: map[string]monitor.Color{
		"active":   monitor.ColorRed,
		"broken":   monitor.ColorRed,
		"resolved": monitor.ColorGreen,
		"ok":       monitor.ColorGreen,
	},
	Default: monitor.ColorBlue,
}

func (s *Slack) Fetch(ctx context.Context) (monitor.HealthReading, error) {
	doc, err := s.client.GetJSON(ctx, s.url)
	if err != nil {
		return monitor.HealthReading{}, err
	}
	return s.parse(doc)
}

func (s *Slack) parse(doc gjson.Result) (monitor.HealthReading, error) {
	st := doc.Get("status")
	if st.Type != gjson.String || st.Str == "" {
		return monitor.HealthReading{}, missing(s.url, "status")
	}
	status := strings.ToLower(st.Str)

	r := monitor.HealthReading{Severity: status}
	switch status {
	case "ok", "resolved":
		r.Indicator = monitor.Healthy
		r.Summary = "All systems operational"
		return r, nil
	default:
		r.Indicator = monitor.Degraded
	}

	incidents := doc.Get("active_incidents").Array()
	r.Summary = fmt.Sprintf("Active incidents: %d", len(incidents))
	parts := make([]string, 0, len(incidents))
	for _, inc := range incidents {
		var b strings.Builder
		b.WriteString(inc.Get("title").String())
		fmt.Fprintf(&b, "\nType: %s", inc.Get("type").String())
		var svcs []string
		for _, sv := range inc.Get("services").Array() {
			svcs = append(svcs, sv.String())
		}
		fmt.Fprintf(&b, "\nServices: %s", strings.Join(svcs, ", "))
		if notes := inc.Get("notes").Array(); len(notes) > 0 {
			fmt.Fprintf(&b, "\nLatest: %s", notes[len(notes)-1].Get("body").String())
		}
		parts = append(parts, b.String())
	}
	r.Detail = strings.Join(parts, "\n\n")
	if r.Detail == "" {
		r.Detail = "No active incident details"
	}
	return r, nil
}
