package source

import (
	"context"
	"strings"

	"github.com/tidwall/gjson"

	"statuswatch/internal/monitor"
)

// Flag reads a single boolean "all up" flag plus a per-service breakdown,
// the shape of Microsoft's service status index:
//
//	{"IsAllUp": false, "Services": [{"Name": "Teams", "IsUp": false,
//	  "Messages": [{"Lines": ["Users can't join meetings"]}]}]}
type Flag struct {
	client *Client
	url    string

	FlagPath     string // "IsAllUp"
	ServicesPath string // "Services"
	NameField    string // "Name"
	UpField      string // "IsUp"
	LinesPath    string // "Messages.0.Lines"
}

func NewFlag(c *Client, url string) *Flag {
	return &Flag{
		client:       c,
		url:          url,
		FlagPath:     "IsAllUp",
		ServicesPath: "Services",
		NameField:    "Name",
		UpField:      "IsUp",
		LinesPath:    "Messages.0.Lines",
	}
}

func (f *Flag) Fetch(ctx context.Context) (monitor.HealthReading, error) {
	doc, err := f.client.GetJSON(ctx, f.url)
	if err != nil {
		return monitor.HealthReading{}, err
	}
	return f.parse(doc)
}

func (f *Flag) parse(doc gjson.Result) (monitor.HealthReading, error) {
	up := doc.Get(f.FlagPath)
	if !up.IsBool() {
		return monitor.HealthReading{}, missing(f.url, f.FlagPath)
	}
	if up.Bool() {
		return monitor.HealthReading{
			Indicator: monitor.Healthy,
			Severity:  "none",
			Summary:   "All services are running normally",
		}, nil
	}

	var incidents []string
	doc.Get(f.ServicesPath).ForEach(func(_, svc gjson.Result) bool {
		if svc.Get(f.UpField).Bool() {
			return true
		}
		lines := svc.Get(f.LinesPath)
		if !lines.IsArray() || len(lines.Array()) == 0 {
			return true
		}
		var b strings.Builder
		b.WriteString(svc.Get(f.NameField).String())
		for _, l := range lines.Array() {
			b.WriteString("\n")
			b.WriteString(l.String())
		}
		incidents = append(incidents, b.String())
		return true
	})

	detail := strings.Join(incidents, "\n\n")
	if detail == "" {
		detail = "Issues reported, no details available"
	}
	return monitor.HealthReading{
		Indicator: monitor.Degraded,
		Severity:  "major",
		Summary:   "Service issues reported",
		Detail:    detail,
	}, nil
}
