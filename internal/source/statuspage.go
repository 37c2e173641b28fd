package source

import (
	"context"
	"strings"

	"github.com/tidwall/gjson"

	"statuswatch/internal/monitor"
)

// Statuspage reads an Atlassian Statuspage status.json document:
//
//	{"status": {"indicator": "minor", "description": "Partially Degraded Service"}}
//
// Indicator "none" is healthy, every other value degraded.
type Statuspage struct {
	client *Client
	url    string
}

func NewStatuspage(c *Client, url string) *Statuspage {
	return &Statuspage{client: c, url: StatuspageURL(url)}
}

// StatuspageURL accepts a site root or a full document URL.
func StatuspageURL(u string) string {
	u = strings.TrimSpace(u)
	if strings.HasSuffix(u, ".json") {
		return u
	}
	return strings.TrimRight(u, "/") + "/api/v2/status.json"
}

func (s *Statuspage) Fetch(ctx context.Context) (monitor.HealthReading, error) {
	doc, err := s.client.GetJSON(ctx, s.url)
	if err != nil {
		return monitor.HealthReading{}, err
	}
	return parseStatuspage(s.url, doc)
}

func parseStatuspage(url string, doc gjson.Result) (monitor.HealthReading, error) {
	if !doc.IsObject() {
		return monitor.HealthReading{}, missing(url, "status object")
	}
	ind := doc.Get("status.indicator")
	if ind.Type != gjson.String || ind.Str == "" {
		return monitor.HealthReading{}, missing(url, "status.indicator")
	}
	return monitor.HealthReading{
		Indicator: monitor.ClassifySeverity(ind.Str),
		Severity:  ind.Str,
		Summary:   doc.Get("status.description").String(),
	}, nil
}
