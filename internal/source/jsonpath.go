package source

import (
	"context"
	"strings"

	"github.com/samber/lo"
	"github.com/tidwall/gjson"

	"statuswatch/internal/monitor"
)

// JSONPath is a configurable adapter for arbitrary JSON documents. The value
// at IndicatorPath is compared (case-insensitively) with Healthy; a match is
// healthy, any other value degraded, a missing value a parse error.
type JSONPath struct {
	client *Client
	url    string

	IndicatorPath string
	Healthy       []string
	SummaryPath   string
	DetailPath    string
}

func NewJSONPath(c *Client, url, indicatorPath string, healthy []string) *JSONPath {
	return &JSONPath{
		client:        c,
		url:           url,
		IndicatorPath: indicatorPath,
		Healthy:       lo.Map(healthy, func(s string, _ int) string { return strings.ToLower(strings.TrimSpace(s)) }),
	}
}

func (j *JSONPath) Fetch(ctx context.Context) (monitor.HealthReading, error) {
	doc, err := j.client.GetJSON(ctx, j.url)
	if err != nil {
		return monitor.HealthReading{}, err
	}
	return j.parse(doc)
}

func (j *JSONPath) parse(doc gjson.Result) (monitor.HealthReading, error) {
	v := doc.Get(j.IndicatorPath)
	if !v.Exists() || v.Type == gjson.Null {
		return monitor.HealthReading{}, missing(j.url, j.IndicatorPath)
	}
	sev := v.String()

	r := monitor.HealthReading{Indicator: monitor.Degraded, Severity: sev, Summary: sev}
	if lo.Contains(j.Healthy, strings.ToLower(strings.TrimSpace(sev))) {
		r.Indicator = monitor.Healthy
	}
	if j.SummaryPath != "" {
		if s := doc.Get(j.SummaryPath); s.Exists() {
			r.Summary = s.String()
		}
	}
	if j.DetailPath != "" {
		r.Detail = joinResult(doc.Get(j.DetailPath))
	}
	return r, nil
}

// joinResult flattens arrays into one line per element.
func joinResult(v gjson.Result) string {
	if !v.IsArray() {
		return v.String()
	}
	parts := lo.FilterMap(v.Array(), func(x gjson.Result, _ int) (string, bool) {
		s := strings.TrimSpace(x.String())
		return s, s != ""
	})
	return strings.Join(parts, "\n")
}
