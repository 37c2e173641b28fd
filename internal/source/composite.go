package source

import (
	"context"
	"math"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/tidwall/gjson"

	"statuswatch/internal/monitor"
)

// Unavailable is shown for a metric whose feed failed.
const Unavailable = "n/a"

// MetricFeed is a time-series document: a JSON array whose last element
// carries the current "value".
type MetricFeed struct {
	Name   string
	URL    string
	Format func(v float64) string
}

// Composite merges a primary status source with auxiliary metric feeds.
// The primary failing aborts the reading; a failing feed only marks its
// metric unavailable.
type Composite struct {
	client  *Client
	primary monitor.Source
	feeds   []MetricFeed
}

func NewComposite(c *Client, primary monitor.Source, feeds ...MetricFeed) *Composite {
	return &Composite{client: c, primary: primary, feeds: feeds}
}

func (c *Composite) Fetch(ctx context.Context) (monitor.HealthReading, error) {
	r, err := c.primary.Fetch(ctx)
	if err != nil {
		return monitor.HealthReading{}, err
	}
	for _, f := range c.feeds {
		r.Metrics = append(r.Metrics, monitor.Metric{Name: f.Name, Value: c.metric(ctx, f)})
	}
	return r, nil
}

func (c *Composite) metric(ctx context.Context, f MetricFeed) string {
	doc, err := c.client.GetJSON(ctx, f.URL)
	if err != nil || !doc.IsArray() {
		return Unavailable
	}
	items := doc.Array()
	if len(items) == 0 {
		return Unavailable
	}
	v := items[len(items)-1].Get("value")
	if !v.Exists() || v.Type == gjson.Null {
		return Unavailable
	}
	format := f.Format
	if format == nil {
		format = FormatPlain
	}
	return format(v.Float())
}

// FormatPlain prints v with thousands separators, without a fraction when v
// is integral.
func FormatPlain(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return humanize.Comma(int64(v))
	}
	return humanize.CommafWithDigits(v, 2)
}

// FormatCount rounds v and prints it with thousands separators.
func FormatCount(v float64) string { return humanize.Comma(int64(math.Round(v))) }

// FormatMillis converts seconds to milliseconds, two decimals at most.
func FormatMillis(v float64) string { return trimFloat(math.Round(v*1000*100)/100) + "ms" }

// FormatRatio prints v rounded to six decimals.
func FormatRatio(v float64) string { return trimFloat(math.Round(v*1e6) / 1e6) }

func trimFloat(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
