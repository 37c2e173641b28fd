package source

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"statuswatch/internal/config"
	"statuswatch/internal/monitor"
)

const (
	KindStatuspage = "statuspage"
	KindFlag       = "flag"
	KindSlack      = "slack"
	KindJSON       = "json"
	KindVRChat     = "vrchat"
)

// Entry is the static definition of a monitored service.
type Entry struct {
	Key     string
	Title   string
	Kind    string
	URL     string
	PageURL string

	// json kind only.
	IndicatorPath string
	Healthy       []string
	SummaryPath   string
	DetailPath    string
}

func statuspage(key, title, site string) Entry {
	return Entry{Key: key, Title: title, Kind: KindStatuspage, URL: StatuspageURL(site), PageURL: site}
}

// Builtins is the default service catalog.
var Builtins = []Entry{
	{Key: "vrchat", Title: "VRChat", Kind: KindVRChat, URL: "https://status.vrchat.com/api/v2/status.json", PageURL: "https://status.vrchat.com"},
	{Key: "microsoft", Title: "Microsoft", Kind: KindFlag, URL: "https://admin.microsoft.com/api/servicestatus/index", PageURL: "https://status.cloud.microsoft"},
	{Key: "slack", Title: "Slack", Kind: KindSlack, URL: "https://slack-status.com/api/v2.0.0/current", PageURL: "https://slack-status.com"},
	statuspage("sentry", "Sentry", "https://status.sentry.io"),
	statuspage("openai", "OpenAI", "https://status.openai.com"),
	statuspage("discord", "Discord", "https://discordstatus.com"),
	statuspage("newrelic", "New Relic", "https://status.newrelic.com"),
	statuspage("datadog", "Datadog", "https://status.datadoghq.com"),
	statuspage("vercel", "Vercel", "https://www.vercel-status.com"),
	statuspage("glitch", "Glitch", "https://status.glitch.com"),
	statuspage("epic", "Epic Games", "https://status.epicgames.com"),
	statuspage("github", "GitHub", "https://www.githubstatus.com"),
	statuspage("akamai", "Akamai", "https://www.akamaistatus.com"),
	statuspage("onesignal", "OneSignal", "https://status.onesignal.com"),
	statuspage("npm", "npm", "https://status.npmjs.org"),
	statuspage("rubygems", "RubyGems", "https://status.rubygems.org"),
	statuspage("bitbucket", "Bitbucket", "https://bitbucket.status.atlassian.com"),
	statuspage("circleci", "CircleCI", "https://status.circleci.com"),
	statuspage("travisci", "Travis CI", "https://www.traviscistatus.com"),
	statuspage("codecov", "Codecov", "https://status.codecov.io"),
	statuspage("cypress", "Cypress", "https://www.cypressstatus.com"),
	statuspage("airbrake", "Airbrake", "https://status.airbrake.io"),
	statuspage("zoom", "Zoom", "https://status.zoom.us"),
	statuspage("figma", "Figma", "https://status.figma.com"),
}

// vrchatFeeds are the public time-series behind the VRChat status page.
var vrchatFeeds = []MetricFeed{
	{Name: "Online users", URL: "https://d31qqo63tn8lj0.cloudfront.net/visits.json", Format: FormatPlain},
	{Name: "API latency", URL: "https://d31qqo63tn8lj0.cloudfront.net/apilatency.json", Format: FormatMillis},
	{Name: "API requests", URL: "https://d31qqo63tn8lj0.cloudfront.net/apirequests.json", Format: FormatCount},
	{Name: "API error rate", URL: "https://d31qqo63tn8lj0.cloudfront.net/apierrors.json", Format: FormatRatio},
}

// Select applies only/disable to the built-ins and merges custom services;
// a custom service replaces a built-in with the same key. unknown lists
// only/disable keys that matched nothing.
func Select(cfg config.MonitorConfig) (entries []Entry, unknown []string) {
	custom := lo.Map(cfg.Services, func(s config.ServiceConfig, _ int) Entry {
		title := strings.TrimSpace(s.Title)
		if title == "" {
			title = s.Key
		}
		e := Entry{
			Key:           strings.TrimSpace(s.Key),
			Title:         title,
			Kind:          s.Kind,
			URL:           strings.TrimSpace(s.URL),
			IndicatorPath: s.IndicatorPath,
			Healthy:       s.Healthy,
			SummaryPath:   s.SummaryPath,
			DetailPath:    s.DetailPath,
		}
		if e.Kind == KindStatuspage {
			e.PageURL = strings.TrimSuffix(e.URL, "/api/v2/status.json")
			e.URL = StatuspageURL(e.URL)
		}
		return e
	})
	customKeys := lo.Map(custom, func(e Entry, _ int) string { return e.Key })
	builtinKeys := lo.Map(Builtins, func(e Entry, _ int) string { return e.Key })
	known := append(append([]string{}, builtinKeys...), customKeys...)

	builtins := lo.Filter(Builtins, func(e Entry, _ int) bool {
		return (len(cfg.Only) == 0 || lo.Contains(cfg.Only, e.Key)) && !lo.Contains(customKeys, e.Key)
	})
	entries = append(builtins, custom...)
	entries = lo.Reject(entries, func(e Entry, _ int) bool { return lo.Contains(cfg.Disable, e.Key) })

	unknown = lo.Uniq(lo.Without(append(append([]string{}, cfg.Only...), cfg.Disable...), known...))
	return entries, unknown
}

// Source builds the adapter for e.
func (e Entry) Source(c *Client) (monitor.Source, error) {
	switch e.Kind {
	case KindStatuspage:
		return NewStatuspage(c, e.URL), nil
	case KindFlag:
		return NewFlag(c, e.URL), nil
	case KindSlack:
		return NewSlack(c, e.URL), nil
	case KindJSON:
		j := NewJSONPath(c, e.URL, e.IndicatorPath, e.Healthy)
		j.SummaryPath = e.SummaryPath
		j.DetailPath = e.DetailPath
		return j, nil
	case KindVRChat:
		return NewComposite(c, NewStatuspage(c, e.URL), vrchatFeeds...), nil
	default:
		return nil, fmt.Errorf("service %s: unsupported kind %q", e.Key, e.Kind)
	}
}

func (e Entry) Descriptor(c *Client) (monitor.Descriptor, error) {
	src, err := e.Source(c)
	if err != nil {
		return monitor.Descriptor{}, err
	}
	d := monitor.Descriptor{Key: e.Key, Title: e.Title, PageURL: e.PageURL, Source: src}
	if e.Kind == KindSlack {
		d.Palette = SlackPalette
	}
	return d, nil
}

// Descriptors resolves the selected catalog for cfg.
func Descriptors(cfg config.MonitorConfig, c *Client) ([]monitor.Descriptor, []string, error) {
	entries, unknown := Select(cfg)
	out := make([]monitor.Descriptor, 0, len(entries))
	for _, e := range entries {
		d, err := e.Descriptor(c)
		if err != nil {
			return nil, nil, err
		}
		out = append(out, d)
	}
	return out, unknown, nil
}
