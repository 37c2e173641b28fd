package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"statuswatch/internal/monitor"
)

// serve returns a server answering each path with a fixed body and status.
func serve(t *testing.T, routes map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		body, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testClient() *Client { return NewClient("test-agent") }

func TestStatuspage(t *testing.T) {
	srv := serve(t, map[string]string{
		"/ok/api/v2/status.json":    `{"page":{"name":"Acme"},"status":{"indicator":"none","description":"All Systems Operational"}}`,
		"/minor/api/v2/status.json": `{"status":{"indicator":"minor","description":"Partially Degraded Service"}}`,
		"/crit/api/v2/status.json":  `{"status":{"indicator":"critical","description":"Major Outage"}}`,
		"/bad/api/v2/status.json":   `{"status":{}}`,
		"/list/api/v2/status.json":  `[1,2]`,
		"/junk/api/v2/status.json":  `<html>`,
	})
	ctx := context.Background()

	r, err := NewStatuspage(testClient(), srv.URL+"/ok").Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, monitor.Healthy, r.Indicator)
	assert.Equal(t, "All Systems Operational", r.Summary)

	r, err = NewStatuspage(testClient(), srv.URL+"/minor/").Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, monitor.Degraded, r.Indicator)
	assert.Equal(t, "minor", r.Severity)

	r, err = NewStatuspage(testClient(), srv.URL+"/crit/api/v2/status.json").Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, monitor.Degraded, r.Indicator)

	for _, path := range []string{"/bad", "/list", "/junk"} {
		_, err = NewStatuspage(testClient(), srv.URL+path).Fetch(ctx)
		var pe *monitor.ParseError
		assert.True(t, errors.As(err, &pe), path)
	}
}

func TestFetchErrors(t *testing.T) {
	srv := serve(t, nil)
	_, err := NewStatuspage(testClient(), srv.URL).Fetch(context.Background())
	var fe *monitor.FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusNotFound, fe.Status)

	srv.Close()
	_, err = NewStatuspage(testClient(), srv.URL).Fetch(context.Background())
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, 0, fe.Status)
	assert.Equal(t, "fetch", monitor.ErrorKind(err))
}

func TestFlag(t *testing.T) {
	srv := serve(t, map[string]string{
		"/up":   `{"IsAllUp":true,"Services":[]}`,
		"/down": `{"IsAllUp":false,"Services":[{"Name":"Exchange","IsUp":true,"Messages":[]},{"Name":"Teams","IsUp":false,"Messages":[{"Lines":["Users can't join meetings","Investigating"]},{"Lines":["old"]}]},{"Name":"Outlook","IsUp":false,"Messages":[]}]}`,
		"/bare": `{"IsAllUp":false}`,
		"/nope": `{"Services":[]}`,
	})
	ctx := context.Background()

	r, err := NewFlag(testClient(), srv.URL+"/up").Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, monitor.Healthy, r.Indicator)

	r, err = NewFlag(testClient(), srv.URL+"/down").Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, monitor.Degraded, r.Indicator)
	assert.Equal(t, "Teams\nUsers can't join meetings\nInvestigating", r.Detail)

	r, err = NewFlag(testClient(), srv.URL+"/bare").Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Issues reported, no details available", r.Detail)

	_, err = NewFlag(testClient(), srv.URL+"/nope").Fetch(ctx)
	assert.Equal(t, "parse", monitor.ErrorKind(err))
}

func TestSlack(t *testing.T) {
	srv := serve(t, map[string]string{
		"/ok": `{"status":"ok","active_incidents":[]}`,
		"/active": `{"status":"active","active_incidents":[{"title":"Messages delayed","type":"incident",
			"services":["Messaging","Notifications"],"notes":[{"body":"first"},{"body":"we are on it"}]}]}`,
		"/missing": `{"active_incidents":[]}`,
	})
	ctx := context.Background()

	r, err := NewSlack(testClient(), srv.URL+"/ok").Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, monitor.Healthy, r.Indicator)

	r, err = NewSlack(testClient(), srv.URL+"/active").Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, monitor.Degraded, r.Indicator)
	assert.Equal(t, "Active incidents: 1", r.Summary)
	assert.Equal(t, "Messages delayed\nType: incident\nServices: Messaging, Notifications\nLatest: we are on it", r.Detail)
	assert.Equal(t, monitor.ColorRed, SlackPalette.For(r.Severity))

	_, err = NewSlack(testClient(), srv.URL+"/missing").Fetch(ctx)
	assert.Equal(t, "parse", monitor.ErrorKind(err))
}

func TestJSONPath(t *testing.T) {
	srv := serve(t, map[string]string{
		"/s": `{"state":{"code":"DEGRADED","text":"Slow builds"},"events":[{"msg":"queue backlog"},{"msg":""},{"msg":"retrying"}]}`,
		"/h": `{"state":{"code":"ok"}}`,
		"/x": `{"state":null}`,
	})
	ctx := context.Background()

	j := NewJSONPath(testClient(), srv.URL+"/s", "state.code", []string{"OK", "healthy"})
	j.SummaryPath = "state.text"
	j.DetailPath = "events.#.msg"
	r, err := j.Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, monitor.Degraded, r.Indicator)
	assert.Equal(t, "Slow builds", r.Summary)
	assert.Equal(t, "queue backlog\nretrying", r.Detail)

	r, err = NewJSONPath(testClient(), srv.URL+"/h", "state.code", []string{"OK"}).Fetch(ctx)
	require.NoError(t, err)
	assert.Equal(t, monitor.Healthy, r.Indicator)

	_, err = NewJSONPath(testClient(), srv.URL+"/x", "state.code", []string{"ok"}).Fetch(ctx)
	assert.Equal(t, "parse", monitor.ErrorKind(err))
}

func TestCompositeMetrics(t *testing.T) {
	srv := serve(t, map[string]string{
		"/api/v2/status.json": `{"status":{"indicator":"major","description":"API degraded"}}`,
		"/visits.json":        `[{"timestamp":1,"value":1000},{"timestamp":2,"value":45321}]`,
		"/latency.json":       `[{"value":0.123456}]`,
		"/requests.json":      `[{"value":1234567.6}]`,
		"/errors.json":        `[{"value":0.00012345678}]`,
		"/empty.json":         `[]`,
	})
	c := testClient()
	comp := NewComposite(c, NewStatuspage(c, srv.URL),
		MetricFeed{Name: "Online users", URL: srv.URL + "/visits.json", Format: FormatPlain},
		MetricFeed{Name: "API latency", URL: srv.URL + "/latency.json", Format: FormatMillis},
		MetricFeed{Name: "API requests", URL: srv.URL + "/requests.json", Format: FormatCount},
		MetricFeed{Name: "API error rate", URL: srv.URL + "/errors.json", Format: FormatRatio},
		MetricFeed{Name: "Empty", URL: srv.URL + "/empty.json"},
		MetricFeed{Name: "Broken", URL: srv.URL + "/missing.json"},
	)

	r, err := comp.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, monitor.Degraded, r.Indicator)
	assert.Equal(t, []monitor.Metric{
		{Name: "Online users", Value: "45,321"},
		{Name: "API latency", Value: "123.46ms"},
		{Name: "API requests", Value: "1,234,568"},
		{Name: "API error rate", Value: "0.000123"},
		{Name: "Empty", Value: Unavailable},
		{Name: "Broken", Value: Unavailable},
	}, r.Metrics)
}

func TestCompositePrimaryFailureAborts(t *testing.T) {
	srv := serve(t, map[string]string{"/visits.json": `[{"value":1}]`})
	c := testClient()
	comp := NewComposite(c, NewStatuspage(c, srv.URL), MetricFeed{Name: "Online users", URL: srv.URL + "/visits.json"})

	_, err := comp.Fetch(context.Background())
	assert.Equal(t, "fetch", monitor.ErrorKind(err))
}
