package source

import (
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"statuswatch/internal/config"
	"statuswatch/internal/monitor"
)

func keys(es []Entry) []string { return lo.Map(es, func(e Entry, _ int) string { return e.Key }) }

func TestBuiltinsAreUnique(t *testing.T) {
	ks := keys(Builtins)
	assert.Len(t, lo.Uniq(ks), len(ks))
	assert.Len(t, ks, 24)
}

func TestSelectAllByDefault(t *testing.T) {
	es, unknown := Select(config.MonitorConfig{})
	assert.Equal(t, keys(Builtins), keys(es))
	assert.Empty(t, unknown)
}

func TestSelectOnlyDisableAndCustom(t *testing.T) {
	es, unknown := Select(config.MonitorConfig{
		Only:    []string{"github", "sentry", "vrchat", "nosuch"},
		Disable: []string{"vrchat"},
		Services: []config.ServiceConfig{
			{Key: "sentry", Title: "Sentry EU", Kind: "statuspage", URL: "https://status.sentry.test"},
			{Key: "acme", Kind: "json", URL: "https://acme.test/health", IndicatorPath: "ok", Healthy: []string{"true"}},
		},
	})
	assert.Equal(t, []string{"github", "sentry", "acme"}, keys(es))
	assert.Equal(t, "Sentry EU", es[1].Title)
	assert.Equal(t, "https://status.sentry.test/api/v2/status.json", es[1].URL)
	assert.Equal(t, "https://status.sentry.test", es[1].PageURL)
	assert.Equal(t, "acme", es[2].Title)
	assert.Equal(t, []string{"nosuch"}, unknown)
}

func TestDescriptors(t *testing.T) {
	ds, _, err := Descriptors(config.MonitorConfig{Only: []string{"slack", "vrchat", "microsoft", "zoom"}}, testClient())
	require.NoError(t, err)
	require.Len(t, ds, 4)

	byKey := lo.KeyBy(ds, func(d monitor.Descriptor) string { return d.Key })
	assert.IsType(t, &Composite{}, byKey["vrchat"].Source)
	assert.IsType(t, &Flag{}, byKey["microsoft"].Source)
	assert.IsType(t, &Slack{}, byKey["slack"].Source)
	assert.IsType(t, &Statuspage{}, byKey["zoom"].Source)
	assert.Equal(t, monitor.ColorRed, byKey["slack"].Palette.For("active"))
	assert.Equal(t, "Zoom", byKey["zoom"].Title)
}

func TestEntryUnsupportedKind(t *testing.T) {
	_, err := Entry{Key: "x", Kind: "rss"}.Source(testClient())
	assert.Error(t, err)
}

func TestFormatters(t *testing.T) {
	assert.Equal(t, "45,000", FormatPlain(45000))
	assert.Equal(t, "1,234.5", FormatPlain(1234.5))
	assert.Equal(t, "120.5ms", FormatMillis(0.1205))
	assert.Equal(t, "0.5", FormatRatio(0.5))
	assert.Equal(t, "3", FormatCount(2.5))
}
