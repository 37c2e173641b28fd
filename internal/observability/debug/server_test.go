package debug

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"statuswatch/internal/config"
	"statuswatch/pkg/logx"
)

func newRegistry(t *testing.T) *prometheus.Registry {
	t.Helper()
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "statuswatch_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Add(3)
	return reg
}

func get(t *testing.T, h http.Handler, path, auth string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", "Bearer "+auth)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	b, _ := io.ReadAll(rec.Body)
	return rec.Code, string(b)
}

func TestMetricsAndHealth(t *testing.T) {
	s := New(Config{}, newRegistry(t), nil, logx.Nop())
	h := s.Handler()

	code, body := get(t, h, "/metrics", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "statuswatch_test_total 3")

	code, body = get(t, h, "/healthz", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body)

	code, _ = get(t, h, "/debug/pprof/", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestHealthReportsFailure(t *testing.T) {
	s := New(Config{}, newRegistry(t), func() error { return errors.New("store closed") }, logx.Nop())
	code, body := get(t, s.Handler(), "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, body, "store closed")
}

func TestTokenAuth(t *testing.T) {
	s := New(Config{Token: "s3cret", Pprof: true}, newRegistry(t), nil, logx.Nop())
	h := s.Handler()

	code, _ := get(t, h, "/metrics", "")
	assert.Equal(t, http.StatusUnauthorized, code)
	code, _ = get(t, h, "/metrics", "wrong")
	assert.Equal(t, http.StatusUnauthorized, code)
	code, _ = get(t, h, "/metrics", "s3cret")
	assert.Equal(t, http.StatusOK, code)
	code, _ = get(t, h, "/healthz?token=s3cret", "")
	assert.Equal(t, http.StatusOK, code)
	code, _ = get(t, h, "/debug/pprof/", "s3cret")
	assert.Equal(t, http.StatusOK, code)
}

func TestStartRefusesInsecureBind(t *testing.T) {
	s := New(Config{Addr: "0.0.0.0:0"}, newRegistry(t), nil, logx.Nop())
	require.Error(t, s.Start(context.Background()))
}

func TestStartServesAndStops(t *testing.T) {
	s := New(Config{Addr: "127.0.0.1:0"}, newRegistry(t), nil, logx.Nop())
	require.NoError(t, s.Start(context.Background()))

	resp, err := http.Get("http://" + s.Addr() + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.Empty(t, s.Addr())
}

func TestFromConfig(t *testing.T) {
	assert.Equal(t, config.DefaultDebugAddr, FromConfig(nil).Addr)
	c := FromConfig(&config.DebugConfig{Addr: " :9999 ", Token: " t ", Pprof: true})
	assert.Equal(t, Config{Addr: ":9999", Token: "t", Pprof: true}, c)
}
