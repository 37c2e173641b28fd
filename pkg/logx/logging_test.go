package logx

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"statuswatch/internal/transport"
)

type recordingSender struct {
	mu   sync.Mutex
	to   []transport.ChatTarget
	msgs []string
}

func (r *recordingSender) SendText(_ context.Context, to transport.ChatTarget, text string, _ *transport.SendOptions) (transport.MessageRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.to = append(r.to, to)
	r.msgs = append(r.msgs, text)
	return transport.MessageRef{ChatID: to.ChatID}, nil
}

func (r *recordingSender) sent() ([]transport.ChatTarget, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]transport.ChatTarget(nil), r.to...), append([]string(nil), r.msgs...)
}

func TestWriterLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf, "info").With(String("comp", "test"))
	log.Debug("hidden")
	log.Info("hello", Int("n", 3), Err(errors.New("boom")), Stack(""))

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"comp":"test"`)
	assert.Contains(t, out, `"n":3`)
	assert.Contains(t, out, "boom")
	assert.Contains(t, out, "logging_test.go:")
	assert.NotContains(t, out, `"stack"`)
}

func TestZeroLoggerIsNoop(t *testing.T) {
	var l Logger
	assert.True(t, l.IsZero())
	assert.NotPanics(t, func() { l.Error("nothing") })
	assert.False(t, Nop().IsZero())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.WarnLevel, parseLevel(" warning ", zerolog.InfoLevel))
	assert.Equal(t, zerolog.DebugLevel, parseLevel("debug", zerolog.InfoLevel))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("loud", zerolog.InfoLevel))
}

func TestFormatChatRecord(t *testing.T) {
	got := formatChatRecord([]byte(`{"level":"warn","time":"x","message":"poll cycle failed","service":"github","kind":"fetch"}`))
	assert.Equal(t, "[WARN] poll cycle failed\n- kind=fetch\n- service=github", got)

	assert.Equal(t, "not json", formatChatRecord([]byte("not json\n")))
	assert.Len(t, truncate(strings.Repeat("a", 5000), 3500), 3500)
}

func TestServiceForwardsWarningsToChat(t *testing.T) {
	sender := &recordingSender{}
	path := filepath.Join(t.TempDir(), "app.log")
	svc, log := New(Config{
		Level: "debug",
		File:  FileConfig{Enabled: true, Path: path},
		Chat:  ChatConfig{Enabled: true, MinLevel: "warn", RatePerSec: 10},
	}, sender)
	svc.SetChatTarget(-500, 7)

	log.Info("routine")
	log.Warn("disk low", String("path", "/var"))

	require.Eventually(t, func() bool {
		_, msgs := sender.sent()
		return len(msgs) == 1
	}, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, svc.Close())

	to, msgs := sender.sent()
	assert.Equal(t, transport.ChatTarget{ChatID: -500, ThreadID: 7}, to[0])
	assert.True(t, strings.HasPrefix(msgs[0], "[WARN] disk low"))
	assert.Contains(t, msgs[0], "- path=/var")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "routine")
	assert.Contains(t, string(data), "disk low")
}

func TestServiceApplyChangesLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	svc, log := New(Config{Level: "error", File: FileConfig{Enabled: true, Path: path}}, nil)
	defer svc.Close()

	log.Info("before")
	assert.False(t, log.Enabled(LevelInfo))
	svc.Apply(Config{Level: "info", File: FileConfig{Enabled: true, Path: path}})
	assert.True(t, log.Enabled(LevelInfo))
	log.Info("after")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "before")
	assert.Contains(t, string(data), "after")
}
