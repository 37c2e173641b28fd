package monitor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"statuswatch/internal/transport"
)

type sent struct {
	ChatID int64
	Thread int
	Edit   int
	Text   string
}

type fakeClient struct {
	mu        sync.Mutex
	out       []sent
	missing   map[int64]bool
	sendFails int // fail this many sends with a transient error
	editErr   error
	nextID    int
	// hang blocks every call for these chats until the call's ctx ends.
	hang map[int64]bool
}

func (c *fakeClient) wait(ctx context.Context, chatID int64) error {
	c.mu.Lock()
	h := c.hang[chatID]
	c.mu.Unlock()
	if !h {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

func (c *fakeClient) SendText(ctx context.Context, to transport.ChatTarget, text string, _ *transport.SendOptions) (transport.MessageRef, error) {
	if err := c.wait(ctx, to.ChatID); err != nil {
		return transport.MessageRef{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendFails > 0 {
		c.sendFails--
		return transport.MessageRef{}, errors.New("telegram: Too Many Requests")
	}
	c.nextID++
	c.out = append(c.out, sent{ChatID: to.ChatID, Thread: to.ThreadID, Text: text})
	return transport.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID, MessageID: c.nextID}, nil
}

func (c *fakeClient) EditText(ctx context.Context, ref transport.MessageRef, text string, _ *transport.SendOptions) error {
	if err := c.wait(ctx, ref.ChatID); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.editErr != nil {
		return c.editErr
	}
	c.out = append(c.out, sent{ChatID: ref.ChatID, Edit: ref.MessageID, Text: text})
	return nil
}

func (c *fakeClient) ResolveChat(ctx context.Context, chatID int64) (transport.Chat, error) {
	if err := c.wait(ctx, chatID); err != nil {
		return transport.Chat{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.missing[chatID] {
		return transport.Chat{}, transport.ErrNotFound
	}
	return transport.Chat{ID: chatID, Type: "supergroup"}, nil
}

func testSink(c *fakeClient) *ChatSink {
	return NewChatSink(c, ChatSinkConfig{RatePerSec: 1000, RetryMax: 2, RetryBase: time.Millisecond})
}

func TestChatSinkAnnounceRendersReading(t *testing.T) {
	c := &fakeClient{}
	s := testSink(c)
	d := Descriptor{Key: "vrchat", Title: "VRChat", PageURL: "https://status.vrchat.com"}
	r := HealthReading{
		Indicator: Degraded,
		Severity:  "major",
		Summary:   "Partial <outage>",
		Detail:    "API errors elevated",
		Metrics:   []Metric{{Name: "API latency", Value: "123.45ms"}},
		At:        time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC),
	}

	require.NoError(t, s.Announce(context.Background(), d, transport.ChatTarget{ChatID: -5, ThreadID: 3}, r))

	require.Len(t, c.out, 1)
	got := c.out[0]
	assert.Equal(t, int64(-5), got.ChatID)
	assert.Equal(t, 3, got.Thread)
	assert.Contains(t, got.Text, "🔴 <b>VRChat status update</b>")
	assert.Contains(t, got.Text, "Partial &lt;outage&gt;")
	assert.Contains(t, got.Text, "<b>API latency</b>: 123.45ms")
	assert.Contains(t, got.Text, `<a href="https://status.vrchat.com">`)
	assert.Contains(t, got.Text, "<i>VRChat Status Monitor · 2026-03-01 12:30 UTC</i>")
}

func TestChatSinkRecoveredIsGreen(t *testing.T) {
	c := &fakeClient{}
	s := testSink(c)
	require.NoError(t, s.Announce(context.Background(), testDesc, transport.ChatTarget{ChatID: 1}, healthy()))
	assert.Contains(t, c.out[0].Text, "🟢")
}

func TestChatSinkSkipsUnresolvableChat(t *testing.T) {
	c := &fakeClient{missing: map[int64]bool{-9: true}}
	s := testSink(c)

	err := s.Announce(context.Background(), testDesc, transport.ChatTarget{ChatID: -9}, degraded("x"))
	assert.ErrorIs(t, err, transport.ErrNotFound)
	_, err = s.OpenLive(context.Background(), testDesc, transport.ChatTarget{ChatID: -9})
	assert.ErrorIs(t, err, transport.ErrNotFound)
	assert.Empty(t, c.out)
}

func TestChatSinkRetriesTransientFailures(t *testing.T) {
	c := &fakeClient{sendFails: 2}
	s := testSink(c)

	ref, err := s.OpenLive(context.Background(), testDesc, transport.ChatTarget{ChatID: 4})
	require.NoError(t, err)
	assert.Equal(t, 1, ref.MessageID)
	assert.Contains(t, c.out[0].Text, "Monitoring Acme status...")
}

func TestChatSinkGivesUpAfterRetryMax(t *testing.T) {
	c := &fakeClient{sendFails: 3}
	s := testSink(c)
	_, err := s.OpenLive(context.Background(), testDesc, transport.ChatTarget{ChatID: 4})
	assert.Error(t, err)
	assert.Empty(t, c.out)
}

func TestChatSinkEditNotFoundIsPermanent(t *testing.T) {
	c := &fakeClient{editErr: transport.ErrNotFound}
	s := testSink(c)
	err := s.UpdateLive(context.Background(), testDesc, transport.MessageRef{ChatID: 1, MessageID: 2}, degraded("x"))
	assert.ErrorIs(t, err, transport.ErrNotFound)

	err = s.CloseLive(context.Background(), testDesc, transport.MessageRef{})
	assert.ErrorIs(t, err, transport.ErrNotFound)
}

func TestChatSinkLiveLifecycle(t *testing.T) {
	c := &fakeClient{}
	s := testSink(c)
	ctx := context.Background()

	ref, err := s.OpenLive(ctx, testDesc, transport.ChatTarget{ChatID: 8})
	require.NoError(t, err)
	require.NoError(t, s.UpdateLive(ctx, testDesc, ref, degraded("still down")))
	require.NoError(t, s.CloseLive(ctx, testDesc, ref))

	require.Len(t, c.out, 3)
	assert.Equal(t, ref.MessageID, c.out[1].Edit)
	assert.Contains(t, c.out[1].Text, "Current Acme status")
	assert.Contains(t, c.out[1].Text, "still down")
	assert.Contains(t, c.out[2].Text, "Acme status is back to normal. Monitoring stopped.")
}

func TestHangingTenantDoesNotStarveOthers(t *testing.T) {
	c := &fakeClient{hang: map[int64]bool{-1001: true}}
	s := NewChatSink(c, ChatSinkConfig{
		RatePerSec:  1000,
		RetryMax:    2,
		RetryBase:   time.Millisecond,
		CallTimeout: 20 * time.Millisecond,
	})
	e := NewEngine(testDesc, s, WithNotifyTimeout(50*time.Millisecond))

	// The parent deadline is shorter than the hanging tenant's retries.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	res := e.Apply(ctx, degraded("major outage"), twoTenants())

	assert.Equal(t, TransitionEnter, res.Transition)
	require.Len(t, res.Errors, 2) // announce + open for the hanging tenant
	for _, err := range res.Errors {
		var nerr *NotificationError
		require.ErrorAs(t, err, &nerr)
		assert.Equal(t, int64(1), nerr.Tenant)
	}

	st := e.State()
	assert.True(t, st.Heavy)
	require.Contains(t, st.Live, int64(2))
	assert.NotContains(t, st.Live, int64(1))

	c.mu.Lock()
	defer c.mu.Unlock()
	var announced, edited bool
	for _, m := range c.out {
		require.Equal(t, int64(-1002), m.ChatID)
		if m.Edit != 0 {
			edited = true
		} else if strings.Contains(m.Text, "major outage") {
			announced = true
		}
	}
	assert.True(t, announced)
	assert.True(t, edited)
}
