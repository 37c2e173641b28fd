package monitor

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"golang.org/x/time/rate"

	"statuswatch/internal/transport"
	"statuswatch/pkg/tgui"
)

// ChatClient is the subset of transport.Client the sink uses.
type ChatClient interface {
	SendText(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) (transport.MessageRef, error)
	EditText(ctx context.Context, ref transport.MessageRef, text string, opt *transport.SendOptions) error
	ResolveChat(ctx context.Context, chatID int64) (transport.Chat, error)
}

type ChatSinkConfig struct {
	RatePerSec int
	RetryMax   int
	RetryBase  time.Duration
	// CallTimeout bounds one platform call.
	CallTimeout time.Duration
}

// ChatSink renders readings as HTML chat messages. Sends are rate limited
// across all services and retried on transient failures.
type ChatSink struct {
	client  ChatClient
	cfg     ChatSinkConfig
	limiter *rate.Limiter
}

func NewChatSink(client ChatClient, cfg ChatSinkConfig) *ChatSink {
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 20
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = 500 * time.Millisecond
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 10 * time.Second
	}
	return &ChatSink{
		client:  client,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
	}
}

func (s *ChatSink) Announce(ctx context.Context, d Descriptor, to transport.ChatTarget, r HealthReading) error {
	if err := s.resolve(ctx, to); err != nil {
		return err
	}
	_, err := s.send(ctx, to, renderAnnounce(d, r))
	return err
}

func (s *ChatSink) OpenLive(ctx context.Context, d Descriptor, to transport.ChatTarget) (transport.MessageRef, error) {
	if err := s.resolve(ctx, to); err != nil {
		return transport.MessageRef{}, err
	}
	return s.send(ctx, to, renderLiveStart(d))
}

func (s *ChatSink) UpdateLive(ctx context.Context, d Descriptor, ref transport.MessageRef, r HealthReading) error {
	return s.edit(ctx, ref, renderLive(d, r))
}

func (s *ChatSink) CloseLive(ctx context.Context, d Descriptor, ref transport.MessageRef) error {
	return s.edit(ctx, ref, renderLiveClosed(d))
}

func (s *ChatSink) resolve(ctx context.Context, to transport.ChatTarget) error {
	if to.IsZero() {
		return fmt.Errorf("no channel: %w", transport.ErrNotFound)
	}
	return s.retry(ctx, func(c context.Context) error {
		_, err := s.client.ResolveChat(c, to.ChatID)
		return err
	})
}

func (s *ChatSink) send(ctx context.Context, to transport.ChatTarget, m tgui.Message) (transport.MessageRef, error) {
	var ref transport.MessageRef
	err := s.retry(ctx, func(c context.Context) error {
		var err error
		ref, err = m.Send(c, s.client, to)
		return err
	})
	return ref, err
}

func (s *ChatSink) edit(ctx context.Context, ref transport.MessageRef, m tgui.Message) error {
	if ref.IsZero() {
		return fmt.Errorf("no live message: %w", transport.ErrNotFound)
	}
	return s.retry(ctx, func(c context.Context) error { return m.Edit(c, s.client, ref) })
}

// retry runs fn with rate limiting and jittered exponential backoff.
// ErrNotFound is permanent.
func (s *ChatSink) retry(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt <= s.cfg.RetryMax; attempt++ {
		if werr := s.limiter.Wait(ctx); werr != nil {
			if err == nil {
				err = werr
			}
			return err
		}
		cctx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
		err = fn(cctx)
		cancel()
		if err == nil || errors.Is(err, transport.ErrNotFound) || attempt == s.cfg.RetryMax {
			return err
		}

		delay := s.cfg.RetryBase << attempt
		delay += time.Duration(rand.Int63n(int64(delay/2) + 1))
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return err
		case <-t.C:
		}
	}
	return err
}
