package storage

import (
	"context"
	"errors"
	"time"

	"statuswatch/internal/transport"
)

var ErrClosed = errors.New("storage closed")

// Config configures storage.
type Config struct {
	Driver      string // "sqlite" (default) | "file"
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means 5s
}

// Store maps each tenant to its notification channel.
type Store interface {
	// SetChannel registers ch for tenant and returns the previous target.
	SetChannel(ctx context.Context, tenant int64, ch transport.ChatTarget) (prev transport.ChatTarget, had bool, err error)
	RemoveChannel(ctx context.Context, tenant int64) (removed bool, err error)
	Channel(ctx context.Context, tenant int64) (transport.ChatTarget, bool, error)
	// Channels returns a fresh copy of the whole map.
	Channels(ctx context.Context) (map[int64]transport.ChatTarget, error)

	AppendAudit(ctx context.Context, e AuditEntry) error
	Close() error
}

// AuditEntry records a channel registry change.
type AuditEntry struct {
	At            time.Time `json:"at"`
	ActorID       int64     `json:"actor_id"`
	ActorUsername string    `json:"actor_username,omitempty"`
	Tenant        int64     `json:"tenant"`
	Action        string    `json:"action"` // set_channel | remove_channel
	ChatID        int64     `json:"chat_id,omitempty"`
	ThreadID      int       `json:"thread_id,omitempty"`
	Source        string    `json:"source"` // chat | cli
}
