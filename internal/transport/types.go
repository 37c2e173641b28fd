package transport

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a chat cannot be resolved or a message to edit
// no longer exists (deleted externally, bot removed from the chat, ...).
var ErrNotFound = errors.New("transport: not found")

type UpdateKind string

const (
	UpdateMessage UpdateKind = "message"
)

type Update struct {
	Kind    UpdateKind
	Message *Message
}

type Message struct {
	ID           int
	ChatID       int64
	ThreadID     int // telegram forum topic thread id (0 if none)
	FromID       int64
	FromUsername string
	Text         string
	IsGroup      bool
}

type ChatTarget struct {
	ChatID   int64
	ThreadID int
}

func (t ChatTarget) IsZero() bool { return t.ChatID == 0 }

type MessageRef struct {
	ChatID    int64
	ThreadID  int
	MessageID int
}

func (r MessageRef) IsZero() bool { return r.ChatID == 0 && r.MessageID == 0 }

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

// Chat is what a resolved target looks like to the rest of the bot.
type Chat struct {
	ID    int64
	Title string
	Type  string
}

// Client is the chat platform as consumed by the monitor engine and the
// command surface.
type Client interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	// Ready is closed once the client is connected and able to send.
	Ready() <-chan struct{}

	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
	// EditText fails with ErrNotFound if the message was deleted.
	EditText(ctx context.Context, ref MessageRef, text string, opt *SendOptions) error
	// ResolveChat fails with ErrNotFound if the chat is unknown to the bot.
	ResolveChat(ctx context.Context, chatID int64) (Chat, error)
}

// AdminChecker is an optional interface for clients that can tell whether a
// user administers a chat.
type AdminChecker interface {
	IsChatAdmin(ctx context.Context, chatID, userID int64) (bool, error)
}

// BotCommand represents a single bot command menu entry.
type BotCommand struct {
	Command     string
	Description string
}

// CommandMenuUpdater is an optional interface that adapters can implement
// to update platform-specific bot command menus (e.g. Telegram /menu list).
type CommandMenuUpdater interface {
	UpdateMenuCommands(ctx context.Context, cmds []BotCommand) error
}
