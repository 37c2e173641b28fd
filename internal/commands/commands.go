// Package commands is the chat command surface: tenants register the chat
// that receives their status notifications.
package commands

import (
	"context"
	"runtime"
	"runtime/debug"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"statuswatch/internal/monitor"
	rtsup "statuswatch/internal/runtime/supervisor"
	"statuswatch/internal/storage"
	"statuswatch/internal/transport"
	"statuswatch/pkg/logx"
)

type Access int

const (
	AccessEveryone Access = iota
	// AccessAdmin allows chat administrators and configured owners.
	AccessAdmin
)

type Command struct {
	Name        string
	Aliases     []string
	Description string
	Usage       string
	Access      Access
	Timeout     time.Duration
	Handle      HandlerFunc
}

type Request struct {
	Message *transport.Message
	Chat    transport.ChatTarget
	// Tenant is the chat the command was issued in.
	Tenant  int64
	FromID  int64
	Command string
	Args    []string
	ReqID   string
	Logger  logx.Logger
}

// StatusSource lists the running monitors.
type StatusSource interface {
	Status() []monitor.Status
}

type Manager struct {
	client transport.Client
	store  storage.Store
	status StatusSource
	log    logx.Logger

	mu     sync.RWMutex
	owners []int64

	cmds  map[string]*Command
	order []*Command

	jobs chan func()
	now  func() time.Time
}

type Option func(*Manager)

func WithLogger(log logx.Logger) Option { return func(m *Manager) { m.log = log } }
func WithOwners(ids []int64) Option     { return func(m *Manager) { m.owners = append([]int64(nil), ids...) } }

func NewManager(client transport.Client, store storage.Store, status StatusSource, opts ...Option) *Manager {
	m := &Manager{
		client: client,
		store:  store,
		status: status,
		log:    logx.Nop(),
		cmds:   map[string]*Command{},
		jobs:   make(chan func(), 256),
		now:    time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	for _, c := range m.builtins() {
		m.register(c)
	}
	return m
}

func (m *Manager) register(c Command) {
	cc := c
	m.order = append(m.order, &cc)
	m.cmds[cc.Name] = &cc
	for _, a := range cc.Aliases {
		if _, exists := m.cmds[a]; !exists {
			m.cmds[a] = &cc
		}
	}
}

// SetOwners replaces the owner list. Safe during hot reload.
func (m *Manager) SetOwners(ids []int64) {
	cp := append([]int64(nil), ids...)
	m.mu.Lock()
	m.owners = cp
	m.mu.Unlock()
}

func (m *Manager) isOwner(id int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, o := range m.owners {
		if o == id {
			return true
		}
	}
	return false
}

// Menu returns the command list for the platform menu, sorted by name.
func (m *Manager) Menu() []transport.BotCommand {
	out := make([]transport.BotCommand, 0, len(m.order))
	for _, c := range m.order {
		out = append(out, transport.BotCommand{Command: c.Name, Description: c.Description})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Command < out[j].Command })
	return out
}

// DispatchLoop reads updates and runs matching commands on a bounded
// worker pool until ctx is canceled or updates is closed.
func (m *Manager) DispatchLoop(ctx context.Context, updates <-chan transport.Update) error {
	workers := max(2, runtime.NumCPU())
	sup := rtsup.New(ctx,
		rtsup.WithLogger(m.log),
		rtsup.WithCancelOnError(false),
	)

	if up, ok := m.client.(transport.CommandMenuUpdater); ok {
		sup.Go0("menu.update", func(c context.Context) {
			cctx, cancel := context.WithTimeout(c, 5*time.Second)
			defer cancel()
			if err := up.UpdateMenuCommands(cctx, m.Menu()); err != nil {
				m.log.Warn("menu update failed", logx.Err(err))
			}
		})
	}

	for i := range workers {
		sup.GoRestart("command.worker."+strconv.Itoa(i), func(c context.Context) error {
			for {
				select {
				case <-c.Done():
					return nil
				case job := <-m.jobs:
					func() {
						defer func() {
							if r := recover(); r != nil {
								m.log.Error("panic in command job", logx.Any("panic", r), logx.Stack(string(debug.Stack())))
							}
						}()
						job()
					}()
				}
			}
		}, rtsup.WithRestartBackoff(200*time.Millisecond, 5*time.Second))
	}
	m.log.Info("command dispatcher started", logx.Int("workers", workers))

	defer func() {
		wctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		_ = sup.Stop(wctx)
		cancel()
		m.log.Info("command dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			h, req := m.route(up)
			if h == nil {
				continue
			}
			select {
			case m.jobs <- func() { _ = h(ctx, req) }:
			default:
				m.reply(ctx, req, "Busy, try again in a moment.")
			}
		}
	}
}

// Handle runs the command in up synchronously.
func (m *Manager) Handle(ctx context.Context, up transport.Update) error {
	h, req := m.route(up)
	if h == nil {
		return nil
	}
	return h(ctx, req)
}

func (m *Manager) route(up transport.Update) (HandlerFunc, *Request) {
	if up.Kind != transport.UpdateMessage || up.Message == nil {
		return nil, nil
	}
	msg := up.Message
	text := strings.TrimSpace(msg.Text)
	if !strings.HasPrefix(text, "/") {
		return nil, nil
	}
	parts := strings.Fields(text)
	word := strings.ToLower(strings.TrimPrefix(parts[0], "/"))
	if i := strings.IndexByte(word, '@'); i >= 0 {
		word = word[:i]
	}
	cmd, ok := m.cmds[word]
	if !ok {
		return nil, nil
	}

	rid := uuid.NewString()[:8]
	req := &Request{
		Message: msg,
		Chat:    transport.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID},
		Tenant:  msg.ChatID,
		FromID:  msg.FromID,
		Command: cmd.Name,
		Args:    parts[1:],
		ReqID:   rid,
		Logger: m.log.With(
			logx.String("rid", rid),
			logx.Int64("chat_id", msg.ChatID),
			logx.Int("thread_id", msg.ThreadID),
			logx.Int64("from_id", msg.FromID),
			logx.String("cmd", cmd.Name),
		),
	}

	h := cmd.Handle
	if cmd.Access == AccessAdmin {
		h = m.requireAdmin(h)
	}
	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return Chain(h, MWPanicRecover(), MWRequestLog(), MWTimeout(timeout)), req
}

func (m *Manager) requireAdmin(next HandlerFunc) HandlerFunc {
	return func(ctx context.Context, req *Request) error {
		ok, err := m.isAdmin(ctx, req.Tenant, req.FromID)
		if err != nil {
			req.Logger.Warn("admin check failed", logx.Err(err))
		}
		if !ok {
			m.reply(ctx, req, "You need to be an administrator of this chat to run this command.")
			return nil
		}
		return next(ctx, req)
	}
}

// isAdmin reports whether userID may manage chatID. Owners always may.
func (m *Manager) isAdmin(ctx context.Context, chatID, userID int64) (bool, error) {
	if m.isOwner(userID) {
		return true, nil
	}
	ac, ok := m.client.(transport.AdminChecker)
	if !ok {
		return false, nil
	}
	return ac.IsChatAdmin(ctx, chatID, userID)
}

func (m *Manager) reply(ctx context.Context, req *Request, text string) {
	if _, err := m.client.SendText(ctx, req.Chat, text, &transport.SendOptions{DisablePreview: true}); err != nil {
		req.Logger.Warn("reply failed", logx.Err(err))
	}
}
