package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"statuswatch/internal/monitor"
	"statuswatch/internal/storage"
	"statuswatch/internal/transport"
	"statuswatch/pkg/logx"
	"statuswatch/pkg/tgui"
)

func (m *Manager) builtins() []Command {
	return []Command{
		{
			Name:        "set_channel",
			Aliases:     []string{"setchannel"},
			Description: "set the chat that receives status notifications",
			Usage:       "/set_channel [chat_id] [thread_id]",
			Access:      AccessAdmin,
			Handle:      m.setChannel,
		},
		{
			Name:        "check",
			Description: "show the current notification chat",
			Usage:       "/check",
			Handle:      m.check,
		},
		{
			Name:        "remove_channel",
			Aliases:     []string{"removechannel"},
			Description: "stop status notifications for this chat",
			Usage:       "/remove_channel",
			Access:      AccessAdmin,
			Handle:      m.removeChannel,
		},
		{
			Name:        "status",
			Description: "list monitored services",
			Usage:       "/status",
			Handle:      m.statusCmd,
		},
		{
			Name:        "help",
			Aliases:     []string{"start"},
			Description: "show available commands",
			Usage:       "/help",
			Handle:      m.help,
		},
	}
}

// parseTarget reads "[chat_id] [thread_id]"; no args means the current
// chat and thread.
func parseTarget(req *Request) (transport.ChatTarget, error) {
	if len(req.Args) == 0 {
		return req.Chat, nil
	}
	id, err := strconv.ParseInt(req.Args[0], 10, 64)
	if err != nil || id == 0 {
		return transport.ChatTarget{}, fmt.Errorf("invalid chat id %q", req.Args[0])
	}
	t := transport.ChatTarget{ChatID: id}
	if len(req.Args) > 1 {
		th, err := strconv.Atoi(req.Args[1])
		if err != nil || th < 0 {
			return transport.ChatTarget{}, fmt.Errorf("invalid thread id %q", req.Args[1])
		}
		t.ThreadID = th
	}
	return t, nil
}

func (m *Manager) setChannel(ctx context.Context, req *Request) error {
	target, err := parseTarget(req)
	if err != nil {
		m.reply(ctx, req, "Usage: /set_channel [chat_id] [thread_id]\n"+err.Error())
		return nil
	}

	// Pointing notifications at another chat needs admin rights there too.
	if target.ChatID != req.Tenant {
		ok, err := m.isAdmin(ctx, target.ChatID, req.FromID)
		if err != nil && !errors.Is(err, transport.ErrNotFound) {
			req.Logger.Warn("admin check on target failed", logx.Err(err))
		}
		if !ok {
			m.reply(ctx, req, "You need to be an administrator of the target chat as well.")
			return nil
		}
	}

	chat, err := m.client.ResolveChat(ctx, target.ChatID)
	if err != nil {
		if errors.Is(err, transport.ErrNotFound) {
			m.reply(ctx, req, "I cannot reach that chat. Add me to it first.")
			return nil
		}
		return fmt.Errorf("resolve chat: %w", err)
	}

	prev, had, err := m.store.SetChannel(ctx, req.Tenant, target)
	if err != nil {
		m.reply(ctx, req, "Could not save the notification chat, please try again.")
		return fmt.Errorf("set channel: %w", err)
	}
	m.audit(ctx, req, "set_channel", target)

	b := tgui.New().Title("✅", "Notification chat set")
	b.KV("Chat", describeTarget(target, chat.Title))
	if had && prev != target {
		b.KV("Previous", describeTarget(prev, ""))
	}
	_, err = b.Build().Send(ctx, m.client, req.Chat)
	return err
}

func (m *Manager) check(ctx context.Context, req *Request) error {
	t, ok, err := m.store.Channel(ctx, req.Tenant)
	if err != nil {
		return fmt.Errorf("load channel: %w", err)
	}
	if !ok {
		m.reply(ctx, req, "No notification chat is set. Use /set_channel.")
		return nil
	}
	_, err = tgui.New().
		Title("🔔", "Notification chat").
		KV("Chat", describeTarget(t, "")).
		Build().
		Send(ctx, m.client, req.Chat)
	return err
}

func (m *Manager) removeChannel(ctx context.Context, req *Request) error {
	removed, err := m.store.RemoveChannel(ctx, req.Tenant)
	if err != nil {
		m.reply(ctx, req, "Could not remove the notification chat, please try again.")
		return fmt.Errorf("remove channel: %w", err)
	}
	if !removed {
		m.reply(ctx, req, "No notification chat is set.")
		return nil
	}
	m.audit(ctx, req, "remove_channel", transport.ChatTarget{})
	m.reply(ctx, req, "Notification chat removed.")
	return nil
}

func (m *Manager) statusCmd(ctx context.Context, req *Request) error {
	b := tgui.New().Title("📡", "Monitored services")
	var list []monitor.Status
	if m.status != nil {
		list = m.status.Status()
	}
	if len(list) == 0 {
		b.Line("No services are monitored.")
	}
	heavy := 0
	for _, st := range list {
		marker, state := "🟢", "calm"
		if st.Heavy {
			marker, state = "🔴", "heavy"
			heavy++
		}
		line := fmt.Sprintf("%s %s: %s", marker, st.Title, state)
		if st.Heavy {
			line += fmt.Sprintf(", %d live", st.Live)
		}
		if !st.Last.Started.IsZero() {
			line += fmt.Sprintf(", last %s %s", st.Last.Outcome, humanize.RelTime(st.Last.Started, m.now(), "ago", "from now"))
		}
		b.Line(line)
	}
	if len(list) > 0 {
		b.Footer(fmt.Sprintf("%d services, %d with active incidents", len(list), heavy))
	}
	_, err := b.Build().Send(ctx, m.client, req.Chat)
	return err
}

func (m *Manager) help(ctx context.Context, req *Request) error {
	b := tgui.New().Title("📚", "Commands")
	for _, c := range m.order {
		line := tgui.Code(c.Usage).String()
		if c.Description != "" {
			line += " " + tgui.Esc(c.Description).String()
		}
		if c.Access == AccessAdmin {
			line += " " + tgui.I("(admin)").String()
		}
		b.RawLine(tgui.H(line))
	}
	_, err := b.Build().Send(ctx, m.client, req.Chat)
	return err
}

func (m *Manager) audit(ctx context.Context, req *Request, action string, t transport.ChatTarget) {
	e := storage.AuditEntry{
		At:       m.now().UTC(),
		ActorID:  req.FromID,
		Tenant:   req.Tenant,
		Action:   action,
		ChatID:   t.ChatID,
		ThreadID: t.ThreadID,
		Source:   "chat",
	}
	if req.Message != nil {
		e.ActorUsername = req.Message.FromUsername
	}
	if err := m.store.AppendAudit(ctx, e); err != nil {
		req.Logger.Warn("audit append failed", logx.Err(err))
	}
}

func describeTarget(t transport.ChatTarget, title string) string {
	var sb strings.Builder
	if title != "" {
		sb.WriteString(title)
		sb.WriteString(" (")
		sb.WriteString(strconv.FormatInt(t.ChatID, 10))
		sb.WriteString(")")
	} else {
		sb.WriteString(strconv.FormatInt(t.ChatID, 10))
	}
	if t.ThreadID != 0 {
		sb.WriteString(" thread ")
		sb.WriteString(strconv.Itoa(t.ThreadID))
	}
	return sb.String()
}
