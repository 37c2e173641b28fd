package tgui

import (
	"context"
	"strings"

	"statuswatch/internal/transport"
)

// Sender is the subset of transport.Client Message.Send needs.
type Sender interface {
	SendText(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) (transport.MessageRef, error)
}

// Message is a rendered UI payload: text + send options.
type Message struct {
	Text string
	Opt  *transport.SendOptions
}

func (m Message) Send(ctx context.Context, s Sender, to transport.ChatTarget) (transport.MessageRef, error) {
	return s.SendText(ctx, to, m.Text, m.options())
}

// Editor is the subset of transport.Client Message.Edit needs.
type Editor interface {
	EditText(ctx context.Context, ref transport.MessageRef, text string, opt *transport.SendOptions) error
}

// Edit replaces the text of a previously sent message in place.
func (m Message) Edit(ctx context.Context, e Editor, ref transport.MessageRef) error {
	return e.EditText(ctx, ref, m.Text, m.options())
}

func (m Message) options() *transport.SendOptions {
	if m.Opt == nil {
		return &transport.SendOptions{}
	}
	return m.Opt
}

// Builder assembles an HTML message line by line.
// Default: ParseMode=HTML, DisablePreview=true.
type Builder struct {
	lines []string
}

func New() *Builder {
	return &Builder{}
}

// Title adds a bold title line. Emoji is optional.
func (b *Builder) Title(emoji, title string) *Builder {
	e := strings.TrimSpace(emoji)
	t := strings.TrimSpace(title)
	if t == "" {
		return b
	}
	if e != "" {
		b.lines = append(b.lines, Esc(e).String()+" "+B(t).String())
	} else {
		b.lines = append(b.lines, B(t).String())
	}
	return b
}

func (b *Builder) Section(title string) *Builder {
	if t := strings.TrimSpace(title); t != "" {
		b.lines = append(b.lines, B(t).String())
	}
	return b
}

// Line adds a single escaped line. An empty s adds a blank line.
func (b *Builder) Line(s string) *Builder {
	if strings.TrimSpace(s) == "" {
		b.lines = append(b.lines, "")
		return b
	}
	b.lines = append(b.lines, Esc(s).String())
	return b
}

// RawLine appends a line without escaping.
func (b *Builder) RawLine(h H) *Builder {
	b.lines = append(b.lines, h.String())
	return b
}

func (b *Builder) Blank() *Builder { return b.Line("") }

// KV adds a "• key: value" row; empty values render the key alone.
func (b *Builder) KV(key, value string) *Builder {
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)
	if key == "" {
		return b
	}
	if value == "" {
		b.lines = append(b.lines, "• "+B(key).String())
		return b
	}
	b.lines = append(b.lines, "• "+B(key).String()+": "+Esc(value).String())
	return b
}

// Quote adds a blockquote, truncated to maxRunes when maxRunes > 0.
func (b *Builder) Quote(s string, maxRunes int) *Builder {
	s = strings.TrimSpace(s)
	if s == "" {
		return b
	}
	if maxRunes > 0 {
		s = TruncRunes(s, maxRunes)
	}
	b.lines = append(b.lines, Quote(s).String())
	return b
}

// Footer adds an italic trailing line preceded by a blank line.
func (b *Builder) Footer(s string) *Builder {
	if s = strings.TrimSpace(s); s == "" {
		return b
	}
	b.lines = append(b.lines, "", I(s).String())
	return b
}

func (b *Builder) Build() Message {
	text := strings.Trim(strings.Join(b.lines, "\n"), "\n")
	return Message{
		Text: text,
		Opt:  &transport.SendOptions{ParseMode: "HTML", DisablePreview: true},
	}
}
