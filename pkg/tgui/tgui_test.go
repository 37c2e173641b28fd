package tgui

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"statuswatch/internal/transport"
)

func TestBuilderEscapes(t *testing.T) {
	m := New().
		Title("🔴", "API <down>").
		KV("Status", "a & b").
		Quote("x<y", 0).
		Footer("Acme Status Monitor").
		Build()

	assert.Equal(t, "🔴 <b>API &lt;down&gt;</b>\n"+
		"• <b>Status</b>: a &amp; b\n"+
		"<blockquote>x&lt;y</blockquote>\n"+
		"\n"+
		"<i>Acme Status Monitor</i>", m.Text)
	assert.Equal(t, "HTML", m.Opt.ParseMode)
	assert.True(t, m.Opt.DisablePreview)
}

func TestTruncRunes(t *testing.T) {
	assert.Equal(t, "héll…", TruncRunes("héllo world", 4))
	assert.Equal(t, "héllo", TruncRunes("héllo", 5))
	assert.Equal(t, "", TruncRunes("abc", 0))
}

func TestLink(t *testing.T) {
	assert.Equal(t, `<a href="https://x.test/?a=1&amp;b=2">x</a>`, Link("x", "https://x.test/?a=1&b=2").String())
}

type recorder struct {
	to    transport.ChatTarget
	ref   transport.MessageRef
	text  string
	opt   *transport.SendOptions
	edits int
}

func (r *recorder) SendText(_ context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) (transport.MessageRef, error) {
	r.to, r.text, r.opt = to, text, opt
	return transport.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID, MessageID: 42}, nil
}

func (r *recorder) EditText(_ context.Context, ref transport.MessageRef, text string, opt *transport.SendOptions) error {
	r.ref, r.text, r.opt = ref, text, opt
	r.edits++
	return nil
}

func TestMessageSendAndEdit(t *testing.T) {
	rec := &recorder{}
	ctx := context.Background()

	ref, err := New().Line("first").Build().Send(ctx, rec, transport.ChatTarget{ChatID: -100, ThreadID: 3})
	require.NoError(t, err)
	assert.Equal(t, transport.MessageRef{ChatID: -100, ThreadID: 3, MessageID: 42}, ref)
	assert.Equal(t, "first", rec.text)

	require.NoError(t, New().Line("second <b>").Build().Edit(ctx, rec, ref))
	assert.Equal(t, 1, rec.edits)
	assert.Equal(t, ref, rec.ref)
	assert.Equal(t, "second &lt;b&gt;", rec.text)
	assert.Equal(t, "HTML", rec.opt.ParseMode)

	// a zero Message still passes non-nil options
	require.NoError(t, Message{Text: "raw"}.Edit(ctx, rec, ref))
	assert.NotNil(t, rec.opt)
}
