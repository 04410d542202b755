package relay

import (
	"context"
	"fmt"
	"ircrelay/internal/app/adapters/metrics"
	"ircrelay/internal/app/domain/dispatch"
	"ircrelay/internal/app/domain/message"
	"ircrelay/internal/app/ports"
	"log/slog"
	"strings"
	"sync"
)

func (r *Relay) handlePrivmsg(ctx context.Context, e ports.PrivmsgEvent) {
	if inject := r.route(ctx, e); inject != nil {
		inject()
	}
}

// route runs the inbound pipeline up to the host call: commands, parsers and
// the message event. It returns the inject step for a forwarded message and
// nil when the message was consumed or ignored.
func (r *Relay) route(ctx context.Context, e ports.PrivmsgEvent) func() {
	r.mu.Lock()
	client, cfg, nick := r.client, r.cfg, r.nick
	r.mu.Unlock()

	if client == nil || cfg == nil {
		return nil
	}
	if e.Type == ports.MessageTypeNotice || strings.EqualFold(e.Nick, nick) {
		return nil
	}

	text := message.Strip(e.Message)
	private := !IsChannelName(e.Target)
	channel := e.Target
	if private {
		channel = e.Nick
	}

	target := dispatch.Target{
		Channel:  channel,
		Sender:   e.Nick,
		Reply:    r.sink(channel),
		Identity: r,
	}

	r.log.Trace("Inbound message", slog.String("channel", channel), slog.String("from", e.Nick), slog.String("type", e.Type))

	if e.Type == ports.MessageTypeAction {
		text = fmt.Sprintf("* %s %s", e.Nick, text)
	} else {
		if r.registry.TryCommand(ctx, target, text, cfg.CommandPrefix) {
			metrics.InboundMessages.WithLabelValues(cfg.Server, "command").Inc()
			return nil
		}
		if r.registry.TryParsers(ctx, target, text) {
			metrics.InboundMessages.WithLabelValues(cfg.Server, "parser").Inc()
			return nil
		}
	}

	metrics.InboundMessages.WithLabelValues(cfg.Server, "forwarded").Inc()
	r.host.Emit(ctx, EventMessage, ports.MessageEvent{
		ChannelType: dispatch.ChannelType,
		Channel:     target.Channel,
		From:        target.Sender,
		Text:        text,
		Private:     private,
	})

	return func() { r.forward(ctx, cfg.Server, target, text) }
}

func (r *Relay) forward(ctx context.Context, server string, target dispatch.Target, text string) {
	stream := newStreamBuffer(target.Reply)
	resp, err := r.host.Inject(ctx, SessionID(target.Channel), text, ports.InjectOptions{
		From:    target.Sender,
		Channel: target.Channel,
		Stream:  stream,
	})
	if err != nil {
		metrics.InjectFailures.WithLabelValues(server).Inc()
		r.log.Error("Failed to get a reply from the host", err, slog.String("channel", target.Channel), slog.String("from", target.Sender))
		return
	}

	if stream.Streamed() {
		if err = stream.Flush(ctx); err != nil {
			r.log.Error("Failed to send streamed reply", err, slog.String("channel", target.Channel))
		}
		return
	}

	if strings.TrimSpace(resp) == "" {
		return
	}
	if err = target.Reply.Emit(ctx, resp); err != nil {
		r.log.Error("Failed to send reply", err, slog.String("channel", target.Channel))
	}
}

// SessionID names the host conversation for a channel or a private peer.
func SessionID(channel string) string {
	return "irc:" + strings.ToLower(channel)
}

// streamBuffer forwards streamed output one completed line at a time.
type streamBuffer struct {
	out dispatch.Sink

	mu       sync.Mutex
	buf      strings.Builder
	streamed bool
}

func newStreamBuffer(out dispatch.Sink) *streamBuffer {
	return &streamBuffer{out: out}
}

func (b *streamBuffer) Emit(ctx context.Context, chunk string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.streamed = true
	b.buf.WriteString(chunk)

	text := b.buf.String()
	i := strings.LastIndexByte(text, '\n')
	if i < 0 {
		return nil
	}

	b.buf.Reset()
	b.buf.WriteString(text[i+1:])

	if strings.TrimSpace(text[:i]) == "" {
		return nil
	}
	return b.out.Emit(ctx, text[:i])
}

func (b *streamBuffer) Streamed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.streamed
}

// Flush sends whatever is left after the last newline.
func (b *streamBuffer) Flush(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	rest := b.buf.String()
	b.buf.Reset()

	if strings.TrimSpace(rest) == "" {
		return nil
	}
	return b.out.Emit(ctx, rest)
}
