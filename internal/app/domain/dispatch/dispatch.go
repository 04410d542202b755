package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// TryCommand runs the command named by rawText if it starts with prefix.
// A command that fails still consumes the message: the error is reported
// back to the channel and TryCommand returns true.
func (r *Registry) TryCommand(ctx context.Context, target Target, rawText, prefix string) bool {
	text := strings.TrimSpace(rawText)
	if !strings.HasPrefix(text, prefix) {
		return false
	}

	fields := strings.Fields(text[len(prefix):])
	if len(fields) == 0 {
		return false
	}

	name := strings.ToLower(fields[0])
	cmd, ok := r.command(name)
	if !ok {
		return false
	}

	c := &CommandContext{
		Channel:     target.Channel,
		ChannelType: ChannelType,
		Sender:      target.Sender,
		Args:        fields[1:],
		reply:       target.Reply,
		identity:    target.Identity,
	}

	r.log.Debug("Executing command", slog.String("command", name), slog.String("channel", target.Channel), slog.String("sender", target.Sender))

	if err := safeCall(func() error { return cmd.Handler(ctx, c) }); err != nil {
		r.log.Error("Command failed", err, slog.String("command", name), slog.String("channel", target.Channel))
		if replyErr := c.Reply(ctx, fmt.Sprintf("Error executing %s%s: %v", prefix, name, err)); replyErr != nil {
			r.log.Error("Failed to report command error", replyErr, slog.String("command", name))
		}
	}

	return true
}

// TryParsers hands text to the first parser whose pattern matches it. Later
// parsers are never tried. A failing parser leaves the message unhandled.
func (r *Registry) TryParsers(ctx context.Context, target Target, text string) bool {
	for _, p := range r.Parsers() {
		if !safeMatch(p.Pattern, text) {
			continue
		}

		m := &MessageContext{
			Channel:     target.Channel,
			ChannelType: ChannelType,
			Sender:      target.Sender,
			Text:        text,
			reply:       target.Reply,
			identity:    target.Identity,
		}

		r.log.Debug("Message parser matched", slog.String("parser", p.ID), slog.String("channel", target.Channel))

		if err := safeCall(func() error { return p.Handler(ctx, m) }); err != nil {
			r.log.Error("Message parser failed", err, slog.String("parser", p.ID), slog.String("channel", target.Channel))
			return false
		}
		return true
	}

	return false
}

func safeCall(f func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()

	return f()
}

func safeMatch(p Pattern, text string) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()

	return p.Match(text)
}
