package dispatch

import "context"

// ChannelType tags every context produced by this provider.
const ChannelType = "irc"

// Sink accepts outbound text for one conversation.
type Sink interface {
	Emit(ctx context.Context, text string) error
}

type SinkFunc func(ctx context.Context, text string) error

func (f SinkFunc) Emit(ctx context.Context, text string) error {
	return f(ctx, text)
}

// Identity reports the nick the bot currently holds.
type Identity interface {
	BotUsername() string
}

// Target describes where an inbound message came from and how to answer it.
type Target struct {
	Channel  string
	Sender   string
	Reply    Sink
	Identity Identity
}

type CommandContext struct {
	Channel     string
	ChannelType string
	Sender      string
	Args        []string

	reply    Sink
	identity Identity
}

func (c *CommandContext) Reply(ctx context.Context, text string) error {
	return emit(ctx, c.reply, text)
}

func (c *CommandContext) BotUsername() string {
	return botUsername(c.identity)
}

type MessageContext struct {
	Channel     string
	ChannelType string
	Sender      string
	Text        string

	reply    Sink
	identity Identity
}

func (m *MessageContext) Reply(ctx context.Context, text string) error {
	return emit(ctx, m.reply, text)
}

func (m *MessageContext) BotUsername() string {
	return botUsername(m.identity)
}

func emit(ctx context.Context, sink Sink, text string) error {
	if sink == nil {
		return nil
	}
	return sink.Emit(ctx, text)
}

func botUsername(id Identity) string {
	if id == nil {
		return ""
	}
	return id.BotUsername()
}
