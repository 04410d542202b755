package ports

import (
	"context"
	"ircrelay/internal/app/domain/dispatch"
	"ircrelay/internal/app/infrastructure/config"
)

type SchemaField struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Required    bool   `json:"required,omitempty"`
	Default     any    `json:"default,omitempty"`
	Description string `json:"description,omitempty"`
}

type ConfigSchema struct {
	Title  string        `json:"title"`
	Fields []SchemaField `json:"fields"`
}

type InjectOptions struct {
	From    string
	Channel string
	// Stream receives partial output while the response is generated. May be nil.
	Stream dispatch.Sink
}

// ChannelProvider is a chat backend registered with the host.
type ChannelProvider interface {
	ID() string
	Send(ctx context.Context, channel, content string) error
	BotUsername() string

	RegisterCommand(cmd dispatch.Command) error
	UnregisterCommand(name string)
	Commands() []dispatch.Command

	AddMessageParser(p dispatch.Parser) error
	RemoveMessageParser(id string)
	MessageParsers() []dispatch.Parser
}

// Host is the runtime a channel provider plugs into.
type Host interface {
	RegisterConfigSchema(id string, schema ConfigSchema) error
	UnregisterConfigSchema(id string)
	RegisterChannelProvider(p ChannelProvider) error
	UnregisterChannelProvider(id string)

	IRCConfig() config.IRC
	Emit(ctx context.Context, event string, payload any)
	Inject(ctx context.Context, sessionID, text string, opts InjectOptions) (string, error)
}

// InferenceEngine produces a reply for one session turn.
type InferenceEngine interface {
	Complete(ctx context.Context, sessionID, from, text string, stream dispatch.Sink) (string, error)
	Forget(sessionID string)
}

// MessageEvent is the payload emitted for every message forwarded to the host.
type MessageEvent struct {
	ChannelType string `json:"channel_type"`
	Channel     string `json:"channel"`
	From        string `json:"from"`
	Text        string `json:"text"`
	Private     bool   `json:"private"`
}
