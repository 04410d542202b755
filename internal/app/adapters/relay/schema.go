package relay

import (
	"ircrelay/internal/app/infrastructure/config"
	"ircrelay/internal/app/ports"
)

// ConfigSchema describes the IRC section for host-side config UIs.
func ConfigSchema() ports.ConfigSchema {
	return ports.ConfigSchema{
		Title: "IRC",
		Fields: []ports.SchemaField{
			{Name: "server", Type: "string", Required: true, Description: "IRC server hostname"},
			{Name: "port", Type: "number", Default: config.DefaultPort, Description: "Server port"},
			{Name: "nick", Type: "string", Required: true, Description: "Bot nickname"},
			{Name: "channels", Type: "array", Required: true, Description: "Channels to join, e.g. #wopr"},
			{Name: "tls", Type: "boolean", Default: true, Description: "Connect over TLS"},
			{Name: "password", Type: "password", Description: "Server password"},
			{Name: "flood_delay_ms", Type: "number", Default: int(config.DefaultFloodDelay.Milliseconds()), Description: "Minimum spacing between outbound lines"},
			{Name: "max_message_length", Type: "number", Default: config.DefaultMaxMessageLength, Description: "Maximum IRC line length in bytes"},
			{Name: "command_prefix", Type: "string", Default: config.DefaultCommandPrefix, Description: "Prefix that marks a command"},
			{Name: "username", Type: "string", Description: "Ident username, defaults to the nick"},
			{Name: "realname", Type: "string", Default: config.DefaultRealname, Description: "Real name shown in WHOIS"},
		},
	}
}
