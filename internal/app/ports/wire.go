package ports

import (
	"context"
	"time"
)

// Privmsg kinds.
const (
	MessageTypePrivmsg = "privmsg"
	MessageTypeAction  = "action"
	MessageTypeNotice  = "notice"
)

// WireEvent is one of the event types below. The set is closed.
type WireEvent interface {
	wireEvent()
}

type RegisteredEvent struct {
	Nick string
}

type PrivmsgEvent struct {
	Nick     string
	Ident    string
	Hostname string
	Target   string
	Message  string
	Tags     map[string]string
	Type     string
}

type CTCPRequestEvent struct {
	Nick    string
	Target  string
	Type    string
	Message string
}

type KickEvent struct {
	Kicked  string
	Nick    string
	Channel string
	Message string
}

type NickInUseEvent struct{}

type NickEvent struct {
	Nick    string
	NewNick string
}

type ReconnectingEvent struct {
	Attempt int
	Wait    time.Duration
}

type CloseEvent struct{}

type SocketErrorEvent struct {
	Err error
}

func (RegisteredEvent) wireEvent()   {}
func (PrivmsgEvent) wireEvent()      {}
func (CTCPRequestEvent) wireEvent()  {}
func (KickEvent) wireEvent()         {}
func (NickInUseEvent) wireEvent()    {}
func (NickEvent) wireEvent()         {}
func (ReconnectingEvent) wireEvent() {}
func (CloseEvent) wireEvent()        {}
func (SocketErrorEvent) wireEvent()  {}

type ConnectOptions struct {
	Host                    string
	Port                    int
	Nick                    string
	Username                string
	Gecos                   string
	TLS                     bool
	Password                string
	AutoReconnect           bool
	AutoReconnectMaxWait    time.Duration
	AutoReconnectMaxRetries int
}

// WireClient is an IRC connection. Connect returns once the connection has
// been started; events arrive on Events until the client is closed.
type WireClient interface {
	Connect(ctx context.Context, opts ConnectOptions) error
	Events() <-chan WireEvent
	Join(channel string)
	Say(target, text string)
	Quit(message string)
	ChangeNick(nick string)
	CTCPResponse(target, kind string, params ...string)
}
