package relay

import (
	"context"
	"errors"
	"fmt"
	"golang.org/x/time/rate"
	"ircrelay/internal/app/adapters/metrics"
	"ircrelay/internal/app/domain/dispatch"
	"ircrelay/internal/app/infrastructure/config"
	"ircrelay/internal/app/infrastructure/pacer"
	"ircrelay/internal/app/infrastructure/timers"
	"ircrelay/internal/app/ports"
	"ircrelay/pkg/logger"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const (
	ProviderID   = "irc"
	SchemaID     = "irc"
	Version      = "WOPR IRC Plugin 1.0.0"
	QuitMessage  = "WOPR shutting down"
	EventMessage = "irc:message"

	// ProtocolOverhead is reserved from the line limit for the PRIVMSG framing.
	ProtocolOverhead = 100
	RejoinDelay      = 2 * time.Second
)

var (
	ErrClientNotInitialized = errors.New("client not initialized")
	ErrAlreadyStarted       = errors.New("relay already started")
)

type State int32

const (
	StateUnconfigured State = iota
	StateConnecting
	StateRegistered
	StateReconnecting
	StateShutDown
)

func (s State) String() string {
	switch s {
	case StateUnconfigured:
		return "unconfigured"
	case StateConnecting:
		return "connecting"
	case StateRegistered:
		return "registered"
	case StateReconnecting:
		return "reconnecting"
	case StateShutDown:
		return "shut_down"
	}
	return "unknown"
}

// Relay bridges one IRC connection to the host runtime. It is also the
// channel provider the host sees for IRC.
type Relay struct {
	log      logger.Logger
	host     ports.Host
	wire     ports.WireClient
	registry *dispatch.Registry
	sched    timers.Scheduler
	ctcp     *rate.Limiter

	mu      sync.Mutex
	state   State
	cfg     *config.IRC
	client  ports.WireClient // nil until connected and after shutdown
	pacer   *pacer.Pacer
	nick    string
	rejoins map[string]timers.Task
}

func New(log logger.Logger, host ports.Host, wire ports.WireClient, registry *dispatch.Registry, sched timers.Scheduler) *Relay {
	return &Relay{
		log:      log,
		host:     host,
		wire:     wire,
		registry: registry,
		sched:    sched,
		ctcp:     rate.NewLimiter(rate.Every(2*time.Second), 5),
		rejoins:  make(map[string]timers.Task),
	}
}

// Start registers with the host and connects. An incomplete configuration
// is not an error: the relay stays unconfigured and does nothing.
func (r *Relay) Start(ctx context.Context) error {
	if err := r.host.RegisterConfigSchema(SchemaID, ConfigSchema()); err != nil {
		return fmt.Errorf("register config schema: %w", err)
	}

	cfg := r.host.IRCConfig()
	if !cfg.Complete() {
		r.log.Warn("IRC relay is not configured, server, nick and channels are required")
		return nil
	}
	cfg = cfg.WithDefaults()

	r.mu.Lock()
	if r.state != StateUnconfigured {
		r.mu.Unlock()
		return ErrAlreadyStarted
	}
	r.cfg = &cfg
	r.client = r.wire
	r.nick = cfg.Nick
	if d := cfg.FloodDelay(); d > 0 {
		server := cfg.Server
		r.pacer = pacer.New(r.log, r.sched, d, pacer.WithDepthObserver(func(n int) {
			metrics.FloodQueueDepth.WithLabelValues(server).Set(float64(n))
		}))
	}
	r.setStateLocked(StateConnecting)
	r.mu.Unlock()

	if err := r.host.RegisterChannelProvider(r); err != nil {
		return fmt.Errorf("register channel provider: %w", err)
	}

	go r.listen(ctx, r.wire.Events())

	r.log.Info("Connecting to IRC", slog.String("server", cfg.Server), slog.Int("port", cfg.Port), slog.Bool("tls", cfg.UseTLS()), slog.String("nick", cfg.Nick))

	err := r.wire.Connect(ctx, ports.ConnectOptions{
		Host:                    cfg.Server,
		Port:                    cfg.Port,
		Nick:                    cfg.Nick,
		Username:                cfg.Username,
		Gecos:                   cfg.Realname,
		TLS:                     cfg.UseTLS(),
		Password:                cfg.Password,
		AutoReconnect:           true,
		AutoReconnectMaxWait:    cfg.AutoReconnectMaxWait(),
		AutoReconnectMaxRetries: cfg.AutoReconnectMaxRetries,
	})
	if err != nil {
		r.log.Error("Failed to connect to IRC", err, slog.String("server", cfg.Server))
		return fmt.Errorf("connect %s:%d: %w", cfg.Server, cfg.Port, err)
	}

	return nil
}

// Shutdown tears the connection down. Only the first call has any effect.
func (r *Relay) Shutdown(_ context.Context) error {
	r.mu.Lock()
	if r.state == StateShutDown {
		r.mu.Unlock()
		return nil
	}

	client, p := r.client, r.pacer
	rejoins := r.rejoins

	r.setStateLocked(StateShutDown)
	r.client = nil
	r.pacer = nil
	r.cfg = nil
	r.rejoins = make(map[string]timers.Task)
	r.mu.Unlock()

	for _, t := range rejoins {
		t.Stop()
	}
	if p != nil {
		p.Clear()
	}

	r.registry.Clear()
	r.host.UnregisterChannelProvider(ProviderID)
	r.host.UnregisterConfigSchema(SchemaID)

	if client != nil {
		client.Quit(QuitMessage)
	}

	r.log.Info("IRC relay shut down")
	return nil
}

func (r *Relay) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.state
}

// setStateLocked expects r.mu to be held.
func (r *Relay) setStateLocked(s State) {
	server := ""
	if r.cfg != nil {
		server = r.cfg.Server
	}

	metrics.ConnectionState.WithLabelValues(server, r.state.String()).Set(0)
	metrics.ConnectionState.WithLabelValues(server, s.String()).Set(1)
	r.state = s
}

func (r *Relay) active() (ports.WireClient, *config.IRC) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.client, r.cfg
}

func (r *Relay) server() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cfg == nil {
		return ""
	}
	return r.cfg.Server
}

// ID implements ports.ChannelProvider.
func (r *Relay) ID() string {
	return ProviderID
}

func (r *Relay) BotUsername() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.nick
}

func (r *Relay) RegisterCommand(cmd dispatch.Command) error {
	if cmd.Handler != nil {
		name, handler := strings.ToLower(strings.TrimSpace(cmd.Name)), cmd.Handler
		cmd.Handler = func(ctx context.Context, c *dispatch.CommandContext) error {
			metrics.Commands.WithLabelValues(name).Inc()
			return handler(ctx, c)
		}
	}
	return r.registry.RegisterCommand(cmd)
}

func (r *Relay) UnregisterCommand(name string) {
	r.registry.UnregisterCommand(name)
}

func (r *Relay) Commands() []dispatch.Command {
	return r.registry.Commands()
}

func (r *Relay) AddMessageParser(p dispatch.Parser) error {
	return r.registry.AddParser(p)
}

func (r *Relay) RemoveMessageParser(id string) {
	r.registry.RemoveParser(id)
}

func (r *Relay) MessageParsers() []dispatch.Parser {
	return r.registry.Parsers()
}
