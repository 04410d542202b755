package relay

import (
	"context"
	"fmt"
	"ircrelay/internal/app/ports"
	"log/slog"
	"math/rand/v2"
	"strings"
)

func (r *Relay) listen(ctx context.Context, events <-chan ports.WireEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			// команды и парсеры идут строго по порядку, в фоне только ожидание инференса
			if msg, isMsg := ev.(ports.PrivmsgEvent); isMsg {
				if inject := r.route(ctx, msg); inject != nil {
					go inject()
				}
				continue
			}
			r.HandleEvent(ctx, ev)
		}
	}
}

// HandleEvent applies one wire event synchronously.
func (r *Relay) HandleEvent(ctx context.Context, ev ports.WireEvent) {
	switch e := ev.(type) {
	case ports.RegisteredEvent:
		r.onRegistered(e)
	case ports.PrivmsgEvent:
		r.handlePrivmsg(ctx, e)
	case ports.CTCPRequestEvent:
		r.onCTCP(e)
	case ports.KickEvent:
		r.onKick(e)
	case ports.NickInUseEvent:
		r.onNickInUse()
	case ports.NickEvent:
		r.onNick(e)
	case ports.ReconnectingEvent:
		r.onReconnecting(e)
	case ports.CloseEvent:
		r.log.Warn("IRC connection closed", slog.String("server", r.server()))
	case ports.SocketErrorEvent:
		r.log.Error("IRC socket error", e.Err, slog.String("server", r.server()))
	}
}

func (r *Relay) onRegistered(e ports.RegisteredEvent) {
	r.mu.Lock()
	client, cfg := r.client, r.cfg
	if client == nil || cfg == nil {
		r.mu.Unlock()
		return
	}
	if e.Nick != "" {
		r.nick = e.Nick
	}
	nick := r.nick
	r.setStateLocked(StateRegistered)
	r.mu.Unlock()

	r.log.Info("Registered on IRC", slog.String("server", cfg.Server), slog.String("nick", nick))

	for _, channel := range cfg.Channels {
		if !IsChannelName(channel) {
			r.log.Warn("Skipping malformed channel name", slog.String("channel", channel))
			continue
		}
		client.Join(channel)
		r.log.Info("Joining channel", slog.String("channel", channel))
	}
}

func (r *Relay) onKick(e ports.KickEvent) {
	r.mu.Lock()
	if r.client == nil || !strings.EqualFold(e.Kicked, r.nick) {
		r.mu.Unlock()
		return
	}

	channel, key := e.Channel, strings.ToLower(e.Channel)
	if prev, ok := r.rejoins[key]; ok {
		prev.Stop()
	}
	r.rejoins[key] = r.sched.AfterFunc(RejoinDelay, func() { r.rejoin(channel) })
	r.mu.Unlock()

	r.log.Warn("Kicked from channel, rejoining", slog.String("channel", channel), slog.String("by", e.Nick), slog.String("reason", e.Message), slog.Duration("delay", RejoinDelay))
}

func (r *Relay) rejoin(channel string) {
	r.mu.Lock()
	delete(r.rejoins, strings.ToLower(channel))
	client := r.client
	r.mu.Unlock()

	if client == nil {
		return
	}
	client.Join(channel)
	r.log.Info("Rejoining channel", slog.String("channel", channel))
}

func (r *Relay) onNickInUse() {
	client, cfg := r.active()
	if client == nil || cfg == nil {
		return
	}

	alt := AlternativeNick(cfg.Nick)
	r.log.Warn("Nick is in use, trying an alternative", slog.String("nick", cfg.Nick), slog.String("alternative", alt))
	client.ChangeNick(alt)
}

func (r *Relay) onNick(e ports.NickEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e.NewNick == "" || !strings.EqualFold(e.Nick, r.nick) {
		return
	}
	r.log.Info("Nick changed", slog.String("from", r.nick), slog.String("to", e.NewNick))
	r.nick = e.NewNick
}

func (r *Relay) onCTCP(e ports.CTCPRequestEvent) {
	client, _ := r.active()
	if client == nil {
		return
	}

	kind := strings.ToUpper(e.Type)
	if kind != "VERSION" && kind != "PING" {
		r.log.Debug("Ignoring CTCP request", slog.String("type", kind), slog.String("from", e.Nick))
		return
	}
	if !r.ctcp.Allow() {
		r.log.Debug("CTCP reply throttled", slog.String("type", kind), slog.String("from", e.Nick))
		return
	}

	switch kind {
	case "VERSION":
		client.CTCPResponse(e.Nick, "VERSION", Version)
	case "PING":
		client.CTCPResponse(e.Nick, "PING", e.Message)
	}
}

func (r *Relay) onReconnecting(e ports.ReconnectingEvent) {
	r.mu.Lock()
	if r.state != StateShutDown {
		r.setStateLocked(StateReconnecting)
	}
	server := ""
	if r.cfg != nil {
		server = r.cfg.Server
	}
	r.mu.Unlock()

	r.log.Warn("Reconnecting to IRC", slog.String("server", server), slog.Int("attempt", e.Attempt), slog.Duration("wait", e.Wait))
}

// AlternativeNick derives a fallback nick when the configured one is taken.
func AlternativeNick(nick string) string {
	return fmt.Sprintf("%s_%d", nick, rand.IntN(1000))
}
