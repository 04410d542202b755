package commands

import (
	"context"
	"fmt"
	"github.com/shirou/gopsutil/cpu"
	"ircrelay/internal/app/adapters/relay"
	"ircrelay/internal/app/domain/dispatch"
	"ircrelay/internal/app/ports"
	"runtime"
	"strings"
	"time"
)

// Sessions drops the conversation a channel has with the model.
// *host.Host implements it.
type Sessions interface {
	Forget(sessionID string) error
}

// Builtins are the commands every relay answers to.
type Builtins struct {
	provider ports.ChannelProvider
	sessions Sessions
	prefix   string
	started  time.Time

	cpuPercent func() float64
}

// Register installs ping and help on provider, and reset when sessions is
// not nil.
func Register(provider ports.ChannelProvider, prefix string, started time.Time, sessions Sessions) (*Builtins, error) {
	b := &Builtins{
		provider:   provider,
		sessions:   sessions,
		prefix:     prefix,
		started:    started,
		cpuPercent: cpuPercent,
	}

	cmds := []dispatch.Command{
		{Name: "ping", Description: "uptime and resource usage", Handler: b.handlePing},
		{Name: "help", Description: "list commands", Handler: b.handleHelp},
	}
	if sessions != nil {
		cmds = append(cmds, dispatch.Command{Name: "reset", Description: "forget the conversation here", Handler: b.handleReset})
	}

	for _, cmd := range cmds {
		if err := provider.RegisterCommand(cmd); err != nil {
			return nil, fmt.Errorf("register %s: %w", cmd.Name, err)
		}
	}

	return b, nil
}

func (b *Builtins) handlePing(ctx context.Context, c *dispatch.CommandContext) error {
	uptime := time.Since(b.started)

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return c.Reply(ctx, fmt.Sprintf("%s is up %v • CPU %.2f%% • RAM %v MB", c.BotUsername(), uptime.Truncate(time.Second), b.cpuPercent(), m.Sys/1024/1024))
}

func (b *Builtins) handleHelp(ctx context.Context, c *dispatch.CommandContext) error {
	cmds := b.provider.Commands()
	parts := make([]string, 0, len(cmds))
	for _, cmd := range cmds {
		if cmd.Description == "" {
			parts = append(parts, b.prefix+cmd.Name)
			continue
		}
		parts = append(parts, fmt.Sprintf("%s%s - %s", b.prefix, cmd.Name, cmd.Description))
	}

	return c.Reply(ctx, "Commands: "+strings.Join(parts, " • "))
}

func (b *Builtins) handleReset(ctx context.Context, c *dispatch.CommandContext) error {
	if err := b.sessions.Forget(relay.SessionID(c.Channel)); err != nil {
		return err
	}
	return c.Reply(ctx, "Conversation reset.")
}

func cpuPercent() float64 {
	percent, err := cpu.Percent(0, false)
	if err != nil || len(percent) == 0 {
		return 0
	}
	return percent[0]
}
