package commands

import (
	"context"
	"errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"ircrelay/internal/app/domain/dispatch"
	"ircrelay/pkg/logger"
	"testing"
	"time"
)

// registryProvider exposes a bare dispatch registry as a channel provider.
type registryProvider struct {
	*dispatch.Registry
}

func (p registryProvider) ID() string                                 { return "irc" }
func (p registryProvider) Send(context.Context, string, string) error { return nil }
func (p registryProvider) BotUsername() string                        { return "wopr" }
func (p registryProvider) AddMessageParser(parser dispatch.Parser) error {
	return p.AddParser(parser)
}
func (p registryProvider) RemoveMessageParser(id string)     { p.RemoveParser(id) }
func (p registryProvider) MessageParsers() []dispatch.Parser { return p.Parsers() }

type identity string

func (i identity) BotUsername() string { return string(i) }

func run(t *testing.T, reg *dispatch.Registry, text string) []string {
	t.Helper()

	var replies []string
	target := dispatch.Target{
		Channel:  "#wopr",
		Sender:   "falken",
		Identity: identity("wopr"),
		Reply: dispatch.SinkFunc(func(_ context.Context, text string) error {
			replies = append(replies, text)
			return nil
		}),
	}

	require.True(t, reg.TryCommand(context.Background(), target, text, "!"))
	return replies
}

func TestRegister(t *testing.T) {
	reg := dispatch.NewRegistry(logger.NewNop())

	_, err := Register(registryProvider{reg}, "!", time.Now(), nil)
	require.NoError(t, err)

	var names []string
	for _, c := range reg.Commands() {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"help", "ping"}, names)
}

func TestPing(t *testing.T) {
	reg := dispatch.NewRegistry(logger.NewNop())

	b, err := Register(registryProvider{reg}, "!", time.Now().Add(-90*time.Minute), nil)
	require.NoError(t, err)
	b.cpuPercent = func() float64 { return 12.5 }

	replies := run(t, reg, "!ping")
	require.Len(t, replies, 1)
	assert.Regexp(t, `^wopr is up 1h30m\d+s • CPU 12\.50% • RAM \d+ MB$`, replies[0])
}

func TestHelp(t *testing.T) {
	reg := dispatch.NewRegistry(logger.NewNop())
	p := registryProvider{reg}

	_, err := Register(p, "!", time.Now(), nil)
	require.NoError(t, err)
	require.NoError(t, p.RegisterCommand(dispatch.Command{
		Name:    "joshua",
		Handler: func(context.Context, *dispatch.CommandContext) error { return nil },
	}))

	replies := run(t, reg, "!help")
	assert.Equal(t, []string{"Commands: !help - list commands • !joshua • !ping - uptime and resource usage"}, replies)
}

type sessionsFunc func(sessionID string) error

func (f sessionsFunc) Forget(sessionID string) error { return f(sessionID) }

func TestReset(t *testing.T) {
	reg := dispatch.NewRegistry(logger.NewNop())

	var forgotten []string
	_, err := Register(registryProvider{reg}, "!", time.Now(), sessionsFunc(func(id string) error {
		forgotten = append(forgotten, id)
		return nil
	}))
	require.NoError(t, err)

	assert.Equal(t, []string{"Conversation reset."}, run(t, reg, "!reset"))
	assert.Equal(t, []string{"irc:#wopr"}, forgotten)
}

func TestReset_NoEngine(t *testing.T) {
	reg := dispatch.NewRegistry(logger.NewNop())

	_, err := Register(registryProvider{reg}, "!", time.Now(), sessionsFunc(func(string) error {
		return errors.New("no inference engine configured")
	}))
	require.NoError(t, err)

	assert.Equal(t, []string{"Error executing !reset: no inference engine configured"}, run(t, reg, "!reset"))
}
