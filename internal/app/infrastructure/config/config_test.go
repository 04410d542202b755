package config

import (
	"context"
	"encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"ircrelay/pkg/logger"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, path string, cfg map[string]any) {
	t.Helper()

	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0600))
}

func TestNew_WritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	m, err := New(path)
	require.NoError(t, err)

	_, err = os.Stat(path)
	require.NoError(t, err)

	cfg := m.Get()
	assert.Equal(t, DefaultPort, cfg.IRC.Port)
	assert.True(t, cfg.IRC.UseTLS())
	assert.Equal(t, DefaultCommandPrefix, cfg.IRC.CommandPrefix)
	assert.False(t, cfg.IRC.Complete())
}

func TestNew_ReadsFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	writeConfig(t, path, map[string]any{
		"irc": map[string]any{
			"server":   "irc.test.com",
			"nick":     "bot",
			"channels": []string{"#test"},
		},
	})

	t.Setenv("RELAY_IRC_NICK", "envbot")
	t.Setenv("RELAY_IRC_CHANNELS", "#a,#b")
	t.Setenv("RELAY_INFERENCE_API_KEY", "sk-test")

	m, err := New(path)
	require.NoError(t, err)

	cfg := m.Get()
	assert.Equal(t, "irc.test.com", cfg.IRC.Server)
	assert.Equal(t, "envbot", cfg.IRC.Nick)
	assert.Equal(t, []string{"#a", "#b"}, cfg.IRC.Channels)
	assert.Equal(t, "sk-test", cfg.Inference.APIKey)
	assert.Equal(t, DefaultMaxMessageLength, cfg.IRC.MaxMessageLength, "defaults fill fields missing from the file")
	assert.True(t, cfg.IRC.Complete())
}

func TestNew_Invalid(t *testing.T) {
	tests := []struct {
		name string
		cfg  map[string]any
	}{
		{name: "log level", cfg: map[string]any{"app": map[string]any{"log_level": "loud"}}},
		{name: "gin mode", cfg: map[string]any{"app": map[string]any{"gin_mode": "turbo"}}},
		{name: "port", cfg: map[string]any{"irc": map[string]any{"port": 70000}}},
		{name: "prefix", cfg: map[string]any{"irc": map[string]any{"command_prefix": "! "}}},
		{name: "half proxy", cfg: map[string]any{"irc": map[string]any{"proxy": map[string]any{"address": "127.0.0.1"}}}},
		{name: "history size", cfg: map[string]any{"inference": map[string]any{"history_size": -1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.json")
			writeConfig(t, path, tt.cfg)

			_, err := New(path)
			assert.Error(t, err)
		})
	}
}

func TestIRC_WithDefaults(t *testing.T) {
	off := false

	tests := []struct {
		name  string
		in    IRC
		check func(t *testing.T, c IRC)
	}{
		{
			name: "empty",
			in:   IRC{Server: "irc.test.com", Nick: "bot", Channels: []string{"#test"}},
			check: func(t *testing.T, c IRC) {
				assert.Equal(t, 6697, c.Port)
				assert.True(t, c.UseTLS())
				assert.Equal(t, "bot", c.Username)
				assert.Equal(t, DefaultRealname, c.Realname)
				assert.Equal(t, time.Second, c.FloodDelay())
				assert.Equal(t, 512, c.MaxMessageLength)
				assert.Equal(t, "!", c.CommandPrefix)
				assert.Equal(t, 5*time.Minute, c.AutoReconnectMaxWait())
				assert.Equal(t, 10, c.AutoReconnectMaxRetries)
			},
		},
		{
			name: "explicit values kept",
			in:   IRC{Port: 6667, TLS: &off, Username: "ident", FloodDelayMs: 250, CommandPrefix: "."},
			check: func(t *testing.T, c IRC) {
				assert.Equal(t, 6667, c.Port)
				assert.False(t, c.UseTLS())
				assert.Equal(t, "ident", c.Username)
				assert.Equal(t, 250*time.Millisecond, c.FloodDelay())
				assert.Equal(t, ".", c.CommandPrefix)
			},
		},
		{
			name: "negative flood delay disables pacing",
			in:   IRC{FloodDelayMs: -1},
			check: func(t *testing.T, c IRC) {
				assert.Zero(t, c.FloodDelay())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, tt.in.WithDefaults())
		})
	}
}

func TestManager_Watch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	writeConfig(t, path, map[string]any{"irc": map[string]any{"nick": "first"}})

	m, err := New(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan *Config, 4)
	require.NoError(t, m.Watch(ctx, logger.NewNop(), func(cfg *Config) { changed <- cfg }))

	writeConfig(t, path, map[string]any{"irc": map[string]any{"nick": "second"}})

	select {
	case cfg := <-changed:
		assert.Equal(t, "second", cfg.IRC.Nick)
		assert.Equal(t, "second", m.Get().IRC.Nick)
	case <-time.After(5 * time.Second):
		t.Fatal("config change was not picked up")
	}
}
