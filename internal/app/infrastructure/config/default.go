package config

import "time"

const (
	DefaultPort                    = 6697
	DefaultFloodDelay              = time.Second
	DefaultMaxMessageLength        = 512
	DefaultCommandPrefix           = "!"
	DefaultRealname                = "WOPR IRC Bot"
	DefaultAutoReconnectMaxWait    = 5 * time.Minute
	DefaultAutoReconnectMaxRetries = 10
)

func (m *Manager) GetDefault() *Config {
	tls := true

	return &Config{
		App: App{
			LogLevel:   "info",
			LogFile:    "logs/relay.log",
			GinMode:    "release",
			ListenAddr: ":8080",
		},
		IRC: IRC{
			Port:                    DefaultPort,
			Channels:                []string{},
			TLS:                     &tls,
			FloodDelayMs:            int(DefaultFloodDelay / time.Millisecond),
			MaxMessageLength:        DefaultMaxMessageLength,
			CommandPrefix:           DefaultCommandPrefix,
			Realname:                DefaultRealname,
			AutoReconnectMaxWaitMs:  int(DefaultAutoReconnectMaxWait / time.Millisecond),
			AutoReconnectMaxRetries: DefaultAutoReconnectMaxRetries,
		},
		Inference: Inference{
			Model:        "gpt-4o-mini",
			SystemPrompt: "You are WOPR, a terse assistant in an IRC channel. Answer in plain text without markdown.",
			HistorySize:  20,
			HistoryTTL:   3600,
			HistoryFile:  "cache/sessions.json",
		},
	}
}

// WithDefaults fills every unset field of an IRC section.
func (c IRC) WithDefaults() IRC {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.TLS == nil {
		tls := true
		c.TLS = &tls
	}
	if c.FloodDelayMs == 0 {
		c.FloodDelayMs = int(DefaultFloodDelay / time.Millisecond)
	}
	if c.MaxMessageLength == 0 {
		c.MaxMessageLength = DefaultMaxMessageLength
	}
	if c.CommandPrefix == "" {
		c.CommandPrefix = DefaultCommandPrefix
	}
	if c.Username == "" {
		c.Username = c.Nick
	}
	if c.Realname == "" {
		c.Realname = DefaultRealname
	}
	if c.AutoReconnectMaxWaitMs == 0 {
		c.AutoReconnectMaxWaitMs = int(DefaultAutoReconnectMaxWait / time.Millisecond)
	}
	if c.AutoReconnectMaxRetries == 0 {
		c.AutoReconnectMaxRetries = DefaultAutoReconnectMaxRetries
	}
	return c
}

// Complete reports whether the fields needed to connect are present.
func (c IRC) Complete() bool {
	return c.Server != "" && c.Nick != "" && len(c.Channels) > 0
}

func (c IRC) UseTLS() bool {
	return c.TLS == nil || *c.TLS
}

// FloodDelay is zero when pacing is disabled.
func (c IRC) FloodDelay() time.Duration {
	if c.FloodDelayMs < 0 {
		return 0
	}
	return time.Duration(c.FloodDelayMs) * time.Millisecond
}

func (c IRC) AutoReconnectMaxWait() time.Duration {
	return time.Duration(c.AutoReconnectMaxWaitMs) * time.Millisecond
}
