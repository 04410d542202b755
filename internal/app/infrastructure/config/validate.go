package config

import (
	"errors"
	"fmt"
	"strings"
)

func (m *Manager) validate(cfg *Config) error {
	// app
	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if cfg.App.LogLevel != "" && !validLevels[cfg.App.LogLevel] {
		return fmt.Errorf("app.log_level must be one of trace, debug, info, warn, error; got %s", cfg.App.LogLevel)
	}

	validModes := map[string]bool{"debug": true, "release": true, "test": true}
	if cfg.App.GinMode != "" && !validModes[cfg.App.GinMode] {
		return fmt.Errorf("app.gin_mode must be one of debug, release, test; got %s", cfg.App.GinMode)
	}

	// irc
	if cfg.IRC.Port < 0 || cfg.IRC.Port > 65535 {
		return fmt.Errorf("irc.port must be [0,65535]; got %d", cfg.IRC.Port)
	}
	if cfg.IRC.MaxMessageLength < 0 {
		return errors.New("irc.max_message_length must be >= 0")
	}
	if strings.ContainsAny(cfg.IRC.CommandPrefix, " \t\r\n") {
		return errors.New("irc.command_prefix must not contain whitespace")
	}
	if cfg.IRC.AutoReconnectMaxWaitMs < 0 {
		return errors.New("irc.auto_reconnect_max_wait_ms must be >= 0")
	}
	if cfg.IRC.AutoReconnectMaxRetries < 0 {
		return errors.New("irc.auto_reconnect_max_retries must be >= 0")
	}
	if (cfg.IRC.Proxy.Address == "") != (cfg.IRC.Proxy.Port == 0) {
		return errors.New("irc.proxy.address and irc.proxy.port must both be set or both be empty")
	}
	if cfg.IRC.Channels == nil {
		cfg.IRC.Channels = []string{}
	}

	// inference
	if cfg.Inference.HistorySize < 0 {
		return errors.New("inference.history_size must be >= 0")
	}
	if cfg.Inference.HistoryTTL < 0 {
		return errors.New("inference.history_ttl_secs must be >= 0")
	}

	return nil
}
