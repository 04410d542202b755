package host

import (
	"context"
	"errors"
	"fmt"
	"github.com/google/uuid"
	"ircrelay/internal/app/adapters/metrics"
	"ircrelay/internal/app/infrastructure/config"
	"ircrelay/internal/app/ports"
	"ircrelay/pkg/logger"
	"log/slog"
	"sort"
	"sync"
	"time"
)

var (
	ErrEmptyID  = errors.New("empty id")
	ErrNoEngine = errors.New("no inference engine configured")
)

// ConfigSource yields the current configuration. *config.Manager implements it.
type ConfigSource interface {
	Get() *config.Config
}

// Event is the envelope broadcast for every emitted event.
type Event struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Time    time.Time `json:"time"`
	Payload any       `json:"payload"`
}

// Host is the standalone runtime the IRC provider plugs into.
type Host struct {
	log    logger.Logger
	config ConfigSource
	engine ports.InferenceEngine
	hub    *Hub

	mu        sync.RWMutex
	schemas   map[string]ports.ConfigSchema
	providers map[string]ports.ChannelProvider
}

// New builds a host. engine and hub may be nil.
func New(log logger.Logger, source ConfigSource, engine ports.InferenceEngine, hub *Hub) *Host {
	return &Host{
		log:       log,
		config:    source,
		engine:    engine,
		hub:       hub,
		schemas:   make(map[string]ports.ConfigSchema),
		providers: make(map[string]ports.ChannelProvider),
	}
}

func (h *Host) RegisterConfigSchema(id string, schema ports.ConfigSchema) error {
	if id == "" {
		return fmt.Errorf("register config schema: %w", ErrEmptyID)
	}

	h.mu.Lock()
	h.schemas[id] = schema
	h.mu.Unlock()

	h.log.Debug("Config schema registered", slog.String("id", id), slog.Int("fields", len(schema.Fields)))
	return nil
}

func (h *Host) UnregisterConfigSchema(id string) {
	h.mu.Lock()
	delete(h.schemas, id)
	h.mu.Unlock()

	h.log.Debug("Config schema unregistered", slog.String("id", id))
}

func (h *Host) Schema(id string) (ports.ConfigSchema, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	s, ok := h.schemas[id]
	return s, ok
}

func (h *Host) RegisterChannelProvider(p ports.ChannelProvider) error {
	if p == nil || p.ID() == "" {
		return fmt.Errorf("register channel provider: %w", ErrEmptyID)
	}

	h.mu.Lock()
	_, replaced := h.providers[p.ID()]
	h.providers[p.ID()] = p
	h.mu.Unlock()

	h.log.Info("Channel provider registered", slog.String("id", p.ID()), slog.Bool("replaced", replaced))
	return nil
}

func (h *Host) UnregisterChannelProvider(id string) {
	h.mu.Lock()
	_, ok := h.providers[id]
	delete(h.providers, id)
	h.mu.Unlock()

	if ok {
		h.log.Info("Channel provider unregistered", slog.String("id", id))
	}
}

func (h *Host) Provider(id string) (ports.ChannelProvider, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	p, ok := h.providers[id]
	return p, ok
}

// Providers lists registered provider ids in order.
func (h *Host) Providers() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]string, 0, len(h.providers))
	for id := range h.providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (h *Host) IRCConfig() config.IRC {
	if h.config == nil {
		return config.IRC{}
	}
	if cfg := h.config.Get(); cfg != nil {
		return cfg.IRC
	}
	return config.IRC{}
}

func (h *Host) Emit(_ context.Context, event string, payload any) {
	ev := Event{
		ID:      uuid.NewString(),
		Name:    event,
		Time:    time.Now().UTC(),
		Payload: payload,
	}
	metrics.EventsEmitted.WithLabelValues(event).Inc()

	if h.hub != nil {
		if err := h.hub.Broadcast(ev); err != nil {
			h.log.Error("Failed to broadcast event", err, slog.String("event", event))
		}
	}
}

// SetEngine swaps the inference engine. nil disables inject.
func (h *Host) SetEngine(engine ports.InferenceEngine) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.engine = engine
}

// Forget drops what the engine remembers about a session.
func (h *Host) Forget(sessionID string) error {
	h.mu.RLock()
	engine := h.engine
	h.mu.RUnlock()

	if engine == nil {
		return ErrNoEngine
	}

	engine.Forget(sessionID)
	h.log.Info("Session history dropped", slog.String("session", sessionID))
	return nil
}

func (h *Host) Inject(ctx context.Context, sessionID, text string, opts ports.InjectOptions) (string, error) {
	h.mu.RLock()
	engine := h.engine
	h.mu.RUnlock()

	if engine == nil {
		return "", ErrNoEngine
	}

	start := time.Now()
	defer func() {
		metrics.InferenceDuration.Observe(time.Since(start).Seconds())
	}()

	h.log.Debug("Injecting message", slog.String("session", sessionID), slog.String("from", opts.From), slog.String("channel", opts.Channel))

	resp, err := engine.Complete(ctx, sessionID, opts.From, text, opts.Stream)
	if err != nil {
		return "", fmt.Errorf("inject %s: %w", sessionID, err)
	}
	return resp, nil
}
