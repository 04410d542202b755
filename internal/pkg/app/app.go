package app

import (
	"context"
	"errors"
	"fmt"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"ircrelay/internal/app/adapters/commands"
	"ircrelay/internal/app/adapters/host"
	router "ircrelay/internal/app/adapters/http"
	"ircrelay/internal/app/adapters/http/handlers"
	"ircrelay/internal/app/adapters/inference"
	"ircrelay/internal/app/adapters/irc"
	"ircrelay/internal/app/adapters/metrics"
	"ircrelay/internal/app/adapters/relay"
	"ircrelay/internal/app/domain/dispatch"
	"ircrelay/internal/app/infrastructure/config"
	"ircrelay/internal/app/infrastructure/storage"
	"ircrelay/internal/app/infrastructure/timers"
	"ircrelay/internal/app/ports"
	"ircrelay/pkg/logger"
	"log/slog"
	"sync"
	"time"
)

const (
	schedulerQueueSize   = 1024
	sessionCacheCapacity = 4096
	historyFlushInterval = time.Minute
)

var registerMetrics sync.Once

type App struct {
	log     logger.Logger
	manager *config.Manager
	host    *host.Host
	hub     *host.Hub
	loop    *timers.Loop
	history *storage.Cache[[]inference.Turn]
	started time.Time

	mu          sync.Mutex
	relay       *relay.Relay
	relayCancel context.CancelFunc
}

func New(configPath string) (*App, error) {
	manager, err := config.New(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg := manager.Get()

	log := logger.New(cfg.App.LogFile)
	log.SetLogLevel(cfg.App.LogLevel)
	gin.SetMode(cfg.App.GinMode)

	registerMetrics.Do(func() {
		prometheus.MustRegister(metrics.InferenceDuration)
	})

	history, err := storage.NewCache[[]inference.Turn](storage.Options{
		Capacity:      sessionCacheCapacity,
		TTL:           time.Duration(cfg.Inference.HistoryTTL) * time.Second,
		FilePath:      cfg.Inference.HistoryFile,
		FlushInterval: historyFlushInterval,
	})
	if err != nil {
		log.Error("Failed to load session history, starting empty", err, slog.String("path", cfg.Inference.HistoryFile))
		if history, err = storage.NewCache[[]inference.Turn](storage.Options{Capacity: sessionCacheCapacity}); err != nil {
			return nil, err
		}
	}

	hub := host.NewHub(logger.NewPrefixedLogger(log, "events"))

	a := &App{
		log:     log,
		manager: manager,
		hub:     hub,
		loop:    timers.NewLoop(schedulerQueueSize),
		history: history,
		started: time.Now(),
	}
	a.host = host.New(logger.NewPrefixedLogger(log, "host"), manager, nil, hub)
	a.host.SetEngine(a.newEngine(cfg.Inference))

	return a, nil
}

// Run starts the relay, the config watcher and the HTTP server, and blocks
// until ctx is done.
func (a *App) Run(ctx context.Context) error {
	if err := a.startRelay(ctx); err != nil {
		a.log.Error("Failed to start IRC relay", err)
	}

	if err := a.manager.Watch(ctx, a.log, func(cfg *config.Config) { a.reload(ctx, cfg) }); err != nil {
		a.log.Warn("Config hot reload disabled", slog.String("error", err.Error()))
	}

	errCh := make(chan error, 1)
	if addr := a.manager.Get().App.ListenAddr; addr != "" {
		r := router.NewRouter(logger.NewPrefixedLogger(a.log, "http"), a.manager.Get().App, a.hub, a.status)
		go func() { errCh <- r.Run(ctx) }()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		if runErr != nil {
			a.log.Error("HTTP server stopped", runErr)
		}
	}

	a.stopRelay()
	a.hub.Close()
	a.loop.Stop()
	if err := a.history.Close(); err != nil {
		a.log.Error("Failed to save session history", err)
	}

	a.log.Info("Stopped")
	return runErr
}

func (a *App) startRelay(ctx context.Context) error {
	cfg := a.manager.Get()

	log := a.log
	if cfg.IRC.Server != "" {
		log = logger.NewPrefixedLogger(a.log, cfg.IRC.Server)
	}

	wire, err := a.newWire(log, cfg.IRC)
	if err != nil {
		return err
	}

	r := relay.New(log, a.host, wire, dispatch.NewRegistry(log), a.loop)
	if cfg.IRC.Complete() {
		if _, err = commands.Register(r, cfg.IRC.WithDefaults().CommandPrefix, a.started, a.host); err != nil {
			return err
		}
	}

	rctx, cancel := context.WithCancel(ctx)
	if err = r.Start(rctx); err != nil {
		cancel()
		_ = r.Shutdown(ctx)
		return err
	}

	a.mu.Lock()
	a.relay, a.relayCancel = r, cancel
	a.mu.Unlock()

	return nil
}

func (a *App) stopRelay() {
	a.mu.Lock()
	r, cancel := a.relay, a.relayCancel
	a.relay, a.relayCancel = nil, nil
	a.mu.Unlock()

	if r == nil {
		return
	}
	if err := r.Shutdown(context.Background()); err != nil {
		a.log.Error("Failed to shut down IRC relay", err)
	}
	cancel()
}

// reload tears the relay down and builds a new one from cfg.
func (a *App) reload(ctx context.Context, cfg *config.Config) {
	a.log.SetLogLevel(cfg.App.LogLevel)
	a.log.Info("Restarting IRC relay with the new config")

	a.stopRelay()
	a.host.SetEngine(a.newEngine(cfg.Inference))

	if err := a.startRelay(ctx); err != nil {
		a.log.Error("Failed to restart IRC relay", err)
	}
}

func (a *App) newWire(log logger.Logger, cfg config.IRC) (ports.WireClient, error) {
	var opts []irc.Option
	if cfg.Proxy.Address != "" && cfg.Proxy.Port != 0 {
		dialer, err := irc.NewProxyDialer(cfg.Proxy.Address, cfg.Proxy.Port)
		if err != nil {
			return nil, err
		}
		opts = append(opts, irc.WithDialer(dialer))
	}

	return irc.New(log, opts...), nil
}

func (a *App) newEngine(cfg config.Inference) ports.InferenceEngine {
	engine, err := inference.New(logger.NewPrefixedLogger(a.log, "inference"), cfg, a.history)
	if errors.Is(err, inference.ErrNotConfigured) {
		a.log.Warn("Inference is not configured, messages will not be answered")
		return nil
	}
	if err != nil {
		a.log.Error("Failed to create inference engine", err)
		return nil
	}
	return engine
}

func (a *App) status() handlers.Status {
	a.mu.Lock()
	r := a.relay
	a.mu.Unlock()

	s := handlers.Status{
		State:     relay.StateShutDown.String(),
		Server:    a.manager.Get().IRC.Server,
		Providers: a.host.Providers(),
	}
	if r != nil {
		s.State = r.State().String()
		s.Nick = r.BotUsername()
	}
	return s
}
