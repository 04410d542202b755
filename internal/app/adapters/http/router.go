package http

import (
	"context"
	"errors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"ircrelay/internal/app/adapters/http/handlers"
	"ircrelay/internal/app/adapters/http/middlewares"
	"ircrelay/internal/app/infrastructure/config"
	"ircrelay/pkg/logger"
	"log/slog"
	"net/http"
	"time"
)

type Router struct {
	router      *gin.Engine
	handlers    *handlers.Handlers
	middlewares *middlewares.Middlewares

	log logger.Logger
	cfg config.App
}

// NewRouter serves /healthz publicly. /metrics, /events and pprof require
// basic or bearer auth with the configured token, or a loopback client when
// no token is set.
func NewRouter(log logger.Logger, cfg config.App, events http.Handler, status handlers.StatusFunc) *Router {
	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	r := &Router{
		router:      gin.New(),
		handlers:    handlers.New(log, status),
		middlewares: middlewares.New(),
		log:         log,
		cfg:         cfg,
	}
	r.router.Use(gin.Recovery())

	guard := r.middlewares.LocalOnly()
	eventsGuard := guard
	if cfg.AuthToken != "" {
		guard = gin.BasicAuth(gin.Accounts{"admin": cfg.AuthToken})
		eventsGuard = r.middlewares.Auth(cfg.AuthToken)
	}

	pprofGroup := r.router.Group("/", guard)
	pprof.Register(pprofGroup)

	r.router.GET("/metrics", guard, gin.WrapH(promhttp.Handler()))
	if events != nil {
		r.router.GET("/events", eventsGuard, gin.WrapH(events))
	}
	r.router.GET("/healthz", r.handlers.Healthz)

	return r
}

func (r *Router) Handler() http.Handler {
	return r.router
}

// Run serves until ctx is done, then shuts the server down gracefully.
func (r *Router) Run(ctx context.Context) error {
	srv := r.newServer(r.cfg.ListenAddr, r.router)

	errCh := make(chan error, 1)
	go func() {
		r.log.Info("HTTP server listening", slog.String("addr", r.cfg.ListenAddr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

func (r *Router) newServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       30 * time.Second,
	}
}
