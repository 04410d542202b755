package irc

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"golang.org/x/net/proxy"
	"ircrelay/internal/app/ports"
	"ircrelay/pkg/logger"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	rplWelcome        = "001"
	errNicknameInUse  = "433"
	errErroneousNick  = "432"
	defaultBackoff    = time.Second
	dialTimeout       = 30 * time.Second
	writeTimeout      = 10 * time.Second
	eventBufferLength = 256
)

var (
	ErrAlreadyConnected = errors.New("irc client already connected")
	ErrClosed           = errors.New("irc client closed")
)

var lineSanitizer = strings.NewReplacer("\r", " ", "\n", " ", "\x00", "")

type Option func(*Client)

// WithDialer replaces the TCP dialer, e.g. with a SOCKS5 proxy.
func WithDialer(d proxy.ContextDialer) Option {
	return func(c *Client) { c.dialer = d }
}

// WithBackoff sets the first reconnect delay. Later delays double up to the
// configured maximum.
func WithBackoff(d time.Duration) Option {
	return func(c *Client) { c.backoff = d }
}

func WithTLSConfig(cfg *tls.Config) Option {
	return func(c *Client) { c.tlsConfig = cfg }
}

// NewProxyDialer dials through a SOCKS5 proxy.
func NewProxyDialer(address string, port int) (proxy.ContextDialer, error) {
	d, err := proxy.SOCKS5("tcp", net.JoinHostPort(address, strconv.Itoa(port)), nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("socks5 proxy: %w", err)
	}

	cd, ok := d.(proxy.ContextDialer)
	if !ok {
		return nil, fmt.Errorf("socks5 proxy: dialer does not support contexts")
	}
	return cd, nil
}

// Client is a single IRC connection with automatic reconnects. It
// implements ports.WireClient.
type Client struct {
	log       logger.Logger
	dialer    proxy.ContextDialer
	tlsConfig *tls.Config
	backoff   time.Duration

	events chan ports.WireEvent
	quit   chan struct{}

	mu       sync.Mutex
	opts     ports.ConnectOptions
	started  bool
	quitting bool
	conn     net.Conn
	nick     string
	quitOnce sync.Once
	writeMu  sync.Mutex
}

func New(log logger.Logger, opts ...Option) *Client {
	c := &Client{
		log:     log,
		dialer:  &net.Dialer{KeepAlive: 30 * time.Second},
		backoff: defaultBackoff,
		events:  make(chan ports.WireEvent, eventBufferLength),
		quit:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect starts the connection loop and returns immediately. Dial and
// read failures surface as SocketErrorEvent followed by reconnects.
func (c *Client) Connect(ctx context.Context, opts ports.ConnectOptions) error {
	if opts.Host == "" || opts.Nick == "" {
		return fmt.Errorf("irc connect: host and nick are required")
	}
	if opts.Username == "" {
		opts.Username = opts.Nick
	}
	if opts.Gecos == "" {
		opts.Gecos = opts.Nick
	}

	c.mu.Lock()
	switch {
	case c.quitting:
		c.mu.Unlock()
		return ErrClosed
	case c.started:
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.started = true
	c.opts = opts
	c.nick = opts.Nick
	c.mu.Unlock()

	go c.run(ctx, opts)
	return nil
}

func (c *Client) Events() <-chan ports.WireEvent {
	return c.events
}

func (c *Client) Join(channel string) {
	c.write("JOIN " + sanitizeParam(channel))
}

func (c *Client) Say(target, text string) {
	c.write("PRIVMSG " + sanitizeParam(target) + " :" + lineSanitizer.Replace(text))
}

func (c *Client) ChangeNick(nick string) {
	c.write("NICK " + sanitizeParam(nick))
}

func (c *Client) CTCPResponse(target, kind string, params ...string) {
	body := strings.ToUpper(kind)
	if len(params) > 0 {
		body += " " + strings.Join(params, " ")
	}
	c.write("NOTICE " + sanitizeParam(target) + " :\x01" + lineSanitizer.Replace(body) + "\x01")
}

// Quit sends QUIT, closes the connection and stops reconnecting. The events
// channel is closed once the connection loop exits.
func (c *Client) Quit(message string) {
	c.quitOnce.Do(func() {
		c.mu.Lock()
		c.quitting = true
		started := c.started
		c.mu.Unlock()

		c.write("QUIT :" + lineSanitizer.Replace(message))
		close(c.quit)
		c.closeConn()

		if !started {
			close(c.events)
		}
	})
}

func (c *Client) run(ctx context.Context, opts ports.ConnectOptions) {
	defer c.finish()

	attempt := 0
	for {
		registered, err := c.session(ctx, opts)
		if c.stopping(ctx) {
			return
		}
		if err != nil {
			c.log.Warn("IRC connection lost", slog.String("server", opts.Host), slog.String("error", err.Error()))
			c.emit(ports.SocketErrorEvent{Err: err})
		}
		if !opts.AutoReconnect {
			return
		}

		if registered {
			attempt = 0
		}
		attempt++
		if opts.AutoReconnectMaxRetries > 0 && attempt > opts.AutoReconnectMaxRetries {
			c.log.Error("Giving up on IRC reconnects", err, slog.String("server", opts.Host), slog.Int("attempts", attempt-1))
			return
		}

		wait := c.backoffFor(attempt, opts.AutoReconnectMaxWait)
		c.emit(ports.ReconnectingEvent{Attempt: attempt, Wait: wait})

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-c.quit:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

func (c *Client) backoffFor(attempt int, maxWait time.Duration) time.Duration {
	wait := c.backoff
	for i := 1; i < attempt; i++ {
		wait *= 2
		if maxWait > 0 && wait >= maxWait {
			return maxWait
		}
	}
	if maxWait > 0 && wait > maxWait {
		return maxWait
	}
	return wait
}

func (c *Client) stopping(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.quitting
}

func (c *Client) finish() {
	select {
	case c.events <- ports.CloseEvent{}:
	default:
	}
	close(c.events)
}

// session runs one connection until it fails. registered reports whether
// the server accepted the registration.
func (c *Client) session(ctx context.Context, opts ports.ConnectOptions) (registered bool, err error) {
	conn, err := c.dial(ctx, opts)
	if err != nil {
		return false, err
	}

	c.mu.Lock()
	if c.quitting {
		c.mu.Unlock()
		_ = conn.Close()
		return false, nil
	}
	c.conn = conn
	c.nick = opts.Nick
	c.mu.Unlock()
	defer c.closeConn()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	if opts.Password != "" {
		c.write("PASS " + sanitizeParam(opts.Password))
	}
	c.write("NICK " + sanitizeParam(opts.Nick))
	c.write(fmt.Sprintf("USER %s 0 * :%s", sanitizeParam(opts.Username), lineSanitizer.Replace(opts.Gecos)))

	c.log.Info("Listening on IRC", slog.String("server", opts.Host))

	reader := bufio.NewReader(conn)
	for {
		raw, err := reader.ReadString('\n')
		if err != nil {
			return registered, err
		}

		if c.handleLine(raw) {
			registered = true
		}
	}
}

func (c *Client) dial(ctx context.Context, opts ports.ConnectOptions) (net.Conn, error) {
	dctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	addr := net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port))
	conn, err := c.dialer.DialContext(dctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	if !opts.TLS {
		return conn, nil
	}

	cfg := c.tlsConfig
	if cfg == nil {
		cfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	cfg = cfg.Clone()
	if cfg.ServerName == "" {
		cfg.ServerName = opts.Host
	}

	tlsConn := tls.Client(conn, cfg)
	if err = tlsConn.HandshakeContext(dctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("tls handshake with %s: %w", addr, err)
	}
	return tlsConn, nil
}

// handleLine reports whether the line completed registration.
func (c *Client) handleLine(raw string) bool {
	l, ok := Parse(raw)
	if !ok {
		return false
	}

	switch l.Command {
	// keep-alive
	case "PING":
		c.write("PONG :" + l.Trailing())
	case rplWelcome:
		nick := l.Param(0)
		c.mu.Lock()
		if nick != "" {
			c.nick = nick
		}
		nick = c.nick
		c.mu.Unlock()
		c.emit(ports.RegisteredEvent{Nick: nick})
		return true
	case errNicknameInUse:
		c.emit(ports.NickInUseEvent{})
	case errErroneousNick:
		// суффикс не исправит недопустимый ник, повторять NICK бессмысленно
		c.log.Error("Server rejected the nick", nil, slog.String("nick", l.Param(1)), slog.String("reason", l.Trailing()))
	case "NICK":
		c.mu.Lock()
		if strings.EqualFold(l.Nick, c.nick) {
			c.nick = l.Param(0)
		}
		c.mu.Unlock()
		c.emit(ports.NickEvent{Nick: l.Nick, NewNick: l.Param(0)})
	case "KICK":
		c.emit(ports.KickEvent{Kicked: l.Param(1), Nick: l.Nick, Channel: l.Param(0), Message: l.Param(2)})
	case "PRIVMSG", "NOTICE":
		c.handleMessage(l)
	case "ERROR":
		c.log.Warn("IRC server error", slog.String("message", l.Trailing()))
	default:
		c.log.Trace("IRC line", slog.String("line", strings.TrimSpace(raw)))
	}

	return false
}

func (c *Client) handleMessage(l *Line) {
	text := l.Param(1)

	if kind, params, ok := splitCTCP(text); ok {
		switch {
		case l.Command == "NOTICE":
			// CTCP replies to our own requests
		case kind == "ACTION":
			c.emit(ports.PrivmsgEvent{Nick: l.Nick, Ident: l.Ident, Hostname: l.Host, Target: l.Param(0), Message: params, Tags: l.Tags, Type: ports.MessageTypeAction})
		default:
			c.emit(ports.CTCPRequestEvent{Nick: l.Nick, Target: l.Param(0), Type: kind, Message: params})
		}
		return
	}

	kind := ports.MessageTypePrivmsg
	if l.Command == "NOTICE" {
		kind = ports.MessageTypeNotice
	}
	c.emit(ports.PrivmsgEvent{Nick: l.Nick, Ident: l.Ident, Hostname: l.Host, Target: l.Param(0), Message: text, Tags: l.Tags, Type: kind})
}

// emit blocks while the consumer is behind, unless the client is quitting.
func (c *Client) emit(ev ports.WireEvent) {
	select {
	case c.events <- ev:
	case <-c.quit:
	}
}

func (c *Client) write(line string) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		c.log.Debug("Dropping IRC line, not connected", slog.String("command", strings.SplitN(line, " ", 2)[0]))
		return
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if _, err := conn.Write([]byte(line + "\r\n")); err != nil {
		c.log.Warn("Failed to write IRC line", slog.String("error", err.Error()))
	}
}

func (c *Client) closeConn() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
}

func sanitizeParam(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\r', '\n', '\x00', ' ':
			return -1
		}
		return r
	}, s)
}
