package irc

import (
	"bufio"
	"context"
	"errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io"
	"ircrelay/internal/app/ports"
	"ircrelay/pkg/logger"
	"net"
	"sync"
	"testing"
	"time"
)

const testTimeout = 5 * time.Second

type pipeDialer struct {
	mu    sync.Mutex
	errs  []error
	calls int
	addrs []string
	conns chan net.Conn
}

func newPipeDialer(errs ...error) *pipeDialer {
	return &pipeDialer{errs: errs, conns: make(chan net.Conn, 4)}
}

func (d *pipeDialer) DialContext(_ context.Context, _, addr string) (net.Conn, error) {
	d.mu.Lock()
	call := d.calls
	d.calls++
	d.addrs = append(d.addrs, addr)
	d.mu.Unlock()

	if call < len(d.errs) && d.errs[call] != nil {
		return nil, d.errs[call]
	}

	client, server := net.Pipe()
	d.conns <- server
	return client, nil
}

type fakeServer struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
}

func acceptServer(t *testing.T, d *pipeDialer) *fakeServer {
	t.Helper()

	select {
	case conn := <-d.conns:
		t.Cleanup(func() { _ = conn.Close() })
		return &fakeServer{t: t, conn: conn, r: bufio.NewReader(conn)}
	case <-time.After(testTimeout):
		t.Fatal("client never dialed")
	}
	return nil
}

func (s *fakeServer) expect(line string) {
	s.t.Helper()

	_ = s.conn.SetReadDeadline(time.Now().Add(testTimeout))
	got, err := s.r.ReadString('\n')
	require.NoError(s.t, err)
	assert.Equal(s.t, line+"\r\n", got)
}

func (s *fakeServer) send(line string) {
	s.t.Helper()

	_ = s.conn.SetWriteDeadline(time.Now().Add(testTimeout))
	_, err := io.WriteString(s.conn, line+"\r\n")
	require.NoError(s.t, err)
}

func nextEvent(t *testing.T, c *Client) ports.WireEvent {
	t.Helper()

	select {
	case ev, ok := <-c.Events():
		require.True(t, ok, "events channel closed")
		return ev
	case <-time.After(testTimeout):
		t.Fatal("no event")
	}
	return nil
}

func expectClosed(t *testing.T, c *Client) {
	t.Helper()

	deadline := time.After(testTimeout)
	for {
		select {
		case _, ok := <-c.Events():
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("events channel not closed")
		}
	}
}

func testOptions() ports.ConnectOptions {
	return ports.ConnectOptions{
		Host:     "irc.test",
		Port:     6667,
		Nick:     "wopr",
		Username: "joshua",
		Gecos:    "WOPR IRC Bot",
		Password: "cpe1704tks",
	}
}

func TestClient_Session(t *testing.T) {
	d := newPipeDialer()
	c := New(logger.NewNop(), WithDialer(d))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, c.Connect(ctx, testOptions()))

	srv := acceptServer(t, d)
	srv.expect("PASS cpe1704tks")
	srv.expect("NICK wopr")
	srv.expect("USER joshua 0 * :WOPR IRC Bot")
	assert.Equal(t, []string{"irc.test:6667"}, d.addrs)

	srv.send(":irc.test 001 wopr :Welcome to the network")
	assert.Equal(t, ports.RegisteredEvent{Nick: "wopr"}, nextEvent(t, c))

	srv.send("PING :irc.test")
	srv.expect("PONG :irc.test")

	srv.send("@id=42 :alice!al@host.example PRIVMSG #test :hello wopr")
	assert.Equal(t, ports.PrivmsgEvent{
		Nick: "alice", Ident: "al", Hostname: "host.example", Target: "#test",
		Message: "hello wopr", Tags: map[string]string{"id": "42"}, Type: ports.MessageTypePrivmsg,
	}, nextEvent(t, c))

	srv.send(":alice!al@host.example PRIVMSG wopr :\x01VERSION\x01")
	assert.Equal(t, ports.CTCPRequestEvent{Nick: "alice", Target: "wopr", Type: "VERSION"}, nextEvent(t, c))

	srv.send(":alice!al@host.example PRIVMSG wopr :\x01PING 1234\x01")
	assert.Equal(t, ports.CTCPRequestEvent{Nick: "alice", Target: "wopr", Type: "PING", Message: "1234"}, nextEvent(t, c))

	srv.send(":alice!al@host.example PRIVMSG #test :\x01ACTION waves\x01")
	ev := nextEvent(t, c).(ports.PrivmsgEvent)
	assert.Equal(t, ports.MessageTypeAction, ev.Type)
	assert.Equal(t, "waves", ev.Message)

	srv.send(":alice!al@host.example NOTICE wopr :\x01VERSION irssi\x01")
	srv.send(":NickServ!s@services NOTICE wopr :please identify")
	ev = nextEvent(t, c).(ports.PrivmsgEvent)
	assert.Equal(t, ports.MessageTypeNotice, ev.Type)
	assert.Equal(t, "NickServ", ev.Nick)

	srv.send(":op!o@h KICK #test wopr :behave")
	assert.Equal(t, ports.KickEvent{Kicked: "wopr", Nick: "op", Channel: "#test", Message: "behave"}, nextEvent(t, c))

	srv.send(":irc.test 433 * wopr :Nickname is already in use")
	assert.Equal(t, ports.NickInUseEvent{}, nextEvent(t, c))

	// an erroneous nick is logged only, so the next event is the NICK below
	srv.send(":irc.test 432 * w@pr :Erroneous nickname")
	srv.send(":wopr!joshua@h NICK :wopr_7")
	assert.Equal(t, ports.NickEvent{Nick: "wopr", NewNick: "wopr_7"}, nextEvent(t, c))

	go c.Join("#test")
	srv.expect("JOIN #test")

	go c.Say("#test", "line one\r\nline two")
	srv.expect("PRIVMSG #test :line one  line two")

	go c.CTCPResponse("alice", "version", "WOPR 1.0")
	srv.expect("NOTICE alice :\x01VERSION WOPR 1.0\x01")

	go c.ChangeNick("wopr_1")
	srv.expect("NICK wopr_1")

	go c.Quit("bye")
	srv.expect("QUIT :bye")

	expectClosed(t, c)
}

func TestClient_ReconnectGivesUp(t *testing.T) {
	refused := errors.New("connection refused")
	d := newPipeDialer(refused, refused, refused)
	c := New(logger.NewNop(), WithDialer(d), WithBackoff(time.Millisecond))

	opts := testOptions()
	opts.AutoReconnect = true
	opts.AutoReconnectMaxRetries = 2

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, c.Connect(ctx, opts))

	assert.ErrorIs(t, nextEvent(t, c).(ports.SocketErrorEvent).Err, refused)
	assert.Equal(t, ports.ReconnectingEvent{Attempt: 1, Wait: time.Millisecond}, nextEvent(t, c))
	assert.ErrorIs(t, nextEvent(t, c).(ports.SocketErrorEvent).Err, refused)
	assert.Equal(t, ports.ReconnectingEvent{Attempt: 2, Wait: 2 * time.Millisecond}, nextEvent(t, c))
	assert.ErrorIs(t, nextEvent(t, c).(ports.SocketErrorEvent).Err, refused)
	assert.Equal(t, ports.CloseEvent{}, nextEvent(t, c))
	expectClosed(t, c)
}

func TestClient_ReconnectsAfterDrop(t *testing.T) {
	d := newPipeDialer()
	c := New(logger.NewNop(), WithDialer(d), WithBackoff(time.Millisecond))

	opts := testOptions()
	opts.Password = ""
	opts.AutoReconnect = true

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, c.Connect(ctx, opts))

	first := acceptServer(t, d)
	first.expect("NICK wopr")
	first.expect("USER joshua 0 * :WOPR IRC Bot")
	require.NoError(t, first.conn.Close())

	_, isErr := nextEvent(t, c).(ports.SocketErrorEvent)
	assert.True(t, isErr)
	assert.Equal(t, ports.ReconnectingEvent{Attempt: 1, Wait: time.Millisecond}, nextEvent(t, c))

	second := acceptServer(t, d)
	second.expect("NICK wopr")
	second.expect("USER joshua 0 * :WOPR IRC Bot")

	go c.Quit("bye")
	second.expect("QUIT :bye")
	expectClosed(t, c)
}

func TestClient_NoReconnect(t *testing.T) {
	d := newPipeDialer(errors.New("no route to host"))
	c := New(logger.NewNop(), WithDialer(d))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, c.Connect(ctx, testOptions()))

	_, isErr := nextEvent(t, c).(ports.SocketErrorEvent)
	assert.True(t, isErr)
	assert.Equal(t, ports.CloseEvent{}, nextEvent(t, c))
	expectClosed(t, c)
}

func TestClient_ConnectErrors(t *testing.T) {
	c := New(logger.NewNop(), WithDialer(newPipeDialer()))

	assert.Error(t, c.Connect(context.Background(), ports.ConnectOptions{Nick: "wopr"}))
	assert.Error(t, c.Connect(context.Background(), ports.ConnectOptions{Host: "irc.test"}))

	c.Quit("never connected")
	c.Quit("twice")
	assert.ErrorIs(t, c.Connect(context.Background(), testOptions()), ErrClosed)
	expectClosed(t, c)
}

func TestClient_WritesBeforeConnectAreDropped(t *testing.T) {
	c := New(logger.NewNop(), WithDialer(newPipeDialer()))

	assert.NotPanics(t, func() {
		c.Say("#test", "hello")
		c.Join("#test")
	})
}

func TestClient_Backoff(t *testing.T) {
	c := New(logger.NewNop())

	tests := []struct {
		attempt int
		maxWait time.Duration
		want    time.Duration
	}{
		{1, 5 * time.Second, time.Second},
		{2, 5 * time.Second, 2 * time.Second},
		{3, 5 * time.Second, 4 * time.Second},
		{4, 5 * time.Second, 5 * time.Second},
		{30, 5 * time.Second, 5 * time.Second},
		{4, 0, 8 * time.Second},
		{1, 500 * time.Millisecond, 500 * time.Millisecond},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, c.backoffFor(tt.attempt, tt.maxWait), "attempt %d", tt.attempt)
	}
}

func TestSanitizeParam(t *testing.T) {
	assert.Equal(t, "#testQUIT", sanitizeParam("#test\r\nQUIT"))
	assert.Equal(t, "wopr", sanitizeParam("wo pr"))
}
