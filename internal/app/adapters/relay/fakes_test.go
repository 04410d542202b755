package relay

import (
	"context"
	"ircrelay/internal/app/domain/dispatch"
	"ircrelay/internal/app/infrastructure/config"
	"ircrelay/internal/app/ports"
	"strings"
	"sync"
)

type said struct {
	Target string
	Text   string
}

type ctcpReply struct {
	Target string
	Kind   string
	Params []string
}

type fakeWire struct {
	mu       sync.Mutex
	events   chan ports.WireEvent
	connects []ports.ConnectOptions
	joins    []string
	says     []said
	quits    []string
	nicks    []string
	ctcp     []ctcpReply
	connErr  error
}

func newFakeWire() *fakeWire {
	return &fakeWire{events: make(chan ports.WireEvent)}
}

func (w *fakeWire) Connect(_ context.Context, opts ports.ConnectOptions) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.connects = append(w.connects, opts)
	return w.connErr
}

func (w *fakeWire) Events() <-chan ports.WireEvent { return w.events }

func (w *fakeWire) Join(channel string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.joins = append(w.joins, channel)
}

func (w *fakeWire) Say(target, text string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.says = append(w.says, said{Target: target, Text: text})
}

func (w *fakeWire) Quit(message string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.quits = append(w.quits, message)
}

func (w *fakeWire) ChangeNick(nick string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nicks = append(w.nicks, nick)
}

func (w *fakeWire) CTCPResponse(target, kind string, params ...string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ctcp = append(w.ctcp, ctcpReply{Target: target, Kind: kind, Params: params})
}

func (w *fakeWire) Joins() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.joins...)
}

func (w *fakeWire) Says() []said {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]said(nil), w.says...)
}

func (w *fakeWire) Texts() []string {
	var out []string
	for _, s := range w.Says() {
		out = append(out, s.Text)
	}
	return out
}

type emitted struct {
	Event   string
	Payload any
}

type injected struct {
	SessionID string
	Text      string
	Opts      ports.InjectOptions
}

type fakeHost struct {
	mu        sync.Mutex
	cfg       config.IRC
	schemas   map[string]ports.ConfigSchema
	providers map[string]ports.ChannelProvider
	emitted   []emitted
	injected  []injected

	inject func(ctx context.Context, sessionID, text string, opts ports.InjectOptions) (string, error)
}

func newFakeHost(cfg config.IRC) *fakeHost {
	return &fakeHost{
		cfg:       cfg,
		schemas:   make(map[string]ports.ConfigSchema),
		providers: make(map[string]ports.ChannelProvider),
	}
}

func (h *fakeHost) RegisterConfigSchema(id string, schema ports.ConfigSchema) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.schemas[id] = schema
	return nil
}

func (h *fakeHost) UnregisterConfigSchema(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.schemas, id)
}

func (h *fakeHost) RegisterChannelProvider(p ports.ChannelProvider) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.providers[p.ID()] = p
	return nil
}

func (h *fakeHost) UnregisterChannelProvider(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.providers, id)
}

func (h *fakeHost) IRCConfig() config.IRC { return h.cfg }

func (h *fakeHost) Emit(_ context.Context, event string, payload any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.emitted = append(h.emitted, emitted{Event: event, Payload: payload})
}

func (h *fakeHost) Inject(ctx context.Context, sessionID, text string, opts ports.InjectOptions) (string, error) {
	h.mu.Lock()
	h.injected = append(h.injected, injected{SessionID: sessionID, Text: text, Opts: opts})
	inject := h.inject
	h.mu.Unlock()

	if inject == nil {
		return "", nil
	}
	return inject(ctx, sessionID, text, opts)
}

func (h *fakeHost) Injected() []injected {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]injected(nil), h.injected...)
}

func (h *fakeHost) Emitted() []emitted {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]emitted(nil), h.emitted...)
}

func streamAll(ctx context.Context, sink dispatch.Sink, chunks ...string) error {
	for _, c := range chunks {
		if err := sink.Emit(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

func echoCommand(name string) dispatch.Command {
	return dispatch.Command{
		Name: name,
		Handler: func(ctx context.Context, c *dispatch.CommandContext) error {
			return c.Reply(ctx, strings.Join(c.Args, " "))
		},
	}
}
