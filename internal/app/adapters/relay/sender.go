package relay

import (
	"context"
	"fmt"
	"ircrelay/internal/app/adapters/metrics"
	"ircrelay/internal/app/domain/dispatch"
	"ircrelay/internal/app/domain/message"
	"strings"
)

// Send splits content to fit the line limit and queues every non-blank chunk
// through the flood pacer. Every outbound message goes through Send so that
// chunks for a channel keep their order.
func (r *Relay) Send(ctx context.Context, channel, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	client, p, cfg := r.client, r.pacer, r.cfg
	r.mu.Unlock()

	if client == nil || cfg == nil {
		return fmt.Errorf("send to %s: %w", channel, ErrClientNotInitialized)
	}

	budget := cfg.MaxMessageLength - ProtocolOverhead
	for _, chunk := range message.Split(content, budget) {
		if strings.TrimSpace(chunk) == "" {
			continue
		}

		say := func() { r.say(channel, chunk) }
		if p == nil {
			say()
			continue
		}
		p.Enqueue(say)
	}

	return nil
}

// say resolves the client when the chunk is actually written, so a chunk
// that outlives its connection is dropped.
func (r *Relay) say(channel, text string) {
	r.mu.Lock()
	client, cfg := r.client, r.cfg
	r.mu.Unlock()

	if client == nil || cfg == nil {
		r.log.Debug("Dropping outbound chunk, connection is gone")
		return
	}

	client.Say(channel, text)
	metrics.ChunksSent.WithLabelValues(cfg.Server).Inc()
}

func (r *Relay) sink(channel string) dispatch.Sink {
	return dispatch.SinkFunc(func(ctx context.Context, text string) error {
		return r.Send(ctx, channel, text)
	})
}
