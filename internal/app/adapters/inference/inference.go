package inference

import (
	"context"
	"errors"
	"fmt"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"ircrelay/internal/app/domain/dispatch"
	"ircrelay/internal/app/infrastructure/config"
	"ircrelay/internal/app/ports"
	"ircrelay/pkg/logger"
	"log/slog"
	"sync"
)

var (
	ErrNotConfigured = errors.New("inference is not configured")
	ErrEmptyResponse = errors.New("model returned no choices")
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one remembered message of a session.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Engine answers session turns with an OpenAI-compatible chat completion
// endpoint, keeping a bounded history per session.
type Engine struct {
	log          logger.Logger
	client       openai.Client
	model        string
	systemPrompt string
	historySize  int
	history      ports.StorePort[[]Turn]

	mu       sync.Mutex
	sessions map[string]*sessionLock
}

// New returns ErrNotConfigured when no model is set or neither an API key
// nor a custom base URL is given.
func New(log logger.Logger, cfg config.Inference, history ports.StorePort[[]Turn], opts ...option.RequestOption) (*Engine, error) {
	if cfg.Model == "" || (cfg.APIKey == "" && cfg.BaseURL == "") {
		return nil, ErrNotConfigured
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	reqOpts = append(reqOpts, opts...)

	return &Engine{
		log:          log,
		client:       openai.NewClient(reqOpts...),
		model:        cfg.Model,
		systemPrompt: cfg.SystemPrompt,
		historySize:  cfg.HistorySize,
		history:      history,
		sessions:     make(map[string]*sessionLock),
	}, nil
}

// Complete streams deltas to stream, if set, and returns the full reply.
// Turns of one session are serialized.
func (e *Engine) Complete(ctx context.Context, sessionID, from, text string, stream dispatch.Sink) (string, error) {
	unlock := e.lockSession(sessionID)
	defer unlock()

	past := e.past(sessionID)
	user := Turn{Role: RoleUser, Content: text}
	if from != "" {
		user.Content = from + ": " + text
	}

	s := e.client.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(e.model),
		Messages: e.messages(past, user),
	})
	defer s.Close()

	acc := openai.ChatCompletionAccumulator{}
	for s.Next() {
		chunk := s.Current()
		acc.AddChunk(chunk)

		if stream == nil || len(chunk.Choices) == 0 {
			continue
		}
		if delta := chunk.Choices[0].Delta.Content; delta != "" {
			if err := stream.Emit(ctx, delta); err != nil {
				e.log.Warn("Failed to stream delta", slog.String("session", sessionID), slog.String("error", err.Error()))
			}
		}
	}
	if err := s.Err(); err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(acc.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	reply := acc.Choices[0].Message.Content
	e.remember(sessionID, past, user, Turn{Role: RoleAssistant, Content: reply})

	e.log.Debug("Completion finished", slog.String("session", sessionID), slog.Int("history", len(past)+2), slog.Int("reply_bytes", len(reply)))
	return reply, nil
}

// Forget drops the history of a session.
func (e *Engine) Forget(sessionID string) {
	if e.history != nil {
		e.history.Delete(sessionID)
	}
}

func (e *Engine) messages(past []Turn, user Turn) []openai.ChatCompletionMessageParamUnion {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(past)+2)
	if e.systemPrompt != "" {
		msgs = append(msgs, openai.SystemMessage(e.systemPrompt))
	}

	for _, t := range append(past, user) {
		switch t.Role {
		case RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(t.Content))
		default:
			msgs = append(msgs, openai.UserMessage(t.Content))
		}
	}
	return msgs
}

func (e *Engine) past(sessionID string) []Turn {
	if e.history == nil {
		return nil
	}

	turns, _ := e.history.Get(sessionID)
	return append([]Turn(nil), turns...)
}

func (e *Engine) remember(sessionID string, past []Turn, turns ...Turn) {
	if e.history == nil || e.historySize <= 0 {
		return
	}

	all := append(past, turns...)
	if len(all) > e.historySize {
		all = all[len(all)-e.historySize:]
	}
	e.history.Set(sessionID, all)
}

type sessionLock struct {
	mu   sync.Mutex
	refs int // guarded by Engine.mu
}

// lockSession serializes turns of one session. The lock entry lives only
// while some turn holds or waits for it.
func (e *Engine) lockSession(sessionID string) (unlock func()) {
	e.mu.Lock()
	l, ok := e.sessions[sessionID]
	if !ok {
		l = &sessionLock{}
		e.sessions[sessionID] = l
	}
	l.refs++
	e.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		e.mu.Lock()
		defer e.mu.Unlock()

		if l.refs--; l.refs == 0 {
			delete(e.sessions, sessionID)
		}
	}
}
