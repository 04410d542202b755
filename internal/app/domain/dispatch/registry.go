package dispatch

import (
	"context"
	"errors"
	"fmt"
	"ircrelay/pkg/logger"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

var (
	ErrEmptyName   = errors.New("command name is empty")
	ErrEmptyID     = errors.New("parser id is empty")
	ErrNilHandler  = errors.New("handler is nil")
	ErrNilPattern  = errors.New("parser pattern is nil")
	ErrInvalidName = errors.New("command name contains whitespace")
)

type CommandHandler func(ctx context.Context, c *CommandContext) error

type Command struct {
	Name        string
	Description string
	Handler     CommandHandler
}

type ParserHandler func(ctx context.Context, m *MessageContext) error

type Parser struct {
	ID      string
	Pattern Pattern
	Handler ParserHandler
}

// Registry holds the commands and message parsers of one relay. Changes are
// visible to the next dispatch call.
type Registry struct {
	log logger.Logger

	mu       sync.RWMutex
	commands map[string]Command
	parsers  []Parser
}

func NewRegistry(log logger.Logger) *Registry {
	return &Registry{
		log:      log,
		commands: make(map[string]Command),
	}
}

// RegisterCommand adds cmd or replaces the command with the same name.
// Names are matched case-insensitively.
func (r *Registry) RegisterCommand(cmd Command) error {
	name := strings.ToLower(strings.TrimSpace(cmd.Name))
	switch {
	case name == "":
		return ErrEmptyName
	case strings.ContainsFunc(name, isSpace):
		return fmt.Errorf("%w: %q", ErrInvalidName, cmd.Name)
	case cmd.Handler == nil:
		return fmt.Errorf("command %s: %w", name, ErrNilHandler)
	}
	cmd.Name = name

	r.mu.Lock()
	_, replaced := r.commands[name]
	r.commands[name] = cmd
	r.mu.Unlock()

	r.log.Info("Command registered", slog.String("command", name), slog.Bool("replaced", replaced))
	return nil
}

func (r *Registry) UnregisterCommand(name string) {
	name = strings.ToLower(strings.TrimSpace(name))

	r.mu.Lock()
	_, ok := r.commands[name]
	delete(r.commands, name)
	r.mu.Unlock()

	if ok {
		r.log.Info("Command unregistered", slog.String("command", name))
	}
}

// Commands returns the registered commands sorted by name.
func (r *Registry) Commands() []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cmds := make([]Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		cmds = append(cmds, cmd)
	}
	sort.Slice(cmds, func(i, j int) bool { return cmds[i].Name < cmds[j].Name })

	return cmds
}

func (r *Registry) command(name string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cmd, ok := r.commands[name]
	return cmd, ok
}

// AddParser appends p, or replaces a parser with the same id in place.
func (r *Registry) AddParser(p Parser) error {
	switch {
	case p.ID == "":
		return ErrEmptyID
	case p.Pattern == nil:
		return fmt.Errorf("parser %s: %w", p.ID, ErrNilPattern)
	case p.Handler == nil:
		return fmt.Errorf("parser %s: %w", p.ID, ErrNilHandler)
	}

	r.mu.Lock()
	replaced := false
	for i := range r.parsers {
		if r.parsers[i].ID == p.ID {
			r.parsers[i] = p
			replaced = true
			break
		}
	}
	if !replaced {
		r.parsers = append(r.parsers, p)
	}
	r.mu.Unlock()

	r.log.Info("Message parser added", slog.String("parser", p.ID), slog.Bool("replaced", replaced))
	return nil
}

func (r *Registry) RemoveParser(id string) {
	r.mu.Lock()
	removed := false
	for i := range r.parsers {
		if r.parsers[i].ID == id {
			r.parsers = append(r.parsers[:i:i], r.parsers[i+1:]...)
			removed = true
			break
		}
	}
	r.mu.Unlock()

	if removed {
		r.log.Info("Message parser removed", slog.String("parser", id))
	}
}

// Parsers returns the registered parsers in registration order.
func (r *Registry) Parsers() []Parser {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Parser, len(r.parsers))
	copy(out, r.parsers)
	return out
}

// Clear drops every command and parser.
func (r *Registry) Clear() {
	r.mu.Lock()
	commands, parsers := len(r.commands), len(r.parsers)
	r.commands = make(map[string]Command)
	r.parsers = nil
	r.mu.Unlock()

	r.log.Debug("Dispatch registry cleared", slog.Int("commands", commands), slog.Int("parsers", parsers))
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f'
}
