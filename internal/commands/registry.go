// Package commands holds the chat commands a plugin exposes to users, such as
// the halt and unhalt commands of the bridge.
package commands

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Invocation describes who ran a command and with what.
type Invocation struct {
	SenderID string `json:"senderId"`
	Channel  string `json:"channel,omitempty"`
	Args     string `json:"args,omitempty"`
	// Authorized is set by the transport when the host vouched for the sender.
	Authorized bool `json:"authorized,omitempty"`
}

// Reply is the text shown to the invoking user.
type Reply struct {
	Text string `json:"text"`
}

// HandlerFunc runs a command.
type HandlerFunc func(ctx context.Context, inv Invocation) (*Reply, error)

// Command is a registered chat command.
type Command struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	AcceptsArgs bool        `json:"acceptsArgs"`
	RequireAuth bool        `json:"requireAuth"`
	Handler     HandlerFunc `json:"-"`
}

// Registry maps command names to commands. Names are matched case-insensitively
// and without a leading slash.
type Registry struct {
	commands map[string]*Command
	mu       sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[string]*Command),
	}
}

// NormalizeName lowercases name and strips a leading slash.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "/"))
}

// Register adds cmd.
func (r *Registry) Register(cmd *Command) error {
	if cmd == nil || cmd.Handler == nil {
		return ErrInvalidCommand
	}
	name := NormalizeName(cmd.Name)
	if name == "" || strings.ContainsAny(name, " \t\n") {
		return fmt.Errorf("%w: bad name %q", ErrInvalidCommand, cmd.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.commands[name]; exists {
		return fmt.Errorf("%w: %s", ErrCommandExists, name)
	}
	cmd.Name = name
	r.commands[name] = cmd
	return nil
}

// Unregister removes the command registered under name.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	name = NormalizeName(name)
	if _, ok := r.commands[name]; !ok {
		return false
	}
	delete(r.commands, name)
	return true
}

// Get returns the command registered under name.
func (r *Registry) Get(name string) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[NormalizeName(name)]
	return cmd, ok
}

// List returns all commands sorted by name.
func (r *Registry) List() []*Command {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		result = append(result, cmd)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// Execute runs the command registered under name.
func (r *Registry) Execute(ctx context.Context, name string, inv Invocation) (*Reply, error) {
	cmd, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCommandNotFound, NormalizeName(name))
	}
	if cmd.RequireAuth && !inv.Authorized {
		return nil, fmt.Errorf("%w: /%s", ErrUnauthorized, cmd.Name)
	}
	inv.Args = strings.TrimSpace(inv.Args)
	if !cmd.AcceptsArgs && inv.Args != "" {
		return nil, fmt.Errorf("%w: /%s", ErrUnexpectedArgs, cmd.Name)
	}

	reply, err := cmd.Handler(ctx, inv)
	if err != nil {
		return nil, fmt.Errorf("command %s: %w", cmd.Name, err)
	}
	if reply == nil {
		reply = &Reply{}
	}
	return reply, nil
}

// ParseText splits chat text such as "/halt now" into a command name and its
// arguments. It returns false when text is not a slash command.
func ParseText(text string) (name, args string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") || len(text) == 1 {
		return "", "", false
	}
	body := text[1:]
	if i := strings.IndexAny(body, " \t\n"); i >= 0 {
		return NormalizeName(body[:i]), strings.TrimSpace(body[i+1:]), true
	}
	return NormalizeName(body), "", true
}
