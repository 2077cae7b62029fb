// Package halt implements the per-recipient halt/resume state that can block
// tool execution on behalf of a chat user.
package halt

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Default command names.
const (
	DefaultHaltCommand   = "halt"
	DefaultResumeCommand = "unhalt"
)

// Gate tracks which recipients are halted. A recipient leaves the halted set
// by an explicit resume or by sending any message that is not itself a
// halt/resume command.
type Gate struct {
	halted        map[string]time.Time
	haltCommand   string
	resumeCommand string
	mu            sync.RWMutex
}

// NewGate creates a gate recognising the given command names ("/"-prefix optional).
func NewGate(haltCommand, resumeCommand string) *Gate {
	h, r := normalize(haltCommand), normalize(resumeCommand)
	if h == "" {
		h = DefaultHaltCommand
	}
	if r == "" {
		r = DefaultResumeCommand
	}
	return &Gate{
		halted:        make(map[string]time.Time),
		haltCommand:   h,
		resumeCommand: r,
	}
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "/"))
}

// HaltCommand returns the halt command name without the slash.
func (g *Gate) HaltCommand() string { return g.haltCommand }

// ResumeCommand returns the resume command name without the slash.
func (g *Gate) ResumeCommand() string { return g.resumeCommand }

// Halt puts id into the halted state. It returns false if id was already halted.
func (g *Gate) Halt(id string) bool {
	if id == "" {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.halted[id]; ok {
		return false
	}
	g.halted[id] = time.Now()
	return true
}

// Unhalt returns id to running. It returns false if id was not halted.
func (g *Gate) Unhalt(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.halted[id]; !ok {
		return false
	}
	delete(g.halted, id)
	return true
}

// IsHalted reports whether tool calls attributed to id must be blocked.
func (g *Gate) IsHalted(id string) bool {
	if id == "" {
		return false
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.halted[id]
	return ok
}

// HaltedSince returns when id was halted.
func (g *Gate) HaltedSince(id string) (time.Time, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	at, ok := g.halted[id]
	return at, ok
}

// OnMessage applies the automatic resume for an inbound message from id.
// Messages that are halt or resume commands leave the state untouched so the
// command handler sees it unchanged. It returns true if id was resumed.
func (g *Gate) OnMessage(id, content string) bool {
	if id == "" || g.IsCommand(content) {
		return false
	}
	return g.Unhalt(id)
}

// IsCommand reports whether content invokes the halt or resume command,
// e.g. "/halt" or "/unhalt please".
func (g *Gate) IsCommand(content string) bool {
	name, ok := commandName(content)
	if !ok {
		return false
	}
	return name == g.haltCommand || name == g.resumeCommand
}

// IsHaltCommand reports whether content invokes the halt command.
func (g *Gate) IsHaltCommand(content string) bool {
	name, ok := commandName(content)
	return ok && name == g.haltCommand
}

// IsResumeCommand reports whether content invokes the resume command.
func (g *Gate) IsResumeCommand(content string) bool {
	name, ok := commandName(content)
	return ok && name == g.resumeCommand
}

func commandName(content string) (string, bool) {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "/") {
		return "", false
	}
	fields := strings.Fields(content[1:])
	if len(fields) == 0 {
		return "", false
	}
	return strings.ToLower(fields[0]), true
}

// Halted returns the halted recipient ids, sorted.
func (g *Gate) Halted() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	ids := make([]string, 0, len(g.halted))
	for id := range g.halted {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
