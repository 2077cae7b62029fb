package hooks

import (
	"fmt"
	"sort"
	"sync"
)

// Registry keeps handlers per hook type, highest priority first. Handlers
// with equal priority run in registration order.
type Registry struct {
	handlers map[HookType][]*Handler
	mu       sync.RWMutex
}

// NewRegistry creates a new hook registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[HookType][]*Handler),
	}
}

// Register adds handler to hookType. IDs are unique per hook type.
func (r *Registry) Register(hookType HookType, handler *Handler) error {
	if !IsValidHookType(hookType) {
		return fmt.Errorf("%w: %s", ErrHookTypeInvalid, hookType)
	}
	if handler == nil || handler.ID == "" {
		return fmt.Errorf("%w: handler ID is required", ErrHandlerNotFound)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.handlers[hookType]
	for _, h := range list {
		if h.ID == handler.ID {
			return fmt.Errorf("%w: %s", ErrHandlerExists, handler.ID)
		}
	}

	list = append(list, handler)
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Priority > list[j].Priority
	})
	r.handlers[hookType] = list

	return nil
}

// Unregister removes a handler from hookType.
func (r *Registry) Unregister(hookType HookType, handlerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.handlers[hookType]
	for i, h := range list {
		if h.ID == handlerID {
			r.handlers[hookType] = append(list[:i:i], list[i+1:]...)
			return nil
		}
	}

	return fmt.Errorf("%w: %s", ErrHandlerNotFound, handlerID)
}

// GetHandlers returns a copy of the handlers for hookType in execution order.
func (r *Registry) GetHandlers(hookType HookType) []*Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := r.handlers[hookType]
	if len(list) == 0 {
		return nil
	}

	result := make([]*Handler, len(list))
	copy(result, list)
	return result
}

// HasHandlers returns true if any handler is registered for hookType.
func (r *Registry) HasHandlers(hookType HookType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers[hookType]) > 0
}

// Clear removes all registered handlers.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers = make(map[HookType][]*Handler)
}

// Count returns the total number of registered handlers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := 0
	for _, list := range r.handlers {
		total += len(list)
	}
	return total
}
