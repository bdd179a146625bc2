// internal/notify/registry.go
package notify

import (
	"fmt"
	"strings"
	"sync"
)

// Handler delivers a message to a notification target. The target is the
// channel-specific address with the channel prefix already stripped, e.g.
// a Telegram chat ID.
type Handler func(target, message string) error

// Registry routes out-of-band notices to the handler for the target's
// channel prefix (e.g. "telegram:", "slack:").
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty notification registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

// Register adds a handler for targets starting with prefix followed by a
// colon, e.g. Register("telegram", h) handles "telegram:12345".
func (r *Registry) Register(prefix string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[prefix] = handler
}

// Deliver splits the target into channel and address and calls the
// matching handler. Returns an error if no handler is registered for the
// channel.
func (r *Registry) Deliver(target, message string) error {
	channel, address, ok := strings.Cut(target, ":")
	if !ok {
		return fmt.Errorf("malformed notification target: %s", target)
	}

	r.mu.RLock()
	handler, found := r.handlers[channel]
	r.mu.RUnlock()
	if !found {
		return fmt.Errorf("no notification handler for channel: %s", channel)
	}
	return handler(address, message)
}
