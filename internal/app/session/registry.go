/*
Package session owns the process-wide mapping from user identity to live
connection handle.

Bindings are ephemeral: they exist from the moment a connection announces its
identity until that connection goes away, and they are never persisted — a
process restart starts with an empty registry. Registering an identity that
already has a binding silently replaces it (single session per identity; the
newest device steals the routing). There is no expiry: a stale binding lasts
until its connection is explicitly unregistered, and events routed to it in
the meantime are simply dropped by the dead connection.
*/
package session

import (
	"sync"

	"github.com/rs/zerolog"

	"bitcollab/internal/pkg/identity"
	"bitcollab/internal/pkg/logx"
)

// Conn is the minimal connection handle the registry routes events to.
type Conn interface {
	// Send queues the message for delivery. Implementations must not block;
	// a message that cannot be queued is dropped and reported as an error.
	Send(data []byte) error
}

// Registry is the in-memory identity-to-connection map.
type Registry struct {
	mu     sync.RWMutex
	conns  map[string]Conn
	logger zerolog.Logger
}

// NewRegistry returns an empty registry. Its lifetime is the process lifetime.
func NewRegistry() *Registry {
	return &Registry{
		conns:  make(map[string]Conn),
		logger: logx.Logger().With().Str("component", "SessionRegistry").Logger(),
	}
}

// Register stores the binding for the normalized identity, replacing any
// prior binding for that identity. The replaced handle is returned so the
// caller can observe the steal; nil when the identity was unbound.
func (reg *Registry) Register(id string, c Conn) Conn {
	norm := identity.Normalize(id)
	if norm == "" {
		return nil
	}

	reg.mu.Lock()
	replaced := reg.conns[norm]
	reg.conns[norm] = c
	reg.mu.Unlock()

	if replaced != nil && replaced != c {
		reg.logger.Info().
			Str("identity", norm).
			Msg("Session binding replaced by a newer connection.")
		return replaced
	}
	return nil
}

// Lookup returns the live connection for the normalized identity, if any.
func (reg *Registry) Lookup(id string) (Conn, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	c, ok := reg.conns[identity.Normalize(id)]
	return c, ok
}

// Unregister removes the binding whose handle matches the given connection.
// Called on disconnect. A connection whose binding was already stolen by a
// newer session leaves the newer binding untouched.
func (reg *Registry) Unregister(c Conn) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	for id, bound := range reg.conns {
		if bound == c {
			delete(reg.conns, id)
			return
		}
	}
}

// Len reports the number of live bindings.
func (reg *Registry) Len() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	return len(reg.conns)
}
