package transport

import (
	"fmt"
	"sync"
)

// Factory builds a fresh Transport for one connection attempt. The
// registry holds a factory per scheme rather than a shared Transport
// value because a Transport carries per-connection state (its session,
// its busy/cancelled flags).
type Factory func() Transport

var (
	registry = map[string]Factory{}
	mtx      sync.Mutex
)

// Register installs f as the factory for scheme, overwriting any
// previous registration.
func Register(scheme string, f Factory) {
	mtx.Lock()
	defer mtx.Unlock()
	registry[scheme] = f
}

// Unregister removes scheme's factory, if any.
func Unregister(scheme string) {
	mtx.Lock()
	defer mtx.Unlock()
	delete(registry, scheme)
}

// Get returns a fresh Transport for scheme via its registered factory.
func Get(scheme string) (Transport, error) {
	mtx.Lock()
	f, ok := registry[scheme]
	mtx.Unlock()

	if !ok {
		return nil, fmt.Errorf("unsupported scheme %q", scheme)
	}
	if f == nil {
		return nil, fmt.Errorf("malformed factory for scheme %q: nil", scheme)
	}

	return f(), nil
}
