package ml

import "fmt"

// Backend represents a tensor execution backend.
type Backend interface {
	// Close frees all memory associated with this backend
	Close()

	// Get returns the named parameter tensor, or nil if it does not exist
	Get(name string) Tensor

	// Set registers a named parameter tensor. Parameters are shared by all
	// contexts created from this backend.
	Set(name string, t Tensor)

	NewContext() Context
	NewContextSize(size int) Context

	// Immediate runs fn with a context in which every operation executes
	// before it returns. The context is scoped to the call: it is created on
	// entry and released on every exit path, and it shares no graph-building
	// state with contexts obtained from NewContext.
	Immediate(fn func(Context) error) error
}

var backends = make(map[string]func() (Backend, error))

// RegisterBackend registers a backend factory function.
func RegisterBackend(name string, f func() (Backend, error)) {
	if _, ok := backends[name]; ok {
		panic("backend: backend already registered")
	}

	backends[name] = f
}

// NewBackend creates a new backend instance by registered name. The empty
// name selects the dense reference backend.
func NewBackend(name string) (Backend, error) {
	if name == "" {
		name = "dense"
	}

	if backend, ok := backends[name]; ok {
		return backend()
	}

	return nil, fmt.Errorf("unsupported backend %q", name)
}
