// Package dense is the pure-Go reference backend. Tensors are dense float32
// arrays; deferred contexts record operations and execute them on Compute,
// immediate contexts execute operations inline.
package dense

import (
	"sync"

	"github.com/neurosim/neurosim/ml"
)

func init() {
	ml.RegisterBackend("dense", func() (ml.Backend, error) {
		return New(), nil
	})
}

// Backend holds the named parameter table shared by all contexts.
type Backend struct {
	mu     sync.RWMutex
	params map[string]ml.Tensor
}

func New() *Backend {
	return &Backend{
		params: make(map[string]ml.Tensor),
	}
}

func (b *Backend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	clear(b.params)
}

func (b *Backend) Get(name string) ml.Tensor {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.params[name]
}

func (b *Backend) Set(name string, t ml.Tensor) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.params[name] = t
}

func (b *Backend) NewContext() ml.Context {
	return b.NewContextSize(maxGraphNodes)
}

func (b *Backend) NewContextSize(size int) ml.Context {
	return &Context{
		b:   b,
		ops: make([]func(), 0, size),
	}
}

// Immediate runs fn with a forced-immediate context. The context lives for
// the duration of the call only and records no graph state, so interleaving
// Immediate calls with deferred contexts cannot perturb them.
func (b *Backend) Immediate(fn func(ml.Context) error) error {
	ctx := &Context{b: b, immediate: true}
	defer ctx.Close()

	return fn(ctx)
}
