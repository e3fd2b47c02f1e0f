package dense

import (
	"fmt"

	"github.com/neurosim/neurosim/logutil"
	"github.com/neurosim/neurosim/ml"
)

// maxGraphNodes bounds the default op capacity of a deferred context.
const maxGraphNodes = 8192

// Context records tensor operations. In deferred mode recorded ops run once
// Compute is called; in immediate mode each op runs as it is recorded.
type Context struct {
	b *Backend

	ops []func()

	immediate bool

	// batchSize is a hint only; the dense backend derives its loop bounds
	// from tensor shapes
	batchSize int
}

func (c *Context) Empty(dtype ml.DType, shape ...int) ml.Tensor {
	return newTensor(dtype, shape...)
}

func (c *Context) Zeros(dtype ml.DType, shape ...int) ml.Tensor {
	t := newTensor(dtype, shape...)
	t.setFloats(make([]float32, mul(shape...)))
	return t
}

func (c *Context) FromFloats(s []float32, shape ...int) ml.Tensor {
	if len(s) != mul(shape...) {
		panic(fmt.Errorf("dense: backing length %d does not match shape %v", len(s), shape))
	}

	t := newTensor(ml.DTypeF32, shape...)
	t.setFloats(s)
	return t
}

func (c *Context) Arange(start, stop, step float32, dtype ml.DType) ml.Tensor {
	if step <= 0 {
		panic(fmt.Errorf("dense: arange step must be positive, got %v", step))
	}

	var s []float32
	for v := start; v < stop; v += step {
		s = append(s, v)
	}

	t := newTensor(dtype, len(s))
	t.setFloats(s)
	return t
}

func (c *Context) Forward(tensors ...ml.Tensor) ml.Context {
	return c
}

func (c *Context) SetBatchSize(batchSize int) {
	c.batchSize = batchSize
}

// Compute executes the recorded graph in recording order. On an immediate
// context everything has already run and this is a no-op.
func (c *Context) Compute(tensors ...ml.Tensor) {
	if c.immediate {
		return
	}

	logutil.Trace("compute graph", "nodes", len(c.ops), "batch_size", c.batchSize)

	for _, op := range c.ops {
		op()
	}

	c.ops = c.ops[:0]
}

func (c *Context) Close() {
	if c != nil {
		c.ops = nil
	}
}

// record schedules fn, or runs it now when the context is immediate. All
// shape validation happens at record time so scheduled ops cannot fail.
func (c *Context) record(fn func()) {
	if c.immediate {
		fn()
		return
	}

	c.ops = append(c.ops, fn)
}
