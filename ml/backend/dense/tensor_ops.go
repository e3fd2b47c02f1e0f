package dense

import (
	"fmt"
	"math"
	"slices"

	"github.com/pdevine/tensor"

	"github.com/neurosim/neurosim/ml"
)

func ctxOf(ctx ml.Context) *Context {
	return ctx.(*Context)
}

// elementwise validates shapes at record time and schedules fn over the
// operands. t2 may be a 1-D tensor matching the trailing dimension of t, in
// which case it is broadcast.
func (t *Tensor) elementwise(ctx ml.Context, t2 ml.Tensor, fn func(a, b float32) float32) ml.Tensor {
	u := t2.(*Tensor)

	broadcast := false
	if !slices.Equal(t.shape, u.shape) {
		if len(u.shape) != 1 || u.shape[0] != t.shape[len(t.shape)-1] {
			panic(fmt.Errorf("dense: shape mismatch %v vs %v", t.shape, u.shape))
		}
		broadcast = true
	}

	out := newTensor(t.dtype, t.shape...)
	ctxOf(ctx).record(func() {
		a, b := t.mustData(), u.mustData()
		s := make([]float32, len(a))
		if broadcast {
			n := len(b)
			for i := range a {
				s[i] = fn(a[i], b[i%n])
			}
		} else {
			for i := range a {
				s[i] = fn(a[i], b[i])
			}
		}
		out.setFloats(s)
	})

	return out
}

func (t *Tensor) mustData() []float32 {
	if t.data == nil {
		panic(fmt.Errorf("dense: operand with shape %v has not been computed", t.shape))
	}

	return t.data
}

func (t *Tensor) Add(ctx ml.Context, t2 ml.Tensor) ml.Tensor {
	return t.elementwise(ctx, t2, func(a, b float32) float32 { return a + b })
}

func (t *Tensor) Sub(ctx ml.Context, t2 ml.Tensor) ml.Tensor {
	return t.elementwise(ctx, t2, func(a, b float32) float32 { return a - b })
}

func (t *Tensor) Mul(ctx ml.Context, t2 ml.Tensor) ml.Tensor {
	return t.elementwise(ctx, t2, func(a, b float32) float32 { return a * b })
}

// Mulmat multiplies (m, k) by (k, n), delegated to the tensor library.
func (t *Tensor) Mulmat(ctx ml.Context, t2 ml.Tensor) ml.Tensor {
	u := t2.(*Tensor)
	if len(t.shape) != 2 || len(u.shape) != 2 {
		panic(fmt.Errorf("dense: mulmat requires matrices, got %v and %v", t.shape, u.shape))
	}
	if t.shape[1] != u.shape[0] {
		panic(fmt.Errorf("dense: mulmat inner dimensions differ, %v vs %v", t.shape, u.shape))
	}

	out := newTensor(t.dtype, t.shape[0], u.shape[1])
	ctxOf(ctx).record(func() {
		prod, err := tensor.MatMul(t.dense(), u.dense())
		if err != nil {
			panic(fmt.Errorf("dense: mulmat: %w", err))
		}
		out.setFloats(prod.Data().([]float32))
	})

	return out
}

func (t *Tensor) Scale(ctx ml.Context, s float64) ml.Tensor {
	return t.apply(ctx, func(v float32) float32 { return float32(float64(v) * s) })
}

func (t *Tensor) Tanh(ctx ml.Context) ml.Tensor {
	return t.apply(ctx, func(v float32) float32 { return float32(math.Tanh(float64(v))) })
}

func (t *Tensor) Sigmoid(ctx ml.Context) ml.Tensor {
	return t.apply(ctx, func(v float32) float32 { return float32(1 / (1 + math.Exp(-float64(v)))) })
}

func (t *Tensor) RELU(ctx ml.Context) ml.Tensor {
	return t.apply(ctx, func(v float32) float32 { return max(v, 0) })
}

func (t *Tensor) apply(ctx ml.Context, fn func(float32) float32) ml.Tensor {
	out := newTensor(t.dtype, t.shape...)
	ctxOf(ctx).record(func() {
		a := t.mustData()
		s := make([]float32, len(a))
		for i := range a {
			s[i] = fn(a[i])
		}
		out.setFloats(s)
	})

	return out
}

func (t *Tensor) Reshape(ctx ml.Context, shape ...int) ml.Tensor {
	if mul(shape...) != mul(t.shape...) {
		panic(fmt.Errorf("dense: cannot reshape %v to %v", t.shape, shape))
	}

	out := newTensor(t.dtype, shape...)
	ctxOf(ctx).record(func() {
		out.setFloats(t.mustData())
	})

	return out
}

// Copy writes this tensor's values into t2 and returns t2.
func (t *Tensor) Copy(ctx ml.Context, t2 ml.Tensor) ml.Tensor {
	u := t2.(*Tensor)
	if mul(t.shape...) != mul(u.shape...) {
		panic(fmt.Errorf("dense: cannot copy %v into %v", t.shape, u.shape))
	}

	ctxOf(ctx).record(func() {
		u.setFloats(t.mustData())
	})

	return t2
}

func (t *Tensor) Duplicate(ctx ml.Context) ml.Tensor {
	out := newTensor(t.dtype, t.shape...)
	ctxOf(ctx).record(func() {
		out.setFloats(t.mustData())
	})

	return out
}
