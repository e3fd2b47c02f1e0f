package dense

import (
	"fmt"
	"slices"

	"github.com/pdevine/tensor"
	"github.com/x448/float16"

	"github.com/neurosim/neurosim/ml"
)

// Tensor is a dense array. data is nil until the tensor is materialized,
// either directly (FromFloats) or by executing the op that produces it.
type Tensor struct {
	shape []int
	dtype ml.DType
	data  []float32
}

func newTensor(dtype ml.DType, shape ...int) *Tensor {
	for _, d := range shape {
		if d < 1 {
			panic(fmt.Errorf("dense: invalid dimension %d in shape %v", d, shape))
		}
	}

	return &Tensor{
		shape: slices.Clone(shape),
		dtype: dtype,
	}
}

func mul(s ...int) int {
	p := 1
	for _, d := range s {
		p *= d
	}

	return p
}

func (t *Tensor) Dim(n int) int {
	return t.shape[n]
}

func (t *Tensor) Shape() []int {
	return slices.Clone(t.shape)
}

func (t *Tensor) DType() ml.DType {
	return t.dtype
}

// Floats returns the materialized values, or nil before the producing op has
// run.
func (t *Tensor) Floats() []float32 {
	if t.data == nil {
		return nil
	}

	return slices.Clone(t.data)
}

func (t *Tensor) FromFloats(s []float32) {
	if len(s) != mul(t.shape...) {
		panic(fmt.Errorf("dense: backing length %d does not match shape %v", len(s), t.shape))
	}

	t.setFloats(s)
}

// setFloats stores a private copy of s, routed through the storage precision
// of the tensor's dtype.
func (t *Tensor) setFloats(s []float32) {
	data := slices.Clone(s)
	if t.dtype == ml.DTypeF16 {
		for i, v := range data {
			data[i] = float16.Fromfloat32(v).Float32()
		}
	}

	t.data = data
}

// dense exposes the materialized values as a *tensor.Dense for ops delegated
// to the tensor library.
func (t *Tensor) dense() *tensor.Dense {
	if t.data == nil {
		panic(fmt.Errorf("dense: tensor with shape %v has not been computed", t.shape))
	}

	return tensor.New(tensor.WithShape(t.shape...), tensor.WithBacking(t.data))
}
