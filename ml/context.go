// Package ml defines the interfaces between the simulator and its tensor
// execution backends.
package ml

// Context represents an execution context for tensor operations.
//
// A context obtained from Backend.NewContext is deferred: operations are
// recorded into a computation graph and only execute once Compute is called
// with the tensors whose values are needed. A context handed to the function
// passed to Backend.Immediate executes each operation before the call
// returns, and Compute on it is a no-op.
type Context interface {
	Empty(dtype DType, shape ...int) Tensor
	Zeros(dtype DType, shape ...int) Tensor
	FromFloats(s []float32, shape ...int) Tensor

	// Arange creates a 1D tensor with values within an interval [start, stop)
	// increased by step.
	Arange(start, stop, step float32, dtype DType) Tensor

	Forward(...Tensor) Context

	// SetBatchSize provides a hint on the minibatch size to optimize
	// processing. Uses heuristics if not set.
	SetBatchSize(int)

	Compute(...Tensor)

	Close()
}

// Tensor represents a multi-dimensional array with the operations the
// simulator compiles against.
type Tensor interface {
	Dim(n int) int

	Shape() []int
	DType() DType

	Floats() []float32
	FromFloats([]float32)

	Add(ctx Context, t2 Tensor) Tensor
	Sub(ctx Context, t2 Tensor) Tensor
	Mul(ctx Context, t2 Tensor) Tensor

	Mulmat(ctx Context, t2 Tensor) Tensor

	Scale(ctx Context, s float64) Tensor

	Tanh(ctx Context) Tensor
	Sigmoid(ctx Context) Tensor
	RELU(ctx Context) Tensor

	Reshape(ctx Context, shape ...int) Tensor

	Copy(ctx Context, t2 Tensor) Tensor
	Duplicate(ctx Context) Tensor
}
