package model

import "slices"

// Activation selects the neuron nonlinearity of an ensemble.
type Activation int

const (
	ReLU Activation = iota
	Tanh
	Sigmoid
)

// Node is an input or passthrough signal. Nodes with a value function emit
// fn(t) each step; nodes without one emit the sum of their filtered incoming
// connections.
type Node struct {
	label string
	dim   int
	fn    func(t float64) []float32
}

func (n *Node) Label() string { return n.label }
func (n *Node) Size() int     { return n.dim }

// Value evaluates the node's value function at simulated time t, or nil for
// passthrough nodes.
func (n *Node) Value(t float64) []float32 {
	if n.fn == nil {
		return nil
	}

	return n.fn(t)
}

// HasInput reports whether this node is an input the feed must populate.
func (n *Node) HasInput() bool { return n.fn != nil }

// Ensemble is a population of neurons encoding a dim-dimensional signal.
// Its output is the vector of neuron activities.
type Ensemble struct {
	label   string
	neurons int
	dim     int

	// encoders has shape (dim, neurons); bias has shape (neurons)
	encoders []float32
	bias     []float32

	activation Activation

	pop *Neurons
}

func (e *Ensemble) Label() string { return e.label }
func (e *Ensemble) Size() int     { return e.neurons }

// Dimensions is the size of the encoded input space.
func (e *Ensemble) Dimensions() int { return e.dim }

func (e *Ensemble) Activation() Activation { return e.activation }

func (e *Ensemble) SetActivation(a Activation) { e.activation = a }

// Encoders returns the (dim, neurons) encoder matrix.
func (e *Ensemble) Encoders() []float32 { return slices.Clone(e.encoders) }

// Bias returns the per-neuron bias vector.
func (e *Ensemble) Bias() []float32 { return slices.Clone(e.bias) }

// Neurons returns the neuron population view of this ensemble.
func (e *Ensemble) Neurons() *Neurons { return e.pop }

// Neurons is the neuron population of an ensemble. It exists as a separate
// object so biases can be probed and logged independently of the encoders.
type Neurons struct {
	ensemble *Ensemble
}

func (p *Neurons) Label() string { return p.ensemble.label + ".neurons" }
func (p *Neurons) Size() int     { return p.ensemble.neurons }

// Ensemble returns the owning ensemble.
func (p *Neurons) Ensemble() *Ensemble { return p.ensemble }

// Connection is a weighted projection from pre's output to post's input,
// optionally filtered by a first-order lowpass synapse.
type Connection struct {
	label string
	pre   Object
	post  Object

	// weights has shape (pre.Size, post input size)
	weights []float32

	// tau is the lowpass time constant in seconds; zero means unfiltered
	tau float64
}

func (c *Connection) Label() string { return c.label }

// Size is the dimensionality of the connection's (post-weight) output.
func (c *Connection) Size() int { return inputSize(c.post) }

func (c *Connection) Pre() Object  { return c.pre }
func (c *Connection) Post() Object { return c.post }

// Weights returns the (pre.Size, post input size) weight matrix.
func (c *Connection) Weights() []float32 { return slices.Clone(c.weights) }

// Synapse returns the lowpass time constant, zero when unfiltered.
func (c *Connection) Synapse() float64 { return c.tau }

// ConnectionOption configures a connection at declaration time.
type ConnectionOption func(*Connection)

// WithWeights supplies the weight matrix in row-major (pre.Size, post input
// size) order.
func WithWeights(w []float32) ConnectionOption {
	return func(c *Connection) {
		c.weights = slices.Clone(w)
	}
}

// WithSynapse attaches a first-order lowpass filter with time constant tau.
func WithSynapse(tau float64) ConnectionOption {
	return func(c *Connection) {
		c.tau = tau
	}
}

// WithLabel overrides the generated connection label.
func WithLabel(label string) ConnectionOption {
	return func(c *Connection) {
		c.label = label
	}
}

// Probe is a declared observation point. It references its target weakly and
// never mutates it.
type Probe struct {
	id     int
	label  string
	target Object
	dim    int
}

func (p *Probe) Label() string  { return p.label }
func (p *Probe) Target() Object { return p.target }

// Size is the dimensionality of the probed signal.
func (p *Probe) Size() int { return p.dim }
