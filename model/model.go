// Package model provides the modeling surface the simulator compiles:
// networks of input nodes, ensembles of neurons, and weighted connections,
// observed through probes.
package model

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
)

var (
	ErrInvalidDimension = errors.New("dimensions must be positive")
	ErrUnknownObject    = errors.New("object does not belong to this network")
)

// Object is anything a connection or probe can attach to. Size is the
// dimensionality of the object's output signal.
type Object interface {
	Label() string
	Size() int
}

// Network is a declared model. Declaration order of probes is the canonical
// probe order everywhere downstream.
type Network struct {
	label string
	rng   *rand.Rand

	nodes       []*Node
	ensembles   []*Ensemble
	connections []*Connection
	probes      []*Probe
}

// New creates an empty network. All parameter initialization draws from a
// generator seeded here, so networks built with the same seed are identical.
func New(label string, seed int64) *Network {
	return &Network{
		label: label,
		rng:   rand.New(rand.NewSource(seed)),
	}
}

func (n *Network) Label() string { return n.label }

func (n *Network) Nodes() []*Node             { return n.nodes }
func (n *Network) Ensembles() []*Ensemble     { return n.ensembles }
func (n *Network) Connections() []*Connection { return n.connections }
func (n *Network) Probes() []*Probe           { return n.probes }

// AddNode declares an input node whose value at simulated time t is fn(t).
// The returned slice must have length dim at every time.
func (n *Network) AddNode(label string, dim int, fn func(t float64) []float32) (*Node, error) {
	if dim < 1 {
		return nil, fmt.Errorf("%w: node %q dimension %d", ErrInvalidDimension, label, dim)
	}

	node := &Node{label: label, dim: dim, fn: fn}
	n.nodes = append(n.nodes, node)
	return node, nil
}

// AddEnsemble declares a population of neurons encoding a dim-dimensional
// signal. Encoders and biases are initialized from the network seed.
func (n *Network) AddEnsemble(label string, neurons, dim int) (*Ensemble, error) {
	if neurons < 1 || dim < 1 {
		return nil, fmt.Errorf("%w: ensemble %q neurons %d dimension %d", ErrInvalidDimension, label, neurons, dim)
	}

	e := &Ensemble{
		label:    label,
		neurons:  neurons,
		dim:      dim,
		encoders: make([]float32, dim*neurons),
		bias:     make([]float32, neurons),
	}
	e.pop = &Neurons{ensemble: e}

	// unit-variance encoders scaled by fan-in, small positive biases
	scale := 1 / math.Sqrt(float64(dim))
	for i := range e.encoders {
		e.encoders[i] = float32(n.rng.NormFloat64() * scale)
	}
	for i := range e.bias {
		e.bias[i] = float32(n.rng.Float64() * 0.1)
	}

	n.ensembles = append(n.ensembles, e)
	return e, nil
}

// Connect declares a weighted connection from pre's output to post's input.
// Weights default to a seeded random matrix of shape (pre.Size, post input
// size); use WithWeights to supply them.
func (n *Network) Connect(pre, post Object, opts ...ConnectionOption) (*Connection, error) {
	for _, end := range []Object{pre, post} {
		switch end.(type) {
		case *Node, *Ensemble:
		default:
			return nil, fmt.Errorf("cannot connect %T %q; endpoints must be nodes or ensembles", end, end.Label())
		}
	}
	if !n.owns(pre) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownObject, pre.Label())
	}
	if !n.owns(post) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownObject, post.Label())
	}

	c := &Connection{
		label: fmt.Sprintf("%s->%s", pre.Label(), post.Label()),
		pre:   pre,
		post:  post,
	}
	for _, opt := range opts {
		opt(c)
	}

	rows, cols := pre.Size(), inputSize(post)
	if c.weights == nil {
		c.weights = make([]float32, rows*cols)
		scale := 1 / math.Sqrt(float64(rows))
		for i := range c.weights {
			c.weights[i] = float32(n.rng.NormFloat64() * scale)
		}
	} else if len(c.weights) != rows*cols {
		return nil, fmt.Errorf("connection %q: got %d weights, want %d (%dx%d)",
			c.label, len(c.weights), rows*cols, rows, cols)
	}

	n.connections = append(n.connections, c)
	return c, nil
}

// Probe declares an observation point on target. Probes are immutable and
// ordered by declaration.
func (n *Network) Probe(target Object) (*Probe, error) {
	if !n.owns(target) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownObject, target.Label())
	}

	p := &Probe{
		id:     len(n.probes),
		label:  fmt.Sprintf("probe%d_%s", len(n.probes), target.Label()),
		target: target,
		dim:    target.Size(),
	}
	n.probes = append(n.probes, p)
	return p, nil
}

func (n *Network) owns(obj Object) bool {
	switch v := obj.(type) {
	case *Node:
		for _, node := range n.nodes {
			if node == v {
				return true
			}
		}
	case *Ensemble:
		for _, e := range n.ensembles {
			if e == v {
				return true
			}
		}
	case *Neurons:
		for _, e := range n.ensembles {
			if e == v.Ensemble() {
				return true
			}
		}
	case *Connection:
		for _, c := range n.connections {
			if c == v {
				return true
			}
		}
	}

	return false
}

// inputSize is the dimensionality of the signal an object accepts. An
// ensemble is driven in its encoded space; a node accepts its own output
// dimensionality (passthrough).
func inputSize(obj Object) int {
	if e, ok := obj.(*Ensemble); ok {
		return e.dim
	}

	return obj.Size()
}
