// Package sim compiles a declared network into a batched tensor computation
// and executes it step by step. Execution is deterministic: the same feed and
// the same parameter state always produce the same output record.
package sim

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/neurosim/neurosim/format"
	"github.com/neurosim/neurosim/logutil"
	"github.com/neurosim/neurosim/ml"
	_ "github.com/neurosim/neurosim/ml/backend/dense"
	"github.com/neurosim/neurosim/model"
)

// DefaultDT is the simulation step duration in seconds.
const DefaultDT = 0.001

// Simulator owns the compiled computation for one network. Run accumulates
// recurrent synapse state across calls; Forward executes single-shot from the
// initial state. Only sequential calls on the owning goroutine may mutate the
// persistent state.
type Simulator struct {
	net *model.Network
	b   ml.Backend
	dt  float64

	ownBackend bool

	inputs []*model.Node
	probes []*model.Probe

	state    *runState
	stepsRun int
}

// runState is the recurrent state carried between Run calls: each object's
// previous-step output and each filtered connection's lowpass accumulator,
// flattened as (minibatch, dim).
type runState struct {
	minibatch int
	prev      map[model.Object][]float32
	syn       map[*model.Connection][]float32
}

func newRunState(minibatch int) *runState {
	return &runState{
		minibatch: minibatch,
		prev:      make(map[model.Object][]float32),
		syn:       make(map[*model.Connection][]float32),
	}
}

// Option configures a simulator at construction.
type Option func(*Simulator)

// WithBackend runs the simulation on a caller-supplied backend. The caller
// keeps ownership; Close will not release it.
func WithBackend(b ml.Backend) Option {
	return func(s *Simulator) {
		s.b = b
	}
}

// WithDT overrides the simulation step duration.
func WithDT(dt float64) Option {
	return func(s *Simulator) {
		s.dt = dt
	}
}

// NewSimulator compiles net: parameters are registered in the backend table
// under stable names and the probe order is fixed to declaration order.
func NewSimulator(net *model.Network, opts ...Option) (*Simulator, error) {
	s := &Simulator{
		net: net,
		dt:  DefaultDT,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.dt <= 0 {
		return nil, fmt.Errorf("%w: dt must be positive, got %v", ErrInvalidArgument, s.dt)
	}

	if s.b == nil {
		b, err := ml.NewBackend("")
		if err != nil {
			return nil, err
		}
		s.b = b
		s.ownBackend = true
	}

	for _, node := range net.Nodes() {
		if node.HasInput() {
			s.inputs = append(s.inputs, node)
		}
	}
	s.probes = net.Probes()

	if err := s.b.Immediate(func(ctx ml.Context) error {
		for _, e := range net.Ensembles() {
			s.b.Set(paramName(e), ctx.FromFloats(e.Encoders(), e.Dimensions(), e.Size()))
			s.b.Set(paramName(e.Neurons()), ctx.FromFloats(e.Bias(), e.Size()))
		}
		for _, c := range net.Connections() {
			s.b.Set(paramName(c), ctx.FromFloats(c.Weights(), c.Pre().Size(), c.Size()))
		}
		return nil
	}); err != nil {
		if s.ownBackend {
			s.b.Close()
		}
		return nil, err
	}

	slog.Debug("compiled network", "model", net.Label(),
		"nodes", len(net.Nodes()), "ensembles", len(net.Ensembles()),
		"connections", len(net.Connections()), "probes", len(s.probes))

	return s, nil
}

// paramName is the stable backend table key for an object's learned
// parameter.
func paramName(obj model.Object) string {
	switch v := obj.(type) {
	case *model.Ensemble:
		return fmt.Sprintf("Ensemble_%s_encoders", v.Label())
	case *model.Neurons:
		return fmt.Sprintf("Ensemble.neurons_%s_bias", v.Ensemble().Label())
	case *model.Connection:
		return fmt.Sprintf("Connection_%s_weights", v.Label())
	default:
		return ""
	}
}

// Probes returns the declared probes in declaration order; the order is
// identical on every call.
func (s *Simulator) Probes() []*model.Probe {
	probes := make([]*model.Probe, len(s.probes))
	copy(probes, s.probes)
	return probes
}

// Backend exposes the backend holding the compiled parameters.
func (s *Simulator) Backend() ml.Backend { return s.b }

// Steps is the number of steps executed so far in full-simulation mode.
func (s *Simulator) Steps() int { return s.stepsRun }

// Time is the simulated time reached in full-simulation mode.
func (s *Simulator) Time() float64 { return float64(s.stepsRun) * s.dt }

// DT is the step duration.
func (s *Simulator) DT() float64 { return s.dt }

// Run executes the feed in full-simulation mode: synapse state persists so a
// subsequent Run continues the trajectory. Returns one (minibatch, steps,
// dim) tensor per probe, in probe order.
func (s *Simulator) Run(feed *Feed) ([]ml.Tensor, error) {
	if err := s.validateFeed(feed); err != nil {
		return nil, err
	}

	if s.state != nil && s.state.minibatch != feed.Minibatch() {
		return nil, fmt.Errorf("%w: minibatch %d does not match accumulated state minibatch %d; Reset first",
			ErrInvalidArgument, feed.Minibatch(), s.state.minibatch)
	}

	st := s.state
	if st == nil {
		st = newRunState(feed.Minibatch())
	}

	started := time.Now()
	record, next, err := s.execute(feed, st)
	if err != nil {
		return nil, err
	}

	s.state = next
	s.stepsRun += feed.Steps()

	slog.Debug("run complete", "steps", feed.Steps(), "minibatch", feed.Minibatch(),
		"probes", len(record), "duration", format.HumanDuration(time.Since(started)))

	return record, nil
}

// Forward executes the feed as an independent single-shot layer call: it
// starts from the initial state and leaves the persistent state untouched.
func (s *Simulator) Forward(feed *Feed) ([]ml.Tensor, error) {
	if err := s.validateFeed(feed); err != nil {
		return nil, err
	}

	record, _, err := s.execute(feed, newRunState(feed.Minibatch()))
	return record, err
}

// Reset discards accumulated synapse state and rewinds simulated time.
func (s *Simulator) Reset() {
	s.state = nil
	s.stepsRun = 0
}

// Close releases the backend if the simulator owns it.
func (s *Simulator) Close() {
	if s.ownBackend {
		s.b.Close()
	}
}

// execute builds one deferred graph covering every step of the feed, computes
// it, and assembles the output record. st is read for the initial state and
// never mutated; the successor state is returned.
func (s *Simulator) execute(feed *Feed, st *runState) ([]ml.Tensor, *runState, error) {
	m, steps := feed.Minibatch(), feed.Steps()

	ctx := s.b.NewContext()
	defer ctx.Close()
	ctx.SetBatchSize(m)

	// materialized feed backings, sliced per step below
	feedData := make(map[string][]float32, len(s.inputs))
	for _, node := range s.inputs {
		t, _ := feed.Get(node.Label())
		feedData[node.Label()] = t.Floats()
	}

	// graph tensors holding the evolving state
	prev := make(map[model.Object]ml.Tensor)
	syn := make(map[*model.Connection]ml.Tensor)

	statePrev := func(obj model.Object) ml.Tensor {
		if t, ok := prev[obj]; ok {
			return t
		}
		backing, ok := st.prev[obj]
		if !ok {
			backing = make([]float32, m*obj.Size())
		}
		t := ctx.FromFloats(backing, m, obj.Size())
		prev[obj] = t
		return t
	}

	probeSteps := make([][]ml.Tensor, len(s.probes))
	for i := range probeSteps {
		probeSteps[i] = make([]ml.Tensor, 0, steps)
	}

	for step := range steps {
		outs := make(map[model.Object]ml.Tensor)
		connOut := make(map[*model.Connection]ml.Tensor)

		// input nodes read the feed directly, with no delay
		for _, node := range s.inputs {
			outs[node] = ctx.FromFloats(stepSlice(feedData[node.Label()], m, steps, node.Size(), step), m, node.Size())
		}

		// connections read their pre object's previous-step output, so
		// evaluation order is irrelevant and cycles are well defined
		for _, c := range s.net.Connections() {
			y := statePrev(c.Pre()).Mulmat(ctx, s.b.Get(paramName(c)))

			if tau := c.Synapse(); tau > 0 {
				acc, ok := syn[c]
				if !ok {
					backing, ok := st.syn[c]
					if !ok {
						backing = make([]float32, m*c.Size())
					}
					acc = ctx.FromFloats(backing, m, c.Size())
				}

				alpha := 1 - math.Exp(-s.dt/tau)
				y = acc.Add(ctx, y.Sub(ctx, acc).Scale(ctx, alpha))
				syn[c] = y
			}

			connOut[c] = y
		}

		// sum filtered connection outputs into their post objects
		drive := make(map[model.Object]ml.Tensor)
		for _, c := range s.net.Connections() {
			if cur, ok := drive[c.Post()]; ok {
				drive[c.Post()] = cur.Add(ctx, connOut[c])
			} else {
				drive[c.Post()] = connOut[c]
			}
		}

		for _, e := range s.net.Ensembles() {
			x, ok := drive[e]
			if !ok {
				x = ctx.Zeros(ml.DTypeF32, m, e.Dimensions())
			}

			current := x.Mulmat(ctx, s.b.Get(paramName(e))).Add(ctx, s.b.Get(paramName(e.Neurons())))
			outs[e] = activate(ctx, current, e.Activation())
		}

		for _, node := range s.net.Nodes() {
			if node.HasInput() {
				continue
			}
			if x, ok := drive[node]; ok {
				outs[node] = x
			} else {
				outs[node] = ctx.Zeros(ml.DTypeF32, m, node.Size())
			}
		}

		for i, p := range s.probes {
			probeSteps[i] = append(probeSteps[i], probeValue(p, outs, connOut))
		}

		// current outputs become the next step's previous outputs
		for _, c := range s.net.Connections() {
			prev[c.Pre()] = outs[c.Pre()]
		}
	}

	targets := make([]ml.Tensor, 0, len(s.probes)*steps+len(prev)+len(syn))
	for _, stepTensors := range probeSteps {
		targets = append(targets, stepTensors...)
	}
	for _, t := range prev {
		targets = append(targets, t)
	}
	for _, t := range syn {
		targets = append(targets, t)
	}

	ctx.Forward(targets...).Compute(targets...)

	if slog.Default().Enabled(context.TODO(), logutil.LevelTrace) {
		for i, p := range s.probes {
			logutil.Trace("probe output", "probe", p.Label(), "step", steps-1,
				"value", ml.Dump(ctx, probeSteps[i][steps-1]))
		}
	}

	record := make([]ml.Tensor, len(s.probes))
	if err := s.b.Immediate(func(ictx ml.Context) error {
		for i, p := range s.probes {
			dim := p.Size()
			backing := make([]float32, m*steps*dim)
			for step, t := range probeSteps[i] {
				vals := t.Floats()
				for b := range m {
					copy(backing[b*steps*dim+step*dim:], vals[b*dim:(b+1)*dim])
				}
			}
			record[i] = ictx.FromFloats(backing, m, steps, dim)
		}
		return nil
	}); err != nil {
		return nil, nil, err
	}

	next := newRunState(m)
	for obj, t := range prev {
		next.prev[obj] = t.Floats()
	}
	for c, t := range syn {
		next.syn[c] = t.Floats()
	}

	return record, next, nil
}

// stepSlice extracts step `step` of a (m, steps, dim) backing as (m, dim).
func stepSlice(backing []float32, m, steps, dim, step int) []float32 {
	out := make([]float32, m*dim)
	for b := range m {
		copy(out[b*dim:], backing[b*steps*dim+step*dim:][:dim])
	}
	return out
}

func activate(ctx ml.Context, t ml.Tensor, a model.Activation) ml.Tensor {
	switch a {
	case model.Tanh:
		return t.Tanh(ctx)
	case model.Sigmoid:
		return t.Sigmoid(ctx)
	default:
		return t.RELU(ctx)
	}
}

func probeValue(p *model.Probe, outs map[model.Object]ml.Tensor, connOut map[*model.Connection]ml.Tensor) ml.Tensor {
	switch target := p.Target().(type) {
	case *model.Connection:
		return connOut[target]
	case *model.Neurons:
		return outs[target.Ensemble()]
	default:
		return outs[target]
	}
}
