package sim

import (
	"errors"
	"math"
	"testing"

	"github.com/neurosim/neurosim/ml"
	"github.com/neurosim/neurosim/model"
)

func floatsNear(t *testing.T, got, want []float32, tol float64) {
	t.Helper()

	if len(got) != len(want) {
		t.Fatalf("got %d values, want %d", len(got), len(want))
	}
	for i := range got {
		if math.Abs(float64(got[i]-want[i])) > tol {
			t.Fatalf("value %d = %v, want %v (tolerance %v)", i, got[i], want[i], tol)
		}
	}
}

// buildProbed declares the shared test model: a constant input feeding an
// ensemble through a weighted connection, with the node, the ensemble, and
// the connection all probed.
func buildProbed(net *model.Network) error {
	in, err := net.AddNode("in", 1, constNode(0.5))
	if err != nil {
		return err
	}
	e, err := net.AddEnsemble("pop", 3, 1)
	if err != nil {
		return err
	}
	c, err := net.Connect(in, e, model.WithSynapse(0.005))
	if err != nil {
		return err
	}
	for _, obj := range []model.Object{in, e, c} {
		if _, err := net.Probe(obj); err != nil {
			return err
		}
	}
	return nil
}

func TestRunShapes(t *testing.T) {
	s := newTestSimulator(t, buildProbed)

	feed, err := s.BuildFeed(100, 2)
	if err != nil {
		t.Fatal(err)
	}

	record, err := s.Run(feed)
	if err != nil {
		t.Fatal(err)
	}

	probes := s.Probes()
	if len(record) != len(probes) {
		t.Fatalf("got %d outputs for %d probes", len(record), len(probes))
	}
	for i, p := range probes {
		shape := record[i].Shape()
		if len(shape) != 3 || shape[0] != 2 || shape[1] != 100 || shape[2] != p.Size() {
			t.Errorf("probe %q output shape %v, want [2 100 %d]", p.Label(), shape, p.Size())
		}
	}

	if s.Steps() != 100 {
		t.Errorf("Steps() = %d, want 100", s.Steps())
	}
	if got, want := s.Time(), 100*s.DT(); math.Abs(got-want) > 1e-12 {
		t.Errorf("Time() = %v, want %v", got, want)
	}
}

func TestConstantNodeProbe(t *testing.T) {
	s := newTestSimulator(t, func(net *model.Network) error {
		node, err := net.AddNode("in", 2, constNode(0.7, -0.2))
		if err != nil {
			return err
		}
		_, err = net.Probe(node)
		return err
	})

	feed, err := s.BuildFeed(10, 1)
	if err != nil {
		t.Fatal(err)
	}
	record, err := s.Run(feed)
	if err != nil {
		t.Fatal(err)
	}

	vals := record[0].Floats()
	for i := 0; i < len(vals); i += 2 {
		if vals[i] != 0.7 || vals[i+1] != -0.2 {
			t.Fatalf("step %d = (%v, %v), want (0.7, -0.2)", i/2, vals[i], vals[i+1])
		}
	}
}

func TestSynapseStepResponse(t *testing.T) {
	tau := 0.005
	s := newTestSimulator(t, func(net *model.Network) error {
		in, err := net.AddNode("in", 1, constNode(1))
		if err != nil {
			return err
		}
		sink, err := net.AddNode("sink", 1, nil)
		if err != nil {
			return err
		}
		c, err := net.Connect(in, sink, model.WithWeights([]float32{1}), model.WithSynapse(tau))
		if err != nil {
			return err
		}
		_, err = net.Probe(c)
		return err
	})

	feed, err := s.BuildFeed(3, 1)
	if err != nil {
		t.Fatal(err)
	}
	record, err := s.Run(feed)
	if err != nil {
		t.Fatal(err)
	}

	// the connection reads the input's previous-step output, so the step
	// lands on the filter one step late
	alpha := 1 - math.Exp(-s.DT()/tau)
	want := []float32{
		0,
		float32(alpha),
		float32(alpha + alpha*(1-alpha)),
	}
	floatsNear(t, record[0].Floats(), want, 1e-6)
}

func TestRunForwardEquivalence(t *testing.T) {
	s := newTestSimulator(t, buildProbed)

	feed, err := s.BuildFeed(20, 2)
	if err != nil {
		t.Fatal(err)
	}

	// Forward from the fresh state first; it must not disturb the state Run
	// will start from
	forward, err := s.Forward(feed)
	if err != nil {
		t.Fatal(err)
	}
	run, err := s.Run(feed)
	if err != nil {
		t.Fatal(err)
	}

	for i := range run {
		floatsNear(t, forward[i].Floats(), run[i].Floats(), 1e-6)
	}
}

func TestRunContinuation(t *testing.T) {
	build := func(net *model.Network) error {
		in, err := net.AddNode("ramp", 1, func(tm float64) []float32 { return []float32{float32(tm)} })
		if err != nil {
			return err
		}
		e, err := net.AddEnsemble("pop", 4, 1)
		if err != nil {
			return err
		}
		if _, err := net.Connect(in, e, model.WithSynapse(0.01)); err != nil {
			return err
		}
		_, err = net.Probe(e)
		return err
	}

	whole := newTestSimulator(t, build)
	split := newTestSimulator(t, build)

	full, err := whole.BuildFeed(10, 1)
	if err != nil {
		t.Fatal(err)
	}
	wholeRec, err := whole.Run(full)
	if err != nil {
		t.Fatal(err)
	}

	first, err := split.BuildFeed(5, 1)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := split.Run(first); err != nil {
		t.Fatal(err)
	}
	second, err := split.BuildFeed(5, 1, WithStartStep(5))
	if err != nil {
		t.Fatal(err)
	}
	splitRec, err := split.Run(second)
	if err != nil {
		t.Fatal(err)
	}

	// the second half of the whole run must match the continued run
	dim := split.Probes()[0].Size()
	wholeVals := wholeRec[0].Floats()
	floatsNear(t, splitRec[0].Floats(), wholeVals[5*dim:], 1e-5)
}

func TestMinibatchStateMismatch(t *testing.T) {
	s := newTestSimulator(t, buildProbed)

	feed2, err := s.BuildFeed(5, 2)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Run(feed2); err != nil {
		t.Fatal(err)
	}

	feed3, err := s.BuildFeed(5, 3)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Run(feed3); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("minibatch change error = %v, want ErrInvalidArgument", err)
	}

	// Forward is stateless and accepts the new minibatch
	if _, err := s.Forward(feed3); err != nil {
		t.Errorf("Forward with different minibatch: %v", err)
	}

	s.Reset()
	if _, err := s.Run(feed3); err != nil {
		t.Errorf("Run after Reset: %v", err)
	}
}

func TestReset(t *testing.T) {
	s := newTestSimulator(t, buildProbed)

	feed, err := s.BuildFeed(7, 1)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Run(feed); err != nil {
		t.Fatal(err)
	}
	if s.Steps() != 7 {
		t.Fatalf("Steps() = %d, want 7", s.Steps())
	}

	s.Reset()
	if s.Steps() != 0 || s.Time() != 0 {
		t.Errorf("after Reset: Steps() = %d, Time() = %v, want 0, 0", s.Steps(), s.Time())
	}

	again, err := s.Run(feed)
	if err != nil {
		t.Fatal(err)
	}
	if len(again) != len(s.Probes()) {
		t.Errorf("got %d outputs after reset, want %d", len(again), len(s.Probes()))
	}
}

func TestProbesStable(t *testing.T) {
	s := newTestSimulator(t, buildProbed)

	a, b := s.Probes(), s.Probes()
	if len(a) != 3 || len(b) != 3 {
		t.Fatalf("got %d and %d probes, want 3", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("probe order differs at %d", i)
		}
	}

	a[0] = nil
	if s.Probes()[0] == nil {
		t.Error("mutating the returned slice leaked into the simulator")
	}
}

func TestSeedDeterminism(t *testing.T) {
	runOnce := func() []float32 {
		s := newTestSimulator(t, buildProbed)
		feed, err := s.BuildFeed(25, 2)
		if err != nil {
			t.Fatal(err)
		}
		record, err := s.Run(feed)
		if err != nil {
			t.Fatal(err)
		}
		// ensemble probe output depends on every parameter kind
		return record[1].Floats()
	}

	floatsNear(t, runOnce(), runOnce(), 0)
}

func TestWithDT(t *testing.T) {
	s := newTestSimulator(t, buildProbed, WithDT(0.01))
	if s.DT() != 0.01 {
		t.Errorf("DT() = %v, want 0.01", s.DT())
	}

	net := model.New("bad", 0)
	if _, err := NewSimulator(net, WithDT(0)); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("dt=0 error = %v, want ErrInvalidArgument", err)
	}
}

func TestWithBackend(t *testing.T) {
	b, err := ml.NewBackend("dense")
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	s := newTestSimulator(t, buildProbed, WithBackend(b))
	if s.Backend() != b {
		t.Error("simulator did not adopt the supplied backend")
	}

	// Close must not release a caller-owned backend
	s.Close()
	if b.Get("Ensemble_pop_encoders") == nil {
		t.Error("caller-owned backend was released on Close")
	}
}

func TestNeuronPopulationProbe(t *testing.T) {
	s := newTestSimulator(t, func(net *model.Network) error {
		in, err := net.AddNode("in", 1, constNode(0.5))
		if err != nil {
			return err
		}
		e, err := net.AddEnsemble("pop", 3, 1)
		if err != nil {
			return err
		}
		if _, err := net.Connect(in, e); err != nil {
			return err
		}
		if _, err := net.Probe(e); err != nil {
			return err
		}
		_, err = net.Probe(e.Neurons())
		return err
	})

	feed, err := s.BuildFeed(5, 1)
	if err != nil {
		t.Fatal(err)
	}
	record, err := s.Run(feed)
	if err != nil {
		t.Fatal(err)
	}

	// the population probe observes the ensemble's neuron output
	floatsNear(t, record[1].Floats(), record[0].Floats(), 0)
}
