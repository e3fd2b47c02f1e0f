package model

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestBuild(t *testing.T) {
	net := New("test", 0)

	stim, err := net.AddNode("stim", 1, func(t float64) []float32 { return []float32{1} })
	if err != nil {
		t.Fatal(err)
	}

	e, err := net.AddEnsemble("e", 10, 1)
	if err != nil {
		t.Fatal(err)
	}

	c, err := net.Connect(stim, e, WithSynapse(0.005))
	if err != nil {
		t.Fatal(err)
	}

	if got := len(c.Weights()); got != 1 {
		t.Errorf("len(Weights()) = %d, want 1", got)
	}
	if c.Synapse() != 0.005 {
		t.Errorf("Synapse() = %v, want 0.005", c.Synapse())
	}
	if e.Size() != 10 || e.Dimensions() != 1 {
		t.Errorf("ensemble sized %d/%d, want 10/1", e.Size(), e.Dimensions())
	}
	if got := e.Neurons().Size(); got != 10 {
		t.Errorf("Neurons().Size() = %d, want 10", got)
	}
}

func TestInvalidDimensions(t *testing.T) {
	net := New("test", 0)

	if _, err := net.AddNode("n", 0, nil); !errors.Is(err, ErrInvalidDimension) {
		t.Errorf("AddNode dim 0: err = %v, want ErrInvalidDimension", err)
	}
	if _, err := net.AddEnsemble("e", 0, 1); !errors.Is(err, ErrInvalidDimension) {
		t.Errorf("AddEnsemble neurons 0: err = %v, want ErrInvalidDimension", err)
	}
}

func TestConnectForeignObject(t *testing.T) {
	net := New("a", 0)
	other := New("b", 0)

	na, _ := net.AddNode("na", 1, nil)
	nb, _ := other.AddNode("nb", 1, nil)

	if _, err := net.Connect(na, nb); !errors.Is(err, ErrUnknownObject) {
		t.Errorf("Connect foreign post: err = %v, want ErrUnknownObject", err)
	}
}

func TestConnectWeightArity(t *testing.T) {
	net := New("test", 0)
	pre, _ := net.AddNode("pre", 2, nil)
	post, _ := net.AddNode("post", 3, nil)

	if _, err := net.Connect(pre, post, WithWeights(make([]float32, 5))); err == nil {
		t.Error("Connect with 5 weights for 2x3: expected error")
	}

	if _, err := net.Connect(pre, post, WithWeights(make([]float32, 6))); err != nil {
		t.Errorf("Connect with 6 weights for 2x3: %v", err)
	}
}

func TestSeedDeterminism(t *testing.T) {
	build := func(seed int64) *Ensemble {
		net := New("test", seed)
		e, err := net.AddEnsemble("e", 8, 2)
		if err != nil {
			t.Fatal(err)
		}
		return e
	}

	a, b := build(7), build(7)
	if diff := cmp.Diff(a.Encoders(), b.Encoders()); diff != "" {
		t.Errorf("same seed produced different encoders:\n%s", diff)
	}

	c := build(8)
	if cmp.Equal(a.Encoders(), c.Encoders()) {
		t.Error("different seeds produced identical encoders")
	}
}

func TestProbeOrder(t *testing.T) {
	net := New("test", 0)
	n1, _ := net.AddNode("n1", 1, nil)
	n2, _ := net.AddNode("n2", 2, nil)

	p1, err := net.Probe(n1)
	if err != nil {
		t.Fatal(err)
	}
	p2, err := net.Probe(n2)
	if err != nil {
		t.Fatal(err)
	}

	probes := net.Probes()
	if len(probes) != 2 || probes[0] != p1 || probes[1] != p2 {
		t.Fatal("probes not in declaration order")
	}
	if p2.Size() != 2 {
		t.Errorf("p2.Size() = %d, want 2", p2.Size())
	}
}

func TestConnectInvalidEndpoint(t *testing.T) {
	net := New("test", 0)
	e, err := net.AddEnsemble("a", 3, 1)
	if err != nil {
		t.Fatal(err)
	}
	node, err := net.AddNode("n", 3, nil)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := net.Connect(e.Neurons(), node); err == nil {
		t.Error("Connect from a neuron population: expected error")
	}

	c, err := net.Connect(e, node)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := net.Connect(node, c); err == nil {
		t.Error("Connect into a connection: expected error")
	}
}

func TestProbeNeurons(t *testing.T) {
	net := New("test", 0)
	e, err := net.AddEnsemble("pop", 4, 2)
	if err != nil {
		t.Fatal(err)
	}

	p, err := net.Probe(e.Neurons())
	if err != nil {
		t.Fatal(err)
	}
	if p.Target() != e.Neurons() {
		t.Error("probe does not target the neuron population")
	}
	if p.Size() != 4 {
		t.Errorf("probe size = %d, want 4", p.Size())
	}

	// a population from another network is still foreign
	other := New("other", 0)
	foreign, err := other.AddEnsemble("pop", 4, 2)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := net.Probe(foreign.Neurons()); !errors.Is(err, ErrUnknownObject) {
		t.Errorf("foreign population probe: err = %v, want ErrUnknownObject", err)
	}
}
