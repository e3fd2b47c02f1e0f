package cmd

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/neurosim/neurosim/sim"
	"github.com/neurosim/neurosim/telemetry/store"
)

const sampleExperiment = `
label: lowpass
seed: 7
dt: 0.001
nodes:
  - label: stim
    dim: 1
    value: [0.5]
  - label: readout
    dim: 2
ensembles:
  - label: pop
    neurons: 8
    dim: 1
    activation: tanh
connections:
  - pre: stim
    post: pop
    synapse: 0.005
  - pre: pop
    post: readout
probes:
  - pop
  - pop.neurons
  - stim->pop
training:
  epochs: 2
  steps: 10
  minibatch: 2
inference:
  steps: 20
  minibatch: 1
`

func writeExperiment(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "experiment.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadExperiment(t *testing.T) {
	exp, err := LoadExperiment(writeExperiment(t, sampleExperiment))
	if err != nil {
		t.Fatal(err)
	}

	if exp.Label != "lowpass" || exp.Seed != 7 {
		t.Errorf("got label %q seed %d", exp.Label, exp.Seed)
	}
	if exp.Training.Epochs != 2 || exp.Inference.Steps != 20 {
		t.Errorf("got training %+v inference %+v", exp.Training, exp.Inference)
	}
}

func TestLoadExperimentUnknownField(t *testing.T) {
	if _, err := LoadExperiment(writeExperiment(t, "label: x\nbogus: 1\n")); err == nil {
		t.Error("expected unknown field to be rejected")
	}
}

func TestExperimentBuild(t *testing.T) {
	exp, err := LoadExperiment(writeExperiment(t, sampleExperiment))
	if err != nil {
		t.Fatal(err)
	}

	net, err := exp.Build()
	if err != nil {
		t.Fatal(err)
	}

	if len(net.Nodes()) != 2 || len(net.Ensembles()) != 1 || len(net.Connections()) != 2 {
		t.Errorf("built %d nodes, %d ensembles, %d connections",
			len(net.Nodes()), len(net.Ensembles()), len(net.Connections()))
	}

	probes := net.Probes()
	if len(probes) != 3 {
		t.Fatalf("built %d probes, want 3", len(probes))
	}
	if probes[0].Target() != net.Ensembles()[0] {
		t.Error("first probe does not target the ensemble")
	}
	if probes[1].Target() != net.Ensembles()[0].Neurons() {
		t.Error("second probe does not target the neuron population")
	}
	if probes[2].Target() != net.Connections()[0] {
		t.Error("third probe does not target the connection")
	}
}

func TestExperimentBuildErrors(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"unknown activation", "ensembles:\n  - label: a\n    neurons: 4\n    dim: 1\n    activation: softmax\n"},
		{"unknown connection pre", "connections:\n  - pre: ghost\n    post: also_ghost\n"},
		{"unknown probe", "probes:\n  - ghost\n"},
		{"value arity", "nodes:\n  - label: a\n    dim: 2\n    value: [1]\n"},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			exp, err := LoadExperiment(writeExperiment(t, tt.body))
			if err != nil {
				t.Fatal(err)
			}
			if _, err := exp.Build(); err == nil {
				t.Error("expected build to fail")
			}
		})
	}
}

func TestRunHandler(t *testing.T) {
	t.Setenv("NEUROSIM_TELEMETRY", t.TempDir())

	cmd := newRunCmd()
	cmd.SetArgs([]string{writeExperiment(t, sampleExperiment)})
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}

	// the training phase persisted its epoch summaries
	if _, err := os.Stat(filepath.Join(os.Getenv("NEUROSIM_TELEMETRY"), "telemetry.db")); err != nil {
		t.Errorf("telemetry database missing: %v", err)
	}
}

func TestTrainFeedErrorClosesStore(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("NEUROSIM_TELEMETRY", dir)

	exp, err := LoadExperiment(writeExperiment(t, sampleExperiment))
	if err != nil {
		t.Fatal(err)
	}
	net, err := exp.Build()
	if err != nil {
		t.Fatal(err)
	}
	s, err := sim.NewSimulator(net)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	// the feed is validated after the store opens, so this error return
	// must release the database handle
	err = train(s, net, PhaseSpec{Epochs: 1, Steps: 0, Minibatch: 1})
	if !errors.Is(err, sim.ErrInvalidArgument) {
		t.Fatalf("got %v, want ErrInvalidArgument", err)
	}

	if err := train(s, net, exp.Training); err != nil {
		t.Fatalf("train after failed run: %v", err)
	}

	db, err := store.NewSQLite(filepath.Join(dir, "telemetry.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	names, err := db.Names()
	if err != nil {
		t.Fatal(err)
	}
	if len(names) == 0 {
		t.Error("no summaries recorded after recovery")
	}
}
