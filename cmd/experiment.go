// experiment.go - declarative experiment files
// Hauptfunktionen: LoadExperiment, Build
package cmd

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/neurosim/neurosim/model"
)

// Experiment is the YAML description of a model and its run phases.
type Experiment struct {
	Label string  `yaml:"label"`
	Seed  int64   `yaml:"seed"`
	DT    float64 `yaml:"dt"`

	Nodes       []NodeSpec       `yaml:"nodes"`
	Ensembles   []EnsembleSpec   `yaml:"ensembles"`
	Connections []ConnectionSpec `yaml:"connections"`
	Probes      []string         `yaml:"probes"`

	Training  PhaseSpec `yaml:"training"`
	Inference PhaseSpec `yaml:"inference"`
}

// NodeSpec declares an input or passthrough node. A node with no value is a
// passthrough summing whatever drives it.
type NodeSpec struct {
	Label string    `yaml:"label"`
	Dim   int       `yaml:"dim"`
	Value []float32 `yaml:"value"`
}

type EnsembleSpec struct {
	Label      string `yaml:"label"`
	Neurons    int    `yaml:"neurons"`
	Dim        int    `yaml:"dim"`
	Activation string `yaml:"activation"`
}

// ConnectionSpec joins two declared objects by label. Weights are optional;
// omitted weights are seeded from the experiment seed.
type ConnectionSpec struct {
	Pre     string    `yaml:"pre"`
	Post    string    `yaml:"post"`
	Synapse float64   `yaml:"synapse"`
	Weights []float32 `yaml:"weights"`
}

// PhaseSpec is the step budget of one run phase. A phase with zero steps is
// skipped.
type PhaseSpec struct {
	Epochs    int `yaml:"epochs"`
	Steps     int `yaml:"steps"`
	Minibatch int `yaml:"minibatch"`
}

// LoadExperiment reads and parses an experiment file. Unknown fields are
// rejected so typos fail loudly.
func LoadExperiment(path string) (*Experiment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	var exp Experiment
	if err := dec.Decode(&exp); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if exp.Label == "" {
		exp.Label = strings.TrimSuffix(strings.TrimSuffix(path, ".yaml"), ".yml")
	}

	return &exp, nil
}

func parseActivation(s string) (model.Activation, error) {
	switch strings.ToLower(s) {
	case "", "relu":
		return model.ReLU, nil
	case "tanh":
		return model.Tanh, nil
	case "sigmoid":
		return model.Sigmoid, nil
	default:
		return model.ReLU, fmt.Errorf("unknown activation %q", s)
	}
}

func constValue(v []float32) func(float64) []float32 {
	return func(float64) []float32 { return v }
}

// Build assembles the declared network. Probe targets are resolved by label:
// a node or ensemble label, an ensemble label with a ".neurons" suffix, or a
// "pre->post" connection label.
func (e *Experiment) Build() (*model.Network, error) {
	net := model.New(e.Label, e.Seed)
	objects := make(map[string]model.Object)

	for _, spec := range e.Nodes {
		var fn func(float64) []float32
		if spec.Value != nil {
			if len(spec.Value) != spec.Dim {
				return nil, fmt.Errorf("node %q: %d values for dimension %d", spec.Label, len(spec.Value), spec.Dim)
			}
			fn = constValue(spec.Value)
		}

		node, err := net.AddNode(spec.Label, spec.Dim, fn)
		if err != nil {
			return nil, err
		}
		objects[spec.Label] = node
	}

	for _, spec := range e.Ensembles {
		activation, err := parseActivation(spec.Activation)
		if err != nil {
			return nil, fmt.Errorf("ensemble %q: %w", spec.Label, err)
		}

		ens, err := net.AddEnsemble(spec.Label, spec.Neurons, spec.Dim)
		if err != nil {
			return nil, err
		}
		ens.SetActivation(activation)

		objects[spec.Label] = ens
		objects[spec.Label+".neurons"] = ens.Neurons()
	}

	for _, spec := range e.Connections {
		pre, ok := objects[spec.Pre]
		if !ok {
			return nil, fmt.Errorf("connection %s->%s: unknown object %q", spec.Pre, spec.Post, spec.Pre)
		}
		post, ok := objects[spec.Post]
		if !ok {
			return nil, fmt.Errorf("connection %s->%s: unknown object %q", spec.Pre, spec.Post, spec.Post)
		}

		var opts []model.ConnectionOption
		if spec.Synapse > 0 {
			opts = append(opts, model.WithSynapse(spec.Synapse))
		}
		if spec.Weights != nil {
			opts = append(opts, model.WithWeights(spec.Weights))
		}

		c, err := net.Connect(pre, post, opts...)
		if err != nil {
			return nil, err
		}
		objects[c.Label()] = c
	}

	for _, label := range e.Probes {
		target, ok := objects[label]
		if !ok {
			return nil, fmt.Errorf("probe: unknown object %q", label)
		}
		if _, err := net.Probe(target); err != nil {
			return nil, err
		}
	}

	return net, nil
}
