package telemetry

import (
	"fmt"
	"regexp"

	"github.com/google/uuid"

	"github.com/neurosim/neurosim/ml"
	"github.com/neurosim/neurosim/model"
	"github.com/neurosim/neurosim/telemetry/store"
)

// Kind is the parameter category recorded for an object.
type Kind string

const (
	KindEncoders Kind = "encoders"
	KindBias     Kind = "bias"
	KindWeights  Kind = "weights"
)

// ParamRef names one learned parameter by its owning object and kind.
type ParamRef struct {
	Object model.Object
	Kind   Kind
}

// ParameterSource resolves parameter values in one batched lookup. Values are
// returned in request order, one per ref, with the parameter's natural shape
// flattened (parameters carry no minibatch axis).
type ParameterSource interface {
	GetParams(refs []ParamRef) ([][]float32, error)
}

// ValidationError reports an object that telemetry cannot classify.
type ValidationError struct {
	Object model.Object
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("unknown summary object %q (%T); should be an Ensemble, Neurons, or Connection",
		e.Object.Label(), e.Object)
}

type summary struct {
	name string
	ref  ParamRef
}

// Summaries records histograms of learned parameter values, one per
// registered object per epoch. It classifies objects once at construction:
// an ensemble logs its encoders, a neuron population its biases, and a
// connection its weights. Construction is all-or-nothing; an unsupported
// object fails it and registers nothing.
//
// Summaries implements Callback against the training lifecycle: Step is the
// epoch-end snapshot and End closes the writer.
type Summaries struct {
	b      ml.Backend
	w      store.Writer
	source ParameterSource

	runID     string
	summaries []summary
	closed    bool
}

func NewSummaries(b ml.Backend, w store.Writer, source ParameterSource, objects []model.Object) (*Summaries, error) {
	s := &Summaries{
		b:      b,
		w:      w,
		source: source,
		runID:  uuid.NewString(),
	}

	seen := make(map[string]int)
	for _, obj := range objects {
		var name string
		var kind Kind
		switch v := obj.(type) {
		case *model.Ensemble:
			kind = KindEncoders
			name = fmt.Sprintf("Ensemble_%s", v.Label())
		case *model.Neurons:
			kind = KindBias
			name = fmt.Sprintf("Ensemble.neurons_%s", v.Ensemble().Label())
		case *model.Connection:
			kind = KindWeights
			name = fmt.Sprintf("Connection_%s", v.Label())
		default:
			return nil, &ValidationError{Object: obj}
		}

		sanitized := SanitizeName(fmt.Sprintf("%s_%s", name, kind))
		if n := seen[sanitized]; n > 0 {
			seen[sanitized] = n + 1
			sanitized = fmt.Sprintf("%s_%d", sanitized, n)
		} else {
			seen[sanitized] = 1
		}

		s.summaries = append(s.summaries, summary{
			name: sanitized,
			ref:  ParamRef{Object: obj, Kind: kind},
		})
	}

	return s, nil
}

// RunID is the identifier under which this instance's records are written.
func (s *Summaries) RunID() string { return s.runID }

// Names returns the sanitized summary names in registration order.
func (s *Summaries) Names() []string {
	names := make([]string, len(s.summaries))
	for i, sum := range s.summaries {
		names[i] = sum.name
	}
	return names
}

// OnEpochEnd reads every registered parameter in one batched lookup and
// appends one histogram record per parameter, tagged with the epoch as the
// time axis. The write happens inside the backend's forced-immediate scope
// and is atomic: a failed read aborts the whole epoch with no partial
// records. Parameter state is never mutated.
func (s *Summaries) OnEpochEnd(epoch int) error {
	if s.closed {
		return fmt.Errorf("telemetry for run %s: %w", s.runID, store.ErrWriterClosed)
	}

	refs := make([]ParamRef, len(s.summaries))
	for i, sum := range s.summaries {
		refs[i] = sum.ref
	}

	vals, err := s.source.GetParams(refs)
	if err != nil {
		return fmt.Errorf("epoch %d summaries: %w", epoch, err)
	}
	if len(vals) != len(refs) {
		return fmt.Errorf("epoch %d summaries: got %d values for %d parameters", epoch, len(vals), len(refs))
	}

	return s.b.Immediate(func(ml.Context) error {
		records := make([]store.Record, len(s.summaries))
		for i, sum := range s.summaries {
			records[i] = store.NewRecord(s.runID, sum.name, int64(epoch), vals[i])
		}
		return s.w.WriteBatch(records)
	})
}

// OnTrainEnd flushes and closes the writer exactly once. Every telemetry
// call after it fails with ErrWriterClosed.
func (s *Summaries) OnTrainEnd() error {
	if s.closed {
		return fmt.Errorf("telemetry for run %s: %w", s.runID, store.ErrWriterClosed)
	}
	s.closed = true

	if err := s.w.Flush(); err != nil {
		return err
	}
	return s.w.Close()
}

// Begin implements Callback.
func (s *Summaries) Begin(RunInfo) error { return nil }

// Step implements Callback; the step index is the epoch.
func (s *Summaries) Step(step int, _ RunInfo) error { return s.OnEpochEnd(step) }

// End implements Callback.
func (s *Summaries) End(RunInfo) error { return s.OnTrainEnd() }

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9_.\-/]`)

// SanitizeName replaces every character that is illegal in a hierarchical
// log-event path with an underscore.
func SanitizeName(name string) string {
	return unsafeNameChars.ReplaceAllString(name, "_")
}
