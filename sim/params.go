package sim

import (
	"fmt"

	"github.com/neurosim/neurosim/ml"
	"github.com/neurosim/neurosim/telemetry"
)

// GetParams resolves learned parameter values from the backend table in one
// batched read. Values come back in request order with the parameter's natural
// shape flattened. A ref that does not resolve to a compiled parameter fails
// the whole batch.
func (s *Simulator) GetParams(refs []telemetry.ParamRef) ([][]float32, error) {
	vals := make([][]float32, len(refs))

	err := s.b.Immediate(func(ml.Context) error {
		for i, ref := range refs {
			name := paramName(ref.Object)
			if name == "" {
				return fmt.Errorf("%w: object %q has no learned parameters", ErrInvalidArgument, ref.Object.Label())
			}

			t := s.b.Get(name)
			if t == nil {
				return fmt.Errorf("%w: parameter %q not compiled into this simulator", ErrInvalidArgument, name)
			}

			vals[i] = t.Floats()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return vals, nil
}

var _ telemetry.ParameterSource = (*Simulator)(nil)
