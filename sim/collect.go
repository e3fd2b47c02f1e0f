package sim

import (
	"errors"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/neurosim/neurosim/ml"
	"github.com/neurosim/neurosim/model"
)

var ErrOutputArity = errors.New("output record does not match probe count")

// Collect zips an output record with its probes into a probe-keyed map that
// iterates in probe order. This is a pure relabeling: tensors keep their
// (minibatch, steps, dim) axis order and are neither copied nor transformed.
func Collect(record []ml.Tensor, probes []*model.Probe) (*orderedmap.OrderedMap[*model.Probe, ml.Tensor], error) {
	if len(record) != len(probes) {
		return nil, fmt.Errorf("%w: %d outputs for %d probes", ErrOutputArity, len(record), len(probes))
	}

	out := orderedmap.New[*model.Probe, ml.Tensor]()
	for i, p := range probes {
		out.Set(p, record[i])
	}

	return out, nil
}
