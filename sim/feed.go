package sim

import (
	"errors"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"golang.org/x/sync/errgroup"

	"github.com/neurosim/neurosim/ml"
)

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrFeedShape       = errors.New("feed does not match declared inputs")
)

// InputSpec declares one input the feed must populate.
type InputSpec struct {
	ID  string
	Dim int
}

// Feed maps declared input ids to (minibatch, steps, dim) tensors. A feed is
// built fresh per call and owned by the caller; the simulator never retains
// one.
type Feed struct {
	steps     int
	minibatch int

	// explicit records whether the caller specified a minibatch size, so an
	// unspecified size (defaulted to 1) stays distinguishable from an
	// explicit size of 1
	explicit bool

	entries *orderedmap.OrderedMap[string, ml.Tensor]
}

func (f *Feed) Steps() int     { return f.steps }
func (f *Feed) Minibatch() int { return f.minibatch }

// MinibatchSpecified reports whether the minibatch size was given explicitly
// when the feed was built.
func (f *Feed) MinibatchSpecified() bool { return f.explicit }

// Get returns the tensor for an input id.
func (f *Feed) Get(id string) (ml.Tensor, bool) {
	return f.entries.Get(id)
}

// Set replaces the tensor for an input id, for callers whose input source is
// already batched (e.g. per-trial stimuli). The tensor must have shape
// (minibatch, steps, dim); the simulator validates on Run.
func (f *Feed) Set(id string, t ml.Tensor) {
	f.entries.Set(id, t)
}

// IDs returns the input ids in declaration order.
func (f *Feed) IDs() []string {
	ids := make([]string, 0, f.entries.Len())
	for pair := f.entries.Oldest(); pair != nil; pair = pair.Next() {
		ids = append(ids, pair.Key)
	}
	return ids
}

// FeedOption configures feed construction.
type FeedOption func(*feedOptions)

type feedOptions struct {
	startStep int
}

// WithStartStep offsets the simulated time at which value functions are
// evaluated, for drivers continuing a stateful run.
func WithStartStep(n int) FeedOption {
	return func(opts *feedOptions) {
		opts.startStep = n
	}
}

// InputSpec returns the declared inputs in declaration order. The same slice
// contents are returned on every call.
func (s *Simulator) InputSpec() []InputSpec {
	specs := make([]InputSpec, len(s.inputs))
	for i, node := range s.inputs {
		specs[i] = InputSpec{ID: node.Label(), Dim: node.Size()}
	}
	return specs
}

// BuildFeed evaluates every declared input over steps discrete time indices
// and replicates the results across the minibatch dimension. A minibatch of
// zero means unspecified: the effective size is 1 and the feed records that
// no size was given. Arrays are freshly allocated on every call.
func (s *Simulator) BuildFeed(steps, minibatch int, opts ...FeedOption) (*Feed, error) {
	if steps < 1 {
		return nil, fmt.Errorf("%w: steps must be positive, got %d", ErrInvalidArgument, steps)
	}
	if minibatch < 0 {
		return nil, fmt.Errorf("%w: minibatch must be non-negative, got %d", ErrInvalidArgument, minibatch)
	}

	var options feedOptions
	for _, opt := range opts {
		opt(&options)
	}

	feed := &Feed{
		steps:     steps,
		minibatch: max(minibatch, 1),
		explicit:  minibatch > 0,
		entries:   orderedmap.New[string, ml.Tensor](),
	}

	backings := make([][]float32, len(s.inputs))

	g := new(errgroup.Group)
	for i, node := range s.inputs {
		g.Go(func() error {
			dim := node.Size()
			series := make([]float32, steps*dim)
			for step := range steps {
				t := float64(options.startStep+step) * s.dt
				v := node.Value(t)
				if len(v) != dim {
					return fmt.Errorf("%w: node %q returned %d values at t=%v, want %d",
						ErrInvalidArgument, node.Label(), len(v), t, dim)
				}
				copy(series[step*dim:], v)
			}

			backing := make([]float32, feed.minibatch*steps*dim)
			for b := range feed.minibatch {
				copy(backing[b*steps*dim:], series)
			}

			backings[i] = backing
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := s.b.Immediate(func(ctx ml.Context) error {
		for i, node := range s.inputs {
			feed.entries.Set(node.Label(), ctx.FromFloats(backings[i], feed.minibatch, steps, node.Size()))
		}
		return nil
	}); err != nil {
		return nil, err
	}

	return feed, nil
}

// validateFeed checks a feed against the declared inputs. Shape mismatches
// are never truncated or padded.
func (s *Simulator) validateFeed(feed *Feed) error {
	if feed == nil {
		return fmt.Errorf("%w: nil feed", ErrFeedShape)
	}

	for _, node := range s.inputs {
		t, ok := feed.Get(node.Label())
		if !ok {
			return fmt.Errorf("%w: missing entry for input %q", ErrFeedShape, node.Label())
		}

		shape := t.Shape()
		want := []int{feed.Minibatch(), feed.Steps(), node.Size()}
		if len(shape) != 3 || shape[0] != want[0] || shape[1] != want[1] || shape[2] != want[2] {
			return fmt.Errorf("%w: input %q has shape %v, want %v", ErrFeedShape, node.Label(), shape, want)
		}
	}

	return nil
}
