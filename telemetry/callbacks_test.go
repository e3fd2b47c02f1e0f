package telemetry

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type recordingCallback struct {
	events []string
}

func (r *recordingCallback) Begin(info RunInfo) error {
	r.events = append(r.events, fmt.Sprintf("begin %s %d", info.Phase, info.Steps))
	return nil
}

func (r *recordingCallback) Step(step int, info RunInfo) error {
	r.events = append(r.events, fmt.Sprintf("step %s %d", info.Phase, step))
	return nil
}

func (r *recordingCallback) End(info RunInfo) error {
	r.events = append(r.events, fmt.Sprintf("end %s", info.Phase))
	return nil
}

// drive runs the three-event lifecycle the way any driver does, regardless of
// phase.
func drive(cb Callback, info RunInfo) error {
	if err := cb.Begin(info); err != nil {
		return err
	}
	for step := range info.Steps {
		if err := cb.Step(step, info); err != nil {
			return err
		}
	}
	return cb.End(info)
}

func TestCallbackLifecycle(t *testing.T) {
	for _, phase := range []Phase{Training, Inference} {
		t.Run(phase.String(), func(t *testing.T) {
			cb := &recordingCallback{}
			info := NewRunInfo(phase, 2)
			if info.RunID == "" {
				t.Fatal("expected a run id")
			}

			if err := drive(cb, info); err != nil {
				t.Fatal(err)
			}

			want := []string{
				fmt.Sprintf("begin %s 2", phase),
				fmt.Sprintf("step %s 0", phase),
				fmt.Sprintf("step %s 1", phase),
				fmt.Sprintf("end %s", phase),
			}
			if diff := cmp.Diff(want, cb.events); diff != "" {
				t.Errorf("unexpected event sequence (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRunIDsUnique(t *testing.T) {
	a := NewRunInfo(Training, 1)
	b := NewRunInfo(Training, 1)
	if a.RunID == b.RunID {
		t.Errorf("two runs share id %q", a.RunID)
	}
}

func TestLoggerCallback(t *testing.T) {
	l := NewLogger()
	info := NewRunInfo(Inference, 3)

	if err := drive(l, info); err != nil {
		t.Fatal(err)
	}
	if l.steps != 3 {
		t.Errorf("logger counted %d steps, want 3", l.steps)
	}
}

func TestPhaseString(t *testing.T) {
	if got := Training.String(); got != "training" {
		t.Errorf("Training.String() = %q", got)
	}
	if got := Inference.String(); got != "inference" {
		t.Errorf("Inference.String() = %q", got)
	}
	if got := Phase(99).String(); got != "unknown" {
		t.Errorf("Phase(99).String() = %q", got)
	}
}
