// Package telemetry samples learned parameters during training and persists
// them as time-indexed histogram records, and defines the run lifecycle
// shared by training-style and inference-style drivers.
package telemetry

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/neurosim/neurosim/format"
)

// Phase distinguishes training-style from inference-style execution.
type Phase int

const (
	Training Phase = iota
	Inference
)

func (p Phase) String() string {
	switch p {
	case Training:
		return "training"
	case Inference:
		return "inference"
	default:
		return "unknown"
	}
}

// RunInfo identifies one execution run. The same structure is passed to every
// lifecycle event regardless of phase.
type RunInfo struct {
	Phase Phase
	RunID string

	// Steps is the step budget of the run: epochs for training, simulation
	// steps for inference.
	Steps int
}

// NewRunInfo allocates a run identifier for a phase.
func NewRunInfo(phase Phase, steps int) RunInfo {
	return RunInfo{
		Phase: phase,
		RunID: uuid.NewString(),
		Steps: steps,
	}
}

// Callback is the unified three-event run lifecycle. Training and inference
// drivers invoke the same interface with identically shaped arguments, so a
// handler written against one phase works unmodified in the other.
type Callback interface {
	Begin(info RunInfo) error
	Step(step int, info RunInfo) error
	End(info RunInfo) error
}

// Logger times runs and logs lifecycle transitions through slog.
type Logger struct {
	started time.Time
	steps   int
}

func NewLogger() *Logger {
	return &Logger{}
}

func (l *Logger) Begin(info RunInfo) error {
	l.started = time.Now()
	l.steps = 0
	slog.Info("run started", "phase", info.Phase, "run_id", info.RunID, "steps", info.Steps)
	return nil
}

func (l *Logger) Step(step int, info RunInfo) error {
	l.steps++
	slog.Debug("run step", "phase", info.Phase, "run_id", info.RunID, "step", step)
	return nil
}

func (l *Logger) End(info RunInfo) error {
	slog.Info("run finished", "phase", info.Phase, "run_id", info.RunID,
		"steps", l.steps, "duration", format.HumanDuration(time.Since(l.started)))
	return nil
}
