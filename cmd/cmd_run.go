// cmd_run.go - Experiment-Ausfuehrung
// Hauptfunktionen: RunHandler, newRunCmd
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gonum.org/v1/gonum/stat"

	"github.com/neurosim/neurosim/envconfig"
	"github.com/neurosim/neurosim/logutil"
	"github.com/neurosim/neurosim/ml"
	"github.com/neurosim/neurosim/model"
	"github.com/neurosim/neurosim/sim"
	"github.com/neurosim/neurosim/telemetry"
	"github.com/neurosim/neurosim/telemetry/store"
)

func beginAll(cbs []telemetry.Callback, info telemetry.RunInfo) error {
	for _, cb := range cbs {
		if err := cb.Begin(info); err != nil {
			return err
		}
	}
	return nil
}

func stepAll(cbs []telemetry.Callback, step int, info telemetry.RunInfo) error {
	for _, cb := range cbs {
		if err := cb.Step(step, info); err != nil {
			return err
		}
	}
	return nil
}

func endAll(cbs []telemetry.Callback, info telemetry.RunInfo) error {
	for _, cb := range cbs {
		if err := cb.End(info); err != nil {
			return err
		}
	}
	return nil
}

// summaryObjects lists every object with learned parameters, in declaration
// order.
func summaryObjects(net *model.Network) []model.Object {
	var objects []model.Object
	for _, e := range net.Ensembles() {
		objects = append(objects, e, e.Neurons())
	}
	for _, c := range net.Connections() {
		objects = append(objects, c)
	}
	return objects
}

// train runs the training phase: one full pass of the feed per epoch, with
// parameter summaries recorded at every epoch end.
func train(s *sim.Simulator, net *model.Network, phase PhaseSpec) error {
	dir := envconfig.TelemetryDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	db, err := store.NewSQLite(filepath.Join(dir, "telemetry.db"))
	if err != nil {
		return err
	}
	// the summaries callback closes the store at train end; the deferred
	// close covers the error returns before that point
	defer db.Close()

	summaries, err := telemetry.NewSummaries(s.Backend(), db, s, summaryObjects(net))
	if err != nil {
		return err
	}

	cbs := []telemetry.Callback{telemetry.NewLogger(), summaries}
	info := telemetry.NewRunInfo(telemetry.Training, phase.Epochs)

	feed, err := s.BuildFeed(phase.Steps, phase.Minibatch)
	if err != nil {
		return err
	}

	if err := beginAll(cbs, info); err != nil {
		return err
	}

	for epoch := range phase.Epochs {
		s.Reset()
		if _, err := s.Run(feed); err != nil {
			return err
		}
		if err := stepAll(cbs, epoch, info); err != nil {
			return err
		}
	}

	return endAll(cbs, info)
}

// infer runs the inference phase single-shot and prints a per-probe summary.
func infer(s *sim.Simulator, phase PhaseSpec) error {
	cbs := []telemetry.Callback{telemetry.NewLogger()}
	info := telemetry.NewRunInfo(telemetry.Inference, phase.Steps)

	feed, err := s.BuildFeed(phase.Steps, phase.Minibatch)
	if err != nil {
		return err
	}

	if err := beginAll(cbs, info); err != nil {
		return err
	}

	record, err := s.Forward(feed)
	if err != nil {
		return err
	}

	if err := stepAll(cbs, phase.Steps, info); err != nil {
		return err
	}
	if err := endAll(cbs, info); err != nil {
		return err
	}

	outputs, err := sim.Collect(record, s.Probes())
	if err != nil {
		return err
	}

	var data [][]string
	for pair := outputs.Oldest(); pair != nil; pair = pair.Next() {
		mean, stddev := tensorStats(pair.Value)
		data = append(data, []string{
			pair.Key.Label(),
			fmt.Sprintf("%v", pair.Value.Shape()),
			fmt.Sprintf("%.5f", mean),
			fmt.Sprintf("%.5f", stddev),
		})
	}

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		for _, row := range data {
			fmt.Println(row[0], row[1], row[2], row[3])
		}
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"PROBE", "SHAPE", "MEAN", "STDDEV"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()

	return nil
}

func tensorStats(t ml.Tensor) (mean, stddev float64) {
	vals := t.Floats()
	x := make([]float64, len(vals))
	for i, v := range vals {
		x[i] = float64(v)
	}
	return stat.Mean(x, nil), stat.StdDev(x, nil)
}

// RunHandler executes an experiment file: training first, then inference,
// both driven through the same lifecycle callbacks.
func RunHandler(cmd *cobra.Command, args []string) error {
	slog.SetDefault(logutil.NewLogger(os.Stderr, envconfig.LogLevel()))

	exp, err := LoadExperiment(args[0])
	if err != nil {
		return err
	}
	if exp.Seed == 0 {
		exp.Seed = envconfig.Seed()
	}

	net, err := exp.Build()
	if err != nil {
		return err
	}

	var opts []sim.Option
	if exp.DT > 0 {
		opts = append(opts, sim.WithDT(exp.DT))
	}

	s, err := sim.NewSimulator(net, opts...)
	if err != nil {
		return err
	}
	defer s.Close()

	if exp.Training.Epochs > 0 && exp.Training.Steps > 0 {
		if err := train(s, net, exp.Training); err != nil {
			return err
		}
	}

	if exp.Inference.Steps > 0 {
		if err := infer(s, exp.Inference); err != nil {
			return err
		}
	}

	return nil
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run EXPERIMENT",
		Short: "Run an experiment file",
		Args:  cobra.ExactArgs(1),
		RunE:  RunHandler,
	}
}
