// cmd_telemetry.go - Telemetrie-Abfragen gegen den Server
// Hauptfunktionen: NamesHandler, SeriesHandler
package cmd

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/neurosim/neurosim/api"
)

// NamesHandler lists every summary name the server knows.
func NamesHandler(cmd *cobra.Command, _ []string) error {
	client, err := api.ClientFromEnvironment()
	if err != nil {
		return err
	}

	names, err := client.TelemetryNames(cmd.Context())
	if err != nil {
		return err
	}

	for _, name := range names {
		fmt.Println(name)
	}
	return nil
}

// SeriesHandler prints one summary's histogram records as a table.
func SeriesHandler(cmd *cobra.Command, args []string) error {
	client, err := api.ClientFromEnvironment()
	if err != nil {
		return err
	}

	runID, _ := cmd.Flags().GetString("run")
	series, err := client.TelemetrySeries(cmd.Context(), args[0], runID)
	if err != nil {
		return err
	}

	var data [][]string
	for _, r := range series.Records {
		data = append(data, []string{
			fmt.Sprintf("%d", r.Step),
			r.RunID,
			fmt.Sprintf("%d", r.Count),
			fmt.Sprintf("%.5f", r.Min),
			fmt.Sprintf("%.5f", r.Max),
			fmt.Sprintf("%.5f", r.Mean),
			fmt.Sprintf("%.5f", r.Stddev),
		})
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"STEP", "RUN", "COUNT", "MIN", "MAX", "MEAN", "STDDEV"})
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

func newNamesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "names",
		Short: "List recorded summary names",
		Args:  cobra.ExactArgs(0),
		RunE:  NamesHandler,
	}
}

func newSeriesCmd() *cobra.Command {
	seriesCmd := &cobra.Command{
		Use:   "series NAME",
		Short: "Show one summary's histogram records",
		Args:  cobra.ExactArgs(1),
		RunE:  SeriesHandler,
	}
	seriesCmd.Flags().String("run", "", "Restrict to one run id")
	return seriesCmd
}
