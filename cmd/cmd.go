// cmd.go - Haupt-CLI Setup und Root Command
// Hauptfunktionen: NewCLI, appendEnvDocs
package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/neurosim/neurosim/envconfig"
)

// appendEnvDocs adds environment variable documentation to a command.
func appendEnvDocs(cmd *cobra.Command, envs []envconfig.EnvVar) {
	if len(envs) == 0 {
		return
	}

	envUsage := `
Environment Variables:
`
	for _, e := range envs {
		envUsage += fmt.Sprintf("      %-24s   %s\n", e.Name, e.Description)
	}

	cmd.SetUsageTemplate(cmd.UsageTemplate() + envUsage)
}

// NewCLI builds the root command with all subcommands.
func NewCLI() *cobra.Command {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	cobra.EnableCommandSorting = false

	rootCmd := &cobra.Command{
		Use:           "neurosim",
		Short:         "Neural simulation runner",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		Run: func(cmd *cobra.Command, args []string) {
			if version, _ := cmd.Flags().GetBool("version"); version {
				versionHandler(cmd, args)
				return
			}

			cmd.Print(cmd.UsageString())
		},
	}

	rootCmd.Flags().BoolP("version", "v", false, "Show version information")

	runCmd := newRunCmd()
	serveCmd := newServeCmd()
	namesCmd := newNamesCmd()
	seriesCmd := newSeriesCmd()

	envVars := envconfig.AsMap()
	envs := []envconfig.EnvVar{envVars["NEUROSIM_HOST"]}

	for _, cmd := range []*cobra.Command{
		runCmd,
		serveCmd,
		namesCmd,
		seriesCmd,
	} {
		switch cmd {
		case runCmd:
			appendEnvDocs(cmd, []envconfig.EnvVar{
				envVars["NEUROSIM_DEBUG"],
				envVars["NEUROSIM_SEED"],
				envVars["NEUROSIM_TELEMETRY"],
			})
		case serveCmd:
			appendEnvDocs(cmd, []envconfig.EnvVar{
				envVars["NEUROSIM_DEBUG"],
				envVars["NEUROSIM_HOST"],
				envVars["NEUROSIM_ORIGINS"],
				envVars["NEUROSIM_TELEMETRY"],
			})
		default:
			appendEnvDocs(cmd, envs)
		}
	}

	rootCmd.AddCommand(
		runCmd,
		serveCmd,
		namesCmd,
		seriesCmd,
	)

	return rootCmd
}
