package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"interviewcoach/pkg/config"
	"interviewcoach/pkg/version"
)

const app = "interviewctl"

// options are the persistent flags shared by every subcommand.
type options struct {
	projectDir string
	jsonOutput bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           app,
		Short:         "interviewctl manages interview coach secrets, records and statistics",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&opts.projectDir, "projectdir", "p", ".", "project directory holding .interviewcoach/")
	root.PersistentFlags().BoolVarP(&opts.jsonOutput, "json", "j", false, "print JSON instead of tables")

	root.AddCommand(
		newSecretsCmd(opts),
		newRecordsCmd(opts),
		newStatsCmd(opts),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version: %s\n", app, version.String())
		},
	}
}

// loadConfig reads the project configuration without touching the process-wide copy.
func (o *options) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.projectDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}
