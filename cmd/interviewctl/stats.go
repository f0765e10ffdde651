package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"interviewcoach/pkg/metrics"
)

func newStatsCmd(opts *options) *cobra.Command {
	var prometheusURL string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show provider usage and session outcomes from Prometheus",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if prometheusURL == "" {
				prometheusURL = cfg.Metrics.PrometheusURL
			}
			if prometheusURL == "" {
				return errors.New("no Prometheus URL: set metrics.prometheus_url or pass --prometheus")
			}

			q, err := metrics.NewQueryService(prometheusURL, cfg.Metrics.Namespace)
			if err != nil {
				return err //nolint:wrapcheck // already descriptive
			}
			usage, err := q.GetProviderUsage(cmd.Context())
			if err != nil {
				return err //nolint:wrapcheck // already descriptive
			}
			sessions, err := q.GetSessionStats(cmd.Context())
			if err != nil {
				return err //nolint:wrapcheck // already descriptive
			}

			if opts.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"providers": usage, "sessions": sessions})
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PROVIDER\tREQUESTS\tFAILURES\tTOKENS")
			for _, u := range usage {
				fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", u.Provider, u.Requests, u.Failures, u.TotalTokens)
			}
			fmt.Fprintf(w, "\nSessions active: %d\tabandoned: %d\tsaved: %d\tfailovers: %d\n",
				sessions.Active, sessions.Abandoned, sessions.Saved, sessions.Failovers)
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&prometheusURL, "prometheus", "", "Prometheus base URL (overrides config)")
	return cmd
}
