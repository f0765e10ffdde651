package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"interviewcoach/pkg/persistence"
)

func newRecordsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "records",
		Short: "Inspect saved interviews",
	}
	cmd.AddCommand(newRecordsListCmd(opts), newRecordsShowCmd(opts))
	return cmd
}

func newRecordsListCmd(opts *options) *cobra.Command {
	var (
		candidate string
		limit     int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a candidate's interviews, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if candidate == "" {
				return errors.New("--candidate is required")
			}
			store, err := opts.openStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			records, err := store.ListInterviewRecords(cmd.Context(), candidate, limit)
			if err != nil {
				return err //nolint:wrapcheck // already descriptive
			}
			if opts.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), records)
			}
			return writeRecordTable(cmd.OutOrStdout(), records)
		},
	}
	cmd.Flags().StringVarP(&candidate, "candidate", "c", "", "candidate ID")
	cmd.Flags().IntVarP(&limit, "limit", "n", persistence.DefaultListLimit, "maximum records to show")
	return cmd
}

func newRecordsShowCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Print one interview with its report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := opts.openStore()
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			rec, err := store.GetInterviewRecord(cmd.Context(), args[0])
			if err != nil {
				return err //nolint:wrapcheck // already descriptive
			}
			if opts.jsonOutput {
				return writeJSON(cmd.OutOrStdout(), rec)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Interview %s (%s, %s) for %s at %s\n", rec.ID, rec.Type, rec.Difficulty,
				rec.CandidateID, rec.CreatedAt.Format("2006-01-02 15:04"))
			fmt.Fprintf(out, "Overall score: %d\n\n%s\n\nReport:\n", rec.OverallScore, rec.Transcript)
			var report any
			if err := json.Unmarshal([]byte(rec.Report), &report); err != nil {
				fmt.Fprintln(out, rec.Report)
				return nil
			}
			return writeJSON(out, report)
		},
	}
}

func (o *options) openStore() (*persistence.Store, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	store, err := persistence.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err //nolint:wrapcheck // already descriptive
	}
	return store, nil
}

func writeRecordTable(out io.Writer, records []*persistence.InterviewRecord) error {
	if len(records) == 0 {
		fmt.Fprintln(out, "No interviews found.")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tTYPE\tDIFFICULTY\tSCORE")
	for _, r := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n", r.ID, r.CreatedAt.Format("2006-01-02 15:04"), r.Type, r.Difficulty, r.OverallScore)
	}
	return w.Flush()
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}
