// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/pdiddy/repurpose-engine/internal/ledger"
	"github.com/pdiddy/repurpose-engine/pkg/types"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect the local job ledger (list, history, export)",
	Long: `Jobs reads the SQLite ledger that records every submitted scoring job
and its status transitions. Job IDs stay valid on the CLUE side, so a
recorded job can be resumed long after the submitting process exited.`,
}

var jobsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded jobs, newest first",
	RunE:  runJobsList,
}

var jobsHistoryCmd = &cobra.Command{
	Use:   "history <job-id>",
	Short: "Show the status transitions of a job",
	Args:  cobra.ExactArgs(1),
	RunE:  runJobsHistory,
}

var jobsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the ledger to YAML or JSON",
	RunE:  runJobsExport,
}

func init() {
	for _, c := range []*cobra.Command{jobsListCmd, jobsExportCmd} {
		c.Flags().String("status", "", "filter by status (e.g. QUEUED, COMPLETED)")
		c.Flags().Int("limit", 0, "maximum jobs (0 = all)")
	}
	jobsExportCmd.Flags().String("format", "yaml", "export format: yaml or json")
	jobsExportCmd.Flags().String("out", "", "output file (default <work-dir>/jobs.<format>)")

	jobsCmd.AddCommand(jobsListCmd)
	jobsCmd.AddCommand(jobsHistoryCmd)
	jobsCmd.AddCommand(jobsExportCmd)
	rootCmd.AddCommand(jobsCmd)
}

func jobQueryOptions(cmd *cobra.Command) (ledger.QueryOptions, error) {
	status, _ := cmd.Flags().GetString("status")
	limit, _ := cmd.Flags().GetInt("limit")
	opts := ledger.QueryOptions{Status: types.JobStatus(status), Limit: limit}
	if status != "" && !opts.Status.Valid() {
		return opts, fmt.Errorf("unknown status %q", status)
	}
	return opts, nil
}

func runJobsList(cmd *cobra.Command, args []string) error {
	cfg, err := commandConfig(cmd)
	if err != nil {
		return err
	}
	opts, err := jobQueryOptions(cmd)
	if err != nil {
		return err
	}
	store, err := openLedger(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	jobs, err := store.Jobs(cmd.Context(), opts)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	if len(jobs) == 0 {
		fmt.Fprintln(w, "No jobs recorded.")
		return nil
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"Job", "Status", "Submitted", "Up", "Down", "Archive"})
	for _, j := range jobs {
		id := j.ID
		if id == "" {
			id = "(run " + j.RunID + ")"
		}
		tw.AppendRow(table.Row{id, j.Status, j.SubmittedAt.Local().Format(time.DateTime), j.UpCount, j.DownCount, j.ResultPath})
	}
	tw.Render()
	return nil
}

func runJobsHistory(cmd *cobra.Command, args []string) error {
	cfg, err := commandConfig(cmd)
	if err != nil {
		return err
	}
	store, err := openLedger(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	job, found, err := store.LoadJob(ctx, args[0])
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("job %s is not in the ledger", args[0])
	}
	ts, err := store.Transitions(ctx, job.RunID)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "job %s (run %s): %s\n", job.ID, job.RunID, job.Status)
	for _, t := range ts {
		fmt.Fprintf(w, "  %s  %-13s -> %-13s %s\n", t.At.Local().Format(time.DateTime), t.From, t.To, t.Note)
	}
	return nil
}

func runJobsExport(cmd *cobra.Command, args []string) error {
	cfg, err := commandConfig(cmd)
	if err != nil {
		return err
	}
	opts, err := jobQueryOptions(cmd)
	if err != nil {
		return err
	}
	format, _ := cmd.Flags().GetString("format")
	out, _ := cmd.Flags().GetString("out")
	if out == "" {
		out = filepath.Join(cfg.WorkDir, "jobs."+format)
	}

	store, err := openLedger(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	switch format {
	case "yaml":
		err = store.ExportYAML(cmd.Context(), out, opts)
	case "json":
		err = store.ExportJSON(cmd.Context(), out, opts)
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s\n", out)
	return nil
}
