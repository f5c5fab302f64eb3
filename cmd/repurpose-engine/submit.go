// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/repurpose-engine/internal/deg"
	"github.com/pdiddy/repurpose-engine/internal/pipeline"
	"github.com/pdiddy/repurpose-engine/pkg/types"
)

var submitCmd = &cobra.Command{
	Use:   "submit [signature.yaml]",
	Short: "Submit a signature as a CLUE scoring job",
	Long: `Submit translates the gene symbols of a saved signature to Entrez IDs
and submits them as a query job. With --wait it then polls until the job
finishes and downloads the result archive; otherwise it prints the job ID
for a later resume.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSubmit,
}

var statusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Show the remote and recorded status of a job",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

var resumeCmd = &cobra.Command{
	Use:   "resume <job-id>",
	Short: "Resume polling a submitted job and download its archive",
	Long: `Resume continues from the ledger record of a job (or from the bare job
ID when the ledger has none), polls until the job is terminal, and
downloads the result archive. It never resubmits, so it is safe to run
after a timeout, an interrupted poll, or a failed download.`,
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

func init() {
	submitCmd.Flags().Bool("wait", false, "poll until the job finishes and download the archive")
	submitCmd.Flags().Duration("max-wait", 0, "local polling budget (default from config, 6h)")
	resumeCmd.Flags().Duration("max-wait", 0, "local polling budget (default from config, 6h)")

	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(resumeCmd)
}

func applyMaxWait(cmd *cobra.Command, cfg *types.PipelineConfig) {
	if d, _ := cmd.Flags().GetDuration("max-wait"); d > 0 {
		cfg.Scoring.MaxWait = d
	}
}

func runSubmit(cmd *cobra.Command, args []string) error {
	cfg, err := commandConfig(cmd)
	if err != nil {
		return err
	}
	applyMaxWait(cmd, &cfg)

	path := filepath.Join(cfg.WorkDir, pipeline.SignatureFile)
	if len(args) == 1 {
		path = args[0]
	}
	sig, err := deg.ReadSignatureFile(path)
	if err != nil {
		return err
	}

	store, err := openLedger(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	w := cmd.OutOrStdout()
	o, err := newOrchestrator(ctx, cfg, store, w)
	if err != nil {
		return err
	}

	job, err := o.Submit(ctx, sig)
	if err != nil {
		return err
	}
	if wait, _ := cmd.Flags().GetBool("wait"); !wait {
		fmt.Fprintf(w, "resume with: repurpose-engine resume %s\n", job.ID)
		return nil
	}

	if err := o.Await(ctx, job); err != nil {
		return err
	}
	_, err = o.FetchResult(ctx, job)
	return err
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := commandConfig(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	w := cmd.OutOrStdout()
	jobID := args[0]

	store, err := openLedger(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	job, found, err := store.LoadJob(ctx, jobID)
	if err != nil {
		return err
	}
	if found {
		fmt.Fprintf(w, "recorded: %s (run %s, submitted %s)\n",
			job.Status, job.RunID, job.SubmittedAt.Local().Format(time.RFC3339))
		if job.ResultPath != "" {
			fmt.Fprintf(w, "archive:  %s\n", job.ResultPath)
		}
		if job.LastError != "" {
			fmt.Fprintf(w, "error:    %s\n", job.LastError)
		}
	} else {
		fmt.Fprintln(w, "recorded: (not in ledger)")
	}

	svc, err := newClueClient(cfg.Scoring)
	if err != nil {
		return err
	}
	rep, err := svc.Status(ctx, jobID)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "remote:   %s\n", rep.Status)
	if rep.DownloadURL != "" {
		fmt.Fprintf(w, "download: %s\n", rep.DownloadURL)
	}
	return nil
}

func runResume(cmd *cobra.Command, args []string) error {
	cfg, err := commandConfig(cmd)
	if err != nil {
		return err
	}
	applyMaxWait(cmd, &cfg)

	store, err := openLedger(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	o, err := newPoller(cfg, store, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	job, err := o.Resume(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "analyze with: repurpose-engine recommend %s\n", job.ResultPath)
	return nil
}
