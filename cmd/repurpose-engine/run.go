// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/repurpose-engine/internal/deg"
	"github.com/pdiddy/repurpose-engine/internal/pipeline"
	"github.com/pdiddy/repurpose-engine/pkg/types"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full workflow: signature, scoring job, parsing, and report",
	Long: `Run extracts a signature from the expression data, submits it to CLUE,
polls until the job completes, downloads and parses the result archive,
and writes the enriched recommendation report.

Polling can take hours. Interrupting the command stops local polling only;
the remote job keeps running and can be picked up with resume.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().String("data-dir", "", "directory holding expression files (default from config)")
	runCmd.Flags().String("group-file", "", "group-definition file (default <data-dir>/dataset_label.txt)")
	runCmd.Flags().String("mode", "", "analysis mode: combined or per-file")
	runCmd.Flags().Float64("log2fc", 0, "minimum absolute log2 fold change (default 1.0)")
	runCmd.Flags().Float64("alpha", 0, "maximum adjusted p-value (default 0.1)")
	runCmd.Flags().Int("top-n", 0, "genes kept per direction (default 30)")
	runCmd.Flags().Duration("max-wait", 0, "local polling budget (default from config, 6h)")
	runCmd.Flags().Int("top-k", 0, "number of compounds to rank (default from config, 10)")
	runCmd.Flags().String("score-column", "", "primary score column (default TAG)")
	runCmd.Flags().Bool("ascending", false, "rank the most negative scores first")
	runCmd.Flags().String("format", "", "report format: text, yaml, or json")

	rootCmd.AddCommand(runCmd)
}

// formatFlag applies --format to cfg.
func formatFlag(cmd *cobra.Command, cfg *types.RecommendConfig) error {
	v, _ := cmd.Flags().GetString("format")
	switch f := types.ReportFormat(v); f {
	case "":
	case types.ReportText, types.ReportYAML, types.ReportJSON:
		cfg.Format = f
	default:
		return fmt.Errorf("unsupported format %q: use text, yaml, or json", v)
	}
	return nil
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := commandConfig(cmd)
	if err != nil {
		return err
	}
	if err := signatureConfig(cmd, &cfg.Signature); err != nil {
		return err
	}
	applyMaxWait(cmd, &cfg)
	if err := formatFlag(cmd, &cfg.Recommend); err != nil {
		return err
	}

	store, err := openLedger(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	w := cmd.OutOrStdout()
	p := &pipeline.Pipeline{Config: cfg, Logger: logger, Out: w}
	rankFlags(cmd, p)

	o, err := newOrchestrator(ctx, p.Config, store, w)
	if err != nil {
		return err
	}
	p.Signature = deg.NewExtractor(p.Config.Signature, logger)
	p.Jobs = o
	p.Parser = newParser(p.Config)
	p.Enricher = newAggregator(p.Config.Recommend)

	s, err := p.Run(ctx)
	if err != nil && s != nil && s.JobID != "" {
		fmt.Fprintf(w, "job %s is preserved; retry with: repurpose-engine resume %s\n", s.JobID, s.JobID)
	}
	return err
}
