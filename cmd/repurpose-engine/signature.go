// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pdiddy/repurpose-engine/internal/deg"
	"github.com/pdiddy/repurpose-engine/internal/pipeline"
	"github.com/pdiddy/repurpose-engine/pkg/types"
)

var signatureCmd = &cobra.Command{
	Use:   "signature",
	Short: "Extract an up/down gene signature from expression files",
	Long: `Signature reads the expression tables in the data directory and the
group-definition file, runs a differential expression test between the
reference and case groups, and writes the filtered up/down gene sets to
signature.yaml in the work directory.

In per-file mode each table is tested on its own and the per-file
signatures are reconciled by vote.`,
	RunE: runSignature,
}

func init() {
	signatureCmd.Flags().String("data-dir", "", "directory holding expression files (default from config)")
	signatureCmd.Flags().String("group-file", "", "group-definition file (default <data-dir>/dataset_label.txt)")
	signatureCmd.Flags().String("mode", "", "analysis mode: combined or per-file")
	signatureCmd.Flags().Float64("log2fc", 0, "minimum absolute log2 fold change (default 1.0)")
	signatureCmd.Flags().Float64("alpha", 0, "maximum adjusted p-value (default 0.1)")
	signatureCmd.Flags().Int("top-n", 0, "genes kept per direction (default 30)")
	signatureCmd.Flags().String("out", "", "output file (default <work-dir>/signature.yaml)")

	rootCmd.AddCommand(signatureCmd)
}

// signatureConfig applies the signature flags to cfg.
func signatureConfig(cmd *cobra.Command, cfg *types.SignatureConfig) error {
	if v, _ := cmd.Flags().GetString("data-dir"); v != "" {
		cfg.DataDir = v
	}
	if v, _ := cmd.Flags().GetString("group-file"); v != "" {
		cfg.GroupFile = v
	}
	if v, _ := cmd.Flags().GetString("mode"); v != "" {
		cfg.Mode = types.AnalysisMode(v)
		if !cfg.Mode.Valid() {
			return fmt.Errorf("unknown mode %q: use combined or per-file", v)
		}
	}
	if v, _ := cmd.Flags().GetFloat64("log2fc"); v > 0 {
		cfg.Log2FCThreshold = v
	}
	if v, _ := cmd.Flags().GetFloat64("alpha"); v > 0 {
		cfg.Alpha = v
	}
	if cmd.Flags().Changed("top-n") {
		cfg.TopN, _ = cmd.Flags().GetInt("top-n")
	}
	return nil
}

func runSignature(cmd *cobra.Command, args []string) error {
	cfg, err := commandConfig(cmd)
	if err != nil {
		return err
	}
	if err := signatureConfig(cmd, &cfg.Signature); err != nil {
		return err
	}

	sig, err := deg.NewExtractor(cfg.Signature, logger).Extract(cmd.Context())
	if err != nil {
		return err
	}

	out, _ := cmd.Flags().GetString("out")
	if out == "" {
		out = filepath.Join(cfg.WorkDir, pipeline.SignatureFile)
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	if err := deg.WriteSignatureFile(out, sig, cfg.Signature); err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "up (%d):   %v\n", len(sig.Up), sig.Up)
	fmt.Fprintf(w, "down (%d): %v\n", len(sig.Down), sig.Down)
	fmt.Fprintf(w, "saved: %s\n", out)
	return nil
}
