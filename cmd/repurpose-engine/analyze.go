// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/pdiddy/repurpose-engine/internal/pipeline"
	"github.com/pdiddy/repurpose-engine/internal/recommend"
	"github.com/pdiddy/repurpose-engine/pkg/types"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <archive>",
	Short: "Parse a result archive and show the top-ranked compounds",
	Long: `Analyze extracts a downloaded result archive (or reads an already
extracted directory), parses the perturbation summary and connectivity
tables, and prints the ranked compounds without contacting ChEMBL.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

var recommendCmd = &cobra.Command{
	Use:   "recommend <archive>",
	Short: "Rank compounds from a result archive and write the enriched report",
	Long: `Recommend parses a result archive, ranks compounds by the configured
score column, enriches the top entries with ChEMBL records and structural
neighbors, and writes the report to the work directory. Lookup failures
are noted on the affected entries and never abort the report.`,
	Args: cobra.ExactArgs(1),
	RunE: runRecommend,
}

func init() {
	for _, c := range []*cobra.Command{analyzeCmd, recommendCmd} {
		c.Flags().Int("top-k", 0, "number of compounds to rank (default from config, 10)")
		c.Flags().String("score-column", "", "primary score column (default TAG)")
		c.Flags().Bool("ascending", false, "rank the most negative scores first")
	}
	recommendCmd.Flags().String("format", "", "report format: text, yaml, or json")

	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(recommendCmd)
}

func rankFlags(cmd *cobra.Command, p *pipeline.Pipeline) {
	rc := &p.Config.Recommend
	if v, _ := cmd.Flags().GetInt("top-k"); v > 0 {
		rc.TopK = v
	}
	if v, _ := cmd.Flags().GetString("score-column"); v != "" {
		rc.ScoreColumn = v
	}
	if v, _ := cmd.Flags().GetBool("ascending"); v {
		rc.Order = types.RankAscending
	}
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := commandConfig(cmd)
	if err != nil {
		return err
	}
	p := &pipeline.Pipeline{Config: cfg}
	rankFlags(cmd, p)

	res, err := newParser(p.Config).Parse(cmd.Context(), args[0], "")
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "root: %s\n", res.Root)
	fmt.Fprintf(w, "%s: %d rows (%d excluded)\n", res.PertSummary.Name, res.PertSummary.Len(), res.PertSummary.Excluded)
	fmt.Fprintf(w, "%s: %d rows (%d excluded)\n\n", res.Connectivity.Name, res.Connectivity.Len(), res.Connectivity.Excluded)

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"Rank", "Compound", "Name", p.Config.Recommend.ScoreColumn})
	for i, c := range recommend.Rank(res.PertSummary, p.Config.Recommend) {
		name := c.Name
		if name == "" {
			name, _ = res.CompoundName(c.ID)
		}
		tw.AppendRow(table.Row{i + 1, c.ID, name, strconv.FormatFloat(c.Score, 'f', 4, 64)})
	}
	tw.Render()
	return nil
}

func runRecommend(cmd *cobra.Command, args []string) error {
	cfg, err := commandConfig(cmd)
	if err != nil {
		return err
	}
	p := &pipeline.Pipeline{Config: cfg, Logger: logger, Out: cmd.OutOrStdout()}
	rankFlags(cmd, p)
	if err := formatFlag(cmd, &p.Config.Recommend); err != nil {
		return err
	}
	p.Parser = newParser(p.Config)
	p.Enricher = newAggregator(p.Config.Recommend)

	return p.Recommend(cmd.Context(), &pipeline.Summary{ArchivePath: args[0]})
}
