// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package recommend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/repurpose-engine/pkg/types"
)

// ReportExt returns the file extension for format.
func ReportExt(format types.ReportFormat) string {
	switch format {
	case types.ReportYAML:
		return ".yaml"
	case types.ReportJSON:
		return ".json"
	default:
		return ".txt"
	}
}

// WriteReport renders entries in format and writes them to path in one
// step: the report is rendered into a temporary file in the same
// directory and renamed into place.
func WriteReport(path string, entries []types.RecommendationEntry, format types.ReportFormat) error {
	var buf bytes.Buffer
	if err := RenderReport(&buf, entries, format); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".report-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing report: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming report: %w", err)
	}
	return nil
}

// RenderReport encodes entries to w.
func RenderReport(w io.Writer, entries []types.RecommendationEntry, format types.ReportFormat) error {
	if entries == nil {
		entries = []types.RecommendationEntry{}
	}
	switch format {
	case types.ReportText, "":
		renderText(w, entries)
		return nil
	case types.ReportYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(entries); err != nil {
			return fmt.Errorf("encoding YAML report: %w", err)
		}
		return enc.Close()
	case types.ReportJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(entries); err != nil {
			return fmt.Errorf("encoding JSON report: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

func renderText(w io.Writer, entries []types.RecommendationEntry) {
	fmt.Fprintln(w, "Candidate compounds")
	fmt.Fprintln(w)

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"Rank", "Compound", "Name", "Score", "ChEMBL", "Phase", "Neighbors", "Note"})
	for _, e := range entries {
		chemblID, phase := "-", "-"
		if e.Compound != nil {
			chemblID = e.Compound.ChEMBLID
			phase = formatPhase(e.Compound.MaxPhase)
		}
		tw.AppendRow(table.Row{
			e.Rank, e.CompoundID, orDash(e.Name), strconv.FormatFloat(e.Score, 'f', 4, 64),
			chemblID, phase, len(e.Similar), note(e),
		})
	}
	tw.Render()

	for _, e := range entries {
		fmt.Fprintf(w, "\n%d. %s", e.Rank, e.CompoundID)
		if e.Name != "" {
			fmt.Fprintf(w, " (%s)", e.Name)
		}
		fmt.Fprintln(w)
		fmt.Fprintf(w, "   score: %.4f\n", e.Score)
		if e.SecondaryScore != nil {
			fmt.Fprintf(w, "   secondary score: %.4f\n", *e.SecondaryScore)
		}
		if e.EnrichmentError != "" {
			fmt.Fprintf(w, "   enrichment error: %s\n", e.EnrichmentError)
		}
		if e.Compound == nil {
			continue
		}
		c := e.Compound
		fmt.Fprintf(w, "   ChEMBL: %s %s\n", c.ChEMBLID, c.PrefName)
		fmt.Fprintf(w, "   max phase: %s  therapeutic: %t\n", formatPhase(c.MaxPhase), c.TherapeuticFlag)
		if len(c.ATCClassifications) > 0 {
			fmt.Fprintf(w, "   ATC: %s\n", strings.Join(c.ATCClassifications, ", "))
		}
		if c.SMILES != "" {
			fmt.Fprintf(w, "   SMILES: %s\n", c.SMILES)
		}
		if c.StandardInChIKey != "" {
			fmt.Fprintf(w, "   standard InChI key: %s\n", c.StandardInChIKey)
		}
		if e.DuplicateOf != "" {
			fmt.Fprintf(w, "   same molecule as %s\n", e.DuplicateOf)
		}
		for _, s := range e.Similar {
			fmt.Fprintf(w, "   similar: %s %s (%.1f%%, phase %s)\n",
				s.ChEMBLID, orDash(s.PrefName), s.Similarity, formatPhase(s.MaxPhase))
		}
	}
}

func note(e types.RecommendationEntry) string {
	switch {
	case e.EnrichmentError != "":
		return "enrichment failed"
	case e.DuplicateOf != "":
		return "duplicate of " + e.DuplicateOf
	default:
		return ""
	}
}

func formatPhase(p *float64) string {
	if p == nil {
		return "-"
	}
	return strconv.FormatFloat(*p, 'f', -1, 64)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
