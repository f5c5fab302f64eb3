// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/repurpose-engine/pkg/types"
)

// ExportEntry holds a job record with its transition history.
type ExportEntry struct {
	Job         types.Job          `json:"job" yaml:"job"`
	Transitions []types.Transition `json:"transitions" yaml:"transitions"`
}

// Export returns the jobs matching opts with their histories.
func (s *Store) Export(ctx context.Context, opts QueryOptions) ([]ExportEntry, error) {
	jobs, err := s.Jobs(ctx, opts)
	if err != nil {
		return nil, err
	}
	entries := make([]ExportEntry, 0, len(jobs))
	for _, j := range jobs {
		ts, err := s.Transitions(ctx, j.RunID)
		if err != nil {
			return nil, err
		}
		entries = append(entries, ExportEntry{Job: j, Transitions: ts})
	}
	return entries, nil
}

// ExportYAML writes the ledger snapshot to path as YAML.
func (s *Store) ExportYAML(ctx context.Context, path string, opts QueryOptions) error {
	entries, err := s.Export(ctx, opts)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(entries)
	if err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ExportJSON writes the ledger snapshot to path as JSON.
func (s *Store) ExportJSON(ctx context.Context, path string, opts QueryOptions) error {
	entries, err := s.Export(ctx, opts)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
