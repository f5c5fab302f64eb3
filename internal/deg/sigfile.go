// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package deg

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/repurpose-engine/pkg/types"
)

// SignatureFile is the on-disk representation of an extracted signature
// and the settings that produced it. A saved signature can be submitted
// later without re-running the analysis.
type SignatureFile struct {
	Signature types.Signature   `yaml:"signature"`
	Settings  SignatureSettings `yaml:"settings"`
	Summary   SignatureSummary  `yaml:"summary"`
}

// SignatureSettings stores the filter settings used for extraction.
type SignatureSettings struct {
	ReferenceGroup  string               `yaml:"reference_group"`
	CaseGroup       string               `yaml:"case_group"`
	Log2FCThreshold float64              `yaml:"log2fc_threshold"`
	Alpha           float64              `yaml:"alpha"`
	TopN            int                  `yaml:"top_n"`
	ConflictPolicy  types.ConflictPolicy `yaml:"conflict_policy,omitempty"`
}

// SignatureSummary stores set sizes and a timestamp.
type SignatureSummary struct {
	Up        int       `yaml:"up"`
	Down      int       `yaml:"down"`
	Timestamp time.Time `yaml:"timestamp"`
}

// WriteSignatureFile saves sig and the settings in cfg to path.
func WriteSignatureFile(path string, sig types.Signature, cfg types.SignatureConfig) error {
	sf := SignatureFile{
		Signature: sig,
		Settings: SignatureSettings{
			ReferenceGroup:  cfg.ReferenceGroup,
			CaseGroup:       cfg.CaseGroup,
			Log2FCThreshold: cfg.Log2FCThreshold,
			Alpha:           cfg.Alpha,
			TopN:            cfg.TopN,
		},
		Summary: SignatureSummary{
			Up:        len(sig.Up),
			Down:      len(sig.Down),
			Timestamp: time.Now().UTC(),
		},
	}
	if sig.Mode == types.ModePerFile {
		sf.Settings.ConflictPolicy = cfg.ConflictPolicy
	}

	data, err := yaml.Marshal(&sf)
	if err != nil {
		return fmt.Errorf("marshaling signature file: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadSignatureFile loads a saved signature and validates it.
func ReadSignatureFile(path string) (types.Signature, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.Signature{}, fmt.Errorf("reading signature file: %w", err)
	}
	var sf SignatureFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return types.Signature{}, fmt.Errorf("parsing signature file: %w", err)
	}
	if sf.Signature.IsEmpty() {
		return sf.Signature, fmt.Errorf("%w: %s", ErrEmptySignature, path)
	}
	if err := sf.Signature.Validate(); err != nil {
		return sf.Signature, fmt.Errorf("invalid signature file %s: %w", path, err)
	}
	return sf.Signature, nil
}
