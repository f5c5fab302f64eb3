// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// CompoundRecord is the subset of a ChEMBL molecule record used in reports.
type CompoundRecord struct {
	ChEMBLID string `json:"chembl_id" yaml:"chembl_id"`

	// SearchScore is the relevance score of the name search hit.
	SearchScore *float64 `json:"search_score,omitempty" yaml:"search_score,omitempty"`

	// PrefName is the preferred (official) drug name.
	PrefName string `json:"pref_name,omitempty" yaml:"pref_name,omitempty"`

	// ATCClassifications lists ATC codes; empty when the drug is not marketed.
	ATCClassifications []string `json:"atc_classifications,omitempty" yaml:"atc_classifications,omitempty"`

	// MaxPhase is the highest clinical trial phase reached. Nil when unknown.
	MaxPhase *float64 `json:"max_phase,omitempty" yaml:"max_phase,omitempty"`

	// TherapeuticFlag reports whether the molecule is used therapeutically.
	TherapeuticFlag bool `json:"therapeutic_flag" yaml:"therapeutic_flag"`

	SMILES           string `json:"smiles,omitempty" yaml:"smiles,omitempty"`
	StandardInChIKey string `json:"standard_inchi_key,omitempty" yaml:"standard_inchi_key,omitempty"`
}

// SimilarCompound is a structural neighbor of a candidate compound.
type SimilarCompound struct {
	CompoundRecord `yaml:",inline"`

	// Similarity is the Tanimoto similarity in percent.
	Similarity float64 `json:"similarity" yaml:"similarity"`
}

// RecommendationEntry is one ranked candidate compound in the final report.
type RecommendationEntry struct {
	// Rank is the 1-based position in the ranking.
	Rank int `json:"rank" yaml:"rank"`

	// CompoundID is the perturbagen identifier, e.g. a Broad ID.
	CompoundID string `json:"compound_id" yaml:"compound_id"`

	// Name is the compound name from the connectivity metadata.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Score is the primary ranking score.
	Score float64 `json:"score" yaml:"score"`

	// SecondaryScore is the tie-breaking score, when configured.
	SecondaryScore *float64 `json:"secondary_score,omitempty" yaml:"secondary_score,omitempty"`

	// Compound is the ChEMBL record; nil when the lookup found nothing.
	Compound *CompoundRecord `json:"compound,omitempty" yaml:"compound,omitempty"`

	// Similar lists structural neighbors that passed the phase filter.
	Similar []SimilarCompound `json:"similar,omitempty" yaml:"similar,omitempty"`

	// DuplicateOf names the higher-ranked compound that resolved to the
	// same ChEMBL molecule.
	DuplicateOf string `json:"duplicate_of,omitempty" yaml:"duplicate_of,omitempty"`

	// EnrichmentError describes a metadata lookup that failed for this entry.
	EnrichmentError string `json:"enrichment_error,omitempty" yaml:"enrichment_error,omitempty"`
}
