package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "repurpose-engine/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`

	// MaxRetries bounds retries on rate limiting and gateway errors (default 5).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// ConflictPolicy decides what happens to a gene that per-file analysis
// finds regulated in both directions.
type ConflictPolicy string

const (
	// ConflictDrop removes genes that appear in both directions.
	ConflictDrop ConflictPolicy = "drop"

	// ConflictMajority keeps the direction with more votes; ties are dropped.
	ConflictMajority ConflictPolicy = "majority"
)

// SignatureConfig holds settings for signature extraction.
type SignatureConfig struct {
	// DataDir is the directory holding the expression files.
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// GroupFile is the group-definition file (default DataDir/dataset_label.txt).
	GroupFile string `json:"group_file" yaml:"group_file"`

	// Mode selects combined or per-file analysis.
	Mode AnalysisMode `json:"mode" yaml:"mode"`

	// ReferenceGroup and CaseGroup name the contrast: fold changes are
	// CaseGroup relative to ReferenceGroup.
	ReferenceGroup string `json:"reference_group" yaml:"reference_group"`
	CaseGroup      string `json:"case_group" yaml:"case_group"`

	// Log2FCThreshold is the minimum absolute log2 fold change (default 1.0).
	Log2FCThreshold float64 `json:"log2fc_threshold" yaml:"log2fc_threshold"`

	// Alpha is the maximum adjusted p-value (default 0.1).
	Alpha float64 `json:"alpha" yaml:"alpha"`

	// TopN caps each direction; zero or negative keeps every gene (default 30).
	TopN int `json:"top_n" yaml:"top_n"`

	// FillToTopN tops up a direction with fewer than TopN passing genes
	// using the same-sign genes of lowest adjusted p, ignoring the
	// thresholds. Off by default.
	FillToTopN bool `json:"fill_to_top_n" yaml:"fill_to_top_n"`

	// MinCount drops genes whose counts are below it in every sample (default 10).
	MinCount float64 `json:"min_count" yaml:"min_count"`

	// MinFileFraction is the share of per-file signatures a gene must
	// appear in to survive reconciliation (default 0.5).
	MinFileFraction float64 `json:"min_file_fraction" yaml:"min_file_fraction"`

	// ConflictPolicy handles genes regulated in opposite directions across files.
	ConflictPolicy ConflictPolicy `json:"conflict_policy" yaml:"conflict_policy"`
}

// ScoringConfig holds settings for the remote scoring job.
type ScoringConfig struct {
	HTTPConfig `yaml:",inline"`

	// BaseURL is the scoring API root (default https://api.clue.io/api).
	BaseURL string `json:"base_url" yaml:"base_url"`

	// APIKey is the scoring service user key.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	ToolID   string `json:"tool_id" yaml:"tool_id"`
	Dataset  string `json:"dataset" yaml:"dataset"`
	DataType string `json:"data_type" yaml:"data_type"`
	JobName  string `json:"job_name" yaml:"job_name"`

	// GeneInfoPath is the LINCS gene_info table (plain or gzip TSV).
	GeneInfoPath string `json:"gene_info_path" yaml:"gene_info_path"`

	// GeneInfoURL is where GeneInfoPath is downloaded from when missing.
	GeneInfoURL string `json:"gene_info_url" yaml:"gene_info_url"`

	// ResolveAliases enables HGNC previous/alias symbol lookups for
	// symbols without a direct mapping.
	ResolveAliases bool `json:"resolve_aliases" yaml:"resolve_aliases"`

	// PollInterval is the first wait between status polls (default 3m).
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval"`

	// MaxPollInterval caps the backoff between polls (default 10m).
	MaxPollInterval time.Duration `json:"max_poll_interval" yaml:"max_poll_interval"`

	// MaxWait is the local polling budget before giving up (default 6h).
	MaxWait time.Duration `json:"max_wait" yaml:"max_wait"`

	// ResultsDir receives downloaded archives.
	ResultsDir string `json:"results_dir" yaml:"results_dir"`
}

// ArchiveConfig holds settings for result archive parsing.
type ArchiveConfig struct {
	// WorkDir is where archives are extracted.
	WorkDir string `json:"work_dir" yaml:"work_dir"`

	// SummaryPath is the perturbation summary file relative to the archive root.
	SummaryPath string `json:"summary_path" yaml:"summary_path"`

	// ConnectivityPattern is the glob for the job-specific connectivity file.
	ConnectivityPattern string `json:"connectivity_pattern" yaml:"connectivity_pattern"`

	// SearchDirs lists the directories, relative to the archive root,
	// scanned for ConnectivityPattern.
	SearchDirs []string `json:"search_dirs" yaml:"search_dirs"`
}

// RankOrder selects the direction of the primary score ranking.
type RankOrder string

const (
	RankDescending RankOrder = "descending"

	// RankAscending ranks the most negative scores first, selecting
	// compounds that reverse the signature.
	RankAscending RankOrder = "ascending"
)

// ReportFormat selects the report encoding.
type ReportFormat string

const (
	ReportText ReportFormat = "text"
	ReportYAML ReportFormat = "yaml"
	ReportJSON ReportFormat = "json"
)

// RecommendConfig holds settings for ranking and enrichment.
type RecommendConfig struct {
	HTTPConfig `yaml:",inline"`

	// TopK is the number of ranked compounds to enrich (default 10).
	TopK int `json:"top_k" yaml:"top_k"`

	// ScoreColumn is the primary ranking column (default "TAG").
	ScoreColumn string `json:"score_column" yaml:"score_column"`

	// SecondaryColumn breaks ties on the primary score; optional.
	SecondaryColumn string `json:"secondary_column,omitempty" yaml:"secondary_column,omitempty"`

	Order RankOrder `json:"order" yaml:"order"`

	// IDPrefix keeps only identifiers with this prefix (default "BRD-").
	IDPrefix string `json:"id_prefix" yaml:"id_prefix"`

	// SimilarityThreshold is the minimum structural similarity in percent (default 60).
	SimilarityThreshold int `json:"similarity_threshold" yaml:"similarity_threshold"`

	// SimilarityLimit caps neighbors per compound (default 20).
	SimilarityLimit int `json:"similarity_limit" yaml:"similarity_limit"`

	// MinNeighborPhase drops neighbors below this clinical phase (default 2).
	MinNeighborPhase float64 `json:"min_neighbor_phase" yaml:"min_neighbor_phase"`

	Format ReportFormat `json:"format" yaml:"format"`
}

// LedgerConfig holds settings for the local job ledger.
type LedgerConfig struct {
	// Path is the SQLite database file.
	Path string `json:"path" yaml:"path"`
}

// PipelineConfig groups all stage configurations for the pipeline.
type PipelineConfig struct {
	// WorkDir is the root for signatures, results, and reports.
	WorkDir string `json:"work_dir" yaml:"work_dir"`

	Signature SignatureConfig `json:"signature" yaml:"signature"`
	Scoring   ScoringConfig   `json:"scoring" yaml:"scoring"`
	Archive   ArchiveConfig   `json:"archive" yaml:"archive"`
	Recommend RecommendConfig `json:"recommend" yaml:"recommend"`
	Ledger    LedgerConfig    `json:"ledger" yaml:"ledger"`
}

// DefaultPipelineConfig returns the configuration used when no file or
// flag overrides a value.
func DefaultPipelineConfig() PipelineConfig {
	http := HTTPConfig{
		Timeout:    60 * time.Second,
		UserAgent:  "repurpose-engine/0.1",
		MaxRetries: 5,
	}
	return PipelineConfig{
		WorkDir: "data",
		Signature: SignatureConfig{
			DataDir:         ".",
			Mode:            ModeCombined,
			ReferenceGroup:  "control",
			CaseGroup:       "treated",
			Log2FCThreshold: 1.0,
			Alpha:           0.1,
			TopN:            30,
			MinCount:        10,
			MinFileFraction: 0.5,
			ConflictPolicy:  ConflictDrop,
		},
		Scoring: ScoringConfig{
			HTTPConfig:      http,
			BaseURL:         "https://api.clue.io/api",
			ToolID:          "sig_gutc_tool",
			Dataset:         "Touchstone",
			DataType:        "L1000",
			JobName:         "repurpose",
			GeneInfoPath:    "data/GSE92742_Broad_LINCS_gene_info.txt.gz",
			GeneInfoURL:     "https://ftp.ncbi.nlm.nih.gov/geo/series/GSE92nnn/GSE92742/suppl/GSE92742_Broad_LINCS_gene_info.txt.gz",
			ResolveAliases:  true,
			PollInterval:    3 * time.Minute,
			MaxPollInterval: 10 * time.Minute,
			MaxWait:         6 * time.Hour,
			ResultsDir:      "data/results",
		},
		Archive: ArchiveConfig{
			WorkDir:             "data/results",
			SummaryPath:         "arfs/TAG/pert_id_summary.gct",
			ConnectivityPattern: "cs_*.gct",
			SearchDirs:          []string{".", "matrices/query"},
		},
		Recommend: RecommendConfig{
			HTTPConfig:          http,
			TopK:                10,
			ScoreColumn:         "TAG",
			Order:               RankDescending,
			IDPrefix:            "BRD-",
			SimilarityThreshold: 60,
			SimilarityLimit:     20,
			MinNeighborPhase:    2,
			Format:              ReportText,
		},
		Ledger: LedgerConfig{
			Path: "data/jobs.db",
		},
	}
}
