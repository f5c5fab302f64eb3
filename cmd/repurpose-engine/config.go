// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/repurpose-engine/internal/secrets"
	"github.com/pdiddy/repurpose-engine/pkg/types"
)

// loadConfig layers the pipeline configuration: built-in defaults, then
// the config file viper found, then environment variables.
func loadConfig(v *viper.Viper) (types.PipelineConfig, error) {
	cfg := types.DefaultPipelineConfig()

	if path := v.ConfigFileUsed(); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	overrideString(v, "work_dir", &cfg.WorkDir)
	overrideString(v, "signature.data_dir", &cfg.Signature.DataDir)
	overrideString(v, "scoring.base_url", &cfg.Scoring.BaseURL)
	overrideString(v, "scoring.api_key", &cfg.Scoring.APIKey)
	overrideString(v, "scoring.gene_info_path", &cfg.Scoring.GeneInfoPath)
	overrideString(v, "scoring.results_dir", &cfg.Scoring.ResultsDir)
	overrideString(v, "archive.work_dir", &cfg.Archive.WorkDir)
	overrideString(v, "ledger.path", &cfg.Ledger.Path)
	if v.IsSet("scoring.max_wait") {
		cfg.Scoring.MaxWait = v.GetDuration("scoring.max_wait")
	}
	if v.IsSet("scoring.poll_interval") {
		cfg.Scoring.PollInterval = v.GetDuration("scoring.poll_interval")
	}
	if v.IsSet("signature.fill_to_top_n") {
		cfg.Signature.FillToTopN = v.GetBool("signature.fill_to_top_n")
	}
	if v.IsSet("recommend.top_k") {
		cfg.Recommend.TopK = v.GetInt("recommend.top_k")
	}
	if v.IsSet("recommend.format") {
		cfg.Recommend.Format = types.ReportFormat(v.GetString("recommend.format"))
	}
	return cfg, nil
}

func overrideString(v *viper.Viper, key string, dst *string) {
	if v.IsSet(key) {
		*dst = v.GetString(key)
	}
}

// commandConfig loads the configuration and applies flags shared by all
// subcommands.
func commandConfig(cmd *cobra.Command) (types.PipelineConfig, error) {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return cfg, err
	}
	if workDir, _ := cmd.Flags().GetString("work-dir"); workDir != "" {
		defaults := types.DefaultPipelineConfig()
		results := filepath.Join(workDir, "results")
		if cfg.Scoring.ResultsDir == defaults.Scoring.ResultsDir {
			cfg.Scoring.ResultsDir = results
		}
		if cfg.Archive.WorkDir == defaults.Archive.WorkDir {
			cfg.Archive.WorkDir = results
		}
		cfg.WorkDir = workDir
	}
	cfg.Scoring.APIKey = loadedSecrets.Resolve(secrets.ClueAPIKey, cfg.Scoring.APIKey)
	return cfg, nil
}
