// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"rs-miner/internal/patterns"
	"rs-miner/internal/verify"
)

// Config is the externally editable run descriptor: which fields of each
// table are eligible for pattern search, which pattern rules to compile,
// and the verification thresholds. Every section has a compiled-in default
// used when the file (or the section) is absent, so the pipeline runs
// without any configuration on disk.
type Config struct {
	// Default settings
	Defaults struct {
		DataDir      string `yaml:"data_dir"`
		OutputDir    string `yaml:"output_dir"`
		SnapshotFile string `yaml:"snapshot_file"`
		Checks       string `yaml:"checks"`
		Workers      int    `yaml:"workers"`
		Verbose      bool   `yaml:"verbose"`
		Debug        bool   `yaml:"debug"`
		NoColor      bool   `yaml:"no_color"`
		Quiet        bool   `yaml:"quiet"`
	} `yaml:"defaults"`

	// SearchFields lists, per table identifier, the fields eligible for
	// pattern search.
	SearchFields map[string][]string `yaml:"search_fields"`

	// Patterns are the match rules compiled into the matcher set.
	Patterns []patterns.Rule `yaml:"patterns"`

	// Verification settings for the official-list reconciliation.
	Verification struct {
		OfficialList   string   `yaml:"official_list"`
		FuzzyThreshold float64  `yaml:"fuzzy_threshold"`
		SubstringBoost float64  `yaml:"substring_boost"`
		Keywords       []string `yaml:"keywords"`
	} `yaml:"verification"`
}

// DefaultSearchFields is the compiled-in searchable-field descriptor,
// mirroring the fields the review-system extracts are known to carry
// free text in.
func DefaultSearchFields() map[string][]string {
	return map[string][]string{
		"projects":          {"事業名", "事業の目的", "事業の概要", "現状・課題"},
		"expenditure_info":  {"支出先名", "契約概要", "費目", "使途"},
		"goals_performance": {"アクティビティ／活動目標／成果目標", "活動指標／成果指標"},
		"expenditure_connections": {
			"支出先の支出先ブロック名",
			"資金の流れの補足情報",
		},
		"contracts": {
			"契約先名（国庫債務負担行為等による契約）",
			"契約概要（契約名）（国庫債務負担行為等による契約）",
		},
	}
}

// LoadConfig loads configuration from the specified file path
func LoadConfig(configPath string) (*Config, error) {
	// Default configuration
	config := &Config{}
	config.Defaults.DataDir = "data/extracted"
	config.Defaults.OutputDir = "data/output"
	config.Defaults.SnapshotFile = "data/output/snapshot.db"
	config.Defaults.Checks = "all"
	config.SearchFields = DefaultSearchFields()
	config.Patterns = patterns.DefaultRules()
	config.Verification.FuzzyThreshold = verify.DefaultFuzzyThreshold
	config.Verification.SubstringBoost = verify.DefaultSubstringBoost

	// If no config file specified, return default config
	if configPath == "" {
		return config, nil
	}

	// Read config file
	cleanPath := filepath.Clean(configPath)
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	err = yaml.Unmarshal(data, config)
	if err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	// Restore section defaults the file cleared by being present but empty
	if len(config.SearchFields) == 0 {
		config.SearchFields = DefaultSearchFields()
	}
	if len(config.Patterns) == 0 {
		config.Patterns = patterns.DefaultRules()
	}
	if config.Verification.FuzzyThreshold <= 0 {
		config.Verification.FuzzyThreshold = verify.DefaultFuzzyThreshold
	}
	if config.Verification.SubstringBoost <= 0 {
		config.Verification.SubstringBoost = verify.DefaultSubstringBoost
	}

	if err := ValidateConfig(config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// FindConfigFile looks for a configuration file in standard locations
func FindConfigFile() string {
	candidates := []string{
		"config.yaml",
		"rs-miner.yaml",
		"rs-miner.yml",
		".rs-miner.yaml",
		".rs-miner.yml",
	}
	for _, c := range candidates {
		if fileExists(c) {
			return c
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	xdgConfig := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfig == "" {
		xdgConfig = filepath.Join(home, ".config")
	}
	for _, c := range []string{
		filepath.Join(xdgConfig, "rs-miner", "config.yaml"),
		filepath.Join(xdgConfig, "rs-miner", "config.yml"),
	} {
		if fileExists(c) {
			return c
		}
	}
	return ""
}

// fileExists checks if a file exists and is not a directory
func fileExists(filename string) bool {
	info, err := os.Stat(filename)
	if os.IsNotExist(err) {
		return false
	}
	return info != nil && !info.IsDir()
}

// ValidateConfig validates thresholds and the searchable-field descriptor.
func ValidateConfig(config *Config) error {
	if config == nil {
		return fmt.Errorf("configuration cannot be nil")
	}
	if config.Verification.FuzzyThreshold > 1 {
		return fmt.Errorf("fuzzy_threshold %v out of range (0,1]", config.Verification.FuzzyThreshold)
	}
	if config.Verification.SubstringBoost > 1 {
		return fmt.Errorf("substring_boost %v out of range (0,1]", config.Verification.SubstringBoost)
	}
	for table, fields := range config.SearchFields {
		if len(fields) == 0 {
			return fmt.Errorf("search_fields for table %q is empty", table)
		}
	}
	return nil
}

// LoadConfigOrDefault loads configuration from configFile (or searches
// standard locations when configFile is empty). If loading fails, it
// returns a default configuration.
func LoadConfigOrDefault(configFile string) *Config {
	configPath := configFile
	if configPath == "" {
		configPath = FindConfigFile()
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		// Fall back to defaults; callers should not crash on a missing or bad config file.
		cfg, _ = LoadConfig("")
	}
	return cfg
}
