// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package core

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"rs-miner/internal/config"
	"rs-miner/internal/consolidate"
	"rs-miner/internal/formatters"
	"rs-miner/internal/loader"
	"rs-miner/internal/observability"
	"rs-miner/internal/patterns"
	"rs-miner/internal/search"
	"rs-miner/internal/snapshot"
	"rs-miner/internal/stats"
	"rs-miner/internal/tables"
	"rs-miner/internal/verify"
)

// PipelineConfig holds configuration for one batch run.
type PipelineConfig struct {
	DataDir      string
	OutputDir    string
	SnapshotFile string
	OfficialList string
	Checks       []string
	Workers      int
	Debug        bool
	Verbose      bool
	Quiet        bool
	Config       *config.Config
	LogWriter    io.Writer // defaults to os.Stderr
}

// PipelineResult holds everything a single batch run derived.
type PipelineResult struct {
	Master        *consolidate.Master
	Results       map[tables.EntityKey]*search.Result
	Verification  []verify.Record
	Report        *formatters.Report
	LoadedTables  []string
	MissingTables []string
	Warnings      []observability.Warning
}

// RunPipeline performs the batch pipeline shared by the CLI: load all
// source tables, consolidate them into the master corpus, run the
// multi-pattern search, aggregate, verify against the official list, and
// write every output artifact as a complete file in one shot. Degradation
// is best-effort: only a failed primary table aborts the run.
func RunPipeline(pc PipelineConfig) (*PipelineResult, error) {
	// Build observer
	logw := pc.LogWriter
	if logw == nil {
		logw = os.Stderr
	}
	observer := observability.NewStandardObserver(observability.ObservabilityMetrics, logw)
	if pc.Debug {
		debugObs := observability.NewDebugObserver(logw)
		observer = debugObs.StandardObserver
		observer.DebugObserver = debugObs
	}

	cfg := pc.Config
	if cfg == nil {
		cfg = config.LoadConfigOrDefault("")
	}

	checks := ParseChecksToRun(pc.Checks)

	// Load every registered table up front; processing is pure in-memory
	// from here on.
	doneLoad := observer.StartStep("loader", "load source tables", "")
	ld := loader.New(pc.DataDir, observer)
	loaded, err := ld.LoadAll()
	if err != nil {
		doneLoad(false, err.Error())
		return nil, fmt.Errorf("loading source tables: %w", err)
	}

	var loadedIDs, missingIDs []string
	for _, spec := range tables.Registry() {
		if loaded[spec.ID] != nil {
			loadedIDs = append(loadedIDs, spec.ID)
		} else {
			observer.Detail("loader", "table missing: "+spec.ID)
			missingIDs = append(missingIDs, spec.ID)
		}
	}
	doneLoad(true, fmt.Sprintf("%d tables loaded, %d missing", len(loadedIDs), len(missingIDs)))

	result := &PipelineResult{
		LoadedTables:  loadedIDs,
		MissingTables: missingIDs,
	}

	// Consolidate
	doneConsolidate := observer.StartStep("consolidate", "build master corpus", "")
	engine := consolidate.NewEngine(observer)
	master, err := engine.Consolidate(loaded)
	if err != nil {
		doneConsolidate(false, err.Error())
		return nil, fmt.Errorf("consolidation: %w", err)
	}
	result.Master = master
	observer.Metric("consolidate", "anomalies", len(master.Anomalies()))
	doneConsolidate(true, fmt.Sprintf("%d master records", master.Len()))

	// Snapshot the loaded tables and the master corpus for fast re-loading
	skippedChildren := 0
	if checks["snapshot"] && pc.SnapshotFile != "" {
		doneSnapshot := observer.StartStep("snapshot", "persist tables and master", "")
		n, err := writeSnapshot(pc.SnapshotFile, loaded, master, observer)
		if err != nil {
			doneSnapshot(false, err.Error())
			observer.Warnf("snapshot", "", "snapshot not written: %v", err)
		} else {
			doneSnapshot(true, fmt.Sprintf("%d child records skipped", n))
		}
		skippedChildren = n
	}

	// Compile patterns; malformed rules are skipped with a warning
	matchers, compileErrs := patterns.Compile(cfg.Patterns)
	for _, cerr := range compileErrs {
		observer.Warnf("patterns", "", "%v", cerr)
	}

	// Search
	if checks["search"] {
		doneSearch := observer.StartStep("search", "multi-pattern search", "")
		searcher := search.NewEngine(matchers, cfg.SearchFields, observer)
		result.Results = searcher.ComprehensiveSearch(searchableTables(loaded, cfg), pc.Workers)
		search.MergeWithMaster(result.Results, master)
		observer.Metric("search", "matched_keys", len(result.Results))
		doneSearch(true, fmt.Sprintf("%d keys matched", len(result.Results)))
	} else {
		result.Results = map[tables.EntityKey]*search.Result{}
	}

	// Verify against the official list
	if checks["verify"] && pc.OfficialList != "" {
		doneVerify := observer.StartStep("verify", "match against official list", "")
		officials, err := verify.LoadOfficialList(pc.OfficialList)
		if err != nil {
			doneVerify(false, err.Error())
			observer.Warnf("verify", "", "official list not loaded: %v", err)
		} else {
			verifier := verify.NewVerifier(
				cfg.Verification.FuzzyThreshold,
				cfg.Verification.SubstringBoost,
				cfg.Verification.Keywords,
				observer,
			)
			candidates := verify.CandidatesFrom(result.Results, master)
			result.Verification = verifier.Classify(officials, candidates)
			doneVerify(true, fmt.Sprintf("%d candidates classified", len(candidates)))
		}
	}

	// Aggregate and assemble the report
	report := &formatters.Report{
		GeneratedAt:         time.Now(),
		MasterRecords:       master.Len(),
		LoadedTables:        loadedIDs,
		MissingTables:       missingIDs,
		Results:             result.Results,
		Verification:        result.Verification,
		Anomalies:           master.Anomalies(),
		SkippedChildRecords: skippedChildren,
	}
	if checks["stats"] {
		report.MinistryCounts = stats.GroupCount(result.Results, "府省庁")
		report.PatternCounts = stats.CrossTabulate(result.Results, stats.ByPattern)
		report.TableCounts = stats.CrossTabulate(result.Results, stats.ByTable)
	}
	report.Warnings = observer.Warnings()
	result.Report = report
	result.Warnings = report.Warnings

	// Write output artifacts
	if pc.OutputDir != "" {
		if err := writeArtifacts(pc, report); err != nil {
			return nil, fmt.Errorf("writing outputs: %w", err)
		}
	}

	return result, nil
}

// writeSnapshot persists the loaded tables and master corpus, returning
// the number of child records skipped during serialization.
func writeSnapshot(path string, loaded map[string]*tables.SourceTable, master *consolidate.Master, observer *observability.StandardObserver) (int, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return 0, err
	}
	store, err := snapshot.Open(path)
	if err != nil {
		return 0, err
	}
	defer store.Close()

	for _, spec := range tables.Registry() {
		t := loaded[spec.ID]
		if t == nil {
			continue
		}
		if err := store.SaveTable(t); err != nil {
			observer.Warnf("snapshot", spec.ID, "table not snapshotted: %v", err)
		}
	}

	saveStats, err := store.SaveMaster(master)
	if err != nil {
		return 0, err
	}
	if saveStats.SkippedRecords > 0 {
		observer.Warnf("snapshot", "", "%d child records skipped during serialization", saveStats.SkippedRecords)
	}
	return saveStats.SkippedRecords, nil
}

// writeArtifacts renders and writes every output file in one shot. A
// partially written artifact from an interrupted run is invalid and gets
// regenerated, never resumed.
func writeArtifacts(pc PipelineConfig, report *formatters.Report) error {
	if err := os.MkdirAll(pc.OutputDir, 0750); err != nil {
		return err
	}

	options := formatters.FormatterOptions{Verbose: pc.Verbose, NoColor: true}
	artifacts := map[string]string{
		"search_results": "json",
		"verification":   "csv",
		"statistics":     "stats",
		"summary":        "text",
	}
	for stem, format := range artifacts {
		f, ok := formatters.Get(format)
		if !ok {
			return fmt.Errorf("formatter %q not registered", format)
		}
		content, err := f.Format(report, options)
		if err != nil {
			return fmt.Errorf("formatting %s: %w", stem, err)
		}
		path := filepath.Join(pc.OutputDir, stem+f.FileExtension())
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			return err
		}
	}
	return nil
}

// searchableTables returns the loaded tables that have configured search
// fields, in registry order so result merging stays deterministic.
func searchableTables(loaded map[string]*tables.SourceTable, cfg *config.Config) []*tables.SourceTable {
	var out []*tables.SourceTable
	for _, spec := range tables.Registry() {
		t := loaded[spec.ID]
		if t == nil {
			continue
		}
		if len(cfg.SearchFields[spec.ID]) > 0 {
			out = append(out, t)
		}
	}
	return out
}

// ParseChecksToRun converts a slice of phase names into an enabled-phase
// map. An empty slice or ["all"] enables every phase.
func ParseChecksToRun(checks []string) map[string]bool {
	result := map[string]bool{
		"snapshot": false,
		"search":   false,
		"stats":    false,
		"verify":   false,
	}

	if len(checks) == 0 || (len(checks) == 1 && checks[0] == "all") {
		for key := range result {
			result[key] = true
		}
		return result
	}

	for _, check := range checks {
		if checkStr := strings.ToLower(strings.TrimSpace(check)); checkStr != "" {
			if _, exists := result[checkStr]; exists {
				result[checkStr] = true
			}
		}
	}

	return result
}
