// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"rs-miner/internal/config"
	"rs-miner/internal/core"
	"rs-miner/internal/version"

	"rs-miner/internal/formatters"
	_ "rs-miner/internal/formatters/csv"
	_ "rs-miner/internal/formatters/json"
	_ "rs-miner/internal/formatters/statscsv"
	_ "rs-miner/internal/formatters/text"

	"github.com/fatih/color"
	"golang.org/x/term"
)

// finalConfiguration holds the resolved values after merging config file
// settings with command line flags.
type finalConfiguration struct {
	dataDir      string
	outputDir    string
	snapshotFile string
	officialList string
	checksToRun  string
	workers      int
	verbose      bool
	debug        bool
	noColor      bool
	quiet        bool
}

// resolveConfiguration resolves final configuration values from the config
// file and command line flags. Flags win only when explicitly set.
func resolveConfiguration(cfg *config.Config, flags *configFlags) *finalConfiguration {
	final := &finalConfiguration{}

	// Data directory
	final.dataDir = "data/extracted"
	if cfg.Defaults.DataDir != "" {
		final.dataDir = cfg.Defaults.DataDir
	}
	if isFlagSet("data") && flags.dataDir != "" {
		final.dataDir = flags.dataDir
	}

	// Output directory
	final.outputDir = "data/output"
	if cfg.Defaults.OutputDir != "" {
		final.outputDir = cfg.Defaults.OutputDir
	}
	if isFlagSet("output") && flags.outputDir != "" {
		final.outputDir = flags.outputDir
	}

	// Snapshot file
	final.snapshotFile = "data/output/snapshot.db"
	if cfg.Defaults.SnapshotFile != "" {
		final.snapshotFile = cfg.Defaults.SnapshotFile
	}
	if isFlagSet("snapshot") {
		final.snapshotFile = flags.snapshotFile
	}

	// Official project name list
	final.officialList = cfg.Verification.OfficialList
	if isFlagSet("official-list") {
		final.officialList = flags.officialList
	}

	// Checks to run
	final.checksToRun = "all"
	if cfg.Defaults.Checks != "" {
		final.checksToRun = cfg.Defaults.Checks
	}
	if isFlagSet("checks") && flags.checksToRun != "" {
		final.checksToRun = flags.checksToRun
	}

	// Workers
	final.workers = cfg.Defaults.Workers
	if isFlagSet("workers") {
		final.workers = flags.workers
	}

	// Verbose
	final.verbose = cfg.Defaults.Verbose
	if isFlagSet("verbose") {
		final.verbose = flags.verbose
	}

	// Debug
	final.debug = cfg.Defaults.Debug
	if isFlagSet("debug") {
		final.debug = flags.debug
	}

	// No color
	final.noColor = cfg.Defaults.NoColor
	if isFlagSet("no-color") {
		final.noColor = flags.noColor
	}

	// Quiet
	final.quiet = cfg.Defaults.Quiet
	if isFlagSet("quiet") {
		final.quiet = flags.quiet
	}

	return final
}

// configFlags holds the raw command line flag values.
type configFlags struct {
	dataDir      string
	outputDir    string
	snapshotFile string
	officialList string
	checksToRun  string
	workers      int
	verbose      bool
	debug        bool
	noColor      bool
	quiet        bool
}

func main() {
	// Parse command line flags
	dataDir := flag.String("data", "", "Directory containing the extracted CSV tables (default: data/extracted)")
	outputDir := flag.String("output", "", "Directory where output artifacts are written (default: data/output)")
	configFile := flag.String("config", "", "Path to configuration file (YAML)")
	snapshotFile := flag.String("snapshot", "", "Path to the snapshot database file (default: data/output/snapshot.db)")
	officialList := flag.String("official-list", "", "Path to the official project name list for verification")
	checksToRun := flag.String("checks", "", "Phases to run: snapshot, search, stats, verify, or combinations like 'search,verify' (default: all)")
	workers := flag.Int("workers", 0, "Number of parallel search workers (default: number of CPUs)")
	verbose := flag.Bool("verbose", false, "Display detailed information for each matched project")
	debug := flag.Bool("debug", false, "Enable debug logging to show load and consolidation flow")
	noColor := flag.Bool("no-color", false, "Disable colored output")
	quiet := flag.Bool("quiet", false, "Suppress the summary output (useful for scripts and CI/CD)")
	showHelp := flag.Bool("help", false, "Show help information")
	showVersion := flag.Bool("version", false, "Show version information")

	flag.Parse()

	// Handle version command
	if *showVersion {
		fmt.Println(version.Info())
		return
	}

	if *showHelp {
		printUsage()
		return
	}

	flags := &configFlags{
		dataDir:      *dataDir,
		outputDir:    *outputDir,
		snapshotFile: *snapshotFile,
		officialList: *officialList,
		checksToRun:  *checksToRun,
		workers:      *workers,
		verbose:      *verbose,
		debug:        *debug,
		noColor:      *noColor,
		quiet:        *quiet,
	}

	cfg := config.LoadConfigOrDefault(*configFile)
	finalConfig := resolveConfiguration(cfg, flags)

	if finalConfig.noColor || !isTerminal(os.Stdout) {
		color.NoColor = true
	}

	result, err := core.RunPipeline(core.PipelineConfig{
		DataDir:      finalConfig.dataDir,
		OutputDir:    finalConfig.outputDir,
		SnapshotFile: finalConfig.snapshotFile,
		OfficialList: finalConfig.officialList,
		Checks:       splitChecks(finalConfig.checksToRun),
		Workers:      finalConfig.workers,
		Debug:        finalConfig.debug,
		Verbose:      finalConfig.verbose,
		Quiet:        finalConfig.quiet,
		Config:       cfg,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if !finalConfig.quiet {
		textFormatter, ok := formatters.Get("text")
		if !ok {
			fmt.Fprintln(os.Stderr, "Error: text formatter not registered")
			os.Exit(1)
		}
		summary, err := textFormatter.Format(result.Report, formatters.FormatterOptions{
			Verbose: finalConfig.verbose,
			NoColor: color.NoColor,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Print(summary)
		fmt.Printf("Artifacts written to %s\n", finalConfig.outputDir)
	}

	// Non-zero exit when the run degraded, so CI pipelines notice
	if len(result.Warnings) > 0 {
		if !finalConfig.quiet {
			fmt.Fprintf(os.Stderr, "Completed with %s\n",
				pluralize(len(result.Warnings), "warning"))
		}
		os.Exit(2)
	}
}

// splitChecks converts the comma-separated checks flag into a slice.
func splitChecks(checks string) []string {
	var out []string
	for _, c := range strings.Split(checks, ",") {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

// isFlagSet checks if a flag was explicitly set on the command line
func isFlagSet(name string) bool {
	found := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

// isTerminal checks if the file descriptor is a terminal
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func pluralize(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return strconv.Itoa(n) + " " + word + "s"
}

func printUsage() {
	fmt.Printf("%s\n\n", version.Info())
	fmt.Println("Usage: rs-miner [options]")
	fmt.Println()
	fmt.Println("Consolidates review-system CSV extracts into master records, searches")
	fmt.Println("them for configured text patterns, and verifies matched projects")
	fmt.Println("against an official project name list.")
	fmt.Println()
	fmt.Println("Options:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("Output formats:")
	for _, name := range formatters.List() {
		if f, ok := formatters.Get(name); ok {
			fmt.Printf("  %-8s %s\n", name, f.Description())
		}
	}
}
