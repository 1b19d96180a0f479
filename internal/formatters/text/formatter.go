// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package text

import (
	"fmt"
	"strings"

	"rs-miner/internal/formatters"
	"rs-miner/internal/search"
	"rs-miner/internal/verify"

	"github.com/fatih/color"
)

// Formatter implements the human-readable run summary.
type Formatter struct {
	colors map[string]*color.Color
}

// NewFormatter creates a new text formatter
func NewFormatter() *Formatter {
	return &Formatter{
		colors: map[string]*color.Color{
			"green":  color.New(color.FgGreen),
			"yellow": color.New(color.FgYellow),
			"red":    color.New(color.FgRed),
			"cyan":   color.New(color.FgCyan),
			"white":  color.New(color.FgWhite, color.Bold),
		},
	}
}

func (f *Formatter) Name() string {
	return "text"
}

func (f *Formatter) Description() string {
	return "Human-readable run summary"
}

func (f *Formatter) FileExtension() string {
	return ".txt"
}

func (f *Formatter) Format(report *formatters.Report, options formatters.FormatterOptions) (string, error) {
	// Disable colors if requested
	if options.NoColor {
		color.NoColor = true
	}

	var sb strings.Builder

	sb.WriteString(f.colors["white"].Sprint("Consolidation\n"))
	sb.WriteString(fmt.Sprintf("  Master records: %d\n", report.MasterRecords))
	sb.WriteString(fmt.Sprintf("  Tables loaded:  %d (%s)\n", len(report.LoadedTables), strings.Join(report.LoadedTables, ", ")))
	if len(report.MissingTables) > 0 {
		sb.WriteString(f.colors["yellow"].Sprintf("  Tables missing: %s\n", strings.Join(report.MissingTables, ", ")))
	}
	if report.SkippedChildRecords > 0 {
		sb.WriteString(f.colors["yellow"].Sprintf("  Child records skipped during serialization: %d\n", report.SkippedChildRecords))
	}

	if len(report.Anomalies) > 0 {
		sb.WriteString(f.colors["red"].Sprint("\nAnomalies\n"))
		for _, a := range report.Anomalies {
			sb.WriteString(fmt.Sprintf("  %s\n", a))
		}
	}

	sb.WriteString(f.colors["white"].Sprint("\nSearch\n"))
	sb.WriteString(fmt.Sprintf("  Projects matched: %d\n", len(report.Results)))
	total := 0
	for _, r := range report.Results {
		total += r.TotalMatches
	}
	sb.WriteString(fmt.Sprintf("  Total match occurrences: %d\n", total))

	if len(report.MinistryCounts) > 0 {
		sb.WriteString(f.colors["cyan"].Sprint("\n  By ministry:\n"))
		for _, e := range report.MinistryCounts {
			sb.WriteString(fmt.Sprintf("    %-20s %5d  (%.1f%%)\n", e.Value, e.Count, e.Percent))
		}
	}
	if len(report.PatternCounts) > 0 {
		sb.WriteString(f.colors["cyan"].Sprint("\n  By pattern:\n"))
		for _, e := range report.PatternCounts {
			sb.WriteString(fmt.Sprintf("    %-20s %5d  (%.1f%%)\n", e.Value, e.Count, e.Percent))
		}
	}

	if len(report.Verification) > 0 {
		exact, fuzzy, missed := 0, 0, 0
		for _, rec := range report.Verification {
			switch rec.Classification {
			case verify.ExactMatch:
				exact++
			case verify.FuzzyMatch:
				fuzzy++
			default:
				missed++
			}
		}
		sb.WriteString(f.colors["white"].Sprint("\nVerification\n"))
		sb.WriteString(fmt.Sprintf("  Official names:  %d\n", len(report.Verification)))
		sb.WriteString(f.colors["green"].Sprintf("  Exact matches:   %d\n", exact))
		sb.WriteString(f.colors["green"].Sprintf("  Fuzzy matches:   %d\n", fuzzy))
		if missed > 0 {
			sb.WriteString(f.colors["red"].Sprintf("  No matches:      %d\n", missed))
		}
		if options.Verbose && missed > 0 {
			sb.WriteString("\n  Unmatched official names:\n")
			for _, rec := range report.Verification {
				if rec.Classification != verify.NoMatch {
					continue
				}
				sb.WriteString(fmt.Sprintf("    %s (best %.2f)\n", rec.OfficialName, rec.Similarity))
			}
		}
	}

	if options.Verbose && len(report.Results) > 0 {
		sb.WriteString(f.colors["white"].Sprint("\nMatched projects\n"))
		for _, key := range search.Keys(report.Results) {
			r := report.Results[key]
			sb.WriteString(fmt.Sprintf("  %d %s: %d matches in %s\n",
				key, r.Descriptive["事業名"], r.TotalMatches, strings.Join(r.Tables, ", ")))
		}
	}

	if len(report.Warnings) > 0 {
		sb.WriteString(f.colors["yellow"].Sprintf("\nWarnings (%d)\n", len(report.Warnings)))
		for _, w := range report.Warnings {
			if w.Table != "" {
				sb.WriteString(fmt.Sprintf("  %s [%s]: %s\n", w.Component, w.Table, w.Message))
			} else {
				sb.WriteString(fmt.Sprintf("  %s: %s\n", w.Component, w.Message))
			}
		}
	}

	return sb.String(), nil
}

// Register the formatter during package initialization
func init() {
	formatters.Register(NewFormatter())
}
