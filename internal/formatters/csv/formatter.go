// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package csv

import (
	"fmt"
	"strings"

	"rs-miner/internal/formatters"
)

// Formatter implements CSV output of the verification records, one row per
// official name.
type Formatter struct{}

// NewFormatter creates a new CSV formatter
func NewFormatter() *Formatter {
	return &Formatter{}
}

func (f *Formatter) Name() string {
	return "csv"
}

func (f *Formatter) Description() string {
	return "Comma-separated verification records for spreadsheet import"
}

func (f *Formatter) FileExtension() string {
	return ".csv"
}

func (f *Formatter) Format(report *formatters.Report, options formatters.FormatterOptions) (string, error) {
	headers := []string{"Official Name", "Classification", "Project ID", "Matched Name", "Similarity"}
	if options.Verbose {
		headers = append(headers, "Keywords Found", "Name Length", "Punctuation Density", "Best Candidate")
	}

	csvRows := []string{strings.Join(headers, ",")}

	for _, rec := range report.Verification {
		projectID := ""
		if rec.Matched {
			projectID = fmt.Sprintf("%d", rec.Key)
		}
		row := []string{
			escapeCSVField(rec.OfficialName),
			string(rec.Classification),
			projectID,
			escapeCSVField(rec.MatchedName),
			fmt.Sprintf("%.3f", rec.Similarity),
		}
		if options.Verbose {
			if d := rec.Diagnostics; d != nil {
				row = append(row,
					escapeCSVField(strings.Join(d.KeywordsFound, ";")),
					fmt.Sprintf("%d", d.NameLength),
					fmt.Sprintf("%.3f", d.PunctuationDensity),
					escapeCSVField(d.BestCandidate),
				)
			} else {
				row = append(row, "", "", "", "")
			}
		}
		csvRows = append(csvRows, strings.Join(row, ","))
	}

	return strings.Join(csvRows, "\n"), nil
}

// escapeCSVField quotes a field when it contains a delimiter, quote, or newline
func escapeCSVField(field string) string {
	if strings.ContainsAny(field, ",\"\n") {
		return "\"" + strings.ReplaceAll(field, "\"", "\"\"") + "\""
	}
	return field
}

func init() {
	formatters.Register(NewFormatter())
}
