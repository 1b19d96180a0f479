// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package statscsv

import (
	"fmt"
	"strings"

	"rs-miner/internal/formatters"
	"rs-miner/internal/stats"
)

// Formatter exports the aggregation tables (by ministry, by pattern, by
// source table) as sectioned CSV. Every section carries the full
// distribution; any top-N trimming is left to whoever renders it.
type Formatter struct{}

// NewFormatter creates a new statistics formatter
func NewFormatter() *Formatter {
	return &Formatter{}
}

func (f *Formatter) Name() string {
	return "stats"
}

func (f *Formatter) Description() string {
	return "Tabular statistics export (distribution per grouping axis)"
}

func (f *Formatter) FileExtension() string {
	return ".csv"
}

func (f *Formatter) Format(report *formatters.Report, options formatters.FormatterOptions) (string, error) {
	rows := []string{"Axis,Value,Count,Percent"}
	rows = appendSection(rows, "ministry", report.MinistryCounts)
	rows = appendSection(rows, "pattern", report.PatternCounts)
	rows = appendSection(rows, "table", report.TableCounts)
	return strings.Join(rows, "\n"), nil
}

func appendSection(rows []string, axis string, entries []stats.Entry) []string {
	for _, e := range entries {
		rows = append(rows, strings.Join([]string{
			axis,
			escapeCSVField(e.Value),
			fmt.Sprintf("%d", e.Count),
			fmt.Sprintf("%.2f", e.Percent),
		}, ","))
	}
	return rows
}

func escapeCSVField(field string) string {
	if strings.ContainsAny(field, ",\"\n") {
		return "\"" + strings.ReplaceAll(field, "\"", "\"\"") + "\""
	}
	return field
}

func init() {
	formatters.Register(NewFormatter())
}
