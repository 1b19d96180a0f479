// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package formatters_test

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"rs-miner/internal/formatters"
	"rs-miner/internal/search"
	"rs-miner/internal/stats"
	"rs-miner/internal/tables"
	"rs-miner/internal/verify"

	_ "rs-miner/internal/formatters/csv"
	_ "rs-miner/internal/formatters/json"
	_ "rs-miner/internal/formatters/statscsv"
	_ "rs-miner/internal/formatters/text"
)

func fixtureReport() *formatters.Report {
	return &formatters.Report{
		GeneratedAt:   time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC),
		MasterRecords: 3,
		LoadedTables:  []string{"projects", "expenditure_info"},
		MissingTables: []string{"contracts"},
		Results: map[tables.EntityKey]*search.Result{
			1: {
				Key:          1,
				Tables:       []string{"projects"},
				Fields:       []string{"事業名"},
				RuleIDs:      []string{"ai_literal"},
				MatchedTexts: []string{"AI"},
				TotalMatches: 2,
				Descriptive:  map[string]string{"事業名": "AI活用推進事業", "府省庁": "総務省"},
			},
		},
		MinistryCounts: []stats.Entry{{Value: "総務省", Count: 1, Percent: 100}},
		PatternCounts:  []stats.Entry{{Value: "ai_literal", Count: 1, Percent: 100}},
		TableCounts:    []stats.Entry{{Value: "projects", Count: 1, Percent: 100}},
		Verification: []verify.Record{
			{OfficialName: "AI活用推進事業", Classification: verify.ExactMatch, Matched: true, Key: 1, MatchedName: "AI活用推進事業", Similarity: 1},
			{OfficialName: "名簿, \"引用\"付き", Classification: verify.NoMatch, Similarity: 0.2},
		},
	}
}

func TestRegisteredFormatters(t *testing.T) {
	for _, name := range []string{"json", "csv", "stats", "text"} {
		f, ok := formatters.Get(name)
		if !ok {
			t.Errorf("formatter %s not registered", name)
			continue
		}
		if f.Name() != name {
			t.Errorf("formatter name mismatch: %s != %s", f.Name(), name)
		}
		if f.FileExtension() == "" || f.Description() == "" {
			t.Errorf("formatter %s missing metadata", name)
		}
	}
}

func TestJSONFormatter(t *testing.T) {
	out, err := formatters.Export("json", fixtureReport(), formatters.FormatterOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var decoded map[string]*search.Result
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	r, ok := decoded["1"]
	if !ok {
		t.Fatal("expected key \"1\" in output")
	}
	if r.TotalMatches != 2 {
		t.Errorf("expected total matches 2, got %d", r.TotalMatches)
	}
	if r.Descriptive["事業名"] != "AI活用推進事業" {
		t.Errorf("descriptive block lost: %+v", r.Descriptive)
	}
}

func TestCSVFormatter(t *testing.T) {
	out, err := formatters.Export("csv", fixtureReport(), formatters.FormatterOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus 2 records, got %d lines", len(lines))
	}
	if !strings.Contains(lines[0], "Official Name") {
		t.Errorf("missing header: %s", lines[0])
	}
	if !strings.Contains(lines[1], "EXACT_MATCH") {
		t.Errorf("missing classification: %s", lines[1])
	}
	// Fields with commas and quotes stay escaped
	if !strings.Contains(lines[2], "\"名簿, \"\"引用\"\"付き\"") {
		t.Errorf("field not CSV-escaped: %s", lines[2])
	}
}

func TestStatsFormatter(t *testing.T) {
	out, err := formatters.Export("stats", fixtureReport(), formatters.FormatterOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if lines[0] != "Axis,Value,Count,Percent" {
		t.Errorf("unexpected header: %s", lines[0])
	}
	joined := strings.Join(lines, "\n")
	for _, want := range []string{"ministry,総務省,1,100.00", "pattern,ai_literal,1,100.00", "table,projects,1,100.00"} {
		if !strings.Contains(joined, want) {
			t.Errorf("missing row %q in output:\n%s", want, joined)
		}
	}
}

func TestTextFormatter(t *testing.T) {
	out, err := formatters.Export("text", fixtureReport(), formatters.FormatterOptions{NoColor: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, want := range []string{"Master records: 3", "総務省", "Exact matches:   1"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in summary:\n%s", want, out)
		}
	}
	// NoColor output must carry no escape sequences
	if strings.Contains(out, "\x1b[") {
		t.Error("expected uncolored output")
	}
}

func TestExport_UnknownFormat(t *testing.T) {
	if _, err := formatters.Export("xml", fixtureReport(), formatters.FormatterOptions{}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}
