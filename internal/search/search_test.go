// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package search

import (
	"reflect"
	"testing"

	"rs-miner/internal/consolidate"
	"rs-miner/internal/patterns"
	"rs-miner/internal/tables"
)

func makeTable(t *testing.T, id string, cols []tables.Column, rows [][]tables.Value) *tables.SourceTable {
	t.Helper()
	table, err := tables.NewSourceTable(id, id, "utf-8", cols, rows)
	if err != nil {
		t.Fatalf("building table %s: %v", id, err)
	}
	return table
}

func defaultEngine(t *testing.T, fields map[string][]string) *Engine {
	t.Helper()
	ms, errs := patterns.Compile(patterns.DefaultRules())
	if len(errs) != 0 {
		t.Fatalf("default rules must compile: %v", errs)
	}
	return NewEngine(ms, fields, nil)
}

func projectsFixture(t *testing.T) *tables.SourceTable {
	t.Helper()
	return makeTable(t, "projects",
		[]tables.Column{
			{Name: tables.KeyColumn, Kind: tables.KindInteger},
			{Name: "事業名", Kind: tables.KindText},
			{Name: "事業の概要", Kind: tables.KindText},
		},
		[][]tables.Value{
			{tables.Integer(1), tables.Text("AI活用推進事業"), tables.Text("生成AIを活用した行政サービス")},
			{tables.Integer(2), tables.Text("道路整備事業"), tables.Text("道路の維持補修")},
			{tables.Integer(3), tables.Text("統計調査事業"), tables.Text("機械学習による需要予測")},
		})
}

func TestSearchTable(t *testing.T) {
	e := defaultEngine(t, map[string][]string{
		"projects": {"事業名", "事業の概要"},
	})
	results := e.SearchTable(projectsFixture(t))

	if len(results) != 2 {
		t.Fatalf("expected results for keys 1 and 3, got %d", len(results))
	}
	if results[2] != nil {
		t.Error("key 2 has no matches and should be absent")
	}

	r1 := results[1]
	if r1.TotalMatches == 0 {
		t.Fatal("expected matches for key 1")
	}
	if len(r1.Fields) != 2 {
		t.Errorf("expected both fields matched for key 1, got %v", r1.Fields)
	}
	for _, ev := range r1.Evidence {
		if ev.Table != "projects" {
			t.Errorf("evidence table mismatch: %s", ev.Table)
		}
		if ev.Excerpt == "" {
			t.Error("evidence should carry a field excerpt")
		}
	}

	r3 := results[3]
	hasPhrase := false
	for _, id := range r3.RuleIDs {
		if id == "ai_phrase" {
			hasPhrase = true
		}
	}
	if !hasPhrase {
		t.Errorf("expected ai_phrase for key 3, got %v", r3.RuleIDs)
	}
}

func TestSearchTable_UnconfiguredFields(t *testing.T) {
	e := defaultEngine(t, map[string][]string{})
	if got := e.SearchTable(projectsFixture(t)); got != nil {
		t.Errorf("table without configured fields should yield nil, got %v", got)
	}
}

func TestSearchTable_NonTextCellsSkipped(t *testing.T) {
	table := makeTable(t, "projects",
		[]tables.Column{
			{Name: tables.KeyColumn, Kind: tables.KindInteger},
			{Name: "事業名", Kind: tables.KindInteger},
		},
		[][]tables.Value{
			{tables.Integer(1), tables.Integer(99)},
		})
	e := defaultEngine(t, map[string][]string{"projects": {"事業名"}})
	if got := e.SearchTable(table); len(got) != 0 {
		t.Errorf("numeric cells should not be searched, got %v", got)
	}
}

func TestComprehensiveSearch_MergesAcrossTables(t *testing.T) {
	exp := makeTable(t, "expenditure_info",
		[]tables.Column{
			{Name: tables.KeyColumn, Kind: tables.KindInteger},
			{Name: "支出先名", Kind: tables.KindText},
		},
		[][]tables.Value{
			{tables.Integer(1), tables.Text("AIソリューションズ株式会社")},
			{tables.Integer(1), tables.Text("AIシステムズ株式会社")},
		})

	e := defaultEngine(t, map[string][]string{
		"projects":         {"事業名", "事業の概要"},
		"expenditure_info": {"支出先名"},
	})
	results := e.ComprehensiveSearch([]*tables.SourceTable{projectsFixture(t), exp}, 2)

	r1 := results[1]
	if r1 == nil {
		t.Fatal("expected merged result for key 1")
	}
	if !reflect.DeepEqual(r1.Tables, []string{"projects", "expenditure_info"}) {
		t.Errorf("expected both tables in caller order, got %v", r1.Tables)
	}
	// Two distinct vendor rows both matched; multiplicity is kept
	if r1.TotalMatches < 3 {
		t.Errorf("expected at least 3 total matches, got %d", r1.TotalMatches)
	}
}

func TestComprehensiveSearch_Deterministic(t *testing.T) {
	e := defaultEngine(t, map[string][]string{
		"projects": {"事業名", "事業の概要"},
	})
	tbls := []*tables.SourceTable{projectsFixture(t)}

	first := e.ComprehensiveSearch(tbls, 4)
	second := e.ComprehensiveSearch(tbls, 4)

	if !reflect.DeepEqual(first, second) {
		t.Error("repeated runs over the same input should be identical")
	}
}

func TestMergeWithMaster(t *testing.T) {
	primary := projectsFixture(t)
	engine := consolidate.NewEngine(nil)
	master, err := engine.BuildMaster(primary)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	e := defaultEngine(t, map[string][]string{"projects": {"事業名"}})
	results := e.ComprehensiveSearch([]*tables.SourceTable{primary}, 1)
	MergeWithMaster(results, master)

	r1 := results[1]
	if r1 == nil {
		t.Fatal("expected result for key 1")
	}
	if got := r1.Descriptive["事業名"]; got != "AI活用推進事業" {
		t.Errorf("expected descriptive 事業名, got %q", got)
	}
}

func TestMergeWithMaster_KeyOutsideMaster(t *testing.T) {
	results := map[tables.EntityKey]*Result{
		42: {Key: 42, Descriptive: map[string]string{}},
	}
	primary := projectsFixture(t)
	engine := consolidate.NewEngine(nil)
	master, err := engine.BuildMaster(primary)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	MergeWithMaster(results, master)
	if len(results[42].Descriptive) != 0 {
		t.Error("key outside the master domain keeps an empty descriptive block")
	}
}

func TestKeys_Sorted(t *testing.T) {
	results := map[tables.EntityKey]*Result{
		30: {}, 10: {}, 20: {},
	}
	if got := Keys(results); !reflect.DeepEqual(got, []tables.EntityKey{10, 20, 30}) {
		t.Errorf("expected ascending keys, got %v", got)
	}
}
