// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package consolidate

import (
	"testing"

	"rs-miner/internal/tables"
)

func makeTable(t *testing.T, id string, cols []tables.Column, rows [][]tables.Value) *tables.SourceTable {
	t.Helper()
	spec, ok := tables.Spec(id)
	label := id
	if ok {
		label = spec.Label
	}
	table, err := tables.NewSourceTable(id, label, "utf-8", cols, rows)
	if err != nil {
		t.Fatalf("building table %s: %v", id, err)
	}
	return table
}

func primaryTable(t *testing.T) *tables.SourceTable {
	t.Helper()
	return makeTable(t, "projects",
		[]tables.Column{
			{Name: tables.KeyColumn, Kind: tables.KindInteger},
			{Name: "事業名", Kind: tables.KindText},
			{Name: "府省庁", Kind: tables.KindText},
		},
		[][]tables.Value{
			{tables.Integer(1), tables.Text("事業A"), tables.Text("総務省")},
			{tables.Integer(2), tables.Text("事業B"), tables.Text("経済産業省")},
			{tables.Integer(3), tables.Text("事業C"), tables.Text("総務省")},
		})
}

func TestBuildMaster_FirstSeenDedupe(t *testing.T) {
	primary := makeTable(t, "projects",
		[]tables.Column{
			{Name: tables.KeyColumn, Kind: tables.KindInteger},
			{Name: "事業名", Kind: tables.KindText},
		},
		[][]tables.Value{
			{tables.Integer(1), tables.Text("最初")},
			{tables.Integer(1), tables.Text("重複")},
			{tables.Null(), tables.Text("キーなし")},
			{tables.Integer(2), tables.Text("事業B")},
		})

	e := NewEngine(nil)
	m, err := e.BuildMaster(primary)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if m.Len() != 2 {
		t.Fatalf("expected 2 records, got %d", m.Len())
	}
	if got := m.Record(1).AttributeText("事業名"); got != "最初" {
		t.Errorf("first-seen row should win, got %q", got)
	}
	keys := m.Keys()
	if keys[0] != 1 || keys[1] != 2 {
		t.Errorf("expected source order [1 2], got %v", keys)
	}
}

func TestBuildMaster_Empty(t *testing.T) {
	primary := makeTable(t, "projects",
		[]tables.Column{{Name: tables.KeyColumn, Kind: tables.KindInteger}},
		nil)
	e := NewEngine(nil)
	if _, err := e.BuildMaster(primary); err == nil {
		t.Fatal("expected error for empty primary table")
	}
}

func TestMergeOneToOne(t *testing.T) {
	e := NewEngine(nil)
	m, err := e.BuildMaster(primaryTable(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	org := makeTable(t, "organizations",
		[]tables.Column{
			{Name: tables.KeyColumn, Kind: tables.KindInteger},
			{Name: "局・庁", Kind: tables.KindText},
		},
		[][]tables.Value{
			{tables.Integer(1), tables.Text("情報流通行政局")},
			{tables.Integer(3), tables.Text("統計局")},
			{tables.Integer(99), tables.Text("孤立キー")},
		})

	before := m.Len()
	e.MergeOneToOne(m, org)

	if m.Len() != before {
		t.Fatalf("master row count changed: %d -> %d", before, m.Len())
	}
	if got := m.Record(1).AttributeText("局・庁"); got != "情報流通行政局" {
		t.Errorf("expected merged attribute, got %q", got)
	}
	if _, ok := m.Record(2).Attribute("局・庁"); ok {
		t.Error("unmatched key should not gain the attribute")
	}

	found := false
	for _, a := range m.Anomalies() {
		if a.Kind == AnomalyOrphanKey && a.Table == "organizations" {
			found = true
		}
	}
	if !found {
		t.Error("expected orphan key anomaly for key 99")
	}
}

func TestMergeOneToOne_CollisionSuffix(t *testing.T) {
	e := NewEngine(nil)
	m, err := e.BuildMaster(primaryTable(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rem := makeTable(t, "remarks",
		[]tables.Column{
			{Name: tables.KeyColumn, Kind: tables.KindInteger},
			{Name: "事業名", Kind: tables.KindText},
		},
		[][]tables.Value{
			{tables.Integer(1), tables.Text("別表記")},
		})
	e.MergeOneToOne(m, rem)

	if got := m.Record(1).AttributeText("事業名"); got != "事業A" {
		t.Errorf("existing attribute overwritten: %q", got)
	}
	if got := m.Record(1).AttributeText("事業名_remarks"); got != "別表記" {
		t.Errorf("expected suffixed attribute, got %q", got)
	}
}

func TestMergeOneToOne_DuplicateKeysAnomaly(t *testing.T) {
	e := NewEngine(nil)
	m, err := e.BuildMaster(primaryTable(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	dup := makeTable(t, "subsidies",
		[]tables.Column{
			{Name: tables.KeyColumn, Kind: tables.KindInteger},
			{Name: "補助率", Kind: tables.KindText},
		},
		[][]tables.Value{
			{tables.Integer(1), tables.Text("1/2")},
			{tables.Integer(1), tables.Text("1/3")},
		})
	before := m.Len()
	e.MergeOneToOne(m, dup)

	if m.Len() != before {
		t.Fatalf("master row count changed: %d -> %d", before, m.Len())
	}
	if got := m.Record(1).AttributeText("補助率"); got != "1/2" {
		t.Errorf("first row per key should win, got %q", got)
	}

	found := false
	for _, a := range m.Anomalies() {
		if a.Kind == AnomalySchemaDrift && a.Table == "subsidies" {
			found = true
		}
	}
	if !found {
		t.Error("expected schema drift anomaly for duplicated keys")
	}
}

func TestNestOneToMany(t *testing.T) {
	e := NewEngine(nil)
	m, err := e.BuildMaster(primaryTable(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	budget := makeTable(t, "budget_summary",
		[]tables.Column{
			{Name: tables.KeyColumn, Kind: tables.KindInteger},
			{Name: "事業名", Kind: tables.KindText}, // boilerplate, must be excluded
			{Name: "年度", Kind: tables.KindInteger},
			{Name: "予算額", Kind: tables.KindDecimal},
		},
		[][]tables.Value{
			{tables.Integer(1), tables.Text("事業A"), tables.Integer(2023), tables.Decimal(100.5)},
			{tables.Integer(1), tables.Text("事業A"), tables.Integer(2024), tables.Decimal(120)},
			{tables.Integer(3), tables.Text("事業C"), tables.Integer(2024), tables.Null()},
		})
	e.NestOneToMany(m, budget, "budget_summary")

	c1 := m.Record(1).Collection("budget_summary")
	if c1 == nil || c1.Count() != 2 {
		t.Fatalf("expected 2 nested records for key 1, got %v", c1)
	}
	if _, ok := c1.Records[0].Get("事業名"); ok {
		t.Error("boilerplate column must not be nested")
	}
	if v, ok := c1.Records[0].Get("年度"); !ok || v.Int64() != 2023 {
		t.Errorf("expected 年度 2023, got %v", v)
	}
	// Row order within the group follows source order
	if v, _ := c1.Records[1].Get("年度"); v.Int64() != 2024 {
		t.Error("nested records out of source order")
	}

	c2 := m.Record(2).Collection("budget_summary")
	if c2 == nil {
		t.Fatal("key without child rows should get an empty collection")
	}
	if c2.Count() != 0 || c2.HasData() {
		t.Errorf("expected empty collection for key 2, got count %d", c2.Count())
	}

	c3 := m.Record(3).Collection("budget_summary")
	if c3.Count() != 1 {
		t.Fatalf("expected 1 nested record for key 3, got %d", c3.Count())
	}
	if _, ok := c3.Records[0].Get("予算額"); ok {
		t.Error("null attribute must not be nested")
	}
}

func TestNestOneToMany_AllNullRow(t *testing.T) {
	e := NewEngine(nil)
	m, err := e.BuildMaster(primaryTable(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	goals := makeTable(t, "goals_performance",
		[]tables.Column{
			{Name: tables.KeyColumn, Kind: tables.KindInteger},
			{Name: "目標", Kind: tables.KindText},
		},
		[][]tables.Value{
			{tables.Integer(1), tables.Null()},
		})
	e.NestOneToMany(m, goals, "goals_performance")

	c := m.Record(1).Collection("goals_performance")
	if c.Count() != 0 {
		t.Errorf("row with only null attributes should nest nothing, got %d", c.Count())
	}
}

func TestConsolidate_MissingOneToMany(t *testing.T) {
	e := NewEngine(nil)
	loaded := map[string]*tables.SourceTable{
		"projects": primaryTable(t),
	}
	m, err := e.Consolidate(loaded)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Every registered one-to-many table shows up as an empty collection
	for _, spec := range tables.Registry() {
		if spec.Cardinality != tables.OneToMany {
			continue
		}
		c := m.Record(1).Collection(spec.ID)
		if c == nil {
			t.Errorf("missing table %s should still yield a collection", spec.ID)
			continue
		}
		if c.Count() != 0 {
			t.Errorf("missing table %s should yield count 0, got %d", spec.ID, c.Count())
		}
	}
	if m.Record(1).TotalRelatedRecords() != 0 {
		t.Error("expected zero total related records")
	}
}

func TestTotalRelatedRecords(t *testing.T) {
	e := NewEngine(nil)
	m, err := e.BuildMaster(primaryTable(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	exp := makeTable(t, "expenditure_info",
		[]tables.Column{
			{Name: tables.KeyColumn, Kind: tables.KindInteger},
			{Name: "支出先名", Kind: tables.KindText},
		},
		[][]tables.Value{
			{tables.Integer(1), tables.Text("支出先X")},
			{tables.Integer(1), tables.Text("支出先Y")},
		})
	eval := makeTable(t, "evaluations",
		[]tables.Column{
			{Name: tables.KeyColumn, Kind: tables.KindInteger},
			{Name: "評価", Kind: tables.KindText},
		},
		[][]tables.Value{
			{tables.Integer(1), tables.Text("A")},
		})
	e.NestOneToMany(m, exp, "expenditure_info")
	e.NestOneToMany(m, eval, "evaluations")

	if got := m.Record(1).TotalRelatedRecords(); got != 3 {
		t.Errorf("expected 3 total related records, got %d", got)
	}
}
