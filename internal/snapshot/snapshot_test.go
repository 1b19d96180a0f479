// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package snapshot

import (
	"math"
	"path/filepath"
	"testing"

	"rs-miner/internal/consolidate"
	"rs-miner/internal/tables"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "snapshot.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func fixtureTable(t *testing.T) *tables.SourceTable {
	t.Helper()
	cols := []tables.Column{
		{Name: tables.KeyColumn, Kind: tables.KindInteger},
		{Name: "事業名", Kind: tables.KindText},
		{Name: "予算額", Kind: tables.KindDecimal},
	}
	rows := [][]tables.Value{
		{tables.Integer(1), tables.Text("事業A"), tables.Decimal(100.5)},
		{tables.Integer(2), tables.Null(), tables.Null()},
	}
	table, err := tables.NewSourceTable("projects", "事業概要等", "utf-8", cols, rows)
	if err != nil {
		t.Fatalf("building table: %v", err)
	}
	return table
}

func TestSaveLoadTable_RoundTrip(t *testing.T) {
	store := openStore(t)
	original := fixtureTable(t)

	if err := store.SaveTable(original); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := store.LoadTable("projects")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if loaded.NumRows() != original.NumRows() {
		t.Fatalf("row count changed: %d -> %d", original.NumRows(), loaded.NumRows())
	}
	if loaded.Label != original.Label || loaded.Encoding != original.Encoding {
		t.Errorf("metadata changed: %+v", loaded)
	}
	for ri := 0; ri < original.NumRows(); ri++ {
		for ci, col := range original.Columns() {
			want := original.Row(ri)[ci]
			got := loaded.Row(ri)[ci]
			if !want.Equal(got) {
				t.Errorf("row %d column %s: %v != %v", ri, col.Name, want, got)
			}
		}
	}
}

func TestSaveTable_Replaces(t *testing.T) {
	store := openStore(t)
	if err := store.SaveTable(fixtureTable(t)); err != nil {
		t.Fatalf("save: %v", err)
	}
	// Saving again must replace, not accumulate
	if err := store.SaveTable(fixtureTable(t)); err != nil {
		t.Fatalf("second save: %v", err)
	}
	loaded, err := store.LoadTable("projects")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.NumRows() != 2 {
		t.Errorf("expected 2 rows after replace, got %d", loaded.NumRows())
	}
}

func TestLoadTable_Missing(t *testing.T) {
	store := openStore(t)
	if _, err := store.LoadTable("absent"); err == nil {
		t.Fatal("expected error for table not in snapshot")
	}
}

func TestEncodeDecodeCollection_RoundTrip(t *testing.T) {
	records := []consolidate.ChildRecord{
		{
			{Name: "年度", Value: tables.Integer(2023)},
			{Name: "予算額", Value: tables.Decimal(100.5)},
			{Name: "備考", Value: tables.Text("当初予算")},
		},
		{
			{Name: "年度", Value: tables.Integer(2024)},
			// Above 2^53, where a float64 detour would round
			{Name: "事業ID", Value: tables.Integer(9007199254740993)},
		},
	}

	blob, err := EncodeCollection(records)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeCollection(blob)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if len(decoded) != len(records) {
		t.Fatalf("record count changed: %d -> %d", len(records), len(decoded))
	}
	for i, rec := range records {
		if len(decoded[i]) != len(rec) {
			t.Fatalf("record %d attribute count changed", i)
		}
		for j, a := range rec {
			// Attribute order must survive the round trip
			if decoded[i][j].Name != a.Name {
				t.Errorf("record %d attribute %d: name %q -> %q", i, j, a.Name, decoded[i][j].Name)
			}
			if !decoded[i][j].Value.Equal(a.Value) {
				t.Errorf("record %d attribute %q: %v -> %v", i, a.Name, a.Value, decoded[i][j].Value)
			}
		}
	}
}

func TestEncodeCollection_NonFiniteFails(t *testing.T) {
	records := []consolidate.ChildRecord{
		{{Name: "値", Value: tables.Decimal(math.NaN())}},
	}
	if _, err := EncodeCollection(records); err == nil {
		t.Fatal("expected error for non-finite decimal")
	}
}

func TestSaveMaster(t *testing.T) {
	store := openStore(t)

	primary := fixtureTable(t)
	engine := consolidate.NewEngine(nil)
	m, err := engine.BuildMaster(primary)
	if err != nil {
		t.Fatalf("building master: %v", err)
	}

	budget, err := tables.NewSourceTable("budget_summary", "予算・執行サマリ", "utf-8",
		[]tables.Column{
			{Name: tables.KeyColumn, Kind: tables.KindInteger},
			{Name: "年度", Kind: tables.KindInteger},
		},
		[][]tables.Value{
			{tables.Integer(1), tables.Integer(2023)},
			{tables.Integer(1), tables.Integer(2024)},
		})
	if err != nil {
		t.Fatalf("building budget table: %v", err)
	}
	engine.NestOneToMany(m, budget, "budget_summary")

	stats, err := store.SaveMaster(m)
	if err != nil {
		t.Fatalf("save master: %v", err)
	}
	if stats.Records != 2 || stats.SkippedRecords != 0 {
		t.Errorf("unexpected stats: %+v", stats)
	}

	row, err := store.LoadMasterRow(1)
	if err != nil {
		t.Fatalf("load row: %v", err)
	}
	if row.Counts["budget_summary"] != 2 || !row.HasData["budget_summary"] {
		t.Errorf("unexpected collection fields: %+v", row)
	}
	if row.TotalRelatedRecords != 2 {
		t.Errorf("expected 2 related records, got %d", row.TotalRelatedRecords)
	}
	decoded, err := DecodeCollection([]byte(row.Collections["budget_summary"]))
	if err != nil {
		t.Fatalf("decode stored blob: %v", err)
	}
	if len(decoded) != 2 {
		t.Errorf("blob contents disagree with count: %d", len(decoded))
	}

	// The key without child rows still carries the collection, empty
	row2, err := store.LoadMasterRow(2)
	if err != nil {
		t.Fatalf("load row 2: %v", err)
	}
	if c, ok := row2.Counts["budget_summary"]; !ok || c != 0 {
		t.Errorf("expected explicit count 0, got %v ok=%v", c, ok)
	}
	if row2.HasData["budget_summary"] {
		t.Error("empty collection must not report has-data")
	}

	n, err := store.MasterLen()
	if err != nil {
		t.Fatalf("master len: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 master rows, got %d", n)
	}
}

func TestSaveMaster_SkipsUnserializableChildren(t *testing.T) {
	store := openStore(t)

	primary := fixtureTable(t)
	engine := consolidate.NewEngine(nil)
	m, err := engine.BuildMaster(primary)
	if err != nil {
		t.Fatalf("building master: %v", err)
	}

	bad, err := tables.NewSourceTable("evaluations", "点検・評価", "utf-8",
		[]tables.Column{
			{Name: tables.KeyColumn, Kind: tables.KindInteger},
			{Name: "値", Kind: tables.KindDecimal},
		},
		[][]tables.Value{
			{tables.Integer(1), tables.Decimal(math.Inf(1))},
			{tables.Integer(1), tables.Decimal(1.5)},
		})
	if err != nil {
		t.Fatalf("building table: %v", err)
	}
	engine.NestOneToMany(m, bad, "evaluations")

	stats, err := store.SaveMaster(m)
	if err != nil {
		t.Fatalf("save master: %v", err)
	}
	if stats.SkippedRecords != 1 {
		t.Errorf("expected 1 skipped child record, got %d", stats.SkippedRecords)
	}

	row, err := store.LoadMasterRow(1)
	if err != nil {
		t.Fatalf("load row: %v", err)
	}
	// Count reflects what the blob actually holds
	if row.Counts["evaluations"] != 1 {
		t.Errorf("expected count 1 after skip, got %d", row.Counts["evaluations"])
	}
}
