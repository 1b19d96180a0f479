// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package tables

import "fmt"

// EntityKey is the budget project identifier linking records across all
// source tables.
type EntityKey int64

// KeyColumn is the column carrying the EntityKey in every source extract.
const KeyColumn = "予算事業ID"

// BoilerplateColumns are repeated across child extracts and are excluded
// when child rows are nested into the master record.
var BoilerplateColumns = []string{KeyColumn, "シート種別", "事業年度", "事業名"}

// Column describes one table column and its inferred value kind.
type Column struct {
	Name string
	Kind Kind
}

// SourceTable is an immutable typed tabular extract, loaded once and
// read-only thereafter.
type SourceTable struct {
	ID       string
	Label    string
	Encoding string

	columns  []Column
	colIndex map[string]int
	rows     [][]Value
}

// NewSourceTable builds a table from columns and rows. Every row must have
// exactly one value per column.
func NewSourceTable(id, label, encoding string, columns []Column, rows [][]Value) (*SourceTable, error) {
	idx := make(map[string]int, len(columns))
	for i, c := range columns {
		if _, dup := idx[c.Name]; dup {
			return nil, fmt.Errorf("table %s: duplicate column %q", id, c.Name)
		}
		idx[c.Name] = i
	}
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("table %s: row %d has %d values, want %d", id, i, len(row), len(columns))
		}
	}
	return &SourceTable{
		ID:       id,
		Label:    label,
		Encoding: encoding,
		columns:  columns,
		colIndex: idx,
		rows:     rows,
	}, nil
}

// Columns returns the column descriptors in source order.
func (t *SourceTable) Columns() []Column { return t.columns }

// NumRows returns the number of rows.
func (t *SourceTable) NumRows() int { return len(t.rows) }

// HasColumn reports whether the named column exists.
func (t *SourceTable) HasColumn(name string) bool {
	_, ok := t.colIndex[name]
	return ok
}

// Row returns the values of row i in column order.
func (t *SourceTable) Row(i int) []Value { return t.rows[i] }

// Value returns the cell at row i, named column. Unknown columns yield null.
func (t *SourceTable) Value(i int, column string) Value {
	ci, ok := t.colIndex[column]
	if !ok {
		return Null()
	}
	return t.rows[i][ci]
}

// Key returns the EntityKey of row i, and false if the key cell is not an
// integer.
func (t *SourceTable) Key(i int) (EntityKey, bool) {
	v := t.Value(i, KeyColumn)
	if v.Kind() != KindInteger {
		return 0, false
	}
	return EntityKey(v.Int64()), true
}

// GroupByKey returns row indices grouped by EntityKey, preserving source
// row order within each group, plus the keys in first-seen order. Rows
// without a valid key are skipped and counted.
func (t *SourceTable) GroupByKey() (map[EntityKey][]int, []EntityKey, int) {
	groups := make(map[EntityKey][]int)
	var order []EntityKey
	skipped := 0
	for i := range t.rows {
		key, ok := t.Key(i)
		if !ok {
			skipped++
			continue
		}
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], i)
	}
	return groups, order, skipped
}
