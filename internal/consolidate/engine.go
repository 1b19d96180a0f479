// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package consolidate

import (
	"fmt"

	"rs-miner/internal/observability"
	"rs-miner/internal/tables"
)

// Engine builds the master corpus from loaded source tables.
type Engine struct {
	observer *observability.StandardObserver
}

// NewEngine creates a consolidation engine.
func NewEngine(observer *observability.StandardObserver) *Engine {
	return &Engine{observer: observer}
}

// BuildMaster establishes the master domain from the primary table. The
// published extracts occasionally repeat a key; the first-seen row per key
// wins and later duplicates are dropped.
func (e *Engine) BuildMaster(primary *tables.SourceTable) (*Master, error) {
	if primary == nil {
		return nil, fmt.Errorf("primary table is required")
	}

	done := e.timing("build_master", primary.ID)

	m := &Master{records: make(map[tables.EntityKey]*MasterRecord)}
	dropped := 0
	for i := 0; i < primary.NumRows(); i++ {
		key, ok := primary.Key(i)
		if !ok {
			dropped++
			continue
		}
		if _, dup := m.records[key]; dup {
			dropped++
			continue
		}
		rec := newMasterRecord(key)
		for ci, col := range primary.Columns() {
			if col.Name == tables.KeyColumn {
				continue
			}
			rec.setAttribute(col.Name, primary.Row(i)[ci])
		}
		m.records[key] = rec
		m.keys = append(m.keys, key)
	}

	if dropped > 0 && e.observer != nil {
		e.observer.Warnf("consolidate", primary.ID, "dropped %d duplicate or keyless rows", dropped)
	}
	done(true, map[string]interface{}{"records": len(m.keys), "dropped": dropped})

	if len(m.keys) == 0 {
		return nil, fmt.Errorf("primary table %s has no usable rows", primary.ID)
	}
	return m, nil
}

// MergeOneToOne left-joins the extra attributes of a one-to-one table onto
// the master by EntityKey. The join is strictly left-outer: the master row
// count is unchanged afterward by construction, and any input that would
// have inflated it (duplicate keys on the joined side) is recorded as a
// schema-drift anomaly rather than normalized away. Column name collisions
// take a suffix derived from the source table identifier.
func (e *Engine) MergeOneToOne(m *Master, table *tables.SourceTable) {
	done := e.timing("merge_one_to_one", table.ID)
	before := m.Len()

	groups, order, _ := table.GroupByKey()

	duplicates := 0
	for _, key := range order {
		if len(groups[key]) > 1 {
			duplicates++
		}
	}
	if duplicates > 0 {
		m.anomalies = append(m.anomalies, Anomaly{
			Kind:   AnomalySchemaDrift,
			Table:  table.ID,
			Detail: fmt.Sprintf("%d keys with multiple rows in a one-to-one table; kept first row per key", duplicates),
		})
		if e.observer != nil {
			e.observer.Warnf("consolidate", table.ID, "cardinality invariant violated: %d duplicated keys", duplicates)
		}
	}

	orphans := 0
	for _, key := range order {
		if m.records[key] == nil {
			orphans++
		}
	}
	if orphans > 0 {
		m.anomalies = append(m.anomalies, Anomaly{
			Kind:   AnomalyOrphanKey,
			Table:  table.ID,
			Detail: fmt.Sprintf("%d keys not present in the master domain", orphans),
		})
	}

	added := 0
	for _, key := range m.keys {
		rows, ok := groups[key]
		if !ok {
			continue
		}
		ri := rows[0] // first-seen row per key
		for ci, col := range table.Columns() {
			if col.Name == tables.KeyColumn {
				continue
			}
			name := col.Name
			if m.records[key].hasAttribute(name) {
				name = name + "_" + table.ID
			}
			m.records[key].setAttribute(name, table.Row(ri)[ci])
			added++
		}
	}

	if m.Len() != before {
		// Unreachable with the in-place join above; kept as a tripwire for
		// the cardinality invariant.
		m.anomalies = append(m.anomalies, Anomaly{
			Kind:   AnomalySchemaDrift,
			Table:  table.ID,
			Detail: fmt.Sprintf("master row count changed: %d -> %d", before, m.Len()),
		})
	}

	done(true, map[string]interface{}{"attributes_added": added, "duplicated_keys": duplicates})
}

// NestOneToMany groups a one-to-many table by EntityKey and writes, for
// every master record, an ordered collection of child attribute maps under
// collectionName. Keys with no rows get an empty collection with count 0.
func (e *Engine) NestOneToMany(m *Master, table *tables.SourceTable, collectionName string) {
	done := e.timing("nest_one_to_many", table.ID)

	boilerplate := make(map[string]bool, len(tables.BoilerplateColumns))
	for _, c := range tables.BoilerplateColumns {
		boilerplate[c] = true
	}

	groups, order, _ := table.GroupByKey()

	orphans := 0
	for _, key := range order {
		if m.records[key] == nil {
			orphans++
		}
	}
	if orphans > 0 {
		m.anomalies = append(m.anomalies, Anomaly{
			Kind:   AnomalyOrphanKey,
			Table:  table.ID,
			Detail: fmt.Sprintf("%d keys not present in the master domain", orphans),
		})
		if e.observer != nil {
			e.observer.Warnf("consolidate", table.ID, "%d orphan keys ignored", orphans)
		}
	}

	nested := 0
	for _, key := range m.keys {
		coll := &Collection{Name: collectionName}
		for _, ri := range groups[key] {
			var rec ChildRecord
			for ci, col := range table.Columns() {
				if boilerplate[col.Name] {
					continue
				}
				v := table.Row(ri)[ci]
				if v.IsNull() {
					continue
				}
				rec = append(rec, Attribute{Name: col.Name, Value: v})
			}
			// A row whose every attribute is null nests nothing.
			if len(rec) > 0 {
				coll.Records = append(coll.Records, rec)
				nested++
			}
		}
		m.records[key].setCollection(coll)
	}

	done(true, map[string]interface{}{"nested_records": nested})
}

// NestEmpty writes an empty collection under collectionName for every
// master record. Used when a one-to-many table is missing on disk so that
// absence still shows up canonically as count 0.
func (e *Engine) NestEmpty(m *Master, collectionName string) {
	for _, key := range m.keys {
		m.records[key].setCollection(&Collection{Name: collectionName})
	}
}

// Consolidate runs the full consolidation over the loaded tables in
// registry order: build the domain from the primary, merge one-to-one
// tables, nest one-to-many tables. Missing optional tables contribute
// empty collections and a warning has already been recorded by the loader.
func (e *Engine) Consolidate(loaded map[string]*tables.SourceTable) (*Master, error) {
	primarySpec := tables.PrimarySpec()
	m, err := e.BuildMaster(loaded[primarySpec.ID])
	if err != nil {
		return nil, err
	}

	for _, spec := range tables.Registry() {
		if spec.Primary {
			continue
		}
		table := loaded[spec.ID]
		switch spec.Cardinality {
		case tables.OneToOne:
			if table != nil {
				e.MergeOneToOne(m, table)
			}
		case tables.OneToMany:
			if table != nil {
				e.NestOneToMany(m, table, spec.ID)
			} else {
				e.NestEmpty(m, spec.ID)
			}
		}
	}
	return m, nil
}

func (e *Engine) timing(operation, table string) func(bool, map[string]interface{}) {
	if e.observer == nil {
		return func(bool, map[string]interface{}) {}
	}
	return e.observer.StartTiming("consolidate", operation, table)
}
