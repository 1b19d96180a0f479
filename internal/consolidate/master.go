// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package consolidate

import (
	"fmt"

	"rs-miner/internal/tables"
)

// Attribute is one (name, value) pair of a master record or nested child
// record. Attributes stay ordered; the grab-bag of heterogeneous business
// columns is not modeled as an open map.
type Attribute struct {
	Name  string
	Value tables.Value
}

// ChildRecord is one nested row of a one-to-many table: its non-null,
// non-boilerplate attributes in source column order.
type ChildRecord []Attribute

// Get returns the named attribute value and whether it is present.
func (r ChildRecord) Get(name string) (tables.Value, bool) {
	for _, a := range r {
		if a.Name == name {
			return a.Value, true
		}
	}
	return tables.Null(), false
}

// Collection is the ordered nested child data of one one-to-many table for
// one EntityKey. Absent child data is an empty collection, never a missing
// field.
type Collection struct {
	Name    string
	Records []ChildRecord
}

// Count returns the number of nested records.
func (c *Collection) Count() int { return len(c.Records) }

// HasData reports whether any child rows exist.
func (c *Collection) HasData() bool { return len(c.Records) > 0 }

// MasterRecord is the consolidated single-row view of one budget project:
// flat attributes from every one-to-one table plus one nested collection
// per one-to-many table.
type MasterRecord struct {
	Key tables.EntityKey

	attributes []Attribute
	attrIndex  map[string]int

	collections []*Collection
	collIndex   map[string]int
}

func newMasterRecord(key tables.EntityKey) *MasterRecord {
	return &MasterRecord{
		Key:       key,
		attrIndex: make(map[string]int),
		collIndex: make(map[string]int),
	}
}

// Attributes returns the flat attributes in merge order.
func (r *MasterRecord) Attributes() []Attribute { return r.attributes }

// Attribute returns the named flat attribute.
func (r *MasterRecord) Attribute(name string) (tables.Value, bool) {
	i, ok := r.attrIndex[name]
	if !ok {
		return tables.Null(), false
	}
	return r.attributes[i].Value, true
}

// AttributeText returns the named attribute rendered as text, or "" when
// absent or null.
func (r *MasterRecord) AttributeText(name string) string {
	v, _ := r.Attribute(name)
	return v.String()
}

func (r *MasterRecord) setAttribute(name string, v tables.Value) {
	if i, ok := r.attrIndex[name]; ok {
		r.attributes[i].Value = v
		return
	}
	r.attrIndex[name] = len(r.attributes)
	r.attributes = append(r.attributes, Attribute{Name: name, Value: v})
}

func (r *MasterRecord) hasAttribute(name string) bool {
	_, ok := r.attrIndex[name]
	return ok
}

// Collections returns the nested collections in nesting order.
func (r *MasterRecord) Collections() []*Collection { return r.collections }

// Collection returns the named nested collection, or nil when the table
// was never nested.
func (r *MasterRecord) Collection(name string) *Collection {
	i, ok := r.collIndex[name]
	if !ok {
		return nil
	}
	return r.collections[i]
}

func (r *MasterRecord) setCollection(c *Collection) {
	if i, ok := r.collIndex[c.Name]; ok {
		r.collections[i] = c
		return
	}
	r.collIndex[c.Name] = len(r.collections)
	r.collections = append(r.collections, c)
}

// TotalRelatedRecords sums the counts of every nested collection.
func (r *MasterRecord) TotalRelatedRecords() int {
	total := 0
	for _, c := range r.collections {
		total += len(c.Records)
	}
	return total
}

// Master is the consolidated corpus: one immutable record per EntityKey of
// the primary table, in primary-table first-seen order.
type Master struct {
	records map[tables.EntityKey]*MasterRecord
	keys    []tables.EntityKey

	anomalies []Anomaly
}

// Keys returns the EntityKeys in primary-table order.
func (m *Master) Keys() []tables.EntityKey { return m.keys }

// Len returns the number of master records.
func (m *Master) Len() int { return len(m.keys) }

// Record returns the master record for a key, or nil when the key is
// outside the master domain.
func (m *Master) Record(key tables.EntityKey) *MasterRecord {
	return m.records[key]
}

// Anomalies returns the invariant violations detected during consolidation.
func (m *Master) Anomalies() []Anomaly { return m.anomalies }

// Anomaly records a consolidation invariant violation. Anomalies are
// surfaced in output, never silently absorbed.
type Anomaly struct {
	Kind   AnomalyKind `json:"kind"`
	Table  string      `json:"table"`
	Detail string      `json:"detail"`
}

type AnomalyKind string

const (
	// AnomalySchemaDrift marks a one-to-one merge whose input would have
	// changed the master row count (duplicate keys on the joined side).
	AnomalySchemaDrift AnomalyKind = "schema_drift"
	// AnomalyOrphanKey marks an EntityKey present in a child table but
	// absent from the master domain.
	AnomalyOrphanKey AnomalyKind = "orphan_key"
)

func (a Anomaly) String() string {
	return fmt.Sprintf("%s [%s]: %s", a.Kind, a.Table, a.Detail)
}
