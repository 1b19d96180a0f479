// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package snapshot persists loaded source tables and the consolidated
// master corpus in a bbolt file for fast re-loading. Tables are stored
// column-wise; master records are stored row-wise with each nested
// collection serialized as an encoded text blob next to its count field.
package snapshot

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"rs-miner/internal/tables"
)

const masterBucket = "master"

// Store wraps one bbolt snapshot file.
type Store struct {
	db *bolt.DB
}

// Open opens or creates a snapshot file.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open snapshot %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying file.
func (s *Store) Close() error { return s.db.Close() }

type tableMeta struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Encoding string `json:"encoding"`
	Rows     int    `json:"rows"`
}

type columnMeta struct {
	Name string      `json:"name"`
	Kind tables.Kind `json:"kind"`
}

// SaveTable writes one source table column-wise, replacing any previous
// snapshot of the same table.
func (s *Store) SaveTable(t *tables.SourceTable) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		name := []byte("table:" + t.ID)
		if err := tx.DeleteBucket(name); err != nil && err != bolt.ErrBucketNotFound {
			return err
		}
		b, err := tx.CreateBucket(name)
		if err != nil {
			return err
		}

		meta, err := json.Marshal(tableMeta{ID: t.ID, Label: t.Label, Encoding: t.Encoding, Rows: t.NumRows()})
		if err != nil {
			return err
		}
		if err := b.Put([]byte("meta"), meta); err != nil {
			return err
		}

		cols := t.Columns()
		colMetas := make([]columnMeta, len(cols))
		for i, c := range cols {
			colMetas[i] = columnMeta{Name: c.Name, Kind: c.Kind}
		}
		colsJSON, err := json.Marshal(colMetas)
		if err != nil {
			return err
		}
		if err := b.Put([]byte("columns"), colsJSON); err != nil {
			return err
		}

		for ci := range cols {
			blob, err := encodeColumn(t, ci)
			if err != nil {
				return fmt.Errorf("table %s column %q: %w", t.ID, cols[ci].Name, err)
			}
			if err := b.Put(colKey(ci), blob); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadTable reads one table back from the snapshot.
func (s *Store) LoadTable(id string) (*tables.SourceTable, error) {
	var table *tables.SourceTable
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte("table:" + id))
		if b == nil {
			return fmt.Errorf("table %s: not in snapshot", id)
		}

		var meta tableMeta
		if err := json.Unmarshal(b.Get([]byte("meta")), &meta); err != nil {
			return err
		}
		var colMetas []columnMeta
		if err := json.Unmarshal(b.Get([]byte("columns")), &colMetas); err != nil {
			return err
		}

		columns := make([]tables.Column, len(colMetas))
		rows := make([][]tables.Value, meta.Rows)
		for ri := range rows {
			rows[ri] = make([]tables.Value, len(colMetas))
		}
		for ci, cm := range colMetas {
			columns[ci] = tables.Column{Name: cm.Name, Kind: cm.Kind}
			values, err := decodeColumn(b.Get(colKey(ci)), cm.Kind, meta.Rows)
			if err != nil {
				return fmt.Errorf("table %s column %q: %w", id, cm.Name, err)
			}
			for ri := range rows {
				rows[ri][ci] = values[ri]
			}
		}

		t, err := tables.NewSourceTable(meta.ID, meta.Label, meta.Encoding, columns, rows)
		if err != nil {
			return err
		}
		table = t
		return nil
	})
	return table, err
}

func colKey(ci int) []byte {
	return []byte(fmt.Sprintf("col:%05d", ci))
}

// encodeColumn serializes one column as a JSON array with nulls preserved.
func encodeColumn(t *tables.SourceTable, ci int) ([]byte, error) {
	values := make([]interface{}, t.NumRows())
	for ri := 0; ri < t.NumRows(); ri++ {
		v := t.Row(ri)[ci]
		switch v.Kind() {
		case tables.KindNull:
			values[ri] = nil
		case tables.KindText:
			values[ri] = v.Text()
		case tables.KindInteger:
			values[ri] = v.Int64()
		case tables.KindDecimal:
			values[ri] = v.Float64()
		}
	}
	return json.Marshal(values)
}

func decodeColumn(blob []byte, kind tables.Kind, rows int) ([]tables.Value, error) {
	dec := json.NewDecoder(bytes.NewReader(blob))
	dec.UseNumber()
	var raw []interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if len(raw) != rows {
		return nil, fmt.Errorf("column has %d values, want %d", len(raw), rows)
	}

	values := make([]tables.Value, rows)
	for i, rv := range raw {
		v, err := decodeValue(rv, kind)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

func decodeValue(raw interface{}, kind tables.Kind) (tables.Value, error) {
	if raw == nil {
		return tables.Null(), nil
	}
	switch kind {
	case tables.KindInteger:
		n, ok := raw.(json.Number)
		if !ok {
			// Mixed columns keep stray text cells as text.
			if s, isText := raw.(string); isText {
				return tables.Text(s), nil
			}
			return tables.Null(), fmt.Errorf("integer column holds %T", raw)
		}
		i, err := n.Int64()
		if err != nil {
			return tables.Null(), err
		}
		return tables.Integer(i), nil
	case tables.KindDecimal:
		n, ok := raw.(json.Number)
		if !ok {
			if s, isText := raw.(string); isText {
				return tables.Text(s), nil
			}
			return tables.Null(), fmt.Errorf("decimal column holds %T", raw)
		}
		f, err := n.Float64()
		if err != nil {
			return tables.Null(), err
		}
		return tables.Decimal(f), nil
	default:
		s, ok := raw.(string)
		if !ok {
			return tables.Null(), fmt.Errorf("text column holds %T", raw)
		}
		return tables.Text(s), nil
	}
}

func keyBytes(key tables.EntityKey) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(key))
	return b[:]
}
