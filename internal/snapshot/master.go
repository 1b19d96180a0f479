// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"rs-miner/internal/consolidate"
	"rs-miner/internal/tables"
)

// encodedAttribute is one (name, value) pair of a nested child record in
// blob form. An array of these keeps attribute order, which a JSON object
// would not.
type encodedAttribute struct {
	Name string      `json:"n"`
	Kind tables.Kind `json:"k"`
	Val  interface{} `json:"v"`
}

// EncodeCollection serializes the ordered child records of one nested
// collection into the text blob stored on the master row. Encoding fails
// only for values JSON cannot carry (non-finite decimals).
func EncodeCollection(records []consolidate.ChildRecord) ([]byte, error) {
	encoded := make([][]encodedAttribute, len(records))
	for i, rec := range records {
		attrs := make([]encodedAttribute, len(rec))
		for j, a := range rec {
			attrs[j] = encodedAttribute{Name: a.Name, Kind: a.Value.Kind(), Val: attrValue(a.Value)}
		}
		encoded[i] = attrs
	}
	return json.Marshal(encoded)
}

// DecodeCollection is the inverse of EncodeCollection. The decoded
// sequence equals the encoded one, attribute order included.
func DecodeCollection(blob []byte) ([]consolidate.ChildRecord, error) {
	if len(blob) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(blob))
	dec.UseNumber()
	var encoded [][]encodedAttribute
	if err := dec.Decode(&encoded); err != nil {
		return nil, err
	}
	records := make([]consolidate.ChildRecord, len(encoded))
	for i, attrs := range encoded {
		rec := make(consolidate.ChildRecord, len(attrs))
		for j, ea := range attrs {
			v, err := decodeAttrValue(ea)
			if err != nil {
				return nil, err
			}
			rec[j] = consolidate.Attribute{Name: ea.Name, Value: v}
		}
		records[i] = rec
	}
	return records, nil
}

func attrValue(v tables.Value) interface{} {
	switch v.Kind() {
	case tables.KindText:
		return v.Text()
	case tables.KindInteger:
		return v.Int64()
	case tables.KindDecimal:
		return v.Float64()
	default:
		return nil
	}
}

func decodeAttrValue(ea encodedAttribute) (tables.Value, error) {
	switch ea.Kind {
	case tables.KindNull:
		return tables.Null(), nil
	case tables.KindText:
		s, ok := ea.Val.(string)
		if !ok {
			return tables.Null(), fmt.Errorf("attribute %q: text value holds %T", ea.Name, ea.Val)
		}
		return tables.Text(s), nil
	case tables.KindInteger:
		n, ok := ea.Val.(json.Number)
		if !ok {
			return tables.Null(), fmt.Errorf("attribute %q: integer value holds %T", ea.Name, ea.Val)
		}
		// json.Number keeps the digits exact; a float64 detour would
		// round integers past 2^53.
		i, err := n.Int64()
		if err != nil {
			return tables.Null(), fmt.Errorf("attribute %q: %w", ea.Name, err)
		}
		return tables.Integer(i), nil
	case tables.KindDecimal:
		n, ok := ea.Val.(json.Number)
		if !ok {
			return tables.Null(), fmt.Errorf("attribute %q: decimal value holds %T", ea.Name, ea.Val)
		}
		f, err := n.Float64()
		if err != nil {
			return tables.Null(), fmt.Errorf("attribute %q: %w", ea.Name, err)
		}
		return tables.Decimal(f), nil
	default:
		return tables.Null(), fmt.Errorf("attribute %q: unknown kind %d", ea.Name, int(ea.Kind))
	}
}

// MasterRow is the serialized form of one master record: flat attributes
// rendered as text, plus per collection the encoded blob, its count, and
// the has-data flag. Counts always match the blob contents; an absent
// collection is an empty blob with count 0, never a missing field.
type MasterRow struct {
	Key                 tables.EntityKey  `json:"予算事業ID"`
	Attributes          map[string]string `json:"attributes"`
	Collections         map[string]string `json:"collections"`
	Counts              map[string]int    `json:"counts"`
	HasData             map[string]bool   `json:"has_data"`
	TotalRelatedRecords int               `json:"total_related_records"`
}

// SaveStats reports what SaveMaster wrote and what it had to skip.
type SaveStats struct {
	Records        int
	SkippedRecords int
}

// SaveMaster writes the whole master corpus. A child record that cannot be
// serialized is skipped and counted; the skip count stays visible to the
// caller rather than aborting the run.
func (s *Store) SaveMaster(m *consolidate.Master) (SaveStats, error) {
	var stats SaveStats
	err := s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket([]byte(masterBucket)); err != nil && err != bolt.ErrBucketNotFound {
			return err
		}
		b, err := tx.CreateBucket([]byte(masterBucket))
		if err != nil {
			return err
		}

		for _, key := range m.Keys() {
			rec := m.Record(key)
			row := MasterRow{
				Key:         key,
				Attributes:  make(map[string]string, len(rec.Attributes())),
				Collections: make(map[string]string),
				Counts:      make(map[string]int),
				HasData:     make(map[string]bool),
			}
			for _, a := range rec.Attributes() {
				row.Attributes[a.Name] = a.Value.String()
			}
			for _, coll := range rec.Collections() {
				kept := coll.Records
				blob, err := EncodeCollection(kept)
				if err != nil {
					// Retry record by record so one bad child does not
					// drop the whole collection.
					kept = make([]consolidate.ChildRecord, 0, len(coll.Records))
					for _, child := range coll.Records {
						if _, cerr := EncodeCollection([]consolidate.ChildRecord{child}); cerr != nil {
							stats.SkippedRecords++
							continue
						}
						kept = append(kept, child)
					}
					blob, err = EncodeCollection(kept)
					if err != nil {
						return fmt.Errorf("key %d collection %s: %w", key, coll.Name, err)
					}
				}
				row.Collections[coll.Name] = string(blob)
				row.Counts[coll.Name] = len(kept)
				row.HasData[coll.Name] = len(kept) > 0
				row.TotalRelatedRecords += len(kept)
			}

			rowJSON, err := json.Marshal(row)
			if err != nil {
				return fmt.Errorf("key %d: %w", key, err)
			}
			if err := b.Put(keyBytes(key), rowJSON); err != nil {
				return err
			}
			stats.Records++
		}
		return nil
	})
	return stats, err
}

// LoadMasterRow reads one serialized master row back.
func (s *Store) LoadMasterRow(key tables.EntityKey) (*MasterRow, error) {
	var row *MasterRow
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(masterBucket))
		if b == nil {
			return fmt.Errorf("no master snapshot")
		}
		data := b.Get(keyBytes(key))
		if data == nil {
			return fmt.Errorf("key %d: not in master snapshot", key)
		}
		row = &MasterRow{}
		return json.Unmarshal(data, row)
	})
	return row, err
}

// MasterLen returns the number of serialized master rows.
func (s *Store) MasterLen() (int, error) {
	n := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(masterBucket))
		if b == nil {
			return nil
		}
		n = b.Stats().KeyN
		return nil
	})
	return n, err
}
