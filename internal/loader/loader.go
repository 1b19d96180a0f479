// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package loader

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/encoding/unicode"

	"rs-miner/internal/observability"
	"rs-miner/internal/tables"
)

// LoadError reports a table that could not be loaded. Optional tables are
// skipped with a warning; only the primary table is fatal.
type LoadError struct {
	TableID string
	Path    string
	Missing bool
	Err     error
}

func (e *LoadError) Error() string {
	if e.Missing {
		return fmt.Sprintf("table %s: file not found: %s", e.TableID, e.Path)
	}
	return fmt.Sprintf("table %s: %v", e.TableID, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// fallbackEncoding pairs a name with a decoder, tried in fixed order. The
// review-system extracts mix UTF-8 and legacy Japanese encodings.
type fallbackEncoding struct {
	name string
	enc  encoding.Encoding
}

var fallbackEncodings = []fallbackEncoding{
	{"utf-8", nil}, // validated directly, no transform needed
	{"utf-8-sig", unicode.UTF8BOM},
	{"shift_jis", japanese.ShiftJIS},
	{"euc-jp", japanese.EUCJP},
	{"iso-2022-jp", japanese.ISO2022JP},
}

// Loader reads registered source tables from a directory of CSV extracts.
type Loader struct {
	dir      string
	observer *observability.StandardObserver
}

// New creates a loader over the given extract directory.
func New(dir string, observer *observability.StandardObserver) *Loader {
	return &Loader{dir: dir, observer: observer}
}

// Load reads one registered table. A missing file yields a LoadError with
// Missing set; the caller decides whether that is fatal (primary table) or
// a warning (everything else).
func (l *Loader) Load(spec tables.TableSpec) (*tables.SourceTable, error) {
	path := filepath.Join(l.dir, spec.ID+".csv")

	done := func(bool, map[string]interface{}) {}
	if l.observer != nil {
		done = l.observer.StartTiming("loader", "load", spec.ID)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		done(false, nil)
		if os.IsNotExist(err) {
			return nil, &LoadError{TableID: spec.ID, Path: path, Missing: true, Err: err}
		}
		return nil, &LoadError{TableID: spec.ID, Path: path, Err: err}
	}

	text, encName, err := decodeWithFallback(raw)
	if err != nil {
		done(false, nil)
		return nil, &LoadError{TableID: spec.ID, Path: path, Err: err}
	}

	records, err := parseCSV(text)
	if err != nil {
		done(false, nil)
		return nil, &LoadError{TableID: spec.ID, Path: path, Err: err}
	}
	if len(records) == 0 {
		done(false, nil)
		return nil, &LoadError{TableID: spec.ID, Path: path, Err: fmt.Errorf("empty file")}
	}

	table, err := buildTable(spec, encName, records)
	if err != nil {
		done(false, nil)
		return nil, &LoadError{TableID: spec.ID, Path: path, Err: err}
	}

	done(true, map[string]interface{}{
		"rows":     table.NumRows(),
		"columns":  len(table.Columns()),
		"encoding": encName,
	})
	return table, nil
}

// decodeWithFallback tries each encoding in order until one decodes the
// input without replacement characters. The declared order mirrors what the
// extracts are known to contain.
func decodeWithFallback(raw []byte) (string, string, error) {
	for _, fe := range fallbackEncodings {
		if fe.enc == nil {
			if utf8.Valid(raw) && !bytes.HasPrefix(raw, []byte{0xEF, 0xBB, 0xBF}) {
				return string(raw), fe.name, nil
			}
			continue
		}
		decoded, err := fe.enc.NewDecoder().Bytes(raw)
		if err != nil {
			continue
		}
		// The x/text decoders substitute U+FFFD for undecodable bytes
		// instead of failing, so reject any decode that produced one.
		if bytes.ContainsRune(decoded, utf8.RuneError) {
			continue
		}
		return string(decoded), fe.name, nil
	}
	return "", "", fmt.Errorf("all encodings exhausted")
}

// parseCSV parses decoded text, tolerating ragged rows and stray quotes the
// way the published extracts require.
func parseCSV(text string) ([][]string, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csv parse: %w", err)
	}
	return records, nil
}

// buildTable infers column kinds from content and converts every cell. The
// header row declares names only; declared types are never trusted.
func buildTable(spec tables.TableSpec, encName string, records [][]string) (*tables.SourceTable, error) {
	header := records[0]
	body := records[1:]

	columns := make([]tables.Column, len(header))
	for i, name := range header {
		columns[i] = tables.Column{Name: strings.TrimSpace(name), Kind: inferKind(body, i)}
	}

	rows := make([][]tables.Value, len(body))
	for ri, rec := range body {
		row := make([]tables.Value, len(columns))
		for ci := range columns {
			cell := ""
			if ci < len(rec) {
				cell = rec[ci]
			}
			row[ci] = convertCell(cell, columns[ci].Kind)
		}
		rows[ri] = row
	}

	return tables.NewSourceTable(spec.ID, spec.Label, encName, columns, rows)
}

// inferKind scans the non-empty cells of one column and picks the narrowest
// kind that represents all of them losslessly: integer if every value is an
// exact integer, decimal if every value is numeric, text otherwise. A column
// with no content stays text.
func inferKind(body [][]string, col int) tables.Kind {
	sawValue := false
	allInt := true
	allNum := true
	for _, rec := range body {
		if col >= len(rec) {
			continue
		}
		cell := strings.TrimSpace(rec[col])
		if cell == "" {
			continue
		}
		sawValue = true
		if allInt {
			if _, err := strconv.ParseInt(cell, 10, 64); err != nil {
				allInt = false
			}
		}
		if !allInt && allNum {
			if _, err := strconv.ParseFloat(cell, 64); err != nil {
				allNum = false
			}
		}
		if !allNum {
			return tables.KindText
		}
	}
	if !sawValue {
		return tables.KindText
	}
	if allInt {
		return tables.KindInteger
	}
	return tables.KindDecimal
}

// convertCell converts one cell into the column's kind. Empty cells are
// null regardless of kind.
func convertCell(cell string, kind tables.Kind) tables.Value {
	trimmed := strings.TrimSpace(cell)
	if trimmed == "" {
		return tables.Null()
	}
	switch kind {
	case tables.KindInteger:
		i, err := strconv.ParseInt(trimmed, 10, 64)
		if err != nil {
			return tables.Text(cell)
		}
		return tables.Integer(i)
	case tables.KindDecimal:
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return tables.Text(cell)
		}
		return tables.Decimal(f)
	default:
		return tables.Text(cell)
	}
}

// LoadAll loads every registered table. Missing or unreadable optional
// tables are recorded as warnings and omitted from the result; a failed
// primary table aborts with an error since no master domain can be
// established without it.
func (l *Loader) LoadAll() (map[string]*tables.SourceTable, error) {
	loaded := make(map[string]*tables.SourceTable)
	for _, spec := range tables.Registry() {
		table, err := l.Load(spec)
		if err != nil {
			if spec.Primary {
				return nil, fmt.Errorf("primary table: %w", err)
			}
			if l.observer != nil {
				l.observer.Warnf("loader", spec.ID, "skipped: %v", err)
			}
			continue
		}
		loaded[spec.ID] = table
	}
	return loaded, nil
}
