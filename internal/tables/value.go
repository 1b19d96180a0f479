// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package tables

import (
	"fmt"
	"strconv"
)

// Kind identifies the closed set of value kinds a table cell can hold.
type Kind int

const (
	KindNull Kind = iota
	KindText
	KindInteger
	KindDecimal
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindText:
		return "text"
	case KindInteger:
		return "integer"
	case KindDecimal:
		return "decimal"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Value is a single typed table cell. The zero value is null.
type Value struct {
	kind    Kind
	text    string
	integer int64
	decimal float64
}

// Null returns the null value.
func Null() Value {
	return Value{kind: KindNull}
}

// Text returns a text value.
func Text(s string) Value {
	return Value{kind: KindText, text: s}
}

// Integer returns an integer value.
func Integer(i int64) Value {
	return Value{kind: KindInteger, integer: i}
}

// Decimal returns a decimal value.
func Decimal(f float64) Value {
	return Value{kind: KindDecimal, decimal: f}
}

func (v Value) Kind() Kind    { return v.kind }
func (v Value) IsNull() bool  { return v.kind == KindNull }
func (v Value) Int64() int64  { return v.integer }
func (v Value) Text() string  { return v.text }

// Float64 returns the numeric value for integer and decimal kinds.
func (v Value) Float64() float64 {
	if v.kind == KindInteger {
		return float64(v.integer)
	}
	return v.decimal
}

// String renders the value for display and export. Null renders as the
// empty string, matching how it appeared in the source extract.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindText:
		return v.text
	case KindInteger:
		return strconv.FormatInt(v.integer, 10)
	case KindDecimal:
		return strconv.FormatFloat(v.decimal, 'f', -1, 64)
	default:
		return ""
	}
}

// Equal reports whether two values have the same kind and content.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindText:
		return v.text == other.text
	case KindInteger:
		return v.integer == other.integer
	case KindDecimal:
		return v.decimal == other.decimal
	default:
		return false
	}
}
