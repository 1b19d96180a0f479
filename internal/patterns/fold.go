// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package patterns

import (
	"strings"
	"unicode"

	"golang.org/x/text/width"
)

// foldedText is a width-folded, lowercased view of a string that can map
// match offsets back to the original bytes. Matching is case-insensitive
// and width-insensitive: half-width and full-width spellings of the same
// token (AI / ＡＩ) compare equal.
type foldedText struct {
	original string
	folded   string
	// origStart[i] is the byte offset in original of the rune that
	// produced folded byte i; one extra entry marks len(original).
	origStart []int
}

// foldRune maps a rune to its canonical narrow, lowercased form.
func foldRune(r rune) rune {
	p := width.LookupRune(r)
	if f := p.Folded(); f != 0 {
		r = f
	}
	return unicode.ToLower(r)
}

// foldString folds a needle. Needles carry no offset mapping.
func foldString(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		b.WriteRune(foldRune(r))
	}
	return b.String()
}

func newFoldedText(s string) *foldedText {
	var b strings.Builder
	b.Grow(len(s))
	var starts []int
	for off, r := range s {
		fr := foldRune(r)
		n := b.Len()
		b.WriteRune(fr)
		for ; n < b.Len(); n++ {
			starts = append(starts, off)
		}
	}
	starts = append(starts, len(s))
	return &foldedText{original: s, folded: b.String(), origStart: starts}
}

// span maps a folded byte range back to the original byte range.
func (ft *foldedText) span(from, to int) (int, int) {
	return ft.origStart[from], ft.origStart[to]
}

// isWordByte reports whether the folded byte at i belongs to an ASCII
// alphanumeric run. Out-of-range offsets count as non-word.
func (ft *foldedText) isWordByte(i int) bool {
	if i < 0 || i >= len(ft.folded) {
		return false
	}
	c := ft.folded[i]
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'z'
}
