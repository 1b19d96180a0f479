// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package stats summarizes search results by grouping attribute and by
// pattern or source table. Aggregators always emit the full distribution;
// truncation to a top-N is a presentation concern and lives with the
// consumers.
package stats

import (
	"sort"

	"rs-miner/internal/search"
	"rs-miner/internal/tables"
)

// Unknown labels results whose grouping attribute is absent or empty.
const Unknown = "不明"

// Entry is one bucket of a distribution.
type Entry struct {
	Value   string  `json:"value"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// Axis selects what CrossTabulate counts.
type Axis int

const (
	// ByPattern counts results per matched rule.
	ByPattern Axis = iota
	// ByTable counts results per source table that contributed evidence.
	ByTable
)

// GroupCount returns the full distribution of results over the values of
// one descriptive grouping attribute (for example 府省庁), with each
// bucket's share of the result corpus. Results missing the attribute fall
// into the Unknown bucket.
func GroupCount(results map[tables.EntityKey]*search.Result, groupAttribute string) []Entry {
	counts := make(map[string]int)
	for _, r := range results {
		v := r.Descriptive[groupAttribute]
		if v == "" {
			v = Unknown
		}
		counts[v]++
	}
	return distribution(counts, len(results))
}

// CrossTabulate returns the frequency distribution of results along the
// chosen axis. A result carrying three patterns counts once per pattern;
// percentages are relative to the number of results, so they need not sum
// to 100.
func CrossTabulate(results map[tables.EntityKey]*search.Result, axis Axis) []Entry {
	counts := make(map[string]int)
	for _, r := range results {
		var values []string
		switch axis {
		case ByPattern:
			values = r.RuleIDs
		case ByTable:
			values = r.Tables
		}
		for _, v := range values {
			counts[v]++
		}
	}
	return distribution(counts, len(results))
}

// distribution converts a count map to entries sorted by descending count,
// ties broken by value, so repeated runs order identically.
func distribution(counts map[string]int, corpus int) []Entry {
	entries := make([]Entry, 0, len(counts))
	for v, c := range counts {
		pct := 0.0
		if corpus > 0 {
			pct = float64(c) / float64(corpus) * 100
		}
		entries = append(entries, Entry{Value: v, Count: c, Percent: pct})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Value < entries[j].Value
	})
	return entries
}
