// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package search scans configured fields of the source tables with a
// compiled matcher set, groups match evidence by EntityKey, and merges
// per-table evidence into one aggregated result per key.
package search

import (
	"sort"

	"rs-miner/internal/consolidate"
	"rs-miner/internal/observability"
	"rs-miner/internal/parallel"
	"rs-miner/internal/patterns"
	"rs-miner/internal/tables"
)

// excerptRunes bounds the stored field excerpt per evidence entry.
const excerptRunes = 300

// DescriptiveAttributes are the master-record attributes attached to each
// search result for traceability and fuzzy-verification candidacy.
var DescriptiveAttributes = []string{"事業名", "府省庁", "局・庁", "事業の目的", "事業の概要", "現状・課題"}

// Evidence is one match occurrence: which table, field and rule hit, the
// matched substring, and where in the field text it sat.
type Evidence struct {
	Table   string `json:"table"`
	Field   string `json:"field"`
	RuleID  string `json:"pattern"`
	Matched string `json:"matched_text"`
	Start   int    `json:"start"`
	End     int    `json:"end"`
	Row     int    `json:"record_index"`
	Excerpt string `json:"excerpt"`
}

// TableResult aggregates the evidence of one table for one EntityKey.
type TableResult struct {
	Key          tables.EntityKey `json:"project_id"`
	Table        string           `json:"table"`
	Evidence     []Evidence       `json:"evidence"`
	TotalMatches int              `json:"total_matches"`
	Fields       []string         `json:"matched_fields"`
	RuleIDs      []string         `json:"found_patterns"`
	MatchedTexts []string         `json:"matched_texts"`
	RecordCount  int              `json:"record_count"`
}

// Result is the aggregated evidence for one EntityKey across all tables.
// Set fields (tables, fields, patterns, matched texts) are binary
// membership; TotalMatches keeps occurrence multiplicity for ranking.
type Result struct {
	Key          tables.EntityKey  `json:"project_id"`
	Tables       []string          `json:"tables_found"`
	Fields       []string          `json:"matched_fields"`
	RuleIDs      []string          `json:"found_patterns"`
	MatchedTexts []string          `json:"matched_texts"`
	TotalMatches int               `json:"total_matches"`
	Evidence     []Evidence        `json:"evidence"`
	Descriptive  map[string]string `json:"master_info"`
}

// Engine scans tables with one compiled matcher set and one searchable
// field descriptor. Both are fixed for the lifetime of the engine.
type Engine struct {
	matchers      *patterns.MatcherSet
	fieldsByTable map[string][]string
	observer      *observability.StandardObserver
}

// NewEngine creates a search engine. fieldsByTable names, per table
// identifier, the fields eligible for pattern search.
func NewEngine(matchers *patterns.MatcherSet, fieldsByTable map[string][]string, observer *observability.StandardObserver) *Engine {
	return &Engine{matchers: matchers, fieldsByTable: fieldsByTable, observer: observer}
}

// SearchTable scans every configured field of every row group of one
// table. Each match occurrence is recorded separately: a needle appearing
// twice in a field counts twice toward TotalMatches.
func (e *Engine) SearchTable(t *tables.SourceTable) map[tables.EntityKey]*TableResult {
	done := func(bool, map[string]interface{}) {}
	if e.observer != nil {
		done = e.observer.StartTiming("search", "search_table", t.ID)
	}

	// Precompute the eligible fields once per table.
	var fields []string
	for _, f := range e.fieldsByTable[t.ID] {
		if t.HasColumn(f) {
			fields = append(fields, f)
		}
	}
	if len(fields) == 0 {
		done(true, map[string]interface{}{"matches": 0, "fields": 0})
		return nil
	}

	groups, order, _ := t.GroupByKey()

	results := make(map[tables.EntityKey]*TableResult)
	total := 0
	for _, key := range order {
		tr := &TableResult{Key: key, Table: t.ID, RecordCount: len(groups[key])}
		fieldSet := map[string]bool{}
		ruleSet := map[string]bool{}
		textSet := map[string]bool{}

		for _, ri := range groups[key] {
			for _, field := range fields {
				v := t.Value(ri, field)
				if v.Kind() != tables.KindText {
					continue
				}
				text := v.Text()
				for _, m := range e.matchers.FindAll(text) {
					tr.Evidence = append(tr.Evidence, Evidence{
						Table:   t.ID,
						Field:   field,
						RuleID:  m.RuleID,
						Matched: m.Text,
						Start:   m.Start,
						End:     m.End,
						Row:     ri,
						Excerpt: truncateRunes(text, excerptRunes),
					})
					tr.TotalMatches++
					fieldSet[field] = true
					ruleSet[m.RuleID] = true
					textSet[m.Text] = true
				}
			}
		}

		if tr.TotalMatches == 0 {
			continue
		}
		tr.Fields = sortedSet(fieldSet)
		tr.RuleIDs = sortedSet(ruleSet)
		tr.MatchedTexts = sortedSet(textSet)
		results[key] = tr
		total += tr.TotalMatches
	}

	done(true, map[string]interface{}{"matches": total, "keys": len(results)})
	return results
}

// ComprehensiveSearch scans all given tables and merges per-table evidence
// per EntityKey. The per-table scans run on a worker pool; because the
// merge is a commutative union and count-sum, the fan-out order does not
// matter, and merging in the caller's table order keeps output
// deterministic.
func (e *Engine) ComprehensiveSearch(tbls []*tables.SourceTable, workers int) map[tables.EntityKey]*Result {
	jobs := make([]*parallel.Job, 0, len(tbls))
	for _, t := range tbls {
		t := t
		jobs = append(jobs, &parallel.Job{
			TableID: t.ID,
			Execute: func() (interface{}, error) {
				return e.SearchTable(t), nil
			},
		})
	}

	pool := parallel.NewWorkerPool(workers, e.observer)
	scanned := pool.RunAll(jobs)

	merged := make(map[tables.EntityKey]*Result)
	for _, t := range tbls {
		r := scanned[t.ID]
		if r == nil || r.Output == nil {
			continue
		}
		tableResults := r.Output.(map[tables.EntityKey]*TableResult)
		for key, tr := range tableResults {
			agg := merged[key]
			if agg == nil {
				agg = &Result{Key: key, Descriptive: map[string]string{}}
				merged[key] = agg
			}
			agg.Tables = append(agg.Tables, tr.Table)
			agg.TotalMatches += tr.TotalMatches
			agg.Evidence = append(agg.Evidence, tr.Evidence...)
			agg.Fields = mergeSets(agg.Fields, tr.Fields)
			agg.RuleIDs = mergeSets(agg.RuleIDs, tr.RuleIDs)
			agg.MatchedTexts = mergeSets(agg.MatchedTexts, tr.MatchedTexts)
		}
	}
	return merged
}

// MergeWithMaster enriches each result with descriptive attributes from
// the corresponding master record. A key outside the master domain keeps
// an empty descriptive block; that is reduced coverage, not an error.
func MergeWithMaster(results map[tables.EntityKey]*Result, master *consolidate.Master) {
	for key, r := range results {
		rec := master.Record(key)
		if rec == nil {
			continue
		}
		for _, name := range DescriptiveAttributes {
			if v, ok := rec.Attribute(name); ok && !v.IsNull() {
				r.Descriptive[name] = v.String()
			}
		}
	}
}

// Keys returns the result keys in ascending order.
func Keys(results map[tables.EntityKey]*Result) []tables.EntityKey {
	keys := make([]tables.EntityKey, 0, len(results))
	for k := range results {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func sortedSet(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func mergeSets(a, b []string) []string {
	set := make(map[string]bool, len(a)+len(b))
	for _, s := range a {
		set[s] = true
	}
	for _, s := range b {
		set[s] = true
	}
	return sortedSet(set)
}

func truncateRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
