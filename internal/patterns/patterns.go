// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package patterns compiles textual match rules into reusable matchers.
// Four rule kinds exist: literal exact forms, boundary-sensitive forms
// that must not sit inside a longer alphanumeric run, compound forms
// derived from a domain vocabulary, and multi-word synonym phrases.
package patterns

import (
	"fmt"
	"strings"
)

// Rule kinds accepted by Compile.
const (
	KindLiteral  = "literal"
	KindBoundary = "boundary"
	KindCompound = "compound"
	KindPhrase   = "phrase"
)

// Rule is one externally configured match rule.
type Rule struct {
	ID       string   `yaml:"id"`
	Kind     string   `yaml:"kind"`
	Terms    []string `yaml:"terms"`
	Prefixes []string `yaml:"prefixes,omitempty"`
	Suffixes []string `yaml:"suffixes,omitempty"`
}

// CompileError reports one malformed rule. A malformed rule is skipped;
// the remaining rules still compile.
type CompileError struct {
	RuleID string
	Reason string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("pattern rule %q: %s", e.RuleID, e.Reason)
}

// Match is one occurrence of a rule in a text: the matched original
// substring and its byte offsets in the original text.
type Match struct {
	RuleID string
	Text   string
	Start  int
	End    int
}

// matcher is one compiled rule: its folded needles and whether hits must
// sit on alphanumeric-run boundaries.
type matcher struct {
	ruleID   string
	needles  []string
	boundary bool
}

// MatcherSet holds the compiled matchers of a rule list.
type MatcherSet struct {
	matchers []matcher
}

// Len returns the number of compiled rules.
func (ms *MatcherSet) Len() int { return len(ms.matchers) }

// RuleIDs returns the compiled rule identifiers in compile order.
func (ms *MatcherSet) RuleIDs() []string {
	ids := make([]string, len(ms.matchers))
	for i, m := range ms.matchers {
		ids[i] = m.ruleID
	}
	return ids
}

// Compile builds a MatcherSet from a rule list. Malformed rules are
// returned as CompileErrors and skipped; compilation of the remaining
// rules always proceeds.
func Compile(rules []Rule) (*MatcherSet, []error) {
	ms := &MatcherSet{}
	var errs []error
	seen := make(map[string]bool)

	for _, rule := range rules {
		m, err := compileRule(rule)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if seen[m.ruleID] {
			errs = append(errs, &CompileError{RuleID: m.ruleID, Reason: "duplicate rule id"})
			continue
		}
		seen[m.ruleID] = true
		ms.matchers = append(ms.matchers, m)
	}
	return ms, errs
}

func compileRule(rule Rule) (matcher, error) {
	if strings.TrimSpace(rule.ID) == "" {
		return matcher{}, &CompileError{RuleID: "(unnamed)", Reason: "missing id"}
	}

	terms := foldTerms(rule.Terms)
	if len(terms) == 0 {
		return matcher{}, &CompileError{RuleID: rule.ID, Reason: "no usable terms"}
	}

	m := matcher{ruleID: rule.ID}
	switch rule.Kind {
	case KindLiteral, KindPhrase:
		m.needles = terms
	case KindBoundary:
		m.needles = terms
		m.boundary = true
	case KindCompound:
		prefixes := foldTerms(rule.Prefixes)
		suffixes := foldTerms(rule.Suffixes)
		if len(prefixes) == 0 && len(suffixes) == 0 {
			return matcher{}, &CompileError{RuleID: rule.ID, Reason: "compound rule has no vocabulary"}
		}
		var needles []string
		for _, t := range terms {
			for _, p := range prefixes {
				needles = append(needles, p+t)
			}
			for _, s := range suffixes {
				needles = append(needles, t+s)
			}
		}
		m.needles = dedupe(needles)
	default:
		return matcher{}, &CompileError{RuleID: rule.ID, Reason: fmt.Sprintf("unknown kind %q", rule.Kind)}
	}
	return m, nil
}

// foldTerms folds and deduplicates terms. Width variants of the same token
// collapse into one needle so a single occurrence is not counted twice.
func foldTerms(terms []string) []string {
	var out []string
	for _, t := range terms {
		f := foldString(strings.TrimSpace(t))
		if f != "" {
			out = append(out, f)
		}
	}
	return dedupe(out)
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// FindAll returns every occurrence of every compiled rule in text, in
// (rule, needle, position) order. Occurrences are not deduplicated: a
// needle appearing twice yields two matches.
func (ms *MatcherSet) FindAll(text string) []Match {
	if text == "" || len(ms.matchers) == 0 {
		return nil
	}
	ft := newFoldedText(text)

	var found []Match
	for _, m := range ms.matchers {
		for _, needle := range m.needles {
			for from := 0; ; {
				i := strings.Index(ft.folded[from:], needle)
				if i < 0 {
					break
				}
				s := from + i
				e := s + len(needle)
				from = s + 1
				if m.boundary && (ft.isWordByte(s-1) || ft.isWordByte(e)) {
					continue
				}
				os, oe := ft.span(s, e)
				found = append(found, Match{
					RuleID: m.ruleID,
					Text:   text[os:oe],
					Start:  os,
					End:    oe,
				})
			}
		}
	}
	return found
}
