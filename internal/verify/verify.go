// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package verify reconciles an externally supplied authoritative project
// name list against the discovered corpus via approximate string matching.
// Each official name moves through one classification: exact equality
// first, then best fuzzy similarity against all candidates, then no-match
// with advisory diagnostics.
package verify

import (
	"bufio"
	"os"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"rs-miner/internal/consolidate"
	"rs-miner/internal/observability"
	"rs-miner/internal/search"
	"rs-miner/internal/tables"
)

// Classification of one official name against the candidate set.
type Classification string

const (
	Unsearched Classification = "UNSEARCHED"
	ExactMatch Classification = "EXACT_MATCH"
	FuzzyMatch Classification = "FUZZY_MATCH"
	NoMatch    Classification = "NO_MATCH"
)

// Default thresholds. Similarity at or above the fuzzy threshold
// classifies as FUZZY_MATCH; substring containment in either direction
// boosts similarity to at least the boost value.
const (
	DefaultFuzzyThreshold = 0.7
	DefaultSubstringBoost = 0.9
)

// defaultKeywords are the domain keywords checked in no-match diagnostics.
var defaultKeywords = []string{"AI", "ＡＩ", "A.I.", "人工知能", "機械学習", "生成AI", "生成ＡＩ"}

// Candidate is one discovered project name eligible for matching.
type Candidate struct {
	Key  tables.EntityKey
	Name string
}

// Record is the verification outcome for one official name.
type Record struct {
	OfficialName   string           `json:"official_name"`
	Classification Classification   `json:"classification"`
	Matched        bool             `json:"matched"`
	Key            tables.EntityKey `json:"project_id,omitempty"`
	MatchedName    string           `json:"matched_name,omitempty"`
	Similarity     float64          `json:"similarity"`
	Diagnostics    *Diagnostics     `json:"diagnostics,omitempty"`
}

// Diagnostics carries advisory signals for a NO_MATCH record. They explain
// the miss; they are not part of the classification rule.
type Diagnostics struct {
	KeywordsFound      []string `json:"keywords_found"`
	NameLength         int      `json:"name_length"`
	PunctuationDensity float64  `json:"punctuation_density"`
	BestCandidate      string   `json:"best_candidate,omitempty"`
	BestSimilarity     float64  `json:"best_similarity"`
}

// Verifier classifies official names against a candidate set.
type Verifier struct {
	threshold float64
	boost     float64
	keywords  []string
	observer  *observability.StandardObserver
}

// NewVerifier creates a verifier. Non-positive thresholds and an empty
// keyword list fall back to the defaults.
func NewVerifier(threshold, boost float64, keywords []string, observer *observability.StandardObserver) *Verifier {
	if threshold <= 0 {
		threshold = DefaultFuzzyThreshold
	}
	if boost <= 0 {
		boost = DefaultSubstringBoost
	}
	if len(keywords) == 0 {
		keywords = defaultKeywords
	}
	return &Verifier{threshold: threshold, boost: boost, keywords: keywords, observer: observer}
}

// Similarity is the normalized edit-distance ratio of two names, boosted
// to at least the given floor when either is a substring of the other.
func Similarity(a, b string, substringBoost float64) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	la := utf8.RuneCountInString(a)
	lb := utf8.RuneCountInString(b)
	longest := la
	if lb > longest {
		longest = lb
	}
	dist := levenshtein.ComputeDistance(a, b)
	sim := 1 - float64(dist)/float64(longest)
	if strings.Contains(a, b) || strings.Contains(b, a) {
		if sim < substringBoost {
			sim = substringBoost
		}
	}
	return sim
}

// Classify runs the state machine for every official name. Candidates are
// evaluated in ascending key order and only a strictly better similarity
// replaces the best match, so ties go to the smallest EntityKey.
func (v *Verifier) Classify(officialNames []string, candidates []Candidate) []Record {
	done := func(bool, map[string]interface{}) {}
	if v.observer != nil {
		done = v.observer.StartTiming("verify", "classify", "")
	}

	ordered := make([]Candidate, len(candidates))
	copy(ordered, candidates)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Key != ordered[j].Key {
			return ordered[i].Key < ordered[j].Key
		}
		return ordered[i].Name < ordered[j].Name
	})

	records := make([]Record, 0, len(officialNames))
	exact, fuzzy, missed := 0, 0, 0
	for _, official := range officialNames {
		rec := v.classifyOne(official, ordered)
		switch rec.Classification {
		case ExactMatch:
			exact++
		case FuzzyMatch:
			fuzzy++
		default:
			missed++
		}
		records = append(records, rec)
	}

	done(true, map[string]interface{}{"exact": exact, "fuzzy": fuzzy, "no_match": missed})
	return records
}

func (v *Verifier) classifyOne(official string, ordered []Candidate) Record {
	rec := Record{OfficialName: official, Classification: Unsearched}

	for _, c := range ordered {
		if c.Name == official {
			rec.Classification = ExactMatch
			rec.Matched = true
			rec.Key = c.Key
			rec.MatchedName = c.Name
			rec.Similarity = 1
			return rec
		}
	}

	best := Candidate{}
	bestSim := 0.0
	found := false
	for _, c := range ordered {
		sim := Similarity(official, c.Name, v.boost)
		if sim > bestSim {
			bestSim = sim
			best = c
			found = true
		}
	}

	if found && bestSim >= v.threshold {
		rec.Classification = FuzzyMatch
		rec.Matched = true
		rec.Key = best.Key
		rec.MatchedName = best.Name
		rec.Similarity = bestSim
		return rec
	}

	// No candidate reached the threshold. Recorded, never raised.
	rec.Classification = NoMatch
	rec.Similarity = bestSim
	rec.Diagnostics = v.diagnose(official, best.Name, bestSim)
	return rec
}

// diagnose attaches the advisory no-match signals: which domain keywords
// the official name carries, its length, and how punctuation-heavy it is
// (parenthesized qualifiers are a frequent cause of near misses).
func (v *Verifier) diagnose(official, bestCandidate string, bestSim float64) *Diagnostics {
	var keywords []string
	for _, kw := range v.keywords {
		if strings.Contains(official, kw) {
			keywords = append(keywords, kw)
		}
	}

	total := utf8.RuneCountInString(official)
	punct := 0
	for _, r := range official {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			punct++
		}
	}
	density := 0.0
	if total > 0 {
		density = float64(punct) / float64(total)
	}

	return &Diagnostics{
		KeywordsFound:      keywords,
		NameLength:         total,
		PunctuationDensity: density,
		BestCandidate:      bestCandidate,
		BestSimilarity:     bestSim,
	}
}

// CandidatesFrom builds the candidate set: the union of master record
// names and search result descriptive names, one candidate per EntityKey.
func CandidatesFrom(results map[tables.EntityKey]*search.Result, master *consolidate.Master) []Candidate {
	byKey := make(map[tables.EntityKey]string)
	if master != nil {
		for _, key := range master.Keys() {
			if name := master.Record(key).AttributeText("事業名"); name != "" {
				byKey[key] = name
			}
		}
	}
	for key, r := range results {
		if _, ok := byKey[key]; ok {
			continue
		}
		if name := r.Descriptive["事業名"]; name != "" {
			byKey[key] = name
		}
	}

	candidates := make([]Candidate, 0, len(byKey))
	for key, name := range byKey {
		candidates = append(candidates, Candidate{Key: key, Name: name})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Key < candidates[j].Key })
	return candidates
}

// LoadOfficialList reads the authoritative name list, one name per line,
// skipping blank lines.
func LoadOfficialList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var names []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		name := strings.TrimSpace(scanner.Text())
		if name != "" {
			names = append(names, name)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return names, nil
}
