// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package tables

// Cardinality declares how a source table relates to the EntityKey.
type Cardinality int

const (
	// OneToOne tables carry at most one row per EntityKey and merge into
	// the master record as flat attributes.
	OneToOne Cardinality = iota
	// OneToMany tables carry a variable-length group per EntityKey and
	// nest into the master record as an ordered collection.
	OneToMany
)

func (c Cardinality) String() string {
	if c == OneToOne {
		return "one-to-one"
	}
	return "one-to-many"
}

// TableSpec registers one logical source table: its stable identifier (also
// the file name stem on disk), its Japanese label, and its relationship to
// the EntityKey.
type TableSpec struct {
	ID          string
	Label       string
	Cardinality Cardinality
	Primary     bool
}

// registry lists every extract of the review system in load order. The
// projects table is the primary table: it establishes the master domain
// and its absence is fatal.
var registry = []TableSpec{
	{ID: "projects", Label: "事業概要等", Cardinality: OneToOne, Primary: true},
	{ID: "organizations", Label: "組織情報", Cardinality: OneToOne},
	{ID: "policies_laws", Label: "政策・施策、法令等", Cardinality: OneToOne},
	{ID: "subsidies", Label: "補助率等", Cardinality: OneToOne},
	{ID: "related_projects", Label: "関連事業", Cardinality: OneToOne},
	{ID: "remarks", Label: "その他備考", Cardinality: OneToOne},
	{ID: "budget_summary", Label: "予算・執行サマリ", Cardinality: OneToMany},
	{ID: "budget_items", Label: "予算種別・歳出予算項目", Cardinality: OneToMany},
	{ID: "goals_performance", Label: "目標・実績", Cardinality: OneToMany},
	{ID: "goal_connections", Label: "目標のつながり", Cardinality: OneToMany},
	{ID: "evaluations", Label: "点検・評価", Cardinality: OneToMany},
	{ID: "expenditure_info", Label: "支出情報", Cardinality: OneToMany},
	{ID: "expenditure_connections", Label: "支出ブロックのつながり", Cardinality: OneToMany},
	{ID: "expenditure_details", Label: "費目・使途", Cardinality: OneToMany},
	{ID: "contracts", Label: "国庫債務負担行為等による契約", Cardinality: OneToMany},
}

// Registry returns the registered table specs in load order.
func Registry() []TableSpec {
	out := make([]TableSpec, len(registry))
	copy(out, registry)
	return out
}

// Spec looks up a table spec by identifier.
func Spec(id string) (TableSpec, bool) {
	for _, s := range registry {
		if s.ID == id {
			return s, true
		}
	}
	return TableSpec{}, false
}

// PrimarySpec returns the primary table spec.
func PrimarySpec() TableSpec {
	for _, s := range registry {
		if s.Primary {
			return s
		}
	}
	// The registry always declares a primary table.
	return registry[0]
}
