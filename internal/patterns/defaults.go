// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package patterns

// DefaultRules returns the built-in AI-related rule set used when no
// descriptor overrides it. The literal forms cover the half-width and
// full-width spellings seen in the extracts; the compound vocabulary covers
// the derived forms (生成AI, AI活用, AI搭載, ...); the phrases cover
// synonym terminology that never contains the bare token.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:    "ai_literal",
			Kind:  KindLiteral,
			Terms: []string{"AI", "ＡＩ", "A.I.", "Ａ．Ｉ．"},
		},
		{
			ID:    "ai_boundary",
			Kind:  KindBoundary,
			Terms: []string{"AI"},
		},
		{
			ID:       "ai_compound",
			Kind:     KindCompound,
			Terms:    []string{"AI"},
			Prefixes: []string{"生成", "対話型", "汎用"},
			Suffixes: []string{"活用", "搭載", "導入", "による", "チャットボット"},
		},
		{
			ID:   "ai_phrase",
			Kind: KindPhrase,
			Terms: []string{
				"人工知能",
				"機械学習",
				"深層学習",
				"ディープラーニング",
				"チャットボット",
			},
		},
	}
}
