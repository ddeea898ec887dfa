// Copyright (c) 2025 The Monsoon Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// SuggestCommand returns the registered name closest to input, or "" when
// nothing is close. Abbreviations such as "rgn" for "region" are matched
// first, then typos within a small edit distance.
func SuggestCommand(input string, names []string) string {
	input = strings.ToLower(input)
	if len(input) < 2 {
		return ""
	}

	ranks := fuzzy.RankFindFold(input, names)
	if len(ranks) > 0 {
		sort.Sort(ranks)
		return ranks[0].Target
	}

	maxDistance := 1
	if len(input) >= 4 {
		maxDistance = 2
	}
	if len(input) > 8 {
		maxDistance = 3
	}

	best, bestDistance := "", -1
	for _, name := range names {
		d := fuzzy.LevenshteinDistance(input, strings.ToLower(name))
		if d == 0 {
			return ""
		}
		if d <= maxDistance && (bestDistance == -1 || d < bestDistance) {
			best, bestDistance = name, d
		}
	}
	return best
}
