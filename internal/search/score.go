package search

import (
	"sort"
	"strings"
)

// Relevance weights. Substring containment dominates, token-prefix matches
// rank above bare subsequence hits, and directories plus short names break
// ties upward.
const (
	weightSubstring   = 3
	weightTokenPrefix = 2
	weightSubsequence = 1
	bonusDirectory    = 1
	bonusShortName    = 1

	shortNameLimit = 16
)

// tokenSeparators is the class a name is split on for token-prefix
// matching.
const tokenSeparators = " -_."

// splitTokens splits a lower-cased name on [ -_.]+.
func splitTokens(name string) []string {
	return strings.FieldsFunc(name, func(r rune) bool {
		return strings.ContainsRune(tokenSeparators, r)
	})
}

// isSubsequence reports whether every byte of q appears in name in order.
func isSubsequence(q, name string) bool {
	qi := 0
	for i := 0; i < len(name) && qi < len(q); i++ {
		if name[i] == q[qi] {
			qi++
		}
	}
	return qi == len(q)
}

// tokenPrefixMatch reports whether every whitespace-separated sub-token of q
// is a prefix of some token of the name.
func tokenPrefixMatch(queryTokens []string, nameTokens []string) bool {
	if len(queryTokens) == 0 {
		return false
	}
	for _, qt := range queryTokens {
		found := false
		for _, nt := range nameTokens {
			if strings.HasPrefix(nt, qt) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// scoreWith computes the relevance score of a candidate name, 0 meaning no
// match. The token-prefix verdict is supplied by the caller so the standard
// index can answer it from its inverted index instead of re-splitting.
func scoreWith(q, name string, tokenOK, isDir bool) int {
	score := 0
	matched := false

	if strings.Contains(name, q) {
		score += weightSubstring
		matched = true
	}
	if tokenOK {
		score += weightTokenPrefix
		matched = true
	}
	if isSubsequence(q, name) {
		score += weightSubsequence
		matched = true
	}
	if !matched {
		return 0
	}

	if isDir {
		score += bonusDirectory
	}
	if len(name) <= shortNameLimit {
		score += bonusShortName
	}
	return score
}

// scoreName scores a name with the token-prefix check computed inline.
// q and name must already share case treatment.
func scoreName(q string, queryTokens []string, name string, isDir bool) int {
	return scoreWith(q, name, tokenPrefixMatch(queryTokens, splitTokens(name)), isDir)
}

// Result is one search hit.
type Result struct {
	Name         string `json:"name"`
	Path         string `json:"path"`
	Size         int64  `json:"size"`
	FileType     string `json:"file_type"`
	Score        int    `json:"score"`
	LastModified int64  `json:"last_modified"`
}

// sortResults orders hits by descending score, then shorter name, then
// lexicographic name. The ordering is the response contract: the first
// result never scores below the last.
func sortResults(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if len(results[i].Name) != len(results[j].Name) {
			return len(results[i].Name) < len(results[j].Name)
		}
		return results[i].Name < results[j].Name
	})
}
