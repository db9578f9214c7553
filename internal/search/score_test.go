package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubsequence(t *testing.T) {
	assert.True(t, isSubsequence("rpt", "report.txt"))
	assert.True(t, isSubsequence("", "anything"))
	assert.False(t, isSubsequence("tpr", "report.txt"))
	assert.False(t, isSubsequence("reportx", "report"))
}

func TestSplitTokens(t *testing.T) {
	assert.Equal(t, []string{"annual", "report", "2024", "pdf"}, splitTokens("annual_report-2024.pdf"))
	assert.Equal(t, []string{"a", "b"}, splitTokens("a b"))
	assert.Empty(t, splitTokens("---"))
}

func TestTokenPrefixMatch(t *testing.T) {
	name := splitTokens("annual_report-2024.pdf")
	assert.True(t, tokenPrefixMatch([]string{"ann", "rep"}, name))
	assert.True(t, tokenPrefixMatch([]string{"2024"}, name))
	assert.False(t, tokenPrefixMatch([]string{"nual"}, name))
	assert.False(t, tokenPrefixMatch(nil, name))
}

func TestScoreWeights(t *testing.T) {
	q := "report"
	tokens := []string{"report"}

	// Substring + token prefix + subsequence + short name.
	full := scoreName(q, tokens, "report.txt", false)
	assert.Equal(t, weightSubstring+weightTokenPrefix+weightSubsequence+bonusShortName, full)

	// Directory bonus on top.
	assert.Equal(t, full+bonusDirectory, scoreName(q, tokens, "report.txt", true))

	// Subsequence only.
	seq := scoreName(q, tokens, "ramen-e-port", false)
	assert.Equal(t, weightSubsequence+bonusShortName, seq)

	// No match at all.
	assert.Zero(t, scoreName(q, tokens, "holiday.png", false))
}

func TestSortResultsIsMonotone(t *testing.T) {
	results := []Result{
		{Name: "zz", Score: 2},
		{Name: "aa", Score: 7},
		{Name: "longer-name", Score: 7},
		{Name: "ab", Score: 7},
		{Name: "mm", Score: 5},
	}
	sortResults(results)

	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
	// Equal scores: shorter first, then lexicographic.
	assert.Equal(t, "aa", results[0].Name)
	assert.Equal(t, "ab", results[1].Name)
	assert.Equal(t, "longer-name", results[2].Name)
}
