package cluster

import (
	"fmt"
	"strings"
)

// InferredTemplate is the result of template inference over one eligible
// cluster.
type InferredTemplate struct {
	Template         string
	PlaceholderCount int
}

// Infer aligns the first-message strings of an eligible cluster via
// longest-common-subsequence of whitespace tokens (spec.md §4.C step 3).
// Runs of tokens that differ across members collapse into a single
// `{{var_k}}` placeholder, numbered in encounter order; literal tokens are
// preserved with their original separating whitespace collapsed to a
// single space (the Template Matcher only needs literals to appear in
// order, not exact spacing).
//
// hasSystemPrompt must be true for every member of the group — inference
// is skipped entirely on a group with no system prompt (§4.C edge case).
func Infer(hasSystemPrompt bool, firstMessages []string) (InferredTemplate, bool) {
	if !hasSystemPrompt || len(firstMessages) == 0 {
		return InferredTemplate{}, false
	}

	tokenized := make([][]string, len(firstMessages))
	for i, m := range firstMessages {
		tokenized[i] = strings.Fields(m)
	}

	common := tokenized[0]
	for i := 1; i < len(tokenized); i++ {
		common = lcsTokens(common, tokenized[i])
	}

	anchors := alignSubsequence(tokenized[0], common)

	var parts []string
	placeholderCount := 0
	prevEnd := 0
	for k, pos := range anchors {
		if pos > prevEnd {
			parts = append(parts, fmt.Sprintf("{{var_%d}}", placeholderCount))
			placeholderCount++
		}
		parts = append(parts, common[k])
		prevEnd = pos + 1
	}
	if prevEnd < len(tokenized[0]) {
		parts = append(parts, fmt.Sprintf("{{var_%d}}", placeholderCount))
		placeholderCount++
	}

	return InferredTemplate{
		Template:         strings.Join(parts, " "),
		PlaceholderCount: placeholderCount,
	}, true
}

// lcsTokens returns the longest common subsequence of two token slices via
// standard O(n*m) dynamic programming.
func lcsTokens(a, b []string) []string {
	n, m := len(a), len(b)
	if n == 0 || m == 0 {
		return nil
	}
	dp := make([][]int, n+1)
	for i := range dp {
		dp[i] = make([]int, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if a[i] == b[j] {
				dp[i][j] = dp[i+1][j+1] + 1
			} else if dp[i+1][j] >= dp[i][j+1] {
				dp[i][j] = dp[i+1][j]
			} else {
				dp[i][j] = dp[i][j+1]
			}
		}
	}
	var out []string
	i, j := 0, 0
	for i < n && j < m {
		switch {
		case a[i] == b[j]:
			out = append(out, a[i])
			i++
			j++
		case dp[i+1][j] >= dp[i][j+1]:
			i++
		default:
			j++
		}
	}
	return out
}

// alignSubsequence locates each token of sub, in order, within a, assuming
// sub is a genuine subsequence of a. Returns the matched index in a for
// each element of sub.
func alignSubsequence(a, sub []string) []int {
	idx := make([]int, len(sub))
	ai := 0
	for si, tok := range sub {
		for ai < len(a) && a[ai] != tok {
			ai++
		}
		idx[si] = ai
		ai++
	}
	return idx
}
