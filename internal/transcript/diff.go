package transcript

import (
	"strings"

	"github.com/MrWong99/scribe/internal/enhance/tools"
)

// Change is one contiguous region that differs between two texts.
type Change struct {
	Before string `json:"before"`
	After  string `json:"after"`
}

// Diff is the token-level difference between an original transcript and its
// enhanced version.
type Diff struct {
	Changes []Change `json:"changes,omitempty"`

	// OriginalTokens and KeptTokens count whitespace-separated tokens of the
	// original text, and how many of them survive unchanged.
	OriginalTokens int `json:"originalTokens"`
	KeptTokens     int `json:"keptTokens"`
}

// Retention is the share of original tokens kept unchanged, in [0, 1].
// An empty original has retention 1.
func (d Diff) Retention() float64 {
	if d.OriginalTokens == 0 {
		return 1
	}
	return float64(d.KeptTokens) / float64(d.OriginalTokens)
}

// Unexplained returns the changes that no correction accounts for. A change
// is explained when its before and after text match a heard and resolved
// pair, ignoring case and trailing punctuation.
func (d Diff) Unexplained(corrections []tools.Correction) []Change {
	known := make(map[[2]string]bool, len(corrections))
	for _, c := range corrections {
		known[[2]string{normalizeForLookup(c.Heard), normalizeForLookup(c.Resolved)}] = true
	}
	var out []Change
	for _, c := range d.Changes {
		if !known[[2]string{normalizeForLookup(c.Before), normalizeForLookup(c.After)}] {
			out = append(out, c)
		}
	}
	return out
}

// Compare computes the token-level diff of original and enhanced.
func Compare(original, enhanced string) Diff {
	orig := strings.Fields(original)
	enh := strings.Fields(enhanced)
	d := Diff{OriginalTokens: len(orig)}
	if original == enhanced {
		d.KeptTokens = len(orig)
		return d
	}

	anchors := tokenLCS(orig, enh)
	d.KeptTokens = len(anchors)
	for _, s := range extractChangeSpans(orig, enh, anchors) {
		d.Changes = append(d.Changes, Change{
			Before: strings.Join(s.origTokens, " "),
			After:  strings.Join(s.corrTokens, " "),
		})
	}
	return d
}

// indexPair maps a token index in the original sequence to the corresponding
// index in the enhanced sequence.
type indexPair struct {
	origIdx int
	corrIdx int
}

type changeSpan struct {
	origTokens []string
	corrTokens []string
}

// tokenLCS computes the longest common subsequence of two token slices and
// returns anchor pairs (indices into a and b) representing common tokens in
// order. Standard O(m×n) DP.
func tokenLCS(a, b []string) []indexPair {
	m, n := len(a), len(b)
	if m == 0 || n == 0 {
		return nil
	}

	dp := make([][]int, m+1)
	for i := range dp {
		dp[i] = make([]int, n+1)
	}
	for i := 1; i <= m; i++ {
		for j := 1; j <= n; j++ {
			switch {
			case a[i-1] == b[j-1]:
				dp[i][j] = dp[i-1][j-1] + 1
			case dp[i-1][j] >= dp[i][j-1]:
				dp[i][j] = dp[i-1][j]
			default:
				dp[i][j] = dp[i][j-1]
			}
		}
	}

	lcsLen := dp[m][n]
	if lcsLen == 0 {
		return nil
	}

	anchors := make([]indexPair, lcsLen)
	i, j, k := m, n, lcsLen-1
	for i > 0 && j > 0 {
		switch {
		case a[i-1] == b[j-1]:
			anchors[k] = indexPair{origIdx: i - 1, corrIdx: j - 1}
			i--
			j--
			k--
		case dp[i-1][j] >= dp[i][j-1]:
			i--
		default:
			j--
		}
	}
	return anchors
}

// extractChangeSpans collects the gaps between anchored (unchanged) tokens.
func extractChangeSpans(orig, corr []string, anchors []indexPair) []changeSpan {
	var spans []changeSpan
	oi, ci := 0, 0
	for _, a := range anchors {
		if oi < a.origIdx || ci < a.corrIdx {
			spans = append(spans, changeSpan{
				origTokens: orig[oi:a.origIdx],
				corrTokens: corr[ci:a.corrIdx],
			})
		}
		oi = a.origIdx + 1
		ci = a.corrIdx + 1
	}
	if oi < len(orig) || ci < len(corr) {
		spans = append(spans, changeSpan{
			origTokens: orig[oi:],
			corrTokens: corr[ci:],
		})
	}
	return spans
}

// normalizeForLookup lowercases s and strips common trailing punctuation so
// that a span like "Smith." matches a correction declared as "Smith".
func normalizeForLookup(s string) string {
	return strings.ToLower(strings.TrimRight(s, ".,;:!?\"')"))
}
