package memory

// Merge eligibility thresholds. Short facts need near-exact wording
// agreement via the prefix rule; longer facts tolerate paraphrase as long as
// overall edit-distance overlap stays high.
const (
	minPrefixLen      = 6
	minPrefixShare    = 0.4
	minLenForRatio    = 15
	minSimilarityRate = 0.9
)

// levenshtein computes the single-character insert/delete/substitute
// distance between two rune slices using two rolling rows.
func levenshtein(a, b []rune) int {
	m, n := len(a), len(b)
	if m == 0 {
		return n
	}
	if n == 0 {
		return m
	}

	prev := make([]int, n+1)
	curr := make([]int, n+1)
	for j := 0; j <= n; j++ {
		prev[j] = j
	}

	for i := 1; i <= m; i++ {
		curr[0] = i
		for j := 1; j <= n; j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			rep := prev[j-1] + cost
			best := del
			if ins < best {
				best = ins
			}
			if rep < best {
				best = rep
			}
			curr[j] = best
		}
		prev, curr = curr, prev
	}
	return prev[n]
}

// SimilarityRatio maps edit distance into [0,1]; two empty strings are
// defined as identical.
func SimilarityRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}
	if maxLen == 0 {
		return 1
	}
	return 1 - float64(levenshtein(ra, rb))/float64(maxLen)
}

func commonPrefixLength(a, b []rune) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

// IsSimilar reports whether two strings should be treated as the same
// memory. Inputs are normalized before comparison, so callers may pass raw
// or already-normalized text.
func IsSimilar(aRaw, bRaw string) bool {
	a := Normalize(aRaw)
	b := Normalize(bRaw)

	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}

	ra, rb := []rune(a), []rune(b)
	minLen := len(ra)
	if len(rb) < minLen {
		minLen = len(rb)
	}

	// Cheap prefix rule first: a long shared prefix covering enough of the
	// shorter string wins without paying for the full distance computation.
	prefixLen := commonPrefixLength(ra, rb)
	if prefixLen >= minPrefixLen && float64(prefixLen) >= float64(minLen)*minPrefixShare {
		return true
	}

	// Fall back to edit distance only for strings long enough that a high
	// ratio is meaningful.
	if minLen >= minLenForRatio {
		if SimilarityRatio(a, b) >= minSimilarityRate {
			return true
		}
	}

	return false
}
