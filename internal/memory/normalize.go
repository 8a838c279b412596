package memory

import "strings"

// trailing sentence terminators in both halfwidth and fullwidth scripts
const sentenceTerminators = "。．.!?！？"

// Normalize canonicalizes free text for comparison: surrounding whitespace
// is trimmed, internal whitespace runs collapse to a single space, and any
// run of trailing sentence-terminating punctuation is stripped. Idempotent.
func Normalize(raw string) string {
	s := strings.Join(strings.Fields(raw), " ")
	// Stripping a terminator can expose whitespace hiding another
	// terminator ("a . ."), so strip to a fixpoint.
	for {
		t := strings.TrimSpace(strings.TrimRight(s, sentenceTerminators))
		if t == s {
			return s
		}
		s = t
	}
}
