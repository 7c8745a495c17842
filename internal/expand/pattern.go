package expand

import "strings"

// Words splits a value on whitespace into make-style words.
func Words(s string) []string {
	return strings.Fields(s)
}

// Match tests word against a %-pattern. The returned stem is the text the %
// consumed. A pattern without % matches only the exact word, with an empty
// stem.
func Match(pattern, word string) (stem string, ok bool) {
	i := strings.IndexByte(pattern, '%')
	if i < 0 {
		return "", pattern == word
	}
	pre, suf := pattern[:i], pattern[i+1:]
	if len(word) >= len(pre)+len(suf) && strings.HasPrefix(word, pre) && strings.HasSuffix(word, suf) {
		return word[len(pre) : len(word)-len(suf)], true
	}
	return "", false
}

// SubstOne rewrites word through pattern=replacement, substituting the stem
// for the first % of the replacement. Words that do not match pass through
// unchanged.
func SubstOne(pattern, replacement, word string) string {
	stem, ok := Match(pattern, word)
	if !ok {
		return word
	}
	if i := strings.IndexByte(replacement, '%'); i >= 0 {
		return replacement[:i] + stem + replacement[i+1:]
	}
	return replacement
}

// PatSubst applies SubstOne across a word list; the core of patsubst and of
// substitution references.
func PatSubst(pattern, replacement string, words []string) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = SubstOne(pattern, replacement, w)
	}
	return out
}
