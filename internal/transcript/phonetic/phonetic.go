// Package phonetic finds the known name a speech-to-text engine most likely
// meant when it produced a misheard one ("Jon Smth" for "Jon Smith",
// "Fenix" for "Phoenix").
//
// Candidates are filtered by Double Metaphone code overlap and ranked by
// Jaro-Winkler similarity. When no candidate shares a phonetic code, a
// stricter pure Jaro-Winkler pass is tried instead.
package phonetic

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// Option configures a [Matcher].
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score a phonetically
// overlapping name needs to be accepted. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(m *Matcher) { m.phoneticThreshold = threshold }
}

// WithFuzzyThreshold sets the minimum score for the pure string-similarity
// fallback. Default: 0.85.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) { m.fuzzyThreshold = threshold }
}

// Matcher ranks known names against a heard string. It holds no mutable
// state and is safe for concurrent use.
type Matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// New returns a Matcher with the default thresholds unless overridden.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Result is the outcome of a successful [Matcher.Match].
type Result struct {
	// Name is the matched candidate exactly as it was passed in.
	Name string
	// Score is the Jaro-Winkler similarity in [0,1].
	Score float64
	// Phonetic reports whether the candidate shared a Double Metaphone code
	// with the heard string, as opposed to winning on spelling alone.
	Phonetic bool
}

// Match returns the candidate that best explains heard. Multi-word inputs
// and candidates are compared token by token as well as whole.
func (m *Matcher) Match(heard string, candidates []string) (Result, bool) {
	heardLower := strings.ToLower(strings.TrimSpace(heard))
	if heardLower == "" || len(candidates) == 0 {
		return Result{}, false
	}
	heardTokens := strings.Fields(heardLower)
	heardCodes := codes(heardTokens)

	var best Result
	for _, c := range candidates {
		cLower := strings.ToLower(strings.TrimSpace(c))
		if cLower == "" {
			continue
		}
		cTokens := strings.Fields(cLower)
		score := similarity(heardTokens, cTokens, heardLower, cLower)

		if overlaps(heardCodes, codes(cTokens)) {
			if score >= m.phoneticThreshold && (!best.Phonetic || score > best.Score) {
				best = Result{Name: c, Score: score, Phonetic: true}
			}
			continue
		}
		// A phonetic hit always outranks a spelling-only one.
		if !best.Phonetic && score >= m.fuzzyThreshold && score > best.Score {
			best = Result{Name: c, Score: score}
		}
	}
	return best, best.Name != ""
}

func codes(tokens []string) map[string]struct{} {
	out := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			out[p] = struct{}{}
		}
		if s != "" {
			out[s] = struct{}{}
		}
	}
	return out
}

func overlaps(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// similarity is the best of: whole strings, strings with spaces removed, and
// the best single token pair.
func similarity(aTokens, bTokens []string, a, b string) float64 {
	score := matchr.JaroWinkler(a, b, false)
	if len(aTokens) > 1 || len(bTokens) > 1 {
		if s := matchr.JaroWinkler(strings.Join(aTokens, ""), strings.Join(bTokens, ""), false); s > score {
			score = s
		}
	}
	for _, at := range aTokens {
		for _, bt := range bTokens {
			if s := matchr.JaroWinkler(at, bt, false); s > score {
				score = s
			}
		}
	}
	return score
}
