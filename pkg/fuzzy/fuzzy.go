// Package fuzzy ranks short records such as client names against a typed
// query, tolerating typos and accents.
package fuzzy

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// LevenshteinDistance counts the single-rune edits needed to turn s1 into s2.
// Both inputs are normalized first.
func LevenshteinDistance(s1, s2 string) int {
	return distance([]rune(Normalize(s1)), []rune(Normalize(s2)))
}

func distance(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

// Threshold is the edit distance tolerated for a query of this length.
func Threshold(query string) int {
	n := len([]rune(Normalize(query)))
	switch {
	case n <= 3:
		return 1
	case n >= 8:
		return 3
	default:
		return 2
	}
}

// Match reports whether query is a substring of text, a prefix of one of its
// words, or within threshold edits of one of its words.
func Match(query, text string, threshold int) bool {
	q := Normalize(query)
	t := Normalize(text)
	if q == "" {
		return true
	}
	if t == "" {
		return false
	}
	if strings.Contains(t, q) {
		return true
	}
	qr := []rune(q)
	for _, word := range strings.Fields(t) {
		if strings.HasPrefix(word, q) || distance(qr, []rune(word)) <= threshold {
			return true
		}
	}
	return false
}

// ClientScore scores a client record against query; zero means no match.
// The display name weighs most, then the company, then the email.
func ClientScore(query, displayName, companyName, email string) float64 {
	q := Normalize(query)
	if q == "" {
		return 0
	}
	threshold := Threshold(q)

	score := fieldScore(q, Normalize(displayName), threshold, 100, 50)
	score += fieldScore(q, Normalize(companyName), threshold, 70, 35)

	e := Normalize(email)
	if e != "" {
		if strings.Contains(e, q) {
			score += 60
		} else if local, _, ok := strings.Cut(e, "@"); ok && distance([]rune(q), []rune(local)) <= threshold {
			score += 20
		}
	}
	return score
}

func fieldScore(q, text string, threshold int, exact, fuzzy float64) float64 {
	if text == "" {
		return 0
	}
	if strings.Contains(text, q) {
		s := exact
		if containsWord(text, q) {
			s += exact / 2
		}
		return s
	}

	best := 0.0
	qr := []rune(q)
	for _, word := range strings.Fields(text) {
		var s float64
		if strings.HasPrefix(word, q) {
			s = fuzzy
		}
		if d := distance(qr, []rune(word)); d <= threshold {
			s = max(s, fuzzy-float64(d)*fuzzy/4)
		}
		best = max(best, s)
	}
	return best
}

func containsWord(text, word string) bool {
	for _, w := range strings.Fields(text) {
		if w == word {
			return true
		}
	}
	return false
}

var foldAccents = runes.Remove(runes.In(unicode.Mn))

// Normalize lowercases s, strips diacritics and collapses whitespace, so
// "Café  Ångström" becomes "cafe angstrom".
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, foldAccents, norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = strings.Map(func(r rune) rune {
		if r == 'đ' || r == 'Đ' {
			return 'd'
		}
		return r
	}, folded)
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}
