// Package filter sanitizes free text (message bodies, channel names) before it enters the store.
package filter

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Filter sanitizes user supplied text. Implementations must be pure and idempotent:
// Sanitize(Sanitize(x)) == Sanitize(x).
type Filter interface {
	Sanitize(text string) string
}

// Func adapts an ordinary function to Filter.
type Func func(string) string

// Sanitize calls f(text).
func (f Func) Sanitize(text string) string { return f(text) }

// Identity leaves text untouched.
var Identity Filter = Func(func(s string) string { return s })

const mask = '*'

// WordFilter masks dictionary words, letter for letter, with asterisks.
// Matching is whole-word and case-insensitive; everything between words is kept as is.
type WordFilter struct {
	words map[string]struct{}
}

// New builds a WordFilter over the built-in dictionary plus extra words.
func New(extra ...string) *WordFilter {
	return NewWithDictionary(append(DefaultWords(), extra...)...)
}

// NewWithDictionary builds a WordFilter over exactly the given words.
func NewWithDictionary(words ...string) *WordFilter {
	f := &WordFilter{
		words: make(map[string]struct{}, len(words)),
	}
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		f.words[f.key(w)] = struct{}{}
	}
	return f
}

// Sanitize implements Filter.
func (f *WordFilter) Sanitize(text string) string {
	if text == "" || len(f.words) == 0 {
		return text
	}

	var (
		b       strings.Builder
		word    []rune
		changed bool
	)
	b.Grow(len(text))

	flush := func() {
		if len(word) == 0 {
			return
		}
		if _, bad := f.words[f.key(string(word))]; bad {
			b.WriteString(strings.Repeat(string(mask), len(word)))
			changed = true
		} else {
			b.WriteString(string(word))
		}
		word = word[:0]
	}

	for _, r := range text {
		if isWordRune(r) {
			word = append(word, r)
			continue
		}
		flush()
		b.WriteRune(r)
	}
	flush()

	if !changed {
		return text
	}
	return b.String()
}

// key normalises a word for lookup. Casers carry state, so one is built per call.
func (f *WordFilter) key(word string) string {
	return cases.Fold().String(norm.NFKC.String(word))
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r)
}

// Check reports whether f would change text.
func Check(f Filter, text string) bool {
	return f.Sanitize(text) != text
}
