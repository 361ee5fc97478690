package cleaner

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/David-Botos/column-janitor/pkg/model"
)

func applyCase(s string, ct model.CaseType) string {
	switch ct {
	case model.CaseLower:
		return strings.ToLower(s)
	case model.CaseUpper:
		return strings.ToUpper(s)
	case model.CaseSnake:
		return joinSegments(s, func(_ int, w string) string { return strings.ToLower(w) })
	case model.CaseTitle:
		return joinSegments(s, func(_ int, w string) string { return capitalize(w) })
	case model.CaseSentence:
		return joinSegments(s, func(i int, w string) string {
			if i == 0 {
				return capitalize(w)
			}
			return strings.ToLower(w)
		})
	case model.CaseCamel:
		return joinWords(s, func(i int, w string) string {
			if i == 0 {
				return strings.ToLower(w)
			}
			return capitalize(w)
		})
	case model.CasePascal:
		return joinWords(s, func(_ int, w string) string { return capitalize(w) })
	default:
		return s
	}
}

// joinSegments keeps the underscore structure of s and rewrites the words
// inside each segment, joining them with underscores. fn receives the word's
// index among all non-empty words.
func joinSegments(s string, fn func(i int, w string) string) string {
	segments := strings.Split(s, "_")
	idx := 0
	for si, seg := range segments {
		words := splitWords(seg)
		for wi, w := range words {
			words[wi] = fn(idx, w)
			idx++
		}
		segments[si] = strings.Join(words, "_")
	}
	return strings.Join(segments, "_")
}

// joinWords concatenates all words of s without separators. A word is only
// capitalized when the previous word ends in a lowercase letter; otherwise it
// is lowered and reads back as part of the previous word. This keeps the
// result a fixed point of splitWords ("a b c" gives "aBc", not "aBC").
func joinWords(s string, fn func(i int, w string) string) string {
	var b strings.Builder
	idx := 0
	var last rune
	for _, seg := range strings.Split(s, "_") {
		for _, w := range splitWords(seg) {
			if idx > 0 && !unicode.IsLower(last) {
				w = strings.ToLower(w)
			} else {
				w = fn(idx, w)
			}
			b.WriteString(w)
			if r, size := utf8.DecodeLastRuneInString(w); size > 0 {
				last = r
			}
			idx++
		}
	}
	return b.String()
}

// splitWords splits a segment at lower→Upper transitions and before the last
// capital of an acronym that is followed by a lowercase letter. Digits never
// start a new word.
func splitWords(seg string) []string {
	rs := []rune(seg)
	if len(rs) == 0 {
		return nil
	}
	var words []string
	start := 0
	for i := 1; i < len(rs); i++ {
		prev, cur := rs[i-1], rs[i]
		split := unicode.IsLower(prev) && unicode.IsUpper(cur)
		if !split && unicode.IsUpper(prev) && unicode.IsUpper(cur) && i+1 < len(rs) && unicode.IsLower(rs[i+1]) {
			split = true
		}
		if split {
			words = append(words, string(rs[start:i]))
			start = i
		}
	}
	return append(words, string(rs[start:]))
}

func capitalize(w string) string {
	rs := []rune(strings.ToLower(w))
	if len(rs) == 0 {
		return w
	}
	rs[0] = unicode.ToUpper(rs[0])
	return string(rs)
}
