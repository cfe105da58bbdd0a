package scoring

import (
	"strings"
	"unicode"
)

// Tokenize lowercases text and splits it into runs of at least two word characters,
// dropping English stop words.
func Tokenize(text string) []string {
	var (
		tokens []string
		word   strings.Builder
		runes  int
	)

	flush := func() {
		if runes >= 2 {
			token := word.String()
			if !IsStopWord(token) {
				tokens = append(tokens, token)
			}
		}
		word.Reset()
		runes = 0
	}

	for _, r := range strings.ToLower(text) {
		if isWordRune(r) {
			word.WriteRune(r)
			runes++
			continue
		}
		flush()
	}
	flush()

	return tokens
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r)
}
