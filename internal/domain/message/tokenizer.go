package message

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MinTokenLength is the shortest term, in runes, kept by Tokenize.
const MinTokenLength = 2

// Tokenize lowercases text, treats every rune that is not a letter, digit or combining mark as
// a separator, and returns term frequencies for terms of at least MinTokenLength runes.
// The same function is used for indexing and for queries.
func Tokenize(text string) map[string]int {
	freqs := make(map[string]int)
	for _, term := range strings.FieldsFunc(strings.ToLower(text), isSeparator) {
		if utf8.RuneCountInString(term) < MinTokenLength {
			continue
		}
		freqs[term]++
	}
	return freqs
}

// Terms returns the distinct terms of text in lexical order.
func Terms(text string) []string {
	freqs := Tokenize(text)
	terms := make([]string, 0, len(freqs))
	for term := range freqs {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	return terms
}

// Tokens builds the SearchToken rows for a stored message.
func Tokens(messageID uint, text string) []SearchToken {
	freqs := Tokenize(text)
	tokens := make([]SearchToken, 0, len(freqs))
	for _, term := range Terms(text) {
		tokens = append(tokens, SearchToken{MessageID: messageID, Term: term, Frequency: freqs[term]})
	}
	return tokens
}

func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.Is(unicode.Mn, r)
}
