// Package textutil holds the tokenization shared by lexical retrieval and
// answer evaluation. Everything here is pure and safe for concurrent use.
package textutil

import (
	"strings"
	"unicode"
)

// Tokenize lowercases s and splits it on every rune that is neither a letter
// nor a digit.
func Tokenize(s string) []string {
	if s == "" {
		return nil
	}

	tokens := make([]string, 0, 16)
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		tokens = append(tokens, b.String())
	}
	return tokens
}

// ContentTokens is Tokenize without stopwords.
func ContentTokens(s string) []string {
	tokens := Tokenize(s)
	out := tokens[:0]
	for _, t := range tokens {
		if !IsStopword(t) {
			out = append(out, t)
		}
	}
	return out
}

func TokenSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

// Unique returns tokens without duplicates, first occurrence wins.
func Unique(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// NGrams returns the contiguous n-token windows of tokens joined by a single
// space. Sequences shorter than n yield the whole sequence as one gram.
func NGrams(tokens []string, n int) []string {
	if len(tokens) == 0 || n <= 0 {
		return nil
	}
	if len(tokens) < n {
		return []string{strings.Join(tokens, " ")}
	}
	grams := make([]string, 0, len(tokens)-n+1)
	for i := 0; i+n <= len(tokens); i++ {
		grams = append(grams, strings.Join(tokens[i:i+n], " "))
	}
	return grams
}

// SplitSentences segments text on '.', '!' and '?' when followed by
// whitespace or end of text, and on line breaks. Decimal points and
// dotted identifiers ("v2.3") stay inside their sentence.
func SplitSentences(text string) []string {
	runes := []rune(text)
	sentences := make([]string, 0, 8)
	start := 0

	flush := func(end int) {
		s := strings.TrimSpace(string(runes[start:end]))
		if s != "" {
			sentences = append(sentences, s)
		}
		start = end
	}

	for i, r := range runes {
		switch r {
		case '\n', '\r':
			flush(i + 1)
		case '.', '!', '?':
			if i+1 == len(runes) || unicode.IsSpace(runes[i+1]) {
				flush(i + 1)
			}
		}
	}
	if start < len(runes) {
		flush(len(runes))
	}
	return sentences
}

func WordCount(s string) int {
	return len(strings.Fields(s))
}
