package evaluation

import (
	"strings"

	"github.com/hybrid-rag/backend/internal/textutil"
)

// PrecisionAtK is the share of contexts whose content-token overlap with the
// answer exceeds threshold. Overlap is |A∩C| / min(|A|,|C|).
func PrecisionAtK(contexts []string, answer string, threshold float64) float64 {
	if len(contexts) == 0 {
		return 0
	}

	answerSet := textutil.TokenSet(textutil.ContentTokens(answer))
	relevant := 0
	for _, ctx := range contexts {
		if symmetricOverlap(answerSet, textutil.TokenSet(textutil.ContentTokens(ctx))) > threshold {
			relevant++
		}
	}
	return float64(relevant) / float64(len(contexts))
}

func symmetricOverlap(a, b map[string]struct{}) float64 {
	smaller, larger := a, b
	if len(b) < len(a) {
		smaller, larger = b, a
	}
	if len(smaller) == 0 {
		return 0
	}

	shared := 0
	for t := range smaller {
		if _, ok := larger[t]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(smaller))
}

// RecallAtK is the share of contexts with at least one n-token span that
// occurs contiguously in the answer. Contexts shorter than n use their
// whole token sequence as the span.
func RecallAtK(contexts []string, answer string, n int) float64 {
	if len(contexts) == 0 {
		return 0
	}

	haystack := " " + strings.Join(textutil.Tokenize(answer), " ") + " "
	covered := 0
	for _, ctx := range contexts {
		for _, gram := range textutil.NGrams(textutil.Tokenize(ctx), n) {
			if strings.Contains(haystack, " "+gram+" ") {
				covered++
				break
			}
		}
	}
	return float64(covered) / float64(len(contexts))
}

// Faithfulness returns the supported share of the answer's sentences along
// with the sentence counts. Sentences without any token are not counted.
func Faithfulness(sentences, contexts []string, threshold float64) (score float64, supported, total int) {
	joined := strings.Join(contexts, "\n")
	contextText := strings.ToLower(joined)
	contextSet := textutil.TokenSet(textutil.Tokenize(joined))

	for _, sentence := range sentences {
		tokens := textutil.Tokenize(sentence)
		if len(tokens) == 0 {
			continue
		}
		total++

		if strings.Contains(contextText, strings.ToLower(strings.TrimSpace(sentence))) {
			supported++
			continue
		}

		keywords := textutil.Unique(textutil.ContentTokens(sentence))
		if len(keywords) == 0 {
			keywords = textutil.Unique(tokens)
		}
		found := 0
		for _, k := range keywords {
			if _, ok := contextSet[k]; ok {
				found++
			}
		}
		if float64(found)/float64(len(keywords)) > threshold {
			supported++
		}
	}

	if total == 0 {
		return 0, 0, 0
	}
	return float64(supported) / float64(total), supported, total
}

// AnswerRelevancy weighs the share of query keywords found in the answer and
// adds a bonus when the answer length is plausible. The result never exceeds 1.
func AnswerRelevancy(query, answer string, cfg Config) float64 {
	keywords := textutil.Unique(textutil.ContentTokens(query))
	if len(keywords) == 0 {
		keywords = textutil.Unique(textutil.Tokenize(query))
	}

	answerSet := textutil.TokenSet(textutil.Tokenize(answer))
	fraction := 0.0
	if len(keywords) > 0 {
		found := 0
		for _, k := range keywords {
			if _, ok := answerSet[k]; ok {
				found++
			}
		}
		fraction = float64(found) / float64(len(keywords))
	}

	score := fraction * cfg.KeywordWeight
	if words := textutil.WordCount(answer); words >= cfg.LengthBandMin && words <= cfg.LengthBandMax {
		score += cfg.LengthBonus
	}
	if score > 1 {
		return 1
	}
	return score
}

// WordErrorRate is the word-level edit distance between answer and reference
// divided by the reference length. ok is false when the reference has no words.
func WordErrorRate(answer, reference string) (wer float64, ok bool) {
	ref := textutil.Tokenize(reference)
	if len(ref) == 0 {
		return 0, false
	}
	hyp := textutil.Tokenize(answer)
	return float64(levenshtein(hyp, ref)) / float64(len(ref)), true
}

func levenshtein(a, b []string) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
