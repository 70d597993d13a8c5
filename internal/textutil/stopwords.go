package textutil

// English and Spanish function words; the corpus mixes both.
var stopwords = map[string]struct{}{}

func init() {
	for _, w := range []string{
		"a", "about", "above", "after", "again", "all", "also", "am", "an", "and", "any", "are", "as",
		"at", "be", "because", "been", "before", "being", "below", "between", "both", "but", "by",
		"can", "could", "did", "do", "does", "doing", "down", "during", "each", "few", "for", "from",
		"further", "had", "has", "have", "having", "he", "her", "here", "hers", "him", "his", "how",
		"i", "if", "in", "into", "is", "it", "its", "itself", "just", "me", "more", "most", "my",
		"no", "nor", "not", "now", "of", "off", "on", "once", "only", "or", "other", "our", "ours",
		"out", "over", "own", "same", "she", "should", "so", "some", "such", "than", "that", "the",
		"their", "theirs", "them", "then", "there", "these", "they", "this", "those", "through", "to",
		"too", "under", "until", "up", "very", "was", "we", "were", "what", "when", "where", "which",
		"while", "who", "whom", "why", "will", "with", "would", "you", "your", "yours",

		"al", "como", "con", "cual", "cuales", "de", "del", "el", "en", "entre", "es", "esta",
		"este", "esto", "la", "las", "lo", "los", "mas", "más", "o", "para", "pero", "por", "que",
		"qué", "se", "sin", "sobre", "son", "su", "sus", "un", "una", "uno", "unos", "unas", "y", "ya",
	} {
		stopwords[w] = struct{}{}
	}
}

// IsStopword expects a lowercased token.
func IsStopword(token string) bool {
	_, ok := stopwords[token]
	return ok
}
