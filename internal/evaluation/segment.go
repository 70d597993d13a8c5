package evaluation

import (
	"github.com/jdkato/prose/v2"
	"go.uber.org/zap"

	"github.com/hybrid-rag/backend/internal/textutil"
	"github.com/hybrid-rag/backend/pkg/logger"
)

// Segmenter splits an answer into sentences.
type Segmenter func(text string) []string

func segmenterFor(name string) Segmenter {
	if name == SegmenterProse {
		return proseSentences
	}
	return textutil.SplitSentences
}

// proseSentences uses the prose punkt model, which handles abbreviations
// the terminator rule splits on. It falls back to the rule on error.
func proseSentences(text string) []string {
	doc, err := prose.NewDocument(text,
		prose.WithTokenization(false),
		prose.WithTagging(false),
		prose.WithExtraction(false),
	)
	if err != nil {
		logger.Warn("Sentence segmentation failed, using terminator rule", zap.Error(err))
		return textutil.SplitSentences(text)
	}

	sentences := doc.Sentences()
	out := make([]string, 0, len(sentences))
	for _, s := range sentences {
		out = append(out, s.Text)
	}
	return out
}
