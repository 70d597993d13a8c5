package evaluation

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var isoContexts = []string{
	"ISO 27001 defines requirements for establishing an information security management system.",
	"Controls include access management, cryptography and physical security.",
	"ISO 27002 provides guidance on implementing security controls.",
	"GDPR governs data privacy for personal data of EU residents.",
	"Firewall configuration manual for perimeter network devices.",
}

func newEvaluator(t *testing.T) *Evaluator {
	t.Helper()
	e, err := NewEvaluator(DefaultConfig())
	require.NoError(t, err)
	return e
}

func strPtr(s string) *string { return &s }

func TestEvaluateScenarios(t *testing.T) {
	e := newEvaluator(t)

	t.Run("Answer built from three of five contexts", func(t *testing.T) {
		answer := strings.Join(isoContexts[:3], " ")
		rec := e.Evaluate("What does ISO 27001 require?", isoContexts, answer, nil)

		assert.Equal(t, 5, rec.K)
		assert.InDelta(t, 0.60, rec.PrecisionAtK, 1e-9)
		assert.InDelta(t, 0.60, rec.RecallAtK, 1e-9)
		assert.InDelta(t, 1.0, rec.Faithfulness, 1e-9)
		assert.Nil(t, rec.WER)
	})

	t.Run("Seven of eight sentences supported", func(t *testing.T) {
		contexts := []string{
			"Access to production systems requires multi-factor authentication. " +
				"Administrators review privileged accounts quarterly. " +
				"Encryption keys rotate annually.",
			"Backups are tested monthly. Incident reports are filed within 24 hours. " +
				"Vendors sign confidentiality agreements. Laptops use full disk encryption.",
		}
		answer := "Production access requires multi-factor authentication. " +
			"Privileged accounts are reviewed quarterly by administrators. " +
			"Encryption keys rotate annually. " +
			"Backups are tested monthly. " +
			"Incident reports are filed within 24 hours. " +
			"Vendors sign confidentiality agreements. " +
			"Laptops use full disk encryption. " +
			"Quantum bananas orbit Jupiter weekly."

		rec := e.Evaluate("security controls", contexts, answer, nil)
		assert.Equal(t, 8, rec.SentenceCount)
		assert.Equal(t, 7, rec.SupportedSentences)
		assert.InDelta(t, 0.875, rec.Faithfulness, 1e-9)
		assert.InDelta(t, 0.125, rec.HallucinationRate, 1e-9)
	})

	t.Run("Query keywords all present in answer", func(t *testing.T) {
		answer := "The principales controls of ISO 27001 cover access management, asset inventory, " +
			"cryptography, supplier relationships, incident handling and business continuity planning " +
			"for every certified organization."
		rec := e.Evaluate("What are the principales ISO 27001 controls?", isoContexts, answer, nil)
		assert.GreaterOrEqual(t, rec.AnswerRelevancy, 0.9)
		assert.LessOrEqual(t, rec.AnswerRelevancy, 1.0)
	})

	t.Run("Empty contexts", func(t *testing.T) {
		rec := e.Evaluate("anything", nil, "Some answer.", nil)
		assert.Zero(t, rec.K)
		assert.Zero(t, rec.PrecisionAtK)
		assert.Zero(t, rec.RecallAtK)
		assert.Zero(t, rec.Faithfulness)
		assert.InDelta(t, 1.0, rec.HallucinationRate, 1e-9)
	})

	t.Run("Empty answer", func(t *testing.T) {
		rec := e.Evaluate("query", isoContexts, "", strPtr("reference words here"))
		assert.Zero(t, rec.SentenceCount)
		assert.Zero(t, rec.Faithfulness)
		assert.Zero(t, rec.PrecisionAtK)
		require.NotNil(t, rec.WER)
		assert.InDelta(t, 1.0, *rec.WER, 1e-9)
	})

	t.Run("Hallucination complements faithfulness", func(t *testing.T) {
		answers := []string{
			"",
			"Unrelated text!",
			"ISO 27001 defines requirements. Bananas are yellow.",
			strings.Join(isoContexts, " "),
		}
		for _, a := range answers {
			rec := e.Evaluate("q", isoContexts, a, nil)
			assert.InDelta(t, 1.0, rec.Faithfulness+rec.HallucinationRate, 1e-9)
		}
	})
}

func TestFaithfulness(t *testing.T) {
	t.Run("Substring of contexts is fully faithful", func(t *testing.T) {
		answer := "cryptography and physical security"
		score, _, _ := Faithfulness([]string{answer}, isoContexts, 0.6)
		assert.Equal(t, 1.0, score)
	})

	t.Run("Stopword-only sentence falls back to all tokens", func(t *testing.T) {
		score, supported, total := Faithfulness([]string{"It is what it is."}, []string{"zzz"}, 0.6)
		assert.Equal(t, 1, total)
		assert.Zero(t, supported)
		assert.Zero(t, score)
	})

	t.Run("Punctuation-only sentences are ignored", func(t *testing.T) {
		_, _, total := Faithfulness([]string{"...", "!"}, isoContexts, 0.6)
		assert.Zero(t, total)
	})
}

func TestPrecisionAndRecall(t *testing.T) {
	t.Run("Short context uses whole sequence for recall", func(t *testing.T) {
		assert.Equal(t, 1.0, RecallAtK([]string{"ISO 27001"}, "We follow iso 27001 closely", 3))
		assert.Zero(t, RecallAtK([]string{"ISO 27002"}, "We follow iso 27001 closely", 3))
	})

	t.Run("Recall requires contiguous span", func(t *testing.T) {
		assert.Zero(t, RecallAtK([]string{"alpha beta gamma"}, "alpha gamma beta", 3))
		assert.Equal(t, 1.0, RecallAtK([]string{"x alpha beta gamma y"}, "ALPHA, beta; gamma", 3))
	})

	t.Run("Precision threshold is strict", func(t *testing.T) {
		// one of five content tokens shared: overlap exactly 0.20
		ctx := "alpha bravo charlie delta echo"
		answer := "alpha foxtrot golf hotel india"
		assert.Zero(t, PrecisionAtK([]string{ctx}, answer, 0.20))
		assert.Equal(t, 1.0, PrecisionAtK([]string{ctx}, answer, 0.19))
	})

	t.Run("Empty contexts score zero", func(t *testing.T) {
		assert.Zero(t, PrecisionAtK(nil, "answer", 0.2))
		assert.Zero(t, RecallAtK([]string{}, "answer", 3))
	})
}

func TestAnswerRelevancy(t *testing.T) {
	cfg := DefaultConfig()

	t.Run("Short answer gets no length bonus", func(t *testing.T) {
		score := AnswerRelevancy("firewall rules", "Firewall rules apply.", cfg)
		assert.InDelta(t, 0.9, score, 1e-9)
	})

	t.Run("Half the keywords", func(t *testing.T) {
		score := AnswerRelevancy("firewall rules", "A firewall.", cfg)
		assert.InDelta(t, 0.45, score, 1e-9)
	})

	t.Run("Capped at one", func(t *testing.T) {
		boosted := cfg
		boosted.KeywordWeight = 1
		boosted.LengthBonus = 1
		answer := strings.Repeat("firewall ", 25)
		assert.Equal(t, 1.0, AnswerRelevancy("firewall", answer, boosted))
	})

	t.Run("Empty query", func(t *testing.T) {
		assert.Zero(t, AnswerRelevancy("", "Anything at all.", cfg))
	})
}

func TestWordErrorRate(t *testing.T) {
	t.Run("Identical sequences", func(t *testing.T) {
		wer, ok := WordErrorRate("The firewall denies traffic.", "the firewall denies traffic")
		require.True(t, ok)
		assert.Zero(t, wer)
	})

	t.Run("Every word substituted", func(t *testing.T) {
		wer, ok := WordErrorRate("one two three", "alpha beta gamma")
		require.True(t, ok)
		assert.InDelta(t, 1.0, wer, 1e-9)
	})

	t.Run("Insertions exceed one", func(t *testing.T) {
		wer, ok := WordErrorRate("a b c d", "a")
		require.True(t, ok)
		assert.InDelta(t, 3.0, wer, 1e-9)
	})

	t.Run("Empty reference is undefined", func(t *testing.T) {
		_, ok := WordErrorRate("answer", "  ")
		assert.False(t, ok)

		rec := newEvaluator(t).Evaluate("q", nil, "answer", strPtr(""))
		assert.Nil(t, rec.WER)
	})
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	bad := DefaultConfig()
	bad.SupportThreshold = 1.5
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)

	bad = DefaultConfig()
	bad.Segmenter = "nltk"
	_, err := NewEvaluator(bad)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	bad = DefaultConfig()
	bad.LengthBandMax = 10
	assert.Error(t, bad.Validate())
}

func TestEvaluateDataset(t *testing.T) {
	e := newEvaluator(t)
	dataset, err := LoadDatasetFromJSON([]byte(`{"items":[
		{"query":"iso","contexts":["ISO 27001 defines requirements."],"answer":"ISO 27001 defines requirements.","reference":"ISO 27001 defines requirements."},
		{"query":"gdpr","contexts":["GDPR governs data privacy."],"answer":"Bananas are yellow."},
		{"query":"none","contexts":[],"answer":""}
	]}`))
	require.NoError(t, err)
	require.Len(t, dataset.Items, 3)

	report, err := e.EvaluateDataset(context.Background(), dataset, 2)
	require.NoError(t, err)

	assert.Equal(t, 3, report.TotalItems)
	require.Len(t, report.Records, 3)
	assert.Equal(t, 1.0, report.Records[0].Faithfulness)
	assert.Zero(t, report.Records[1].Faithfulness)
	assert.Equal(t, 1, report.WERSamples)
	require.NotNil(t, report.AvgWER)
	assert.Zero(t, *report.AvgWER)
	assert.Equal(t, 2, report.HallucinationHeavy)
	assert.InDelta(t, 1.0/3.0, report.AvgFaithfulness, 1e-9)

	text := GenerateReport(report)
	assert.Contains(t, text, "Total Items: 3")
	assert.Contains(t, text, "Word Error Rate: 0.000")

	t.Run("Cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := e.EvaluateDataset(ctx, dataset, 2)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("Malformed dataset", func(t *testing.T) {
		_, err := LoadDatasetFromJSON([]byte(`{"items":`))
		assert.Error(t, err)
	})
}

func TestProseSegmenter(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Segmenter = SegmenterProse
	e, err := NewEvaluator(cfg)
	require.NoError(t, err)

	rec := e.Evaluate("q", isoContexts, "ISO 27001 defines requirements. Controls include access management.", nil)
	assert.Equal(t, 2, rec.SentenceCount)
	assert.Equal(t, 1.0, rec.Faithfulness)
}
