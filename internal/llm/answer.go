package llm

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hybrid-rag/backend/pkg/logger"
)

const answerSystemPrompt = `You are a compliance and security documentation assistant.

Your answers must:
1. Use ONLY the numbered context passages provided
2. Cite passages using [n] notation
3. Say plainly when the context does not contain the answer
4. Answer in the language of the question

Be concise and precise.`

type Answer struct {
	Content string
	Usage   Usage
}

// FormatContext numbers the passages so the model can cite them as [n].
func FormatContext(contexts []string) string {
	var b strings.Builder
	for i, c := range contexts {
		fmt.Fprintf(&b, "[%d] %s\n\n", i+1, strings.TrimSpace(c))
	}
	return strings.TrimSpace(b.String())
}

func (c *Client) GenerateAnswer(ctx context.Context, query string, contexts []string) (*Answer, error) {
	userPrompt := fmt.Sprintf(`Question: %s

Context:
%s

Answer the question from the context above and cite the passages you used.`, query, FormatContext(contexts))

	resp, err := c.Complete(ctx, CompletionRequest{
		SystemPrompt: answerSystemPrompt,
		UserPrompt:   userPrompt,
		Temperature:  0.2,
		MaxTokens:    c.maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	logger.Info("Answer generated",
		zap.Int("contexts", len(contexts)),
		zap.Int("answer_length", len(resp.Content)),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
	)

	return &Answer{Content: resp.Content, Usage: resp.Usage}, nil
}
