package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		APIKey:         "test",
		BaseURL:        srv.URL + "/v1",
		Model:          "gpt-4o-mini",
		EmbeddingModel: "text-embedding-3-small",
		MaxTokens:      256,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestGenerateAnswer(t *testing.T) {
	var prompt string
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		prompt = req.Messages[1].Content

		writeJSON(w, http.StatusOK, map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": "ISO 27001 defines an ISMS [1]."},
				"finish_reason": "stop",
			}},
			"usage": map[string]int{"prompt_tokens": 40, "completion_tokens": 9, "total_tokens": 49},
		})
	})

	answer, err := client.GenerateAnswer(context.Background(), "What is ISO 27001?", []string{"ISO 27001 defines an ISMS.", "Annex A lists controls."})
	require.NoError(t, err)
	assert.Equal(t, "ISO 27001 defines an ISMS [1].", answer.Content)
	assert.Equal(t, 49, answer.Usage.TotalTokens)
	assert.Contains(t, prompt, "[1] ISO 27001 defines an ISMS.")
	assert.Contains(t, prompt, "[2] Annex A lists controls.")
}

func TestGenerateBatchEmbeddings(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/embeddings", r.URL.Path)
		writeJSON(w, http.StatusOK, map[string]any{
			"object": "list",
			"model":  "text-embedding-3-small",
			"data": []map[string]any{
				{"object": "embedding", "index": 1, "embedding": []float32{0, 1}},
				{"object": "embedding", "index": 0, "embedding": []float32{1, 0}},
			},
		})
	})

	vectors, err := client.GenerateBatchEmbeddings(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{1, 0}, vectors[0])
	assert.Equal(t, []float32{0, 1}, vectors[1])

	score, err := NewEmbeddingScorer(client).Score(context.Background(), "first", "second")
	require.NoError(t, err)
	assert.InDelta(t, 0.0, score, 1e-9)

	empty, err := client.GenerateBatchEmbeddings(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, empty)
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": map[string]string{"message": "bad request", "type": "invalid_request_error"},
		})
	})

	_, err := client.GenerateEmbedding(context.Background(), "text")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFormatContext(t *testing.T) {
	assert.Equal(t, "[1] a\n\n[2] b", FormatContext([]string{" a ", "b"}))
	assert.Empty(t, FormatContext(nil))
}
