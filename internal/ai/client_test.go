package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompleteSendsRequestAndParsesAnswer(t *testing.T) {
	var gotAuth string
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/chat/completions", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"hello there"}}]}`))
	}))
	defer srv.Close()

	client := NewOpenAICompatibleClient()
	cfg := ChatConfig{BaseURL: srv.URL, APIKey: "key-123", Model: "test-chat"}
	answer, err := client.Complete(context.Background(), cfg, []ChatMessage{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "hi"},
	})
	require.NoError(t, err)

	assert.Equal(t, "hello there", answer)
	assert.Equal(t, "Bearer key-123", gotAuth)
	assert.Equal(t, "test-chat", gotBody["model"])
	assert.Equal(t, false, gotBody["stream"])
	msgs := gotBody["messages"].([]interface{})
	require.Len(t, msgs, 2)
}

func TestCompleteProviderErrorPreservesMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusMisdirectedRequest)
		w.Write([]byte(`{"error":{"message":"model not found"}}`))
	}))
	defer srv.Close()

	client := NewOpenAICompatibleClient()
	_, err := client.Complete(context.Background(), ChatConfig{BaseURL: srv.URL}, []ChatMessage{{Role: "user", Content: "hi"}})

	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, "generation", upstream.Provider)
	assert.Equal(t, http.StatusMisdirectedRequest, upstream.Status)
	assert.Contains(t, upstream.Message, "model not found")
	assert.False(t, upstream.Transient())
}

func TestCompleteEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	client := NewOpenAICompatibleClient()
	_, err := client.Complete(context.Background(), ChatConfig{BaseURL: srv.URL}, []ChatMessage{{Role: "user", Content: "hi"}})

	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Contains(t, upstream.Message, "empty choices")
}

func TestEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/embeddings", r.URL.Path)
		w.Write([]byte(`{"data":[{"embedding":[0.1,0.2,0.3]}]}`))
	}))
	defer srv.Close()

	client := NewOpenAICompatibleClient()
	cfg := EmbeddingConfig{BaseURL: srv.URL, Model: "test-embed"}

	t.Run("returns the vector", func(t *testing.T) {
		vec, err := client.Embed(context.Background(), cfg, "some text")
		require.NoError(t, err)
		assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	})

	t.Run("rejects blank input before calling out", func(t *testing.T) {
		_, err := client.Embed(context.Background(), cfg, "   ")
		assert.Error(t, err)
	})
}

func TestEmbedEmptyVector(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"embedding":[]}]}`))
	}))
	defer srv.Close()

	client := NewOpenAICompatibleClient()
	_, err := client.Embed(context.Background(), EmbeddingConfig{BaseURL: srv.URL}, "text")

	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, "embedding", upstream.Provider)
	assert.Contains(t, upstream.Message, "empty embedding")
}

func TestEmbedBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, []string{"first", "second"}, body.Input)
		w.Write([]byte(`{"data":[{"embedding":[1,0]},{"embedding":[0,1]}]}`))
	}))
	defer srv.Close()

	client := NewOpenAICompatibleClient()
	cfg := EmbeddingConfig{BaseURL: srv.URL}

	t.Run("preserves input order", func(t *testing.T) {
		vecs, err := client.EmbedBatch(context.Background(), cfg, []string{"first", " second "})
		require.NoError(t, err)
		require.Len(t, vecs, 2)
		assert.Equal(t, []float32{1, 0}, vecs[0])
		assert.Equal(t, []float32{0, 1}, vecs[1])
	})

	t.Run("empty slice is a no-op", func(t *testing.T) {
		vecs, err := client.EmbedBatch(context.Background(), cfg, nil)
		require.NoError(t, err)
		assert.Nil(t, vecs)
	})

	t.Run("all-blank texts rejected", func(t *testing.T) {
		_, err := client.EmbedBatch(context.Background(), cfg, []string{"", "  "})
		assert.Error(t, err)
	})
}

func TestCallTimeoutClassifiedTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	client := NewOpenAICompatibleClient()
	cfg := ChatConfig{BaseURL: srv.URL, Timeout: 20 * time.Millisecond}
	_, err := client.Complete(context.Background(), cfg, []ChatMessage{{Role: "user", Content: "hi"}})

	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.True(t, upstream.Timeout)
	assert.True(t, upstream.Transient())
}

func TestConnectionFailureClassifiedTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listens anymore

	client := NewOpenAICompatibleClient()
	_, err := client.Complete(context.Background(), ChatConfig{BaseURL: srv.URL}, []ChatMessage{{Role: "user", Content: "hi"}})

	var upstream *UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.True(t, upstream.Transient())
}

func TestCallerCancellationPassesThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Second)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	client := NewOpenAICompatibleClient()
	_, err := client.Complete(ctx, ChatConfig{BaseURL: srv.URL}, []ChatMessage{{Role: "user", Content: "hi"}})

	assert.ErrorIs(t, err, context.Canceled)
	var upstream *UpstreamError
	assert.False(t, errors.As(err, &upstream), "cancellation must not look like a provider failure")
}
