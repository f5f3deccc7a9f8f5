package groq

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docqa-cli/internal/core/domain"
	"github.com/custodia-labs/docqa-cli/internal/core/ports/driven"
)

func TestNewLLMService(t *testing.T) {
	t.Run("requires api key", func(t *testing.T) {
		_, err := NewLLMService(Config{})
		assert.Error(t, err)
	})

	t.Run("defaults", func(t *testing.T) {
		s, err := NewLLMService(Config{APIKey: "k"})
		require.NoError(t, err)
		assert.Equal(t, DefaultModel, s.ModelName())
	})
}

func TestGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer k", r.Header.Get("Authorization"))

		var req chatCompletionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 1024, req.MaxTokens)
		assert.InDelta(t, 0.1, req.Temperature, 1e-9)
		assert.InDelta(t, 0.9, req.TopP, 1e-9)

		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "  The answer.  "}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	s, err := NewLLMService(Config{APIKey: "k", BaseURL: server.URL})
	require.NoError(t, err)

	answer, err := s.Generate(context.Background(), "prompt", driven.GenerateOptions{
		MaxTokens:   1024,
		Temperature: 0.1,
		TopP:        0.9,
	})
	require.NoError(t, err)
	assert.Equal(t, "The answer.", answer)
}

func TestGenerate_ServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"message":"model loading"}}`, http.StatusServiceUnavailable)
	}))
	defer server.Close()

	s, err := NewLLMService(Config{APIKey: "k", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = s.Generate(context.Background(), "prompt", driven.GenerateOptions{})
	assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
}

func TestGenerate_NoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer server.Close()

	s, err := NewLLMService(Config{APIKey: "k", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = s.Generate(context.Background(), "prompt", driven.GenerateOptions{})
	assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
}
