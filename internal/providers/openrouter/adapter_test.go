package openrouter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/llmgate/llmgate/internal/catalog"
	"github.com/llmgate/llmgate/internal/conversation"
	"github.com/llmgate/llmgate/internal/errs"
	"github.com/llmgate/llmgate/internal/llm"
)

func testModel(baseURL string) catalog.Model {
	return catalog.Model{ID: "OPENROUTER/x", Provider: catalog.OpenRouter, Name: "x", Config: map[string]any{"base_url": baseURL}}
}

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := New(testModel("http://unused"))
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.Credentials))
}

func TestServiceCallSendsAttributionHeaders(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, "Bearer rk", r.Header.Get("Authorization"))
				require.Equal(t, "https://example.com", r.Header.Get("HTTP-Referer"))
				require.Equal(t, "my app", r.Header.Get("X-Title"))
				w.WriteHeader(http.StatusOK)
				_ = json.NewEncoder(w).Encode(map[string]any{
						"choices": []map[string]any{{"message": map[string]any{"content": "ok"}}},
						"usage": map[string]any{"prompt_tokens": 1, "completion_tokens": 1, "total_tokens": 2},
				})
	}))
	defer ts.Close()

	t.Setenv("OPENROUTER_API_KEY", "rk")
	t.Setenv("OPENROUTER_SITE_URL", "https://example.com")
	t.Setenv("OPENROUTER_SITE_NAME", "my app")
	a, err := New(testModel(ts.URL))
	require.NoError(t, err)

	text, tokens, _, err := a.ServiceCall(context.Background(), llm.NewRequest(conversation.FromPrompt("hi")))
	require.NoError(t, err)
	require.Equal(t, "ok", text)
	require.Equal(t, 2, tokens.Total)
}
