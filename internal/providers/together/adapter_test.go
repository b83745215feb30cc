package together

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
	return catalog.Model{ID: "TOGETHER/x", Provider: catalog.Together, Name: "x", Config: map[string]any{"base_url": baseURL}}
}

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := New(testModel("http://unused"))
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.Credentials))
}

func TestServiceCallSuccess(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, "Bearer tk", r.Header.Get("Authorization"))
				w.WriteHeader(http.StatusOK)
				_ = json.NewEncoder(w).Encode(map[string]any{
						"choices": []map[string]any{{"message": map[string]any{"content": "ok"}}},
						"usage": map[string]any{"prompt_tokens": 1, "completion_tokens": 1, "total_tokens": 2},
				})
	}))
	defer ts.Close()

	t.Setenv("TOGETHER_API_KEY", "tk")
	a, err := New(testModel(ts.URL))
	require.NoError(t, err)

	text, tokens, _, err := a.ServiceCall(context.Background(), llm.NewRequest(conversation.FromPrompt("hi")))
	require.NoError(t, err)
	require.Equal(t, "ok", text)
	require.Equal(t, 2, tokens.Total)
}

func TestServiceCallMapsModelNotFound(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`{"error":"no such model"}`))
	}))
	defer ts.Close()

	t.Setenv("TOGETHER_API_KEY", "tk")
	a, err := New(testModel(ts.URL))
	require.NoError(t, err)

	_, _, _, err = a.ServiceCall(context.Background(), llm.NewRequest(conversation.FromPrompt("hi")))
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.ModelNotFound))
}
