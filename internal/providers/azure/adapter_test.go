package azure

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

func testModel(endpoint string) catalog.Model {
	return catalog.Model{
		ID: "AZURE/gpt-test",
		Provider: catalog.Azure,
		Name: "gpt-test",
		Config: map[string]any{"deployment_name": "my-deployment", "endpoint": endpoint},
	}
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(testModel("http://unused"))
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.Credentials))
}

func TestServiceCallSuccess(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, "secret", r.Header.Get("api-key"))
				require.Contains(t, r.URL.Path, "/openai/deployments/my-deployment/chat/completions")
				require.Equal(t, "2024-05-01", r.URL.Query().Get("api-version"))
				w.WriteHeader(http.StatusOK)
				_ = json.NewEncoder(w).Encode(map[string]any{
						"choices": []map[string]any{{"message": map[string]any{"content": "hi there"}}},
						"usage": map[string]any{"prompt_tokens": 3, "completion_tokens": 2, "total_tokens": 5},
				})
	}))
	defer ts.Close()

	t.Setenv("AZURE_OPENAI_API_KEY", "secret")
	t.Setenv("AZURE_OPEN_AI_API_VERSION", "2024-05-01")
	a, err := New(testModel(ts.URL))
	require.NoError(t, err)

	text, tokens, _, err := a.ServiceCall(context.Background(), llm.NewRequest(conversation.FromPrompt("hi")))
	require.NoError(t, err)
	require.Equal(t, "hi there", text)
	require.Equal(t, 5, tokens.Total)
}
