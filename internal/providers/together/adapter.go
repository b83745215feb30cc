// Package together implements the TOGETHER provider adapter: an OpenAI-wire-compatible inference host needing only a bearer API
// key.
package together

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/llmgate/llmgate/internal/catalog"
	"github.com/llmgate/llmgate/internal/errs"
	"github.com/llmgate/llmgate/internal/llm"
	"github.com/llmgate/llmgate/internal/providers"
)

func init() {
	providers.Register(catalog.Together, New)
}

const defaultBaseURL = "https://api.together.xyz"

// Adapter talks to Together AI's OpenAI-compatible chat-completions API.
type Adapter struct {
	model catalog.Model
	apiKey string
	baseURL string
	client *http.Client
}

// New constructs a Together adapter; TOGETHER_API_KEY is required.
func New(model catalog.Model) (providers.Adapter, error) {
	apiKey, err := providers.RequireEnv(os.Getenv, "TOGETHER_API_KEY")
	if err != nil {
		return nil, err
	}
	baseURL := defaultBaseURL
	if v, ok := model.Config["base_url"].(string); ok && v != "" {
		baseURL = v
	}
	return &Adapter{model: model, apiKey: apiKey, baseURL: baseURL, client: &http.Client{Timeout: 120 * time.Second}}, nil
}

func (a *Adapter) Start(ctx context.Context) error { return nil }
func (a *Adapter) Stop(ctx context.Context) error { return nil }

type chatRequest struct {
	Model       string                    `json:"model"`
	Messages    []providers.OpenAIMessage `json:"messages"`
	Temperature *float64                  `json:"temperature,omitempty"`
	TopP        *float64                  `json:"top_p,omitempty"`
	MaxTokens   *int                      `json:"max_completion_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func (a *Adapter) ServiceCall(ctx context.Context, req *llm.Request) (string, llm.ModelTokens, bool, error) {
	if err := providers.CheckCapabilities(a.model, req.Conversation); err != nil {
		return "", llm.ModelTokens{}, false, err
	}

	payload := chatRequest{
		Model:    providers.DeduceInternalModelID(a.model),
		Messages: providers.BuildOpenAICompatibleMessages(req.Conversation),
	}
	if temp, ok := providers.FormatTemperature(a.model, req.Temperature); ok {
		payload.Temperature = &temp
	}
	payload.TopP = req.TopP
	payload.MaxTokens = req.MaxCompletionTokens

	headers := map[string]string{"Authorization": "Bearer " + a.apiKey}
	body, err := providers.DoRequest(ctx, a.client, a.baseURL+"/v1/chat/completions", payload, headers)
	if err != nil {
		var se *providers.StatusError
		if errors.As(err, &se) {
			return "", llm.ModelTokens{}, false, providers.ClassifyStatus(se)
		}
		return "", llm.ModelTokens{}, false, errs.Wrap(errs.ServiceCall, err, "together request failed")
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", llm.ModelTokens{}, false, errs.Wrap(errs.ServiceCall, err, "together: failed to decode response")
	}
	if len(parsed.Choices) == 0 {
		return "", llm.ModelTokens{}, false, providers.FormatMissingCompletion("together", "no choices")
	}
	text := parsed.Choices[0].Message.Content
	if text == "" {
		return "", llm.ModelTokens{}, false, providers.FormatMissingCompletion("together", "empty content")
	}

	tokens := llm.ModelTokens{
		Input:  parsed.Usage.PromptTokens,
		Output: parsed.Usage.CompletionTokens,
		Total:  parsed.Usage.TotalTokens,
		Price:  a.model.Price,
	}
	return text, tokens, false, nil
}
