// Package azure implements the AZURE provider adapter:
// Azure OpenAI Service, which speaks the same chat-completions wire shape
// as OpenAI itself but authenticates with an `api-key` header and needs an
// explicit API version query parameter and deployment name, grounded on
// the sibling openai adapter's shape.
package azure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/llmgate/llmgate/internal/catalog"
	"github.com/llmgate/llmgate/internal/errs"
	"github.com/llmgate/llmgate/internal/llm"
	"github.com/llmgate/llmgate/internal/providers"
)

func init() {
	providers.Register(catalog.Azure, New)
}

// Adapter talks to an Azure OpenAI Service deployment.
type Adapter struct {
	model      catalog.Model
	apiKey     string
	apiVersion string
	deployment string
	endpoint   string
	client     *http.Client
}

// New constructs an Azure adapter at construction time from the environment
// and the catalog's model config: the API key and API version come from the
// env vars AZURE_OPENAI_API_KEY and AZURE_OPEN_AI_API_VERSION; the deployment
// name comes from AZURE_OPENAI_DEPLOYMENT_NAME unless the model config sets
// "deployment_name"; the endpoint must be set in the model config ("endpoint").
func New(model catalog.Model) (providers.Adapter, error) {
	apiKey, err := providers.RequireEnv(os.Getenv, "AZURE_OPENAI_API_KEY")
	if err != nil {
		return nil, err
	}
	apiVersion, err := providers.RequireEnv(os.Getenv, "AZURE_OPEN_AI_API_VERSION")
	if err != nil {
		return nil, err
	}
	deployment := os.Getenv("AZURE_OPENAI_DEPLOYMENT_NAME")
	if v, ok := model.Config["deployment_name"].(string); ok && v != "" {
		deployment = v
	}
	if deployment == "" {
		return nil, errs.New(errs.Credentials, "azure model %s has no deployment name (set AZURE_OPENAI_DEPLOYMENT_NAME or catalog deployment_name)", model.ID)
	}
	endpoint, _ := model.Config["endpoint"].(string)
	if endpoint == "" {
		return nil, errs.New(errs.Credentials, "azure model %s has no endpoint configured", model.ID)
	}
	return &Adapter{
		model:      model,
		apiKey:     apiKey,
		apiVersion: apiVersion,
		deployment: deployment,
		endpoint:   endpoint,
		client:     &http.Client{Timeout: 120 * time.Second},
	}, nil
}

func (a *Adapter) Start(ctx context.Context) error { return nil }
func (a *Adapter) Stop(ctx context.Context) error  { return nil }

type chatRequest struct {
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

	payload := chatRequest{Messages: providers.BuildOpenAICompatibleMessages(req.Conversation)}
	if temp, ok := providers.FormatTemperature(a.model, req.Temperature); ok {
		payload.Temperature = &temp
	}
	payload.TopP = req.TopP
	payload.MaxTokens = req.MaxCompletionTokens

	endpoint := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		a.endpoint, url.PathEscape(a.deployment), url.QueryEscape(a.apiVersion))

	headers := map[string]string{"api-key": a.apiKey}
	body, err := providers.DoRequest(ctx, a.client, endpoint, payload, headers)
	if err != nil {
		var se *providers.StatusError
		if errors.As(err, &se) {
			return "", llm.ModelTokens{}, false, providers.ClassifyStatus(se)
		}
		return "", llm.ModelTokens{}, false, errs.Wrap(errs.ServiceCall, err, "azure request failed")
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", llm.ModelTokens{}, false, errs.Wrap(errs.ServiceCall, err, "azure: failed to decode response")
	}
	if len(parsed.Choices) == 0 {
		return "", llm.ModelTokens{}, false, providers.FormatMissingCompletion("azure", "no choices")
	}
	text := parsed.Choices[0].Message.Content
	if text == "" {
		return "", llm.ModelTokens{}, false, providers.FormatMissingCompletion("azure", "empty content")
	}

	tokens := llm.ModelTokens{
		Input:  parsed.Usage.PromptTokens,
		Output: parsed.Usage.CompletionTokens,
		Total:  parsed.Usage.TotalTokens,
		Price:  a.model.Price,
	}
	return text, tokens, false, nil
}
