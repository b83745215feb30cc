// Package openai implements the OPENAI provider adapter.
// It is the only adapter in this catalog that takes the vendor-native
// JSON-schema structured-output path.
package openai

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
	"github.com/llmgate/llmgate/internal/structuredresponse"
)

func init() {
	providers.Register(catalog.OpenAI, New)
}

const defaultBaseURL = "https://api.openai.com"

// Adapter talks to OpenAI's chat-completions API.
type Adapter struct {
	model        catalog.Model
	apiKey       string
	organization string
	project      string
	baseURL      string
	client       *http.Client
}

// New constructs an OpenAI adapter, reading credentials from the
// environment at construction time (credentials errors
// are raised at construction, not at call time).
func New(model catalog.Model) (providers.Adapter, error) {
	apiKey, err := providers.RequireEnv(os.Getenv, "OPENAI_API_KEY")
	if err != nil {
		return nil, err
	}
	baseURL := defaultBaseURL
	if v, ok := model.Config["base_url"].(string); ok && v != "" {
		baseURL = v
	}
	return &Adapter{
		model:        model,
		apiKey:       apiKey,
		organization: os.Getenv("OPENAI_ORGANIZATION"),
		project:      os.Getenv("OPENAI_PROJECT"),
		baseURL:      baseURL,
		client:       &http.Client{Timeout: 120 * time.Second},
	}, nil
}

func (a *Adapter) Start(ctx context.Context) error { return nil }
func (a *Adapter) Stop(ctx context.Context) error  { return nil }

type chatRequest struct {
	Model          string                    `json:"model"`
	Messages       []providers.OpenAIMessage `json:"messages"`
	Temperature    *float64                  `json:"temperature,omitempty"`
	TopP           *float64                  `json:"top_p,omitempty"`
	MaxTokens      *int                      `json:"max_completion_tokens,omitempty"`
	ResponseFormat map[string]any            `json:"response_format,omitempty"`
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
		PromptDetails    struct {
			CachedTokens int `json:"cached_tokens"`
		} `json:"prompt_tokens_details"`
		CompletionDetails struct {
			ReasoningTokens int `json:"reasoning_tokens"`
		} `json:"completion_tokens_details"`
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

	usedNative := false
	if req.ResponseModel != nil && a.model.Capabilities.StructuredOutput && nativeEligible(req.ResponseModel) {
		payload.ResponseFormat = map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   structuredresponse.ToSnakeCase(req.ResponseModel.ClassName),
				"strict": true,
				"schema": strictJSONSchema(req.ResponseModel.Root),
			},
		}
		usedNative = true
	}

	headers := map[string]string{"Authorization": "Bearer " + a.apiKey}
	if a.organization != "" {
		headers["OpenAI-Organization"] = a.organization
	}
	if a.project != "" {
		headers["OpenAI-Project"] = a.project
	}

	body, err := providers.DoRequest(ctx, a.client, a.baseURL+"/v1/chat/completions", payload, headers)
	if err != nil {
		var se *providers.StatusError
		if errors.As(err, &se) {
			return "", llm.ModelTokens{}, false, providers.ClassifyStatus(se)
		}
		return "", llm.ModelTokens{}, false, errs.Wrap(errs.ServiceCall, err, "openai request failed")
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", llm.ModelTokens{}, false, errs.Wrap(errs.ServiceCall, err, "openai: failed to decode response")
	}
	if len(parsed.Choices) == 0 {
		return "", llm.ModelTokens{}, false, providers.FormatMissingCompletion("openai", "no choices")
	}

	text := parsed.Choices[0].Message.Content
	if text == "" {
		return "", llm.ModelTokens{}, false, providers.FormatMissingCompletion("openai", "empty content")
	}

	input := parsed.Usage.PromptTokens - parsed.Usage.PromptDetails.CachedTokens
	if input < 0 {
		input = 0
	}
	tokens := llm.ModelTokens{
		Input:           input,
		CachedInput:     parsed.Usage.PromptDetails.CachedTokens,
		Output:          parsed.Usage.CompletionTokens - parsed.Usage.CompletionDetails.ReasoningTokens,
		ReasoningOutput: parsed.Usage.CompletionDetails.ReasoningTokens,
		Total:           parsed.Usage.TotalTokens,
		Price:           a.model.Price,
	}
	return text, tokens, usedNative, nil
}

// nativeEligible decides whether a schema can take the native JSON-schema
// path. Per Open Question resolution, this implementation never
// guesses unsupported constructs; every schema the dynamic tree can express
// is representable as a strict JSON schema, so eligibility only depends on
// the model's advertised capability (checked by the caller).
func nativeEligible(s *structuredresponse.Schema) bool {
	return s != nil && s.Root != nil
}
