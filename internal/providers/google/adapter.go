// Package google implements the GOOGLE provider adapter:
// Gemini's generateContent API, which uses a `contents`/`systemInstruction`
// wire shape instead of an OpenAI-style message array and renames the
// assistant role to "model".
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/llmgate/llmgate/internal/catalog"
	"github.com/llmgate/llmgate/internal/conversation"
	"github.com/llmgate/llmgate/internal/errs"
	"github.com/llmgate/llmgate/internal/llm"
	"github.com/llmgate/llmgate/internal/providers"
)

func init() {
	providers.Register(catalog.Google, New)
}

const defaultBaseURL = "https://generativelanguage.googleapis.com"

// Adapter talks to Gemini's generateContent API.
type Adapter struct {
	model    catalog.Model
	apiKey   string // set when using GOOGLE_API_KEY
	project  string // set when using Vertex-style project/location credentials
	location string
	baseURL  string
	client   *http.Client
}

// New constructs a Google adapter. Spec §4.F/§7 accepts either a single
// GOOGLE_API_KEY, or the (GOOGLE_CLOUD_PROJECT, GOOGLE_CLOUD_LOCATION)
// pair; the API key path is tried first.
func New(model catalog.Model) (providers.Adapter, error) {
	apiKey := os.Getenv("GOOGLE_API_KEY")
	project := os.Getenv("GOOGLE_CLOUD_PROJECT")
	location := os.Getenv("GOOGLE_CLOUD_LOCATION")
	if apiKey == "" && (project == "" || location == "") {
		return nil, errs.New(errs.Credentials, "google model %s needs GOOGLE_API_KEY or (GOOGLE_CLOUD_PROJECT, GOOGLE_CLOUD_LOCATION)", model.ID)
	}
	baseURL := defaultBaseURL
	if v, ok := model.Config["base_url"].(string); ok && v != "" {
		baseURL = v
	}
	return &Adapter{
		model:    model,
		apiKey:   apiKey,
		project:  project,
		location: location,
		baseURL:  baseURL,
		client:   &http.Client{Timeout: 120 * time.Second},
	}, nil
}

func (a *Adapter) Start(ctx context.Context) error { return nil }
func (a *Adapter) Stop(ctx context.Context) error  { return nil }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type generateRequest struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	GenerationConfig  struct {
		Temperature     *float64 `json:"temperature,omitempty"`
		TopP            *float64 `json:"topP,omitempty"`
		MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
	} `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

// geminiRole renames the neutral conversation role to Gemini's vocabulary:
// assistant turns are "model", user turns stay "user"; system text moves
// into the separate systemInstruction field rather than a content turn.
func geminiRole(r conversation.Role) string {
	if r == conversation.RoleAssistant {
		return "model"
	}
	return "user"
}

func (a *Adapter) ServiceCall(ctx context.Context, req *llm.Request) (string, llm.ModelTokens, bool, error) {
	if err := providers.CheckCapabilities(a.model, req.Conversation); err != nil {
		return "", llm.ModelTokens{}, false, err
	}

	var payload generateRequest
	if req.Conversation.System != "" {
		payload.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.Conversation.System}}}
	}
	for _, m := range req.Conversation.Messages {
		payload.Contents = append(payload.Contents, geminiContent{
			Role:  geminiRole(m.Role),
			Parts: []geminiPart{{Text: m.Text}},
		})
	}
	if temp, ok := providers.FormatTemperature(a.model, req.Temperature); ok {
		payload.GenerationConfig.Temperature = &temp
	}
	payload.GenerationConfig.TopP = req.TopP
	payload.GenerationConfig.MaxOutputTokens = req.MaxCompletionTokens

	modelID := providers.DeduceInternalModelID(a.model)
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", a.baseURL, modelID)
	headers := map[string]string{}
	if a.apiKey != "" {
		headers["x-goog-api-key"] = a.apiKey
	} else {
		headers["x-goog-user-project"] = a.project
		endpoint = fmt.Sprintf("%s/v1beta/projects/%s/locations/%s/publishers/google/models/%s:generateContent",
			a.baseURL, a.project, a.location, modelID)
	}

	body, err := providers.DoRequest(ctx, a.client, endpoint, payload, headers)
	if err != nil {
		var se *providers.StatusError
		if errors.As(err, &se) {
			return "", llm.ModelTokens{}, false, providers.ClassifyStatus(se)
		}
		return "", llm.ModelTokens{}, false, errs.Wrap(errs.ServiceCall, err, "google request failed")
	}

	var parsed generateResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", llm.ModelTokens{}, false, errs.Wrap(errs.ServiceCall, err, "google: failed to decode response")
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", llm.ModelTokens{}, false, providers.FormatMissingCompletion("google", "no candidates")
	}
	text := parsed.Candidates[0].Content.Parts[0].Text
	if text == "" {
		return "", llm.ModelTokens{}, false, providers.FormatMissingCompletion("google", "empty content")
	}

	tokens := llm.ModelTokens{
		Input:  parsed.UsageMetadata.PromptTokenCount,
		Output: parsed.UsageMetadata.CandidatesTokenCount,
		Total:  parsed.UsageMetadata.TotalTokenCount,
		Price:  a.model.Price,
	}
	return text, tokens, false, nil
}
