package httpapi

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/llmgate/llmgate/internal/conversation"
	"github.com/llmgate/llmgate/internal/errs"
	"github.com/llmgate/llmgate/internal/llm"
	"github.com/llmgate/llmgate/internal/structuredresponse"
)

// messageWire is the wire shape of one conversation.Message.
type messageWire struct {
	Role      string         `json:"role"`
	Text      string         `json:"text"`
	Images    []imageWire    `json:"images,omitempty"`
	Documents []documentWire `json:"documents,omitempty"`
}

type imageWire struct {
	DataBase64 string `json:"data_base64"`
	Format     string `json:"format"`
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
}

type documentWire struct {
	DataBase64 string `json:"data_base64"`
	Format     string `json:"format"`
	Name       string `json:"name,omitempty"`
}

// chatRequestBody is the JSON body for POST /chat/{provider}/{name}.
type chatRequestBody struct {
	System              string                         `json:"system,omitempty"`
	Messages            []messageWire                  `json:"messages"`
	ResponseModel       *structuredresponse.WireRecord `json:"response_model,omitempty"`
	MaxCompletionTokens *int                           `json:"max_completion_tokens,omitempty"`
	Temperature         *float64                       `json:"temperature,omitempty"`
	TopP                *float64                       `json:"top_p,omitempty"`
	MaxRetries          int                            `json:"max_retries,omitempty"`
}

type tokensWire struct {
	Input           int `json:"input"`
	CachedInput     int `json:"cached_input"`
	Output          int `json:"output"`
	ReasoningOutput int `json:"reasoning_output"`
	Total           int `json:"total"`
}

type chatResponseBody struct {
	ID         string     `json:"id"`
	Model      string     `json:"model"`
	Output     any        `json:"output"`
	Tokens     tokensWire `json:"tokens"`
	DurationMs int64      `json:"duration_ms"`
}

func decodeImage(w imageWire) conversation.Image {
	data, _ := decodeBase64(w.DataBase64)
	return conversation.Image{
		Data:   data,
		Format: conversation.ImageFormat(w.Format),
		Width:  w.Width,
		Height: w.Height,
	}
}

func decodeDocument(w documentWire) conversation.Document {
	data, _ := decodeBase64(w.DataBase64)
	return conversation.Document{
		Data:   data,
		Format: conversation.DocumentFormat(w.Format),
		Name:   w.Name,
	}
}

// buildConversation translates the wire body into the provider-neutral
// conversation value type.
func buildConversation(body chatRequestBody) conversation.Conversation {
	conv := conversation.Conversation{System: body.System}
	for _, m := range body.Messages {
		msg := conversation.Message{Role: conversation.Role(m.Role), Text: m.Text}
		for _, img := range m.Images {
			msg.Images = append(msg.Images, decodeImage(img))
		}
		for _, doc := range m.Documents {
			msg.Documents = append(msg.Documents, decodeDocument(doc))
		}
		conv.Messages = append(conv.Messages, msg)
	}
	return conv
}

// ChatHandler implements POST /chat/{provider}/{name}: the one
// route that actually drives the dispatch core.
func ChatHandler(d Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		provider := chi.URLParam(r, "provider")
		name := chi.URLParam(r, "name")
		modelID := fmt.Sprintf("%s/%s", provider, name)

		var body chatRequestBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, errs.New(errs.Conversion, "invalid JSON body: %v", err))
			return
		}

		req := llm.NewRequest(buildConversation(body))
		if body.Temperature != nil {
			req.Temperature = *body.Temperature
		}
		req.TopP = body.TopP
		req.MaxCompletionTokens = body.MaxCompletionTokens
		if body.MaxRetries > 0 {
			req.MaxRetries = body.MaxRetries
		}
		if body.ResponseModel != nil {
			schema, _, err := structuredresponse.FromWire(*body.ResponseModel)
			if err != nil {
				writeError(w, errs.New(errs.Conversion, "invalid response_model: %v", err))
				return
			}
			req.ResponseModel = schema
		}

		resp, err := d.Dispatcher.Handle(r.Context(), modelID, req)
		if err != nil {
			writeError(w, err)
			return
		}

		output, err := resp.Output()
		if err != nil {
			writeError(w, err)
			return
		}

		tokens := resp.Tokens[resp.LLMModel.ID]
		writeJSON(w, http.StatusOK, chatResponseBody{
			ID:     resp.ID,
			Model:  resp.LLMModel.ID,
			Output: output,
			Tokens: tokensWire{
				Input:           tokens.Input,
				CachedInput:     tokens.CachedInput,
				Output:          tokens.Output,
				ReasoningOutput: tokens.ReasoningOutput,
				Total:           tokens.Total,
			},
			DurationMs: resp.TotalDuration.Milliseconds(),
		})
	}
}

func decodeBase64(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	return base64.StdEncoding.DecodeString(s)
}
