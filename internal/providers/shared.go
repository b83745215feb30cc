package providers

import (
	"github.com/llmgate/llmgate/internal/catalog"
	"github.com/llmgate/llmgate/internal/conversation"
	"github.com/llmgate/llmgate/internal/errs"
)

// CheckCapabilities enforces the capability gating shared by every adapter:
// a request carrying images/documents for a model that doesn't advertise
// support fails with the conversion kind before any network call.
// Structured-output requests are never rejected here — the XML-prompt path
// works against any model, and the native JSON-schema path is gated
// per-adapter (see openai.nativeEligible) since it's currently the only
// adapter that can take it.
func CheckCapabilities(model catalog.Model, conv conversation.Conversation) error {
	for _, m := range conv.Messages {
		if len(m.Images) > 0 && !model.Capabilities.ImageSupport {
			return errs.New(errs.Conversion, "model %s does not support image attachments", model.ID)
		}
		if len(m.Documents) > 0 && !model.Capabilities.DocumentSupport {
			return errs.New(errs.Conversion, "model %s does not support document attachments", model.ID)
		}
	}
	return nil
}

// OpenAIMessage is the role/content shape shared by every OpenAI-wire-
// compatible vendor (OpenAI itself, Azure OpenAI, OpenRouter, Together).
type OpenAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// BuildOpenAICompatibleMessages translates a neutral conversation into the
// OpenAI chat-completions message array, placing the system preamble as a
// leading "system" role message. Only message text is carried: image/document
// attachments are not placed in the array. CheckCapabilities rejects them for
// models without image_support/document_support; for models with those
// capabilities they are dropped here.
func BuildOpenAICompatibleMessages(conv conversation.Conversation) []OpenAIMessage {
	var out []OpenAIMessage
	if conv.System != "" {
		out = append(out, OpenAIMessage{Role: "system", Content: conv.System})
	}
	for _, m := range conv.Messages {
		out = append(out, OpenAIMessage{Role: string(m.Role), Content: m.Text})
	}
	return out
}

// ExtractTextField is a small helper adapters use to require a field be
// present and non-empty in a decoded vendor response, surfacing a
// service-call error with a uniform message otherwise.
func ExtractTextField(field, value string) (string, error) {
	if value == "" {
		return "", errs.New(errs.ServiceCall, "provider returned empty %s", field)
	}
	return value, nil
}

// RequireEnv reads an environment variable and raises a credentials error
// naming it when absent.
func RequireEnv(getenv func(string) string, name string) (string, error) {
	v := getenv(name)
	if v == "" {
		return "", errs.New(errs.Credentials, "required environment variable %s is not set", name)
	}
	return v, nil
}

// FormatTemperature renders a model's fixed-or-requested temperature; some
// vendors (o-series reasoning models on OpenAI) reject a temperature
// parameter entirely when FixedTemperature is set.
func FormatTemperature(model catalog.Model, requested float64) (float64, bool) {
	if model.FixedTemperature {
		return 0, false
	}
	return requested, true
}

// DeduceInternalModelID returns the vendor-side model id, defaulting to the
// catalog name when the catalog entry doesn't override it.
func DeduceInternalModelID(model catalog.Model) string {
	if model.InternalModelID != "" {
		return model.InternalModelID
	}
	return model.Name
}

// FormatMissingCompletion is raised when a vendor call "succeeds" at the
// transport level but returns no usable completion.
func FormatMissingCompletion(provider, status string) error {
	return errs.New(errs.ServiceCall, "provider %s returned no completion (status %q)", provider, status)
}
