package llm

import (
	"time"

	"github.com/llmgate/llmgate/internal/catalog"
	"github.com/llmgate/llmgate/internal/conversation"
	"github.com/llmgate/llmgate/internal/errs"
	"github.com/llmgate/llmgate/internal/structuredresponse"
)

// Response is the provider-neutral chat response the dispatch core returns.
type Response struct {
	ID            string
	ResponseModel *structuredresponse.Schema
	RawOutput     string
	// NativeStructured reports whether RawOutput is already a vendor-native
	// JSON-schema completion, so Output parses it as JSON instead of
	// through the XML-prompt parser.
	NativeStructured bool
	Conversation     conversation.Conversation
	LLMModel         catalog.Model
	Tokens           TokenTracker
	StartTime        time.Time
	EndTime          time.Time
	TotalDuration    time.Duration
}

// Output derives the caller-facing output: raw text when no response model
// was attached, or the parsed structured instance otherwise. The instance
// is parsed as JSON when the adapter reported a native structured
// completion, and with the XML-prompt parser otherwise. Parse failures
// surface as a structured-response error carrying the offending text and
// target class name.
func (r *Response) Output() (any, error) {
	if r.ResponseModel == nil {
		return r.RawOutput, nil
	}
	parse := structuredresponse.FromPrompt
	if r.NativeStructured {
		parse = structuredresponse.FromJSON
	}
	instance, err := parse(r.ResponseModel, r.RawOutput)
	if err != nil {
		var se *errs.Error
		if errs.As(err, &se) {
			return nil, se
		}
		return nil, errs.NewStructuredResponse(r.RawOutput, r.ResponseModel.ClassName, err)
	}
	return instance, nil
}
