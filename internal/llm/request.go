package llm

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/llmgate/llmgate/internal/conversation"
	"github.com/llmgate/llmgate/internal/structuredresponse"
)

// DefaultMaxRetries is the default retry budget for the retry wrapper.
const DefaultMaxRetries = 5

// DefaultTemperature is applied when a request omits one.
const DefaultTemperature = 1.0

// RequestType is always "chat" for this core; kept as a named
// type since the original source carries a discriminator field here.
type RequestType string

const ChatRequestType RequestType = "chat"

// Request is the provider-neutral chat request the dispatch core accepts.
type Request struct {
	ID                  string
	RequestType         RequestType
	Conversation        conversation.Conversation
	ResponseModel       *structuredresponse.Schema
	MaxCompletionTokens *int
	Temperature         float64
	TopP                *float64
	MaxRetries          int
	Deadline            *time.Time
}

// NewRequest builds a Request with sensible defaults: a generated id
// if absent, temperature 1.0, and max_retries 5.
func NewRequest(conv conversation.Conversation) *Request {
	return &Request{
		ID:           uuid.NewString(),
		RequestType:  ChatRequestType,
		Conversation: conv,
		Temperature:  DefaultTemperature,
		MaxRetries:   DefaultMaxRetries,
	}
}

// Validate enforces the request invariants.
func (r *Request) Validate() error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Temperature < 0 {
		return fmt.Errorf("llm: temperature must be >= 0, got %v", r.Temperature)
	}
	if r.TopP != nil && (*r.TopP <= 0 || *r.TopP > 1) {
		return fmt.Errorf("llm: top_p must be in (0, 1], got %v", *r.TopP)
	}
	if r.MaxCompletionTokens != nil && *r.MaxCompletionTokens <= 0 {
		return fmt.Errorf("llm: max_completion_tokens must be > 0, got %d", *r.MaxCompletionTokens)
	}
	if r.MaxRetries <= 0 {
		r.MaxRetries = DefaultMaxRetries
	}
	return r.Conversation.Validate()
}
