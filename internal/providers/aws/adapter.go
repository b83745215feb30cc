// Package aws implements the AWS provider adapter: Amazon
// Bedrock's Converse API, which this catalog also reaches Claude/Anthropic
// models through (there is no standalone Anthropic-direct adapter; see
// DESIGN.md). Request/response shaping is adapted from the Bedrock Converse
// client in goadesign-goa-ai/features/model/bedrock/client.go, trimmed to this catalog's needs: no tool
// use, no streaming, no prompt caching.
package aws

import (
	"context"
	"errors"
	"os"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"github.com/llmgate/llmgate/internal/catalog"
	"github.com/llmgate/llmgate/internal/conversation"
	"github.com/llmgate/llmgate/internal/errs"
	"github.com/llmgate/llmgate/internal/llm"
	"github.com/llmgate/llmgate/internal/providers"
)

func init() {
	providers.Register(catalog.AWS, New)
}

// RuntimeClient is the subset of *bedrockruntime.Client the adapter needs,
// mirroring the goa-ai bedrock client's RuntimeClient seam so tests can
// substitute a fake.
type RuntimeClient interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// Adapter talks to AWS Bedrock's Converse API.
type Adapter struct {
	model   catalog.Model
	runtime RuntimeClient
}

// New constructs a Bedrock adapter from the standard AWS credential env
// vars: AWS_DEFAULT_REGION, AWS_ACCESS_KEY_ID,
// AWS_SECRET_ACCESS_KEY.
func New(model catalog.Model) (providers.Adapter, error) {
	region, err := providers.RequireEnv(os.Getenv, "AWS_DEFAULT_REGION")
	if err != nil {
		return nil, err
	}
	accessKey, err := providers.RequireEnv(os.Getenv, "AWS_ACCESS_KEY_ID")
	if err != nil {
		return nil, err
	}
	secretKey, err := providers.RequireEnv(os.Getenv, "AWS_SECRET_ACCESS_KEY")
	if err != nil {
		return nil, err
	}

	cfg := awssdk.Config{
		Region:      region,
		Credentials: credentials.NewStaticCredentialsProvider(accessKey, secretKey, os.Getenv("AWS_SESSION_TOKEN")),
	}
	return &Adapter{model: model, runtime: bedrockruntime.NewFromConfig(cfg)}, nil
}

func (a *Adapter) Start(ctx context.Context) error { return nil }
func (a *Adapter) Stop(ctx context.Context) error  { return nil }

// bedrockRole maps the neutral role to Bedrock's two-role Converse
// vocabulary; system text travels in the separate System field.
func bedrockRole(r conversation.Role) brtypes.ConversationRole {
	if r == conversation.RoleAssistant {
		return brtypes.ConversationRoleAssistant
	}
	return brtypes.ConversationRoleUser
}

func (a *Adapter) buildInput(req *llm.Request) *bedrockruntime.ConverseInput {
	input := &bedrockruntime.ConverseInput{
		ModelId: awssdk.String(providers.DeduceInternalModelID(a.model)),
	}
	if req.Conversation.System != "" {
		input.System = []brtypes.SystemContentBlock{
			&brtypes.SystemContentBlockMemberText{Value: req.Conversation.System},
		}
	}
	for _, m := range req.Conversation.Messages {
		input.Messages = append(input.Messages, brtypes.Message{
			Role:    bedrockRole(m.Role),
			Content: []brtypes.ContentBlock{&brtypes.ContentBlockMemberText{Value: m.Text}},
		})
	}

	var cfg brtypes.InferenceConfiguration
	hasCfg := false
	if temp, ok := providers.FormatTemperature(a.model, req.Temperature); ok {
		f := float32(temp)
		cfg.Temperature = &f
		hasCfg = true
	}
	if req.TopP != nil {
		f := float32(*req.TopP)
		cfg.TopP = &f
		hasCfg = true
	}
	if req.MaxCompletionTokens != nil {
		n := int32(*req.MaxCompletionTokens)
		cfg.MaxTokens = &n
		hasCfg = true
	}
	if hasCfg {
		input.InferenceConfig = &cfg
	}
	return input
}

func (a *Adapter) ServiceCall(ctx context.Context, req *llm.Request) (string, llm.ModelTokens, bool, error) {
	if err := providers.CheckCapabilities(a.model, req.Conversation); err != nil {
		return "", llm.ModelTokens{}, false, err
	}

	output, err := a.runtime.Converse(ctx, a.buildInput(req))
	if err != nil {
		return "", llm.ModelTokens{}, false, classifyBedrockError(err)
	}

	text := extractText(output)
	if text == "" {
		return "", llm.ModelTokens{}, false, providers.FormatMissingCompletion("aws", string(output.StopReason))
	}

	tokens := llm.ModelTokens{Price: a.model.Price}
	if usage := output.Usage; usage != nil {
		tokens.Input = int(ptrValue(usage.InputTokens))
		tokens.Output = int(ptrValue(usage.OutputTokens))
		tokens.Total = int(ptrValue(usage.TotalTokens))
		tokens.CachedInput = int(ptrValue(usage.CacheReadInputTokens))
	}
	return text, tokens, false, nil
}

func extractText(output *bedrockruntime.ConverseOutput) string {
	msg, ok := output.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return ""
	}
	var text string
	for _, block := range msg.Value.Content {
		if tb, ok := block.(*brtypes.ContentBlockMemberText); ok {
			text += tb.Value
		}
	}
	return text
}

func ptrValue(p *int32) int32 {
	if p == nil {
		return 0
	}
	return *p
}

// classifyBedrockError maps the smithy-go response error metadata onto the
// shared status-code taxonomy since Bedrock errors don't arrive
// as a raw providers.StatusError the way REST vendors do.
func classifyBedrockError(err error) error {
	var re *smithyhttp.ResponseError
	if errors.As(err, &re) {
		se := &providers.StatusError{StatusCode: re.HTTPStatusCode, Body: err.Error()}
		return providers.ClassifyStatus(se)
	}

	var ctxErr interface{ Timeout() bool }
	if errors.As(err, &ctxErr) && ctxErr.Timeout() {
		return errs.Wrap(errs.Timeout, err, "bedrock request timed out")
	}
	return errs.Wrap(errs.ServiceCall, err, "bedrock converse call failed")
}
