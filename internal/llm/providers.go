package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	openaiv3 "github.com/openai/openai-go/v3"
	openaiv3opt "github.com/openai/openai-go/v3/option"
	"github.com/sashabaranov/go-openai"
)

// CompletionRequest is the uniform shape every Provider variant accepts.
// SchemaName/SchemaJSON are only honored by providers that
// support native structured output (hosted API A); other providers render
// the schema into the prompt text via the template instead.
type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	Model        string
	Temperature  float64
	MaxTokens    int
	SchemaName   string
	SchemaJSON   []byte
}

// CompletionResponse is a provider's raw reply plus the model name that
// actually served it (useful when a config names a family, e.g. "latest").
type CompletionResponse struct {
	Content string
	Model   string
}

// Backend is the capability every LLM provider variant satisfies.
// Provider-specific fields must not leak past this interface.
type Backend interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
}

// LocalProvider talks to a self-hosted OpenAI-compatible chat-completion
// endpoint (e.g. vLLM, Ollama's OpenAI-compat server) via the classic
// sashabaranov/go-openai client pointed at a custom BaseURL.
type LocalProvider struct {
	client *openai.Client
}

func NewLocalProvider(baseURL, apiKey string) *LocalProvider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &LocalProvider{client: openai.NewClientWithConfig(cfg)}
}

func (p *LocalProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	messages := []openai.ChatCompletionMessage{}
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.SystemPrompt})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.UserPrompt})

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("local provider completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return CompletionResponse{}, fmt.Errorf("local provider returned no choices")
	}
	return CompletionResponse{Content: resp.Choices[0].Message.Content, Model: resp.Model}, nil
}

// HostedAProvider is OpenAI via openai-go/v3, used for the structured-
// output request path: the strict schema parse attempt gets a native
// JSON-schema response format when this provider is selected.
type HostedAProvider struct {
	client openaiv3.Client
}

func NewHostedAProvider(apiKey string) *HostedAProvider {
	return &HostedAProvider{client: openaiv3.NewClient(openaiv3opt.WithAPIKey(apiKey))}
}

func (p *HostedAProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	params := openaiv3.ChatCompletionNewParams{
		Model: openaiv3.ChatModel(req.Model),
		Messages: []openaiv3.ChatCompletionMessageParamUnion{
			openaiv3.UserMessage(req.UserPrompt),
		},
		Temperature: openaiv3.Float(req.Temperature),
	}
	if req.SystemPrompt != "" {
		params.Messages = append([]openaiv3.ChatCompletionMessageParamUnion{openaiv3.SystemMessage(req.SystemPrompt)}, params.Messages...)
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openaiv3.Int(int64(req.MaxTokens))
	}
	if len(req.SchemaJSON) > 0 {
		params.ResponseFormat = openaiv3.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openaiv3.ResponseFormatJSONSchemaParam{
				JSONSchema: openaiv3.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   req.SchemaName,
					Schema: rawSchema(req.SchemaJSON),
					Strict: openaiv3.Bool(true),
				},
			},
		}
	}

	completion, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("hosted-a completion: %w", err)
	}
	if len(completion.Choices) == 0 {
		return CompletionResponse{}, fmt.Errorf("hosted-a returned no choices")
	}
	return CompletionResponse{Content: completion.Choices[0].Message.Content, Model: completion.Model}, nil
}

// rawSchema decodes a JSON schema document into the `any` shape the SDK's
// Schema field expects (a plain JSON object, not a typed struct — the
// schema comes from the prompt-template catalogue, not from Go code).
func rawSchema(schemaJSON []byte) any {
	var v any
	if err := json.Unmarshal(schemaJSON, &v); err != nil {
		return nil
	}
	return v
}

// HostedBProvider is Anthropic via anthropic-sdk-go.
type HostedBProvider struct {
	client anthropic.Client
}

func NewHostedBProvider(apiKey string) *HostedBProvider {
	return &HostedBProvider{client: anthropic.NewClient(option.WithAPIKey(apiKey))}
}

func (p *HostedBProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.UserPrompt)),
		},
		Temperature: anthropic.Float(req.Temperature),
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("hosted-b completion: %w", err)
	}
	var content string
	for _, block := range msg.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}
	return CompletionResponse{Content: content, Model: string(msg.Model)}, nil
}
