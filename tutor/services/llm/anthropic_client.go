package llm

import (
	"context"
	"strings"
	"time"

	"tutor/tutor/config"
	"tutor/tutor/utils/logging"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicClientProvider is the slice of the Anthropic SDK the provider needs.
type AnthropicClientProvider interface {
	CreateMessage(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error)
}

type AnthropicClient struct {
	messages *anthropic.MessageService
}

func NewAnthropicClient(apiKey string, opts ...option.RequestOption) *AnthropicClient {
	opts = append(opts, option.WithAPIKey(apiKey))
	client := anthropic.NewClient(opts...)
	return &AnthropicClient{messages: client.Messages}
}

func (c *AnthropicClient) CreateMessage(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
	return c.messages.New(ctx, params)
}

type AnthropicProvider struct {
	client   AnthropicClientProvider
	model    string
	defaults Defaults
}

func NewAnthropicProvider(client AnthropicClientProvider, model string, defaults Defaults) *AnthropicProvider {
	if model == "" {
		model = string(anthropic.ModelClaude_3_5_Sonnet_20240620)
	}
	return &AnthropicProvider{client: client, model: model, defaults: defaults}
}

func (p *AnthropicProvider) Name() string  { return config.ProviderAnthropic }
func (p *AnthropicProvider) Model() string { return p.model }

// System text travels in its own parameter, so only user and assistant turns
// become messages.
func (p *AnthropicProvider) messages(prompt string, history []Message) []anthropic.MessageParam {
	var msgs []anthropic.MessageParam
	for _, m := range history {
		switch m.Role {
		case RoleUser:
			msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		case RoleAssistant:
			msgs = append(msgs, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	return append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)))
}

func (p *AnthropicProvider) Generate(ctx context.Context, prompt string, opts GenerateOptions) (*GenerationResult, error) {
	defer logging.LogDuration(ctx, "anthropic_generate")()
	start := time.Now()

	model, temp, maxTokens := p.defaults.resolve(opts, p.model)
	message, err := p.client.CreateMessage(ctx, anthropic.MessageNewParams{
		Model:       anthropic.F(anthropic.Model(model)),
		MaxTokens:   anthropic.F(int64(maxTokens)),
		Messages:    anthropic.F(p.messages(prompt, opts.History)),
		Temperature: anthropic.Float(temp),
		System: anthropic.F([]anthropic.TextBlockParam{
			anthropic.NewTextBlock(TutorSystemPrompt),
		}),
	})
	if err != nil {
		return nil, providerErr(p.Name(), err)
	}

	var parts []string
	for _, block := range message.Content {
		switch block := block.AsUnion().(type) {
		case anthropic.TextBlock:
			parts = append(parts, block.Text)
		}
	}
	content := strings.TrimSpace(strings.Join(parts, "\n"))
	if content == "" {
		return nil, providerErr(p.Name(), ErrEmptyResponse)
	}

	result := &GenerationResult{
		Content:        content,
		Provider:       p.Name(),
		Model:          model,
		ProcessingTime: time.Since(start).Milliseconds(),
	}
	if message.Model != "" {
		result.Model = string(message.Model)
	}
	if total := message.Usage.InputTokens + message.Usage.OutputTokens; total > 0 {
		result.Tokens = intPtr(int(total))
	}
	return result, nil
}
