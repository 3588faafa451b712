package llm

import (
	"context"
	"strings"
	"time"

	"tutor/tutor/config"
	"tutor/tutor/utils/logging"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIClientProvider is the slice of the OpenAI SDK the provider needs.
type OpenAIClientProvider interface {
	CreateCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)
}

type OpenAIClient struct {
	client *openai.Client
}

// NewOpenAIClient builds an SDK client. A non-empty baseURL points it at an
// OpenAI-compatible endpoint (Groq, a local gateway).
func NewOpenAIClient(apiKey, baseURL string, opts ...option.RequestOption) *OpenAIClient {
	opts = append(opts, option.WithAPIKey(apiKey))
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIClient{client: openai.NewClient(opts...)}
}

func (c *OpenAIClient) CreateCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	return c.client.Chat.Completions.New(ctx, params)
}

type OpenAIProvider struct {
	client   OpenAIClientProvider
	model    openai.ChatModel
	defaults Defaults
}

func NewOpenAIProvider(client OpenAIClientProvider, model string, defaults Defaults) *OpenAIProvider {
	if model == "" {
		model = openai.ChatModelGPT4oMini
	}
	return &OpenAIProvider{client: client, model: model, defaults: defaults}
}

func (p *OpenAIProvider) Name() string  { return config.ProviderOpenAI }
func (p *OpenAIProvider) Model() string { return p.model }

func (p *OpenAIProvider) messages(prompt string, history []Message) []openai.ChatCompletionMessageParamUnion {
	msgs := []openai.ChatCompletionMessageParamUnion{openai.SystemMessage(TutorSystemPrompt)}
	for _, m := range history {
		switch m.Role {
		case RoleUser:
			msgs = append(msgs, openai.UserMessage(m.Content))
		case RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		}
	}
	return append(msgs, openai.UserMessage(prompt))
}

func (p *OpenAIProvider) Generate(ctx context.Context, prompt string, opts GenerateOptions) (*GenerationResult, error) {
	defer logging.LogDuration(ctx, "openai_generate")()
	start := time.Now()

	model, temp, maxTokens := p.defaults.resolve(opts, p.model)
	params := openai.ChatCompletionNewParams{
		Messages:    openai.F(p.messages(prompt, opts.History)),
		Model:       openai.F(model),
		MaxTokens:   openai.Int(int64(maxTokens)),
		Temperature: openai.Float(temp),
	}

	completion, err := p.client.CreateCompletion(ctx, params)
	if err != nil {
		return nil, providerErr(p.Name(), err)
	}
	if len(completion.Choices) == 0 || strings.TrimSpace(completion.Choices[0].Message.Content) == "" {
		return nil, providerErr(p.Name(), ErrEmptyResponse)
	}

	result := &GenerationResult{
		Content:        completion.Choices[0].Message.Content,
		Provider:       p.Name(),
		Model:          model,
		ProcessingTime: time.Since(start).Milliseconds(),
	}
	if completion.Model != "" {
		result.Model = completion.Model
	}
	if completion.Usage.TotalTokens > 0 {
		result.Tokens = intPtr(int(completion.Usage.TotalTokens))
	}
	return result, nil
}
