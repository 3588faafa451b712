package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tutor/tutor/config"
	"tutor/tutor/utils/logging"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const (
	geminiRoleUser  = "user"
	geminiRoleModel = "model"
)

// GeminiRequest carries one chat turn for the Gemini service.
type GeminiRequest struct {
	Model             string
	SystemInstruction string
	History           []*genai.Content
	Prompt            string
	Temperature       float32
	MaxOutputTokens   int32
}

// GeminiClientProvider hides the genai chat session so tests can fake it.
type GeminiClientProvider interface {
	GenerateContent(ctx context.Context, req GeminiRequest) (*genai.GenerateContentResponse, error)
}

type GeminiClient struct {
	client *genai.Client
}

func NewGeminiClient(ctx context.Context, apiKey string, opts ...option.ClientOption) (*GeminiClient, error) {
	opts = append(opts, option.WithAPIKey(apiKey))
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GeminiClient{client: client}, nil
}

func (c *GeminiClient) GenerateContent(ctx context.Context, req GeminiRequest) (*genai.GenerateContentResponse, error) {
	model := c.client.GenerativeModel(req.Model)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.SystemInstruction)}}
	model.SetTemperature(req.Temperature)
	model.SetMaxOutputTokens(req.MaxOutputTokens)

	cs := model.StartChat()
	cs.History = req.History
	return cs.SendMessage(ctx, genai.Text(req.Prompt))
}

func (c *GeminiClient) Close() error {
	return c.client.Close()
}

type GeminiProvider struct {
	client   GeminiClientProvider
	model    string
	defaults Defaults
}

func NewGeminiProvider(client GeminiClientProvider, model string, defaults Defaults) *GeminiProvider {
	if model == "" {
		model = "gemini-1.5-flash"
	}
	return &GeminiProvider{client: client, model: model, defaults: defaults}
}

func (p *GeminiProvider) Name() string  { return config.ProviderGoogle }
func (p *GeminiProvider) Model() string { return p.model }

func (p *GeminiProvider) history(history []Message) []*genai.Content {
	var out []*genai.Content
	for _, m := range history {
		role := ""
		switch m.Role {
		case RoleUser:
			role = geminiRoleUser
		case RoleAssistant:
			role = geminiRoleModel
		default:
			continue
		}
		out = append(out, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(m.Content)}})
	}
	return out
}

func (p *GeminiProvider) Generate(ctx context.Context, prompt string, opts GenerateOptions) (*GenerationResult, error) {
	defer logging.LogDuration(ctx, "gemini_generate")()
	start := time.Now()

	model, temp, maxTokens := p.defaults.resolve(opts, p.model)
	resp, err := p.client.GenerateContent(ctx, GeminiRequest{
		Model:             model,
		SystemInstruction: TutorSystemPrompt,
		History:           p.history(opts.History),
		Prompt:            prompt,
		Temperature:       float32(temp),
		MaxOutputTokens:   int32(maxTokens),
	})
	if err != nil {
		return nil, providerErr(p.Name(), err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		if resp != nil && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
			return nil, providerErr(p.Name(), fmt.Errorf("request blocked by API: %s", resp.PromptFeedback.BlockReason.String()))
		}
		return nil, providerErr(p.Name(), ErrEmptyResponse)
	}

	content := extractGeminiText(resp.Candidates[0])
	if content == "" {
		return nil, providerErr(p.Name(), ErrEmptyResponse)
	}

	result := &GenerationResult{
		Content:        content,
		Provider:       p.Name(),
		Model:          model,
		ProcessingTime: time.Since(start).Milliseconds(),
	}
	if resp.UsageMetadata != nil && resp.UsageMetadata.TotalTokenCount > 0 {
		result.Tokens = intPtr(int(resp.UsageMetadata.TotalTokenCount))
	}
	return result, nil
}

func extractGeminiText(c *genai.Candidate) string {
	if c == nil || c.Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range c.Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}
	return strings.TrimSpace(sb.String())
}

// Close releases the underlying client when it holds one.
func (p *GeminiProvider) Close() error {
	if c, ok := p.client.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
