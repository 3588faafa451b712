// Package llm adapts third-party model SDKs to one Generate call.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// TutorSystemPrompt is injected by every provider.
const TutorSystemPrompt = `You are a patient, encouraging educational tutor for students.
Help the student understand concepts rather than handing over final answers to graded work.
Explain ideas step by step, use simple examples, and check understanding with a short question.
Keep answers age-appropriate, accurate and focused on learning. Politely decline requests that
are unsafe, unkind or unrelated to learning, and suggest an educational alternative.`

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ErrEmptyResponse is returned when a provider answers without any text.
var ErrEmptyResponse = errors.New("provider returned no content")

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type GenerateOptions struct {
	Model       string
	Temperature *float64
	MaxTokens   int
	// History holds earlier turns of the conversation, oldest first.
	History []Message
}

// Defaults apply when a request leaves an option unset.
type Defaults struct {
	Temperature float64
	MaxTokens   int
}

// GenerationResult is the normalized reply of any provider. SafetyScore is
// filled in by the caller after scoring the content.
type GenerationResult struct {
	Content        string  `json:"content"`
	Provider       string  `json:"provider"`
	Model          string  `json:"model"`
	Tokens         *int    `json:"tokens,omitempty"`
	SafetyScore    float64 `json:"safetyScore"`
	ProcessingTime int64   `json:"processingTime"`
}

type Provider interface {
	Name() string
	Model() string
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (*GenerationResult, error)
}

func (d Defaults) resolve(opts GenerateOptions, model string) (string, float64, int) {
	if opts.Model != "" {
		model = opts.Model
	}
	temp := d.Temperature
	if opts.Temperature != nil {
		temp = *opts.Temperature
	}
	maxTokens := d.MaxTokens
	if opts.MaxTokens > 0 {
		maxTokens = opts.MaxTokens
	}
	if maxTokens <= 0 {
		maxTokens = 1000
	}
	return model, temp, maxTokens
}

func providerErr(provider string, err error) error {
	return fmt.Errorf("%s: %w", provider, err)
}

func intPtr(v int) *int {
	return &v
}
