package llm

import (
	"context"
	"testing"

	"tutor/tutor/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type namedProvider struct {
	name   string
	model  string
	closed bool
}

func (p *namedProvider) Name() string  { return p.name }
func (p *namedProvider) Model() string { return p.model }
func (p *namedProvider) Generate(context.Context, string, GenerateOptions) (*GenerationResult, error) {
	return &GenerationResult{Content: "ok", Provider: p.name, Model: p.model}, nil
}
func (p *namedProvider) Close() error {
	p.closed = true
	return nil
}

func TestRegistry(t *testing.T) {
	openai := &namedProvider{name: config.ProviderOpenAI, model: "gpt-4o-mini"}
	google := &namedProvider{name: config.ProviderGoogle, model: "gemini-1.5-flash"}

	r, err := NewRegistry(config.ProviderGoogle, openai, google)
	require.NoError(t, err)

	assert.Equal(t, config.ProviderGoogle, r.DefaultName())
	assert.Same(t, google, r.Default())

	p, ok := r.Get(config.ProviderOpenAI)
	assert.True(t, ok)
	assert.Same(t, openai, p)

	_, ok = r.Get(config.ProviderAnthropic)
	assert.False(t, ok)

	assert.Equal(t, []ProviderInfo{
		{Name: "google", Model: "gemini-1.5-flash", Default: true},
		{Name: "openai", Model: "gpt-4o-mini", Default: false},
	}, r.List())

	r.Close()
	assert.True(t, openai.closed)
	assert.True(t, google.closed)
}

func TestNewRegistry_MissingDefault(t *testing.T) {
	_, err := NewRegistry(config.ProviderAnthropic, &namedProvider{name: config.ProviderOpenAI})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic")
}

func TestNewRegistryFromConfig(t *testing.T) {
	cfg := config.Config{
		DefaultProvider:    config.ProviderOpenAI,
		DefaultTemperature: 0.7,
		DefaultMaxTokens:   1000,
		OpenAIAPIKey:       "sk-test",
		OpenAIModel:        "gpt-4o-mini",
		AnthropicAPIKey:    "ak-test",
	}

	r, err := NewRegistryFromConfig(context.Background(), cfg)
	require.NoError(t, err)

	names := []string{}
	for _, info := range r.List() {
		names = append(names, info.Name)
	}
	assert.Equal(t, []string{"anthropic", "openai"}, names)
	assert.Equal(t, "gpt-4o-mini", r.Default().Model())

	cfg.DefaultProvider = config.ProviderGoogle
	_, err = NewRegistryFromConfig(context.Background(), cfg)
	assert.Error(t, err)
}
