package llm

import (
	"context"
	"fmt"
	"sort"

	"tutor/tutor/config"
	"tutor/tutor/utils/logging"

	"go.uber.org/zap"
)

type ProviderInfo struct {
	Name    string `json:"name"`
	Model   string `json:"model"`
	Default bool   `json:"default"`
}

// Registry maps provider names to adapters and knows the default one.
type Registry struct {
	providers   map[string]Provider
	defaultName string
}

func NewRegistry(defaultName string, providers ...Provider) (*Registry, error) {
	r := &Registry{providers: make(map[string]Provider, len(providers)), defaultName: defaultName}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	if _, ok := r.providers[defaultName]; !ok {
		return nil, fmt.Errorf("default provider %q is not configured", defaultName)
	}
	return r, nil
}

// NewRegistryFromConfig registers every provider that has an API key.
func NewRegistryFromConfig(ctx context.Context, cfg config.Config) (*Registry, error) {
	defaults := Defaults{Temperature: cfg.DefaultTemperature, MaxTokens: cfg.DefaultMaxTokens}
	var providers []Provider
	if cfg.OpenAIAPIKey != "" {
		client := NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL)
		providers = append(providers, NewOpenAIProvider(client, cfg.OpenAIModel, defaults))
	}
	if cfg.AnthropicAPIKey != "" {
		client := NewAnthropicClient(cfg.AnthropicAPIKey)
		providers = append(providers, NewAnthropicProvider(client, cfg.AnthropicModel, defaults))
	}
	if cfg.GoogleAPIKey != "" {
		client, err := NewGeminiClient(ctx, cfg.GoogleAPIKey)
		if err != nil {
			return nil, err
		}
		providers = append(providers, NewGeminiProvider(client, cfg.GoogleModel, defaults))
	}
	for _, p := range providers {
		logging.AppLogger.Info("provider registered", zap.String("provider", p.Name()), zap.String("model", p.Model()))
	}
	return NewRegistry(cfg.DefaultProvider, providers...)
}

func (r *Registry) Get(name string) (Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

func (r *Registry) Default() Provider {
	return r.providers[r.defaultName]
}

func (r *Registry) DefaultName() string {
	return r.defaultName
}

// List returns the registered providers sorted by name.
func (r *Registry) List() []ProviderInfo {
	out := make([]ProviderInfo, 0, len(r.providers))
	for name, p := range r.providers {
		out = append(out, ProviderInfo{Name: name, Model: p.Model(), Default: name == r.defaultName})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Close releases providers that hold connections.
func (r *Registry) Close() {
	for _, p := range r.providers {
		if c, ok := p.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil {
				logging.ErrorLogger.Error("provider close error", zap.String("provider", p.Name()), zap.Error(err))
			}
		}
	}
}
