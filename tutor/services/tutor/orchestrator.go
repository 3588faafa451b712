// Package tutor sequences safety checks and provider calls for one chat turn.
package tutor

import (
	"context"
	"fmt"
	"time"

	"tutor/tutor/services/llm"
	"tutor/tutor/services/safety"
	"tutor/tutor/utils/logging"

	"go.uber.org/zap"
)

type Scorer interface {
	Validate(text string) safety.Validation
}

type Providers interface {
	Get(name string) (llm.Provider, bool)
	Default() llm.Provider
	DefaultName() string
}

// Recorder receives orchestration events. *metrics.Metrics implements it.
type Recorder interface {
	RecordProviderCall(provider string, err error)
	RecordFallback(from, to string)
	RecordSafetyBlock(stage string)
	RecordTokens(provider string, tokens *int)
}

type nopRecorder struct{}

func (nopRecorder) RecordProviderCall(string, error) {}
func (nopRecorder) RecordFallback(string, string)    {}
func (nopRecorder) RecordSafetyBlock(string)         {}
func (nopRecorder) RecordTokens(string, *int)        {}

type ChatRequest struct {
	Message     string
	Provider    string
	Model       string
	Temperature *float64
	MaxTokens   int
	History     []llm.Message
}

type ChatResult struct {
	llm.GenerationResult
	Input        safety.Validation
	Output       safety.Validation
	FallbackUsed bool
}

type Orchestrator struct {
	scorer    Scorer
	providers Providers
	recorder  Recorder
}

func NewOrchestrator(scorer Scorer, providers Providers, recorder Recorder) *Orchestrator {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Orchestrator{scorer: scorer, providers: providers, recorder: recorder}
}

// Validate scores text without calling any provider.
func (o *Orchestrator) Validate(text string) safety.Validation {
	return o.scorer.Validate(text)
}

// Respond checks the message, asks the selected provider for a reply (retrying
// once against the default provider when a different one was requested and
// failed) and checks the reply before returning it.
func (o *Orchestrator) Respond(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	defer logging.LogDuration(ctx, "tutor_respond")()
	start := time.Now()
	log := logging.AppLogger.With(zap.Any("request_id", ctx.Value(logging.RequestIDKey)))

	provider := o.providers.Default()
	if req.Provider != "" {
		p, ok := o.providers.Get(req.Provider)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, req.Provider)
		}
		provider = p
	}

	input := o.scorer.Validate(req.Message)
	log.Info("input validated",
		zap.Bool("valid", input.IsValid),
		zap.Float64("score", input.SafetyScore),
		zap.Strings("issues", input.Issues),
	)
	if !input.IsValid {
		o.recorder.RecordSafetyBlock(StageInput)
		return nil, &SafetyError{Stage: StageInput, Validation: input}
	}

	opts := llm.GenerateOptions{
		Model:       req.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		History:     req.History,
	}
	result, err := o.generate(ctx, provider, req.Message, opts)
	fallbackUsed := false
	if err != nil {
		defaultName := o.providers.DefaultName()
		if provider.Name() == defaultName {
			return nil, &ProviderError{Provider: provider.Name(), Err: err}
		}
		log.Warn("provider failed, falling back to default",
			zap.String("provider", provider.Name()),
			zap.String("fallback", defaultName),
			zap.Error(err),
		)
		o.recorder.RecordFallback(provider.Name(), defaultName)

		fallback := o.providers.Default()
		// the requested model belongs to the failed provider
		opts.Model = ""
		result, err = o.generate(ctx, fallback, req.Message, opts)
		if err != nil {
			return nil, &ProviderError{Provider: fallback.Name(), Err: err}
		}
		fallbackUsed = true
	}

	output := o.scorer.Validate(result.Content)
	log.Info("response validated",
		zap.String("provider", result.Provider),
		zap.Bool("valid", output.IsValid),
		zap.Float64("score", output.SafetyScore),
	)
	if !output.IsValid {
		o.recorder.RecordSafetyBlock(StageResponse)
		return nil, &SafetyError{Stage: StageResponse, Validation: output}
	}

	result.SafetyScore = output.SafetyScore
	result.ProcessingTime = time.Since(start).Milliseconds()
	return &ChatResult{
		GenerationResult: *result,
		Input:            input,
		Output:           output,
		FallbackUsed:     fallbackUsed,
	}, nil
}

func (o *Orchestrator) generate(ctx context.Context, p llm.Provider, prompt string, opts llm.GenerateOptions) (*llm.GenerationResult, error) {
	result, err := p.Generate(ctx, prompt, opts)
	o.recorder.RecordProviderCall(p.Name(), err)
	if err != nil {
		logging.ErrorLogger.Error("provider call failed", zap.String("provider", p.Name()), zap.Error(err))
		return nil, err
	}
	o.recorder.RecordTokens(result.Provider, result.Tokens)
	return result, nil
}
