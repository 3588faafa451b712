package tutor

import (
	"errors"
	"fmt"

	"tutor/tutor/services/safety"
)

const (
	StageInput    = "input"
	StageResponse = "response"
)

// ErrUnknownProvider is returned when a request names a provider that is not registered.
var ErrUnknownProvider = errors.New("unknown provider")

// SafetyError reports text that failed the safety scorer.
type SafetyError struct {
	Stage      string
	Validation safety.Validation
}

func (e *SafetyError) Error() string {
	if e.Stage == StageResponse {
		return fmt.Sprintf("generated response blocked by safety check (score %.2f)", e.Validation.SafetyScore)
	}
	return fmt.Sprintf("message blocked by safety check (score %.2f)", e.Validation.SafetyScore)
}

// ProviderError wraps the last provider failure of a request.
type ProviderError struct {
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s failed: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
