package types

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode/utf8"

	"tutor/tutor/sources/psql/models"

	"github.com/go-playground/validator/v10"
)

const (
	MaxMessageRunes     = 10000
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	// report fields by their JSON names
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	_ = validate.RegisterValidation("maxrunes", func(fl validator.FieldLevel) bool {
		return utf8.RuneCountInString(fl.Field().String()) <= MaxMessageRunes
	})
}

type ChatRequest struct {
	Message     string   `json:"message" validate:"required,maxrunes"`
	SessionID   string   `json:"sessionId,omitempty" validate:"omitempty,uuid"`
	Provider    string   `json:"provider,omitempty" validate:"omitempty,oneof=openai anthropic google"`
	Model       string   `json:"model,omitempty" validate:"omitempty,max=100"`
	Temperature *float64 `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	MaxTokens   int      `json:"maxTokens,omitempty" validate:"omitempty,gte=1,lte=8192"`
}

type ValidateRequest struct {
	Text string `json:"text" validate:"required,maxrunes"`
}

type HistoryQuery struct {
	SessionID string `json:"sessionId" validate:"required,uuid"`
	Limit     int    `json:"limit" validate:"gte=1,lte=200"`
	Offset    int    `json:"offset" validate:"gte=0"`
}

type PageQuery struct {
	Limit  int `json:"limit" validate:"gte=1,lte=200"`
	Offset int `json:"offset" validate:"gte=0"`
}

type ChatMetadata struct {
	Provider       string  `json:"provider"`
	Model          string  `json:"model"`
	Tokens         *int    `json:"tokens"`
	SafetyScore    float64 `json:"safetyScore"`
	ProcessingTime int64   `json:"processingTime"`
	FallbackUsed   bool    `json:"fallbackUsed"`
}

type ChatResponse struct {
	SessionID   string             `json:"sessionId"`
	Message     models.ChatMessage `json:"message"`
	UserMessage models.ChatMessage `json:"userMessage"`
	Metadata    ChatMetadata       `json:"metadata"`
}

type HistoryResponse struct {
	SessionID string               `json:"sessionId"`
	Title     string               `json:"title"`
	Messages  []models.ChatMessage `json:"messages"`
	Limit     int                  `json:"limit"`
	Offset    int                  `json:"offset"`
	Cached    bool                 `json:"cached"`
}

type ExportResponse struct {
	SessionID string `json:"sessionId"`
	Key       string `json:"key"`
}

// ValidationError carries one readable message per rejected field.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Messages, "; ")
}

func NewValidationError(messages ...string) *ValidationError {
	return &ValidationError{Messages: messages}
}

// Check is Validate with the failure converted to a *ValidationError.
func Check(v any) error {
	if err := validate.Struct(v); err != nil {
		return NewValidationError(ValidationMessages(err)...)
	}
	return nil
}

// ValidationMessages turns validator errors into readable sentences.
func ValidationMessages(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, fieldMessage(fe))
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "maxrunes":
		return fmt.Sprintf("%s must be at most %d characters", fe.Field(), MaxMessageRunes)
	case "uuid":
		return fmt.Sprintf("%s must be a valid UUID", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "lte", "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid (%s)", fe.Field(), fe.Tag())
	}
}
