package types

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChatRequestValidation(t *testing.T) {
	hot := 2.5
	ok := 1.0
	tests := []struct {
		name string
		req  ChatRequest
		want []string
	}{
		{"valid minimal", ChatRequest{Message: "What is a noun?"}, nil},
		{"valid full", ChatRequest{
			Message: "hi", SessionID: "3f1c9a52-8d1e-4f5a-9b7c-2f8e4d6a1b0c",
			Provider: "google", Temperature: &ok, MaxTokens: 512,
		}, nil},
		{"missing message", ChatRequest{}, []string{"message is required"}},
		{"too long", ChatRequest{Message: strings.Repeat("é", MaxMessageRunes+1)}, []string{"message must be at most 10000 characters"}},
		{"bad session", ChatRequest{Message: "hi", SessionID: "abc"}, []string{"sessionId must be a valid UUID"}},
		{"bad provider", ChatRequest{Message: "hi", Provider: "mistral"}, []string{"provider must be one of: openai anthropic google"}},
		{"bad temperature", ChatRequest{Message: "hi", Temperature: &hot}, []string{"temperature must be at most 2"}},
		{"bad max tokens", ChatRequest{Message: "hi", MaxTokens: 9000}, []string{"maxTokens must be at most 8192"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate.Struct(tt.req)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.want, ValidationMessages(err))
		})
	}
}

func TestRuneLimitCountsRunes(t *testing.T) {
	// 10000 two-byte runes is within the limit even though it is 20000 bytes
	assert.NoError(t, validate.Struct(ChatRequest{Message: strings.Repeat("é", MaxMessageRunes)}))
}

func TestHistoryQueryValidation(t *testing.T) {
	assert.NoError(t, validate.Struct(HistoryQuery{SessionID: "3f1c9a52-8d1e-4f5a-9b7c-2f8e4d6a1b0c", Limit: 50}))
	err := validate.Struct(HistoryQuery{Limit: 500, Offset: -1})
	assert.ElementsMatch(t, []string{
		"sessionId is required",
		"limit must be at most 200",
		"offset must be at least 0",
	}, ValidationMessages(err))
}
