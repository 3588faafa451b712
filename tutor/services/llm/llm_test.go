package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	openaioption "github.com/openai/openai-go/option"
)

// stubTransport answers every request with the same status and body and
// keeps the request bodies for inspection.
type stubTransport struct {
	status int
	body   string
	calls  int
	bodies []string
}

func (s *stubTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	s.calls++
	if req.Body != nil {
		b, _ := io.ReadAll(req.Body)
		s.bodies = append(s.bodies, string(b))
	}
	resp := &http.Response{
		StatusCode: s.status,
		Body:       io.NopCloser(strings.NewReader(s.body)),
		Header:     make(http.Header),
		Request:    req,
	}
	resp.Header.Set("Content-Type", "application/json")
	return resp, nil
}

func decodeBody(t *testing.T, body string) map[string]any {
	t.Helper()
	var params map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &params))
	return params
}

func history() []Message {
	return []Message{
		{Role: RoleUser, Content: "What is a fraction?"},
		{Role: RoleAssistant, Content: "A fraction is part of a whole."},
		{Role: RoleSystem, Content: "ignored"},
	}
}

func TestOpenAIProvider_Generate(t *testing.T) {
	rt := &stubTransport{status: http.StatusOK, body: `{
		"id": "chatcmpl-1",
		"object": "chat.completion",
		"created": 1700000000,
		"model": "gpt-4o-mini-2024-07-18",
		"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "Let us learn about halves."}}],
		"usage": {"prompt_tokens": 12, "completion_tokens": 18, "total_tokens": 30}
	}`}
	client := NewOpenAIClient("test-key", "",
		openaioption.WithHTTPClient(&http.Client{Transport: rt}),
		openaioption.WithMaxRetries(0),
	)
	p := NewOpenAIProvider(client, "gpt-4o-mini", Defaults{Temperature: 0.7, MaxTokens: 500})

	res, err := p.Generate(context.Background(), "Explain one half", GenerateOptions{History: history()})

	require.NoError(t, err)
	assert.Equal(t, "Let us learn about halves.", res.Content)
	assert.Equal(t, "openai", res.Provider)
	assert.Equal(t, "gpt-4o-mini-2024-07-18", res.Model)
	require.NotNil(t, res.Tokens)
	assert.Equal(t, 30, *res.Tokens)
	assert.Zero(t, res.SafetyScore)

	require.Len(t, rt.bodies, 1)
	body := rt.bodies[0]
	assert.Contains(t, body, "patient, encouraging educational tutor")
	assert.Contains(t, body, "A fraction is part of a whole.")
	assert.Contains(t, body, "Explain one half")
	assert.NotContains(t, body, "ignored")
	params := decodeBody(t, body)
	assert.Equal(t, float64(500), params["max_tokens"])
	assert.Equal(t, "gpt-4o-mini", params["model"])
}

func TestOpenAIProvider_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		target error
	}{
		{"server error", http.StatusInternalServerError, `{"error":{"message":"boom","type":"server_error"}}`, nil},
		{"no choices", http.StatusOK, `{"id":"x","choices":[],"usage":{"total_tokens":0}}`, ErrEmptyResponse},
		{"empty content", http.StatusOK, `{"id":"x","choices":[{"index":0,"message":{"role":"assistant","content":"  "}}]}`, ErrEmptyResponse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := &stubTransport{status: tt.status, body: tt.body}
			client := NewOpenAIClient("test-key", "",
				openaioption.WithHTTPClient(&http.Client{Transport: rt}),
				openaioption.WithMaxRetries(0),
			)
			p := NewOpenAIProvider(client, "", Defaults{})

			_, err := p.Generate(context.Background(), "hello", GenerateOptions{})

			require.Error(t, err)
			assert.Contains(t, err.Error(), "openai")
			if tt.target != nil {
				assert.ErrorIs(t, err, tt.target)
			}
		})
	}
}

func TestAnthropicProvider_Generate(t *testing.T) {
	rt := &stubTransport{status: http.StatusOK, body: `{
		"id": "msg_1",
		"type": "message",
		"role": "assistant",
		"model": "claude-3-5-sonnet-20240620",
		"content": [{"type": "text", "text": "Think of a pizza cut in two."}],
		"stop_reason": "end_turn",
		"stop_sequence": null,
		"usage": {"input_tokens": 20, "output_tokens": 10}
	}`}
	client := NewAnthropicClient("test-key",
		anthropicoption.WithHTTPClient(&http.Client{Transport: rt}),
		anthropicoption.WithMaxRetries(0),
	)
	p := NewAnthropicProvider(client, "", Defaults{Temperature: 0.5, MaxTokens: 256})
	temp := 0.2

	res, err := p.Generate(context.Background(), "Explain one half", GenerateOptions{History: history(), Temperature: &temp})

	require.NoError(t, err)
	assert.Equal(t, "Think of a pizza cut in two.", res.Content)
	assert.Equal(t, "anthropic", res.Provider)
	assert.Equal(t, "claude-3-5-sonnet-20240620", res.Model)
	require.NotNil(t, res.Tokens)
	assert.Equal(t, 30, *res.Tokens)

	require.Len(t, rt.bodies, 1)
	body := rt.bodies[0]
	params := decodeBody(t, body)
	assert.Contains(t, params, "system")
	assert.Contains(t, body, "patient, encouraging educational tutor")
	assert.Equal(t, 0.2, params["temperature"])
	assert.Equal(t, float64(256), params["max_tokens"])
	assert.NotContains(t, body, "ignored")
}

func TestAnthropicProvider_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"overloaded", 529, `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`},
		{"no text", http.StatusOK, `{"id":"m","type":"message","role":"assistant","model":"claude","content":[],"usage":{"input_tokens":1,"output_tokens":0}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := &stubTransport{status: tt.status, body: tt.body}
			client := NewAnthropicClient("test-key",
				anthropicoption.WithHTTPClient(&http.Client{Transport: rt}),
				anthropicoption.WithMaxRetries(0),
			)
			p := NewAnthropicProvider(client, "", Defaults{})

			_, err := p.Generate(context.Background(), "hello", GenerateOptions{})

			require.Error(t, err)
			assert.Contains(t, err.Error(), "anthropic")
		})
	}
}

type fakeGemini struct {
	resp *genai.GenerateContentResponse
	err  error
	got  GeminiRequest
}

func (f *fakeGemini) GenerateContent(_ context.Context, req GeminiRequest) (*genai.GenerateContentResponse, error) {
	f.got = req
	return f.resp, f.err
}

func TestGeminiProvider_Generate(t *testing.T) {
	fake := &fakeGemini{resp: &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Role: "model", Parts: []genai.Part{genai.Text("Halves are "), genai.Text("two equal parts.")}},
		}},
		UsageMetadata: &genai.UsageMetadata{TotalTokenCount: 42},
	}}
	p := NewGeminiProvider(fake, "gemini-1.5-pro", Defaults{Temperature: 0.7, MaxTokens: 300})

	res, err := p.Generate(context.Background(), "Explain one half", GenerateOptions{History: history()})

	require.NoError(t, err)
	assert.Equal(t, "Halves are two equal parts.", res.Content)
	assert.Equal(t, "google", res.Provider)
	assert.Equal(t, "gemini-1.5-pro", res.Model)
	require.NotNil(t, res.Tokens)
	assert.Equal(t, 42, *res.Tokens)

	assert.Equal(t, TutorSystemPrompt, fake.got.SystemInstruction)
	assert.Equal(t, "Explain one half", fake.got.Prompt)
	assert.Equal(t, int32(300), fake.got.MaxOutputTokens)
	require.Len(t, fake.got.History, 2)
	assert.Equal(t, "user", fake.got.History[0].Role)
	assert.Equal(t, "model", fake.got.History[1].Role)
}

func TestGeminiProvider_Errors(t *testing.T) {
	tests := []struct {
		name string
		fake *fakeGemini
		want string
	}{
		{"call fails", &fakeGemini{err: errors.New("unavailable")}, "unavailable"},
		{"no candidates", &fakeGemini{resp: &genai.GenerateContentResponse{}}, ErrEmptyResponse.Error()},
		{"blocked prompt", &fakeGemini{resp: &genai.GenerateContentResponse{
			PromptFeedback: &genai.PromptFeedback{BlockReason: genai.BlockReasonSafety},
		}}, "request blocked"},
		{"no text parts", &fakeGemini{resp: &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []genai.Part{}}}},
		}}, ErrEmptyResponse.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewGeminiProvider(tt.fake, "", Defaults{})
			_, err := p.Generate(context.Background(), "hello", GenerateOptions{})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "google")
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDefaults_Resolve(t *testing.T) {
	d := Defaults{Temperature: 0.7, MaxTokens: 800}

	model, temp, max := d.resolve(GenerateOptions{}, "base")
	assert.Equal(t, "base", model)
	assert.Equal(t, 0.7, temp)
	assert.Equal(t, 800, max)

	zero := 0.0
	model, temp, max = d.resolve(GenerateOptions{Model: "other", Temperature: &zero, MaxTokens: 50}, "base")
	assert.Equal(t, "other", model)
	assert.Equal(t, 0.0, temp)
	assert.Equal(t, 50, max)

	_, _, max = Defaults{}.resolve(GenerateOptions{}, "base")
	assert.Equal(t, 1000, max)
}
