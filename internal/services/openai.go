package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/bobarin/factshorts/internal/models"
)

// OpenAIScriptWriter generates scripts through the chat completions API.
// Any OpenAI-compatible endpoint works (OpenRouter included) by setting baseURL.
type OpenAIScriptWriter struct {
	client   *openai.Client
	model    string
	jsonMode bool
}

var _ ScriptWriter = (*OpenAIScriptWriter)(nil)

func NewOpenAIScriptWriter(apiKey, baseURL, model string) *OpenAIScriptWriter {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIScriptWriter{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		// not every OpenAI-compatible router honours response_format
		jsonMode: baseURL == "",
	}
}

func (s *OpenAIScriptWriter) Name() string { return "openai" }

// GenerateScript asks the model for the script JSON. A response that cannot
// be parsed still yields a fallback script; only transport failures error.
func (s *OpenAIScriptWriter) GenerateScript(ctx context.Context, fact string) (*models.Script, error) {
	req := openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildScriptPrompt(fact),
			},
		},
		MaxTokens:   500,
		Temperature: 0.8,
	}
	if s.jsonMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	log.Printf("[OpenAI script] Generating script (model=%s, factLen=%d)", s.model, len(fact))

	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from openai")
	}

	rawContent := resp.Choices[0].Message.Content
	script := ParseScript(rawContent, fact)

	log.Printf("[OpenAI script] Generated %q (%d words, tokens=%d)",
		script.Title, len(strings.Fields(script.Script)), resp.Usage.TotalTokens)
	return script, nil
}
