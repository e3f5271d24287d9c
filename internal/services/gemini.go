package services

import (
	"context"
	"fmt"
	"log"

	"google.golang.org/genai"

	"github.com/bobarin/factshorts/internal/models"
)

const geminiDefaultModel = "gemini-2.5-flash"

// GeminiScriptWriter generates scripts with the Gemini API.
type GeminiScriptWriter struct {
	apiKey string
	model  string
}

var _ ScriptWriter = (*GeminiScriptWriter)(nil)

func NewGeminiScriptWriter(apiKey, model string) *GeminiScriptWriter {
	if model == "" {
		model = geminiDefaultModel
	}
	return &GeminiScriptWriter{apiKey: apiKey, model: model}
}

func (s *GeminiScriptWriter) Name() string { return "gemini" }

func (s *GeminiScriptWriter) GenerateScript(ctx context.Context, fact string) (*models.Script, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  s.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.8),
		MaxOutputTokens:  500,
	}

	log.Printf("[Gemini script] Generating script (model=%s, factLen=%d)", s.model, len(fact))

	resp, err := client.Models.GenerateContent(ctx, s.model, genai.Text(buildScriptPrompt(fact)), config)
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return nil, fmt.Errorf("empty response from gemini")
	}

	script := ParseScript(text, fact)
	log.Printf("[Gemini script] Generated %q", script.Title)
	return script, nil
}
