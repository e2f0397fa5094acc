package generation

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GeminiGenerator talks to the Gemini API and streams tokens as the model
// produces them.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

var _ StreamingGenerator = (*GeminiGenerator)(nil)

func NewGeminiGenerator(ctx context.Context, apiKey, model string) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiGenerator{
		client: client,
		model:  model,
	}, nil
}

func (g *GeminiGenerator) config(req *Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if req.SystemPrompt != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	return cfg
}

func (g *GeminiGenerator) resolveModel(req *Request) string {
	if req.Model != "" {
		return req.Model
	}
	return g.model
}

func (g *GeminiGenerator) Generate(ctx context.Context, req *Request) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.resolveModel(req), genai.Text(req.Prompt), g.config(req))
	if err != nil {
		return "", fmt.Errorf("gemini generation failed: %w", err)
	}
	return resp.Text(), nil
}

func (g *GeminiGenerator) GenerateStream(ctx context.Context, req *Request, emit func(fragment string) error) error {
	for resp, err := range g.client.Models.GenerateContentStream(ctx, g.resolveModel(req), genai.Text(req.Prompt), g.config(req)) {
		if err != nil {
			return fmt.Errorf("gemini stream failed: %w", err)
		}
		text := resp.Text()
		if text == "" {
			continue
		}
		if err := emit(text); err != nil {
			return err
		}
	}
	return nil
}
