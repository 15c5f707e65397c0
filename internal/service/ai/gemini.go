package ai

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GeminiGenerator calls the Gemini API through the genai SDK.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

// NewGeminiGenerator creates a Gemini API client for model.
func NewGeminiGenerator(ctx context.Context, apiKey, model string) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GeminiGenerator{client: client, model: model}, nil
}

func (g *GeminiGenerator) Name() string {
	return "gemini/" + g.model
}

func (g *GeminiGenerator) Generate(ctx context.Context, req Request) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, toGenaiContents(req), toGenaiConfig(req))
	if err != nil {
		return "", err
	}
	if err := blockedError(resp); err != nil {
		return "", err
	}
	return resp.Text(), nil
}

func (g *GeminiGenerator) Stream(ctx context.Context, req Request, onChunk func(string) error) error {
	for resp, err := range g.client.Models.GenerateContentStream(ctx, g.model, toGenaiContents(req), toGenaiConfig(req)) {
		if err != nil {
			return err
		}
		if err := blockedError(resp); err != nil {
			return err
		}
		chunk := resp.Text()
		if chunk == "" {
			continue
		}
		if err := onChunk(chunk); err != nil {
			return err
		}
	}
	return nil
}

func (g *GeminiGenerator) Ping(ctx context.Context) error {
	if _, err := g.client.Models.Get(ctx, g.model, nil); err != nil {
		return fmt.Errorf("model %s unavailable: %w", g.model, err)
	}
	return nil
}

func toGenaiContents(req Request) []*genai.Content {
	if req.SingleShot() {
		return genai.Text(req.Prompt)
	}

	contents := make([]*genai.Content, 0, len(req.Contents))
	for _, c := range req.Contents {
		parts := make([]*genai.Part, 0, len(c.Parts))
		for _, p := range c.Parts {
			parts = append(parts, genai.NewPartFromText(p.Text))
		}
		contents = append(contents, &genai.Content{Role: string(c.Role), Parts: parts})
	}
	return contents
}

func toGenaiConfig(req Request) *genai.GenerateContentConfig {
	if req.SystemInstruction == "" {
		return nil
	}
	return &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: req.SystemInstruction}}},
	}
}

// blockedError surfaces moderation blocks, which otherwise arrive as an
// empty text with no error.
func blockedError(resp *genai.GenerateContentResponse) error {
	if resp == nil {
		return nil
	}
	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" {
		return fmt.Errorf("prompt blocked: %s %s", fb.BlockReason, fb.BlockReasonMessage)
	}
	if len(resp.Candidates) > 0 {
		switch reason := resp.Candidates[0].FinishReason; reason {
		case genai.FinishReasonSafety,
			genai.FinishReasonProhibitedContent,
			genai.FinishReasonBlocklist,
			genai.FinishReasonSPII,
			genai.FinishReasonImageSafety:
			return fmt.Errorf("response blocked: finish reason %s", reason)
		}
	}
	return nil
}
