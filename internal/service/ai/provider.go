package ai

import (
	"context"
	"fmt"

	"github.com/zhouzirui/mentor-relay/backend/internal/config"
)

// NewGenerator builds the generator selected by cfg.Provider.
func NewGenerator(ctx context.Context, cfg config.AIConfig) (Generator, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("%w: %s credentials not configured", ErrUnavailable, cfg.Provider)
	}

	switch cfg.Provider {
	case config.ProviderArk:
		chatModel, err := cfg.NewChatModel(ctx)
		if err != nil {
			return nil, fmt.Errorf("init ark chat model: %w", err)
		}
		return NewArkGenerator(ctx, chatModel, cfg.Model)
	case config.ProviderGemini, "":
		return NewGeminiGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	default:
		return nil, fmt.Errorf("unsupported ai provider %q", cfg.Provider)
	}
}
