package ai

import (
	"context"

	"github.com/zhouzirui/mentor-relay/backend/internal/model/chat"
)

// Request is one call to the upstream generation API. Either Contents
// (multi-turn) or Prompt (single-shot) is set.
type Request struct {
	Contents          []chat.Content
	Prompt            string
	SystemInstruction string
}

// SingleShot reports whether the request carries a bare prompt.
func (r Request) SingleShot() bool {
	return len(r.Contents) == 0
}

// Generator is an upstream generation API.
type Generator interface {
	Name() string
	Generate(ctx context.Context, req Request) (string, error)
	// Stream delivers text chunks to onChunk in arrival order. An error from
	// onChunk aborts the stream and is returned.
	Stream(ctx context.Context, req Request, onChunk func(string) error) error
	// Ping checks that the configured model is reachable.
	Ping(ctx context.Context) error
}
