package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/mentor-relay/backend/internal/model/chat"
)

// ArkGenerator runs requests through an eino chat model, typically Ark.
type ArkGenerator struct {
	chatModel  model.ChatModel
	name       string
	withSystem compose.Runnable[map[string]any, *schema.Message]
	bare       compose.Runnable[map[string]any, *schema.Message]
}

// NewArkGenerator compiles the prompt chains around chatModel.
func NewArkGenerator(ctx context.Context, chatModel model.ChatModel, name string) (*ArkGenerator, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("chat model is required")
	}

	withSystem, err := compileChain(ctx, chatModel,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", false),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	bare, err := compileChain(ctx, chatModel, schema.MessagesPlaceholder("history", false))
	if err != nil {
		return nil, fmt.Errorf("failed to compile single-shot chain: %w", err)
	}

	return &ArkGenerator{
		chatModel:  chatModel,
		name:       name,
		withSystem: withSystem,
		bare:       bare,
	}, nil
}

func compileChain(ctx context.Context, chatModel model.ChatModel, templates ...schema.MessagesTemplate) (compose.Runnable[map[string]any, *schema.Message], error) {
	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(prompt.FromMessages(schema.FString, templates...))
	chain.AppendChatModel(chatModel)
	return chain.Compile(ctx)
}

func (a *ArkGenerator) Name() string {
	return "ark/" + a.name
}

func (a *ArkGenerator) Generate(ctx context.Context, req Request) (string, error) {
	runnable, input := a.route(req)
	resp, err := runnable.Invoke(ctx, input)
	if err != nil {
		return "", err
	}
	if err := filteredError(resp); err != nil {
		return "", err
	}
	return resp.Content, nil
}

func (a *ArkGenerator) Stream(ctx context.Context, req Request, onChunk func(string) error) error {
	runnable, input := a.route(req)
	stream, err := runnable.Stream(ctx, input)
	if err != nil {
		return err
	}
	defer stream.Close()

	var (
		received []*schema.Message
		streamed strings.Builder
	)
	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			return recvErr
		}
		if chunk == nil {
			continue
		}
		received = append(received, chunk)
		if chunk.Content == "" {
			continue
		}
		streamed.WriteString(chunk.Content)
		if err := onChunk(chunk.Content); err != nil {
			return err
		}
	}

	if len(received) == 0 {
		return nil
	}
	merged, err := schema.ConcatMessages(received)
	if err != nil {
		return fmt.Errorf("failed to merge streamed chunks: %w", err)
	}
	if merged.Content != streamed.String() {
		return fmt.Errorf("merged reply diverged from streamed text: %d vs %d bytes", len(merged.Content), streamed.Len())
	}
	return filteredError(merged)
}

// filteredError reports replies the provider cut short for moderation.
func filteredError(msg *schema.Message) error {
	if msg == nil || msg.ResponseMeta == nil {
		return nil
	}
	if msg.ResponseMeta.FinishReason == "content_filter" {
		return fmt.Errorf("response blocked: finish reason %s", msg.ResponseMeta.FinishReason)
	}
	return nil
}

// Ping only checks local wiring; Ark offers no cheap model lookup.
func (a *ArkGenerator) Ping(context.Context) error {
	if a.chatModel == nil {
		return ErrUnavailable
	}
	return nil
}

func (a *ArkGenerator) route(req Request) (compose.Runnable[map[string]any, *schema.Message], map[string]any) {
	input := map[string]any{"history": toSchemaMessages(req)}
	if req.SystemInstruction == "" {
		return a.bare, input
	}
	input["system"] = req.SystemInstruction
	return a.withSystem, input
}

func toSchemaMessages(req Request) []*schema.Message {
	if req.SingleShot() {
		return []*schema.Message{schema.UserMessage(req.Prompt)}
	}

	history := make([]*schema.Message, 0, len(req.Contents))
	for _, c := range req.Contents {
		switch c.Role {
		case chat.RoleUser:
			history = append(history, schema.UserMessage(c.Text()))
		case chat.RoleModel:
			history = append(history, schema.AssistantMessage(c.Text(), nil))
		}
	}
	return history
}
