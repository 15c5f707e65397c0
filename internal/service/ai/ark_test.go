package ai

import (
	"context"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/mentor-relay/backend/internal/analysis/failure"
	"github.com/zhouzirui/mentor-relay/backend/internal/model/chat"
)

type fakeChatModel struct {
	reply  string
	chunks []string
	finish string
	inputs [][]*schema.Message
}

func (f *fakeChatModel) meta() *schema.ResponseMeta {
	if f.finish == "" {
		return nil
	}
	return &schema.ResponseMeta{FinishReason: f.finish}
}

func (f *fakeChatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.inputs = append(f.inputs, input)
	msg := schema.AssistantMessage(f.reply, nil)
	msg.ResponseMeta = f.meta()
	return msg, nil
}

func (f *fakeChatModel) Stream(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	f.inputs = append(f.inputs, input)
	msgs := make([]*schema.Message, 0, len(f.chunks))
	for _, c := range f.chunks {
		msgs = append(msgs, schema.AssistantMessage(c, nil))
	}
	if len(msgs) > 0 {
		msgs[len(msgs)-1].ResponseMeta = f.meta()
	}
	return schema.StreamReaderFromArray(msgs), nil
}

func (f *fakeChatModel) BindTools([]*schema.ToolInfo) error { return nil }

func TestArkGeneratorMapsRoles(t *testing.T) {
	fake := &fakeChatModel{reply: "Ship it."}
	gen, err := NewArkGenerator(context.Background(), fake, "ep-test")
	if err != nil {
		t.Fatalf("NewArkGenerator err: %v", err)
	}

	text, err := gen.Generate(context.Background(), Request{
		Contents: []chat.Content{
			{Role: chat.RoleUser, Parts: []chat.Part{{Text: "plan"}}},
			{Role: chat.RoleModel, Parts: []chat.Part{{Text: "why"}}},
			{Role: chat.RoleUser, Parts: []chat.Part{{Text: "speed"}}},
		},
		SystemInstruction: "Be direct.",
	})
	if err != nil {
		t.Fatalf("Generate err: %v", err)
	}
	if text != "Ship it." {
		t.Fatalf("unexpected reply: %q", text)
	}

	input := fake.inputs[0]
	wantRoles := []schema.RoleType{schema.System, schema.User, schema.Assistant, schema.User}
	if len(input) != len(wantRoles) {
		t.Fatalf("unexpected message count: %d", len(input))
	}
	for i, role := range wantRoles {
		if input[i].Role != role {
			t.Fatalf("message %d: got role %s want %s", i, input[i].Role, role)
		}
	}
	if input[0].Content != "Be direct." {
		t.Fatalf("unexpected system content: %q", input[0].Content)
	}
}

func TestArkGeneratorSingleShotHasNoSystemMessage(t *testing.T) {
	fake := &fakeChatModel{reply: "ok"}
	gen, err := NewArkGenerator(context.Background(), fake, "ep-test")
	if err != nil {
		t.Fatalf("NewArkGenerator err: %v", err)
	}

	if _, err := gen.Generate(context.Background(), Request{Prompt: "hello"}); err != nil {
		t.Fatalf("Generate err: %v", err)
	}

	input := fake.inputs[0]
	if len(input) != 1 || input[0].Role != schema.User || input[0].Content != "hello" {
		t.Fatalf("unexpected single-shot input: %+v", input)
	}
}

func TestArkGeneratorStream(t *testing.T) {
	fake := &fakeChatModel{chunks: []string{"Sta", "rt ", "fast."}}
	gen, err := NewArkGenerator(context.Background(), fake, "ep-test")
	if err != nil {
		t.Fatalf("NewArkGenerator err: %v", err)
	}

	var acc Accumulator
	err = gen.Stream(context.Background(), Request{Prompt: "go"}, func(chunk string) error {
		acc.Append(chunk)
		return nil
	})
	if err != nil {
		t.Fatalf("Stream err: %v", err)
	}
	if acc.String() != "Start fast." {
		t.Fatalf("unexpected streamed text: %q", acc.String())
	}
}

func TestArkGeneratorContentFilter(t *testing.T) {
	fake := &fakeChatModel{reply: "", chunks: []string{"Par", "tial"}, finish: "content_filter"}
	gen, err := NewArkGenerator(context.Background(), fake, "ep-test")
	if err != nil {
		t.Fatalf("NewArkGenerator err: %v", err)
	}

	if _, err := gen.Generate(context.Background(), Request{Prompt: "go"}); err == nil {
		t.Fatal("expected filtered Generate to fail")
	} else if got := failure.Classify(err.Error()); got != failure.ContentModerated {
		t.Fatalf("Generate error classified as %s", got)
	}

	var acc Accumulator
	err = gen.Stream(context.Background(), Request{Prompt: "go"}, func(chunk string) error {
		acc.Append(chunk)
		return nil
	})
	if err == nil {
		t.Fatal("expected filtered Stream to fail")
	}
	if got := failure.Classify(err.Error()); got != failure.ContentModerated {
		t.Fatalf("Stream error classified as %s", got)
	}
	if acc.String() != "Partial" {
		t.Fatalf("chunks before the filter should still be delivered, got %q", acc.String())
	}
}

func TestArkGeneratorStreamStopIsNotFiltered(t *testing.T) {
	fake := &fakeChatModel{chunks: []string{"done"}, finish: "stop"}
	gen, err := NewArkGenerator(context.Background(), fake, "ep-test")
	if err != nil {
		t.Fatalf("NewArkGenerator err: %v", err)
	}
	if err := gen.Stream(context.Background(), Request{Prompt: "go"}, func(string) error { return nil }); err != nil {
		t.Fatalf("Stream err: %v", err)
	}
}

func TestNewArkGeneratorRequiresModel(t *testing.T) {
	if _, err := NewArkGenerator(context.Background(), nil, "x"); err == nil {
		t.Fatal("expected error for nil chat model")
	}
}
