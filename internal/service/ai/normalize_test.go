package ai_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/zhouzirui/mentor-relay/backend/internal/model/chat"
	"github.com/zhouzirui/mentor-relay/backend/internal/service/ai"
)

func msg(sender chat.Sender, text string) chat.Message {
	return chat.NewMessage(sender, text)
}

func content(role chat.Role, text string) chat.Content {
	return chat.Content{Role: role, Parts: []chat.Part{{Text: text}}}
}

func TestNormalizeDropsMismatchedTurns(t *testing.T) {
	plan, err := ai.Normalize([]chat.Message{
		msg(chat.SenderUser, "hi"),
		msg(chat.SenderUser, "hi again"),
		msg(chat.SenderAI, "hello"),
	})
	if err != nil {
		t.Fatalf("Normalize err: %v", err)
	}

	want := []chat.Content{content(chat.RoleUser, "hi"), content(chat.RoleModel, "hello")}
	if !reflect.DeepEqual(plan.Contents, want) {
		t.Fatalf("unexpected contents: got %+v want %+v", plan.Contents, want)
	}
	if plan.SingleShot {
		t.Fatal("expected multi-turn plan")
	}
}

func TestNormalizeSkipsLeadingModelTurns(t *testing.T) {
	plan, err := ai.Normalize([]chat.Message{
		msg(chat.SenderAI, "Welcome. What are you building?"),
		msg(chat.SenderUser, "a rocket"),
		msg(chat.SenderAI, "Why?"),
		msg(chat.SenderAI, "Be specific."),
		msg(chat.SenderUser, "to reach orbit"),
	})
	if err != nil {
		t.Fatalf("Normalize err: %v", err)
	}

	want := []chat.Content{
		content(chat.RoleUser, "a rocket"),
		content(chat.RoleModel, "Why?"),
		content(chat.RoleUser, "to reach orbit"),
	}
	if !reflect.DeepEqual(plan.Contents, want) {
		t.Fatalf("unexpected contents: got %+v want %+v", plan.Contents, want)
	}
}

func TestNormalizeSingleShotWithoutUserTurn(t *testing.T) {
	plan, err := ai.Normalize([]chat.Message{
		msg(chat.SenderAI, "first"),
		msg(chat.SenderAI, "second"),
	})
	if err != nil {
		t.Fatalf("Normalize err: %v", err)
	}
	if !plan.SingleShot {
		t.Fatal("expected single-shot plan")
	}
	if plan.Prompt != "second" {
		t.Fatalf("unexpected prompt: %q", plan.Prompt)
	}
	if len(plan.Contents) != 0 {
		t.Fatalf("single-shot plan should carry no contents: %+v", plan.Contents)
	}
}

func TestNormalizeErrors(t *testing.T) {
	if _, err := ai.Normalize(nil); !errors.Is(err, ai.ErrEmptyHistory) {
		t.Fatalf("expected ErrEmptyHistory for empty input, got %v", err)
	}

	_, err := ai.Normalize([]chat.Message{msg(chat.SenderAI, "")})
	if !errors.Is(err, ai.ErrEmptyHistory) {
		t.Fatalf("expected ErrEmptyHistory for empty single-shot prompt, got %v", err)
	}
}

func TestNormalizeOutputAlternates(t *testing.T) {
	senders := []chat.Sender{chat.SenderAI, chat.SenderUser, chat.SenderUser, chat.SenderAI, chat.SenderAI, chat.SenderUser, chat.SenderUser, chat.SenderAI}
	transcript := make([]chat.Message, 0, len(senders))
	for i, s := range senders {
		transcript = append(transcript, msg(s, string(rune('a'+i))))
	}

	plan, err := ai.Normalize(transcript)
	if err != nil {
		t.Fatalf("Normalize err: %v", err)
	}
	if !ai.Alternates(plan.Contents) {
		t.Fatalf("contents do not alternate: %+v", plan.Contents)
	}
	if len(plan.Contents) > len(transcript) {
		t.Fatalf("normalization grew the transcript: %d > %d", len(plan.Contents), len(transcript))
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	plan, err := ai.Normalize([]chat.Message{
		msg(chat.SenderUser, "one"),
		msg(chat.SenderUser, "two"),
		msg(chat.SenderAI, "three"),
		msg(chat.SenderUser, "four"),
	})
	if err != nil {
		t.Fatalf("Normalize err: %v", err)
	}

	again := make([]chat.Message, 0, len(plan.Contents))
	for _, c := range plan.Contents {
		sender := chat.SenderUser
		if c.Role == chat.RoleModel {
			sender = chat.SenderAI
		}
		again = append(again, chat.Message{Text: c.Text(), Sender: sender})
	}

	second, err := ai.Normalize(again)
	if err != nil {
		t.Fatalf("second Normalize err: %v", err)
	}
	if !reflect.DeepEqual(second.Contents, plan.Contents) {
		t.Fatalf("normalization not idempotent: got %+v want %+v", second.Contents, plan.Contents)
	}
}

func TestAlternates(t *testing.T) {
	cases := []struct {
		name string
		in   []chat.Content
		want bool
	}{
		{"empty", nil, false},
		{"starts with model", []chat.Content{content(chat.RoleModel, "x")}, false},
		{"single user", []chat.Content{content(chat.RoleUser, "x")}, true},
		{"repeated user", []chat.Content{content(chat.RoleUser, "x"), content(chat.RoleUser, "y")}, false},
	}
	for _, tc := range cases {
		if got := ai.Alternates(tc.in); got != tc.want {
			t.Errorf("%s: got %v want %v", tc.name, got, tc.want)
		}
	}
}
