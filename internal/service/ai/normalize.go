package ai

import (
	"github.com/zhouzirui/mentor-relay/backend/internal/model/chat"
)

// Plan is the request shape derived from a transcript.
type Plan struct {
	// Contents is the repaired, strictly alternating turn sequence starting
	// with a user turn. Empty when SingleShot is set.
	Contents []chat.Content
	// Prompt is the bare text used in single-shot mode.
	Prompt string
	// SingleShot is set when the transcript holds no user turn at all.
	SingleShot bool
}

// Normalize turns a chronological transcript into a generation plan.
//
// Turns before the first user turn are discarded. Remaining turns are kept
// only when they match the expected role, which starts at user and flips after
// every kept turn; a mismatching turn is dropped without flipping. Nothing is
// merged or reordered, so [user "hi", user "hi again", ai "hello"] becomes
// [user "hi", model "hello"].
func Normalize(messages []chat.Message) (Plan, error) {
	if len(messages) == 0 {
		return Plan{}, ErrEmptyHistory
	}

	contents := make([]chat.Content, 0, len(messages))
	for _, msg := range messages {
		contents = append(contents, chat.ContentFrom(msg))
	}

	first := -1
	for i, c := range contents {
		if c.Role == chat.RoleUser {
			first = i
			break
		}
	}

	if first < 0 {
		prompt := contents[len(contents)-1].Text()
		if prompt == "" {
			return Plan{}, ErrEmptyHistory
		}
		return Plan{Prompt: prompt, SingleShot: true}, nil
	}

	candidates := contents[first:]
	cleaned := make([]chat.Content, 0, len(candidates))
	expected := chat.RoleUser
	for _, c := range candidates {
		if c.Role != expected {
			continue
		}
		cleaned = append(cleaned, c)
		if expected == chat.RoleUser {
			expected = chat.RoleModel
		} else {
			expected = chat.RoleUser
		}
	}

	if len(cleaned) == 0 {
		// fall back to the most recent user turn
		for i := len(candidates) - 1; i >= 0; i-- {
			if candidates[i].Role == chat.RoleUser {
				return Plan{Contents: []chat.Content{candidates[i]}}, nil
			}
		}
		return Plan{}, ErrHistoryExhausted
	}

	return Plan{Contents: cleaned}, nil
}

// Alternates reports whether contents starts with a user turn and strictly
// alternates roles afterwards.
func Alternates(contents []chat.Content) bool {
	if len(contents) == 0 {
		return false
	}
	expected := chat.RoleUser
	for _, c := range contents {
		if c.Role != expected {
			return false
		}
		if expected == chat.RoleUser {
			expected = chat.RoleModel
		} else {
			expected = chat.RoleUser
		}
	}
	return true
}
