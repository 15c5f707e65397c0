package ai

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyHistory means there was nothing to send: no messages, or a
	// single-shot fallback whose last message has no text.
	ErrEmptyHistory = errors.New("conversation history is empty")
	// ErrHistoryExhausted means repair left no usable user turn.
	ErrHistoryExhausted = errors.New("no valid user turn left after history repair")
	// ErrMissingInstruction rejects multi-turn calls without a system instruction.
	ErrMissingInstruction = errors.New("system instruction is required")
	// ErrUnavailable is returned when no generator is configured.
	ErrUnavailable = errors.New("ai service unavailable")
)

// GenerationError wraps any failure of the upstream generation call.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("AI service failure: %v", e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

func wrapGeneration(err error) error {
	if err == nil {
		return nil
	}
	var genErr *GenerationError
	if errors.As(err, &genErr) {
		return err
	}
	return &GenerationError{Err: err}
}
