package ai

import (
	"context"
	"time"

	"github.com/zhouzirui/mentor-relay/backend/internal/logger"
	"github.com/zhouzirui/mentor-relay/backend/internal/model/chat"
)

// Options tunes how the Service talks to its generator.
type Options struct {
	// Streaming enables chunked delivery in StreamReply.
	Streaming bool
	// Timeout bounds a single generation call. Zero means no limit.
	Timeout time.Duration
}

// Service turns client transcripts into upstream generation calls.
type Service struct {
	gen  Generator
	opts Options
}

// NewService wraps gen. A nil generator yields a Service that reports
// ErrUnavailable on every call.
func NewService(gen Generator, opts Options) *Service {
	return &Service{gen: gen, opts: opts}
}

// StreamingEnabled reports whether replies are streamed chunk by chunk.
func (s *Service) StreamingEnabled() bool {
	return s.gen != nil && s.opts.Streaming
}

// Provider names the active generator.
func (s *Service) Provider() string {
	if s.gen == nil {
		return "none"
	}
	return s.gen.Name()
}

// GenerateReply normalizes messages and returns the complete reply text.
func (s *Service) GenerateReply(ctx context.Context, messages []chat.Message, systemInstruction string) (string, error) {
	req, err := s.prepare(messages, systemInstruction)
	if err != nil {
		return "", err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	text, err := s.gen.Generate(ctx, req)
	if err != nil {
		logger.SafeError("generation failed", err, logger.Fields{"provider": s.gen.Name(), "single_shot": req.SingleShot()})
		return "", wrapGeneration(err)
	}

	logger.InfoWithFields("reply generated", logger.Fields{
		"provider":    s.gen.Name(),
		"turns":       len(req.Contents),
		"single_shot": req.SingleShot(),
		"length":      len(text),
		"elapsed_ms":  time.Since(start).Milliseconds(),
	})
	return text, nil
}

// StreamReply delivers the reply to onChunk in arrival order and returns the
// concatenation of every delivered chunk. With streaming disabled the whole
// reply arrives as one chunk.
func (s *Service) StreamReply(ctx context.Context, messages []chat.Message, systemInstruction string, onChunk func(string) error) (string, error) {
	if !s.StreamingEnabled() {
		text, err := s.GenerateReply(ctx, messages, systemInstruction)
		if err != nil {
			return "", err
		}
		if text != "" {
			if err := onChunk(text); err != nil {
				return "", err
			}
		}
		return text, nil
	}

	req, err := s.prepare(messages, systemInstruction)
	if err != nil {
		return "", err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var acc Accumulator
	var sinkErr error
	err = s.gen.Stream(ctx, req, func(chunk string) error {
		acc.Append(chunk)
		if err := onChunk(chunk); err != nil {
			sinkErr = err
			return err
		}
		return nil
	})
	if sinkErr != nil {
		// the consumer went away; not an upstream failure
		return acc.String(), sinkErr
	}
	if err != nil {
		logger.SafeError("streaming generation failed", err, logger.Fields{"provider": s.gen.Name(), "chunks": acc.Chunks()})
		return "", wrapGeneration(err)
	}

	logger.InfoWithFields("reply streamed", logger.Fields{
		"provider": s.gen.Name(),
		"chunks":   acc.Chunks(),
		"length":   len(acc.String()),
	})
	return acc.String(), nil
}

// Status is the readiness of the upstream generator.
type Status struct {
	Ready    bool   `json:"ready"`
	Provider string `json:"provider"`
	Error    string `json:"error,omitempty"`
}

// Status pings the generator.
func (s *Service) Status(ctx context.Context) Status {
	if s.gen == nil {
		return Status{Provider: s.Provider(), Error: ErrUnavailable.Error()}
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	if err := s.gen.Ping(ctx); err != nil {
		logger.WarnWithFields("ai service not ready", logger.Fields{"provider": s.gen.Name(), "error": err.Error()})
		return Status{Provider: s.gen.Name(), Error: err.Error()}
	}
	return Status{Ready: true, Provider: s.gen.Name()}
}

func (s *Service) prepare(messages []chat.Message, systemInstruction string) (Request, error) {
	if s.gen == nil {
		return Request{}, ErrUnavailable
	}

	plan, err := Normalize(messages)
	if err != nil {
		return Request{}, err
	}

	if plan.SingleShot {
		return Request{Prompt: plan.Prompt}, nil
	}

	if systemInstruction == "" {
		return Request{}, ErrMissingInstruction
	}
	return Request{Contents: plan.Contents, SystemInstruction: systemInstruction}, nil
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opts.Timeout)
}
