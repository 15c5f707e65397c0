package speech

import (
	"context"
	"errors"
	"sync"

	"github.com/zhouzirui/mentor-relay/backend/internal/model/speech"
)

// ErrSuperseded is returned by Speak when a newer utterance replaced it.
var ErrSuperseded = errors.New("utterance superseded")

// Playback serializes utterances for one listener: at most one synthesis is
// pending, and starting a new one cancels the previous.
type Playback struct {
	synth Synthesizer

	mu     sync.Mutex
	cancel context.CancelFunc
	seq    uint64
}

// NewPlayback returns a Playback over synth.
func NewPlayback(synth Synthesizer) *Playback {
	return &Playback{synth: synth}
}

// Speak cancels any pending utterance and synthesizes req.
func (p *Playback) Speak(ctx context.Context, req speech.TTSRequest) (*speech.TTSResponse, error) {
	ctx, cancel := context.WithCancel(ctx)

	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	p.seq++
	seq := p.seq
	p.cancel = cancel
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		if p.seq == seq {
			p.cancel = nil
		}
		p.mu.Unlock()
		cancel()
	}()

	resp, err := p.synth.Synthesize(ctx, req)
	if err != nil && ctx.Err() != nil {
		p.mu.Lock()
		superseded := p.seq != seq
		p.mu.Unlock()
		if superseded {
			return nil, ErrSuperseded
		}
		return nil, ctx.Err()
	}
	return resp, err
}

// Cancel aborts the pending utterance, if any.
func (p *Playback) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}
