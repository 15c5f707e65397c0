// Package speech is the optional text-to-speech capability. Callers detect it
// once and must handle the Unavailable variant.
package speech

import (
	"context"

	"github.com/zhouzirui/mentor-relay/backend/internal/config"
	"github.com/zhouzirui/mentor-relay/backend/internal/logger"
	"github.com/zhouzirui/mentor-relay/backend/internal/model/speech"
)

// Synthesizer turns text into audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, req speech.TTSRequest) (*speech.TTSResponse, error)
}

// Capability is either Available or Unavailable.
type Capability interface {
	Synthesizer() (Synthesizer, bool)
}

// Available carries a usable synthesizer.
type Available struct {
	Handle Synthesizer
}

func (a Available) Synthesizer() (Synthesizer, bool) { return a.Handle, a.Handle != nil }

// Unavailable means speech output is not configured.
type Unavailable struct {
	Reason string
}

func (Unavailable) Synthesizer() (Synthesizer, bool) { return nil, false }

// Detect returns Available when TTS credentials are configured.
func Detect(cfg config.SpeechConfig) Capability {
	if !cfg.Enabled {
		logger.Log.Info("speech output disabled: SPEECH_APP_ID / SPEECH_ACCESS_TOKEN not set")
		return Unavailable{Reason: "speech credentials not configured"}
	}

	synth, err := NewVolcengineSynthesizer(speech.SpeechConfig{
		AppID:       cfg.AppID,
		AccessToken: cfg.AccessToken,
		Endpoint:    cfg.Endpoint,
		Voice:       cfg.Voice,
		Speed:       cfg.Speed,
		Volume:      cfg.Volume,
		Language:    cfg.Language,
		Timeout:     cfg.Timeout,
	})
	if err != nil {
		logger.Log.Warnf("speech output unavailable: %v", err)
		return Unavailable{Reason: err.Error()}
	}
	return Available{Handle: synth}
}
