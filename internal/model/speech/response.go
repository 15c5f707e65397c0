package speech

import "time"

// TTSResponse holds a synthesized utterance.
type TTSResponse struct {
	SessionID string    `json:"sessionId"`
	AudioData []byte    `json:"-"`
	Duration  int64     `json:"duration"` // milliseconds
	Format    string    `json:"format"`
	RequestID string    `json:"requestId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
