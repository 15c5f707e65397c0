package chat

import (
	"time"

	"github.com/google/uuid"
)

// Sender identifies who authored a message in the client-side transcript.
type Sender string

const (
	SenderUser Sender = "user"
	SenderAI   Sender = "ai"
)

// Valid reports whether s is one of the known senders.
func (s Sender) Valid() bool {
	return s == SenderUser || s == SenderAI
}

// Message is one turn of the conversation as the client sees it.
// Only the in-flight AI message is ever rewritten, once its final text is known.
type Message struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	Sender Sender `json:"sender"`
}

// LogEntry is a Message as persisted by the log store.
type LogEntry struct {
	Message
	CreatedAt time.Time `json:"created_at"`
}

// NewID returns a time-ordered identifier so ids sort in creation order.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// NewMessage stamps a fresh id on a message.
func NewMessage(sender Sender, text string) Message {
	return Message{ID: NewID(), Text: text, Sender: sender}
}
