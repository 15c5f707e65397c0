// Package chat orchestrates a user's conversation: it records turns, asks the
// AI service for a reply and turns failures into user-facing messages.
package chat

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/zhouzirui/mentor-relay/backend/internal/analysis/failure"
	"github.com/zhouzirui/mentor-relay/backend/internal/logger"
	"github.com/zhouzirui/mentor-relay/backend/internal/model/chat"
	"github.com/zhouzirui/mentor-relay/backend/internal/model/identity"
	"github.com/zhouzirui/mentor-relay/backend/internal/model/persona"
	"github.com/zhouzirui/mentor-relay/backend/internal/service/history"
)

var (
	ErrEmptyText       = errors.New("message text is empty")
	ErrReplyInFlight   = errors.New("a reply is already in progress")
	ErrSessionRequired = errors.New("an authenticated session is required")
	ErrPersonaNotFound = errors.New("persona not found")
)

// Replier produces AI replies from a transcript.
type Replier interface {
	GenerateReply(ctx context.Context, messages []chat.Message, systemInstruction string) (string, error)
	StreamReply(ctx context.Context, messages []chat.Message, systemInstruction string, onChunk func(string) error) (string, error)
}

// Reply is the outcome of one send. AI is the final state of the placeholder;
// Failure is set when AI carries a rendered error instead of a reply.
type Reply struct {
	User    chat.Message    `json:"user"`
	AI      chat.Message    `json:"ai"`
	Failure *failure.Report `json:"failure,omitempty"`
}

// Service keeps one in-memory conversation per user.
type Service struct {
	replier    Replier
	history    *history.Service
	personas   persona.Store
	classifier failure.Classifier

	mu     sync.Mutex
	convos map[string]*conversation
}

type conversation struct {
	mu       sync.Mutex
	loaded   bool
	inFlight bool
	messages []chat.Message
}

// NewService wires the reply source, the log facade and the persona catalogue.
func NewService(replier Replier, hist *history.Service, personas persona.Store, classifier failure.Classifier) *Service {
	return &Service{
		replier:    replier,
		history:    hist,
		personas:   personas,
		classifier: classifier,
		convos:     make(map[string]*conversation),
	}
}

// Conversation returns the user's transcript, loading it from the log on first use.
func (s *Service) Conversation(ctx context.Context, session *identity.Session) ([]chat.Message, error) {
	if !session.Valid() {
		return nil, ErrSessionRequired
	}

	c := s.load(ctx, session)
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]chat.Message(nil), c.messages...), nil
}

// Forget drops the cached conversation, e.g. on sign-out.
func (s *Service) Forget(userID string) {
	s.mu.Lock()
	delete(s.convos, userID)
	s.mu.Unlock()
}

// Send appends text as a user turn and waits for the complete reply.
func (s *Service) Send(ctx context.Context, session *identity.Session, personaID, text string) (Reply, error) {
	return s.exchange(ctx, session, personaID, text, nil, nil)
}

// Stream is Send with every reply chunk passed to onChunk as it arrives.
// The placeholder grows in place so Conversation reflects partial text.
func (s *Service) Stream(ctx context.Context, session *identity.Session, personaID, text string, onChunk func(string) error) (Reply, error) {
	return s.StreamTurn(ctx, session, personaID, text, nil, onChunk)
}

// StreamTurn is Stream that also hands the accepted user turn to onUser
// before the reply starts.
func (s *Service) StreamTurn(ctx context.Context, session *identity.Session, personaID, text string, onUser func(chat.Message), onChunk func(string) error) (Reply, error) {
	if onChunk == nil {
		onChunk = func(string) error { return nil }
	}
	return s.exchange(ctx, session, personaID, text, onUser, onChunk)
}

func (s *Service) exchange(ctx context.Context, session *identity.Session, personaID, text string, onUser func(chat.Message), onChunk func(string) error) (Reply, error) {
	if strings.TrimSpace(text) == "" {
		return Reply{}, ErrEmptyText
	}
	if !session.Valid() {
		return Reply{}, ErrSessionRequired
	}
	p, ok := s.personas.Resolve(personaID)
	if !ok {
		return Reply{}, ErrPersonaNotFound
	}

	c := s.load(ctx, session)

	userMsg := chat.NewMessage(chat.SenderUser, text)
	placeholder := chat.NewMessage(chat.SenderAI, "")

	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return Reply{}, ErrReplyInFlight
	}
	c.inFlight = true
	c.messages = append(c.messages, userMsg)
	transcript := append([]chat.Message(nil), c.messages...)
	c.messages = append(c.messages, placeholder)
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.inFlight = false
		c.mu.Unlock()
	}()

	// log writes outlive a cancelled request
	logCtx := context.WithoutCancel(ctx)
	s.history.Append(logCtx, session, userMsg)
	if onUser != nil {
		onUser(userMsg)
	}

	var (
		replyText string
		err       error
	)
	if onChunk == nil {
		replyText, err = s.replier.GenerateReply(ctx, transcript, p.Instruction)
	} else {
		replyText, err = s.replier.StreamReply(ctx, transcript, p.Instruction, func(chunk string) error {
			c.mu.Lock()
			c.replace(placeholder.ID, func(m *chat.Message) { m.Text += chunk })
			c.mu.Unlock()
			return onChunk(chunk)
		})
	}

	if err != nil {
		logger.SafeError("--- [CHAT ERROR] reply generation failed ---", err, logger.Fields{
			"user_id": session.UserID,
			"persona": p.ID,
		})

		report := s.classifier.Analyze(err)
		failed := chat.Message{ID: placeholder.ID, Text: report.Text, Sender: chat.SenderAI}

		c.mu.Lock()
		c.replace(placeholder.ID, func(m *chat.Message) { *m = failed })
		c.mu.Unlock()

		s.history.Append(logCtx, session, chat.Message{ID: placeholder.ID, Text: report.LogText(), Sender: chat.SenderAI})
		return Reply{User: userMsg, AI: failed, Failure: &report}, nil
	}

	final := chat.Message{ID: placeholder.ID, Text: replyText, Sender: chat.SenderAI}
	c.mu.Lock()
	c.replace(placeholder.ID, func(m *chat.Message) { *m = final })
	c.mu.Unlock()

	s.history.Append(logCtx, session, final)
	return Reply{User: userMsg, AI: final}, nil
}

func (s *Service) load(ctx context.Context, session *identity.Session) *conversation {
	s.mu.Lock()
	c, ok := s.convos[session.UserID]
	if !ok {
		c = &conversation{}
		s.convos[session.UserID] = c
	}
	s.mu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loaded {
		c.messages = history.Messages(s.history.Fetch(ctx, session, 0))
		c.loaded = true
		logger.InfoWithFields("conversation loaded", logger.Fields{
			"user_id":  session.UserID,
			"messages": len(c.messages),
		})
	}
	return c
}

// replace applies fn to the message with id. Callers hold c.mu.
func (c *conversation) replace(id string, fn func(*chat.Message)) {
	for i := len(c.messages) - 1; i >= 0; i-- {
		if c.messages[i].ID == id {
			fn(&c.messages[i])
			return
		}
	}
}
