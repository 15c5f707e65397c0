package stream

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/mentor-relay/backend/internal/analysis/failure"
	chatHandler "github.com/zhouzirui/mentor-relay/backend/internal/handler/chat"
	"github.com/zhouzirui/mentor-relay/backend/internal/logger"
	"github.com/zhouzirui/mentor-relay/backend/internal/model/identity"
	"github.com/zhouzirui/mentor-relay/backend/internal/model/persona"
	chatService "github.com/zhouzirui/mentor-relay/backend/internal/service/chat"
	"github.com/zhouzirui/mentor-relay/backend/pkg/utils"
)

// Handler streams AI replies via Server-Sent Events.
type Handler struct {
	chatSvc  *chatService.Service
	personas persona.Store
}

// New creates a new stream handler
func New(chatSvc *chatService.Service, personas persona.Store) *Handler {
	return &Handler{
		chatSvc:  chatSvc,
		personas: personas,
	}
}

// RegisterRoutes mounts POST /stream. It expects a session on the request context.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/stream", h.handleStream)
}

// StreamResponse represents a streaming response chunk
type StreamResponse struct {
	Event     string             `json:"event"`
	Content   string             `json:"content,omitempty"`
	PersonaID string             `json:"personaId,omitempty"`
	Reply     *chatService.Reply `json:"reply,omitempty"`
	Failure   *failure.Report    `json:"failure,omitempty"`
	Finished  bool               `json:"finished,omitempty"`
	Error     string             `json:"error,omitempty"`
}

// sseStream defers the SSE headers until the first event, so validation
// errors can still be answered with a plain JSON status.
type sseStream struct {
	w       http.ResponseWriter
	flusher http.Flusher
	persona persona.Persona
	started bool
}

func (s *sseStream) begin() error {
	if s.started {
		return nil
	}
	s.started = true
	utils.SetupSSEHeaders(s.w)
	s.w.WriteHeader(http.StatusOK)
	return s.send(StreamResponse{Event: "start", PersonaID: s.persona.ID, Content: s.persona.Name})
}

func (s *sseStream) send(resp StreamResponse) error {
	return utils.SendSSEEvent(s.w, s.flusher, resp.Event, resp)
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	var payload chatHandler.MessageRequest
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, ok := h.personas.Resolve(payload.PersonaID)
	if !ok {
		chatHandler.RespondChatError(w, chatService.ErrPersonaNotFound)
		return
	}

	session, _ := identity.FromContext(r.Context())
	stream := &sseStream{w: w, flusher: flusher, persona: p}

	reply, err := h.chatSvc.Stream(r.Context(), session, p.ID, payload.Text, func(chunk string) error {
		if err := stream.begin(); err != nil {
			return err
		}
		return stream.send(StreamResponse{Event: "delta", Content: chunk})
	})
	if err != nil {
		if !stream.started {
			chatHandler.RespondChatError(w, err)
			return
		}
		stream.send(StreamResponse{Event: "error", Error: err.Error()})
		return
	}

	if err := stream.begin(); err != nil {
		logger.Log.Warnf("[stream] client went away before reply: %v", err)
		return
	}
	stream.send(StreamResponse{Event: "message", Reply: &reply, Content: reply.AI.Text})
	if reply.Failure != nil {
		stream.send(StreamResponse{Event: "error", Failure: reply.Failure, Error: reply.Failure.Title})
	}
	stream.send(StreamResponse{Event: "end", Finished: true})

	logger.InfoWithFields("[stream] completed response", logger.Fields{
		"user_id": session.UserID,
		"persona": p.ID,
		"failed":  reply.Failure != nil,
	})
}
