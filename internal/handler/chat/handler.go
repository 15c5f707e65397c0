package chat

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/mentor-relay/backend/internal/model/identity"
	aiService "github.com/zhouzirui/mentor-relay/backend/internal/service/ai"
	chatService "github.com/zhouzirui/mentor-relay/backend/internal/service/chat"
	speechService "github.com/zhouzirui/mentor-relay/backend/internal/service/speech"
	"github.com/zhouzirui/mentor-relay/backend/pkg/utils"
)

// StatusReporter reports upstream AI readiness.
type StatusReporter interface {
	Status(ctx context.Context) aiService.Status
}

// Handler serves the request/response chat endpoints.
type Handler struct {
	chatSvc *chatService.Service
	ai      StatusReporter
	speech  speechService.Capability
}

// New creates the chat handler. ai and speech may be nil.
func New(chatSvc *chatService.Service, ai StatusReporter, speech speechService.Capability) *Handler {
	return &Handler{
		chatSvc: chatSvc,
		ai:      ai,
		speech:  speech,
	}
}

// RegisterRoutes mounts the conversation routes. They expect a session on the
// request context.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/history", h.handleHistory)
	r.Post("/messages", h.handleSendMessage)
}

// MessageRequest is the body of a send.
type MessageRequest struct {
	Text      string `json:"text"`
	PersonaID string `json:"personaId"`
}

// SpeechStatus describes the optional speech output.
type SpeechStatus struct {
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	AI     aiService.Status `json:"ai"`
	Speech SpeechStatus     `json:"speech"`
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	session, _ := identity.FromContext(r.Context())
	messages, err := h.chatSvc.Conversation(r.Context(), session)
	if err != nil {
		RespondChatError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var payload MessageRequest
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	session, _ := identity.FromContext(r.Context())
	reply, err := h.chatSvc.Send(r.Context(), session, payload.PersonaID, payload.Text)
	if err != nil {
		RespondChatError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, reply)
}

// HandleStatus reports AI readiness and speech availability. It needs no session.
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{}
	if h.ai != nil {
		resp.AI = h.ai.Status(r.Context())
	} else {
		resp.AI = aiService.Status{Error: aiService.ErrUnavailable.Error()}
	}
	resp.Speech = describeSpeech(h.speech)
	utils.RespondJSON(w, http.StatusOK, resp)
}

// RespondChatError maps chat service errors to HTTP statuses.
func RespondChatError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chatService.ErrEmptyText), errors.Is(err, chatService.ErrPersonaNotFound):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, chatService.ErrSessionRequired):
		utils.RespondError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, chatService.ErrReplyInFlight):
		utils.RespondError(w, http.StatusConflict, err.Error())
	default:
		utils.RespondError(w, http.StatusInternalServerError, "chat request failed")
	}
}

func describeSpeech(c speechService.Capability) SpeechStatus {
	if c == nil {
		return SpeechStatus{Reason: "speech not configured"}
	}
	if _, ok := c.Synthesizer(); ok {
		return SpeechStatus{Available: true}
	}
	if u, ok := c.(speechService.Unavailable); ok {
		return SpeechStatus{Reason: u.Reason}
	}
	return SpeechStatus{Reason: "speech not configured"}
}
