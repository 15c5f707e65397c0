// Package ws carries a conversation over a websocket: text in, reply deltas,
// failures and optional synthesized speech out.
package ws

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/mentor-relay/backend/internal/logger"
	"github.com/zhouzirui/mentor-relay/backend/internal/model/chat"
	"github.com/zhouzirui/mentor-relay/backend/internal/model/identity"
	"github.com/zhouzirui/mentor-relay/backend/internal/model/persona"
	"github.com/zhouzirui/mentor-relay/backend/internal/model/speech"
	chatService "github.com/zhouzirui/mentor-relay/backend/internal/service/chat"
	speechService "github.com/zhouzirui/mentor-relay/backend/internal/service/speech"
)

const (
	readTimeout  = 60 * time.Second
	pingInterval = 54 * time.Second
	writeTimeout = 10 * time.Second
)

// Handler upgrades authenticated requests to a conversation socket.
type Handler struct {
	chatSvc  *chatService.Service
	personas persona.Store
	speech   speechService.Capability
	upgrader websocket.Upgrader
}

// New creates the websocket handler. capability may be nil.
func New(chatSvc *chatService.Service, personas persona.Store, capability speechService.Capability) *Handler {
	if capability == nil {
		capability = speechService.Unavailable{Reason: "speech not configured"}
	}
	return &Handler{
		chatSvc:  chatSvc,
		personas: personas,
		speech:   capability,
		upgrader: websocket.Upgrader{
			// origins are enforced by the CORS layer and the session token
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts GET /ws. It expects a session on the request context.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebSocket)
}

type inboundMessage struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// TextMessage is the payload of an inbound "text" message.
type TextMessage struct {
	Text string `json:"text"`
}

// ConfigMessage is the payload of an inbound "config" message.
type ConfigMessage struct {
	PersonaID  string `json:"personaId"`
	Language   string `json:"language"`
	TTSEnabled *bool  `json:"ttsEnabled,omitempty"`
	StreamMode *bool  `json:"streamMode,omitempty"`
	Voice      string `json:"voice"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

type connectionState struct {
	persona    persona.Persona
	language   string
	voice      string
	ttsEnabled bool
	streamMode bool
}

func newConnectionState(p persona.Persona, speakable bool) connectionState {
	return connectionState{
		persona:    p,
		language:   "en-US",
		voice:      p.VoiceID,
		ttsEnabled: speakable,
		streamMode: true,
	}
}

// peer serializes writes; gorilla connections allow one concurrent writer.
type peer struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (p *peer) send(msgType string, data interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	msg := outgoingMessage{Type: msgType, Data: data, Timestamp: time.Now().Unix()}
	if err := p.conn.WriteJSON(msg); err != nil {
		logger.Log.Debugf("[websocket] write %s failed: %v", msgType, err)
	}
}

func (p *peer) sendError(message string) {
	p.send("error", map[string]string{"message": message})
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	session, ok := identity.FromContext(r.Context())
	if !ok {
		http.Error(w, "missing session", http.StatusUnauthorized)
		return
	}

	p, ok := h.personas.Resolve(r.URL.Query().Get("persona"))
	if !ok {
		http.Error(w, "persona not found", http.StatusBadRequest)
		return
	}

	synth, speakable := h.speech.Synthesizer()
	state := newConnectionState(p, speakable)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Warnf("[websocket] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	out := &peer{conn: conn}
	var playback *speechService.Playback
	if speakable {
		playback = speechService.NewPlayback(synth)
	}

	// detached from the request so replies outlive the upgrade handshake
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	var wg sync.WaitGroup
	defer func() {
		cancel()
		if playback != nil {
			playback.Cancel()
		}
		wg.Wait()
		logger.InfoWithFields("[websocket] connection closed", logger.Fields{"user_id": session.UserID})
	}()

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	wg.Add(1)
	go func() {
		defer wg.Done()
		pingLoop(ctx, conn)
	}()

	logger.InfoWithFields("[websocket] new connection", logger.Fields{"user_id": session.UserID, "persona": p.ID})
	out.send("connected", map[string]any{
		"persona":  state.persona.ID,
		"language": state.language,
		"tts":      state.ttsEnabled,
	})

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Log.Warnf("[websocket] read error: %v", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))

		switch msg.Type {
		case "text":
			var text TextMessage
			if err := json.Unmarshal(msg.Data, &text); err != nil {
				out.sendError("invalid text payload")
				continue
			}
			snapshot := state
			wg.Add(1)
			go func() {
				defer wg.Done()
				h.processUserText(ctx, out, session, snapshot, playback, text.Text)
			}()
		case "config":
			var cfg ConfigMessage
			if err := json.Unmarshal(msg.Data, &cfg); err != nil {
				out.sendError("invalid config payload")
				continue
			}
			h.applyConfig(&state, cfg, speakable)
			out.send("config", map[string]any{
				"persona":    state.persona.ID,
				"language":   state.language,
				"voice":      state.voice,
				"tts":        state.ttsEnabled,
				"streamMode": state.streamMode,
			})
		default:
			out.sendError("unsupported message type: " + msg.Type)
		}
	}
}

func (h *Handler) processUserText(ctx context.Context, out *peer, session *identity.Session, state connectionState, playback *speechService.Playback, text string) {
	var (
		reply  chatService.Reply
		err    error
		echoed bool
	)
	if state.streamMode {
		reply, err = h.chatSvc.StreamTurn(ctx, session, state.persona.ID, text, func(user chat.Message) {
			echoed = true
			out.send("user", user)
		}, func(chunk string) error {
			out.send("ai_delta", map[string]string{"text": chunk})
			return ctx.Err()
		})
	} else {
		reply, err = h.chatSvc.Send(ctx, session, state.persona.ID, text)
	}
	if err != nil {
		out.sendError(err.Error())
		return
	}

	if !echoed {
		out.send("user", reply.User)
	}
	out.send("ai", reply.AI)
	if reply.Failure != nil {
		out.send("failure", reply.Failure)
		return
	}

	if playback != nil && state.ttsEnabled && reply.AI.Text != "" {
		h.speak(ctx, out, playback, state, reply.AI.ID, reply.AI.Text)
	}
}

func (h *Handler) speak(ctx context.Context, out *peer, playback *speechService.Playback, state connectionState, messageID, text string) {
	resp, err := playback.Speak(ctx, speech.TTSRequest{
		SessionID: messageID,
		Text:      text,
		Voice:     state.voice,
		Language:  state.language,
		Format:    "mp3",
	})
	if err != nil {
		if errors.Is(err, speechService.ErrSuperseded) || ctx.Err() != nil {
			return
		}
		logger.SafeError("[websocket] TTS failed", err, logger.Fields{"message_id": messageID})
		out.send("tts", map[string]any{"messageId": messageID, "error": "synthesis failed"})
		return
	}
	if len(resp.AudioData) == 0 {
		return
	}

	out.send("tts", map[string]any{
		"messageId": messageID,
		"audioData": base64.StdEncoding.EncodeToString(resp.AudioData),
		"format":    resp.Format,
		"duration":  resp.Duration,
	})
}

func (h *Handler) applyConfig(state *connectionState, cfg ConfigMessage, speakable bool) {
	if cfg.Language != "" {
		state.language = cfg.Language
	}
	if cfg.Voice != "" {
		state.voice = cfg.Voice
	}
	if cfg.PersonaID != "" && cfg.PersonaID != state.persona.ID {
		if p, ok := h.personas.FindByID(cfg.PersonaID); ok {
			state.persona = p
			if cfg.Voice == "" && p.VoiceID != "" {
				state.voice = p.VoiceID
			}
		}
	}
	if cfg.TTSEnabled != nil {
		state.ttsEnabled = *cfg.TTSEnabled && speakable
	}
	if cfg.StreamMode != nil {
		state.streamMode = *cfg.StreamMode
	}
}

func pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}
