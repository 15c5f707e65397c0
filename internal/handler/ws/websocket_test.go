package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/zhouzirui/mentor-relay/backend/internal/analysis/failure"
	"github.com/zhouzirui/mentor-relay/backend/internal/model/chat"
	"github.com/zhouzirui/mentor-relay/backend/internal/model/identity"
	"github.com/zhouzirui/mentor-relay/backend/internal/model/persona"
	"github.com/zhouzirui/mentor-relay/backend/internal/model/speech"
	chatService "github.com/zhouzirui/mentor-relay/backend/internal/service/chat"
	"github.com/zhouzirui/mentor-relay/backend/internal/service/history"
	speechService "github.com/zhouzirui/mentor-relay/backend/internal/service/speech"
	"github.com/zhouzirui/mentor-relay/backend/internal/store"
)

func boolPtr(v bool) *bool { return &v }

type chunkReplier struct {
	chunks []string
	err    error
}

func (c chunkReplier) GenerateReply(context.Context, []chat.Message, string) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	return strings.Join(c.chunks, ""), nil
}

func (c chunkReplier) StreamReply(_ context.Context, _ []chat.Message, _ string, onChunk func(string) error) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	for _, chunk := range c.chunks {
		if err := onChunk(chunk); err != nil {
			return "", err
		}
	}
	return strings.Join(c.chunks, ""), nil
}

type fakeSynth struct{}

func (fakeSynth) Synthesize(_ context.Context, req speech.TTSRequest) (*speech.TTSResponse, error) {
	return &speech.TTSResponse{SessionID: req.SessionID, AudioData: []byte("audio:" + req.Text), Format: "mp3"}, nil
}

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func startServer(t *testing.T, replier chatService.Replier, capability speechService.Capability) *websocket.Conn {
	t.Helper()

	personas := persona.NewMemoryStore(persona.Seed())
	chatSvc := chatService.NewService(replier, history.NewService(store.NewMemory(), 100), personas, failure.New())

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(identity.WithSession(req.Context(), &identity.Session{UserID: "u1"})))
		})
	})
	New(chatSvc, personas, capability).RegisterRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if got := readFrame(t, conn); got.Type != "connected" {
		t.Fatalf("expected connected, got %s", got.Type)
	}
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var f frame
	if err := conn.ReadJSON(&f); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return f
}

func readTypes(t *testing.T, conn *websocket.Conn, n int) ([]string, []frame) {
	t.Helper()
	types := make([]string, 0, n)
	frames := make([]frame, 0, n)
	for i := 0; i < n; i++ {
		f := readFrame(t, conn)
		types = append(types, f.Type)
		frames = append(frames, f)
	}
	return types, frames
}

func decodeUser(t *testing.T, f frame) chat.Message {
	t.Helper()
	var user chat.Message
	if err := json.Unmarshal(f.Data, &user); err != nil {
		t.Fatalf("decode user: %v", err)
	}
	if user.Sender != chat.SenderUser {
		t.Fatalf("expected user sender, got %q", user.Sender)
	}
	return user
}

func sendJSON(t *testing.T, conn *websocket.Conn, msgType string, data any) {
	t.Helper()
	payload, _ := json.Marshal(data)
	if err := conn.WriteJSON(map[string]any{"type": msgType, "data": json.RawMessage(payload)}); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestTextStreamsReplyAndSpeaks(t *testing.T) {
	conn := startServer(t, chunkReplier{chunks: []string{"Sta", "rt fast."}}, speechService.Available{Handle: fakeSynth{}})

	sendJSON(t, conn, "text", TextMessage{Text: "How do I begin?"})

	types, frames := readTypes(t, conn, 5)
	if got := strings.Join(types, ","); got != "user,ai_delta,ai_delta,ai,tts" {
		t.Fatalf("unexpected frames: %s", got)
	}

	var ai chat.Message
	if err := json.Unmarshal(frames[3].Data, &ai); err != nil {
		t.Fatalf("decode ai: %v", err)
	}
	if ai.Text != "Start fast." || ai.Sender != chat.SenderAI {
		t.Fatalf("unexpected ai message: %+v", ai)
	}
	user := decodeUser(t, frames[0])
	if user.Text != "How do I begin?" || user.ID == "" || user.ID == ai.ID {
		t.Fatalf("unexpected user echo: %+v", user)
	}

	var tts struct {
		MessageID string `json:"messageId"`
		AudioData string `json:"audioData"`
	}
	if err := json.Unmarshal(frames[4].Data, &tts); err != nil {
		t.Fatalf("decode tts: %v", err)
	}
	if tts.MessageID != ai.ID || tts.AudioData == "" {
		t.Fatalf("unexpected tts payload: %+v", tts)
	}
}

func TestFailureIsReportedWithoutSpeech(t *testing.T) {
	conn := startServer(t, chunkReplier{err: errors.New("429 quota exceeded")}, speechService.Available{Handle: fakeSynth{}})

	sendJSON(t, conn, "text", TextMessage{Text: "hi"})

	types, frames := readTypes(t, conn, 3)
	if got := strings.Join(types, ","); got != "user,ai,failure" {
		t.Fatalf("unexpected frames: %s", got)
	}

	var report failure.Report
	if err := json.Unmarshal(frames[2].Data, &report); err != nil {
		t.Fatalf("decode failure: %v", err)
	}
	if report.Text == "" {
		t.Fatal("expected rendered failure text")
	}
}

func TestConfigSwitchesPersonaAndMode(t *testing.T) {
	conn := startServer(t, chunkReplier{chunks: []string{"Why?"}}, nil)

	sendJSON(t, conn, "config", ConfigMessage{PersonaID: "socrates", StreamMode: boolPtr(false), TTSEnabled: boolPtr(true)})

	f := readFrame(t, conn)
	if f.Type != "config" {
		t.Fatalf("expected config, got %s", f.Type)
	}
	var cfg map[string]any
	if err := json.Unmarshal(f.Data, &cfg); err != nil {
		t.Fatalf("decode config: %v", err)
	}
	if cfg["persona"] != "socrates" || cfg["streamMode"] != false || cfg["tts"] != false {
		t.Fatalf("unexpected config echo: %v", cfg)
	}

	sendJSON(t, conn, "text", TextMessage{Text: "hi"})
	types, frames := readTypes(t, conn, 2)
	if got := strings.Join(types, ","); got != "user,ai" {
		t.Fatalf("expected non-streamed reply, got %s", got)
	}
	if user := decodeUser(t, frames[0]); user.Text != "hi" || user.ID == "" {
		t.Fatalf("unexpected user echo: %+v", user)
	}
}

func TestUnsupportedAndBlankMessages(t *testing.T) {
	conn := startServer(t, chunkReplier{chunks: []string{"ok"}}, nil)

	sendJSON(t, conn, "audio", map[string]string{})
	if f := readFrame(t, conn); f.Type != "error" {
		t.Fatalf("expected error for unsupported type, got %s", f.Type)
	}

	sendJSON(t, conn, "text", TextMessage{Text: "  "})
	f := readFrame(t, conn)
	if f.Type != "error" || !strings.Contains(string(f.Data), chatService.ErrEmptyText.Error()) {
		t.Fatalf("expected empty text error, got %s %s", f.Type, f.Data)
	}
}

func TestRequiresSession(t *testing.T) {
	r := chi.NewRouter()
	New(nil, persona.NewMemoryStore(persona.Seed()), nil).RegisterRoutes(r)

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestApplyConfigUpdatesState(t *testing.T) {
	seeds := persona.Seed()
	handler := &Handler{personas: persona.NewMemoryStore(seeds)}
	state := newConnectionState(seeds[0], true)

	handler.applyConfig(&state, ConfigMessage{
		PersonaID:  "socrates",
		Language:   "en-GB",
		Voice:      "new-voice",
		TTSEnabled: boolPtr(false),
		StreamMode: boolPtr(false),
	}, true)

	if state.language != "en-GB" {
		t.Fatalf("expected language en-GB, got %s", state.language)
	}
	if state.voice != "new-voice" {
		t.Fatalf("expected voice new-voice, got %s", state.voice)
	}
	if state.persona.ID != "socrates" {
		t.Fatalf("expected persona socrates, got %s", state.persona.ID)
	}
	if state.ttsEnabled || state.streamMode {
		t.Fatalf("expected tts and stream mode disabled")
	}

	handler.applyConfig(&state, ConfigMessage{TTSEnabled: boolPtr(true)}, false)
	if state.ttsEnabled {
		t.Fatal("tts cannot be enabled without a synthesizer")
	}

	handler.applyConfig(&state, ConfigMessage{PersonaID: "nobody"}, true)
	if state.persona.ID != "socrates" {
		t.Fatal("unknown persona must leave the current one in place")
	}
}
