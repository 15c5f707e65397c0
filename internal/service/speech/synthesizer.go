package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zhouzirui/mentor-relay/backend/internal/logger"
	"github.com/zhouzirui/mentor-relay/backend/internal/model/chat"
	"github.com/zhouzirui/mentor-relay/backend/internal/model/speech"
)

// ErrEmptyText rejects synthesis of blank text.
var ErrEmptyText = errors.New("tts text is empty")

const (
	defaultResource = "volc.service_type.10029"
	megaResource    = "volc.megatts.default"
	seedResource    = "seed-tts-2.0"
)

// VolcengineSynthesizer synthesizes speech over the Volcengine
// unidirectional TTS websocket stream.
type VolcengineSynthesizer struct {
	cfg    speech.SpeechConfig
	dialer *websocket.Dialer
}

type ttsServerMessage struct {
	ReqID    string `json:"reqid"`
	Code     int    `json:"code"`
	Message  string `json:"message"`
	Sequence int    `json:"sequence"`
	Data     string `json:"data"`
	Addition struct {
		Duration string `json:"duration,omitempty"`
	} `json:"addition,omitempty"`
}

type ttsRequestBody struct {
	User struct {
		UID string `json:"uid"`
	} `json:"user"`
	ReqParams struct {
		Speaker     string         `json:"speaker"`
		Text        string         `json:"text"`
		AudioParams ttsAudioParams `json:"audio_params"`
		Additions   string         `json:"additions,omitempty"`
		Language    string         `json:"language,omitempty"`
	} `json:"req_params"`
}

type ttsAudioParams struct {
	Format          string  `json:"format"`
	SampleRate      int     `json:"sample_rate"`
	EnableTimestamp bool    `json:"enable_timestamp"`
	SpeedRatio      float32 `json:"speed_ratio,omitempty"`
	VolumeRatio     float32 `json:"volume_ratio,omitempty"`
}

// NewVolcengineSynthesizer requires AppID and AccessToken in cfg.
func NewVolcengineSynthesizer(cfg speech.SpeechConfig) (*VolcengineSynthesizer, error) {
	cfg.AppID = strings.TrimSpace(cfg.AppID)
	cfg.AccessToken = strings.TrimSpace(cfg.AccessToken)
	if cfg.AppID == "" || cfg.AccessToken == "" {
		return nil, fmt.Errorf("speech config is missing AppID or AccessToken")
	}

	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &VolcengineSynthesizer{
		cfg:    cfg,
		dialer: &websocket.Dialer{HandshakeTimeout: timeout},
	}, nil
}

// Synthesize returns the complete audio for req.Text. Voices are tried in
// order with each compatible resource id until one is accepted.
func (s *VolcengineSynthesizer) Synthesize(ctx context.Context, req speech.TTSRequest) (*speech.TTSResponse, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrEmptyText
	}

	encoding := strings.TrimSpace(req.Format)
	if encoding == "" || encoding == "wav" {
		encoding = "mp3"
	}

	speakers := speakerCandidates(req.Voice, s.cfg.Voice)
	var lastMismatch error

	for _, speaker := range speakers {
		for _, resourceID := range resourceCandidates(speaker) {
			resp, err := s.synthesizeWith(ctx, req, speaker, encoding, resourceID)
			if err == nil {
				return resp, nil
			}
			if !isResourceMismatch(err) {
				return nil, err
			}
			logger.WarnWithFields("tts resource mismatch", logger.Fields{"voice": speaker, "resource": resourceID})
			lastMismatch = err
		}
	}

	if lastMismatch != nil {
		return nil, lastMismatch
	}
	return nil, fmt.Errorf("tts synthesis failed: no compatible resource for voices %v", speakers)
}

func (s *VolcengineSynthesizer) synthesizeWith(ctx context.Context, req speech.TTSRequest, speaker, encoding, resourceID string) (*speech.TTSResponse, error) {
	connectID := chat.NewID()

	header := http.Header{}
	header.Set("X-Api-App-Key", s.cfg.AppID)
	header.Set("X-Api-Access-Key", s.cfg.AccessToken)
	header.Set("X-Api-Resource-Id", resourceID)
	header.Set("X-Api-Connect-Id", connectID)

	conn, resp, err := s.dialer.DialContext(ctx, s.cfg.Endpoint, header)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to tts websocket: %w", err)
	}
	defer conn.Close()

	// unblock ReadMessage when ctx is cancelled
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if resp != nil {
		if logID := resp.Header.Get("X-Tt-Logid"); logID != "" {
			logger.Log.Debugf("tts connected, logid=%s", logID)
		}
	}

	body, uid := s.buildRequest(req, speaker, encoding)
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tts request: %w", err)
	}
	if err := conn.WriteMessage(websocket.BinaryMessage, EncodeFrame(NewFullClientRequest(payload))); err != nil {
		return nil, fmt.Errorf("failed to send tts request: %w", err)
	}

	var (
		audio    bytes.Buffer
		reqID    string
		duration int64
	)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("failed to read tts response: %w", err)
		}

		frame, err := DecodeFrame(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to decode tts frame: %w", err)
		}

		body, err := frame.Body()
		if err != nil {
			return nil, fmt.Errorf("failed to inflate tts payload: %w", err)
		}

		var serverMsg ttsServerMessage
		switch frame.Header.Type {
		case ErrorMessage:
			return nil, fmt.Errorf("tts error %d: %s", frame.ErrorCode, string(body))

		case AudioOnlyServerResponse:
			audio.Write(body)

		case FullServerResponse:
			if len(body) > 0 {
				if err := json.Unmarshal(body, &serverMsg); err != nil {
					logger.Log.Warnf("tts: unreadable response payload: %v", err)
					break
				}
				if serverMsg.Code != 0 && serverMsg.Code != 3000 {
					return nil, fmt.Errorf("tts api error %d: %s", serverMsg.Code, serverMsg.Message)
				}
				if serverMsg.ReqID != "" {
					reqID = serverMsg.ReqID
				}
				if serverMsg.Addition.Duration != "" {
					if ms, err := strconv.ParseInt(serverMsg.Addition.Duration, 10, 64); err == nil {
						duration = ms
					}
				}
				if serverMsg.Data != "" {
					chunk, err := base64.StdEncoding.DecodeString(serverMsg.Data)
					if err != nil {
						return nil, fmt.Errorf("failed to decode base64 audio chunk: %w", err)
					}
					audio.Write(chunk)
				}
			}

		default:
			logger.Log.Debugf("tts: unexpected frame type %d", frame.Header.Type)
			continue
		}

		if frame.IsLast() || serverMsg.Sequence < 0 {
			if audio.Len() == 0 {
				return nil, fmt.Errorf("tts audio is empty")
			}
			if reqID == "" {
				reqID = connectID
			}
			sessionID := strings.TrimSpace(req.SessionID)
			if sessionID == "" {
				sessionID = uid
			}
			return &speech.TTSResponse{
				SessionID: sessionID,
				AudioData: audio.Bytes(),
				Duration:  duration,
				Format:    encoding,
				RequestID: reqID,
				CreatedAt: time.Now(),
			}, nil
		}
	}
}

func (s *VolcengineSynthesizer) buildRequest(req speech.TTSRequest, speaker, encoding string) (*ttsRequestBody, string) {
	body := &ttsRequestBody{}

	uid := strings.TrimSpace(req.SessionID)
	if uid == "" {
		uid = chat.NewID()
	}
	body.User.UID = uid

	body.ReqParams.Speaker = speaker
	body.ReqParams.Text = req.Text
	body.ReqParams.AudioParams = ttsAudioParams{
		Format:          encoding,
		SampleRate:      24000,
		EnableTimestamp: true,
	}

	speed := req.Speed
	if speed <= 0 {
		speed = s.cfg.Speed
	}
	if speed > 0 && speed != 1.0 {
		body.ReqParams.AudioParams.SpeedRatio = speed
	}

	volume := req.Volume
	if volume <= 0 {
		volume = s.cfg.Volume
	}
	if volume > 0 && volume != 1.0 {
		body.ReqParams.AudioParams.VolumeRatio = volume
	}

	language := strings.TrimSpace(req.Language)
	if language == "" {
		language = strings.TrimSpace(s.cfg.Language)
	}
	body.ReqParams.Language = language

	// replies are markdown; let the service strip the markup
	body.ReqParams.Additions = `{"disable_markdown_filter":false}`

	return body, uid
}

var seedVoiceHints = []string{
	"bigtts", "seed", "megatts", "uranus", "venus", "jupiter",
	"saturn", "neptune", "mercury", "pluto", "mars",
}

func resourceCandidates(voice string) []string {
	voice = strings.TrimSpace(voice)
	if voice == "" {
		return []string{defaultResource, seedResource}
	}
	if strings.HasPrefix(voice, "S_") {
		return []string{megaResource}
	}

	normalized := strings.ToLower(voice)
	for _, hint := range seedVoiceHints {
		if strings.Contains(normalized, hint) {
			return []string{seedResource, defaultResource}
		}
	}
	return []string{defaultResource, seedResource}
}

var voiceAliases = map[string]string{
	"en_default": "en_female_amy_jupiter_bigtts",
	"en_male":    "en_male_glen_emo_v2_mars_bigtts",
	"en_female":  "en_female_skye_emo_v2_mars_bigtts",
}

// speakerCandidates resolves aliases and drops case-insensitive duplicates.
func speakerCandidates(requested, fallback string) []string {
	var out []string
	add := func(v string) {
		v = strings.TrimSpace(v)
		if v == "" {
			return
		}
		if mapped, ok := voiceAliases[strings.ToLower(v)]; ok {
			v = mapped
		}
		for _, existing := range out {
			if strings.EqualFold(existing, v) {
				return
			}
		}
		out = append(out, v)
	}

	add(requested)
	add(fallback)
	if len(out) == 0 {
		return []string{""}
	}
	return out
}

func isResourceMismatch(err error) bool {
	return err != nil && strings.Contains(err.Error(), "resource ID is mismatched with speaker related resource")
}
