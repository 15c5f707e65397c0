package speech

// SpeechConfig carries the Volcengine TTS credentials and defaults.
type SpeechConfig struct {
	AppID       string `json:"appId"`
	AccessToken string `json:"accessToken"`
	Endpoint    string `json:"endpoint"`

	Voice    string  `json:"voice"`
	Speed    float32 `json:"speed"`
	Volume   float32 `json:"volume"`
	Language string  `json:"language"`

	Timeout int `json:"timeout"` // seconds
}
