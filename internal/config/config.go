package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config aggregates every configuration section of the service.
type Config struct {
	Server ServerConfig
	Log    LogConfig
	AI     AIConfig
	Store  StoreConfig
	Auth   AuthConfig
	Speech SpeechConfig

	// PersonaFile optionally replaces the built-in personas with a YAML catalogue.
	PersonaFile string
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	store, err := loadStoreConfig()
	if err != nil {
		return nil, err
	}

	auth, err := loadAuthConfig()
	if err != nil {
		return nil, err
	}

	speech, err := loadSpeechConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server: server,
		Log:    LogConfig{Level: getEnvOrDefault("LOG_LEVEL", "info")},
		AI:     ai,
		Store:  store,
		Auth:   auth,
		Speech: speech,

		PersonaFile: strings.TrimSpace(os.Getenv("PERSONAS_FILE")),
	}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
}

// LogConfig holds the log level name.
type LogConfig struct {
	Level string
}

func loadServerConfig() (ServerConfig, error) {
	origins := splitList(getEnvOrDefault("CORS_ALLOWED_ORIGINS", "*"))

	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// accept ":8080" or "127.0.0.1:8080" verbatim
		return ServerConfig{Addr: port, AllowedOrigins: origins}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port, AllowedOrigins: origins}, nil
}

// Supported upstream providers.
const (
	ProviderGemini = "gemini"
	ProviderArk    = "ark"
)

// AIConfig describes the upstream generation API.
type AIConfig struct {
	Provider string

	GeminiAPIKey string
	GeminiModel  string

	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int

	StreamResponse bool
	Timeout        time.Duration
}

// Enabled reports whether the selected provider has the credentials it needs.
func (c AIConfig) Enabled() bool {
	switch c.Provider {
	case ProviderArk:
		return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
	default:
		return c.GeminiAPIKey != "" && c.GeminiModel != ""
	}
}

// NewChatModel builds an Ark chat model from the configuration.
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if c.Model == "" || (c.APIKey == "" && (c.AccessKey == "" || c.SecretKey == "")) {
		return nil, fmt.Errorf("ark credentials missing: set ARK_API_KEY + Model or an AK/SK pair")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	provider := strings.ToLower(getEnvOrDefault("AI_PROVIDER", ProviderGemini))
	if provider != ProviderGemini && provider != ProviderArk {
		return AIConfig{}, fmt.Errorf("invalid AI_PROVIDER value %q", provider)
	}

	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	stream, err := parseBoolEnv("AI_STREAM", true)
	if err != nil {
		return AIConfig{}, err
	}

	timeout, err := parseDurationEnv("AI_TIMEOUT", 0)
	if err != nil {
		return AIConfig{}, err
	}

	geminiKey := strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	if geminiKey == "" {
		geminiKey = strings.TrimSpace(os.Getenv("API_KEY"))
	}

	return AIConfig{
		Provider:       provider,
		GeminiAPIKey:   geminiKey,
		GeminiModel:    getEnvOrDefault("GEMINI_MODEL", "gemini-2.5-flash"),
		APIKey:         strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:      strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:      strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:          strings.TrimSpace(os.Getenv("Model")),
		BaseURL:        getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:         getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature:    temperature,
		TopP:           topP,
		MaxTokens:      maxTokens,
		StreamResponse: stream,
		Timeout:        timeout,
	}, nil
}

// Supported store drivers.
const (
	DriverMemory = "memory"
	DriverMongo  = "mongo"
	DriverSQLite = "sqlite"
)

// StoreConfig selects and configures the log/user store.
type StoreConfig struct {
	Driver       string
	MongoURI     string
	MongoDB      string
	SQLitePath   string
	HistoryLimit int
}

func loadStoreConfig() (StoreConfig, error) {
	driver := strings.ToLower(getEnvOrDefault("STORE_DRIVER", DriverMemory))
	switch driver {
	case DriverMemory, DriverMongo, DriverSQLite:
	default:
		return StoreConfig{}, fmt.Errorf("invalid STORE_DRIVER value %q", driver)
	}

	limit := 100
	if override, err := parseOptionalIntEnv("HISTORY_LIMIT"); err != nil {
		return StoreConfig{}, err
	} else if override != nil && *override > 0 {
		limit = *override
	}

	return StoreConfig{
		Driver:       driver,
		MongoURI:     getEnvOrDefault("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:      getEnvOrDefault("MONGO_DB", "mentor"),
		SQLitePath:   getEnvOrDefault("SQLITE_PATH", "data/mentor.db"),
		HistoryLimit: limit,
	}, nil
}

// AuthConfig configures session token issuance.
type AuthConfig struct {
	Secret string
	Issuer string
	TTL    time.Duration
}

func loadAuthConfig() (AuthConfig, error) {
	ttl, err := parseDurationEnv("JWT_TTL", 24*time.Hour)
	if err != nil {
		return AuthConfig{}, err
	}
	if ttl <= 0 {
		return AuthConfig{}, fmt.Errorf("JWT_TTL must be positive")
	}

	return AuthConfig{
		Secret: strings.TrimSpace(os.Getenv("JWT_SECRET")),
		Issuer: getEnvOrDefault("JWT_ISSUER", "mentor-relay"),
		TTL:    ttl,
	}, nil
}

// SpeechConfig configures text-to-speech.
type SpeechConfig struct {
	AppID       string
	AccessToken string
	Endpoint    string
	Voice       string
	Speed       float32
	Volume      float32
	Language    string
	Timeout     int
	Enabled     bool
}

func loadSpeechConfig() (SpeechConfig, error) {
	timeout, err := parseOptionalIntEnv("SPEECH_TIMEOUT")
	if err != nil {
		return SpeechConfig{}, err
	}
	timeoutSeconds := 30
	if timeout != nil {
		timeoutSeconds = *timeout
	}

	speed, err := parseOptionalFloat32Env("SPEECH_TTS_SPEED")
	if err != nil {
		return SpeechConfig{}, err
	}
	ttsSpeed := float32(1.0)
	if speed != nil {
		ttsSpeed = *speed
	}

	volume, err := parseOptionalFloat32Env("SPEECH_TTS_VOLUME")
	if err != nil {
		return SpeechConfig{}, err
	}
	ttsVolume := float32(1.0)
	if volume != nil {
		ttsVolume = *volume
	}

	appID := strings.TrimSpace(os.Getenv("SPEECH_APP_ID"))
	accessToken := strings.TrimSpace(os.Getenv("SPEECH_ACCESS_TOKEN"))
	if accessToken == "" {
		accessToken = strings.TrimSpace(os.Getenv("SPEECH_API_KEY"))
	}

	enabled, err := parseBoolEnv("SPEECH_ENABLED", true)
	if err != nil {
		return SpeechConfig{}, err
	}

	return SpeechConfig{
		AppID:       appID,
		AccessToken: accessToken,
		Endpoint:    getEnvOrDefault("SPEECH_TTS_ENDPOINT", "wss://openspeech.bytedance.com/api/v3/tts/unidirectional/stream"),
		Voice:       getEnvOrDefault("SPEECH_TTS_VOICE", "en_female_amy_jupiter_bigtts"),
		Speed:       ttsSpeed,
		Volume:      ttsVolume,
		Language:    getEnvOrDefault("SPEECH_TTS_LANGUAGE", "en-US"),
		Timeout:     timeoutSeconds,
		Enabled:     enabled && appID != "" && accessToken != "",
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalFloat32Env(key string) (*float32, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	result := float32(val)
	return &result, nil
}
