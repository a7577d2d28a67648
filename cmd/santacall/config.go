package main

import (
	"os"
	"strconv"
	"time"
)

type config struct {
	port               string
	databaseURL        string
	authSecret         string
	tokenTTL           time.Duration
	scratchDir         string
	maxConcurrentCalls int

	openaiAPIKey   string
	llmEngine      string
	llmModel       string
	llmMaxTokens   int
	llmTemperature float64
	whisperModel   string

	ttsEngine         string
	ttsPoolSize       int
	elevenlabsAPIKey  string
	elevenlabsVoiceID string
	elevenlabsModelID string
	openaiTTSURL      string
	openaiTTSVoice    string
	openaiTTSModel    string
}

func loadConfig() config {
	return config{
		port:               envStr("SANTACALL_PORT", "8080"),
		databaseURL:        envStr("DATABASE_URL", ""),
		authSecret:         envStr("AUTH_SECRET", ""),
		tokenTTL:           envDuration("AUTH_TOKEN_TTL", 24*time.Hour),
		scratchDir:         envStr("SCRATCH_DIR", ""),
		maxConcurrentCalls: envInt("MAX_CONCURRENT_CALLS", 100),

		openaiAPIKey:   envStr("OPENAI_API_KEY", ""),
		llmEngine:      envStr("LLM_ENGINE", "agent"),
		llmModel:       envStr("LLM_MODEL", "gpt-4o-mini"),
		llmMaxTokens:   envInt("LLM_MAX_TOKENS", 150),
		llmTemperature: envFloat("LLM_TEMPERATURE", 0.8),
		whisperModel:   envStr("WHISPER_MODEL", "whisper-1"),

		ttsEngine:         envStr("TTS_ENGINE", "elevenlabs"),
		ttsPoolSize:       envInt("TTS_POOL_SIZE", 50),
		elevenlabsAPIKey:  envStr("ELEVENLABS_API_KEY", ""),
		elevenlabsVoiceID: envStr("ELEVENLABS_VOICE_ID", "21m00Tcm4TlvDq8ikWAM"),
		elevenlabsModelID: envStr("ELEVENLABS_MODEL_ID", "eleven_monolingual_v1"),
		openaiTTSURL:      envStr("OPENAI_TTS_URL", ""),
		openaiTTSVoice:    envStr("OPENAI_TTS_VOICE", "onyx"),
		openaiTTSModel:    envStr("OPENAI_TTS_MODEL", "tts-1"),
	}
}

func envStr(key, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func envInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return d
}
