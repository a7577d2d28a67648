package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/polarline/santacall/internal/metrics"
)

// Synthesizer produces spoken audio from reply text.
type Synthesizer interface {
	SynthesizeAudio(ctx context.Context, text string) ([]byte, error)
}

// TTSRouter dispatches to a named TTS backend with a fallback default and
// records per-synthesis latency.
type TTSRouter struct {
	backends map[string]Synthesizer
	fallback string
}

// NewTTSRouter creates a router over the registered backends.
func NewTTSRouter(backends map[string]Synthesizer, fallback string) *TTSRouter {
	return &TTSRouter{backends: backends, fallback: fallback}
}

// Engines returns the names of all registered backends.
func (r *TTSRouter) Engines() []string {
	names := make([]string, 0, len(r.backends))
	for k := range r.backends {
		names = append(names, k)
	}
	return names
}

// Synthesize routes to the named backend, falling back to the default.
func (r *TTSRouter) Synthesize(ctx context.Context, text, engine string) ([]byte, error) {
	backend, ok := r.backends[engine]
	if !ok {
		backend, ok = r.backends[r.fallback]
	}
	if !ok {
		return nil, fmt.Errorf("no tts backend for engine %q", engine)
	}

	start := time.Now()
	audio, err := backend.SynthesizeAudio(ctx, text)
	if err != nil {
		metrics.Errors.WithLabelValues("tts", "synth").Inc()
		return nil, err
	}
	metrics.StageDuration.WithLabelValues("tts").Observe(time.Since(start).Seconds())
	return audio, nil
}

// --- ElevenLabs backend (cloud API, returns MP3 via api.elevenlabs.io) ---

type elevenlabsSynthesizer struct {
	apiKey  string
	voiceID string
	modelID string
	client  *http.Client
}

// NewElevenLabsSynthesizer creates the default Santa voice backend.
func NewElevenLabsSynthesizer(apiKey, voiceID, modelID string, client *http.Client) Synthesizer {
	return &elevenlabsSynthesizer{apiKey: apiKey, voiceID: voiceID, modelID: modelID, client: client}
}

func (e *elevenlabsSynthesizer) SynthesizeAudio(ctx context.Context, text string) ([]byte, error) {
	body, err := json.Marshal(struct {
		Text          string `json:"text"`
		ModelID       string `json:"model_id"`
		VoiceSettings struct {
			Stability       float64 `json:"stability"`
			SimilarityBoost float64 `json:"similarity_boost"`
		} `json:"voice_settings"`
	}{
		Text:    text,
		ModelID: e.modelID,
		VoiceSettings: struct {
			Stability       float64 `json:"stability"`
			SimilarityBoost float64 `json:"similarity_boost"`
		}{Stability: 0.3, SimilarityBoost: 0.7},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal elevenlabs request: %w", err)
	}

	url := fmt.Sprintf("https://api.elevenlabs.io/v1/text-to-speech/%s", e.voiceID)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create elevenlabs request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", e.apiKey)
	req.Header.Set("Accept", "audio/mpeg")

	return doTTSRequest(e.client, req)
}

// --- OpenAI-compatible backend (any server exposing /v1/audio/speech) ---

type openaiSynthesizer struct {
	url    string
	apiKey string
	model  string
	voice  string
	client *http.Client
}

// NewOpenAISynthesizer creates a backend for OpenAI-compatible speech servers.
func NewOpenAISynthesizer(url, apiKey, model, voice string, client *http.Client) Synthesizer {
	return &openaiSynthesizer{url: url, apiKey: apiKey, model: model, voice: voice, client: client}
}

func (o *openaiSynthesizer) SynthesizeAudio(ctx context.Context, text string) ([]byte, error) {
	body, err := json.Marshal(struct {
		Input          string `json:"input"`
		Model          string `json:"model"`
		Voice          string `json:"voice"`
		ResponseFormat string `json:"response_format"`
	}{Input: text, Model: o.model, Voice: o.voice, ResponseFormat: "mp3"})
	if err != nil {
		return nil, fmt.Errorf("marshal openai tts request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", o.url+"/v1/audio/speech", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create openai tts request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if o.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.apiKey)
	}

	return doTTSRequest(o.client, req)
}

func doTTSRequest(client *http.Client, req *http.Request) ([]byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tts request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("tts status %d: %s", resp.StatusCode, body)
	}

	return io.ReadAll(resp.Body)
}
