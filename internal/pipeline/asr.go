package pipeline

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/polarline/santacall/internal/metrics"
)

// Transcriber produces a text transcript from a recorded audio file.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// WhisperTranscriber transcribes uploads through the OpenAI Whisper API.
type WhisperTranscriber struct {
	client openai.Client
	model  openai.AudioModel
}

// NewWhisperTranscriber creates a transcriber. model defaults to whisper-1.
func NewWhisperTranscriber(apiKey, model string) *WhisperTranscriber {
	m := openai.AudioModelWhisper1
	if model != "" {
		m = openai.AudioModel(model)
	}
	return &WhisperTranscriber{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  m,
	}
}

// Transcribe uploads the audio file and returns the raw transcript text.
func (t *WhisperTranscriber) Transcribe(ctx context.Context, audioPath string) (string, error) {
	start := time.Now()

	f, err := os.Open(audioPath)
	if err != nil {
		return "", fmt.Errorf("open audio %q: %w", audioPath, err)
	}
	defer f.Close()

	resp, err := t.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		File:  f,
		Model: t.model,
	})
	if err != nil {
		metrics.Errors.WithLabelValues("asr", "http").Inc()
		return "", fmt.Errorf("whisper transcription: %w", err)
	}

	metrics.StageDuration.WithLabelValues("asr").Observe(time.Since(start).Seconds())
	return resp.Text, nil
}
