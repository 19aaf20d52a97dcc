package transcriber

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAIAdapter implements BatchAdapter for the OpenAI Whisper API
type OpenAIAdapter struct {
	client   *openai.Client
	settings Settings
}

func NewOpenAIAdapter(settings Settings) *OpenAIAdapter {
	return &OpenAIAdapter{
		client:   openai.NewClient(settings.APIKey),
		settings: settings,
	}
}

func (a *OpenAIAdapter) Transcribe(ctx context.Context, samples []float32) (string, error) {
	if len(samples) == 0 {
		return "", nil
	}

	// Whisper wants a WAV container
	wavData, err := EncodeWAV(samples, a.settings.SampleRate, a.settings.Channels)
	if err != nil {
		return "", fmt.Errorf("encode wav: %w", err)
	}

	req := openai.AudioRequest{
		Model:    a.settings.Model,
		Reader:   bytes.NewReader(wavData),
		FilePath: "audio.wav",
		Language: a.settings.Language,
	}

	start := time.Now()
	resp, err := a.client.CreateTranscription(ctx, req)
	duration := time.Since(start)

	if err != nil {
		log.Printf("openai-adapter: API call failed after %v: %v", duration, err)
		return "", fmt.Errorf("openai transcription: %w", err)
	}

	log.Printf("openai-adapter: transcribed %d samples in %v: %q", len(samples), duration, resp.Text)
	return resp.Text, nil
}
