package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// FunASRAdapter implements BatchAdapter for a self-hosted FunASR server.
// No credential; the server is addressed by the configured endpoint.
type FunASRAdapter struct {
	settings Settings
	client   *http.Client
}

type funASRResponse struct {
	Result string `json:"result"`
	Text   string `json:"text"`
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
}

func NewFunASRAdapter(settings Settings) *FunASRAdapter {
	return &FunASRAdapter{
		settings: settings,
		client:   &http.Client{Timeout: 60 * time.Second},
	}
}

func (a *FunASRAdapter) Transcribe(ctx context.Context, samples []float32) (string, error) {
	if len(samples) == 0 {
		return "", nil
	}

	wavData, err := EncodeWAV(samples, a.settings.SampleRate, a.settings.Channels)
	if err != nil {
		return "", fmt.Errorf("encode wav: %w", err)
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("audio", "audio.wav")
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(wavData); err != nil {
		return "", fmt.Errorf("write audio data: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	url := strings.TrimRight(a.settings.Endpoint, "/") + "/api/v1/asr"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	start := time.Now()
	resp, err := a.client.Do(req)
	duration := time.Since(start)
	if err != nil {
		log.Printf("funasr-adapter: request failed after %v: %v", duration, err)
		return "", fmt.Errorf("funasr transcription: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("funasr transcription: status %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	var parsed funASRResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if parsed.Code != 0 {
		return "", fmt.Errorf("funasr transcription: code %d: %s", parsed.Code, parsed.Msg)
	}

	text := parsed.Result
	if text == "" {
		text = parsed.Text
	}

	log.Printf("funasr-adapter: transcribed %d samples in %v: %q", len(samples), duration, text)
	return text, nil
}
