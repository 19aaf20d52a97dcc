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
	"time"
)

const dashScopeASREndpoint = "https://dashscope.aliyuncs.com/api/v1/services/audio/asr/transcription"

// DashScopeAdapter implements BatchAdapter for DashScope-hosted recognition
// models. Serves both the qwen and dashscope providers; they differ only in
// the model name carried by Settings.
type DashScopeAdapter struct {
	settings Settings
	endpoint string
	client   *http.Client
}

type dashScopeResponse struct {
	RequestID string `json:"request_id"`
	Output    struct {
		Text string `json:"text"`
	} `json:"output"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewDashScopeAdapter(settings Settings) *DashScopeAdapter {
	return &DashScopeAdapter{
		settings: settings,
		endpoint: dashScopeASREndpoint,
		client:   &http.Client{Timeout: 60 * time.Second},
	}
}

func (a *DashScopeAdapter) Transcribe(ctx context.Context, samples []float32) (string, error) {
	if len(samples) == 0 {
		return "", nil
	}

	wavData, err := EncodeWAV(samples, a.settings.SampleRate, a.settings.Channels)
	if err != nil {
		return "", fmt.Errorf("encode wav: %w", err)
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	part, err := w.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(wavData); err != nil {
		return "", fmt.Errorf("write audio data: %w", err)
	}
	if err := w.WriteField("model", a.settings.Model); err != nil {
		return "", fmt.Errorf("write model field: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, &body)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+a.settings.APIKey)
	req.Header.Set("Content-Type", w.FormDataContentType())

	start := time.Now()
	resp, err := a.client.Do(req)
	duration := time.Since(start)
	if err != nil {
		log.Printf("dashscope-adapter: request failed after %v: %v", duration, err)
		return "", fmt.Errorf("dashscope transcription: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("dashscope transcription: status %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	var parsed dashScopeResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if parsed.Code != "" {
		return "", fmt.Errorf("dashscope transcription: %s: %s", parsed.Code, parsed.Message)
	}

	log.Printf("dashscope-adapter: transcribed %d samples in %v: %q", len(samples), duration, parsed.Output.Text)
	return parsed.Output.Text, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
