package testutil

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vhisper/vhisper-core/internal/config"
	"github.com/vhisper/vhisper-core/internal/llm"
	"github.com/vhisper/vhisper-core/internal/recording"
	"github.com/vhisper/vhisper-core/internal/transcriber"
)

// TestConfig returns a valid configuration for testing
func TestConfig() *config.Config {
	return &config.Config{
		Provider: "qwen",
		Qwen: &config.QwenConfig{
			APIKey: "test-api-key",
		},
		Recording: config.RecordingConfig{
			SampleRate:        16000,
			Channels:          1,
			ChannelBufferSize: 32,
		},
	}
}

// CreateTempConfigFile creates a temporary config file for testing
func CreateTempConfigFile(t *testing.T, configContent string) string {
	t.Helper()

	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "config.toml")

	err := os.WriteFile(configPath, []byte(configContent), 0644)
	if err != nil {
		t.Fatalf("Failed to create temp config file: %v", err)
	}

	return configPath
}

// SpeechFrame returns a frame loud enough to pass the silence gate
func SpeechFrame(n int) recording.AudioFrame {
	samples := make([]float32, n)
	for i := range samples {
		if i%2 == 0 {
			samples[i] = 0.5
		} else {
			samples[i] = -0.5
		}
	}
	return recording.AudioFrame{Samples: samples, Timestamp: time.Now()}
}

// QuietFrame returns a frame below the usable-volume threshold
func QuietFrame(n int) recording.AudioFrame {
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = 0.01
	}
	return recording.AudioFrame{Samples: samples, Timestamp: time.Now()}
}

// SilentFrame returns a frame with no signal at all
func SilentFrame(n int) recording.AudioFrame {
	return recording.AudioFrame{Samples: make([]float32, n), Timestamp: time.Now()}
}

// MockRecorder implements recording.Recorder for testing. Frames are fed to
// the frame channel after Start; both channels close on Stop, matching the
// device-backed recorder.
type MockRecorder struct {
	Frames       []recording.AudioFrame
	StartError   error
	CaptureError error

	mu        sync.Mutex
	recording atomic.Bool
	closed    atomic.Bool
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

func NewMockRecorder(frames ...recording.AudioFrame) *MockRecorder {
	if len(frames) == 0 {
		frames = []recording.AudioFrame{SpeechFrame(1600)}
	}
	return &MockRecorder{Frames: frames}
}

func (m *MockRecorder) Start(ctx context.Context) (<-chan recording.AudioFrame, <-chan error, error) {
	if m.StartError != nil {
		return nil, nil, m.StartError
	}

	m.mu.Lock()
	m.stopCh = make(chan struct{})
	stopCh := m.stopCh
	m.mu.Unlock()

	m.recording.Store(true)

	frameCh := make(chan recording.AudioFrame, len(m.Frames)+1)
	errCh := make(chan error, 1)

	m.wg.Add(1)
	go func() {
		defer func() {
			close(frameCh)
			close(errCh)
			m.recording.Store(false)
			m.wg.Done()
		}()

		for _, frame := range m.Frames {
			// frameCh is sized to hold every frame; prefer the send so a
			// concurrent Stop cannot win the select and drop frames.
			select {
			case frameCh <- frame:
				continue
			default:
			}
			select {
			case <-ctx.Done():
				return
			case <-stopCh:
				return
			case frameCh <- frame:
			}
		}

		if m.CaptureError != nil {
			errCh <- m.CaptureError
		}

		// keep channels open until the session ends
		select {
		case <-ctx.Done():
		case <-stopCh:
		}
	}()

	return frameCh, errCh, nil
}

func (m *MockRecorder) Stop() error {
	m.mu.Lock()
	if m.stopCh != nil {
		close(m.stopCh)
		m.stopCh = nil
	}
	m.mu.Unlock()

	m.wg.Wait()
	return nil
}

func (m *MockRecorder) IsRecording() bool {
	return m.recording.Load()
}

func (m *MockRecorder) Close() error {
	m.Stop()
	m.closed.Store(true)
	return nil
}

func (m *MockRecorder) IsClosed() bool {
	return m.closed.Load()
}

// MockBatchAdapter implements transcriber.BatchAdapter for testing
type MockBatchAdapter struct {
	TranscribeFunc func(ctx context.Context, samples []float32) (string, error)

	mu      sync.Mutex
	calls   int
	samples []float32
}

func NewMockBatchAdapter() *MockBatchAdapter {
	return &MockBatchAdapter{}
}

func (m *MockBatchAdapter) Transcribe(ctx context.Context, samples []float32) (string, error) {
	m.mu.Lock()
	m.calls++
	m.samples = append([]float32(nil), samples...)
	m.mu.Unlock()

	if m.TranscribeFunc != nil {
		return m.TranscribeFunc(ctx, samples)
	}
	return "mock transcription", nil
}

func (m *MockBatchAdapter) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockBatchAdapter) LastSamples() []float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.samples
}

// MockStreamingAdapter implements transcriber.StreamingAdapter for testing.
// Queued results are released one per SendChunk; Finalize emits the final.
type MockStreamingAdapter struct {
	StartError    error
	FinalizeError error
	FinalizeFunc  func(ctx context.Context) error // optional hook, runs before the final is emitted
	Partials      []transcriber.StreamResult
	FinalText     string

	mu        sync.Mutex
	started   bool
	closed    bool
	next      int
	resultsCh chan transcriber.StreamResult
	sent      [][]float32
}

func NewMockStreamingAdapter(finalText string, partials ...transcriber.StreamResult) *MockStreamingAdapter {
	return &MockStreamingAdapter{
		FinalText: finalText,
		Partials:  partials,
		resultsCh: make(chan transcriber.StreamResult, 32),
	}
}

func (m *MockStreamingAdapter) Start(ctx context.Context) error {
	if m.StartError != nil {
		return m.StartError
	}
	m.mu.Lock()
	m.started = true
	m.mu.Unlock()
	return nil
}

func (m *MockStreamingAdapter) SendChunk(samples []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.started || m.closed {
		return context.Canceled
	}

	m.sent = append(m.sent, append([]float32(nil), samples...))
	if m.next < len(m.Partials) {
		m.resultsCh <- m.Partials[m.next]
		m.next++
	}
	return nil
}

func (m *MockStreamingAdapter) Results() <-chan transcriber.StreamResult {
	return m.resultsCh
}

func (m *MockStreamingAdapter) Finalize(ctx context.Context) error {
	if m.FinalizeFunc != nil {
		if err := m.FinalizeFunc(ctx); err != nil {
			return err
		}
	}
	if m.FinalizeError != nil {
		return m.FinalizeError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.resultsCh <- transcriber.StreamResult{Text: m.FinalText, IsFinal: true}
	}
	return nil
}

func (m *MockStreamingAdapter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.resultsCh)
	}
	return nil
}

func (m *MockStreamingAdapter) SentChunks() [][]float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent
}

// MockLLMAdapter implements llm.Adapter for testing
type MockLLMAdapter struct {
	ProcessedText string
	ProcessError  error

	mu            sync.Mutex
	ProcessCalled bool
	InputText     string
}

func NewMockLLMAdapter(processedText string) *MockLLMAdapter {
	return &MockLLMAdapter{ProcessedText: processedText}
}

func (m *MockLLMAdapter) Process(ctx context.Context, text string) (string, error) {
	m.mu.Lock()
	m.ProcessCalled = true
	m.InputText = text
	m.mu.Unlock()

	if m.ProcessError != nil {
		return "", m.ProcessError
	}
	return m.ProcessedText, nil
}

// Factory helpers for pipeline testing

// MockRecorderFactory returns a factory that hands out the given mock recorder
func MockRecorderFactory(mock *MockRecorder) func(cfg recording.Config) (recording.Recorder, error) {
	return func(cfg recording.Config) (recording.Recorder, error) {
		return mock, nil
	}
}

// MockBatchFactory returns a factory that hands out the given mock adapter
func MockBatchFactory(mock *MockBatchAdapter) func(s transcriber.Settings) (transcriber.BatchAdapter, error) {
	return func(s transcriber.Settings) (transcriber.BatchAdapter, error) {
		return mock, nil
	}
}

// MockStreamingFactory returns a factory that hands out the given mock adapter
func MockStreamingFactory(mock *MockStreamingAdapter) func(s transcriber.Settings) (transcriber.StreamingAdapter, error) {
	return func(s transcriber.Settings) (transcriber.StreamingAdapter, error) {
		return mock, nil
	}
}

// MockLLMFactory returns a factory that hands out the given mock adapter
func MockLLMFactory(mock *MockLLMAdapter) func(cfg llm.Config) (llm.Adapter, error) {
	return func(cfg llm.Config) (llm.Adapter, error) {
		return mock, nil
	}
}

// TestContext returns a context with timeout for testing
func TestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

// WaitForCondition waits for a condition to be true or times out
func WaitForCondition(t *testing.T, condition func() bool, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Condition not met within %v", timeout)
}
