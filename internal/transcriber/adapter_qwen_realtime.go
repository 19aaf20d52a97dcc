package transcriber

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	qwenRealtimeURL       = "wss://dashscope.aliyuncs.com/api-ws/v1/realtime"
	qwenConnectTimeout    = 10 * time.Second
	qwenSessionConfirmTTL = 5 * time.Second
)

// QwenRealtimeAdapter implements StreamingAdapter over the DashScope realtime
// WebSocket API. The server runs VAD; each detected utterance produces
// incremental text events followed by a completed event.
type QwenRealtimeAdapter struct {
	settings Settings
	url      string

	mu        sync.Mutex
	conn      *websocket.Conn
	started   bool
	resultsCh chan StreamResult
	wg        sync.WaitGroup

	// armed by Finalize when a commit is sent; the read loop closes it on
	// the next completed event
	pendingFinalize chan struct{}
}

// Outgoing events

type qwenSessionUpdate struct {
	EventID string      `json:"event_id"`
	Type    string      `json:"type"`
	Session qwenSession `json:"session"`
}

type qwenSession struct {
	Modalities    []string          `json:"modalities"`
	AudioFormat   string            `json:"input_audio_format"`
	SampleRate    int               `json:"sample_rate"`
	Transcription qwenTranscription `json:"input_audio_transcription"`
	TurnDetection *qwenTurnDetect   `json:"turn_detection"`
}

type qwenTranscription struct {
	Language string `json:"language"`
}

type qwenTurnDetect struct {
	Type              string  `json:"type"`
	Threshold         float64 `json:"threshold"`
	SilenceDurationMs int     `json:"silence_duration_ms"`
}

type qwenAudioAppend struct {
	EventID string `json:"event_id"`
	Type    string `json:"type"`
	Audio   string `json:"audio"`
}

type qwenAudioCommit struct {
	EventID string `json:"event_id"`
	Type    string `json:"type"`
}

// Incoming events

type qwenResponseEvent struct {
	Type       string         `json:"type"`
	Transcript string         `json:"transcript"`
	Text       string         `json:"text"`
	Stash      string         `json:"stash"`
	Error      *qwenErrorInfo `json:"error"`
}

type qwenErrorInfo struct {
	Message string `json:"message"`
}

func NewQwenRealtimeAdapter(settings Settings) *QwenRealtimeAdapter {
	return &QwenRealtimeAdapter{
		settings:  settings,
		url:       fmt.Sprintf("%s?model=%s", qwenRealtimeURL, settings.Model),
		resultsCh: make(chan StreamResult, 32),
	}
}

func (a *QwenRealtimeAdapter) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.started {
		return fmt.Errorf("streaming adapter already started")
	}

	dialer := websocket.Dialer{HandshakeTimeout: qwenConnectTimeout}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+a.settings.APIKey)
	header.Set("OpenAI-Beta", "realtime=v1")

	conn, _, err := dialer.DialContext(ctx, a.url, header)
	if err != nil {
		return fmt.Errorf("connect qwen realtime: %w", err)
	}

	language := a.settings.Language
	if language == "" {
		language = "zh"
	}

	sessionUpdate := qwenSessionUpdate{
		EventID: newEventID(),
		Type:    "session.update",
		Session: qwenSession{
			Modalities:    []string{"text"},
			AudioFormat:   "pcm",
			SampleRate:    a.settings.SampleRate,
			Transcription: qwenTranscription{Language: language},
			// server-side VAD detects utterance boundaries
			TurnDetection: &qwenTurnDetect{
				Type:              "server_vad",
				Threshold:         0.5,
				SilenceDurationMs: 500,
			},
		},
	}

	if err := conn.WriteJSON(sessionUpdate); err != nil {
		conn.Close()
		return fmt.Errorf("send session.update: %w", err)
	}

	if err := a.awaitSessionConfirm(conn); err != nil {
		conn.Close()
		return err
	}

	a.conn = conn
	a.started = true

	a.wg.Add(1)
	go a.readLoop(conn)

	return nil
}

// awaitSessionConfirm blocks until the server acknowledges the session.
func (a *QwenRealtimeAdapter) awaitSessionConfirm(conn *websocket.Conn) error {
	deadline := time.Now().Add(qwenSessionConfirmTTL)
	_ = conn.SetReadDeadline(deadline)
	defer conn.SetReadDeadline(time.Time{})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("wait for session confirm: %w", err)
		}

		var event qwenResponseEvent
		if err := json.Unmarshal(data, &event); err != nil {
			continue
		}
		if event.Error != nil {
			return fmt.Errorf("qwen session rejected: %s", event.Error.Message)
		}
		if event.Type == "session.created" || event.Type == "session.updated" {
			return nil
		}
	}
}

func (a *QwenRealtimeAdapter) SendChunk(samples []float32) error {
	a.mu.Lock()
	conn := a.conn
	a.mu.Unlock()

	if conn == nil {
		return fmt.Errorf("streaming adapter not started")
	}
	if len(samples) == 0 {
		return nil
	}

	append_ := qwenAudioAppend{
		EventID: newEventID(),
		Type:    "input_audio_buffer.append",
		Audio:   base64.StdEncoding.EncodeToString(EncodePCM16(samples)),
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conn == nil {
		return fmt.Errorf("streaming adapter closed")
	}
	if err := a.conn.WriteJSON(append_); err != nil {
		return fmt.Errorf("send audio: %w", err)
	}
	return nil
}

func (a *QwenRealtimeAdapter) Results() <-chan StreamResult {
	return a.resultsCh
}

// Finalize commits the audio buffer and waits for the completed event that
// answers the commit. Completed events the server emitted on its own earlier
// in the session (VAD utterance boundaries) do not satisfy the wait; the
// channel is armed here, before the commit goes out.
func (a *QwenRealtimeAdapter) Finalize(ctx context.Context) error {
	commit := qwenAudioCommit{EventID: newEventID(), Type: "input_audio_buffer.commit"}

	a.mu.Lock()
	if a.conn == nil {
		a.mu.Unlock()
		return fmt.Errorf("streaming adapter not started")
	}
	done := make(chan struct{})
	a.pendingFinalize = done
	err := a.conn.WriteJSON(commit)
	a.mu.Unlock()
	if err != nil {
		a.mu.Lock()
		if a.pendingFinalize == done {
			a.pendingFinalize = nil
		}
		a.mu.Unlock()
		return fmt.Errorf("send commit: %w", err)
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *QwenRealtimeAdapter) Close() error {
	a.mu.Lock()
	conn := a.conn
	a.conn = nil
	a.mu.Unlock()

	if conn != nil {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = conn.Close()
	}

	a.wg.Wait()
	return nil
}

func (a *QwenRealtimeAdapter) readLoop(conn *websocket.Conn) {
	defer func() {
		close(a.resultsCh)
		a.wg.Done()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			a.mu.Lock()
			closed := a.conn == nil
			a.mu.Unlock()
			if !closed {
				a.emit(StreamResult{Err: fmt.Errorf("qwen realtime read: %w", err)})
			}
			return
		}

		var event qwenResponseEvent
		if err := json.Unmarshal(data, &event); err != nil {
			log.Printf("qwen-realtime: skipping unparseable event: %v", err)
			continue
		}

		if event.Error != nil {
			a.emit(StreamResult{Err: fmt.Errorf("qwen realtime: %s", event.Error.Message)})
			return
		}

		switch event.Type {
		case "conversation.item.input_audio_transcription.text":
			a.emit(StreamResult{Text: event.Text, Stash: event.Stash})

		case "conversation.item.input_audio_transcription.completed":
			text := event.Transcript
			if text == "" {
				text = event.Text
			}
			a.emit(StreamResult{Text: text, IsFinal: true})
			a.mu.Lock()
			if a.pendingFinalize != nil {
				close(a.pendingFinalize)
				a.pendingFinalize = nil
			}
			a.mu.Unlock()
		}
	}
}

func (a *QwenRealtimeAdapter) emit(r StreamResult) {
	select {
	case a.resultsCh <- r:
	default:
		log.Printf("qwen-realtime: dropping result due to backpressure")
	}
}

func newEventID() string {
	var b [10]byte
	_, _ = rand.Read(b[:])
	return "event_" + hex.EncodeToString(b[:])
}
