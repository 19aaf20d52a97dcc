package transcriber

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var testUpgrader = websocket.Upgrader{}

// fakeRealtimeServer speaks enough of the realtime protocol to drive the
// adapter: confirms the session, echoes appended audio sizes as partials and
// answers commit with a completed event.
func fakeRealtimeServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("authorization = %q", got)
		}
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}

			var event struct {
				Type string `json:"type"`
			}
			if err := json.Unmarshal(data, &event); err != nil {
				continue
			}

			switch event.Type {
			case "session.update":
				conn.WriteJSON(map[string]string{"type": "session.updated"})
			case "input_audio_buffer.append":
				conn.WriteJSON(map[string]string{
					"type":  "conversation.item.input_audio_transcription.text",
					"text":  "hello",
					"stash": " wor",
				})
			case "input_audio_buffer.commit":
				conn.WriteJSON(map[string]string{
					"type":       "conversation.item.input_audio_transcription.completed",
					"transcript": "hello world",
				})
			}
		}
	}))
}

func newTestAdapter(serverURL string) *QwenRealtimeAdapter {
	a := NewQwenRealtimeAdapter(Settings{
		Provider:   "qwen",
		APIKey:     "sk-test",
		Model:      "qwen3-asr-flash-realtime",
		SampleRate: 16000,
		Channels:   1,
	})
	a.url = "ws" + strings.TrimPrefix(serverURL, "http")
	return a
}

func TestQwenRealtimeSession(t *testing.T) {
	server := fakeRealtimeServer(t)
	defer server.Close()

	adapter := newTestAdapter(server.URL)
	defer adapter.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := adapter.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if err := adapter.SendChunk([]float32{0.1, 0.2, 0.3}); err != nil {
		t.Fatalf("SendChunk failed: %v", err)
	}

	select {
	case result := <-adapter.Results():
		if result.Err != nil {
			t.Fatalf("unexpected result error: %v", result.Err)
		}
		if result.IsFinal {
			t.Error("first result should be a partial")
		}
		if result.Text != "hello" || result.Stash != " wor" {
			t.Errorf("partial = %q/%q, want hello/' wor'", result.Text, result.Stash)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for partial result")
	}

	if err := adapter.Finalize(ctx); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}

	select {
	case result := <-adapter.Results():
		if !result.IsFinal {
			t.Errorf("expected final result, got partial %q", result.Text)
		}
		if result.Text != "hello world" {
			t.Errorf("final = %q, want %q", result.Text, "hello world")
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for final result")
	}
}

func TestQwenRealtimeFinalizeWaitsForCommitAfterVADFinal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		appends := 0
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}

			var event struct {
				Type string `json:"type"`
			}
			if err := json.Unmarshal(data, &event); err != nil {
				continue
			}

			switch event.Type {
			case "session.update":
				conn.WriteJSON(map[string]string{"type": "session.updated"})
			case "input_audio_buffer.append":
				appends++
				if appends == 1 {
					// server-side VAD ends the first utterance on its own
					conn.WriteJSON(map[string]string{
						"type":       "conversation.item.input_audio_transcription.completed",
						"transcript": "first utterance",
					})
				}
			case "input_audio_buffer.commit":
				time.Sleep(150 * time.Millisecond)
				conn.WriteJSON(map[string]string{
					"type":       "conversation.item.input_audio_transcription.completed",
					"transcript": "second utterance",
				})
			}
		}
	}))
	defer server.Close()

	adapter := newTestAdapter(server.URL)
	defer adapter.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := adapter.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if err := adapter.SendChunk([]float32{0.1, 0.2}); err != nil {
		t.Fatalf("SendChunk failed: %v", err)
	}

	select {
	case result := <-adapter.Results():
		if !result.IsFinal || result.Text != "first utterance" {
			t.Fatalf("result = %+v, want the VAD final for utterance one", result)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for the VAD final")
	}

	if err := adapter.SendChunk([]float32{0.3, 0.4}); err != nil {
		t.Fatalf("SendChunk failed: %v", err)
	}

	// the earlier VAD final must not satisfy this wait; only the completed
	// event answering the commit does
	if err := adapter.Finalize(ctx); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}

	select {
	case result := <-adapter.Results():
		if !result.IsFinal || result.Text != "second utterance" {
			t.Errorf("result = %+v, want the commit final", result)
		}
	default:
		t.Fatal("Finalize returned before the commit's completed event arrived")
	}
}

func TestQwenRealtimeStartTwice(t *testing.T) {
	server := fakeRealtimeServer(t)
	defer server.Close()

	adapter := newTestAdapter(server.URL)
	defer adapter.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := adapter.Start(ctx); err != nil {
		t.Fatalf("first Start failed: %v", err)
	}
	if err := adapter.Start(ctx); err == nil {
		t.Fatal("second Start should fail")
	}
}

func TestQwenRealtimeSendBeforeStart(t *testing.T) {
	adapter := NewQwenRealtimeAdapter(Settings{APIKey: "sk-test", Model: "m", SampleRate: 16000})

	if err := adapter.SendChunk([]float32{0.1}); err == nil {
		t.Fatal("SendChunk before Start should fail")
	}
	if err := adapter.Finalize(context.Background()); err == nil {
		t.Fatal("Finalize before Start should fail")
	}
}

func TestQwenRealtimeSessionRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.ReadMessage()
		conn.WriteJSON(map[string]interface{}{
			"type":  "error",
			"error": map[string]string{"message": "invalid api key"},
		})
		conn.ReadMessage()
	}))
	defer server.Close()

	adapter := newTestAdapter(server.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := adapter.Start(ctx)
	if err == nil {
		t.Fatal("Start should fail on session rejection")
	}
	if !strings.Contains(err.Error(), "invalid api key") {
		t.Errorf("error %q should carry server message", err.Error())
	}
}
