package transcriber

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestFunASRAdapterTranscribe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/asr" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		file, _, err := r.FormFile("audio")
		if err != nil {
			t.Errorf("missing audio part: %v", err)
		} else {
			file.Close()
		}
		w.Write([]byte(`{"result":"hello from funasr","code":0}`))
	}))
	defer server.Close()

	adapter := NewFunASRAdapter(Settings{
		Provider:   "funasr",
		Endpoint:   server.URL,
		SampleRate: 16000,
		Channels:   1,
	})

	text, err := adapter.Transcribe(context.Background(), []float32{0.1, 0.2, 0.3})
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if text != "hello from funasr" {
		t.Errorf("text = %q, want %q", text, "hello from funasr")
	}
}

func TestFunASRAdapterServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":500,"msg":"model not loaded"}`))
	}))
	defer server.Close()

	adapter := NewFunASRAdapter(Settings{Endpoint: server.URL, SampleRate: 16000, Channels: 1})

	_, err := adapter.Transcribe(context.Background(), []float32{0.1})
	if err == nil {
		t.Fatal("expected error for non-zero code")
	}
	if !strings.Contains(err.Error(), "model not loaded") {
		t.Errorf("error %q should carry server message", err.Error())
	}
}

func TestFunASRAdapterEmptyCapture(t *testing.T) {
	adapter := NewFunASRAdapter(Settings{Endpoint: "http://unused", SampleRate: 16000, Channels: 1})

	text, err := adapter.Transcribe(context.Background(), nil)
	if err != nil {
		t.Fatalf("empty capture should not error: %v", err)
	}
	if text != "" {
		t.Errorf("text = %q, want empty", text)
	}
}

func TestDashScopeAdapterTranscribe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("authorization = %q", got)
		}
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if got := r.FormValue("model"); got != "paraformer-realtime-v2" {
			t.Errorf("model field = %q", got)
		}
		w.Write([]byte(`{"request_id":"r1","output":{"text":"你好世界"}}`))
	}))
	defer server.Close()

	adapter := NewDashScopeAdapter(Settings{
		Provider:   "dashscope",
		APIKey:     "sk-test",
		Model:      "paraformer-realtime-v2",
		SampleRate: 16000,
		Channels:   1,
	})
	adapter.endpoint = server.URL

	text, err := adapter.Transcribe(context.Background(), []float32{0.1, 0.2})
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if text != "你好世界" {
		t.Errorf("text = %q, want %q", text, "你好世界")
	}
}

func TestDashScopeAdapterAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"InvalidApiKey","message":"The API key is invalid"}`))
	}))
	defer server.Close()

	adapter := NewDashScopeAdapter(Settings{APIKey: "bad", Model: "m", SampleRate: 16000, Channels: 1})
	adapter.endpoint = server.URL

	_, err := adapter.Transcribe(context.Background(), []float32{0.1})
	if err == nil {
		t.Fatal("expected error for API error code")
	}
	if !strings.Contains(err.Error(), "InvalidApiKey") {
		t.Errorf("error %q should carry API code", err.Error())
	}
}

func TestDashScopeAdapterHTTPStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	adapter := NewDashScopeAdapter(Settings{APIKey: "sk", Model: "m", SampleRate: 16000, Channels: 1})
	adapter.endpoint = server.URL

	_, err := adapter.Transcribe(context.Background(), []float32{0.1})
	if err == nil {
		t.Fatal("expected error for 429 response")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Errorf("error %q should carry HTTP status", err.Error())
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 200); got != "short" {
		t.Errorf("truncate short = %q", got)
	}
	long := strings.Repeat("x", 300)
	got := truncate(long, 200)
	if len(got) != 203 || !strings.HasSuffix(got, "...") {
		t.Errorf("truncate long = %d chars, want 203 ending in ellipsis", len(got))
	}
}
