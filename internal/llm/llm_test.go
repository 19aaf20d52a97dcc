package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewAdapter(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name: "openai with key",
			cfg:  Config{Provider: "openai", APIKey: "sk-test"},
		},
		{
			name:    "openai without key",
			cfg:     Config{Provider: "openai"},
			wantErr: "API key required",
		},
		{
			name: "dashscope with key",
			cfg:  Config{Provider: "dashscope", APIKey: "sk-test"},
		},
		{
			name:    "dashscope without key",
			cfg:     Config{Provider: "dashscope"},
			wantErr: "API key required",
		},
		{
			name: "ollama with endpoint",
			cfg:  Config{Provider: "ollama", Endpoint: "http://localhost:11434"},
		},
		{
			name:    "ollama without endpoint",
			cfg:     Config{Provider: "ollama"},
			wantErr: "endpoint required",
		},
		{
			name:    "unknown provider",
			cfg:     Config{Provider: "groq", APIKey: "sk"},
			wantErr: "unsupported LLM provider",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter, err := NewAdapter(tt.cfg)
			if tt.wantErr != "" {
				if err == nil {
					t.Fatalf("expected error containing %q, got nil", tt.wantErr)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("error %q does not contain %q", err.Error(), tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if adapter == nil {
				t.Fatal("expected adapter, got nil")
			}
		})
	}
}

func TestRefinementSystemPrompt(t *testing.T) {
	prompt := RefinementSystemPrompt()

	for _, want := range []string{
		"Remove stutters",
		"filler words",
		"punctuation",
		"Preserve the original meaning",
		"same language",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestOllamaProcess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}

		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "qwen2.5:3b" {
			t.Errorf("model = %q, want default", req.Model)
		}
		if len(req.Messages) != 2 || req.Messages[1].Content != "um so hello world" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Hello, world."}}]}`))
	}))
	defer server.Close()

	adapter, err := NewAdapter(Config{Provider: "ollama", Endpoint: server.URL})
	if err != nil {
		t.Fatalf("NewAdapter failed: %v", err)
	}

	out, err := adapter.Process(context.Background(), "um so hello world")
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if out != "Hello, world." {
		t.Errorf("refined = %q, want %q", out, "Hello, world.")
	}
}

func TestProcessEmptyInput(t *testing.T) {
	adapter, err := NewAdapter(Config{Provider: "ollama", Endpoint: "http://unused"})
	if err != nil {
		t.Fatalf("NewAdapter failed: %v", err)
	}

	out, err := adapter.Process(context.Background(), "")
	if err != nil {
		t.Fatalf("empty input should not error: %v", err)
	}
	if out != "" {
		t.Errorf("out = %q, want empty", out)
	}
}
