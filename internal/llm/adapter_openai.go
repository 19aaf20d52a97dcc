package llm

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

const dashScopeCompatibleURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"

// chatAdapter implements Adapter over any OpenAI-compatible chat completion
// endpoint. All three refinement providers share it; they differ only in base
// URL and default model.
type chatAdapter struct {
	name         string
	client       *openai.Client
	config       Config
	defaultModel string
}

// NewOpenAIAdapter creates a refinement adapter backed by the OpenAI API
func NewOpenAIAdapter(cfg Config) Adapter {
	return &chatAdapter{
		name:         "openai",
		client:       openai.NewClient(cfg.APIKey),
		config:       cfg,
		defaultModel: "gpt-4o-mini",
	}
}

// NewDashScopeAdapter creates a refinement adapter backed by DashScope's
// OpenAI-compatible endpoint
func NewDashScopeAdapter(cfg Config) Adapter {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = dashScopeCompatibleURL
	return &chatAdapter{
		name:         "dashscope",
		client:       openai.NewClientWithConfig(clientConfig),
		config:       cfg,
		defaultModel: "qwen-turbo",
	}
}

// NewOllamaAdapter creates a refinement adapter backed by a local Ollama
// server. No credential; the server is addressed by the configured endpoint.
func NewOllamaAdapter(cfg Config) Adapter {
	clientConfig := openai.DefaultConfig("ollama")
	clientConfig.BaseURL = strings.TrimRight(cfg.Endpoint, "/") + "/v1"
	return &chatAdapter{
		name:         "ollama",
		client:       openai.NewClientWithConfig(clientConfig),
		config:       cfg,
		defaultModel: "qwen2.5:3b",
	}
}

func (a *chatAdapter) Process(ctx context.Context, text string) (string, error) {
	if text == "" {
		return "", nil
	}

	model := a.config.Model
	if model == "" {
		model = a.defaultModel
	}

	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: RefinementSystemPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		Temperature: 0.3, // Low temperature for consistent cleanup
	}

	start := time.Now()
	resp, err := a.client.CreateChatCompletion(ctx, req)
	duration := time.Since(start)

	if err != nil {
		log.Printf("%s-llm-adapter: API call failed after %v: %v", a.name, duration, err)
		return "", fmt.Errorf("%s chat completion: %w", a.name, err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s chat completion: no response choices", a.name)
	}

	result := strings.TrimSpace(resp.Choices[0].Message.Content)
	log.Printf("%s-llm-adapter: refined in %v: %q -> %q", a.name, duration, text, result)
	return result, nil
}
