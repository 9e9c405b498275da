package transport

import (
	"context"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"opencode-nexus/internal/chat"
)

// OpenAIClient implements Client using the OpenAI API.
// Also works with compatible APIs (Ollama, LM Studio, vLLM) via BaseURL.
type OpenAIClient struct {
	client       openai.Client
	model        string
	systemPrompt string
	maxTokens    int
	temperature  float64
}

// OpenAIConfig holds configuration for the OpenAI client.
type OpenAIConfig struct {
	APIKey       string
	BaseURL      string
	Model        string
	SystemPrompt string
	MaxTokens    int
	Temperature  float64
}

// NewOpenAIClient creates a new OpenAI-backed client.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	return &OpenAIClient{
		client:       openai.NewClient(opts...),
		model:        model,
		systemPrompt: cfg.SystemPrompt,
		maxTokens:    cfg.MaxTokens,
		temperature:  cfg.Temperature,
	}
}

func (c *OpenAIClient) Name() string { return "openai" }

func (c *OpenAIClient) SendMessage(ctx context.Context, sessionID string, history []chat.Message) (<-chan chat.Event, error) {
	params := openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: c.convertMessages(history),
	}
	if c.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(c.maxTokens))
	}
	if c.temperature > 0 {
		params.Temperature = openai.Float(c.temperature)
	}

	stream := c.client.Chat.Completions.NewStreaming(ctx, params)
	if err := stream.Err(); err != nil {
		return nil, err
	}

	ch := make(chan chat.Event, 64)
	go func() {
		defer close(ch)

		var content string
		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			delta := chunk.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			content += delta
			ch <- chat.Event{
				Type:      chat.EventMessageChunk,
				SessionID: sessionID,
				Chunk:     delta,
			}
		}
		if err := stream.Err(); err != nil {
			ch <- chat.Event{
				Type:      chat.EventError,
				SessionID: sessionID,
				ErrMsg:    err.Error(),
			}
			return
		}

		msg := chat.NewMessage(chat.RoleAssistant, content)
		ch <- chat.Event{
			Type:      chat.EventMessageReceived,
			SessionID: sessionID,
			Message:   &msg,
		}
	}()

	return ch, nil
}

func (c *OpenAIClient) convertMessages(history []chat.Message) []openai.ChatCompletionMessageParamUnion {
	var msgs []openai.ChatCompletionMessageParamUnion
	if c.systemPrompt != "" {
		msgs = append(msgs, openai.SystemMessage(c.systemPrompt))
	}
	for _, m := range history {
		switch m.Role {
		case chat.RoleUser:
			msgs = append(msgs, openai.UserMessage(m.Content))
		case chat.RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		}
	}
	return msgs
}
