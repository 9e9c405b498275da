package transport

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"opencode-nexus/internal/chat"
)

// AnthropicClient implements Client using the Anthropic API.
type AnthropicClient struct {
	client       anthropic.Client
	model        string
	systemPrompt string
	maxTokens    int
	temperature  float64
}

// AnthropicConfig holds configuration for the Anthropic client.
type AnthropicConfig struct {
	APIKey       string
	Model        string
	SystemPrompt string
	MaxTokens    int
	Temperature  float64
}

// NewAnthropicClient creates a new Anthropic-backed client.
func NewAnthropicClient(cfg AnthropicConfig) *AnthropicClient {
	model := cfg.Model
	if model == "" {
		model = "claude-sonnet-4-5-20250514"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}
	return &AnthropicClient{
		client:       anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:        model,
		systemPrompt: cfg.SystemPrompt,
		maxTokens:    maxTokens,
		temperature:  cfg.Temperature,
	}
}

func (c *AnthropicClient) Name() string { return "anthropic" }

func (c *AnthropicClient) SendMessage(ctx context.Context, sessionID string, history []chat.Message) (<-chan chat.Event, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		Messages:  c.convertMessages(history),
		MaxTokens: int64(c.maxTokens),
	}
	if c.systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{
			{Text: c.systemPrompt},
		}
	}
	if c.temperature > 0 {
		params.Temperature = anthropic.Float(c.temperature)
	}

	stream := c.client.Messages.NewStreaming(ctx, params)
	if err := stream.Err(); err != nil {
		// The request never got off the ground; let the caller retry.
		return nil, err
	}

	ch := make(chan chat.Event, 64)
	go func() {
		defer close(ch)

		var content string
		for stream.Next() {
			event := stream.Current()
			switch e := event.AsAny().(type) {
			case anthropic.ContentBlockDeltaEvent:
				if e.Delta.Type == "text_delta" && e.Delta.Text != "" {
					content += e.Delta.Text
					ch <- chat.Event{
						Type:      chat.EventMessageChunk,
						SessionID: sessionID,
						Chunk:     e.Delta.Text,
					}
				}
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

func (c *AnthropicClient) convertMessages(history []chat.Message) []anthropic.MessageParam {
	var msgs []anthropic.MessageParam
	for _, m := range history {
		switch m.Role {
		case chat.RoleUser:
			msgs = append(msgs, anthropic.NewUserMessage(
				anthropic.NewTextBlock(m.Content),
			))
		case chat.RoleAssistant:
			msgs = append(msgs, anthropic.NewAssistantMessage(
				anthropic.NewTextBlock(m.Content),
			))
		}
	}
	return msgs
}
