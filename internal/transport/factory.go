package transport

import (
	"fmt"

	"opencode-nexus/internal/config"
)

// New creates a transport client from config.
func New(llmCfg config.LLMConfig, chatCfg config.ChatConfig) (Client, error) {
	switch llmCfg.Provider {
	case "openai", "openrouter", "local":
		return NewOpenAIClient(OpenAIConfig{
			APIKey:       llmCfg.APIKey,
			BaseURL:      llmCfg.BaseURL,
			Model:        llmCfg.Model,
			SystemPrompt: chatCfg.SystemPrompt,
			MaxTokens:    chatCfg.MaxTokens,
			Temperature:  chatCfg.Temperature,
		}), nil
	case "anthropic":
		return NewAnthropicClient(AnthropicConfig{
			APIKey:       llmCfg.APIKey,
			Model:        llmCfg.Model,
			SystemPrompt: chatCfg.SystemPrompt,
			MaxTokens:    chatCfg.MaxTokens,
			Temperature:  chatCfg.Temperature,
		}), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", llmCfg.Provider)
	}
}
