package config

// Defaults returns a Config with sensible default values.
func Defaults() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider: "openai",
			Model:    "gpt-4o-mini",
		},
		Chat: ChatConfig{
			SystemPrompt: "You are a helpful coding assistant.",
			MaxTokens:    4096,
			Temperature:  0.7,
		},
		Retry: RetryConfig{
			MaxRetries:        3,
			InitialDelayMS:    1000,
			MaxDelayMS:        10000,
			BackoffMultiplier: 2.0,
			TimeoutMS:         30000,
		},
	}
}
