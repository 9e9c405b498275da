package config

// Config is the top-level application configuration.
type Config struct {
	LLM         LLMConfig   `json:"llm"`
	FallbackLLM *LLMConfig  `json:"fallback_llm,omitempty"`
	Chat        ChatConfig  `json:"chat"`
	Retry       RetryConfig `json:"retry"`
	HistoryPath string      `json:"history_path,omitempty"`
}

// LLMConfig selects and configures a chat backend.
type LLMConfig struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	APIKey   string `json:"api_key,omitempty"`
	BaseURL  string `json:"base_url,omitempty"`
}

// ChatConfig shapes outbound chat requests.
type ChatConfig struct {
	SystemPrompt string  `json:"system_prompt"`
	MaxTokens    int     `json:"max_tokens"`
	Temperature  float64 `json:"temperature"`
}

// RetryConfig controls the retry executor for outbound calls. Durations are
// in milliseconds to keep the config file unit-explicit.
type RetryConfig struct {
	MaxRetries        int     `json:"max_retries"`
	InitialDelayMS    int     `json:"initial_delay_ms"`
	MaxDelayMS        int     `json:"max_delay_ms"`
	BackoffMultiplier float64 `json:"backoff_multiplier"`
	TimeoutMS         int     `json:"timeout_ms"`
}
