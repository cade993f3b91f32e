package model

// ================ Config ================

type ChatModelConfig struct {
	Model         string  `envconfig:"CHAT_MODEL" default:"gemini-2.5-flash"`
	MaxTokens     int     `envconfig:"CHAT_MAX_TOKENS" default:"2000"`
	Temperature   float32 `envconfig:"CHAT_TEMPERATURE" default:"0.3"`
	ToolMaxRounds int     `envconfig:"CHAT_TOOL_MAX_ROUNDS" default:"4"`
}

type PromptConfig struct {
	AssistantName string `envconfig:"PROMPT_ASSISTANT_NAME" default:"MarketChat"`
	Disclaimer    string `envconfig:"PROMPT_DISCLAIMER" default:"This is market data commentary, not financial advice."`
}

type ConversationConfig struct {
	TTL      string `envconfig:"CONVERSATION_TTL" default:"30m"`
	Resolver struct {
		MaxTurns int `envconfig:"CONVERSATION_RESOLVER_MAX_TURNS" default:"10"`
	}
}

type SessionConfig struct {
	// HistoryLimit bounds the transition history ring buffer per session.
	HistoryLimit int `envconfig:"SESSION_HISTORY_LIMIT" default:"200"`
	// MaxErrorAttempts caps retries per session; 0 means unlimited.
	MaxErrorAttempts int    `envconfig:"SESSION_MAX_ERROR_ATTEMPTS" default:"0"`
	IdleTTL          string `envconfig:"SESSION_IDLE_TTL" default:"30m"`
	SweepSchedule    string `envconfig:"SESSION_SWEEP_SCHEDULE" default:"@every 5m"`
}
